package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"barviz/internal/analysis"
	"barviz/internal/config"
	"barviz/internal/display"
	applog "barviz/internal/log"
	"barviz/internal/render"
	"barviz/internal/source"
	"barviz/internal/transport"
	"barviz/internal/transport/udp"
)

// session owns everything opened for one visualization run.
type session struct {
	src      *source.Source
	pipeline *analysis.Pipeline
	loop     *render.Loop
	terminal *display.Terminal // nil unless the TUI is enabled
	sinks    []io.Closer
}

// openSession opens the source and builds the pipeline, displays and render
// loop. Any error here is fatal and the session never starts. onQuit is
// called when the user quits the terminal display.
func openSession(cfg *config.Config, onQuit func()) (_ *session, err error) {
	v := cfg.Visualizer

	window, err := analysis.ParseWindowFunc(v.Window)
	if err != nil {
		return nil, err
	}
	backend, err := analysis.ParseBackend(v.FFTBackend)
	if err != nil {
		return nil, err
	}
	spacing, err := analysis.ParseSpacing(v.Spacing)
	if err != nil {
		return nil, err
	}
	mode, err := analysis.ParseAggregateMode(v.Aggregate)
	if err != nil {
		return nil, err
	}

	src, err := source.Open(cfg.AudioFile, source.WithLoop(v.Loop))
	if err != nil {
		return nil, err
	}
	s := &session{src: src}
	defer func() {
		if err != nil {
			s.Close()
		}
	}()

	tr, err := analysis.NewTransformer(v.BlockSize, float64(src.SampleRate()), window, backend)
	if err != nil {
		return nil, err
	}
	layout, err := analysis.NewBandLayout(tr.FrameLen(), v.NumBars, spacing)
	if err != nil {
		return nil, err
	}
	s.pipeline, err = analysis.NewPipeline(src, tr, layout, mode)
	if err != nil {
		return nil, err
	}

	out, err := s.openDisplays(cfg, onQuit)
	if err != nil {
		return nil, err
	}

	s.loop, err = render.New(s.pipeline, out,
		render.WithInterval(v.Interval),
		render.WithHeadroom(v.CalibrationHeadroom),
		render.WithFloor(v.CalibrationFloor),
	)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (s *session) openDisplays(cfg *config.Config, onQuit func()) (render.Display, error) {
	var out display.Multi

	switch cfg.Display.Mode {
	case config.DisplayTUI:
		title := fmt.Sprintf("%s • %d bars", filepath.Base(cfg.AudioFile), cfg.Visualizer.NumBars)
		model := display.NewBarsModel(title, cfg.Visualizer.Interval, cfg.Display.Smoothing, onQuit)
		s.terminal = display.NewTerminal(model)
		out = append(out, s.terminal)
	case config.DisplayLog:
		out = append(out, s.addSink("log", transport.NewLoggingTransport()))
	}

	if cfg.Transport.UDPEnabled {
		pub, err := udp.Dial(cfg.Transport.UDPTargetAddress)
		if err != nil {
			return nil, err
		}
		out = append(out, s.addSink("udp", pub))
	}

	if cfg.Transport.WSEnabled {
		ws := transport.NewWebSocketTransport(cfg.Transport.WSAddress)
		sink := s.addSink("websocket", ws)
		if err := ws.ListenAndServe(); err != nil {
			return nil, err
		}
		out = append(out, sink)
	}

	switch len(out) {
	case 0:
		applog.Warnf("Session: No display or transport enabled, vectors are discarded")
		return out, nil
	case 1:
		return out[0], nil
	default:
		return out, nil
	}
}

func (s *session) addSink(name string, t transport.Transport) *display.Sink {
	sink := display.NewSink(name, t)
	s.sinks = append(s.sinks, sink)
	return sink
}

// Close stops the loop, which releases the source, then closes every sink.
func (s *session) Close() error {
	var errs []error
	if s.loop != nil {
		s.loop.Stop()
	} else if s.src != nil {
		errs = append(errs, s.src.Close())
	}
	for _, c := range s.sinks {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// printInfo decodes the whole file and prints its format.
func printInfo(w io.Writer, path string) error {
	src, err := source.Open(path, source.WithLoop(false))
	if err != nil {
		return err
	}
	defer src.Close()

	if err := src.DecodeAll(); err != nil {
		return err
	}

	fmt.Fprintf(w, "File:        %s\n", src.Path())
	fmt.Fprintf(w, "Format:      %s\n", src.Format())
	fmt.Fprintf(w, "Sample rate: %d Hz\n", src.SampleRate())
	fmt.Fprintf(w, "Channels:    %d\n", src.Channels())
	fmt.Fprintf(w, "Samples:     %d (mono)\n", src.Total())
	fmt.Fprintf(w, "Duration:    %s\n", src.Duration())
	return nil
}

// redirectLogs points the logger at path, or discards logs when path is
// empty, while the terminal display owns the screen. The returned function
// restores the previous destination.
func redirectLogs(path string) (restore func(), err error) {
	prev := applog.Writer()
	if path == "" {
		applog.SetOutput(io.Discard)
		return func() { applog.SetOutput(prev) }, nil
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}
	applog.SetOutput(f)
	return func() {
		applog.SetOutput(prev)
		f.Close()
	}, nil
}
