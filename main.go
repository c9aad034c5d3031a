package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"barviz/cmd"
	"barviz/internal/config"
	applog "barviz/internal/log"
	"barviz/pkg/build"
)

// main is the entry point for the visualizer.
// The program flow is divided into three distinct phases:
//
// 1. Startup Phase (Cold Path):
//   - Initialize build information
//   - Parse command line arguments and configuration
//   - Execute one-off commands if requested
//   - Open the source and build the pipeline, displays and render loop
//
// 2. Concurrent Phase (Hot Path):
//   - Render loop pulls one band vector per tick
//   - Terminal display runs its own event loop
//   - Transports broadcast each vector
//
// 3. Shutdown Phase (Cold Path):
//   - Handle termination signals or the user quitting
//   - Wait for the in-flight tick, release the source
//   - Close transports
func main() {
	// ==================== STARTUP PHASE (Cold Path) ====================

	// Development builds carry no ldflags; the defaults are fine.
	if err := build.Initialize(); err != nil {
		applog.Debugf("Build: %v, using development build info", err)
	}

	cfg, err := cmd.ParseArgs(os.Args[1:])
	if err != nil {
		applog.Fatalf("%v", err)
	}
	applog.SetLevel(cfg.Level())

	switch cfg.Command {
	case config.CommandInfo:
		if err := printInfo(os.Stdout, cfg.AudioFile); err != nil {
			applog.Fatalf("%v", err)
		}
		return
	case config.CommandRun:
	default:
		// Nothing selected; usage has been printed.
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err = run(ctx, cfg)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", build.GetBuildFlags().Name, err)
		os.Exit(1)
	}
}

// run drives one session until the source ends, the user quits, a signal
// arrives or a tick fails.
func run(ctx context.Context, cfg *config.Config) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s, err := openSession(cfg, cancel)
	if err != nil {
		return err
	}
	defer s.Close()

	// ==================== CONCURRENT PHASE (Hot Path) ====================

	if s.terminal == nil {
		applog.Infof("Session: Running %s (Ctrl+C to stop)", build.GetBuildFlags())
		return <-s.loop.Start(ctx)
	}

	restore, err := redirectLogs(cfg.Display.LogFile)
	if err != nil {
		return err
	}
	defer restore()

	errc := s.loop.Start(ctx)

	// A clean end closes the terminal; a failure stays on screen until the
	// user quits.
	result := make(chan error, 1)
	go func() {
		err := <-errc
		if err == nil {
			s.terminal.Quit()
		}
		result <- err
	}()

	tuiErr := s.terminal.Run()

	// ==================== SHUTDOWN PHASE (Cold Path) ====================

	cancel()
	s.loop.Stop()
	return errors.Join(<-result, tuiErr)
}
