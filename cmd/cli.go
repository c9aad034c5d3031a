package cmd

import (
	"barviz/internal/config"
	"barviz/pkg/build"
	"time"

	"github.com/spf13/cobra"
)

// flagValues collects the command line flags. Only flags the user actually
// set override the configuration file and environment.
type flagValues struct {
	configPath string
	bars       int
	interval   time.Duration
	blockSize  int
	window     string
	aggregate  string
	spacing    string
	noLoop     bool
	display    string
	udp        string
	ws         string
	verbose    bool
}

// ParseArgs builds the configuration from args (without the program name).
// The returned Command is empty when there is nothing to run, for example
// after --help or when no audio file was given.
func ParseArgs(args []string) (*config.Config, error) {
	buildInfo := build.GetBuildFlags()
	flags := &flagValues{}
	options := config.NewConfig()

	load := func(cmd *cobra.Command) error {
		cfg, err := config.LoadConfig(flags.configPath)
		if err != nil {
			return err
		}
		flags.apply(cmd, cfg)
		if err := cfg.Validate(); err != nil {
			return err
		}
		options = cfg
		return nil
	}

	rootCmd := &cobra.Command{
		Use:           buildInfo.Name + " [audio-file]",
		Short:         buildInfo.Description,
		Version:       buildInfo.Version,
		Args:          cobra.MaximumNArgs(1),
		SilenceErrors: true,
		SilenceUsage:  true,
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd:   true,
			DisableDescriptions: true,
			DisableNoDescFlag:   true,
			HiddenDefaultCmd:    true,
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cmd); err != nil {
				return err
			}
			// No file selected: show usage and exit cleanly.
			if len(args) == 0 {
				return cmd.Usage()
			}
			options.Command = config.CommandRun
			options.AudioFile = args[0]
			return nil
		},
	}

	// Display help message
	rootCmd.SetHelpCommand(&cobra.Command{Hidden: true})

	// Info command
	infoCmd := &cobra.Command{
		Use:   "info <audio-file>",
		Short: "Decode an audio file and print its format",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := load(cmd); err != nil {
				return err
			}
			options.Command = config.CommandInfo
			options.AudioFile = args[0]
			return nil
		},
	}
	rootCmd.AddCommand(infoCmd)

	pf := rootCmd.PersistentFlags()

	// Configuration file
	pf.StringVarP(&flags.configPath, "config", "c", "",
		"Path to a YAML configuration file (default ./"+config.DefaultConfigFile+" if present)")

	// Visualizer Configuration
	pf.IntVarP(&flags.bars, "bars", "n", config.DefaultNumBars,
		"Number of bars")
	pf.DurationVarP(&flags.interval, "interval", "i", config.DefaultInterval,
		"Render interval")
	pf.IntVarP(&flags.blockSize, "block-size", "b", config.DefaultBlockSize,
		"Samples per transform (power of 2)")
	pf.StringVarP(&flags.window, "window", "w", config.DefaultWindow,
		"Window function (Hann, Hamming, Blackman, BlackmanNuttall, BartlettHann, Lanczos, Nuttall, Rectangular)")
	pf.StringVar(&flags.aggregate, "aggregate", config.DefaultAggregate,
		"How bins are combined into a bar (mean, max)")
	pf.StringVar(&flags.spacing, "spacing", config.DefaultSpacing,
		"Band spacing (log, linear)")
	pf.BoolVar(&flags.noLoop, "no-loop", false,
		"Stop at the end of the file instead of wrapping around")

	// Output Configuration
	pf.StringVar(&flags.display, "display", config.DefaultDisplayMode,
		"Local display (tui, log, none)")
	pf.StringVar(&flags.udp, "udp", "",
		"Send band packets over UDP to host:port")
	pf.StringVar(&flags.ws, "ws", "",
		"Serve band frames to WebSocket clients on host:port")

	// Debug Configuration
	pf.BoolVarP(&flags.verbose, "verbose", "v", false,
		"Show verbose output")

	// Execute the CLI
	rootCmd.SetArgs(args)
	if err := rootCmd.Execute(); err != nil {
		return nil, err
	}

	return options, nil
}

// apply copies every flag the user set onto cfg.
func (f *flagValues) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	v := &cfg.Visualizer

	if changed("bars") {
		v.NumBars = f.bars
	}
	if changed("interval") {
		v.Interval = f.interval
	}
	if changed("block-size") {
		v.BlockSize = f.blockSize
	}
	if changed("window") {
		v.Window = f.window
	}
	if changed("aggregate") {
		v.Aggregate = f.aggregate
	}
	if changed("spacing") {
		v.Spacing = f.spacing
	}
	if changed("no-loop") {
		v.Loop = !f.noLoop
	}
	if changed("display") {
		cfg.Display.Mode = f.display
	}
	if changed("udp") {
		cfg.Transport.UDPEnabled = true
		cfg.Transport.UDPTargetAddress = f.udp
	}
	if changed("ws") {
		cfg.Transport.WSEnabled = true
		cfg.Transport.WSAddress = f.ws
	}
	if changed("verbose") && f.verbose {
		cfg.Debug = true
	}
}
