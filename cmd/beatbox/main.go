// Package main is the entry point for the beatbox CLI
package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/james-see/beatbox/pkg/api"
	"github.com/james-see/beatbox/pkg/backend"
	"github.com/james-see/beatbox/pkg/config"
	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/instrument"
	"github.com/james-see/beatbox/pkg/persist"
	"github.com/james-see/beatbox/pkg/playback"
	"github.com/james-see/beatbox/pkg/sequence"
	"github.com/james-see/beatbox/pkg/tui"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	configPath string
	verbose    bool
	outputFile string
	serverPort int
	midiPort   string
	showEvents bool

	cfg config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "beatbox",
	Short: "A 16x16 drum step sequencer",
	Long: `beatbox is a drum step sequencer with 16 General MIDI percussion
instruments and 16 steps, played in a loop on a MIDI output.

Patterns are saved in the classic BeatBox object stream format (.ser),
as YAML text (.yml) or as Standard MIDI Files (.mid).

Examples:
  beatbox play groove.ser
  beatbox show groove.ser
  beatbox convert groove.ser -o groove.mid
  beatbox serve --port 8080
  beatbox ports`,
	Version:           fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
}

var playCmd = &cobra.Command{
	Use:   "play [pattern]",
	Short: "Edit and play a pattern in the terminal",
	Long: `Opens the grid editor. The pattern is loaded when the file exists
and saved back to it with w.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPlay,
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API server",
	RunE:  runServe,
}

var portsCmd = &cobra.Command{
	Use:   "ports",
	Short: "List MIDI output ports",
	RunE:  runPorts,
}

var instrumentsCmd = &cobra.Command{
	Use:   "instruments",
	Short: "List the instrument rows",
	RunE:  runInstruments,
}

var showCmd = &cobra.Command{
	Use:   "show <pattern>",
	Short: "Print a pattern",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

var convertCmd = &cobra.Command{
	Use:   "convert <input>",
	Short: "Convert a pattern between formats",
	Long:  `Detects the input format and writes the format named by the output file extension.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runConvert,
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (default: user config dir/beatbox/config.yml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")
	rootCmd.PersistentFlags().StringVarP(&midiPort, "midi-port", "m", "", "MIDI output port (default from config, else the first port)")

	// serve command
	serveCmd.Flags().IntVarP(&serverPort, "port", "p", 8080, "Server port")

	// show command
	showCmd.Flags().BoolVarP(&showEvents, "events", "e", false, "Also print the compiled events")

	// convert command
	convertCmd.Flags().StringVarP(&outputFile, "output", "o", "", "Output file path (required)")
	_ = convertCmd.MarkFlagRequired("output")

	// Add commands
	rootCmd.AddCommand(playCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(portsCmd)
	rootCmd.AddCommand(instrumentsCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(convertCmd)
}

func loadConfig(cmd *cobra.Command, args []string) error {
	var err error
	if cfg, err = config.Load(configPath); err != nil {
		return err
	}

	logrus.SetOutput(os.Stderr)
	logrus.SetLevel(cfg.Level())
	if verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	if cmd.Flags().Changed("midi-port") {
		cfg.MIDI.Port = midiPort
	}
	return nil
}

// newController opens the configured MIDI output lazily through the
// playback controller
func newController(g *grid.Grid) *playback.Controller {
	log := logrus.StandardLogger()
	return playback.New(g, backend.Opener(cfg.MIDI.Port, backend.WithLogger(log)), playback.WithLogger(log))
}

// logToFile sends log output to beatbox/debug.log in the user config dir
// while the terminal UI owns the screen
func logToFile() (func(), error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return nil, err
	}
	dir = filepath.Join(dir, "beatbox")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(filepath.Join(dir, "debug.log"), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return nil, err
	}
	logrus.SetOutput(f)
	return func() {
		logrus.SetOutput(os.Stderr)
		_ = f.Close()
	}, nil
}

func runPlay(cmd *cobra.Command, args []string) error {
	var name string
	if len(args) == 1 {
		name = args[0]
	}
	path := cfg.PatternPath(name)

	g := grid.New()
	m, err := persist.ReadFile(path)
	switch {
	case err == nil:
		g.Replace(m)
	case errors.Is(err, fs.ErrNotExist):
		// new pattern, created on first save
	default:
		return err
	}

	restore, err := logToFile()
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer restore()

	ctrl := newController(g)
	defer func() { _ = ctrl.Close() }()

	return tui.Run(ctrl, path)
}

func runServe(cmd *cobra.Command, args []string) error {
	port := cfg.Server.Port
	if cmd.Flags().Changed("port") {
		port = serverPort
	}

	ctrl := newController(grid.New())
	defer func() { _ = ctrl.Close() }()

	fmt.Printf("Starting API server on port %d...\n", port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", port)
	return api.StartServer(port, ctrl)
}

func runPorts(cmd *cobra.Command, args []string) error {
	ports := backend.Ports()
	if len(ports) == 0 {
		fmt.Println("No MIDI output ports found")
		return nil
	}
	for i, name := range ports {
		fmt.Printf("%2d  %s\n", i, name)
	}
	return nil
}

func runInstruments(cmd *cobra.Command, args []string) error {
	fmt.Printf("%-4s %-15s %s\n", "ROW", "NAME", "NOTE")
	for _, s := range instrument.All() {
		fmt.Printf("%-4d %-15s %d\n", s.Index, s.Name, s.Trigger)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	m, err := persist.ReadFile(args[0])
	if err != nil {
		return err
	}

	fmt.Print(m.String())
	fmt.Printf("%d active cells\n", m.ActiveCount())

	if showEvents {
		tl := sequence.Compile(m)
		fmt.Printf("\n%d events, loop length %d ticks\n", len(tl), tl.Length())
		for _, e := range tl {
			fmt.Println(e)
		}
	}
	return nil
}

func runConvert(cmd *cobra.Command, args []string) error {
	input := args[0]

	fmt.Printf("Converting %s -> %s\n", input, outputFile)
	if err := persist.ConvertFile(input, outputFile); err != nil {
		return err
	}
	fmt.Println("Conversion complete!")
	return nil
}
