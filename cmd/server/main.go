// Package main is the entry point for the beatbox API server
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	_ "gitlab.com/gomidi/midi/v2/drivers/rtmididrv"

	"github.com/james-see/beatbox/pkg/api"
	"github.com/james-see/beatbox/pkg/backend"
	"github.com/james-see/beatbox/pkg/config"
	"github.com/james-see/beatbox/pkg/grid"
	"github.com/james-see/beatbox/pkg/persist"
	"github.com/james-see/beatbox/pkg/playback"
)

func main() {
	configPath := flag.String("config", "", "Config file")
	port := flag.Int("port", 0, "Server port (default from config)")
	midiPort := flag.String("midi-port", "", "MIDI output port (default from config)")
	pattern := flag.String("pattern", "", "Pattern file to load at startup")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}
	logrus.SetLevel(cfg.Level())
	if *port != 0 {
		cfg.Server.Port = *port
	}
	if *midiPort != "" {
		cfg.MIDI.Port = *midiPort
	}

	g := grid.New()
	if *pattern != "" {
		m, err := persist.ReadFile(cfg.PatternPath(*pattern))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Pattern error: %v\n", err)
			os.Exit(1)
		}
		g.Replace(m)
	}

	log := logrus.StandardLogger()
	ctrl := playback.New(g, backend.Opener(cfg.MIDI.Port, backend.WithLogger(log)), playback.WithLogger(log))
	defer func() { _ = ctrl.Close() }()

	fmt.Printf("Starting beatbox API server on port %d...\n", cfg.Server.Port)
	fmt.Printf("Swagger docs available at http://localhost:%d/swagger/index.html\n", cfg.Server.Port)

	if err := api.StartServer(cfg.Server.Port, ctrl); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		_ = ctrl.Close()
		os.Exit(1)
	}
}
