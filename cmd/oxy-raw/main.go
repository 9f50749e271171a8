//go:build !js

// Command oxy-raw opens a window and draws a UV sphere through the raw render pipeline.
//
// Keys: Space pauses and resumes the frame loop, A toggles animation, R resets the transform, Esc quits.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/Carmen-Shannon/oxy-raw/config"
	"github.com/Carmen-Shannon/oxy-raw/engine"
)

func main() {
	configPath := flag.String("config", "", "YAML or TOML config file")
	xSegments := flag.Int("x", 0, "Longitude segments (overrides config)")
	ySegments := flag.Int("y", 0, "Latitude segments (overrides config)")
	workers := flag.Int("workers", -1, "Generator workers (overrides config)")
	animate := flag.Bool("animate", false, "Start with rotation and scale animation enabled")
	logLevel := flag.String("log-level", "", "debug, info, warn or error (overrides config)")
	flag.Parse()

	if err := run(*configPath, func(cfg *config.Config) {
		if *xSegments > 0 {
			cfg.Sphere.XSegments = *xSegments
		}
		if *ySegments > 0 {
			cfg.Sphere.YSegments = *ySegments
		}
		if *workers >= 0 {
			cfg.Sphere.Workers = *workers
		}
		if *animate {
			cfg.Render.Animate = true
		}
		if *logLevel != "" {
			cfg.Log.Level = *logLevel
		}
	}); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, override func(*config.Config)) error {
	cfg := config.Default()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return err
		}
	}
	override(&cfg)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := cfg.Log.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	eng, err := engine.NewEngine(cfg, engine.WithLogger(logger))
	if err != nil {
		return err
	}
	logger.Info("starting", "width", eng.Window().Width(), "height", eng.Window().Height())
	return eng.Run(ctx)
}
