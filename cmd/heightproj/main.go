// heightproj composes projected height brushes onto terrain heightmaps.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/Faultbox/terrain-projector/internal/config"
	"github.com/Faultbox/terrain-projector/internal/logger"
)

func main() {
	flag.Usage = printUsage
	config.ParseFlags()

	args := config.Args()
	if len(args) < 1 {
		printUsage()
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Config error: %v\n", err)
		os.Exit(1)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.LogFile); err != nil {
		fmt.Fprintf(os.Stderr, "Logger error: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()
	logger.Sugar.Debugf("config: %+v", cfg)

	c := &cli{cfg: cfg, out: os.Stdout}
	if err := c.run(args[0], args[1:]); err != nil {
		var u usageError
		if errors.As(err, &u) {
			fmt.Fprintln(os.Stderr, "Usage: heightproj", string(u))
			os.Exit(2)
		}
		if errors.Is(err, errUnknownCommand) {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			printUsage()
			os.Exit(1)
		}
		logger.Error("command failed", zap.String("command", args[0]), zap.Error(err))
		logger.Sync()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `heightproj - project height brushes onto terrain heightmaps

Usage:
  heightproj [flags] <command> [options]

Commands:
  compose <scene.yaml> [-o out.r16] [-preview out.png]  Compose the scene's projectors over its terrain
  bake <scene.yaml> [-o out.r16] [-keep-scene]           Compose, then make the result the new terrain baseline
  preview <terrain> <out.png> [-scene s.yaml] [-scale N] Render a terrain as a grayscale PNG
  preview <terrain> <out.png> [-gen ID]                  Render a stored SQLite generation
  info <terrain> [-at x,z] [-gen ID]                     Show resolution, extent and height range
  history <terrain.db> [-n N]                            List stored terrain generations
  init <scene.yaml> [-heightmap ref] [-res N] [-size S]  Write a starter scene with one projector
  config [-save] [-o path]                               Print or save the effective config

A <terrain> is an R16 file with a .yaml sidecar, or sqlite:<path.db>.

Flags:`)
	flag.CommandLine.SetOutput(os.Stderr)
	flag.PrintDefaults()
	fmt.Fprintln(os.Stderr, `
Examples:
  heightproj compose island.yaml -o island_composed.r16
  heightproj -db terrain.db bake island.yaml
  heightproj preview island_composed.r16 island.png -scene island.yaml -scale 2
  heightproj history terrain.db -n 10
  heightproj info sqlite:terrain.db -gen 3
  heightproj -filter nearest config -save`)
}
