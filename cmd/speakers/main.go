// Command speakers switches the speaker amplifier relay and leaves it set.
//
//	speakers [-config file] on|off|status
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/config"
	"github.com/sweeney/garage-controller/internal/gpio"
	"github.com/sweeney/garage-controller/internal/logging"
)

var openLatch = gpio.OpenLatch

var errUsage = errors.New("argument must be exactly one of on/off/status")

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "speakers: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	fs := flag.NewFlagSet("speakers", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", "", "YAML config file (optional)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: speakers [-config file] on|off|status")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	action := fs.Arg(0)
	switch action {
	case "on", "off", "status":
	default:
		return errUsage
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	if err := logging.Setup(stderr, cfg.LogLevel); err != nil {
		return err
	}

	latch, err := openLatch(cfg.Chip, "SPEAKERS", cfg.Pins.Speakers)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	// Close keeps the level, so the amplifier stays as set after exit.
	defer func() {
		if err := latch.Close(); err != nil {
			log.Error().Err(err).Msg("release gpio")
		}
	}()

	if action == "status" {
		st, err := latch.State()
		if err != nil {
			return fmt.Errorf("read speakers: %w", err)
		}
		fmt.Fprintln(stdout, st)
		return nil
	}

	if err := latch.Set(action == "on"); err != nil {
		return fmt.Errorf("switch speakers %s: %w", action, err)
	}
	log.Info().Str("speakers", action).Int("pin", cfg.Pins.Speakers).Msg("done")
	return nil
}
