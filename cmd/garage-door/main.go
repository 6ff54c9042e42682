// Command garage-door pulses the door relays once and exits.
//
//	garage-door [-config file] open|stop|close
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog/log"

	"github.com/sweeney/garage-controller/internal/config"
	"github.com/sweeney/garage-controller/internal/door"
	"github.com/sweeney/garage-controller/internal/gpio"
	"github.com/sweeney/garage-controller/internal/logging"
)

var openBank = gpio.OpenBank

// errUsage marks an invocation problem; main prints usage for it.
var errUsage = errors.New("usage: garage-door [-config file] open|stop|close")

func main() {
	if err := run(os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintf(os.Stderr, "garage-door: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet("garage-door", flag.ContinueOnError)
	fs.SetOutput(stderr)
	path := fs.String("config", "", "YAML config file (optional)")
	fs.Usage = func() {
		fmt.Fprintln(stderr, errUsage)
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errUsage
	}
	cmd, err := door.ParseCLICommand(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("%w (%v)", errUsage, err)
	}

	cfg, err := config.Load(*path)
	if err != nil {
		return err
	}
	if err := logging.Setup(stderr, cfg.LogLevel); err != nil {
		return err
	}

	bank, err := openBank(cfg.Chip, cfg.Pins)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer func() {
		if err := bank.Release(); err != nil {
			log.Error().Err(err).Msg("release gpio")
		}
	}()

	ctrl := door.NewFromBank(bank, door.WithSettle(cfg.Timings.Settle))
	if err := ctrl.Execute(cmd); err != nil {
		return err
	}
	log.Info().Str("command", string(cmd)).Str("state", string(ctrl.State())).Msg("done")
	return nil
}
