// Command extract runs one heating-cycle extraction against Home Assistant
// and writes the training examples to stdout.
//
//	extract -indoor sensor.living_room_temperature -outdoor sensor.outdoor_temperature \
//	        -target climate.living_room -heating climate.living_room -days 14 -format csv
//
// A preset from a devices file can be used instead of entity flags:
//
//	extract -devices devices.yaml -device living_room
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nicktill/heatcycle/pkg/config"
	"github.com/nicktill/heatcycle/pkg/cycles"
	"github.com/nicktill/heatcycle/pkg/export"
	"github.com/nicktill/heatcycle/pkg/history"
	"github.com/nicktill/heatcycle/pkg/logging"
	"github.com/nicktill/heatcycle/pkg/server"
	"github.com/nicktill/heatcycle/pkg/storage"
)

// Exit codes
const (
	exitError         = 1
	exitInvalidConfig = 2
	exitNoCycles      = 3
	exitConnection    = 4
)

type options struct {
	device      config.Device
	devicesFile string
	presetID    string
	strategy    string
	end         string
	format      string
	output      string
	env         config.Env
}

func parseFlags(args []string, env config.Env) (options, error) {
	opts := options{env: env}
	fs := flag.NewFlagSet("extract", flag.ContinueOnError)

	fs.StringVar(&opts.device.DeviceID, "id", "cli", "device id recorded in JSON output")
	fs.StringVar(&opts.device.IndoorEntity, "indoor", "", "indoor temperature entity")
	fs.StringVar(&opts.device.OutdoorEntity, "outdoor", "", "outdoor temperature entity")
	fs.StringVar(&opts.device.TargetEntity, "target", "", "target temperature entity")
	fs.StringVar(&opts.device.HeatingEntity, "heating", "", "heating state entity")
	fs.StringVar(&opts.device.HumidityEntity, "humidity", "", "humidity entity (optional)")
	fs.StringVar(&opts.device.OnTimeEntity, "on-time", "", "cumulative on-time entity (optional)")
	fs.IntVar(&opts.device.HistoryDays, "days", config.DefaultHistoryDays, "days of history to read")
	fs.IntVar(&opts.device.SplitMinutes, "split", 0, "split cycles longer than this many minutes (0 = never)")
	fs.IntVar(&opts.device.OnTimeBufferMinutes, "buffer", 0, "on-time idle minutes that end a cycle (0 = default)")
	fs.BoolVar(&opts.device.UseStatistics, "statistics", false, "read 5-minute statistics instead of history")
	fs.StringVar(&opts.device.Timezone, "tz", "", "IANA timezone for hour_of_day (default UTC)")
	fs.StringVar(&opts.strategy, "strategy", "", "boolean or counter (default: counter when -on-time is set)")
	fs.StringVar(&opts.end, "end", "", "window end, RFC3339 (default now)")
	fs.StringVar(&opts.devicesFile, "devices", env.DevicesFile, "YAML devices file")
	fs.StringVar(&opts.presetID, "device", "", "use this preset from the devices file")
	fs.StringVar(&opts.format, "format", export.FormatCSV, "output format: csv or json")
	fs.StringVar(&opts.output, "o", "", "output file (default stdout)")
	fs.StringVar(&opts.env.SupervisorURL, "url", env.SupervisorURL, "Home Assistant base URL")
	fs.StringVar(&opts.env.Token, "token", env.Token, "Home Assistant access token")
	fs.StringVar(&opts.env.Statistics, "statistics-source", env.Statistics, "websocket or downsample")
	fs.StringVar(&opts.env.LogLevel, "log-level", env.LogLevel, "debug, info, warn or error")

	if err := fs.Parse(args); err != nil {
		return options{}, err
	}
	if opts.format != export.FormatCSV && opts.format != export.FormatJSON {
		return options{}, fmt.Errorf("%w: format must be csv or json, got %q", cycles.ErrInvalidConfig, opts.format)
	}

	if opts.presetID != "" {
		devices, err := config.LoadDevices(opts.devicesFile)
		if err != nil {
			return options{}, err
		}
		d, err := devices.Get(opts.presetID)
		if err != nil {
			return options{}, err
		}
		opts.device = d
	}
	return opts, nil
}

// extractionConfig resolves the window end and strategy override.
func (o options) extractionConfig(now time.Time) (cycles.Config, error) {
	end := now
	if o.end != "" {
		parsed, err := time.Parse(time.RFC3339, o.end)
		if err != nil {
			return cycles.Config{}, fmt.Errorf("%w: -end: %v", cycles.ErrInvalidConfig, err)
		}
		end = parsed
	}

	cfg, err := o.device.ExtractionConfig(end)
	if err != nil {
		return cycles.Config{}, err
	}
	if o.strategy != "" && !o.device.UseStatistics {
		cfg.Strategy = cycles.Strategy(o.strategy)
		if err := cfg.Validate(); err != nil {
			return cycles.Config{}, err
		}
	}
	return cfg, nil
}

func write(w io.Writer, format, deviceID string, cfg cycles.Config, examples []cycles.TrainingExample) error {
	if format == export.FormatJSON {
		return export.WriteJSON(w, storage.NewDataset(deviceID, cfg, examples))
	}
	return export.WriteCSV(w, examples)
}

func exitCode(err error) int {
	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case errors.Is(err, cycles.ErrInvalidConfig), errors.Is(err, config.ErrUnknownDevice):
		return exitInvalidConfig
	case errors.Is(err, cycles.ErrNoValidCycles):
		return exitNoCycles
	case errors.Is(err, history.ErrConnection):
		return exitConnection
	default:
		return exitError
	}
}

func run(args []string) error {
	opts, err := parseFlags(args, config.Load())
	if err != nil {
		return err
	}

	// Logs go to stderr so stdout carries only the examples
	logger, err := logging.New(logging.Options{Level: opts.env.LogLevel, Output: os.Stderr})
	if err != nil {
		return fmt.Errorf("%w: %v", cycles.ErrInvalidConfig, err)
	}
	defer logger.Close()

	cfg, err := opts.extractionConfig(time.Now())
	if err != nil {
		return err
	}

	extractor, _, err := server.InitializeExtractor(server.Config{Env: opts.env}, logger.Logger)
	if err != nil {
		return fmt.Errorf("%w: %v", cycles.ErrInvalidConfig, err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx, cancel := context.WithTimeout(ctx, config.ExtractTimeout)
	defer cancel()

	examples, err := extractor.Extract(ctx, cfg)
	if err != nil {
		return err
	}

	out := os.Stdout
	if opts.output != "" {
		f, err := os.Create(opts.output)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	}

	if err := write(out, opts.format, opts.device.DeviceID, cfg, examples); err != nil {
		return fmt.Errorf("write %s: %w", opts.format, err)
	}
	log.Printf("Extracted %d examples for %s", len(examples), opts.device.DeviceID)
	return nil
}

func main() {
	if err := run(os.Args[1:]); err != nil {
		code := exitCode(err)
		if code != 0 {
			fmt.Fprintf(os.Stderr, "extract: %v\n", err)
		}
		os.Exit(code)
	}
}
