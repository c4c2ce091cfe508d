// Command mltlmon runs a compiled MLTL spec blob against a CSV trace,
// printing each verdict RETURN pushes to stdout in the wire format
// spec.md §6 defines.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/sarchlab/mltlmon/internal/csvtrace"
	"github.com/sarchlab/mltlmon/internal/logx"
	"github.com/sarchlab/mltlmon/internal/verdict"
	"github.com/sarchlab/mltlmon/monitor"
)

func main() {
	app := &cli.App{
		Name:  "mltlmon",
		Usage: "run a compiled MLTL spec against a CSV signal trace",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:     "spec",
				Usage:    "path to a compiled spec blob",
				Required: true,
			},
			&cli.StringFlag{
				Name:     "trace",
				Usage:    "path to a CSV signal trace",
				Required: true,
			},
			&cli.StringFlag{
				Name:  "config",
				Usage: "path to a TOML monitor config (optional)",
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "enable debug-level diagnostics",
			},
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "mltlmon:", err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	specBlob, err := os.ReadFile(c.String("spec"))
	if err != nil {
		return fmt.Errorf("reading spec blob: %w", err)
	}

	traceFile, err := os.Open(c.String("trace"))
	if err != nil {
		return fmt.Errorf("opening trace: %w", err)
	}
	defer func() { _ = traceFile.Close() }()

	cfg := monitor.DefaultConfig()
	if path := c.String("config"); path != "" {
		cfg, err = monitor.LoadConfig(path)
		if err != nil {
			return err
		}
	}
	if c.Bool("debug") {
		cfg.Debug = true
	}

	logger := logx.New(os.Stderr, cfg.Debug)

	m, err := monitor.Load(specBlob, cfg,
		monitor.WithSink(monitor.NewTextSink(os.Stdout)),
		monitor.WithLogger(logger),
	)
	if err != nil {
		return fmt.Errorf("loading spec: %w", err)
	}

	reader, err := csvtrace.NewReader(traceFile)
	if err != nil {
		return fmt.Errorf("reading trace: %w", err)
	}

	atomics := make([]bool, m.NumAtomics())
	var t verdict.Word
	for {
		signals, _, err := reader.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return err
		}

		for i := range atomics {
			atomics[i] = i < len(signals) && signals[i] != 0
		}

		if _, err := m.Step(t, signals, atomics, nil); err != nil {
			logger.Errorf(err, "step %d failed", t)
		}
		t++
	}

	return nil
}
