// Package main provides the entry point for AVRSim.
// AVRSim runs Arduino Uno firmware on an emulated ATmega328P and prints the
// pin, PWM and serial activity it produces.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/avrsim/board"
	"github.com/sarchlab/avrsim/build"
	"github.com/sarchlab/avrsim/loader"
	"github.com/sarchlab/avrsim/stimulus"
	"github.com/sarchlab/avrsim/timing/core"
	"github.com/sarchlab/avrsim/timing/latency"
)

type options struct {
	boardPath    string
	timingPath   string
	stimulusPath string
	duration     time.Duration
	fqbn         string
	compiler     string
	trace        bool
	cpuProfile   string
	verbose      bool
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func parseFlags(args []string, stderr io.Writer) (*options, []string, error) {
	opts := &options{}

	fs := flag.NewFlagSet("avrsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.boardPath, "board", "", "Path to board profile (JSON or YAML)")
	fs.StringVar(&opts.timingPath, "timing", "", "Path to timing configuration JSON file")
	fs.StringVar(&opts.stimulusPath, "stimulus", "", "Path to Starlark input script")
	fs.DurationVar(&opts.duration, "for", time.Second, "Virtual time to run")
	fs.StringVar(&opts.fqbn, "fqbn", "arduino:avr:uno", "Board name for compiling .ino sketches")
	fs.StringVar(&opts.compiler, "compiler", "arduino-cli", "Compiler used for .ino sketches")
	fs.BoolVar(&opts.trace, "trace", true, "Print pin, PWM and serial events")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile of the run to file")
	fs.BoolVar(&opts.verbose, "v", false, "Verbose output")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "Usage: avrsim [options] <program.hex|program.elf|sketch.ino>\n")
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, nil, err
	}

	return opts, fs.Args(), nil
}

func run(args []string, stdout, stderr io.Writer) int {
	opts, rest, err := parseFlags(args, stderr)
	if err != nil {
		return 2
	}
	if len(rest) < 1 {
		fmt.Fprintf(stderr, "Usage: avrsim [options] <program.hex|program.elf|sketch.ino>\n")
		return 1
	}

	logger := logrus.New()
	logger.SetOutput(stderr)
	if opts.verbose {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg, err := loadBoard(opts)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading board: %v\n", err)
		return 1
	}

	programPath := rest[0]
	prog, err := loadProgram(opts, programPath, logger)
	if err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	var inputs stimulus.Inputs
	var script *stimulus.Script
	if opts.stimulusPath != "" {
		script, err = stimulus.LoadScript(opts.stimulusPath, nil,
			stimulus.WithScriptLogger(logger))
		if err != nil {
			fmt.Fprintf(stderr, "Error loading stimulus: %v\n", err)
			return 1
		}
		inputs = script
	}
	recorder := stimulus.NewRecorder(inputs)

	c := core.NewCore(append(cfg.CoreOptions(),
		core.WithHost(recorder),
		core.WithLogger(logger),
	)...)
	recorder.Bind(c.Micros)
	if script != nil {
		script.Bind(c.Millis)
	}

	if err := c.Load(prog); err != nil {
		fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	if opts.verbose {
		fmt.Fprintf(stdout, "Loaded: %s\n", programPath)
		fmt.Fprintf(stdout, "Board: %s @ %d Hz\n", cfg.Name, cfg.ClockHz)
		fmt.Fprintf(stdout, "Segments: %d\n", len(prog.Segments))
	}

	if opts.cpuProfile != "" {
		stopProfile, err := startCPUProfile(opts.cpuProfile)
		if err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		defer stopProfile()
	}

	start := time.Now()
	_, runErr := c.RunFor(opts.duration)
	wall := time.Since(start)

	if opts.trace {
		for _, ev := range recorder.Events() {
			fmt.Fprintln(stdout, ev)
		}
	}

	writeReport(stdout, newPrinter(), c, wall)

	if runErr != nil {
		fmt.Fprintf(stderr, "Error: %v\n", runErr)
		return 1
	}

	return 0
}

func loadBoard(opts *options) (*board.Config, error) {
	cfg := board.Uno()
	if opts.boardPath != "" {
		var err error
		cfg, err = board.Load(opts.boardPath)
		if err != nil {
			return nil, err
		}
	}

	if opts.timingPath != "" {
		timing, err := latency.LoadConfig(opts.timingPath)
		if err != nil {
			return nil, err
		}
		if err := timing.Validate(); err != nil {
			return nil, fmt.Errorf("invalid timing config: %w", err)
		}
		cfg.Timing = timing
	}

	return cfg, nil
}

func loadProgram(opts *options, path string, logger logrus.FieldLogger) (*loader.Program, error) {
	if !strings.EqualFold(filepath.Ext(path), ".ino") {
		return loader.Load(path)
	}

	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sketch: %w", err)
	}

	cfg := build.DefaultConfig()
	cfg.Command = opts.compiler
	cfg.FQBN = opts.fqbn

	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	res, err := build.NewService(cfg, logger).Compile(context.Background(), name, string(source))
	if err != nil {
		var compileErr *build.CompileError
		if errors.As(err, &compileErr) {
			return nil, fmt.Errorf("%w\n%s", err, compileErr.Output)
		}
		return nil, err
	}

	return res.Program, nil
}

func startCPUProfile(path string) (func(), error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("could not create CPU profile: %w", err)
	}
	if err := pprof.StartCPUProfile(f); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("could not start CPU profile: %w", err)
	}

	return func() {
		pprof.StopCPUProfile()
		_ = f.Close()
	}, nil
}
