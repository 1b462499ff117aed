// Package build compiles Arduino sketches into flash images by invoking an
// external toolchain. Each Compile call owns a private temporary directory
// for its whole lifetime.
package build

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/avrsim/loader"
)

// ErrInvalidSketchName is returned for names that are not usable as a
// sketch directory.
var ErrInvalidSketchName = errors.New("invalid sketch name")

var sketchName = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9_-]*$`)

// Config describes the toolchain invocation.
type Config struct {
	// Command is the compiler executable.
	Command string `json:"command" yaml:"command"`
	// FQBN is the fully qualified board name passed to the compiler.
	FQBN string `json:"fqbn" yaml:"fqbn"`
	// ExtraArgs are appended after the standard arguments.
	ExtraArgs []string `json:"extra_args" yaml:"extra_args"`
	// Env is added to the compiler environment.
	Env []string `json:"env" yaml:"env"`
	// TempRoot is where per-build directories are created. Empty means
	// the system default.
	TempRoot string `json:"temp_root" yaml:"temp_root"`
	// Timeout bounds one compilation. Zero means no limit beyond ctx.
	// JSON spells it as integer nanoseconds; YAML also accepts duration
	// strings such as "2m".
	Timeout time.Duration `json:"timeout" yaml:"timeout"`
}

// DefaultConfig returns a configuration for arduino-cli targeting the Uno.
func DefaultConfig() Config {
	return Config{
		Command: "arduino-cli",
		FQBN:    "arduino:avr:uno",
		Timeout: 2 * time.Minute,
	}
}

// CompileError carries the compiler output of a failed build.
type CompileError struct {
	Output string
	Err    error
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("compile failed: %v", e.Err)
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

// Result is a successful build.
type Result struct {
	Program  *loader.Program
	Output   string
	Duration time.Duration
}

// Service runs compilations with a fixed configuration. It holds no
// per-build state and may be used from several goroutines.
type Service struct {
	config Config
	logger logrus.FieldLogger
}

// NewService creates a build service.
func NewService(config Config, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Service{config: config, logger: logger}
}

// Config returns the service configuration.
func (s *Service) Config() Config {
	return s.config
}

// Compile builds source as sketch name and returns the parsed flash image.
func (s *Service) Compile(ctx context.Context, name, source string) (*Result, error) {
	if !sketchName.MatchString(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidSketchName, name)
	}

	if s.config.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.config.Timeout)
		defer cancel()
	}

	dir, err := os.MkdirTemp(s.config.TempRoot, "avrsim-build-")
	if err != nil {
		return nil, fmt.Errorf("failed to create build directory: %w", err)
	}
	defer func() { _ = os.RemoveAll(dir) }()

	sketchDir := filepath.Join(dir, name)
	outDir := filepath.Join(dir, "out")
	for _, d := range []string{sketchDir, outDir} {
		if err := os.Mkdir(d, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create build directory: %w", err)
		}
	}

	sketchPath := filepath.Join(sketchDir, name+".ino")
	if err := os.WriteFile(sketchPath, []byte(source), 0o644); err != nil {
		return nil, fmt.Errorf("failed to write sketch: %w", err)
	}

	args := []string{"compile", "--fqbn", s.config.FQBN, "--output-dir", outDir}
	args = append(args, s.config.ExtraArgs...)
	args = append(args, sketchDir)

	cmd := exec.CommandContext(ctx, s.config.Command, args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), s.config.Env...)

	log := s.logger.WithFields(logrus.Fields{
		"sketch": name,
		"fqbn":   s.config.FQBN,
	})
	log.Debug("compiling sketch")

	start := time.Now()
	output, err := cmd.CombinedOutput()
	elapsed := time.Since(start)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		log.WithError(err).Warn("compile failed")
		return nil, &CompileError{Output: string(output), Err: err}
	}

	prog, err := readHex(outDir, name)
	if err != nil {
		return nil, err
	}

	log.WithFields(logrus.Fields{
		"bytes":    prog.Size(),
		"duration": elapsed,
	}).Info("sketch compiled")

	return &Result{Program: prog, Output: string(output), Duration: elapsed}, nil
}

// readHex finds the application image in the output directory, preferring
// <name>.ino.hex over any other image without a bootloader.
func readHex(outDir, name string) (*loader.Program, error) {
	path := filepath.Join(outDir, name+".ino.hex")
	if _, err := os.Stat(path); err != nil {
		matches, _ := filepath.Glob(filepath.Join(outDir, "*.hex"))
		path = ""
		for _, m := range matches {
			if !strings.Contains(filepath.Base(m), "with_bootloader") {
				path = m
				break
			}
		}
		if path == "" {
			return nil, fmt.Errorf("compiler produced no hex image in %s", outDir)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hex image: %w", err)
	}
	defer func() { _ = f.Close() }()

	prog, err := loader.ParseHex(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse hex image: %w", err)
	}

	return prog, nil
}
