// Package board describes the target board: clock, memory layout and
// instruction timing. Profiles are loaded from JSON or YAML files and turned
// into scheduler options.
package board

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"

	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/predecode"
	"github.com/sarchlab/avrsim/timing/core"
	"github.com/sarchlab/avrsim/timing/latency"
)

// Config is a board profile.
type Config struct {
	Name      string `json:"name" yaml:"name"`
	ClockHz   uint64 `json:"clock_hz" yaml:"clock_hz"`
	FlashSize uint32 `json:"flash_size" yaml:"flash_size"`
	SRAMStart uint16 `json:"sram_start" yaml:"sram_start"`
	RAMEnd    uint16 `json:"ram_end" yaml:"ram_end"`

	Timing    *latency.TimingConfig `json:"timing" yaml:"timing"`
	Predecode *predecode.Config     `json:"predecode,omitempty" yaml:"predecode,omitempty"`
}

// Uno returns the Arduino Uno profile.
func Uno() *Config {
	layout := emu.ATmega328P()
	cache := predecode.DefaultConfig()

	return &Config{
		Name:      "uno",
		ClockHz:   16_000_000,
		FlashSize: layout.FlashSize,
		SRAMStart: layout.SRAMStart,
		RAMEnd:    layout.RAMEnd,
		Timing:    latency.DefaultTimingConfig(),
		Predecode: &cache,
	}
}

// Load reads a board profile. Files ending in .yaml or .yml are parsed as
// YAML, everything else as JSON. Fields missing from the file keep the Uno
// defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read board config file: %w", err)
	}

	config := Uno()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, config)
	default:
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse board config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid board config %s: %w", path, err)
	}

	return config, nil
}

// Validate checks that the profile describes a usable chip.
func (c *Config) Validate() error {
	if c.ClockHz == 0 {
		return fmt.Errorf("clock_hz must be > 0")
	}

	if c.FlashSize == 0 || c.FlashSize%2 != 0 {
		return fmt.Errorf("flash_size must be a positive even number")
	}

	if c.SRAMStart < 0x20 {
		return fmt.Errorf("sram_start must leave room for the register file")
	}

	if c.RAMEnd < c.SRAMStart {
		return fmt.Errorf("ram_end (0x%04x) is below sram_start (0x%04x)",
			c.RAMEnd, c.SRAMStart)
	}

	if c.Timing == nil {
		return fmt.Errorf("timing must be set")
	}
	if err := c.Timing.Validate(); err != nil {
		return fmt.Errorf("timing: %w", err)
	}

	if p := c.Predecode; p != nil {
		if p.BlockWords <= 0 || p.Associativity <= 0 || p.Sets <= 0 {
			return fmt.Errorf("predecode geometry must be positive")
		}
	}

	return nil
}

// Layout returns the emulator memory layout of the board.
func (c *Config) Layout() emu.Layout {
	return emu.Layout{
		FlashSize: c.FlashSize,
		IOStart:   0x20,
		SRAMStart: c.SRAMStart,
		RAMEnd:    c.RAMEnd,
	}
}

// CoreOptions returns the scheduler options for the board.
func (c *Config) CoreOptions() []core.Option {
	opts := []core.Option{
		core.WithClock(c.ClockHz),
		core.WithLayout(c.Layout()),
		core.WithTimingConfig(c.Timing.Clone()),
	}

	if c.Predecode != nil {
		opts = append(opts, core.WithPredecode(*c.Predecode))
	} else {
		opts = append(opts, core.WithoutPredecode())
	}

	return opts
}
