package latency

import (
	"encoding/json"
	"fmt"
	"os"
)

// TimingConfig holds cycle costs for the AVR instruction classes.
// Defaults follow the ATmega328P datasheet instruction set summary.
type TimingConfig struct {
	// ALULatency covers single-cycle register operations, immediates and
	// MOV/LDI. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency" yaml:"alu_latency"`

	// WordLatency is the cost of ADIW and SBIW. Default: 2 cycles.
	WordLatency uint64 `json:"word_latency" yaml:"word_latency"`

	// MultiplyLatency is the cost of the MUL family. Default: 2 cycles.
	MultiplyLatency uint64 `json:"multiply_latency" yaml:"multiply_latency"`

	// LoadLatency is the cost of LD, LDD and LDS. Default: 2 cycles.
	LoadLatency uint64 `json:"load_latency" yaml:"load_latency"`

	// StoreLatency is the cost of ST, STD and STS. Default: 2 cycles.
	StoreLatency uint64 `json:"store_latency" yaml:"store_latency"`

	// ProgramLoadLatency is the cost of LPM. Default: 3 cycles.
	ProgramLoadLatency uint64 `json:"program_load_latency" yaml:"program_load_latency"`

	// IOLatency is the cost of IN and OUT. Default: 1 cycle.
	IOLatency uint64 `json:"io_latency" yaml:"io_latency"`

	// IOBitLatency is the cost of SBI and CBI. Default: 2 cycles.
	IOBitLatency uint64 `json:"io_bit_latency" yaml:"io_bit_latency"`

	// StackLatency is the cost of PUSH and POP. Default: 2 cycles.
	StackLatency uint64 `json:"stack_latency" yaml:"stack_latency"`

	// RelativeJumpLatency is the cost of RJMP and IJMP. Default: 2 cycles.
	RelativeJumpLatency uint64 `json:"relative_jump_latency" yaml:"relative_jump_latency"`

	// JumpLatency is the cost of JMP. Default: 3 cycles.
	JumpLatency uint64 `json:"jump_latency" yaml:"jump_latency"`

	// RelativeCallLatency is the cost of RCALL and ICALL. Default: 3 cycles.
	RelativeCallLatency uint64 `json:"relative_call_latency" yaml:"relative_call_latency"`

	// CallLatency is the cost of CALL. Default: 4 cycles.
	CallLatency uint64 `json:"call_latency" yaml:"call_latency"`

	// ReturnLatency is the cost of RET and RETI. Default: 4 cycles.
	ReturnLatency uint64 `json:"return_latency" yaml:"return_latency"`

	// BranchLatency is the cost of a conditional branch that is not taken.
	// Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency" yaml:"branch_latency"`

	// BranchTakenPenalty is added when a conditional branch is taken.
	// Default: 1 cycle.
	BranchTakenPenalty uint64 `json:"branch_taken_penalty" yaml:"branch_taken_penalty"`

	// SkipLatency is the cost of a skip instruction that does not skip.
	// Each skipped word adds one more cycle. Default: 1 cycle.
	SkipLatency uint64 `json:"skip_latency" yaml:"skip_latency"`

	// InterruptLatency is charged on interrupt entry. Default: 4 cycles.
	InterruptLatency uint64 `json:"interrupt_latency" yaml:"interrupt_latency"`

	// SleepLatency is the virtual time that passes per scheduler step while
	// the core sleeps. Default: 1 cycle.
	SleepLatency uint64 `json:"sleep_latency" yaml:"sleep_latency"`
}

// DefaultTimingConfig returns a TimingConfig with ATmega328P defaults.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:          1,
		WordLatency:         2,
		MultiplyLatency:     2,
		LoadLatency:         2,
		StoreLatency:        2,
		ProgramLoadLatency:  3,
		IOLatency:           1,
		IOBitLatency:        2,
		StackLatency:        2,
		RelativeJumpLatency: 2,
		JumpLatency:         3,
		RelativeCallLatency: 3,
		CallLatency:         4,
		ReturnLatency:       4,
		BranchLatency:       1,
		BranchTakenPenalty:  1,
		SkipLatency:         1,
		InterruptLatency:    4,
		SleepLatency:        1,
	}
}

// LoadConfig loads a TimingConfig from a JSON file. Fields missing from the
// file keep their defaults.
func LoadConfig(path string) (*TimingConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read timing config file: %w", err)
	}

	config := DefaultTimingConfig()
	if err := json.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse timing config: %w", err)
	}

	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON file.
func (c *TimingConfig) SaveConfig(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize timing config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write timing config file: %w", err)
	}

	return nil
}

// Validate checks that every instruction class costs at least one cycle.
// BranchTakenPenalty may be zero.
func (c *TimingConfig) Validate() error {
	fields := []struct {
		name  string
		value uint64
	}{
		{"alu_latency", c.ALULatency},
		{"word_latency", c.WordLatency},
		{"multiply_latency", c.MultiplyLatency},
		{"load_latency", c.LoadLatency},
		{"store_latency", c.StoreLatency},
		{"program_load_latency", c.ProgramLoadLatency},
		{"io_latency", c.IOLatency},
		{"io_bit_latency", c.IOBitLatency},
		{"stack_latency", c.StackLatency},
		{"relative_jump_latency", c.RelativeJumpLatency},
		{"jump_latency", c.JumpLatency},
		{"relative_call_latency", c.RelativeCallLatency},
		{"call_latency", c.CallLatency},
		{"return_latency", c.ReturnLatency},
		{"branch_latency", c.BranchLatency},
		{"skip_latency", c.SkipLatency},
		{"interrupt_latency", c.InterruptLatency},
		{"sleep_latency", c.SleepLatency},
	}

	for _, f := range fields {
		if f.value == 0 {
			return fmt.Errorf("%s must be > 0", f.name)
		}
	}

	return nil
}

// Clone returns a copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}
