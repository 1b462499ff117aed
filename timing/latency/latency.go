// Package latency provides the AVR instruction cycle model.
//
// Every instruction has a fixed base cost; conditional branches and skips
// add cycles depending on their outcome. The values can be configured via
// TimingConfig.
package latency

import (
	"github.com/sarchlab/avrsim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with the ATmega328P defaults.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the base cost in cycles of the given instruction: the
// not-taken cost of a branch and the no-skip cost of a skip.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	c := t.config

	switch inst.Op {
	case insts.OpADIW, insts.OpSBIW:
		return c.WordLatency

	case insts.OpMUL, insts.OpMULS, insts.OpMULSU,
		insts.OpFMUL, insts.OpFMULS, insts.OpFMULSU:
		return c.MultiplyLatency

	case insts.OpLD, insts.OpLDD, insts.OpLDS:
		return c.LoadLatency

	case insts.OpST, insts.OpSTD, insts.OpSTS:
		return c.StoreLatency

	case insts.OpLPM:
		return c.ProgramLoadLatency

	case insts.OpIN, insts.OpOUT:
		return c.IOLatency

	case insts.OpSBI, insts.OpCBI:
		return c.IOBitLatency

	case insts.OpPUSH, insts.OpPOP:
		return c.StackLatency

	case insts.OpRJMP, insts.OpIJMP:
		return c.RelativeJumpLatency

	case insts.OpJMP:
		return c.JumpLatency

	case insts.OpRCALL, insts.OpICALL:
		return c.RelativeCallLatency

	case insts.OpCALL:
		return c.CallLatency

	case insts.OpRET, insts.OpRETI:
		return c.ReturnLatency

	case insts.OpBRBS, insts.OpBRBC:
		return c.BranchLatency

	case insts.OpCPSE, insts.OpSBRC, insts.OpSBRS, insts.OpSBIC, insts.OpSBIS:
		return c.SkipLatency

	default:
		return c.ALULatency
	}
}

// StepCycles returns the cycles one executed instruction took, given
// whether its branch was taken and how many words it skipped.
func (t *Table) StepCycles(inst *insts.Instruction, taken bool, skipped uint8) uint64 {
	cycles := t.GetLatency(inst)
	if taken {
		cycles += t.config.BranchTakenPenalty
	}
	return cycles + uint64(skipped)
}

// IsBranchOp returns true if the instruction changes program flow.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	switch inst.Op {
	case insts.OpRJMP, insts.OpJMP, insts.OpIJMP,
		insts.OpRCALL, insts.OpCALL, insts.OpICALL,
		insts.OpRET, insts.OpRETI, insts.OpBRBS, insts.OpBRBC:
		return true
	default:
		return false
	}
}

// InterruptLatency returns the cost of interrupt entry.
func (t *Table) InterruptLatency() uint64 {
	return t.config.InterruptLatency
}

// SleepLatency returns the virtual time per idle step while sleeping.
func (t *Table) SleepLatency() uint64 {
	return t.config.SleepLatency
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
