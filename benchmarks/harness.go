// Package benchmarks provides cycle calibration infrastructure for AVRSim.
// Each benchmark is a short AVR program whose cycle count is known from the
// ATmega328P datasheet; the harness runs it on the scheduler and compares.
package benchmarks

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/sarchlab/avrsim/emu"
	"github.com/sarchlab/avrsim/insts"
	"github.com/sarchlab/avrsim/loader"
	"github.com/sarchlab/avrsim/timing/core"
	"github.com/sarchlab/avrsim/timing/latency"
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	// Name identifies the benchmark
	Name string `json:"name"`

	// Description explains what the benchmark measures
	Description string `json:"description"`

	// SimulatedCycles is the total cycle count from the scheduler
	SimulatedCycles uint64 `json:"simulated_cycles"`

	// ExpectedCycles is the datasheet cycle count
	ExpectedCycles uint64 `json:"expected_cycles"`

	// Instructions is the number of executed instructions
	Instructions uint64 `json:"instructions"`

	// CPI is cycles per instruction
	CPI float64 `json:"cpi"`

	// ErrorPercent is the relative cycle error against the datasheet
	ErrorPercent float64 `json:"error_percent"`

	// Predecode cache stats (if enabled)
	PredecodeHits   uint64 `json:"predecode_hits,omitempty"`
	PredecodeMisses uint64 `json:"predecode_misses,omitempty"`

	// Error is set when the program faulted, ran out of cycles or left the
	// wrong result behind
	Error string `json:"error,omitempty"`

	// WallTime is the actual time taken to run the simulation
	WallTime time.Duration `json:"wall_time_ns"`
}

// Passed reports whether the benchmark produced the right result in the
// datasheet cycle count.
func (r BenchmarkResult) Passed() bool {
	return r.Error == "" && r.SimulatedCycles == r.ExpectedCycles
}

// Benchmark defines a single benchmark program. Programs start at the reset
// vector and end with SLEEP while interrupts are disabled.
type Benchmark struct {
	// Name identifies the benchmark
	Name string

	// Description explains what the benchmark measures
	Description string

	// Program is the AVR code to execute
	Program []insts.Instruction

	// ExpectedCycles is the datasheet cycle count including the final SLEEP
	ExpectedCycles uint64

	// Verify checks the final register state
	Verify func(regs emu.RegisterSnapshot) error
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// EnablePredecode enables the decoded-instruction cache
	EnablePredecode bool

	// Timing overrides the cycle costs; nil uses the datasheet defaults
	Timing *latency.TimingConfig

	// MaxCycles aborts a benchmark that never reaches SLEEP
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout)
	Output io.Writer

	// Verbose enables detailed output
	Verbose bool
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		EnablePredecode: true,
		MaxCycles:       1_000_000,
		Output:          os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks and returns results.
func (h *Harness) RunAll() []BenchmarkResult {
	results := make([]BenchmarkResult, 0, len(h.benchmarks))

	for _, bench := range h.benchmarks {
		results = append(results, h.runBenchmark(bench))
	}

	return results
}

func (h *Harness) newCore() *core.Core {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	opts := []core.Option{core.WithLogger(logger)}
	if h.config.Timing != nil {
		opts = append(opts, core.WithTimingConfig(h.config.Timing))
	}
	if !h.config.EnablePredecode {
		opts = append(opts, core.WithoutPredecode())
	}

	return core.NewCore(opts...)
}

// runBenchmark executes a single benchmark.
func (h *Harness) runBenchmark(bench Benchmark) BenchmarkResult {
	result := BenchmarkResult{
		Name:           bench.Name,
		Description:    bench.Description,
		ExpectedCycles: bench.ExpectedCycles,
	}

	image, err := insts.Assemble(bench.Program...)
	if err != nil {
		result.Error = err.Error()
		return result
	}

	c := h.newCore()
	err = c.Load(&loader.Program{Segments: []loader.Segment{{Addr: 0, Data: image}}})
	if err != nil {
		result.Error = err.Error()
		return result
	}

	// Run until the program parks in SLEEP
	start := time.Now()
	for !c.Emulator().Sleeping() {
		if c.Cycles() >= h.config.MaxCycles {
			err = fmt.Errorf("no SLEEP within %d cycles", h.config.MaxCycles)
			break
		}
		if _, err = c.Step(); err != nil {
			break
		}
	}
	result.WallTime = time.Since(start)

	stats := c.Stats()
	result.SimulatedCycles = stats.Cycles
	result.Instructions = stats.Instructions
	result.PredecodeHits = stats.PredecodeHits
	result.PredecodeMisses = stats.PredecodeMisses
	if stats.Instructions > 0 {
		result.CPI = float64(stats.Cycles) / float64(stats.Instructions)
	}
	if bench.ExpectedCycles > 0 {
		diff := float64(stats.Cycles) - float64(bench.ExpectedCycles)
		result.ErrorPercent = diff * 100 / float64(bench.ExpectedCycles)
	}

	if err == nil && bench.Verify != nil {
		err = bench.Verify(c.RegisterSnapshot())
	}
	if err != nil {
		result.Error = err.Error()
	}

	return result
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output, "=== AVRSim Cycle Benchmark Results ===")
	_, _ = fmt.Fprintln(h.config.Output, "")

	for _, r := range results {
		status := "PASS"
		if !r.Passed() {
			status = "FAIL"
		}

		_, _ = fmt.Fprintf(h.config.Output, "Benchmark: %s [%s]\n", r.Name, status)
		_, _ = fmt.Fprintf(h.config.Output, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintln(h.config.Output, "  --- Timing ---")
		_, _ = fmt.Fprintf(h.config.Output, "  Simulated Cycles: %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Expected Cycles:  %d\n", r.ExpectedCycles)
		_, _ = fmt.Fprintf(h.config.Output, "  Instructions:     %d\n", r.Instructions)
		_, _ = fmt.Fprintf(h.config.Output, "  CPI:              %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(h.config.Output, "  Error:            %+.1f%%\n", r.ErrorPercent)

		if h.config.Verbose && (r.PredecodeHits > 0 || r.PredecodeMisses > 0) {
			_, _ = fmt.Fprintln(h.config.Output, "  --- Predecode ---")
			_, _ = fmt.Fprintf(h.config.Output, "  Hits:   %d\n", r.PredecodeHits)
			_, _ = fmt.Fprintf(h.config.Output, "  Misses: %d\n", r.PredecodeMisses)
		}

		if r.Error != "" {
			_, _ = fmt.Fprintf(h.config.Output, "  Failure: %s\n", r.Error)
		}

		_, _ = fmt.Fprintf(h.config.Output, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(h.config.Output, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,expected_cycles,instructions,cpi,error_percent,predecode_hits,predecode_misses,passed")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%d,%.3f,%.2f,%d,%d,%t\n",
			r.Name,
			r.SimulatedCycles,
			r.ExpectedCycles,
			r.Instructions,
			r.CPI,
			r.ErrorPercent,
			r.PredecodeHits,
			r.PredecodeMisses,
			r.Passed(),
		)
	}
}

// BenchmarkReport is the complete output format for benchmark results.
type BenchmarkReport struct {
	// Metadata about the benchmark run
	Metadata ReportMetadata `json:"metadata"`

	// Results is the list of individual benchmark results
	Results []BenchmarkResult `json:"results"`

	// Summary contains aggregate statistics
	Summary ReportSummary `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	// Timestamp when the benchmark was run
	Timestamp string `json:"timestamp"`

	// PredecodeEnabled records the harness configuration
	PredecodeEnabled bool `json:"predecode_enabled"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	Passed            int           `json:"passed"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	summary := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		summary.TotalCycles += r.SimulatedCycles
		summary.TotalInstructions += r.Instructions
		summary.TotalWallTime += r.WallTime
		if r.Passed() {
			summary.Passed++
		}
	}
	if summary.TotalInstructions > 0 {
		summary.AverageCPI = float64(summary.TotalCycles) / float64(summary.TotalInstructions)
	}

	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp:        time.Now().UTC().Format(time.RFC3339),
			PredecodeEnabled: h.config.EnablePredecode,
		},
		Results: results,
		Summary: summary,
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
