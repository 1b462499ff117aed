// Command benchmark runs the AVRSim cycle calibration harness.
//
// Usage:
//
//	go run ./cmd/benchmark [flags]
//
// Flags:
//
//	-csv           Output results in CSV format (default: human-readable)
//	-json          Output results in JSON format
//	-core          Run only the control-flow benchmarks
//	-timing FILE   Load instruction timings from a JSON file
//	-no-predecode  Disable the decoded-instruction cache
//
// Example:
//
//	# Output CSV for spreadsheet comparison
//	go run ./cmd/benchmark -csv > results.csv
//
// Every benchmark has a cycle count taken from the ATmega328P datasheet. The
// command exits non-zero when any benchmark misses it.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/sarchlab/avrsim/benchmarks"
	"github.com/sarchlab/avrsim/timing/latency"
)

func main() {
	csvOutput := flag.Bool("csv", false, "Output results in CSV format")
	jsonOutput := flag.Bool("json", false, "Output results in JSON format")
	coreOnly := flag.Bool("core", false, "Run only the control-flow benchmarks")
	timingFile := flag.String("timing", "", "Instruction timing config (JSON)")
	noPredecode := flag.Bool("no-predecode", false, "Disable the decoded-instruction cache")
	verbose := flag.Bool("v", false, "Verbose output")
	flag.Parse()

	config := benchmarks.DefaultConfig()
	config.EnablePredecode = !*noPredecode
	config.Verbose = *verbose
	config.Output = os.Stdout

	if *timingFile != "" {
		timing, err := latency.LoadConfig(*timingFile)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := timing.Validate(); err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid timing config: %v\n", err)
			os.Exit(1)
		}
		config.Timing = timing
	}

	harness := benchmarks.NewHarness(config)
	if *coreOnly {
		harness.AddBenchmarks(benchmarks.GetCoreBenchmarks())
	} else {
		harness.AddBenchmarks(benchmarks.GetMicrobenchmarks())
	}

	if !*csvOutput && !*jsonOutput {
		fmt.Println("AVRSim Cycle Benchmark Harness")
		fmt.Println("==============================")
		fmt.Printf("Predecode: %v\n", config.EnablePredecode)
		fmt.Println("")
	}

	results := harness.RunAll()

	switch {
	case *jsonOutput:
		if err := harness.PrintJSON(results); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	case *csvOutput:
		harness.PrintCSV(results)
	default:
		harness.PrintResults(results)
	}

	failed := 0
	for _, r := range results {
		if !r.Passed() {
			failed++
		}
	}
	if failed > 0 {
		fmt.Fprintf(os.Stderr, "%d of %d benchmarks failed\n", failed, len(results))
		os.Exit(1)
	}
}
