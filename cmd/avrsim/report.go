package main

import (
	"io"
	"time"

	"github.com/jeandeaual/go-locale"
	"golang.org/x/text/message"

	"github.com/sarchlab/avrsim/timing/core"
)

// newPrinter returns a printer for the user's preferred locale.
func newPrinter() *message.Printer {
	locales, err := locale.GetLocales()
	if err != nil || len(locales) == 0 {
		locales = []string{"en-US"}
	}
	return message.NewPrinter(message.MatchLanguage(locales...))
}

func writeReport(w io.Writer, p *message.Printer, c *core.Core, wall time.Duration) {
	stats := c.Stats()

	_, _ = p.Fprintf(w, "\nState: %s\n", c.State())
	_, _ = p.Fprintf(w, "Virtual time: %d ms (%d cycles)\n", c.Millis(), stats.Cycles)
	_, _ = p.Fprintf(w, "Instructions: %d\n", stats.Instructions)
	_, _ = p.Fprintf(w, "Interrupts: %d\n", stats.Interrupts)
	if stats.Unknown > 0 {
		_, _ = p.Fprintf(w, "Unknown opcodes: %d\n", stats.Unknown)
	}

	if lookups := stats.PredecodeHits + stats.PredecodeMisses; lookups > 0 {
		_, _ = p.Fprintf(w, "Predecode hit rate: %.2f%%\n",
			float64(stats.PredecodeHits)*100/float64(lookups))
	}

	if wall > 0 {
		_, _ = p.Fprintf(w, "Simulation speed: %.2f MHz\n",
			float64(stats.Cycles)/wall.Seconds()/1e6)
	}
}
