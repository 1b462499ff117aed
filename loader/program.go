// Package loader reads AVR flash images from Intel HEX and ELF files.
package loader

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Segment is a contiguous run of bytes destined for flash.
type Segment struct {
	// Addr is the flash byte address of the first byte.
	Addr uint32
	// Data contains the segment contents.
	Data []byte
}

// End returns the address one past the last byte of the segment.
func (s Segment) End() uint32 {
	return s.Addr + uint32(len(s.Data))
}

// Program is a flash image ready to be copied into the emulator.
type Program struct {
	// Segments are sorted by address and do not overlap.
	Segments []Segment
	// EntryPoints lists start addresses recorded in the file. Execution on
	// the part always begins at the reset vector; these are informational.
	EntryPoints []uint32
}

// Size returns the highest flash address covered by the program plus one.
func (p *Program) Size() uint32 {
	var end uint32
	for _, s := range p.Segments {
		if s.End() > end {
			end = s.End()
		}
	}
	return end
}

// Image returns the program as one flat image starting at address 0. Gaps
// are filled with 0xFF like erased flash.
func (p *Program) Image() []byte {
	image := bytes.Repeat([]byte{0xFF}, int(p.Size()))
	for _, s := range p.Segments {
		copy(image[s.Addr:], s.Data)
	}
	return image
}

// add records data at addr, extending the previous segment when contiguous.
func (p *Program) add(addr uint32, data []byte) {
	if len(data) == 0 {
		return
	}
	if n := len(p.Segments); n > 0 && p.Segments[n-1].End() == addr {
		p.Segments[n-1].Data = append(p.Segments[n-1].Data, data...)
		return
	}
	p.Segments = append(p.Segments, Segment{
		Addr: addr,
		Data: append([]byte(nil), data...),
	})
}

// normalize sorts segments and rejects overlaps.
func (p *Program) normalize() error {
	sort.Slice(p.Segments, func(i, j int) bool {
		return p.Segments[i].Addr < p.Segments[j].Addr
	})

	merged := p.Segments[:0]
	for _, s := range p.Segments {
		if n := len(merged); n > 0 {
			last := &merged[n-1]
			if s.Addr < last.End() {
				return fmt.Errorf("segment at 0x%04x overlaps segment at 0x%04x",
					s.Addr, last.Addr)
			}
			if s.Addr == last.End() {
				last.Data = append(last.Data, s.Data...)
				continue
			}
		}
		merged = append(merged, s)
	}
	p.Segments = merged

	return nil
}

// Load reads a program from path. Files starting with the ELF magic are
// parsed as ELF, everything else as Intel HEX.
func Load(path string) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read program file: %w", err)
	}

	if bytes.HasPrefix(data, []byte("\x7fELF")) ||
		strings.EqualFold(filepath.Ext(path), ".elf") {
		return LoadELF(path)
	}

	prog, err := ParseHex(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return prog, nil
}
