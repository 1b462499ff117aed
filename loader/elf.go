package loader

import (
	"debug/elf"
	"fmt"
	"io"
)

// dataSpaceBase is where avr-gcc places data-space sections in the ELF
// physical address space. Anything at or above it is not flash.
const dataSpaceBase = 0x800000

// LoadELF parses an AVR ELF executable and returns the flash contents of its
// loadable segments. Segments are placed at their physical (load) address, so
// .data initializers land in flash after .text like avr-objcopy does.
func LoadELF(path string) (*Program, error) {
	f, err := elf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ELF file: %w", err)
	}
	defer func() { _ = f.Close() }()

	if f.Class != elf.ELFCLASS32 {
		return nil, fmt.Errorf("not a 32-bit ELF file")
	}

	if f.Machine != elf.EM_AVR {
		return nil, fmt.Errorf("not an AVR ELF file (machine type: %v)", f.Machine)
	}

	prog := &Program{
		EntryPoints: []uint32{uint32(f.Entry)},
	}

	for _, phdr := range f.Progs {
		if phdr.Type != elf.PT_LOAD || phdr.Filesz == 0 {
			continue
		}
		if phdr.Paddr >= dataSpaceBase {
			continue
		}

		data := make([]byte, phdr.Filesz)
		n, err := phdr.ReadAt(data, 0)
		if err != nil && err != io.EOF {
			return nil, fmt.Errorf("failed to read segment at 0x%x: %w", phdr.Paddr, err)
		}
		if uint64(n) != phdr.Filesz {
			return nil, fmt.Errorf("short read for segment at 0x%x: got %d bytes, expected %d",
				phdr.Paddr, n, phdr.Filesz)
		}

		prog.Segments = append(prog.Segments, Segment{
			Addr: uint32(phdr.Paddr),
			Data: data,
		})
	}

	if err := prog.normalize(); err != nil {
		return nil, fmt.Errorf("invalid ELF layout: %w", err)
	}

	return prog, nil
}
