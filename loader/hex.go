package loader

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Intel HEX record types.
const (
	recordData                   = 0x00
	recordEOF                    = 0x01
	recordExtendedSegmentAddress = 0x02
	recordStartSegmentAddress    = 0x03
	recordExtendedLinearAddress  = 0x04
	recordStartLinearAddress     = 0x05
)

var (
	// ErrMalformedRecord is returned for lines that are not valid records.
	ErrMalformedRecord = errors.New("malformed record")
	// ErrChecksum is returned when a record checksum does not match.
	ErrChecksum = errors.New("checksum mismatch")
	// ErrUnknownRecord is returned for record types other than 00-05.
	ErrUnknownRecord = errors.New("unknown record type")
	// ErrMissingEOF is returned when the input ends without an EOF record.
	ErrMissingEOF = errors.New("missing end-of-file record")
)

// HexError reports a problem on a specific line of an Intel HEX file.
type HexError struct {
	Line int
	Err  error
}

func (e *HexError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e *HexError) Unwrap() error {
	return e.Err
}

type record struct {
	kind    byte
	offset  uint16
	payload []byte
}

func parseRecord(line string) (record, error) {
	if !strings.HasPrefix(line, ":") {
		return record{}, fmt.Errorf("%w: missing start code", ErrMalformedRecord)
	}

	raw, err := hex.DecodeString(line[1:])
	if err != nil {
		return record{}, fmt.Errorf("%w: %v", ErrMalformedRecord, err)
	}
	if len(raw) < 5 {
		return record{}, fmt.Errorf("%w: record too short", ErrMalformedRecord)
	}

	count := int(raw[0])
	if len(raw) != count+5 {
		return record{}, fmt.Errorf("%w: byte count %d does not match length",
			ErrMalformedRecord, count)
	}

	var sum byte
	for _, b := range raw {
		sum += b
	}
	if sum != 0 {
		return record{}, fmt.Errorf("%w: expected 0x%02x",
			ErrChecksum, byte(-(sum - raw[len(raw)-1])))
	}

	return record{
		kind:    raw[3],
		offset:  uint16(raw[1])<<8 | uint16(raw[2]),
		payload: raw[4 : 4+count],
	}, nil
}

func payloadLength(r record, n int) error {
	if len(r.payload) != n {
		return fmt.Errorf("%w: type %02x needs %d data bytes, got %d",
			ErrMalformedRecord, r.kind, n, len(r.payload))
	}
	return nil
}

// ParseHex reads an Intel HEX image. Data records are placed at the address
// formed from the record offset and the current extended segment or linear
// base. Anything after the EOF record is ignored.
func ParseHex(r io.Reader) (*Program, error) {
	prog := &Program{}
	scanner := bufio.NewScanner(r)

	var base uint32
	line := 0
	for scanner.Scan() {
		line++
		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}

		rec, err := parseRecord(text)
		if err != nil {
			return nil, &HexError{Line: line, Err: err}
		}

		switch rec.kind {
		case recordData:
			prog.add(base+uint32(rec.offset), rec.payload)

		case recordEOF:
			if err := prog.normalize(); err != nil {
				return nil, &HexError{Line: line, Err: err}
			}
			return prog, nil

		case recordExtendedSegmentAddress:
			if err := payloadLength(rec, 2); err != nil {
				return nil, &HexError{Line: line, Err: err}
			}
			base = (uint32(rec.payload[0])<<8 | uint32(rec.payload[1])) << 4

		case recordExtendedLinearAddress:
			if err := payloadLength(rec, 2); err != nil {
				return nil, &HexError{Line: line, Err: err}
			}
			base = (uint32(rec.payload[0])<<8 | uint32(rec.payload[1])) << 16

		case recordStartSegmentAddress:
			if err := payloadLength(rec, 4); err != nil {
				return nil, &HexError{Line: line, Err: err}
			}
			cs := uint32(rec.payload[0])<<8 | uint32(rec.payload[1])
			ip := uint32(rec.payload[2])<<8 | uint32(rec.payload[3])
			prog.EntryPoints = append(prog.EntryPoints, cs<<4 + ip)

		case recordStartLinearAddress:
			if err := payloadLength(rec, 4); err != nil {
				return nil, &HexError{Line: line, Err: err}
			}
			prog.EntryPoints = append(prog.EntryPoints,
				uint32(rec.payload[0])<<24|uint32(rec.payload[1])<<16|
					uint32(rec.payload[2])<<8|uint32(rec.payload[3]))

		default:
			return nil, &HexError{
				Line: line,
				Err:  fmt.Errorf("%w: %02x", ErrUnknownRecord, rec.kind),
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hex input: %w", err)
	}

	return nil, &HexError{Line: line, Err: ErrMissingEOF}
}
