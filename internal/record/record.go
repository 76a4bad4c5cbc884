// Package record defines the per-cell click record and its wire form.
//
// Two encodings exist in the wild. The current one is a JSON object
// {"count":N,"sequence":S,"timestamp":T}. Older clients stored the bare count
// as a decimal integer. Decode accepts both and reports which it saw; Encode
// always produces the structured form, so a legacy value is upgraded the next
// time it is written.
package record

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ClickRecord is the persisted state of one cell.
type ClickRecord struct {
	Count     int   `json:"count"`
	Sequence  int64 `json:"sequence"`
	Timestamp int64 `json:"timestamp"` // epoch milliseconds
}

// Kind tags which encoding a decoded value used.
type Kind int

const (
	// KindEmpty means the value was missing or unparseable.
	KindEmpty Kind = iota
	// KindStructured means the value was a JSON record.
	KindStructured
	// KindLegacy means the value was a plain integer count.
	KindLegacy
)

func (k Kind) String() string {
	switch k {
	case KindStructured:
		return "structured"
	case KindLegacy:
		return "legacy"
	default:
		return "empty"
	}
}

// Decoded is the result of Decode. Record is the zero value when Kind is
// KindEmpty; for KindLegacy only Count is populated.
type Decoded struct {
	Kind   Kind
	Record ClickRecord
}

// Present reports whether a value was recognized.
func (d Decoded) Present() bool {
	return d.Kind != KindEmpty
}

// Decode parses a stored or remote value. It never fails: anything it cannot
// read is KindEmpty. Negative counts are clamped to zero.
func Decode(raw string) Decoded {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Decoded{Kind: KindEmpty}
	}

	if s[0] == '{' {
		var wire struct {
			Count     *json.Number `json:"count"`
			Sequence  int64        `json:"sequence"`
			Timestamp int64        `json:"timestamp"`
		}
		dec := json.NewDecoder(bytes.NewReader([]byte(s)))
		dec.UseNumber()
		if err := dec.Decode(&wire); err == nil && wire.Count != nil {
			n, ok := parseCount(wire.Count.String())
			if ok {
				return Decoded{Kind: KindStructured, Record: ClickRecord{
					Count:     n,
					Sequence:  max(wire.Sequence, 0),
					Timestamp: wire.Timestamp,
				}}
			}
		}
		return Decoded{Kind: KindEmpty}
	}

	if n, ok := parseCount(s); ok {
		return Decoded{Kind: KindLegacy, Record: ClickRecord{Count: n}}
	}
	return Decoded{Kind: KindEmpty}
}

// Count is shorthand for Decode(raw).Record.Count.
func Count(raw string) int {
	return Decode(raw).Record.Count
}

// parseCount accepts integers and integral floats ("5", "5.0").
func parseCount(s string) (int, bool) {
	if n, err := strconv.Atoi(s); err == nil {
		return max(n, 0), true
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int(f)) {
		return 0, false
	}
	return max(int(f), 0), true
}

// Encode returns the structured wire form.
func Encode(r ClickRecord) string {
	b, err := json.Marshal(r)
	if err != nil {
		// ClickRecord has only integer fields.
		panic(err)
	}
	return string(b)
}
