// Package ast defines the document syntax tree shared by parsers, the lint
// pipeline, and the plugin wire format. Nodes are allocated from an Arena and
// never outlive it.
package ast

import "fmt"

// Span is a half-open byte range [Start, End) into the source text.
type Span struct {
	Start uint32 `json:"start" msgpack:"start"`
	End   uint32 `json:"end" msgpack:"end"`
}

// NewSpan creates a span. Start must not exceed End.
func NewSpan(start, end uint32) Span {
	return Span{Start: start, End: end}
}

// Len returns the number of bytes covered by the span.
func (s Span) Len() uint32 {
	return s.End - s.Start
}

// IsEmpty reports whether the span covers no bytes.
func (s Span) IsEmpty() bool {
	return s.Start == s.End
}

// Contains reports whether other lies entirely within s.
func (s Span) Contains(other Span) bool {
	return s.Start <= other.Start && other.End <= s.End
}

// Overlaps reports whether s and other share at least one byte.
func (s Span) Overlaps(other Span) bool {
	return s.Start < other.End && other.Start < s.End
}

// Shift returns the span moved by delta bytes. The caller guarantees the
// result stays non-negative.
func (s Span) Shift(delta int64) Span {
	return Span{
		Start: uint32(int64(s.Start) + delta),
		End:   uint32(int64(s.End) + delta),
	}
}

func (s Span) String() string {
	return fmt.Sprintf("[%d, %d)", s.Start, s.End)
}

// Position is a point in the source: 1-based line, 0-based column.
type Position struct {
	Line   int `json:"line" msgpack:"line"`
	Column int `json:"column" msgpack:"column"`
}

// Location is the line/column form of a span, derived lazily from a LineIndex.
type Location struct {
	Start Position `json:"start" msgpack:"start"`
	End   Position `json:"end" msgpack:"end"`
}
