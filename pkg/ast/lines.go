package ast

import "sort"

// LineIndex resolves byte offsets to line/column positions. Built once per
// source, consulted lazily when a caller asks for a Location.
type LineIndex struct {
	// starts[i] is the byte offset of the first byte of line i+1.
	starts []uint32
	length uint32
}

// NewLineIndex scans src and records line start offsets.
func NewLineIndex(src []byte) *LineIndex {
	starts := []uint32{0}
	for i, b := range src {
		if b == '\n' {
			starts = append(starts, uint32(i+1))
		}
	}
	return &LineIndex{starts: starts, length: uint32(len(src))}
}

// Position converts a byte offset to a 1-based line and 0-based column.
// Offsets past the end clamp to the final position.
func (ix *LineIndex) Position(offset uint32) Position {
	if offset > ix.length {
		offset = ix.length
	}
	line := sort.Search(len(ix.starts), func(i int) bool {
		return ix.starts[i] > offset
	})
	return Position{
		Line:   line,
		Column: int(offset - ix.starts[line-1]),
	}
}

// Location converts a span to its line/column form.
func (ix *LineIndex) Location(span Span) Location {
	return Location{
		Start: ix.Position(span.Start),
		End:   ix.Position(span.End),
	}
}
