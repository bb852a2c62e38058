package markdown

import (
	"bytes"

	"github.com/yaklabco/kotoba/pkg/ast"
)

// unionSpan returns the smallest span covering all children. Zero-value spans
// of empty children lists stay zero.
func unionSpan(children []ast.Node) ast.Span {
	span := ast.Span{}
	for i := range children {
		span = mergeSpan(span, children[i].Span)
	}
	return span
}

// mergeSpan widens a to cover b, treating a zero-value a as absent.
func mergeSpan(a, b ast.Span) ast.Span {
	if a.Start == 0 && a.End == 0 {
		return b
	}
	if b.Start == 0 && b.End == 0 {
		return a
	}
	if b.Start < a.Start {
		a.Start = b.Start
	}
	if b.End > a.End {
		a.End = b.End
	}
	return a
}

// advance moves the cursor forward; it never moves back.
func (m *mapper) advance(pos int) {
	if pos > m.cursor {
		m.cursor = pos
	}
}

// lineStart returns the offset of the first byte of the line containing pos.
func (m *mapper) lineStart(pos int) int {
	if pos < 0 {
		return 0
	}
	if pos > len(m.source) {
		pos = len(m.source)
	}
	for pos > 0 && m.source[pos-1] != '\n' {
		pos--
	}
	return pos
}

// lineEnd returns the offset just past the last byte of the line containing
// pos, excluding the newline itself.
func (m *mapper) lineEnd(pos int) int {
	for pos < len(m.source) && m.source[pos] != '\n' {
		pos++
	}
	if pos > 0 && m.source[pos-1] == '\r' {
		pos--
	}
	return pos
}

// trimNewline steps end back over a trailing newline sequence.
func (m *mapper) trimNewline(end int) int {
	if end > 0 && end <= len(m.source) && m.source[end-1] == '\n' {
		end--
	}
	if end > 0 && m.source[end-1] == '\r' {
		end--
	}
	return end
}

// extendByMarkers widens span by count marker bytes on each side when the
// source actually carries them (emphasis asterisks, code span backticks).
func (m *mapper) extendByMarkers(span ast.Span, count int, markers ...byte) ast.Span {
	if span.IsEmpty() {
		return span
	}
	match := func(b byte) bool {
		for _, c := range markers {
			if b == c {
				return true
			}
		}
		return false
	}
	for i := 0; i < count; i++ {
		if span.Start > 0 && match(m.source[span.Start-1]) &&
			int(span.End) < len(m.source) && match(m.source[span.End]) {
			span.Start--
			span.End++
		}
	}
	return span
}

// extendLinkSpan widens a link or image span from its label to cover the full
// inline syntax when the surrounding bytes verify it: "[label](dest)" with a
// leading '!' for images. Reference-style links that do not match are left at
// the label span.
func (m *mapper) extendLinkSpan(span ast.Span, image bool) ast.Span {
	if span.IsEmpty() {
		return span
	}
	start := int(span.Start)
	if start == 0 || m.source[start-1] != '[' {
		return span
	}
	start--
	if image {
		if start == 0 || m.source[start-1] != '!' {
			return span
		}
		start--
	}

	end := int(span.End)
	if end >= len(m.source) || m.source[end] != ']' {
		return span
	}
	end++
	if end >= len(m.source) || m.source[end] != '(' {
		return span
	}
	depth := 0
	for i := end; i < len(m.source); i++ {
		switch m.source[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return ast.NewSpan(uint32(start), uint32(i+1))
			}
		case '\n':
			return span
		}
	}
	return span
}

// findFrom locates needle at or after the cursor, falling back to a
// zero-width span at the cursor when the bytes are not present.
func (m *mapper) findFrom(needle []byte) ast.Span {
	if len(needle) > 0 && m.cursor <= len(m.source) {
		if i := bytes.Index(m.source[m.cursor:], needle); i >= 0 {
			start := m.cursor + i
			return ast.NewSpan(uint32(start), uint32(start+len(needle)))
		}
	}
	pos := uint32(m.cursor)
	return ast.NewSpan(pos, pos)
}

// scanLine finds the next line at or after the cursor matching pred and
// returns its span without the trailing newline.
func (m *mapper) scanLine(pred func(line []byte) bool) ast.Span {
	pos := m.lineStart(m.cursor)
	for pos <= len(m.source) {
		end := pos
		for end < len(m.source) && m.source[end] != '\n' {
			end++
		}
		if pred(m.source[pos:end]) {
			return ast.NewSpan(uint32(pos), uint32(end))
		}
		if end >= len(m.source) {
			break
		}
		pos = end + 1
	}
	p := uint32(m.cursor)
	return ast.NewSpan(p, p)
}

// scanFenceSpan locates an empty fenced code block (opening fence, optional
// closing fence) starting from the cursor.
func (m *mapper) scanFenceSpan() ast.Span {
	isFence := func(line []byte) bool {
		t := bytes.TrimLeft(line, " \t")
		return bytes.HasPrefix(t, []byte("```")) || bytes.HasPrefix(t, []byte("~~~"))
	}
	open := m.scanLine(isFence)
	if open.IsEmpty() {
		return open
	}
	m.advance(int(open.End) + 1)
	closing := m.scanLine(isFence)
	if closing.IsEmpty() {
		return open
	}
	return ast.NewSpan(open.Start, closing.End)
}
