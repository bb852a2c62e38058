package text

import (
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/clipperhouse/uax29/v2/sentences"

	"github.com/yaklabco/kotoba/pkg/ast"
)

// Sentence is a sentence segment with its byte span in the source.
type Sentence struct {
	Text string   `json:"text" msgpack:"text"`
	Span ast.Span `json:"span" msgpack:"span"`
}

// Split segments text into sentences. The baseline boundaries follow
// UAX #29; on top of that:
//
//   - a fullwidth period always ends a sentence
//   - `!`, `?` and their fullwidth forms end one only before whitespace or
//     end of text, so emphatic clusters stay together
//   - a single newline is a soft wrap, a blank line always splits
//   - no boundary falls inside any of ignoreRanges
//
// Whitespace between boundaries belongs to the preceding sentence. Sentence
// spans are contiguous and whitespace-only segments are absorbed by their
// predecessor; a leading whitespace-only segment belongs to no sentence.
func Split(text string, ignoreRanges []ast.Span) []Sentence {
	if text == "" {
		return nil
	}

	boundaries := baselineBoundaries(text)
	applyOverrides(text, boundaries)

	if len(ignoreRanges) > 0 {
		sorted := make([]ast.Span, len(ignoreRanges))
		copy(sorted, ignoreRanges)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Start < sorted[j].Start })
		for b := range boundaries {
			if insideIgnored(uint32(boundaryOrigin(text, b)), sorted) {
				delete(boundaries, b)
			}
		}
	}

	offsets := make([]int, 0, len(boundaries)+1)
	for b := range boundaries {
		if b > 0 && b <= len(text) {
			offsets = append(offsets, b)
		}
	}
	if len(offsets) == 0 || offsets[len(offsets)-1] != len(text) {
		offsets = append(offsets, len(text))
	}
	sort.Ints(offsets)

	return assemble(text, offsets)
}

// baselineBoundaries collects UAX #29 sentence ends as byte offsets.
func baselineBoundaries(text string) map[int]bool {
	boundaries := make(map[int]bool)
	pos := 0
	iter := sentences.FromString(text)
	for iter.Next() {
		pos += len(iter.Value())
		boundaries[pos] = true
	}
	return boundaries
}

// applyOverrides edits the baseline boundary set per the splitting rules.
func applyOverrides(text string, boundaries map[int]bool) {
	for i := 0; i < len(text); {
		r, size := utf8.DecodeRuneInString(text[i:])
		after := i + size

		switch r {
		case '。':
			boundaries[after] = true

		case '!', '?', '！', '？':
			if after >= len(text) {
				boundaries[after] = true
				break
			}
			next, _ := utf8.DecodeRuneInString(text[after:])
			if isSplitSpace(next) {
				boundaries[after] = true
			} else {
				delete(boundaries, after)
			}

		case '\n':
			run := after
			for run < len(text) && text[run] == '\n' {
				run++
			}
			if run > after {
				// Blank line: boundary after the whole newline run.
				for b := after; b < run; b++ {
					delete(boundaries, b)
				}
				boundaries[run] = true
				i = run
				continue
			}
			// Soft wrap, unless the line actually ended a sentence: UAX #29
			// places a terminator-caused boundary after the newline, and
			// that one survives.
			if !endsWithTerminator(text[:i]) {
				delete(boundaries, after)
			}
		}

		i = after
	}
}

// endsWithTerminator reports whether s ends, ignoring inline whitespace, with
// sentence-terminal punctuation.
func endsWithTerminator(s string) bool {
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		if r == ' ' || r == '\t' || r == '\r' {
			s = s[:len(s)-size]
			continue
		}
		switch r {
		case '.', '!', '?', '！', '？', '。', '…':
			return true
		}
		return false
	}
	return false
}

func isSplitSpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\r', '　':
		return true
	}
	return false
}

// boundaryOrigin walks back from a boundary over trailing whitespace and
// closing punctuation to the offset just past the terminator that caused it.
func boundaryOrigin(text string, b int) int {
	s := text[:min(b, len(text))]
	for len(s) > 0 {
		r, size := utf8.DecodeLastRuneInString(s)
		switch r {
		case ' ', '\t', '\n', '\r', '`', '"', '\'', ')', ']', '」', '』':
			s = s[:len(s)-size]
		default:
			return len(s)
		}
	}
	return 0
}

func insideIgnored(b uint32, sorted []ast.Span) bool {
	// A boundary strictly after a range start and no later than its end was
	// produced by ignored content.
	i := sort.Search(len(sorted), func(i int) bool { return sorted[i].End >= b })
	return i < len(sorted) && sorted[i].Start < b
}

// assemble builds sentences from sorted boundary offsets, extending each over
// trailing inline whitespace and merging whitespace-only segments into the
// preceding sentence.
func assemble(text string, offsets []int) []Sentence {
	var out []Sentence
	start := 0

	for _, b := range offsets {
		if b <= start {
			continue
		}
		end := b
		for end < len(text) && (text[end] == ' ' || text[end] == '\t') {
			end++
		}
		seg := text[start:end]
		if strings.TrimSpace(seg) == "" {
			if len(out) > 0 {
				out[len(out)-1].Text = text[out[len(out)-1].Span.Start:end]
				out[len(out)-1].Span.End = uint32(end)
			}
		} else {
			out = append(out, Sentence{
				Text: seg,
				Span: ast.NewSpan(uint32(start), uint32(end)),
			})
		}
		start = end
	}

	return out
}
