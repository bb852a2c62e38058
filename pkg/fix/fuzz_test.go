package fix

import (
	"fmt"
	"testing"

	"github.com/yaklabco/kotoba/pkg/ast"
)

// editsFromBytes derives a deterministic edit list from fuzz data, clamped to
// the content length so every edit passes validation.
func editsFromBytes(data []byte, contentLen int) []Edit {
	var edits []Edit
	for i := 0; i+2 < len(data); i += 3 {
		start := int(data[i]) % (contentLen + 1)
		end := start + int(data[i+1])%(contentLen+1-start)
		text := ""
		if data[i+2]%2 == 0 {
			text = fmt.Sprintf("t%d", data[i+2])
		}
		edits = append(edits, Edit{
			Span:   ast.NewSpan(uint32(start), uint32(end)),
			Text:   text,
			RuleID: fmt.Sprintf("rule-%d", data[i+2]%5),
		})
	}
	return edits
}

// FuzzResolve checks the conflict-resolution invariants on arbitrary edit
// lists: the partition is complete, winners never overlap, and the outcome
// does not depend on input order.
func FuzzResolve(f *testing.F) {
	f.Add([]byte(""), "hello world")
	f.Add([]byte{0, 3, 1, 4, 3, 2}, "foo bar baz")
	f.Add([]byte{0, 0, 0, 0, 0, 1, 5, 5, 2}, "overlaps and inserts")
	f.Add([]byte{2, 8, 7, 2, 2, 9, 0, 1, 3}, "short")

	f.Fuzz(func(t *testing.T, data []byte, content string) {
		edits := editsFromBytes(data, len(content))

		accepted, dropped := Resolve(edits)

		// Every edit ends up exactly once on one side.
		if len(accepted)+len(dropped) != len(edits) {
			t.Fatalf("partition lost edits: %d + %d != %d",
				len(accepted), len(dropped), len(edits))
		}

		// Winners are sorted and mutually conflict-free.
		for i := 1; i < len(accepted); i++ {
			if accepted[i].Span.Start < accepted[i-1].Span.Start {
				t.Fatal("accepted edits out of order")
			}
			if overlaps(accepted[i-1], accepted[i]) {
				t.Fatalf("accepted edits overlap: %s and %s",
					accepted[i-1].Span, accepted[i].Span)
			}
		}

		// Reversing the input must not change the outcome.
		reversed := make([]Edit, len(edits))
		for i, e := range edits {
			reversed[len(edits)-1-i] = e
		}
		accepted2, _ := Resolve(reversed)
		if len(accepted2) != len(accepted) {
			t.Fatalf("resolution depends on input order: %d vs %d winners",
				len(accepted), len(accepted2))
		}
		for i := range accepted {
			if accepted[i] != accepted2[i] {
				t.Fatalf("winner %d differs across input orders", i)
			}
		}
	})
}

// FuzzApplyEdits checks the application arithmetic: the rewritten buffer has
// exactly the expected length and the bytes outside every edit survive.
func FuzzApplyEdits(f *testing.F) {
	f.Add([]byte(""), "hello world")
	f.Add([]byte{0, 3, 0, 4, 3, 1}, "foo bar baz")
	f.Add([]byte{0, 0, 2, 9, 0, 4}, "insert and delete here")

	f.Fuzz(func(t *testing.T, data []byte, content string) {
		edits := editsFromBytes(data, len(content))
		if err := ValidateEdits(edits, len(content)); err != nil {
			t.Fatalf("derived edits invalid: %v", err)
		}

		accepted, _ := Resolve(edits)
		out := ApplyEdits([]byte(content), accepted)

		want := len(content)
		for _, e := range accepted {
			want += len(e.Text) - int(e.Span.Len())
		}
		if len(out) != want {
			t.Fatalf("result length %d, want %d", len(out), want)
		}

		// Bytes before the first edit are untouched.
		if len(accepted) > 0 {
			first := int(accepted[0].Span.Start)
			if string(out[:first]) != content[:first] {
				t.Fatal("prefix before first edit was modified")
			}
		} else if string(out) != content {
			t.Fatal("content changed with no accepted edits")
		}

		// Applying the same plan twice from the same input is stable.
		again := ApplyEdits([]byte(content), accepted)
		if string(again) != string(out) {
			t.Fatal("application is not deterministic")
		}
	})
}
