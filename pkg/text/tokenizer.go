// Package text provides the linguistic analysis that enriches lint requests:
// morphological tokenization and sentence splitting.
package text

import (
	"fmt"

	"github.com/ikawaha/kagome-dict/ipa"
	"github.com/ikawaha/kagome/v2/tokenizer"

	"github.com/yaklabco/kotoba/pkg/ast"
)

// Token is a morphological unit of the source text.
type Token struct {
	// Surface is the token text as it appears in the source.
	Surface string `json:"surface" msgpack:"surface"`
	// POS is the part-of-speech hierarchy (e.g. 名詞, 一般).
	POS []string `json:"pos" msgpack:"pos"`
	// Detail carries the remaining dictionary features (inflection, reading).
	Detail []string `json:"detail" msgpack:"detail"`
	// Span is the byte range of the surface in the source.
	Span ast.Span `json:"span" msgpack:"span"`
}

// Tokenizer produces morphological tokens. Safe for concurrent use after
// construction.
type Tokenizer struct {
	inner *tokenizer.Tokenizer
}

// NewTokenizer creates a tokenizer backed by the embedded IPA dictionary.
func NewTokenizer() (*Tokenizer, error) {
	inner, err := tokenizer.New(ipa.Dict(), tokenizer.OmitBosEos())
	if err != nil {
		return nil, fmt.Errorf("tokenizer init: %w", err)
	}
	return &Tokenizer{inner: inner}, nil
}

// The IPA dictionary spends its first four feature slots on the
// part-of-speech hierarchy; the rest are inflection and reading details.
const posFeatureCount = 4

// Tokenize segments text into morphological tokens with byte spans.
func (t *Tokenizer) Tokenize(text string) []Token {
	if text == "" {
		return nil
	}

	raw := t.inner.Tokenize(text)
	tokens := make([]Token, 0, len(raw))

	for _, rt := range raw {
		features := rt.Features()

		var pos, detail []string
		for i, f := range features {
			if f == "*" {
				continue
			}
			if i < posFeatureCount {
				pos = append(pos, f)
			} else {
				detail = append(detail, f)
			}
		}

		start := uint32(rt.Position)
		tokens = append(tokens, Token{
			Surface: rt.Surface,
			POS:     pos,
			Detail:  detail,
			Span:    ast.NewSpan(start, start+uint32(len(rt.Surface))),
		})
	}

	return tokens
}
