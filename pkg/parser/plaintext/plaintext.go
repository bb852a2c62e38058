// Package plaintext parses unstructured text: blank-line separated runs
// become paragraphs holding a single Str node each.
package plaintext

import (
	"github.com/yaklabco/kotoba/pkg/ast"
)

// Parser is the plain-text adapter. It is the registry fallback for unknown
// extensions.
type Parser struct{}

// New creates a plain-text parser.
func New() *Parser {
	return &Parser{}
}

// Name implements parser.Parser.
func (p *Parser) Name() string { return "text" }

// Extensions implements parser.Parser.
func (p *Parser) Extensions() []string { return []string{"txt", "text"} }

// Parse splits source on blank lines into paragraphs.
func (p *Parser) Parse(arena *ast.Arena, source []byte) (*ast.Node, error) {
	var paragraphs []ast.Node

	start := -1
	flush := func(end int) {
		if start < 0 {
			return
		}
		span := ast.NewSpan(uint32(start), uint32(end))
		str := ast.Node{
			Type:  ast.TypeStr,
			Span:  span,
			Value: string(source[start:end]),
		}
		paragraphs = append(paragraphs, ast.Node{
			Type:     ast.TypeParagraph,
			Span:     span,
			Children: arena.Nodes([]ast.Node{str}),
		})
		start = -1
	}

	lineStart := 0
	for i := 0; i <= len(source); i++ {
		if i < len(source) && source[i] != '\n' {
			continue
		}
		blank := isBlankLine(source[lineStart:i])
		if blank {
			flush(trimTrailingNewline(source, lineStart))
		} else if start < 0 {
			start = lineStart
		}
		lineStart = i + 1
	}
	flush(trimTrailingNewline(source, len(source)))

	return arena.Node(ast.Node{
		Type:     ast.TypeDocument,
		Span:     ast.NewSpan(0, uint32(len(source))),
		Children: arena.Nodes(paragraphs),
	}), nil
}

func isBlankLine(line []byte) bool {
	for _, b := range line {
		if b != ' ' && b != '\t' && b != '\r' {
			return false
		}
	}
	return true
}

func trimTrailingNewline(source []byte, end int) int {
	if end > 0 && source[end-1] == '\n' {
		end--
	}
	if end > 0 && source[end-1] == '\r' {
		end--
	}
	return end
}
