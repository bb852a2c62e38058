// Package markdown provides the Markdown parser adapter backed by goldmark.
// The goldmark tree is mapped onto the shared node set with byte-exact spans;
// text values re-use slices of the source wherever possible.
package markdown

import (
	"fmt"

	"github.com/yuin/goldmark"
	gmparser "github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/text"

	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/parser"
)

// Parser is the GFM-capable Markdown adapter.
type Parser struct {
	md goldmark.Markdown
}

// New creates a Markdown parser with GFM and footnote support.
func New() *Parser {
	return &Parser{
		md: goldmark.New(
			goldmark.WithExtensions(
				extension.GFM,
				extension.Footnote,
			),
		),
	}
}

// Name implements parser.Parser.
func (p *Parser) Name() string { return "markdown" }

// Extensions implements parser.Parser.
func (p *Parser) Extensions() []string {
	return []string{"md", "markdown", "mdown", "mkd"}
}

// Parse builds the document tree for source. goldmark itself never fails on
// text input; mapper panics are converted into internal parse errors so a
// defect cannot take down the whole run.
func (p *Parser) Parse(arena *ast.Arena, source []byte) (node *ast.Node, err error) {
	defer func() {
		if r := recover(); r != nil {
			node = nil
			err = parser.Internal(fmt.Sprintf("markdown mapper: %v", r))
		}
	}()

	reader := text.NewReader(source)
	gmDoc := p.md.Parser().Parse(reader, gmparser.WithContext(gmparser.NewContext()))

	m := newMapper(arena, source)
	return m.mapDocument(gmDoc), nil
}
