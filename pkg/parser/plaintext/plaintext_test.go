package plaintext

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yaklabco/kotoba/pkg/ast"
)

func parse(t *testing.T, source string) *ast.Node {
	t.Helper()
	doc, err := New().Parse(ast.NewArena(), []byte(source))
	require.NoError(t, err)
	return doc
}

func TestParseSingleParagraph(t *testing.T) {
	doc := parse(t, "Hello, world!")

	require.Len(t, doc.Children, 1)
	para := doc.Children[0]
	assert.Equal(t, ast.TypeParagraph, para.Type)
	assert.Equal(t, ast.NewSpan(0, 13), para.Span)

	require.Len(t, para.Children, 1)
	assert.Equal(t, "Hello, world!", para.Children[0].Value)
}

func TestParseBlankLineSeparation(t *testing.T) {
	source := "Para one.\n\nPara two."
	doc := parse(t, source)

	require.Len(t, doc.Children, 2)
	assert.Equal(t, ast.NewSpan(0, 9), doc.Children[0].Span)
	assert.Equal(t, ast.NewSpan(11, 20), doc.Children[1].Span)
	assert.Equal(t, "Para one.", doc.Children[0].Children[0].Value)
	assert.Equal(t, "Para two.", doc.Children[1].Children[0].Value)
}

func TestParseMultiLineParagraph(t *testing.T) {
	source := "line one\nline two\n\nnext"
	doc := parse(t, source)

	require.Len(t, doc.Children, 2)
	assert.Equal(t, "line one\nline two", doc.Children[0].Children[0].Value)
	assert.Equal(t, "next", doc.Children[1].Children[0].Value)
}

func TestParseWhitespaceOnlyLinesAreBlank(t *testing.T) {
	source := "a\n \t\nb"
	doc := parse(t, source)
	require.Len(t, doc.Children, 2)
}

func TestParseEmptyInput(t *testing.T) {
	doc := parse(t, "")
	assert.Equal(t, ast.TypeDocument, doc.Type)
	assert.Empty(t, doc.Children)
	assert.Equal(t, ast.NewSpan(0, 0), doc.Span)
}

func TestParseTrailingNewline(t *testing.T) {
	doc := parse(t, "hello\n")
	require.Len(t, doc.Children, 1)
	assert.Equal(t, ast.NewSpan(0, 5), doc.Children[0].Span)
}

func TestSpansIndexSource(t *testing.T) {
	source := "one\n\ntwo\n\nthree"
	doc := parse(t, source)

	for _, para := range doc.Children {
		str := para.Children[0]
		assert.Equal(t, source[str.Span.Start:str.Span.End], str.Value)
	}
}
