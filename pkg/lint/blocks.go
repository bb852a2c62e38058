package lint

import (
	"github.com/yaklabco/kotoba/internal/logging"
	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/cache"
)

// extractBlocks fingerprints each top-level block of the document for
// incremental caching. Blocks with spans outside the source are skipped.
func extractBlocks(doc *ast.Node, source string) ([]cache.BlockEntry, []*ast.Node) {
	var entries []cache.BlockEntry
	var nodes []*ast.Node

	ast.WalkBlocks(doc, func(block *ast.Node) {
		start, end := int(block.Span.Start), int(block.Span.End)
		if start > end || end > len(source) {
			logging.Default().Warn("block span out of bounds",
				"span", block.Span,
				"source_len", len(source))
			return
		}
		entries = append(entries, cache.BlockEntry{
			Hash: cache.HashString(source[start:end]),
			Span: block.Span,
		})
		nodes = append(nodes, block)
	})

	return entries, nodes
}

// ignoreRanges collects the spans of code blocks and inline code, inside
// which the sentence splitter must not place boundaries.
func ignoreRanges(doc *ast.Node) []ast.Span {
	var ranges []ast.Span
	ast.WalkFunc(doc, func(n *ast.Node) ast.VisitResult {
		switch n.Type {
		case ast.TypeCodeBlock, ast.TypeCode:
			ranges = append(ranges, n.Span)
		}
		return ast.Continue
	})
	return ranges
}
