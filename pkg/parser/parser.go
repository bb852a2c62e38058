// Package parser defines the adapter contract between source text and the
// document tree, and the registry that selects an adapter by file extension.
package parser

import (
	"strings"

	"github.com/yaklabco/kotoba/pkg/ast"
)

// Parser turns source bytes into a document tree. Implementations allocate
// exclusively in the supplied arena and must preserve byte offsets exactly.
type Parser interface {
	// Name identifies the parser (e.g. "markdown").
	Name() string

	// Extensions lists the file extensions this parser handles, lowercase,
	// without the leading dot.
	Extensions() []string

	// Parse builds the tree for source. On failure the file is failed as a
	// whole; no recovery is attempted.
	Parse(arena *ast.Arena, source []byte) (*ast.Node, error)
}

// Registry maps file extensions to parsers. The fallback parser handles
// everything unclaimed.
type Registry struct {
	byExt    map[string]Parser
	fallback Parser
}

// NewRegistry creates a registry with the given fallback parser.
func NewRegistry(fallback Parser) *Registry {
	return &Registry{
		byExt:    make(map[string]Parser),
		fallback: fallback,
	}
}

// Register adds p for each of its extensions, replacing earlier claims.
func (r *Registry) Register(p Parser) {
	for _, ext := range p.Extensions() {
		r.byExt[strings.ToLower(ext)] = p
	}
}

// Select returns the parser for a file extension (with or without the
// leading dot, any case). Unknown extensions get the fallback.
func (r *Registry) Select(ext string) Parser {
	ext = strings.ToLower(strings.TrimPrefix(ext, "."))
	if p, ok := r.byExt[ext]; ok {
		return p
	}
	return r.fallback
}
