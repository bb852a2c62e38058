package lint

import (
	"github.com/go-enry/go-enry/v2"

	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/plugin"
)

// Characteristics summarizes what a document contains, gathered in a single
// visitor pass. Rules whose node_types intersect nothing present are skipped
// without ever entering the sandbox.
type Characteristics struct {
	// Present records which node types occur in the document.
	Present map[ast.NodeType]bool

	HasHeadings   bool
	HasLinks      bool
	HasImages     bool
	HasLists      bool
	HasCodeBlocks bool
	HasTables     bool
	HasHTML       bool

	// CodeLanguages are the fence languages of the document's code blocks;
	// blocks without an info string are classified from their content.
	CodeLanguages []string
}

// Scan walks the document once and fills a Characteristics.
func Scan(doc *ast.Node) *Characteristics {
	c := &Characteristics{Present: make(map[ast.NodeType]bool)}
	langs := make(map[string]bool)

	ast.WalkFunc(doc, func(n *ast.Node) ast.VisitResult {
		c.Present[n.Type] = true
		switch n.Type {
		case ast.TypeHeader:
			c.HasHeadings = true
		case ast.TypeLink, ast.TypeLinkReference:
			c.HasLinks = true
		case ast.TypeImage, ast.TypeImageReference:
			c.HasImages = true
		case ast.TypeList:
			c.HasLists = true
		case ast.TypeTable:
			c.HasTables = true
		case ast.TypeHTML:
			c.HasHTML = true
		case ast.TypeCodeBlock:
			c.HasCodeBlocks = true
			if lang := codeBlockLanguage(n); lang != "" {
				langs[lang] = true
			}
		}
		return ast.Continue
	})

	for lang := range langs {
		c.CodeLanguages = append(c.CodeLanguages, lang)
	}
	return c
}

// codeBlockLanguage returns the declared fence language, falling back to
// content classification for bare fences.
func codeBlockLanguage(n *ast.Node) string {
	if lang := n.Lang(); lang != "" {
		return lang
	}
	if n.Value == "" {
		return ""
	}
	lang, safe := enry.GetLanguageByClassifier([]byte(n.Value), nil)
	if !safe {
		return ""
	}
	return lang
}

// RuleApplies reports whether a rule's node-type interest intersects the
// document at all. Rules without a filter always apply.
func (c *Characteristics) RuleApplies(m *plugin.Manifest) bool {
	if len(m.NodeTypes) == 0 {
		return true
	}
	for _, name := range m.NodeTypes {
		if t, ok := ast.NodeTypeFromString(name); ok && c.Present[t] {
			return true
		}
	}
	return false
}
