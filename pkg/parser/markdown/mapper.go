package markdown

import (
	"bytes"
	"strconv"

	gmast "github.com/yuin/goldmark/ast"
	east "github.com/yuin/goldmark/extension/ast"

	"github.com/yaklabco/kotoba/pkg/ast"
)

// mapper converts a goldmark tree into the shared node set. goldmark attaches
// byte segments only to text and line-bearing nodes; everything else gets its
// span from the union of its children, extended to cover syntax markers when
// those are verifiable in the source. The cursor tracks the furthest mapped
// offset so nodes without any segment (autolinks, thematic breaks, footnote
// references) can be located by scanning forward from it.
type mapper struct {
	arena  *ast.Arena
	source []byte
	// src shares backing with source so Str values are zero-copy sub-slices.
	src string
	// cursor is the furthest byte offset assigned to any node so far.
	cursor int
	// footnoteRefs maps footnote index to its identifier.
	footnoteRefs map[int]string
}

func newMapper(arena *ast.Arena, source []byte) *mapper {
	return &mapper{
		arena:        arena,
		source:       source,
		src:          string(source),
		footnoteRefs: make(map[int]string),
	}
}

func (m *mapper) mapDocument(gmDoc gmast.Node) *ast.Node {
	m.collectFootnoteRefs(gmDoc)

	children := m.mapChildren(gmDoc)
	return m.arena.Node(ast.Node{
		Type:     ast.TypeDocument,
		Span:     ast.NewSpan(0, uint32(len(m.source))),
		Children: m.arena.Nodes(children),
	})
}

// collectFootnoteRefs records footnote identifiers by index before mapping,
// because footnote links only carry the index.
func (m *mapper) collectFootnoteRefs(gmDoc gmast.Node) {
	_ = gmast.Walk(gmDoc, func(n gmast.Node, entering bool) (gmast.WalkStatus, error) {
		if !entering {
			return gmast.WalkContinue, nil
		}
		if fn, ok := n.(*east.Footnote); ok {
			m.footnoteRefs[fn.Index] = string(fn.Ref)
		}
		return gmast.WalkContinue, nil
	})
}

func (m *mapper) mapChildren(gmParent gmast.Node) []ast.Node {
	var out []ast.Node
	for child := gmParent.FirstChild(); child != nil; child = child.NextSibling() {
		for _, n := range m.mapNode(child) {
			// goldmark cuts a text run at inline trigger characters; adjacent
			// source-backed Str pieces are joined back into one Str.
			if last := len(out) - 1; last >= 0 && n.Type == ast.TypeStr &&
				out[last].Type == ast.TypeStr && out[last].Span.End == n.Span.Start &&
				!n.Span.IsEmpty() && !out[last].Span.IsEmpty() &&
				out[last].Value == m.src[out[last].Span.Start:out[last].Span.End] &&
				n.Value == m.src[n.Span.Start:n.Span.End] {
				out[last].Span.End = n.Span.End
				out[last].Value = m.src[out[last].Span.Start:n.Span.End]
				continue
			}
			out = append(out, n)
		}
	}
	return out
}

// mapNode converts one goldmark node. It may produce zero nodes (ignored
// constructs) or several (a text plus its trailing break).
func (m *mapper) mapNode(gmNode gmast.Node) []ast.Node {
	switch gmn := gmNode.(type) {
	case *gmast.Heading:
		return m.wrap(m.mapHeading(gmn))
	case *gmast.Paragraph:
		return m.wrap(m.containerWithLines(gmn, ast.TypeParagraph, nil))
	case *gmast.TextBlock:
		return m.wrap(m.containerWithLines(gmn, ast.TypeParagraph, nil))
	case *gmast.Blockquote:
		return m.wrap(m.mapBlockquote(gmn))
	case *gmast.List:
		return m.wrap(m.mapList(gmn))
	case *gmast.ListItem:
		return m.wrap(m.container(gmn, ast.TypeListItem, nil))
	case *gmast.FencedCodeBlock:
		return m.wrap(m.mapFencedCodeBlock(gmn))
	case *gmast.CodeBlock:
		return m.wrap(m.mapIndentedCodeBlock(gmn))
	case *gmast.ThematicBreak:
		return m.wrap(m.mapThematicBreak())
	case *gmast.HTMLBlock:
		return m.wrap(m.mapHTMLBlock(gmn))

	case *gmast.Text:
		return m.mapText(gmn)
	case *gmast.String:
		return m.wrap(m.mapString(gmn))
	case *gmast.Emphasis:
		return m.wrap(m.mapEmphasis(gmn))
	case *gmast.CodeSpan:
		return m.wrap(m.mapCodeSpan(gmn))
	case *gmast.Link:
		return m.wrap(m.mapLink(gmn))
	case *gmast.Image:
		return m.wrap(m.mapImage(gmn))
	case *gmast.AutoLink:
		return m.wrap(m.mapAutoLink(gmn))
	case *gmast.RawHTML:
		return m.wrap(m.mapRawHTML(gmn))

	case *east.Strikethrough:
		return m.wrap(m.container(gmn, ast.TypeDelete, nil))
	case *east.Table:
		return m.wrap(m.container(gmn, ast.TypeTable, nil))
	case *east.TableHeader:
		return m.wrap(m.container(gmn, ast.TypeTableRow, nil))
	case *east.TableRow:
		return m.wrap(m.container(gmn, ast.TypeTableRow, nil))
	case *east.TableCell:
		return m.wrap(m.container(gmn, ast.TypeTableCell, nil))
	case *east.FootnoteLink:
		return m.wrap(m.mapFootnoteLink(gmn))
	case *east.Footnote:
		return m.wrap(m.mapFootnote(gmn))
	case *east.FootnoteList:
		// The list is a synthetic wrapper; hoist its footnotes.
		nodes := m.mapChildren(gmNode)
		return nodes
	case *east.FootnoteBacklink, *east.TaskCheckBox:
		return nil

	default:
		// Unknown constructs keep their children visible.
		return m.mapChildren(gmNode)
	}
}

func (m *mapper) wrap(n *ast.Node) []ast.Node {
	if n == nil {
		return nil
	}
	return []ast.Node{*n}
}

// container maps a node whose span is the union of its children.
func (m *mapper) container(gmNode gmast.Node, t ast.NodeType, data *ast.NodeData) *ast.Node {
	children := m.mapChildren(gmNode)
	return &ast.Node{
		Type:     t,
		Span:     unionSpan(children),
		Children: m.arena.Nodes(children),
		Data:     data,
	}
}

// containerWithLines maps a node whose own line segments contribute to the
// span alongside its children.
func (m *mapper) containerWithLines(gmNode gmast.Node, t ast.NodeType, data *ast.NodeData) *ast.Node {
	children := m.mapChildren(gmNode)
	span := unionSpan(children)

	lines := gmNode.Lines()
	if lines != nil && lines.Len() > 0 {
		first := lines.At(0)
		last := lines.At(lines.Len() - 1)
		stop := m.trimNewline(last.Stop)
		span = mergeSpan(span, ast.NewSpan(uint32(first.Start), uint32(stop)))
	}
	m.advance(int(span.End))

	return &ast.Node{
		Type:     t,
		Span:     span,
		Children: m.arena.Nodes(children),
		Data:     data,
	}
}

func (m *mapper) mapHeading(h *gmast.Heading) *ast.Node {
	node := m.containerWithLines(h, ast.TypeHeader,
		m.arena.Data(ast.NodeData{Kind: ast.DataHeader, Depth: uint8(h.Level)}))
	// ATX headings own their marker: pull the span back to the line start so
	// the leading '#'s are covered.
	node.Span.Start = uint32(m.lineStart(int(node.Span.Start)))
	return node
}

func (m *mapper) mapBlockquote(bq *gmast.Blockquote) *ast.Node {
	node := m.container(bq, ast.TypeBlockQuote, nil)
	node.Span.Start = uint32(m.lineStart(int(node.Span.Start)))
	return node
}

func (m *mapper) mapList(l *gmast.List) *ast.Node {
	return m.container(l, ast.TypeList,
		m.arena.Data(ast.NodeData{Kind: ast.DataList, Ordered: l.IsOrdered()}))
}

func (m *mapper) mapFencedCodeBlock(cb *gmast.FencedCodeBlock) *ast.Node {
	lang := ""
	if cb.Info != nil {
		info := cb.Info.Segment.Value(m.source)
		if i := bytes.IndexByte(info, ' '); i >= 0 {
			info = info[:i]
		}
		lang = string(info)
	}

	value := ""
	span := ast.Span{}
	lines := cb.Lines()
	if lines.Len() > 0 {
		first := lines.At(0)
		last := lines.At(lines.Len() - 1)
		value = m.src[first.Start:last.Stop]
		span = ast.NewSpan(uint32(first.Start), uint32(last.Stop))
		// Extend over the fence lines on both sides.
		span.Start = uint32(m.lineStart(m.lineStart(int(span.Start)) - 1))
		span.End = uint32(m.lineEnd(int(span.End)))
	} else {
		// Empty block: locate the opening fence from the cursor.
		span = m.scanFenceSpan()
	}
	m.advance(int(span.End))

	var data *ast.NodeData
	if lang != "" {
		data = m.arena.Data(ast.NodeData{Kind: ast.DataCodeBlock, Lang: lang})
	}
	return &ast.Node{
		Type:  ast.TypeCodeBlock,
		Span:  span,
		Value: value,
		Data:  data,
	}
}

func (m *mapper) mapIndentedCodeBlock(cb *gmast.CodeBlock) *ast.Node {
	lines := cb.Lines()
	if lines.Len() == 0 {
		return nil
	}
	first := lines.At(0)
	last := lines.At(lines.Len() - 1)
	span := ast.NewSpan(uint32(first.Start), uint32(last.Stop))
	m.advance(int(span.End))
	return &ast.Node{
		Type:  ast.TypeCodeBlock,
		Span:  span,
		Value: m.src[first.Start:last.Stop],
	}
}

func (m *mapper) mapThematicBreak() *ast.Node {
	span := m.scanLine(func(line []byte) bool {
		trimmed := bytes.TrimRight(bytes.TrimLeft(line, " \t"), " \t\r")
		if len(trimmed) < 3 {
			return false
		}
		c := trimmed[0]
		if c != '-' && c != '*' && c != '_' {
			return false
		}
		for _, b := range trimmed {
			if b != c && b != ' ' {
				return false
			}
		}
		return true
	})
	m.advance(int(span.End))
	return &ast.Node{Type: ast.TypeHorizontalRule, Span: span}
}

func (m *mapper) mapHTMLBlock(hb *gmast.HTMLBlock) *ast.Node {
	span := ast.Span{}
	lines := hb.Lines()
	if lines.Len() > 0 {
		span = ast.NewSpan(uint32(lines.At(0).Start), uint32(lines.At(lines.Len()-1).Stop))
	}
	if hb.HasClosure() {
		cl := hb.ClosureLine
		span = mergeSpan(span, ast.NewSpan(uint32(cl.Start), uint32(cl.Stop)))
	}
	span.End = uint32(m.trimNewline(int(span.End)))
	m.advance(int(span.End))
	return &ast.Node{Type: ast.TypeHTML, Span: span, Children: nil}
}

// mapText yields a Str node for the segment, plus a Break node when the text
// line ends with a soft or hard break.
func (m *mapper) mapText(t *gmast.Text) []ast.Node {
	seg := t.Segment
	out := make([]ast.Node, 0, 2)
	if seg.Len() > 0 {
		out = append(out, ast.Node{
			Type:  ast.TypeStr,
			Span:  ast.NewSpan(uint32(seg.Start), uint32(seg.Stop)),
			Value: m.src[seg.Start:seg.Stop],
		})
		m.advance(seg.Stop)
	}
	if t.SoftLineBreak() || t.HardLineBreak() {
		end := seg.Stop
		if end < len(m.source) && m.source[end] == '\n' {
			end++
		}
		out = append(out, ast.Node{
			Type: ast.TypeBreak,
			Span: ast.NewSpan(uint32(seg.Stop), uint32(end)),
		})
		m.advance(end)
	}
	return out
}

// mapString handles synthetic strings (e.g. entity replacements); they carry
// no segment, so they sit at the cursor as zero-width nodes.
func (m *mapper) mapString(s *gmast.String) *ast.Node {
	pos := uint32(m.cursor)
	return &ast.Node{
		Type:  ast.TypeStr,
		Span:  ast.NewSpan(pos, pos),
		Value: string(s.Value),
	}
}

func (m *mapper) mapEmphasis(e *gmast.Emphasis) *ast.Node {
	t := ast.TypeEmphasis
	if e.Level >= 2 {
		t = ast.TypeStrong
	}
	node := m.container(e, t, nil)
	node.Span = m.extendByMarkers(node.Span, e.Level, '*', '_')
	return node
}

func (m *mapper) mapCodeSpan(cs *gmast.CodeSpan) *ast.Node {
	var value []byte
	span := ast.Span{}
	for child := cs.FirstChild(); child != nil; child = child.NextSibling() {
		if t, ok := child.(*gmast.Text); ok {
			seg := t.Segment
			value = append(value, m.source[seg.Start:seg.Stop]...)
			span = mergeSpan(span, ast.NewSpan(uint32(seg.Start), uint32(seg.Stop)))
		}
	}
	span = m.extendByMarkers(span, 1, '`')
	m.advance(int(span.End))
	return &ast.Node{
		Type:  ast.TypeCode,
		Span:  span,
		Value: string(value),
	}
}

func (m *mapper) mapLink(l *gmast.Link) *ast.Node {
	node := m.container(l, ast.TypeLink, m.linkData(ast.DataLink, l.Destination, l.Title))
	node.Span = m.extendLinkSpan(node.Span, false)
	return node
}

func (m *mapper) mapImage(img *gmast.Image) *ast.Node {
	node := m.container(img, ast.TypeImage, m.linkData(ast.DataImage, img.Destination, img.Title))
	node.Span = m.extendLinkSpan(node.Span, true)
	return node
}

func (m *mapper) linkData(kind ast.DataKind, dest, title []byte) *ast.NodeData {
	return m.arena.Data(ast.NodeData{
		Kind:  kind,
		URL:   string(dest),
		Title: string(title),
	})
}

func (m *mapper) mapAutoLink(al *gmast.AutoLink) *ast.Node {
	url := al.URL(m.source)
	label := al.Label(m.source)

	inner := m.findFrom(label)
	span := inner
	// Bracketed autolinks include the angle brackets.
	if span.Start > 0 && m.source[span.Start-1] == '<' &&
		int(span.End) < len(m.source) && m.source[span.End] == '>' {
		span.Start--
		span.End++
	}
	m.advance(int(span.End))

	child := ast.Node{
		Type:  ast.TypeStr,
		Span:  inner,
		Value: string(label),
	}
	return &ast.Node{
		Type:     ast.TypeLink,
		Span:     span,
		Children: m.arena.Nodes([]ast.Node{child}),
		Data:     m.arena.Data(ast.NodeData{Kind: ast.DataLink, URL: string(url)}),
	}
}

func (m *mapper) mapRawHTML(rh *gmast.RawHTML) *ast.Node {
	span := ast.Span{}
	for i := 0; i < rh.Segments.Len(); i++ {
		seg := rh.Segments.At(i)
		span = mergeSpan(span, ast.NewSpan(uint32(seg.Start), uint32(seg.Stop)))
	}
	m.advance(int(span.End))
	return &ast.Node{Type: ast.TypeHTML, Span: span}
}

func (m *mapper) mapFootnoteLink(fl *east.FootnoteLink) *ast.Node {
	ref := m.footnoteRefs[fl.Index]
	if ref == "" {
		ref = strconv.Itoa(fl.Index)
	}
	span := m.findFrom([]byte("[^" + ref + "]"))
	m.advance(int(span.End))
	return &ast.Node{
		Type: ast.TypeFootnoteReference,
		Span: span,
		Data: m.arena.Data(ast.NodeData{Kind: ast.DataReference, Identifier: ref}),
	}
}

func (m *mapper) mapFootnote(fn *east.Footnote) *ast.Node {
	node := m.container(fn, ast.TypeFootnoteDefinition,
		m.arena.Data(ast.NodeData{Kind: ast.DataReference, Identifier: string(fn.Ref)}))
	node.Span.Start = uint32(m.lineStart(int(node.Span.Start)))
	return node
}
