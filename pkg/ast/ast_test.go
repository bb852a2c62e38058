package ast

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSpanBasics(t *testing.T) {
	s := NewSpan(3, 9)
	assert.Equal(t, uint32(6), s.Len())
	assert.False(t, s.IsEmpty())
	assert.True(t, s.Contains(NewSpan(3, 9)))
	assert.True(t, s.Contains(NewSpan(4, 8)))
	assert.False(t, s.Contains(NewSpan(2, 8)))
	assert.True(t, s.Overlaps(NewSpan(8, 12)))
	assert.False(t, s.Overlaps(NewSpan(9, 12)))
	assert.Equal(t, NewSpan(5, 11), s.Shift(2))
	assert.Equal(t, NewSpan(1, 7), s.Shift(-2))
}

func TestNodeTypeRoundTrip(t *testing.T) {
	for tt := TypeDocument; tt <= TypeDefinition; tt++ {
		got, ok := NodeTypeFromString(tt.String())
		require.True(t, ok, "type %s", tt)
		assert.Equal(t, tt, got)
	}
	_, ok := NodeTypeFromString("NoSuchType")
	assert.False(t, ok)
}

func TestArenaPointerStability(t *testing.T) {
	arena := NewArena()

	// Allocate enough nodes to force several chunk growths and verify the
	// first pointer still refers to the original contents.
	first := arena.Node(Node{Type: TypeStr, Span: NewSpan(0, 1), Value: "a"})
	var last *Node
	for i := 0; i < 1000; i++ {
		last = arena.Node(Node{Type: TypeStr, Span: NewSpan(uint32(i), uint32(i + 1))})
	}

	assert.Equal(t, "a", first.Value)
	assert.Equal(t, NewSpan(0, 1), first.Span)
	assert.Equal(t, NewSpan(999, 1000), last.Span)
	assert.Equal(t, 1001, arena.NodeCount())
}

func TestArenaDataPointerStability(t *testing.T) {
	arena := NewArena()
	first := arena.Data(NodeData{Kind: DataHeader, Depth: 3})
	for i := 0; i < 200; i++ {
		arena.Data(NodeData{Kind: DataList, Ordered: true})
	}
	assert.Equal(t, DataHeader, first.Kind)
	assert.Equal(t, uint8(3), first.Depth)
}

func TestArenaChildSlices(t *testing.T) {
	arena := NewArena()
	kids := arena.Nodes([]Node{
		{Type: TypeStr, Span: NewSpan(0, 5), Value: "hello"},
		{Type: TypeStr, Span: NewSpan(6, 11), Value: "world"},
	})
	para := arena.Node(Node{Type: TypeParagraph, Span: NewSpan(0, 11), Children: kids})

	require.Len(t, para.Children, 2)
	assert.Equal(t, "hello", para.Children[0].Value)
	assert.Nil(t, arena.Nodes(nil))
}

func buildDoc(arena *Arena) *Node {
	str := Node{Type: TypeStr, Span: NewSpan(2, 7), Value: "Title"}
	header := Node{
		Type:     TypeHeader,
		Span:     NewSpan(0, 7),
		Children: arena.Nodes([]Node{str}),
		Data:     arena.Data(NodeData{Kind: DataHeader, Depth: 1}),
	}
	body := Node{Type: TypeStr, Span: NewSpan(9, 14), Value: "Hello"}
	para := Node{
		Type:     TypeParagraph,
		Span:     NewSpan(9, 14),
		Children: arena.Nodes([]Node{body}),
	}
	return arena.Node(Node{
		Type:     TypeDocument,
		Span:     NewSpan(0, 14),
		Children: arena.Nodes([]Node{header, para}),
	})
}

func TestWalkOrderAndStop(t *testing.T) {
	arena := NewArena()
	doc := buildDoc(arena)

	var order []NodeType
	WalkFunc(doc, func(n *Node) VisitResult {
		order = append(order, n.Type)
		return Continue
	})
	assert.Equal(t, []NodeType{
		TypeDocument, TypeHeader, TypeStr, TypeParagraph, TypeStr,
	}, order)

	count := 0
	WalkFunc(doc, func(n *Node) VisitResult {
		count++
		if n.Type == TypeHeader {
			return Stop
		}
		return Continue
	})
	assert.Equal(t, 2, count)
}

func TestWalkBlocks(t *testing.T) {
	arena := NewArena()
	doc := buildDoc(arena)

	var blocks []NodeType
	WalkBlocks(doc, func(b *Node) {
		blocks = append(blocks, b.Type)
	})
	assert.Equal(t, []NodeType{TypeHeader, TypeParagraph}, blocks)

	// Non-document roots yield nothing.
	WalkBlocks(&doc.Children[0], func(b *Node) {
		t.Fatal("unexpected block visit")
	})
}

func TestFindByType(t *testing.T) {
	arena := NewArena()
	doc := buildDoc(arena)

	strs := FindByType(doc, TypeStr)
	require.Len(t, strs, 2)
	assert.Equal(t, "Title", strs[0].Value)
	assert.Equal(t, "Hello", strs[1].Value)
}

func TestProjectionGolden(t *testing.T) {
	tests := []struct {
		name string
		node Node
		want string
	}{
		{
			name: "text leaf",
			node: Node{Type: TypeStr, Span: NewSpan(0, 5), Value: "hello"},
			want: `{"type":"Str","range":[0,5],"value":"hello"}`,
		},
		{
			name: "empty paragraph keeps children array",
			node: Node{Type: TypeParagraph, Span: NewSpan(0, 0)},
			want: `{"type":"Paragraph","range":[0,0],"children":[]}`,
		},
		{
			name: "leaf without value or children",
			node: Node{Type: TypeHorizontalRule, Span: NewSpan(0, 3)},
			want: `{"type":"HorizontalRule","range":[0,3]}`,
		},
		{
			name: "header depth flattened",
			node: Node{
				Type: TypeHeader, Span: NewSpan(0, 7),
				Data: &NodeData{Kind: DataHeader, Depth: 2},
			},
			want: `{"type":"Header","range":[0,7],"children":[],"depth":2}`,
		},
		{
			name: "code block with language",
			node: Node{
				Type: TypeCodeBlock, Span: NewSpan(0, 12), Value: "x = 1",
				Data: &NodeData{Kind: DataCodeBlock, Lang: "python"},
			},
			want: `{"type":"CodeBlock","range":[0,12],"value":"x = 1","lang":"python"}`,
		},
		{
			name: "link with title",
			node: Node{
				Type: TypeLink, Span: NewSpan(0, 10),
				Data: &NodeData{Kind: DataLink, URL: "https://example.com", Title: "Example"},
			},
			want: `{"type":"Link","range":[0,10],"children":[],"url":"https://example.com","title":"Example"}`,
		},
		{
			name: "definition all fields",
			node: Node{
				Type: TypeDefinition, Span: NewSpan(0, 10),
				Data: &NodeData{
					Kind: DataDefinition, Identifier: "id",
					URL: "http://url", Title: "Title", Label: "lbl",
				},
			},
			want: `{"type":"Definition","range":[0,10],"identifier":"id","url":"http://url","title":"Title","label":"lbl"}`,
		},
		{
			name: "reference without label",
			node: Node{
				Type: TypeFootnoteReference, Span: NewSpan(4, 9),
				Data: &NodeData{Kind: DataReference, Identifier: "fn-1"},
			},
			want: `{"type":"FootnoteReference","range":[4,9],"identifier":"fn-1"}`,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got, err := json.Marshal(&tc.node)
			require.NoError(t, err)
			assert.Equal(t, tc.want, string(got))
		})
	}
}

func TestProjectionNested(t *testing.T) {
	arena := NewArena()
	doc := buildDoc(arena)

	got, err := json.Marshal(doc)
	require.NoError(t, err)

	want := `{"type":"Document","range":[0,14],"children":[` +
		`{"type":"Header","range":[0,7],"children":[` +
		`{"type":"Str","range":[2,7],"value":"Title"}],"depth":1},` +
		`{"type":"Paragraph","range":[9,14],"children":[` +
		`{"type":"Str","range":[9,14],"value":"Hello"}]}]}`
	assert.Equal(t, want, string(got))
}

func TestLineIndex(t *testing.T) {
	src := []byte("abc\ndef\n\nghi")
	ix := NewLineIndex(src)

	assert.Equal(t, Position{Line: 1, Column: 0}, ix.Position(0))
	assert.Equal(t, Position{Line: 1, Column: 2}, ix.Position(2))
	assert.Equal(t, Position{Line: 2, Column: 0}, ix.Position(4))
	assert.Equal(t, Position{Line: 3, Column: 0}, ix.Position(8))
	assert.Equal(t, Position{Line: 4, Column: 2}, ix.Position(11))
	// Past-the-end clamps.
	assert.Equal(t, Position{Line: 4, Column: 3}, ix.Position(100))

	loc := ix.Location(NewSpan(4, 7))
	assert.Equal(t, Position{Line: 2, Column: 0}, loc.Start)
	assert.Equal(t, Position{Line: 2, Column: 3}, loc.End)
}

func TestRewrite(t *testing.T) {
	arena := NewArena()
	doc := buildDoc(arena)

	upper := transformerFunc(func(a *Arena, n Node) Node {
		if n.Type == TypeStr && n.Value == "Hello" {
			n.Value = "HELLO"
		}
		return n
	})
	out := Rewrite(arena, *doc, upper)

	assert.Equal(t, "HELLO", out.Children[1].Children[0].Value)
	// Original tree untouched.
	assert.Equal(t, "Hello", doc.Children[1].Children[0].Value)
}

type transformerFunc func(a *Arena, n Node) Node

func (f transformerFunc) Transform(a *Arena, n Node) Node { return f(a, n) }
