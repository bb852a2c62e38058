package plugin

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/yaklabco/kotoba/pkg/ast"
)

func testDoc() []*ast.Node {
	arena := ast.NewArena()
	str := ast.Node{Type: ast.TypeStr, Span: ast.NewSpan(0, 5), Value: "hello"}
	para := ast.Node{
		Type: ast.TypeParagraph, Span: ast.NewSpan(0, 5),
		Children: arena.Nodes([]ast.Node{str}),
	}
	header := ast.Node{
		Type: ast.TypeHeader, Span: ast.NewSpan(7, 12),
		Data: arena.Data(ast.NodeData{Kind: ast.DataHeader, Depth: 2}),
	}
	doc := arena.Node(ast.Node{
		Type: ast.TypeDocument, Span: ast.NewSpan(0, 12),
		Children: arena.Nodes([]ast.Node{para, header}),
	})
	return []*ast.Node{doc}
}

func TestEncodeRequestJSON(t *testing.T) {
	payload := NewRequestPayload(testDoc(), "hello там", "doc.md")
	m := &Manifest{Name: "r", Version: "1"}

	raw, err := payload.EncodeRequest(m, json.RawMessage(`{"a":1}`), EncodingJSON)
	require.NoError(t, err)

	var decoded struct {
		Nodes    []json.RawMessage `json:"nodes"`
		Config   map[string]any    `json:"config"`
		Source   string            `json:"source"`
		FilePath string            `json:"file_path"`
	}
	require.NoError(t, json.Unmarshal(raw, &decoded))
	require.Len(t, decoded.Nodes, 1)
	assert.Equal(t, map[string]any{"a": float64(1)}, decoded.Config)
	assert.Equal(t, "hello там", decoded.Source)
	assert.Equal(t, "doc.md", decoded.FilePath)

	var node struct {
		Type  string `json:"type"`
		Range []int  `json:"range"`
	}
	require.NoError(t, json.Unmarshal(decoded.Nodes[0], &node))
	assert.Equal(t, "Document", node.Type)
	assert.Equal(t, []int{0, 12}, node.Range)
}

func TestEncodeRequestNilConfigIsNull(t *testing.T) {
	payload := NewRequestPayload(testDoc(), "x", "")
	m := &Manifest{Name: "r", Version: "1"}

	raw, err := payload.EncodeRequest(m, nil, EncodingJSON)
	require.NoError(t, err)

	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(raw, &decoded))
	assert.Equal(t, "null", string(decoded["config"]))
	_, hasPath := decoded["file_path"]
	assert.False(t, hasPath)
	_, hasTokens := decoded["tokens"]
	assert.False(t, hasTokens)
}

func TestFilterNodesCollectsFromTree(t *testing.T) {
	payload := NewRequestPayload(testDoc(), "hello", "")

	all := payload.FilterNodes(&Manifest{})
	require.Len(t, all, 1)
	assert.Equal(t, ast.TypeDocument, all[0].Type)

	strs := payload.FilterNodes(&Manifest{NodeTypes: []string{"Str"}})
	require.Len(t, strs, 1)
	assert.Equal(t, "hello", strs[0].Value)

	headers := payload.FilterNodes(&Manifest{NodeTypes: []string{"Header", "Str"}})
	assert.Len(t, headers, 2)

	tables := payload.FilterNodes(&Manifest{NodeTypes: []string{"Table"}})
	assert.Empty(t, tables)
}

func TestSerializeOncePerFilter(t *testing.T) {
	payload := NewRequestPayload(testDoc(), "hello", "")
	m := &Manifest{Name: "r", Version: "1", NodeTypes: []string{"Str"}}

	first, err := payload.EncodeRequest(m, nil, EncodingJSON)
	require.NoError(t, err)
	second, err := payload.EncodeRequest(m, nil, EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	// Another manifest with the same filter set hits the same cache slot.
	m2 := &Manifest{Name: "other", Version: "1", NodeTypes: []string{"Str"}}
	third, err := payload.EncodeRequest(m2, nil, EncodingJSON)
	require.NoError(t, err)
	assert.Equal(t, first, third)
}

func TestEncodeRequestMsgpackMirrorsJSON(t *testing.T) {
	payload := NewRequestPayload(testDoc(), "hello", "doc.md")
	m := &Manifest{Name: "r", Version: "1", Encoding: EncodingMsgpack}

	raw, err := payload.EncodeRequest(m, json.RawMessage(`{"a":1}`), EncodingMsgpack)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, msgpack.Unmarshal(raw, &decoded))
	assert.Equal(t, "hello", decoded["source"])
	assert.Equal(t, "doc.md", decoded["file_path"])

	nodes, ok := decoded["nodes"].([]any)
	require.True(t, ok)
	require.Len(t, nodes, 1)
	node, ok := nodes[0].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "Document", node["type"])
	children, ok := node["children"].([]any)
	require.True(t, ok)
	require.Len(t, children, 2)
	header := children[1].(map[string]any)
	assert.Equal(t, "Header", header["type"])
	assert.EqualValues(t, 2, header["depth"])
}

func TestDecodeResponse(t *testing.T) {
	jsonResp := []byte(`{"diagnostics":[{"rule_id":"r","message":"m","span":{"start":1,"end":4},"severity":"warning"}]}`)
	resp, err := DecodeResponse(jsonResp, EncodingJSON)
	require.NoError(t, err)
	require.Len(t, resp.Diagnostics, 1)
	assert.Equal(t, ast.NewSpan(1, 4), resp.Diagnostics[0].Span)
	assert.Equal(t, SeverityWarning, resp.Diagnostics[0].Severity)

	packed, err := msgpack.Marshal(resp)
	require.NoError(t, err)
	back, err := DecodeResponse(packed, EncodingMsgpack)
	require.NoError(t, err)
	assert.Equal(t, resp.Diagnostics, back.Diagnostics)

	_, err = DecodeResponse([]byte("not json"), EncodingJSON)
	assert.Error(t, err)
}

func TestManifestValidation(t *testing.T) {
	valid := []byte(`{"name":"no-todo","version":"1.2.3","node_types":["Str"],"isolation_level":"block"}`)
	m, err := ParseManifest(valid)
	require.NoError(t, err)
	assert.Equal(t, IsolationBlock, m.IsolationLevel)
	assert.True(t, m.WantsNodeType(ast.TypeStr))
	assert.False(t, m.WantsNodeType(ast.TypeCode))

	cases := []string{
		`{"version":"1.0.0"}`,
		`{"name":"x"}`,
		`{"name":"x","version":"1","isolation_level":"galaxy"}`,
		`{"name":"x","version":"1","node_types":["Blob"]}`,
		`{"name":"x","version":"1","permissions":{"net":true}}`,
		`{"name":"x","version":"1","encoding":"xml"}`,
		`not json`,
	}
	for _, c := range cases {
		_, err := ParseManifest([]byte(c))
		assert.Error(t, err, "manifest %s", c)
	}
}

func TestManifestDefaults(t *testing.T) {
	m, err := ParseManifest([]byte(`{"name":"x","version":"1"}`))
	require.NoError(t, err)
	assert.Equal(t, IsolationGlobal, m.IsolationLevel)
	assert.False(t, m.Fixable)
	assert.True(t, m.WantsNodeType(ast.TypeTable))
	assert.False(t, m.NeedsMorphology())
	assert.False(t, m.NeedsSentences())
}

func TestManifestCapabilities(t *testing.T) {
	m, err := ParseManifest([]byte(
		`{"name":"x","version":"1","capabilities":["morphology","sentences"],"languages":["ja"]}`))
	require.NoError(t, err)
	assert.True(t, m.NeedsMorphology())
	assert.True(t, m.NeedsSentences())
	assert.Equal(t, []Language{LangJa}, m.Languages)
}

func TestDiagnosticOrdering(t *testing.T) {
	a := Diagnostic{RuleID: "b", Span: ast.NewSpan(5, 9)}
	b := Diagnostic{RuleID: "a", Span: ast.NewSpan(5, 9)}
	c := Diagnostic{RuleID: "a", Span: ast.NewSpan(2, 4)}

	assert.Negative(t, CompareDiagnostics(c, b))
	assert.Negative(t, CompareDiagnostics(b, a))
	assert.Positive(t, CompareDiagnostics(a, c))
	assert.Zero(t, CompareDiagnostics(a, a))
}

func TestDiagnosticShift(t *testing.T) {
	d := Diagnostic{
		RuleID: "r",
		Span:   ast.NewSpan(10, 14),
		Loc:    &ast.Location{},
		Fix:    &Fix{Span: ast.NewSpan(10, 14), Text: "x"},
	}
	shifted := d.Shift(8)
	assert.Equal(t, ast.NewSpan(18, 22), shifted.Span)
	assert.Equal(t, ast.NewSpan(18, 22), shifted.Fix.Span)
	assert.Nil(t, shifted.Loc)
	// The original is untouched.
	assert.Equal(t, ast.NewSpan(10, 14), d.Span)
	assert.Equal(t, ast.NewSpan(10, 14), d.Fix.Span)
}
