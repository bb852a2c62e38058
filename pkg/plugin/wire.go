package plugin

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/vmihailenco/msgpack/v5"

	"github.com/yaklabco/kotoba/pkg/ast"
	"github.com/yaklabco/kotoba/pkg/text"
)

// Encoding selects the request/response framing between host and rule. The
// JSON projection is the normative ABI; msgpack is the opt-in fast path a
// rule declares in its manifest.
type Encoding string

const (
	// EncodingJSON is the default framing.
	EncodingJSON Encoding = "json"
	// EncodingMsgpack is the compact binary framing.
	EncodingMsgpack Encoding = "msgpack"
)

// LintResponse is the payload a rule returns from lint.
type LintResponse struct {
	Diagnostics []Diagnostic `json:"diagnostics" msgpack:"diagnostics"`
}

// RequestPayload carries the per-file request pieces shared by every rule
// invocation over the same tree: the node batch and the analysis results.
// Serialized forms are built once and cached, so running N rules over one
// file serializes the projection once, not N times.
type RequestPayload struct {
	Nodes     []*ast.Node
	Source    string
	FilePath  string
	Tokens    []text.Token
	Sentences []text.Sentence

	// Cached serialized fragments, keyed by node filter.
	jsonNodes    map[string][]byte
	msgpackNodes map[string][]byte
	jsonSource   []byte
	jsonTokens   []byte
	jsonSents    []byte
}

// NewRequestPayload creates a payload over a node batch.
func NewRequestPayload(nodes []*ast.Node, source, filePath string) *RequestPayload {
	return &RequestPayload{
		Nodes:        nodes,
		Source:       source,
		FilePath:     filePath,
		jsonNodes:    make(map[string][]byte),
		msgpackNodes: make(map[string][]byte),
	}
}

// filterKey canonicalizes a node-type filter for the serialization cache.
func filterKey(types []string) string {
	if len(types) == 0 {
		return "*"
	}
	sorted := make([]string, len(types))
	copy(sorted, types)
	sort.Strings(sorted)
	return strings.Join(sorted, ",")
}

// FilterNodes returns the node batch a manifest wants to receive. A rule
// without a node_types filter gets the payload roots (the whole document or
// block); a filtering rule gets every matching node collected from the trees,
// batched into one call.
func (p *RequestPayload) FilterNodes(m *Manifest) []*ast.Node {
	if len(m.NodeTypes) == 0 {
		return p.Nodes
	}
	var out []*ast.Node
	for _, root := range p.Nodes {
		ast.WalkFunc(root, func(n *ast.Node) ast.VisitResult {
			if m.WantsNodeType(n.Type) {
				out = append(out, n)
			}
			return ast.Continue
		})
	}
	return out
}

func (p *RequestPayload) nodesJSON(m *Manifest) ([]byte, error) {
	key := filterKey(m.NodeTypes)
	if b, ok := p.jsonNodes[key]; ok {
		return b, nil
	}
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, n := range p.FilterNodes(m) {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := n.ProjectJSON(&buf); err != nil {
			return nil, err
		}
	}
	buf.WriteByte(']')
	b := buf.Bytes()
	p.jsonNodes[key] = b
	return b, nil
}

func (p *RequestPayload) sourceJSON() ([]byte, error) {
	if p.jsonSource == nil {
		b, err := json.Marshal(p.Source)
		if err != nil {
			return nil, err
		}
		p.jsonSource = b
	}
	return p.jsonSource, nil
}

func (p *RequestPayload) tokensJSON() ([]byte, error) {
	if p.jsonTokens == nil {
		b, err := json.Marshal(p.Tokens)
		if err != nil {
			return nil, err
		}
		p.jsonTokens = b
	}
	return p.jsonTokens, nil
}

func (p *RequestPayload) sentencesJSON() ([]byte, error) {
	if p.jsonSents == nil {
		b, err := json.Marshal(p.Sentences)
		if err != nil {
			return nil, err
		}
		p.jsonSents = b
	}
	return p.jsonSents, nil
}

// EncodeRequest frames a lint request for one rule. config must already be a
// JSON document (null when the rule has no configuration).
func (p *RequestPayload) EncodeRequest(m *Manifest, config json.RawMessage, enc Encoding) ([]byte, error) {
	if enc == EncodingMsgpack {
		return p.encodeMsgpack(m, config)
	}
	return p.encodeJSON(m, config)
}

func (p *RequestPayload) encodeJSON(m *Manifest, config json.RawMessage) ([]byte, error) {
	nodes, err := p.nodesJSON(m)
	if err != nil {
		return nil, err
	}
	source, err := p.sourceJSON()
	if err != nil {
		return nil, err
	}
	if len(config) == 0 {
		config = json.RawMessage("null")
	}

	var buf bytes.Buffer
	buf.Grow(len(nodes) + len(source) + len(config) + 128)
	buf.WriteString(`{"nodes":`)
	buf.Write(nodes)
	buf.WriteString(`,"config":`)
	buf.Write(config)
	buf.WriteString(`,"source":`)
	buf.Write(source)
	if p.FilePath != "" {
		buf.WriteString(`,"file_path":`)
		fp, _ := json.Marshal(p.FilePath)
		buf.Write(fp)
	}
	if m.NeedsMorphology() {
		tokens, err := p.tokensJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"tokens":`)
		buf.Write(tokens)
	}
	if m.NeedsSentences() {
		sents, err := p.sentencesJSON()
		if err != nil {
			return nil, err
		}
		buf.WriteString(`,"sentences":`)
		buf.Write(sents)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// msgpackRequest mirrors the JSON envelope for the binary framing. Nodes ride
// along as msgpack maps with the JSON projection's field set, so the node ABI
// stays the same across encodings.
type msgpackRequest struct {
	Nodes     msgpack.RawMessage `msgpack:"nodes"`
	Config    any                `msgpack:"config"`
	Source    string             `msgpack:"source"`
	FilePath  string             `msgpack:"file_path,omitempty"`
	Tokens    []text.Token       `msgpack:"tokens,omitempty"`
	Sentences []text.Sentence    `msgpack:"sentences,omitempty"`
}

func (p *RequestPayload) encodeMsgpack(m *Manifest, config json.RawMessage) ([]byte, error) {
	key := filterKey(m.NodeTypes)
	raw, ok := p.msgpackNodes[key]
	if !ok {
		var err error
		raw, err = encodeNodesMsgpack(p.FilterNodes(m))
		if err != nil {
			return nil, err
		}
		p.msgpackNodes[key] = raw
	}

	var cfg any
	if len(config) > 0 {
		if err := json.Unmarshal(config, &cfg); err != nil {
			return nil, fmt.Errorf("config not valid JSON: %w", err)
		}
	}

	req := msgpackRequest{
		Nodes:  msgpack.RawMessage(raw),
		Config: cfg,
		Source: p.Source,
	}
	req.FilePath = p.FilePath
	if m.NeedsMorphology() {
		req.Tokens = p.Tokens
	}
	if m.NeedsSentences() {
		req.Sentences = p.Sentences
	}
	return msgpack.Marshal(&req)
}

// encodeNodesMsgpack encodes the node batch as a msgpack array of maps with
// the same field set as the JSON projection.
func encodeNodesMsgpack(nodes []*ast.Node) ([]byte, error) {
	var buf bytes.Buffer
	enc := msgpack.NewEncoder(&buf)
	if err := enc.EncodeArrayLen(len(nodes)); err != nil {
		return nil, err
	}
	for _, n := range nodes {
		if err := encodeNodeMsgpack(enc, n); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

func encodeNodeMsgpack(enc *msgpack.Encoder, n *ast.Node) error {
	fields := 2
	hasChildren := n.Type.IsParent() || len(n.Children) > 0
	if hasChildren {
		fields++
	}
	if n.IsText() {
		fields++
	}
	fields += dataFieldCount(n.Data)

	if err := enc.EncodeMapLen(fields); err != nil {
		return err
	}
	if err := encodePair(enc, "type", n.Type.String()); err != nil {
		return err
	}
	if err := enc.EncodeString("range"); err != nil {
		return err
	}
	if err := enc.EncodeArrayLen(2); err != nil {
		return err
	}
	if err := enc.EncodeUint32(n.Span.Start); err != nil {
		return err
	}
	if err := enc.EncodeUint32(n.Span.End); err != nil {
		return err
	}

	if hasChildren {
		if err := enc.EncodeString("children"); err != nil {
			return err
		}
		if err := enc.EncodeArrayLen(len(n.Children)); err != nil {
			return err
		}
		for i := range n.Children {
			if err := encodeNodeMsgpack(enc, &n.Children[i]); err != nil {
				return err
			}
		}
	}
	if n.IsText() {
		if err := encodePair(enc, "value", n.Value); err != nil {
			return err
		}
	}
	return encodeDataMsgpack(enc, n.Data)
}

func dataFieldCount(d *ast.NodeData) int {
	if d == nil {
		return 0
	}
	switch d.Kind {
	case ast.DataHeader, ast.DataList:
		return 1
	case ast.DataCodeBlock:
		if d.Lang != "" {
			return 1
		}
		return 0
	case ast.DataLink, ast.DataImage:
		if d.Title != "" {
			return 2
		}
		return 1
	case ast.DataReference:
		if d.Label != "" {
			return 2
		}
		return 1
	case ast.DataDefinition:
		count := 2
		if d.Title != "" {
			count++
		}
		if d.Label != "" {
			count++
		}
		return count
	default:
		return 0
	}
}

func encodeDataMsgpack(enc *msgpack.Encoder, d *ast.NodeData) error {
	if d == nil {
		return nil
	}
	switch d.Kind {
	case ast.DataHeader:
		if err := enc.EncodeString("depth"); err != nil {
			return err
		}
		return enc.EncodeUint8(d.Depth)
	case ast.DataList:
		if err := enc.EncodeString("ordered"); err != nil {
			return err
		}
		return enc.EncodeBool(d.Ordered)
	case ast.DataCodeBlock:
		if d.Lang == "" {
			return nil
		}
		return encodePair(enc, "lang", d.Lang)
	case ast.DataLink, ast.DataImage:
		if err := encodePair(enc, "url", d.URL); err != nil {
			return err
		}
		if d.Title != "" {
			return encodePair(enc, "title", d.Title)
		}
		return nil
	case ast.DataReference:
		if err := encodePair(enc, "identifier", d.Identifier); err != nil {
			return err
		}
		if d.Label != "" {
			return encodePair(enc, "label", d.Label)
		}
		return nil
	case ast.DataDefinition:
		if err := encodePair(enc, "identifier", d.Identifier); err != nil {
			return err
		}
		if err := encodePair(enc, "url", d.URL); err != nil {
			return err
		}
		if d.Title != "" {
			if err := encodePair(enc, "title", d.Title); err != nil {
				return err
			}
		}
		if d.Label != "" {
			return encodePair(enc, "label", d.Label)
		}
		return nil
	default:
		return nil
	}
}

func encodePair(enc *msgpack.Encoder, key, value string) error {
	if err := enc.EncodeString(key); err != nil {
		return err
	}
	return enc.EncodeString(value)
}

// DecodeResponse parses a rule's lint response in the given encoding.
func DecodeResponse(data []byte, enc Encoding) (*LintResponse, error) {
	var resp LintResponse
	var err error
	if enc == EncodingMsgpack {
		err = msgpack.Unmarshal(data, &resp)
	} else {
		err = json.Unmarshal(data, &resp)
	}
	if err != nil {
		return nil, err
	}
	return &resp, nil
}
