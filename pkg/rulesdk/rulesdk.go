// Package rulesdk contains the guest-side helpers a WASM rule needs: the
// wire types, request parsing, response framing, and the pointer/length
// packing of the host ABI. Rules are typically built with TinyGo; the rule
// itself adds the exported shims:
//
//	//export get_manifest
//	func getManifest() uint64 { return rulesdk.Output(manifestJSON) }
//
//	//export lint
//	func lint(ptr, size uint32) uint64 {
//		req, err := rulesdk.ParseRequest(rulesdk.Input(ptr, size))
//		...
//		return rulesdk.OutputResponse(diags)
//	}
//
//	//export alloc
//	func alloc(size uint32) uint32 { return rulesdk.Alloc(size) }
package rulesdk

import (
	"encoding/json"
	"unsafe"
)

// Node is the projected document node a rule receives. Children mirror the
// host's JSON projection; per-type fields are flattened alongside.
type Node struct {
	Type       string    `json:"type"`
	Range      [2]uint32 `json:"range"`
	Children   []Node    `json:"children,omitempty"`
	Value      string    `json:"value,omitempty"`
	Depth      uint8     `json:"depth,omitempty"`
	Ordered    bool      `json:"ordered,omitempty"`
	Lang       string    `json:"lang,omitempty"`
	URL        string    `json:"url,omitempty"`
	Title      string    `json:"title,omitempty"`
	Identifier string    `json:"identifier,omitempty"`
	Label      string    `json:"label,omitempty"`
}

// Span is a half-open byte range in the source.
type Span struct {
	Start uint32 `json:"start"`
	End   uint32 `json:"end"`
}

// Token is a morphological unit, present when the manifest declares the
// morphology capability.
type Token struct {
	Surface string   `json:"surface"`
	POS     []string `json:"pos"`
	Detail  []string `json:"detail"`
	Span    Span     `json:"span"`
}

// Sentence is a sentence segment, present when the manifest declares the
// sentences capability.
type Sentence struct {
	Text string `json:"text"`
	Span Span   `json:"span"`
}

// LintRequest is the payload of one lint call.
type LintRequest struct {
	Nodes     []Node          `json:"nodes"`
	Config    json.RawMessage `json:"config"`
	Source    string          `json:"source"`
	FilePath  string          `json:"file_path,omitempty"`
	Tokens    []Token         `json:"tokens,omitempty"`
	Sentences []Sentence      `json:"sentences,omitempty"`
}

// Fix replaces a span with text.
type Fix struct {
	Span Span   `json:"span"`
	Text string `json:"text"`
}

// Diagnostic is one finding. The host overwrites RuleID with the configured
// alias, so rules may leave it empty.
type Diagnostic struct {
	RuleID   string `json:"rule_id"`
	Message  string `json:"message"`
	Span     Span   `json:"span"`
	Severity string `json:"severity,omitempty"`
	Fix      *Fix   `json:"fix,omitempty"`
}

// LintResponse wraps the diagnostics of one lint call.
type LintResponse struct {
	Diagnostics []Diagnostic `json:"diagnostics"`
}

// Manifest is the rule's self-description returned from get_manifest.
type Manifest struct {
	Name           string          `json:"name"`
	Version        string          `json:"version"`
	Description    string          `json:"description,omitempty"`
	Fixable        bool            `json:"fixable"`
	NodeTypes      []string        `json:"node_types,omitempty"`
	IsolationLevel string          `json:"isolation_level"`
	Schema         json.RawMessage `json:"schema,omitempty"`
	Languages      []string        `json:"languages,omitempty"`
	Capabilities   []string        `json:"capabilities,omitempty"`
}

// ParseRequest decodes a lint request payload.
func ParseRequest(data []byte) (*LintRequest, error) {
	var req LintRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, err
	}
	return &req, nil
}

// buffers pins allocations handed to the host so the GC cannot reclaim them
// between the alloc call and the host's write.
//
//nolint:gochecknoglobals // The guest ABI is inherently process-global state.
var buffers [][]byte

// Alloc reserves size bytes of guest memory and returns its address. Backs
// the module's alloc export.
func Alloc(size uint32) uint32 {
	buf := make([]byte, size)
	buffers = append(buffers, buf)
	return ptrOf(buf)
}

// Input reconstructs the byte slice the host wrote at ptr.
func Input(ptr, size uint32) []byte {
	return unsafe.Slice((*byte)(unsafe.Pointer(uintptr(ptr))), size)
}

// Output pins data and returns the packed ptr/len the host ABI expects.
func Output(data []byte) uint64 {
	if len(data) == 0 {
		return 0
	}
	buffers = append(buffers, data)
	return uint64(ptrOf(data))<<32 | uint64(uint32(len(data)))
}

// OutputJSON marshals v and frames it for return to the host.
func OutputJSON(v any) uint64 {
	data, err := json.Marshal(v)
	if err != nil {
		return 0
	}
	return Output(data)
}

// OutputResponse frames a diagnostic list as a lint response.
func OutputResponse(diags []Diagnostic) uint64 {
	if diags == nil {
		diags = []Diagnostic{}
	}
	return OutputJSON(&LintResponse{Diagnostics: diags})
}

func ptrOf(buf []byte) uint32 {
	return uint32(uintptr(unsafe.Pointer(unsafe.SliceData(buf))))
}
