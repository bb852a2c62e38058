package plugin

import (
	"encoding/json"
	"fmt"

	"github.com/yaklabco/kotoba/pkg/ast"
)

// IsolationLevel declares how much document context a rule needs.
type IsolationLevel string

const (
	// IsolationGlobal rules must see the whole document per call.
	IsolationGlobal IsolationLevel = "global"
	// IsolationBlock rules may run on individual top-level blocks.
	IsolationBlock IsolationLevel = "block"
)

// Language identifies a natural language a rule supports.
type Language string

// Known languages.
const (
	LangJa Language = "ja"
	LangEn Language = "en"
	LangZh Language = "zh"
	LangKo Language = "ko"
)

// Capability names an analysis input a rule consumes. Rules that declare no
// capabilities receive neither tokens nor sentences, which lets the driver
// skip the analysis entirely.
type Capability string

const (
	// CapMorphology requests morphological tokens.
	CapMorphology Capability = "morphology"
	// CapSentences requests sentence segments.
	CapSentences Capability = "sentences"
)

// Manifest is a rule module's self-description, returned by its
// get_manifest export as JSON.
type Manifest struct {
	Name           string          `json:"name"`
	Version        string          `json:"version"`
	Description    string          `json:"description,omitempty"`
	Fixable        bool            `json:"fixable"`
	NodeTypes      []string        `json:"node_types,omitempty"`
	IsolationLevel IsolationLevel  `json:"isolation_level"`
	Schema         json.RawMessage `json:"schema,omitempty"`
	Languages      []Language      `json:"languages,omitempty"`
	Capabilities   []Capability    `json:"capabilities,omitempty"`

	// Encoding selects the wire framing this rule speaks. Empty means JSON.
	Encoding Encoding `json:"encoding,omitempty"`

	// Permissions is reserved for a future version. Any declaration is
	// rejected at load time.
	Permissions json.RawMessage `json:"permissions,omitempty"`
}

// ParseManifest decodes and validates a manifest payload.
func ParseManifest(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, &RuleError{Kind: ErrManifestInvalid, Err: err}
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks structural requirements on the manifest.
func (m *Manifest) Validate() error {
	if m.Name == "" {
		return manifestInvalid("manifest has no name")
	}
	if m.Version == "" {
		return manifestInvalid(fmt.Sprintf("rule %q has no version", m.Name))
	}
	switch m.IsolationLevel {
	case IsolationGlobal, IsolationBlock:
	case "":
		m.IsolationLevel = IsolationGlobal
	default:
		return manifestInvalid(fmt.Sprintf(
			"rule %q: unknown isolation level %q", m.Name, m.IsolationLevel))
	}
	for _, nt := range m.NodeTypes {
		if _, ok := ast.NodeTypeFromString(nt); !ok {
			return manifestInvalid(fmt.Sprintf(
				"rule %q: unknown node type %q", m.Name, nt))
		}
	}
	switch m.Encoding {
	case "", EncodingJSON, EncodingMsgpack:
	default:
		return manifestInvalid(fmt.Sprintf(
			"rule %q: unknown encoding %q", m.Name, m.Encoding))
	}
	if len(m.Permissions) > 0 && string(m.Permissions) != "null" {
		return manifestInvalid(fmt.Sprintf(
			"rule %q declares permissions, which are not supported", m.Name))
	}
	return nil
}

// NeedsMorphology reports whether the rule consumes tokens.
func (m *Manifest) NeedsMorphology() bool {
	for _, c := range m.Capabilities {
		if c == CapMorphology {
			return true
		}
	}
	return false
}

// NeedsSentences reports whether the rule consumes sentences.
func (m *Manifest) NeedsSentences() bool {
	for _, c := range m.Capabilities {
		if c == CapSentences {
			return true
		}
	}
	return false
}

// WantsNodeType reports whether the rule asked to receive nodes of type t.
// An empty NodeTypes list means all types.
func (m *Manifest) WantsNodeType(t ast.NodeType) bool {
	if len(m.NodeTypes) == 0 {
		return true
	}
	name := t.String()
	for _, nt := range m.NodeTypes {
		if nt == name {
			return true
		}
	}
	return false
}

func manifestInvalid(msg string) error {
	return &RuleError{Kind: ErrManifestInvalid, Err: fmt.Errorf("%s", msg)}
}
