package ast

//go:generate stringer -type=NodeType -trimprefix=Node

// NodeType classifies a node in the document tree. The set is closed: parsers
// map everything they produce onto it.
type NodeType uint8

// Block-level and inline-level node types.
const (
	TypeDocument NodeType = iota

	// Block-level.
	TypeParagraph
	TypeHeader
	TypeBlockQuote
	TypeList
	TypeListItem
	TypeCodeBlock
	TypeHorizontalRule
	TypeHTML
	TypeTable
	TypeTableRow
	TypeTableCell
	TypeFootnoteDefinition

	// Inline-level.
	TypeStr
	TypeBreak
	TypeEmphasis
	TypeStrong
	TypeDelete
	TypeCode
	TypeLink
	TypeImage
	TypeLinkReference
	TypeImageReference
	TypeFootnoteReference
	TypeDefinition
)

var nodeTypeNames = [...]string{
	TypeDocument:           "Document",
	TypeParagraph:          "Paragraph",
	TypeHeader:             "Header",
	TypeBlockQuote:         "BlockQuote",
	TypeList:               "List",
	TypeListItem:           "ListItem",
	TypeCodeBlock:          "CodeBlock",
	TypeHorizontalRule:     "HorizontalRule",
	TypeHTML:               "Html",
	TypeTable:              "Table",
	TypeTableRow:           "TableRow",
	TypeTableCell:          "TableCell",
	TypeFootnoteDefinition: "FootnoteDefinition",
	TypeStr:                "Str",
	TypeBreak:              "Break",
	TypeEmphasis:           "Emphasis",
	TypeStrong:             "Strong",
	TypeDelete:             "Delete",
	TypeCode:               "Code",
	TypeLink:               "Link",
	TypeImage:              "Image",
	TypeLinkReference:      "LinkReference",
	TypeImageReference:     "ImageReference",
	TypeFootnoteReference:  "FootnoteReference",
	TypeDefinition:         "Definition",
}

func (t NodeType) String() string {
	if int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return "Unknown"
}

// NodeTypeFromString resolves a node type name as used in manifests and the
// wire format. The second result is false for unknown names.
func NodeTypeFromString(name string) (NodeType, bool) {
	for t, n := range nodeTypeNames {
		if n == name {
			return NodeType(t), true
		}
	}
	return 0, false
}

// IsBlock reports whether this type is block-level.
func (t NodeType) IsBlock() bool {
	return t <= TypeFootnoteDefinition
}

// IsTextBearing reports whether nodes of this type carry a Value.
func (t NodeType) IsTextBearing() bool {
	switch t {
	case TypeStr, TypeCode, TypeCodeBlock:
		return true
	default:
		return false
	}
}

// DataKind discriminates the per-type payload attached to a node.
type DataKind uint8

// Data kinds. DataNone is the zero value.
const (
	DataNone DataKind = iota
	DataHeader
	DataList
	DataCodeBlock
	DataLink
	DataImage
	DataReference
	DataDefinition
)

// NodeData carries the per-type attributes of a node. It is a tagged union:
// which fields are meaningful depends on Kind, so absent attributes cost
// nothing on the node itself (Data is nil for the common case).
type NodeData struct {
	Kind DataKind

	// Header.
	Depth uint8

	// List.
	Ordered bool

	// CodeBlock.
	Lang string

	// Link, Image, Definition.
	URL   string
	Title string

	// Reference, Definition.
	Identifier string
	Label      string
}

// Node is a single node of the document tree. All nodes of one parse are
// allocated from the same Arena; Children and Value point into it (or into
// the original source). A node without per-type attributes has a nil Data.
type Node struct {
	Type     NodeType
	Span     Span
	Value    string
	Children []Node
	Data     *NodeData
}

// HasChildren reports whether the node has at least one child.
func (n *Node) HasChildren() bool {
	return len(n.Children) > 0
}

// IsText reports whether the node carries a text value.
func (n *Node) IsText() bool {
	return n.Type.IsTextBearing()
}

// Depth returns the header depth, or 0 for non-header nodes.
func (n *Node) Depth() uint8 {
	if n.Data != nil && n.Data.Kind == DataHeader {
		return n.Data.Depth
	}
	return 0
}

// Ordered returns the ordered flag for list nodes.
func (n *Node) Ordered() bool {
	return n.Data != nil && n.Data.Kind == DataList && n.Data.Ordered
}

// Lang returns the code block language, or "" when absent.
func (n *Node) Lang() string {
	if n.Data != nil && n.Data.Kind == DataCodeBlock {
		return n.Data.Lang
	}
	return ""
}

// URL returns the url for link, image, and definition nodes.
func (n *Node) URL() string {
	if n.Data == nil {
		return ""
	}
	switch n.Data.Kind {
	case DataLink, DataImage, DataDefinition:
		return n.Data.URL
	default:
		return ""
	}
}

// Identifier returns the identifier for reference and definition nodes.
func (n *Node) Identifier() string {
	if n.Data == nil {
		return ""
	}
	switch n.Data.Kind {
	case DataReference, DataDefinition:
		return n.Data.Identifier
	default:
		return ""
	}
}
