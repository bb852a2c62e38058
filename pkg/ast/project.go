package ast

import (
	"bytes"
	"encoding/json"
	"strconv"
)

// IsParent reports whether this type can contain children. Image and the
// reference types are leaves on the wire even though Image carries a url.
func (t NodeType) IsParent() bool {
	switch t {
	case TypeDocument, TypeParagraph, TypeHeader, TypeBlockQuote, TypeList,
		TypeListItem, TypeEmphasis, TypeStrong, TypeDelete, TypeLink,
		TypeTable, TypeTableRow, TypeTableCell, TypeFootnoteDefinition:
		return true
	default:
		return false
	}
}

// ProjectJSON renders the node in the stable wire form consumed by rule
// plugins:
//
//	{"type": "...", "range": [start, end], "children"?: [...], "value"?: "...", <data fields>}
//
// Field presence and order are part of the cross-language ABI and must not
// change: type, range, children, value, then the per-type data fields.
func (n *Node) ProjectJSON(buf *bytes.Buffer) error {
	buf.WriteByte('{')

	buf.WriteString(`"type":`)
	writeJSONString(buf, n.Type.String())

	buf.WriteString(`,"range":[`)
	buf.WriteString(strconv.FormatUint(uint64(n.Span.Start), 10))
	buf.WriteByte(',')
	buf.WriteString(strconv.FormatUint(uint64(n.Span.End), 10))
	buf.WriteByte(']')

	if n.Type.IsParent() || len(n.Children) > 0 {
		buf.WriteString(`,"children":[`)
		for i := range n.Children {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := n.Children[i].ProjectJSON(buf); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	}

	if n.IsText() {
		buf.WriteString(`,"value":`)
		writeJSONString(buf, n.Value)
	}

	if err := n.projectData(buf); err != nil {
		return err
	}

	buf.WriteByte('}')
	return nil
}

// MarshalJSON implements json.Marshaler using the wire projection.
func (n *Node) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	if err := n.ProjectJSON(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (n *Node) projectData(buf *bytes.Buffer) error {
	d := n.Data
	if d == nil {
		return nil
	}
	field := func(name, value string) {
		buf.WriteString(`,"` + name + `":`)
		writeJSONString(buf, value)
	}
	switch d.Kind {
	case DataHeader:
		buf.WriteString(`,"depth":`)
		buf.WriteString(strconv.Itoa(int(d.Depth)))
	case DataList:
		buf.WriteString(`,"ordered":`)
		buf.WriteString(strconv.FormatBool(d.Ordered))
	case DataCodeBlock:
		if d.Lang != "" {
			field("lang", d.Lang)
		}
	case DataLink, DataImage:
		field("url", d.URL)
		if d.Title != "" {
			field("title", d.Title)
		}
	case DataReference:
		field("identifier", d.Identifier)
		if d.Label != "" {
			field("label", d.Label)
		}
	case DataDefinition:
		field("identifier", d.Identifier)
		field("url", d.URL)
		if d.Title != "" {
			field("title", d.Title)
		}
		if d.Label != "" {
			field("label", d.Label)
		}
	}
	return nil
}

func writeJSONString(buf *bytes.Buffer, s string) {
	// json.Marshal of a string never fails and handles all escaping.
	b, _ := json.Marshal(s)
	buf.Write(b)
}
