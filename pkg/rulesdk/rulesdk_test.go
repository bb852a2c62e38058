package rulesdk

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseRequest(t *testing.T) {
	payload := []byte(`{
		"nodes": [{"type":"Paragraph","range":[0,11],"children":[
			{"type":"Str","range":[0,11],"value":"hello world"}]}],
		"config": {"max": 3},
		"source": "hello world",
		"file_path": "a.md",
		"sentences": [{"text":"hello world","span":{"start":0,"end":11}}]
	}`)

	req, err := ParseRequest(payload)
	require.NoError(t, err)
	require.Len(t, req.Nodes, 1)
	assert.Equal(t, "Paragraph", req.Nodes[0].Type)
	assert.Equal(t, [2]uint32{0, 11}, req.Nodes[0].Range)
	require.Len(t, req.Nodes[0].Children, 1)
	assert.Equal(t, "hello world", req.Nodes[0].Children[0].Value)
	assert.Equal(t, "a.md", req.FilePath)
	require.Len(t, req.Sentences, 1)
	assert.Equal(t, uint32(11), req.Sentences[0].Span.End)

	var cfg struct {
		Max int `json:"max"`
	}
	require.NoError(t, json.Unmarshal(req.Config, &cfg))
	assert.Equal(t, 3, cfg.Max)
}

func TestParseRequestInvalid(t *testing.T) {
	_, err := ParseRequest([]byte("nope"))
	assert.Error(t, err)
}

func TestResponseShape(t *testing.T) {
	resp := LintResponse{Diagnostics: []Diagnostic{{
		Message:  "too long",
		Span:     Span{Start: 4, End: 9},
		Severity: "warning",
		Fix:      &Fix{Span: Span{Start: 4, End: 9}, Text: ""},
	}}}

	data, err := json.Marshal(&resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"diagnostics":[{
		"rule_id":"",
		"message":"too long",
		"span":{"start":4,"end":9},
		"severity":"warning",
		"fix":{"span":{"start":4,"end":9},"text":""}
	}]}`, string(data))
}

func TestAllocAndRoundTrip(t *testing.T) {
	data := []byte("request bytes")
	ptr := Alloc(uint32(len(data)))
	require.NotZero(t, ptr)

	copy(Input(ptr, uint32(len(data))), data)
	assert.Equal(t, data, Input(ptr, uint32(len(data))))
}

func TestOutputPacking(t *testing.T) {
	packed := Output([]byte("xyz"))
	require.NotZero(t, packed)
	ptr := uint32(packed >> 32)
	length := uint32(packed)
	assert.Equal(t, uint32(3), length)
	assert.Equal(t, []byte("xyz"), Input(ptr, length))

	assert.Zero(t, Output(nil))
}
