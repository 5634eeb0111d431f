package output

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type deviceView struct {
	Key    string `json:"key" yaml:"key"`
	Events int64  `json:"events" yaml:"events"`
}

func TestPrintJSON(t *testing.T) {
	var buf bytes.Buffer
	err := PrintJSON(&buf, deviceView{Key: "ha:edge-fw", Events: 42})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, `"key": "ha:edge-fw"`)
	assert.Contains(t, out, `"events": 42`)
	assert.True(t, strings.HasSuffix(out, "\n"))
}

func TestPrintJSONCompact(t *testing.T) {
	var buf bytes.Buffer
	err := PrintJSONCompact(&buf, deviceView{Key: "edge-fw", Events: 1})
	require.NoError(t, err)

	// single line, no indentation
	assert.Equal(t, 1, strings.Count(buf.String(), "\n"))
	assert.NotContains(t, buf.String(), "  ")
}

func TestPrintYAML(t *testing.T) {
	var buf bytes.Buffer
	err := PrintYAML(&buf, deviceView{Key: "edge-fw", Events: 42})
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "key: edge-fw")
	assert.Contains(t, buf.String(), "events: 42")
}

func TestPrintYAMLNested(t *testing.T) {
	var buf bytes.Buffer
	data := map[string]any{
		"devices": []deviceView{{Key: "a", Events: 1}, {Key: "b", Events: 2}},
	}
	err := PrintYAML(&buf, data)
	require.NoError(t, err)

	assert.Contains(t, buf.String(), "devices:")
	assert.Contains(t, buf.String(), "  - key: a")
}
