package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	tests := []struct {
		input   string
		want    Format
		wantErr bool
	}{
		{input: "table", want: FormatTable},
		{input: "", want: FormatTable},
		{input: "json", want: FormatJSON},
		{input: "JSON", want: FormatJSON},
		{input: "yaml", want: FormatYAML},
		{input: "yml", want: FormatYAML},
		{input: "  table  ", want: FormatTable},
		{input: "csv", wantErr: true},
	}

	for _, tt := range tests {
		t.Run("input "+tt.input, func(t *testing.T) {
			got, err := ParseFormat(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPrinterPrintDispatch(t *testing.T) {
	t.Run("table format renders TableRenderer", func(t *testing.T) {
		var buf bytes.Buffer
		table := NewTableData("KEY", "EVENTS")
		table.AddRow("edge-fw", "42")

		printer := NewPrinter(&buf, FormatTable, false)
		require.NoError(t, printer.Print(table))
		assert.Contains(t, buf.String(), "edge-fw")
		assert.Contains(t, buf.String(), "KEY")
	})

	t.Run("table format falls back to JSON for plain data", func(t *testing.T) {
		var buf bytes.Buffer
		printer := NewPrinter(&buf, FormatTable, false)
		require.NoError(t, printer.Print(map[string]int{"events": 42}))
		assert.Contains(t, buf.String(), `"events": 42`)
	})

	t.Run("json format", func(t *testing.T) {
		var buf bytes.Buffer
		printer := NewPrinter(&buf, FormatJSON, false)
		require.NoError(t, printer.Print(map[string]string{"key": "edge-fw"}))
		assert.Contains(t, buf.String(), `"key": "edge-fw"`)
	})

	t.Run("yaml format", func(t *testing.T) {
		var buf bytes.Buffer
		printer := NewPrinter(&buf, FormatYAML, false)
		require.NoError(t, printer.Print(map[string]string{"key": "edge-fw"}))
		assert.Contains(t, buf.String(), "key: edge-fw")
	})
}

func TestPrinterColoredMessages(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable, true)

	printer.Success("imported")
	printer.Warning("stalled")
	printer.Error("failed")

	out := buf.String()
	assert.Contains(t, out, "\033[32mimported\033[0m")
	assert.Contains(t, out, "\033[33mstalled\033[0m")
	assert.Contains(t, out, "\033[31mfailed\033[0m")
}

func TestPrinterPlainMessages(t *testing.T) {
	var buf bytes.Buffer
	printer := NewPrinter(&buf, FormatTable, false)

	printer.Success("imported")
	assert.Equal(t, "imported\n", buf.String())
	assert.False(t, printer.ColorEnabled())
}

func TestDefaultPrinter(t *testing.T) {
	printer := DefaultPrinter()
	require.NotNil(t, printer)
	assert.Equal(t, FormatTable, printer.Format())
	assert.True(t, printer.ColorEnabled())
}
