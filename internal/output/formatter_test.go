package output

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFormat(t *testing.T) {
	assert.Equal(t, FormatJSON, ParseFormat("json"))
	assert.Equal(t, FormatJSON, ParseFormat("JSON"))
	assert.Equal(t, FormatTOON, ParseFormat("toon"))
	assert.Equal(t, FormatText, ParseFormat("text"))
	assert.Equal(t, FormatText, ParseFormat(""))
	assert.Equal(t, FormatText, ParseFormat("table"))
}

func TestTableRenderText(t *testing.T) {
	var buf bytes.Buffer
	table := NewTable("Contexts", []string{"Root", "Files"}, [][]string{
		{"/work/app", "12"},
		{"/work/lib", "3"},
	}, nil, nil)

	require.NoError(t, table.RenderText(&buf, false))
	out := buf.String()
	assert.Contains(t, out, "Contexts")
	assert.Contains(t, out, "/work/app")
	assert.Contains(t, out, "12")
}

func TestTableRenderData(t *testing.T) {
	table := NewTable("", []string{"Root", "Files"}, [][]string{
		{"/work/app", "12"},
	}, nil, nil)

	data, ok := table.RenderData().([]map[string]string)
	require.True(t, ok)
	require.Len(t, data, 1)
	assert.Equal(t, "/work/app", data[0]["Root"])
	assert.Equal(t, "12", data[0]["Files"])
}

func TestTableRenderDataPrefersWrappedData(t *testing.T) {
	wrapped := map[string]int{"files": 12}
	table := NewTable("", nil, nil, nil, wrapped)
	assert.Equal(t, wrapped, table.RenderData())
}

func TestFormatterJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f, err := NewFormatter(FormatJSON, path, true)
	require.NoError(t, err)
	assert.False(t, f.Colored(), "file output disables color")

	require.NoError(t, f.Output(map[string]int{"entries": 3}))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `{"entries": 3}`, string(data))
}

func TestFormatterTOONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.toon")
	f, err := NewFormatter(FormatTOON, path, false)
	require.NoError(t, err)

	require.NoError(t, f.Output(map[string]int{"entries": 3}))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "entries")
}

func TestFormatterSerializesRenderable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.json")
	f, err := NewFormatter(FormatJSON, path, false)
	require.NoError(t, err)

	table := NewTable("", []string{"Root"}, [][]string{{"/work/app"}}, nil, nil)
	require.NoError(t, f.Output(table))
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.JSONEq(t, `[{"Root": "/work/app"}]`, string(data))
}
