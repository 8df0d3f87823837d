package export

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func rosterTable() Table {
	return Table{
		Title:   "Registrations",
		Columns: []string{"name", "role", "status"},
		Rows: []map[string]string{
			{"name": "Jane Doe", "role": "learner", "status": "pending"},
			{"name": "Sam, Jr", "role": "teacher"},
		},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)

	f, err = ParseFormat(" PDF ")
	require.NoError(t, err)
	assert.Equal(t, FormatPDF, f)
	assert.Equal(t, "application/pdf", f.ContentType())

	_, err = ParseFormat("xlsx")
	assert.Error(t, err)
}

func TestCSVRenderer(t *testing.T) {
	out, err := RendererFor(FormatCSV).Render(rosterTable())
	require.NoError(t, err)
	assert.Equal(t, "name,role,status\nJane Doe,learner,pending\n\"Sam, Jr\",teacher,\n", string(out))

	_, err = NewCSVRenderer().Render(Table{})
	assert.Error(t, err)
}

func TestPDFRenderer(t *testing.T) {
	r := NewPDFRenderer()
	r.now = func() time.Time { return time.Date(2026, 1, 2, 3, 4, 0, 0, time.UTC) }

	table := rosterTable()
	for i := 0; i < 60; i++ {
		table.Rows = append(table.Rows, map[string]string{"name": "Learner", "role": "learner", "status": "approved"})
	}
	out, err := r.Render(table)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF")))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcdefg...", truncate("abcdefghijklmnop", 10))
}
