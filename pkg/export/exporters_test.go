package export

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCSVExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"course_id", "name", "due_at"},
		Rows: []map[string]string{
			{"course_id": "c-1", "name": "Essay, draft", "due_at": "2026-06-01T00:00:00Z"},
			{"course_id": "c-2", "name": ""},
		},
	}

	out, err := NewCSVExporter().Render(data)
	require.NoError(t, err)
	require.Equal(t, "course_id,name,due_at\nc-1,\"Essay, draft\",2026-06-01T00:00:00Z\nc-2,,\n", string(out))
}

func TestCSVExporterRequiresColumns(t *testing.T) {
	_, err := NewCSVExporter().Render(Dataset{})
	require.Error(t, err)
}

func TestPDFExporterRender(t *testing.T) {
	data := Dataset{
		Headers: []string{"name", "due_at"},
		Rows:    []map[string]string{{"name": "Quiz 1", "due_at": "2026-06-01"}},
	}

	out, err := NewPDFExporter().Render(data, "Course Dates")
	require.NoError(t, err)
	require.Greater(t, len(out), 100)
	require.Equal(t, "%PDF", string(out[:4]))
}

func TestPDFExporterHandlesWideTables(t *testing.T) {
	data := Dataset{
		Headers: []string{"a", "b", "c", "d", "e", "f", "g", "h"},
		Rows:    []map[string]string{{"a": "1", "h": "8"}},
	}

	out, err := NewPDFExporter().Render(data, "")
	require.NoError(t, err)
	require.Equal(t, "%PDF", string(out[:4]))
}
