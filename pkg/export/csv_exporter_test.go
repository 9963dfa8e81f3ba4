package export

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sessionRow struct {
	Subject string `csv:"subject"`
	Room    string `csv:"room"`
	Hours   int    `csv:"duration"`
}

func TestCSVExporterRender(t *testing.T) {
	exporter := NewCSVExporter(0)

	payload, err := exporter.Render([]sessionRow{{Subject: "Math", Room: "L001", Hours: 2}})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(payload)), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "subject,room,duration", lines[0])
	assert.Equal(t, "Math,L001,2", lines[1])
}

func TestCSVExporterCustomDelimiter(t *testing.T) {
	exporter := NewCSVExporter(';')

	payload, err := exporter.Render([]sessionRow{{Subject: "Physics", Room: "LAB1", Hours: 1}})
	require.NoError(t, err)
	assert.Contains(t, string(payload), "Physics;LAB1;1")
}

func TestCSVExporterRejectsNil(t *testing.T) {
	_, err := NewCSVExporter(',').Render(nil)
	require.Error(t, err)
}
