package export

import (
	"bytes"
	"fmt"

	"github.com/gocarina/gocsv"
)

// CSVExporter renders csv-tagged struct slices into CSV bytes.
type CSVExporter struct {
	delimiter rune
}

// NewCSVExporter builds a CSV exporter. A zero delimiter falls back to a comma.
func NewCSVExporter(delimiter rune) *CSVExporter {
	if delimiter == 0 {
		delimiter = ','
	}
	return &CSVExporter{delimiter: delimiter}
}

// Render produces CSV encoded bytes for a slice of structs carrying `csv` tags.
func (e *CSVExporter) Render(rows interface{}) ([]byte, error) {
	if rows == nil {
		return nil, fmt.Errorf("csv requires a slice of rows")
	}
	buf := &bytes.Buffer{}
	writer := gocsv.DefaultCSVWriter(buf)
	writer.Comma = e.delimiter
	if err := gocsv.MarshalCSV(rows, writer); err != nil {
		return nil, fmt.Errorf("marshal csv rows: %w", err)
	}
	return buf.Bytes(), nil
}

// ContentType returns the MIME type served with rendered payloads.
func (e *CSVExporter) ContentType() string {
	return "text/csv"
}
