// Package export renders report datasets into downloadable CSV and PDF
// documents.
package export

// Dataset is the column-ordered tabular form every report reduces to
// before rendering. Row values are keyed by header name; missing keys
// render as empty cells.
type Dataset struct {
	Headers []string
	Rows    []map[string]string
}

// record flattens one row into a slice following the header order.
func (d Dataset) record(row map[string]string) []string {
	out := make([]string, len(d.Headers))
	for i, header := range d.Headers {
		out[i] = row[header]
	}
	return out
}
