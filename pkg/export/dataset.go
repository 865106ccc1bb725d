package export

import "fmt"

// Dataset is a titled table with positional rows.
type Dataset struct {
	Title   string
	Headers []string
	Rows    [][]string
	// Shaded marks column indexes rendered as fixed breaks.
	Shaded map[int]bool
}

func (d Dataset) validate() error {
	if len(d.Headers) == 0 {
		return fmt.Errorf("dataset requires at least one header")
	}
	for i, row := range d.Rows {
		if len(row) > len(d.Headers) {
			return fmt.Errorf("row %d has %d cells for %d headers", i, len(row), len(d.Headers))
		}
	}
	return nil
}

func cell(row []string, i int) string {
	if i < len(row) {
		return row[i]
	}
	return ""
}
