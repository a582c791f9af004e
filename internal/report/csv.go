package report

import (
	"bytes"
	"encoding/csv"
)

// csvValueColumns is the widest section minus its field column.
const csvValueColumns = 4

var csvHeader = []string{"section", "field", "value_1", "value_2", "value_3", "value_4"}

// renderCSV flattens every section into one table keyed by section name.
func renderCSV(p Portfolio) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return nil, err
	}
	for _, s := range p.Sections() {
		for _, row := range s.Rows {
			record := make([]string, 0, len(csvHeader))
			record = append(record, s.Name)
			record = append(record, row...)
			for len(record) < 2+csvValueColumns {
				record = append(record, "")
			}
			if err := w.Write(record); err != nil {
				return nil, err
			}
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
