package importer

import (
	"bytes"
	"encoding/csv"
	"errors"
	"io"
	"strings"

	"bookkeeping/models"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

type csvRecord struct {
	raw        map[string]string
	normalized map[string]string
}

// readCSV parses a header-led CSV file. Header names are lower-cased and
// trimmed for lookups; the raw map keeps the file's own spelling.
func readCSV(data []byte) ([]csvRecord, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	r.LazyQuotes = true

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return nil, errors.New("CSV header row is required.")
	}
	if err != nil {
		return nil, err
	}
	keys := make([]string, len(header))
	for i, h := range header {
		keys[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var out []csvRecord
	for {
		rec, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		row := csvRecord{
			raw:        make(map[string]string, len(header)),
			normalized: make(map[string]string, len(header)),
		}
		for i, h := range header {
			v := ""
			if i < len(rec) {
				v = rec[i]
			}
			row.raw[h] = v
			row.normalized[keys[i]] = strings.TrimSpace(v)
		}
		out = append(out, row)
	}
	return out, nil
}

// mapRow projects a normalized row onto semantic fields.
func mapRow(normalized map[string]string, mapping map[string]string) map[string]string {
	mapped := make(map[string]string, len(mapping))
	for column, target := range mapping {
		if target == models.FieldIgnore {
			continue
		}
		mapped[target] = normalized[strings.ToLower(strings.TrimSpace(column))]
	}
	return mapped
}
