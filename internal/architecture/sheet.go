package architecture

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/leapstack-labs/leapaudit/pkg/core"
)

func readCSV(data []byte) ([][]string, error) {
	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	r := csv.NewReader(bytes.NewReader(data))
	r.FieldsPerRecord = -1
	rows, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse csv: %w", err)
	}
	return rows, nil
}

func readXLSX(data []byte, sheet string) ([][]string, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	if sheet == "" {
		sheet = f.GetSheetName(0)
	}
	if sheet == "" {
		return nil, errors.New("no sheets found in xlsx file")
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	return rows, nil
}

// parseRows maps a header plus records to architecture entries.
// Records with a blank name are skipped.
func parseRows(rows [][]string) ([]core.ArchitectureEntry, error) {
	if len(rows) == 0 {
		return nil, errors.New("architecture resource is empty")
	}

	nameIdx, typeIdx := -1, -1
	for i, h := range rows[0] {
		switch core.Normalize(h) {
		case nameHeader:
			if nameIdx < 0 {
				nameIdx = i
			}
		case typeHeader:
			if typeIdx < 0 {
				typeIdx = i
			}
		}
	}

	var missing []string
	if nameIdx < 0 {
		missing = append(missing, nameHeader)
	}
	if typeIdx < 0 {
		missing = append(missing, typeHeader)
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required columns: %s", strings.Join(missing, ", "))
	}

	entries := make([]core.ArchitectureEntry, 0, len(rows)-1)
	for _, rec := range rows[1:] {
		name := cell(rec, nameIdx)
		if strings.TrimSpace(name) == "" {
			continue
		}
		entries = append(entries, core.NewArchitectureEntry(name, cell(rec, typeIdx)))
	}
	return entries, nil
}

func cell(rec []string, i int) string {
	if i < len(rec) {
		return rec[i]
	}
	return ""
}
