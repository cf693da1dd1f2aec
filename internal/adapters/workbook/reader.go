// Package workbook reads a spreadsheet export into the same raw shape the
// script backend serves: one array of header-keyed rows per sheet.
package workbook

import (
	"fmt"
	"io"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/xuri/excelize/v2"
)

func ReadFile(path string) (map[string]any, error) {
	if !strings.HasSuffix(strings.ToLower(path), ".xlsx") {
		return nil, fmt.Errorf("invalid file type: only .xlsx files are allowed")
	}
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, fmt.Errorf("unable to open Excel file: %w", err)
	}
	defer f.Close()
	return read(f)
}

func Read(r io.Reader) (map[string]any, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("unable to open Excel file: %w", err)
	}
	defer f.Close()
	return read(f)
}

func read(f *excelize.File) (map[string]any, error) {
	out := map[string]any{}
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("unable to read sheet %s: %w", sheet, err)
		}
		if len(rows) == 0 {
			continue
		}
		headers := rows[0]
		list := make([]any, 0, len(rows)-1)
		for _, row := range rows[1:] {
			rec := map[string]any{}
			for i, cell := range row {
				if i >= len(headers) || strings.TrimSpace(headers[i]) == "" {
					continue
				}
				if cell = strings.TrimSpace(cell); cell != "" {
					rec[strings.TrimSpace(headers[i])] = cell
				}
			}
			if len(rec) > 0 {
				list = append(list, rec)
			}
		}
		out[sheet] = list
		log.Debug().Str("sheet", sheet).Int("rows", len(list)).Msg("sheet read")
	}
	return out, nil
}
