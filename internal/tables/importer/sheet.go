package importer

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/gm-tools/encounterbot/internal/tables"
)

// rowData is one non-blank data row with its spreadsheet row number.
type rowData struct {
	num   int
	cells []string
}

// sheetData is a parsed sheet: normalised header name -> column index,
// plus the surviving data rows.
type sheetData struct {
	headers map[string]int
	rows    []rowData
}

func (s sheetData) has(col string) bool {
	_, ok := s.headers[col]
	return ok
}

// cell returns the trimmed cell under the named column, or "" when the
// column is absent or the row is short.
func (s sheetData) cell(r rowData, col string) string {
	idx, ok := s.headers[col]
	if !ok || idx >= len(r.cells) {
		return ""
	}
	return strings.TrimSpace(r.cells[idx])
}

// cellInt coerces the cell under the named column to an integer, or
// nil for blanks and non-integral values.
func (s sheetData) cellInt(r rowData, col string) *int {
	return toInt(s.cell(r, col))
}

// toInt applies the integer-or-blank coercion rule: integers and
// integral floats (in either numeric or text form) accept; everything
// else is nil.
func toInt(s string) *int {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	if n, err := strconv.Atoi(s); err == nil {
		return &n
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f != float64(int64(f)) {
		return nil
	}
	n := int(f)
	return &n
}

// readSheet loads a sheet into a sheetData. The first non-empty row is
// the header (names trimmed and lowercased, first occurrence wins);
// subsequent rows are data rows with fully blank rows dropped. Row
// numbers are the spreadsheet's own 1-based numbers.
func readSheet(f *excelize.File, name string) (sheetData, error) {
	raw, err := f.GetRows(name)
	if err != nil {
		return sheetData{}, fmt.Errorf("reading sheet %q: %w", name, err)
	}

	sd := sheetData{headers: make(map[string]int)}

	headerAt := -1
	for i, row := range raw {
		if blankRow(row) {
			continue
		}
		headerAt = i
		for idx, h := range row {
			key := strings.ToLower(strings.TrimSpace(h))
			if key == "" {
				continue
			}
			if _, dup := sd.headers[key]; !dup {
				sd.headers[key] = idx
			}
		}
		break
	}
	if headerAt < 0 {
		return sd, nil
	}

	for i := headerAt + 1; i < len(raw); i++ {
		if blankRow(raw[i]) {
			continue
		}
		sd.rows = append(sd.rows, rowData{num: i + 1, cells: raw[i]})
	}
	return sd, nil
}

func blankRow(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// detectMode determines a sheet's roll mode from column presence.
// Precedence: min/max (both required together), then weight, then
// uniform. Mode-level row errors (min > max, non-positive weight) are
// collected here; a lone min or max column is a sheet error and halts
// mode-specific row parsing for the sheet.
func detectMode(sheet string, sd sheetData) (tables.RollMode, []tables.SheetError) {
	var errs []tables.SheetError

	hasMin := sd.has(tables.ColMin)
	hasMax := sd.has(tables.ColMax)

	if hasMin || hasMax {
		if !hasMin || !hasMax {
			errs = append(errs, tables.SheetError{Sheet: sheet,
				Message: "Range mode requires both 'min' and 'max' columns."})
			return tables.ModeRange, errs
		}
		for _, r := range sd.rows {
			mi := sd.cellInt(r, tables.ColMin)
			ma := sd.cellInt(r, tables.ColMax)
			if mi == nil || ma == nil {
				continue
			}
			if *mi > *ma {
				errs = append(errs, tables.SheetError{Sheet: sheet, Row: r.num,
					Message: fmt.Sprintf("Invalid range: min %d is greater than max %d.", *mi, *ma)})
			}
		}
		return tables.ModeRange, errs
	}

	if sd.has(tables.ColWeight) {
		for _, r := range sd.rows {
			w := sd.cellInt(r, tables.ColWeight)
			if w == nil {
				continue
			}
			if *w <= 0 {
				errs = append(errs, tables.SheetError{Sheet: sheet, Row: r.num,
					Message: fmt.Sprintf("Invalid weight %d. Must be a positive integer.", *w)})
			}
		}
		return tables.ModeWeight, errs
	}

	return tables.ModeUniform, errs
}

// validateRanges flags overlapping [min, max] intervals. Valid rows
// are sorted by (min, max); a row whose min falls at or below the
// previous row's max is an overlap error naming both rows.
func validateRanges(sheet string, sd sheetData) []tables.SheetError {
	type span struct {
		min, max, row int
	}
	var spans []span
	for _, r := range sd.rows {
		mi := sd.cellInt(r, tables.ColMin)
		ma := sd.cellInt(r, tables.ColMax)
		if mi == nil || ma == nil {
			continue
		}
		spans = append(spans, span{min: *mi, max: *ma, row: r.num})
	}

	sort.Slice(spans, func(i, j int) bool {
		if spans[i].min != spans[j].min {
			return spans[i].min < spans[j].min
		}
		return spans[i].max < spans[j].max
	})

	var errs []tables.SheetError
	for i := 1; i < len(spans); i++ {
		prev, cur := spans[i-1], spans[i]
		if cur.min <= prev.max {
			errs = append(errs, tables.SheetError{Sheet: sheet, Row: cur.row,
				Message: fmt.Sprintf("Overlapping ranges with row %d: %d-%d overlaps %d-%d.",
					prev.row, prev.min, prev.max, cur.min, cur.max)})
		}
	}
	return errs
}
