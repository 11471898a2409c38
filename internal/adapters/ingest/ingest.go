// Package ingest turns weekly metric exports into raw records.
//
// Spreadsheets (.xlsx, .xls) and JSON arrays are accepted. Rows the scoring
// engine must never see (blank identity, unparsable, non-finite or negative
// values) are dropped here and counted by reason.
package ingest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"maps"
	"math"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/extrame/xls"
	"github.com/xuri/excelize/v2"

	"github.com/okian/tom/internal/domain/model"
	"github.com/okian/tom/pkg/metrics"
)

// SkipReason names why a row was dropped.
type SkipReason string

// Skip reasons.
const (
	SkipBlankIdentity SkipReason = "blank_identity"
	SkipUnparsable    SkipReason = "unparsable"
	SkipNonFinite     SkipReason = "non_finite"
	SkipNegative      SkipReason = "negative"
)

// headerScanRows is how many leading rows may hold titles before the header.
const headerScanRows = 10

// xlsMaxRows bounds ReadAllCells on legacy workbooks.
const xlsMaxRows = 100_000

// Result is the outcome of parsing one export.
type Result struct {
	Records []model.RawRecord
	Skipped map[SkipReason]int
}

// SkippedTotal returns the number of dropped rows.
func (r *Result) SkippedTotal() int {
	n := 0
	for _, c := range r.Skipped {
		n += c
	}
	return n
}

func (r *Result) skip(reason SkipReason) {
	if r.Skipped == nil {
		r.Skipped = make(map[SkipReason]int)
	}
	r.Skipped[reason]++
}

func (r *Result) record() {
	for reason, n := range r.Skipped {
		metrics.RecordRowsSkipped(string(reason), n)
	}
}

var identityHeaders = []string{
	"identity", "name", "employee", "employee name", "associate", "login",
	"username", "user", "badge", "badge id", "email",
}

var priorHeaders = []string{
	"prior", "previous", "last week", "prior week", "previous week", "prior value", "before",
}

var currentHeaders = []string{
	"current", "this week", "current week", "current value", "now", "after",
}

// ParseFile opens path and parses it by extension.
func ParseFile(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()
	return Parse(f, filepath.Base(path))
}

// Parse reads an export; filename selects the format.
func Parse(reader io.Reader, filename string) (*Result, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	switch ext := strings.ToLower(filepath.Ext(filename)); ext {
	case ".json":
		return ParseJSON(data)
	case ".xls":
		workbook, err := xls.OpenReader(bytes.NewReader(data), "utf-8")
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", filename, err)
		}
		if workbook.NumSheets() == 0 {
			return nil, fmt.Errorf("%s: no worksheet found", filename)
		}
		return ParseRows(workbook.ReadAllCells(xlsMaxRows))
	case ".xlsx", ".xlsm":
		file, err := excelize.OpenReader(bytes.NewReader(data))
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", filename, err)
		}
		defer func() { _ = file.Close() }()

		sheet := file.GetSheetName(0)
		if sheet == "" {
			return nil, fmt.Errorf("%s: no worksheet found", filename)
		}
		rows, err := file.GetRows(sheet)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", filename, err)
		}
		return ParseRows(rows)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ParseRows parses spreadsheet cells. The header is the first of the leading
// rows that names an identity, a prior and a current column.
func ParseRows(rows [][]string) (*Result, error) {
	if len(rows) == 0 {
		return nil, ErrEmptySheet
	}

	headerRow, idIdx, priorIdx, currentIdx := -1, -1, -1, -1
	for i := 0; i < len(rows) && i < headerScanRows; i++ {
		index := make(map[string]int, len(rows[i]))
		for col, h := range rows[i] {
			if _, dup := index[normalizeHeader(h)]; !dup {
				index[normalizeHeader(h)] = col
			}
		}
		idIdx, priorIdx, currentIdx = lookup(index, identityHeaders), lookup(index, priorHeaders), lookup(index, currentHeaders)
		if idIdx >= 0 && priorIdx >= 0 && currentIdx >= 0 {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil, fmt.Errorf("%w: need identity, prior and current headers", ErrMissingColumn)
	}

	res := &Result{}
	for _, row := range rows[headerRow+1:] {
		if blankRow(row) {
			continue
		}
		res.add(cellValue(row, idIdx), cellValue(row, priorIdx), cellValue(row, currentIdx))
	}
	res.record()
	return res, nil
}

// ParseJSON parses an array of objects such as
// {"identity": "asmith", "prior": 92.5, "current": "95%"}. When several keys
// normalize to the same header the first in sorted key order wins.
func ParseJSON(data []byte) (*Result, error) {
	var objects []map[string]any
	if err := json.Unmarshal(data, &objects); err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}

	res := &Result{}
	for _, obj := range objects {
		fields := make(map[string]int, len(obj))
		values := make([]string, 0, len(obj))
		for _, k := range slices.Sorted(maps.Keys(obj)) {
			h := normalizeHeader(k)
			if _, dup := fields[h]; dup {
				continue
			}
			fields[h] = len(values)
			values = append(values, jsonString(obj[k]))
		}
		res.add(
			cellValue(values, lookup(fields, identityHeaders)),
			cellValue(values, lookup(fields, priorHeaders)),
			cellValue(values, lookup(fields, currentHeaders)),
		)
	}
	res.record()
	return res, nil
}

func (r *Result) add(identity, prior, current string) {
	if identity == "" {
		r.skip(SkipBlankIdentity)
		return
	}
	p, errP := parseValue(prior)
	c, errC := parseValue(current)
	switch {
	case errP != nil || errC != nil:
		r.skip(SkipUnparsable)
	case !finite(p) || !finite(c):
		r.skip(SkipNonFinite)
	case p < 0 || c < 0:
		r.skip(SkipNegative)
	default:
		r.Records = append(r.Records, model.RawRecord{Identity: identity, PriorValue: p, CurrentValue: c})
	}
}

// parseValue accepts plain numbers, "95%" and "1,234.5".
func parseValue(s string) (float64, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "%")
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, " ", "")
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}

func jsonString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	default:
		return ""
	}
}

func lookup(index map[string]int, aliases []string) int {
	for _, a := range aliases {
		if i, ok := index[a]; ok {
			return i
		}
	}
	return -1
}

func normalizeHeader(h string) string {
	h = strings.ToLower(strings.TrimSpace(h))
	h = strings.NewReplacer("_", " ", "-", " ").Replace(h)
	return strings.Join(strings.Fields(h), " ")
}

func cellValue(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

func blankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
