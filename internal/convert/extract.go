package convert

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/unicode/norm"
)

var (
	// ErrFileDecode indicates the uploaded payload is not a readable
	// spreadsheet.
	ErrFileDecode = errors.New("convert: spreadsheet decode failed")
	// ErrRowMalformed reports a row rejected in strict mode.
	ErrRowMalformed = errors.New("convert: malformed row")
)

// Row is one normalised accounting movement extracted from the upload.
type Row struct {
	Date             string // DD/MM/YYYY, or the raw anchor text when unparseable
	Amount           float64
	RawDebitAccount  string
	RawCreditAccount string
	History          string
	HistoryCode      string
}

// Extractor decodes uploaded spreadsheet payloads into Rows according
// to a column layout. In strict mode a malformed row fails the whole
// extraction; otherwise malformed rows are counted and skipped.
type Extractor struct {
	cols   Columns
	strict bool
}

// NewExtractor constructs an Extractor for the given columns.
func NewExtractor(cols Columns, strict bool) *Extractor {
	return &Extractor{cols: cols, strict: strict}
}

// Parse decodes the base64 payload (optionally carrying a data-URI
// prefix) and returns the extracted rows along with the number of rows
// dropped. The first row of the first sheet is skipped as a header.
func (e *Extractor) Parse(fileB64 string) ([]Row, int, error) {
	payload := fileB64
	if i := strings.LastIndex(payload, ","); i >= 0 {
		payload = payload[i+1:]
	}
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrFileDecode, err)
	}

	f, err := excelize.OpenReader(bytes.NewReader(raw))
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrFileDecode, err)
	}
	defer func() { _ = f.Close() }()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, 0, fmt.Errorf("%w: workbook has no sheets", ErrFileDecode)
	}
	cells, err := f.GetRows(sheets[0], excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrFileDecode, err)
	}
	if len(cells) == 0 {
		return nil, 0, nil
	}

	required := e.cols.required()
	var rows []Row
	dropped := 0
	for i, record := range cells[1:] {
		rowNum := i + 2
		row, ok := e.extractRow(record, required)
		if !ok {
			if e.strict {
				return nil, dropped + 1, fmt.Errorf("%w: row %d", ErrRowMalformed, rowNum)
			}
			dropped++
			continue
		}
		rows = append(rows, row)
	}
	return rows, dropped, nil
}

func (e *Extractor) extractRow(record []string, required int) (Row, bool) {
	if len(record) <= required {
		return Row{}, false
	}

	amountText := strings.ReplaceAll(strings.TrimSpace(record[e.cols.Value]), ",", ".")
	amount, err := strconv.ParseFloat(amountText, 64)
	if err != nil {
		return Row{}, false
	}

	debit := NormalizeAccount(record[e.cols.Debit])
	credit := NormalizeAccount(record[e.cols.Credit])
	if debit == "" || credit == "" {
		return Row{}, false
	}

	return Row{
		Date:             formatDate(record[e.cols.Date], record[dayColumnIndex]),
		Amount:           amount,
		RawDebitAccount:  debit,
		RawCreditAccount: credit,
		History:          normalizeText(cellAt(record, e.cols.History)),
		HistoryCode:      strings.TrimSpace(cellAt(record, e.cols.HistoryCode)),
	}, true
}

func cellAt(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return record[idx]
}

func normalizeText(s string) string {
	return strings.TrimSpace(norm.NFC.String(s))
}

// NormalizeAccount renders numeric account cells without a fractional
// part as plain integers (3145.0 -> "3145"); anything else is trimmed.
func NormalizeAccount(cell string) string {
	s := strings.TrimSpace(cell)
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f == math.Trunc(f) && math.Abs(f) < 1e15 {
			return strconv.FormatInt(int64(f), 10)
		}
	}
	return s
}

// formatDate reconstructs DD/MM/YYYY from the period anchor cell
// (month and year) and the day-of-movement cell. An unparseable anchor
// passes through unchanged; an unparseable day defaults to 1.
func formatDate(anchor, day string) string {
	s := strings.TrimSpace(anchor)

	var year, month int
	if serial, err := strconv.ParseFloat(s, 64); err == nil {
		if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
			year, month = t.Year(), int(t.Month())
		}
	}
	if year == 0 && len(s) >= 10 {
		if t, err := time.Parse("2006-01-02", s[:10]); err == nil {
			year, month = t.Year(), int(t.Month())
		}
	}
	if year == 0 {
		return s
	}

	d := 1
	if f, err := strconv.ParseFloat(strings.TrimSpace(day), 64); err == nil {
		d = int(f)
	}
	return fmt.Sprintf("%02d/%02d/%04d", d, month, year)
}
