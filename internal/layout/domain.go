// Package layout stores the named column layouts that describe where
// each field lives in an uploaded spreadsheet.
package layout

import (
	"github.com/contaflow/contaflow/internal/convert"
)

// Config names the spreadsheet column letter for each extracted field.
type Config struct {
	ID             int64
	Name           string
	DateCol        string
	ValueCol       string
	HistoryCol     string
	HistoryCodeCol string
	DebitCol       string
	CreditCol      string
}

// Columns resolves the configured letters into extractor indexes.
func (c Config) Columns() (convert.Columns, error) {
	var cols convert.Columns
	var err error
	if cols.Date, err = convert.ColumnIndex(c.DateCol); err != nil {
		return convert.Columns{}, err
	}
	if cols.Value, err = convert.ColumnIndex(c.ValueCol); err != nil {
		return convert.Columns{}, err
	}
	if cols.Debit, err = convert.ColumnIndex(c.DebitCol); err != nil {
		return convert.Columns{}, err
	}
	if cols.Credit, err = convert.ColumnIndex(c.CreditCol); err != nil {
		return convert.Columns{}, err
	}
	if cols.History, err = convert.ColumnIndex(c.HistoryCol); err != nil {
		return convert.Columns{}, err
	}
	if cols.HistoryCode, err = convert.ColumnIndex(c.HistoryCodeCol); err != nil {
		return convert.Columns{}, err
	}
	return cols, nil
}
