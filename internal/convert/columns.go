// Package convert implements the spreadsheet-to-ledger pipeline core:
// row extraction, period validation and ledger text generation. It has
// no persistence dependencies and is a pure function of its inputs.
package convert

import (
	"fmt"

	"github.com/xuri/excelize/v2"
)

// dayColumnIndex is the fixed zero-based column holding the day of the
// movement. The uploaded template always carries it in column F; only
// the remaining columns are configurable per layout.
const dayColumnIndex = 5

// Columns holds zero-based source column indexes for one layout.
type Columns struct {
	Date        int
	Value       int
	Debit       int
	Credit      int
	History     int
	HistoryCode int
}

// ColumnIndex converts a spreadsheet column letter (A, B, ..., AA) into
// a zero-based index.
func ColumnIndex(letter string) (int, error) {
	n, err := excelize.ColumnNameToNumber(letter)
	if err != nil {
		return 0, fmt.Errorf("convert: column %q: %w", letter, err)
	}
	return n - 1, nil
}

// max index the extractor requires a row to reach; history columns are
// optional and default to empty when the row is shorter.
func (c Columns) required() int {
	required := c.Date
	for _, idx := range []int{dayColumnIndex, c.Value, c.Debit, c.Credit} {
		if idx > required {
			required = idx
		}
	}
	return required
}
