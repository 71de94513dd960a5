package convert

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInvalidPeriod indicates a declared period outside the accepted
// YYYY-MM form or range.
var ErrInvalidPeriod = errors.New("convert: invalid period")

// Period is a declared accounting period (year and month).
type Period struct {
	Year  int
	Month int
}

// NewPeriod parses a YYYY-MM period declaration. Months must fall in
// 1-12 and years in 2000-2100.
func NewPeriod(s string) (Period, error) {
	parts := strings.Split(strings.TrimSpace(s), "-")
	if len(parts) != 2 {
		return Period{}, fmt.Errorf("%w: %q, want YYYY-MM", ErrInvalidPeriod, s)
	}
	year, err := strconv.Atoi(parts[0])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q, want YYYY-MM", ErrInvalidPeriod, s)
	}
	month, err := strconv.Atoi(parts[1])
	if err != nil {
		return Period{}, fmt.Errorf("%w: %q, want YYYY-MM", ErrInvalidPeriod, s)
	}
	if month < 1 || month > 12 {
		return Period{}, fmt.Errorf("%w: month %d", ErrInvalidPeriod, month)
	}
	if year < 2000 || year > 2100 {
		return Period{}, fmt.Errorf("%w: year %d", ErrInvalidPeriod, year)
	}
	return Period{Year: year, Month: month}, nil
}

// String renders the period as MM/YYYY.
func (p Period) String() string {
	return fmt.Sprintf("%02d/%d", p.Month, p.Year)
}

// Contains reports whether a DD/MM/YYYY date string falls inside the
// period. Unparseable dates are a mismatch, not an error.
func (p Period) Contains(date string) bool {
	t, err := time.Parse("02/01/2006", strings.TrimSpace(date))
	if err != nil {
		return false
	}
	return t.Year() == p.Year && int(t.Month()) == p.Month
}

// Violation records one out-of-period row for diagnostics.
type Violation struct {
	RowNumber int
	Date      string
}

// OutOfPeriodError aborts a batch whose upload contains movements
// outside the declared period.
type OutOfPeriodError struct {
	Count    int
	Period   string
	Examples []string
}

func (e *OutOfPeriodError) Error() string {
	suffix := ""
	if e.Count > len(e.Examples) {
		suffix = fmt.Sprintf(" (+%d more)", e.Count-len(e.Examples))
	}
	return fmt.Sprintf("file contains %d movement(s) outside period %s. examples: %s%s",
		e.Count, e.Period, strings.Join(e.Examples, ", "), suffix)
}

// maxPeriodExamples bounds the violations carried in the error message.
const maxPeriodExamples = 5

// Check fails with an OutOfPeriodError when violations were collected.
// It is called once after every row has been evaluated: one offending
// row aborts the whole batch, there is no partial acceptance.
func (p Period) Check(violations []Violation) error {
	if len(violations) == 0 {
		return nil
	}
	examples := make([]string, 0, maxPeriodExamples)
	for _, v := range violations {
		if len(examples) == maxPeriodExamples {
			break
		}
		examples = append(examples, fmt.Sprintf("row %d: %s", v.RowNumber, v.Date))
	}
	return &OutOfPeriodError{Count: len(violations), Period: p.String(), Examples: examples}
}
