package convert

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

// Columns matching the default layout: date=E, value=L, debit=G,
// credit=H, history=O, history code=N.
func testColumns() Columns {
	return Columns{Date: 4, Value: 11, Debit: 6, Credit: 7, History: 14, HistoryCode: 13}
}

func workbookB64(t *testing.T, cells map[string]any) string {
	t.Helper()
	f := excelize.NewFile()
	sheet := f.GetSheetName(0)
	require.NoError(t, f.SetCellValue(sheet, "A1", "header"))
	for cell, value := range cells {
		require.NoError(t, f.SetCellValue(sheet, cell, value))
	}
	buf, err := f.WriteToBuffer()
	require.NoError(t, err)
	require.NoError(t, f.Close())
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func TestParseExtractsNormalizedRow(t *testing.T) {
	payload := workbookB64(t, map[string]any{
		"E2": "2024-03-01",
		"F2": 15,
		"G2": 100,
		"H2": 3145.0,
		"L2": "1234,5",
		"N2": 7,
		"O2": " Compra de materiais ",
	})

	rows, dropped, err := NewExtractor(testColumns(), false).Parse(payload)
	require.NoError(t, err)
	assert.Zero(t, dropped)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "15/03/2024", row.Date)
	assert.InDelta(t, 1234.5, row.Amount, 1e-9)
	assert.Equal(t, "100", row.RawDebitAccount)
	assert.Equal(t, "3145", row.RawCreditAccount)
	assert.Equal(t, "Compra de materiais", row.History)
	assert.Equal(t, "7", row.HistoryCode)
}

func TestParseDayDefaultsToFirst(t *testing.T) {
	payload := workbookB64(t, map[string]any{
		"E2": "2024-03-01",
		"G2": "100",
		"H2": "200",
		"L2": "10",
	})

	rows, _, err := NewExtractor(testColumns(), false).Parse(payload)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "01/03/2024", rows[0].Date)
}

func TestParseSerialDateAnchor(t *testing.T) {
	payload := workbookB64(t, map[string]any{
		"E2": time.Date(2024, time.March, 1, 0, 0, 0, 0, time.UTC),
		"F2": 15,
		"G2": "100",
		"H2": "200",
		"L2": "10",
	})

	rows, _, err := NewExtractor(testColumns(), false).Parse(payload)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "15/03/2024", rows[0].Date)
}

func TestParseUnparseableAnchorPassesThrough(t *testing.T) {
	payload := workbookB64(t, map[string]any{
		"E2": "fechamento marco",
		"F2": 15,
		"G2": "100",
		"H2": "200",
		"L2": "10",
	})

	rows, _, err := NewExtractor(testColumns(), false).Parse(payload)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fechamento marco", rows[0].Date)
}

func TestParseDropsMalformedRows(t *testing.T) {
	payload := workbookB64(t, map[string]any{
		// valid
		"E2": "2024-03-01", "F2": 1, "G2": "100", "H2": "200", "L2": "10",
		// missing credit account
		"E3": "2024-03-01", "F3": 2, "G3": "100", "L3": "10",
		// unparseable value
		"E4": "2024-03-01", "F4": 3, "G4": "100", "H4": "200", "L4": "dez reais",
	})

	rows, dropped, err := NewExtractor(testColumns(), false).Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, 2, dropped)
	require.Len(t, rows, 1)
	assert.Equal(t, "01/03/2024", rows[0].Date)
}

func TestParseStrictModeFailsOnMalformedRow(t *testing.T) {
	payload := workbookB64(t, map[string]any{
		"E2": "2024-03-01", "F2": 1, "G2": "100", "H2": "200", "L2": "10",
		"E3": "2024-03-01", "F3": 2, "G3": "100", "L3": "10",
	})

	_, _, err := NewExtractor(testColumns(), true).Parse(payload)
	require.ErrorIs(t, err, ErrRowMalformed)
	assert.Contains(t, err.Error(), "row 3")
}

func TestParseStripsDataURIPrefix(t *testing.T) {
	payload := workbookB64(t, map[string]any{
		"E2": "2024-03-01", "F2": 1, "G2": "100", "H2": "200", "L2": "10",
	})

	rows, _, err := NewExtractor(testColumns(), false).
		Parse("data:application/vnd.openxmlformats-officedocument.spreadsheetml.sheet;base64," + payload)
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestParseRejectsInvalidPayloads(t *testing.T) {
	ex := NewExtractor(testColumns(), false)

	_, _, err := ex.Parse("!!! not base64 !!!")
	require.ErrorIs(t, err, ErrFileDecode)

	_, _, err = ex.Parse(base64.StdEncoding.EncodeToString([]byte("not a workbook")))
	require.ErrorIs(t, err, ErrFileDecode)
}

func TestParseIsDeterministic(t *testing.T) {
	payload := workbookB64(t, map[string]any{
		"E2": "2024-03-01", "F2": 1, "G2": "100", "H2": "200", "L2": "10",
		"E3": "2024-03-01", "F3": 2, "G3": "300", "H3": "400", "L3": "20,5",
	})

	ex := NewExtractor(testColumns(), false)
	first, firstDropped, err := ex.Parse(payload)
	require.NoError(t, err)
	second, secondDropped, err := ex.Parse(payload)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, firstDropped, secondDropped)
}

func TestNormalizeAccount(t *testing.T) {
	cases := map[string]string{
		"3145.0": "3145",
		" 200 ":  "200",
		"2.01":   "2.01",
		"1.2.3":  "1.2.3",
		"":       "",
	}
	for in, want := range cases {
		assert.Equal(t, want, NormalizeAccount(in), "input %q", in)
	}
}

func TestColumnIndex(t *testing.T) {
	idx, err := ColumnIndex("E")
	require.NoError(t, err)
	assert.Equal(t, 4, idx)

	idx, err = ColumnIndex("AA")
	require.NoError(t, err)
	assert.Equal(t, 26, idx)

	_, err = ColumnIndex("5")
	require.Error(t, err)
}
