package convert

import (
	"strconv"
	"strings"
)

// operatorTag is stamped on every generated movement line; the
// downstream import attributes the entries to this operator.
const operatorTag = "VICTOR"

// FormatAmountBR renders a monetary value with exactly two decimals in
// the Brazilian convention: dot as thousands separator, comma as
// decimal separator (60000 -> "60.000,00").
func FormatAmountBR(v float64) string {
	s := strconv.FormatFloat(v, 'f', 2, 64)
	sign := ""
	if strings.HasPrefix(s, "-") {
		sign = "-"
		s = s[1:]
	}
	intPart := s[:len(s)-3]
	frac := s[len(s)-2:]

	var b strings.Builder
	b.WriteString(sign)
	lead := len(intPart) % 3
	if lead > 0 {
		b.WriteString(intPart[:lead])
		if len(intPart) > lead {
			b.WriteByte('.')
		}
	}
	for i := lead; i < len(intPart); i += 3 {
		b.WriteString(intPart[i : i+3])
		if i+3 < len(intPart) {
			b.WriteByte('.')
		}
	}
	return b.String() + "," + frac
}

// sanitizeField keeps the pipe-delimited grammar unambiguous: sourced
// values must not carry the delimiter itself.
func sanitizeField(s string) string {
	return strings.ReplaceAll(s, "|", "/")
}

// LedgerBuilder accumulates the fixed-format ledger-import text for one
// batch: a 0000 header plus a 6000/6100 pair per resolved row.
type LedgerBuilder struct {
	companyID string
	branch    string
	lines     []string
}

// NewLedgerBuilder constructs a builder for the given company (CNPJ)
// and branch code; branch renders empty when the batch has none.
func NewLedgerBuilder(companyID, branch string) *LedgerBuilder {
	return &LedgerBuilder{companyID: companyID, branch: branch}
}

// Add appends the line pair for one resolved row.
func (b *LedgerBuilder) Add(row Row, debitCode, creditCode string) {
	b.lines = append(b.lines,
		"|6000|X||||",
		"|6100|"+row.Date+
			"|"+sanitizeField(debitCode)+
			"|"+sanitizeField(creditCode)+
			"|"+FormatAmountBR(row.Amount)+
			"||"+sanitizeField(row.History)+
			"|"+operatorTag+
			"|"+b.branch+"||",
	)
}

// Len reports how many rows have been added.
func (b *LedgerBuilder) Len() int {
	return len(b.lines) / 2
}

// Render joins the header and accumulated lines with newlines.
func (b *LedgerBuilder) Render() string {
	out := make([]string, 0, len(b.lines)+1)
	out = append(out, "|0000|"+b.companyID+"|")
	out = append(out, b.lines...)
	return strings.Join(out, "\n")
}
