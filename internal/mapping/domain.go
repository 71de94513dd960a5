// Package mapping translates raw client account codes into internal
// ledger account codes, scoped per company (CNPJ) and movement type.
package mapping

import "time"

// MovementType distinguishes debit and credit mappings. The wire
// values are the Portuguese tokens the import contract uses.
type MovementType string

const (
	MovementDebit  MovementType = "DEBITO"
	MovementCredit MovementType = "CREDITO"
)

// Valid reports whether the movement type is one of the two accepted
// tokens.
func (t MovementType) Valid() bool {
	return t == MovementDebit || t == MovementCredit
}

// Mapping links one raw client account to a ledger account code.
type Mapping struct {
	ID            int64
	CompanyID     string
	ClientAccount string
	LedgerAccount string
	Type          MovementType
	LastUsed      time.Time
}
