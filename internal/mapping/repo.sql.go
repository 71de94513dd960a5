package mapping

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository persists account mappings.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// Lookup returns the mapped ledger account code, or the empty string
// when the key has no mapping yet.
func (r *Repository) Lookup(ctx context.Context, companyID, clientAccount string, t MovementType) (string, error) {
	var code string
	err := r.pool.QueryRow(ctx, `SELECT conta_contabilidade FROM account_mappings
WHERE cnpj_empresa=$1 AND conta_cliente=$2 AND tipo=$3 LIMIT 1`, companyID, clientAccount, string(t)).Scan(&code)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", nil
		}
		return "", err
	}
	return code, nil
}

// Upsert creates the mapping or overwrites the ledger account code of
// an existing one, refreshing last_used.
func (r *Repository) Upsert(ctx context.Context, m Mapping) error {
	_, err := r.pool.Exec(ctx, `INSERT INTO account_mappings (cnpj_empresa, conta_cliente, tipo, conta_contabilidade, last_used)
VALUES ($1,$2,$3,$4,now())
ON CONFLICT (cnpj_empresa, conta_cliente, tipo)
DO UPDATE SET conta_contabilidade=EXCLUDED.conta_contabilidade, last_used=now()`,
		m.CompanyID, m.ClientAccount, string(m.Type), m.LedgerAccount)
	return err
}
