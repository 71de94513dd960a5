package layout

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/contaflow/internal/shared"
)

// Repository persists layout configurations.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// GetByName loads a layout by its unique name.
func (r *Repository) GetByName(ctx context.Context, name string) (Config, error) {
	var c Config
	err := r.pool.QueryRow(ctx, `SELECT id, nome, col_data, col_valor, col_historico, col_cod_historico, col_conta_debito, col_conta_credito
FROM layouts WHERE nome=$1`, name).
		Scan(&c.ID, &c.Name, &c.DateCol, &c.ValueCol, &c.HistoryCol, &c.HistoryCodeCol, &c.DebitCol, &c.CreditCol)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Config{}, fmt.Errorf("layout %q: %w", name, shared.ErrNotFound)
		}
		return Config{}, err
	}
	return c, nil
}
