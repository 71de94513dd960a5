package batch

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/contaflow/contaflow/internal/mapping"
	"github.com/contaflow/contaflow/internal/platform/db"
	"github.com/contaflow/contaflow/internal/shared"
)

const uniqueViolationCode = "23505"

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Repository persists batches and their staging entries.
type Repository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{db: pool, pool: pool}
}

// WithTx runs fn against a repository bound to a single transaction.
func (r *Repository) WithTx(ctx context.Context, fn func(context.Context, TxStore) error) error {
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		return fn(ctx, &Repository{db: tx, pool: r.pool})
	})
}

const batchColumns = `id, numero_protocolo, cnpj, periodo, codigo_matriz, codigo_filial,
lote_inicial, email_destinatario, layout_nome, status, COALESCE(error_message,''),
COALESCE(arquivo_raw_base64,''), COALESCE(arquivo_txt_base64,''), linhas_descartadas,
created_at, updated_at`

func scanBatch(row pgx.Row) (Batch, error) {
	var b Batch
	var status string
	err := row.Scan(&b.ID, &b.Protocol, &b.CompanyID, &b.Period, &b.HeadOfficeCode,
		&b.BranchCode, &b.InitialLot, &b.Email, &b.LayoutName, &status, &b.ErrorMessage,
		&b.RawFileB64, &b.ResultB64, &b.DroppedRows, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return Batch{}, err
	}
	b.Status = Status(status)
	return b, nil
}

// Create inserts a PENDING batch and returns its id.
func (r *Repository) Create(ctx context.Context, b Batch) (int64, error) {
	var id int64
	err := r.db.QueryRow(ctx, `INSERT INTO batches
(numero_protocolo, cnpj, periodo, codigo_matriz, codigo_filial, lote_inicial,
 email_destinatario, layout_nome, status, arquivo_raw_base64)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
RETURNING id`,
		b.Protocol, b.CompanyID, b.Period, b.HeadOfficeCode, b.BranchCode, b.InitialLot,
		b.Email, b.LayoutName, string(StatusPending), b.RawFileB64).Scan(&id)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode {
			return 0, fmt.Errorf("protocol %q: %w", b.Protocol, ErrDuplicateProtocol)
		}
		return 0, err
	}
	return id, nil
}

// GetBatch loads a batch by id.
func (r *Repository) GetBatch(ctx context.Context, id int64) (Batch, error) {
	b, err := scanBatch(r.db.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE id=$1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, fmt.Errorf("batch %d: %w", id, shared.ErrNotFound)
		}
		return Batch{}, err
	}
	return b, nil
}

// GetByNumber loads a batch by protocol number.
func (r *Repository) GetByNumber(ctx context.Context, protocol string) (Batch, error) {
	b, err := scanBatch(r.db.QueryRow(ctx, `SELECT `+batchColumns+` FROM batches WHERE numero_protocolo=$1`, protocol))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Batch{}, fmt.Errorf("protocol %q: %w", protocol, shared.ErrNotFound)
		}
		return Batch{}, err
	}
	return b, nil
}

// ListByCompany returns summaries of all batches for one company,
// newest first.
func (r *Repository) ListByCompany(ctx context.Context, companyID string) ([]Summary, error) {
	rows, err := r.db.Query(ctx, `SELECT id, numero_protocolo, status, COALESCE(error_message,''), created_at
FROM batches WHERE cnpj=$1 ORDER BY created_at DESC`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Summary
	for rows.Next() {
		var s Summary
		var status string
		if err := rows.Scan(&s.ID, &s.Protocol, &status, &s.ErrorMessage, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.Status = Status(status)
		out = append(out, s)
	}
	return out, rows.Err()
}

// ListByStatus returns all batches in the given status, oldest first.
func (r *Repository) ListByStatus(ctx context.Context, status Status) ([]Batch, error) {
	rows, err := r.db.Query(ctx, `SELECT `+batchColumns+` FROM batches WHERE status=$1 ORDER BY created_at`, string(status))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Batch
	for rows.Next() {
		b, err := scanBatch(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// ListStagingEntries returns the staging entries of one batch in
// insertion order.
func (r *Repository) ListStagingEntries(ctx context.Context, batchID int64) ([]StagingEntry, error) {
	rows, err := r.db.Query(ctx, `SELECT id, batch_id, data_lancamento, valor, conta_debito_raw,
conta_credito_raw, COALESCE(historico,''), COALESCE(cod_historico,'')
FROM staging_entries WHERE batch_id=$1 ORDER BY id`, batchID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []StagingEntry
	for rows.Next() {
		var e StagingEntry
		if err := rows.Scan(&e.ID, &e.BatchID, &e.EntryDate, &e.Amount,
			&e.RawDebitAccount, &e.RawCreditAccount, &e.History, &e.HistoryCode); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// InsertStagingEntries bulk-inserts pendency rows for a batch.
func (r *Repository) InsertStagingEntries(ctx context.Context, entries []StagingEntry) error {
	for _, e := range entries {
		_, err := r.db.Exec(ctx, `INSERT INTO staging_entries
(batch_id, data_lancamento, valor, conta_debito_raw, conta_credito_raw, historico, cod_historico)
VALUES ($1,$2,$3,$4,$5,$6,$7)`,
			e.BatchID, e.EntryDate, e.Amount, e.RawDebitAccount, e.RawCreditAccount, e.History, e.HistoryCode)
		if err != nil {
			return fmt.Errorf("insert staging entry: %w", err)
		}
	}
	return nil
}

// DeleteStagingForBatch removes all staging entries of one batch and
// returns how many were removed.
func (r *Repository) DeleteStagingForBatch(ctx context.Context, batchID int64) (int64, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM staging_entries WHERE batch_id=$1`, batchID)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

// Outcome is the terminal write of a processing run.
type Outcome struct {
	BatchID     int64
	Status      Status
	ResultB64   string
	DroppedRows int
}

// UpdateBatchOutcome records the run result on the batch row. The
// result column is cleared unless the run completed, and any previous
// error message is wiped.
func (r *Repository) UpdateBatchOutcome(ctx context.Context, out Outcome) error {
	_, err := r.db.Exec(ctx, `UPDATE batches
SET status=$2, arquivo_txt_base64=NULLIF($3,''), error_message=NULL,
    linhas_descartadas=$4, updated_at=now()
WHERE id=$1`, out.BatchID, string(out.Status), out.ResultB64, out.DroppedRows)
	return err
}

// MarkError records a failed run outside the run transaction. Callers
// treat this as best effort.
func (r *Repository) MarkError(ctx context.Context, batchID int64, message string) error {
	_, err := r.db.Exec(ctx, `UPDATE batches
SET status=$2, error_message=$3, arquivo_txt_base64=NULL, updated_at=now()
WHERE id=$1`, batchID, string(StatusError), message)
	return err
}

// Delete removes a batch and its staging entries, returning the number
// of entries removed. PENDING batches cannot be deleted.
func (r *Repository) Delete(ctx context.Context, protocol string) (int64, error) {
	b, err := r.GetByNumber(ctx, protocol)
	if err != nil {
		return 0, err
	}
	if b.Status == StatusPending {
		return 0, fmt.Errorf("protocol %q: %w", protocol, ErrBatchProcessing)
	}

	var entries int64
	err = db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, `DELETE FROM staging_entries WHERE batch_id=$1`, b.ID)
		if err != nil {
			return err
		}
		entries = tag.RowsAffected()
		_, err = tx.Exec(ctx, `DELETE FROM batches WHERE id=$1`, b.ID)
		return err
	})
	if err != nil {
		return 0, err
	}
	return entries, nil
}

// Pending implements the waiting-mapping view used by the resolution
// service.
func (r *Repository) Pending(ctx context.Context, batchID int64) (mapping.PendingBatch, error) {
	b, err := r.GetBatch(ctx, batchID)
	if err != nil {
		return mapping.PendingBatch{}, err
	}
	entries, err := r.ListStagingEntries(ctx, batchID)
	if err != nil {
		return mapping.PendingBatch{}, err
	}
	pending := mapping.PendingBatch{
		CompanyID:  b.CompanyID,
		HasRawFile: b.RawFileB64 != "",
		Entries:    make([]mapping.PendingEntry, 0, len(entries)),
	}
	for _, e := range entries {
		pending.Entries = append(pending.Entries, mapping.PendingEntry{
			RawDebitAccount:  e.RawDebitAccount,
			RawCreditAccount: e.RawCreditAccount,
		})
	}
	return pending, nil
}
