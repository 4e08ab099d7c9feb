package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"sectorscan/internal/domain"

	_ "github.com/lib/pq"
)

const ledgerSchema = `
CREATE TABLE IF NOT EXISTS paper_ledger (
	ledger_id  INT PRIMARY KEY,
	document   JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
INSERT INTO paper_ledger (ledger_id, document)
VALUES (1, '{"active": [], "closed": []}')
ON CONFLICT (ledger_id) DO NOTHING;
`

type postgresLedgerRepositoryHandler struct {
	Db *sql.DB
}

// NewPostgresLedgerRepository stores the ledger as a single JSONB row. Updates
// lock that row, so writers in different processes are serialized too.
func NewPostgresLedgerRepository(ctx context.Context, db *sql.DB) (LedgerRepository, error) {
	if _, err := db.ExecContext(ctx, ledgerSchema); err != nil {
		return nil, fmt.Errorf("failed to ensure ledger schema: %w", err)
	}
	return postgresLedgerRepositoryHandler{Db: db}, nil
}

func (h postgresLedgerRepositoryHandler) Load(ctx context.Context) (domain.Ledger, error) {
	var raw []byte
	err := h.Db.QueryRowContext(ctx, `SELECT document FROM paper_ledger WHERE ledger_id = 1`).Scan(&raw)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to load ledger: %w", err)
	}
	return decodeLedger(raw)
}

func (h postgresLedgerRepositoryHandler) Update(ctx context.Context, fn func(*domain.Ledger) error) (domain.Ledger, error) {
	tx, err := h.Db.BeginTx(ctx, nil)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to begin ledger tx: %w", err)
	}
	defer tx.Rollback()

	var raw []byte
	err = tx.QueryRowContext(ctx, `SELECT document FROM paper_ledger WHERE ledger_id = 1 FOR UPDATE`).Scan(&raw)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to lock ledger: %w", err)
	}
	ledger, err := decodeLedger(raw)
	if err != nil {
		return domain.Ledger{}, err
	}

	if err := fn(&ledger); err != nil {
		return domain.Ledger{}, err
	}

	updated, err := json.Marshal(ledger)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to marshal ledger: %w", err)
	}
	_, err = tx.ExecContext(ctx, `UPDATE paper_ledger SET document = $1, updated_at = now() WHERE ledger_id = 1`, updated)
	if err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to write ledger: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to commit ledger: %w", err)
	}

	return ledger, nil
}

func decodeLedger(raw []byte) (domain.Ledger, error) {
	ledger := domain.NewLedger()
	if err := json.Unmarshal(raw, &ledger); err != nil {
		return domain.Ledger{}, fmt.Errorf("failed to parse ledger document: %w", err)
	}
	if ledger.Active == nil {
		ledger.Active = []domain.Trade{}
	}
	if ledger.Closed == nil {
		ledger.Closed = []domain.Trade{}
	}
	return ledger, nil
}
