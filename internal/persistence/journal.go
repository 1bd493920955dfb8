package persistence

import (
	"context"
	"database/sql"
	"fmt"

	"DriftShield/internal/vault"
)

// JournalWriter persists vault journal entries. It implements
// vault.JournalSink; the ledger treats append failures as best-effort, so a
// write error here never unwinds a committed transfer.
type JournalWriter struct {
	db *sql.DB
}

func NewJournalWriter(db *sql.DB) *JournalWriter {
	return &JournalWriter{db: db}
}

func (w *JournalWriter) Append(ctx context.Context, j vault.Journal) error {
	_, err := w.db.ExecContext(ctx, `
		INSERT INTO vault_journal (id, debit_account, credit_account, amount, kind, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)`,
		j.ID, string(j.Debit), string(j.Credit), int64(j.Amount), int32(j.Kind), j.Timestamp)
	if err != nil {
		return fmt.Errorf("append journal: %w", err)
	}
	return nil
}
