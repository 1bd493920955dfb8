// Package query provides read-only access to the Postgres entity tables for
// the HTTP API. Writes always go through the program engines; the query
// service never mutates.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"DriftShield/internal/state"
	"DriftShield/internal/store"
)

type QueryService struct {
	db *sql.DB
}

func NewQueryService(db *sql.DB) *QueryService {
	return &QueryService{db: db}
}

// ListMarkets returns markets newest first, optionally filtered by status.
func (qs *QueryService) ListMarkets(ctx context.Context, status *state.MarketStatus, limit int) ([]MarketSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	q := `
		SELECT key, creator, model_key, question,
		       yes_pool, no_pool, total_volume, min_stake, amm_enabled,
		       status, resolution_time, winning_outcome, created_at
		FROM markets`
	args := []interface{}{}
	if status != nil {
		q += ` WHERE status = $1`
		args = append(args, int32(*status))
	}
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := qs.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list markets: %w", err)
	}
	defer rows.Close()

	var out []MarketSummary
	for rows.Next() {
		var (
			m       MarketSummary
			winning sql.NullBool
		)
		if err := rows.Scan(&m.Key, &m.Creator, &m.ModelKey, &m.Question,
			&m.YesPool, &m.NoPool, &m.TotalVolume, &m.MinStake, &m.AMMEnabled,
			&m.Status, &m.ResolutionTime, &winning, &m.CreatedAt); err != nil {
			return nil, err
		}
		if winning.Valid {
			b := winning.Bool
			m.WinningOutcome = &b
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMarket returns one market by key.
func (qs *QueryService) GetMarket(ctx context.Context, key state.Key) (*MarketSummary, error) {
	row := qs.db.QueryRowContext(ctx, `
		SELECT key, creator, model_key, question,
		       yes_pool, no_pool, total_volume, min_stake, amm_enabled,
		       status, resolution_time, winning_outcome, created_at
		FROM markets WHERE key = $1`, key.String())

	var (
		m       MarketSummary
		winning sql.NullBool
	)
	err := row.Scan(&m.Key, &m.Creator, &m.ModelKey, &m.Question,
		&m.YesPool, &m.NoPool, &m.TotalVolume, &m.MinStake, &m.AMMEnabled,
		&m.Status, &m.ResolutionTime, &winning, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("market %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}
	if winning.Valid {
		b := winning.Bool
		m.WinningOutcome = &b
	}
	return &m, nil
}

// GetPosition returns one user's position in a market.
func (qs *QueryService) GetPosition(ctx context.Context, market state.Key, user uuid.UUID) (*PositionSummary, error) {
	key := state.PositionKey(market, user)
	row := qs.db.QueryRowContext(ctx, `
		SELECT key, market_key, user_id,
		       yes_stake, no_stake, total_stake, yes_shares, no_shares, claimed
		FROM positions WHERE key = $1`, key.String())

	var p PositionSummary
	err := row.Scan(&p.Key, &p.MarketKey, &p.UserID,
		&p.YesStake, &p.NoStake, &p.TotalStake, &p.YesShares, &p.NoShares, &p.Claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return &p, nil
}

// ListModels returns models for an owner, newest checks first.
func (qs *QueryService) ListModels(ctx context.Context, owner uuid.UUID) ([]ModelSummary, error) {
	rows, err := qs.db.QueryContext(ctx, `
		SELECT key, owner, model_id, name, model_type, framework,
		       baseline_accuracy, current_accuracy, total_checks, drift_alerts,
		       status, is_insured, has_active_market, last_check_at
		FROM models WHERE owner = $1
		ORDER BY last_check_at DESC`, owner)
	if err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	defer rows.Close()

	var out []ModelSummary
	for rows.Next() {
		var m ModelSummary
		if err := rows.Scan(&m.Key, &m.Owner, &m.ModelID, &m.Name, &m.ModelType, &m.Framework,
			&m.BaselineAccuracy, &m.CurrentAccuracy, &m.TotalChecks, &m.DriftAlerts,
			&m.Status, &m.IsInsured, &m.HasActiveMarket, &m.LastCheckAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// ListReceipts returns the monitoring history of a model, newest first.
func (qs *QueryService) ListReceipts(ctx context.Context, model state.Key, limit int) ([]ReceiptSummary, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT id, model_key, accuracy_bps, precision_bps, recall_bps,
		       f1_score_bps, drift_score, metadata_uri, submitted_at
		FROM monitoring_receipts WHERE model_key = $1
		ORDER BY submitted_at DESC LIMIT $2`, model.String(), limit)
	if err != nil {
		return nil, fmt.Errorf("list receipts: %w", err)
	}
	defer rows.Close()

	var out []ReceiptSummary
	for rows.Next() {
		var r ReceiptSummary
		if err := rows.Scan(&r.ID, &r.ModelKey, &r.Accuracy, &r.Precision, &r.Recall,
			&r.F1Score, &r.DriftScore, &r.MetadataURI, &r.SubmittedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// JournalHistory returns vault journal entries touching an account, newest
// first.
func (qs *QueryService) JournalHistory(ctx context.Context, account string, limit int) ([]JournalEntry, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}

	rows, err := qs.db.QueryContext(ctx, `
		SELECT id, debit_account, credit_account, amount, kind, created_at
		FROM vault_journal
		WHERE debit_account = $1 OR credit_account = $1
		ORDER BY created_at DESC LIMIT $2`, account, limit)
	if err != nil {
		return nil, fmt.Errorf("journal history: %w", err)
	}
	defer rows.Close()

	var out []JournalEntry
	for rows.Next() {
		var j JournalEntry
		if err := rows.Scan(&j.ID, &j.DebitAccount, &j.CreditAccount, &j.Amount, &j.Kind, &j.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}
