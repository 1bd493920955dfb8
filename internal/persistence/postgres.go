package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	_ "github.com/lib/pq"

	"DriftShield/internal/state"
	"DriftShield/internal/store"
)

// PostgresStore implements store.Store on PostgreSQL. Rows map one-to-one
// onto the state entities; keys are stored hex-encoded. Entity counters are
// stored as BIGINT, which bounds them to the same signed range the vault
// ledger enforces.
//
// Conflicting writers are serialized by the program engines' per-key
// mutexes; the store itself does plain upserts.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Open connects to Postgres and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

func (s *PostgresStore) GetMarket(ctx context.Context, key state.Key) (*state.Market, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, creator, model_key, question,
		       yes_pool, no_pool, total_volume, min_stake,
		       amm_enabled, virtual_liquidity, virtual_yes_reserve, virtual_no_reserve,
		       total_yes_shares, total_no_shares,
		       status, resolution_time, resolved_at, winning_outcome, created_at
		FROM markets WHERE key = $1`, key.String())

	var (
		m          state.Market
		keyHex     string
		modelHex   string
		yesPool    int64
		noPool     int64
		volume     int64
		minStake   int64
		liquidity  int64
		yesReserve int64
		noReserve  int64
		yesShares  int64
		noShares   int64
		status     int32
		resolvedAt sql.NullTime
		winning    sql.NullBool
	)
	err := row.Scan(&keyHex, &m.Creator, &modelHex, &m.Question,
		&yesPool, &noPool, &volume, &minStake,
		&m.AMMEnabled, &liquidity, &yesReserve, &noReserve,
		&yesShares, &noShares,
		&status, &m.ResolutionTime, &resolvedAt, &winning, &m.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("market %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get market: %w", err)
	}

	if m.Key, err = state.ParseKey(keyHex); err != nil {
		return nil, fmt.Errorf("market key column: %w", err)
	}
	if m.Model, err = state.ParseKey(modelHex); err != nil {
		return nil, fmt.Errorf("model key column: %w", err)
	}
	m.YesPool, m.NoPool = uint64(yesPool), uint64(noPool)
	m.TotalVolume, m.MinStake = uint64(volume), uint64(minStake)
	m.VirtualLiquidity = uint64(liquidity)
	m.VirtualYesReserve, m.VirtualNoReserve = uint64(yesReserve), uint64(noReserve)
	m.TotalYesShares, m.TotalNoShares = uint64(yesShares), uint64(noShares)
	m.Status = state.MarketStatus(status)
	if resolvedAt.Valid {
		m.ResolvedAt = resolvedAt.Time
	}
	if winning.Valid {
		o := state.Outcome(winning.Bool)
		m.WinningOutcome = &o
	}
	return &m, nil
}

func (s *PostgresStore) PutMarket(ctx context.Context, m *state.Market) error {
	var resolvedAt sql.NullTime
	if !m.ResolvedAt.IsZero() {
		resolvedAt = sql.NullTime{Time: m.ResolvedAt, Valid: true}
	}
	var winning sql.NullBool
	if m.WinningOutcome != nil {
		winning = sql.NullBool{Bool: bool(*m.WinningOutcome), Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO markets (key, creator, model_key, question,
			yes_pool, no_pool, total_volume, min_stake,
			amm_enabled, virtual_liquidity, virtual_yes_reserve, virtual_no_reserve,
			total_yes_shares, total_no_shares,
			status, resolution_time, resolved_at, winning_outcome, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)
		ON CONFLICT (key) DO UPDATE SET
			yes_pool = EXCLUDED.yes_pool,
			no_pool = EXCLUDED.no_pool,
			total_volume = EXCLUDED.total_volume,
			virtual_yes_reserve = EXCLUDED.virtual_yes_reserve,
			virtual_no_reserve = EXCLUDED.virtual_no_reserve,
			total_yes_shares = EXCLUDED.total_yes_shares,
			total_no_shares = EXCLUDED.total_no_shares,
			status = EXCLUDED.status,
			resolved_at = EXCLUDED.resolved_at,
			winning_outcome = EXCLUDED.winning_outcome`,
		m.Key.String(), m.Creator, m.Model.String(), m.Question,
		int64(m.YesPool), int64(m.NoPool), int64(m.TotalVolume), int64(m.MinStake),
		m.AMMEnabled, int64(m.VirtualLiquidity), int64(m.VirtualYesReserve), int64(m.VirtualNoReserve),
		int64(m.TotalYesShares), int64(m.TotalNoShares),
		int32(m.Status), m.ResolutionTime, resolvedAt, winning, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("put market: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPosition(ctx context.Context, key state.Key) (*state.Position, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, market_key, user_id,
		       yes_stake, no_stake, total_stake, yes_shares, no_shares, claimed
		FROM positions WHERE key = $1`, key.String())

	var (
		p          state.Position
		keyHex     string
		marketHex  string
		yesStake   int64
		noStake    int64
		totalStake int64
		yesShares  int64
		noShares   int64
	)
	err := row.Scan(&keyHex, &marketHex, &p.User,
		&yesStake, &noStake, &totalStake, &yesShares, &noShares, &p.Claimed)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("position %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}

	if p.Key, err = state.ParseKey(keyHex); err != nil {
		return nil, fmt.Errorf("position key column: %w", err)
	}
	if p.Market, err = state.ParseKey(marketHex); err != nil {
		return nil, fmt.Errorf("market key column: %w", err)
	}
	p.YesStake, p.NoStake, p.TotalStake = uint64(yesStake), uint64(noStake), uint64(totalStake)
	p.YesShares, p.NoShares = uint64(yesShares), uint64(noShares)
	return &p, nil
}

func (s *PostgresStore) PutPosition(ctx context.Context, p *state.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (key, market_key, user_id,
			yes_stake, no_stake, total_stake, yes_shares, no_shares, claimed)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		ON CONFLICT (key) DO UPDATE SET
			yes_stake = EXCLUDED.yes_stake,
			no_stake = EXCLUDED.no_stake,
			total_stake = EXCLUDED.total_stake,
			yes_shares = EXCLUDED.yes_shares,
			no_shares = EXCLUDED.no_shares,
			claimed = EXCLUDED.claimed`,
		p.Key.String(), p.Market.String(), p.User,
		int64(p.YesStake), int64(p.NoStake), int64(p.TotalStake),
		int64(p.YesShares), int64(p.NoShares), p.Claimed)
	if err != nil {
		return fmt.Errorf("put position: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetModel(ctx context.Context, key state.Key) (*state.ModelRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, owner, model_id, name, model_type, framework,
		       baseline_accuracy, current_accuracy, total_checks, drift_alerts,
		       status, created_at, last_check_at, is_insured, has_active_market
		FROM models WHERE key = $1`, key.String())

	var (
		m        state.ModelRecord
		keyHex   string
		baseline int64
		current  int64
		checks   int64
		alerts   int64
		status   int32
	)
	err := row.Scan(&keyHex, &m.Owner, &m.ModelID, &m.Name, &m.ModelType, &m.Framework,
		&baseline, &current, &checks, &alerts,
		&status, &m.CreatedAt, &m.LastCheckAt, &m.IsInsured, &m.HasActiveMarket)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get model: %w", err)
	}

	if m.Key, err = state.ParseKey(keyHex); err != nil {
		return nil, fmt.Errorf("model key column: %w", err)
	}
	m.BaselineAccuracy, m.CurrentAccuracy = uint64(baseline), uint64(current)
	m.TotalChecks, m.DriftAlerts = uint64(checks), uint64(alerts)
	m.Status = state.ModelStatus(status)
	return &m, nil
}

func (s *PostgresStore) PutModel(ctx context.Context, m *state.ModelRecord) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO models (key, owner, model_id, name, model_type, framework,
			baseline_accuracy, current_accuracy, total_checks, drift_alerts,
			status, created_at, last_check_at, is_insured, has_active_market)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15)
		ON CONFLICT (key) DO UPDATE SET
			current_accuracy = EXCLUDED.current_accuracy,
			total_checks = EXCLUDED.total_checks,
			drift_alerts = EXCLUDED.drift_alerts,
			status = EXCLUDED.status,
			last_check_at = EXCLUDED.last_check_at,
			is_insured = EXCLUDED.is_insured,
			has_active_market = EXCLUDED.has_active_market`,
		m.Key.String(), m.Owner, m.ModelID, m.Name, m.ModelType, m.Framework,
		int64(m.BaselineAccuracy), int64(m.CurrentAccuracy), int64(m.TotalChecks), int64(m.DriftAlerts),
		int32(m.Status), m.CreatedAt, m.LastCheckAt, m.IsInsured, m.HasActiveMarket)
	if err != nil {
		return fmt.Errorf("put model: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetPolicy(ctx context.Context, key state.Key) (*state.Policy, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT key, owner, model_key,
		       coverage_amount, premium_paid, accuracy_threshold,
		       status, start_time, expiry_time, claim_paid
		FROM policies WHERE key = $1`, key.String())

	var (
		p         state.Policy
		keyHex    string
		modelHex  string
		coverage  int64
		premium   int64
		threshold int64
		status    int32
		claim     int64
	)
	err := row.Scan(&keyHex, &p.Owner, &modelHex,
		&coverage, &premium, &threshold,
		&status, &p.StartTime, &p.ExpiryTime, &claim)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("policy %s: %w", key, store.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get policy: %w", err)
	}

	if p.Key, err = state.ParseKey(keyHex); err != nil {
		return nil, fmt.Errorf("policy key column: %w", err)
	}
	if p.Model, err = state.ParseKey(modelHex); err != nil {
		return nil, fmt.Errorf("model key column: %w", err)
	}
	p.CoverageAmount, p.PremiumPaid = uint64(coverage), uint64(premium)
	p.AccuracyThreshold, p.ClaimPaid = uint64(threshold), uint64(claim)
	p.Status = state.PolicyStatus(status)
	return &p, nil
}

func (s *PostgresStore) PutPolicy(ctx context.Context, p *state.Policy) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO policies (key, owner, model_key,
			coverage_amount, premium_paid, accuracy_threshold,
			status, start_time, expiry_time, claim_paid)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
		ON CONFLICT (key) DO UPDATE SET
			status = EXCLUDED.status,
			claim_paid = EXCLUDED.claim_paid`,
		p.Key.String(), p.Owner, p.Model.String(),
		int64(p.CoverageAmount), int64(p.PremiumPaid), int64(p.AccuracyThreshold),
		int32(p.Status), p.StartTime, p.ExpiryTime, int64(p.ClaimPaid))
	if err != nil {
		return fmt.Errorf("put policy: %w", err)
	}
	return nil
}

func (s *PostgresStore) AppendReceipt(ctx context.Context, r *state.MonitoringReceipt) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO monitoring_receipts (id, model_key, checker,
			accuracy_bps, precision_bps, recall_bps, f1_score_bps, drift_score,
			metadata_uri, submitted_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
		r.ID, r.Model.String(), r.Checker,
		int64(r.Accuracy), int64(r.Precision), int64(r.Recall), int64(r.F1Score), int64(r.DriftScore),
		r.MetadataURI, r.Timestamp)
	if err != nil {
		return fmt.Errorf("append receipt: %w", err)
	}
	return nil
}
