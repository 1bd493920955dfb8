package persistence

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DriftShield/internal/state"
	"DriftShield/internal/store"
	"DriftShield/internal/testutil"
	"DriftShield/internal/vault"
)

func setup(t *testing.T) (*PostgresStore, func()) {
	t.Helper()
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	if err := NewMigrator(db, "../../migrations", zerolog.Nop()).Up(context.Background()); err != nil {
		cleanup()
		t.Fatalf("migrate: %v", err)
	}
	return NewPostgresStore(db), cleanup
}

func TestMarketRoundTrip(t *testing.T) {
	st, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	creator := uuid.New()
	model := state.ModelKey(creator, "m")
	key := state.MarketKey(creator, model)
	now := time.Now().UTC().Truncate(time.Microsecond)

	if _, err := st.GetMarket(ctx, key); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("missing market: err = %v, want ErrNotFound", err)
	}

	m := &state.Market{
		Key: key, Creator: creator, Model: model, Question: "q",
		MinStake: 100, AMMEnabled: true,
		VirtualLiquidity: 1_000_000, VirtualYesReserve: 1_000_000, VirtualNoReserve: 1_000_000,
		Status: state.MarketStatusOpen, ResolutionTime: now.Add(time.Hour), CreatedAt: now,
	}
	if err := st.PutMarket(ctx, m); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := st.GetMarket(ctx, key)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Key != key || got.VirtualLiquidity != 1_000_000 || got.Status != state.MarketStatusOpen {
		t.Errorf("round trip mismatch: %+v", got)
	}
	if got.WinningOutcome != nil {
		t.Error("unresolved market has a winning outcome")
	}

	// Upsert: resolution updates status and outcome.
	o := state.OutcomeYes
	m.Status = state.MarketStatusResolved
	m.ResolvedAt = now.Add(time.Hour)
	m.WinningOutcome = &o
	if err := st.PutMarket(ctx, m); err != nil {
		t.Fatalf("put resolved: %v", err)
	}
	got, err = st.GetMarket(ctx, key)
	if err != nil {
		t.Fatalf("get resolved: %v", err)
	}
	if got.Status != state.MarketStatusResolved || got.WinningOutcome == nil || *got.WinningOutcome != state.OutcomeYes {
		t.Errorf("resolved round trip mismatch: %+v", got)
	}
}

func TestPositionAndPolicyRoundTrip(t *testing.T) {
	st, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	user := uuid.New()
	marketKey := state.MarketKey(user, state.Key{1})
	p := &state.Position{
		Key: state.PositionKey(marketKey, user), Market: marketKey, User: user,
		YesStake: 100, TotalStake: 100, YesShares: 91,
	}
	if err := st.PutPosition(ctx, p); err != nil {
		t.Fatalf("put position: %v", err)
	}
	gotPos, err := st.GetPosition(ctx, p.Key)
	if err != nil {
		t.Fatalf("get position: %v", err)
	}
	if gotPos.YesShares != 91 || gotPos.Claimed {
		t.Errorf("position mismatch: %+v", gotPos)
	}

	now := time.Now().UTC().Truncate(time.Microsecond)
	pol := &state.Policy{
		Key: state.PolicyKey(user, state.Key{2}), Owner: user, Model: state.Key{2},
		CoverageAmount: 500, PremiumPaid: 50, AccuracyThreshold: 9000,
		Status: state.PolicyStatusActive, StartTime: now, ExpiryTime: now.Add(time.Hour),
	}
	if err := st.PutPolicy(ctx, pol); err != nil {
		t.Fatalf("put policy: %v", err)
	}
	gotPol, err := st.GetPolicy(ctx, pol.Key)
	if err != nil {
		t.Fatalf("get policy: %v", err)
	}
	if gotPol.CoverageAmount != 500 || gotPol.Status != state.PolicyStatusActive {
		t.Errorf("policy mismatch: %+v", gotPol)
	}
}

func TestModelAndReceipts(t *testing.T) {
	st, cleanup := setup(t)
	defer cleanup()
	ctx := context.Background()

	owner := uuid.New()
	now := time.Now().UTC().Truncate(time.Microsecond)
	m := &state.ModelRecord{
		Key: state.ModelKey(owner, "m"), Owner: owner, ModelID: "m", Name: "model",
		BaselineAccuracy: 9400, CurrentAccuracy: 9400,
		Status: state.ModelStatusActive, CreatedAt: now, LastCheckAt: now,
	}
	if err := st.PutModel(ctx, m); err != nil {
		t.Fatalf("put model: %v", err)
	}

	r := &state.MonitoringReceipt{
		ID: uuid.New(), Model: m.Key, Checker: owner,
		Accuracy: 9300, Precision: 9200, Recall: 9100, F1Score: 9150, DriftScore: 80,
		MetadataURI: "shdw://x", Timestamp: now,
	}
	if err := st.AppendReceipt(ctx, r); err != nil {
		t.Fatalf("append receipt: %v", err)
	}

	got, err := st.GetModel(ctx, m.Key)
	if err != nil {
		t.Fatalf("get model: %v", err)
	}
	if got.BaselineAccuracy != 9400 {
		t.Errorf("model mismatch: %+v", got)
	}
}

func TestJournalWriter(t *testing.T) {
	testutil.RequireIntegration(t)

	db, cleanup := testutil.SetupTestDB(t)
	defer cleanup()
	if err := NewMigrator(db, "../../migrations", zerolog.Nop()).Up(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	w := NewJournalWriter(db)
	j := vault.Journal{
		ID:        uuid.New(),
		Debit:     vault.UserAccount(uuid.New()),
		Credit:    vault.InsurancePoolAccount,
		Amount:    123,
		Kind:      vault.JournalKindRefund,
		Timestamp: time.Now().UTC(),
	}
	if err := w.Append(context.Background(), j); err != nil {
		t.Fatalf("append: %v", err)
	}

	var count int
	if err := db.QueryRow(`SELECT count(*) FROM vault_journal WHERE id = $1`, j.ID).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Errorf("journal rows = %d, want 1", count)
	}
}
