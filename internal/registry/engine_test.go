package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DriftShield/internal/event"
	"DriftShield/internal/state"
	"DriftShield/internal/store"
	"DriftShield/internal/testutil"
)

type harness struct {
	engine  *Engine
	store   *store.Memory
	clock   *testutil.FixedClock
	emitter *testutil.CaptureEmitter
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	clock := testutil.NewFixedClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	st := store.NewMemory()
	emitter := testutil.NewCaptureEmitter()
	engine := NewEngine(st, clock, emitter, nil, zerolog.Nop())
	return &harness{engine: engine, store: st, clock: clock, emitter: emitter}
}

func (h *harness) register(t *testing.T, owner uuid.UUID, baselineBps uint64) *state.ModelRecord {
	t.Helper()
	m, err := h.engine.RegisterModel(context.Background(), RegisterModelParams{
		Owner:            owner,
		ModelID:          "bert-prod",
		Name:             "BERT production classifier",
		ModelType:        "classification",
		Framework:        "pytorch",
		BaselineAccuracy: baselineBps,
	})
	if err != nil {
		t.Fatalf("register model: %v", err)
	}
	return m
}

func TestRegisterModel(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	m := h.register(t, owner, 9420)

	if m.Status != state.ModelStatusActive {
		t.Errorf("status = %v, want Active", m.Status)
	}
	if m.CurrentAccuracy != 9420 {
		t.Errorf("current accuracy = %d, want baseline 9420", m.CurrentAccuracy)
	}
	if m.IsInsured || m.HasActiveMarket {
		t.Error("new model should carry no insurance or market flags")
	}
	if evs := h.emitter.EventsOfType(event.TypeModelRegistered); len(evs) != 1 {
		t.Errorf("ModelRegistered events = %d, want 1", len(evs))
	}

	// Same (owner, model_id) tuple derives the same key.
	_, err := h.engine.RegisterModel(context.Background(), RegisterModelParams{
		Owner: owner, ModelID: "bert-prod", Name: "again", BaselineAccuracy: 9000,
	})
	if !errors.Is(err, store.ErrAlreadyExists) {
		t.Errorf("duplicate register: err = %v, want ErrAlreadyExists", err)
	}
}

func TestRegisterModelFieldBounds(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()

	longID := make([]byte, state.MaxModelIDLen+1)
	for i := range longID {
		longID[i] = 'x'
	}
	_, err := h.engine.RegisterModel(context.Background(), RegisterModelParams{Owner: owner, ModelID: string(longID)})
	if !errors.Is(err, ErrModelIDTooLong) {
		t.Errorf("long id: err = %v, want ErrModelIDTooLong", err)
	}

	longName := make([]byte, state.MaxModelNameLen+1)
	for i := range longName {
		longName[i] = 'x'
	}
	_, err = h.engine.RegisterModel(context.Background(), RegisterModelParams{Owner: owner, ModelID: "m", Name: string(longName)})
	if !errors.Is(err, ErrModelNameTooLong) {
		t.Errorf("long name: err = %v, want ErrModelNameTooLong", err)
	}
}

func TestSubmitReceiptUpdatesModel(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	m := h.register(t, owner, 9420)

	h.clock.Advance(time.Hour)
	r, err := h.engine.SubmitReceipt(context.Background(), owner, m.Key, ReceiptParams{
		Accuracy: 9300, Precision: 9250, Recall: 9350, F1Score: 9299, DriftScore: 120,
		MetadataURI: "shdw://abc",
	})
	if err != nil {
		t.Fatalf("submit receipt: %v", err)
	}
	if r.Model != m.Key || r.Checker != owner {
		t.Error("receipt identity fields wrong")
	}

	got, _ := h.store.GetModel(context.Background(), m.Key)
	if got.CurrentAccuracy != 9300 {
		t.Errorf("current accuracy = %d, want 9300", got.CurrentAccuracy)
	}
	if got.TotalChecks != 1 {
		t.Errorf("total checks = %d, want 1", got.TotalChecks)
	}
	if !got.LastCheckAt.Equal(h.clock.Now()) {
		t.Errorf("last check at = %v, want %v", got.LastCheckAt, h.clock.Now())
	}
	// 120 bps drop: no drift alert.
	if got.Status != state.ModelStatusActive || got.DriftAlerts != 0 {
		t.Errorf("status = %v, alerts = %d, want Active with 0 alerts", got.Status, got.DriftAlerts)
	}

	receipts := h.store.ReceiptsForModel(m.Key)
	if len(receipts) != 1 || receipts[0].ID != r.ID {
		t.Errorf("stored receipts = %d, want the submitted one", len(receipts))
	}
}

func TestSubmitReceiptDriftThreshold(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	m := h.register(t, owner, 9000)

	// Drop of exactly 500 bps: no alert.
	if _, err := h.engine.SubmitReceipt(context.Background(), owner, m.Key, ReceiptParams{Accuracy: 8500}); err != nil {
		t.Fatalf("receipt at threshold: %v", err)
	}
	got, _ := h.store.GetModel(context.Background(), m.Key)
	if got.Status != state.ModelStatusActive || got.DriftAlerts != 0 {
		t.Errorf("drop of exactly 500: status = %v, alerts = %d, want no alert", got.Status, got.DriftAlerts)
	}

	// Drop of 501 bps: alert fires.
	if _, err := h.engine.SubmitReceipt(context.Background(), owner, m.Key, ReceiptParams{Accuracy: 8499}); err != nil {
		t.Fatalf("receipt past threshold: %v", err)
	}
	got, _ = h.store.GetModel(context.Background(), m.Key)
	if got.Status != state.ModelStatusDriftDetected {
		t.Errorf("status = %v, want DriftDetected", got.Status)
	}
	if got.DriftAlerts != 1 {
		t.Errorf("drift alerts = %d, want 1", got.DriftAlerts)
	}

	alerts := h.emitter.EventsOfType(event.TypeDriftAlert)
	if len(alerts) != 1 {
		t.Fatalf("DriftAlert events = %d, want 1", len(alerts))
	}
	alert := alerts[0].(event.DriftAlert)
	if alert.AccuracyDrop != 501 || alert.CurrentAccuracy != 8499 {
		t.Errorf("alert = drop %d at %d, want drop 501 at 8499", alert.AccuracyDrop, alert.CurrentAccuracy)
	}
}

func TestSubmitReceiptAboveBaseline(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	m := h.register(t, owner, 9000)

	if _, err := h.engine.SubmitReceipt(context.Background(), owner, m.Key, ReceiptParams{Accuracy: 9500}); err != nil {
		t.Fatalf("receipt above baseline: %v", err)
	}
	got, _ := h.store.GetModel(context.Background(), m.Key)
	if got.Status != state.ModelStatusActive || got.DriftAlerts != 0 {
		t.Error("improvement must not alert")
	}
}

func TestSubmitReceiptUnauthorized(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	m := h.register(t, owner, 9000)

	_, err := h.engine.SubmitReceipt(context.Background(), uuid.New(), m.Key, ReceiptParams{Accuracy: 1})
	if !errors.Is(err, ErrUnauthorized) {
		t.Errorf("err = %v, want ErrUnauthorized", err)
	}
	got, _ := h.store.GetModel(context.Background(), m.Key)
	if got.TotalChecks != 0 || got.CurrentAccuracy != 9000 {
		t.Error("rejected receipt mutated the model")
	}
}

func TestStatusFlags(t *testing.T) {
	h := newHarness(t)
	owner := uuid.New()
	m := h.register(t, owner, 9000)
	ctx := context.Background()

	// Owner may flip both flags.
	if err := h.engine.UpdateInsuranceStatus(ctx, owner, ProgramNone, m.Key, true); err != nil {
		t.Fatalf("owner insurance update: %v", err)
	}
	if err := h.engine.UpdateMarketStatus(ctx, owner, ProgramNone, m.Key, true); err != nil {
		t.Fatalf("owner market update: %v", err)
	}
	got, _ := h.store.GetModel(ctx, m.Key)
	if !got.IsInsured || !got.HasActiveMarket {
		t.Error("owner flag updates not applied")
	}

	// Peer programs may flip their own flag without the owner identity.
	stranger := uuid.New()
	if err := h.engine.UpdateInsuranceStatus(ctx, stranger, ProgramInsurance, m.Key, false); err != nil {
		t.Fatalf("insurance program update: %v", err)
	}
	if err := h.engine.UpdateMarketStatus(ctx, stranger, ProgramMarket, m.Key, false); err != nil {
		t.Fatalf("market program update: %v", err)
	}

	// Wrong program identity is rejected.
	if err := h.engine.UpdateInsuranceStatus(ctx, stranger, ProgramMarket, m.Key, true); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("market program flipping insurance flag: err = %v, want ErrUnauthorized", err)
	}
	if err := h.engine.UpdateMarketStatus(ctx, stranger, ProgramInsurance, m.Key, true); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("insurance program flipping market flag: err = %v, want ErrUnauthorized", err)
	}
	if err := h.engine.UpdateInsuranceStatus(ctx, stranger, ProgramNone, m.Key, true); !errors.Is(err, ErrUnauthorized) {
		t.Errorf("stranger flag update: err = %v, want ErrUnauthorized", err)
	}
}
