// Package registry implements the model-registry program: model records,
// monitoring receipts, and drift alerting.
package registry

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DriftShield/internal/emit"
	"DriftShield/internal/event"
	"DriftShield/internal/host"
	fpmath "DriftShield/internal/math"
	"DriftShield/internal/observability"
	"DriftShield/internal/state"
	"DriftShield/internal/store"
)

const program = "registry"

// DriftAlertThresholdBps is the accuracy drop below baseline, in basis
// points, beyond which a receipt raises a drift alert. Strictly greater
// than: a drop of exactly 500 does not alert.
const DriftAlertThresholdBps = 500

var (
	// ErrUnauthorized is returned when the caller is neither the model
	// owner nor an authorized peer program.
	ErrUnauthorized = errors.New("caller is not the model owner")

	// ErrModelIDTooLong is returned when the model identifier exceeds its
	// bound.
	ErrModelIDTooLong = errors.New("model id exceeds maximum length")

	// ErrModelNameTooLong is returned when the model name exceeds its
	// bound.
	ErrModelNameTooLong = errors.New("model name exceeds maximum length")
)

// ProgramIdentity names a peer program. Insurance status may be flipped by
// the insurance program, market status by the prediction-market program;
// both are also flippable by the model owner.
type ProgramIdentity string

const (
	ProgramNone      ProgramIdentity = ""
	ProgramInsurance ProgramIdentity = "insurance"
	ProgramMarket    ProgramIdentity = "market"
)

// Engine executes registry operations. Writes to the same model serialize
// on a per-key mutex; receipts are append-only and never contended.
type Engine struct {
	store   store.Store
	clock   host.Clock
	emitter emit.Emitter
	metrics *observability.Metrics
	log     zerolog.Logger

	mu    sync.Mutex
	locks map[state.Key]*sync.Mutex
}

func NewEngine(st store.Store, clock host.Clock, emitter emit.Emitter, metrics *observability.Metrics, log zerolog.Logger) *Engine {
	if emitter == nil {
		emitter = emit.Nop{}
	}
	return &Engine{
		store:   st,
		clock:   clock,
		emitter: emitter,
		metrics: metrics,
		log:     log,
		locks:   make(map[state.Key]*sync.Mutex),
	}
}

func (e *Engine) lock(key state.Key) func() {
	e.mu.Lock()
	m, ok := e.locks[key]
	if !ok {
		m = &sync.Mutex{}
		e.locks[key] = m
	}
	e.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// RegisterModelParams are the caller-supplied inputs for RegisterModel.
type RegisterModelParams struct {
	Owner            uuid.UUID
	ModelID          string
	Name             string
	ModelType        string
	Framework        string
	BaselineAccuracy uint64 // basis points
}

// RegisterModel creates a model record in Active status with current
// accuracy equal to the baseline.
func (e *Engine) RegisterModel(ctx context.Context, p RegisterModelParams) (*state.ModelRecord, error) {
	const op = "register_model"

	if len(p.ModelID) > state.MaxModelIDLen {
		return nil, e.reject(op, ErrModelIDTooLong)
	}
	if len(p.Name) > state.MaxModelNameLen {
		return nil, e.reject(op, ErrModelNameTooLong)
	}

	key := state.ModelKey(p.Owner, p.ModelID)
	unlock := e.lock(key)
	defer unlock()

	if _, err := e.store.GetModel(ctx, key); err == nil {
		return nil, e.reject(op, fmt.Errorf("model %s: %w", key, store.ErrAlreadyExists))
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, e.reject(op, err)
	}

	now := e.clock.Now()
	m := &state.ModelRecord{
		Key:              key,
		Owner:            p.Owner,
		ModelID:          p.ModelID,
		Name:             p.Name,
		ModelType:        p.ModelType,
		Framework:        p.Framework,
		BaselineAccuracy: p.BaselineAccuracy,
		CurrentAccuracy:  p.BaselineAccuracy,
		Status:           state.ModelStatusActive,
		CreatedAt:        now,
		LastCheckAt:      now,
	}
	if err := e.store.PutModel(ctx, m); err != nil {
		return nil, e.reject(op, err)
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
		e.metrics.ModelsRegistered.Inc()
	}
	e.emitter.Emit(event.ModelRegistered{
		Model:     key,
		Owner:     p.Owner,
		ModelID:   p.ModelID,
		Name:      p.Name,
		Timestamp: now,
	})
	e.log.Info().Str("model", key.String()).Str("model_id", p.ModelID).Msg("model registered")
	return m.Clone(), nil
}

// ReceiptParams are the measurements in one monitoring receipt. All scores
// are basis points.
type ReceiptParams struct {
	Accuracy    uint64
	Precision   uint64
	Recall      uint64
	F1Score     uint64
	DriftScore  uint64
	MetadataURI string
}

// SubmitReceipt records a monitoring receipt from the model owner, updates
// the model's current accuracy and check counters, and raises a drift alert
// when accuracy has dropped more than the threshold below baseline.
func (e *Engine) SubmitReceipt(ctx context.Context, checker uuid.UUID, modelKey state.Key, p ReceiptParams) (*state.MonitoringReceipt, error) {
	const op = "submit_receipt"

	unlock := e.lock(modelKey)
	defer unlock()

	m, err := e.store.GetModel(ctx, modelKey)
	if err != nil {
		return nil, e.reject(op, err)
	}
	if checker != m.Owner {
		return nil, e.reject(op, ErrUnauthorized)
	}

	now := e.clock.Now()
	receipt := &state.MonitoringReceipt{
		ID:          uuid.New(),
		Model:       modelKey,
		Checker:     checker,
		Accuracy:    p.Accuracy,
		Precision:   p.Precision,
		Recall:      p.Recall,
		F1Score:     p.F1Score,
		DriftScore:  p.DriftScore,
		MetadataURI: p.MetadataURI,
		Timestamp:   now,
	}

	next := m.Clone()
	next.CurrentAccuracy = p.Accuracy
	if next.TotalChecks, err = fpmath.CheckedAdd(next.TotalChecks, 1); err != nil {
		return nil, e.reject(op, err)
	}
	next.LastCheckAt = now

	var accuracyDrop uint64
	if next.BaselineAccuracy > p.Accuracy {
		accuracyDrop = next.BaselineAccuracy - p.Accuracy
	}
	drifted := accuracyDrop > DriftAlertThresholdBps
	if drifted {
		next.DriftAlerts++
		next.Status = state.ModelStatusDriftDetected
	}

	if err := e.store.AppendReceipt(ctx, receipt); err != nil {
		return nil, e.reject(op, err)
	}
	if err := e.store.PutModel(ctx, next); err != nil {
		return nil, e.reject(op, err)
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
		e.metrics.ReceiptsSubmitted.Inc()
	}
	if drifted {
		if e.metrics != nil {
			e.metrics.DriftAlerts.Inc()
		}
		e.emitter.Emit(event.DriftAlert{
			Model:           modelKey,
			AccuracyDrop:    accuracyDrop,
			CurrentAccuracy: p.Accuracy,
			Timestamp:       now,
		})
		e.log.Warn().Str("model", modelKey.String()).Uint64("accuracy_drop_bps", accuracyDrop).Msg("drift alert")
	}
	e.emitter.Emit(event.ReceiptSubmitted{
		Model:      modelKey,
		Receipt:    receipt.ID,
		Accuracy:   p.Accuracy,
		DriftScore: p.DriftScore,
		Timestamp:  now,
	})
	return receipt, nil
}

// UpdateInsuranceStatus flips the model's insured flag. Allowed for the
// model owner or the insurance program.
func (e *Engine) UpdateInsuranceStatus(ctx context.Context, caller uuid.UUID, as ProgramIdentity, modelKey state.Key, insured bool) error {
	return e.setFlag(ctx, "update_insurance_status", caller, as, ProgramInsurance, modelKey, func(m *state.ModelRecord) {
		m.IsInsured = insured
	})
}

// UpdateMarketStatus flips the model's active-market flag. Allowed for the
// model owner or the prediction-market program.
func (e *Engine) UpdateMarketStatus(ctx context.Context, caller uuid.UUID, as ProgramIdentity, modelKey state.Key, active bool) error {
	return e.setFlag(ctx, "update_market_status", caller, as, ProgramMarket, modelKey, func(m *state.ModelRecord) {
		m.HasActiveMarket = active
	})
}

func (e *Engine) setFlag(ctx context.Context, op string, caller uuid.UUID, as, allowed ProgramIdentity, modelKey state.Key, apply func(*state.ModelRecord)) error {
	unlock := e.lock(modelKey)
	defer unlock()

	m, err := e.store.GetModel(ctx, modelKey)
	if err != nil {
		return e.reject(op, err)
	}
	if caller != m.Owner && as != allowed {
		return e.reject(op, ErrUnauthorized)
	}

	next := m.Clone()
	apply(next)
	if err := e.store.PutModel(ctx, next); err != nil {
		return e.reject(op, err)
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
	}
	return nil
}

// GetModel returns the model record. Read-only.
func (e *Engine) GetModel(ctx context.Context, modelKey state.Key) (*state.ModelRecord, error) {
	return e.store.GetModel(ctx, modelKey)
}

func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(program, op, rejectReason(err)).Inc()
	}
	return err
}

func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrModelIDTooLong), errors.Is(err, ErrModelNameTooLong):
		return "validation"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, fpmath.ErrOverflow):
		return "overflow"
	default:
		return "internal"
	}
}
