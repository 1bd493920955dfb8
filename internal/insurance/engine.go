// Package insurance implements the insurance program: policies against
// model drift, backed by a shared premium pool. A claim pays the full
// coverage when the model's reported accuracy falls below the policy
// threshold before expiry; cancellation refunds the premium pro-rata by
// time remaining.
package insurance

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DriftShield/internal/emit"
	"DriftShield/internal/event"
	"DriftShield/internal/host"
	fpmath "DriftShield/internal/math"
	"DriftShield/internal/observability"
	"DriftShield/internal/registry"
	"DriftShield/internal/state"
	"DriftShield/internal/store"
	"DriftShield/internal/vault"
)

const program = "insurance"

var (
	// ErrUnauthorized is returned when the caller does not own the policy.
	ErrUnauthorized = errors.New("caller does not own the policy")

	// ErrPolicyNotActive is returned for claims and cancellations against
	// a policy that has already reached a terminal status.
	ErrPolicyNotActive = errors.New("policy is not active")

	// ErrPolicyExpired is returned for claims filed after the expiry time.
	ErrPolicyExpired = errors.New("policy has expired")

	// ErrThresholdNotMet is returned when the model's reported accuracy is
	// at or above the policy threshold.
	ErrThresholdNotMet = errors.New("accuracy threshold not met for claim")

	// ErrInvalidDuration is returned when a policy is purchased with a
	// non-positive duration.
	ErrInvalidDuration = errors.New("policy duration must be positive")
)

// ModelRegistry is the cross-program hook for flagging models as insured.
// Best-effort; a hook failure never rolls back the policy operation.
type ModelRegistry interface {
	UpdateInsuranceStatus(ctx context.Context, caller uuid.UUID, as registry.ProgramIdentity, modelKey state.Key, insured bool) error
	GetModel(ctx context.Context, modelKey state.Key) (*state.ModelRecord, error)
}

// Engine executes insurance operations. Writes to the same policy serialize
// on a per-key mutex.
type Engine struct {
	store    store.Store
	vault    vault.Vault
	clock    host.Clock
	emitter  emit.Emitter
	registry ModelRegistry
	metrics  *observability.Metrics
	log      zerolog.Logger

	mu    sync.Mutex
	locks map[state.Key]*sync.Mutex
}

func NewEngine(st store.Store, v vault.Vault, clock host.Clock, emitter emit.Emitter, reg ModelRegistry, metrics *observability.Metrics, log zerolog.Logger) *Engine {
	if emitter == nil {
		emitter = emit.Nop{}
	}
	return &Engine{
		store:    st,
		vault:    v,
		clock:    clock,
		emitter:  emitter,
		registry: reg,
		metrics:  metrics,
		log:      log,
		locks:    make(map[state.Key]*sync.Mutex),
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

// PurchasePolicyParams are the caller-supplied inputs for PurchasePolicy.
type PurchasePolicyParams struct {
	Owner             uuid.UUID
	Model             state.Key
	CoverageAmount    uint64
	Premium           uint64
	AccuracyThreshold uint64 // basis points
	Duration          time.Duration
}

// PurchasePolicy moves the premium into the shared insurance pool and
// creates an Active policy for (owner, model).
func (e *Engine) PurchasePolicy(ctx context.Context, p PurchasePolicyParams) (*state.Policy, error) {
	const op = "purchase_policy"

	if p.Duration <= 0 {
		return nil, e.reject(op, ErrInvalidDuration)
	}

	key := state.PolicyKey(p.Owner, p.Model)
	unlock := e.lock(key)
	defer unlock()

	if _, err := e.store.GetPolicy(ctx, key); err == nil {
		return nil, e.reject(op, fmt.Errorf("policy %s: %w", key, store.ErrAlreadyExists))
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, e.reject(op, err)
	}

	from := vault.UserAccount(p.Owner)
	if err := e.vault.TransferKind(ctx, from, vault.InsurancePoolAccount, p.Premium, vault.UserAuthority(p.Owner), vault.JournalKindPremium); err != nil {
		return nil, e.reject(op, fmt.Errorf("premium transfer: %w", err))
	}

	now := e.clock.Now()
	pol := &state.Policy{
		Key:               key,
		Owner:             p.Owner,
		Model:             p.Model,
		CoverageAmount:    p.CoverageAmount,
		PremiumPaid:       p.Premium,
		AccuracyThreshold: p.AccuracyThreshold,
		Status:            state.PolicyStatusActive,
		StartTime:         now,
		ExpiryTime:        now.Add(p.Duration),
	}
	if err := e.store.PutPolicy(ctx, pol); err != nil {
		return nil, e.reject(op, err)
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
		e.metrics.PoliciesActive.Inc()
	}
	e.emitter.Emit(event.PolicyPurchased{
		Policy:         key,
		Owner:          p.Owner,
		Model:          p.Model,
		CoverageAmount: p.CoverageAmount,
		Premium:        p.Premium,
		Timestamp:      now,
	})
	e.markInsured(ctx, p.Owner, p.Model, true)
	e.log.Info().Str("policy", key.String()).Uint64("coverage", p.CoverageAmount).Msg("policy purchased")
	return pol.Clone(), nil
}

// FileClaim pays the full coverage amount from the pool when the model's
// reported accuracy is below the policy threshold and the policy has not
// expired. The accuracy is read from the registry's model record, not
// supplied by the caller.
func (e *Engine) FileClaim(ctx context.Context, caller uuid.UUID, policyKey state.Key) (uint64, error) {
	const op = "file_claim"

	unlock := e.lock(policyKey)
	defer unlock()

	pol, err := e.store.GetPolicy(ctx, policyKey)
	if err != nil {
		return 0, e.reject(op, err)
	}
	if caller != pol.Owner {
		return 0, e.reject(op, ErrUnauthorized)
	}
	if pol.Status != state.PolicyStatusActive {
		return 0, e.reject(op, fmt.Errorf("policy status %s: %w", pol.Status, ErrPolicyNotActive))
	}
	now := e.clock.Now()
	if now.After(pol.ExpiryTime) {
		return 0, e.reject(op, ErrPolicyExpired)
	}

	if e.registry == nil {
		return 0, e.reject(op, errors.New("registry not wired"))
	}
	model, err := e.registry.GetModel(ctx, pol.Model)
	if err != nil {
		return 0, e.reject(op, fmt.Errorf("load model: %w", err))
	}
	if model.CurrentAccuracy >= pol.AccuracyThreshold {
		return 0, e.reject(op, fmt.Errorf("accuracy %d >= threshold %d: %w", model.CurrentAccuracy, pol.AccuracyThreshold, ErrThresholdNotMet))
	}

	payout := pol.CoverageAmount
	to := vault.UserAccount(pol.Owner)
	if err := e.vault.TransferKind(ctx, vault.InsurancePoolAccount, to, payout, vault.PoolAuthority(), vault.JournalKindPayout); err != nil {
		return 0, e.reject(op, fmt.Errorf("claim transfer: %w", err))
	}

	next := pol.Clone()
	next.Status = state.PolicyStatusClaimed
	next.ClaimPaid = payout
	if err := e.store.PutPolicy(ctx, next); err != nil {
		e.log.Error().Err(err).Str("policy", policyKey.String()).Msg("status write failed after claim payout")
		return payout, e.reject(op, err)
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
		e.metrics.PoliciesActive.Dec()
		e.metrics.ClaimsPaidTotal.Add(float64(payout))
	}
	e.emitter.Emit(event.ClaimPaid{
		Policy:          policyKey,
		Owner:           pol.Owner,
		Payout:          payout,
		AccuracyAtClaim: model.CurrentAccuracy,
		Timestamp:       now,
	})
	e.markInsured(ctx, pol.Owner, pol.Model, false)
	e.log.Info().Str("policy", policyKey.String()).Uint64("payout", payout).Msg("claim paid")
	return payout, nil
}

// CancelPolicy refunds the premium weighted by time remaining, floor
// division, and marks the policy Cancelled. Cancelling after expiry is
// allowed and refunds nothing.
func (e *Engine) CancelPolicy(ctx context.Context, caller uuid.UUID, policyKey state.Key) (uint64, error) {
	const op = "cancel_policy"

	unlock := e.lock(policyKey)
	defer unlock()

	pol, err := e.store.GetPolicy(ctx, policyKey)
	if err != nil {
		return 0, e.reject(op, err)
	}
	if caller != pol.Owner {
		return 0, e.reject(op, ErrUnauthorized)
	}
	if pol.Status != state.PolicyStatusActive {
		return 0, e.reject(op, fmt.Errorf("policy status %s: %w", pol.Status, ErrPolicyNotActive))
	}

	now := e.clock.Now()
	refund, err := proRataRefund(pol, now)
	if err != nil {
		return 0, e.reject(op, err)
	}

	if refund > 0 {
		to := vault.UserAccount(pol.Owner)
		if err := e.vault.TransferKind(ctx, vault.InsurancePoolAccount, to, refund, vault.PoolAuthority(), vault.JournalKindRefund); err != nil {
			return 0, e.reject(op, fmt.Errorf("refund transfer: %w", err))
		}
	}

	next := pol.Clone()
	next.Status = state.PolicyStatusCancelled
	if err := e.store.PutPolicy(ctx, next); err != nil {
		e.log.Error().Err(err).Str("policy", policyKey.String()).Msg("status write failed after refund")
		return refund, e.reject(op, err)
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
		e.metrics.PoliciesActive.Dec()
	}
	e.emitter.Emit(event.PolicyCancelled{
		Policy:       policyKey,
		RefundAmount: refund,
		Timestamp:    now,
	})
	e.markInsured(ctx, pol.Owner, pol.Model, false)
	return refund, nil
}

// GetPolicy returns the policy record. Read-only.
func (e *Engine) GetPolicy(ctx context.Context, policyKey state.Key) (*state.Policy, error) {
	return e.store.GetPolicy(ctx, policyKey)
}

// proRataRefund is premium × time_remaining / total_duration with floor
// division. Zero once expired.
func proRataRefund(pol *state.Policy, now time.Time) (uint64, error) {
	if !now.Before(pol.ExpiryTime) {
		return 0, nil
	}
	total := pol.ExpiryTime.Sub(pol.StartTime)
	remaining := pol.ExpiryTime.Sub(now)
	if total <= 0 {
		return 0, nil
	}
	return fpmath.MulDivFloor(pol.PremiumPaid, uint64(remaining), uint64(total))
}

func (e *Engine) markInsured(ctx context.Context, caller uuid.UUID, model state.Key, insured bool) {
	if e.registry == nil {
		return
	}
	if err := e.registry.UpdateInsuranceStatus(ctx, caller, registry.ProgramInsurance, model, insured); err != nil {
		e.log.Warn().Err(err).Str("model", model.String()).Msg("insurance status hook failed")
	}
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
	case errors.Is(err, ErrPolicyNotActive), errors.Is(err, ErrPolicyExpired):
		return "lifecycle"
	case errors.Is(err, ErrThresholdNotMet), errors.Is(err, ErrInvalidDuration):
		return "validation"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, vault.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, fpmath.ErrOverflow):
		return "overflow"
	default:
		return "internal"
	}
}
