// Package market implements the prediction-market program: market lifecycle,
// curve-priced betting, and share-based settlement of the pooled stake.
package market

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"DriftShield/internal/amm"
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

const program = "market"

// ModelRegistry is the cross-program hook for flagging referenced models as
// having an active market. Best-effort; a hook failure never rolls back the
// market operation.
type ModelRegistry interface {
	UpdateMarketStatus(ctx context.Context, caller uuid.UUID, as registry.ProgramIdentity, modelKey state.Key, active bool) error
}

// Engine executes prediction-market operations. Every mutating operation
// follows the same effect order: guards, then all arithmetic for the
// would-be new state, then the single vault transfer, then entity writes,
// then metrics and notification. A failure at any step aborts with no
// mutation from the later steps.
//
// Conflicting operations on the same market serialize on a per-key mutex;
// claims serialize on the position key. Distinct entities proceed
// concurrently.
type Engine struct {
	store   store.Store
	vault   vault.Vault
	clock   host.Clock
	emitter emit.Emitter
	metrics *observability.Metrics
	log     zerolog.Logger

	registry ModelRegistry

	mu    sync.Mutex
	locks map[state.Key]*sync.Mutex
}

func NewEngine(st store.Store, v vault.Vault, clock host.Clock, emitter emit.Emitter, metrics *observability.Metrics, log zerolog.Logger) *Engine {
	if emitter == nil {
		emitter = emit.Nop{}
	}
	return &Engine{
		store:   st,
		vault:   v,
		clock:   clock,
		emitter: emitter,
		metrics: metrics,
		log:     log,
		locks:   make(map[state.Key]*sync.Mutex),
	}
}

// SetRegistry wires the model-registry hook. Optional.
func (e *Engine) SetRegistry(r ModelRegistry) {
	e.registry = r
}

// markModelActive flips the referenced model's active-market flag through
// the registry hook, if wired.
func (e *Engine) markModelActive(ctx context.Context, caller uuid.UUID, model state.Key, active bool) {
	if e.registry == nil {
		return
	}
	if err := e.registry.UpdateMarketStatus(ctx, caller, registry.ProgramMarket, model, active); err != nil {
		e.log.Warn().Err(err).Str("model", model.String()).Msg("market status hook failed")
	}
}

// lock acquires the serialization mutex for an entity key and returns the
// unlock function. Lock entries are never removed; the key space is small
// relative to the entities themselves.
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

// CreateMarketParams are the caller-supplied inputs for CreateMarket.
type CreateMarketParams struct {
	Creator          uuid.UUID
	Model            state.Key
	Question         string
	ResolutionTime   time.Time
	MinStake         uint64
	AMMEnabled       bool
	VirtualLiquidity uint64
}

// CreateMarket creates an Open market for (creator, model). With AMMEnabled
// both virtual reserves start at the liquidity seed and the constant product
// is fixed at seed squared; without it the market settles in parity mode and
// carries no reserves.
func (e *Engine) CreateMarket(ctx context.Context, p CreateMarketParams) (*state.Market, error) {
	const op = "create_market"
	defer e.observe(op, e.clock.Now())

	if len(p.Question) > state.MaxQuestionLen {
		return nil, e.reject(op, ErrQuestionTooLong)
	}
	now := e.clock.Now()
	if !p.ResolutionTime.After(now) {
		return nil, e.reject(op, ErrInvalidResolutionTime)
	}
	if p.AMMEnabled && p.VirtualLiquidity == 0 {
		return nil, e.reject(op, ErrInvalidLiquidity)
	}

	key := state.MarketKey(p.Creator, p.Model)
	unlock := e.lock(key)
	defer unlock()

	if _, err := e.store.GetMarket(ctx, key); err == nil {
		return nil, e.reject(op, fmt.Errorf("market %s: %w", key, store.ErrAlreadyExists))
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, e.reject(op, err)
	}

	m := &state.Market{
		Key:            key,
		Creator:        p.Creator,
		Model:          p.Model,
		Question:       p.Question,
		MinStake:       p.MinStake,
		AMMEnabled:     p.AMMEnabled,
		Status:         state.MarketStatusOpen,
		ResolutionTime: p.ResolutionTime,
		CreatedAt:      now,
	}
	if p.AMMEnabled {
		m.VirtualLiquidity = p.VirtualLiquidity
		m.VirtualYesReserve = p.VirtualLiquidity
		m.VirtualNoReserve = p.VirtualLiquidity
	}

	if err := e.store.PutMarket(ctx, m); err != nil {
		return nil, e.reject(op, err)
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
		e.metrics.MarketsCreated.Inc()
		e.metrics.OpenMarkets.Inc()
	}
	e.emitter.Emit(event.MarketCreated{
		Market:           key,
		Creator:          p.Creator,
		Model:            p.Model,
		Question:         p.Question,
		AMMEnabled:       p.AMMEnabled,
		VirtualLiquidity: m.VirtualLiquidity,
		ResolutionTime:   p.ResolutionTime,
		Timestamp:        now,
	})
	e.markModelActive(ctx, p.Creator, p.Model, true)
	e.log.Info().Str("market", key.String()).Str("creator", p.Creator.String()).Msg("market created")
	return m.Clone(), nil
}

// PlaceBet stakes amount on an outcome. The stake moves into the market's
// custody account; shares are issued against the curve (or 1:1 in parity
// mode) and accumulated on the caller's position, which is created lazily
// on first bet.
func (e *Engine) PlaceBet(ctx context.Context, user uuid.UUID, marketKey state.Key, outcome state.Outcome, amount uint64) (*state.Position, error) {
	const op = "place_bet"
	defer e.observe(op, e.clock.Now())

	unlock := e.lock(marketKey)
	defer unlock()

	m, err := e.store.GetMarket(ctx, marketKey)
	if err != nil {
		return nil, e.reject(op, err)
	}

	// Guards.
	if m.Status != state.MarketStatusOpen {
		return nil, e.reject(op, fmt.Errorf("market status %s: %w", m.Status, ErrMarketClosed))
	}
	now := e.clock.Now()
	if !now.Before(m.ResolutionTime) {
		return nil, e.reject(op, ErrMarketExpired)
	}
	if amount < m.MinStake {
		return nil, e.reject(op, fmt.Errorf("stake %d below minimum %d: %w", amount, m.MinStake, ErrStakeTooLow))
	}

	// Arithmetic. All counters for the would-be new state are computed
	// before any transfer; an overflow aborts the whole operation here.
	var shares uint64
	next := m.Clone()
	if m.AMMEnabled {
		q, qerr := amm.QuoteShares(m.KConstant(), m.VirtualYesReserve, m.VirtualNoReserve, amount, outcome)
		if qerr != nil {
			return nil, e.reject(op, qerr)
		}
		shares = q.SharesOut
		next.VirtualYesReserve = q.NewYesReserve
		next.VirtualNoReserve = q.NewNoReserve
	} else {
		shares = amm.ParityShares(amount)
	}

	if err := accumulateMarket(next, outcome, amount, shares); err != nil {
		return nil, e.reject(op, err)
	}

	posKey := state.PositionKey(marketKey, user)
	pos, err := e.store.GetPosition(ctx, posKey)
	if errors.Is(err, store.ErrNotFound) {
		pos = &state.Position{Key: posKey, Market: marketKey, User: user}
	} else if err != nil {
		return nil, e.reject(op, err)
	}
	if err := accumulatePosition(pos, outcome, amount, shares); err != nil {
		return nil, e.reject(op, err)
	}

	// Transfer, then writes. A failed transfer leaves market and position
	// untouched in the store.
	from := vault.UserAccount(user)
	to := vault.CustodyAccount(marketKey)
	if err := e.vault.Transfer(ctx, from, to, amount, vault.UserAuthority(user)); err != nil {
		return nil, e.reject(op, fmt.Errorf("stake transfer: %w", err))
	}

	if err := e.store.PutMarket(ctx, next); err != nil {
		return nil, e.reject(op, err)
	}
	if err := e.store.PutPosition(ctx, pos); err != nil {
		return nil, e.reject(op, err)
	}

	yesBps, _ := amm.SpotPrice(next.VirtualYesReserve, next.VirtualNoReserve, state.OutcomeYes)
	noBps, _ := amm.SpotPrice(next.VirtualYesReserve, next.VirtualNoReserve, state.OutcomeNo)

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
		e.metrics.BetsPlaced.WithLabelValues(outcome.String()).Inc()
		e.metrics.BetVolume.Add(float64(amount))
	}
	e.emitter.Emit(event.BetPlaced{
		Market:      marketKey,
		User:        user,
		Outcome:     outcome,
		Amount:      amount,
		Shares:      shares,
		YesPool:     next.YesPool,
		NoPool:      next.NoPool,
		YesPriceBps: yesBps,
		NoPriceBps:  noBps,
		Timestamp:   now,
	})
	return pos.Clone(), nil
}

// ResolveMarket records the winning outcome. Only the creator may resolve,
// only once the resolution time has been reached, and only once.
func (e *Engine) ResolveMarket(ctx context.Context, caller uuid.UUID, marketKey state.Key, outcome state.Outcome) error {
	const op = "resolve_market"
	defer e.observe(op, e.clock.Now())

	unlock := e.lock(marketKey)
	defer unlock()

	m, err := e.store.GetMarket(ctx, marketKey)
	if err != nil {
		return e.reject(op, err)
	}

	if caller != m.Creator {
		return e.reject(op, fmt.Errorf("caller %s is not the market creator: %w", caller, ErrUnauthorized))
	}
	if m.Status == state.MarketStatusResolved {
		return e.reject(op, ErrMarketAlreadyResolved)
	}
	if !m.Status.CanTransitionTo(state.MarketStatusResolved) {
		return e.reject(op, fmt.Errorf("market status %s: %w", m.Status, ErrMarketClosed))
	}
	now := e.clock.Now()
	if now.Before(m.ResolutionTime) {
		return e.reject(op, ErrMarketNotExpired)
	}

	next := m.Clone()
	next.Status = state.MarketStatusResolved
	next.ResolvedAt = now
	next.WinningOutcome = &outcome

	if err := e.store.PutMarket(ctx, next); err != nil {
		return e.reject(op, err)
	}

	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
		e.metrics.MarketsResolved.Inc()
		e.metrics.OpenMarkets.Dec()
	}
	e.emitter.Emit(event.MarketResolved{
		Market:         marketKey,
		WinningOutcome: outcome,
		YesPool:        next.YesPool,
		NoPool:         next.NoPool,
		Timestamp:      now,
	})
	e.markModelActive(ctx, caller, next.Model, false)
	e.log.Info().Str("market", marketKey.String()).Str("outcome", outcome.String()).Msg("market resolved")
	return nil
}

// ClaimWinnings pays out the caller's share of the pooled stake on a
// resolved market. The payout is strictly share-based:
// winning_shares * (yes_pool + no_pool) / total_winning_shares, floored,
// with the remainder staying in custody. The claimed flag is set only after
// the payout transfer returns, so a failed transfer leaves the position
// claimable.
func (e *Engine) ClaimWinnings(ctx context.Context, user uuid.UUID, marketKey state.Key) (uint64, error) {
	const op = "claim_winnings"
	defer e.observe(op, e.clock.Now())

	posKey := state.PositionKey(marketKey, user)
	unlock := e.lock(posKey)
	defer unlock()

	// The market is immutable after resolution, so claims only need the
	// position lock.
	m, err := e.store.GetMarket(ctx, marketKey)
	if err != nil {
		return 0, e.reject(op, err)
	}
	if m.Status != state.MarketStatusResolved || m.WinningOutcome == nil {
		return 0, e.reject(op, fmt.Errorf("market status %s: %w", m.Status, ErrMarketNotResolved))
	}

	pos, err := e.store.GetPosition(ctx, posKey)
	if err != nil {
		return 0, e.reject(op, err)
	}
	if pos.User != user {
		return 0, e.reject(op, ErrUnauthorized)
	}
	if pos.Claimed {
		return 0, e.reject(op, ErrAlreadyClaimed)
	}

	winner := *m.WinningOutcome
	winShares := pos.Shares(winner)
	if winShares == 0 {
		return 0, e.reject(op, ErrNoWinningStake)
	}

	totalPool, err := fpmath.CheckedAdd(m.YesPool, m.NoPool)
	if err != nil {
		return 0, e.reject(op, err)
	}
	payout, err := fpmath.MulDivFloor(winShares, totalPool, m.TotalShares(winner))
	if err != nil {
		return 0, e.reject(op, err)
	}

	from := vault.CustodyAccount(marketKey)
	to := vault.UserAccount(user)
	if err := e.vault.TransferKind(ctx, from, to, payout, vault.CustodyAuthority(marketKey), vault.JournalKindPayout); err != nil {
		return 0, e.reject(op, fmt.Errorf("payout transfer: %w", err))
	}

	pos.Claimed = true
	if err := e.store.PutPosition(ctx, pos); err != nil {
		// The transfer is committed; surface the write failure but log it
		// loudly, the position must not be claimable again.
		e.log.Error().Err(err).Str("position", posKey.String()).Msg("claimed flag write failed after payout")
		return payout, e.reject(op, err)
	}

	now := e.clock.Now()
	if e.metrics != nil {
		e.metrics.OpsApplied.WithLabelValues(program, op).Inc()
		e.metrics.PayoutsClaimed.Inc()
		e.metrics.PayoutTotal.Add(float64(payout))
	}
	e.emitter.Emit(event.WinningsClaimed{
		Market:    marketKey,
		User:      user,
		Payout:    payout,
		Timestamp: now,
	})
	return payout, nil
}

// Prices is the read-only spot price pair for a market, in basis points.
type Prices struct {
	YesBps uint64
	NoBps  uint64
}

// GetPrices returns the current curve prices. Side-effect-free.
func (e *Engine) GetPrices(ctx context.Context, marketKey state.Key) (Prices, error) {
	m, err := e.store.GetMarket(ctx, marketKey)
	if err != nil {
		return Prices{}, err
	}

	yesBps, err := amm.SpotPrice(m.VirtualYesReserve, m.VirtualNoReserve, state.OutcomeYes)
	if err != nil {
		return Prices{}, err
	}
	noBps, err := amm.SpotPrice(m.VirtualYesReserve, m.VirtualNoReserve, state.OutcomeNo)
	if err != nil {
		return Prices{}, err
	}
	return Prices{YesBps: yesBps, NoBps: noBps}, nil
}

// accumulateMarket applies a bet's counters to the market copy. Pools,
// volume, and shares fail explicitly on overflow; nothing wraps.
func accumulateMarket(m *state.Market, outcome state.Outcome, amount, shares uint64) error {
	var err error
	if outcome == state.OutcomeYes {
		if m.YesPool, err = fpmath.CheckedAdd(m.YesPool, amount); err != nil {
			return fmt.Errorf("yes pool: %w", err)
		}
		if m.TotalYesShares, err = fpmath.CheckedAdd(m.TotalYesShares, shares); err != nil {
			return fmt.Errorf("yes shares: %w", err)
		}
	} else {
		if m.NoPool, err = fpmath.CheckedAdd(m.NoPool, amount); err != nil {
			return fmt.Errorf("no pool: %w", err)
		}
		if m.TotalNoShares, err = fpmath.CheckedAdd(m.TotalNoShares, shares); err != nil {
			return fmt.Errorf("no shares: %w", err)
		}
	}
	if m.TotalVolume, err = fpmath.CheckedAdd(m.TotalVolume, amount); err != nil {
		return fmt.Errorf("total volume: %w", err)
	}
	return nil
}

// accumulatePosition applies a bet's counters to the position.
func accumulatePosition(p *state.Position, outcome state.Outcome, amount, shares uint64) error {
	var err error
	if outcome == state.OutcomeYes {
		if p.YesStake, err = fpmath.CheckedAdd(p.YesStake, amount); err != nil {
			return fmt.Errorf("yes stake: %w", err)
		}
		if p.YesShares, err = fpmath.CheckedAdd(p.YesShares, shares); err != nil {
			return fmt.Errorf("yes shares: %w", err)
		}
	} else {
		if p.NoStake, err = fpmath.CheckedAdd(p.NoStake, amount); err != nil {
			return fmt.Errorf("no stake: %w", err)
		}
		if p.NoShares, err = fpmath.CheckedAdd(p.NoShares, shares); err != nil {
			return fmt.Errorf("no shares: %w", err)
		}
	}
	if p.TotalStake, err = fpmath.CheckedAdd(p.TotalStake, amount); err != nil {
		return fmt.Errorf("total stake: %w", err)
	}
	return nil
}

// observe records operation duration when metrics are wired.
func (e *Engine) observe(op string, start time.Time) {
	if e.metrics == nil {
		return
	}
	e.metrics.OpDuration.WithLabelValues(program, op).Observe(e.clock.Now().Sub(start).Seconds())
}

// reject records the rejection metric and returns the error unchanged.
func (e *Engine) reject(op string, err error) error {
	if e.metrics != nil {
		e.metrics.OpsRejected.WithLabelValues(program, op, rejectReason(err)).Inc()
	}
	return err
}

// rejectReason maps an operation error onto a bounded metrics label.
func rejectReason(err error) string {
	switch {
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrMarketClosed), errors.Is(err, ErrMarketAlreadyResolved), errors.Is(err, ErrMarketNotResolved):
		return "lifecycle"
	case errors.Is(err, ErrMarketExpired), errors.Is(err, ErrMarketNotExpired):
		return "timing"
	case errors.Is(err, ErrStakeTooLow), errors.Is(err, ErrQuestionTooLong),
		errors.Is(err, ErrInvalidLiquidity), errors.Is(err, ErrInvalidResolutionTime),
		errors.Is(err, ErrNoWinningStake):
		return "validation"
	case errors.Is(err, ErrAlreadyClaimed):
		return "already_done"
	case errors.Is(err, amm.ErrInsufficientLiquidity):
		return "insufficient_liquidity"
	case errors.Is(err, fpmath.ErrOverflow), errors.Is(err, fpmath.ErrUnderflow):
		return "overflow"
	case errors.Is(err, store.ErrNotFound):
		return "not_found"
	case errors.Is(err, store.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, vault.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, vault.ErrUnauthorizedTransfer):
		return "transfer_unauthorized"
	default:
		return "internal"
	}
}
