package state

import (
	"math/big"
	"time"

	"github.com/google/uuid"

	fpmath "DriftShield/internal/math"
)

// MarketStatus is the lifecycle state of a prediction market. Status only
// moves forward: Open → Resolved or Open → Cancelled, never backward.
type MarketStatus int32

const (
	MarketStatusOpen MarketStatus = iota
	MarketStatusResolved
	MarketStatusCancelled
)

func (s MarketStatus) String() string {
	switch s {
	case MarketStatusOpen:
		return "Open"
	case MarketStatusResolved:
		return "Resolved"
	case MarketStatusCancelled:
		return "Cancelled"
	default:
		return "Unknown"
	}
}

// CanTransitionTo validates lifecycle transitions. Resolved and Cancelled
// are terminal. No operation currently transitions a market into Cancelled;
// the state exists as an administrative extension point.
func (s MarketStatus) CanTransitionTo(next MarketStatus) bool {
	validTransitions := map[MarketStatus][]MarketStatus{
		MarketStatusOpen: {
			MarketStatusResolved,
			MarketStatusCancelled,
		},
	}

	for _, allowed := range validTransitions[s] {
		if next == allowed {
			return true
		}
	}
	return false
}

// Outcome is a binary market outcome: YES or NO.
type Outcome bool

const (
	OutcomeYes Outcome = true
	OutcomeNo  Outcome = false
)

func (o Outcome) String() string {
	if o == OutcomeYes {
		return "YES"
	}
	return "NO"
}

// MaxQuestionLen bounds the free-text market question.
const MaxQuestionLen = 256

// Market is one prediction market per (creator, model) pair. The real
// stake pools (YesPool/NoPool) are separate from the virtual AMM reserves:
// pools back payouts, reserves only price trades.
type Market struct {
	Key      Key
	Creator  uuid.UUID
	Model    Key // registry key of the referenced model
	Question string

	YesPool     uint64
	NoPool      uint64
	TotalVolume uint64
	MinStake    uint64

	AMMEnabled        bool
	VirtualLiquidity  uint64 // creator-supplied seed, immutable after init
	VirtualYesReserve uint64
	VirtualNoReserve  uint64
	TotalYesShares    uint64
	TotalNoShares     uint64

	Status         MarketStatus
	ResolutionTime time.Time
	ResolvedAt     time.Time
	WinningOutcome *Outcome

	CreatedAt time.Time
}

// KConstant returns the constant-product invariant fixed at creation:
// seed × seed, widened to 128 bits. It is derived from the immutable seed
// rather than the current reserves, so floor truncation during trades can
// never drift it.
func (m *Market) KConstant() *big.Int {
	return fpmath.Mul128(m.VirtualLiquidity, m.VirtualLiquidity)
}

// Reserve returns the virtual reserve for the given outcome.
func (m *Market) Reserve(o Outcome) uint64 {
	if o == OutcomeYes {
		return m.VirtualYesReserve
	}
	return m.VirtualNoReserve
}

// Pool returns the real stake pool for the given outcome.
func (m *Market) Pool(o Outcome) uint64 {
	if o == OutcomeYes {
		return m.YesPool
	}
	return m.NoPool
}

// TotalShares returns the cumulative shares issued for the given outcome.
func (m *Market) TotalShares(o Outcome) uint64 {
	if o == OutcomeYes {
		return m.TotalYesShares
	}
	return m.TotalNoShares
}

// Clone returns a deep copy so callers never share mutable state with the
// backing store.
func (m *Market) Clone() *Market {
	cp := *m
	if m.WinningOutcome != nil {
		o := *m.WinningOutcome
		cp.WinningOutcome = &o
	}
	return &cp
}
