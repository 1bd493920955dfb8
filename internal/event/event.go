// Package event defines the structured notifications emitted after each
// successful operation. Emission is best-effort and observational only:
// nothing in the ledger depends on an event being delivered.
package event

import (
	"time"

	"github.com/google/uuid"

	"DriftShield/internal/state"
)

// Type discriminates event payloads.
type Type int32

const (
	TypeUnknown Type = iota
	TypeMarketCreated
	TypeBetPlaced
	TypeMarketResolved
	TypeWinningsClaimed
	TypeModelRegistered
	TypeReceiptSubmitted
	TypeDriftAlert
	TypePolicyPurchased
	TypeClaimPaid
	TypePolicyCancelled
)

func (t Type) String() string {
	switch t {
	case TypeMarketCreated:
		return "MarketCreated"
	case TypeBetPlaced:
		return "BetPlaced"
	case TypeMarketResolved:
		return "MarketResolved"
	case TypeWinningsClaimed:
		return "WinningsClaimed"
	case TypeModelRegistered:
		return "ModelRegistered"
	case TypeReceiptSubmitted:
		return "ReceiptSubmitted"
	case TypeDriftAlert:
		return "DriftAlert"
	case TypePolicyPurchased:
		return "PolicyPurchased"
	case TypeClaimPaid:
		return "ClaimPaid"
	case TypePolicyCancelled:
		return "PolicyCancelled"
	default:
		return "Unknown"
	}
}

// Event is implemented by every notification payload.
type Event interface {
	// EventType returns the discriminator.
	EventType() Type

	// EntityKey returns the key of the entity the event concerns, used
	// as the subject suffix for routing.
	EntityKey() state.Key
}

type MarketCreated struct {
	Market           state.Key `json:"market"`
	Creator          uuid.UUID `json:"creator"`
	Model            state.Key `json:"model"`
	Question         string    `json:"question"`
	AMMEnabled       bool      `json:"amm_enabled"`
	VirtualLiquidity uint64    `json:"virtual_liquidity"`
	ResolutionTime   time.Time `json:"resolution_time"`
	Timestamp        time.Time `json:"timestamp"`
}

func (e MarketCreated) EventType() Type      { return TypeMarketCreated }
func (e MarketCreated) EntityKey() state.Key { return e.Market }

type BetPlaced struct {
	Market      state.Key     `json:"market"`
	User        uuid.UUID     `json:"user"`
	Outcome     state.Outcome `json:"outcome"`
	Amount      uint64        `json:"amount"`
	Shares      uint64        `json:"shares"`
	YesPool     uint64        `json:"yes_pool"`
	NoPool      uint64        `json:"no_pool"`
	YesPriceBps uint64        `json:"yes_price_bps"`
	NoPriceBps  uint64        `json:"no_price_bps"`
	Timestamp   time.Time     `json:"timestamp"`
}

func (e BetPlaced) EventType() Type      { return TypeBetPlaced }
func (e BetPlaced) EntityKey() state.Key { return e.Market }

type MarketResolved struct {
	Market         state.Key     `json:"market"`
	WinningOutcome state.Outcome `json:"winning_outcome"`
	YesPool        uint64        `json:"yes_pool"`
	NoPool         uint64        `json:"no_pool"`
	Timestamp      time.Time     `json:"timestamp"`
}

func (e MarketResolved) EventType() Type      { return TypeMarketResolved }
func (e MarketResolved) EntityKey() state.Key { return e.Market }

type WinningsClaimed struct {
	Market    state.Key `json:"market"`
	User      uuid.UUID `json:"user"`
	Payout    uint64    `json:"payout"`
	Timestamp time.Time `json:"timestamp"`
}

func (e WinningsClaimed) EventType() Type      { return TypeWinningsClaimed }
func (e WinningsClaimed) EntityKey() state.Key { return e.Market }

type ModelRegistered struct {
	Model     state.Key `json:"model"`
	Owner     uuid.UUID `json:"owner"`
	ModelID   string    `json:"model_id"`
	Name      string    `json:"name"`
	Timestamp time.Time `json:"timestamp"`
}

func (e ModelRegistered) EventType() Type      { return TypeModelRegistered }
func (e ModelRegistered) EntityKey() state.Key { return e.Model }

type ReceiptSubmitted struct {
	Model      state.Key `json:"model"`
	Receipt    uuid.UUID `json:"receipt"`
	Accuracy   uint64    `json:"accuracy"`
	DriftScore uint64    `json:"drift_score"`
	Timestamp  time.Time `json:"timestamp"`
}

func (e ReceiptSubmitted) EventType() Type      { return TypeReceiptSubmitted }
func (e ReceiptSubmitted) EntityKey() state.Key { return e.Model }

type DriftAlert struct {
	Model           state.Key `json:"model"`
	AccuracyDrop    uint64    `json:"accuracy_drop"`
	CurrentAccuracy uint64    `json:"current_accuracy"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e DriftAlert) EventType() Type      { return TypeDriftAlert }
func (e DriftAlert) EntityKey() state.Key { return e.Model }

type PolicyPurchased struct {
	Policy         state.Key `json:"policy"`
	Owner          uuid.UUID `json:"owner"`
	Model          state.Key `json:"model"`
	CoverageAmount uint64    `json:"coverage_amount"`
	Premium        uint64    `json:"premium"`
	Timestamp      time.Time `json:"timestamp"`
}

func (e PolicyPurchased) EventType() Type      { return TypePolicyPurchased }
func (e PolicyPurchased) EntityKey() state.Key { return e.Policy }

type ClaimPaid struct {
	Policy          state.Key `json:"policy"`
	Owner           uuid.UUID `json:"owner"`
	Payout          uint64    `json:"payout"`
	AccuracyAtClaim uint64    `json:"accuracy_at_claim"`
	Timestamp       time.Time `json:"timestamp"`
}

func (e ClaimPaid) EventType() Type      { return TypeClaimPaid }
func (e ClaimPaid) EntityKey() state.Key { return e.Policy }

type PolicyCancelled struct {
	Policy       state.Key `json:"policy"`
	RefundAmount uint64    `json:"refund_amount"`
	Timestamp    time.Time `json:"timestamp"`
}

func (e PolicyCancelled) EventType() Type      { return TypePolicyCancelled }
func (e PolicyCancelled) EntityKey() state.Key { return e.Policy }
