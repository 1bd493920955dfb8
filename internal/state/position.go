package state

import (
	"github.com/google/uuid"
)

// Position is one bettor's accumulated stake and shares in a market,
// created lazily on first bet. Stake and share counters are monotonically
// non-decreasing while the market is Open; Claimed flips exactly once.
type Position struct {
	Key    Key
	Market Key
	User   uuid.UUID

	YesStake   uint64
	NoStake    uint64
	TotalStake uint64

	YesShares uint64
	NoShares  uint64

	Claimed bool
}

// Stake returns the stake committed on the given side.
func (p *Position) Stake(o Outcome) uint64 {
	if o == OutcomeYes {
		return p.YesStake
	}
	return p.NoStake
}

// Shares returns the shares owned on the given side.
func (p *Position) Shares(o Outcome) uint64 {
	if o == OutcomeYes {
		return p.YesShares
	}
	return p.NoShares
}

// Clone returns a deep copy.
func (p *Position) Clone() *Position {
	cp := *p
	return &cp
}
