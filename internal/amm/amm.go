// Package amm implements the constant-product bonding curve that prices
// binary outcome shares. The functions here are stateless: they take the
// current virtual reserves and the immutable k constant and return the
// post-trade reserves and share issuance. Real stake pools are tracked
// elsewhere; the reserves are purely a pricing device.
package amm

import (
	"errors"
	"math/big"

	fpmath "DriftShield/internal/math"
	"DriftShield/internal/state"
)

// ErrInsufficientLiquidity is returned when a trade is too large for the
// curve: the counter-reserve cannot decrease by at least one unit, so no
// shares can be issued.
var ErrInsufficientLiquidity = errors.New("insufficient virtual liquidity for trade size")

// BasisPointScale is the denominator for spot prices (10000 = 100%).
const BasisPointScale = 10_000

// Quote is the result of pricing a bet against the curve.
type Quote struct {
	SharesOut     uint64
	NewYesReserve uint64
	NewNoReserve  uint64
}

// QuoteShares prices a bet of `amount` on `outcome` against reserves
// (yesReserve, noReserve) with invariant k.
//
// The chosen reserve grows by the full amount; the opposite reserve is
// recomputed as floor(k / newChosen). The floor, not the exact real-valued
// solution, is what the bettor trades against, a small systematic premium
// paid to the pool. Shares out must be strictly positive.
func QuoteShares(k *big.Int, yesReserve, noReserve, amount uint64, outcome state.Outcome) (Quote, error) {
	chosen, other := yesReserve, noReserve
	if outcome == state.OutcomeNo {
		chosen, other = noReserve, yesReserve
	}

	newChosen, err := fpmath.CheckedAdd(chosen, amount)
	if err != nil {
		return Quote{}, err
	}

	newOther, err := fpmath.Div128(k, newChosen)
	if err != nil {
		return Quote{}, err
	}

	if newOther >= other {
		return Quote{}, ErrInsufficientLiquidity
	}
	shares := other - newOther

	q := Quote{SharesOut: shares}
	if outcome == state.OutcomeYes {
		q.NewYesReserve, q.NewNoReserve = newChosen, newOther
	} else {
		q.NewYesReserve, q.NewNoReserve = newOther, newChosen
	}
	return q, nil
}

// ParityShares prices a bet in P2P parity mode (AMM disabled): one share
// per unit staked. Kept as a distinct path, not a degenerate curve.
func ParityShares(amount uint64) uint64 {
	return amount
}

// SpotPrice returns the current price of an outcome in basis points:
// reserve(outcome) × 10000 / (R_yes + R_no). The reserve sum is display
// only, so a saturating add is acceptable there. With both reserves zero
// (degenerate input; cannot occur after creation) the price defaults to
// 5000.
func SpotPrice(yesReserve, noReserve uint64, outcome state.Outcome) (uint64, error) {
	sum := fpmath.SaturatingAdd(yesReserve, noReserve)
	if sum == 0 {
		return BasisPointScale / 2, nil
	}

	reserve := yesReserve
	if outcome == state.OutcomeNo {
		reserve = noReserve
	}
	return fpmath.MulDivFloor(reserve, BasisPointScale, sum)
}
