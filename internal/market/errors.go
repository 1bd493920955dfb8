package market

import "errors"

// Operation errors are sentinels so callers (and the HTTP layer) can branch
// with errors.Is. They are always reported synchronously; nothing is retried
// and a failing guard or arithmetic step leaves no partial mutation behind.
var (
	// ErrUnauthorized is returned when the caller does not hold the
	// required identity (market creator, position owner).
	ErrUnauthorized = errors.New("caller is not authorized for this operation")

	// ErrMarketClosed is returned when an operation requires an Open
	// market but the market has already left that state.
	ErrMarketClosed = errors.New("market is not open")

	// ErrMarketExpired is returned on bets placed at or after the
	// resolution time.
	ErrMarketExpired = errors.New("market resolution time has passed")

	// ErrMarketNotExpired is returned on resolution attempts before the
	// resolution time.
	ErrMarketNotExpired = errors.New("market resolution time has not been reached")

	// ErrMarketNotResolved is returned on claims against an unresolved
	// market.
	ErrMarketNotResolved = errors.New("market is not resolved")

	// ErrMarketAlreadyResolved is returned on a second resolution attempt.
	ErrMarketAlreadyResolved = errors.New("market is already resolved")

	// ErrInvalidResolutionTime is returned when a market is created with a
	// resolution time that is not strictly in the future.
	ErrInvalidResolutionTime = errors.New("resolution time must be in the future")

	// ErrStakeTooLow is returned on bets below the market minimum.
	ErrStakeTooLow = errors.New("stake is below the market minimum")

	// ErrQuestionTooLong is returned when the market question exceeds the
	// bounded length.
	ErrQuestionTooLong = errors.New("question exceeds maximum length")

	// ErrInvalidLiquidity is returned when a curve-priced market is
	// created without a positive virtual liquidity seed.
	ErrInvalidLiquidity = errors.New("virtual liquidity seed must be positive")

	// ErrNoWinningStake is returned on claims by positions holding zero
	// shares on the winning side.
	ErrNoWinningStake = errors.New("no winning shares to claim")

	// ErrAlreadyClaimed is returned on a second claim for the same
	// position. The first claim succeeded; the caller holds the payout.
	ErrAlreadyClaimed = errors.New("winnings already claimed")
)
