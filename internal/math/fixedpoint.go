// Package math provides overflow-checked integer arithmetic for ledger
// amounts. All quantities in the system are unsigned 64-bit fixed-point
// values; any product or quotient that can exceed that range goes through a
// widened 128-bit intermediate backed by math/big.
package math

import (
	"errors"
	stdmath "math"
	"math/big"
	"sync"
)

var (
	// ErrOverflow is returned when an additive accumulation would exceed
	// the 64-bit unsigned range. Accumulators never wrap or saturate.
	ErrOverflow = errors.New("arithmetic overflow")

	// ErrUnderflow is returned when a checked subtraction would go below zero.
	ErrUnderflow = errors.New("arithmetic underflow")

	// ErrDivideByZero is returned for a zero denominator.
	ErrDivideByZero = errors.New("division by zero")
)

// int128Pool recycles big.Int scratch values for intermediate calculations.
var int128Pool = &sync.Pool{
	New: func() interface{} {
		return new(big.Int)
	},
}

func getInt128() *big.Int {
	return int128Pool.Get().(*big.Int)
}

func putInt128(v *big.Int) {
	v.SetUint64(0)
	int128Pool.Put(v)
}

// Mul128 returns a * b as a big.Int. The result is freshly allocated and
// owned by the caller.
func Mul128(a, b uint64) *big.Int {
	result := new(big.Int).SetUint64(a)
	factor := getInt128().SetUint64(b)
	result.Mul(result, factor)
	putInt128(factor)
	return result
}

// Div128 returns floor(numerator / denominator) for a widened numerator.
// It fails if the quotient does not fit in uint64.
func Div128(numerator *big.Int, denominator uint64) (uint64, error) {
	if denominator == 0 {
		return 0, ErrDivideByZero
	}

	quotient := getInt128()
	denom := getInt128().SetUint64(denominator)
	quotient.Div(numerator, denom)

	var (
		result uint64
		err    error
	)
	if quotient.IsUint64() {
		result = quotient.Uint64()
	} else {
		err = ErrOverflow
	}

	putInt128(quotient)
	putInt128(denom)
	return result, err
}

// MulDivFloor computes floor(a * b / denominator) with a 128-bit
// intermediate. Floor division is the protocol-wide rounding policy: the
// pool keeps the remainder, never the individual participant.
func MulDivFloor(a, b, denominator uint64) (uint64, error) {
	numerator := Mul128(a, b)
	result, err := Div128(numerator, denominator)
	putInt128(numerator)
	return result, err
}

// CheckedAdd returns a + b, failing explicitly on overflow.
func CheckedAdd(a, b uint64) (uint64, error) {
	if a > stdmath.MaxUint64-b {
		return 0, ErrOverflow
	}
	return a + b, nil
}

// CheckedSub returns a - b, failing explicitly on underflow.
func CheckedSub(a, b uint64) (uint64, error) {
	if b > a {
		return 0, ErrUnderflow
	}
	return a - b, nil
}

// SaturatingAdd returns a + b clamped to MaxUint64. Only acceptable for
// display-side quantities where precision loss is cosmetic (the reserve sum
// in a price quote), never for balance or share accumulation.
func SaturatingAdd(a, b uint64) uint64 {
	if a > stdmath.MaxUint64-b {
		return stdmath.MaxUint64
	}
	return a + b
}
