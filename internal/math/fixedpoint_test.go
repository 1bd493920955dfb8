package math_test

import (
	stdmath "math"
	"testing"

	fpmath "DriftShield/internal/math"
)

func TestMulDivFloor_Floors(t *testing.T) {
	// 7 * 3 / 2 = 10.5 → 10
	got, err := fpmath.MulDivFloor(7, 3, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != 10 {
		t.Errorf("got %d, want 10", got)
	}
}

func TestMulDivFloor_WideIntermediate(t *testing.T) {
	// Numerator exceeds uint64 but the quotient fits.
	a := uint64(stdmath.MaxUint64)
	got, err := fpmath.MulDivFloor(a, 1000, 1000)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != a {
		t.Errorf("got %d, want %d", got, a)
	}
}

func TestMulDivFloor_QuotientOverflow(t *testing.T) {
	_, err := fpmath.MulDivFloor(stdmath.MaxUint64, 2, 1)
	if err != fpmath.ErrOverflow {
		t.Errorf("got %v, want ErrOverflow", err)
	}
}

func TestMulDivFloor_DivideByZero(t *testing.T) {
	_, err := fpmath.MulDivFloor(1, 1, 0)
	if err != fpmath.ErrDivideByZero {
		t.Errorf("got %v, want ErrDivideByZero", err)
	}
}

func TestCheckedAdd(t *testing.T) {
	tests := []struct {
		name    string
		a, b    uint64
		want    uint64
		wantErr error
	}{
		{"simple", 1, 2, 3, nil},
		{"at limit", stdmath.MaxUint64 - 1, 1, stdmath.MaxUint64, nil},
		{"overflow", stdmath.MaxUint64, 1, 0, fpmath.ErrOverflow},
	}

	for _, tt := range tests {
		got, err := fpmath.CheckedAdd(tt.a, tt.b)
		if err != tt.wantErr {
			t.Errorf("%s: err = %v, want %v", tt.name, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("%s: got %d, want %d", tt.name, got, tt.want)
		}
	}
}

func TestCheckedSub_Underflow(t *testing.T) {
	if _, err := fpmath.CheckedSub(1, 2); err != fpmath.ErrUnderflow {
		t.Errorf("got %v, want ErrUnderflow", err)
	}
	got, err := fpmath.CheckedSub(5, 2)
	if err != nil || got != 3 {
		t.Errorf("got (%d, %v), want (3, nil)", got, err)
	}
}

func TestSaturatingAdd_Clamps(t *testing.T) {
	if got := fpmath.SaturatingAdd(stdmath.MaxUint64, 10); got != stdmath.MaxUint64 {
		t.Errorf("got %d, want MaxUint64", got)
	}
	if got := fpmath.SaturatingAdd(2, 3); got != 5 {
		t.Errorf("got %d, want 5", got)
	}
}

func TestMul128_ExceedsUint64(t *testing.T) {
	product := fpmath.Mul128(stdmath.MaxUint64, 2)
	if product.IsUint64() {
		t.Error("product should not fit in uint64")
	}
	got, err := fpmath.Div128(product, 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != stdmath.MaxUint64 {
		t.Errorf("got %d, want MaxUint64", got)
	}
}
