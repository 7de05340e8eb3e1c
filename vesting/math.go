package vesting

import "math"

// =============================================================================
// CHECKED ARITHMETIC - every amount/time computation goes through these
// =============================================================================

func addChecked(a, b int64) (int64, error) {
	if (b > 0 && a > math.MaxInt64-b) || (b < 0 && a < math.MinInt64-b) {
		return 0, ErrMathOverflow
	}
	return a + b, nil
}

func subChecked(a, b int64) (int64, error) {
	if (b < 0 && a > math.MaxInt64+b) || (b > 0 && a < math.MinInt64+b) {
		return 0, ErrMathOverflow
	}
	return a - b, nil
}

func mulChecked(a, b int64) (int64, error) {
	if a == 0 || b == 0 {
		return 0, nil
	}
	if (a == math.MinInt64 && b == -1) || (b == math.MinInt64 && a == -1) {
		return 0, ErrMathOverflow
	}
	r := a * b
	if r/b != a {
		return 0, ErrMathOverflow
	}
	return r, nil
}

// secondsToAmount converts an elapsed duration to int64 for rate math.
func secondsToAmount(d uint64) (int64, error) {
	if d > math.MaxInt64 {
		return 0, ErrMathOverflow
	}
	return int64(d), nil
}
