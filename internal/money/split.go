package money

import (
	"fmt"
	"slices"

	"github.com/shopspring/decimal"
)

// ProportionalSplit divides total among len(weights) recipients in proportion
// to their weights. The returned amounts always sum to exactly total.
//
// Each share starts as floor(total*w/sum(w)). The few units left over are
// handed out one at a time to the entries with the largest remainders, ties
// going to the lower index, so the result depends only on the input order.
// A zero weight sum yields all-zero shares.
func ProportionalSplit(total Money, weights []int64) ([]Money, error) {
	if total.units < 0 {
		return nil, fmt.Errorf("%w: cannot split negative total %s", ErrInvalidAmount, total)
	}

	sum := decimal.Zero
	for i, w := range weights {
		if w < 0 {
			return nil, fmt.Errorf("%w: weight %d is negative (%d)", ErrInvalidAmount, i, w)
		}
		sum = sum.Add(decimal.NewFromInt(w))
	}

	shares := make([]Money, len(weights))
	for i := range shares {
		shares[i] = Zero(total.currency)
	}
	if sum.IsZero() {
		return shares, nil
	}

	t := decimal.NewFromInt(total.units)
	remainders := make([]decimal.Decimal, len(weights))
	var allocated int64
	for i, w := range weights {
		q, r := t.Mul(decimal.NewFromInt(w)).QuoRem(sum, 0)
		shares[i].units = q.IntPart()
		remainders[i] = r
		allocated += shares[i].units
	}

	residual := total.units - allocated
	if residual < 0 || residual > int64(len(weights)) {
		return nil, fmt.Errorf("proportional split residual %d out of range for %d weights", residual, len(weights))
	}
	if residual == 0 {
		return shares, nil
	}

	order := make([]int, len(weights))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		return remainders[b].Cmp(remainders[a])
	})
	for _, idx := range order[:residual] {
		shares[idx].units++
	}
	return shares, nil
}

// EqualSplit divides total into n shares that differ by at most one minor unit,
// the larger shares going to the lower indexes.
func EqualSplit(total Money, n int) ([]Money, error) {
	weights := make([]int64, n)
	for i := range weights {
		weights[i] = 1
	}
	return ProportionalSplit(total, weights)
}
