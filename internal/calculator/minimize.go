package calculator

import (
	"container/heap"
	"fmt"
	"maps"
	"slices"

	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
)

// ProposeSettlements converts net balances into the transfers that zero them.
//
// Greedy matching: repeatedly take the largest remaining creditor and the
// largest remaining debtor, ties broken by ascending participant id, and
// transfer the smaller of the two amounts. Every transfer zeroes at least one
// side, so N nonzero balances need at most N-1 transfers.
//
// The returned settlements are Proposed and carry no ID or group.
func ProposeSettlements(balances map[models.ParticipantID]money.Money) ([]models.Settlement, error) {
	participants := slices.SortedFunc(maps.Keys(balances), models.ParticipantID.Compare)

	var (
		currency  money.Currency
		creditors balanceHeap
		debtors   balanceHeap
	)
	for i, p := range participants {
		c := balances[p].Currency()
		if i == 0 {
			currency = c
			continue
		}
		if c != currency {
			return nil, fmt.Errorf("%w: %s is in %s, %s is in %s",
				money.ErrCurrencyMismatch, participants[0], currency, p, c)
		}
	}

	sum := money.Zero(currency)
	for _, p := range participants {
		bal := balances[p]
		var err error
		if sum, err = sum.Add(bal); err != nil {
			return nil, fmt.Errorf("summing balances: %w", err)
		}
		switch {
		case bal.IsPositive():
			creditors = append(creditors, balanceEntry{who: p, key: p.String(), units: bal.Units()})
		case bal.IsNegative():
			abs, err := bal.Abs()
			if err != nil {
				return nil, err
			}
			debtors = append(debtors, balanceEntry{who: p, key: p.String(), units: abs.Units()})
		}
	}
	if !sum.IsZero() {
		return nil, fmt.Errorf("%w: residual %s", ErrUnbalanced, sum)
	}

	heap.Init(&creditors)
	heap.Init(&debtors)

	var plan []models.Settlement
	for creditors.Len() > 0 && debtors.Len() > 0 {
		c := heap.Pop(&creditors).(balanceEntry)
		d := heap.Pop(&debtors).(balanceEntry)

		amount := min(c.units, d.units)
		plan = append(plan, models.Settlement{
			From:   d.who,
			To:     c.who,
			Amount: money.New(amount, currency),
			Status: models.StatusProposed,
		})

		if c.units -= amount; c.units > 0 {
			heap.Push(&creditors, c)
		}
		if d.units -= amount; d.units > 0 {
			heap.Push(&debtors, d)
		}
	}

	if creditors.Len() > 0 || debtors.Len() > 0 {
		return nil, fmt.Errorf("%w: %d creditors and %d debtors left unmatched", ErrInvariantViolation, creditors.Len(), debtors.Len())
	}
	return plan, nil
}

type balanceEntry struct {
	who   models.ParticipantID
	key   string
	units int64 // always positive
}

// balanceHeap is a max-heap on units, ties by ascending key.
type balanceHeap []balanceEntry

func (h balanceHeap) Len() int { return len(h) }

func (h balanceHeap) Less(i, j int) bool {
	if h[i].units != h[j].units {
		return h[i].units > h[j].units
	}
	return h[i].key < h[j].key
}

func (h balanceHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *balanceHeap) Push(x any) { *h = append(*h, x.(balanceEntry)) }

func (h *balanceHeap) Pop() any {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[:n-1]
	return x
}
