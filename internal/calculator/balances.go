package calculator

import (
	"fmt"
	"slices"

	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
)

// MemberBalance represents the balance information for one group member.
type MemberBalance struct {
	Participant models.ParticipantID
	TotalPaid   money.Money // Expense totals fronted plus settlements paid out
	TotalOwed   money.Money // Expense shares plus settlements received
	Net         money.Money // Positive = the group owes them, negative = they owe the group
}

// CalculateGroupBalances folds a group's expenses and settlements into one
// balance per participant, sorted by participant.
//
// Algorithm:
//   - For each expense: the payer is credited the full total, every share
//     holder (payer included) is debited their share total
//   - For each paid settlement: the debtor is credited, the creditor debited
//   - Proposed and recorded settlements do not move balances
//   - net = total_paid - total_owed, and the nets must sum to exactly zero
func CalculateGroupBalances(groupID string, expenses []models.Expense, settlements []models.Settlement) ([]MemberBalance, error) {
	var currency money.Currency
	if len(expenses) > 0 {
		currency = expenses[0].Currency()
	} else if len(settlements) > 0 {
		currency = settlements[0].Amount.Currency()
	}

	balances := make(map[models.ParticipantID]*MemberBalance)
	get := func(p models.ParticipantID) *MemberBalance {
		bal, ok := balances[p]
		if !ok {
			bal = &MemberBalance{
				Participant: p,
				TotalPaid:   money.Zero(currency),
				TotalOwed:   money.Zero(currency),
			}
			balances[p] = bal
		}
		return bal
	}

	for i := range expenses {
		e := &expenses[i]
		if e.GroupID != groupID {
			return nil, fmt.Errorf("%w: expense %s belongs to group %q, not %q", ErrInvariantViolation, e.ID, e.GroupID, groupID)
		}
		if e.PayerID.IsZero() {
			return nil, fmt.Errorf("%w: expense %s has no payer", ErrInvariantViolation, e.ID)
		}
		if err := checkShares(e); err != nil {
			return nil, err
		}

		payer := get(e.PayerID)
		var err error
		if payer.TotalPaid, err = payer.TotalPaid.Add(e.TotalAmount); err != nil {
			return nil, fmt.Errorf("expense %s: %w", e.ID, err)
		}
		for _, share := range e.Shares {
			bal := get(share.ParticipantID)
			if bal.TotalOwed, err = bal.TotalOwed.Add(share.Total); err != nil {
				return nil, fmt.Errorf("expense %s: %w", e.ID, err)
			}
		}
	}

	for _, s := range settlements {
		if s.GroupID != groupID {
			return nil, fmt.Errorf("%w: settlement %s belongs to group %q, not %q", ErrInvariantViolation, s.ID, s.GroupID, groupID)
		}
		if !s.IsPaid() {
			continue
		}
		if !s.Amount.IsPositive() {
			return nil, fmt.Errorf("%w: paid settlement %s has non-positive amount %s", ErrInvariantViolation, s.ID, s.Amount)
		}
		from, to := get(s.From), get(s.To)
		var err error
		// The debtor's balance improves as if they had fronted the money.
		if from.TotalPaid, err = from.TotalPaid.Add(s.Amount); err != nil {
			return nil, fmt.Errorf("settlement %s: %w", s.ID, err)
		}
		// The creditor has already realized this much of what they were owed.
		if to.TotalOwed, err = to.TotalOwed.Add(s.Amount); err != nil {
			return nil, fmt.Errorf("settlement %s: %w", s.ID, err)
		}
	}

	result := make([]MemberBalance, 0, len(balances))
	nets := make([]money.Money, 0, len(balances))
	for _, bal := range balances {
		net, err := bal.TotalPaid.Sub(bal.TotalOwed)
		if err != nil {
			return nil, err
		}
		bal.Net = net
		result = append(result, *bal)
		nets = append(nets, net)
	}

	residual, err := money.Sum(currency, nets...)
	if err != nil {
		return nil, err
	}
	if !residual.IsZero() {
		return nil, fmt.Errorf("%w: group %s balances sum to %s", ErrInvariantViolation, groupID, residual)
	}

	slices.SortFunc(result, func(a, b MemberBalance) int {
		return a.Participant.Compare(b.Participant)
	})
	return result, nil
}

// NetBalances returns the net balance of every participant in the group.
func NetBalances(groupID string, expenses []models.Expense, settlements []models.Settlement) (map[models.ParticipantID]money.Money, error) {
	balances, err := CalculateGroupBalances(groupID, expenses, settlements)
	if err != nil {
		return nil, err
	}
	nets := make(map[models.ParticipantID]money.Money, len(balances))
	for _, bal := range balances {
		nets[bal.Participant] = bal.Net
	}
	return nets, nil
}

// checkShares verifies that a stored expense's shares still add up to its total.
func checkShares(e *models.Expense) error {
	totals := make([]money.Money, len(e.Shares))
	for i, s := range e.Shares {
		totals[i] = s.Total
	}
	sum, err := money.Sum(e.Currency(), totals...)
	if err != nil {
		return fmt.Errorf("expense %s: %w", e.ID, err)
	}
	if sum != e.TotalAmount {
		return fmt.Errorf("%w: expense %s shares sum to %s, total is %s", ErrInvariantViolation, e.ID, sum, e.TotalAmount)
	}
	return nil
}
