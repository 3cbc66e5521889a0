package calculator

import (
	"fmt"
	"strings"

	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
)

// ComputeShares splits one expense into per-participant shares.
//
// Each item is split equally among its assignees. Tax and tip are then split
// in proportion to each participant's base share, so whoever ordered more pays
// more of the overhead. Every split hands out leftover minor units by largest
// remainder, so the shares always sum to exactly the expense total.
//
// Participants are ordered by first appearance: item assignees in item order,
// then Expense.Participants, then the payer. Everyone in that order gets a row,
// including participants whose share is zero.
func ComputeShares(e *models.Expense) ([]models.UserShare, error) {
	if err := validateExpense(e); err != nil {
		return nil, err
	}

	currency := e.Currency()
	order := participantOrder(e)
	index := make(map[models.ParticipantID]int, len(order))
	for i, p := range order {
		index[p] = i
	}

	base := make([]money.Money, len(order))
	for i := range base {
		base[i] = money.Zero(currency)
	}
	for _, item := range e.Items {
		assignees := item.Assignees()
		portions, err := money.EqualSplit(item.TotalPrice, len(assignees))
		if err != nil {
			return nil, fmt.Errorf("splitting item %q: %w", item.Name, err)
		}
		for j, p := range assignees {
			i := index[p]
			if base[i], err = base[i].Add(portions[j]); err != nil {
				return nil, err
			}
		}
	}

	subtotal, err := e.Subtotal()
	if err != nil {
		return nil, err
	}
	switch {
	case len(e.Items) > 0 && subtotal.IsZero():
		return nil, fmt.Errorf("%w: items sum to a zero subtotal", ErrIncompleteAssignment)
	case subtotal.IsZero() && (e.Tax.IsPositive() || e.Tip.IsPositive()):
		return nil, fmt.Errorf("%w: tax and tip cannot be distributed over a zero subtotal", ErrIncompleteAssignment)
	}

	weights := make([]int64, len(base))
	for i, b := range base {
		weights[i] = b.Units()
	}
	taxShares, err := money.ProportionalSplit(e.Tax, weights)
	if err != nil {
		return nil, fmt.Errorf("splitting tax: %w", err)
	}
	tipShares, err := money.ProportionalSplit(e.Tip, weights)
	if err != nil {
		return nil, fmt.Errorf("splitting tip: %w", err)
	}

	shares := make([]models.UserShare, len(order))
	totals := make([]money.Money, len(order))
	for i, p := range order {
		total, err := money.Sum(currency, base[i], taxShares[i], tipShares[i])
		if err != nil {
			return nil, err
		}
		shares[i] = models.UserShare{
			ParticipantID: p,
			BaseShare:     base[i],
			TaxShare:      taxShares[i],
			TipShare:      tipShares[i],
			Total:         total,
		}
		totals[i] = total
	}

	sum, err := money.Sum(currency, totals...)
	if err != nil {
		return nil, err
	}
	if sum != e.TotalAmount {
		return nil, fmt.Errorf("%w: shares sum to %s but expense total is %s", ErrInvariantViolation, sum, e.TotalAmount)
	}
	return shares, nil
}

// validateExpense rejects inputs the engine must not guess about.
func validateExpense(e *models.Expense) error {
	currency := e.Currency()
	if _, err := money.ParseCurrency(string(currency)); err != nil {
		return err
	}

	check := func(what string, m money.Money) error {
		if !m.SameCurrency(e.TotalAmount) {
			return fmt.Errorf("%w: %s is %s, expense is %s", money.ErrCurrencyMismatch, what, m.Currency(), currency)
		}
		if m.IsNegative() {
			return fmt.Errorf("%w: %s is negative (%s)", money.ErrInvalidAmount, what, m)
		}
		return nil
	}
	if err := check("total", e.TotalAmount); err != nil {
		return err
	}
	if err := check("tax", e.Tax); err != nil {
		return err
	}
	if err := check("tip", e.Tip); err != nil {
		return err
	}

	var unassigned []string
	for i, item := range e.Items {
		if item.Quantity < 1 {
			return fmt.Errorf("%w: item %d (%q) has quantity %d", ErrInvalidItem, i, item.Name, item.Quantity)
		}
		if err := check(fmt.Sprintf("item %q", item.Name), item.TotalPrice); err != nil {
			return err
		}
		for _, p := range item.Assigned {
			if p.IsZero() {
				return fmt.Errorf("%w: item %q has an empty participant", models.ErrInvalidParticipant, item.Name)
			}
		}
		if len(item.Assigned) == 0 {
			unassigned = append(unassigned, fmt.Sprintf("%q", item.Name))
		}
	}

	expected, err := e.ExpectedTotal()
	if err != nil {
		return err
	}
	if expected != e.TotalAmount {
		return fmt.Errorf("%w: receipt total is %s but items + tax + tip = %s", ErrAmountMismatch, e.TotalAmount, expected)
	}

	if len(unassigned) > 0 {
		return fmt.Errorf("%w: unassigned items %s", ErrIncompleteAssignment, strings.Join(unassigned, ", "))
	}
	return nil
}

// participantOrder lists each participant once, in first-appearance order.
func participantOrder(e *models.Expense) []models.ParticipantID {
	seen := make(map[models.ParticipantID]bool)
	var order []models.ParticipantID
	add := func(p models.ParticipantID) {
		if p.IsZero() || seen[p] {
			return
		}
		seen[p] = true
		order = append(order, p)
	}
	for _, item := range e.Items {
		for _, p := range item.Assignees() {
			add(p)
		}
	}
	for _, p := range e.Participants {
		add(p)
	}
	add(e.PayerID)
	return order
}
