package models

import (
	"github.com/mmynk/splitcore/internal/money"
)

// Expense represents one shared purchase (typically one receipt) within a group.
type Expense struct {
	// ID is the unique identifier for the expense (UUID format).
	ID string

	// GroupID is the group that owns this expense.
	GroupID string

	// PayerID is the participant who fronted the money. They are credited the
	// full TotalAmount when group balances are computed.
	PayerID ParticipantID

	// Description is a human-readable label (e.g., "Friday dinner").
	Description string

	// Items are the receipt lines, in receipt order.
	Items []LineItem

	// Participants lists people who share the expense without being assigned
	// any item. They receive an explicit zero share.
	Participants []ParticipantID

	// Tax is the receipt's tax line.
	Tax money.Money

	// Tip is the tip or service charge.
	Tip money.Money

	// TotalAmount is the receipt total. It is authoritative: it must equal the
	// sum of item prices plus tax plus tip, and is validated rather than derived.
	TotalAmount money.Money

	// Shares are the computed per-participant shares. They are recomputed as a
	// whole whenever Items or assignments change.
	Shares []UserShare

	// CreatedAt is the Unix timestamp when the expense was created.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last change to items or amounts.
	UpdatedAt int64
}

// Currency returns the currency the expense is denominated in.
func (e *Expense) Currency() money.Currency {
	return e.TotalAmount.Currency()
}

// Subtotal returns the sum of all item prices.
func (e *Expense) Subtotal() (money.Money, error) {
	prices := make([]money.Money, len(e.Items))
	for i, item := range e.Items {
		prices[i] = item.TotalPrice
	}
	return money.Sum(e.Currency(), prices...)
}

// ExpectedTotal returns the subtotal plus tax plus tip.
func (e *Expense) ExpectedTotal() (money.Money, error) {
	subtotal, err := e.Subtotal()
	if err != nil {
		return money.Money{}, err
	}
	return money.Sum(e.Currency(), subtotal, e.Tax, e.Tip)
}

// LineItem is a single line on a receipt.
type LineItem struct {
	// ID is the unique identifier for the item (UUID format).
	ID string

	// Name is the item description as printed on the receipt (e.g., "Pizza").
	Name string

	// Quantity is the number of units bought. Always positive.
	Quantity int

	// TotalPrice is the price for the full quantity, not per unit.
	TotalPrice money.Money

	// Assigned lists the participants sharing this item, in assignment order.
	// Duplicates collapse; see Assignees. An empty list blocks share computation.
	Assigned []ParticipantID
}

// Assignees returns the distinct assigned participants in first-assignment order.
func (li *LineItem) Assignees() []ParticipantID {
	seen := make(map[ParticipantID]bool, len(li.Assigned))
	out := make([]ParticipantID, 0, len(li.Assigned))
	for _, p := range li.Assigned {
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}

// UserShare is one participant's computed share of an expense.
// This is the output of the allocation engine.
type UserShare struct {
	// ParticipantID identifies whose share this is.
	ParticipantID ParticipantID

	// BaseShare is the sum of this participant's per-item allocations.
	BaseShare money.Money

	// TaxShare is this participant's portion of the tax, weighted by BaseShare.
	TaxShare money.Money

	// TipShare is this participant's portion of the tip, weighted by BaseShare.
	TipShare money.Money

	// Total is BaseShare + TaxShare + TipShare.
	Total money.Money
}
