package models

import (
	"fmt"

	"github.com/mmynk/splitcore/internal/money"
)

// SettlementStatus is the lifecycle state of a settlement.
type SettlementStatus string

const (
	// StatusProposed is a transfer produced by the minimizer and not yet persisted.
	StatusProposed SettlementStatus = "proposed"

	// StatusRecorded is a persisted transfer visible to both parties.
	StatusRecorded SettlementStatus = "recorded"

	// StatusPaid is terminal: the transfer happened and is never edited again.
	StatusPaid SettlementStatus = "paid"
)

// ParseSettlementStatus validates a stored status value.
func ParseSettlementStatus(s string) (SettlementStatus, error) {
	switch st := SettlementStatus(s); st {
	case StatusProposed, StatusRecorded, StatusPaid:
		return st, nil
	default:
		return "", fmt.Errorf("unknown settlement status %q", s)
	}
}

// Settlement represents a transfer from a debtor to a creditor that moves both
// toward a zero balance.
type Settlement struct {
	// ID is the unique identifier for the settlement (UUID format).
	// Empty while the settlement is only proposed.
	ID string

	// GroupID is the group this settlement belongs to.
	GroupID string

	// From is the debtor who pays.
	From ParticipantID

	// To is the creditor who receives.
	To ParticipantID

	// Amount is the transfer amount. Always positive.
	Amount money.Money

	// Status is the lifecycle state.
	Status SettlementStatus

	// CreatedAt is the Unix timestamp when the settlement was recorded.
	CreatedAt int64

	// PaidAt is the Unix timestamp when the settlement was marked paid, or 0.
	PaidAt int64
}

// IsPaid reports whether the settlement reached its terminal state.
func (s *Settlement) IsPaid() bool {
	return s.Status == StatusPaid
}
