// Package ledger records settlement plans for groups and tracks which
// transfers have been paid.
//
// A settlement moves through three states:
//
//	proposed -> recorded -> paid
//
// Paid is terminal. Marking a paid settlement paid again is a no-op; every
// other move is rejected with ErrInvalidTransition.
package ledger

import (
	"errors"
	"fmt"

	"github.com/mmynk/splitcore/internal/models"
)

var (
	// ErrInvalidTransition is returned for a state change the lifecycle does not allow.
	ErrInvalidTransition = errors.New("invalid settlement transition")

	// ErrNotSettleable is returned when a settlement involves a participant
	// that only exists for one session.
	ErrNotSettleable = errors.New("participant cannot be settled")
)

// Record moves a proposed settlement to recorded, stamping createdAt when the
// settlement has no creation time yet.
func Record(s *models.Settlement, createdAt int64) error {
	if s.Status != models.StatusProposed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, models.StatusRecorded)
	}
	for _, p := range []models.ParticipantID{s.From, s.To} {
		if !p.Settleable() {
			return fmt.Errorf("%w: %s", ErrNotSettleable, p)
		}
	}

	s.Status = models.StatusRecorded
	if s.CreatedAt == 0 {
		s.CreatedAt = createdAt
	}
	return nil
}

// MarkPaid moves a recorded settlement to paid. It reports changed=false when
// the settlement was already paid.
func MarkPaid(s *models.Settlement, paidAt int64) (changed bool, err error) {
	switch s.Status {
	case models.StatusPaid:
		return false, nil
	case models.StatusRecorded:
		s.Status = models.StatusPaid
		s.PaidAt = paidAt
		return true, nil
	default:
		return false, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, s.Status, models.StatusPaid)
	}
}
