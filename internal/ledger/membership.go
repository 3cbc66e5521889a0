package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/mmynk/splitcore/internal/calculator"
	"github.com/mmynk/splitcore/internal/models"
)

// ErrOutstandingBalance is returned when a member who still owes or is owed
// money would leave the group.
var ErrOutstandingBalance = errors.New("member has an outstanding balance")

// RemoveMember takes p out of the group once their net balance is zero, then
// regenerates the plan so no open settlement names them. Balance check and
// removal run under the group lock, so no expense can land in between.
func (l *Ledger) RemoveMember(ctx context.Context, groupID string, p models.ParticipantID) error {
	return l.locker.WithLock(ctx, groupKey(groupID), func(ctx context.Context) error {
		expenses, err := l.store.ListExpensesByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		settlements, err := l.store.ListSettlementsByGroup(ctx, groupID)
		if err != nil {
			return err
		}
		nets, err := calculator.NetBalances(groupID, expenses, settlements)
		if err != nil {
			return err
		}
		if net, ok := nets[p]; ok && !net.IsZero() {
			return fmt.Errorf("%w: %s has net %s", ErrOutstandingBalance, p, net)
		}

		if err := l.store.RemoveGroupMember(ctx, groupID, p); err != nil {
			return err
		}
		slog.Info("Member removed", "group_id", groupID, "participant", p.String())

		_, err = l.regenerate(ctx, groupID)
		return err
	})
}

// DeleteGroup removes a group with its expenses and settlements. It waits for
// any plan write in flight for the group.
func (l *Ledger) DeleteGroup(ctx context.Context, groupID string) error {
	return l.locker.WithLock(ctx, groupKey(groupID), func(ctx context.Context) error {
		if err := l.store.DeleteGroup(ctx, groupID); err != nil {
			return err
		}
		slog.Info("Group deleted", "group_id", groupID)
		return nil
	})
}
