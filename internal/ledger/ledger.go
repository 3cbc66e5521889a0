package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mmynk/splitcore/internal/calculator"
	"github.com/mmynk/splitcore/internal/lock"
	"github.com/mmynk/splitcore/internal/metrics"
	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/storage"
)

// Store is the part of storage.Store the ledger reads and writes.
type Store interface {
	storage.GroupStore
	storage.ExpenseStore
	storage.SettlementStore
}

// Ledger owns the settlement plan of every group. All writes for one group
// run under that group's lock so plans never interleave.
type Ledger struct {
	store   Store
	locker  lock.Locker
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Ledger.
type Option func(*Ledger)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) { l.now = now }
}

// New creates a Ledger. A nil metrics value gets a private registry.
func New(store Store, locker lock.Locker, m *metrics.Metrics, opts ...Option) *Ledger {
	if m == nil {
		m = metrics.New()
	}
	l := &Ledger{
		store:   store,
		locker:  locker,
		metrics: m,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func groupKey(groupID string) string {
	return "group:" + groupID
}

// Balances computes every member's paid, owed and net amounts for a group,
// with paid settlements applied.
func (l *Ledger) Balances(ctx context.Context, groupID string) ([]calculator.MemberBalance, error) {
	expenses, err := l.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	settlements, err := l.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	return calculator.CalculateGroupBalances(groupID, expenses, settlements)
}

// Plan lists the group's settlements, paid history first by creation time.
func (l *Ledger) Plan(ctx context.Context, groupID string) ([]models.Settlement, error) {
	return l.store.ListSettlementsByGroup(ctx, groupID)
}

// RegeneratePlan recomputes the minimal set of transfers for a group and
// stores it in place of every unpaid settlement. Paid settlements are never
// touched; they are already reflected in the balances the new plan is built
// from. When the fresh plan matches the open one, the open settlements are
// kept so their IDs stay stable.
func (l *Ledger) RegeneratePlan(ctx context.Context, groupID string) ([]models.Settlement, error) {
	var plan []models.Settlement
	err := l.locker.WithLock(ctx, groupKey(groupID), func(ctx context.Context) error {
		var err error
		plan, err = l.regenerate(ctx, groupID)
		return err
	})
	if err != nil {
		return nil, err
	}
	return plan, nil
}

// regenerate does the work of RegeneratePlan. The caller holds the group lock.
func (l *Ledger) regenerate(ctx context.Context, groupID string) ([]models.Settlement, error) {
	expenses, err := l.store.ListExpensesByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}
	settlements, err := l.store.ListSettlementsByGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	nets, err := calculator.NetBalances(groupID, expenses, settlements)
	if err != nil {
		return nil, err
	}
	proposed, err := calculator.ProposeSettlements(nets)
	if err != nil {
		return nil, err
	}

	open := unpaid(settlements)
	if samePlan(open, proposed) {
		slog.Debug("Settlement plan unchanged", "group_id", groupID, "settlements", len(open))
		return open, nil
	}

	now := l.now().Unix()
	for i := range proposed {
		proposed[i].GroupID = groupID
		if err := Record(&proposed[i], now); err != nil {
			return nil, err
		}
	}
	if err := l.store.ReplaceOpenSettlements(ctx, groupID, proposed); err != nil {
		return nil, fmt.Errorf("failed to store plan: %w", err)
	}

	l.metrics.PlansRegenerated.Inc()
	l.metrics.SettlementsRecorded.Add(float64(len(proposed)))
	slog.Info("Settlement plan regenerated",
		"group_id", groupID,
		"replaced", len(open),
		"settlements", len(proposed),
	)
	return proposed, nil
}

// MarkPaid marks a recorded settlement as paid. Calling it again on a paid
// settlement returns the settlement with changed=false.
func (l *Ledger) MarkPaid(ctx context.Context, settlementID string) (settlement *models.Settlement, changed bool, err error) {
	current, err := l.store.GetSettlement(ctx, settlementID)
	if err != nil {
		return nil, false, err
	}

	err = l.locker.WithLock(ctx, groupKey(current.GroupID), func(ctx context.Context) error {
		// Re-read under the lock: a concurrent regeneration may have replaced it.
		s, err := l.store.GetSettlement(ctx, settlementID)
		if err != nil {
			return err
		}

		paidAt := l.now().Unix()
		changed, err = MarkPaid(s, paidAt)
		if err != nil {
			return err
		}
		if !changed {
			settlement = s
			return nil
		}

		ok, err := l.store.TransitionSettlement(ctx, settlementID, models.StatusRecorded, models.StatusPaid, paidAt)
		if err != nil {
			return err
		}
		if !ok {
			// Another writer moved it first.
			latest, err := l.store.GetSettlement(ctx, settlementID)
			if err != nil {
				return err
			}
			if !latest.IsPaid() {
				return fmt.Errorf("%w: settlement %s is %s", ErrInvalidTransition, settlementID, latest.Status)
			}
			changed = false
			settlement = latest
			return nil
		}

		settlement = s
		return nil
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		l.metrics.SettlementsPaid.Inc()
		slog.Info("Settlement marked paid",
			"settlement_id", settlementID,
			"group_id", settlement.GroupID,
			"amount", settlement.Amount.String(),
		)
	} else {
		l.metrics.MarkPaidNoops.Inc()
		slog.Debug("Settlement already paid", "settlement_id", settlementID)
	}
	return settlement, changed, nil
}

func unpaid(settlements []models.Settlement) []models.Settlement {
	var out []models.Settlement
	for _, s := range settlements {
		if !s.IsPaid() {
			out = append(out, s)
		}
	}
	return out
}

// samePlan reports whether the stored open settlements describe the same
// transfers, in the same order, as a freshly proposed plan.
func samePlan(open, proposed []models.Settlement) bool {
	if len(open) != len(proposed) {
		return false
	}
	for i := range open {
		if open[i].From != proposed[i].From || open[i].To != proposed[i].To || open[i].Amount != proposed[i].Amount {
			return false
		}
	}
	return true
}
