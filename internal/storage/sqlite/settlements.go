package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
	"github.com/mmynk/splitcore/internal/storage"
)

const settlementColumns = "id, group_id, from_participant, to_participant, amount, currency, status, created_at, paid_at"

// GetSettlement retrieves a settlement by ID.
func (s *SQLiteStore) GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error) {
	row := s.db.QueryRowContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE id = ?",
		settlementID,
	)
	settlement, err := scanSettlement(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: settlement %s", storage.ErrNotFound, settlementID)
	}
	if err != nil {
		return nil, err
	}
	return settlement, nil
}

// ListSettlementsByGroup retrieves all settlements for a group in the order
// they were recorded.
func (s *SQLiteStore) ListSettlementsByGroup(ctx context.Context, groupID string) ([]models.Settlement, error) {
	if err := groupExists(ctx, s.db, groupID); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		"SELECT "+settlementColumns+" FROM settlements WHERE group_id = ? ORDER BY created_at, rowid",
		groupID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list settlements by group: %w", err)
	}
	defer rows.Close()

	var settlements []models.Settlement
	for rows.Next() {
		settlement, err := scanSettlement(rows)
		if err != nil {
			return nil, err
		}
		settlements = append(settlements, *settlement)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate settlements: %w", err)
	}

	return settlements, nil
}

// ReplaceOpenSettlements swaps the group's unpaid settlements for plan.
// Entries without an ID or timestamp get one; every entry must belong to
// groupID and be recorded.
func (s *SQLiteStore) ReplaceOpenSettlements(ctx context.Context, groupID string, plan []models.Settlement) error {
	now := time.Now().Unix()
	for i := range plan {
		st := &plan[i]
		if st.GroupID == "" {
			st.GroupID = groupID
		}
		if st.GroupID != groupID {
			return fmt.Errorf("settlement for group %s in plan for group %s", st.GroupID, groupID)
		}
		if st.Status != models.StatusRecorded {
			return fmt.Errorf("cannot store settlement with status %q as part of a plan", st.Status)
		}
		if st.ID == "" {
			st.ID = uuid.New().String()
		}
		if st.CreatedAt == 0 {
			st.CreatedAt = now
		}
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := groupExists(ctx, tx, groupID); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM settlements WHERE group_id = ? AND status != ?",
			groupID, string(models.StatusPaid),
		); err != nil {
			return fmt.Errorf("failed to clear open settlements: %w", err)
		}

		for _, st := range plan {
			_, err := tx.ExecContext(ctx,
				"INSERT INTO settlements ("+settlementColumns+") VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)",
				st.ID, st.GroupID, st.From.String(), st.To.String(),
				st.Amount.Units(), string(st.Amount.Currency()), string(st.Status), st.CreatedAt, st.PaidAt,
			)
			if err != nil {
				return fmt.Errorf("failed to insert settlement: %w", err)
			}
		}
		return nil
	})
}

// TransitionSettlement applies a compare-and-set status change.
func (s *SQLiteStore) TransitionSettlement(ctx context.Context, settlementID string, from, to models.SettlementStatus, paidAt int64) (bool, error) {
	var changed bool
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE settlements
			 SET status = ?, paid_at = CASE WHEN ? = 'paid' THEN ? ELSE paid_at END
			 WHERE id = ? AND status = ?`,
			string(to), string(to), paidAt, settlementID, string(from),
		)
		if err != nil {
			return fmt.Errorf("failed to update settlement: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("failed to read affected rows: %w", err)
		}
		if n > 0 {
			changed = true
			return nil
		}

		var exists int
		err = tx.QueryRowContext(ctx, "SELECT 1 FROM settlements WHERE id = ?", settlementID).Scan(&exists)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("%w: settlement %s", storage.ErrNotFound, settlementID)
		}
		if err != nil {
			return fmt.Errorf("failed to check settlement existence: %w", err)
		}
		return nil
	})
	return changed, err
}

func scanSettlement(row rowScanner) (*models.Settlement, error) {
	var (
		st               models.Settlement
		from, to, status string
		currency         string
		amount           int64
	)
	if err := row.Scan(&st.ID, &st.GroupID, &from, &to, &amount, &currency, &status, &st.CreatedAt, &st.PaidAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan settlement: %w", err)
	}

	var err error
	if st.From, err = parseParticipant(from); err != nil {
		return nil, err
	}
	if st.To, err = parseParticipant(to); err != nil {
		return nil, err
	}
	if st.Status, err = models.ParseSettlementStatus(status); err != nil {
		return nil, fmt.Errorf("corrupt settlement status: %w", err)
	}
	st.Amount = money.New(amount, money.Currency(currency))

	return &st, nil
}
