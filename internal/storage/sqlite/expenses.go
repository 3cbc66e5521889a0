package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
	"github.com/mmynk/splitcore/internal/storage"
)

// CreateExpense persists a new expense with its items, assignments and shares.
func (s *SQLiteStore) CreateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.ID == "" {
		expense.ID = uuid.New().String()
	}
	if expense.CreatedAt == 0 {
		expense.CreatedAt = time.Now().Unix()
	}
	if expense.UpdatedAt == 0 {
		expense.UpdatedAt = expense.CreatedAt
	}
	if expense.Description == "" {
		expense.Description = generateDescription(expense.Items, expense.CreatedAt)
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := groupExists(ctx, tx, expense.GroupID); err != nil {
			return err
		}

		_, err := tx.ExecContext(ctx,
			`INSERT INTO expenses (id, group_id, payer, description, currency, tax, tip, total, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, expense.GroupID, expense.PayerID.String(), expense.Description,
			string(expense.Currency()), expense.Tax.Units(), expense.Tip.Units(), expense.TotalAmount.Units(),
			expense.CreatedAt, expense.UpdatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}

		return insertExpenseDetails(ctx, tx, expense)
	})
}

// UpdateExpense overwrites the expense header and replaces its items,
// participants and shares wholesale.
func (s *SQLiteStore) UpdateExpense(ctx context.Context, expense *models.Expense) error {
	if expense.UpdatedAt == 0 {
		expense.UpdatedAt = time.Now().Unix()
	}

	return s.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`UPDATE expenses
			 SET payer = ?, description = ?, currency = ?, tax = ?, tip = ?, total = ?, updated_at = ?
			 WHERE id = ? AND group_id = ?`,
			expense.PayerID.String(), expense.Description, string(expense.Currency()),
			expense.Tax.Units(), expense.Tip.Units(), expense.TotalAmount.Units(), expense.UpdatedAt,
			expense.ID, expense.GroupID,
		)
		if err != nil {
			return fmt.Errorf("failed to update expense: %w", err)
		}
		if err := checkAffected(res, "expense", expense.ID); err != nil {
			return err
		}

		for _, table := range []string{"items", "expense_participants", "expense_shares"} {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+table+" WHERE expense_id = ?", expense.ID); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}

		return insertExpenseDetails(ctx, tx, expense)
	})
}

// DeleteExpense removes an expense. Items, assignments and shares cascade.
func (s *SQLiteStore) DeleteExpense(ctx context.Context, expenseID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM expenses WHERE id = ?", expenseID)
	if err != nil {
		return fmt.Errorf("failed to delete expense: %w", err)
	}
	return checkAffected(res, "expense", expenseID)
}

// GetExpense retrieves an expense by ID, including items, participants and shares.
func (s *SQLiteStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, error) {
	expenses, err := loadExpenses(ctx, s.db, "e.id = ?", expenseID)
	if err != nil {
		return nil, err
	}
	if len(expenses) == 0 {
		return nil, fmt.Errorf("%w: expense %s", storage.ErrNotFound, expenseID)
	}
	return &expenses[0], nil
}

// ListExpensesByGroup retrieves all expenses of a group, oldest first.
func (s *SQLiteStore) ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error) {
	if err := groupExists(ctx, s.db, groupID); err != nil {
		return nil, err
	}
	return loadExpenses(ctx, s.db, "e.group_id = ?", groupID)
}

func insertExpenseDetails(ctx context.Context, tx *sql.Tx, expense *models.Expense) error {
	for i, p := range expense.Participants {
		_, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO expense_participants (expense_id, participant, position) VALUES (?, ?, ?)",
			expense.ID, p.String(), i,
		)
		if err != nil {
			return fmt.Errorf("failed to insert participant: %w", err)
		}
	}

	for i := range expense.Items {
		item := &expense.Items[i]
		if item.ID == "" {
			item.ID = uuid.New().String()
		}

		_, err := tx.ExecContext(ctx,
			"INSERT INTO items (id, expense_id, position, name, quantity, total_price) VALUES (?, ?, ?, ?, ?, ?)",
			item.ID, expense.ID, i, item.Name, item.Quantity, item.TotalPrice.Units(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert item: %w", err)
		}

		for j, p := range item.Assignees() {
			_, err = tx.ExecContext(ctx,
				"INSERT INTO item_assignments (item_id, participant, position) VALUES (?, ?, ?)",
				item.ID, p.String(), j,
			)
			if err != nil {
				return fmt.Errorf("failed to insert item assignment: %w", err)
			}
		}
	}

	for i, share := range expense.Shares {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO expense_shares (expense_id, participant, position, base_share, tax_share, tip_share, total)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			expense.ID, share.ParticipantID.String(), i,
			share.BaseShare.Units(), share.TaxShare.Units(), share.TipShare.Units(), share.Total.Units(),
		)
		if err != nil {
			return fmt.Errorf("failed to insert share: %w", err)
		}
	}

	return nil
}

// loadExpenses reads every expense matching filter (a predicate on alias e)
// with its details. Each query is drained before the next one starts.
func loadExpenses(ctx context.Context, q querier, filter string, arg any) ([]models.Expense, error) {
	rows, err := q.QueryContext(ctx,
		`SELECT e.id, e.group_id, e.payer, e.description, e.currency, e.tax, e.tip, e.total, e.created_at, e.updated_at
		 FROM expenses e WHERE `+filter+` ORDER BY e.created_at, e.rowid`,
		arg,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get expenses: %w", err)
	}

	var expenses []models.Expense
	for rows.Next() {
		var (
			e                   models.Expense
			payer, currencyCode string
			tax, tip, total     int64
		)
		if err := rows.Scan(&e.ID, &e.GroupID, &payer, &e.Description, &currencyCode,
			&tax, &tip, &total, &e.CreatedAt, &e.UpdatedAt); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan expense: %w", err)
		}
		if e.PayerID, err = parseParticipant(payer); err != nil {
			rows.Close()
			return nil, err
		}
		currency := money.Currency(currencyCode)
		e.Tax = money.New(tax, currency)
		e.Tip = money.New(tip, currency)
		e.TotalAmount = money.New(total, currency)
		expenses = append(expenses, e)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate expenses: %w", err)
	}
	if len(expenses) == 0 {
		return expenses, nil
	}

	byID := make(map[string]*models.Expense, len(expenses))
	for i := range expenses {
		byID[expenses[i].ID] = &expenses[i]
	}

	if err := loadParticipants(ctx, q, filter, arg, byID); err != nil {
		return nil, err
	}
	if err := loadItems(ctx, q, filter, arg, byID); err != nil {
		return nil, err
	}
	if err := loadAssignments(ctx, q, filter, arg, byID); err != nil {
		return nil, err
	}
	if err := loadShares(ctx, q, filter, arg, byID); err != nil {
		return nil, err
	}

	return expenses, nil
}

func loadParticipants(ctx context.Context, q querier, filter string, arg any, byID map[string]*models.Expense) error {
	rows, err := q.QueryContext(ctx,
		`SELECT p.expense_id, p.participant
		 FROM expense_participants p JOIN expenses e ON e.id = p.expense_id
		 WHERE `+filter+` ORDER BY p.expense_id, p.position`,
		arg,
	)
	if err != nil {
		return fmt.Errorf("failed to get participants: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var expenseID, participant string
		if err := rows.Scan(&expenseID, &participant); err != nil {
			return fmt.Errorf("failed to scan participant: %w", err)
		}
		p, err := parseParticipant(participant)
		if err != nil {
			return err
		}
		if e, ok := byID[expenseID]; ok {
			e.Participants = append(e.Participants, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate participants: %w", err)
	}
	return nil
}

func loadItems(ctx context.Context, q querier, filter string, arg any, byID map[string]*models.Expense) error {
	rows, err := q.QueryContext(ctx,
		`SELECT i.expense_id, i.id, i.name, i.quantity, i.total_price
		 FROM items i JOIN expenses e ON e.id = i.expense_id
		 WHERE `+filter+` ORDER BY i.expense_id, i.position`,
		arg,
	)
	if err != nil {
		return fmt.Errorf("failed to get items: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			expenseID string
			item      models.LineItem
			price     int64
		)
		if err := rows.Scan(&expenseID, &item.ID, &item.Name, &item.Quantity, &price); err != nil {
			return fmt.Errorf("failed to scan item: %w", err)
		}
		e, ok := byID[expenseID]
		if !ok {
			continue
		}
		item.TotalPrice = money.New(price, e.Currency())
		e.Items = append(e.Items, item)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate items: %w", err)
	}
	return nil
}

// loadAssignments must run after loadItems so item slices are final.
func loadAssignments(ctx context.Context, q querier, filter string, arg any, byID map[string]*models.Expense) error {
	items := make(map[string]*models.LineItem)
	for _, e := range byID {
		for i := range e.Items {
			items[e.Items[i].ID] = &e.Items[i]
		}
	}

	rows, err := q.QueryContext(ctx,
		`SELECT a.item_id, a.participant
		 FROM item_assignments a
		 JOIN items i ON i.id = a.item_id
		 JOIN expenses e ON e.id = i.expense_id
		 WHERE `+filter+` ORDER BY a.item_id, a.position`,
		arg,
	)
	if err != nil {
		return fmt.Errorf("failed to get item assignments: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var itemID, participant string
		if err := rows.Scan(&itemID, &participant); err != nil {
			return fmt.Errorf("failed to scan assignment: %w", err)
		}
		p, err := parseParticipant(participant)
		if err != nil {
			return err
		}
		if item, ok := items[itemID]; ok {
			item.Assigned = append(item.Assigned, p)
		}
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate assignments: %w", err)
	}
	return nil
}

func loadShares(ctx context.Context, q querier, filter string, arg any, byID map[string]*models.Expense) error {
	rows, err := q.QueryContext(ctx,
		`SELECT s.expense_id, s.participant, s.base_share, s.tax_share, s.tip_share, s.total
		 FROM expense_shares s JOIN expenses e ON e.id = s.expense_id
		 WHERE `+filter+` ORDER BY s.expense_id, s.position`,
		arg,
	)
	if err != nil {
		return fmt.Errorf("failed to get shares: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			expenseID, participant string
			base, tax, tip, total  int64
		)
		if err := rows.Scan(&expenseID, &participant, &base, &tax, &tip, &total); err != nil {
			return fmt.Errorf("failed to scan share: %w", err)
		}
		e, ok := byID[expenseID]
		if !ok {
			continue
		}
		p, err := parseParticipant(participant)
		if err != nil {
			return err
		}
		c := e.Currency()
		e.Shares = append(e.Shares, models.UserShare{
			ParticipantID: p,
			BaseShare:     money.New(base, c),
			TaxShare:      money.New(tax, c),
			TipShare:      money.New(tip, c),
			Total:         money.New(total, c),
		})
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to iterate shares: %w", err)
	}
	return nil
}

// generateDescription creates a label from the first item names.
func generateDescription(items []models.LineItem, createdAt int64) string {
	if len(items) == 0 {
		return fmt.Sprintf("Expense - %s", time.Unix(createdAt, 0).UTC().Format("Jan 2, 2006"))
	}
	names := make([]string, len(items))
	for i, item := range items {
		names[i] = item.Name
	}
	if len(names) <= 3 {
		return strings.Join(names, ", ")
	}
	return fmt.Sprintf("%s and %d more", strings.Join(names[:2], ", "), len(names)-2)
}
