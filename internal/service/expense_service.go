package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"connectrpc.com/connect"

	"github.com/mmynk/splitcore/internal/calculator"
	"github.com/mmynk/splitcore/internal/ledger"
	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/storage"
	"github.com/mmynk/splitcore/pkg/api"
	"github.com/mmynk/splitcore/pkg/api/apiconnect"
)

var _ apiconnect.ExpenseServiceHandler = (*ExpenseService)(nil)

// ExpenseService implements the Connect ExpenseService.
type ExpenseService struct {
	store  storage.Store
	ledger *ledger.Ledger
}

// NewExpenseService creates a new ExpenseService. Every expense change
// regenerates the group's settlement plan through l.
func NewExpenseService(store storage.Store, l *ledger.Ledger) *ExpenseService {
	return &ExpenseService{store: store, ledger: l}
}

// ComputeShares previews a split without storing anything. Ephemeral
// participants are allowed here.
func (s *ExpenseService) ComputeShares(ctx context.Context, req *connect.Request[api.ComputeSharesRequest]) (*connect.Response[api.ComputeSharesResponse], error) {
	in := req.Msg.Expense
	slog.Info("ComputeShares request received",
		"group_id", in.GroupID,
		"items_count", len(in.Items),
		"total", in.Total.Units,
	)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("ComputeShares", err)
	}

	var group *models.Group
	if in.GroupID != "" {
		g, _, err := memberGroup(ctx, s.store, in.GroupID)
		if err != nil {
			return nil, fail("ComputeShares", err, "group_id", in.GroupID)
		}
		group = g
	}

	currency, err := expenseCurrency(in, group)
	if err != nil {
		return nil, fail("ComputeShares", err)
	}
	expense, err := toExpense(in, currency)
	if err != nil {
		return nil, fail("ComputeShares", err)
	}

	shares, err := calculator.ComputeShares(expense)
	if err != nil {
		return nil, fail("ComputeShares", err)
	}
	subtotal, err := expense.Subtotal()
	if err != nil {
		return nil, fail("ComputeShares", err)
	}

	slog.Info("ComputeShares completed", "shares_count", len(shares))

	return connect.NewResponse(&api.ComputeSharesResponse{
		Shares:   fromShares(shares),
		Subtotal: fromMoney(subtotal),
	}), nil
}

// CreateExpense validates, splits and stores a new expense in a group the
// caller belongs to, then refreshes the group's settlement plan.
func (s *ExpenseService) CreateExpense(ctx context.Context, req *connect.Request[api.CreateExpenseRequest]) (*connect.Response[api.CreateExpenseResponse], error) {
	in := req.Msg.Expense
	slog.Info("CreateExpense request received",
		"group_id", in.GroupID,
		"payer_id", in.PayerID,
		"items_count", len(in.Items),
	)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("CreateExpense", err)
	}
	if in.GroupID == "" {
		return nil, fail("CreateExpense", fmt.Errorf("%w: group_id is required", errInvalidInput))
	}

	group, _, err := memberGroup(ctx, s.store, in.GroupID)
	if err != nil {
		return nil, fail("CreateExpense", err, "group_id", in.GroupID)
	}

	expense, err := s.buildExpense(in, group)
	if err != nil {
		return nil, fail("CreateExpense", err, "group_id", group.ID)
	}

	if err := s.store.CreateExpense(ctx, expense); err != nil {
		return nil, fail("CreateExpense", err, "group_id", group.ID)
	}

	slog.Info("Expense created", "expense_id", expense.ID, "group_id", group.ID)

	s.addParticipantsToGroup(ctx, group, expense)
	s.refreshPlan(ctx, group.ID)

	return connect.NewResponse(&api.CreateExpenseResponse{Expense: fromExpense(expense)}), nil
}

// UpdateExpense replaces the items and amounts of an expense and recomputes
// its shares as a whole.
func (s *ExpenseService) UpdateExpense(ctx context.Context, req *connect.Request[api.UpdateExpenseRequest]) (*connect.Response[api.UpdateExpenseResponse], error) {
	in := req.Msg.Expense
	slog.Info("UpdateExpense request received",
		"expense_id", req.Msg.ExpenseID,
		"items_count", len(in.Items),
	)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("UpdateExpense", err)
	}

	existing, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, fail("UpdateExpense", err, "expense_id", req.Msg.ExpenseID)
	}
	if in.GroupID != "" && in.GroupID != existing.GroupID {
		return nil, fail("UpdateExpense", fmt.Errorf("%w: an expense cannot move between groups", errInvalidInput),
			"expense_id", existing.ID)
	}

	group, _, err := memberGroup(ctx, s.store, existing.GroupID)
	if err != nil {
		return nil, fail("UpdateExpense", err, "expense_id", existing.ID)
	}

	in.GroupID = group.ID
	expense, err := s.buildExpense(in, group)
	if err != nil {
		return nil, fail("UpdateExpense", err, "expense_id", existing.ID)
	}
	expense.ID = existing.ID
	expense.CreatedAt = existing.CreatedAt
	if expense.Description == "" {
		expense.Description = existing.Description
	}
	expense.UpdatedAt = time.Now().Unix()

	if err := s.store.UpdateExpense(ctx, expense); err != nil {
		return nil, fail("UpdateExpense", err, "expense_id", existing.ID)
	}

	slog.Info("Expense updated", "expense_id", expense.ID, "group_id", group.ID)

	s.addParticipantsToGroup(ctx, group, expense)
	s.refreshPlan(ctx, group.ID)

	return connect.NewResponse(&api.UpdateExpenseResponse{Expense: fromExpense(expense)}), nil
}

// GetExpense retrieves an expense by ID.
func (s *ExpenseService) GetExpense(ctx context.Context, req *connect.Request[api.GetExpenseRequest]) (*connect.Response[api.GetExpenseResponse], error) {
	slog.Info("GetExpense request received", "expense_id", req.Msg.ExpenseID)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("GetExpense", err)
	}

	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, fail("GetExpense", err, "expense_id", req.Msg.ExpenseID)
	}
	if _, _, err := memberGroup(ctx, s.store, expense.GroupID); err != nil {
		return nil, fail("GetExpense", err, "expense_id", expense.ID)
	}

	return connect.NewResponse(&api.GetExpenseResponse{Expense: fromExpense(expense)}), nil
}

// ListExpenses lists a group's expenses, oldest first.
func (s *ExpenseService) ListExpenses(ctx context.Context, req *connect.Request[api.ListExpensesRequest]) (*connect.Response[api.ListExpensesResponse], error) {
	slog.Info("ListExpenses request received", "group_id", req.Msg.GroupID)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("ListExpenses", err)
	}
	if _, _, err := memberGroup(ctx, s.store, req.Msg.GroupID); err != nil {
		return nil, fail("ListExpenses", err, "group_id", req.Msg.GroupID)
	}

	expenses, err := s.store.ListExpensesByGroup(ctx, req.Msg.GroupID)
	if err != nil {
		return nil, fail("ListExpenses", err, "group_id", req.Msg.GroupID)
	}

	out := make([]api.Expense, len(expenses))
	for i := range expenses {
		out[i] = fromExpense(&expenses[i])
	}

	slog.Info("ListExpenses successful", "group_id", req.Msg.GroupID, "count", len(out))

	return connect.NewResponse(&api.ListExpensesResponse{Expenses: out}), nil
}

// DeleteExpense removes an expense and refreshes the group's plan.
func (s *ExpenseService) DeleteExpense(ctx context.Context, req *connect.Request[api.DeleteExpenseRequest]) (*connect.Response[api.DeleteExpenseResponse], error) {
	slog.Info("DeleteExpense request received", "expense_id", req.Msg.ExpenseID)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("DeleteExpense", err)
	}

	expense, err := s.store.GetExpense(ctx, req.Msg.ExpenseID)
	if err != nil {
		return nil, fail("DeleteExpense", err, "expense_id", req.Msg.ExpenseID)
	}
	if _, _, err := memberGroup(ctx, s.store, expense.GroupID); err != nil {
		return nil, fail("DeleteExpense", err, "expense_id", expense.ID)
	}

	if err := s.store.DeleteExpense(ctx, expense.ID); err != nil {
		return nil, fail("DeleteExpense", err, "expense_id", expense.ID)
	}

	slog.Info("Expense deleted", "expense_id", expense.ID, "group_id", expense.GroupID)

	s.refreshPlan(ctx, expense.GroupID)

	return connect.NewResponse(&api.DeleteExpenseResponse{}), nil
}

// buildExpense converts input for a stored expense: amounts use the group
// currency, every participant must be persisted, and shares are computed.
func (s *ExpenseService) buildExpense(in api.ExpenseInput, group *models.Group) (*models.Expense, error) {
	currency, err := expenseCurrency(in, group)
	if err != nil {
		return nil, err
	}
	expense, err := toExpense(in, currency)
	if err != nil {
		return nil, err
	}
	for _, p := range everyone(expense) {
		if !p.Settleable() {
			return nil, fmt.Errorf("%w: %s cannot be stored in a group expense", ledger.ErrNotSettleable, p)
		}
	}

	shares, err := calculator.ComputeShares(expense)
	if err != nil {
		return nil, err
	}
	expense.Shares = shares
	return expense, nil
}

// addParticipantsToGroup adds the payer and every share holder who is not
// yet a member. Failure is logged and does not fail the request.
func (s *ExpenseService) addParticipantsToGroup(ctx context.Context, group *models.Group, expense *models.Expense) {
	var missing []models.Member
	for _, p := range everyone(expense) {
		if !group.HasMember(p) {
			missing = append(missing, models.Member{Participant: p})
		}
	}
	if len(missing) == 0 {
		return
	}

	if err := s.store.AddGroupMembers(ctx, group.ID, missing); err != nil {
		slog.Warn("Failed to add expense participants to group",
			"group_id", group.ID,
			"count", len(missing),
			"error", err,
		)
		return
	}
	slog.Info("Added expense participants to group", "group_id", group.ID, "count", len(missing))
}

// refreshPlan regenerates the group's settlement plan. The expense change is
// already stored, so a failure here is logged and the plan is regenerated on
// the next change or an explicit RegeneratePlan call.
func (s *ExpenseService) refreshPlan(ctx context.Context, groupID string) {
	if _, err := s.ledger.RegeneratePlan(ctx, groupID); err != nil {
		slog.Warn("Failed to regenerate settlement plan", "group_id", groupID, "error", err)
	}
}
