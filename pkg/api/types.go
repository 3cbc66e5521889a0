// Package api defines the request and response messages of the splitcore
// RPC services. Messages travel as JSON; amounts are always integer minor
// units plus an ISO 4217 currency code, never floats.
package api

// Money is an amount in the currency's smallest unit (cents for USD).
// An empty currency means the currency of the enclosing group or expense.
type Money struct {
	Units    int64  `json:"units"`
	Currency string `json:"currency,omitempty" validate:"omitempty,iso4217"`
}

// LineItem is one receipt line and the participants sharing it.
type LineItem struct {
	ID         string   `json:"id,omitempty"`
	Name       string   `json:"name" validate:"required,max=200"`
	Quantity   int      `json:"quantity" validate:"min=1"`
	TotalPrice Money    `json:"total_price"`
	AssignedTo []string `json:"assigned_to" validate:"dive,participant"`
}

// ExpenseInput is the client-supplied part of an expense.
type ExpenseInput struct {
	GroupID      string     `json:"group_id,omitempty"`
	PayerID      string     `json:"payer_id" validate:"required,participant"`
	Description  string     `json:"description,omitempty" validate:"max=500"`
	Items        []LineItem `json:"items" validate:"dive"`
	Participants []string   `json:"participants,omitempty" validate:"dive,participant"`
	Tax          Money      `json:"tax"`
	Tip          Money      `json:"tip"`
	Total        Money      `json:"total"`
}

// Share is one participant's computed part of an expense.
type Share struct {
	ParticipantID string `json:"participant_id"`
	Base          Money  `json:"base"`
	Tax           Money  `json:"tax"`
	Tip           Money  `json:"tip"`
	Total         Money  `json:"total"`
}

// Expense is a stored expense with its computed shares.
type Expense struct {
	ID           string     `json:"id"`
	GroupID      string     `json:"group_id"`
	PayerID      string     `json:"payer_id"`
	Description  string     `json:"description"`
	Items        []LineItem `json:"items"`
	Participants []string   `json:"participants,omitempty"`
	Tax          Money      `json:"tax"`
	Tip          Money      `json:"tip"`
	Total        Money      `json:"total"`
	Shares       []Share    `json:"shares"`
	CreatedAt    int64      `json:"created_at"`
	UpdatedAt    int64      `json:"updated_at"`
}

// Member is a group member with display metadata.
type Member struct {
	ParticipantID string `json:"participant_id" validate:"required,participant"`
	DisplayName   string `json:"display_name,omitempty" validate:"max=100"`
	// Role is "admin" or "member"; empty means member.
	Role string `json:"role,omitempty" validate:"omitempty,oneof=admin member"`
}

// Group is a set of people who share expenses.
type Group struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Currency  string   `json:"currency"`
	Members   []Member `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

// Balance is one member's standing within a group.
// Net is positive when the member is owed money.
type Balance struct {
	ParticipantID string `json:"participant_id"`
	DisplayName   string `json:"display_name,omitempty"`
	TotalPaid     Money  `json:"total_paid"`
	TotalOwed     Money  `json:"total_owed"`
	Net           Money  `json:"net"`
}

// NetBalance is a bare net amount used as minimizer input.
type NetBalance struct {
	ParticipantID string `json:"participant_id" validate:"required,participant"`
	Net           Money  `json:"net"`
}

// Settlement is a transfer from a debtor to a creditor.
type Settlement struct {
	ID        string `json:"id,omitempty"`
	GroupID   string `json:"group_id,omitempty"`
	From      string `json:"from"`
	To        string `json:"to"`
	Amount    Money  `json:"amount"`
	Status    string `json:"status"`
	CreatedAt int64  `json:"created_at,omitempty"`
	PaidAt    int64  `json:"paid_at,omitempty"`
}

// ComputeSharesRequest previews an expense split without storing anything.
type ComputeSharesRequest struct {
	Expense ExpenseInput `json:"expense"`
}

// ComputeSharesResponse carries the preview.
type ComputeSharesResponse struct {
	Shares   []Share `json:"shares"`
	Subtotal Money   `json:"subtotal"`
}

// CreateExpenseRequest stores a new expense in a group.
type CreateExpenseRequest struct {
	Expense ExpenseInput `json:"expense"`
}

// CreateExpenseResponse returns the stored expense.
type CreateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

// UpdateExpenseRequest replaces an expense's items and amounts.
type UpdateExpenseRequest struct {
	ExpenseID string       `json:"expense_id" validate:"required"`
	Expense   ExpenseInput `json:"expense"`
}

// UpdateExpenseResponse returns the expense with recomputed shares.
type UpdateExpenseResponse struct {
	Expense Expense `json:"expense"`
}

// GetExpenseRequest fetches one expense.
type GetExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required"`
}

// GetExpenseResponse returns the expense.
type GetExpenseResponse struct {
	Expense Expense `json:"expense"`
}

// ListExpensesRequest lists a group's expenses.
type ListExpensesRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

// ListExpensesResponse returns the expenses, oldest first.
type ListExpensesResponse struct {
	Expenses []Expense `json:"expenses"`
}

// DeleteExpenseRequest removes an expense.
type DeleteExpenseRequest struct {
	ExpenseID string `json:"expense_id" validate:"required"`
}

// DeleteExpenseResponse is empty.
type DeleteExpenseResponse struct{}

// CreateGroupRequest creates a group. The caller always becomes a member.
type CreateGroupRequest struct {
	Name     string   `json:"name" validate:"required,max=100"`
	Currency string   `json:"currency" validate:"required,iso4217"`
	Members  []Member `json:"members,omitempty" validate:"dive"`
}

// CreateGroupResponse returns the group.
type CreateGroupResponse struct {
	Group Group `json:"group"`
}

// GetGroupRequest fetches one group.
type GetGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

// GetGroupResponse returns the group.
type GetGroupResponse struct {
	Group Group `json:"group"`
}

// ListGroupsRequest lists the caller's groups.
type ListGroupsRequest struct{}

// ListGroupsResponse returns the groups, newest first.
type ListGroupsResponse struct {
	Groups []Group `json:"groups"`
}

// AddMembersRequest adds members to a group.
type AddMembersRequest struct {
	GroupID string   `json:"group_id" validate:"required"`
	Members []Member `json:"members" validate:"min=1,dive"`
}

// AddMembersResponse returns the updated group.
type AddMembersResponse struct {
	Group Group `json:"group"`
}

// UpdateGroupRequest renames a group. Admins only.
type UpdateGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
	Name    string `json:"name" validate:"required,max=100"`
}

// UpdateGroupResponse returns the updated group.
type UpdateGroupResponse struct {
	Group Group `json:"group"`
}

// DeleteGroupRequest removes a group with its expenses and settlements.
// Admins only.
type DeleteGroupRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

// DeleteGroupResponse is empty.
type DeleteGroupResponse struct{}

// RemoveMemberRequest removes a member. Admins may remove anyone; members
// may remove themselves.
type RemoveMemberRequest struct {
	GroupID       string `json:"group_id" validate:"required"`
	ParticipantID string `json:"participant_id" validate:"required,participant"`
}

// RemoveMemberResponse returns the updated group.
type RemoveMemberResponse struct {
	Group Group `json:"group"`
}

// GetBalancesRequest fetches a group's balances.
type GetBalancesRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

// GetBalancesResponse returns one entry per participant, sorted by participant ID.
type GetBalancesResponse struct {
	Balances []Balance `json:"balances"`
}

// ProposeSettlementsRequest minimizes transfers for ad-hoc balances.
// Every balance must be in Currency and the balances must sum to zero.
type ProposeSettlementsRequest struct {
	Currency string       `json:"currency" validate:"required,iso4217"`
	Balances []NetBalance `json:"balances" validate:"dive"`
}

// ProposeSettlementsResponse returns proposed transfers. Nothing is stored.
type ProposeSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}

// RegeneratePlanRequest recomputes and stores a group's plan.
type RegeneratePlanRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

// RegeneratePlanResponse returns the open settlements of the new plan.
type RegeneratePlanResponse struct {
	Settlements []Settlement `json:"settlements"`
}

// ListSettlementsRequest lists a group's settlements.
type ListSettlementsRequest struct {
	GroupID string `json:"group_id" validate:"required"`
}

// ListSettlementsResponse returns paid and open settlements.
type ListSettlementsResponse struct {
	Settlements []Settlement `json:"settlements"`
}

// MarkPaidRequest marks a settlement paid.
type MarkPaidRequest struct {
	SettlementID string `json:"settlement_id" validate:"required"`
}

// MarkPaidResponse returns the settlement. Changed is false when it was
// already paid.
type MarkPaidResponse struct {
	Settlement Settlement `json:"settlement"`
	Changed    bool       `json:"changed"`
}
