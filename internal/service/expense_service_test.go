package service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"connectrpc.com/connect"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/mmynk/splitcore/internal/ledger"
	"github.com/mmynk/splitcore/internal/lock"
	"github.com/mmynk/splitcore/internal/metrics"
	"github.com/mmynk/splitcore/internal/middleware"
	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/storage/sqlite"
	"github.com/mmynk/splitcore/pkg/api"
	"github.com/mmynk/splitcore/pkg/api/apiconnect"
)

// participantHeader selects the caller in tests. "anonymous" sends no identity.
const participantHeader = "X-Test-Participant"

// testAuthInterceptor puts the participant named in participantHeader into
// the context, defaulting to user:alice.
func testAuthInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			id := req.Header().Get(participantHeader)
			switch id {
			case "anonymous":
				return next(ctx, req)
			case "":
				id = "user:alice"
			}
			p, err := models.ParseParticipantID(id)
			if err != nil {
				return nil, connect.NewError(connect.CodeUnauthenticated, err)
			}
			return next(middleware.WithParticipant(ctx, p, p.Key()), req)
		}
	}
}

type testClients struct {
	expenses    apiconnect.ExpenseServiceClient
	groups      apiconnect.GroupServiceClient
	settlements apiconnect.SettlementServiceClient
}

// setupTestServer serves all three services over a fresh SQLite database.
func setupTestServer(t *testing.T) *testClients {
	t.Helper()

	store, err := sqlite.New(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}

	l := ledger.New(store, lock.NewMemoryLocker(), metrics.NewWithRegistry(prometheus.NewRegistry()))
	interceptors := connect.WithInterceptors(testAuthInterceptor())

	mux := http.NewServeMux()
	mux.Handle(apiconnect.NewExpenseServiceHandler(NewExpenseService(store, l), interceptors))
	mux.Handle(apiconnect.NewGroupServiceHandler(NewGroupService(store, l), interceptors))
	mux.Handle(apiconnect.NewSettlementServiceHandler(NewSettlementService(store, l), interceptors))

	server := httptest.NewServer(mux)
	t.Cleanup(func() {
		server.Close()
		store.Close()
	})

	return &testClients{
		expenses:    apiconnect.NewExpenseServiceClient(http.DefaultClient, server.URL),
		groups:      apiconnect.NewGroupServiceClient(http.DefaultClient, server.URL),
		settlements: apiconnect.NewSettlementServiceClient(http.DefaultClient, server.URL),
	}
}

// as builds a request sent on behalf of participant.
func as[T any](participant string, msg *T) *connect.Request[T] {
	req := connect.NewRequest(msg)
	req.Header().Set(participantHeader, participant)
	return req
}

func usd(units int64) api.Money { return api.Money{Units: units, Currency: "USD"} }

func units(units int64) api.Money { return api.Money{Units: units} }

// createGroup creates a USD group owned by alice with the given extra members.
func createGroup(t *testing.T, c *testClients, members ...string) api.Group {
	t.Helper()
	req := &api.CreateGroupRequest{Name: "Trip", Currency: "USD"}
	for _, m := range members {
		req.Members = append(req.Members, api.Member{ParticipantID: m})
	}
	resp, err := c.groups.CreateGroup(context.Background(), connect.NewRequest(req))
	if err != nil {
		t.Fatalf("CreateGroup failed: %v", err)
	}
	return resp.Msg.Group
}

// dinner is pizza shared by alice and bob plus bob's beer, paid by alice.
func dinner(groupID string) api.ExpenseInput {
	return api.ExpenseInput{
		GroupID: groupID,
		PayerID: "user:alice",
		Items: []api.LineItem{
			{Name: "Pizza", Quantity: 1, TotalPrice: units(1200), AssignedTo: []string{"user:alice", "user:bob"}},
			{Name: "Beer", Quantity: 2, TotalPrice: units(600), AssignedTo: []string{"user:bob"}},
		},
		Tax:   units(180),
		Tip:   units(0),
		Total: units(1980),
	}
}

func assertCode(t *testing.T, err error, want connect.Code) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", want)
	}
	var connectErr *connect.Error
	if !errors.As(err, &connectErr) {
		t.Fatalf("expected connect error, got %T: %v", err, err)
	}
	if connectErr.Code() != want {
		t.Errorf("code: expected %s, got %s (%v)", want, connectErr.Code(), err)
	}
}

func sharesByParticipant(shares []api.Share) map[string]api.Share {
	out := make(map[string]api.Share, len(shares))
	for _, s := range shares {
		out[s.ParticipantID] = s
	}
	return out
}

func TestComputeShares_WithItems(t *testing.T) {
	c := setupTestServer(t)

	in := dinner("")
	in.Total = usd(1980)
	resp, err := c.expenses.ComputeShares(context.Background(), connect.NewRequest(&api.ComputeSharesRequest{Expense: in}))
	if err != nil {
		t.Fatalf("ComputeShares failed: %v", err)
	}

	if resp.Msg.Subtotal.Units != 1800 {
		t.Errorf("subtotal: expected 1800, got %d", resp.Msg.Subtotal.Units)
	}

	shares := sharesByParticipant(resp.Msg.Shares)
	if len(shares) != 2 {
		t.Fatalf("expected 2 shares, got %d", len(shares))
	}
	alice, bob := shares["user:alice"], shares["user:bob"]
	if alice.Base.Units != 600 || alice.Tax.Units != 60 || alice.Total.Units != 660 {
		t.Errorf("alice: expected base 600 tax 60 total 660, got %+v", alice)
	}
	if bob.Base.Units != 1200 || bob.Tax.Units != 120 || bob.Total.Units != 1320 {
		t.Errorf("bob: expected base 1200 tax 120 total 1320, got %+v", bob)
	}
	if alice.Total.Currency != "USD" {
		t.Errorf("currency: expected USD, got %q", alice.Total.Currency)
	}
}

func TestComputeShares_EphemeralParticipants(t *testing.T) {
	c := setupTestServer(t)

	resp, err := c.expenses.ComputeShares(context.Background(), connect.NewRequest(&api.ComputeSharesRequest{
		Expense: api.ExpenseInput{
			PayerID: "user:alice",
			Items: []api.LineItem{
				{Name: "Nachos", Quantity: 1, TotalPrice: units(1000), AssignedTo: []string{"user:alice", "local:guest", "local:friend"}},
			},
			Total: usd(1000),
		},
	}))
	if err != nil {
		t.Fatalf("ComputeShares failed: %v", err)
	}

	var sum int64
	for _, s := range resp.Msg.Shares {
		sum += s.Total.Units
	}
	if sum != 1000 {
		t.Errorf("shares must add up to the total: got %d", sum)
	}
	if len(resp.Msg.Shares) != 3 {
		t.Errorf("expected 3 shares, got %d", len(resp.Msg.Shares))
	}
}

func TestComputeShares_InvalidInput(t *testing.T) {
	c := setupTestServer(t)

	tests := []struct {
		name   string
		modify func(*api.ExpenseInput)
	}{
		{"amount mismatch", func(in *api.ExpenseInput) { in.Total = usd(2000) }},
		{"unassigned item", func(in *api.ExpenseInput) { in.Items[1].AssignedTo = nil }},
		{"zero quantity", func(in *api.ExpenseInput) { in.Items[0].Quantity = 0 }},
		{"missing currency", func(in *api.ExpenseInput) { in.Total = units(1980) }},
		{"mixed currencies", func(in *api.ExpenseInput) { in.Tax = api.Money{Units: 180, Currency: "EUR"} }},
		{"bad participant", func(in *api.ExpenseInput) { in.PayerID = "alice" }},
		{"bad currency", func(in *api.ExpenseInput) { in.Total = api.Money{Units: 1980, Currency: "dollars"} }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := dinner("")
			in.Total = usd(1980)
			tt.modify(&in)
			_, err := c.expenses.ComputeShares(context.Background(), connect.NewRequest(&api.ComputeSharesRequest{Expense: in}))
			assertCode(t, err, connect.CodeInvalidArgument)
		})
	}
}

func TestCreateExpense_And_GetExpense(t *testing.T) {
	c := setupTestServer(t)
	group := createGroup(t, c, "user:bob")

	createResp, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		Expense: dinner(group.ID),
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	created := createResp.Msg.Expense
	if created.ID == "" {
		t.Fatal("expected non-empty expense ID")
	}
	if created.Description != "Pizza, Beer" {
		t.Errorf("description: expected 'Pizza, Beer', got '%s'", created.Description)
	}
	if created.Total.Currency != "USD" {
		t.Errorf("currency: expected group currency USD, got %q", created.Total.Currency)
	}

	getResp, err := c.expenses.GetExpense(context.Background(), connect.NewRequest(&api.GetExpenseRequest{
		ExpenseID: created.ID,
	}))
	if err != nil {
		t.Fatalf("GetExpense failed: %v", err)
	}

	got := getResp.Msg.Expense
	if got.PayerID != "user:alice" {
		t.Errorf("payer: expected user:alice, got %s", got.PayerID)
	}
	if len(got.Items) != 2 {
		t.Fatalf("items: expected 2, got %d", len(got.Items))
	}
	if got.Items[0].Name != "Pizza" || got.Items[1].Quantity != 2 {
		t.Errorf("items not preserved: %+v", got.Items)
	}
	shares := sharesByParticipant(got.Shares)
	if shares["user:bob"].Total.Units != 1320 {
		t.Errorf("bob's share: expected 1320, got %d", shares["user:bob"].Total.Units)
	}
}

func TestCreateExpense_Validation(t *testing.T) {
	c := setupTestServer(t)
	group := createGroup(t, c, "user:bob")

	tests := []struct {
		name   string
		modify func(*api.ExpenseInput)
		code   connect.Code
	}{
		{"no group", func(in *api.ExpenseInput) { in.GroupID = "" }, connect.CodeInvalidArgument},
		{"unknown group", func(in *api.ExpenseInput) { in.GroupID = "nope" }, connect.CodeNotFound},
		{"other currency", func(in *api.ExpenseInput) { in.Total = api.Money{Units: 1980, Currency: "EUR"} }, connect.CodeInvalidArgument},
		{"ephemeral participant", func(in *api.ExpenseInput) { in.Items[1].AssignedTo = []string{"local:guest"} }, connect.CodeFailedPrecondition},
		{"amount mismatch", func(in *api.ExpenseInput) { in.Total = units(1) }, connect.CodeInvalidArgument},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := dinner(group.ID)
			tt.modify(&in)
			_, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{Expense: in}))
			assertCode(t, err, tt.code)
		})
	}
}

func TestCreateExpense_RequiresMembership(t *testing.T) {
	c := setupTestServer(t)
	group := createGroup(t, c, "user:bob")

	_, err := c.expenses.CreateExpense(context.Background(), as("user:mallory", &api.CreateExpenseRequest{
		Expense: dinner(group.ID),
	}))
	assertCode(t, err, connect.CodePermissionDenied)

	_, err = c.expenses.CreateExpense(context.Background(), as("anonymous", &api.CreateExpenseRequest{
		Expense: dinner(group.ID),
	}))
	assertCode(t, err, connect.CodeUnauthenticated)
}

func TestCreateExpense_AutoAddsParticipantsToGroup(t *testing.T) {
	c := setupTestServer(t)
	group := createGroup(t, c)

	in := dinner(group.ID)
	in.Participants = []string{"user:charlie"}
	if _, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{Expense: in})); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	resp, err := c.groups.GetGroup(context.Background(), connect.NewRequest(&api.GetGroupRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("GetGroup failed: %v", err)
	}

	members := make(map[string]bool)
	for _, m := range resp.Msg.Group.Members {
		members[m.ParticipantID] = true
	}
	for _, want := range []string{"user:alice", "user:bob", "user:charlie"} {
		if !members[want] {
			t.Errorf("expected %s to be a member, got %+v", want, resp.Msg.Group.Members)
		}
	}
}

func TestCreateExpense_RegeneratesPlan(t *testing.T) {
	c := setupTestServer(t)
	group := createGroup(t, c, "user:bob")

	if _, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		Expense: dinner(group.ID),
	})); err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}

	resp, err := c.settlements.ListSettlements(context.Background(), connect.NewRequest(&api.ListSettlementsRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}

	if len(resp.Msg.Settlements) != 1 {
		t.Fatalf("expected 1 settlement, got %d", len(resp.Msg.Settlements))
	}
	s := resp.Msg.Settlements[0]
	if s.From != "user:bob" || s.To != "user:alice" || s.Amount.Units != 1320 {
		t.Errorf("expected bob to pay alice 1320, got %+v", s)
	}
	if s.Status != string(models.StatusRecorded) {
		t.Errorf("status: expected recorded, got %s", s.Status)
	}
}

func TestUpdateExpense(t *testing.T) {
	c := setupTestServer(t)
	group := createGroup(t, c, "user:bob")

	createResp, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		Expense: dinner(group.ID),
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	created := createResp.Msg.Expense

	// Bob now pays and the beer goes to alice.
	in := dinner("")
	in.PayerID = "user:bob"
	in.Items[1].AssignedTo = []string{"user:alice"}
	updateResp, err := c.expenses.UpdateExpense(context.Background(), connect.NewRequest(&api.UpdateExpenseRequest{
		ExpenseID: created.ID,
		Expense:   in,
	}))
	if err != nil {
		t.Fatalf("UpdateExpense failed: %v", err)
	}

	updated := updateResp.Msg.Expense
	if updated.ID != created.ID || updated.GroupID != group.ID {
		t.Errorf("identity changed: %s/%s", updated.ID, updated.GroupID)
	}
	if updated.Description != created.Description {
		t.Errorf("description: expected %q kept, got %q", created.Description, updated.Description)
	}
	if updated.CreatedAt != created.CreatedAt {
		t.Errorf("created_at changed: %d -> %d", created.CreatedAt, updated.CreatedAt)
	}
	shares := sharesByParticipant(updated.Shares)
	if shares["user:alice"].Total.Units != 1320 || shares["user:bob"].Total.Units != 660 {
		t.Errorf("shares not recomputed: %+v", updated.Shares)
	}

	plan, err := c.settlements.ListSettlements(context.Background(), connect.NewRequest(&api.ListSettlementsRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(plan.Msg.Settlements) != 1 || plan.Msg.Settlements[0].From != "user:alice" {
		t.Errorf("expected alice to owe bob after the update, got %+v", plan.Msg.Settlements)
	}
}

func TestUpdateExpense_NotFound(t *testing.T) {
	c := setupTestServer(t)

	_, err := c.expenses.UpdateExpense(context.Background(), connect.NewRequest(&api.UpdateExpenseRequest{
		ExpenseID: "non-existent-id",
		Expense:   dinner(""),
	}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestGetExpense_NotFound(t *testing.T) {
	c := setupTestServer(t)

	_, err := c.expenses.GetExpense(context.Background(), connect.NewRequest(&api.GetExpenseRequest{
		ExpenseID: "non-existent-id",
	}))
	assertCode(t, err, connect.CodeNotFound)
}

func TestListExpenses(t *testing.T) {
	c := setupTestServer(t)
	group := createGroup(t, c, "user:bob")
	other := createGroup(t, c, "user:bob")

	for _, groupID := range []string{group.ID, group.ID, other.ID} {
		if _, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
			Expense: dinner(groupID),
		})); err != nil {
			t.Fatalf("CreateExpense failed: %v", err)
		}
	}

	resp, err := c.expenses.ListExpenses(context.Background(), connect.NewRequest(&api.ListExpensesRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("ListExpenses failed: %v", err)
	}
	if len(resp.Msg.Expenses) != 2 {
		t.Errorf("expected 2 expenses, got %d", len(resp.Msg.Expenses))
	}
	for _, e := range resp.Msg.Expenses {
		if e.GroupID != group.ID {
			t.Errorf("expense %s belongs to %s", e.ID, e.GroupID)
		}
	}

	_, err = c.expenses.ListExpenses(context.Background(), as("user:mallory", &api.ListExpensesRequest{GroupID: group.ID}))
	assertCode(t, err, connect.CodePermissionDenied)
}

func TestDeleteExpense(t *testing.T) {
	c := setupTestServer(t)
	group := createGroup(t, c, "user:bob")

	createResp, err := c.expenses.CreateExpense(context.Background(), connect.NewRequest(&api.CreateExpenseRequest{
		Expense: dinner(group.ID),
	}))
	if err != nil {
		t.Fatalf("CreateExpense failed: %v", err)
	}
	id := createResp.Msg.Expense.ID

	if _, err := c.expenses.DeleteExpense(context.Background(), connect.NewRequest(&api.DeleteExpenseRequest{ExpenseID: id})); err != nil {
		t.Fatalf("DeleteExpense failed: %v", err)
	}

	_, err = c.expenses.GetExpense(context.Background(), connect.NewRequest(&api.GetExpenseRequest{ExpenseID: id}))
	assertCode(t, err, connect.CodeNotFound)

	plan, err := c.settlements.ListSettlements(context.Background(), connect.NewRequest(&api.ListSettlementsRequest{GroupID: group.ID}))
	if err != nil {
		t.Fatalf("ListSettlements failed: %v", err)
	}
	if len(plan.Msg.Settlements) != 0 {
		t.Errorf("expected an empty plan after deleting the only expense, got %+v", plan.Msg.Settlements)
	}
}

func TestDeleteExpense_NotFound(t *testing.T) {
	c := setupTestServer(t)

	_, err := c.expenses.DeleteExpense(context.Background(), connect.NewRequest(&api.DeleteExpenseRequest{
		ExpenseID: "non-existent-id",
	}))
	assertCode(t, err, connect.CodeNotFound)
}
