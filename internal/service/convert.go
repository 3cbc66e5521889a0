package service

import (
	"fmt"

	"github.com/mmynk/splitcore/internal/calculator"
	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
	"github.com/mmynk/splitcore/pkg/api"
)

// toMoney converts a wire amount. An empty currency takes fallback.
func toMoney(m api.Money, fallback money.Currency) (money.Money, error) {
	code := m.Currency
	if code == "" {
		code = string(fallback)
	}
	if code == "" {
		return money.Money{}, fmt.Errorf("%w: amount %d has no currency", money.ErrInvalidCurrency, m.Units)
	}
	c, err := money.ParseCurrency(code)
	if err != nil {
		return money.Money{}, err
	}
	return money.New(m.Units, c), nil
}

func fromMoney(m money.Money) api.Money {
	return api.Money{Units: m.Units(), Currency: string(m.Currency())}
}

func parseParticipants(ids []string) ([]models.ParticipantID, error) {
	out := make([]models.ParticipantID, 0, len(ids))
	for _, id := range ids {
		p, err := models.ParseParticipantID(id)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, nil
}

func participantStrings(ps []models.ParticipantID) []string {
	out := make([]string, len(ps))
	for i, p := range ps {
		out[i] = p.String()
	}
	return out
}

// expenseCurrency picks the expense currency: the group's when there is one,
// otherwise the currency named on the total.
func expenseCurrency(in api.ExpenseInput, group *models.Group) (money.Currency, error) {
	if group != nil {
		if in.Total.Currency != "" && in.Total.Currency != string(group.Currency) {
			return "", fmt.Errorf("%w: expense in %s, group uses %s", money.ErrCurrencyMismatch, in.Total.Currency, group.Currency)
		}
		return group.Currency, nil
	}
	if in.Total.Currency == "" {
		return "", fmt.Errorf("%w: total needs a currency", money.ErrInvalidCurrency)
	}
	return money.ParseCurrency(in.Total.Currency)
}

// toExpense builds a models.Expense from client input. Shares are left empty.
func toExpense(in api.ExpenseInput, currency money.Currency) (*models.Expense, error) {
	payer, err := models.ParseParticipantID(in.PayerID)
	if err != nil {
		return nil, err
	}
	participants, err := parseParticipants(in.Participants)
	if err != nil {
		return nil, err
	}

	e := &models.Expense{
		GroupID:      in.GroupID,
		PayerID:      payer,
		Description:  in.Description,
		Participants: participants,
		Items:        make([]models.LineItem, len(in.Items)),
	}
	if e.Tax, err = toMoney(in.Tax, currency); err != nil {
		return nil, err
	}
	if e.Tip, err = toMoney(in.Tip, currency); err != nil {
		return nil, err
	}
	if e.TotalAmount, err = toMoney(in.Total, currency); err != nil {
		return nil, err
	}

	for i, item := range in.Items {
		assigned, err := parseParticipants(item.AssignedTo)
		if err != nil {
			return nil, err
		}
		price, err := toMoney(item.TotalPrice, currency)
		if err != nil {
			return nil, err
		}
		e.Items[i] = models.LineItem{
			ID:         item.ID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			TotalPrice: price,
			Assigned:   assigned,
		}
	}
	return e, nil
}

// everyone lists the payer and every participant mentioned by the expense.
func everyone(e *models.Expense) []models.ParticipantID {
	seen := make(map[models.ParticipantID]bool)
	var out []models.ParticipantID
	add := func(p models.ParticipantID) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, item := range e.Items {
		for _, p := range item.Assigned {
			add(p)
		}
	}
	for _, p := range e.Participants {
		add(p)
	}
	add(e.PayerID)
	return out
}

func fromShares(shares []models.UserShare) []api.Share {
	out := make([]api.Share, len(shares))
	for i, s := range shares {
		out[i] = api.Share{
			ParticipantID: s.ParticipantID.String(),
			Base:          fromMoney(s.BaseShare),
			Tax:           fromMoney(s.TaxShare),
			Tip:           fromMoney(s.TipShare),
			Total:         fromMoney(s.Total),
		}
	}
	return out
}

func fromExpense(e *models.Expense) api.Expense {
	items := make([]api.LineItem, len(e.Items))
	for i, item := range e.Items {
		items[i] = api.LineItem{
			ID:         item.ID,
			Name:       item.Name,
			Quantity:   item.Quantity,
			TotalPrice: fromMoney(item.TotalPrice),
			AssignedTo: participantStrings(item.Assigned),
		}
	}
	return api.Expense{
		ID:           e.ID,
		GroupID:      e.GroupID,
		PayerID:      e.PayerID.String(),
		Description:  e.Description,
		Items:        items,
		Participants: participantStrings(e.Participants),
		Tax:          fromMoney(e.Tax),
		Tip:          fromMoney(e.Tip),
		Total:        fromMoney(e.TotalAmount),
		Shares:       fromShares(e.Shares),
		CreatedAt:    e.CreatedAt,
		UpdatedAt:    e.UpdatedAt,
	}
}

func toMembers(in []api.Member) ([]models.Member, error) {
	out := make([]models.Member, len(in))
	for i, m := range in {
		p, err := models.ParseParticipantID(m.ParticipantID)
		if err != nil {
			return nil, err
		}
		role, err := models.ParseMemberRole(m.Role)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", errInvalidInput, err)
		}
		out[i] = models.Member{Participant: p, DisplayName: m.DisplayName, Role: role}
	}
	return out, nil
}

func fromGroup(g *models.Group) api.Group {
	members := make([]api.Member, len(g.Members))
	for i, m := range g.Members {
		members[i] = api.Member{ParticipantID: m.Participant.String(), DisplayName: m.DisplayName, Role: string(m.Role)}
	}
	return api.Group{
		ID:        g.ID,
		Name:      g.Name,
		Currency:  string(g.Currency),
		Members:   members,
		CreatedAt: g.CreatedAt,
	}
}

func fromBalances(balances []calculator.MemberBalance, group *models.Group) []api.Balance {
	names := make(map[models.ParticipantID]string, len(group.Members))
	for _, m := range group.Members {
		names[m.Participant] = m.DisplayName
	}
	out := make([]api.Balance, len(balances))
	for i, b := range balances {
		out[i] = api.Balance{
			ParticipantID: b.Participant.String(),
			DisplayName:   names[b.Participant],
			TotalPaid:     fromMoney(b.TotalPaid),
			TotalOwed:     fromMoney(b.TotalOwed),
			Net:           fromMoney(b.Net),
		}
	}
	return out
}

func fromSettlement(s *models.Settlement) api.Settlement {
	return api.Settlement{
		ID:        s.ID,
		GroupID:   s.GroupID,
		From:      s.From.String(),
		To:        s.To.String(),
		Amount:    fromMoney(s.Amount),
		Status:    string(s.Status),
		CreatedAt: s.CreatedAt,
		PaidAt:    s.PaidAt,
	}
}

func fromSettlements(settlements []models.Settlement) []api.Settlement {
	out := make([]api.Settlement, len(settlements))
	for i := range settlements {
		out[i] = fromSettlement(&settlements[i])
	}
	return out
}
