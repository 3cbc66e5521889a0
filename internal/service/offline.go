package service

import (
	"fmt"

	"github.com/mmynk/splitcore/internal/calculator"
	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
	"github.com/mmynk/splitcore/pkg/api"
)

// offlineGroup tags the expenses of an offline computation.
const offlineGroup = "offline"

// SettleRequest is a batch of expenses to split and settle without storage.
type SettleRequest struct {
	Currency string             `json:"currency" validate:"required,iso4217"`
	Expenses []api.ExpenseInput `json:"expenses" validate:"dive"`
}

// SettleReport is the result of Settle.
type SettleReport struct {
	Expenses    []api.Expense    `json:"expenses"`
	Balances    []api.Balance    `json:"balances"`
	Settlements []api.Settlement `json:"settlements"`
}

// Settle splits every expense, aggregates the balances and proposes the
// minimal transfers. Nothing is persisted, so ephemeral participants are
// allowed.
func Settle(req *SettleRequest) (*SettleReport, error) {
	if err := api.Validate(req); err != nil {
		return nil, err
	}
	currency, err := money.ParseCurrency(req.Currency)
	if err != nil {
		return nil, err
	}

	group := &models.Group{ID: offlineGroup, Currency: currency}
	expenses := make([]models.Expense, len(req.Expenses))
	for i, in := range req.Expenses {
		in.GroupID = offlineGroup
		c, err := expenseCurrency(in, group)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		e, err := toExpense(in, c)
		if err != nil {
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		if e.Shares, err = calculator.ComputeShares(e); err != nil {
			return nil, fmt.Errorf("expense %d: %w", i, err)
		}
		e.ID = fmt.Sprintf("expense-%d", i+1)
		expenses[i] = *e
	}

	balances, err := calculator.CalculateGroupBalances(offlineGroup, expenses, nil)
	if err != nil {
		return nil, err
	}
	nets := make(map[models.ParticipantID]money.Money, len(balances))
	for _, b := range balances {
		nets[b.Participant] = b.Net
	}
	settlements, err := calculator.ProposeSettlements(nets)
	if err != nil {
		return nil, err
	}

	report := &SettleReport{
		Expenses:    make([]api.Expense, len(expenses)),
		Balances:    fromBalances(balances, group),
		Settlements: fromSettlements(settlements),
	}
	for i := range expenses {
		report.Expenses[i] = fromExpense(&expenses[i])
	}
	return report, nil
}
