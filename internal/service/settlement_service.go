package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitcore/internal/calculator"
	"github.com/mmynk/splitcore/internal/ledger"
	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
	"github.com/mmynk/splitcore/internal/storage"
	"github.com/mmynk/splitcore/pkg/api"
	"github.com/mmynk/splitcore/pkg/api/apiconnect"
)

var _ apiconnect.SettlementServiceHandler = (*SettlementService)(nil)

var errNotParty = errors.New("only the debtor or the creditor can mark a settlement paid")

// SettlementService implements the Connect SettlementService.
type SettlementService struct {
	store  storage.Store
	ledger *ledger.Ledger
}

// NewSettlementService creates a new SettlementService.
func NewSettlementService(store storage.Store, l *ledger.Ledger) *SettlementService {
	return &SettlementService{store: store, ledger: l}
}

// ProposeSettlements minimizes transfers for ad-hoc balances. Nothing is
// stored, so ephemeral participants are allowed.
func (s *SettlementService) ProposeSettlements(ctx context.Context, req *connect.Request[api.ProposeSettlementsRequest]) (*connect.Response[api.ProposeSettlementsResponse], error) {
	slog.Info("ProposeSettlements request received",
		"currency", req.Msg.Currency,
		"balances_count", len(req.Msg.Balances),
	)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("ProposeSettlements", err)
	}
	currency, err := money.ParseCurrency(req.Msg.Currency)
	if err != nil {
		return nil, fail("ProposeSettlements", err)
	}

	balances := make(map[models.ParticipantID]money.Money, len(req.Msg.Balances))
	for _, b := range req.Msg.Balances {
		p, err := models.ParseParticipantID(b.ParticipantID)
		if err != nil {
			return nil, fail("ProposeSettlements", err)
		}
		if _, dup := balances[p]; dup {
			return nil, fail("ProposeSettlements", fmt.Errorf("%w: duplicate balance for %s", errInvalidInput, p))
		}
		net, err := toMoney(b.Net, currency)
		if err != nil {
			return nil, fail("ProposeSettlements", err)
		}
		if net.Currency() != currency {
			return nil, fail("ProposeSettlements", fmt.Errorf("%w: balance for %s is in %s", money.ErrCurrencyMismatch, p, net.Currency()))
		}
		balances[p] = net
	}

	settlements, err := calculator.ProposeSettlements(balances)
	if errors.Is(err, calculator.ErrUnbalanced) {
		// Caller-supplied balances, so this is bad input rather than a bug.
		return nil, fail("ProposeSettlements", fmt.Errorf("%w: %w", errInvalidInput, err))
	}
	if err != nil {
		return nil, fail("ProposeSettlements", err)
	}

	slog.Info("ProposeSettlements completed", "settlements_count", len(settlements))

	return connect.NewResponse(&api.ProposeSettlementsResponse{Settlements: fromSettlements(settlements)}), nil
}

// RegeneratePlan recomputes and stores the group's plan, replacing every
// unpaid settlement.
func (s *SettlementService) RegeneratePlan(ctx context.Context, req *connect.Request[api.RegeneratePlanRequest]) (*connect.Response[api.RegeneratePlanResponse], error) {
	slog.Info("RegeneratePlan request received", "group_id", req.Msg.GroupID)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("RegeneratePlan", err)
	}
	group, _, err := memberGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, fail("RegeneratePlan", err, "group_id", req.Msg.GroupID)
	}

	plan, err := s.ledger.RegeneratePlan(ctx, group.ID)
	if err != nil {
		return nil, fail("RegeneratePlan", err, "group_id", group.ID)
	}

	return connect.NewResponse(&api.RegeneratePlanResponse{Settlements: fromSettlements(plan)}), nil
}

// ListSettlements lists a group's paid and open settlements.
func (s *SettlementService) ListSettlements(ctx context.Context, req *connect.Request[api.ListSettlementsRequest]) (*connect.Response[api.ListSettlementsResponse], error) {
	slog.Info("ListSettlements request received", "group_id", req.Msg.GroupID)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("ListSettlements", err)
	}
	group, _, err := memberGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, fail("ListSettlements", err, "group_id", req.Msg.GroupID)
	}

	settlements, err := s.ledger.Plan(ctx, group.ID)
	if err != nil {
		return nil, fail("ListSettlements", err, "group_id", group.ID)
	}

	slog.Info("ListSettlements successful", "group_id", group.ID, "count", len(settlements))

	return connect.NewResponse(&api.ListSettlementsResponse{Settlements: fromSettlements(settlements)}), nil
}

// MarkPaid marks a settlement paid. Only its debtor or creditor may do so.
// Repeating the call is a no-op that reports Changed=false.
func (s *SettlementService) MarkPaid(ctx context.Context, req *connect.Request[api.MarkPaidRequest]) (*connect.Response[api.MarkPaidResponse], error) {
	slog.Info("MarkPaid request received", "settlement_id", req.Msg.SettlementID)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("MarkPaid", err)
	}
	p, err := caller(ctx)
	if err != nil {
		return nil, fail("MarkPaid", err)
	}

	current, err := s.store.GetSettlement(ctx, req.Msg.SettlementID)
	if err != nil {
		return nil, fail("MarkPaid", err, "settlement_id", req.Msg.SettlementID)
	}
	if p != current.From && p != current.To {
		slog.Warn("MarkPaid failed", "settlement_id", current.ID, "participant", p.String(), "error", errNotParty)
		return nil, connect.NewError(connect.CodePermissionDenied, errNotParty)
	}

	settlement, changed, err := s.ledger.MarkPaid(ctx, current.ID)
	if err != nil {
		return nil, fail("MarkPaid", err, "settlement_id", current.ID)
	}

	return connect.NewResponse(&api.MarkPaidResponse{
		Settlement: fromSettlement(settlement),
		Changed:    changed,
	}), nil
}
