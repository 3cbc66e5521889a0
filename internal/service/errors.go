// Package service implements the Connect RPC services on top of the
// calculator, the ledger and the storage layer.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitcore/internal/calculator"
	"github.com/mmynk/splitcore/internal/ledger"
	"github.com/mmynk/splitcore/internal/middleware"
	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
	"github.com/mmynk/splitcore/internal/storage"
	"github.com/mmynk/splitcore/pkg/api"
)

var (
	errUnauthenticated = errors.New("authentication required")
	errNotMember       = errors.New("you must be a member of this group")
	errInvalidInput    = errors.New("invalid input")
	errNotAdmin        = errors.New("only group admins can do this")
	errLastAdmin       = errors.New("the last admin cannot leave the group")
)

// codeOf picks the Connect code for an error from the lower layers.
func codeOf(err error) connect.Code {
	switch {
	case errors.Is(err, context.Canceled):
		return connect.CodeCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return connect.CodeDeadlineExceeded
	case errors.Is(err, errUnauthenticated):
		return connect.CodeUnauthenticated
	case errors.Is(err, errNotMember),
		errors.Is(err, errNotAdmin):
		return connect.CodePermissionDenied
	case errors.Is(err, errInvalidInput):
		return connect.CodeInvalidArgument
	case errors.Is(err, storage.ErrNotFound):
		return connect.CodeNotFound
	case errors.Is(err, ledger.ErrNotSettleable),
		errors.Is(err, ledger.ErrInvalidTransition),
		errors.Is(err, ledger.ErrOutstandingBalance),
		errors.Is(err, errLastAdmin):
		return connect.CodeFailedPrecondition
	case errors.Is(err, calculator.ErrInvariantViolation),
		errors.Is(err, calculator.ErrUnbalanced):
		return connect.CodeInternal
	case errors.Is(err, api.ErrValidationFailed),
		errors.Is(err, calculator.ErrAmountMismatch),
		errors.Is(err, calculator.ErrIncompleteAssignment),
		errors.Is(err, calculator.ErrInvalidItem),
		errors.Is(err, money.ErrInvalidAmount),
		errors.Is(err, money.ErrCurrencyMismatch),
		errors.Is(err, money.ErrInvalidCurrency),
		errors.Is(err, money.ErrOverflow),
		errors.Is(err, models.ErrInvalidParticipant):
		return connect.CodeInvalidArgument
	default:
		return connect.CodeInternal
	}
}

// fail logs err and converts it to a Connect error. Internal failures are
// logged at error level, everything the caller can fix at warn.
func fail(op string, err error, attrs ...any) error {
	code := codeOf(err)
	args := append([]any{"error", err, "code", code.String()}, attrs...)
	if code == connect.CodeInternal {
		slog.Error(op+" failed", args...)
	} else {
		slog.Warn(op+" failed", args...)
	}
	return connect.NewError(code, err)
}

// caller returns the authenticated participant.
func caller(ctx context.Context) (models.ParticipantID, error) {
	p, ok := middleware.GetParticipant(ctx)
	if !ok {
		return models.ParticipantID{}, errUnauthenticated
	}
	return p, nil
}

// memberGroup loads a group and checks that the caller belongs to it.
func memberGroup(ctx context.Context, store storage.GroupStore, groupID string) (*models.Group, models.ParticipantID, error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, p, err
	}
	group, err := store.GetGroup(ctx, groupID)
	if err != nil {
		return nil, p, err
	}
	if !group.HasMember(p) {
		return nil, p, fmt.Errorf("%w: %s", errNotMember, group.ID)
	}
	return group, p, nil
}

// adminGroup loads a group and checks that the caller administers it.
func adminGroup(ctx context.Context, store storage.GroupStore, groupID string) (*models.Group, error) {
	group, p, err := memberGroup(ctx, store, groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsAdmin(p) {
		return nil, fmt.Errorf("%w: %s in group %s", errNotAdmin, p, group.ID)
	}
	return group, nil
}
