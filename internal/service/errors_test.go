package service

import (
	"context"
	"fmt"
	"testing"

	"connectrpc.com/connect"

	"github.com/mmynk/splitcore/internal/calculator"
	"github.com/mmynk/splitcore/internal/ledger"
	"github.com/mmynk/splitcore/internal/money"
	"github.com/mmynk/splitcore/internal/storage"
	"github.com/mmynk/splitcore/pkg/api"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want connect.Code
	}{
		{"canceled", context.Canceled, connect.CodeCanceled},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), connect.CodeDeadlineExceeded},
		{"no caller", errUnauthenticated, connect.CodeUnauthenticated},
		{"not member", fmt.Errorf("%w: g1", errNotMember), connect.CodePermissionDenied},
		{"not found", fmt.Errorf("group g1: %w", storage.ErrNotFound), connect.CodeNotFound},
		{"ephemeral", ledger.ErrNotSettleable, connect.CodeFailedPrecondition},
		{"bad transition", ledger.ErrInvalidTransition, connect.CodeFailedPrecondition},
		{"not admin", errNotAdmin, connect.CodePermissionDenied},
		{"outstanding balance", ledger.ErrOutstandingBalance, connect.CodeFailedPrecondition},
		{"last admin", errLastAdmin, connect.CodeFailedPrecondition},
		{"validation", api.ErrValidationFailed, connect.CodeInvalidArgument},
		{"mismatch", calculator.ErrAmountMismatch, connect.CodeInvalidArgument},
		{"currency", money.ErrCurrencyMismatch, connect.CodeInvalidArgument},
		{"broken invariant", calculator.ErrInvariantViolation, connect.CodeInternal},
		{"unbalanced from store", calculator.ErrUnbalanced, connect.CodeInternal},
		{"unbalanced from caller", fmt.Errorf("%w: %w", errInvalidInput, calculator.ErrUnbalanced), connect.CodeInvalidArgument},
		{"unknown", fmt.Errorf("disk on fire"), connect.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := codeOf(tt.err); got != tt.want {
				t.Errorf("codeOf(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestFailWrapsCode(t *testing.T) {
	err := fail("GetGroup", storage.ErrNotFound, "group_id", "g1")
	if connect.CodeOf(err) != connect.CodeNotFound {
		t.Errorf("expected NotFound, got %v", connect.CodeOf(err))
	}
}
