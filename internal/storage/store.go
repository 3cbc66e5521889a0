// Package storage provides abstractions for persistent data storage.
package storage

import (
	"context"
	"errors"

	"github.com/mmynk/splitcore/internal/models"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// GroupStore persists groups and their members.
type GroupStore interface {
	// CreateGroup persists a new group. ID and CreatedAt are filled in when empty.
	CreateGroup(ctx context.Context, group *models.Group) error

	// GetGroup retrieves a group with its members.
	GetGroup(ctx context.Context, groupID string) (*models.Group, error)

	// ListGroupsByMember retrieves the groups a participant belongs to,
	// newest first.
	ListGroupsByMember(ctx context.Context, participant models.ParticipantID) ([]*models.Group, error)

	// AddGroupMembers adds members that are not already in the group.
	// Existing members keep their position and role; their display name is
	// updated when a non-empty one is supplied.
	AddGroupMembers(ctx context.Context, groupID string, members []models.Member) error

	// RenameGroup changes a group's display name.
	RenameGroup(ctx context.Context, groupID, name string) error

	// RemoveGroupMember removes one member. It returns ErrNotFound when the
	// participant is not in the group.
	RemoveGroupMember(ctx context.Context, groupID string, participant models.ParticipantID) error

	// DeleteGroup removes a group and everything it owns.
	DeleteGroup(ctx context.Context, groupID string) error
}

// ExpenseStore persists expenses together with their items and computed shares.
type ExpenseStore interface {
	// CreateExpense persists a new expense, its items and its shares in one transaction.
	CreateExpense(ctx context.Context, expense *models.Expense) error

	// GetExpense retrieves an expense with items, assignments and shares.
	GetExpense(ctx context.Context, expenseID string) (*models.Expense, error)

	// UpdateExpense replaces an expense's amounts, items and shares in one
	// transaction. Old items and shares are superseded, never patched.
	UpdateExpense(ctx context.Context, expense *models.Expense) error

	// DeleteExpense removes an expense.
	DeleteExpense(ctx context.Context, expenseID string) error

	// ListExpensesByGroup retrieves every expense of a group, oldest first.
	ListExpensesByGroup(ctx context.Context, groupID string) ([]models.Expense, error)
}

// SettlementStore persists settlement plans and their paid state.
type SettlementStore interface {
	// GetSettlement retrieves a settlement by ID.
	GetSettlement(ctx context.Context, settlementID string) (*models.Settlement, error)

	// ListSettlementsByGroup retrieves all settlements of a group, oldest first.
	ListSettlementsByGroup(ctx context.Context, groupID string) ([]models.Settlement, error)

	// ReplaceOpenSettlements deletes every unpaid settlement of the group and
	// inserts plan in one transaction. Paid settlements are left untouched.
	ReplaceOpenSettlements(ctx context.Context, groupID string, plan []models.Settlement) error

	// TransitionSettlement moves a settlement from one status to another if it
	// is currently in the from status, recording paidAt when moving to paid.
	// It reports whether a row changed.
	TransitionSettlement(ctx context.Context, settlementID string, from, to models.SettlementStatus, paidAt int64) (bool, error)
}

// Store defines the full set of storage operations.
// This abstraction allows swapping storage backends (SQLite, PostgreSQL, etc.)
// without changing the service layer.
type Store interface {
	GroupStore
	ExpenseStore
	SettlementStore

	// Close releases any resources held by the store.
	Close() error
}
