package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/storage"
)

func TestRemoveMember_RefusesOutstandingBalance(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addExpense(t, alice, 3000, alice, bob, charlie)

	err := f.ledger.RemoveMember(ctx, f.groupID, bob)
	assert.ErrorIs(t, err, ErrOutstandingBalance)

	group, err := f.store.GetGroup(ctx, f.groupID)
	require.NoError(t, err)
	assert.True(t, group.HasMember(bob), "bob still owes 1000 and must stay")
}

func TestRemoveMember_AfterSettlingUp(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addExpense(t, alice, 3000, alice, bob, charlie)

	plan, err := f.ledger.RegeneratePlan(ctx, f.groupID)
	require.NoError(t, err)
	for _, s := range plan {
		if s.From == bob {
			_, _, err := f.ledger.MarkPaid(ctx, s.ID)
			require.NoError(t, err)
		}
	}

	require.NoError(t, f.ledger.RemoveMember(ctx, f.groupID, bob))

	group, err := f.store.GetGroup(ctx, f.groupID)
	require.NoError(t, err)
	assert.False(t, group.HasMember(bob))

	// Balances still conserve: bob's history stays with the group at zero.
	balances, err := f.ledger.Balances(ctx, f.groupID)
	require.NoError(t, err)
	var sum int64
	for _, b := range balances {
		sum += b.Net.Units()
		if b.Participant == bob {
			assert.Zero(t, b.Net.Units())
		}
	}
	assert.Zero(t, sum)

	stored, err := f.ledger.Plan(ctx, f.groupID)
	require.NoError(t, err)
	for _, s := range stored {
		if !s.IsPaid() {
			assert.NotEqual(t, bob, s.From)
			assert.NotEqual(t, bob, s.To)
		}
	}
}

func TestRemoveMember_NotAMember(t *testing.T) {
	f := setup(t)
	err := f.ledger.RemoveMember(context.Background(), f.groupID, models.Persisted("mallory"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestDeleteGroup(t *testing.T) {
	f := setup(t)
	ctx := context.Background()
	f.addExpense(t, alice, 3000, alice, bob, charlie)
	_, err := f.ledger.RegeneratePlan(ctx, f.groupID)
	require.NoError(t, err)

	require.NoError(t, f.ledger.DeleteGroup(ctx, f.groupID))

	_, err = f.store.GetGroup(ctx, f.groupID)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	_, err = f.ledger.Plan(ctx, f.groupID)
	assert.ErrorIs(t, err, storage.ErrNotFound)

	assert.ErrorIs(t, f.ledger.DeleteGroup(ctx, f.groupID), storage.ErrNotFound)
}
