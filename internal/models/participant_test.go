package models

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseParticipantID(t *testing.T) {
	tests := []struct {
		in      string
		want    ParticipantID
		wantErr bool
	}{
		{in: "user:alice", want: Persisted("alice")},
		{in: "alice", wantErr: true},
		{in: "guest:alice", wantErr: true},
		{in: "local:Guest 1", wantErr: true},
		{in: "local:guest-1", want: Ephemeral("guest-1")},
		{in: "", wantErr: true},
		{in: "user:", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseParticipantID(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidParticipant)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParticipantID_Kinds(t *testing.T) {
	alice := Persisted("alice")
	guest := Ephemeral("guest")

	assert.True(t, alice.Settleable())
	assert.False(t, guest.Settleable())
	assert.Equal(t, "user:alice", alice.String())
	assert.Equal(t, "local:guest", guest.String())
	assert.Equal(t, "ephemeral", guest.Kind().String())
	assert.True(t, ParticipantID{}.IsZero())
	assert.NotEqual(t, Persisted("x"), Ephemeral("x"))
	assert.Negative(t, guest.Compare(alice))
}

func TestParticipantID_JSONMapKeys(t *testing.T) {
	in := map[ParticipantID]int{Persisted("a"): 1, Ephemeral("b"): 2}
	data, err := json.Marshal(in)
	require.NoError(t, err)
	assert.JSONEq(t, `{"user:a":1,"local:b":2}`, string(data))

	var out map[ParticipantID]int
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, in, out)
}

func TestLineItem_Assignees(t *testing.T) {
	item := LineItem{Assigned: []ParticipantID{Persisted("b"), Persisted("a"), Persisted("b"), Ephemeral("a")}}
	assert.Equal(t, []ParticipantID{Persisted("b"), Persisted("a"), Ephemeral("a")}, item.Assignees())
}
