package models

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidParticipant is returned when a participant identifier cannot be parsed.
var ErrInvalidParticipant = errors.New("invalid participant id")

// ParticipantKind distinguishes persisted participants from session-local ones.
type ParticipantKind uint8

const (
	// PersistedParticipant is a participant known to the identity subsystem.
	PersistedParticipant ParticipantKind = iota + 1

	// EphemeralParticipant is a local-only participant created for a single
	// session (e.g. "the friend without an account"). It cannot be settled
	// across sessions.
	EphemeralParticipant
)

const (
	persistedPrefix = "user:"
	ephemeralPrefix = "local:"
)

// String returns "persisted" or "ephemeral".
func (k ParticipantKind) String() string {
	switch k {
	case PersistedParticipant:
		return "persisted"
	case EphemeralParticipant:
		return "ephemeral"
	default:
		return "unknown"
	}
}

// ParticipantID identifies a participant. The zero value is invalid.
//
// The canonical text form is "user:<id>" for persisted participants and
// "local:<label>" for ephemeral ones; that form is also the sort key used for
// deterministic tie-breaking.
type ParticipantID struct {
	kind ParticipantKind
	key  string
}

// Persisted returns the identifier of a participant owned by the identity subsystem.
func Persisted(id string) ParticipantID {
	return ParticipantID{kind: PersistedParticipant, key: id}
}

// Ephemeral returns the identifier of a session-local participant.
func Ephemeral(label string) ParticipantID {
	return ParticipantID{kind: EphemeralParticipant, key: label}
}

// ParseParticipantID parses the canonical text form "user:<id>" or
// "local:<label>". Anything without one of those prefixes is rejected.
func ParseParticipantID(s string) (ParticipantID, error) {
	s = strings.TrimSpace(s)
	var p ParticipantID
	switch {
	case strings.HasPrefix(s, persistedPrefix):
		p = Persisted(strings.TrimPrefix(s, persistedPrefix))
	case strings.HasPrefix(s, ephemeralPrefix):
		p = Ephemeral(strings.TrimPrefix(s, ephemeralPrefix))
	default:
		return ParticipantID{}, fmt.Errorf("%w: %q has no user: or local: prefix", ErrInvalidParticipant, s)
	}
	if p.key == "" || strings.ContainsAny(p.key, " \t\n") {
		return ParticipantID{}, fmt.Errorf("%w: %q", ErrInvalidParticipant, s)
	}
	return p, nil
}

// Kind returns the participant's kind.
func (p ParticipantID) Kind() ParticipantKind { return p.kind }

// Key returns the identifier without its kind prefix.
func (p ParticipantID) Key() string { return p.key }

// IsZero reports whether p is the zero value.
func (p ParticipantID) IsZero() bool { return p.kind == 0 }

// Settleable reports whether transfers to or from p may be recorded.
func (p ParticipantID) Settleable() bool { return p.kind == PersistedParticipant }

// String returns the canonical text form.
func (p ParticipantID) String() string {
	switch p.kind {
	case PersistedParticipant:
		return persistedPrefix + p.key
	case EphemeralParticipant:
		return ephemeralPrefix + p.key
	default:
		return ""
	}
}

// Compare orders participants by their canonical text form.
func (p ParticipantID) Compare(o ParticipantID) int {
	return strings.Compare(p.String(), o.String())
}

// MarshalText implements encoding.TextMarshaler.
func (p ParticipantID) MarshalText() ([]byte, error) {
	if p.IsZero() {
		return nil, fmt.Errorf("%w: zero value", ErrInvalidParticipant)
	}
	return []byte(p.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *ParticipantID) UnmarshalText(text []byte) error {
	parsed, err := ParseParticipantID(string(text))
	if err != nil {
		return err
	}
	*p = parsed
	return nil
}
