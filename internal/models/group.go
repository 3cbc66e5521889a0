package models

import (
	"fmt"

	"github.com/mmynk/splitcore/internal/money"
)

// Group represents people who share expenses and settle up together.
// A group owns its expenses and settlements for its lifetime.
type Group struct {
	// ID is the unique identifier for the group (UUID format).
	ID string

	// Name is the display name of the group (e.g., "Roommates", "Work Lunch").
	Name string

	// Currency is the single currency all of the group's amounts use.
	Currency money.Currency

	// Members is the list of participants in this group.
	Members []Member

	// CreatedAt is the Unix timestamp when the group was created.
	CreatedAt int64
}

// HasMember reports whether p is a member of the group.
func (g *Group) HasMember(p ParticipantID) bool {
	_, ok := g.Member(p)
	return ok
}

// Member returns p's membership record.
func (g *Group) Member(p ParticipantID) (Member, bool) {
	for _, m := range g.Members {
		if m.Participant == p {
			return m, true
		}
	}
	return Member{}, false
}

// IsAdmin reports whether p is an admin of the group.
func (g *Group) IsAdmin(p ParticipantID) bool {
	m, ok := g.Member(p)
	return ok && m.Role == RoleAdmin
}

// AdminCount returns how many members hold the admin role.
func (g *Group) AdminCount() int {
	n := 0
	for _, m := range g.Members {
		if m.Role == RoleAdmin {
			n++
		}
	}
	return n
}

// MemberRole controls what a member may do to the group itself.
// Every member may record expenses and settle up.
type MemberRole string

const (
	// RoleMember may leave the group but not change its membership otherwise.
	RoleMember MemberRole = "member"

	// RoleAdmin may rename or delete the group and add or remove anyone.
	RoleAdmin MemberRole = "admin"
)

// ParseMemberRole validates a role. An empty string means RoleMember.
func ParseMemberRole(s string) (MemberRole, error) {
	switch r := MemberRole(s); r {
	case "":
		return RoleMember, nil
	case RoleMember, RoleAdmin:
		return r, nil
	default:
		return "", fmt.Errorf("unknown member role %q", s)
	}
}

// Member is a group member with display metadata supplied by the identity subsystem.
type Member struct {
	// Participant identifies the member.
	Participant ParticipantID

	// DisplayName is the name shown in clients. Optional.
	DisplayName string

	// Role is the member's permission level. The group's creator is an admin.
	Role MemberRole
}
