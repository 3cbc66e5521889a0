package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/mmynk/splitcore/internal/models"
)

// AddGroupMembers appends members that are not yet in the group. A member who
// is already present keeps their position and role; a non-empty display name
// replaces the stored one.
func (s *SQLiteStore) AddGroupMembers(ctx context.Context, groupID string, members []models.Member) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if err := groupExists(ctx, tx, groupID); err != nil {
			return err
		}

		var next int
		if err := tx.QueryRowContext(ctx,
			"SELECT COALESCE(MAX(position) + 1, 0) FROM group_members WHERE group_id = ?",
			groupID,
		).Scan(&next); err != nil {
			return fmt.Errorf("failed to read member count: %w", err)
		}

		return insertMembers(ctx, tx, groupID, next, members)
	})
}

// insertMembers adds members starting at position start. Members already in
// the group only get their display name refreshed. An empty role stores as
// member.
func insertMembers(ctx context.Context, tx *sql.Tx, groupID string, start int, members []models.Member) error {
	position := start
	for _, m := range members {
		if m.Participant.IsZero() {
			return fmt.Errorf("member without participant id in group %s", groupID)
		}

		var exists int
		err := tx.QueryRowContext(ctx,
			"SELECT 1 FROM group_members WHERE group_id = ? AND participant = ?",
			groupID, m.Participant.String(),
		).Scan(&exists)
		switch {
		case err == nil:
			if m.DisplayName == "" {
				continue
			}
			if _, err := tx.ExecContext(ctx,
				"UPDATE group_members SET display_name = ? WHERE group_id = ? AND participant = ?",
				m.DisplayName, groupID, m.Participant.String(),
			); err != nil {
				return fmt.Errorf("failed to update member: %w", err)
			}
			continue
		case !errors.Is(err, sql.ErrNoRows):
			return fmt.Errorf("failed to check member: %w", err)
		}

		role := m.Role
		if role == "" {
			role = models.RoleMember
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO group_members (group_id, participant, display_name, role, position) VALUES (?, ?, ?, ?, ?)",
			groupID, m.Participant.String(), m.DisplayName, string(role), position,
		); err != nil {
			return fmt.Errorf("failed to insert member: %w", err)
		}
		position++
	}
	return nil
}

// listMembers loads members for the given groups keyed by group ID.
func listMembers(ctx context.Context, q querier, groupIDs []string) (map[string][]models.Member, error) {
	out := make(map[string][]models.Member, len(groupIDs))
	if len(groupIDs) == 0 {
		return out, nil
	}

	query := `
		SELECT group_id, participant, display_name, role
		FROM group_members
		WHERE group_id IN (?` + repeatPlaceholder(len(groupIDs)-1) + `)
		ORDER BY group_id, position`

	args := make([]any, len(groupIDs))
	for i, id := range groupIDs {
		args[i] = id
	}

	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to get members: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var groupID, participant, role string
		var m models.Member
		if err := rows.Scan(&groupID, &participant, &m.DisplayName, &role); err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		if m.Participant, err = parseParticipant(participant); err != nil {
			return nil, err
		}
		if m.Role, err = models.ParseMemberRole(role); err != nil {
			return nil, fmt.Errorf("corrupt member role: %w", err)
		}
		out[groupID] = append(out[groupID], m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating members: %w", err)
	}

	return out, nil
}

// repeatPlaceholder returns a string of ", ?" repeated n times.
// Used for building IN clauses with multiple placeholders.
func repeatPlaceholder(n int) string {
	if n <= 0 {
		return ""
	}
	return strings.Repeat(", ?", n)
}
