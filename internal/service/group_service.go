package service

import (
	"context"
	"fmt"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/splitcore/internal/ledger"
	"github.com/mmynk/splitcore/internal/middleware"
	"github.com/mmynk/splitcore/internal/models"
	"github.com/mmynk/splitcore/internal/money"
	"github.com/mmynk/splitcore/internal/storage"
	"github.com/mmynk/splitcore/pkg/api"
	"github.com/mmynk/splitcore/pkg/api/apiconnect"
)

var _ apiconnect.GroupServiceHandler = (*GroupService)(nil)

// GroupService implements the Connect GroupService
type GroupService struct {
	store  storage.Store
	ledger *ledger.Ledger
}

// NewGroupService creates a new GroupService with the given storage backend.
func NewGroupService(store storage.Store, l *ledger.Ledger) *GroupService {
	return &GroupService{store: store, ledger: l}
}

// CreateGroup creates a new group. The caller is always its first member and
// an admin.
func (s *GroupService) CreateGroup(ctx context.Context, req *connect.Request[api.CreateGroupRequest]) (*connect.Response[api.CreateGroupResponse], error) {
	slog.Info("CreateGroup request received",
		"name", req.Msg.Name,
		"currency", req.Msg.Currency,
		"members_count", len(req.Msg.Members),
	)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("CreateGroup", err)
	}
	p, err := caller(ctx)
	if err != nil {
		return nil, fail("CreateGroup", err)
	}
	currency, err := money.ParseCurrency(req.Msg.Currency)
	if err != nil {
		return nil, fail("CreateGroup", err)
	}
	members, err := toMembers(req.Msg.Members)
	if err != nil {
		return nil, fail("CreateGroup", err)
	}
	if err := requirePersisted(members); err != nil {
		return nil, fail("CreateGroup", err)
	}

	name := middleware.GetName(ctx)
	group := &models.Group{
		Name:     req.Msg.Name,
		Currency: currency,
		Members:  append([]models.Member{{Participant: p, DisplayName: name, Role: models.RoleAdmin}}, members...),
	}

	// Save to storage (generates ID and CreatedAt)
	if err := s.store.CreateGroup(ctx, group); err != nil {
		return nil, fail("CreateGroup", err)
	}

	slog.Info("Group created", "group_id", group.ID, "creator", p.String())

	// Duplicate members collapse in storage; reload for the canonical list.
	stored, err := s.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, fail("CreateGroup", err, "group_id", group.ID)
	}

	return connect.NewResponse(&api.CreateGroupResponse{Group: fromGroup(stored)}), nil
}

// GetGroup retrieves a group the caller belongs to.
func (s *GroupService) GetGroup(ctx context.Context, req *connect.Request[api.GetGroupRequest]) (*connect.Response[api.GetGroupResponse], error) {
	slog.Info("GetGroup request received", "group_id", req.Msg.GroupID)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("GetGroup", err)
	}
	group, _, err := memberGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, fail("GetGroup", err, "group_id", req.Msg.GroupID)
	}

	slog.Info("GetGroup successful", "group_id", group.ID, "name", group.Name)

	return connect.NewResponse(&api.GetGroupResponse{Group: fromGroup(group)}), nil
}

// ListGroups lists the groups the caller belongs to.
func (s *GroupService) ListGroups(ctx context.Context, req *connect.Request[api.ListGroupsRequest]) (*connect.Response[api.ListGroupsResponse], error) {
	p, err := caller(ctx)
	if err != nil {
		return nil, fail("ListGroups", err)
	}
	slog.Info("ListGroups request received", "participant", p.String())

	groups, err := s.store.ListGroupsByMember(ctx, p)
	if err != nil {
		return nil, fail("ListGroups", err)
	}

	out := make([]api.Group, len(groups))
	for i := range groups {
		out[i] = fromGroup(groups[i])
	}

	slog.Info("ListGroups successful", "count", len(out))

	return connect.NewResponse(&api.ListGroupsResponse{Groups: out}), nil
}

// AddMembers adds members to a group the caller administers. Existing members
// keep their position and role; a non-empty display name replaces the stored one.
func (s *GroupService) AddMembers(ctx context.Context, req *connect.Request[api.AddMembersRequest]) (*connect.Response[api.AddMembersResponse], error) {
	slog.Info("AddMembers request received",
		"group_id", req.Msg.GroupID,
		"members_count", len(req.Msg.Members),
	)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("AddMembers", err)
	}
	group, err := adminGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, fail("AddMembers", err, "group_id", req.Msg.GroupID)
	}
	members, err := toMembers(req.Msg.Members)
	if err != nil {
		return nil, fail("AddMembers", err)
	}
	if err := requirePersisted(members); err != nil {
		return nil, fail("AddMembers", err)
	}

	if err := s.store.AddGroupMembers(ctx, group.ID, members); err != nil {
		return nil, fail("AddMembers", err, "group_id", group.ID)
	}
	updated, err := s.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, fail("AddMembers", err, "group_id", group.ID)
	}

	slog.Info("Members added", "group_id", group.ID, "members_count", len(updated.Members))

	return connect.NewResponse(&api.AddMembersResponse{Group: fromGroup(updated)}), nil
}

// UpdateGroup renames a group. Only admins may do this. The currency never
// changes.
func (s *GroupService) UpdateGroup(ctx context.Context, req *connect.Request[api.UpdateGroupRequest]) (*connect.Response[api.UpdateGroupResponse], error) {
	slog.Info("UpdateGroup request received",
		"group_id", req.Msg.GroupID,
		"name", req.Msg.Name,
	)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("UpdateGroup", err)
	}
	group, err := adminGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, fail("UpdateGroup", err, "group_id", req.Msg.GroupID)
	}

	if err := s.store.RenameGroup(ctx, group.ID, req.Msg.Name); err != nil {
		return nil, fail("UpdateGroup", err, "group_id", group.ID)
	}
	group.Name = req.Msg.Name

	slog.Info("Group updated", "group_id", group.ID)

	return connect.NewResponse(&api.UpdateGroupResponse{Group: fromGroup(group)}), nil
}

// DeleteGroup removes a group with its expenses and settlements. Only admins
// may do this.
func (s *GroupService) DeleteGroup(ctx context.Context, req *connect.Request[api.DeleteGroupRequest]) (*connect.Response[api.DeleteGroupResponse], error) {
	slog.Info("DeleteGroup request received", "group_id", req.Msg.GroupID)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("DeleteGroup", err)
	}
	group, err := adminGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, fail("DeleteGroup", err, "group_id", req.Msg.GroupID)
	}

	if err := s.ledger.DeleteGroup(ctx, group.ID); err != nil {
		return nil, fail("DeleteGroup", err, "group_id", group.ID)
	}

	return connect.NewResponse(&api.DeleteGroupResponse{}), nil
}

// RemoveMember takes a member out of a group. Admins may remove anyone and
// members may remove themselves. A member whose net balance is not zero stays
// until they settle up, and the last admin cannot leave.
func (s *GroupService) RemoveMember(ctx context.Context, req *connect.Request[api.RemoveMemberRequest]) (*connect.Response[api.RemoveMemberResponse], error) {
	slog.Info("RemoveMember request received",
		"group_id", req.Msg.GroupID,
		"participant", req.Msg.ParticipantID,
	)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("RemoveMember", err)
	}
	target, err := models.ParseParticipantID(req.Msg.ParticipantID)
	if err != nil {
		return nil, fail("RemoveMember", err)
	}
	group, p, err := memberGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, fail("RemoveMember", err, "group_id", req.Msg.GroupID)
	}
	if p != target && !group.IsAdmin(p) {
		return nil, fail("RemoveMember", fmt.Errorf("%w: removing %s", errNotAdmin, target), "group_id", group.ID)
	}
	if !group.HasMember(target) {
		return nil, fail("RemoveMember", fmt.Errorf("%w: member %s", storage.ErrNotFound, target), "group_id", group.ID)
	}
	if group.IsAdmin(target) && group.AdminCount() == 1 {
		return nil, fail("RemoveMember", fmt.Errorf("%w: %s", errLastAdmin, target), "group_id", group.ID)
	}

	if err := s.ledger.RemoveMember(ctx, group.ID, target); err != nil {
		return nil, fail("RemoveMember", err, "group_id", group.ID, "participant", target.String())
	}
	updated, err := s.store.GetGroup(ctx, group.ID)
	if err != nil {
		return nil, fail("RemoveMember", err, "group_id", group.ID)
	}

	return connect.NewResponse(&api.RemoveMemberResponse{Group: fromGroup(updated)}), nil
}

// GetBalances returns every member's paid, owed and net amounts with paid
// settlements applied.
func (s *GroupService) GetBalances(ctx context.Context, req *connect.Request[api.GetBalancesRequest]) (*connect.Response[api.GetBalancesResponse], error) {
	slog.Info("GetBalances request received", "group_id", req.Msg.GroupID)

	if err := api.Validate(req.Msg); err != nil {
		return nil, fail("GetBalances", err)
	}
	group, _, err := memberGroup(ctx, s.store, req.Msg.GroupID)
	if err != nil {
		return nil, fail("GetBalances", err, "group_id", req.Msg.GroupID)
	}

	balances, err := s.ledger.Balances(ctx, group.ID)
	if err != nil {
		return nil, fail("GetBalances", err, "group_id", group.ID)
	}

	slog.Info("GetBalances successful", "group_id", group.ID, "balances_count", len(balances))

	return connect.NewResponse(&api.GetBalancesResponse{Balances: fromBalances(balances, group)}), nil
}

func requirePersisted(members []models.Member) error {
	for _, m := range members {
		if !m.Participant.Settleable() {
			return fmt.Errorf("%w: %s cannot be a group member", ledger.ErrNotSettleable, m.Participant)
		}
	}
	return nil
}
