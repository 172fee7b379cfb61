package service

import (
	"context"
	"strings"
	"time"
	"unicode/utf8"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"

	"gorm.io/gorm"
)

const (
	DefaultMemberPageSize = 50
	MaxMemberPageSize     = 100
	MaxNicknameRunes      = 64
)

type MemberView struct {
	CommunityID string       `json:"communityId"`
	UserID      string       `json:"userId"`
	Name        string       `json:"name,omitempty"`
	Nickname    string       `json:"nickname,omitempty"`
	Roles       []model.Role `json:"roles"`
	Status      string       `json:"status"`
	InvitedBy   string       `json:"invitedBy,omitempty"`
	JoinedAt    string       `json:"joinedAt"`
}

type MemberPage struct {
	Items    []MemberView `json:"items"`
	Total    int64        `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"pageSize"`
}

type UpdateMemberInput struct {
	Roles    *model.Roles
	Status   *model.MembershipStatus
	Nickname *string
}

type MembershipService struct {
	access      *AccessService
	communities *mysql.CommunityRepository
	members     *mysql.MembershipRepository
	users       *mysql.UserRepository

	now func() time.Time
}

func NewMembershipService(db *gorm.DB, access *AccessService) *MembershipService {
	return &MembershipService{
		access:      access,
		communities: &mysql.CommunityRepository{DB: db},
		members:     &mysql.MembershipRepository{DB: db},
		users:       &mysql.UserRepository{DB: db},
		now:         time.Now,
	}
}

// Join 幂等；left 状态重新激活，banned 拒绝；personal 社区只能被邀请
func (s *MembershipService) Join(ctx context.Context, userID, communityID uint64) (*MemberView, error) {
	if userID == 0 {
		return nil, pkg.Unauthenticated("unauthenticated")
	}
	com, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, notFound(err, "community not found")
	}
	switch com.Kind {
	case model.KindInstitutionalModule, model.KindSociety:
	case model.KindPersonal:
		return nil, pkg.Forbidden("personal communities are invite only")
	default:
		return nil, pkg.Forbidden("cannot join this community")
	}
	return s.activate(ctx, com.ID, userID, nil)
}

// AddMember owner/admin 邀请用户加入
func (s *MembershipService) AddMember(ctx context.Context, id pkg.Identity, communityID, userID uint64, roles model.Roles) (*MemberView, error) {
	com, actor, err := s.access.CanManageCommunity(ctx, id, communityID)
	if err != nil {
		return nil, err
	}
	if userID == 0 {
		return nil, pkg.Validation("userId is required")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		return nil, notFound(err, "user not found")
	}
	if len(roles) == 0 {
		roles = model.Roles{model.RoleMember}
	}
	roles, ok := roles.Normalize()
	if !ok {
		return nil, pkg.Validation("roles must be drawn from owner, admin, moderator, member")
	}
	if roles.HasAny(model.RoleOwner) && !canGrantOwner(id, actor) {
		return nil, pkg.Forbidden("only owners can grant the owner role")
	}
	inviter := id.UserID
	if _, err := s.activate(ctx, com.ID, userID, &inviter); err != nil {
		return nil, err
	}
	return s.UpdateMember(ctx, id, com.ID, userID, UpdateMemberInput{Roles: &roles})
}

func (s *MembershipService) activate(ctx context.Context, communityID, userID uint64, invitedBy *uint64) (*MemberView, error) {
	m, err := s.members.Find(ctx, communityID, userID)
	switch {
	case isRecordNotFound(err):
		m = &model.Membership{
			CommunityID: communityID,
			UserID:      userID,
			Roles:       model.Roles{model.RoleMember},
			Status:      model.StatusActive,
			JoinedAt:    s.now(),
			InvitedBy:   invitedBy,
		}
		if err := s.members.Create(ctx, m); err != nil {
			return nil, conflict(err, "membership already exists")
		}
	case err != nil:
		return nil, err
	case m.Status == model.StatusBanned:
		return nil, pkg.Forbidden("banned from this community")
	case m.Status == model.StatusLeft:
		fields := map[string]any{
			"status":    model.StatusActive,
			"roles":     model.Roles{model.RoleMember},
			"joined_at": s.now(),
		}
		if invitedBy != nil {
			fields["invited_by"] = *invitedBy
		}
		if err := s.members.Update(ctx, m, fields); err != nil {
			return nil, err
		}
		if m, err = s.members.Find(ctx, communityID, userID); err != nil {
			return nil, err
		}
	}
	v := ToMemberView(m, "")
	return &v, nil
}

// Leave 最后一个 owner 不能退出
func (s *MembershipService) Leave(ctx context.Context, userID, communityID uint64) error {
	if userID == 0 {
		return pkg.Unauthenticated("unauthenticated")
	}
	m, err := s.members.Find(ctx, communityID, userID)
	if err != nil {
		return notFound(err, "membership not found")
	}
	if !m.IsActive() {
		return pkg.NotFound("membership not found")
	}
	if err := s.ensureOwnerRemains(ctx, m); err != nil {
		return err
	}
	return s.members.Update(ctx, m, map[string]any{"status": model.StatusLeft})
}

func (s *MembershipService) ListMembers(ctx context.Context, id pkg.Identity, communityID uint64, page, pageSize int) (*MemberPage, error) {
	com, _, err := s.access.CanViewCommunity(ctx, id, communityID)
	if err != nil {
		return nil, err
	}
	page, pageSize = pkg.ClampPage(page, pageSize, DefaultMemberPageSize, MaxMemberPageSize)
	list, total, err := s.members.ListActive(ctx, com.ID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}

	ids := make([]uint64, 0, len(list))
	for _, m := range list {
		ids = append(ids, m.UserID)
	}
	users, err := s.users.FindByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}
	names := make(map[uint64]string, len(users))
	for _, u := range users {
		names[u.ID] = u.Name
	}

	items := make([]MemberView, 0, len(list))
	for i := range list {
		items = append(items, ToMemberView(&list[i], names[list[i].UserID]))
	}
	return &MemberPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// UpdateMember 修改角色、状态或昵称；owner 角色及 owner 的状态只能由 owner 或超级用户修改
func (s *MembershipService) UpdateMember(ctx context.Context, id pkg.Identity, communityID, userID uint64, in UpdateMemberInput) (*MemberView, error) {
	com, actor, err := s.access.CanManageCommunity(ctx, id, communityID)
	if err != nil {
		return nil, err
	}
	m, err := s.members.Find(ctx, com.ID, userID)
	if err != nil {
		return nil, notFound(err, "membership not found")
	}

	fields := map[string]any{}
	losesOwner := false
	if in.Roles != nil {
		roles, ok := in.Roles.Normalize()
		if !ok {
			return nil, pkg.Validation("roles must be drawn from owner, admin, moderator, member")
		}
		if roles.HasAny(model.RoleOwner) != m.Roles.HasAny(model.RoleOwner) && !canGrantOwner(id, actor) {
			return nil, pkg.Forbidden("only owners can grant or revoke the owner role")
		}
		losesOwner = m.Roles.HasAny(model.RoleOwner) && !roles.HasAny(model.RoleOwner)
		fields["roles"] = roles
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, pkg.Validation("status must be one of active, banned, left")
		}
		if *in.Status != m.Status && m.Roles.HasAny(model.RoleOwner) && !canGrantOwner(id, actor) {
			return nil, pkg.Forbidden("only owners can change an owner's status")
		}
		losesOwner = losesOwner || (m.Roles.HasAny(model.RoleOwner) && *in.Status != model.StatusActive)
		fields["status"] = *in.Status
	}
	if in.Nickname != nil {
		nick := strings.TrimSpace(*in.Nickname)
		if utf8.RuneCountInString(nick) > MaxNicknameRunes {
			return nil, pkg.Validation("nickname must be at most %d characters", MaxNicknameRunes)
		}
		fields["nickname"] = nick
	}
	if losesOwner && m.IsActive() {
		if err := s.ensureOwnerRemains(ctx, m); err != nil {
			return nil, err
		}
	}
	if len(fields) > 0 {
		if err := s.members.Update(ctx, m, fields); err != nil {
			return nil, err
		}
	}
	if m, err = s.members.Find(ctx, com.ID, userID); err != nil {
		return nil, err
	}
	v := ToMemberView(m, "")
	return &v, nil
}

func (s *MembershipService) ensureOwnerRemains(ctx context.Context, m *model.Membership) error {
	if !m.Roles.HasAny(model.RoleOwner) {
		return nil
	}
	n, err := s.members.CountActiveOwners(ctx, m.CommunityID)
	if err != nil {
		return err
	}
	if n <= 1 {
		return pkg.Conflict("the last owner cannot leave or be demoted")
	}
	return nil
}

func canGrantOwner(id pkg.Identity, actor *model.Membership) bool {
	return superUserBypass(id) || (actor.IsActive() && actor.Roles.HasAny(model.RoleOwner))
}

func ToMemberView(m *model.Membership, name string) MemberView {
	v := MemberView{
		CommunityID: pkg.FormatID(m.CommunityID),
		UserID:      pkg.FormatID(m.UserID),
		Name:        name,
		Nickname:    m.Nickname,
		Roles:       m.Roles,
		Status:      string(m.Status),
		JoinedAt:    pkg.FormatTime(m.JoinedAt),
	}
	if m.InvitedBy != nil {
		v.InvitedBy = pkg.FormatID(*m.InvitedBy)
	}
	if v.Roles == nil {
		v.Roles = []model.Role{}
	}
	return v
}
