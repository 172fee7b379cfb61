package service

import (
	"context"
	"errors"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"

	"gorm.io/gorm"
)

// ChannelAccess 鉴权通过后返回已查到的频道、社区和成员关系，调用方直接复用
type ChannelAccess struct {
	Channel    *model.Channel
	Community  *model.Community
	Membership *model.Membership // 可能为 nil
}

// CanManage 调用方在读权限通过后判断是否也是频道管理者
func (a *ChannelAccess) CanManage() bool {
	return isChannelManager(a.Membership)
}

// AccessService 频道与社区的鉴权，只读
type AccessService struct {
	communities *mysql.CommunityRepository
	members     *mysql.MembershipRepository
	channels    *mysql.ChannelRepository
	grants      *mysql.ChannelAccessRepository
}

func NewAccessService(db *gorm.DB) *AccessService {
	return &AccessService{
		communities: &mysql.CommunityRepository{DB: db},
		members:     &mysql.MembershipRepository{DB: db},
		channels:    &mysql.ChannelRepository{DB: db},
		grants:      &mysql.ChannelAccessRepository{DB: db},
	}
}

// isChannelManager 频道级管理只看成员角色
func isChannelManager(m *model.Membership) bool {
	return m.IsActive() && m.Roles.HasAny(model.RoleOwner, model.RoleAdmin)
}

// superUserBypass 只用于社区级管理，频道判断不调用
func superUserBypass(id pkg.Identity) bool {
	return id.IsSuper
}

// CanReadChannel communityID 为 0 时跳过归属校验
func (s *AccessService) CanReadChannel(ctx context.Context, userID, communityID, channelID uint64) (*ChannelAccess, error) {
	if userID == 0 {
		return nil, pkg.Unauthenticated("unauthenticated")
	}
	res, err := s.resolve(ctx, userID, communityID, channelID)
	if err != nil {
		return nil, err
	}

	switch res.Community.Kind {
	case model.KindInstitutionalModule:
		return res, nil
	case model.KindSociety, model.KindPersonal:
	default:
		return nil, pkg.Forbidden("no access to this channel")
	}

	switch res.Channel.Privacy {
	case model.PrivacyPublic:
		if !res.Membership.IsActive() {
			return nil, pkg.Forbidden("not a member")
		}
		return res, nil
	case model.PrivacyHidden:
		if isChannelManager(res.Membership) {
			return res, nil
		}
		if res.Membership != nil && res.Membership.Status == model.StatusBanned {
			return nil, pkg.Forbidden("no access to this channel")
		}
		ok, err := s.grants.Exists(ctx, res.Channel.ID, userID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, pkg.Forbidden("no access to this channel")
		}
		return res, nil
	default:
		return nil, pkg.Forbidden("no access to this channel")
	}
}

// CanManageChannel 修改、删除频道以及授权管理
func (s *AccessService) CanManageChannel(ctx context.Context, userID, communityID, channelID uint64) (*ChannelAccess, error) {
	if userID == 0 {
		return nil, pkg.Unauthenticated("unauthenticated")
	}
	res, err := s.resolve(ctx, userID, communityID, channelID)
	if err != nil {
		return nil, err
	}
	if !isChannelManager(res.Membership) {
		return nil, pkg.Forbidden("only owners and admins can manage channels")
	}
	return res, nil
}

// CanManageCommunityChannels 在社区里创建频道
func (s *AccessService) CanManageCommunityChannels(ctx context.Context, userID, communityID uint64) (*model.Community, *model.Membership, error) {
	if userID == 0 {
		return nil, nil, pkg.Unauthenticated("unauthenticated")
	}
	com, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, nil, notFound(err, "community not found")
	}
	m, err := s.membership(ctx, communityID, userID)
	if err != nil {
		return nil, nil, err
	}
	if !isChannelManager(m) {
		return nil, nil, pkg.Forbidden("only owners and admins can manage channels")
	}
	return com, m, nil
}

// CanManageCommunity 修改、删除社区及成员角色；超级用户可绕过
func (s *AccessService) CanManageCommunity(ctx context.Context, id pkg.Identity, communityID uint64) (*model.Community, *model.Membership, error) {
	if id.UserID == 0 {
		return nil, nil, pkg.Unauthenticated("unauthenticated")
	}
	com, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, nil, notFound(err, "community not found")
	}
	m, err := s.membership(ctx, communityID, id.UserID)
	if err != nil {
		return nil, nil, err
	}
	if superUserBypass(id) {
		return com, m, nil
	}
	if !m.IsActive() || !m.Roles.HasAny(model.RoleOwner, model.RoleAdmin) {
		return nil, nil, pkg.Forbidden("not allowed to manage this community")
	}
	return com, m, nil
}

// CanViewCommunity active 成员或超级用户；institutional-module 社区对所有登录用户开放
func (s *AccessService) CanViewCommunity(ctx context.Context, id pkg.Identity, communityID uint64) (*model.Community, *model.Membership, error) {
	if id.UserID == 0 {
		return nil, nil, pkg.Unauthenticated("unauthenticated")
	}
	com, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, nil, notFound(err, "community not found")
	}
	m, err := s.membership(ctx, communityID, id.UserID)
	if err != nil {
		return nil, nil, err
	}
	if superUserBypass(id) || com.Kind == model.KindInstitutionalModule || m.IsActive() {
		return com, m, nil
	}
	return nil, nil, pkg.Forbidden("not allowed to access this community")
}

func (s *AccessService) resolve(ctx context.Context, userID, communityID, channelID uint64) (*ChannelAccess, error) {
	ch, err := s.channels.FindByID(ctx, channelID)
	if err != nil {
		return nil, notFound(err, "channel not found")
	}
	if communityID != 0 && ch.CommunityID != communityID {
		return nil, pkg.NotFound("channel not found")
	}
	com, err := s.communities.FindByID(ctx, ch.CommunityID)
	if err != nil {
		return nil, notFound(err, "community not found")
	}
	m, err := s.membership(ctx, com.ID, userID)
	if err != nil {
		return nil, err
	}
	return &ChannelAccess{Channel: ch, Community: com, Membership: m}, nil
}

// membership 不存在时返回 nil, nil
func (s *AccessService) membership(ctx context.Context, communityID, userID uint64) (*model.Membership, error) {
	m, err := s.members.Find(ctx, communityID, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return m, nil
}
