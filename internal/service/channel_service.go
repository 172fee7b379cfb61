package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"

	"gorm.io/gorm"
)

const MaxChannelNameRunes = 32

// DefaultChannels institutional-module 社区自带的频道
var DefaultChannels = []model.Channel{
	{Name: "announcements", Kind: model.ChannelText, Privacy: model.PrivacyPublic, Position: 0},
	{Name: "general", Kind: model.ChannelText, Privacy: model.PrivacyPublic, Position: 1},
	{Name: "resources", Kind: model.ChannelText, Privacy: model.PrivacyPublic, Position: 2},
	{Name: "q-and-a", Kind: model.ChannelQA, Privacy: model.PrivacyPublic, Position: 3},
}

// defaultChannels 返回副本，避免共享切片被回写 id
func defaultChannels() []model.Channel {
	out := make([]model.Channel, len(DefaultChannels))
	copy(out, DefaultChannels)
	return out
}

type ChannelView struct {
	ID          string `json:"id"`
	CommunityID string `json:"communityId"`
	Name        string `json:"name"`
	Type        string `json:"type"`
	Position    int    `json:"position"`
	Privacy     string `json:"privacy"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

type ChannelList struct {
	Items []ChannelView `json:"items"`
	Total int           `json:"total"`
}

type CreateChannelInput struct {
	Name      string
	Kind      model.ChannelKind
	Privacy   model.ChannelPrivacy
	Position  *int
	MemberIDs []uint64
}

type UpdateChannelInput struct {
	Name     *string
	Position *int
	Privacy  *model.ChannelPrivacy
}

type ChannelService struct {
	access      *AccessService
	communities *mysql.CommunityRepository
	channels    *mysql.ChannelRepository
	grants      *mysql.ChannelAccessRepository
	users       *mysql.UserRepository
}

func NewChannelService(db *gorm.DB, access *AccessService) *ChannelService {
	return &ChannelService{
		access:      access,
		communities: &mysql.CommunityRepository{DB: db},
		channels:    &mysql.ChannelRepository{DB: db},
		grants:      &mysql.ChannelAccessRepository{DB: db},
		users:       &mysql.UserRepository{DB: db},
	}
}

// CreateChannel 需要 owner/admin；hidden 频道可带初始授权成员
func (s *ChannelService) CreateChannel(ctx context.Context, actorID, communityID uint64, in CreateChannelInput) (*ChannelView, error) {
	com, _, err := s.access.CanManageCommunityChannels(ctx, actorID, communityID)
	if err != nil {
		return nil, err
	}
	name, err := channelName(in.Name)
	if err != nil {
		return nil, err
	}
	if !in.Kind.Valid() {
		return nil, pkg.Validation("type must be one of text, qa")
	}
	if !in.Privacy.Valid() {
		return nil, pkg.Validation("privacy must be one of public, hidden")
	}

	position := 0
	if in.Position != nil {
		if *in.Position < 0 {
			return nil, pkg.Validation("position must not be negative")
		}
		position = *in.Position
	} else {
		existing, err := s.channels.ListByCommunity(ctx, com.ID)
		if err != nil {
			return nil, err
		}
		position = len(existing)
	}

	ch := &model.Channel{
		CommunityID: com.ID,
		Name:        name,
		Kind:        in.Kind,
		Privacy:     in.Privacy,
		Position:    position,
	}
	var grants []model.ChannelAccess
	if in.Privacy == model.PrivacyHidden {
		for _, uid := range in.MemberIDs {
			if uid == 0 {
				return nil, pkg.Validation("memberIds must be valid user ids")
			}
			grants = append(grants, model.ChannelAccess{UserID: uid, GrantedBy: actorID})
		}
	}
	if err := s.channels.Create(ctx, ch, grants); err != nil {
		return nil, conflict(err, "a channel with this name already exists")
	}
	v := ToChannelView(ch)
	return &v, nil
}

// ListVisible 管理者和 institutional-module 社区看到全部频道，成员看到 public 和已授权频道，非成员只看到已授权频道
func (s *ChannelService) ListVisible(ctx context.Context, userID, communityID uint64) (*ChannelList, error) {
	if userID == 0 {
		return nil, pkg.Unauthenticated("unauthenticated")
	}
	com, err := s.communities.FindByID(ctx, communityID)
	if err != nil {
		return nil, notFound(err, "community not found")
	}
	m, err := s.access.membership(ctx, com.ID, userID)
	if err != nil {
		return nil, err
	}
	if m != nil && m.Status == model.StatusBanned {
		return nil, pkg.Forbidden("not allowed to access this community")
	}

	var list []model.Channel
	if com.Kind == model.KindInstitutionalModule || isChannelManager(m) {
		list, err = s.channels.ListByCommunity(ctx, com.ID)
	} else {
		list, err = s.channels.ListVisible(ctx, com.ID, userID)
	}
	if err != nil {
		return nil, err
	}

	grantedOnly := com.Kind != model.KindInstitutionalModule && !m.IsActive()
	items := make([]ChannelView, 0, len(list))
	for i := range list {
		if grantedOnly && list[i].Privacy != model.PrivacyHidden {
			continue
		}
		items = append(items, ToChannelView(&list[i]))
	}
	return &ChannelList{Items: items, Total: len(items)}, nil
}

func (s *ChannelService) UpdateChannel(ctx context.Context, actorID, communityID, channelID uint64, in UpdateChannelInput) (*ChannelView, error) {
	res, err := s.access.CanManageChannel(ctx, actorID, communityID, channelID)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if in.Name != nil {
		name, err := channelName(*in.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
	}
	if in.Position != nil {
		if *in.Position < 0 {
			return nil, pkg.Validation("position must not be negative")
		}
		fields["position"] = *in.Position
	}
	if in.Privacy != nil {
		if !in.Privacy.Valid() {
			return nil, pkg.Validation("privacy must be one of public, hidden")
		}
		fields["privacy"] = *in.Privacy
	}
	if len(fields) > 0 {
		if err := s.channels.Update(ctx, res.Channel.ID, fields); err != nil {
			return nil, conflict(err, "a channel with this name already exists")
		}
	}
	ch, err := s.channels.FindByID(ctx, res.Channel.ID)
	if err != nil {
		return nil, notFound(err, "channel not found")
	}
	v := ToChannelView(ch)
	return &v, nil
}

func (s *ChannelService) DeleteChannel(ctx context.Context, actorID, communityID, channelID uint64) error {
	res, err := s.access.CanManageChannel(ctx, actorID, communityID, channelID)
	if err != nil {
		return err
	}
	return s.channels.Delete(ctx, res.Channel.ID)
}

// GrantAccess 批量授权，幂等，只对 hidden 频道有效；userIDs 非空且不重复
func (s *ChannelService) GrantAccess(ctx context.Context, actorID, communityID, channelID uint64, userIDs []uint64) error {
	res, err := s.access.CanManageChannel(ctx, actorID, communityID, channelID)
	if err != nil {
		return err
	}
	if res.Channel.Privacy != model.PrivacyHidden {
		return pkg.Validation("access grants only apply to hidden channels")
	}
	if len(userIDs) == 0 {
		return pkg.Validation("userIds must not be empty")
	}
	seen := make(map[uint64]struct{}, len(userIDs))
	for _, uid := range userIDs {
		if uid == 0 {
			return pkg.Validation("userIds must be valid user ids")
		}
		if _, dup := seen[uid]; dup {
			return pkg.Validation("userIds must be unique")
		}
		seen[uid] = struct{}{}
	}
	users, err := s.users.FindByIDs(ctx, userIDs)
	if err != nil {
		return err
	}
	if len(users) != len(userIDs) {
		return pkg.NotFound("user not found")
	}

	grants := make([]model.ChannelAccess, 0, len(userIDs))
	for _, uid := range userIDs {
		grants = append(grants, model.ChannelAccess{ChannelID: res.Channel.ID, UserID: uid, GrantedBy: actorID})
	}
	return s.grants.GrantMany(ctx, grants)
}

// RevokeAccess 授权不存在时同样成功
func (s *ChannelService) RevokeAccess(ctx context.Context, actorID, communityID, channelID, userID uint64) error {
	res, err := s.access.CanManageChannel(ctx, actorID, communityID, channelID)
	if err != nil {
		return err
	}
	_, err = s.grants.Revoke(ctx, res.Channel.ID, userID)
	return err
}

// EnsureDefaultChannels 补齐默认频道，已存在的同名频道保持不变
func (s *ChannelService) EnsureDefaultChannels(ctx context.Context, communityID uint64) (int64, error) {
	return s.channels.EnsureDefaults(ctx, communityID, defaultChannels())
}

func channelName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" || utf8.RuneCountInString(name) > MaxChannelNameRunes {
		return "", pkg.Validation("name must be 1-%d characters", MaxChannelNameRunes)
	}
	return name, nil
}

func ToChannelView(c *model.Channel) ChannelView {
	return ChannelView{
		ID:          pkg.FormatID(c.ID),
		CommunityID: pkg.FormatID(c.CommunityID),
		Name:        c.Name,
		Type:        string(c.Kind),
		Position:    c.Position,
		Privacy:     string(c.Privacy),
		CreatedAt:   pkg.FormatTime(c.CreatedAt),
		UpdatedAt:   pkg.FormatTime(c.UpdatedAt),
	}
}
