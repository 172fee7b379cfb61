package service

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"

	"github.com/gosimple/slug"
	"gorm.io/gorm"
)

const (
	DefaultCommunityPageSize = 20
	MaxCommunityPageSize     = 100
)

type CommunityView struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Type           string `json:"type"`
	Slug           string `json:"slug"`
	OwnerID        string `json:"ownerId,omitempty"`
	Icon           string `json:"icon,omitempty"`
	DegreeID       string `json:"degreeId,omitempty"`
	DegreeModuleID string `json:"degreeModuleId,omitempty"`
	CreatedAt      string `json:"createdAt"`
	UpdatedAt      string `json:"updatedAt"`
}

type CommunityPage struct {
	Items    []CommunityView `json:"items"`
	Total    int64           `json:"total"`
	Page     int             `json:"page"`
	PageSize int             `json:"pageSize"`
}

type CreateCommunityInput struct {
	Name           string
	Kind           model.CommunityKind
	Icon           string
	DegreeModuleID uint64
}

type UpdateCommunityInput struct {
	Name *string
	Icon *string
}

// ListCommunitiesInput institutional-module 需要 DegreeID 或 DegreeSlug 以及 StartYear
type ListCommunitiesInput struct {
	Kind       string
	Query      string
	DegreeID   uint64
	DegreeSlug string
	StartYear  int
	Page       int
	PageSize   int
}

type CommunityService struct {
	access      *AccessService
	communities *mysql.CommunityRepository
	members     *mysql.MembershipRepository
	degrees     *mysql.DegreeRepository
	users       *mysql.UserRepository

	now func() time.Time
}

func NewCommunityService(db *gorm.DB, access *AccessService) *CommunityService {
	return &CommunityService{
		access:      access,
		communities: &mysql.CommunityRepository{DB: db},
		members:     &mysql.MembershipRepository{DB: db},
		degrees:     &mysql.DegreeRepository{DB: db},
		users:       &mysql.UserRepository{DB: db},
		now:         time.Now,
	}
}

// CreateCommunity 创建者成为 owner；institutional-module 仅超级用户可建，并自带默认频道
func (s *CommunityService) CreateCommunity(ctx context.Context, id pkg.Identity, in CreateCommunityInput) (*CommunityView, error) {
	if id.UserID == 0 {
		return nil, pkg.Unauthenticated("unauthenticated")
	}
	name, slg, err := communityName(in.Name)
	if err != nil {
		return nil, err
	}
	if !in.Kind.Valid() {
		return nil, pkg.Validation("type must be one of institutional-module, society, personal")
	}
	icon, err := iconURL(in.Icon)
	if err != nil {
		return nil, err
	}

	c := &model.Community{
		Name:    name,
		Slug:    slg,
		Kind:    in.Kind,
		OwnerID: &id.UserID,
		Icon:    icon,
	}
	var channels []model.Channel
	switch in.Kind {
	case model.KindInstitutionalModule:
		if !superUserBypass(id) {
			return nil, pkg.Forbidden("only super users can create institutional-module communities")
		}
		if in.DegreeModuleID == 0 {
			return nil, pkg.Validation("degreeModuleId is required for institutional-module communities")
		}
		dm, err := s.degrees.FindDegreeModule(ctx, in.DegreeModuleID)
		if err != nil {
			return nil, notFound(err, "degree module not found")
		}
		c.DegreeID = &dm.DegreeID
		c.DegreeModuleID = &dm.ID
		channels = defaultChannels()
	case model.KindSociety, model.KindPersonal:
	}

	owner := &model.Membership{
		UserID:   id.UserID,
		Roles:    model.Roles{model.RoleOwner},
		Status:   model.StatusActive,
		JoinedAt: s.now(),
	}
	if err := s.communities.Create(ctx, c, owner, channels); err != nil {
		return nil, conflict(err, "a community with this name/slug already exists")
	}
	v := ToCommunityView(c)
	return &v, nil
}

func (s *CommunityService) ListCommunities(ctx context.Context, in ListCommunitiesInput) (*CommunityPage, error) {
	if in.Kind == "" {
		return nil, pkg.Validation("type is required")
	}
	kind := model.CommunityKind(in.Kind)
	if !kind.Valid() {
		return nil, pkg.Validation("type must be one of institutional-module, society, personal")
	}
	page, pageSize := pkg.ClampPage(in.Page, in.PageSize, DefaultCommunityPageSize, MaxCommunityPageSize)

	f := mysql.CommunityFilter{Kind: kind, Query: strings.ToLower(strings.TrimSpace(in.Query))}
	if kind == model.KindInstitutionalModule {
		ids, err := s.moduleScope(ctx, in)
		if err != nil {
			return nil, err
		}
		f.ScopeModules = true
		f.DegreeModuleIDs = ids
	}

	list, total, err := s.communities.List(ctx, f, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	items := make([]CommunityView, 0, len(list))
	for i := range list {
		items = append(items, ToCommunityView(&list[i]))
	}
	return &CommunityPage{Items: items, Total: total, Page: page, PageSize: pageSize}, nil
}

// moduleScope 学生当前学年及之前的模块
func (s *CommunityService) moduleScope(ctx context.Context, in ListCommunitiesInput) ([]uint64, error) {
	var (
		degree *model.Degree
		err    error
	)
	switch {
	case in.DegreeID != 0:
		degree, err = s.degrees.FindByID(ctx, in.DegreeID)
	case in.DegreeSlug != "":
		degree, err = s.degrees.FindBySlug(ctx, in.DegreeSlug)
	default:
		return nil, pkg.Validation("degreeId or degreeSlug is required for institutional-module communities")
	}
	if err != nil {
		return nil, notFound(err, "degree not found")
	}
	if in.StartYear == 0 {
		return nil, pkg.Validation("startYear is required for institutional-module communities")
	}
	current := s.now().Year()
	if in.StartYear > current {
		return nil, pkg.Validation("startYear cannot be in the future")
	}
	studentYear := current - in.StartYear + 1
	return s.degrees.ModuleIDs(ctx, degree.ID, studentYear)
}

func (s *CommunityService) GetCommunity(ctx context.Context, id pkg.Identity, communityID uint64) (*CommunityView, error) {
	com, _, err := s.access.CanViewCommunity(ctx, id, communityID)
	if err != nil {
		return nil, err
	}
	v := ToCommunityView(com)
	return &v, nil
}

// UpdateCommunity 改名时同时重算 slug
func (s *CommunityService) UpdateCommunity(ctx context.Context, id pkg.Identity, communityID uint64, in UpdateCommunityInput) (*CommunityView, error) {
	com, _, err := s.access.CanManageCommunity(ctx, id, communityID)
	if err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if in.Name != nil {
		name, slg, err := communityName(*in.Name)
		if err != nil {
			return nil, err
		}
		fields["name"] = name
		fields["slug"] = slg
	}
	if in.Icon != nil {
		icon, err := iconURL(*in.Icon)
		if err != nil {
			return nil, err
		}
		fields["icon"] = icon
	}
	if len(fields) > 0 {
		if err := s.communities.Update(ctx, com.ID, fields); err != nil {
			return nil, conflict(err, "a community with this name/slug already exists")
		}
	}
	com, err = s.communities.FindByID(ctx, com.ID)
	if err != nil {
		return nil, notFound(err, "community not found")
	}
	v := ToCommunityView(com)
	return &v, nil
}

func (s *CommunityService) DeleteCommunity(ctx context.Context, id pkg.Identity, communityID uint64) error {
	com, _, err := s.access.CanManageCommunity(ctx, id, communityID)
	if err != nil {
		return err
	}
	return s.communities.Delete(ctx, com.ID)
}

func communityName(raw string) (string, string, error) {
	name := strings.TrimSpace(raw)
	if n := utf8.RuneCountInString(name); n < 2 || n > 60 {
		return "", "", pkg.Validation("name must be 2-60 characters")
	}
	slg := slug.Make(name)
	if slg == "" {
		return "", "", pkg.Validation("name must contain letters or digits")
	}
	return name, slg, nil
}

func iconURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", pkg.Validation("icon must be an http(s) url")
	}
	return raw, nil
}

func ToCommunityView(c *model.Community) CommunityView {
	v := CommunityView{
		ID:        pkg.FormatID(c.ID),
		Name:      c.Name,
		Type:      string(c.Kind),
		Slug:      c.Slug,
		Icon:      c.Icon,
		CreatedAt: pkg.FormatTime(c.CreatedAt),
		UpdatedAt: pkg.FormatTime(c.UpdatedAt),
	}
	if c.OwnerID != nil {
		v.OwnerID = pkg.FormatID(*c.OwnerID)
	}
	if c.DegreeID != nil {
		v.DegreeID = pkg.FormatID(*c.DegreeID)
	}
	if c.DegreeModuleID != nil {
		v.DegreeModuleID = pkg.FormatID(*c.DegreeModuleID)
	}
	return v
}

func isRecordNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
