package service

import (
	"context"
	"testing"
	"time"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateCommunityOwnerMembership(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	id := pkg.Identity{UserID: a.ID, Name: a.Name}

	v, err := f.communities.CreateCommunity(ctx, id, CreateCommunityInput{Name: " Chess Club ", Kind: model.KindSociety})
	require.NoError(t, err)
	assert.Equal(t, "Chess Club", v.Name)
	assert.Equal(t, "chess-club", v.Slug)
	assert.Equal(t, "society", v.Type)
	assert.Equal(t, pkg.FormatID(a.ID), v.OwnerID)

	cid, _ := pkg.ParseID(v.ID)
	m, err := f.members.members.Find(ctx, cid, a.ID)
	require.NoError(t, err)
	assert.Equal(t, model.Roles{model.RoleOwner}, m.Roles)
	assert.Equal(t, model.StatusActive, m.Status)

	got, err := f.communities.GetCommunity(ctx, id, cid)
	require.NoError(t, err)
	assert.Equal(t, v.ID, got.ID)
}

func TestCreateCommunitySlugConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := pkg.Identity{UserID: f.user(t, "alice").ID}

	_, err := f.communities.CreateCommunity(ctx, id, CreateCommunityInput{Name: "Chess Club", Kind: model.KindSociety})
	require.NoError(t, err)
	_, err = f.communities.CreateCommunity(ctx, id, CreateCommunityInput{Name: "chess   club!", Kind: model.KindPersonal})
	assert.ErrorIs(t, err, pkg.ErrConflict)

	var n int64
	require.NoError(t, f.db.Model(&model.Community{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
	require.NoError(t, f.db.Model(&model.Membership{}).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestCreateCommunityValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	id := pkg.Identity{UserID: f.user(t, "alice").ID}

	for name, in := range map[string]CreateCommunityInput{
		"short name":   {Name: "a", Kind: model.KindSociety},
		"symbols only": {Name: "!!!", Kind: model.KindSociety},
		"bad kind":     {Name: "Chess", Kind: "unimodules"},
		"bad icon":     {Name: "Chess", Kind: model.KindSociety, Icon: "ftp://x/icon.png"},
	} {
		_, err := f.communities.CreateCommunity(ctx, id, in)
		assert.ErrorIs(t, err, pkg.ErrValidation, name)
	}

	_, err := f.communities.CreateCommunity(ctx, pkg.Identity{}, CreateCommunityInput{Name: "Chess", Kind: model.KindSociety})
	assert.ErrorIs(t, err, pkg.ErrUnauthenticated)
}

func seedDegree(t *testing.T, f *fixture) (*model.Degree, []model.DegreeModule) {
	t.Helper()
	d := &model.Degree{Name: "Computer Science", Slug: "computer-science", Type: "undergraduate", DurationYears: 3}
	require.NoError(t, f.db.Create(d).Error)
	var dms []model.DegreeModule
	for i, year := range []int{1, 2, 3} {
		cm := &model.CourseModule{Title: "Module " + string(rune('A'+i)), Slug: "module-" + string(rune('a'+i)), Kind: model.ModuleCore}
		require.NoError(t, f.db.Create(cm).Error)
		dm := model.DegreeModule{DegreeID: d.ID, ModuleID: cm.ID, Year: year, Kind: model.ModuleCore}
		require.NoError(t, f.db.Create(&dm).Error)
		dms = append(dms, dm)
	}
	return d, dms
}

func TestCreateInstitutionalModuleCommunity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	root := f.user(t, "root")
	_, dms := seedDegree(t, f)

	in := CreateCommunityInput{Name: "Module A", Kind: model.KindInstitutionalModule, DegreeModuleID: dms[0].ID}
	_, err := f.communities.CreateCommunity(ctx, pkg.Identity{UserID: root.ID}, in)
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	super := pkg.Identity{UserID: root.ID, IsSuper: true}
	_, err = f.communities.CreateCommunity(ctx, super, CreateCommunityInput{Name: "Module A", Kind: model.KindInstitutionalModule})
	assert.ErrorIs(t, err, pkg.ErrValidation)

	v, err := f.communities.CreateCommunity(ctx, super, in)
	require.NoError(t, err)
	assert.Equal(t, pkg.FormatID(dms[0].ID), v.DegreeModuleID)
	assert.Equal(t, pkg.FormatID(dms[0].DegreeID), v.DegreeID)

	cid, _ := pkg.ParseID(v.ID)
	list, err := f.channels.ListVisible(ctx, f.user(t, "student").ID, cid)
	require.NoError(t, err)
	require.Len(t, list.Items, len(DefaultChannels))
	assert.Equal(t, "announcements", list.Items[0].Name)
	assert.Equal(t, "qa", list.Items[3].Type)

	in.Name = "Module A again"
	_, err = f.communities.CreateCommunity(ctx, super, in)
	assert.ErrorIs(t, err, pkg.ErrConflict)
}

func TestListCommunities(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.communities.now = func() time.Time { return time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC) }
	d, dms := seedDegree(t, f)
	for i, dm := range dms {
		c := &model.Community{Name: "Module " + string(rune('A'+i)), Slug: "module-" + string(rune('a'+i)), Kind: model.KindInstitutionalModule, DegreeID: &d.ID, DegreeModuleID: &dm.ID}
		require.NoError(t, f.db.Create(c).Error)
	}
	f.community(t, model.KindSociety, "chess")
	f.community(t, model.KindSociety, "rowing")

	_, err := f.communities.ListCommunities(ctx, ListCommunitiesInput{})
	assert.ErrorIs(t, err, pkg.ErrValidation)

	p, err := f.communities.ListCommunities(ctx, ListCommunitiesInput{Kind: "society"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Total)
	assert.Equal(t, DefaultCommunityPageSize, p.PageSize)

	p, err = f.communities.ListCommunities(ctx, ListCommunitiesInput{Kind: "society", Query: "ROW"})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "rowing", p.Items[0].Name)

	_, err = f.communities.ListCommunities(ctx, ListCommunitiesInput{Kind: "institutional-module", StartYear: 2024})
	assert.ErrorIs(t, err, pkg.ErrValidation)
	_, err = f.communities.ListCommunities(ctx, ListCommunitiesInput{Kind: "institutional-module", DegreeSlug: "computer-science"})
	assert.ErrorIs(t, err, pkg.ErrValidation)
	_, err = f.communities.ListCommunities(ctx, ListCommunitiesInput{Kind: "institutional-module", DegreeSlug: "computer-science", StartYear: 2026})
	assert.ErrorIs(t, err, pkg.ErrValidation)
	_, err = f.communities.ListCommunities(ctx, ListCommunitiesInput{Kind: "institutional-module", DegreeSlug: "history", StartYear: 2024})
	assert.ErrorIs(t, err, pkg.ErrNotFound)

	// 2024 入学，2025 年是第二学年
	p, err = f.communities.ListCommunities(ctx, ListCommunitiesInput{Kind: "institutional-module", DegreeSlug: "computer-science", StartYear: 2024})
	require.NoError(t, err)
	assert.Equal(t, int64(2), p.Total)

	p, err = f.communities.ListCommunities(ctx, ListCommunitiesInput{Kind: "institutional-module", DegreeID: d.ID, StartYear: 2025})
	require.NoError(t, err)
	require.Len(t, p.Items, 1)
	assert.Equal(t, "Module A", p.Items[0].Name)
}

func TestUpdateAndDeleteCommunity(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	root := f.user(t, "root")
	owner := pkg.Identity{UserID: a.ID}

	v, err := f.communities.CreateCommunity(ctx, owner, CreateCommunityInput{Name: "Chess", Kind: model.KindSociety})
	require.NoError(t, err)
	cid, _ := pkg.ParseID(v.ID)
	f.member(t, cid, b.ID, model.RoleMember)

	name := "Chess Society"
	_, err = f.communities.UpdateCommunity(ctx, pkg.Identity{UserID: b.ID}, cid, UpdateCommunityInput{Name: &name})
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	got, err := f.communities.UpdateCommunity(ctx, owner, cid, UpdateCommunityInput{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "chess-society", got.Slug)

	icon := "https://cdn.example.com/chess.png"
	got, err = f.communities.UpdateCommunity(ctx, pkg.Identity{UserID: root.ID, IsSuper: true}, cid, UpdateCommunityInput{Icon: &icon})
	require.NoError(t, err)
	assert.Equal(t, icon, got.Icon)

	assert.ErrorIs(t, f.communities.DeleteCommunity(ctx, pkg.Identity{UserID: b.ID}, cid), pkg.ErrForbidden)
	require.NoError(t, f.communities.DeleteCommunity(ctx, owner, cid))

	_, err = f.communities.GetCommunity(ctx, owner, cid)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
	var n int64
	require.NoError(t, f.db.Model(&model.Membership{}).Count(&n).Error)
	assert.Zero(t, n)
}
