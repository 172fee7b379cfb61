package service

import (
	"context"
	"testing"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(list *ChannelList) []string {
	out := make([]string, 0, len(list.Items))
	for _, v := range list.Items {
		out = append(out, v.Name)
	}
	return out
}

func TestCreateChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	c := f.community(t, model.KindSociety, "chess")
	f.member(t, c.ID, owner.ID, model.RoleOwner)
	f.member(t, c.ID, a.ID, model.RoleModerator)

	in := CreateChannelInput{Name: "general", Kind: model.ChannelText, Privacy: model.PrivacyPublic}
	_, err := f.channels.CreateChannel(ctx, a.ID, c.ID, in)
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	v, err := f.channels.CreateChannel(ctx, owner.ID, c.ID, in)
	require.NoError(t, err)
	assert.Equal(t, 0, v.Position)

	_, err = f.channels.CreateChannel(ctx, owner.ID, c.ID, in)
	assert.ErrorIs(t, err, pkg.ErrConflict)

	for name, bad := range map[string]CreateChannelInput{
		"empty name": {Name: " ", Kind: model.ChannelText, Privacy: model.PrivacyPublic},
		"long name":  {Name: "abcdefghijklmnopqrstuvwxyz0123456", Kind: model.ChannelText, Privacy: model.PrivacyPublic},
		"bad kind":   {Name: "voice", Kind: "voice", Privacy: model.PrivacyPublic},
		"bad priv":   {Name: "secret", Kind: model.ChannelText, Privacy: "private"},
	} {
		_, err := f.channels.CreateChannel(ctx, owner.ID, c.ID, bad)
		assert.ErrorIs(t, err, pkg.ErrValidation, name)
	}

	hidden, err := f.channels.CreateChannel(ctx, owner.ID, c.ID, CreateChannelInput{
		Name:      "staff",
		Kind:      model.ChannelText,
		Privacy:   model.PrivacyHidden,
		MemberIDs: []uint64{b.ID},
	})
	require.NoError(t, err)
	assert.Equal(t, 1, hidden.Position)

	hid, _ := pkg.ParseID(hidden.ID)
	_, err = f.access.CanReadChannel(ctx, b.ID, c.ID, hid)
	assert.NoError(t, err)
	_, err = f.access.CanReadChannel(ctx, a.ID, c.ID, hid)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestListVisibleChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	a := f.user(t, "alice")
	guest := f.user(t, "guest")
	stranger := f.user(t, "stranger")
	c := f.community(t, model.KindSociety, "chess")
	f.member(t, c.ID, owner.ID, model.RoleOwner)
	f.member(t, c.ID, a.ID, model.RoleMember)
	f.channel(t, c.ID, "general", model.PrivacyPublic, model.ChannelText)
	f.channel(t, c.ID, "staff", model.PrivacyHidden, model.ChannelText)
	guests := f.channel(t, c.ID, "guests", model.PrivacyHidden, model.ChannelText)
	f.grant(t, guests.ID, a.ID)
	f.grant(t, guests.ID, guest.ID)

	list, err := f.channels.ListVisible(ctx, owner.ID, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"general", "staff", "guests"}, names(list))

	list, err = f.channels.ListVisible(ctx, a.ID, c.ID)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"general", "guests"}, names(list))

	list, err = f.channels.ListVisible(ctx, guest.ID, c.ID)
	require.NoError(t, err)
	assert.Equal(t, []string{"guests"}, names(list))

	list, err = f.channels.ListVisible(ctx, stranger.ID, c.ID)
	require.NoError(t, err)
	assert.Empty(t, list.Items)

	m := f.member(t, c.ID, stranger.ID, model.RoleMember)
	require.NoError(t, f.db.Model(m).Update("status", model.StatusBanned).Error)
	_, err = f.channels.ListVisible(ctx, stranger.ID, c.ID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	_, err = f.channels.ListVisible(ctx, a.ID, 4242)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestGrantAndRevokeAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	a := f.user(t, "alice")
	b := f.user(t, "bob")
	c := f.community(t, model.KindSociety, "chess")
	f.member(t, c.ID, owner.ID, model.RoleOwner)
	general := f.channel(t, c.ID, "general", model.PrivacyPublic, model.ChannelText)
	staff := f.channel(t, c.ID, "staff", model.PrivacyHidden, model.ChannelText)

	one := []uint64{a.ID}
	assert.ErrorIs(t, f.channels.GrantAccess(ctx, owner.ID, c.ID, general.ID, one), pkg.ErrValidation)
	assert.ErrorIs(t, f.channels.GrantAccess(ctx, a.ID, c.ID, staff.ID, one), pkg.ErrForbidden)
	assert.ErrorIs(t, f.channels.GrantAccess(ctx, owner.ID, c.ID, staff.ID, []uint64{a.ID, 9999}), pkg.ErrNotFound)
	assert.ErrorIs(t, f.channels.GrantAccess(ctx, owner.ID, c.ID, staff.ID, nil), pkg.ErrValidation)
	assert.ErrorIs(t, f.channels.GrantAccess(ctx, owner.ID, c.ID, staff.ID, []uint64{a.ID, a.ID}), pkg.ErrValidation)
	_, err := f.access.CanReadChannel(ctx, a.ID, c.ID, staff.ID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)

	require.NoError(t, f.channels.GrantAccess(ctx, owner.ID, c.ID, staff.ID, []uint64{a.ID, b.ID}))
	require.NoError(t, f.channels.GrantAccess(ctx, owner.ID, c.ID, staff.ID, one))
	_, err = f.access.CanReadChannel(ctx, b.ID, c.ID, staff.ID)
	require.NoError(t, err)
	_, err = f.access.CanReadChannel(ctx, a.ID, c.ID, staff.ID)
	require.NoError(t, err)

	require.NoError(t, f.channels.RevokeAccess(ctx, owner.ID, c.ID, staff.ID, a.ID))
	require.NoError(t, f.channels.RevokeAccess(ctx, owner.ID, c.ID, staff.ID, a.ID))
	_, err = f.access.CanReadChannel(ctx, a.ID, c.ID, staff.ID)
	assert.ErrorIs(t, err, pkg.ErrForbidden)
}

func TestUpdateAndDeleteChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	owner := f.user(t, "owner")
	c := f.community(t, model.KindSociety, "chess")
	f.member(t, c.ID, owner.ID, model.RoleAdmin)
	general := f.channel(t, c.ID, "general", model.PrivacyPublic, model.ChannelText)
	f.channel(t, c.ID, "random", model.PrivacyPublic, model.ChannelText)

	taken := "random"
	_, err := f.channels.UpdateChannel(ctx, owner.ID, c.ID, general.ID, UpdateChannelInput{Name: &taken})
	assert.ErrorIs(t, err, pkg.ErrConflict)

	name, pos, priv := "lobby", 5, model.PrivacyHidden
	v, err := f.channels.UpdateChannel(ctx, owner.ID, c.ID, general.ID, UpdateChannelInput{Name: &name, Position: &pos, Privacy: &priv})
	require.NoError(t, err)
	assert.Equal(t, "lobby", v.Name)
	assert.Equal(t, 5, v.Position)
	assert.Equal(t, "hidden", v.Privacy)

	_, err = f.messages.CreateMessage(ctx, CreateMessageInput{CommunityID: c.ID, ChannelID: general.ID, AuthorID: owner.ID, SessionName: "owner", Content: "hi"})
	require.NoError(t, err)
	require.NoError(t, f.channels.DeleteChannel(ctx, owner.ID, c.ID, general.ID))

	var n int64
	require.NoError(t, f.db.Model(&model.Message{}).Count(&n).Error)
	assert.Zero(t, n)
	_, err = f.access.CanReadChannel(ctx, owner.ID, c.ID, general.ID)
	assert.ErrorIs(t, err, pkg.ErrNotFound)
}

func TestEnsureDefaultChannels(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	c := f.community(t, model.KindInstitutionalModule, "module-a")
	f.channel(t, c.ID, "general", model.PrivacyPublic, model.ChannelText)

	n, err := f.channels.EnsureDefaultChannels(ctx, c.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(len(DefaultChannels)-1), n)

	n, err = f.channels.EnsureDefaultChannels(ctx, c.ID)
	require.NoError(t, err)
	assert.Zero(t, n)

	list, err := f.channels.ListVisible(ctx, f.user(t, "alice").ID, c.ID)
	require.NoError(t, err)
	assert.Len(t, list.Items, len(DefaultChannels))
	assert.Zero(t, DefaultChannels[0].ID)
}
