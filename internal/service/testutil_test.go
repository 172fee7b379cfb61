package service

import (
	"context"
	"fmt"
	"testing"
	"time"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/repository/mysql"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fixture struct {
	db          *gorm.DB
	access      *AccessService
	messages    *MessageService
	channels    *ChannelService
	communities *CommunityService
	members     *MembershipService
	threads     *ThreadService
	degrees     *DegreeService
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	p := mysql.NewProvider(mysql.Options{
		Dialector: sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())),
		MaxOpen:   1,
		LogLevel:  logger.Silent,
	})
	db, err := p.Open(context.Background())
	require.NoError(t, err)
	require.NoError(t, mysql.Migrate(db))
	t.Cleanup(func() { _ = p.Close() })
	return db
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := newTestDB(t)
	access := NewAccessService(db)
	return &fixture{
		db:          db,
		access:      access,
		messages:    NewMessageService(db),
		channels:    NewChannelService(db, access),
		communities: NewCommunityService(db, access),
		members:     NewMembershipService(db, access),
		threads:     NewThreadService(db),
		degrees:     NewDegreeService(db),
	}
}

func (f *fixture) user(t *testing.T, name string) *model.User {
	t.Helper()
	u := &model.User{Name: name, Email: name + "@city.ac.uk", Password: "x"}
	require.NoError(t, f.db.Create(u).Error)
	return u
}

func (f *fixture) community(t *testing.T, kind model.CommunityKind, name string) *model.Community {
	t.Helper()
	c := &model.Community{Name: name, Slug: name, Kind: kind}
	require.NoError(t, f.db.Create(c).Error)
	return c
}

func (f *fixture) member(t *testing.T, communityID, userID uint64, roles ...model.Role) *model.Membership {
	t.Helper()
	m := &model.Membership{
		CommunityID: communityID,
		UserID:      userID,
		Roles:       roles,
		Status:      model.StatusActive,
		JoinedAt:    time.Now(),
	}
	require.NoError(t, f.db.Create(m).Error)
	return m
}

func (f *fixture) channel(t *testing.T, communityID uint64, name string, privacy model.ChannelPrivacy, kind model.ChannelKind) *model.Channel {
	t.Helper()
	ch := &model.Channel{CommunityID: communityID, Name: name, Kind: kind, Privacy: privacy}
	require.NoError(t, f.db.Create(ch).Error)
	return ch
}

func (f *fixture) grant(t *testing.T, channelID, userID uint64) {
	t.Helper()
	require.NoError(t, f.db.Create(&model.ChannelAccess{ChannelID: channelID, UserID: userID}).Error)
}
