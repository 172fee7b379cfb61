package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/repository/mysql"
	"Campus_Hub/internal/service"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/net/websocket"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type fakeResolver map[string]pkg.Identity

func (f fakeResolver) Authenticate(_ context.Context, token string) (pkg.Identity, error) {
	id, ok := f[token]
	if !ok {
		return pkg.Identity{}, errors.New("unknown token")
	}
	return id, nil
}

type testEnv struct {
	db      *gorm.DB
	gw      *Gateway
	srv     *httptest.Server
	users   map[string]*model.User
	com     *model.Community
	general *model.Channel
	mods    *model.Channel
}

// newTestEnv 社区 chess：alice 为 owner，bob 为 member；#general 公开，#mods 隐藏
func newTestEnv(t *testing.T, opts Options) *testEnv {
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

	env := &testEnv{db: db, users: map[string]*model.User{}}
	resolver := fakeResolver{}
	for _, name := range []string{"alice", "bob", "carol"} {
		u := &model.User{Name: name, Email: name + "@city.ac.uk", Password: "x"}
		require.NoError(t, db.Create(u).Error)
		env.users[name] = u
		resolver["tok-"+name] = pkg.Identity{UserID: u.ID, Name: u.Name}
	}

	env.com = &model.Community{Name: "chess", Slug: "chess", Kind: model.KindPersonal}
	require.NoError(t, db.Create(env.com).Error)
	for name, role := range map[string]model.Role{"alice": model.RoleOwner, "bob": model.RoleMember} {
		require.NoError(t, db.Create(&model.Membership{
			CommunityID: env.com.ID,
			UserID:      env.users[name].ID,
			Roles:       model.Roles{role},
			Status:      model.StatusActive,
			JoinedAt:    time.Now(),
		}).Error)
	}
	env.general = &model.Channel{CommunityID: env.com.ID, Name: "general", Kind: model.ChannelText, Privacy: model.PrivacyPublic}
	env.mods = &model.Channel{CommunityID: env.com.ID, Name: "mods", Kind: model.ChannelText, Privacy: model.PrivacyHidden, Position: 1}
	require.NoError(t, db.Create(env.general).Error)
	require.NoError(t, db.Create(env.mods).Error)

	env.gw = New(service.NewAccessService(db), service.NewMessageService(db), resolver, opts)
	env.srv = httptest.NewServer(env.gw)
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) dial(t *testing.T, token string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/"
	cfg, err := websocket.NewConfig(wsURL, e.srv.URL)
	require.NoError(t, err)
	if token != "" {
		cfg.Header = http.Header{}
		cfg.Header.Set("Authorization", "Bearer "+token)
	}
	conn, err := websocket.DialConfig(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func send(t *testing.T, conn *websocket.Conn, typ, requestID string, payload any) {
	t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(t, err)
	require.NoError(t, websocket.JSON.Send(conn, Frame{Type: typ, RequestID: requestID, Payload: b}))
}

func recv(t *testing.T, conn *websocket.Conn) Frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f Frame
	require.NoError(t, websocket.JSON.Receive(conn, &f))
	return f
}

func (e *testEnv) target(ch *model.Channel) channelTarget {
	return channelTarget{CommunityID: pkg.FormatID(e.com.ID), ChannelID: pkg.FormatID(ch.ID)}
}

func (e *testEnv) join(t *testing.T, conn *websocket.Conn, ch *model.Channel) {
	t.Helper()
	send(t, conn, EventChannelJoin, "join", e.target(ch))
	f := recv(t, conn)
	require.Equal(t, EventChannelJoined, f.Type, string(f.Payload))
	assert.Equal(t, "join", f.RequestID)
}

func decodeMessage(t *testing.T, f Frame) service.MessageView {
	t.Helper()
	var v service.MessageView
	require.NoError(t, json.Unmarshal(f.Payload, &v))
	return v
}

func TestBroadcastToRoom(t *testing.T) {
	env := newTestEnv(t, Options{})
	c1 := env.dial(t, "tok-alice")
	c2 := env.dial(t, "tok-bob")
	env.join(t, c1, env.general)
	env.join(t, c2, env.general)

	send(t, c1, EventMessageCreate, "m1", createPayload{
		CommunityID: pkg.FormatID(env.com.ID),
		ChannelID:   pkg.FormatID(env.general.ID),
		Content:     "hello",
		AuthorName:  "spoofed",
	})

	created := recv(t, c1)
	require.Equal(t, EventMessageCreated, created.Type)
	ack := recv(t, c1)
	require.Equal(t, EventMessageAck, ack.Type)
	assert.Equal(t, "m1", ack.RequestID)
	var a Ack
	require.NoError(t, json.Unmarshal(ack.Payload, &a))
	require.True(t, a.Success)
	require.NotNil(t, a.Message)

	other := recv(t, c2)
	require.Equal(t, EventMessageCreated, other.Type)

	m1, m2 := decodeMessage(t, created), decodeMessage(t, other)
	assert.Equal(t, m1.ID, m2.ID)
	assert.Equal(t, a.Message.ID, m1.ID)
	assert.Equal(t, "hello", m2.Content)
	assert.Equal(t, "alice", m2.AuthorName)
	assert.Equal(t, pkg.FormatID(env.general.ID), m2.ChannelID)

	var n int64
	require.NoError(t, env.db.Model(&model.Message{}).Where("channel_id = ?", env.general.ID).Count(&n).Error)
	assert.Equal(t, int64(1), n)
}

func TestHiddenChannelJoinAfterGrant(t *testing.T) {
	env := newTestEnv(t, Options{})
	owner := env.dial(t, "tok-alice")
	bob := env.dial(t, "tok-bob")
	env.join(t, owner, env.mods)

	send(t, bob, EventChannelJoin, "j1", env.target(env.mods))
	f := recv(t, bob)
	require.Equal(t, EventException, f.Type)
	assert.Equal(t, "j1", f.RequestID)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(f.Payload, &body))
	assert.Equal(t, "FORBIDDEN", body.Code)
	assert.Len(t, env.gw.Hub().subscribers(RoomName(env.mods.ID)), 1)

	require.NoError(t, env.db.Create(&model.ChannelAccess{ChannelID: env.mods.ID, UserID: env.users["bob"].ID, GrantedBy: env.users["alice"].ID}).Error)
	env.join(t, bob, env.mods)

	send(t, owner, EventMessageCreate, "", createPayload{
		CommunityID: pkg.FormatID(env.com.ID),
		ChannelID:   pkg.FormatID(env.mods.ID),
		Content:     "mods only",
	})
	got := recv(t, bob)
	require.Equal(t, EventMessageCreated, got.Type)
	assert.Equal(t, "mods only", decodeMessage(t, got).Content)
}

func TestJoinFailures(t *testing.T) {
	env := newTestEnv(t, Options{})

	anon := env.dial(t, "")
	for i := 0; i < 2; i++ {
		send(t, anon, EventChannelJoin, "", env.target(env.general))
		f := recv(t, anon)
		require.Equal(t, EventException, f.Type)
		var body ErrorBody
		require.NoError(t, json.Unmarshal(f.Payload, &body))
		assert.Equal(t, "UNAUTHENTICATED", body.Code)
	}

	carol := env.dial(t, "tok-carol")
	cases := map[string]struct {
		target channelTarget
		code   string
	}{
		"not a member":    {env.target(env.general), "FORBIDDEN"},
		"bad channel id":  {channelTarget{CommunityID: pkg.FormatID(env.com.ID), ChannelID: "abc"}, "VALIDATION"},
		"missing channel": {channelTarget{CommunityID: pkg.FormatID(env.com.ID), ChannelID: "9999"}, "NOT_FOUND"},
		"wrong community": {channelTarget{CommunityID: "9999", ChannelID: pkg.FormatID(env.general.ID)}, "NOT_FOUND"},
	}
	for name, tc := range cases {
		send(t, carol, EventChannelJoin, name, tc.target)
		f := recv(t, carol)
		require.Equal(t, EventException, f.Type, name)
		var body ErrorBody
		require.NoError(t, json.Unmarshal(f.Payload, &body))
		assert.Equal(t, tc.code, body.Code, name)
	}
	assert.Zero(t, env.gw.Hub().Rooms())
}

func TestCreateFailureAcksOnlyCaller(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice := env.dial(t, "tok-alice")
	bob := env.dial(t, "tok-bob")
	env.join(t, alice, env.general)
	env.join(t, bob, env.general)

	send(t, bob, EventMessageCreate, "m1", createPayload{
		CommunityID: pkg.FormatID(env.com.ID),
		ChannelID:   pkg.FormatID(env.general.ID),
		Content:     "   ",
	})
	f := recv(t, bob)
	require.Equal(t, EventMessageAck, f.Type)
	var a Ack
	require.NoError(t, json.Unmarshal(f.Payload, &a))
	assert.False(t, a.Success)
	require.NotNil(t, a.Error)
	assert.Equal(t, "VALIDATION", a.Error.Code)

	// alice 只会收到之后那条合法消息
	send(t, bob, EventMessageCreate, "m2", createPayload{
		CommunityID: pkg.FormatID(env.com.ID),
		ChannelID:   pkg.FormatID(env.general.ID),
		Content:     "ok",
	})
	got := recv(t, alice)
	require.Equal(t, EventMessageCreated, got.Type)
	assert.Equal(t, "ok", decodeMessage(t, got).Content)
}

func TestLeaveStopsDelivery(t *testing.T) {
	env := newTestEnv(t, Options{})
	alice := env.dial(t, "tok-alice")
	bob := env.dial(t, "tok-bob")
	env.join(t, alice, env.general)
	env.join(t, bob, env.general)

	send(t, bob, EventChannelLeave, "l1", env.target(env.general))
	f := recv(t, bob)
	require.Equal(t, EventChannelLeft, f.Type)

	send(t, alice, EventMessageCreate, "m1", createPayload{
		CommunityID: pkg.FormatID(env.com.ID),
		ChannelID:   pkg.FormatID(env.general.ID),
		Content:     "anyone?",
	})
	require.Equal(t, EventMessageCreated, recv(t, alice).Type)
	require.Equal(t, EventMessageAck, recv(t, alice).Type)

	require.NoError(t, bob.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	var stray Frame
	assert.Error(t, websocket.JSON.Receive(bob, &stray))
}

func TestExcludeSender(t *testing.T) {
	env := newTestEnv(t, Options{ExcludeSender: true})
	alice := env.dial(t, "tok-alice")
	bob := env.dial(t, "tok-bob")
	env.join(t, alice, env.general)
	env.join(t, bob, env.general)

	send(t, alice, EventMessageCreate, "m1", createPayload{
		CommunityID: pkg.FormatID(env.com.ID),
		ChannelID:   pkg.FormatID(env.general.ID),
		Content:     "hi",
	})
	assert.Equal(t, EventMessageAck, recv(t, alice).Type)
	assert.Equal(t, EventMessageCreated, recv(t, bob).Type)
}

func TestMalformedFramesCloseConnection(t *testing.T) {
	env := newTestEnv(t, Options{})
	conn := env.dial(t, "tok-alice")

	for i := 0; i < maxDecodeErrorsPerConn; i++ {
		require.NoError(t, websocket.Message.Send(conn, "not json"))
		assert.Equal(t, EventException, recv(t, conn).Type)
	}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	var f Frame
	assert.Error(t, websocket.JSON.Receive(conn, &f))
}

func TestOversizedFrameRejected(t *testing.T) {
	env := newTestEnv(t, Options{})
	conn := env.dial(t, "tok-alice")

	require.NoError(t, websocket.Message.Send(conn, strings.Repeat("x", MaxFrameBytes+1)))
	f := recv(t, conn)
	require.Equal(t, EventException, f.Type)

	env.join(t, conn, env.general)
}

func TestRESTBroadcast(t *testing.T) {
	env := newTestEnv(t, Options{})
	bob := env.dial(t, "tok-bob")
	env.join(t, bob, env.general)

	msg := &service.MessageView{ID: "42", Content: "edited"}
	env.gw.BroadcastMessage(context.Background(), env.general.ID, EventMessageUpdated, msg)
	f := recv(t, bob)
	assert.Equal(t, EventMessageUpdated, f.Type)
	assert.Equal(t, "42", decodeMessage(t, f).ID)
}

type fakePublisher struct {
	mu   sync.Mutex
	keys []string
	sent [][]byte
}

func (p *fakePublisher) Send(_ context.Context, key string, value []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.keys = append(p.keys, key)
	p.sent = append(p.sent, value)
	return nil
}

type fakeFetcher chan []byte

func (f fakeFetcher) Fetch(ctx context.Context) ([]byte, []byte, error) {
	select {
	case <-ctx.Done():
		return nil, nil, ctx.Err()
	case v := <-f:
		return nil, v, nil
	}
}

func TestKafkaBridge(t *testing.T) {
	env := newTestEnv(t, Options{})
	pub := &fakePublisher{}
	feed := make(fakeFetcher, 4)
	bridge := NewKafkaBridge("node-a", env.gw.Hub(), pub, feed, nil)
	require.Equal(t, "node-a", bridge.Instance())
	env.gw.UseBroadcaster(bridge)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- bridge.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	alice := env.dial(t, "tok-alice")
	bob := env.dial(t, "tok-bob")
	env.join(t, alice, env.general)
	env.join(t, bob, env.general)

	send(t, alice, EventMessageCreate, "m1", createPayload{
		CommunityID: pkg.FormatID(env.com.ID),
		ChannelID:   pkg.FormatID(env.general.ID),
		Content:     "across instances",
	})
	require.Equal(t, EventMessageCreated, recv(t, bob).Type)

	pub.mu.Lock()
	require.Len(t, pub.sent, 1)
	assert.Equal(t, RoomName(env.general.ID), pub.keys[0])
	own := pub.sent[0]
	pub.mu.Unlock()
	var published envelope
	require.NoError(t, json.Unmarshal(own, &published))
	assert.Equal(t, "node-a", published.Instance)

	// 自己发布的帧不会重复投递
	feed <- own
	remote, err := json.Marshal(envelope{
		Instance: "other",
		Room:     RoomName(env.general.ID),
		Frame:    Frame{Type: EventMessageCreated, Payload: mustJSON(service.MessageView{ID: "7", Content: "from elsewhere"})},
	})
	require.NoError(t, err)
	feed <- []byte("garbage")
	feed <- remote

	got := recv(t, bob)
	require.Equal(t, EventMessageCreated, got.Type)
	assert.Equal(t, "from elsewhere", decodeMessage(t, got).Content)
}
