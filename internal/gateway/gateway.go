package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"slices"
	"strings"

	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/service"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/websocket"
)

const (
	MaxFrameBytes          = 16 << 10
	maxDecodeErrorsPerConn = 3
	accessTokenCookie      = "access_token"
)

// IdentityResolver 握手阶段用 token 换取身份
type IdentityResolver interface {
	Authenticate(ctx context.Context, token string) (pkg.Identity, error)
}

type Options struct {
	// ExcludeSender 为 true 时 message:created 不回发给发送者
	ExcludeSender bool
	// AllowedOrigins 为空时不校验 Origin
	AllowedOrigins []string
	Logger         logrus.FieldLogger
}

type Gateway struct {
	access   *service.AccessService
	messages *service.MessageService
	auth     IdentityResolver
	hub      *Hub
	bus      Broadcaster
	opts     Options
	log      logrus.FieldLogger
}

func New(access *service.AccessService, messages *service.MessageService, auth IdentityResolver, opts Options) *Gateway {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	hub := NewHub()
	return &Gateway{
		access:   access,
		messages: messages,
		auth:     auth,
		hub:      hub,
		bus:      hub,
		opts:     opts,
		log:      log,
	}
}

func (g *Gateway) Hub() *Hub { return g.hub }

// UseBroadcaster 替换跨实例广播，例如 KafkaBridge
func (g *Gateway) UseBroadcaster(b Broadcaster) {
	if b != nil {
		g.bus = b
	}
}

// BroadcastMessage REST 创建或编辑消息后推送给频道房间
func (g *Gateway) BroadcastMessage(ctx context.Context, channelID uint64, event string, msg *service.MessageView) {
	frame := Frame{Type: event, Payload: mustJSON(msg)}
	if err := g.bus.Broadcast(ctx, RoomName(channelID), frame, ""); err != nil {
		g.log.WithError(err).WithField("channel_id", channelID).Warn("gateway: broadcast failed")
	}
}

func (g *Gateway) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.Header().Set("Allow", http.MethodGet)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var id pkg.Identity
	if token := tokenFromRequest(r); token != "" && g.auth != nil {
		resolved, err := g.auth.Authenticate(r.Context(), token)
		if err != nil {
			g.log.WithError(err).WithField("remote", r.RemoteAddr).Debug("gateway: anonymous connection")
		} else {
			id = resolved
		}
	}

	srv := websocket.Server{
		Handshake: g.checkOrigin,
		Handler: func(ws *websocket.Conn) {
			g.serve(ws, id)
		},
	}
	srv.ServeHTTP(w, r)
}

func (g *Gateway) checkOrigin(cfg *websocket.Config, r *http.Request) error {
	origin := r.Header.Get("Origin")
	if origin != "" {
		u, err := url.Parse(origin)
		if err != nil {
			return err
		}
		cfg.Origin = u
	}
	if len(g.opts.AllowedOrigins) == 0 {
		return nil
	}
	if !slices.Contains(g.opts.AllowedOrigins, origin) {
		return errors.New("origin not allowed")
	}
	return nil
}

// tokenFromRequest 优先 Authorization 头，其次 access_token cookie
func tokenFromRequest(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if token, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(token)
		}
	}
	if c, err := r.Cookie(accessTokenCookie); err == nil {
		return strings.TrimSpace(c.Value)
	}
	return ""
}

func (g *Gateway) serve(ws *websocket.Conn, id pkg.Identity) {
	ws.MaxPayloadBytes = MaxFrameBytes
	p := &peer{id: uuid.NewString(), identity: id, ws: ws}
	log := g.log.WithFields(logrus.Fields{"conn": p.id, "user_id": id.UserID})

	pkg.GatewayConnections.Inc()
	log.Debug("gateway: connected")
	defer func() {
		g.hub.leaveAll(p)
		_ = ws.Close()
		pkg.GatewayConnections.Dec()
		log.Debug("gateway: disconnected")
	}()

	// 断开连接不取消已经发起的写入
	ctx := context.WithoutCancel(ws.Request().Context())

	decodeErrors := 0
	for {
		var data []byte
		if err := websocket.Message.Receive(ws, &data); err != nil {
			if errors.Is(err, websocket.ErrFrameTooLarge) {
				decodeErrors++
				pkg.GatewayFrames.WithLabelValues("unknown", "too_large").Inc()
				_ = g.exception(p, "", pkg.Validation("frame too large"))
				if decodeErrors >= maxDecodeErrorsPerConn {
					return
				}
				continue
			}
			if !errors.Is(err, io.EOF) {
				log.WithError(err).Debug("gateway: read failed")
			}
			return
		}

		var frame Frame
		if err := json.Unmarshal(data, &frame); err != nil {
			decodeErrors++
			pkg.GatewayFrames.WithLabelValues("unknown", "malformed").Inc()
			_ = g.exception(p, "", pkg.Validation("invalid frame payload"))
			if decodeErrors >= maxDecodeErrorsPerConn {
				return
			}
			continue
		}
		decodeErrors = 0

		var err error
		switch frame.Type {
		case EventChannelJoin:
			err = g.handleJoin(ctx, p, frame)
		case EventChannelLeave:
			err = g.handleLeave(ctx, p, frame)
		case EventMessageCreate:
			err = g.handleCreate(ctx, p, frame)
		default:
			err = g.exception(p, frame.RequestID, pkg.Validation("unsupported frame type"))
			frame.Type = "unknown"
		}

		outcome := "ok"
		if err != nil {
			outcome = strings.ToLower(pkg.Code(err))
			lg := log.WithError(err).WithField("type", frame.Type)
			if pkg.Code(err) == "INTERNAL" {
				lg.Error("gateway: frame failed")
			} else {
				lg.Debug("gateway: frame rejected")
			}
		}
		pkg.GatewayFrames.WithLabelValues(frame.Type, outcome).Inc()
	}
}

// authorize 身份与读权限校验，失败时不改变任何房间状态
func (g *Gateway) authorize(ctx context.Context, p *peer, communityID, channelID string) (uint64, error) {
	if !p.authenticated() {
		return 0, pkg.Unauthenticated("unauthorized")
	}
	com, ch, err := parseTarget(communityID, channelID)
	if err != nil {
		return 0, err
	}
	res, err := g.access.CanReadChannel(ctx, p.identity.UserID, com, ch)
	if err != nil {
		return 0, err
	}
	return res.Channel.ID, nil
}

func (g *Gateway) handleJoin(ctx context.Context, p *peer, frame Frame) error {
	var target channelTarget
	if err := json.Unmarshal(frame.Payload, &target); err != nil {
		return g.exception(p, frame.RequestID, pkg.Validation("invalid join payload"))
	}
	channelID, err := g.authorize(ctx, p, target.CommunityID, target.ChannelID)
	if err != nil {
		return g.exception(p, frame.RequestID, err)
	}

	room := RoomName(channelID)
	g.hub.join(room, p)
	g.log.WithFields(logrus.Fields{"conn": p.id, "user_id": p.identity.UserID, "room": room}).Debug("gateway: joined")
	_ = p.write(Frame{Type: EventChannelJoined, RequestID: frame.RequestID, Payload: mustJSON(target)})
	return nil
}

func (g *Gateway) handleLeave(ctx context.Context, p *peer, frame Frame) error {
	var target channelTarget
	if err := json.Unmarshal(frame.Payload, &target); err != nil {
		return g.exception(p, frame.RequestID, pkg.Validation("invalid leave payload"))
	}
	channelID, err := g.authorize(ctx, p, target.CommunityID, target.ChannelID)
	if err != nil {
		return g.exception(p, frame.RequestID, err)
	}

	room := RoomName(channelID)
	g.hub.leave(room, p)
	g.log.WithFields(logrus.Fields{"conn": p.id, "user_id": p.identity.UserID, "room": room}).Debug("gateway: left")
	_ = p.write(Frame{Type: EventChannelLeft, RequestID: frame.RequestID, Payload: mustJSON(target)})
	return nil
}

// handleCreate 先落库再广播，失败只回给调用方
func (g *Gateway) handleCreate(ctx context.Context, p *peer, frame Frame) error {
	var in createPayload
	if err := json.Unmarshal(frame.Payload, &in); err != nil {
		return g.nack(p, frame.RequestID, pkg.Validation("invalid message payload"))
	}
	channelID, err := g.authorize(ctx, p, in.CommunityID, in.ChannelID)
	if err != nil {
		return g.nack(p, frame.RequestID, err)
	}
	communityID, _ := pkg.ParseID(in.CommunityID)

	msg, err := g.messages.CreateMessage(ctx, service.CreateMessageInput{
		CommunityID: communityID,
		ChannelID:   channelID,
		AuthorID:    p.identity.UserID,
		SessionName: p.identity.Name,
		AuthorName:  in.AuthorName,
		Content:     in.Content,
		Attachments: in.Attachments,
		Mentions:    in.Mentions,
	})
	if err != nil {
		return g.nack(p, frame.RequestID, err)
	}
	pkg.MessagesCreated.WithLabelValues("ws").Inc()

	exclude := ""
	if g.opts.ExcludeSender {
		exclude = p.id
	}
	created := Frame{Type: EventMessageCreated, Payload: mustJSON(msg)}
	if err := g.bus.Broadcast(ctx, RoomName(channelID), created, exclude); err != nil {
		g.log.WithError(err).WithField("channel_id", channelID).Warn("gateway: broadcast failed")
	}

	if frame.RequestID != "" {
		_ = p.write(Frame{Type: EventMessageAck, RequestID: frame.RequestID, Payload: mustJSON(Ack{Success: true, Message: msg})})
	}
	return nil
}

// nack 带 request_id 时回 ack，否则回 exception
func (g *Gateway) nack(p *peer, requestID string, err error) error {
	if requestID == "" {
		return g.exception(p, "", err)
	}
	_ = p.write(Frame{Type: EventMessageAck, RequestID: requestID, Payload: mustJSON(Ack{Success: false, Error: errorBody(err)})})
	return err
}

// exception 连接级错误，不断开
func (g *Gateway) exception(p *peer, requestID string, err error) error {
	_ = p.write(Frame{Type: EventException, RequestID: requestID, Payload: mustJSON(errorBody(err))})
	return err
}
