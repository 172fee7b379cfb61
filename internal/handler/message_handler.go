package handler

import (
	"context"
	"net/http"

	"Campus_Hub/internal/gateway"
	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

// Notifier REST 写入后推送给 websocket 房间，由 gateway.Gateway 实现
type Notifier interface {
	BroadcastMessage(ctx context.Context, channelID uint64, event string, msg *service.MessageView)
}

type MessageHandler struct {
	access   *service.AccessService
	svc      *service.MessageService
	notifier Notifier
}

type MessageCreateReq struct {
	Content     string             `json:"content"`
	AuthorName  string             `json:"authorName"`
	Attachments []model.Attachment `json:"attachments"`
	Mentions    []model.Mention    `json:"mentions"`
}

type MessageEditReq struct {
	Content string `json:"content"`
}

func NewMessageHandler(access *service.AccessService, svc *service.MessageService, notifier Notifier) *MessageHandler {
	return &MessageHandler{access: access, svc: svc, notifier: notifier}
}

// readable 解析路径并做频道读权限校验
func (h *MessageHandler) readable(c *gin.Context) (*service.ChannelAccess, bool) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return nil, false
	}
	channelID, ok := pathID(c, "channelId")
	if !ok {
		return nil, false
	}
	res, err := h.access.CanReadChannel(c.Request.Context(), identity(c).UserID, communityID, channelID)
	if err != nil {
		fail(c, err)
		return nil, false
	}
	return res, true
}

func (h *MessageHandler) notify(ctx context.Context, channelID uint64, event string, msg *service.MessageView) {
	if h.notifier != nil {
		h.notifier.BroadcastMessage(ctx, channelID, event, msg)
	}
}

func (h *MessageHandler) Create(c *gin.Context) {
	res, ok := h.readable(c)
	if !ok {
		return
	}
	var req MessageCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	id := identity(c)
	msg, err := h.svc.CreateMessage(c.Request.Context(), service.CreateMessageInput{
		CommunityID: res.Community.ID,
		ChannelID:   res.Channel.ID,
		AuthorID:    id.UserID,
		SessionName: id.Name,
		AuthorName:  req.AuthorName,
		Content:     req.Content,
		Attachments: req.Attachments,
		Mentions:    req.Mentions,
	})
	if err != nil {
		fail(c, err)
		return
	}
	pkg.MessagesCreated.WithLabelValues("rest").Inc()
	h.notify(c.Request.Context(), res.Channel.ID, gateway.EventMessageCreated, msg)
	c.JSON(http.StatusCreated, msg)
}

func (h *MessageHandler) List(c *gin.Context) {
	res, ok := h.readable(c)
	if !ok {
		return
	}
	page, size := pageQuery(c)
	list, err := h.svc.ListMessages(c.Request.Context(), res.Community.ID, res.Channel.ID, page, size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Edit 只有作者本人可以编辑
func (h *MessageHandler) Edit(c *gin.Context) {
	res, ok := h.readable(c)
	if !ok {
		return
	}
	messageID, ok := pathID(c, "messageId")
	if !ok {
		return
	}
	var req MessageEditReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	msg, err := h.svc.EditMessage(c.Request.Context(), service.EditMessageInput{
		ChannelID: res.Channel.ID,
		MessageID: messageID,
		AuthorID:  identity(c).UserID,
		Content:   req.Content,
	})
	if err != nil {
		fail(c, err)
		return
	}
	h.notify(c.Request.Context(), res.Channel.ID, gateway.EventMessageUpdated, msg)
	c.JSON(http.StatusOK, msg)
}
