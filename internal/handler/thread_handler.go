package handler

import (
	"net/http"

	"Campus_Hub/internal/gateway"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

// ThreadHandler 问答帖，复用 MessageHandler 的鉴权和推送
type ThreadHandler struct {
	messages *MessageHandler
	threads  *service.ThreadService
}

type ThreadCreateReq struct {
	Title string `json:"title" binding:"required"`
}

type AcceptReq struct {
	MessageID string `json:"messageId" binding:"required"`
}

func NewThreadHandler(messages *MessageHandler, threads *service.ThreadService) *ThreadHandler {
	return &ThreadHandler{messages: messages, threads: threads}
}

func (h *ThreadHandler) Create(c *gin.Context) {
	res, ok := h.messages.readable(c)
	if !ok {
		return
	}
	var req ThreadCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	thread, err := h.threads.CreateThread(c.Request.Context(), res.Channel, identity(c).UserID, req.Title)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, thread)
}

func (h *ThreadHandler) List(c *gin.Context) {
	res, ok := h.messages.readable(c)
	if !ok {
		return
	}
	page, size := pageQuery(c)
	list, err := h.threads.ListThreads(c.Request.Context(), res.Channel.ID, page, size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ThreadHandler) Get(c *gin.Context) {
	res, ok := h.messages.readable(c)
	if !ok {
		return
	}
	threadID, ok := pathID(c, "threadId")
	if !ok {
		return
	}
	thread, err := h.threads.GetThread(c.Request.Context(), res.Channel.ID, threadID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}

func (h *ThreadHandler) CreateMessage(c *gin.Context) {
	res, ok := h.messages.readable(c)
	if !ok {
		return
	}
	threadID, ok := pathID(c, "threadId")
	if !ok {
		return
	}
	var req MessageCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	id := identity(c)
	msg, err := h.messages.svc.CreateThreadMessage(c.Request.Context(), service.CreateMessageInput{
		ChannelID:   res.Channel.ID,
		ThreadID:    threadID,
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
	h.messages.notify(c.Request.Context(), res.Channel.ID, gateway.EventMessageCreated, msg)
	c.JSON(http.StatusCreated, msg)
}

func (h *ThreadHandler) ListMessages(c *gin.Context) {
	res, ok := h.messages.readable(c)
	if !ok {
		return
	}
	threadID, ok := pathID(c, "threadId")
	if !ok {
		return
	}
	page, size := pageQuery(c)
	list, err := h.messages.svc.ListThreadMessages(c.Request.Context(), res.Channel.ID, threadID, page, size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

// Accept 发帖人或频道管理者采纳答案
func (h *ThreadHandler) Accept(c *gin.Context) {
	res, ok := h.messages.readable(c)
	if !ok {
		return
	}
	threadID, ok := pathID(c, "threadId")
	if !ok {
		return
	}
	var req AcceptReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	messageID, ok := pkg.ParseID(req.MessageID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid messageId"})
		return
	}
	thread, err := h.threads.AcceptAnswer(c.Request.Context(), service.AcceptAnswerInput{
		ChannelID: res.Channel.ID,
		ThreadID:  threadID,
		MessageID: messageID,
		UserID:    identity(c).UserID,
		CanManage: res.CanManage(),
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, thread)
}
