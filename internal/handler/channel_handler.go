package handler

import (
	"net/http"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

type ChannelHandler struct {
	svc *service.ChannelService
}

type ChannelCreateReq struct {
	Name      string   `json:"name" binding:"required"`
	Type      string   `json:"type"`
	Privacy   string   `json:"privacy"`
	Position  *int     `json:"position"`
	MemberIDs []string `json:"memberIds"`
}

type ChannelUpdateReq struct {
	Name     *string `json:"name"`
	Position *int    `json:"position"`
	Privacy  *string `json:"privacy"`
}

type GrantReq struct {
	UserIDs []string `json:"userIds" binding:"required,min=1"`
}

func NewChannelHandler(svc *service.ChannelService) *ChannelHandler {
	return &ChannelHandler{svc: svc}
}

func (h *ChannelHandler) Create(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	var req ChannelCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	in := service.CreateChannelInput{
		Name:     req.Name,
		Kind:     model.ChannelKind(req.Type),
		Privacy:  model.ChannelPrivacy(req.Privacy),
		Position: req.Position,
	}
	// 缺省为公开文字频道
	if in.Kind == "" {
		in.Kind = model.ChannelText
	}
	if in.Privacy == "" {
		in.Privacy = model.PrivacyPublic
	}
	for _, raw := range req.MemberIDs {
		id, ok := pkg.ParseID(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid memberIds"})
			return
		}
		in.MemberIDs = append(in.MemberIDs, id)
	}

	channel, err := h.svc.CreateChannel(c.Request.Context(), identity(c).UserID, communityID, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, channel)
}

func (h *ChannelHandler) List(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	list, err := h.svc.ListVisible(c.Request.Context(), identity(c).UserID, communityID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *ChannelHandler) Update(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	channelID, ok := pathID(c, "channelId")
	if !ok {
		return
	}
	var req ChannelUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	in := service.UpdateChannelInput{Name: req.Name, Position: req.Position}
	if req.Privacy != nil {
		privacy := model.ChannelPrivacy(*req.Privacy)
		in.Privacy = &privacy
	}

	channel, err := h.svc.UpdateChannel(c.Request.Context(), identity(c).UserID, communityID, channelID, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, channel)
}

func (h *ChannelHandler) Delete(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	channelID, ok := pathID(c, "channelId")
	if !ok {
		return
	}
	if err := h.svc.DeleteChannel(c.Request.Context(), identity(c).UserID, communityID, channelID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *ChannelHandler) Grant(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	channelID, ok := pathID(c, "channelId")
	if !ok {
		return
	}
	var req GrantReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	userIDs := make([]uint64, 0, len(req.UserIDs))
	for _, raw := range req.UserIDs {
		id, ok := pkg.ParseID(raw)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid userIds"})
			return
		}
		userIDs = append(userIDs, id)
	}
	if err := h.svc.GrantAccess(c.Request.Context(), identity(c).UserID, communityID, channelID, userIDs); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *ChannelHandler) Revoke(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	channelID, ok := pathID(c, "channelId")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	if err := h.svc.RevokeAccess(c.Request.Context(), identity(c).UserID, communityID, channelID, userID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}
