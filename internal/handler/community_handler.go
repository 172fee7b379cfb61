package handler

import (
	"net/http"
	"strconv"

	"Campus_Hub/internal/model"
	"Campus_Hub/internal/pkg"
	"Campus_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

type CommunityHandler struct {
	svc     *service.CommunityService
	members *service.MembershipService
}

type CommunityCreateReq struct {
	Name           string `json:"name" binding:"required"`
	Type           string `json:"type" binding:"required"`
	Icon           string `json:"icon"`
	DegreeModuleID string `json:"degreeModuleId"`
}

type CommunityUpdateReq struct {
	Name *string `json:"name"`
	Icon *string `json:"icon"`
}

type MemberAddReq struct {
	UserID string       `json:"userId" binding:"required"`
	Roles  []model.Role `json:"roles"`
}

type MemberUpdateReq struct {
	Roles    *[]model.Role `json:"roles"`
	Status   *string       `json:"status"`
	Nickname *string       `json:"nickname"`
}

func NewCommunityHandler(svc *service.CommunityService, members *service.MembershipService) *CommunityHandler {
	return &CommunityHandler{svc: svc, members: members}
}

func (h *CommunityHandler) Create(c *gin.Context) {
	var req CommunityCreateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	in := service.CreateCommunityInput{
		Name: req.Name,
		Kind: model.CommunityKind(req.Type),
		Icon: req.Icon,
	}
	if req.DegreeModuleID != "" {
		id, ok := pkg.ParseID(req.DegreeModuleID)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid degreeModuleId"})
			return
		}
		in.DegreeModuleID = id
	}

	community, err := h.svc.CreateCommunity(c.Request.Context(), identity(c), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, community)
}

// List 公开目录，institutional-module 需要 degreeId/degreeSlug 和 startYear
func (h *CommunityHandler) List(c *gin.Context) {
	page, size := pageQuery(c)
	in := service.ListCommunitiesInput{
		Kind:       c.Query("type"),
		Query:      c.Query("q"),
		DegreeSlug: c.Query("degreeSlug"),
		Page:       page,
		PageSize:   size,
	}
	if v := c.Query("degreeId"); v != "" {
		id, ok := pkg.ParseID(v)
		if !ok {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid degreeId"})
			return
		}
		in.DegreeID = id
	}
	if v := c.Query("startYear"); v != "" {
		year, err := strconv.Atoi(v)
		if err != nil || year <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid startYear"})
			return
		}
		in.StartYear = year
	}

	list, err := h.svc.ListCommunities(c.Request.Context(), in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CommunityHandler) Get(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	community, err := h.svc.GetCommunity(c.Request.Context(), identity(c), communityID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *CommunityHandler) Update(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	var req CommunityUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	community, err := h.svc.UpdateCommunity(c.Request.Context(), identity(c), communityID, service.UpdateCommunityInput{
		Name: req.Name,
		Icon: req.Icon,
	})
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, community)
}

func (h *CommunityHandler) Delete(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	if err := h.svc.DeleteCommunity(c.Request.Context(), identity(c), communityID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *CommunityHandler) Join(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	member, err := h.members.Join(c.Request.Context(), identity(c).UserID, communityID)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}

func (h *CommunityHandler) Leave(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	if err := h.members.Leave(c.Request.Context(), identity(c).UserID, communityID); err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"msg": "ok"})
}

func (h *CommunityHandler) ListMembers(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	page, size := pageQuery(c)
	list, err := h.members.ListMembers(c.Request.Context(), identity(c), communityID, page, size)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, list)
}

func (h *CommunityHandler) AddMember(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	var req MemberAddReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	userID, ok := pkg.ParseID(req.UserID)
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid userId"})
		return
	}
	member, err := h.members.AddMember(c.Request.Context(), identity(c), communityID, userID, req.Roles)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusCreated, member)
}

func (h *CommunityHandler) UpdateMember(c *gin.Context) {
	communityID, ok := pathID(c, "communityId")
	if !ok {
		return
	}
	userID, ok := pathID(c, "userId")
	if !ok {
		return
	}
	var req MemberUpdateReq
	if err := c.ShouldBindJSON(&req); err != nil {
		invalidParams(c)
		return
	}
	var in service.UpdateMemberInput
	if req.Roles != nil {
		roles := model.Roles(*req.Roles)
		in.Roles = &roles
	}
	if req.Status != nil {
		status := model.MembershipStatus(*req.Status)
		in.Status = &status
	}
	in.Nickname = req.Nickname

	member, err := h.members.UpdateMember(c.Request.Context(), identity(c), communityID, userID, in)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, member)
}
