package handler

import (
	"net/http"
	"strconv"

	"Campus_Hub/internal/service"

	"github.com/gin-gonic/gin"
)

type DegreeHandler struct {
	svc *service.DegreeService
}

func NewDegreeHandler(svc *service.DegreeService) *DegreeHandler {
	return &DegreeHandler{svc: svc}
}

func (h *DegreeHandler) List(c *gin.Context) {
	list, err := h.svc.ListDegrees(c.Request.Context())
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}

func (h *DegreeHandler) Get(c *gin.Context) {
	degree, err := h.svc.GetDegree(c.Request.Context(), c.Param("slug"))
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, degree)
}

// Modules ?year=N 只返回第 N 学年及之前的模块
func (h *DegreeHandler) Modules(c *gin.Context) {
	year := 0
	if v := c.Query("year"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid year"})
			return
		}
		year = n
	}
	list, err := h.svc.ListModules(c.Request.Context(), c.Param("slug"), year)
	if err != nil {
		fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": list})
}
