package handler

import (
	"errors"
	"net/http"
	"strconv"

	"Campus_Hub/internal/middleware"
	"Campus_Hub/internal/pkg"

	"github.com/gin-gonic/gin"
)

// fail 按错误分类返回状态码，未分类错误交给日志中间件
func fail(c *gin.Context, err error) {
	switch {
	case errors.Is(err, pkg.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"msg": err.Error()})
	case errors.Is(err, pkg.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"msg": err.Error()})
	case errors.Is(err, pkg.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"msg": err.Error()})
	case errors.Is(err, pkg.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"msg": err.Error()})
	case errors.Is(err, pkg.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"msg": err.Error()})
	default:
		_ = c.Error(err)
		c.JSON(http.StatusInternalServerError, gin.H{"msg": "internal error"})
	}
}

func invalidParams(c *gin.Context) {
	c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid params"})
}

// pathID 解析路径里的 id，非法时直接返回 400
func pathID(c *gin.Context, name string) (uint64, bool) {
	id, ok := pkg.ParseID(c.Param(name))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"msg": "invalid " + name})
		return 0, false
	}
	return id, true
}

// pageQuery 非法或缺省时为 0，由 service 取默认值
func pageQuery(c *gin.Context) (int, int) {
	page, _ := strconv.Atoi(c.Query("page"))
	size, _ := strconv.Atoi(c.Query("pageSize"))
	return page, size
}

func identity(c *gin.Context) pkg.Identity {
	return middleware.CurrentIdentity(c)
}
