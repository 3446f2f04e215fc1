package controller

import (
	"strconv"

	"teps_backend/internal/util"

	"github.com/gin-gonic/gin"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func pagination(ctx *gin.Context) (page, limit int) {
	page = util.ParseIntDefault(ctx.Query("page"), 1, 1, 1<<20)
	limit = util.ParseIntDefault(ctx.Query("limit"), defaultPageSize, 1, maxPageSize)
	return page, limit
}

// paramID 解析路径中的数字 id，失败时已写回 400
func paramID(ctx *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(ctx.Param(name), 10, 32)
	if err != nil || id == 0 {
		util.BadRequest(ctx, "invalid "+name)
		return 0, false
	}
	return uint(id), true
}

func currentUser(ctx *gin.Context) (*util.Claims, bool) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return nil, false
	}
	return user, true
}
