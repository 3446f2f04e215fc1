package controller

import (
	"teps_backend/internal/service"
	"teps_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamConfigController struct {
	ExamConfigService *service.ExamConfigService
}

func NewExamConfigController(examConfigService *service.ExamConfigService) *ExamConfigController {
	return &ExamConfigController{ExamConfigService: examConfigService}
}

type publishRequest struct {
	Publish *bool `json:"publish" binding:"required"`
}

// @Summary 创建试卷
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param exam body service.ExamConfigRequest true "试卷配置"
// @Success 201 {object} util.Response{data=model.ExamConfig}
// @Failure 400 {object} util.Response
// @Router /teacher/tests [post]
func (c *ExamConfigController) CreateTest(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req service.ExamConfigRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	exam, err := c.ExamConfigService.CreateExamConfig(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, exam)
}

// @Summary 发布/下架试卷
// @Tags 试卷管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Param body body publishRequest true "是否发布"
// @Success 200 {object} util.Response
// @Router /teacher/tests/{id}/publish [patch]
func (c *ExamConfigController) PublishTest(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req publishRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.ExamConfigService.PublishExamConfig(ctx.Request.Context(), id, *req.Publish); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, gin.H{"published": *req.Publish})
}
