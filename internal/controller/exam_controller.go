package controller

import (
	"teps_backend/internal/model"
	"teps_backend/internal/service"
	"teps_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type ExamController struct {
	ExamService       *service.ExamService
	ExamConfigService *service.ExamConfigService
}

func NewExamController(examService *service.ExamService, examConfigService *service.ExamConfigService) *ExamController {
	return &ExamController{ExamService: examService, ExamConfigService: examConfigService}
}

type submitTestRequest struct {
	AttemptID string `json:"attemptId" binding:"required"`
}

func canAuthor(user *util.Claims) bool {
	return user.Role == model.Teacher || user.Role == model.Admin
}

// @Summary 试卷列表
// @Description 学生只能看到已发布的试卷
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /tests [get]
func (c *ExamController) ListTests(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	page, limit := pagination(ctx)
	publishedOnly := !canAuthor(user) || ctx.Query("all") != "true"

	items, total, err := c.ExamConfigService.ListExamConfigs(ctx.Request.Context(), publishedOnly, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: items, Total: total, Page: page, Limit: limit})
}

// @Summary 试卷详情
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Success 200 {object} util.Response{data=model.ExamConfig}
// @Failure 404 {object} util.Response
// @Router /tests/{id} [get]
func (c *ExamController) GetTest(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	exam, err := c.ExamConfigService.GetExamConfig(ctx.Request.Context(), id, canAuthor(user))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, exam)
}

// @Summary 创建考试
// @Description 按试卷配置抽题，考试在 24 小时后过期
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Success 201 {object} util.Response{data=model.ExamAttempt}
// @Failure 400 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /tests/{id}/attempts [post]
func (c *ExamController) CreateAttempt(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	attempt, err := c.ExamService.CreateAttempt(ctx.Request.Context(), user.UserID, id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, attempt)
}

// @Summary 交卷
// @Description 完成考试并计算成绩
// @Tags 考试
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "试卷ID"
// @Param body body submitTestRequest true "考试ID"
// @Success 200 {object} util.Response{data=model.ExamResult}
// @Failure 409 {object} util.Response
// @Router /tests/{id}/submit [post]
func (c *ExamController) SubmitTest(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req submitTestRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.ExamService.SubmitTest(ctx.Request.Context(), user.UserID, id, req.AttemptID)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 考试成绩
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "考试ID"
// @Success 200 {object} util.Response{data=model.ExamResult}
// @Failure 404 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /test-results/{id} [get]
func (c *ExamController) GetTestResult(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	result, err := c.ExamService.GetResult(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 我的考试
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param status query string false "状态" Enums(not_started, in_progress, completed, expired)
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /attempts [get]
func (c *ExamController) ListMyAttempts(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	page, limit := pagination(ctx)
	status := model.AttemptStatus(ctx.Query("status"))
	switch status {
	case "", model.AttemptNotStarted, model.AttemptInProgress, model.AttemptCompleted, model.AttemptExpired:
	default:
		util.BadRequest(ctx, "invalid status")
		return
	}

	items, total, err := c.ExamService.ListMyAttempts(ctx.Request.Context(), user.UserID, status, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, util.PageResponse{List: items, Total: total, Page: page, Limit: limit})
}

// @Summary 考试详情
// @Description 包含题目（不含答案）、作答记录以及已完成考试的成绩
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "考试ID"
// @Success 200 {object} util.Response
// @Failure 404 {object} util.Response
// @Router /attempts/{id} [get]
func (c *ExamController) GetAttempt(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	attempt, err := c.ExamService.GetAttempt(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	questions, err := c.ExamService.AttemptQuestions(ctx.Request.Context(), attempt)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	result, err := attempt.DecodeResult()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attemptView{
		ExamAttempt: attempt,
		Questions:   toQuestionViews(questions),
		Result:      result,
	})
}

// @Summary 开始考试
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "考试ID"
// @Success 200 {object} util.Response{data=model.ExamAttempt}
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/start [post]
func (c *ExamController) StartAttempt(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	attempt, err := c.ExamService.StartAttempt(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, attempt)
}

// @Summary 提交答案
// @Tags 考试
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "考试ID"
// @Param body body service.AnswerRequest true "作答"
// @Success 200 {object} util.Response{data=service.AnswerResult}
// @Failure 400 {object} util.Response
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/answers [post]
func (c *ExamController) SubmitAnswer(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req service.AnswerRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	result, err := c.ExamService.SubmitAnswer(ctx.Request.Context(), user.UserID, ctx.Param("id"), req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}

// @Summary 完成考试
// @Tags 考试
// @Produce json
// @Security ApiKeyAuth
// @Param id path string true "考试ID"
// @Success 200 {object} util.Response{data=model.ExamResult}
// @Failure 409 {object} util.Response
// @Router /attempts/{id}/complete [post]
func (c *ExamController) CompleteAttempt(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	result, err := c.ExamService.CompleteExam(ctx.Request.Context(), user.UserID, ctx.Param("id"))
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, result)
}
