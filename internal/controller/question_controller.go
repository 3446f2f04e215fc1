package controller

import (
	"strconv"

	"teps_backend/internal/model"
	"teps_backend/internal/repository"
	"teps_backend/internal/service"
	"teps_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type QuestionController struct {
	QuestionService *service.QuestionService
}

func NewQuestionController(questionService *service.QuestionService) *QuestionController {
	return &QuestionController{QuestionService: questionService}
}

// @Summary 创建题目
// @Description 新题目为待审核状态
// @Tags 题库管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param question body service.QuestionRequest true "题目"
// @Success 201 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /teacher/questions [post]
func (c *QuestionController) CreateQuestion(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.QuestionService.CreateQuestion(ctx.Request.Context(), user.UserID, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Created(ctx, toAuthoring(q))
}

// @Summary 更新题目
// @Tags 题库管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param question body service.QuestionRequest true "题目"
// @Success 200 {object} util.Response
// @Failure 403 {object} util.Response
// @Router /teacher/questions/{id} [put]
func (c *QuestionController) UpdateQuestion(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.QuestionRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	q, err := c.QuestionService.UpdateQuestion(ctx.Request.Context(), user, id, req)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, toAuthoring(q))
}

// @Summary 题目详情
// @Tags 题库管理
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Success 200 {object} util.Response
// @Router /teacher/questions/{id} [get]
func (c *QuestionController) GetQuestion(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	q, err := c.QuestionService.GetQuestion(ctx.Request.Context(), id)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, toAuthoring(q))
}

// @Summary 题目列表
// @Tags 题库管理
// @Produce json
// @Security ApiKeyAuth
// @Param section query string false "部分" Enums(listening, vocabulary, grammar, reading)
// @Param questionType query string false "题型"
// @Param reviewStatus query string false "审核状态" Enums(pending, approved, rejected)
// @Param difficultyLevel query int false "难度等级"
// @Param page query int false "页码" default(1)
// @Param limit query int false "每页数量" default(20)
// @Success 200 {object} util.Response{data=util.PageResponse}
// @Router /teacher/questions [get]
func (c *QuestionController) ListQuestions(ctx *gin.Context) {
	page, limit := pagination(ctx)
	filter := repository.QuestionFilter{
		Section:         model.Section(ctx.Query("section")),
		QuestionType:    ctx.Query("questionType"),
		ReviewStatus:    model.ReviewStatus(ctx.Query("reviewStatus")),
		DifficultyLevel: util.ParseIntDefault(ctx.Query("difficultyLevel"), 0, model.MinDifficultyLevel, model.MaxDifficultyLevel),
	}
	if filter.Section != "" && !filter.Section.Valid() {
		util.BadRequest(ctx, "invalid section")
		return
	}
	if filter.ReviewStatus != "" && !filter.ReviewStatus.Valid() {
		util.BadRequest(ctx, "invalid reviewStatus")
		return
	}

	qs, total, err := c.QuestionService.ListQuestions(ctx.Request.Context(), filter, page, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	items := make([]authoringQuestion, len(qs))
	for i := range qs {
		items[i] = toAuthoring(&qs[i])
	}
	util.Success(ctx, util.PageResponse{List: items, Total: total, Page: page, Limit: limit})
}

// @Summary 审核题目
// @Description 题目不会被删除，下架即设为 rejected
// @Tags 题库管理
// @Accept json
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param review body service.ReviewRequest true "审核结果"
// @Success 200 {object} util.Response
// @Router /teacher/questions/{id}/review [patch]
func (c *QuestionController) ReviewQuestion(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	var req service.ReviewRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		util.BadRequest(ctx, err.Error())
		return
	}
	if err := c.QuestionService.ReviewQuestion(ctx.Request.Context(), id, req); err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, nil)
}

// @Summary 上传听力音频
// @Tags 题库管理
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param file formData file true "音频文件"
// @Success 200 {object} util.Response
// @Failure 400 {object} util.Response
// @Router /teacher/questions/{id}/audio [post]
func (c *QuestionController) UploadAudio(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	q, err := c.QuestionService.UploadAudio(ctx.Request.Context(), id, file)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, toAuthoring(q))
}

// @Summary 批量导入题目
// @Description xlsx 第一个工作表，列依次为 section, question_type, content, options(用 | 分隔), correct_answer, explanation, difficulty_level
// @Tags 题库管理
// @Accept multipart/form-data
// @Produce json
// @Security ApiKeyAuth
// @Param file formData file true "xlsx 文件"
// @Success 200 {object} util.Response{data=service.ImportReport}
// @Router /teacher/questions/import [post]
func (c *QuestionController) ImportQuestions(ctx *gin.Context) {
	user, ok := currentUser(ctx)
	if !ok {
		return
	}
	file, err := ctx.FormFile("file")
	if err != nil {
		util.BadRequest(ctx, "file is required")
		return
	}
	if file.Size > util.MaxImportSize {
		util.BadRequest(ctx, "file too large, max "+strconv.FormatInt(util.MaxImportSize>>20, 10)+"MB")
		return
	}
	if !util.HasAllowedExtension(file.Filename, []string{".xlsx"}) {
		util.BadRequest(ctx, "only .xlsx files are supported")
		return
	}
	src, err := file.Open()
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	defer src.Close()

	report, err := c.QuestionService.ImportQuestions(ctx.Request.Context(), user.UserID, src)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, report)
}

// @Summary 相似题目
// @Description 同部分、同题型、难度相差不超过 1 的其他已审核题目
// @Tags 题库
// @Produce json
// @Security ApiKeyAuth
// @Param id path int true "题目ID"
// @Param limit query int false "数量" default(5)
// @Success 200 {object} util.Response
// @Router /questions/{id}/similar [get]
func (c *QuestionController) GetSimilarQuestions(ctx *gin.Context) {
	id, ok := paramID(ctx, "id")
	if !ok {
		return
	}
	limit := util.ParseIntDefault(ctx.Query("limit"), 0, 1, 50)
	qs, err := c.QuestionService.GetSimilarQuestions(ctx.Request.Context(), id, limit)
	if err != nil {
		util.HandleError(ctx, err)
		return
	}
	util.Success(ctx, toQuestionViews(qs))
}
