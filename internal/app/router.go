package app

import (
	"teps_backend/docs"
	"teps_backend/internal/config"
	"teps_backend/internal/middleware"
	"teps_backend/internal/model"
	"teps_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers, cfg *config.Config) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	// 1. 公共路由(无需登录)
	public := router.Group("/api")
	{
		public.GET("/health", c.health.HealthCheck)
	}

	// 2. 需要授权的路由
	authGroup := router.Group("/api")
	authGroup.Use(middleware.AuthMiddleware(&cfg.JWT))
	{
		a.registerStudentRoutes(authGroup, c)
		a.registerTeacherRoutes(authGroup, c)
	}
}

func (a *App) registerStudentRoutes(group *gin.RouterGroup, c *controllers) {
	tests := group.Group("/tests")
	{
		tests.GET("", c.exam.ListTests)
		tests.GET("/:id", c.exam.GetTest)
		tests.POST("/:id/attempts", c.exam.CreateAttempt)
		tests.POST("/:id/submit", c.exam.SubmitTest)
	}

	group.GET("/test-results/:id", c.exam.GetTestResult)

	attempts := group.Group("/attempts")
	{
		attempts.GET("", c.exam.ListMyAttempts)
		attempts.GET("/:id", c.exam.GetAttempt)
		attempts.POST("/:id/start", c.exam.StartAttempt)
		attempts.POST("/:id/answers", c.exam.SubmitAnswer)
		attempts.POST("/:id/complete", c.exam.CompleteAttempt)
	}

	group.GET("/questions/:id/similar", c.question.GetSimilarQuestions)
}

// 题库与试卷维护，管理员同样可以访问
func (a *App) registerTeacherRoutes(group *gin.RouterGroup, c *controllers) {
	teacher := group.Group("/teacher")
	teacher.Use(middleware.RoleMiddleware(model.Teacher))
	{
		teacher.GET("/questions", c.question.ListQuestions)
		teacher.POST("/questions", c.question.CreateQuestion)
		teacher.POST("/questions/import", c.question.ImportQuestions)
		teacher.GET("/questions/:id", c.question.GetQuestion)
		teacher.PUT("/questions/:id", c.question.UpdateQuestion)
		teacher.PATCH("/questions/:id/review", c.question.ReviewQuestion)
		teacher.POST("/questions/:id/audio", c.question.UploadAudio)

		teacher.POST("/tests", c.examConfig.CreateTest)
		teacher.PATCH("/tests/:id/publish", c.examConfig.PublishTest)
	}
}
