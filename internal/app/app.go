package app

import (
	"context"
	"log"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"teps_backend/internal/config"
	"teps_backend/internal/controller"
	"teps_backend/internal/repository"
	"teps_backend/internal/service"
	"teps_backend/pkg/database"
	"teps_backend/pkg/logger"
	"teps_backend/pkg/monitoring"
	"teps_backend/pkg/security"
	"teps_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config *config.Config
	Router *gin.Engine
	DB     *gorm.DB
	Redis  *redis.Client

	services       *services
	tracerProvider *sdktrace.TracerProvider

	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

type repositories struct {
	question    *repository.QuestionRepository
	examConfig  *repository.ExamConfigRepository
	examAttempt *repository.ExamAttemptRepository
}

type services struct {
	settings   *service.ExamSettings
	storage    *service.StorageService
	question   *service.QuestionService
	examConfig *service.ExamConfigService
	exam       *service.ExamService
	scheduler  *service.ExpiryScheduler
}

type controllers struct {
	exam       *controller.ExamController
	question   *controller.QuestionController
	examConfig *controller.ExamConfigController
	health     *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ApplyConfig 配置热更新入口，依次执行已注册的回调
func (a *App) ApplyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()

	for _, cb := range callbacks {
		cb(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		question:    repository.NewQuestionRepository(db),
		examConfig:  repository.NewExamConfigRepository(db),
		examAttempt: repository.NewExamAttemptRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.settings = service.NewExamSettings(cfg.Exam)
	s.storage = service.NewStorageService(&cfg.Storage)
	s.question = service.NewQuestionService(repos.question, s.storage, s.settings)
	s.examConfig = service.NewExamConfigService(repos.examConfig)

	// Redis 不可用时退化为固定百分位且不缓存成绩
	var (
		ranker service.ScoreRanker
		cache  service.ResultCache
	)
	if rdb != nil {
		ranker = service.NewRedisScoreRanker(rdb, s.settings)
		cache = service.NewRedisResultCache(rdb)
	}

	s.exam = service.NewExamService(
		repos.examAttempt,
		repos.examConfig,
		s.question,
		service.NewQuestionSelector(repos.question, rand.New(rand.NewSource(time.Now().UnixNano()))),
		service.NewScoringService(s.settings),
		ranker,
		cache,
		s.settings,
	)

	s.scheduler = service.NewExpiryScheduler(s.exam, cfg.Exam.ExpirySweepInterval())

	a.RegisterConfigCallback(func(newCfg *config.Config) {
		if err := s.settings.Update(newCfg.Exam); err != nil {
			logger.Log.Error("Rejected exam config reload", zap.Error(err))
			return
		}
		if err := s.scheduler.SetInterval(newCfg.Exam.ExpirySweepInterval()); err != nil {
			logger.Log.Error("Failed to reschedule expiry sweep", zap.Error(err))
		}
		logger.Log.Info("Exam config reloaded")
	})

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		exam:       controller.NewExamController(s.exam, s.examConfig),
		question:   controller.NewQuestionController(s.question),
		examConfig: controller.NewExamConfigController(s.examConfig),
		health:     controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) startBackgroundTasks(s *services) {
	if err := s.scheduler.Start(); err != nil {
		logger.Log.Error("Failed to start expiry scheduler", zap.Error(err))
	}
}

// NewApp 初始化日志、数据库、Redis 及各层组件
func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	migrate := cfg.ForceMigrate || cfg.Server.Mode != gin.ReleaseMode
	db, err := database.InitDB(&cfg.Database, migrate)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	if cfg.MigrateOnly {
		return &App{Config: cfg, DB: db}
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, ranking and result cache disabled", zap.Error(err))
		rdb = nil
	}

	var tp *sdktrace.TracerProvider
	if cfg.Tracing.Enabled {
		tp, err = tracing.InitTracer("teps-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app := newApp(cfg, db, rdb)
	app.tracerProvider = tp
	app.startBackgroundTasks(app.services)

	return app
}

func newApp(cfg *config.Config, db *gorm.DB, rdb *redis.Client) *App {
	if cfg.Server.Mode != "" {
		gin.SetMode(cfg.Server.Mode)
	}

	app := &App{
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()
	controller.RegisterValidators()

	router := gin.New()
	router.Use(gin.Logger(), gin.Recovery())
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "" || cfg.Storage.Type == "local" {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	a.services.scheduler.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	if a.tracerProvider != nil {
		if err := a.tracerProvider.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	log.Println("Server exiting")
}
