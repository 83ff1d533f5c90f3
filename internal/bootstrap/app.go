package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"pixeldraw/internal/domain"
	httpHandler "pixeldraw/internal/handler/http"
	wsHandler "pixeldraw/internal/handler/websocket"
	"pixeldraw/internal/hub"
	gormpersistence "pixeldraw/internal/infra/persistence/gorm"
	"pixeldraw/internal/infra/setup"
	redisstate "pixeldraw/internal/infra/state/redis"
	"pixeldraw/internal/middleware"
	"pixeldraw/internal/service"
	"pixeldraw/internal/tasks"
	"pixeldraw/internal/worker"
)

// App 结构体包含应用的所有组件和配置
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Scheduler   *asynq.Scheduler
	Hub         *hub.Hub
	HttpServer  *http.Server

	unsubscribe []func()
}

// NewApp 创建并初始化应用的所有组件
func NewApp() (*App, error) {
	// 1. 加载配置
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	// 2. 初始化 Logger
	log := newLogger(cfg)
	log.Info("Configuration loaded successfully")

	// 3. 初始化基础设施
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database initialized and migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Redis and Asynq clients initialized")

	// 4. 初始化 Repositories
	canvasRepo := gormpersistence.NewGormCanvasRepository(db)
	paletteRepo := gormpersistence.NewGormPaletteRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix, cfg.BoardCacheTTL)

	// 5. 初始化 Services 和 Hub
	canvasService := service.NewCanvasService(canvasRepo, stateRepo)
	paletteService := service.NewPaletteService(paletteRepo)
	hubInstance := hub.NewHub(canvasService, tasks.NewEnqueuer(asynqClient, "default"))

	// 列表和调色板变更推送给同一所有者的在线客户端
	unsubscribe := []func(){
		canvasService.Subscribe(func(ownerID string, canvases []domain.Canvas) {
			hubInstance.NotifyCanvasList(ownerID, canvases)
		}),
		paletteService.Subscribe(func(ownerID string, colors []domain.Color) {
			hubInstance.NotifyPalette(ownerID, colors)
		}),
		// 删除的画布立即关闭会话，客户端不能继续编辑
		canvasService.SubscribeDeleted(func(_, canvasID string) {
			hubInstance.CloseCanvas(canvasID)
		}),
	}
	log.Info("Services and hub initialized")

	// 6. 初始化 Worker Server 和 Scheduler
	workerServer := worker.NewWorkerServer(redisClientOpt, canvasService, hubInstance, cfg.SessionIdleTTL, cfg.WorkerConcurrency, log)
	scheduler := asynq.NewScheduler(redisClientOpt, &asynq.SchedulerOpts{})

	// 7. 初始化 Gin Engine 和路由
	router := NewRouter(cfg, log, stateRepo,
		httpHandler.NewCanvasHandler(canvasService, hubInstance),
		httpHandler.NewPaletteHandler(paletteService),
		wsHandler.NewWebSocketHandler(hubInstance, canvasService, cfg.WSAllowedOrigins),
	)

	httpServer := &http.Server{
		Addr:              ":" + cfg.ServerPort,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	app := &App{
		Config:      cfg,
		Log:         log,
		DB:          db,
		RedisClient: redisClient,
		AsynqClient: asynqClient,
		AsynqServer: workerServer,
		Scheduler:   scheduler,
		Hub:         hubInstance,
		HttpServer:  httpServer,
		unsubscribe: unsubscribe,
	}
	log.Info("Application assembled successfully")
	return app, nil
}

func newLogger(cfg *Config) *logrus.Logger {
	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
	level, _ := logrus.ParseLevel(cfg.LogLevel) // 已被 LoadConfig 验证
	log.SetLevel(level)
	log.SetOutput(os.Stdout)

	// 各包使用 logrus 的标准 logger，保持同样的格式和级别
	logrus.SetFormatter(log.Formatter)
	logrus.SetLevel(level)
	logrus.SetOutput(os.Stdout)
	return log
}

// NewRouter 设置中间件和路由
func NewRouter(cfg *Config, log *logrus.Logger, limiter middleware.RateLimiter, canvasHandler *httpHandler.CanvasHandler, paletteHandler *httpHandler.PaletteHandler, ws *wsHandler.WebSocketHandler) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))
	router.Use(CORSMiddleware(cfg.CORSAllowedOrigin))
	router.Use(middleware.RateLimit(limiter, cfg.RateLimitMax, cfg.RateLimitWindow))

	auth := middleware.Auth(cfg.JWTSecret)
	api := router.Group("/api").Use(auth)
	{
		api.GET("/canvases", canvasHandler.ListCanvases)
		api.POST("/canvases", canvasHandler.CreateCanvas)
		api.GET("/canvases/:id", canvasHandler.GetCanvas)
		api.DELETE("/canvases/:id", canvasHandler.DeleteCanvas)

		api.GET("/palette", paletteHandler.GetPalette)
		api.PUT("/palette", paletteHandler.UpdatePalette)
		api.POST("/palette/colors", paletteHandler.AppendColor)
		api.PUT("/palette/colors", paletteHandler.ReplaceColor)
	}
	wsRoutes := router.Group("/ws").Use(auth)
	{
		wsRoutes.GET("/canvas/:id", ws.HandleConnection)
	}
	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	return router
}

// Start 启动应用的所有后台 Goroutine 和 HTTP 服务器
func (a *App) Start() {
	go a.Hub.Run()
	go a.AsynqServer.Start()
	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	schedule := a.Config.FlushSchedule
	entryID, err := a.Scheduler.Register(schedule, tasks.NewSessionFlushTask(), asynq.Queue("default"))
	if err != nil {
		a.Log.Errorf("Could not register periodic session flush task: %v", err)
		return
	}
	a.Log.Infof("Periodic session flush task registered with schedule '%s' (EntryID: %s)", schedule, entryID)

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := a.Scheduler.Run(); err != nil {
			a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
		}
	}()
}

// Shutdown 优雅地关闭应用
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	// 1. 先停止接收新的请求和连接
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	}

	// 2. 停止 Hub，提交未结束的手势 (入队仍可用)
	for _, fn := range a.unsubscribe {
		fn()
	}
	a.Hub.Stop(ctx)

	// 3. 停止 Scheduler 和 Worker，Worker 会处理完正在执行的任务
	a.Scheduler.Shutdown()
	a.AsynqServer.Shutdown()

	// 4. 关闭客户端连接
	if err := a.AsynqClient.Close(); err != nil {
		a.Log.Errorf("Error closing Asynq client: %v", err)
	}
	if err := a.RedisClient.Close(); err != nil {
		a.Log.Errorf("Error closing Redis connection: %v", err)
	}
	if sqlDB, err := a.DB.DB(); err == nil {
		if err := sqlDB.Close(); err != nil {
			a.Log.Errorf("Error closing database connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// CORSMiddleware 允许配置的来源跨域访问
func CORSMiddleware(allowedOrigin string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}

// LoggerMiddleware 创建一个 Gin 中间件用于记录请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  latency.Milliseconds(),
			"client_ip":   c.ClientIP(),
			"method":      c.Request.Method,
			"path":        path,
		})

		if errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String(); errorMessage != "" {
			entry.Error(errorMessage)
			return
		}
		switch {
		case statusCode >= 500:
			entry.Error("Server error")
		case statusCode >= 400:
			entry.Warn("Client error")
		default:
			entry.Info("Request handled")
		}
	}
}
