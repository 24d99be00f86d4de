package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/CHOISC1208/tential-salesforecast/internal/budget/entity"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/handler"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/repository"
	"github.com/CHOISC1208/tential-salesforecast/internal/budget/service"
	"github.com/CHOISC1208/tential-salesforecast/internal/config"
	"github.com/CHOISC1208/tential-salesforecast/internal/middleware"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	// 加载 .env 文件
	if err := godotenv.Load(); err != nil {
		log.Printf("Warning: .env file not found, using environment variables")
	}

	// 加载配置
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// 初始化日志
	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	zapLogger.Info("Starting salesforecast service",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
	)

	// 初始化数据库
	db, err := initDatabase(cfg.Database)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}

	if err := db.AutoMigrate(
		&entity.Category{},
		&entity.PlanSession{},
		&entity.HierarchyDefinition{},
		&entity.SkuData{},
		&entity.Allocation{},
		&entity.PeriodBudget{},
	); err != nil {
		zapLogger.Warn("AutoMigrate warning", zap.Error(err))
	}

	// AutoMigrate 不补旧库的索引，用原始 SQL 兜底
	migrationSQL := []string{
		"CREATE INDEX IF NOT EXISTS idx_hierarchy_defs_session ON hierarchy_definitions(session_id)",
		"CREATE INDEX IF NOT EXISTS idx_sku_data_session ON sku_data(session_id)",
		"CREATE INDEX IF NOT EXISTS idx_allocations_session_period ON allocations(session_id, period)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_alloc_session_path_period ON allocations(session_id, hierarchy_path, period)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_period_budget_session_period ON period_budgets(session_id, period)",
	}
	for _, sql := range migrationSQL {
		if err := db.Exec(sql).Error; err != nil {
			zapLogger.Warn("Migration SQL warning (may already exist)", zap.String("sql", sql), zap.Error(err))
		}
	}
	zapLogger.Info("Database migration completed")

	// 初始化Redis
	rdb := initRedis(cfg.Redis)

	// 初始化依赖
	repos := repository.NewRepositories(db)
	services := service.NewServices(repos, rdb)
	handlers := handler.NewHandlers(services)

	// 设置Gin模式
	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	// 创建路由
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.Logger(zapLogger))
	router.Use(middleware.CORS())
	router.Use(middleware.RequestID())
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// 注册路由
	registerRoutes(router, handlers, cfg)

	// 创建HTTP服务器
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// 启动服务器
	go func() {
		zapLogger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// 优雅关闭
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	zapLogger.Info("Server exited")
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "info":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	}

	return zapCfg.Build()
}

func initDatabase(cfg config.DatabaseConfig) (*gorm.DB, error) {
	dsn := fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.DBName, cfg.SSLMode,
	)

	gormConfig := &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	}

	db, err := gorm.Open(postgres.Open(dsn), gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database instance: %w", err)
	}

	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)

	return db, nil
}

func initRedis(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func registerRoutes(r *gin.Engine, h *handler.Handlers, cfg *config.Config) {
	// 健康检查
	r.GET("/health/live", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/health/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// 版本信息
	r.GET("/version", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"version":    Version,
			"build_time": BuildTime,
		})
	})

	// API v1
	v1 := r.Group("/api/v1")
	api := v1.Group("")
	api.Use(middleware.JWTAuth(cfg.JWT.Secret))
	{
		// 分类
		api.GET("/categories", h.Session.ListCategories)
		api.POST("/categories", h.Session.CreateCategory)

		// 会话
		api.GET("/sessions", h.Session.ListSessions)
		api.POST("/sessions", h.Session.CreateSession)
		api.GET("/sessions/:id", h.Session.GetSession)
		api.PUT("/sessions/:id", h.Session.UpdateSession)
		api.DELETE("/sessions/:id", h.Session.DeleteSession)

		// 层级树 + 分配
		api.GET("/sessions/:id/tree", h.Allocation.GetTree)
		api.PUT("/sessions/:id/allocations", h.Allocation.SaveAllocations)
		api.PATCH("/sessions/:id/allocations", h.Allocation.UpsertAllocation)
		api.POST("/sessions/:id/recompute", h.Allocation.Recompute)

		// 期间
		api.GET("/sessions/:id/periods", h.Period.ListPeriods)
		api.POST("/sessions/:id/periods", h.Period.CreatePeriod)
		api.POST("/sessions/:id/periods/rename", h.Period.RenamePeriod)
		api.DELETE("/sessions/:id/periods", h.Period.DeletePeriod)
		api.PUT("/sessions/:id/budget", h.Period.UpdateBudget)

		// 导入导出
		api.POST("/sessions/:id/import", h.ImportExport.Import)
		api.GET("/sessions/:id/export", h.ImportExport.ExportCSV)
		api.GET("/sessions/:id/export/xlsx", h.ImportExport.ExportXLSX)
	}
}
