package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/api/handlers"
	"github.com/BaSui01/skillflow/config"
	"github.com/BaSui01/skillflow/internal/audit"
	"github.com/BaSui01/skillflow/internal/cache"
	"github.com/BaSui01/skillflow/internal/database"
	"github.com/BaSui01/skillflow/internal/metrics"
	"github.com/BaSui01/skillflow/internal/server"
	"github.com/BaSui01/skillflow/internal/telemetry"
	"github.com/BaSui01/skillflow/quick"
	"github.com/BaSui01/skillflow/skill"
)

// =============================================================================
// 🖥️ Server 结构
// =============================================================================

// Server 是 Skillflow 的主服务器
type Server struct {
	cfg        *config.Config
	configPath string
	logger     *zap.Logger

	httpManager *server.Manager

	// 技能平台核心
	catalog  *skill.Catalog
	runner   *skill.Runner
	resolver *skill.Resolver
	bus      *skill.Bus

	// 平台协作方
	metricsCollector *metrics.Collector
	cacheManager     *cache.Manager
	pool             *database.PoolManager
	auditStore       *audit.GormStore
	mongoStore       *audit.MongoStore
	recorder         *audit.Recorder

	// 配置文件监视（凭据轮换）
	watcher *config.FileWatcher

	otelProviders *telemetry.Providers

	rateLimiterCancel context.CancelFunc
}

// NewServer 创建新的服务器实例
func NewServer(cfg *config.Config, configPath string, logger *zap.Logger, otel *telemetry.Providers) *Server {
	return &Server{
		cfg:           cfg,
		configPath:    configPath,
		logger:        logger,
		otelProviders: otel,
	}
}

// =============================================================================
// 🚀 启动流程
// =============================================================================

// Start 启动所有服务
func (s *Server) Start() error {
	s.metricsCollector = metrics.NewCollector("skillflow", nil, s.logger)
	s.bus = skill.NewBus(s.logger)
	s.resolver = buildResolver(s.cfg.Skills, s.logger)

	if err := s.initCache(); err != nil {
		return fmt.Errorf("init cache: %w", err)
	}
	if err := s.initAudit(); err != nil {
		return fmt.Errorf("init audit: %w", err)
	}

	s.initRunner()

	if err := s.initConfigWatcher(); err != nil {
		return fmt.Errorf("init config watcher: %w", err)
	}

	if err := s.startHTTPServer(); err != nil {
		return fmt.Errorf("start HTTP server: %w", err)
	}

	s.logger.Info("All services started",
		zap.Int("http_port", s.cfg.Server.HTTPPort),
		zap.Int("skills", s.catalog.Len()),
		zap.Bool("cache_enabled", s.cacheManager != nil),
		zap.Bool("audit_db", s.auditStore != nil),
		zap.Bool("audit_mongo", s.mongoStore != nil),
	)

	return nil
}

// =============================================================================
// 🔧 初始化方法
// =============================================================================

// buildResolver 按配置组装客户端解析器：每个技能的专属 Provider 优先，
// 共享网关兜底。
func buildResolver(cfg config.SkillsConfig, logger *zap.Logger) *skill.Resolver {
	resolver := skill.NewResolver()

	for name, pc := range cfg.Providers {
		if !pc.Configured() {
			continue
		}
		resolver.SetProvider(name, skill.NewHTTPClient(clientConfig(pc), logger))
		logger.Info("provider client configured", zap.String("skill", name))
	}

	if cfg.Gateway.Configured() {
		resolver.SetGateway(skill.NewHTTPClient(clientConfig(cfg.Gateway), logger))
		logger.Info("gateway client configured")
	}

	return resolver
}

func clientConfig(pc config.ProviderConfig) skill.HTTPClientConfig {
	return skill.HTTPClientConfig{
		BaseURL:    pc.BaseURL,
		AuthHeader: pc.AuthHeader,
		AuthScheme: pc.AuthScheme,
		Secret:     pc.Secret,
		Headers:    pc.Headers,
		Timeout:    pc.Timeout,
		RPS:        pc.RPS,
		Burst:      pc.Burst,
	}
}

func (s *Server) initCache() error {
	if !s.cfg.Cache.Enabled {
		s.logger.Info("result cache disabled")
		return nil
	}

	manager, err := cache.NewManager(cache.Config{
		Addr:         s.cfg.Cache.Addr,
		Password:     s.cfg.Cache.Password,
		DB:           s.cfg.Cache.DB,
		DefaultTTL:   s.cfg.Cache.DefaultTTL,
		PoolSize:     s.cfg.Cache.PoolSize,
		MinIdleConns: s.cfg.Cache.MinIdleConns,
	}, s.logger)
	if err != nil {
		// 缓存是可选加速层，连不上时降级运行
		s.logger.Warn("result cache unavailable, running without it", zap.Error(err))
		return nil
	}
	s.cacheManager = manager
	return nil
}

func (s *Server) initAudit() error {
	var sinks []audit.Sink

	if s.cfg.Database.Driver != "" && s.cfg.Database.Name != "" {
		pool, err := database.Open(s.cfg.Database, s.logger)
		if err != nil {
			s.logger.Warn("audit database unavailable", zap.Error(err))
		} else {
			if err := audit.AutoMigrate(pool.DB()); err != nil {
				s.logger.Error("audit schema migration failed", zap.Error(err))
			}
			store, err := audit.NewGormStore(pool.DB())
			if err != nil {
				return err
			}
			pool.SetStatsHook(func(open, idle int) {
				s.metricsCollector.RecordDBConnections("audit", open, idle)
			})
			s.pool = pool
			s.auditStore = store
			sinks = append(sinks, store)
		}
	}

	if s.cfg.Mongo.Enabled {
		store, err := audit.NewMongoStore(s.cfg.Mongo)
		if err != nil {
			s.logger.Warn("mongo audit sink unavailable", zap.Error(err))
		} else {
			s.mongoStore = store
			sinks = append(sinks, store)
		}
	}

	if len(sinks) == 0 {
		sinks = append(sinks, audit.NewLogSink(s.logger))
		s.logger.Info("no audit store configured, falling back to log sink")
	}

	s.recorder = audit.NewRecorder(s.logger, sinks,
		audit.WithDropHook(s.metricsCollector.RecordAuditDropped))
	return nil
}

func (s *Server) initRunner() {
	s.catalog = quick.Catalog(s.logger,
		quick.WithSerpDailyLimit(s.cfg.Skills.SerpDailyLimit),
		quick.WithAnalysisBudget(s.cfg.Skills.AnalysisBudget),
	)

	cfg := skill.RunnerConfig{
		DefaultTimeout: s.cfg.Skills.DefaultTimeout,
		Timeouts:       s.cfg.Skills.Timeouts,
		Resolver:       s.resolver,
		Adapter:        skill.NopAdapter{},
		Metrics:        s.metricsCollector,
		Audit:          s.recorder,
		Bus:            s.bus,
	}
	if s.cacheManager != nil {
		cfg.Cache = s.cacheManager
	}

	s.runner = skill.NewRunner(s.catalog, cfg, s.logger)
}

// initConfigWatcher 监视配置文件变更并热轮换上游凭据。
// 只有 Provider/Gateway 客户端会被重建，其余配置项需要重启生效。
func (s *Server) initConfigWatcher() error {
	if s.configPath == "" {
		return nil
	}

	watcher, err := config.NewFileWatcher([]string{s.configPath},
		config.WithWatcherLogger(s.logger))
	if err != nil {
		return err
	}

	watcher.OnChange(func(event config.FileEvent) {
		if event.Op != config.FileOpWrite && event.Op != config.FileOpCreate {
			return
		}
		s.logger.Info("config file changed, rotating provider credentials",
			zap.String("path", event.Path))

		cfg, err := config.NewLoader().WithConfigPath(s.configPath).Load()
		if err != nil {
			s.logger.Error("config reload failed, keeping previous credentials", zap.Error(err))
			return
		}

		for name, pc := range cfg.Skills.Providers {
			if pc.Configured() {
				s.resolver.SetProvider(name, skill.NewHTTPClient(clientConfig(pc), s.logger))
			}
		}
		if cfg.Skills.Gateway.Configured() {
			s.resolver.SetGateway(skill.NewHTTPClient(clientConfig(cfg.Skills.Gateway), s.logger))
		}
	})

	if err := watcher.Start(context.Background()); err != nil {
		return err
	}
	s.watcher = watcher
	return nil
}

// =============================================================================
// 🌐 HTTP 服务器
// =============================================================================

func (s *Server) startHTTPServer() error {
	skillsHandler := handlers.NewSkillsHandler(s.catalog, s.runner, s.logger)
	healthHandler := handlers.NewHealthHandler(s.logger)
	streamHandler := handlers.NewStreamHandler(s.bus, []string{s.cfg.Server.AllowedOrigin}, s.logger)

	if s.pool != nil {
		healthHandler.RegisterCheck(handlers.NewPingCheck("database", s.pool.Ping))
	}
	if s.cacheManager != nil {
		healthHandler.RegisterCheck(handlers.NewPingCheck("redis", s.cacheManager.Ping))
	}

	mux := http.NewServeMux()

	// 健康与版本端点
	mux.HandleFunc("GET /health", healthHandler.HandleHealth)
	mux.HandleFunc("GET /ready", healthHandler.HandleReady)
	mux.HandleFunc("GET /version", healthHandler.HandleVersion(Version, BuildTime, GitCommit))

	// Prometheus 指标
	mux.Handle("GET /metrics", promhttp.Handler())

	// 技能 API
	mux.HandleFunc("GET /api/v1/skills", skillsHandler.HandleList)
	mux.HandleFunc("GET /api/v1/skills/health", skillsHandler.HandleHealthCheck(s.resolver))
	mux.HandleFunc("GET /api/v1/skills/{name}", skillsHandler.HandleDescribe)
	mux.HandleFunc("POST /api/v1/skills/{name}/invoke", skillsHandler.HandleInvoke)

	// 事件流
	mux.HandleFunc("GET /api/v1/events/stream", streamHandler.HandleStream)

	// 审计流水（仅在审计库可用时注册）
	if s.auditStore != nil {
		auditHandler := handlers.NewAuditHandler(s.auditStore, s.logger)
		mux.HandleFunc("GET /api/v1/audit", auditHandler.HandleRecent)
	}

	// 中间件链
	skipAuthPaths := []string{"/health", "/ready", "/version", "/metrics"}
	middlewares := []Middleware{
		Recovery(s.logger),
		RequestID(),
		SecurityHeaders(),
		RequestLogger(s.logger),
		CORS(s.cfg.Server.AllowedOrigin),
		MetricsMiddleware(s.metricsCollector),
		OTelTracing(),
	}

	if s.cfg.RateLimit.Enabled {
		rateLimiterCtx, cancel := context.WithCancel(context.Background())
		s.rateLimiterCancel = cancel
		middlewares = append(middlewares,
			RateLimiter(rateLimiterCtx, s.cfg.RateLimit.RPS, s.cfg.RateLimit.Burst, s.logger))
	}

	if s.cfg.Auth.Enabled {
		if len(s.cfg.Auth.APIKeys) > 0 {
			middlewares = append(middlewares,
				APIKeyAuth(s.cfg.Auth.APIKeys, skipAuthPaths, s.logger))
		} else {
			middlewares = append(middlewares,
				JWTAuth(s.cfg.Auth, skipAuthPaths, s.logger))
		}
	}

	handler := Chain(mux, middlewares...)

	serverConfig := server.Config{
		Addr:            fmt.Sprintf(":%d", s.cfg.Server.HTTPPort),
		ReadTimeout:     s.cfg.Server.ReadTimeout,
		WriteTimeout:    s.cfg.Server.WriteTimeout,
		IdleTimeout:     2 * s.cfg.Server.ReadTimeout,
		MaxHeaderBytes:  1 << 20, // 1 MB
		ShutdownTimeout: s.cfg.Server.ShutdownTimeout,
	}

	s.httpManager = server.NewManager(handler, serverConfig, s.logger)

	if err := s.httpManager.Start(); err != nil {
		return err
	}

	s.logger.Info("HTTP server started", zap.Int("port", s.cfg.Server.HTTPPort))
	return nil
}

// =============================================================================
// 🛑 关闭流程
// =============================================================================

// WaitForShutdown 等待关闭信号并优雅关闭
func (s *Server) WaitForShutdown() {
	if s.httpManager != nil {
		s.httpManager.WaitForShutdown()
	}
	s.Shutdown()
}

// Shutdown 优雅关闭所有服务
func (s *Server) Shutdown() {
	s.logger.Info("Starting graceful shutdown...")

	ctx := context.Background()

	if s.rateLimiterCancel != nil {
		s.rateLimiterCancel()
	}

	if s.watcher != nil {
		s.watcher.Stop()
	}

	if s.httpManager != nil {
		if err := s.httpManager.Shutdown(ctx); err != nil {
			s.logger.Error("HTTP server shutdown error", zap.Error(err))
		}
	}

	// 先关总线再关审计：新事件停发后排空审计缓冲
	if s.bus != nil {
		s.bus.Close()
	}
	if s.recorder != nil {
		s.recorder.Close()
	}

	if s.mongoStore != nil {
		if err := s.mongoStore.Close(ctx); err != nil {
			s.logger.Error("mongo audit sink close error", zap.Error(err))
		}
	}
	if s.pool != nil {
		if err := s.pool.Close(); err != nil {
			s.logger.Error("database close error", zap.Error(err))
		}
	}
	if s.cacheManager != nil {
		if err := s.cacheManager.Close(); err != nil {
			s.logger.Error("cache close error", zap.Error(err))
		}
	}

	if s.otelProviders != nil {
		if err := s.otelProviders.Shutdown(ctx); err != nil {
			s.logger.Error("telemetry shutdown error", zap.Error(err))
		}
	}

	s.logger.Info("Graceful shutdown completed")
}
