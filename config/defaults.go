// =============================================================================
// 📦 Skillflow 默认配置
// =============================================================================
// 提供所有配置项的合理默认值
// =============================================================================
package config

import "time"

// DefaultConfig 返回默认配置
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Log:       DefaultLogConfig(),
		Skills:    DefaultSkillsConfig(),
		Cache:     DefaultCacheConfig(),
		Database:  DefaultDatabaseConfig(),
		Mongo:     DefaultMongoConfig(),
		Telemetry: DefaultTelemetryConfig(),
		Auth:      DefaultAuthConfig(),
		RateLimit: DefaultRateLimitConfig(),
	}
}

// DefaultServerConfig 返回默认服务器配置
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    2 * time.Minute,
		ShutdownTimeout: 15 * time.Second,
		AllowedOrigin:   "*",
	}
}

// DefaultLogConfig 返回默认日志配置
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:            "info",
		Format:           "json",
		OutputPaths:      []string{"stdout"},
		EnableCaller:     true,
		EnableStacktrace: false,
	}
}

// DefaultSkillsConfig 返回默认技能目录配置
func DefaultSkillsConfig() SkillsConfig {
	return SkillsConfig{
		DefaultTimeout: 30 * time.Second,
		Timeouts:       map[string]time.Duration{},
		Providers:      map[string]ProviderConfig{},
		AnalysisBudget: 6000,
		SerpDailyLimit: 0,
	}
}

// DefaultCacheConfig 返回默认结果缓存配置
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Enabled:      false,
		Addr:         "localhost:6379",
		Password:     "",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		DefaultTTL:   5 * time.Minute,
	}
}

// DefaultDatabaseConfig 返回默认审计库配置
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "sqlite",
		Host:            "localhost",
		Port:            5432,
		User:            "skillflow",
		Password:        "",
		Name:            "skillflow.db",
		SSLMode:         "disable",
		MaxOpenConns:    25,
		MaxIdleConns:    5,
		ConnMaxLifetime: 5 * time.Minute,
	}
}

// DefaultMongoConfig 返回默认 Mongo 审计配置
func DefaultMongoConfig() MongoConfig {
	return MongoConfig{
		Enabled:    false,
		URI:        "mongodb://localhost:27017",
		Database:   "skillflow",
		Collection: "audit_log",
		Timeout:    10 * time.Second,
	}
}

// DefaultTelemetryConfig 返回默认遥测配置
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "skillflow",
		SampleRate:   0.1,
	}
}

// DefaultAuthConfig 返回默认鉴权配置
func DefaultAuthConfig() AuthConfig {
	return AuthConfig{
		Enabled: false,
	}
}

// DefaultRateLimitConfig 返回默认入站限流配置
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled: true,
		RPS:     50,
		Burst:   100,
	}
}
