// =============================================================================
// 📦 Skillflow 配置加载器
// =============================================================================
// 统一配置加载，支持 YAML 文件 + 环境变量覆盖
//
// 使用方法:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("SKILLFLOW").
//	    Load()
//
// 配置优先级: 默认值 → YAML 文件 → 环境变量
// =============================================================================
package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// =============================================================================
// 🎯 核心配置结构
// =============================================================================

// Config 是 Skillflow 的完整配置结构
type Config struct {
	// Server HTTP 服务配置
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Log 日志配置
	Log LogConfig `yaml:"log" env:"LOG"`

	// Skills 技能目录配置
	Skills SkillsConfig `yaml:"skills" env:"SKILLS"`

	// Cache Redis 结果缓存配置
	Cache CacheConfig `yaml:"cache" env:"CACHE"`

	// Database 审计库配置
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Mongo 审计流水备选存储配置
	Mongo MongoConfig `yaml:"mongo" env:"MONGO"`

	// Telemetry 遥测配置
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`

	// Auth API 鉴权配置
	Auth AuthConfig `yaml:"auth" env:"AUTH"`

	// RateLimit 入站限流配置
	RateLimit RateLimitConfig `yaml:"rate_limit" env:"RATE_LIMIT"`
}

// ServerConfig HTTP 服务配置
type ServerConfig struct {
	// HTTP 端口
	HTTPPort int `yaml:"http_port" env:"HTTP_PORT"`
	// 读取超时
	ReadTimeout time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	// 写入超时
	WriteTimeout time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	// 优雅关闭超时
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// CORS 允许的来源
	AllowedOrigin string `yaml:"allowed_origin" env:"ALLOWED_ORIGIN"`
}

// LogConfig 日志配置
type LogConfig struct {
	// 日志级别: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// 输出格式: json, console
	Format string `yaml:"format" env:"FORMAT"`
	// 输出路径
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	// 是否启用调用者信息
	EnableCaller bool `yaml:"enable_caller" env:"ENABLE_CALLER"`
	// 是否启用堆栈跟踪
	EnableStacktrace bool `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// SkillsConfig 技能目录配置
type SkillsConfig struct {
	// 默认执行超时（非正值回退到信封默认，超上限按上限截断）
	DefaultTimeout time.Duration `yaml:"default_timeout" env:"DEFAULT_TIMEOUT"`
	// 逐技能超时覆盖（仅 YAML）
	Timeouts map[string]time.Duration `yaml:"timeouts" env:"-"`
	// 逐技能上游凭据（仅 YAML，键为技能名）
	Providers map[string]ProviderConfig `yaml:"providers" env:"-"`
	// 共享网关回退凭据
	Gateway ProviderConfig `yaml:"gateway" env:"GATEWAY"`
	// L2 分析素材 token 预算
	AnalysisBudget int `yaml:"analysis_budget" env:"ANALYSIS_BUDGET"`
	// serp 技能每日配额，0 表示不限
	SerpDailyLimit int `yaml:"serp_daily_limit" env:"SERP_DAILY_LIMIT"`
}

// ProviderConfig 单个上游的接入配置，与注入式 HTTP 客户端一一对应
type ProviderConfig struct {
	// 基础地址
	BaseURL string `yaml:"base_url" env:"BASE_URL"`
	// 凭据注入的请求头，默认 Authorization
	AuthHeader string `yaml:"auth_header" env:"AUTH_HEADER"`
	// 凭据前缀，如 Bearer；留空则裸值注入
	AuthScheme string `yaml:"auth_scheme" env:"AUTH_SCHEME"`
	// 凭据本体
	Secret string `yaml:"secret" env:"SECRET"`
	// 附加固定请求头（仅 YAML）
	Headers map[string]string `yaml:"headers" env:"-"`
	// 单请求超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// 出站限速（每秒请求数），0 表示不限
	RPS float64 `yaml:"rps" env:"RPS"`
	// 限速桶容量
	Burst int `yaml:"burst" env:"BURST"`
}

// Configured 判断该上游是否配置了可用的接入信息
func (p ProviderConfig) Configured() bool {
	return p.BaseURL != ""
}

// CacheConfig Redis 结果缓存配置
type CacheConfig struct {
	// 是否启用结果缓存
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 地址
	Addr string `yaml:"addr" env:"ADDR"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库编号
	DB int `yaml:"db" env:"DB"`
	// 连接池大小
	PoolSize int `yaml:"pool_size" env:"POOL_SIZE"`
	// 最小空闲连接
	MinIdleConns int `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	// 默认缓存时长（动作未声明 TTL 时使用）
	DefaultTTL time.Duration `yaml:"default_ttl" env:"DEFAULT_TTL"`
}

// DatabaseConfig 审计库配置
type DatabaseConfig struct {
	// 驱动类型: postgres, mysql, sqlite
	Driver string `yaml:"driver" env:"DRIVER"`
	// 主机
	Host string `yaml:"host" env:"HOST"`
	// 端口
	Port int `yaml:"port" env:"PORT"`
	// 用户名
	User string `yaml:"user" env:"USER"`
	// 密码
	Password string `yaml:"password" env:"PASSWORD"`
	// 数据库名
	Name string `yaml:"name" env:"NAME"`
	// SSL 模式
	SSLMode string `yaml:"ssl_mode" env:"SSL_MODE"`
	// 最大连接数
	MaxOpenConns int `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	// 最大空闲连接
	MaxIdleConns int `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	// 连接最大生命周期
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// MongoConfig 审计流水备选存储配置
type MongoConfig struct {
	// 是否启用 Mongo 审计汇
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 连接 URI
	URI string `yaml:"uri" env:"URI"`
	// 数据库名
	Database string `yaml:"database" env:"DATABASE"`
	// 集合名
	Collection string `yaml:"collection" env:"COLLECTION"`
	// 连接超时
	Timeout time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// TelemetryConfig 遥测配置
type TelemetryConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// OTLP 端点
	OTLPEndpoint string `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	// 服务名称
	ServiceName string `yaml:"service_name" env:"SERVICE_NAME"`
	// 采样率
	SampleRate float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// AuthConfig API 鉴权配置
type AuthConfig struct {
	// 是否启用鉴权
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 静态 API Key 列表（逗号分隔的环境变量亦可）
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// JWT 签名密钥，留空则只接受 API Key
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// JWT 签发方校验，留空不校验
	JWTIssuer string `yaml:"jwt_issuer" env:"JWT_ISSUER"`
}

// RateLimitConfig 入站限流配置
type RateLimitConfig struct {
	// 是否启用
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// 每客户端每秒请求数
	RPS float64 `yaml:"rps" env:"RPS"`
	// 突发桶容量
	Burst int `yaml:"burst" env:"BURST"`
}

// =============================================================================
// 🔧 配置加载器
// =============================================================================

// Loader 配置加载器（Builder 模式）
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader 创建新的配置加载器
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SKILLFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath 设置配置文件路径
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix 设置环境变量前缀
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator 添加配置验证器
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load 加载配置
// 优先级: 默认值 → YAML 文件 → 环境变量
func (l *Loader) Load() (*Config, error) {
	// 1. 从默认值开始
	cfg := DefaultConfig()

	// 2. 如果指定了配置文件，从文件加载
	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	// 3. 从环境变量覆盖
	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	// 4. 运行验证器
	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile 从 YAML 文件加载配置
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// 文件不存在，使用默认值
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

// loadFromEnv 从环境变量加载配置
func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

// setFieldsFromEnv 递归设置结构体字段
func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		// 获取 env tag
		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		// 如果是结构体，递归处理
		if field.Kind() == reflect.Struct {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		// 获取环境变量值
		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		// 设置字段值
		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

// setFieldValue 设置字段值
func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		// 特殊处理 time.Duration
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return err
		}
		field.SetUint(u)

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		// 支持逗号分隔的字符串切片
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// 🔍 辅助函数
// =============================================================================

// MustLoad 加载配置，失败时 panic
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}

// LoadFromEnv 仅从环境变量加载配置
func LoadFromEnv() (*Config, error) {
	return NewLoader().Load()
}

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validDrivers = map[string]bool{"postgres": true, "mysql": true, "sqlite": true}

// Validate 验证配置
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if !validLogLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("unknown log level %q", c.Log.Level))
	}
	if !validDrivers[c.Database.Driver] {
		errs = append(errs, fmt.Sprintf("unknown database driver %q", c.Database.Driver))
	}
	if c.Skills.AnalysisBudget < 0 {
		errs = append(errs, "analysis_budget must not be negative")
	}
	if c.Skills.SerpDailyLimit < 0 {
		errs = append(errs, "serp_daily_limit must not be negative")
	}
	if c.RateLimit.Enabled && (c.RateLimit.RPS <= 0 || c.RateLimit.Burst <= 0) {
		errs = append(errs, "rate_limit rps and burst must be positive when enabled")
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 && c.Auth.JWTSecret == "" {
		errs = append(errs, "auth enabled but no api_keys or jwt_secret configured")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// Provider 返回某技能的上游配置；未配置时第二个返回值为 false
func (s *SkillsConfig) Provider(skillName string) (ProviderConfig, bool) {
	p, ok := s.Providers[skillName]
	if !ok || !p.Configured() {
		return ProviderConfig{}, false
	}
	return p, true
}

// DSN 返回数据库连接字符串
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "mysql":
		return fmt.Sprintf(
			"%s:%s@tcp(%s:%d)/%s?parseTime=true",
			d.User, d.Password, d.Host, d.Port, d.Name,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}
