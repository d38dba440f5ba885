// =============================================================================
// 🌐 注入式上游客户端
// =============================================================================
// 技能从不直接持有密钥或构造裸 http.Client：所有上游调用都经由注入的
// Client 完成。HTTPClient 负责凭据注入、静态请求头与上游限流；Resolver
// 按「专属 Provider 客户端优先，网关客户端兜底」的顺序解析。
// =============================================================================
package skill

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/BaSui01/skillflow/internal/tlsutil"
	"github.com/BaSui01/skillflow/types"
)

// 上游响应体读取上限，防止异常响应撑爆内存。
const maxUpstreamBody = 1 << 20

// Client 是技能可见的最小上游接口。
type Client interface {
	// Do 执行一次 HTTP 请求，实现方负责注入凭据与限流。
	Do(ctx context.Context, req *http.Request) (*http.Response, error)
	// BaseURL 返回上游基础地址，末尾不含斜杠。
	BaseURL() string
}

// HTTPClientConfig 配置一个注入式客户端。
type HTTPClientConfig struct {
	// BaseURL 上游基础地址
	BaseURL string
	// AuthHeader 凭据请求头名，如 "Authorization"、"X-Api-Key"
	AuthHeader string
	// AuthScheme 凭据前缀，如 "Bearer"；为空则直接写入密钥
	AuthScheme string
	// Secret 凭据本体
	Secret string
	// Headers 附加的静态请求头
	Headers map[string]string
	// Timeout 底层 http.Client 超时（信封超时之外的最后防线）
	Timeout time.Duration
	// RPS 上游限流速率，0 表示不限流
	RPS float64
	// Burst 限流突发额度
	Burst int
}

// HTTPClient 是 Client 的标准实现。
type HTTPClient struct {
	baseURL    string
	authHeader string
	authValue  string
	headers    map[string]string
	hc         *http.Client
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// NewHTTPClient 创建注入式客户端。
func NewHTTPClient(cfg HTTPClientConfig, logger *zap.Logger) *HTTPClient {
	if logger == nil {
		logger = zap.NewNop()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}

	authValue := cfg.Secret
	if cfg.AuthScheme != "" && cfg.Secret != "" {
		authValue = cfg.AuthScheme + " " + cfg.Secret
	}

	var limiter *rate.Limiter
	if cfg.RPS > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RPS), burst)
	}

	return &HTTPClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		authHeader: cfg.AuthHeader,
		authValue:  authValue,
		headers:    cfg.Headers,
		hc:         tlsutil.SecureHTTPClient(timeout),
		limiter:    limiter,
		logger:     logger.With(zap.String("component", "http_client")),
	}
}

// Do 实现 Client。限流等待尊重 ctx 取消。
func (c *HTTPClient) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	for k, v := range c.headers {
		if req.Header.Get(k) == "" {
			req.Header.Set(k, v)
		}
	}
	if c.authHeader != "" && c.authValue != "" && req.Header.Get(c.authHeader) == "" {
		req.Header.Set(c.authHeader, c.authValue)
	}
	if req.Header.Get("User-Agent") == "" {
		req.Header.Set("User-Agent", "skillflow")
	}

	return c.hc.Do(req.WithContext(ctx))
}

// BaseURL 实现 Client。
func (c *HTTPClient) BaseURL() string { return c.baseURL }

// Resolver 按技能名解析客户端：专属 Provider 优先，网关兜底。
type Resolver struct {
	mu        sync.RWMutex
	providers map[string]Client
	gateway   Client
}

// NewResolver 创建空的解析器。
func NewResolver() *Resolver {
	return &Resolver{providers: make(map[string]Client)}
}

// SetProvider 为指定技能设置专属客户端。
func (r *Resolver) SetProvider(skillName string, c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.providers[skillName] = c
}

// SetGateway 设置共享网关客户端。
func (r *Resolver) SetGateway(c Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateway = c
}

// Resolve 返回技能可用的客户端。两者皆缺时返回 PROVIDER_NOT_CONFIGURED，
// 不可重试。
func (r *Resolver) Resolve(skillName string) (Client, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if c, ok := r.providers[skillName]; ok && c != nil {
		return c, nil
	}
	if r.gateway != nil {
		return r.gateway, nil
	}
	return nil, types.NewError(types.ErrProviderNotConfigured,
		fmt.Sprintf("no provider or gateway client configured for skill %q", skillName)).
		WithSkill(skillName)
}

// --- 技能共用的 JSON 请求辅助 ---

// GetJSON 发起 GET 并把 2xx 响应解码到 out。
func GetJSON(ctx context.Context, c Client, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(c.BaseURL(), path), nil)
	if err != nil {
		return types.NewError(types.ErrUpstreamError, "build upstream request").WithCause(err)
	}
	return DoJSON(ctx, c, req, out)
}

// PostJSON 以 JSON 体发起 POST 并把 2xx 响应解码到 out。
func PostJSON(ctx context.Context, c Client, path string, body any, out any) error {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return types.NewError(types.ErrUpstreamError, "encode upstream request").WithCause(err)
		}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.BaseURL(), path), &buf)
	if err != nil {
		return types.NewError(types.ErrUpstreamError, "build upstream request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	return DoJSON(ctx, c, req, out)
}

// PostForm 以表单体发起 POST 并把 2xx 响应解码到 out。
func PostForm(ctx context.Context, c Client, path string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, joinURL(c.BaseURL(), path),
		strings.NewReader(form.Encode()))
	if err != nil {
		return types.NewError(types.ErrUpstreamError, "build upstream request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return DoJSON(ctx, c, req, out)
}

// DoJSON 执行请求并解码响应。非 2xx 状态经 MapUpstreamStatus 转为结构化
// 错误；ctx 超时与取消原样上抛，由信封统一归类为 TIMEOUT。
func DoJSON(ctx context.Context, c Client, req *http.Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return err
		}
		return types.NewError(types.ErrUpstreamError, "upstream request failed").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return MapUpstreamStatus(resp.StatusCode, readUpstreamErrMsg(resp))
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxUpstreamBody))
		return nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUpstreamBody))
	if err != nil {
		return types.NewError(types.ErrUpstreamError, "read upstream response").
			WithCause(err).
			WithRetryable(true)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return types.NewError(types.ErrUpstreamError, "decode upstream response").WithCause(err)
	}
	return nil
}

// MapUpstreamStatus 将上游 HTTP 状态映射为结构化错误：
// 401/403/404 不可重试，408 归类 TIMEOUT，429 与 5xx 可重试。
func MapUpstreamStatus(status int, msg string) *types.Error {
	if msg == "" {
		msg = http.StatusText(status)
	}
	switch {
	case status == http.StatusUnauthorized || status == http.StatusForbidden:
		return types.NewError(types.ErrUpstreamError, "upstream rejected credentials: "+msg).
			WithHTTPStatus(status)
	case status == http.StatusNotFound:
		return types.NewError(types.ErrUpstreamError, "upstream resource not found: "+msg).
			WithHTTPStatus(status)
	case status == http.StatusRequestTimeout:
		return types.NewError(types.ErrTimeout, msg).WithHTTPStatus(status)
	case status == http.StatusTooManyRequests:
		return types.NewError(types.ErrUpstreamError, "upstream rate limited: "+msg).
			WithHTTPStatus(status).
			WithRetryable(true)
	case status >= 500:
		return types.NewError(types.ErrUpstreamError, msg).
			WithHTTPStatus(status).
			WithRetryable(true)
	default:
		return types.NewError(types.ErrUpstreamError, msg).WithHTTPStatus(status)
	}
}

// readUpstreamErrMsg 尽力从错误响应中提取可读消息。
func readUpstreamErrMsg(resp *http.Response) string {
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil || len(body) == 0 {
		return ""
	}

	var wrapped struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		if wrapped.Error.Message != "" {
			return wrapped.Error.Message
		}
		if wrapped.Message != "" {
			return wrapped.Message
		}
	}

	s := strings.TrimSpace(string(body))
	if len(s) > 256 {
		s = s[:256]
	}
	return s
}

func joinURL(base, path string) string {
	if path == "" {
		return base
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return base + path
}
