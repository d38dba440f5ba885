// =============================================================================
// ✉️ 技能调用信封
// =============================================================================
// Runner 围绕任意 Handler 执行一次完整调用：动作分发 → 参数校验 →
// 客户端/适配器解析 → 结果缓存 → 超时执行 → 错误归类 → 脱敏。
// 失败永远以五种信封错误码之一返回：INVALID_ACTION / INVALID_INPUT /
// PROVIDER_NOT_CONFIGURED / TIMEOUT / UPSTREAM_ERROR。
// 指标、审计、事件与追踪都挂在信封上，技能本体保持纯粹。
// =============================================================================
package skill

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/types"
)

// 超时语义：默认 30s，可按技能或单次调用覆盖，硬上限 120s。
const (
	DefaultTimeout = 30 * time.Second
	MaxTimeout     = 120 * time.Second

	// 可缓存动作未声明 TTL 时的默认值。
	defaultResultTTL = 5 * time.Minute
)

// ClampTimeout 把任意配置值规整到 (0, MaxTimeout] 区间：
// 非正值回落到 DefaultTimeout，超过上限裁剪到 MaxTimeout。
func ClampTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return DefaultTimeout
	}
	if d > MaxTimeout {
		return MaxTimeout
	}
	return d
}

// Invocation 描述一次待执行的调用。
type Invocation struct {
	Skill  string `json:"skill"`
	Action string `json:"action"`
	Params Params `json:"params,omitempty"`
	// Timeout 单次调用的超时覆盖，仍受 MaxTimeout 约束；0 表示沿用配置。
	Timeout time.Duration `json:"timeout,omitempty"`
}

// Metadata 信封元数据。失败时 Code 必为五种信封错误码之一。
type Metadata struct {
	Success      bool            `json:"success"`
	Skill        string          `json:"skill"`
	Action       string          `json:"action"`
	InvocationID string          `json:"invocation_id"`
	Code         types.ErrorCode `json:"code,omitempty"`
	Error        string          `json:"error,omitempty"`
	Retryable    bool            `json:"retryable,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
	CacheHit     bool            `json:"cache_hit,omitempty"`
	Extra        map[string]any  `json:"extra,omitempty"`
}

// Result 是信封的最终产物：文本载荷加结构化元数据。
type Result struct {
	Result   string   `json:"result"`
	Metadata Metadata `json:"metadata"`
}

// MetricsSink 由 internal/metrics 实现。
type MetricsSink interface {
	ObserveInvocation(skill, action, code string, cacheHit bool, duration time.Duration)
}

// ResultCache 由 internal/cache 实现，错误一律视为未命中。
type ResultCache interface {
	GetJSON(ctx context.Context, key string, out any) error
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
}

// AuditEntry 一条调用审计记录，Params 在入队前已脱敏。
type AuditEntry struct {
	InvocationID string          `json:"invocation_id"`
	TenantID     string          `json:"tenant_id,omitempty"`
	UserID       string          `json:"user_id,omitempty"`
	Skill        string          `json:"skill"`
	Action       string          `json:"action"`
	Success      bool            `json:"success"`
	Code         types.ErrorCode `json:"code,omitempty"`
	Error        string          `json:"error,omitempty"`
	DurationMS   int64           `json:"duration_ms"`
	Params       map[string]any  `json:"params,omitempty"`
	Timestamp    time.Time       `json:"timestamp"`
}

// AuditSink 由 internal/audit 实现，Record 不得阻塞调用路径。
type AuditSink interface {
	Record(e AuditEntry)
}

// RunnerConfig 配置信封行为。除 Catalog 外所有协作方都可为空，
// 对应能力自动停用。
type RunnerConfig struct {
	// DefaultTimeout 全局默认超时，非正值回落到 DefaultTimeout 常量
	DefaultTimeout time.Duration
	// Timeouts 按技能名覆盖超时
	Timeouts map[string]time.Duration
	// Resolver 客户端解析器
	Resolver *Resolver
	// Adapter L2 技能的分析适配器
	Adapter AnalysisAdapter
	// Metrics 指标汇
	Metrics MetricsSink
	// Cache 结果缓存
	Cache ResultCache
	// Audit 审计汇
	Audit AuditSink
	// Bus 事件总线
	Bus *Bus
}

// Runner 技能调用信封执行器。
type Runner struct {
	catalog  *Catalog
	cfg      RunnerConfig
	redactor *Redactor
	logger   *zap.Logger
	tracer   trace.Tracer
}

// NewRunner 创建信封执行器。
func NewRunner(catalog *Catalog, cfg RunnerConfig, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg.DefaultTimeout = ClampTimeout(cfg.DefaultTimeout)
	return &Runner{
		catalog:  catalog,
		cfg:      cfg,
		redactor: NewRedactor(),
		logger:   logger.With(zap.String("component", "skill_runner")),
		tracer:   otel.Tracer("skillflow/skill"),
	}
}

// Invoke 执行一次调用并返回信封。失败不以 error 形式上抛：
// 错误码、消息与可重试性都在 Metadata 里。
func (r *Runner) Invoke(ctx context.Context, inv Invocation) *Result {
	start := time.Now()
	id := uuid.New().String()
	ctx = types.WithInvocationID(ctx, id)
	ctx = types.WithSkillName(ctx, inv.Skill)

	ctx, span := r.tracer.Start(ctx, "skill.invoke", trace.WithAttributes(
		attribute.String("skill.name", inv.Skill),
		attribute.String("skill.action", inv.Action),
	))
	defer span.End()

	r.publish(EventStarted, inv, id, "", 0)

	h, ok := r.catalog.Get(inv.Skill)
	if !ok {
		return r.fail(ctx, inv, id, start, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown skill %q; registered skills: %s",
				inv.Skill, strings.Join(r.catalog.List(), ", "))))
	}
	info := h.Info()

	// 动作分发：未知或缺失的动作列出有效动作。
	act, ok := info.Action(inv.Action)
	if inv.Action == "" || !ok {
		return r.fail(ctx, inv, id, start, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q; valid actions: %s",
				inv.Action, inv.Skill, strings.Join(info.ActionNames(), ", "))))
	}

	// 参数校验：规格必填检查先行，技能自定义校验随后，均不触网。
	if err := validateRequired(act, inv.Params); err != nil {
		return r.fail(ctx, inv, id, start, asInvalidInput(err))
	}
	if err := h.Validate(inv.Action, inv.Params); err != nil {
		return r.fail(ctx, inv, id, start, asInvalidInput(err))
	}

	// 客户端与适配器解析。
	req := &Request{Action: inv.Action, Params: inv.Params, InvocationID: id}
	if info.RequiresClient {
		if r.cfg.Resolver == nil {
			return r.fail(ctx, inv, id, start, types.NewError(types.ErrProviderNotConfigured,
				fmt.Sprintf("no client resolver configured for skill %q", inv.Skill)))
		}
		client, err := r.cfg.Resolver.Resolve(inv.Skill)
		if err != nil {
			return r.fail(ctx, inv, id, start, r.classify(ctx, err))
		}
		req.Client = client
	}
	if info.RequiresAdapter {
		if r.cfg.Adapter == nil {
			return r.fail(ctx, inv, id, start, types.NewError(types.ErrProviderNotConfigured,
				fmt.Sprintf("skill %q requires the platform analysis adapter", inv.Skill)))
		}
		req.Adapter = r.cfg.Adapter
	}

	// 结果缓存：只读动作命中时直接返回。
	var cacheKey string
	if act.Cacheable && r.cfg.Cache != nil {
		cacheKey = resultCacheKey(inv.Skill, inv.Action, inv.Params)
		var cached Result
		if err := r.cfg.Cache.GetJSON(ctx, cacheKey, &cached); err == nil {
			dur := time.Since(start)
			cached.Metadata.CacheHit = true
			cached.Metadata.InvocationID = id
			cached.Metadata.DurationMS = dur.Milliseconds()
			r.observe(inv, "", true, dur)
			r.publish(EventSucceeded, inv, id, "", dur.Milliseconds())
			span.SetAttributes(attribute.Bool("skill.cache_hit", true))
			return &cached
		}
	}

	// 超时执行：取消信号到达即中止。
	execCtx, cancel := context.WithTimeout(ctx, r.effectiveTimeout(inv))
	defer cancel()

	resp, err := h.Execute(execCtx, req)
	if err != nil {
		return r.fail(ctx, inv, id, start, r.classify(execCtx, err))
	}
	if resp == nil {
		resp = &Response{}
	}

	dur := time.Since(start)
	result := &Result{
		Result: r.redactor.Redact(resp.Result),
		Metadata: Metadata{
			Success:      true,
			Skill:        inv.Skill,
			Action:       inv.Action,
			InvocationID: id,
			DurationMS:   dur.Milliseconds(),
			Extra:        resp.Data,
		},
	}

	span.SetAttributes(attribute.Bool("skill.success", true))
	r.observe(inv, "", false, dur)
	r.audit(ctx, inv, id, true, "", "", dur)
	r.publish(EventSucceeded, inv, id, "", dur.Milliseconds())
	r.logger.Info("skill invocation succeeded",
		zap.String("skill", inv.Skill),
		zap.String("action", inv.Action),
		zap.String("invocation_id", id),
		zap.Duration("duration", dur))

	if cacheKey != "" {
		ttl := act.CacheTTL
		if ttl <= 0 {
			ttl = defaultResultTTL
		}
		if err := r.cfg.Cache.SetJSON(ctx, cacheKey, result, ttl); err != nil {
			r.logger.Debug("result cache write failed", zap.Error(err))
		}
	}
	return result
}

// effectiveTimeout 解析本次调用的超时：调用覆盖 > 技能配置 > 全局默认，
// 每一层都经过 ClampTimeout。
func (r *Runner) effectiveTimeout(inv Invocation) time.Duration {
	if inv.Timeout > 0 {
		return ClampTimeout(inv.Timeout)
	}
	if d, ok := r.cfg.Timeouts[inv.Skill]; ok && d > 0 {
		return ClampTimeout(d)
	}
	return r.cfg.DefaultTimeout
}

// classify 把任意失败归类为信封错误码。超时与取消优先；已结构化的
// 非信封错误压缩为 UPSTREAM_ERROR，保留消息、HTTP 状态与可重试性。
func (r *Runner) classify(ctx context.Context, err error) *types.Error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
		return types.NewError(types.ErrTimeout, "invocation timed out").WithCause(err)
	}
	if e, ok := types.AsError(err); ok {
		switch e.Code {
		case types.ErrInvalidAction, types.ErrInvalidInput, types.ErrProviderNotConfigured,
			types.ErrTimeout, types.ErrUpstreamError:
			return e
		default:
			return types.NewError(types.ErrUpstreamError, e.Message).
				WithRetryable(e.Retryable).
				WithHTTPStatus(e.HTTPStatus).
				WithCause(e.Cause)
		}
	}
	return types.NewError(types.ErrUpstreamError, err.Error()).WithCause(err)
}

// fail 组装失败信封：消息脱敏、指标、审计、事件、追踪一次完成。
func (r *Runner) fail(ctx context.Context, inv Invocation, id string, start time.Time, e *types.Error) *Result {
	dur := time.Since(start)
	msg := r.redactor.Redact(e.Message)

	span := trace.SpanFromContext(ctx)
	span.SetStatus(codes.Error, string(e.Code))
	span.SetAttributes(attribute.String("skill.error_code", string(e.Code)))

	r.observe(inv, string(e.Code), false, dur)
	r.audit(ctx, inv, id, false, e.Code, msg, dur)
	r.publish(EventFailed, inv, id, e.Code, dur.Milliseconds())
	r.logger.Warn("skill invocation failed",
		zap.String("skill", inv.Skill),
		zap.String("action", inv.Action),
		zap.String("invocation_id", id),
		zap.String("code", string(e.Code)),
		zap.Bool("retryable", e.Retryable),
		zap.Duration("duration", dur))

	return &Result{
		Metadata: Metadata{
			Success:      false,
			Skill:        inv.Skill,
			Action:       inv.Action,
			InvocationID: id,
			Code:         e.Code,
			Error:        msg,
			Retryable:    e.Retryable,
			DurationMS:   dur.Milliseconds(),
		},
	}
}

func (r *Runner) observe(inv Invocation, code string, cacheHit bool, dur time.Duration) {
	if r.cfg.Metrics == nil {
		return
	}
	if code == "" {
		code = "ok"
	}
	r.cfg.Metrics.ObserveInvocation(inv.Skill, inv.Action, code, cacheHit, dur)
}

func (r *Runner) audit(ctx context.Context, inv Invocation, id string, success bool, code types.ErrorCode, msg string, dur time.Duration) {
	if r.cfg.Audit == nil {
		return
	}
	entry := AuditEntry{
		InvocationID: id,
		Skill:        inv.Skill,
		Action:       inv.Action,
		Success:      success,
		Code:         code,
		Error:        msg,
		DurationMS:   dur.Milliseconds(),
		Params:       r.redactor.RedactParams(inv.Params),
		Timestamp:    time.Now().UTC(),
	}
	if tenant, ok := types.TenantID(ctx); ok {
		entry.TenantID = tenant
	}
	if user, ok := types.UserID(ctx); ok {
		entry.UserID = user
	}
	r.cfg.Audit.Record(entry)
}

func (r *Runner) publish(t EventType, inv Invocation, id string, code types.ErrorCode, durMS int64) {
	if r.cfg.Bus == nil {
		return
	}
	r.cfg.Bus.Publish(Event{
		Type:         t,
		Skill:        inv.Skill,
		Action:       inv.Action,
		InvocationID: id,
		Code:         code,
		DurationMS:   durMS,
		Timestamp:    time.Now(),
	})
}

// validateRequired 按动作规格检查必填参数。字符串必填项要求非空白，
// 带枚举的字符串限定取值。
func validateRequired(act ActionSpec, p Params) error {
	for _, spec := range act.Params {
		if !spec.Required {
			continue
		}
		switch spec.Type {
		case "string":
			if len(spec.Enum) > 0 {
				if _, err := p.RequireOneOf(spec.Name, spec.Enum...); err != nil {
					return err
				}
				continue
			}
			if _, err := p.RequireString(spec.Name); err != nil {
				return err
			}
		case "int":
			if _, err := p.RequireInt(spec.Name); err != nil {
				return err
			}
		default:
			if _, ok := p[spec.Name]; !ok {
				return types.NewError(types.ErrInvalidInput,
					fmt.Sprintf("missing required parameter %q", spec.Name))
			}
		}
	}
	return nil
}

// asInvalidInput 把校验错误规整为 INVALID_INPUT，已结构化的错误原样保留。
func asInvalidInput(err error) *types.Error {
	if e, ok := types.AsError(err); ok {
		return e
	}
	return types.NewError(types.ErrInvalidInput, err.Error())
}

// resultCacheKey 由技能、动作与规范化参数生成缓存键。
// json.Marshal 对 map 键排序，同参数的调用得到稳定摘要。
func resultCacheKey(skillName, action string, p Params) string {
	payload, _ := json.Marshal(p)
	sum := sha256.Sum256(append([]byte(skillName+"|"+action+"|"), payload...))
	return "skill:result:" + skillName + ":" + action + ":" + hex.EncodeToString(sum[:8])
}
