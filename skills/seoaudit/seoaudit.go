// =============================================================================
// 🧭 seoaudit — SEO 页面审计技能（L2）
// =============================================================================
// 目录里唯一的 L2 技能：页面抓取走注入客户端（通常是共享网关），
// 机械指标在本地解析，audit_page 再把事实清单按 token 预算裁剪后
// 交给平台分析适配器生成审计摘要。适配器缺席时 extract_meta 仍可用，
// audit_page 则由信封以 PROVIDER_NOT_CONFIGURED 拒绝。
// =============================================================================
package seoaudit

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// Name 技能在目录中的注册名。
const Name = "seoaudit"

const (
	// maxPageBody 页面抓取的字节上限。
	maxPageBody = 2 << 20

	// analysisTask 交给适配器的任务说明。
	analysisTask = "You are an SEO consultant. Review the crawl facts and " +
		"detected issues below and write a short prioritized audit brief: " +
		"top problems first, one concrete fix per problem."
)

// Skill 实现 seoaudit 技能。
type Skill struct {
	logger *zap.Logger
	budget int
}

// Option 配置 seoaudit 技能。
type Option func(*Skill)

// WithAnalysisBudget 设置交给适配器的素材 token 预算。
func WithAnalysisBudget(n int) Option {
	return func(s *Skill) { s.budget = n }
}

// New 创建 seoaudit 技能。
func New(logger *zap.Logger, opts ...Option) *Skill {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Skill{
		logger: logger.With(zap.String("skill", Name)),
		budget: skill.DefaultAnalysisBudget,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name 实现 skill.Handler。
func (s *Skill) Name() string { return Name }

// Info 实现 skill.Handler。
func (s *Skill) Info() skill.Info {
	urlParam := skill.ParamSpec{
		Name: "url", Type: "string", Required: true,
		Description: "Absolute http(s) URL of the page to inspect.",
	}

	return skill.Info{
		Name:            Name,
		Description:     "Crawl a page, extract SEO signals, and draft an audit brief.",
		Tier:            skill.TierL2,
		RequiresClient:  true,
		RequiresAdapter: true,
		Actions: []skill.ActionSpec{
			{
				Name:    "extract_meta",
				Summary: "Fetch a page and report its SEO-relevant metadata.",
				Params:  []skill.ParamSpec{urlParam},
			},
			{
				Name:    "audit_page",
				Summary: "Fetch a page and produce an LLM-backed audit brief.",
				Params:  []skill.ParamSpec{urlParam},
			},
		},
	}
}

// Validate 实现 skill.Handler。
func (s *Skill) Validate(_ string, p skill.Params) error {
	raw := strings.TrimSpace(p.OptionalString("url", ""))
	if raw == "" {
		return nil // 必填检查由信封完成
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return types.NewError(types.ErrInvalidInput,
			`parameter "url" must be an absolute http(s) URL`)
	}
	return nil
}

// Execute 实现 skill.Handler。
func (s *Skill) Execute(ctx context.Context, req *skill.Request) (*skill.Response, error) {
	raw, err := req.Params.RequireString("url")
	if err != nil {
		return nil, err
	}
	pageURL, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, types.NewError(types.ErrInvalidInput, `parameter "url" must be a valid URL`)
	}

	facts, err := s.fetch(ctx, req.Client, pageURL)
	if err != nil {
		return nil, err
	}

	switch req.Action {
	case "extract_meta":
		return s.extractMeta(pageURL.String(), facts), nil
	case "audit_page":
		return s.auditPage(ctx, req.Adapter, pageURL.String(), facts)
	default:
		return nil, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q", req.Action, Name))
	}
}

// fetch 抓取并解析页面。目标地址是参数给定的绝对 URL，客户端只负责
// 出口与限流，不做 BaseURL 拼接。
func (s *Skill) fetch(ctx context.Context, client skill.Client, pageURL *url.URL) (*pageFacts, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL.String(), nil)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidInput, `parameter "url" must be a valid URL`).WithCause(err)
	}
	httpReq.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := client.Do(ctx, httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, types.NewError(types.ErrUpstreamError, "page fetch failed").
			WithCause(err).
			WithRetryable(true)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, skill.MapUpstreamStatus(resp.StatusCode, "fetch "+pageURL.String())
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return nil, types.NewError(types.ErrUpstreamError,
			fmt.Sprintf("page is not HTML (content-type %s)", ct))
	}

	facts, err := parsePage(io.LimitReader(resp.Body, maxPageBody), pageURL)
	if err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "parse page").WithCause(err)
	}
	return facts, nil
}

func (s *Skill) extractMeta(pageURL string, facts *pageFacts) *skill.Response {
	issues := facts.issues()

	var b strings.Builder
	b.WriteString(facts.report(pageURL))
	if len(issues) > 0 {
		fmt.Fprintf(&b, "\n\n%d issue(s) detected:", len(issues))
		for _, issue := range issues {
			fmt.Fprintf(&b, "\n- %s", issue)
		}
	}

	return &skill.Response{
		Result: b.String(),
		Data: map[string]any{
			"title":            facts.Title,
			"meta_description": facts.MetaDescription,
			"canonical":        facts.Canonical,
			"h1_count":         len(facts.H1s),
			"internal_links":   facts.InternalLinks,
			"external_links":   facts.ExternalLinks,
			"images_no_alt":    facts.ImagesNoAlt,
			"word_count":       facts.WordCount,
			"issues":           issues,
		},
	}
}

func (s *Skill) auditPage(ctx context.Context, adapter skill.AnalysisAdapter, pageURL string, facts *pageFacts) (*skill.Response, error) {
	issues := facts.issues()

	var material strings.Builder
	material.WriteString(facts.report(pageURL))
	material.WriteString("\n\ndetected issues:")
	if len(issues) == 0 {
		material.WriteString("\n- none")
	}
	for _, issue := range issues {
		fmt.Fprintf(&material, "\n- %s", issue)
	}

	input, tokens, err := skill.TrimToBudget(material.String(), s.budget)
	if err != nil {
		// 编码表不可用时退回字符近似裁剪，审计不应因此失败
		input = material.String()
		if len(input) > s.budget*4 {
			input = input[:s.budget*4]
		}
		tokens = -1
		s.logger.Warn("token budgeting unavailable, falling back to char trim", zap.Error(err))
	}

	brief, err := adapter.Analyze(ctx, skill.AnalysisRequest{
		Task:   analysisTask,
		Input:  input,
		Budget: s.budget,
	})
	if err != nil {
		return nil, err
	}

	return &skill.Response{
		Result: brief,
		Data: map[string]any{
			"url":          pageURL,
			"issues":       issues,
			"issue_count":  len(issues),
			"input_tokens": tokens,
		},
	}, nil
}
