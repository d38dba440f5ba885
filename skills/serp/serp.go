// =============================================================================
// 🔎 serp — 搜索引擎结果页封装技能（L1）
// =============================================================================
// 走 Serper 风格的 JSON 搜索 API（X-API-KEY 由注入客户端携带）。
// 技能内置一个按自然日滚动的调用配额计数器：达到上限后拒绝继续
// 消耗付费额度，错误按限流语义标记为可重试。
// =============================================================================
package serp

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// Name 技能在目录中的注册名。
const Name = "serp"

const (
	defaultResultCount = 10
	maxResultCount     = 50
)

// Option 配置 serp 技能。
type Option func(*Skill)

// WithDailyLimit 设置每日调用上限，0 表示不限。
func WithDailyLimit(n int) Option {
	return func(s *Skill) { s.dailyLimit = n }
}

// withClock 测试用：替换取当前时间的函数。
func withClock(now func() time.Time) Option {
	return func(s *Skill) { s.now = now }
}

// Skill 实现 serp 技能。
type Skill struct {
	logger     *zap.Logger
	dailyLimit int
	now        func() time.Time

	// 当日配额计数，键为 "2006-01-02"；跨日自动滚动，历史键即弃。
	mu   sync.Mutex
	day  string
	used int
}

// New 创建 serp 技能。
func New(logger *zap.Logger, opts ...Option) *Skill {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Skill{
		logger: logger.With(zap.String("skill", Name)),
		now:    time.Now,
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
	return skill.Info{
		Name:           Name,
		Description:    "Query search engine result pages with a daily call budget.",
		Tier:           skill.TierL1,
		RequiresClient: true,
		Actions: []skill.ActionSpec{
			{
				Name:    "search",
				Summary: "Run a web search and return the organic results.",
				Params: []skill.ParamSpec{
					{Name: "query", Type: "string", Required: true},
					{Name: "num", Type: "int", Description: "1-50, default 10."},
					{Name: "country", Type: "string", Description: "Two-letter country code, e.g. de."},
					{Name: "language", Type: "string", Description: "Interface language, e.g. en."},
				},
			},
			{
				Name:    "related_keywords",
				Summary: "Fetch related search phrases for a query.",
				Params: []skill.ParamSpec{
					{Name: "query", Type: "string", Required: true},
				},
			},
			{
				Name:    "quota",
				Summary: "Show today's remaining call budget.",
			},
		},
	}
}

// Validate 实现 skill.Handler。
func (s *Skill) Validate(action string, p skill.Params) error {
	if action == "search" {
		if n := p.OptionalInt("num", defaultResultCount); n < 1 || n > maxResultCount {
			return types.NewError(types.ErrInvalidInput,
				fmt.Sprintf(`parameter "num" must be between 1 and %d`, maxResultCount))
		}
	}
	return nil
}

// Execute 实现 skill.Handler。
func (s *Skill) Execute(ctx context.Context, req *skill.Request) (*skill.Response, error) {
	switch req.Action {
	case "search":
		if err := s.consumeQuota(); err != nil {
			return nil, err
		}
		return s.search(ctx, req.Client, req.Params)
	case "related_keywords":
		if err := s.consumeQuota(); err != nil {
			return nil, err
		}
		return s.relatedKeywords(ctx, req.Client, req.Params)
	case "quota":
		return s.quota(), nil
	default:
		return nil, types.NewError(types.ErrInvalidAction,
			fmt.Sprintf("unknown action %q for skill %q", req.Action, Name))
	}
}

// --- 配额 ---

// consumeQuota 消耗一次当日配额。超限时按限流语义报错：信封会把它
// 压缩为可重试的 UPSTREAM_ERROR，调度方次日重试即可恢复。
func (s *Skill) consumeQuota() error {
	if s.dailyLimit <= 0 {
		return nil
	}

	today := s.now().UTC().Format("2006-01-02")

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.day != today {
		s.day = today
		s.used = 0
	}
	if s.used >= s.dailyLimit {
		return types.NewError(types.ErrRateLimited,
			fmt.Sprintf("daily search quota of %d calls exhausted", s.dailyLimit)).
			WithHTTPStatus(429)
	}
	s.used++
	return nil
}

func (s *Skill) quota() *skill.Response {
	if s.dailyLimit <= 0 {
		return &skill.Response{
			Result: "no daily quota configured",
			Data:   map[string]any{"limited": false},
		}
	}

	today := s.now().UTC().Format("2006-01-02")

	s.mu.Lock()
	used := s.used
	if s.day != today {
		used = 0
	}
	s.mu.Unlock()

	remaining := s.dailyLimit - used
	return &skill.Response{
		Result: fmt.Sprintf("%d of %d daily calls used, %d remaining", used, s.dailyLimit, remaining),
		Data: map[string]any{
			"limited":   true,
			"limit":     s.dailyLimit,
			"used":      used,
			"remaining": remaining,
		},
	}
}

// --- 上游调用 ---

type organicResult struct {
	Title    string `json:"title"`
	Link     string `json:"link"`
	Snippet  string `json:"snippet"`
	Position int    `json:"position"`
}

type searchResponse struct {
	Organic         []organicResult `json:"organic"`
	RelatedSearches []struct {
		Query string `json:"query"`
	} `json:"relatedSearches"`
}

func (s *Skill) search(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	query, err := p.RequireString("query")
	if err != nil {
		return nil, err
	}

	body := map[string]any{
		"q":   query,
		"num": p.OptionalInt("num", defaultResultCount),
	}
	if gl := p.OptionalString("country", ""); gl != "" {
		body["gl"] = strings.ToLower(gl)
	}
	if hl := p.OptionalString("language", ""); hl != "" {
		body["hl"] = strings.ToLower(hl)
	}

	var out searchResponse
	if err := skill.PostJSON(ctx, client, "/search", body, &out); err != nil {
		return nil, err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d result(s) for %q", len(out.Organic), query)
	links := make([]string, 0, len(out.Organic))
	for _, r := range out.Organic {
		links = append(links, r.Link)
		fmt.Fprintf(&b, "\n%d. %s\n   %s", r.Position, r.Title, r.Link)
		if r.Snippet != "" {
			fmt.Fprintf(&b, "\n   %s", r.Snippet)
		}
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"count": len(out.Organic), "links": links},
	}, nil
}

func (s *Skill) relatedKeywords(ctx context.Context, client skill.Client, p skill.Params) (*skill.Response, error) {
	query, err := p.RequireString("query")
	if err != nil {
		return nil, err
	}

	var out searchResponse
	if err := skill.PostJSON(ctx, client, "/search", map[string]any{"q": query}, &out); err != nil {
		return nil, err
	}

	keywords := make([]string, 0, len(out.RelatedSearches))
	for _, r := range out.RelatedSearches {
		keywords = append(keywords, r.Query)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d related keyword(s) for %q", len(keywords), query)
	for _, k := range keywords {
		b.WriteString("\n")
		b.WriteString(k)
	}

	return &skill.Response{
		Result: b.String(),
		Data:   map[string]any{"count": len(keywords), "keywords": keywords},
	}, nil
}
