package skill

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/skillflow/types"
)

// --- 测试桩 ---

type stubHandler struct {
	name       string
	info       Info
	validateFn func(action string, p Params) error
	executeFn  func(ctx context.Context, req *Request) (*Response, error)
	calls      atomic.Int64
}

func (s *stubHandler) Name() string { return s.name }
func (s *stubHandler) Info() Info   { return s.info }

func (s *stubHandler) Validate(action string, p Params) error {
	if s.validateFn != nil {
		return s.validateFn(action, p)
	}
	return nil
}

func (s *stubHandler) Execute(ctx context.Context, req *Request) (*Response, error) {
	s.calls.Add(1)
	if s.executeFn != nil {
		return s.executeFn(ctx, req)
	}
	return &Response{Result: "ok"}, nil
}

func newStubHandler(name string, actions ...ActionSpec) *stubHandler {
	return &stubHandler{
		name: name,
		info: Info{Name: name, Tier: TierL0, Actions: actions},
	}
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newMapCache() *mapCache { return &mapCache{data: make(map[string][]byte)} }

func (m *mapCache) GetJSON(_ context.Context, key string, out any) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.data[key]
	if !ok {
		return assert.AnError
	}
	return json.Unmarshal(b, out)
}

func (m *mapCache) SetJSON(_ context.Context, key string, v any, _ time.Duration) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
	m.sets++
	return nil
}

type recordingMetrics struct {
	mu      sync.Mutex
	entries []string
}

func (r *recordingMetrics) ObserveInvocation(skillName, action, code string, cacheHit bool, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	suffix := ""
	if cacheHit {
		suffix = "+cache"
	}
	r.entries = append(r.entries, skillName+"/"+action+"/"+code+suffix)
}

type recordingAudit struct {
	mu      sync.Mutex
	entries []AuditEntry
}

func (r *recordingAudit) Record(e AuditEntry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, e)
}

type markerClient struct{ tag string }

func (m *markerClient) Do(_ context.Context, _ *http.Request) (*http.Response, error) {
	return nil, assert.AnError
}
func (m *markerClient) BaseURL() string { return "http://" + m.tag }

// --- 测试 ---

func TestRunner_UnknownSkill(t *testing.T) {
	t.Parallel()

	cat := NewCatalog()
	require.NoError(t, cat.Register(newStubHandler("discord", ActionSpec{Name: "send_message"})))
	r := NewRunner(cat, RunnerConfig{}, nil)

	res := r.Invoke(context.Background(), Invocation{Skill: "nope", Action: "x"})

	assert.False(t, res.Metadata.Success)
	assert.Equal(t, types.ErrInvalidAction, res.Metadata.Code)
	assert.False(t, res.Metadata.Retryable)
	assert.Contains(t, res.Metadata.Error, "discord")
}

func TestRunner_UnknownAction(t *testing.T) {
	t.Parallel()

	h := newStubHandler("calibre",
		ActionSpec{Name: "search_books"},
		ActionSpec{Name: "get_book"},
	)
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))
	r := NewRunner(cat, RunnerConfig{}, nil)

	for _, action := range []string{"", "burn_book"} {
		res := r.Invoke(context.Background(), Invocation{Skill: "calibre", Action: action})
		assert.Equal(t, types.ErrInvalidAction, res.Metadata.Code)
		assert.Contains(t, res.Metadata.Error, "get_book, search_books")
	}
	assert.Equal(t, int64(0), h.calls.Load())
}

func TestRunner_RequiredParamValidation(t *testing.T) {
	t.Parallel()

	h := newStubHandler("deepl", ActionSpec{
		Name: "translate",
		Params: []ParamSpec{
			{Name: "text", Type: "string", Required: true},
			{Name: "target_lang", Type: "string", Required: true},
		},
	})
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))
	r := NewRunner(cat, RunnerConfig{}, nil)

	tests := []struct {
		name   string
		params Params
	}{
		{"missing all", nil},
		{"missing one", Params{"text": "hallo"}},
		{"whitespace", Params{"text": " ", "target_lang": "EN"}},
		{"wrong type", Params{"text": 7, "target_lang": "EN"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Invoke(context.Background(), Invocation{Skill: "deepl", Action: "translate", Params: tt.params})
			assert.Equal(t, types.ErrInvalidInput, res.Metadata.Code)
			assert.False(t, res.Metadata.Retryable)
		})
	}
	assert.Equal(t, int64(0), h.calls.Load(), "validation must run before any execution")
}

func TestRunner_HandlerValidateFailure(t *testing.T) {
	t.Parallel()

	h := newStubHandler("serp", ActionSpec{Name: "search"})
	h.validateFn = func(string, Params) error {
		return types.NewError(types.ErrInvalidInput, "num must be between 1 and 100")
	}
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))
	r := NewRunner(cat, RunnerConfig{}, nil)

	res := r.Invoke(context.Background(), Invocation{Skill: "serp", Action: "search"})
	assert.Equal(t, types.ErrInvalidInput, res.Metadata.Code)
	assert.Contains(t, res.Metadata.Error, "between 1 and 100")
}

func TestRunner_ClientResolution(t *testing.T) {
	t.Parallel()

	newClientSkill := func() *stubHandler {
		h := newStubHandler("jellyfin", ActionSpec{Name: "latest_media"})
		h.info.Tier = TierL1
		h.info.RequiresClient = true
		return h
	}

	t.Run("no resolver", func(t *testing.T) {
		t.Parallel()
		cat := NewCatalog()
		require.NoError(t, cat.Register(newClientSkill()))
		r := NewRunner(cat, RunnerConfig{}, nil)

		res := r.Invoke(context.Background(), Invocation{Skill: "jellyfin", Action: "latest_media"})
		assert.Equal(t, types.ErrProviderNotConfigured, res.Metadata.Code)
		assert.False(t, res.Metadata.Retryable)
	})

	t.Run("empty resolver", func(t *testing.T) {
		t.Parallel()
		cat := NewCatalog()
		require.NoError(t, cat.Register(newClientSkill()))
		r := NewRunner(cat, RunnerConfig{Resolver: NewResolver()}, nil)

		res := r.Invoke(context.Background(), Invocation{Skill: "jellyfin", Action: "latest_media"})
		assert.Equal(t, types.ErrProviderNotConfigured, res.Metadata.Code)
	})

	t.Run("provider preferred over gateway", func(t *testing.T) {
		t.Parallel()
		h := newClientSkill()
		var seen Client
		h.executeFn = func(_ context.Context, req *Request) (*Response, error) {
			seen = req.Client
			return &Response{Result: "ok"}, nil
		}
		cat := NewCatalog()
		require.NoError(t, cat.Register(h))

		resolver := NewResolver()
		resolver.SetGateway(&markerClient{tag: "gateway"})
		resolver.SetProvider("jellyfin", &markerClient{tag: "provider"})
		r := NewRunner(cat, RunnerConfig{Resolver: resolver}, nil)

		res := r.Invoke(context.Background(), Invocation{Skill: "jellyfin", Action: "latest_media"})
		require.True(t, res.Metadata.Success)
		assert.Equal(t, "http://provider", seen.BaseURL())
	})

	t.Run("gateway fallback", func(t *testing.T) {
		t.Parallel()
		h := newClientSkill()
		var seen Client
		h.executeFn = func(_ context.Context, req *Request) (*Response, error) {
			seen = req.Client
			return &Response{Result: "ok"}, nil
		}
		cat := NewCatalog()
		require.NoError(t, cat.Register(h))

		resolver := NewResolver()
		resolver.SetGateway(&markerClient{tag: "gateway"})
		r := NewRunner(cat, RunnerConfig{Resolver: resolver}, nil)

		res := r.Invoke(context.Background(), Invocation{Skill: "jellyfin", Action: "latest_media"})
		require.True(t, res.Metadata.Success)
		assert.Equal(t, "http://gateway", seen.BaseURL())
	})
}

func TestRunner_AdapterRequired(t *testing.T) {
	t.Parallel()

	h := newStubHandler("seoaudit", ActionSpec{Name: "audit_page"})
	h.info.Tier = TierL2
	h.info.RequiresAdapter = true
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))
	r := NewRunner(cat, RunnerConfig{}, nil)

	res := r.Invoke(context.Background(), Invocation{Skill: "seoaudit", Action: "audit_page"})
	assert.Equal(t, types.ErrProviderNotConfigured, res.Metadata.Code)
	assert.Contains(t, res.Metadata.Error, "analysis adapter")
}

func TestRunner_Timeout(t *testing.T) {
	t.Parallel()

	h := newStubHandler("transmission", ActionSpec{Name: "list_torrents"})
	h.executeFn = func(ctx context.Context, _ *Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))
	r := NewRunner(cat, RunnerConfig{}, nil)

	start := time.Now()
	res := r.Invoke(context.Background(), Invocation{
		Skill:   "transmission",
		Action:  "list_torrents",
		Timeout: 30 * time.Millisecond,
	})

	assert.Less(t, time.Since(start), 5*time.Second)
	assert.Equal(t, types.ErrTimeout, res.Metadata.Code)
	assert.True(t, res.Metadata.Retryable, "timeouts are retryable")
}

func TestRunner_CallerCancellation(t *testing.T) {
	t.Parallel()

	h := newStubHandler("discord", ActionSpec{Name: "list_messages"})
	h.executeFn = func(ctx context.Context, _ *Request) (*Response, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))
	r := NewRunner(cat, RunnerConfig{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	res := r.Invoke(ctx, Invocation{Skill: "discord", Action: "list_messages"})
	assert.Equal(t, types.ErrTimeout, res.Metadata.Code)
}

func TestRunner_UpstreamErrorClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		err           error
		wantRetryable bool
	}{
		{"plain error", assert.AnError, false},
		{"structured 503", types.NewError(types.ErrUpstreamError, "bad gateway").WithHTTPStatus(503).WithRetryable(true), true},
		{"structured 404", types.NewError(types.ErrUpstreamError, "not found").WithHTTPStatus(404), false},
		{"platform code squashed", types.NewError(types.ErrRateLimited, "slow down").WithRetryable(true), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			h := newStubHandler("serp", ActionSpec{Name: "search"})
			h.executeFn = func(context.Context, *Request) (*Response, error) {
				return nil, tt.err
			}
			cat := NewCatalog()
			require.NoError(t, cat.Register(h))
			r := NewRunner(cat, RunnerConfig{}, nil)

			res := r.Invoke(context.Background(), Invocation{Skill: "serp", Action: "search"})
			assert.Equal(t, types.ErrUpstreamError, res.Metadata.Code)
			assert.Equal(t, tt.wantRetryable, res.Metadata.Retryable)
		})
	}
}

func TestRunner_ErrorMessageRedacted(t *testing.T) {
	t.Parallel()

	h := newStubHandler("serp", ActionSpec{Name: "search"})
	h.executeFn = func(context.Context, *Request) (*Response, error) {
		return nil, types.NewError(types.ErrUpstreamError,
			"request to /search?api_key=sk-secret-999 rejected")
	}
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))
	r := NewRunner(cat, RunnerConfig{}, nil)

	res := r.Invoke(context.Background(), Invocation{Skill: "serp", Action: "search"})
	assert.NotContains(t, res.Metadata.Error, "sk-secret-999")
	assert.Contains(t, res.Metadata.Error, Redacted)
}

func TestRunner_SuccessEnvelope(t *testing.T) {
	t.Parallel()

	h := newStubHandler("textkit", ActionSpec{Name: "stats"})
	h.executeFn = func(_ context.Context, req *Request) (*Response, error) {
		return &Response{
			Result: "analyzed with token=tok-abc embedded",
			Data:   map[string]any{"words": 3},
		}, nil
	}
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))
	r := NewRunner(cat, RunnerConfig{}, nil)

	res := r.Invoke(context.Background(), Invocation{Skill: "textkit", Action: "stats"})

	require.True(t, res.Metadata.Success)
	assert.Empty(t, res.Metadata.Code, "success implies empty code")
	assert.Equal(t, "textkit", res.Metadata.Skill)
	assert.Equal(t, "stats", res.Metadata.Action)
	assert.NotEmpty(t, res.Metadata.InvocationID)
	assert.GreaterOrEqual(t, res.Metadata.DurationMS, int64(0))
	assert.Equal(t, map[string]any{"words": 3}, res.Metadata.Extra)
	assert.NotContains(t, res.Result, "tok-abc", "result payload passes redaction")
}

func TestRunner_ResultCache(t *testing.T) {
	t.Parallel()

	h := newStubHandler("calibre", ActionSpec{Name: "search_books", Cacheable: true, CacheTTL: time.Minute})
	h.executeFn = func(context.Context, *Request) (*Response, error) {
		return &Response{Result: "2 books found"}, nil
	}
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))
	cache := newMapCache()
	r := NewRunner(cat, RunnerConfig{Cache: cache}, nil)

	inv := Invocation{Skill: "calibre", Action: "search_books", Params: Params{"query": "dune"}}

	first := r.Invoke(context.Background(), inv)
	require.True(t, first.Metadata.Success)
	assert.False(t, first.Metadata.CacheHit)
	assert.Equal(t, 1, cache.sets)

	second := r.Invoke(context.Background(), inv)
	require.True(t, second.Metadata.Success)
	assert.True(t, second.Metadata.CacheHit)
	assert.Equal(t, "2 books found", second.Result)
	assert.NotEqual(t, first.Metadata.InvocationID, second.Metadata.InvocationID)
	assert.Equal(t, int64(1), h.calls.Load())

	// 参数不同则键不同，不命中
	third := r.Invoke(context.Background(), Invocation{
		Skill: "calibre", Action: "search_books", Params: Params{"query": "foundation"},
	})
	assert.False(t, third.Metadata.CacheHit)
	assert.Equal(t, int64(2), h.calls.Load())
}

func TestRunner_MetricsEventsAudit(t *testing.T) {
	t.Parallel()

	h := newStubHandler("discord", ActionSpec{Name: "send_message"})
	cat := NewCatalog()
	require.NoError(t, cat.Register(h))

	metrics := &recordingMetrics{}
	audit := &recordingAudit{}
	bus := NewBus(nil)
	defer bus.Close()

	events, cancel := bus.Subscribe(8)
	defer cancel()

	r := NewRunner(cat, RunnerConfig{Metrics: metrics, Audit: audit, Bus: bus}, nil)

	ctx := types.WithTenantID(context.Background(), "acme")
	res := r.Invoke(ctx, Invocation{
		Skill:  "discord",
		Action: "send_message",
		Params: Params{"channel": "general", "token": "should-not-persist"},
	})
	require.True(t, res.Metadata.Success)

	_ = r.Invoke(ctx, Invocation{Skill: "discord", Action: "bogus"})

	// 指标：一次成功 + 一次 INVALID_ACTION
	metrics.mu.Lock()
	assert.Equal(t, []string{
		"discord/send_message/ok",
		"discord/bogus/INVALID_ACTION",
	}, metrics.entries)
	metrics.mu.Unlock()

	// 事件：started/succeeded/started/failed
	var got []EventType
	for len(got) < 4 {
		select {
		case e := <-events:
			got = append(got, e.Type)
		case <-time.After(time.Second):
			t.Fatalf("expected 4 events, got %v", got)
		}
	}
	assert.Equal(t, []EventType{EventStarted, EventSucceeded, EventStarted, EventFailed}, got)

	// 审计：参数已脱敏，租户透传
	audit.mu.Lock()
	defer audit.mu.Unlock()
	require.Len(t, audit.entries, 2)
	assert.Equal(t, "acme", audit.entries[0].TenantID)
	assert.True(t, audit.entries[0].Success)
	assert.Equal(t, Redacted, audit.entries[0].Params["token"])
	assert.Equal(t, types.ErrInvalidAction, audit.entries[1].Code)
}

func TestRunner_EffectiveTimeoutPrecedence(t *testing.T) {
	t.Parallel()

	cat := NewCatalog()
	r := NewRunner(cat, RunnerConfig{
		DefaultTimeout: 10 * time.Second,
		Timeouts:       map[string]time.Duration{"slow": 90 * time.Second},
	}, nil)

	assert.Equal(t, 10*time.Second, r.effectiveTimeout(Invocation{Skill: "other"}))
	assert.Equal(t, 90*time.Second, r.effectiveTimeout(Invocation{Skill: "slow"}))
	assert.Equal(t, 5*time.Second, r.effectiveTimeout(Invocation{Skill: "slow", Timeout: 5 * time.Second}))
	assert.Equal(t, MaxTimeout, r.effectiveTimeout(Invocation{Skill: "slow", Timeout: time.Hour}))
}

// 属性：任何配置值经 ClampTimeout 后都落在 (0, MaxTimeout]，
// 非正回落默认、超上限裁剪、区间内恒等。
func TestProperty_ClampTimeout(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200

	properties := gopter.NewProperties(parameters)

	properties.Property("clamped timeout is always in (0, MaxTimeout]", prop.ForAll(
		func(ms int64) bool {
			d := ClampTimeout(time.Duration(ms) * time.Millisecond)
			return d > 0 && d <= MaxTimeout
		},
		gen.Int64Range(-1_000_000, 1_000_000),
	))

	properties.Property("non-positive values fall back to the default", prop.ForAll(
		func(ms int64) bool {
			return ClampTimeout(time.Duration(-ms)*time.Millisecond) == DefaultTimeout
		},
		gen.Int64Range(0, 1_000_000),
	))

	properties.Property("in-range values are unchanged", prop.ForAll(
		func(ms int64) bool {
			d := time.Duration(ms) * time.Millisecond
			return ClampTimeout(d) == d
		},
		gen.Int64Range(1, MaxTimeout.Milliseconds()),
	))

	properties.TestingRun(t)
}

func TestResultCacheKey_Stable(t *testing.T) {
	t.Parallel()

	a := resultCacheKey("calibre", "search_books", Params{"query": "dune", "limit": 5})
	b := resultCacheKey("calibre", "search_books", Params{"limit": 5, "query": "dune"})
	c := resultCacheKey("calibre", "search_books", Params{"query": "other"})

	assert.Equal(t, a, b, "key is independent of map iteration order")
	assert.NotEqual(t, a, c)
	assert.Contains(t, a, "skill:result:calibre:search_books:")
}
