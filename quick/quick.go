// =============================================================================
// Package quick — One-Line Skill Platform Construction
// =============================================================================
// Provides a convenience entry point for embedding the skill catalog and the
// invocation envelope with minimal boilerplate. Delegates to skill.Catalog
// and skill.Runner internally.
//
// The package lives under quick/ (not root) so the root facade can re-export
// it without pulling the skills packages into every importer of the core.
//
// Usage:
//
//	import "github.com/BaSui01/skillflow/quick"
//
//	runner := quick.Runner(quick.WithLogger(logger))
//	result := runner.Invoke(ctx, skill.Invocation{Skill: "textkit", Action: "word_count", ...})
//
// =============================================================================
package quick

import (
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/skills/calibre"
	"github.com/BaSui01/skillflow/skills/deepl"
	"github.com/BaSui01/skillflow/skills/discord"
	"github.com/BaSui01/skillflow/skills/jellyfin"
	"github.com/BaSui01/skillflow/skills/libretranslate"
	"github.com/BaSui01/skillflow/skills/seoaudit"
	"github.com/BaSui01/skillflow/skills/serp"
	"github.com/BaSui01/skillflow/skills/textkit"
	"github.com/BaSui01/skillflow/skills/transmission"
)

// Option configures the runner created by Runner.
type Option func(*options)

type options struct {
	logger         *zap.Logger
	resolver       *skill.Resolver
	adapter        skill.AnalysisAdapter
	metrics        skill.MetricsSink
	cache          skill.ResultCache
	audit          skill.AuditSink
	bus            *skill.Bus
	defaultTimeout time.Duration
	timeouts       map[string]time.Duration
	serpDailyLimit int
	analysisBudget int
}

// WithLogger sets a custom zap logger. Defaults to zap.NewNop().
func WithLogger(logger *zap.Logger) Option {
	return func(o *options) { o.logger = logger }
}

// WithResolver sets the upstream client resolver. Without one, every skill
// that requires a client fails with PROVIDER_NOT_CONFIGURED.
func WithResolver(r *skill.Resolver) Option {
	return func(o *options) { o.resolver = r }
}

// WithAdapter sets the analysis adapter required by L2 skills.
func WithAdapter(a skill.AnalysisAdapter) Option {
	return func(o *options) { o.adapter = a }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m skill.MetricsSink) Option {
	return func(o *options) { o.metrics = m }
}

// WithCache sets the result cache for cacheable actions.
func WithCache(c skill.ResultCache) Option {
	return func(o *options) { o.cache = c }
}

// WithAudit sets the audit sink.
func WithAudit(a skill.AuditSink) Option {
	return func(o *options) { o.audit = a }
}

// WithBus sets the lifecycle event bus.
func WithBus(b *skill.Bus) Option {
	return func(o *options) { o.bus = b }
}

// WithDefaultTimeout overrides the global invocation timeout.
// Still clamped to the 120s hard ceiling.
func WithDefaultTimeout(d time.Duration) Option {
	return func(o *options) { o.defaultTimeout = d }
}

// WithSkillTimeout overrides the timeout for one skill.
func WithSkillTimeout(skillName string, d time.Duration) Option {
	return func(o *options) {
		if o.timeouts == nil {
			o.timeouts = make(map[string]time.Duration)
		}
		o.timeouts[skillName] = d
	}
}

// WithSerpDailyLimit caps serp searches per day. 0 means unlimited.
func WithSerpDailyLimit(n int) Option {
	return func(o *options) { o.serpDailyLimit = n }
}

// WithAnalysisBudget overrides the token budget L2 skills hand to the
// analysis adapter.
func WithAnalysisBudget(n int) Option {
	return func(o *options) { o.analysisBudget = n }
}

// Catalog builds a catalog with every built-in skill registered.
func Catalog(logger *zap.Logger, opts ...Option) *skill.Catalog {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var serpOpts []serp.Option
	if o.serpDailyLimit > 0 {
		serpOpts = append(serpOpts, serp.WithDailyLimit(o.serpDailyLimit))
	}
	var seoOpts []seoaudit.Option
	if o.analysisBudget > 0 {
		seoOpts = append(seoOpts, seoaudit.WithAnalysisBudget(o.analysisBudget))
	}

	c := skill.NewCatalog()
	for _, h := range []skill.Handler{
		calibre.New(logger),
		deepl.New(logger),
		discord.New(logger),
		jellyfin.New(logger),
		libretranslate.New(logger),
		seoaudit.New(logger, seoOpts...),
		serp.New(logger, serpOpts...),
		textkit.New(logger),
		transmission.New(logger),
	} {
		// 内建技能名互不冲突，注册不会失败
		_ = c.Register(h)
	}
	return c
}

// Runner builds a catalog with every built-in skill and wraps it in an
// invocation envelope wired from the options.
func Runner(opts ...Option) *skill.Runner {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.logger == nil {
		o.logger = zap.NewNop()
	}

	catalog := Catalog(o.logger, opts...)

	return skill.NewRunner(catalog, skill.RunnerConfig{
		DefaultTimeout: o.defaultTimeout,
		Timeouts:       o.timeouts,
		Resolver:       o.resolver,
		Adapter:        o.adapter,
		Metrics:        o.metrics,
		Cache:          o.cache,
		Audit:          o.audit,
		Bus:            o.bus,
	}, o.logger)
}
