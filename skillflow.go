// Package skillflow provides a top-level convenience entry point for
// embedding the skill catalog and invocation envelope with minimal
// boilerplate.
//
// Usage:
//
//	import "github.com/BaSui01/skillflow"
//
//	runner := skillflow.Runner(skillflow.WithLogger(logger))
//	result := runner.Invoke(ctx, skillflow.Invocation{
//		Skill:  "textkit",
//		Action: "word_count",
//		Params: skillflow.Params{"text": "hello world"},
//	})
//
// This is a thin wrapper around [quick.Runner]; both produce identical
// results. Use this package when you prefer the shorter import path.
package skillflow

import (
	"github.com/BaSui01/skillflow/quick"
	"github.com/BaSui01/skillflow/skill"
)

// Core invocation types re-exported so embedders never need to import skill/.

// Invocation describes one skill call.
type Invocation = skill.Invocation

// Params carries action parameters.
type Params = skill.Params

// Result is the invocation envelope's final product.
type Result = skill.Result

// Metadata is the envelope metadata attached to every Result.
type Metadata = skill.Metadata

// Option configures the runner created by [Runner].
type Option = quick.Option

// Catalog builds a catalog with every built-in skill registered.
var Catalog = quick.Catalog

// Runner builds a fully wired invocation envelope over the built-in catalog.
var Runner = quick.Runner

// Re-export wiring options so callers never need to import quick/.

// WithLogger sets a custom zap logger.
var WithLogger = quick.WithLogger

// WithResolver sets the upstream client resolver.
var WithResolver = quick.WithResolver

// WithAdapter sets the analysis adapter required by L2 skills.
var WithAdapter = quick.WithAdapter

// WithMetrics sets the metrics sink.
var WithMetrics = quick.WithMetrics

// WithCache sets the result cache.
var WithCache = quick.WithCache

// WithAudit sets the audit sink.
var WithAudit = quick.WithAudit

// WithBus sets the lifecycle event bus.
var WithBus = quick.WithBus

// WithDefaultTimeout overrides the global invocation timeout.
var WithDefaultTimeout = quick.WithDefaultTimeout

// WithSkillTimeout overrides the timeout for one skill.
var WithSkillTimeout = quick.WithSkillTimeout
