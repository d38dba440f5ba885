// Package metrics provides internal metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// =============================================================================
// 📊 指标收集器
// =============================================================================

// Collector 指标收集器，同时实现信封的 MetricsSink
type Collector struct {
	// HTTP 指标
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// 技能调用指标
	invocationsTotal   *prometheus.CounterVec
	invocationDuration *prometheus.HistogramVec

	// 缓存指标
	cacheHits   *prometheus.CounterVec
	cacheMisses *prometheus.CounterVec

	// 事件总线指标
	busDropped prometheus.Gauge

	// 数据库指标
	dbConnectionsOpen *prometheus.GaugeVec
	dbConnectionsIdle *prometheus.GaugeVec

	// 审计指标
	auditDropped prometheus.Counter

	logger *zap.Logger
}

// NewCollector 创建指标收集器。reg 为空时注册到默认 Registry。
func NewCollector(namespace string, reg prometheus.Registerer, logger *zap.Logger) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	factory := promauto.With(reg)

	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	// HTTP 指标
	c.httpRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	c.httpRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// 技能调用指标
	c.invocationsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "skill_invocations_total",
			Help:      "Total number of skill invocations",
		},
		[]string{"skill", "action", "code"},
	)

	c.invocationDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "skill_invocation_duration_seconds",
			Help:      "Skill invocation duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"skill", "action"},
	)

	// 缓存指标
	c.cacheHits = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_hits_total",
			Help:      "Total number of cache hits",
		},
		[]string{"skill"},
	)

	c.cacheMisses = factory.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_misses_total",
			Help:      "Total number of cache misses",
		},
		[]string{"skill"},
	)

	// 事件总线指标
	c.busDropped = factory.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "event_bus_dropped_total",
			Help:      "Events dropped by slow subscribers",
		},
	)

	// 数据库指标
	c.dbConnectionsOpen = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_open",
			Help:      "Number of open database connections",
		},
		[]string{"database"},
	)

	c.dbConnectionsIdle = factory.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "db_connections_idle",
			Help:      "Number of idle database connections",
		},
		[]string{"database"},
	)

	// 审计指标
	c.auditDropped = factory.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audit_entries_dropped_total",
			Help:      "Audit entries dropped under backpressure",
		},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// =============================================================================
// 🎯 HTTP 指标记录
// =============================================================================

// RecordHTTPRequest 记录 HTTP 请求
func (c *Collector) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	c.httpRequestsTotal.WithLabelValues(method, path, statusCode(status)).Inc()
	c.httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// =============================================================================
// 🧰 技能调用指标记录
// =============================================================================

// ObserveInvocation 实现 skill.MetricsSink
func (c *Collector) ObserveInvocation(skillName, action, code string, cacheHit bool, duration time.Duration) {
	c.invocationsTotal.WithLabelValues(skillName, action, code).Inc()
	c.invocationDuration.WithLabelValues(skillName, action).Observe(duration.Seconds())
	if cacheHit {
		c.cacheHits.WithLabelValues(skillName).Inc()
	} else {
		c.cacheMisses.WithLabelValues(skillName).Inc()
	}
}

// =============================================================================
// 📬 事件与审计指标记录
// =============================================================================

// RecordBusDropped 记录事件总线累计丢弃数
func (c *Collector) RecordBusDropped(total uint64) {
	c.busDropped.Set(float64(total))
}

// RecordAuditDropped 记录一次审计丢弃
func (c *Collector) RecordAuditDropped() {
	c.auditDropped.Inc()
}

// =============================================================================
// 🗄️ 数据库指标记录
// =============================================================================

// RecordDBConnections 记录数据库连接数
func (c *Collector) RecordDBConnections(database string, open, idle int) {
	c.dbConnectionsOpen.WithLabelValues(database).Set(float64(open))
	c.dbConnectionsIdle.WithLabelValues(database).Set(float64(idle))
}

// =============================================================================
// 🔧 辅助函数
// =============================================================================

// statusCode 将 HTTP 状态码转换为字符串
func statusCode(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
