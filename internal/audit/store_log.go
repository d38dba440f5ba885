package audit

import (
	"context"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
)

// LogSink 把审计记录写入结构化日志。未配置数据库与 Mongo 时的兜底汇，
// 也可与持久化汇并联使用。
type LogSink struct {
	logger *zap.Logger
}

// NewLogSink 创建日志审计汇。
func NewLogSink(logger *zap.Logger) *LogSink {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogSink{logger: logger.With(zap.String("component", "audit_log"))}
}

// Store 以 Info 级别输出一条审计记录，永远成功。
func (s *LogSink) Store(_ context.Context, e skill.AuditEntry) error {
	s.logger.Info("skill invocation audited",
		zap.String("invocation_id", e.InvocationID),
		zap.String("tenant_id", e.TenantID),
		zap.String("user_id", e.UserID),
		zap.String("skill", e.Skill),
		zap.String("action", e.Action),
		zap.Bool("success", e.Success),
		zap.String("code", string(e.Code)),
		zap.Int64("duration_ms", e.DurationMS),
		zap.Time("timestamp", e.Timestamp))
	return nil
}
