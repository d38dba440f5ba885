// 默认配置测试。
package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	// 验证服务器默认值
	assert.Equal(t, 8080, cfg.Server.HTTPPort)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 15*time.Second, cfg.Server.ShutdownTimeout)

	// 验证日志默认值
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, []string{"stdout"}, cfg.Log.OutputPaths)

	// 验证技能默认值
	assert.Equal(t, 30*time.Second, cfg.Skills.DefaultTimeout)
	assert.Equal(t, 6000, cfg.Skills.AnalysisBudget)
	assert.Equal(t, 0, cfg.Skills.SerpDailyLimit)
	assert.NotNil(t, cfg.Skills.Providers)
	assert.NotNil(t, cfg.Skills.Timeouts)
	assert.False(t, cfg.Skills.Gateway.Configured())

	// 验证缓存默认值
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, "localhost:6379", cfg.Cache.Addr)
	assert.Equal(t, 5*time.Minute, cfg.Cache.DefaultTTL)

	// 验证审计库默认值：单机落 sqlite，零依赖可跑
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, "skillflow.db", cfg.Database.Name)

	// 验证 Mongo 默认值
	assert.False(t, cfg.Mongo.Enabled)
	assert.Equal(t, "audit_log", cfg.Mongo.Collection)

	// 验证遥测默认值
	assert.False(t, cfg.Telemetry.Enabled)
	assert.Equal(t, "skillflow", cfg.Telemetry.ServiceName)

	// 验证鉴权与限流默认值
	assert.False(t, cfg.Auth.Enabled)
	assert.True(t, cfg.RateLimit.Enabled)
	assert.Equal(t, float64(50), cfg.RateLimit.RPS)

	// 默认配置必须通过自身校验
	require.NoError(t, cfg.Validate())
}
