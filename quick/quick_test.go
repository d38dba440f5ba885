package quick

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

func TestCatalog_RegistersBuiltins(t *testing.T) {
	c := Catalog(zap.NewNop())

	assert.Equal(t, []string{
		"calibre", "deepl", "discord", "jellyfin", "libretranslate",
		"seoaudit", "serp", "textkit", "transmission",
	}, c.List())
}

func TestRunner_LocalSkillEndToEnd(t *testing.T) {
	r := Runner(WithLogger(zap.NewNop()))

	result := r.Invoke(context.Background(), skill.Invocation{
		Skill:  "textkit",
		Action: "slugify",
		Params: skill.Params{"text": "Hello, Quick World!"},
	})

	require.True(t, result.Metadata.Success)
	assert.Equal(t, "hello-quick-world", result.Result)
	assert.NotEmpty(t, result.Metadata.InvocationID)
}

func TestRunner_ClientSkillWithoutResolver(t *testing.T) {
	r := Runner()

	result := r.Invoke(context.Background(), skill.Invocation{
		Skill:  "discord",
		Action: "send_message",
		Params: skill.Params{"channel_id": "123", "content": "hi"},
	})

	require.False(t, result.Metadata.Success)
	assert.Equal(t, types.ErrProviderNotConfigured, result.Metadata.Code)
}

func TestRunner_SkillTimeoutOption(t *testing.T) {
	bus := skill.NewBus(nil)
	defer bus.Close()

	r := Runner(
		WithDefaultTimeout(10*time.Second),
		WithSkillTimeout("serp", 5*time.Second),
		WithBus(bus),
	)

	events, cancel := bus.Subscribe(4)
	defer cancel()

	result := r.Invoke(context.Background(), skill.Invocation{
		Skill:  "textkit",
		Action: "stats",
		Params: skill.Params{"text": "one two three"},
	})
	require.True(t, result.Metadata.Success)

	// started 与 succeeded 两条事件
	e := <-events
	assert.Equal(t, skill.EventStarted, e.Type)
	e = <-events
	assert.Equal(t, skill.EventSucceeded, e.Type)
}
