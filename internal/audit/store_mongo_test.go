package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/skillflow/config"
	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

func TestNewMongoStore_RequiresURI(t *testing.T) {
	_, err := NewMongoStore(config.MongoConfig{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "URI")
}

func TestToDocument(t *testing.T) {
	ts := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	doc := toDocument(skill.AuditEntry{
		InvocationID: "inv-1",
		TenantID:     "acme",
		Skill:        "serp",
		Action:       "search",
		Success:      false,
		Code:         types.ErrTimeout,
		Error:        "invocation timed out",
		DurationMS:   30000,
		Params:       map[string]any{"query": "golang"},
		Timestamp:    ts,
	})

	assert.Equal(t, "inv-1", doc.InvocationID)
	assert.Equal(t, string(types.ErrTimeout), doc.Code)
	assert.Equal(t, ts, doc.CreatedAt)
	assert.Equal(t, "golang", doc.Params["query"])
}

func TestToDocument_ZeroTimestamp(t *testing.T) {
	doc := toDocument(skill.AuditEntry{InvocationID: "inv-1"})
	assert.False(t, doc.CreatedAt.IsZero())
}
