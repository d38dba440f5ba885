package audit

import (
	"context"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&Record{}))
	return db
}

func TestNewGormStore_NilDB(t *testing.T) {
	_, err := NewGormStore(nil)
	require.Error(t, err)
}

func TestGormStore_Store(t *testing.T) {
	store, err := NewGormStore(newTestDB(t))
	require.NoError(t, err)

	e := skill.AuditEntry{
		InvocationID: "inv-1",
		TenantID:     "acme",
		UserID:       "u-7",
		Skill:        "deepl",
		Action:       "translate",
		Success:      false,
		Code:         types.ErrUpstreamError,
		Error:        "deepl returned 503",
		DurationMS:   1200,
		Params:       map[string]any{"target_lang": "DE", "api_key": "[REDACTED]"},
		Timestamp:    time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC),
	}
	require.NoError(t, store.Store(context.Background(), e))

	var got Record
	require.NoError(t, store.db.First(&got, "invocation_id = ?", "inv-1").Error)
	assert.Equal(t, "acme", got.TenantID)
	assert.Equal(t, "deepl", got.Skill)
	assert.Equal(t, "translate", got.Action)
	assert.False(t, got.Success)
	assert.Equal(t, string(types.ErrUpstreamError), got.Code)
	assert.Equal(t, int64(1200), got.DurationMS)
	assert.Contains(t, got.Params, `"target_lang":"DE"`)
	assert.Contains(t, got.Params, "[REDACTED]")
}

func TestGormStore_Recent(t *testing.T) {
	store, err := NewGormStore(newTestDB(t))
	require.NoError(t, err)

	base := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	for i, id := range []string{"inv-old", "inv-mid", "inv-new"} {
		e := entry(id)
		e.Timestamp = base.Add(time.Duration(i) * time.Minute)
		require.NoError(t, store.Store(context.Background(), e))
	}

	got, err := store.Recent(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "inv-new", got[0].InvocationID)
	assert.Equal(t, "inv-mid", got[1].InvocationID)

	all, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGormStore_RecorderIntegration(t *testing.T) {
	store, err := NewGormStore(newTestDB(t))
	require.NoError(t, err)

	r := NewRecorder(nil, []Sink{store})
	r.Record(entry("inv-a"))
	r.Record(entry("inv-b"))
	r.Close()

	got, err := store.Recent(context.Background(), 10)
	require.NoError(t, err)
	assert.Len(t, got, 2)
}

func TestToRecord_Defaults(t *testing.T) {
	rec := toRecord(skill.AuditEntry{InvocationID: "inv-1", Skill: "textkit", Action: "word_count"})
	assert.Empty(t, rec.Params)
	assert.False(t, rec.CreatedAt.IsZero())
}
