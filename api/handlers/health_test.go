package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHealthHandler_HandleHealth(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
}

func TestHealthHandler_HandleReady_AllPass(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(NewPingCheck("database", func(ctx context.Context) error { return nil }))
	h.RegisterCheck(NewPingCheck("redis", func(ctx context.Context) error { return nil }))

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "healthy", status.Status)
	assert.Equal(t, "pass", status.Checks["database"].Status)
	assert.Equal(t, "pass", status.Checks["redis"].Status)
}

func TestHealthHandler_HandleReady_CheckFails(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())
	h.RegisterCheck(NewPingCheck("database", func(ctx context.Context) error { return nil }))
	h.RegisterCheck(NewPingCheck("mongo", func(ctx context.Context) error {
		return errors.New("connection refused")
	}))

	rec := httptest.NewRecorder()
	h.HandleReady(rec, httptest.NewRequest(http.MethodGet, "/ready", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var status HealthStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, "unhealthy", status.Status)
	assert.Equal(t, "fail", status.Checks["mongo"].Status)
	assert.Contains(t, status.Checks["mongo"].Message, "connection refused")
	assert.Equal(t, "pass", status.Checks["database"].Status)
}

func TestHealthHandler_HandleVersion(t *testing.T) {
	h := NewHealthHandler(zap.NewNop())

	rec := httptest.NewRecorder()
	h.HandleVersion("1.2.3", "2026-03-14", "abc1234")(rec,
		httptest.NewRequest(http.MethodGet, "/version", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	data := resp.Data.(map[string]any)
	assert.Equal(t, "1.2.3", data["version"])
	assert.Equal(t, "abc1234", data["git_commit"])
}
