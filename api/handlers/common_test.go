package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/types"
)

func TestWriteSuccess_CarriesRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(types.WithRequestID(req.Context(), "req-abc"))

	rec := httptest.NewRecorder()
	WriteSuccess(rec, req, map[string]string{"hello": "world"})

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.Equal(t, "req-abc", resp.RequestID)
	assert.Nil(t, resp.Error)
}

func TestWriteError_MapsStatusFromCode(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	WriteError(rec, req, types.NewError(types.ErrTimeout, "invocation timed out"), zap.NewNop())

	require.Equal(t, http.StatusGatewayTimeout, rec.Code)
	var resp Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Success)
	assert.Equal(t, "TIMEOUT", resp.Error.Code)
	assert.True(t, resp.Error.Retryable)
}

func TestWriteError_ExplicitStatusWins(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()

	err := types.NewError(types.ErrUpstreamError, "teapot").WithHTTPStatus(http.StatusTeapot)
	WriteError(rec, req, err, nil)

	assert.Equal(t, http.StatusTeapot, rec.Code)
}

func TestDecodeJSONBody_EmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", nil)
	rec := httptest.NewRecorder()

	var dst struct{}
	err := DecodeJSONBody(rec, req, &dst, zap.NewNop())
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResponseWriter_CapturesFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusAccepted)
	rw.WriteHeader(http.StatusInternalServerError) // 第二次应被忽略

	assert.Equal(t, http.StatusAccepted, rw.StatusCode)
	assert.Equal(t, http.StatusAccepted, rec.Code)
}

func TestResponseWriter_ImplicitOK(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	_, err := rw.Write([]byte("ok"))
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, rw.StatusCode)
	assert.True(t, rw.Written)
}
