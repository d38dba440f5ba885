package handlers

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/api"
	"github.com/BaSui01/skillflow/internal/audit"
	"github.com/BaSui01/skillflow/types"
)

// =============================================================================
// 📜 审计流水 Handler
// =============================================================================

const (
	defaultAuditLimit = 50
	maxAuditLimit     = 500
)

// AuditReader 审计流水读取接口，由 audit.GormStore 实现。
type AuditReader interface {
	Recent(ctx context.Context, limit int) ([]audit.Record, error)
}

// AuditHandler 审计流水查询处理器
type AuditHandler struct {
	reader AuditReader
	logger *zap.Logger
}

// NewAuditHandler 创建审计查询处理器
func NewAuditHandler(reader AuditReader, logger *zap.Logger) *AuditHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditHandler{
		reader: reader,
		logger: logger.With(zap.String("handler", "audit")),
	}
}

// HandleRecent 处理 GET /api/v1/audit?limit=N
// @Summary 最近审计记录
// @Description 按时间倒序返回最近的调用审计记录
// @Tags 审计
// @Produce json
// @Success 200 {object} Response "审计记录"
// @Failure 503 {object} Response "审计库未配置"
// @Router /api/v1/audit [get]
func (h *AuditHandler) HandleRecent(w http.ResponseWriter, r *http.Request) {
	if h.reader == nil {
		WriteError(w, r, types.NewError(types.ErrProviderNotConfigured,
			"audit store is not configured").WithHTTPStatus(http.StatusServiceUnavailable), h.logger)
		return
	}

	limit := parseLimit(r, defaultAuditLimit, maxAuditLimit)
	entries, err := h.reader.Recent(r.Context(), limit)
	if err != nil {
		WriteError(w, r, types.NewError(types.ErrInternalError,
			"failed to query audit records").WithCause(err), h.logger)
		return
	}

	WriteSuccess(w, r, api.AuditListResponse{Entries: entries, Count: len(entries)})
}
