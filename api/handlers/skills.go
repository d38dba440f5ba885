package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/skillflow/api"
	"github.com/BaSui01/skillflow/skill"
	"github.com/BaSui01/skillflow/types"
)

// =============================================================================
// 🧩 技能目录与调用 Handler
// =============================================================================

// SkillsHandler 技能目录与调用处理器
type SkillsHandler struct {
	catalog *skill.Catalog
	runner  *skill.Runner
	logger  *zap.Logger
}

// NewSkillsHandler 创建技能处理器
func NewSkillsHandler(catalog *skill.Catalog, runner *skill.Runner, logger *zap.Logger) *SkillsHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SkillsHandler{
		catalog: catalog,
		runner:  runner,
		logger:  logger.With(zap.String("handler", "skills")),
	}
}

// HandleList 处理 GET /api/v1/skills
// @Summary 技能列表
// @Description 返回全部已注册技能及其动作规格
// @Tags 技能
// @Produce json
// @Success 200 {object} Response "技能列表"
// @Router /api/v1/skills [get]
func (h *SkillsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	infos := h.catalog.Describe()
	WriteSuccess(w, r, api.SkillListResponse{Skills: infos, Count: len(infos)})
}

// HandleDescribe 处理 GET /api/v1/skills/{name}
// @Summary 技能详情
// @Description 返回单个技能的动作规格
// @Tags 技能
// @Produce json
// @Success 200 {object} Response "技能详情"
// @Failure 404 {object} Response "技能不存在"
// @Router /api/v1/skills/{name} [get]
func (h *SkillsHandler) HandleDescribe(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	handler, ok := h.catalog.Get(name)
	if !ok {
		WriteError(w, r, types.NewError(types.ErrNotFound,
			fmt.Sprintf("skill %q is not registered", name)), h.logger)
		return
	}
	WriteSuccess(w, r, handler.Info())
}

// HandleInvoke 处理 POST /api/v1/skills/{name}/invoke
// @Summary 调用技能
// @Description 通过信封执行一次技能动作；失败以信封错误码返回
// @Tags 技能
// @Accept json
// @Produce json
// @Success 200 {object} Response "调用成功"
// @Failure 400 {object} Response "动作或参数非法"
// @Failure 502 {object} Response "上游失败"
// @Failure 503 {object} Response "提供方未配置"
// @Failure 504 {object} Response "调用超时"
// @Router /api/v1/skills/{name}/invoke [post]
func (h *SkillsHandler) HandleInvoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")

	var req api.InvokeRequest
	if err := DecodeJSONBody(w, r, &req, h.logger); err != nil {
		return
	}

	result := h.runner.Invoke(r.Context(), req.ToInvocation(name))

	id, _ := types.RequestID(r.Context())
	if !result.Metadata.Success {
		WriteJSON(w, StatusForCode(result.Metadata.Code), Response{
			Success: false,
			Data:    result,
			Error: &ErrorInfo{
				Code:      string(result.Metadata.Code),
				Message:   result.Metadata.Error,
				Retryable: result.Metadata.Retryable,
			},
			Timestamp: time.Now().UTC(),
			RequestID: id,
		})
		return
	}
	WriteSuccess(w, r, result)
}

// HandleHealthCheck 处理 GET /api/v1/skills/health
// @Summary 技能上游健康巡检
// @Description 对支持探活的技能做一轮上游探测
// @Tags 技能
// @Produce json
// @Success 200 {object} Response "巡检结果"
// @Router /api/v1/skills/health [get]
func (h *SkillsHandler) HandleHealthCheck(resolver *skill.Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteSuccess(w, r, h.catalog.HealthCheck(r.Context(), resolver))
	}
}

// parseLimit 解析 ?limit= 查询参数，越界或缺失时返回 fallback。
func parseLimit(r *http.Request, fallback, max int) int {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	if n > max {
		return max
	}
	return n
}
