package api

import (
	"time"

	"github.com/BaSui01/skillflow/skill"
)

// =============================================================================
// 技能调用类型
// =============================================================================

// InvokeRequest 一次技能调用请求。
// @Description 技能调用请求结构
type InvokeRequest struct {
	// 动作名称
	Action string `json:"action" example:"send_message" binding:"required"`
	// 动作参数
	Params map[string]any `json:"params,omitempty"`
	// 单次调用超时（如 "10s"），仍受 120s 硬上限约束
	Timeout string `json:"timeout,omitempty" example:"10s"`
}

// ToInvocation 把请求转换为信封调用。超时字符串解析失败时忽略，
// 沿用配置超时。
func (r InvokeRequest) ToInvocation(skillName string) skill.Invocation {
	inv := skill.Invocation{
		Skill:  skillName,
		Action: r.Action,
		Params: skill.Params(r.Params),
	}
	if r.Timeout != "" {
		if d, err := time.ParseDuration(r.Timeout); err == nil && d > 0 {
			inv.Timeout = d
		}
	}
	return inv
}

// =============================================================================
// 目录类型
// =============================================================================

// SkillListResponse 技能目录列表。
// @Description 技能列表响应
type SkillListResponse struct {
	// 已注册的技能
	Skills []skill.Info `json:"skills"`
	// 技能数量
	Count int `json:"count"`
}

// AuditListResponse 审计流水列表。
// @Description 审计记录列表响应
type AuditListResponse struct {
	// 审计记录，按时间倒序
	Entries any `json:"entries"`
	// 记录数量
	Count int `json:"count"`
}
