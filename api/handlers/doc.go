// 版权所有 2026 Skillflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 handlers 实现 Skillflow HTTP API 的请求处理器。

所有 JSON 端点共用统一响应信封 Response{success, data, error,
timestamp, request_id}，错误码经 StatusForCode 映射到 HTTP 状态码。

  - SkillsHandler：技能目录浏览与信封调用（/api/v1/skills*）。
  - StreamHandler：事件总线到 WebSocket 的桥接（/api/v1/events/stream）。
  - AuditHandler：审计流水查询（/api/v1/audit）。
  - HealthHandler：活跃度与就绪探针（/health、/ready、/version）。
*/
package handlers
