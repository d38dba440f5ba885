// Copyright (c) 2026 Skillflow Authors.
// Licensed under the MIT License.

/*
Package main 提供 Skillflow 服务端程序入口。

# 概述

cmd/skillflow 是 Skillflow 技能目录的可执行入口，提供技能调用 HTTP API、
审计库迁移、健康检查和版本查询等子命令。程序支持 YAML 配置文件加载、
结构化日志（zap）、Prometheus 指标采集以及上游凭据热轮换。

# 核心类型

  - Server     — 主服务器，组装技能目录、调用信封、审计管道与 HTTP 层
  - Middleware — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、migrate（审计库迁移）、version、health
  - 中间件链：Recovery、RequestID、SecurityHeaders、RequestLogger、CORS、
    MetricsMiddleware、OTelTracing、RateLimiter（基于 IP）、
    APIKeyAuth（X-API-Key）、JWTAuth（HS256）
  - 凭据轮换：FileWatcher 监听配置文件变更并重建上游客户端
  - 审计管道：Recorder 异步落库（gorm / Mongo / 日志兜底）
  - 优雅关闭：信号监听 → 停止监听器 → 关闭 HTTP → 关总线 → 排空审计 → 释放连接
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
