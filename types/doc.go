// Copyright (c) SkillFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 SkillFlow 平台的全局共享类型定义。

# 概述

types 是平台最底层的公共包，不依赖任何内部包，为 skill、skills、api、
cmd 等上层模块提供统一的类型契约。所有跨包共享的枚举和错误码均定义
于此，以避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Skill 标记
  - 调用错误码         — INVALID_ACTION / INVALID_INPUT / PROVIDER_NOT_CONFIGURED /
    TIMEOUT / UPSTREAM_ERROR（技能调用信封仅允许携带这五种）
  - 平台错误码         — UNAUTHORIZED / FORBIDDEN / RATE_LIMITED / NOT_FOUND /
    INTERNAL_ERROR（HTTP 网关层使用）

# 主要能力

  - Context 传播：WithInvocationID / WithRequestID / WithTenantID / WithUserID
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
  - 默认可重试性：DefaultRetryable（TIMEOUT 与 RATE_LIMITED 默认可重试）
*/
package types
