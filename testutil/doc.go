// Copyright (c) SkillFlow Authors.
// Licensed under the MIT License.

/*
Package testutil 提供 SkillFlow 测试套件共用的辅助设施。

# 组成

  - helpers.go — 测试上下文（TestContext / CancelledContext）、zaptest
    日志、轮询断言与 JSON 序列化辅助
  - fakes.go   — 脚本化的 skill.Client 假实现（FakeClient）与基于
    httptest 的假上游服务器（Upstream）

# 使用约定

技能单元测试优先用 FakeClient 脚本化上游响应；需要验证真实 HTTP
行为（请求头注入、超时、限流）时再起 Upstream。testutil 依赖 skill
包，因此 skill 包自身的内部测试不得引用 testutil，以免循环导入。
*/
package testutil
