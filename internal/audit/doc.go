// 版权所有 2026 Skillflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 audit 提供调用审计流水的缓冲异步管道。

Recorder 实现 skill.AuditSink：Record 入队永不阻塞调用路径，缓冲
打满时丢弃最旧的记录并计数（可通过 WithDropHook 接入指标）。后台
worker 把记录依次写入全部已注册的 Sink，Close 排空缓冲后返回。

内置三种 Sink：

  - GormStore：写入关系型审计库 audit_log 表，表结构由
    internal/migration 管理，支持 Recent 查询最近记录。
  - MongoStore：写入 MongoDB 集合，作为关系型存储的备选。
  - LogSink：写入 zap 结构化日志，兜底汇。
*/
package audit
