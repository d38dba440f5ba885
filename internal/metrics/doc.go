// 版权所有 2026 Skillflow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的全链路指标采集能力，覆盖
HTTP、技能调用、缓存、事件总线与数据库五大维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
工厂注册机制，支持注入自定义 Registry 以便测试隔离。所有指标按
namespace 隔离，支持多维度 label 分组，便于 Grafana 等工具进行
可视化与告警。

# 核心类型

  - Collector：指标收集器，持有 Counter、Histogram、Gauge 等
    Prometheus 向量指标，按业务域分组管理，并实现信封的
    MetricsSink 接口。

# 主要能力

  - HTTP 指标：请求总数、请求耗时，按 method/path/status 分组，
    状态码归类为 2xx/3xx/4xx/5xx。
  - 技能调用指标：调用总数、调用耗时，按 skill/action/code 分组；
    成功记作 code="ok"。
  - 缓存指标：结果缓存命中与未命中计数，按 skill 分组。
  - 事件与审计指标：总线累计丢弃 Gauge、审计背压丢弃 Counter。
  - 数据库指标：活跃/空闲连接数 Gauge，按 database 分组。
*/
package metrics
