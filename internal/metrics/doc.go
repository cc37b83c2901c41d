// 版权所有 2024 ImageFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集能力，覆盖
HTTP、图片检索、结账与限流四个维度。

# 概述

本包通过 Collector 统一注册和记录 Prometheus 指标，使用 promauto
自动注册机制，避免手动管理 Registry。所有指标按 namespace 隔离。

# 主要能力

  - HTTP 指标：请求总数、请求耗时、请求/响应体大小，
    按 method/path/status 分组，状态码归类为 2xx/3xx/4xx/5xx。
  - 图片检索指标：每次上游尝试按 model/variant/精确状态码计数，
    尝试耗时、提取出的图片数，以及请求终态（success/exhausted/...）。
    Collector 实现 image.Recorder 接口。
  - 结账指标：按 plan/状态码统计结账会话创建尝试。
  - 限流指标：被限流中间件拒绝的请求数。
*/
package metrics
