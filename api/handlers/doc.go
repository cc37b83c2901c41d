// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package handlers 提供 ImageFlow HTTP API 的请求处理器实现。

# 概述

handlers 包实现了 ImageFlow 所有 HTTP 端点的请求处理逻辑，
包括图片编辑、当前用户、结账以及健康检查。所有 Handler 均遵循
标准 net/http 接口，通过 Swagger 注解生成 API 文档。

# 核心类型

  - GenerateHandler  — 图片编辑处理器，把编辑器的终态映射为 HTTP 响应
  - BillingHandler   — 结账配置查询与结账会话创建
  - HealthHandler    — 服务健康检查（/health, /healthz, /ready, /readyz）
  - ResponseWriter   — 包装 http.ResponseWriter 以捕获状态码与字节数
  - HealthCheck      — 可插拔健康检查接口

# 主要能力

  - 统一响应：WriteJSON / WriteError，错误体为 {"error": message}
  - 请求解码：DecodeJSONBody，超限返回 413，格式错误返回 400
  - ErrorCode → HTTP 状态码映射（4xx/5xx）
  - 编辑器终态映射：400 缺少输入、500 未配置凭证、
    502 上游拒绝（message/detail）或检索耗尽（hint/reason/rawPreview/tried）
  - HandleAuthUser：匿名请求返回 {"user": null}，从不阻断
*/
package handlers
