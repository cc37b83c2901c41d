// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package main 提供 ImageFlow 服务端程序入口。

# 概述

cmd/imageflow 是 ImageFlow 的可执行入口，提供 HTTP API 服务、
健康检查和版本查询等子命令。程序支持 YAML 配置文件与环境变量加载、
结构化日志（zap）、Prometheus 指标采集以及 OpenTelemetry 链路追踪。

# 核心类型

  - Server      — 主服务器，管理 HTTP、Metrics 双端口及优雅关闭
  - Middleware  — HTTP 中间件函数签名 func(http.Handler) http.Handler

# 主要能力

  - 子命令：serve（启动服务）、version、health
  - 中间件链：Recovery、RequestID（uuid）、OTelTracing、SecurityHeaders、
    RequestLogger、MetricsMiddleware、CORS、RateLimiter（基于 IP）、
    BodyLimit、Identity（JWT，从不阻断）
  - Metrics 服务器：独立端口暴露 /metrics（Prometheus）
  - 优雅关闭：信号监听 → 并发关闭 HTTP 与 Metrics → 刷新遥测
  - 构建注入：Version、BuildTime、GitCommit 通过 ldflags 设置
*/
package main
