// Package api 定义 ImageFlow HTTP API 的请求与响应结构。
//
// # API Overview
//
// ImageFlow 提供以下端点：
//   - POST /api/generate：图片编辑，在多个模型与请求变体之间顺序检索
//   - GET  /api/auth/user：当前用户（匿名时 user 为 null）
//   - GET  /api/billing/config：结账模式摘要
//   - POST /api/billing/checkout：创建订阅结账链接
//   - /health, /healthz, /ready, /readyz, /version：健康检查
//
// # Authentication
//
// 身份令牌可通过 Authorization: Bearer 头或会话 Cookie 携带，
// 不会阻断任何请求；无令牌或令牌无效时按匿名处理。
//
// # Base URL
//
//	http://localhost:8080
package api
