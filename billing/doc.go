/*
Package billing 创建订阅结账会话。

# 概述

结账有两种模式：配置了直连结账链接时直接返回该链接（direct）；
否则使用 API Key 与价格 ID 向结账服务创建会话（api）。两者都没有时为 unset。

API 模式下按固定顺序在 {端点 × 载荷} 组合上顺序检索：
端点 /v1/checkout/sessions、/checkout/sessions，载荷分别以 price_id 与
price 携带价格。第一个 2xx 且包含 url、checkout_url 或 hosted_page_url
的响应胜出；401/403 立即终止；全部失败时返回最后一次的状态码。

# 核心类型

  - Service        — 结账服务客户端，持有 Config、HTTP 客户端与指标接收器
  - Config         — 结账配置（Key、价格 ID、直连链接、来源地址）
  - Plan           — 套餐（pro / business）
  - UpstreamError  — 上游失败，Tag() 给出 creem_error_<status> 标签
*/
package billing
