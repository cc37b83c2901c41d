// Copyright (c) ImageFlow Authors.
// Licensed under the MIT License.

/*
Package types 提供 ImageFlow 服务的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 llm/image、billing、
api 等上层模块提供统一的错误与上下文契约，避免循环依赖。

# 核心类型

  - Error / ErrorCode — 结构化错误体系，含 HTTP 状态码、Retryable、Provider 标记
  - Identity          — 身份提供方注入的调用者信息（id + email），零值表示匿名

# 主要能力

  - Context 传播：WithTraceID / WithRequestID / WithUserID / WithUserEmail
  - 错误工具链：AsError / GetErrorCode / IsRetryable
*/
package types
