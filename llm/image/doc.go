// 版权所有 2024 ImageFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 image 实现"用一条指令编辑一张图片"的弹性扇出检索核心。

# 概述

上游推理网关由多个模型服务商聚合而成，响应结构各不相同、可靠性参差不齐。
本包把一次编辑请求展开为按固定顺序排列的 (model, variant) 尝试序列，
逐个顺序调用，直到从响应中解析出至少一张图片为止。

# 核心组件

  - Normalize：把 data URL / http(s) URL / 裸 base64 规整为规范图片引用
  - Scanner：基于 gjson 的递归访问器，先探测常见位置（ScanLikely），
    再全树扫描（ScanTree），两遍共用一个去重累加器
  - Classify：在尝试耗尽后对最后一次失败做原因分类
  - PlanModels / PlanAttempts：模型去重与 model × variant 交叉展开
  - GatewayClient：Gateway 接口的 HTTP 实现，从不返回 error
  - Editor：PLANNING → TRYING(i) → SUCCESS | EXHAUSTED 状态机，
    上游 401/403 立即提前终止

# 错误模型

终态通过类型化错误返回：ErrMissingInput、ErrNotConfigured、
*UpstreamAuthError、*ExhaustedError。单次尝试的失败从不以 error 形式向上传播。
*/
package image
