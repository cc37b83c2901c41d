// 版权所有 2024 ImageFlow Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 提供 HTTP/HTTPS 服务器生命周期管理，支持非阻塞启动、
优雅关闭与系统信号监听。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/WaitForShutdown 等生命周期方法。
  - Config：监听地址、读写超时、空闲超时、最大请求头大小、
    优雅关闭超时与可选的证书文件。

# 主要能力

  - 非阻塞启动：Start 在后台 goroutine 中运行服务；配置证书时
    使用 tlsutil 的加固 TLS 配置以 HTTPS 启动。
  - 优雅关闭：Shutdown 在配置的超时内完成请求排空。
  - 信号监听：WaitForShutdown 监听 SIGINT/SIGTERM。
  - 错误传播：Errors() 返回异步错误通道。
*/
package server
