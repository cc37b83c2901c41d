// Package config 提供 ImageFlow 的配置管理功能。
//
// 配置在启动时构建一次并向下传递，核心逻辑不直接读取环境变量。
// 支持默认值、YAML 文件与环境变量（IMAGEFLOW_ 前缀及兼容别名）三层覆盖。
package config
