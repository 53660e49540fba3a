// Package config 提供 llmcouncil 的配置管理功能。
//
// 配置按 默认值 → YAML 文件 → 环境变量（LLMCOUNCIL_ 前缀）的顺序合并，
// 覆盖议会成员、服务商、日志、遥测、指标与会话存储。
package config
