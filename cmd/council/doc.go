// Copyright (c) llmcouncil Authors.
// Licensed under the MIT License.

/*
Package main 提供 llmcouncil 命令行程序入口。

# 概述

cmd/council 从 YAML 配置与环境变量装配模型服务商、调用器、指标、
遥测与会话存储，然后运行一次三阶段审议并输出 Markdown 或 JSON。

# 子命令

  - ask：运行审议，可附加上下文文件（--context）、保存结果（--save）、
    输出 Prometheus 指标（--metrics）。审议失败时仍输出部分结果，退出码为 1
  - history / show：列出与查看已保存的会话
  - health：对用到的服务商做连通性检查
  - version / help

# 装配

  - llm/providers/openaicompat：每个用到的 provider 一个客户端，已知服务商使用内置预设
  - council.ProviderInvoker：按 provider 的限流（x/time/rate）与重试（llm/retry）
  - internal/metrics + internal/telemetry：通过 council.MultiRecorder 同时记录
  - llm/tokenizer：统计每次调用的提示词 token 数
  - store：gorm 会话存储
*/
package main
