// Copyright (c) llmcouncil Authors.
// Licensed under the MIT License.

/*
包 metrics 提供基于 Prometheus 的审议指标采集能力。

# 概述

Collector 统一注册和记录 Prometheus 指标，默认使用 promauto 注册到全局
Registry，也可以通过 NewCollectorWithRegistry 注册到独立 Registry。
所有指标按 namespace 隔离。

# 主要能力

  - 审议指标：结果计数与耗时（outcome）、阶段耗时（stage）、状态转换（from/to）
  - 成员调用：调用计数（round/status）、调用耗时、提示词 token 数
  - 排名解析：按 strict/fallback/none 策略计数
  - LLM 指标：按 provider/model 的请求计数、耗时与 token 用量
  - 数据库指标：会话存储查询耗时（operation）
*/
package metrics
