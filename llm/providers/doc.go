// Copyright (c) llmcouncil Authors.
// Licensed under the MIT License.

/*
# 概述

包 providers 是具体 Provider 实现的公共基础层：OpenAI 兼容协议的
请求/响应结构、HTTP 状态码到 llm.Error 的映射，以及常见服务商的接入预设。

# 核心类型

  - Preset：已知服务商的默认 BaseURL、端点与 API Key 环境变量
  - OpenAICompat*：/v1/chat/completions 的请求/响应结构体

# 核心函数

  - MapHTTPError：HTTP 状态码 → llm.Error（含 Retryable 标记）
  - ReadErrorMessage：读取上游错误消息
  - ToLLMChatResponse / ConvertMessagesToOpenAI：协议转换
  - LookupPreset：按名称查找服务商预设
*/
package providers
