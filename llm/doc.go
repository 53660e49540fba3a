// Copyright (c) llmcouncil Authors.
// Licensed under the MIT License.

/*
包 llm 提供议会成员访问大语言模型的统一接入层。

# 概述

审议核心只关心"向某个模型发送提示词并拿回文本"。本包把这件事抽象为
[Provider] 接口，并统一错误语义（[Error] / [ErrorCode]），
让上层可以根据 Retryable 标记决定是否重试。

# 核心接口

  - [Provider]：Completion / HealthCheck / Name
  - [ProviderRegistry]：按名称注册与查找 Provider

# 子包

  - providers：OpenAI 兼容协议的公共类型与 HTTP 错误映射
  - providers/openaicompat：通用 OpenAI 兼容 HTTP Provider
  - retry：指数退避重试
  - tokenizer：提示词 Token 计数
*/
package llm
