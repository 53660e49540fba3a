// Copyright (c) llmcouncil Authors.
// Licensed under the MIT License.

/*
Package types 提供 llmcouncil 的全局共享类型定义。

# 概述

types 是最底层的公共包，不依赖任何内部包，为 council、llm、config
等上层模块提供统一的错误契约与上下文传播工具。

# 核心类型

  - Error / ErrorCode：结构化错误体系，含 Retryable 与 Round 标记
  - ErrAllMembersFailed / ErrSynthesisFailed：审议流程的两类致命错误

# 主要能力

  - Context 传播：WithTraceID / WithSessionID / WithRound / WithMemberID
  - 错误工具链：AsError / IsErrorCode / IsRetryable / GetErrorCode
*/
package types
