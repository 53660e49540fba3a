// Copyright (c) llmcouncil Authors.
// Licensed under the MIT License.

/*
Package testutil 提供议会审议测试的共享工具和辅助函数。

# 概述

testutil 包为各包的单元测试提供统一的辅助能力，
避免重复实现相似的测试基础设施。

# 核心能力

  - 上下文辅助: TestContext / CancelledContext，自动注册 Cleanup 防止泄漏
  - 断言工具: AssertErrorCode（错误链中的错误码）/ AssertStates（审议状态序列）

# 子包

  - testutil/mocks: MockInvoker（按成员与轮次编排的 council.Invoker）、
    MockProvider（llm.Provider），均支持 Builder 模式与错误注入
  - testutil/fixtures: 议会成员、排名文本与 ChatResponse 样例

# 使用示例

	ctx := testutil.TestContext(t)
	invoker := mocks.NewMockInvoker().
		WithError("mock/model-2", "stage1", errors.New("boom"))
	result, err := council.NewPipeline(invoker).Run(ctx, "q", fixtures.Council(3), fixtures.Chairman())
*/
package testutil
