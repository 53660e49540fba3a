// Copyright (c) llmcouncil Authors.
// Licensed under the MIT License.

/*
包 council 实现多模型议会审议核心：一个问题交给多个模型独立作答，
模型之间匿名互评排名，最后由主席模型综合出一个最终答案。

# 三个阶段

  - 第一轮：[Collector] 并发调用所有成员，单个成员失败只会变成失败记录；
    全部失败时审议以 ALL_MEMBERS_FAILED 结束。
  - 第二轮：[Anonymize] 为成功的回答分配 "Response A"、"Response B" 等标签，
    所有成员对匿名回答排名，[Parser] 解析排名文本，[Aggregate] 按平均名次聚合。
  - 第三轮：主席拿到还原身份的回答与聚合排名，综合出最终答案；
    主席失败时以 SYNTHESIS_FAILED 结束，但仍返回已完成阶段的数据。

# 状态机

	created -> stage1_complete -> stage2_complete -> stage3_complete
	任何阶段 -> failed

# 协作者

  - [Invoker]：唯一的模型调用契约，[ProviderInvoker] 基于 llm.ProviderRegistry 实现
  - [Recorder]：指标接口，由 internal/metrics 与 internal/telemetry 实现
  - [TokenCounter]：提示词 token 统计，通常来自 llm/tokenizer

每次 [Pipeline.Run] 拥有独立的会话状态，Pipeline 本身可以被并发使用。
*/
package council
