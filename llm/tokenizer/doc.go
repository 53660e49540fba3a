// Package tokenizer 提供提示词 Token 计数：OpenAI 系模型使用 tiktoken 精确计数，
// 其余模型回退到区分 CJK/ASCII 的字符估算器。议会流水线用它统计各轮提示词规模。
package tokenizer
