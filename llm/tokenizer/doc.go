// Package tokenizer 提供统一的 Token 计数接口，
// 支持 tiktoken 精确计数与字符估算器，用于统计对话状态占用的上下文窗口。
package tokenizer
