// Package mistral 提供 Mistral AI 的 LLM Provider 适配。
//
// Mistral 的 Chat Completions 接口与 OpenAI 兼容，本包只是
// openaicompat.Provider 的预设：默认地址 https://api.mistral.ai，
// 默认模型 codestral-latest。429 会被映射为 llm.ErrRateLimited，
// 由调用方决定是否等待重试。
package mistral
