// Package openai 提供 OpenAI Chat Completions 的 Provider 适配。
//
// 作为 mistral 之外的备选代码生成后端，行为与 openaicompat 一致，
// 额外支持 OpenAI-Organization 请求头。
package openai
