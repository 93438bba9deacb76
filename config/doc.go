// Package config 提供 SceneForge 的配置管理功能。
//
// 配置优先级：默认值 → YAML 文件 → SCENEFORGE_ 前缀的环境变量。
// llm.api_key 为空时回退到 MISTRAL_API_KEY / OPENAI_API_KEY。
package config
