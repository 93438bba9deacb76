/*
Package llm 定义与大语言模型交互的最小契约。

# 核心类型

  - Provider      — 同步补全、健康检查、名称
  - ChatRequest   — system/user/assistant 消息序列、温度、最大 token
  - ChatResponse  — choices 与 usage
  - Error         — 带错误码与 Retryable 标记的上游错误

# 错误分类

IsRateLimited 识别 429 限流信号，调用方应在固定延迟后重试；
IsFatal 识别鉴权、权限、请求格式与配额错误，调用方应立即终止。

具体服务商实现位于 llm/providers 子包。
*/
package llm
