// Package generator 实现代码生成客户端与对话状态。
//
// Generate 的契约：
//   - 追加用户轮次后发起补全请求；
//   - 限流（429）按固定间隔重发，次数不限但受 RateLimitCeiling 墙钟上限约束；
//   - 其余失败回滚用户轮次并返回 *types.Error；
//   - 成功后追加 assistant 轮次，返回未经处理的原始文本。
package generator
