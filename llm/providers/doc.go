/*
包 providers 是 Chat Completions 兼容服务商的公共层。

  - Config — 连接配置（APIKey、BaseURL、Model、Timeout、RequestsPerMinute）
  - ChatCompletion* — 线上请求/响应结构体与 llm 类型之间的转换
  - MapHTTPError / ErrorFromResponse — HTTP 状态码到 llm.Error 的映射；
    429 可重试，401/403/400/404/422 与额度用尽为致命错误
*/
package providers
