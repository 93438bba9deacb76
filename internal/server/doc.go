// 版权所有 2024 SceneForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 server 管理运行期间暴露 Prometheus 指标与运行进度的 HTTP 端点。

# 核心类型

  - Manager：持有 http.Server、net.Listener 与异步错误通道，
    提供 Start/Shutdown/Errors/Addr 等生命周期方法。
  - Config：监听地址、读写超时与优雅关闭超时。

# 主要能力

  - Routes：/metrics（promhttp）、/healthz，以及可选的 /status（JSON 进度快照）。
  - 非阻塞启动：Start 在后台 goroutine 中运行服务。
  - 优雅关闭：Shutdown 在配置的超时内排空请求，可重复调用。
*/
package server
