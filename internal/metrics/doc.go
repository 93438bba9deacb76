// 版权所有 2024 SceneForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 metrics 提供基于 Prometheus 的指标采集，覆盖代码生成、重试循环、
引擎调用、代码清洗与产物校验。

# 概述

Collector 通过 promauto.With(reg) 注册到调用方给定的 Registry（nil 时为默认
Registry），所有指标按 namespace 隔离。

# 主要能力

  - LLM 指标：请求总数、耗时（含限流等待）、Token 用量、限流重试次数。
  - 循环指标：运行终态计数、每次运行消耗的 attempt 数、attempt 结果与耗时、
    状态转换计数。
  - 引擎指标：按 success/failure/timeout 分组的调用次数与耗时。
  - 清洗/校验指标：生效的清洗规则、按原因分组的校验拒绝次数。
*/
package metrics
