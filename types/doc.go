/*
Package types 提供 sceneforge 的全局共享类型定义。

types 是最底层的公共包，不依赖任何内部包。

# 核心类型

  - Error / ErrorCode — 结构化错误体系：TRANSIENT_API、FATAL_API、
    EXECUTION_FAILED、VALIDATION_FAILED、BUDGET_EXHAUSTED 等
  - WithRunID / WithAttempt — 在 context 中传播运行 ID 与尝试序号
*/
package types
