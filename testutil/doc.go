// Copyright 2026 SceneForge Authors. All rights reserved.
// Use of this source code is governed by a BSD-style license.

/*
Package testutil 提供 SceneForge 测试的共享工具和辅助函数。

# 概述

testutil 包为整个项目的单元测试与基准测试提供统一的辅助能力，
避免各包重复实现相似的测试基础设施。所有测试应优先使用此包
中的工具函数和 Mock 实现。

# 核心能力

  - 上下文辅助: TestContext / TestContextWithTimeout / CancelledContext，
    自动注册 Cleanup 防止泄漏
  - 异步断言: AssertEventuallyTrue / WaitFor，支持超时轮询等待条件满足
  - 文件与消息: WriteFile / Roles

# 子包

  - testutil/mocks: MockProvider（LLM Provider），支持 Builder 模式、
    按序脚本（限流 → 成功）与错误注入
  - testutil/fixtures: 合成场景图片（草地、河流、树干）与样例生成程序

# 使用示例

	ctx := testutil.TestContext(t)
	provider := mocks.NewMockProvider().
	    WithScript(mocks.Step{Err: mocks.RateLimitError()}, mocks.Step{Content: fixtures.ValidProgram})
	resp, err := provider.Completion(ctx, req)
	require.NoError(t, err)
*/
package testutil
