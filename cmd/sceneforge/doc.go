// Copyright (c) SceneForge Authors.
// Licensed under the MIT License.

/*
Package main 提供 SceneForge 命令行入口。

# 概述

cmd/sceneforge 把场景描述交给代码生成模型，清洗生成的 Blender 脚本，
在引擎子进程中执行，并根据渲染出的像素判定结果；失败的 attempt
被合成为纠正提示送回模型，直到通过或 attempt 用尽。

# 子命令

  - run       — 完整重试循环；ACCEPTED 退出码 0，EXHAUSTED 为 2，ABORTED 为 1
  - exec      — 单次生成并执行，不做像素校验
  - sanitize  — 清洗一段模型输出（文件或 stdin），--rules 列出规则
  - validate  — 校验渲染图，默认取配置的产物布局
  - history   — 查看 journal 中的运行与 attempt
  - version   — 版本信息，Version / BuildTime / GitCommit 通过 ldflags 注入

# 装配

buildApp 按配置创建 Provider（mistral / openai）、五个循环组件，以及可选的
journal（gorm：sqlite / postgres / memory）、输出目录锁（本地或 Redis）、
attempt 归档、Prometheus 指标端点与 OpenTelemetry 导出。日志使用 zap，
文件输出经 lumberjack 轮转。
*/
package main
