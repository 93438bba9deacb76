// 版权所有 2024 SceneForge Authors. 版权所有。
// 此源代码的使用由 MIT 许可规范,该许可可以是
// 在LICENSE文件中找到。

/*
包 persistence 提供运行日志（run journal）：记录每次运行及其各个 attempt 的结果。

# 概述

日志是可选的旁路记录，不参与重试循环的决策。每次运行一条 RunRecord，
每个 attempt 一条 AttemptRecord（序号、到达的状态、拒绝原因、诊断、耗时）。

# 后端

  - memory: 进程内 map，用于测试与一次性运行
  - sqlite: github.com/glebarez/sqlite（纯 Go，无 cgo）
  - postgres: gorm.io/driver/postgres

# 使用

	journal, err := persistence.NewJournal(cfg.Journal, logger)
	if err != nil {
		return err
	}
	defer journal.Close()
*/
package persistence
