package agent

import "errors"

var (
	// ErrComponentMissing 必需组件未设置
	ErrComponentMissing = errors.New("orchestrator component not set")

	// ErrConfigInvalid 配置无效
	ErrConfigInvalid = errors.New("invalid orchestrator config")

	// ErrSlotBusy 输出目录被其他运行占用
	ErrSlotBusy = errors.New("output slot is busy")
)
