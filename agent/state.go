package agent

import "fmt"

// State 重试循环的状态
type State string

const (
	StateGenerate State = "GENERATE" // 请求代码生成
	StatePatch    State = "PATCH"    // 清洗并写入单槽程序文件
	StateExecute  State = "EXECUTE"  // 引擎子进程执行
	StateValidate State = "VALIDATE" // 像素校验
	StateFeedback State = "FEEDBACK" // 合成下一轮提示

	StateAccepted  State = "ACCEPTED"  // 终态：通过
	StateExhausted State = "EXHAUSTED" // 终态：attempt 用尽
	StateAborted   State = "ABORTED"   // 终态：不可恢复的 API 错误或取消
)

// validTransitions 定义合法的状态转换。
// 每个工作状态都可能因拒绝进入 FEEDBACK，或因致命错误进入 ABORTED。
var validTransitions = map[State][]State{
	StateGenerate: {StatePatch, StateFeedback, StateAborted},
	StatePatch:    {StateExecute, StateFeedback, StateAborted},
	StateExecute:  {StateValidate, StateFeedback, StateAborted},
	StateValidate: {StateAccepted, StateFeedback, StateAborted},
	StateFeedback: {StateGenerate, StateExhausted, StateAborted},
}

// CanTransition 检查状态转换是否合法
func CanTransition(from, to State) bool {
	allowed, ok := validTransitions[from]
	if !ok {
		return false
	}
	for _, s := range allowed {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal 是否终态
func (s State) Terminal() bool {
	return s == StateAccepted || s == StateExhausted || s == StateAborted
}

// ErrInvalidTransition 非法状态转换错误
type ErrInvalidTransition struct {
	From State
	To   State
}

func (e ErrInvalidTransition) Error() string {
	return fmt.Sprintf("invalid state transition: %s -> %s", e.From, e.To)
}
