package agent

import "time"

// Progress 当前（或最近一次）运行的进度快照
type Progress struct {
	RunID       string    `json:"run_id,omitempty"`
	Scene       string    `json:"scene,omitempty"`
	State       State     `json:"state,omitempty"`
	Attempt     int       `json:"attempt"`
	MaxAttempts int       `json:"max_attempts"`
	LastReason  string    `json:"last_reason,omitempty"`
	StartedAt   time.Time `json:"started_at,omitzero"`
	Running     bool      `json:"running"`
}

// Progress 返回进度快照；可在 Run 执行期间从其他 goroutine 调用
func (o *Orchestrator) Progress() Progress {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.progress
}

func (o *Orchestrator) updateProgress(fn func(p *Progress)) {
	o.mu.Lock()
	defer o.mu.Unlock()
	fn(&o.progress)
}
