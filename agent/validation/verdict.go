package validation

import (
	"fmt"
	"path/filepath"
	"strings"
)

// 拒绝原因
const (
	ReasonMissingArtifact    = "missing-artifact"
	ReasonUnreadableArtifact = "unreadable-artifact"
	ReasonUniformImage       = "uniform-image"
	ReasonLowDiversity       = "low-diversity"
	ReasonObjectOverlap      = "object-overlap"
)

// InsufficientReason 类别占比不足时的原因，例如 "insufficient-water"。
func InsufficientReason(class string) string {
	return "insufficient-" + class
}

// Failure 单个产物的拒绝原因
type Failure struct {
	Reason string `json:"reason"`
	Detail string `json:"detail,omitempty"`
}

func (f Failure) String() string {
	if f.Detail == "" {
		return f.Reason
	}
	return fmt.Sprintf("%s (%s)", f.Reason, f.Detail)
}

// ArtifactReport 单个产物的分析结果
type ArtifactReport struct {
	Path      string             `json:"path"`
	Width     int                `json:"width,omitempty"`
	Height    int                `json:"height,omitempty"`
	StdDev    float64            `json:"std_dev,omitempty"`
	Fractions map[string]float64 `json:"fractions,omitempty"`
	Failure   *Failure           `json:"failure,omitempty"`
}

// Passed 该产物通过全部检查
func (r ArtifactReport) Passed() bool { return r.Failure == nil }

// Verdict 对全部产物的判定。只有每个产物都通过时才接受。
type Verdict struct {
	Accepted  bool             `json:"accepted"`
	Artifacts []ArtifactReport `json:"artifacts"`
}

// Failures 返回所有未通过的产物
func (v *Verdict) Failures() []ArtifactReport {
	var out []ArtifactReport
	for _, a := range v.Artifacts {
		if !a.Passed() {
			out = append(out, a)
		}
	}
	return out
}

// Reason 汇总所有失败产物的原因，按产物顺序，形如
// "render_1.png: uniform-image (mean std-dev 0.00 < 2.00); render_3.png: object-overlap (...)"。
// 接受时为空。
func (v *Verdict) Reason() string {
	failures := v.Failures()
	parts := make([]string, 0, len(failures))
	for _, a := range failures {
		parts = append(parts, fmt.Sprintf("%s: %s", filepath.Base(a.Path), a.Failure))
	}
	return strings.Join(parts, "; ")
}

// Reasons 去重后的原因码，用于反馈合成与指标
func (v *Verdict) Reasons() []string {
	seen := make(map[string]bool)
	var out []string
	for _, a := range v.Failures() {
		if !seen[a.Failure.Reason] {
			seen[a.Failure.Reason] = true
			out = append(out, a.Failure.Reason)
		}
	}
	return out
}
