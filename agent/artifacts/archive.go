package artifacts

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"go.uber.org/zap"
)

// Kind 归档条目类型
type Kind string

const (
	KindProgram Kind = "program"
	KindRender  Kind = "render"
)

const manifestName = "manifest.json"

// Entry 一个归档文件
type Entry struct {
	Name     string `json:"name"`
	Kind     Kind   `json:"kind"`
	Size     int64  `json:"size"`
	Checksum string `json:"checksum"`
	Source   string `json:"source"`
}

// Manifest 一次尝试的归档清单
type Manifest struct {
	RunID     string    `json:"run_id"`
	Attempt   int       `json:"attempt"`
	State     string    `json:"state,omitempty"`
	Reason    string    `json:"reason,omitempty"`
	Entries   []Entry   `json:"entries"`
	Missing   []string  `json:"missing,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	dir string
}

// Dir 清单所在目录
func (m *Manifest) Dir() string { return m.dir }

// Snapshot 需要归档的一次尝试
type Snapshot struct {
	RunID   string
	Attempt int
	State   string
	Reason  string
	Program string   // 程序文件路径
	Renders []string // 约定的产物路径，不存在的记为 Missing
}

// Archiver 把每次尝试的程序与渲染结果复制到 <root>/<run-id>/attempt_<k>/，
// 并写入带 SHA-256 校验和的清单。
type Archiver struct {
	root   string
	logger *zap.Logger
}

// NewArchiver 创建 Archiver
func NewArchiver(root string, logger *zap.Logger) (*Archiver, error) {
	if root == "" {
		return nil, errors.New("artifacts: archive root is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create archive root: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Archiver{root: root, logger: logger.With(zap.String("component", "archiver"))}, nil
}

// Root 归档根目录
func (a *Archiver) Root() string { return a.root }

// Archive 归档一次尝试
func (a *Archiver) Archive(ctx context.Context, snap Snapshot) (*Manifest, error) {
	if snap.RunID == "" || snap.Attempt < 1 {
		return nil, fmt.Errorf("artifacts: invalid snapshot run=%q attempt=%d", snap.RunID, snap.Attempt)
	}
	dir := filepath.Join(a.root, snap.RunID, fmt.Sprintf("attempt_%d", snap.Attempt))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create attempt dir: %w", err)
	}

	m := &Manifest{
		RunID:     snap.RunID,
		Attempt:   snap.Attempt,
		State:     snap.State,
		Reason:    snap.Reason,
		CreatedAt: time.Now().UTC(),
		dir:       dir,
	}

	type source struct {
		path string
		kind Kind
	}
	var sources []source
	if snap.Program != "" {
		sources = append(sources, source{snap.Program, KindProgram})
	}
	for _, r := range snap.Renders {
		sources = append(sources, source{r, KindRender})
	}

	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		entry, err := copyFile(src.path, dir)
		if errors.Is(err, fs.ErrNotExist) {
			m.Missing = append(m.Missing, filepath.Base(src.path))
			continue
		}
		if err != nil {
			return nil, err
		}
		entry.Kind = src.kind
		m.Entries = append(m.Entries, *entry)
	}

	data, err := json.MarshalIndent(m, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, manifestName), data, 0o644); err != nil {
		return nil, fmt.Errorf("failed to write manifest: %w", err)
	}

	a.logger.Debug("attempt archived",
		zap.String("run_id", snap.RunID),
		zap.Int("attempt", snap.Attempt),
		zap.Int("entries", len(m.Entries)),
		zap.Strings("missing", m.Missing))
	return m, nil
}

// List 按尝试序号返回某次运行的全部清单
func (a *Archiver) List(runID string) ([]*Manifest, error) {
	pattern := filepath.Join(a.root, runID, "attempt_*", manifestName)
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	out := make([]*Manifest, 0, len(paths))
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return nil, fmt.Errorf("failed to read manifest: %w", err)
		}
		var m Manifest
		if err := json.Unmarshal(data, &m); err != nil {
			return nil, fmt.Errorf("failed to parse %s: %w", p, err)
		}
		m.dir = filepath.Dir(p)
		out = append(out, &m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Attempt < out[j].Attempt })
	return out, nil
}

// Verify 重新计算校验和，返回内容不一致或缺失的条目名
func (a *Archiver) Verify(m *Manifest) ([]string, error) {
	var bad []string
	for _, e := range m.Entries {
		sum, _, err := checksum(filepath.Join(m.dir, e.Name))
		if errors.Is(err, fs.ErrNotExist) {
			bad = append(bad, e.Name)
			continue
		}
		if err != nil {
			return nil, err
		}
		if sum != e.Checksum {
			bad = append(bad, e.Name)
		}
	}
	return bad, nil
}

func copyFile(src, dstDir string) (*Entry, error) {
	in, err := os.Open(src)
	if err != nil {
		return nil, err
	}
	defer in.Close()

	name := filepath.Base(src)
	out, err := os.Create(filepath.Join(dstDir, name))
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", name, err)
	}

	h := sha256.New()
	size, err := io.Copy(io.MultiWriter(out, h), in)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, fmt.Errorf("failed to copy %s: %w", name, err)
	}
	return &Entry{
		Name:     name,
		Size:     size,
		Checksum: hex.EncodeToString(h.Sum(nil)),
		Source:   src,
	}, nil
}

func checksum(path string) (string, int64, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()
	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}
