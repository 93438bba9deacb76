package execution

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/BaSui01/sceneforge/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// shellConfig 用 /bin/sh 代替引擎执行程序文件
func shellConfig() Config {
	cfg := DefaultConfig()
	cfg.Executable = "/bin/sh"
	cfg.Args = []string{ProgramPlaceholder}
	cfg.Timeout = 5 * time.Second
	cfg.KillGrace = time.Second
	return cfg
}

func writeScript(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires /bin/sh")
	}
	path := filepath.Join(t.TempDir(), "program.py")
	require.NoError(t, WriteProgram(path, body))
	return path
}

func newSupervisor(t *testing.T, cfg Config) *Supervisor {
	t.Helper()
	s, err := NewSupervisor(cfg, zaptest.NewLogger(t))
	require.NoError(t, err)
	return s
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, ModeCapture, cfg.Mode)

	s := newSupervisor(t, cfg)
	assert.Equal(t,
		[]string{"blender", "--background", "--python", "/tmp/p.py", "--python-exit-code", "1"},
		s.Command("/tmp/p.py"))
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"no executable", func(c *Config) { c.Executable = "" }},
		{"zero timeout", func(c *Config) { c.Timeout = 0 }},
		{"unknown mode", func(c *Config) { c.Mode = "parallel" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestExecute_Success(t *testing.T) {
	path := writeScript(t, "echo rendering\nmkdir -p renders && : > renders/render.png\n")
	s := newSupervisor(t, shellConfig())

	res, err := s.Execute(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.Succeeded())
	assert.Equal(t, 0, res.ExitCode)
	assert.Contains(t, res.Stdout, "rendering")
	assert.Empty(t, res.Diagnostics())

	// 工作目录是程序所在目录
	assert.FileExists(t, filepath.Join(filepath.Dir(path), "renders", "render.png"))

	stats := s.Stats()
	assert.Equal(t, int64(1), stats.TotalExecutions)
	assert.Equal(t, int64(1), stats.SuccessExecutions)
}

func TestExecute_CaptureNonZeroExit(t *testing.T) {
	path := writeScript(t, "echo 'IndentationError: unexpected indent' >&2\nexit 1\n")
	s := newSupervisor(t, shellConfig())

	res, err := s.Execute(context.Background(), path)
	require.NoError(t, err)
	assert.False(t, res.Succeeded())
	assert.Equal(t, 1, res.ExitCode)
	assert.Equal(t, "IndentationError: unexpected indent", res.Diagnostics())
	assert.Equal(t, int64(1), s.Stats().FailedExecutions)
}

func TestExecute_DiagnosticsFallBackToStdout(t *testing.T) {
	path := writeScript(t, "echo 'Error: Python: Traceback'\nexit 3\n")
	s := newSupervisor(t, shellConfig())

	res, err := s.Execute(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "Error: Python: Traceback", res.Diagnostics())
}

func TestExecute_TimeoutIsAFailure(t *testing.T) {
	path := writeScript(t, "echo started >&2\nsleep 10\n")
	cfg := shellConfig()
	cfg.Timeout = 200 * time.Millisecond
	s := newSupervisor(t, cfg)

	start := time.Now()
	res, err := s.Execute(context.Background(), path)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 5*time.Second)

	assert.True(t, res.TimedOut)
	assert.False(t, res.Succeeded())
	assert.True(t, strings.HasPrefix(res.Diagnostics(), "execution timed out"))
	assert.Equal(t, int64(1), s.Stats().TimeoutExecutions)
}

func TestExecute_FailFast(t *testing.T) {
	path := writeScript(t, "echo boom >&2\nexit 2\n")
	cfg := shellConfig()
	cfg.Mode = ModeFailFast
	s := newSupervisor(t, cfg)

	res, err := s.Execute(context.Background(), path)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrExecutionFailed))
	assert.Contains(t, err.Error(), "boom")
	require.NotNil(t, res)
	assert.Equal(t, 2, res.ExitCode)
}

func TestExecute_FailFastTimeout(t *testing.T) {
	path := writeScript(t, "sleep 10\n")
	cfg := shellConfig()
	cfg.Mode = ModeFailFast
	cfg.Timeout = 100 * time.Millisecond
	s := newSupervisor(t, cfg)

	_, err := s.Execute(context.Background(), path)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrExecutionFailed))
	assert.Contains(t, err.Error(), "timed out")
}

func TestExecute_ParentCancellation(t *testing.T) {
	path := writeScript(t, "sleep 10\n")
	s := newSupervisor(t, shellConfig())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(100*time.Millisecond, cancel)

	_, err := s.Execute(ctx, path)
	require.Error(t, err)
	assert.True(t, types.IsErrorCode(err, types.ErrCancelled))
}

func TestExecute_OutputTruncated(t *testing.T) {
	path := writeScript(t, "i=0\nwhile [ $i -lt 200 ]; do echo 0123456789; i=$((i+1)); done\n")
	cfg := shellConfig()
	cfg.MaxOutputBytes = 64
	s := newSupervisor(t, cfg)

	res, err := s.Execute(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Stdout, 64)
}

func TestExecute_EnvAndArgsTemplate(t *testing.T) {
	path := writeScript(t, "echo \"$SCENE_MODE $1\"\n")
	cfg := shellConfig()
	cfg.Args = []string{ProgramPlaceholder, "--python=" + ProgramPlaceholder}
	cfg.Env = map[string]string{"SCENE_MODE": "batch"}
	s := newSupervisor(t, cfg)

	res, err := s.Execute(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "batch --python="+path+"\n", res.Stdout)
}

func TestExecute_MissingProgram(t *testing.T) {
	s := newSupervisor(t, shellConfig())
	_, err := s.Execute(context.Background(), filepath.Join(t.TempDir(), "absent.py"))
	assert.Error(t, err)
}

func TestExecute_MissingExecutable(t *testing.T) {
	path := writeScript(t, "exit 0\n")
	cfg := shellConfig()
	cfg.Executable = filepath.Join(t.TempDir(), "no-such-engine")
	s := newSupervisor(t, cfg)

	res, err := s.Execute(context.Background(), path)
	require.Error(t, err)
	assert.Nil(t, res)
	assert.Contains(t, err.Error(), "start engine")
}

func TestWriteProgram_Overwrites(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "scene.py")
	require.NoError(t, WriteProgram(path, "first"))
	require.NoError(t, WriteProgram(path, "second"))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "second", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp files must not be left behind")
}

func TestTailBuffer(t *testing.T) {
	tests := []struct {
		name      string
		max       int
		writes    []string
		want      string
		truncated bool
	}{
		{"fits", 8, []string{"abc", "de"}, "abcde", false},
		{"exactly full", 5, []string{"abc", "de"}, "abcde", false},
		{"wraps", 5, []string{"abc", "defgh"}, "defgh", true},
		{"many small writes", 4, []string{"a", "b", "c", "d", "e", "f"}, "cdef", true},
		{"single large write", 3, []string{"0123456789"}, "789", true},
		{"large write after wrap", 4, []string{"abcdef", "gh", "ijklmn"}, "klmn", true},
		{"unlimited", 0, []string{"abc", "def"}, "abcdef", false},
		{"split rune is dropped", 4, []string{"ab场景"}, "景", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newTailBuffer(tt.max)
			for _, w := range tt.writes {
				n, err := b.Write([]byte(w))
				require.NoError(t, err)
				assert.Equal(t, len(w), n)
			}
			assert.Equal(t, tt.want, b.String())
			assert.Equal(t, tt.truncated, b.Truncated())
		})
	}
}

func TestExecute_TruncationKeepsTraceback(t *testing.T) {
	path := writeScript(t, "i=0\nwhile [ $i -lt 200 ]; do echo noise-line >&2; i=$((i+1)); done\n"+
		"echo 'NameError: name \"positions\" is not defined' >&2\nexit 1\n")
	cfg := shellConfig()
	cfg.MaxOutputBytes = 128
	s := newSupervisor(t, cfg)

	res, err := s.Execute(context.Background(), path)
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Stderr, 128)
	assert.True(t, strings.HasSuffix(res.Diagnostics(), `NameError: name "positions" is not defined`))
}
