package execution

import (
	"fmt"
	"os"
	"path/filepath"
)

// WriteProgram 把程序写入固定的单槽文件，每次尝试覆盖。
// 先写临时文件再 rename，引擎不会读到半截程序。
func WriteProgram(path, program string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create program dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".program-*")
	if err != nil {
		return fmt.Errorf("create temp program: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(program); err != nil {
		tmp.Close()
		return fmt.Errorf("write program: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close program: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("chmod program: %w", err)
	}
	return os.Rename(tmpName, path)
}
