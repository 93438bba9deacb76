package artifacts

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
)

// Clear 删除上一次尝试留下的产物，返回实际删除的文件数。
// 不存在的路径被忽略。
func Clear(paths []string) (int, error) {
	removed := 0
	var errs []error
	for _, p := range paths {
		err := os.Remove(p)
		switch {
		case err == nil:
			removed++
		case errors.Is(err, fs.ErrNotExist):
		default:
			errs = append(errs, fmt.Errorf("remove stale artifact: %w", err))
		}
	}
	return removed, errors.Join(errs...)
}
