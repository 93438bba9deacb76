package lock

import (
	"context"
	"sync"
)

// LocalLocker 进程内锁，用于单进程运行和测试。
type LocalLocker struct {
	prefix string
	mu     sync.Mutex
	held   map[string]uint64
	seq    uint64
}

// NewLocalLocker 创建进程内锁
func NewLocalLocker(prefix string) *LocalLocker {
	return &LocalLocker{prefix: prefix, held: make(map[string]uint64)}
}

func (l *LocalLocker) TryAcquire(ctx context.Context, key string) (Release, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	key = l.prefix + key

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.held[key]; ok {
		return nil, ErrLocked
	}
	l.seq++
	token := l.seq
	l.held[key] = token

	var once sync.Once
	return func(context.Context) error {
		once.Do(func() {
			l.mu.Lock()
			defer l.mu.Unlock()
			if l.held[key] == token {
				delete(l.held, key)
			}
		})
		return nil
	}, nil
}

// Held 当前持有的 key 数
func (l *LocalLocker) Held() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.held)
}

func (l *LocalLocker) Close() error { return nil }
