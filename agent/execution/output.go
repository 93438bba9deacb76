package execution

import "unicode/utf8"

// tailBuffer 只保留最后 max 字节输出（回溯信息总在末尾），max <= 0 表示不限制。
type tailBuffer struct {
	max   int
	buf   []byte
	pos   int // 写满后最旧字节的位置
	total int
}

func newTailBuffer(max int) *tailBuffer {
	return &tailBuffer{max: max}
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	t.total += n
	if t.max <= 0 {
		t.buf = append(t.buf, p...)
		return n, nil
	}
	if len(p) >= t.max {
		t.buf = append(t.buf[:0], p[len(p)-t.max:]...)
		t.pos = 0
		return n, nil
	}
	if room := t.max - len(t.buf); room > 0 {
		k := min(room, len(p))
		t.buf = append(t.buf, p[:k]...)
		p = p[k:]
	}
	for len(p) > 0 {
		k := copy(t.buf[t.pos:], p)
		p = p[k:]
		t.pos = (t.pos + k) % t.max
	}
	return n, nil
}

// Truncated 是否丢弃过开头的输出
func (t *tailBuffer) Truncated() bool {
	return t.max > 0 && t.total > t.max
}

// String 按写入顺序返回保留的字节；截断处被切开的 UTF-8 字符会被跳过。
func (t *tailBuffer) String() string {
	if t.max <= 0 || len(t.buf) < t.max {
		return string(t.buf)
	}
	out := make([]byte, 0, t.max)
	out = append(out, t.buf[t.pos:]...)
	out = append(out, t.buf[:t.pos]...)
	if t.Truncated() {
		for i := 0; i < utf8.UTFMax && len(out) > 0 && !utf8.RuneStart(out[0]); i++ {
			out = out[1:]
		}
	}
	return string(out)
}
