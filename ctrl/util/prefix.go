package util

import (
	"bytes"
	"io"
	"sync"
)

// prefixWriter copies complete lines to out, each starting with prefix. A trailing partial line is held until
// its newline arrives.
type prefixWriter struct {
	mu      sync.Mutex
	out     io.Writer
	prefix  []byte
	pending []byte
}

func newPrefixWriter(out io.Writer, prefix string) *prefixWriter {
	return &prefixWriter{
		out:    out,
		prefix: []byte(prefix),
	}
}

func (w *prefixWriter) Write(data []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.pending = append(w.pending, data...)
	for {
		idx := bytes.IndexByte(w.pending, '\n')
		if idx < 0 {
			break
		}
		line := append(append([]byte{}, w.prefix...), w.pending[:idx+1]...)
		if _, err := w.out.Write(line); err != nil {
			return 0, err
		}
		w.pending = w.pending[idx+1:]
	}
	return len(data), nil
}
