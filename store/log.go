package store

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

var ErrClosed = errors.New("store: closed")

// WrittenLog remembers which decision streams already made it into a Parquet
// file. A stream is one snake in one game, keyed by StreamKey.
//
// The log is an append-only text file with one key per line. A torn final
// line after a crash is read back as an unknown key and simply rewritten.
type WrittenLog struct {
	mu   sync.RWMutex
	file *os.File
	keys map[string]struct{}
}

// StreamKey identifies the decisions of one snake in one game.
func StreamKey(gameID, snakeID string) string {
	return gameID + "/" + snakeID
}

func OpenWrittenLog(path string) (*WrittenLog, error) {
	if path == "" {
		return nil, fmt.Errorf("written log path is required")
	}

	keys := make(map[string]struct{})
	if f, err := os.Open(path); err == nil {
		sc := bufio.NewScanner(f)
		for sc.Scan() {
			if k := strings.TrimSpace(sc.Text()); k != "" {
				keys[k] = struct{}{}
			}
		}
		_ = f.Close()
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read written log: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create written log dir: %w", err)
	}
	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open written log: %w", err)
	}
	return &WrittenLog{file: file, keys: keys}, nil
}

func (l *WrittenLog) Has(key string) bool {
	l.mu.RLock()
	defer l.mu.RUnlock()
	_, ok := l.keys[key]
	return ok
}

func (l *WrittenLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.keys)
}

// Add appends the keys not yet present and syncs once.
func (l *WrittenLog) Add(keys ...string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return ErrClosed
	}

	var sb strings.Builder
	fresh := make([]string, 0, len(keys))
	for _, k := range keys {
		if k == "" {
			continue
		}
		if _, ok := l.keys[k]; ok {
			continue
		}
		sb.WriteString(k)
		sb.WriteByte('\n')
		fresh = append(fresh, k)
	}
	if len(fresh) == 0 {
		return nil
	}

	if _, err := l.file.WriteString(sb.String()); err != nil {
		return fmt.Errorf("append written log: %w", err)
	}
	if err := l.file.Sync(); err != nil {
		return fmt.Errorf("sync written log: %w", err)
	}
	for _, k := range fresh {
		l.keys[k] = struct{}{}
	}
	return nil
}

func (l *WrittenLog) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	return err
}
