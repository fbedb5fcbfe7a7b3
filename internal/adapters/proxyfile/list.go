package proxyfile

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/arven-dev/botfleet/internal/ports"
)

const (
	listFileMode    = 0o600
	listDirMode     = 0o700
	tempFilePattern = ".proxies-*.txt.tmp"
)

// List is the flat ordered proxy file. It is the single shared mutable
// resource across sessions: every mutation is a complete load, filter,
// atomic-rewrite sequence under a per-path lock, and every read loads the
// file fresh so evictions by concurrent callers are immediately visible.
type List struct {
	path string
	mu   *sync.RWMutex
}

var (
	lockRegistryMu sync.Mutex
	pathLockMap    = map[string]*sync.RWMutex{}
)

var _ ports.ProxyList = (*List)(nil)

func NewList(path string) (*List, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("resolve proxy list path: %w", err)
	}
	absPath = filepath.Clean(absPath)

	return &List{path: absPath, mu: lockForPath(absPath)}, nil
}

// Load returns the current list with line endings normalized and blank
// lines dropped. A missing file is an empty pool, not an error.
func (l *List) Load(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	return l.read()
}

// Evict removes every line exactly equal to raw and rewrites the file.
// Evicting a value already absent is a no-op.
func (l *List) Evict(ctx context.Context, raw string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	proxies, err := l.read()
	if err != nil {
		return err
	}

	kept := make([]string, 0, len(proxies))
	for _, proxy := range proxies {
		if proxy != raw {
			kept = append(kept, proxy)
		}
	}

	if len(kept) == len(proxies) {
		return nil
	}

	return l.write(kept)
}

// Save replaces the whole list. Used by the operator audit flow after an
// explicit evict decision.
func (l *List) Save(ctx context.Context, proxies []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	return l.write(proxies)
}

func (l *List) read() ([]string, error) {
	data, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read proxy list: %w", err)
	}

	lines := strings.Split(strings.ReplaceAll(string(data), "\r\n", "\n"), "\n")
	proxies := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimRight(line, "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}
		proxies = append(proxies, line)
	}

	return proxies, nil
}

func (l *List) write(proxies []string) error {
	if err := os.MkdirAll(filepath.Dir(l.path), listDirMode); err != nil {
		return fmt.Errorf("create proxy list directory: %w", err)
	}

	content := strings.Join(proxies, "\n")
	if content != "" {
		content += "\n"
	}

	tempFile, err := os.CreateTemp(filepath.Dir(l.path), tempFilePattern)
	if err != nil {
		return fmt.Errorf("create temp proxy list: %w", err)
	}

	tempName := tempFile.Name()
	cleanup := true
	defer func() {
		if cleanup {
			_ = os.Remove(tempName)
		}
	}()

	if _, err := tempFile.WriteString(content); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("write temp proxy list: %w", err)
	}
	if err := tempFile.Chmod(listFileMode); err != nil {
		_ = tempFile.Close()
		return fmt.Errorf("chmod temp proxy list: %w", err)
	}
	if err := tempFile.Close(); err != nil {
		return fmt.Errorf("close temp proxy list: %w", err)
	}

	if err := os.Rename(tempName, l.path); err != nil {
		return fmt.Errorf("replace proxy list: %w", err)
	}
	cleanup = false

	return nil
}

func lockForPath(path string) *sync.RWMutex {
	lockRegistryMu.Lock()
	defer lockRegistryMu.Unlock()

	if mu, ok := pathLockMap[path]; ok {
		return mu
	}

	mu := &sync.RWMutex{}
	pathLockMap[path] = mu
	return mu
}
