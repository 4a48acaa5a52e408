// Package filesystem provides the ingestion input directory: scanning for new
// documents, moving indexed files aside, and watching for arrivals.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/domain"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/core/ports/driven"
	"github.com/haslamdb/asp-ai-agent-sub000/internal/logger"
)

// Ensure Connector implements the interface.
var _ driven.DocumentSource = (*Connector)(nil)

// DefaultDebounce is how long a file must be quiet before a watch event fires.
const DefaultDebounce = 500 * time.Millisecond

// Connector is a local directory of documents awaiting ingestion.
type Connector struct {
	rootPath     string
	processedDir string
	supports     func(path string) bool
	debounce     time.Duration

	mu      sync.Mutex
	closed  bool
	watcher *fsnotify.Watcher
}

// Option configures a Connector.
type Option func(*Connector)

// WithProcessedDir sets the name of the sub-directory indexed files move to.
func WithProcessedDir(name string) Option {
	return func(c *Connector) {
		if name != "" {
			c.processedDir = name
		}
	}
}

// WithFilter restricts Scan and Watch to files the filter accepts.
func WithFilter(supports func(path string) bool) Option {
	return func(c *Connector) {
		c.supports = supports
	}
}

// WithDebounce sets the quiet period before a watch event fires.
func WithDebounce(d time.Duration) Option {
	return func(c *Connector) {
		if d >= 0 {
			c.debounce = d
		}
	}
}

// New creates a connector over rootPath.
func New(rootPath string, opts ...Option) *Connector {
	c := &Connector{
		rootPath:     rootPath,
		processedDir: domain.DefaultProcessedDirName,
		supports:     func(string) bool { return true },
		debounce:     DefaultDebounce,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the directory being ingested.
func (c *Connector) Root() string {
	return c.rootPath
}

// ProcessedPath returns the directory indexed files are moved to.
func (c *Connector) ProcessedPath() string {
	return filepath.Join(c.rootPath, c.processedDir)
}

// Validate checks that the root path exists and is a directory.
func (c *Connector) Validate(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	info, err := os.Stat(c.rootPath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("root path error: %s does not exist: %w", c.rootPath, domain.ErrNotFound)
		}
		return fmt.Errorf("root path error: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path error: %s is not a directory: %w", c.rootPath, domain.ErrInvalidInput)
	}
	return nil
}

// Scan walks the root and returns supported files, sorted by path.
func (c *Connector) Scan(ctx context.Context) ([]string, error) {
	if err := c.Validate(ctx); err != nil {
		return nil, err
	}

	var paths []string
	err := filepath.WalkDir(c.rootPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Warn("skipping %s: %v", path, err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if path == c.rootPath {
			return nil
		}
		if d.IsDir() {
			if isHidden(d.Name()) || path == c.ProcessedPath() {
				return filepath.SkipDir
			}
			return nil
		}
		if isHidden(d.Name()) || !d.Type().IsRegular() || !c.supports(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", c.rootPath, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// ScanProcessed returns supported files already moved to the processed
// directory, sorted by path. A missing processed directory yields no files.
func (c *Connector) ScanProcessed(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	root := c.ProcessedPath()
	if _, err := os.Stat(root); errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		if d.IsDir() {
			if path != root && isHidden(d.Name()) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isHidden(d.Name()) && d.Type().IsRegular() && c.supports(path) {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", root, err)
	}

	sort.Strings(paths)
	return paths, nil
}

// MarkProcessed moves path into the processed directory, keeping its path
// relative to the root. An existing file of the same name gets a numeric suffix.
func (c *Connector) MarkProcessed(_ context.Context, path string) (string, error) {
	rel, err := filepath.Rel(c.rootPath, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		rel = filepath.Base(path)
	}
	dest := filepath.Join(c.ProcessedPath(), rel)
	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return "", fmt.Errorf("create processed directory: %w", err)
	}
	dest = uniquePath(dest)
	if err := os.Rename(path, dest); err != nil {
		return "", fmt.Errorf("move %s: %w", path, err)
	}
	return dest, nil
}

// uniquePath appends -1, -2, ... before the extension until the path is free.
func uniquePath(path string) string {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return path
	}
	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	for i := 1; ; i++ {
		candidate := fmt.Sprintf("%s-%d%s", base, i, ext)
		if _, err := os.Stat(candidate); errors.Is(err, os.ErrNotExist) {
			return candidate
		}
	}
}

// Watch emits supported files created or written under the root (not
// recursively) once they have been quiet for the debounce period.
func (c *Connector) Watch(ctx context.Context) (<-chan string, <-chan error, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, nil, errors.New("connector is closed")
	}
	if err := c.Validate(ctx); err != nil {
		return nil, nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, nil, fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(c.rootPath); err != nil {
		watcher.Close()
		return nil, nil, fmt.Errorf("watch %s: %w", c.rootPath, err)
	}
	c.watcher = watcher

	paths := make(chan string)
	errs := make(chan error, 1)
	go c.watchLoop(ctx, watcher, paths, errs)
	return paths, errs, nil
}

func (c *Connector) watchLoop(ctx context.Context, watcher *fsnotify.Watcher, paths chan<- string, errs chan<- error) {
	defer close(paths)
	defer close(errs)

	var (
		timerMu sync.Mutex
		timers  = make(map[string]*time.Timer)
		ready   = make(chan string)
	)
	defer func() {
		timerMu.Lock()
		for _, t := range timers {
			t.Stop()
		}
		timerMu.Unlock()
	}()

	schedule := func(path string) {
		timerMu.Lock()
		defer timerMu.Unlock()
		if t, ok := timers[path]; ok {
			t.Reset(c.debounce)
			return
		}
		timers[path] = time.AfterFunc(c.debounce, func() {
			timerMu.Lock()
			delete(timers, path)
			timerMu.Unlock()
			select {
			case ready <- path:
			case <-ctx.Done():
			}
		})
	}

	for {
		select {
		case <-ctx.Done():
			return
		case path := <-ready:
			select {
			case paths <- path:
			case <-ctx.Done():
				return
			}
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if path, ok := c.handleFsEvent(event); ok {
				schedule(path)
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			select {
			case errs <- err:
			default:
				logger.Warn("watch error: %v", err)
			}
		}
	}
}

// handleFsEvent returns the path to ingest for a create or write event on a
// supported, visible, regular file.
func (c *Connector) handleFsEvent(event fsnotify.Event) (string, bool) {
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
		return "", false
	}
	if isHidden(filepath.Base(event.Name)) || !c.supports(event.Name) {
		return "", false
	}
	info, err := os.Stat(event.Name)
	if err != nil || !info.Mode().IsRegular() {
		return "", false
	}
	return event.Name, true
}

// Close stops any active watcher. It is safe to call more than once.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	if c.watcher != nil {
		return c.watcher.Close()
	}
	return nil
}

// isHidden reports whether any path element starts with a dot.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part != "." && part != ".." && strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
