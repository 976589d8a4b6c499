// Package finder walks the buffer directory and reports every file it
// contains as a model.FileItem, the Go rendering of local.py's Finder
// command.
package finder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/queue"
	"go.uber.org/zap"
)

// Finder recursively scans Root and enqueues one model.FileItem per file it
// finds. A stat failure for an individual entry is logged and skipped; it
// never aborts the walk, matching local.py's per-file FileNotFoundError
// handling. ExcludeList holds glob patterns matched against a file's
// Tail/Name path; a match drops the item silently.
type Finder struct {
	Root        string
	Out         *queue.Queue[model.FileItem]
	ExcludeList []string
	Logger      *zap.Logger
}

// New builds a Finder rooted at root. It fails fast if root is not an
// existing directory, the same validation local.py's Finder.__init__ does
// before the first run.
func New(root string, out *queue.Queue[model.FileItem], excludeList []string, logger *zap.Logger) (*Finder, error) {
	if root == "" {
		return nil, fmt.Errorf("finder: buffer directory not specified")
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("finder: %s: directory not found", root)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finder{Root: root, Out: out, ExcludeList: excludeList, Logger: logger}, nil
}

// Run walks the buffer once, pushing every regular file found onto Out.
func (f *Finder) Run() error {
	return filepath.WalkDir(f.Root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			f.Logger.Error("walking buffer", zap.String("path", path), zap.Error(err))
			return nil
		}
		if d.IsDir() {
			return nil
		}

		// Stat (not d.Info(), which is lstat-equivalent) so a symlink is
		// resolved: a dangling target is skipped with a warning instead of
		// being enqueued as a regular file, and a symlink to a directory is
		// dropped the same way any other non-regular entry is.
		info, err := os.Stat(path)
		if errors.Is(err, fs.ErrNotExist) {
			f.Logger.Warn("skipping broken symlink", zap.String("path", path))
			return nil
		}
		if err != nil {
			f.Logger.Error("stat failed", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !info.Mode().IsRegular() {
			return nil
		}

		rel, err := filepath.Rel(f.Root, path)
		if err != nil {
			f.Logger.Error("computing relative path", zap.String("path", path), zap.Error(err))
			return nil
		}
		tail := filepath.Dir(rel)
		if tail == "." {
			tail = ""
		}

		if f.excluded(rel) {
			return nil
		}

		f.Out.Put(model.FileItem{
			Head:      f.Root,
			Tail:      tail,
			Name:      filepath.Base(rel),
			Size:      info.Size(),
			Timestamp: info.ModTime(),
		})
		return nil
	})
}

// excluded reports whether rel (the file's path relative to Root) matches
// any of the Finder's exclude-list glob patterns.
func (f *Finder) excluded(rel string) bool {
	for _, pattern := range f.ExcludeList {
		if ok, err := filepath.Match(pattern, rel); err == nil && ok {
			return true
		}
	}
	return false
}
