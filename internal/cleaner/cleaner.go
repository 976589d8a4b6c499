// Package cleaner relocates successfully transferred files into the local
// holding area and reclaims empty buffer subtrees, the Go rendering of
// local.py's Mover and Eraser commands.
package cleaner

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/artemis/handoffd/internal/model"
	"github.com/artemis/handoffd/internal/queue"
	"go.uber.org/zap"
)

// Mover moves files from the buffer into the holding area, re-stamping Head
// and Timestamp on success so downstream stages see the file's new home.
type Mover struct {
	Root   string // holding area
	Logger *zap.Logger
}

// NewMover validates root and builds a Mover.
func NewMover(root string, logger *zap.Logger) (*Mover, error) {
	if root == "" {
		return nil, fmt.Errorf("cleaner: holding area not specified")
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("cleaner: %s: directory not found", root)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Mover{Root: root, Logger: logger}, nil
}

// Run drains in, moving every file into the holding area and forwarding
// successfully moved items onto out. A move that fails (e.g. the source has
// already disappeared) is logged and the item dropped, matching local.py's
// "cannot move, skip" behaviour.
func (m *Mover) Run(in, out *queue.Queue[model.FileItem]) error {
	for {
		item, ok := in.TryGet()
		if !ok {
			return nil
		}

		dir := filepath.Join(m.Root, item.Tail)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			m.Logger.Warn("cannot create holding subdirectory", zap.String("dir", dir), zap.Error(err))
			continue
		}

		src := item.Path()
		dst := filepath.Join(dir, item.Name)
		if err := moveFile(src, dst); err != nil {
			m.Logger.Warn("cannot move file", zap.String("src", src), zap.Error(err))
			continue
		}

		item.Head = m.Root
		item.Timestamp = time.Now()
		out.Put(item)
	}
}

// moveFile renames src to dst, falling back to copy-then-remove whenever the
// rename fails, which covers src and dst living on different filesystems
// (EXDEV) — the same fallback shutil.move performs internally.
func moveFile(src, dst string) error {
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Eraser removes empty subdirectories of the buffer that have not been
// modified for ExpirationTime, avoiding a race with whatever is actively
// writing into the buffer.
type Eraser struct {
	Root           string
	ExpirationTime time.Duration
	Logger         *zap.Logger
}

// NewEraser validates root and builds an Eraser. expiration of 0 uses a
// 24-hour default, matching utils.Defaults.expiration_time.
func NewEraser(root string, expiration time.Duration, logger *zap.Logger) (*Eraser, error) {
	if root == "" {
		return nil, fmt.Errorf("cleaner: buffer not specified")
	}
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("cleaner: %s: directory not found", root)
	}
	if expiration <= 0 {
		expiration = 24 * time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Eraser{Root: root, ExpirationTime: expiration, Logger: logger}, nil
}

// Run removes every empty directory under Root whose modification time is
// older than ExpirationTime. Empty directories are all collected in one walk
// before any is removed, so a removal never disturbs the walk.
func (e *Eraser) Run() error {
	var empty []string
	err := filepath.WalkDir(e.Root, func(path string, d os.DirEntry, err error) error {
		if err != nil || !d.IsDir() || path == e.Root {
			return nil
		}
		entries, err := os.ReadDir(path)
		if err != nil {
			e.Logger.Warn("cannot read directory", zap.String("path", path), zap.Error(err))
			return nil
		}
		if len(entries) == 0 {
			empty = append(empty, path)
		}
		return nil
	})
	if err != nil {
		return err
	}

	now := time.Now()
	for _, dir := range empty {
		info, err := os.Stat(dir)
		if err != nil {
			e.Logger.Warn("cannot stat directory", zap.String("path", dir), zap.Error(err))
			continue
		}
		if now.Sub(info.ModTime()) <= e.ExpirationTime {
			continue
		}
		if err := os.Remove(dir); err != nil {
			e.Logger.Warn("cannot remove directory", zap.String("path", dir), zap.Error(err))
			continue
		}
		e.Logger.Debug("removed empty directory", zap.String("path", dir))
	}
	return nil
}
