package fileutil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// CopyFileMode streams src to dst, truncating any existing dst and setting
// the given file mode on newly created files.
func CopyFileMode(src, dst string, mode os.FileMode) (int64, error) {
	return copyFileMode(context.Background(), src, dst, mode)
}

func copyFileMode(ctx context.Context, src, dst string, mode os.FileMode) (int64, error) {
	in, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, mode)
	if err != nil {
		return 0, err
	}
	defer out.Close()

	n, err := io.Copy(out, contextReader{ctx: ctx, r: in})
	if err != nil {
		return n, err
	}
	return n, out.Close()
}

// TreeStats summarizes a CopyTree run.
type TreeStats struct {
	Files int
	Bytes int64
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (c contextReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// CopyTree recursively copies the regular files and directories under src
// into dst, overwriting files that already exist at matching paths. Other
// entry types (symlinks, devices) are skipped. Cancelling ctx stops the copy
// between and within files, leaving whatever was already written.
func CopyTree(ctx context.Context, src, dst string) (TreeStats, error) {
	var stats TreeStats
	err := filepath.WalkDir(src, func(path string, entry fs.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)

		switch {
		case entry.IsDir():
			if err := os.MkdirAll(target, 0o755); err != nil {
				return fmt.Errorf("create directory %q: %w", target, err)
			}
		case entry.Type().IsRegular():
			info, err := entry.Info()
			if err != nil {
				return err
			}
			n, err := copyFileMode(ctx, path, target, info.Mode().Perm())
			if err != nil {
				return fmt.Errorf("copy %q: %w", rel, err)
			}
			stats.Files++
			stats.Bytes += n
		}
		return nil
	})
	return stats, err
}

// DirHasEntries reports whether path is a directory containing at least one
// entry. Missing or unreadable directories count as empty.
func DirHasEntries(path string) bool {
	dir, err := os.Open(path)
	if err != nil {
		return false
	}
	defer dir.Close()
	names, err := dir.Readdirnames(1)
	return err == nil && len(names) > 0
}

// Exists reports whether path exists. Errors other than "not exist" count as
// existing so callers err on the side of not overwriting.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil || !errors.Is(err, fs.ErrNotExist)
}

// IsDir reports whether path is an existing directory.
func IsDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
