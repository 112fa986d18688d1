package filesystem

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// ClearDestination removes whatever file sits at dest so a new output can
// replace it. Directories are never removed.
func ClearDestination(dest string) error {
	info, err := os.Lstat(dest)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", dest)
	}
	return RemoveWithRetry(dest, DefaultRetryConfig())
}

// CreateTempSibling creates an empty hidden file next to dest and returns its
// path. Writing there first and renaming keeps dest from ever holding a
// partial file.
func CreateTempSibling(dest string) (string, error) {
	dir, base := filepath.Split(dest)
	if dir == "" {
		dir = "."
	}
	f, err := os.CreateTemp(dir, "."+base+".*.partial")
	if err != nil {
		return "", err
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		_ = os.Remove(name)
		return "", err
	}
	return name, nil
}

// Commit atomically moves temp over dest and syncs the parent directory.
func Commit(temp, dest string) error {
	if err := RenameWithRetry(temp, dest, DefaultRetryConfig()); err != nil {
		return err
	}
	// Some filesystems reject fsync on directories; the rename already happened.
	if dir, err := os.Open(filepath.Dir(dest)); err == nil {
		_ = dir.Sync()
		_ = dir.Close()
	}
	return nil
}

// CheckWritable verifies that a file can be created in dir.
func CheckWritable(dir string) error {
	f, err := os.CreateTemp(dir, ".write-test-*")
	if err != nil {
		return err
	}
	name := f.Name()
	_ = f.Close()
	return os.Remove(name)
}

const maxLinkHops = 40

// ErrOutsideRoot is returned by ResolveWithin for paths that leave root.
var ErrOutsideRoot = errors.New("path is outside the allowed directory")

// ResolveWithin returns path as an absolute, clean path inside root. A
// relative path is taken relative to root. root itself is rejected, and so
// is a path that only stays inside root lexically while a symlink in its
// existing part points elsewhere.
func ResolveWithin(root, path string) (string, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return "", err
	}
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	path = filepath.Clean(path)
	if !within(root, path) {
		return "", fmt.Errorf("%s: %w", path, ErrOutsideRoot)
	}

	realRoot, err := resolveExisting(root)
	if err != nil {
		return "", err
	}
	realPath, err := resolveExisting(path)
	if err != nil {
		return "", fmt.Errorf("%s: %w", path, err)
	}
	if !within(realRoot, realPath) {
		return "", fmt.Errorf("%s resolves to %s: %w", path, realPath, ErrOutsideRoot)
	}
	return path, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != "." && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

// resolveExisting evaluates symlinks in the longest existing prefix of path
// and appends the missing remainder unchanged. Dangling links are followed
// to where they point.
func resolveExisting(path string) (string, error) {
	rest := ""
	for hops := 0; ; {
		resolved, err := filepath.EvalSymlinks(path)
		if err == nil {
			return filepath.Join(resolved, rest), nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return "", err
		}
		if info, lerr := os.Lstat(path); lerr == nil && info.Mode()&fs.ModeSymlink != 0 {
			if hops++; hops > maxLinkHops {
				return "", fmt.Errorf("%s: too many links", path)
			}
			target, err := os.Readlink(path)
			if err != nil {
				return "", err
			}
			if !filepath.IsAbs(target) {
				target = filepath.Join(filepath.Dir(path), target)
			}
			path = target
			continue
		}
		parent := filepath.Dir(path)
		if parent == path {
			return filepath.Join(path, rest), nil
		}
		rest = filepath.Join(filepath.Base(path), rest)
		path = parent
	}
}
