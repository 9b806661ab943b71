// Package security guards file paths received from the HTTP API.
package security

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	apperrors "github.com/gmsas95/docrefine/internal/errors"
)

var (
	ErrPathTraversal  = errors.New("path traversal detected")
	ErrPathOutsideDir = errors.New("path escapes input directory")
	ErrSymlinkEscape  = errors.New("symlink escape detected")
	ErrInvalidPath    = errors.New("invalid path")
	ErrNoInputDir     = errors.New("no input directory configured")
	ErrNotRegularFile = errors.New("not a regular file")
)

var traversalPatterns = []string{
	"..",
	"%2e%2e",
	"%252e%252e",
	"..%2f",
	"%2f..",
	"..\\",
	"\\..\\",
}

// SafePath is an absolute path known to stay inside the input directory
type SafePath struct {
	path string
}

func (sp *SafePath) Path() string {
	return sp.path
}

func (sp *SafePath) String() string {
	return sp.path
}

// ResolveInDir resolves path against dir and rejects anything that would
// leave it. Relative paths are taken relative to dir. Rejections wrap
// errors.ErrPathRejected around one of the sentinels above.
func ResolveInDir(path, dir string) (*SafePath, error) {
	if dir == "" {
		return nil, rejected(ErrNoInputDir)
	}
	if path == "" || strings.ContainsRune(path, 0) {
		return nil, rejected(ErrInvalidPath)
	}
	if containsTraversalPattern(path) {
		return nil, rejected(ErrPathTraversal)
	}

	root := filepath.Clean(dir)
	if !filepath.IsAbs(root) {
		abs, err := filepath.Abs(root)
		if err != nil {
			return nil, rejected(ErrInvalidPath)
		}
		root = abs
	}
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	var target string
	if filepath.IsAbs(path) {
		target = filepath.Clean(path)
	} else {
		target = filepath.Join(root, path)
	}

	if !within(target, root) {
		return nil, rejected(ErrPathOutsideDir)
	}
	if err := checkSymlinkEscape(target, root); err != nil {
		return nil, rejected(err)
	}

	return &SafePath{path: target}, nil
}

// ResolveFile is ResolveInDir plus a check that the target is an existing
// regular file.
func ResolveFile(path, dir string) (*SafePath, error) {
	sp, err := ResolveInDir(path, dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(sp.path)
	if err != nil {
		return nil, apperrors.WrapAs(apperrors.ErrNotFound, err)
	}
	if !info.Mode().IsRegular() {
		return nil, rejected(ErrNotRegularFile)
	}
	return sp, nil
}

func rejected(reason error) error {
	return apperrors.WrapAs(apperrors.ErrPathRejected, reason)
}

func within(target, root string) bool {
	return target == root || strings.HasPrefix(target, root+string(os.PathSeparator))
}

func containsTraversalPattern(path string) bool {
	lowerPath := strings.ToLower(path)
	for _, pattern := range traversalPatterns {
		if strings.Contains(lowerPath, strings.ToLower(pattern)) {
			return true
		}
	}
	return false
}

// checkSymlinkEscape walks target component by component and fails if any
// existing symlink resolves outside root.
func checkSymlinkEscape(target, root string) error {
	rel, err := filepath.Rel(root, target)
	if err != nil {
		return ErrInvalidPath
	}

	current := root
	for _, part := range strings.Split(rel, string(os.PathSeparator)) {
		if part == "" || part == "." {
			continue
		}

		current = filepath.Join(current, part)

		info, err := os.Lstat(current)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return ErrInvalidPath
		}

		if info.Mode()&os.ModeSymlink != 0 {
			resolved, err := filepath.EvalSymlinks(current)
			if err != nil {
				continue
			}
			if !within(filepath.Clean(resolved), root) {
				return ErrSymlinkEscape
			}
		}
	}

	return nil
}
