package security

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/gmsas95/docrefine/internal/errors"
)

func setupInputDir(t *testing.T) string {
	t.Helper()
	dir, err := filepath.EvalSymlinks(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(dir, "scans"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "scans", "11.jpg"), []byte("img"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestResolveInDir_RelativePath(t *testing.T) {
	dir := setupInputDir(t)

	sp, err := ResolveInDir("scans/11.jpg", dir)
	if err != nil {
		t.Fatalf("valid relative path rejected: %v", err)
	}
	if sp.Path() != filepath.Join(dir, "scans", "11.jpg") {
		t.Errorf("unexpected path %s", sp)
	}
}

func TestResolveInDir_AbsolutePath(t *testing.T) {
	dir := setupInputDir(t)
	target := filepath.Join(dir, "scans", "11.jpg")

	sp, err := ResolveInDir(target, dir)
	if err != nil {
		t.Fatalf("valid absolute path rejected: %v", err)
	}
	if sp.String() != target {
		t.Errorf("unexpected path %s", sp)
	}
}

func TestResolveInDir_Rejections(t *testing.T) {
	dir := setupInputDir(t)

	tests := []struct {
		name string
		path string
		dir  string
		want error
	}{
		{"dot dot", "../etc/passwd", dir, ErrPathTraversal},
		{"encoded traversal", "%2e%2e/secret", dir, ErrPathTraversal},
		{"double encoded", "%252e%252e/secret", dir, ErrPathTraversal},
		{"backslash traversal", "scans\\..\\..\\x", dir, ErrPathTraversal},
		{"absolute outside", "/etc/passwd", dir, ErrPathOutsideDir},
		{"empty path", "", dir, ErrInvalidPath},
		{"null byte", "scans/11.jpg\x00.png", dir, ErrInvalidPath},
		{"no input dir", "scans/11.jpg", "", ErrNoInputDir},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ResolveInDir(tt.path, tt.dir)
			if err == nil {
				t.Fatal("expected rejection")
			}
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !errors.Is(err, apperrors.ErrPathRejected) {
				t.Errorf("expected SEC_001, got %s", apperrors.GetCode(err))
			}
		})
	}
}

func TestResolveInDir_SymlinkEscape(t *testing.T) {
	dir := setupInputDir(t)
	outside := t.TempDir()
	if err := os.WriteFile(filepath.Join(outside, "secret.png"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	link := filepath.Join(dir, "link")
	if err := os.Symlink(outside, link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	_, err := ResolveInDir("link/secret.png", dir)
	if !errors.Is(err, ErrSymlinkEscape) {
		t.Errorf("expected ErrSymlinkEscape, got %v", err)
	}
}

func TestResolveInDir_SymlinkInside(t *testing.T) {
	dir := setupInputDir(t)
	link := filepath.Join(dir, "latest.jpg")
	if err := os.Symlink(filepath.Join(dir, "scans", "11.jpg"), link); err != nil {
		t.Skipf("symlinks unsupported: %v", err)
	}

	if _, err := ResolveInDir("latest.jpg", dir); err != nil {
		t.Errorf("symlink inside input dir rejected: %v", err)
	}
}

func TestResolveFile(t *testing.T) {
	dir := setupInputDir(t)

	if _, err := ResolveFile("scans/11.jpg", dir); err != nil {
		t.Errorf("existing file rejected: %v", err)
	}

	_, err := ResolveFile("scans/missing.jpg", dir)
	if !errors.Is(err, apperrors.ErrNotFound) {
		t.Errorf("expected not found, got %v", err)
	}

	_, err = ResolveFile("scans", dir)
	if !errors.Is(err, ErrNotRegularFile) {
		t.Errorf("expected ErrNotRegularFile, got %v", err)
	}
}
