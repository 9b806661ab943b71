package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadEnvFiles_WorkingDirectory(t *testing.T) {
	tmpDir := t.TempDir()
	content := `# Test env file
DOCREFINE_TEST_KEY1=value1
DOCREFINE_TEST_KEY2="quoted value"
`
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	t.Setenv("HOME", t.TempDir())
	os.Unsetenv("DOCREFINE_TEST_KEY1")
	os.Unsetenv("DOCREFINE_TEST_KEY2")
	defer os.Unsetenv("DOCREFINE_TEST_KEY1")
	defer os.Unsetenv("DOCREFINE_TEST_KEY2")

	if err := LoadEnvFiles(); err != nil {
		t.Fatalf("LoadEnvFiles failed: %v", err)
	}

	if os.Getenv("DOCREFINE_TEST_KEY1") != "value1" {
		t.Errorf("KEY1 not set correctly: %s", os.Getenv("DOCREFINE_TEST_KEY1"))
	}
	if os.Getenv("DOCREFINE_TEST_KEY2") != "quoted value" {
		t.Errorf("KEY2 not set correctly: %s", os.Getenv("DOCREFINE_TEST_KEY2"))
	}
}

func TestLoadEnvFiles_DoesNotOverride(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ".env"), []byte("DOCREFINE_EXISTING=new_value"), 0644); err != nil {
		t.Fatal(err)
	}

	wd, _ := os.Getwd()
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)

	t.Setenv("HOME", t.TempDir())
	t.Setenv("DOCREFINE_EXISTING", "original_value")

	if err := LoadEnvFiles(); err != nil {
		t.Fatalf("LoadEnvFiles failed: %v", err)
	}

	if os.Getenv("DOCREFINE_EXISTING") != "original_value" {
		t.Error("LoadEnvFiles should not override existing env vars")
	}
}

func TestLoadEnvFiles_NoFiles(t *testing.T) {
	wd, _ := os.Getwd()
	if err := os.Chdir(t.TempDir()); err != nil {
		t.Fatal(err)
	}
	defer os.Chdir(wd)
	t.Setenv("HOME", t.TempDir())

	if err := LoadEnvFiles(); err != nil {
		t.Errorf("expected no error without env files, got %v", err)
	}
}

func TestGetEnvWithFallback(t *testing.T) {
	os.Unsetenv("FALLBACK_KEY1")
	os.Unsetenv("FALLBACK_KEY2")

	result := GetEnvWithFallback("FALLBACK_KEY1", "FALLBACK_KEY2")
	if result != "" {
		t.Error("Expected empty string when no keys set")
	}

	t.Setenv("FALLBACK_KEY2", "value2")

	result = GetEnvWithFallback("FALLBACK_KEY1", "FALLBACK_KEY2")
	if result != "value2" {
		t.Errorf("Expected value2, got %s", result)
	}
}

func TestResolveEnvWithAliases(t *testing.T) {
	os.Unsetenv("DOCREFINE_SERVICE_MODEL")
	t.Setenv("OLLAMA_MODEL", "llava")

	if got := ResolveEnvWithAliases("DOCREFINE_SERVICE_MODEL"); got != "llava" {
		t.Errorf("expected alias value llava, got %q", got)
	}

	t.Setenv("DOCREFINE_SERVICE_MODEL", "qwen")
	if got := ResolveEnvWithAliases("DOCREFINE_SERVICE_MODEL"); got != "qwen" {
		t.Errorf("expected canonical key to win, got %q", got)
	}
}

func TestGetRequiredEnv(t *testing.T) {
	os.Unsetenv("DOCREFINE_REQUIRED")

	_, err := GetRequiredEnv("DOCREFINE_REQUIRED")
	if err == nil {
		t.Fatal("expected error for missing env var")
	}
	if _, ok := err.(*MissingEnvError); !ok {
		t.Errorf("expected *MissingEnvError, got %T", err)
	}
}
