package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-playground/assert/v2"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg.DefaultBoardName, "Kanban Board")
	assert.Equal(t, cfg.ExportTimeout, 10*time.Second)
}

func TestLoadHonorsEnv(t *testing.T) {
	t.Setenv("PORT", "9090")
	t.Setenv("SHUTDOWN_TIMEOUT", "2s")
	cfg, err := Load("")
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg.Port, "9090")
	assert.Equal(t, cfg.Addr(), ":9090")
	assert.Equal(t, cfg.ShutdownTimeout, 2*time.Second)
}

func TestLoadEnvFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".env")
	if err := os.WriteFile(path, []byte("DEFAULT_BOARD_NAME=\"Team Board\"\n"), 0o644); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	t.Setenv("DEFAULT_BOARD_NAME", "")
	os.Unsetenv("DEFAULT_BOARD_NAME")

	cfg, err := Load(path)
	assert.Equal(t, err, nil)
	assert.Equal(t, cfg.DefaultBoardName, "Team Board")
}

func TestLoadMissingEnvFileIsIgnored(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	assert.Equal(t, err, nil)
}
