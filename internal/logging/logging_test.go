package logging

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"
)

func TestInit_WritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sf.log")
	if err := Init(Config{Level: "debug", Format: "json", OutputPath: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { globalLogger = nil })

	L().Debug("hello", zap.String("role", "receiver"))
	_ = Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if !strings.Contains(string(data), `"role":"receiver"`) {
		t.Errorf("log output missing field: %s", data)
	}
}

func TestInit_LevelFilters(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sf.log")
	if err := Init(Config{Level: "warn", Format: "json", OutputPath: path}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	t.Cleanup(func() { globalLogger = nil })

	L().Info("dropped")
	L().Warn("kept")
	_ = Sync()

	data, _ := os.ReadFile(path)
	if strings.Contains(string(data), "dropped") {
		t.Error("info entry written at warn level")
	}
	if !strings.Contains(string(data), "kept") {
		t.Error("warn entry missing")
	}
}

func TestOr(t *testing.T) {
	nop := zap.NewNop()
	if Or(nop) != nop {
		t.Error("Or should return the given logger")
	}
	if Or(nil) == nil {
		t.Error("Or(nil) should fall back to the global logger")
	}
}
