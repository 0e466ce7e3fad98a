package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/viper"

	"github.com/jmcrae/wrangler/internal/checklist"
	"github.com/jmcrae/wrangler/internal/config"
)

func TestRootCommandRegistersSubcommands(t *testing.T) {
	if rootCmd.Use != "wrangler" {
		t.Errorf("rootCmd.Use = %q, want %q", rootCmd.Use, "wrangler")
	}

	want := []string{"run", "batch", "status", "doctor"}
	registered := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		registered[c.Name()] = true
	}
	for _, name := range want {
		if !registered[name] {
			t.Errorf("subcommand %q not registered", name)
		}
	}
}

func TestInitConfigAppliesDefaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	initConfig()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Loop.MaxIterations <= 0 {
		t.Errorf("MaxIterations = %d, want positive default", cfg.Loop.MaxIterations)
	}
	if cfg.Worker.Command == "" {
		t.Error("worker command default missing")
	}
}

func TestInitConfigReadsConfigFile(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "custom.yaml")
	if err := os.WriteFile(cfgPath, []byte("loop:\n  max_iterations: 7\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	viper.Set("config", cfgPath)

	initConfig()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Loop.MaxIterations != 7 {
		t.Errorf("MaxIterations = %d, want 7 from config file", cfg.Loop.MaxIterations)
	}
}

func TestResolvePath(t *testing.T) {
	if got := resolvePath("/repo", "TASKS.md"); got != "/repo/TASKS.md" {
		t.Errorf("relative: got %q", got)
	}
	if got := resolvePath("/repo", "/elsewhere/TASKS.md"); got != "/elsewhere/TASKS.md" {
		t.Errorf("absolute: got %q", got)
	}
}

func TestFindTask(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "TASKS.md")
	content := "- [ ] first task\n- [x] second task\n- [ ] third task\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	store := checklist.NewStore(path)

	task, err := findTask(store, "task-3")
	if err != nil {
		t.Fatalf("findTask: %v", err)
	}
	if task.Description != "third task" {
		t.Errorf("got description %q", task.Description)
	}

	if _, err := findTask(store, "task-99"); err == nil {
		t.Error("expected error for unknown task ID")
	}
}
