package cli

import (
	"path/filepath"
	"testing"

	"github.com/hanogt/hanogt-bot/internal/config"
)

func TestConfigTarget(t *testing.T) {
	oldConfig, oldGlobal := flagConfig, flagConfigGlobal
	t.Cleanup(func() { flagConfig, flagConfigGlobal = oldConfig, oldGlobal })

	flagConfig = ""
	flagConfigGlobal = false
	if got := configTarget(); got != filepath.Join(".hanogt-bot", "config.toml") {
		t.Fatalf("project target: %q", got)
	}

	flagConfig = "/tmp/custom.toml"
	if got := configTarget(); got != "/tmp/custom.toml" {
		t.Fatalf("-c target: %q", got)
	}

	flagConfigGlobal = true
	userPath, _ := config.ConfigPaths("", flagConfig)
	if got := configTarget(); got != userPath {
		t.Fatalf("global target: %q want %q", got, userPath)
	}
}

func TestConfigSet_WritesValue(t *testing.T) {
	oldConfig, oldGlobal := flagConfig, flagConfigGlobal
	t.Cleanup(func() { flagConfig, flagConfigGlobal = oldConfig, oldGlobal })

	flagConfig = filepath.Join(t.TempDir(), "config.toml")
	flagConfigGlobal = false

	if err := configSetCmd.RunE(configSetCmd, []string{"audit.retention_days", "42"}); err != nil {
		t.Fatalf("config set: %v", err)
	}

	loaded, err := config.Load(config.LoadOptions{ConfigPath: flagConfig})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if loaded.Audit.RetentionDays != 42 {
		t.Fatalf("retention_days=%d want 42", loaded.Audit.RetentionDays)
	}
}

func TestConfigGet_UnknownKeyErrors(t *testing.T) {
	if err := configGetCmd.RunE(configGetCmd, []string{"no.such.key"}); err == nil {
		t.Fatalf("expected error for unknown key")
	}
}
