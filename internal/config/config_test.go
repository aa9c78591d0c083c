package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/spf13/viper"
)

func TestDefaultConfig_Validate(t *testing.T) {
	cfg := DefaultConfig()
	if err := Validate(cfg); err != nil {
		t.Fatalf("Validate(DefaultConfig) unexpected error: %v", err)
	}
}

func TestValidate_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Security.MaxCodeLength = 0
	cfg.Security.MaxExecutionTimeMS = 0
	cfg.Audit.RetentionDays = -1
	cfg.Watch.DebounceMS = -1
	cfg.Logging.Level = "bad"
	cfg.Output.Format = "bad"

	err := Validate(cfg)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	if !strings.Contains(err.Error(), "config validation failed") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoad_Precedence_DefaultsUserProjectEnvFlags(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := t.TempDir()

	// User config: 100
	userPath := filepath.Join(home, ".hanogt-bot", "config.toml")
	if err := WriteValue(userPath, "audit.retention_days", 100); err != nil {
		t.Fatalf("WriteValue user: %v", err)
	}

	// Project config: 200
	projectPath := filepath.Join(project, ".hanogt-bot", "config.toml")
	if err := WriteValue(projectPath, "audit.retention_days", 200); err != nil {
		t.Fatalf("WriteValue project: %v", err)
	}

	// Env: 300
	t.Setenv("HANOGT_RETENTION_DAYS", "300")

	// Flags: 400
	cfg, err := Load(LoadOptions{
		ProjectDir: project,
		FlagOverrides: map[string]any{
			"audit.retention_days": 400,
		},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audit.RetentionDays != 400 {
		t.Fatalf("retention_days=%d want 400", cfg.Audit.RetentionDays)
	}
}

func TestLoad_EnvBeatsFiles(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := t.TempDir()
	projectPath := filepath.Join(project, ".hanogt-bot", "config.toml")
	if err := WriteValue(projectPath, "logging.level", "debug"); err != nil {
		t.Fatalf("WriteValue project: %v", err)
	}
	t.Setenv("HANOGT_LOG_LEVEL", "error")

	cfg, err := Load(LoadOptions{ProjectDir: project})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Logging.Level != "error" {
		t.Fatalf("logging.level=%q want error", cfg.Logging.Level)
	}
}

func TestLoad_InvalidEnvValueErrors(t *testing.T) {
	t.Setenv("HANOGT_MAX_CODE_LENGTH", "not-an-int")
	if _, err := Load(LoadOptions{ProjectDir: t.TempDir()}); err == nil {
		t.Fatalf("expected error")
	}
}

func TestLoad_InvalidConfigValueFailsValidation(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := t.TempDir()
	projectPath := filepath.Join(project, ".hanogt-bot", "config.toml")
	if err := WriteValue(projectPath, "output.format", "xml"); err != nil {
		t.Fatalf("WriteValue project: %v", err)
	}

	if _, err := Load(LoadOptions{ProjectDir: project}); err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestLoad_ProjectDirEmptyUsesCWD(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	project := t.TempDir()

	cwd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(cwd)
	})
	if err := os.Chdir(project); err != nil {
		t.Fatalf("Chdir: %v", err)
	}

	projectPath := filepath.Join(project, ".hanogt-bot", "config.toml")
	if err := WriteValue(projectPath, "audit.retention_days", 9); err != nil {
		t.Fatalf("WriteValue project: %v", err)
	}

	cfg, err := Load(LoadOptions{ProjectDir: ""})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Audit.RetentionDays != 9 {
		t.Fatalf("retention_days=%d want 9", cfg.Audit.RetentionDays)
	}
}

func TestDatabasePath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	cfg := DefaultConfig()
	if got, want := cfg.DatabasePath(), filepath.Join(home, ".hanogt-bot", "hanogt.db"); got != want {
		t.Fatalf("DatabasePath()=%q want %q", got, want)
	}

	cfg.Storage.DBPath = "/tmp/custom.db"
	if got := cfg.DatabasePath(); got != "/tmp/custom.db" {
		t.Fatalf("DatabasePath()=%q want explicit path", got)
	}
}

func TestMergeConfigFile(t *testing.T) {
	v := newTestViper()

	// Empty path is a no-op.
	if err := mergeConfigFile(v, ""); err != nil {
		t.Fatalf("mergeConfigFile(empty): %v", err)
	}

	// Missing file is a no-op.
	if err := mergeConfigFile(v, filepath.Join(t.TempDir(), "missing.toml")); err != nil {
		t.Fatalf("mergeConfigFile(missing): %v", err)
	}

	// Directory path is an error.
	if err := mergeConfigFile(v, t.TempDir()); err == nil {
		t.Fatalf("expected error for directory path")
	}

	// Invalid TOML is an error.
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("security = [\n"), 0644); err != nil {
		t.Fatalf("write invalid toml: %v", err)
	}
	if err := mergeConfigFile(v, path); err == nil {
		t.Fatalf("expected error for invalid toml")
	}
}

func newTestViper() *viper.Viper {
	// Keep this in a helper to avoid importing viper in every test.
	// It also ensures defaults are seeded, mirroring Load().
	v := viper.New()
	setDefaults(v)
	return v
}

func TestConfigPathsAndProjectConfigPath(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	u, p := ConfigPaths("/proj", "")
	if u != filepath.Join(home, ".hanogt-bot", "config.toml") {
		t.Fatalf("unexpected user path: %q", u)
	}
	if p != filepath.Join("/proj", ".hanogt-bot", "config.toml") {
		t.Fatalf("unexpected project path: %q", p)
	}

	if got := projectConfigPath("", ""); got != ".hanogt-bot/config.toml" {
		t.Fatalf("projectConfigPath(empty)=%q", got)
	}
	if got := projectConfigPath("/proj", "/override.toml"); got != "/override.toml" {
		t.Fatalf("projectConfigPath(override)=%q", got)
	}
}

func TestParseValue(t *testing.T) {
	v, err := ParseValue("security.max_code_length", "7")
	if err != nil {
		t.Fatalf("ParseValue int: %v", err)
	}
	if v.(int) != 7 {
		t.Fatalf("unexpected value: %#v", v)
	}

	v, err = ParseValue("security.fail_open", "true")
	if err != nil {
		t.Fatalf("ParseValue bool: %v", err)
	}
	if v.(bool) != true {
		t.Fatalf("unexpected value: %#v", v)
	}

	v, err = ParseValue("security.trusted_users", "a@x.com, , b@x.com")
	if err != nil {
		t.Fatalf("ParseValue slice: %v", err)
	}
	if !reflect.DeepEqual(v, []string{"a@x.com", "b@x.com"}) {
		t.Fatalf("unexpected slice: %#v", v)
	}

	v, err = ParseValue("storage.db_path", "/tmp/hanogt.db")
	if err != nil {
		t.Fatalf("ParseValue string: %v", err)
	}
	if v.(string) != "/tmp/hanogt.db" {
		t.Fatalf("unexpected value: %#v", v)
	}

	if _, err := parseValueByKind("x", valueKind(123)); err == nil {
		t.Fatalf("expected error for unsupported value kind")
	}

	if _, err := ParseValue("nope.nope", "x"); err == nil {
		t.Fatalf("expected unsupported key error")
	}
}

func TestGetValue(t *testing.T) {
	cfg := DefaultConfig()

	cases := []struct {
		key  string
		want any
	}{
		{"storage.db_path", cfg.Storage.DBPath},
		{"security.fail_open", cfg.Security.FailOpen},
		{"security.max_code_length", cfg.Security.MaxCodeLength},
		{"security.max_execution_time_ms", cfg.Security.MaxExecutionTimeMS},
		{"security.trusted_users", cfg.Security.TrustedUsers},
		{"audit.retention_days", cfg.Audit.RetentionDays},
		{"logging.level", cfg.Logging.Level},
		{"output.format", cfg.Output.Format},
		{"watch.debounce_ms", cfg.Watch.DebounceMS},

		{"storage", cfg.Storage},
		{"security", cfg.Security},
		{"audit", cfg.Audit},
		{"logging", cfg.Logging},
		{"output", cfg.Output},
		{"watch", cfg.Watch},
	}

	for _, tc := range cases {
		got, ok := GetValue(cfg, tc.key)
		if !ok {
			t.Fatalf("GetValue(%q) not found", tc.key)
		}
		if !reflect.DeepEqual(got, tc.want) {
			t.Fatalf("GetValue(%q)=%#v want %#v", tc.key, got, tc.want)
		}
	}

	if _, ok := GetValue(cfg, ""); ok {
		t.Fatalf("expected empty key to be not found")
	}

	badKeys := []string{
		"nope",
		"storage.nope",
		"security.nope",
		"audit.nope",
		"logging.nope",
		"output.nope",
		"watch.nope",
	}
	for _, key := range badKeys {
		if _, ok := GetValue(cfg, key); ok {
			t.Fatalf("expected %q to be not found", key)
		}
	}
}

func TestWriteValue(t *testing.T) {
	if err := WriteValue("", "audit.retention_days", 2); err == nil {
		t.Fatalf("expected error for empty path")
	}

	path := filepath.Join(t.TempDir(), "config.toml")
	if err := WriteValue(path, "audit.retention_days", 30); err != nil {
		t.Fatalf("WriteValue: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(data), "[audit]") || !strings.Contains(string(data), "retention_days = 30") {
		t.Fatalf("unexpected toml: %q", string(data))
	}

	// Error when an intermediate segment is not a table.
	bad := filepath.Join(t.TempDir(), "bad.toml")
	if err := os.WriteFile(bad, []byte("audit = \"oops\"\n"), 0644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := WriteValue(bad, "audit.retention_days", 2); err == nil {
		t.Fatalf("expected error when audit is not a table")
	}
}

func TestWriteValue_DecodeExistingInvalidTOMLErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte("audit = [\n"), 0644); err != nil {
		t.Fatalf("write invalid toml: %v", err)
	}
	if err := WriteValue(path, "audit.retention_days", 2); err == nil {
		t.Fatalf("expected decode error")
	} else if !strings.Contains(err.Error(), "decode config") {
		t.Fatalf("unexpected error: %v", err)
	}
}
