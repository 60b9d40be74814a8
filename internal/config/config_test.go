package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kitcourier/internal/model"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", name, err)
	}
	return path
}

func TestLoad_LegacyJSONKeys(t *testing.T) {
	// 旧形式（大文字キー）の設定ファイルも読み込めること
	path := writeFile(t, "config.json", `{
		"VARIABLES": {"main_acc": "MainAccount", "password": "hunter2", "server": "OPPrison", "once": true, "delay": 5},
		"MC_INFO": {"version": "1.9"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Variables.MainAcc != "MainAccount" {
		t.Errorf("MainAcc = %q, want MainAccount", cfg.Variables.MainAcc)
	}
	if cfg.GameMode != model.GameModeOPPrison {
		t.Errorf("GameMode = %q, want %q", cfg.GameMode, model.GameModeOPPrison)
	}
	if !cfg.Variables.Once {
		t.Error("Once = false, want true")
	}
	if cfg.StartDelay() != 5*time.Second {
		t.Errorf("StartDelay = %v, want 5s", cfg.StartDelay())
	}
	// 未指定の値はデフォルトのまま
	if cfg.Timing.JoinTimeout.Std() != 20*time.Second {
		t.Errorf("JoinTimeout = %v, want 20s", cfg.Timing.JoinTimeout.Std())
	}
	if len(cfg.MCInfo.Hosts) != 3 {
		t.Errorf("Hosts = %v, want 3 default hosts", cfg.MCInfo.Hosts)
	}
}

func TestLoad_YAML(t *testing.T) {
	path := writeFile(t, "config.yaml", `
variables:
  main_acc: MainAccount
  server: opskyblock
timing:
  join_timeout: 45s
  gift_click_interval: 1s
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.GameMode != model.GameModeOPSkyblock {
		t.Errorf("GameMode = %q, want opskyblock", cfg.GameMode)
	}
	if cfg.Timing.JoinTimeout.Std() != 45*time.Second {
		t.Errorf("JoinTimeout = %v, want 45s", cfg.Timing.JoinTimeout.Std())
	}
	if cfg.Timing.GiftClickInterval.Std() != time.Second {
		t.Errorf("GiftClickInterval = %v, want 1s", cfg.Timing.GiftClickInterval.Std())
	}
	if cfg.Timing.ConfirmInterval.Std() != 3*time.Second {
		t.Errorf("ConfirmInterval = %v, want 3s", cfg.Timing.ConfirmInterval.Std())
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeFile(t, "config.json", `{"variables": {"main_acc": "FromFile", "server": "opprison"}}`)

	t.Setenv("KITCOURIER_RECIPIENT", "FromEnv")
	t.Setenv("KITCOURIER_JOIN_TIMEOUT", "1m")
	t.Setenv("KITCOURIER_HOSTS", "a.example,b.example")
	t.Setenv("KITCOURIER_DATABASE_URL", "postgres://u:p@localhost:5432/kits?sslmode=disable")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}

	if cfg.Variables.MainAcc != "FromEnv" {
		t.Errorf("MainAcc = %q, want FromEnv", cfg.Variables.MainAcc)
	}
	if cfg.Timing.JoinTimeout.Std() != time.Minute {
		t.Errorf("JoinTimeout = %v, want 1m", cfg.Timing.JoinTimeout.Std())
	}
	if len(cfg.MCInfo.Hosts) != 2 || cfg.MCInfo.Hosts[1] != "b.example" {
		t.Errorf("Hosts = %v, want [a.example b.example]", cfg.MCInfo.Hosts)
	}
	if !strings.HasPrefix(cfg.Store.URL, "postgres://") {
		t.Errorf("Store.URL = %q, want postgres URL", cfg.Store.URL)
	}
}

func TestLoad_UnsupportedGameMode(t *testing.T) {
	path := writeFile(t, "config.json", `{"variables": {"main_acc": "Main", "server": "bedwars"}}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for unsupported game mode")
	}
	if !errors.Is(err, model.ErrUnsupportedGameMode) {
		t.Errorf("errors.Is(err, ErrUnsupportedGameMode) = false, err = %v", err)
	}
}

func TestLoad_MissingRecipient(t *testing.T) {
	path := writeFile(t, "config.json", `{"variables": {"server": "opprison"}}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for missing recipient")
	}
	if !strings.Contains(err.Error(), "main_acc") {
		t.Errorf("error should mention main_acc: %v", err)
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	path := writeFile(t, "config.json", `{"variables": {"main_acc": "Main", "server": "opprison"}, "timing": {"join_timeout": "soon"}}`)

	if _, err := Load(path); err == nil {
		t.Fatal("expected error for invalid duration")
	}
}

func TestLoad_LogLevel(t *testing.T) {
	path := writeFile(t, "config.json", `{"variables": {"main_acc": "Main", "server": "opprison"}, "log_level": "debug"}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.LogLevel != "debug" {
		t.Errorf("LogLevel = %q, want debug", cfg.LogLevel)
	}
}

func TestLoad_InvalidLogLevel(t *testing.T) {
	path := writeFile(t, "config.json", `{"variables": {"main_acc": "Main", "server": "opprison"}, "log_level": "verbose"}`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("expected error for invalid log level")
	}
	if !strings.Contains(err.Error(), "log_level") {
		t.Errorf("error should mention log_level: %v", err)
	}
}

func TestLoad_MissingFileCreatesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	_, err := Load(path)
	if !errors.Is(err, ErrConfigCreated) {
		t.Fatalf("err = %v, want ErrConfigCreated", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("template should be written: %v", err)
	}
	if !strings.Contains(string(data), `"join_timeout": "20s"`) {
		t.Errorf("template should contain default join_timeout, got:\n%s", data)
	}

	// テンプレートは受取人未設定のため、そのままでは検証エラーになる
	if _, err := Load(path); err == nil {
		t.Error("template without recipient should not validate")
	}
}

func TestMarkFirstRun(t *testing.T) {
	dir := t.TempDir()

	if !MarkFirstRun(dir) {
		t.Error("first call should report first run")
	}
	if MarkFirstRun(dir) {
		t.Error("second call should not report first run")
	}
}
