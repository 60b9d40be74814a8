package app

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hitoshi/kitcourier/internal/model"
)

// writeTestConfig はテスト用の設定ファイルを一時ディレクトリに作成し、KITCOURIER_CONFIGに設定する。
func writeTestConfig(t *testing.T, dir, server string) {
	t.Helper()
	content := fmt.Sprintf(`{
		"variables": {"main_acc": "MainAccount", "password": "pw", "server": %q, "delay": 0},
		"store": {"url": "sqlite://%s"},
		"files": {"accounts": %q, "event_log": %q}
	}`, server,
		filepath.ToSlash(filepath.Join(dir, "user_data.db")),
		filepath.Join(dir, "usernames.txt"),
		filepath.Join(dir, "log.txt"),
	)
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("KITCOURIER_CONFIG", path)
}

func TestInit_WithValidConfig_Succeeds(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "opskyblock")

	var buf bytes.Buffer
	cfg, err := Init(&buf)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if cfg.GameMode != model.GameModeOPSkyblock {
		t.Errorf("GameMode = %q, want %q", cfg.GameMode, model.GameModeOPSkyblock)
	}

	// slogのグローバルロガーがJSON出力に設定されていること
	slog.Default().Info("init test")
	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("expected JSON log output, got error: %v\nraw: %s", err, buf.String())
	}
	if entry["msg"] != "init test" {
		t.Errorf("msg = %q, want %q", entry["msg"], "init test")
	}
}

func TestRun_MissingConfig_CreatesTemplate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	t.Setenv("KITCOURIER_CONFIG", path)

	var buf bytes.Buffer
	if err := Run(&buf, []string{"run"}); err != nil {
		t.Fatalf("Run should succeed after creating the template, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("config template was not created: %v", err)
	}
	if !strings.Contains(buf.String(), "Config file not found") {
		t.Errorf("console message missing: %s", buf.String())
	}
}

func TestRun_UnsupportedGameMode_ReturnsError(t *testing.T) {
	writeTestConfig(t, t.TempDir(), "bedwars")

	var buf bytes.Buffer
	err := Run(&buf, []string{"run"})
	if !errors.Is(err, model.ErrUnsupportedGameMode) {
		t.Fatalf("error = %v, want ErrUnsupportedGameMode", err)
	}
	if !strings.Contains(buf.String(), "Killing process.") {
		t.Errorf("console message missing: %s", buf.String())
	}
}

func TestRun_Migrate_SQLite(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "opprison")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"migrate"}); err != nil {
		t.Fatalf("migrate failed: %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "user_data.db")); err != nil {
		t.Errorf("database file was not created: %v", err)
	}
}

func TestRun_MissingAccountFile_CreatesSample(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "opfactions")

	var buf bytes.Buffer
	if err := Run(&buf, []string{"run"}); err != nil {
		t.Fatalf("Run should succeed after creating the account file, got %v", err)
	}
	data, err := os.ReadFile(filepath.Join(dir, "usernames.txt"))
	if err != nil {
		t.Fatalf("account file was not created: %v", err)
	}
	if !strings.Contains(string(data), "Account1") {
		t.Errorf("account file content = %q", data)
	}
}

func TestRun_AccountsWithoutRanks_FinishWithoutConnecting(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "opskyblock")
	if err := os.WriteFile(filepath.Join(dir, "usernames.txt"), []byte("alice\nbob\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if err := Run(&buf, []string{"run"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	out := buf.String()
	if strings.Count(out, "Account does not have a rank. Skipping.") != 2 {
		t.Errorf("expected both accounts to be skipped:\n%s", out)
	}
	if !strings.Contains(out, "all sessions finished") {
		t.Errorf("summary log missing:\n%s", out)
	}
}

func TestRunHealthcheck(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/health" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	if err := runHealthcheck(u.Port()); err != nil {
		t.Errorf("healthcheck failed: %v", err)
	}
}

func TestRunHealthcheck_Unhealthy(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	u, _ := url.Parse(server.URL)
	if err := runHealthcheck(u.Port()); err == nil {
		t.Error("expected error for 503")
	}
}

func TestMaskDatabaseURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"postgres://user:secret@db:5432/kitcourier", "postgres://us***@..."},
		{"sqlite://user_data.db", "sqlite://user_data.db"},
		{"short", "***"},
	}
	for _, tt := range tests {
		if got := maskDatabaseURL(tt.in); got != tt.want {
			t.Errorf("maskDatabaseURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestRun_KeepsStaleRanksWithoutRefresh(t *testing.T) {
	dir := t.TempDir()
	writeTestConfig(t, dir, "opskyblock")
	if err := os.WriteFile(filepath.Join(dir, "usernames.txt"), []byte("alice\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	storeURL := "sqlite://" + filepath.ToSlash(filepath.Join(dir, "user_data.db"))
	db, repo, err := openStore(storeURL)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	prisonRank := "VIP"
	stale := time.Now().AddDate(0, 0, -90)
	if err := repo.Upsert(context.Background(), &model.EntitlementRecord{
		Username:  "alice",
		OPPRank:   &prisonRank,
		FetchedAt: stale,
	}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	db.Close()

	var buf bytes.Buffer
	if err := Run(&buf, []string{"run"}); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	db, repo, err = openStore(storeURL)
	if err != nil {
		t.Fatalf("openStore failed: %v", err)
	}
	defer db.Close()
	rec, err := repo.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("FindByUsername failed: %v", err)
	}
	if rec == nil {
		t.Fatal("ランクの再取得なしに古いランク情報が削除されました")
	}
	if rec.OPPRank == nil || *rec.OPPRank != "VIP" {
		t.Errorf("OPPRank = %v, want VIP", rec.OPPRank)
	}
}
