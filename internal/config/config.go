package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/hitoshi/kitcourier/internal/logger"
	"github.com/hitoshi/kitcourier/internal/model"
)

// ErrConfigCreated は設定ファイルが存在せず、テンプレートを新規作成したことを示す。
// 呼び出し元は利用者に編集を促して正常終了する。
var ErrConfigCreated = errors.New("config file created")

// Duration は "20s" のような文字列で表現する時間。
// JSON・YAML・環境変数のいずれからも同じ書式で読み込める。
type Duration time.Duration

// UnmarshalText はencoding.TextUnmarshalerを実装する。
func (d *Duration) UnmarshalText(b []byte) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", string(b), err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText はencoding.TextMarshalerを実装する。
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Std はtime.Durationに変換する。
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config はアプリケーション全体の設定を保持する。
// 起動時に1回読み込み、イミュータブルとして扱う。
// JSONのキー照合は大文字小文字を区別しないため、旧形式の "VARIABLES" / "MC_INFO" もそのまま読める。
type Config struct {
	Variables Variables `json:"variables" yaml:"variables"`
	MCInfo    MCInfo    `json:"mc_info" yaml:"mc_info"`
	Timing    Timing    `json:"timing" yaml:"timing"`
	Store     Store     `json:"store" yaml:"store"`
	Profile   Profile   `json:"profile" yaml:"profile"`
	Bridge    Bridge    `json:"bridge" yaml:"bridge"`
	Status    Status    `json:"status" yaml:"status"`
	Notify    Notify    `json:"notify" yaml:"notify"`
	Files     Files     `json:"files" yaml:"files"`

	// LogLevel はJSONログの出力レベル（debug / info / warn / error）。
	LogLevel string `json:"log_level" yaml:"log_level" env:"KITCOURIER_LOG_LEVEL"`

	// GameMode はVariables.Serverを検証済みの値に変換したもの。
	GameMode model.GameMode `json:"-" yaml:"-"`
}

// Variables は収集動作の基本設定。
type Variables struct {
	MainAcc  string  `json:"main_acc" yaml:"main_acc" env:"KITCOURIER_RECIPIENT"`
	Password string  `json:"password" yaml:"password" env:"KITCOURIER_PASSWORD"`
	Server   string  `json:"server" yaml:"server" env:"KITCOURIER_SERVER"`
	Once     bool    `json:"once" yaml:"once" env:"KITCOURIER_ONCE"`
	Delay    float64 `json:"delay" yaml:"delay" env:"KITCOURIER_DELAY"` // アカウント起動間隔（秒）
}

// MCInfo は接続先サーバーの情報。
type MCInfo struct {
	Version string   `json:"version" yaml:"version" env:"KITCOURIER_VERSION"`
	Hosts   []string `json:"hosts" yaml:"hosts" env:"KITCOURIER_HOSTS" envSeparator:","`
}

// Timing はセッションのタイマー設定。
type Timing struct {
	JoinTimeout       Duration `json:"join_timeout" yaml:"join_timeout" env:"KITCOURIER_JOIN_TIMEOUT"`
	ConfirmInterval   Duration `json:"confirm_interval" yaml:"confirm_interval" env:"KITCOURIER_CONFIRM_INTERVAL"`
	ReconnectDelay    Duration `json:"reconnect_delay" yaml:"reconnect_delay" env:"KITCOURIER_RECONNECT_DELAY"`
	GiftClickInterval Duration `json:"gift_click_interval" yaml:"gift_click_interval" env:"KITCOURIER_GIFT_CLICK_INTERVAL"`
}

// Store はランクストアの接続設定。
// URLのスキームでドライバを選択する（sqlite:// または postgres://）。
type Store struct {
	URL string `json:"url" yaml:"url" env:"KITCOURIER_DATABASE_URL"`
}

// Profile はランク取得に使うプロフィールAPIの設定。
type Profile struct {
	Endpoint        string   `json:"endpoint" yaml:"endpoint" env:"KITCOURIER_PROFILE_ENDPOINT"`
	Timeout         Duration `json:"timeout" yaml:"timeout" env:"KITCOURIER_PROFILE_TIMEOUT"`
	RequestInterval Duration `json:"request_interval" yaml:"request_interval" env:"KITCOURIER_PROFILE_REQUEST_INTERVAL"`
	FetchOnStart    bool     `json:"fetch_on_start" yaml:"fetch_on_start" env:"KITCOURIER_FETCH_ON_START"`
	RetentionDays   int      `json:"retention_days" yaml:"retention_days" env:"KITCOURIER_RANK_RETENTION_DAYS"`
}

// Bridge はゲームプロトコルブリッジへの接続設定。
type Bridge struct {
	URL         string   `json:"url" yaml:"url" env:"KITCOURIER_BRIDGE_URL"`
	SOCKS5      string   `json:"socks5" yaml:"socks5" env:"KITCOURIER_BRIDGE_SOCKS5"`
	DialTimeout Duration `json:"dial_timeout" yaml:"dial_timeout" env:"KITCOURIER_BRIDGE_DIAL_TIMEOUT"`
}

// Status はステータスAPIサーバーの設定。
type Status struct {
	Enabled bool   `json:"enabled" yaml:"enabled" env:"KITCOURIER_STATUS_ENABLED"`
	Port    string `json:"port" yaml:"port" env:"KITCOURIER_STATUS_PORT"`
}

// Notify は通知先の設定。空の場合は通知しない。
type Notify struct {
	DiscordWebhookURL string `json:"discord_webhook_url" yaml:"discord_webhook_url" env:"KITCOURIER_DISCORD_WEBHOOK_URL"`
}

// Files は入出力ファイルのパス。
type Files struct {
	Accounts string `json:"accounts" yaml:"accounts" env:"KITCOURIER_ACCOUNTS_FILE"`
	EventLog string `json:"event_log" yaml:"event_log" env:"KITCOURIER_EVENT_LOG"`
}

// Default はデフォルト値を設定したConfigを返す。
func Default() *Config {
	return &Config{
		Variables: Variables{
			Delay: 3,
		},
		MCInfo: MCInfo{
			Version: "1.9",
			Hosts:   []string{"top.pika.host", "proxy001.pikasys.net", "proxy002.pikasys.net"},
		},
		Timing: Timing{
			JoinTimeout:       Duration(20 * time.Second),
			ConfirmInterval:   Duration(3 * time.Second),
			ReconnectDelay:    Duration(3 * time.Second),
			GiftClickInterval: Duration(200 * time.Millisecond),
		},
		Store: Store{
			URL: "sqlite://user_data.db",
		},
		Profile: Profile{
			Endpoint:        "https://stats.pika-network.net/api/profile",
			Timeout:         Duration(10 * time.Second),
			RequestInterval: Duration(1 * time.Second),
			RetentionDays:   30,
		},
		Bridge: Bridge{
			URL:         "ws://127.0.0.1:8765/session",
			DialTimeout: Duration(15 * time.Second),
		},
		Status: Status{
			Port: "8080",
		},
		Files: Files{
			Accounts: "usernames.txt",
			EventLog: "log.txt",
		},
		LogLevel: "info",
	}
}

// Load は設定ファイルを読み込み、環境変数で上書きしてから検証する。
// ファイルが存在しない場合はテンプレートを作成してErrConfigCreatedを返す。
// 拡張子が .yaml / .yml の場合はYAML、それ以外はJSONとして扱う。
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		if err := WriteTemplate(path); err != nil {
			return nil, err
		}
		return nil, ErrConfigCreated
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if isYAML(path) {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate は設定値を検証し、GameModeを確定させる。
// サポート外のゲームモードの場合はmodel.ErrUnsupportedGameModeをラップしたエラーを返す。
func (c *Config) Validate() error {
	mode, err := model.ParseGameMode(c.Variables.Server)
	if err != nil {
		return err
	}
	c.GameMode = mode

	var problems []string
	if strings.TrimSpace(c.Variables.MainAcc) == "" {
		problems = append(problems, "variables.main_acc is required")
	}
	if c.Variables.Delay < 0 {
		problems = append(problems, "variables.delay must not be negative")
	}
	if len(c.MCInfo.Hosts) == 0 {
		problems = append(problems, "mc_info.hosts must not be empty")
	}
	if c.Timing.JoinTimeout <= 0 || c.Timing.ConfirmInterval <= 0 ||
		c.Timing.ReconnectDelay <= 0 || c.Timing.GiftClickInterval <= 0 {
		problems = append(problems, "timing values must be positive")
	}
	if strings.TrimSpace(c.Store.URL) == "" {
		problems = append(problems, "store.url is required")
	}
	if _, err := logger.ParseLevel(c.LogLevel); err != nil {
		problems = append(problems, "log_level must be one of debug, info, warn, error")
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// StartDelay はアカウント起動間隔を返す。
func (c *Config) StartDelay() time.Duration {
	return time.Duration(c.Variables.Delay * float64(time.Second))
}

// WriteTemplate はデフォルト値の設定ファイルを書き出す。
func WriteTemplate(path string) error {
	cfg := Default()

	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(cfg)
	} else {
		data, err = json.MarshalIndent(cfg, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to encode config template: %w", err)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write config template: %w", err)
	}
	return nil
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
