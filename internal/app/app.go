package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/kitcourier/internal/accounts"
	"github.com/hitoshi/kitcourier/internal/config"
	"github.com/hitoshi/kitcourier/internal/database"
	"github.com/hitoshi/kitcourier/internal/entitlement"
	"github.com/hitoshi/kitcourier/internal/handler"
	"github.com/hitoshi/kitcourier/internal/logger"
	"github.com/hitoshi/kitcourier/internal/metrics"
	"github.com/hitoshi/kitcourier/internal/middleware"
	"github.com/hitoshi/kitcourier/internal/model"
	"github.com/hitoshi/kitcourier/internal/notify"
	"github.com/hitoshi/kitcourier/internal/orchestrator"
	"github.com/hitoshi/kitcourier/internal/profile"
	"github.com/hitoshi/kitcourier/internal/protocol/wsbridge"
	"github.com/hitoshi/kitcourier/internal/repository"
	"github.com/hitoshi/kitcourier/internal/security"
	"github.com/hitoshi/kitcourier/internal/session"
	"github.com/hitoshi/kitcourier/internal/worker/cleanup"
)

// DefaultConfigPath は設定ファイルのデフォルトパス。KITCOURIER_CONFIGで変更できる。
const DefaultConfigPath = "config.json"

const unsupportedModeMessage = "Config file contains unsupported gamemode. Only support opskyblock, opfactions & opprison. Killing process."

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、設定ファイルを読み込む。
// 設定ファイルが存在しない場合はテンプレートを作成してconfig.ErrConfigCreatedを返す。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 設定ファイルと環境変数から設定を読み込む
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルを反映する
	if err := logger.SetLevel(cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to set log level: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
// 設定ファイルやアカウント一覧ファイルを新規作成した場合はnilを返す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("KITCOURIER_STATUS_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	console := logger.NewConsole(slog.Default())
	switch {
	case errors.Is(err, config.ErrConfigCreated):
		console.Info("", fmt.Sprintf("Config file not found. Created %s, fill in your details and restart.", configPath()))
		return nil
	case errors.Is(err, model.ErrUnsupportedGameMode):
		console.Error("", unsupportedModeMessage)
		return err
	case err != nil:
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("server", string(cfg.GameMode)),
		slog.String("store", maskDatabaseURL(cfg.Store.URL)),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch cmd {
	case CommandFetchRanks:
		return runFetchRanks(ctx, cfg, console)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runBot(ctx, cfg, console)
	}
}

// runBot はアカウントごとのセッションを起動し、すべて終了するまで待つ。
// SIGINTまたはSIGTERMを受信すると全セッションを閉じて終了する。
func runBot(ctx context.Context, cfg *config.Config, console *logger.Console) error {
	if config.MarkFirstRun("") {
		console.Info("", "First run detected. If you have just reset your kits, set delay to at least 10 seconds so the server does not rate limit your accounts.")
	}

	// 1. アカウント一覧
	list, err := accounts.Load(cfg.Files.Accounts, cfg.Variables.Password)
	if errors.Is(err, accounts.ErrAccountFileCreated) {
		console.Info("", fmt.Sprintf("No account file found. Created %s with example content, fill it in and restart.", cfg.Files.Accounts))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	// 2. ランクストア
	db, repo, err := openStore(cfg.Store.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	// 3. メトリクス
	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	// 4. 起動時のランク取得。古いランクの削除は取得に成功した場合のみ行う
	if cfg.Profile.FetchOnStart {
		if err := fetchRanks(ctx, cfg, repo, collector, accounts.Usernames(list)); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			slog.Warn("rank fetch on start failed", slog.String("error", err.Error()))
		}
	}

	// 5. ブリッジと通知先
	dialer, err := wsbridge.NewDialer(wsbridge.Config{
		URL:         cfg.Bridge.URL,
		SOCKS5:      cfg.Bridge.SOCKS5,
		DialTimeout: cfg.Bridge.DialTimeout.Std(),
	}, slog.Default())
	if err != nil {
		return fmt.Errorf("failed to create bridge dialer: %w", err)
	}

	var notifier session.Notifier
	if url := strings.TrimSpace(cfg.Notify.DiscordWebhookURL); url != "" {
		d, err := notify.NewDiscord(url, nil)
		if err != nil {
			return fmt.Errorf("failed to create discord notifier: %w", err)
		}
		notifier = d
	}

	// 6. セッションドライバ
	store := entitlement.NewStore(repo)
	events := logger.NewEventLog(cfg.Files.EventLog)
	driverCfg := session.Config{
		Recipient:         cfg.Variables.MainAcc,
		Mode:              cfg.GameMode,
		OnceMode:          cfg.Variables.Once,
		Version:           cfg.MCInfo.Version,
		Hosts:             cfg.MCInfo.Hosts,
		JoinTimeout:       cfg.Timing.JoinTimeout.Std(),
		ConfirmInterval:   cfg.Timing.ConfirmInterval.Std(),
		ReconnectDelay:    cfg.Timing.ReconnectDelay.Std(),
		GiftClickInterval: cfg.Timing.GiftClickInterval.Std(),
	}

	runners := make([]orchestrator.Runner, 0, len(list))
	for _, acc := range list {
		runners = append(runners, session.NewDriver(acc, driverCfg, session.Deps{
			Resolver: store,
			Dialer:   dialer,
			Console:  console,
			Events:   events,
			Metrics:  collector,
			Notifier: notifier,
			Logger:   slog.Default(),
		}))
	}
	orch := orchestrator.New(runners, cfg.StartDelay(), collector, slog.Default())

	// 7. ステータスAPI
	if cfg.Status.Enabled {
		rateLimiter := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig(), slog.Default())
		defer rateLimiter.Stop()

		server := &http.Server{
			Addr: ":" + cfg.Status.Port,
			Handler: handler.NewRouter(&handler.RouterDeps{
				Logger:       slog.Default(),
				RateLimiter:  rateLimiter,
				Health:       repo,
				Metrics:      metrics.Handler(reg),
				Sessions:     orch,
				Entitlements: store,
			}),
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			slog.Info("status API starting", slog.String("addr", server.Addr))
			if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("server listen error", slog.String("error", err.Error()))
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := server.Shutdown(shutdownCtx); err != nil {
				slog.Error("status API shutdown failed", slog.String("error", err.Error()))
			}
		}()
	}

	// 8. 全セッションの実行
	summary, err := orch.Run(ctx)
	if errors.Is(err, model.ErrUnsupportedGameMode) {
		console.Error("", unsupportedModeMessage)
		return err
	}
	if err != nil {
		return fmt.Errorf("sessions failed: %w", err)
	}

	args := []any{slog.Int("sessions", summary.Total())}
	for outcome, n := range summary.Outcomes {
		args = append(args, slog.Int(string(outcome), n))
	}
	slog.Info("all sessions finished", args...)
	return nil
}

// runFetchRanks はアカウント一覧のランクをプロフィールAPIから取得してストアへ保存する。
func runFetchRanks(ctx context.Context, cfg *config.Config, console *logger.Console) error {
	list, err := accounts.Load(cfg.Files.Accounts, cfg.Variables.Password)
	if errors.Is(err, accounts.ErrAccountFileCreated) {
		console.Info("", fmt.Sprintf("No account file found. Created %s with example content, fill it in and restart.", cfg.Files.Accounts))
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load accounts: %w", err)
	}

	db, repo, err := openStore(cfg.Store.URL)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := metrics.NewCollector(prometheus.NewRegistry())
	if err := fetchRanks(ctx, cfg, repo, collector, accounts.Usernames(list)); err != nil {
		return err
	}
	console.Success("", "Finished fetching ranks.")
	return nil
}

// fetchRanks はランク取得バッチを実行し、その後に保持期間切れのランクを削除する。
func fetchRanks(ctx context.Context, cfg *config.Config, repo repository.EntitlementRepository, recorder profile.ResultRecorder, usernames []string) error {
	if err := security.ValidateEndpoint(cfg.Profile.Endpoint); err != nil {
		return fmt.Errorf("invalid profile endpoint: %w", err)
	}

	client := profile.NewClient(
		security.NewSafeClient(cfg.Profile.Timeout.Std()),
		slog.Default(),
		cfg.Profile.Endpoint,
	)
	job := profile.NewBatchJob(client, repo, security.NewDisplayNameSanitizer(), recorder, slog.Default(), profile.BatchConfig{
		RequestInterval:      cfg.Profile.RequestInterval.Std(),
		MaxConsecutiveErrors: profile.DefaultBatchConfig().MaxConsecutiveErrors,
	})

	summary, err := job.Run(ctx, usernames)
	slog.Info("rank fetch finished",
		slog.Int("total", summary.Total),
		slog.Int("fetched", summary.Fetched),
		slog.Int("not_found", summary.NotFound),
		slog.Int("failed", summary.Failed),
	)
	if err != nil {
		return fmt.Errorf("rank fetch failed: %w", err)
	}

	pruneRanks(ctx, cfg, repo)
	return nil
}

// pruneRanks は保持期間を超えたランク情報を削除する。失敗してもログに残すだけ。
func pruneRanks(ctx context.Context, cfg *config.Config, repo repository.EntitlementRepository) {
	job := cleanup.NewCleanupJob(repo, slog.Default())
	job.RetentionDays = cfg.Profile.RetentionDays
	if _, err := job.Run(ctx); err != nil {
		slog.Error("cleanup job failed", slog.String("error", err.Error()))
	}
}

// openStore はマイグレーションを適用してからランクストアを開く。
func openStore(databaseURL string) (*sql.DB, repository.EntitlementRepository, error) {
	if err := database.RunMigrations(databaseURL); err != nil {
		return nil, nil, fmt.Errorf("migration failed: %w", err)
	}

	db, dialect, err := database.Open(databaseURL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	repo, err := repository.NewEntitlementRepository(db, dialect)
	if err != nil {
		db.Close()
		return nil, nil, err
	}

	slog.Info("database connection established", slog.String("dialect", string(dialect)))
	return db, repo, nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.Store.URL)),
	)

	if err := database.RunMigrations(cfg.Store.URL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

func configPath() string {
	if p := os.Getenv("KITCOURIER_CONFIG"); p != "" {
		return p
	}
	return DefaultConfigPath
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
// sqliteはファイルパスのみのためそのまま返す。
func maskDatabaseURL(url string) string {
	if strings.HasPrefix(url, "sqlite://") {
		return url
	}
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
