package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hitoshi/profilekeeper/internal/auth"
	"github.com/hitoshi/profilekeeper/internal/config"
	"github.com/hitoshi/profilekeeper/internal/cookie"
	"github.com/hitoshi/profilekeeper/internal/database"
	"github.com/hitoshi/profilekeeper/internal/handler"
	"github.com/hitoshi/profilekeeper/internal/logger"
	"github.com/hitoshi/profilekeeper/internal/metrics"
	"github.com/hitoshi/profilekeeper/internal/middleware"
	"github.com/hitoshi/profilekeeper/internal/profile"
	"github.com/hitoshi/profilekeeper/internal/repository"
	"github.com/hitoshi/profilekeeper/internal/security"
	"github.com/hitoshi/profilekeeper/internal/session"
	"github.com/hitoshi/profilekeeper/internal/view"
	"github.com/hitoshi/profilekeeper/internal/worker/cleanup"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// sessionCleanupInterval はserve中に期限切れセッションを削除する間隔。
const sessionCleanupInterval = time.Hour

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップしてから環境変数のConfigを読み込み、LOG_LEVELを反映する。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	logger.SetLevel(cfg.LogLevel)
	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "5000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("base_url", cfg.BaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	case CommandCleanup:
		return runCleanup(cfg)
	default:
		return runServe(cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(cfg *config.Config) (*database.DB, error) {
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established",
		slog.String("driver", string(db.Driver)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// runServe はWebサーバーモードで起動する。
// マイグレーションでテーブルを用意してからDB接続を開き、全依存関係をワイヤリングしてHTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. テーブルの自動作成
	if err := runMigrate(cfg); err != nil {
		return err
	}

	// 2. DB接続
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. メトリクス
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	collector := metrics.NewCollector(registry)

	// 4. リポジトリの初期化
	profileRepo := repository.NewProfileRepo(db.DB, db.Driver)
	sessionRepo := repository.NewSessionRepo(db.DB, db.Driver)

	// 5. 認証・セッションの初期化
	signer, err := cookie.NewSigner(cfg.SecretKey)
	if err != nil {
		return fmt.Errorf("failed to create cookie signer: %w", err)
	}

	provider, err := auth.NewOktaProvider(ctx, auth.ProviderConfig{
		IssuerURL:    cfg.IssuerURL(),
		ClientID:     cfg.OktaClientID,
		ClientSecret: cfg.OktaClientSecret,
		RedirectURL:  cfg.CallbackURL(),
		Timeout:      cfg.ProviderTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize identity provider: %w", err)
	}

	loginFlow := auth.NewClient(provider, signer, auth.ClientConfig{
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	})
	sessions := session.NewManager(sessionRepo, signer, session.Config{
		MaxAge:       time.Duration(cfg.SessionMaxAge) * time.Second,
		CookieSecure: cfg.CookieSecure,
		CookieDomain: cfg.CookieDomain,
	})

	// 6. プロフィール・表示の初期化
	profiles := profile.NewService(profileRepo, collector)

	renderer, err := view.NewRenderer()
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	rateLimiterCfg := middleware.RateLimiterConfigPerMinute(cfg.ProfileUpdateRatePerMin)
	rateLimiterCfg.ErrorRenderer = renderer

	// 7. ルーターの構築
	router := handler.NewRouter(&handler.RouterDeps{
		Logger:        slog.Default(),
		HealthChecker: db,

		LoginFlow: loginFlow,
		Sessions:  sessions,

		Profiles:    profiles,
		Markup:      security.NewMarkupDetector(),
		RateLimiter: middleware.NewRateLimiter(rateLimiterCfg),
		CSRF: middleware.CSRFConfig{
			CookieSecure:  cfg.CookieSecure,
			CookieDomain:  cfg.CookieDomain,
			ErrorRenderer: renderer,
		},

		Renderer: renderer,

		Recorder:       collector,
		StatusObserver: collector,
		MetricsHandler: metrics.Handler(registry),
	})

	// 8. 期限切れセッションの定期削除
	cleanupJob := cleanup.NewSessionCleanupJob(sessionRepo, collector, slog.Default())
	go cleanupJob.Start(ctx, sessionCleanupInterval)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("web server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server listen failed: %w", err)
		}
	case <-ctx.Done():
	}
	slog.Info("shutting down web server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("web server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runCleanup は期限切れセッションを1回だけ削除する。
// cronなど外部スケジューラからの実行を想定している。
func runCleanup(cfg *config.Config) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	job := cleanup.NewSessionCleanupJob(repository.NewSessionRepo(db.DB, db.Driver), nil, slog.Default())
	if _, err := job.Run(context.Background()); err != nil {
		return fmt.Errorf("cleanup failed: %w", err)
	}
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	endpoint := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(endpoint)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
// パースできない場合は内容を一切出さない。
func maskDatabaseURL(databaseURL string) string {
	u, err := url.Parse(databaseURL)
	if err != nil || u.Scheme == "" {
		return "***"
	}
	if u.User != nil {
		u.User = url.User("***")
	}
	u.RawQuery = ""
	return u.String()
}
