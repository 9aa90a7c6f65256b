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
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/policyfeed/internal/aggregate"
	"github.com/hitoshi/policyfeed/internal/cache"
	"github.com/hitoshi/policyfeed/internal/config"
	"github.com/hitoshi/policyfeed/internal/database"
	"github.com/hitoshi/policyfeed/internal/handler"
	"github.com/hitoshi/policyfeed/internal/item"
	"github.com/hitoshi/policyfeed/internal/logger"
	"github.com/hitoshi/policyfeed/internal/metrics"
	"github.com/hitoshi/policyfeed/internal/middleware"
	"github.com/hitoshi/policyfeed/internal/repository"
	"github.com/hitoshi/policyfeed/internal/security"
	"github.com/hitoshi/policyfeed/internal/sharing"
	"github.com/hitoshi/policyfeed/internal/source"
	"github.com/hitoshi/policyfeed/internal/subscription"
	"github.com/hitoshi/policyfeed/internal/user"
	"github.com/hitoshi/policyfeed/internal/worker/cleanup"
	"github.com/hitoshi/policyfeed/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envがあれば環境変数に取り込んでから設定を読み込む
	envFile := config.EnvFile()
	loaded, err := config.LoadDotEnv(envFile)
	if err != nil {
		return nil, err
	}
	if loaded {
		slog.Info(".envファイルを読み込みました", slog.String("path", envFile))
	}

	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 3. 設定されたログレベルで再初期化する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	inv, err := ParseCommand(args)
	if err != nil {
		return err
	}
	cmd := inv.Command

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
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
	)

	switch cmd {
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg, inv.Migrate)
	default:
		return runServe(cfg)
	}
}

// server はserveモードで起動する構成要素。
type server struct {
	handler     http.Handler
	warmer      *refresh.Scheduler
	rateLimiter *middleware.RateLimiter
}

// newServer は全依存関係をワイヤリングしてHTTPハンドラーとキャッシュ更新スケジューラを構築する。
// DBへの接続は行わないため、未接続の*sql.DBでも構築できる。
func newServer(cfg *config.Config, db *sql.DB, registry *prometheus.Registry, base *slog.Logger) (*server, error) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	sessionRepo := repository.NewPostgresSessionRepo(db)
	prefsRepo := repository.NewPostgresPreferencesRepo(db)
	savedRepo := repository.NewPostgresSavedItemRepo(db)
	publicFeedRepo := repository.NewPostgresPublicFeedRepo(db)
	publicBucketRepo := repository.NewPostgresPublicBucketRepo(db)

	// 2. 計測とキャッシュ
	collector := metrics.NewCollector(registry)
	sourceCache, err := cache.New(cfg.SystemCacheSize, cfg.SystemCacheTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to build source cache: %w", err)
	}

	// 3. ソースアダプタ
	// ユーザー登録URLはSSRF対策済みのクライアント、固定ホストのシステムソースは通常のクライアントを使う
	ssrfGuard := security.NewSSRFGuard()
	safeClient := ssrfGuard.NewSafeClient(cfg.FetchTimeout)
	systemClient := &http.Client{Timeout: cfg.FetchTimeout}
	text := security.NewTextExtractor()
	sourceLogger := logger.Component(base, "source")

	feedAdapter := source.NewFeedAdapter(safeClient, text, sourceLogger, cfg.FetchMaxSize)
	discoverer := source.NewDiscoverer(safeClient, sourceLogger, cfg.FetchMaxSize)
	rulemakingAdapter := source.NewRulemakingAdapter(systemClient, text, sourceLogger, cfg.RulemakingEndpoint)
	systems := source.NewRegistry(
		source.NewGuardianAdapter(systemClient, text, sourceLogger, cfg.GuardianAPIKey),
		source.NewNYTAdapter(systemClient, text, sourceLogger, cfg.NYTAPIKey),
		source.NewCongressAdapter(systemClient, sourceLogger, cfg.CongressAPIKey),
	)

	aggLogger := logger.Component(base, "aggregate")
	aggregator := aggregate.NewAggregator(feedAdapter, rulemakingAdapter, systems.All(), aggLogger, cfg.FetchMaxConcurrent).
		WithCache(sourceCache).
		WithMetrics(collector)
	store := aggregate.NewStore()

	// 4. ドメインサービス
	sharingService := sharing.NewService(publicFeedRepo, publicBucketRepo, savedRepo, logger.Component(base, "sharing"))
	subService := subscription.NewService(prefsRepo, store, sharingService, ssrfGuard, discoverer, logger.Component(base, "subscription"))
	streamService := aggregate.NewService(subService, aggregator, store, collector, aggLogger)
	savedService := item.NewSavedService(savedRepo, logger.Component(base, "item"))
	userService := user.NewService(userRepo, sessionRepo, sharingService, savedRepo, prefsRepo, store, logger.Component(base, "user"))

	// 5. ルーター
	rateLimiter := middleware.NewRateLimiter(middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitRefresh))
	deps := &handler.RouterDeps{
		Logger: base,

		SessionFinder:     sessionRepo,
		UserFinder:        userRepo,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		CSRFConfig: middleware.CSRFConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
		SecurityHeaders: middleware.SecurityHeadersConfig{HSTS: cfg.CookieSecure},
		RateLimiter:     rateLimiter,
		StatusRecorder:  collector,
		PanicRecorder:   collector,

		Health:         db,
		MetricsHandler: metrics.Handler(registry),

		StreamService: streamService,
		SourceService: aggregator,

		PreferencesService: subService,

		SavedService:  savedService,
		SavedLister:   savedService,
		ItemSharer:    sharingService,
		PublicService: sharingService,

		UserService:    userService,
		SessionDeleter: sessionRepo,
		UserConfig: handler.UserHandlerConfig{
			CookieSecure: cfg.CookieSecure,
			CookieDomain: cfg.CookieDomain,
		},
	}

	return &server{
		handler:     handler.NewRouter(deps),
		warmer:      refresh.NewScheduler(aggregator, logger.Component(base, "refresh")),
		rateLimiter: rateLimiter,
	}, nil
}

// poolConfig は設定からDB接続プールの設定を組み立てる。
func poolConfig(cfg *config.Config) database.PoolConfig {
	return database.PoolConfig{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
	}
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーとシステムソースのキャッシュ更新を起動する。
// キャッシュと取得済みストリームはプロセス内に保持するため、キャッシュ更新もこのプロセスで実行する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL, poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. ワイヤリング
	registry := metrics.NewRegistry()
	srv, err := newServer(cfg, db, registry, slog.Default())
	if err != nil {
		return err
	}
	defer srv.rateLimiter.Stop()

	// 3. HTTPサーバーの起動
	// ストリーム更新は外部APIを並行取得するため、書き込みタイムアウトは取得タイムアウトより長くとる
	httpServer := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      srv.handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.FetchTimeout + 30*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	go srv.warmer.Start(ctx, cfg.SystemRefreshInterval)

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting",
			slog.String("addr", httpServer.Addr),
		)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return fmt.Errorf("server listen failed: %w", err)
	}
	slog.Info("shutting down API server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// DB接続を開き、期限切れセッションのクリーンアップを日次で実行する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	db, err := database.Open(cfg.DatabaseURL, poolConfig(cfg))
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

	sessionRepo := repository.NewPostgresSessionRepo(db)
	cleanupJob := cleanup.NewCleanupJob(sessionRepo, logger.Component(slog.Default(), "cleanup"), cfg.SessionRetentionDays)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	slog.Info("worker starting",
		slog.Int("session_retention_days", cleanupJob.RetentionDays),
		slog.String("cleanup_schedule", cfg.CleanupSchedule),
	)

	// クリーンアップジョブをメインgoroutineで実行（ブロッキング）
	if err := cleanupJob.Start(ctx, cfg.CleanupSchedule); err != nil {
		return err
	}

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はマイグレーションの適用・1段階の巻き戻し・バージョン表示を行う。
func runMigrate(cfg *config.Config, action MigrateAction) error {
	slog.Info("running database migrations",
		slog.String("action", string(action)),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case MigrateDown:
		if err := database.MigrateDown(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration rollback failed: %w", err)
		}
	case MigrateVersion:
		version, dirty, err := database.Version(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		slog.Info("database schema version",
			slog.Uint64("version", uint64(version)),
			slog.Bool("dirty", dirty),
		)
		return nil
	default:
		if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
