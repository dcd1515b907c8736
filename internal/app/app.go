package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/hitoshi/newsdesk/internal/config"
	"github.com/hitoshi/newsdesk/internal/database"
	"github.com/hitoshi/newsdesk/internal/feedparse"
	"github.com/hitoshi/newsdesk/internal/handler"
	"github.com/hitoshi/newsdesk/internal/logger"
	"github.com/hitoshi/newsdesk/internal/metrics"
	"github.com/hitoshi/newsdesk/internal/middleware"
	"github.com/hitoshi/newsdesk/internal/pipeline"
	"github.com/hitoshi/newsdesk/internal/readmark"
	"github.com/hitoshi/newsdesk/internal/relay"
	"github.com/hitoshi/newsdesk/internal/scrape"
	"github.com/hitoshi/newsdesk/internal/security"
	"github.com/hitoshi/newsdesk/internal/store"
	"github.com/hitoshi/newsdesk/internal/translate"
	"github.com/hitoshi/newsdesk/internal/worker/cleanup"
	"github.com/hitoshi/newsdesk/internal/worker/refresh"
)

// Init はアプリケーションの初期化を行う。
// .envファイル（存在する場合）と環境変数からConfigを読み込み、
// JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. .envファイルの読み込み（存在しない場合は無視）
	_ = godotenv.Load()

	// 2. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

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
	case CommandServe:
		return runServe(cfg)
	case CommandWorker:
		return runWorker(cfg)
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// openStore は設定に応じた記事ストアを開き、
// ヘルスチェック用の疎通確認関数とクローズ関数を併せて返す。
// DATABASE_URL未設定の場合はインメモリストアにフォールバックする
// （疎通確認関数はnil）。
func openStore(cfg *config.Config) (store.ArticleStore, func(context.Context) error, func(), error) {
	if cfg.DatabaseURL == "" {
		slog.Warn("DATABASE_URLが未設定のためインメモリストアで起動します（データは永続化されません）")
		return store.NewMemoryStore(), nil, func() {}, nil
	}

	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, nil, nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")
	pinger := func(ctx context.Context) error { return db.PingContext(ctx) }
	return store.NewPostgresStore(db), pinger, func() { db.Close() }, nil
}

// newTracker は設定に応じた開封済みトラッカーを生成する。
// REDIS_ADDR未設定の場合はインメモリ実装にフォールバックする。
func newTracker(cfg *config.Config) readmark.Tracker {
	if cfg.RedisAddr == "" {
		slog.Warn("REDIS_ADDRが未設定のためインメモリの開封済みトラッカーで起動します")
		return readmark.NewMemoryTracker()
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return readmark.NewRedisTracker(client)
}

// buildAggregator は集約パイプラインとその依存関係をワイヤリングする。
func buildAggregator(cfg *config.Config, st store.ArticleStore, collector *metrics.Collector) *pipeline.Aggregator {
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewTextSanitizer()

	fetcher := relay.NewFetcher(
		relay.DefaultRelays(),
		ssrfGuard,
		ssrfGuard.NewSafeClient(cfg.RelayTimeout),
		slog.Default(),
		collector,
		cfg.RelayTimeout,
		cfg.FetchMaxSize,
	)

	parsers := map[config.SourceKind]pipeline.DocumentParser{
		config.SourceRSS:  feedparse.New(sanitizer),
		config.SourceHTML: scrape.NewPolitico(sanitizer),
	}

	return pipeline.New(pipeline.Deps{
		Feeds:           config.DefaultCountryFeedSet(),
		Fetcher:         fetcher,
		Parsers:         parsers,
		Store:           st,
		Logger:          slog.Default(),
		Metrics:         collector,
		RefreshInterval: cfg.RefreshInterval,
		RetentionDays:   cfg.RetentionDays,
		MaxConcurrent:   cfg.FetchMaxConcurrent,
	})
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	st, pinger, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	aggregator := buildAggregator(cfg, st, collector)
	tracker := newTracker(cfg)

	var translator handler.TranslatorInterface
	if cfg.TranslateEnabled {
		translator = translate.NewClient(
			&http.Client{Timeout: 10 * time.Second},
			slog.Default(),
			cfg.TranslateInterval,
		)
	}

	// configのRateLimitGeneralはreq/min単位なのでreq/secに変換する
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg, slog.Default())
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),
		Feeds:             config.DefaultCountryFeedSet(),
		Aggregator:        aggregator,
		Translator:        translator,
		ReadMarker:        tracker,
		Tracker:           tracker,
		Metrics:           metrics.Handler(registry),
		Pinger:            pinger,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 全設定国のバックグラウンド更新スケジューラとアーカイブ退避ジョブを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	st, _, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	aggregator := buildAggregator(cfg, st, collector)

	feeds := config.DefaultCountryFeedSet()
	scheduler := refresh.NewScheduler(
		feeds.Countries(), aggregator, slog.Default(), cfg.FetchMaxConcurrent,
	)

	cleanupJob := cleanup.NewCleanupJob(st, slog.Default())
	cleanupJob.RetentionDays = cfg.RetentionDays

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-stop
		slog.Info("shutting down worker...")
		cancel()
	}()

	slog.Info("worker starting",
		slog.Duration("refresh_interval", cfg.RefreshInterval),
		slog.Int("max_concurrent", cfg.FetchMaxConcurrent),
	)

	// Prometheusスクレイプ用サーバーをバックグラウンドで起動
	metricsServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: metrics.SetupMetricsRoute(registry),
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("metrics server listen error", slog.String("error", err.Error()))
		}
	}()
	defer metricsServer.Close()

	// アーカイブ退避ジョブを日次でバックグラウンド実行
	go cleanupJob.Start(ctx, 24*time.Hour)

	// 更新スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler.Start(ctx, cfg.RefreshInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migration")
	}

	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /healthz エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/healthz", port)
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
