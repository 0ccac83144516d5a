// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
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

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/entaku/ourcal/internal/auth"
	"github.com/entaku/ourcal/internal/calendar"
	"github.com/entaku/ourcal/internal/config"
	"github.com/entaku/ourcal/internal/database"
	"github.com/entaku/ourcal/internal/event"
	"github.com/entaku/ourcal/internal/group"
	"github.com/entaku/ourcal/internal/handler"
	"github.com/entaku/ourcal/internal/logger"
	"github.com/entaku/ourcal/internal/metrics"
	"github.com/entaku/ourcal/internal/middleware"
	"github.com/entaku/ourcal/internal/storage"
	"github.com/entaku/ourcal/internal/triage"
	syncworker "github.com/entaku/ourcal/internal/worker/sync"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, logger.ParseLevel(os.Getenv("LOG_LEVEL")))

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// LOG_LEVELが.env経由で入った場合に反映する
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

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

// stores はストレージ層とドメインストアのワイヤリング結果。
type stores struct {
	store      *storage.Store
	queue      *storage.WriteBehind
	eventStore *event.Store
	groupStore *group.Store
	authState  *auth.State
}

// buildStores はKVストレージ・write-behindキュー・ドメインストアを組み立て、
// 保存済み状態をメモリに読み込む。
func buildStores(ctx context.Context, kv storage.KV) (*stores, error) {
	store := storage.NewStore(kv)
	queue := storage.NewWriteBehind(slog.Default())

	calClient := calendar.NewGoogleClient(store, slog.Default())

	eventStore := event.NewStore(store, queue, calClient, slog.Default())
	if err := eventStore.Load(ctx); err != nil {
		return nil, err
	}

	groupStore := group.NewStore(store, queue, slog.Default())
	if err := groupStore.Load(ctx); err != nil {
		return nil, err
	}

	authState := auth.NewState(store, slog.Default())
	if err := authState.Load(ctx); err != nil {
		return nil, err
	}

	return &stores{
		store:      store,
		queue:      queue,
		eventStore: eventStore,
		groupStore: groupStore,
		authState:  authState,
	}, nil
}

// buildProviders は設定済みのOAuthプロバイダーを組み立てる。
func buildProviders(cfg *config.Config) map[string]auth.Provider {
	providers := map[string]auth.Provider{
		"google": auth.NewGoogleProvider(auth.GoogleConfig{
			ClientID:     cfg.GoogleClientID,
			ClientSecret: cfg.GoogleClientSecret,
			RedirectURL:  cfg.GoogleRedirectURL,
		}),
	}
	if cfg.LineEnabled() {
		providers["line"] = auth.NewLineProvider(auth.LineConfig{
			ChannelID:     cfg.LineChannelID,
			ChannelSecret: cfg.LineChannelSecret,
			RedirectURL:   cfg.LineRedirectURL,
		})
	}
	return providers
}

// rateLimiterConfig はconfigのreq/min値をrate.Limitへ変換する。
func rateLimiterConfig(cfg *config.Config) middleware.RateLimiterConfig {
	rlCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rlCfg.GeneralRate = rate.Limit(float64(cfg.RateLimitGeneral) / 60.0)
		rlCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitSync > 0 {
		rlCfg.SyncRate = rate.Limit(float64(cfg.RateLimitSync) / 60.0)
		rlCfg.SyncBurst = cfg.RateLimitSync
	}
	return rlCfg
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行い、
// write-behindキューの未書き込み分をフラッシュしてから終了する。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 2. ストレージとドメインストア
	st, err := buildStores(ctx, storage.NewPostgresKV(db))
	if err != nil {
		return fmt.Errorf("failed to load stores: %w", err)
	}

	// write-behindキューをバックグラウンドで起動
	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		st.queue.Run(ctx)
	}()

	// 3. 認証
	sessions := auth.NewSessions(cfg.SessionMaxAge)
	providers := buildProviders(cfg)

	// 4. メトリクス
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 5. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(rateLimiterConfig(cfg))
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		TokenValidator:    sessions,
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		Logger:            slog.Default(),

		AuthState: st.authState,
		Sessions:  sessions,
		Providers: providers,

		EventStore:    st.eventStore,
		GroupStore:    st.groupStore,
		SettingsStore: st.store,
		TriageManager: triage.NewManager(st.eventStore),

		Metrics:  collector,
		Gatherer: registry,
	}

	router := handler.NewRouter(deps)

	// 6. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	// キューを停止し、最終フラッシュの完了を待つ
	cancel()
	<-queueDone

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker は定期同期ワーカーモードで起動する。
// DB接続を開き、Googleカレンダー同期スケジューラを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとシャットダウンする。
func runWorker(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established (worker)")

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

	// 2. ストレージとドメインストア
	st, err := buildStores(ctx, storage.NewPostgresKV(db))
	if err != nil {
		return fmt.Errorf("failed to load stores: %w", err)
	}

	queueDone := make(chan struct{})
	go func() {
		defer close(queueDone)
		st.queue.Run(ctx)
	}()

	// 3. メトリクス（ワーカーは公開エンドポイントを持たないが記録は行う）
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. 同期スケジューラをメインgoroutineで実行（ブロッキング）
	scheduler := syncworker.NewScheduler(st.eventStore, collector, slog.Default())

	slog.Info("worker starting",
		slog.Duration("sync_interval", cfg.SyncInterval),
	)

	scheduler.Start(ctx, cfg.SyncInterval)

	<-queueDone
	slog.Info("worker stopped gracefully")
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
