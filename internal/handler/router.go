package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/entaku/ourcal/internal/auth"
	"github.com/entaku/ourcal/internal/metrics"
	"github.com/entaku/ourcal/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenValidator    middleware.TokenValidator
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// 認証
	AuthState AuthStateInterface
	Sessions  SessionIssuer
	Providers map[string]auth.Provider

	// ドメインストア
	EventStore    EventStoreInterface
	GroupStore    GroupStoreInterface
	SettingsStore SettingsStoreInterface
	TriageManager TriageManagerInterface

	// 観測
	Metrics  metrics.MetricsCollector
	Gatherer prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → Auth → RateLimit(General)
//
// サインイン、/health、/metricsは認証ミドルウェアの外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		var observer middleware.RequestObserver
		if deps.Metrics != nil {
			observer = deps.Metrics
		}
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, observer))
	}

	authHandler := NewAuthHandler(deps.AuthState, deps.Sessions, deps.Providers)

	var syncObserver SyncObserver
	var triageObserver TriageObserver
	if deps.Metrics != nil {
		syncObserver = deps.Metrics
		triageObserver = deps.Metrics
	}
	eventHandler := NewEventHandler(deps.EventStore, syncObserver)
	groupHandler := NewGroupHandler(deps.GroupStore)
	settingsHandler := NewSettingsHandler(deps.SettingsStore)
	triageHandler := NewTriageHandler(deps.TriageManager, deps.EventStore, triageObserver)

	// --- 認証不要のルート ---

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// サインイン（認可コードの交換）
	r.Route("/api/v1/auth", func(r chi.Router) {
		r.Post("/google", authHandler.SignIn("google"))
		r.Post("/line", authHandler.SignIn("line"))
	})

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.TokenValidator))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		r.Route("/api/v1", func(r chi.Router) {
			// セッション管理
			r.Post("/auth/signout", authHandler.SignOut)
			r.Post("/auth/onboarding/complete", authHandler.CompleteOnboarding)

			// ユーザー
			r.Get("/users/me", authHandler.Me)
			r.Put("/users/me", authHandler.UpdateMe)

			// 予定管理
			r.Route("/events", func(r chi.Router) {
				r.Get("/", eventHandler.ListEvents)
				r.Post("/", eventHandler.CreateEvent)
				r.Get("/shared", eventHandler.ListSharedEvents)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", eventHandler.GetEvent)
					r.Put("/", eventHandler.UpdateEvent)
					r.Delete("/", eventHandler.DeleteEvent)
					r.Post("/toggle-share", eventHandler.ToggleShare)
				})
			})

			// Googleカレンダー同期（外部API呼び出しを伴うため専用レート制限を追加）
			r.With(deps.RateLimiter.SyncMiddleware()).Post("/sync", eventHandler.Sync)
			r.Get("/sync/status", eventHandler.SyncStatus)

			// グループ管理
			r.Route("/groups", func(r chi.Router) {
				r.Get("/", groupHandler.ListGroups)
				r.Post("/", groupHandler.CreateGroup)
				r.Post("/join", groupHandler.JoinGroup)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", groupHandler.GetGroup)
					r.Delete("/", groupHandler.DeleteGroup)
					r.Post("/leave", groupHandler.LeaveGroup)
					r.Get("/members", groupHandler.ListMembers)
					r.Delete("/members/{userID}", groupHandler.RemoveMember)
				})
			})

			// スワイプ振り分け
			r.Route("/triage", func(r chi.Router) {
				r.Post("/session", triageHandler.StartSession)
				r.Get("/current", triageHandler.Current)
				r.Post("/release", triageHandler.Release)
				r.Get("/status", triageHandler.Status)
			})

			// アプリ設定
			r.Route("/settings", func(r chi.Router) {
				r.Get("/", settingsHandler.GetSettings)
				r.Put("/", settingsHandler.UpdateSettings)
			})
		})
	})

	return r
}
