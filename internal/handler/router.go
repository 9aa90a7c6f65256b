package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/policyfeed/internal/middleware"
)

// healthCheckTimeout はヘルスチェック時のDB疎通確認のタイムアウト。
const healthCheckTimeout = 2 * time.Second

// HealthChecker はヘルスチェックで疎通確認する依存先。*sql.DBが実装する。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	Logger *slog.Logger

	// ミドルウェア依存
	SessionFinder     middleware.SessionFinder
	UserFinder        middleware.UserFinder
	CORSAllowedOrigin string
	CSRFConfig        middleware.CSRFConfig
	SecurityHeaders   middleware.SecurityHeadersConfig
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.HTTPStatusRecorder
	PanicRecorder     middleware.PanicRecorder

	// 運用
	Health         HealthChecker
	MetricsHandler http.Handler

	// ストリーム
	StreamService StreamServiceInterface
	SourceService SourceServiceInterface

	// 購読フィード・カテゴリ
	PreferencesService PreferencesServiceInterface

	// 保存記事・公開
	SavedService  SavedServiceInterface
	SavedLister   SavedListerInterface
	ItemSharer    ItemSharerInterface
	PublicService PublicServiceInterface

	// ユーザー
	UserService    UserServiceInterface
	SessionDeleter SessionDeleter
	UserConfig     UserHandlerConfig
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RequestID → Logging → Recovery → SecurityHeaders → CORS
//	  → (認証ルートのみ) Session → CSRF → RateLimit(General)
//
// /health、/metrics、/api/csrf-token は認証不要。
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(middleware.NewRequestIDMiddleware())
	r.Use(middleware.NewLoggingMiddleware(logger, deps.StatusRecorder))
	r.Use(middleware.NewRecoveryMiddleware(logger, deps.PanicRecorder))
	r.Use(middleware.NewSecurityHeadersMiddleware(deps.SecurityHeaders))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	streamHandler := NewStreamHandler(deps.StreamService, deps.SourceService, deps.PreferencesService, deps.SavedLister)
	prefsHandler := NewPreferencesHandler(deps.PreferencesService)
	savedHandler := NewSavedHandler(deps.SavedService, deps.ItemSharer)
	publicHandler := NewPublicHandler(deps.PublicService)
	userHandler := NewUserHandler(deps.UserService, deps.SessionDeleter, deps.UserConfig)

	// --- 認証不要のルート ---

	r.Get("/health", healthHandler(deps.Health))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}
	r.Method(http.MethodGet, "/api/csrf-token", middleware.NewCSRFTokenHandler(deps.CSRFConfig))

	// --- 認証が必要なルート ---
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewSessionMiddleware(deps.SessionFinder, deps.UserFinder))
		r.Use(middleware.NewCSRFMiddleware(deps.CSRFConfig))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// ストリーム
		r.Route("/api/stream", func(r chi.Router) {
			r.Get("/", streamHandler.GetStream)
			// POST /api/stream/refresh - 更新専用レート制限を追加
			r.With(deps.RateLimiter.RefreshMiddleware()).Post("/refresh", streamHandler.Refresh)
		})
		r.Get("/api/sources/{name}", streamHandler.GetSource)

		// 購読フィード
		r.Get("/api/preferences", prefsHandler.GetPreferences)
		r.Route("/api/feeds", func(r chi.Router) {
			r.Post("/", prefsHandler.AddFeed)
			r.Patch("/", prefsHandler.UpdateFeed)
			r.Delete("/", prefsHandler.RemoveFeed)
			r.Post("/hidden", prefsHandler.ToggleHidden)
			r.Post("/import", prefsHandler.ImportOPML)
			r.Get("/export", prefsHandler.ExportOPML)
		})

		// カテゴリ
		r.Route("/api/categories", func(r chi.Router) {
			r.Post("/", prefsHandler.AddCategory)
			r.Put("/{name}", prefsHandler.EditCategory)
			r.Delete("/{name}", prefsHandler.RemoveCategory)
		})

		// 保存記事
		r.Route("/api/saved", func(r chi.Router) {
			r.Get("/", savedHandler.ListSaved)
			r.Post("/", savedHandler.ToggleSave)
			r.Post("/{id}/public", savedHandler.TogglePublic)
		})

		// 公開フィード・カテゴリ・記事
		r.Route("/api/public", func(r chi.Router) {
			r.Get("/feeds", publicHandler.ListFeeds)
			r.Get("/buckets", publicHandler.ListBuckets)
			r.Get("/items", publicHandler.ListItems)
		})

		// ユーザー管理
		r.Route("/api/users", func(r chi.Router) {
			r.Get("/me", userHandler.Me)
			r.Delete("/me", userHandler.Withdraw)
			r.Post("/logout", userHandler.Logout)
		})
	})

	return r
}

// healthHandler はDB疎通を確認するヘルスチェックハンドラーを返す。
// GET /health
func healthHandler(health HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if health != nil {
			ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
			defer cancel()
			if err := health.PingContext(ctx); err != nil {
				slog.Error("health check failed", slog.String("error", err.Error()))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}
}
