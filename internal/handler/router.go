package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdesk/internal/config"
	"github.com/hitoshi/newsdesk/internal/middleware"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	Logger            *slog.Logger

	// サービス
	Feeds      *config.CountryFeedSet
	Aggregator AggregatorInterface
	Translator TranslatorInterface
	ReadMarker ReadMarkerInterface
	Tracker    ReadTrackerInterface

	// Prometheusスクレイプ用ハンドラー（nilの場合は公開しない）
	Metrics http.Handler

	// Pinger はデータベースの疎通確認。nilの場合は生存確認のみを行う
	// （インメモリストア起動時はデータベースが存在しないため）。
	Pinger func(ctx context.Context) error
}

// apiErrorResponse は統一エラーフォーマットのレスポンス。
type apiErrorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// writeAPIError は統一フォーマットのエラーレスポンスを書き込む。
func writeAPIError(w http.ResponseWriter, status int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(apiErrorResponse{Code: code, Message: message})
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → Logging → CORS → RateLimit(General)
//
// ヘルスチェック（/healthz）はレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware(deps.Logger))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger))
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	newsHandler := NewNewsHandler(deps.Aggregator, deps.Translator, deps.Tracker, deps.Logger)
	readHandler := NewReadHandler(deps.ReadMarker, deps.Logger)

	// ヘルスチェック。データベース接続がある場合は疎通確認も行う
	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		if deps.Pinger != nil {
			if err := deps.Pinger(req.Context()); err != nil {
				deps.Logger.Error("ヘルスチェックのデータベース疎通確認に失敗しました",
					slog.String("error", err.Error()),
				)
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]string{"status": "unavailable"})
				return
			}
		}
		json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})

	// Prometheusスクレイプ（レート制限の外）
	if deps.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	r.Group(func(r chi.Router) {
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// 国リスト
		r.Get("/api/countries", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string][]string{"countries": deps.Feeds.Countries()})
		})

		// ニュース取得（強制リフレッシュには専用レート制限を追加）
		r.With(deps.RateLimiter.RefreshMiddleware()).Get("/api/news/{country}", newsHandler.GetNews)

		// 開封済み記録
		r.Post("/api/read", readHandler.MarkRead)
	})

	return r
}
