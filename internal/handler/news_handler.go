package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/newsdesk/internal/bucket"
	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/pipeline"
)

// AggregatorInterface はニュースハンドラーが必要とする集約サービスのインターフェース。
type AggregatorInterface interface {
	// Run は指定国の集約を実行し、表示対象の記事集合を返す。
	Run(ctx context.Context, country string, force bool) (*pipeline.Result, error)
}

// TranslatorInterface はタイトル翻訳のインターフェース。
type TranslatorInterface interface {
	// TranslateBatch は複数テキストを対象言語へ翻訳する。失敗分は原文のまま返る。
	TranslateBatch(ctx context.Context, texts []string, targetLang string) []string
}

// ReadTrackerInterface は開封済みリンク照会のインターフェース。
type ReadTrackerInterface interface {
	OpenedSet(ctx context.Context, links []string) (map[string]bool, error)
}

// NewsHandler はニュース取得のHTTPハンドラー。
type NewsHandler struct {
	aggregator AggregatorInterface
	translator TranslatorInterface
	tracker    ReadTrackerInterface
	logger     *slog.Logger
}

// NewNewsHandler はNewsHandlerを生成する。
// translatorとtrackerはnil許容（無効化時は素通し）。
func NewNewsHandler(aggregator AggregatorInterface, translator TranslatorInterface, tracker ReadTrackerInterface, logger *slog.Logger) *NewsHandler {
	return &NewsHandler{
		aggregator: aggregator,
		translator: translator,
		tracker:    tracker,
		logger:     logger,
	}
}

// newsResponse はニュース取得APIのレスポンス。
type newsResponse struct {
	Country   string         `json:"country"`
	Status    string         `json:"status"`
	FetchedAt *time.Time     `json:"fetched_at,omitempty"`
	Groups    []bucket.Group `json:"groups"`
}

// GetNews は国別のニュースを時間窓バケットにまとめて返す。
// GET /api/news/{country}?force=1&translate=en
func (h *NewsHandler) GetNews(w http.ResponseWriter, r *http.Request) {
	country := chi.URLParam(r, "country")
	force := r.URL.Query().Get("force") == "1" || r.URL.Query().Get("force") == "true"
	targetLang := r.URL.Query().Get("translate")

	result, err := h.aggregator.Run(r.Context(), country, force)
	if err != nil {
		switch {
		case errors.Is(err, model.ErrUnknownCountry):
			writeAPIError(w, http.StatusNotFound, "UNKNOWN_COUNTRY", "指定された国は設定されていません。")
		case errors.Is(err, model.ErrNoArticles):
			writeAPIError(w, http.StatusServiceUnavailable, "NO_ARTICLES", "記事を取得できず、保存済みデータもありません。")
		default:
			h.logger.Error("ニュース取得に失敗しました",
				slog.String("country", country),
				slog.String("error", err.Error()),
			)
			writeAPIError(w, http.StatusInternalServerError, "INTERNAL", "内部エラーが発生しました。")
		}
		return
	}

	articles := result.Articles
	if targetLang != "" && h.translator != nil {
		articles = h.translateTitles(r.Context(), articles, targetLang)
	}
	articles = h.annotateRead(r.Context(), articles)

	resp := newsResponse{
		Country: result.Country,
		Status:  string(result.Status),
		Groups:  bucket.Bucketize(articles, time.Now()),
	}
	if !result.FetchedAt.IsZero() {
		resp.FetchedAt = &result.FetchedAt
	}
	if resp.Groups == nil {
		resp.Groups = []bucket.Group{}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// translateTitles は表示対象タイトルを一括翻訳して差し替える。
func (h *NewsHandler) translateTitles(ctx context.Context, articles []model.Article, targetLang string) []model.Article {
	titles := make([]string, len(articles))
	for i, a := range articles {
		titles[i] = a.Title
	}

	translated := h.translator.TranslateBatch(ctx, titles, targetLang)

	out := make([]model.Article, len(articles))
	copy(out, articles)
	for i := range out {
		if i < len(translated) && translated[i] != "" {
			out[i].Title = translated[i]
		}
	}
	return out
}

// annotateRead は開封済みリンク集合を照会してReadフラグを付与する。
// 照会失敗は全件未読として扱い、表示を妨げない。
func (h *NewsHandler) annotateRead(ctx context.Context, articles []model.Article) []model.Article {
	if h.tracker == nil || len(articles) == 0 {
		return articles
	}

	links := make([]string, len(articles))
	for i, a := range articles {
		links[i] = a.Link
	}

	opened, err := h.tracker.OpenedSet(ctx, links)
	if err != nil {
		h.logger.Warn("開封済みリンクの照会に失敗しました",
			slog.String("error", err.Error()),
		)
		return articles
	}

	out := make([]model.Article, len(articles))
	copy(out, articles)
	for i := range out {
		out[i].Read = opened[out[i].Link]
	}
	return out
}
