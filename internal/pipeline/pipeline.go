// Package pipeline はフィード集約のオーケストレーションを提供する。
// フェッチ→パース→正規化→マージ→ソートの一連の流れを制御し、
// 個々のフィード・リレーの失敗を局所的に吸収する。
package pipeline

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/hitoshi/newsdesk/internal/config"
	"github.com/hitoshi/newsdesk/internal/dates"
	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/store"
)

// BodyFetcher はリレー経由のフィード本文取得のインターフェース。
type BodyFetcher interface {
	Fetch(ctx context.Context, url string) (string, error)
}

// DocumentParser は「文書→RawArticle列」の契約。
// RSSパーサーとHTMLスクレイパーが同じ契約の別戦略として実装する。
type DocumentParser interface {
	Parse(body string) []model.RawArticle
}

// MetricsRecorder は集約パイプラインのメトリクス記録のインターフェース。
type MetricsRecorder interface {
	RecordFeedUnreachable(url string)
	RecordParseFailure(url string)
	RecordArticlesMerged(count int)
}

type nopMetrics struct{}

func (nopMetrics) RecordFeedUnreachable(string) {}
func (nopMetrics) RecordParseFailure(string)    {}
func (nopMetrics) RecordArticlesMerged(int)     {}

// Result は1回のパイプライン実行の結果を表す。
type Result struct {
	Country   string
	Status    model.FetchStatus
	FetchedAt time.Time
	Articles  []model.Article
}

// Deps はAggregatorの依存関係をまとめた構造体。
type Deps struct {
	Feeds   *config.CountryFeedSet
	Fetcher BodyFetcher
	Parsers map[config.SourceKind]DocumentParser
	Store   store.ArticleStore
	Logger  *slog.Logger
	Metrics MetricsRecorder

	RefreshInterval time.Duration
	RetentionDays   int
	MaxConcurrent   int

	// Now はクロック注入ポイント。nilの場合はtime.Nowを使用する。
	Now func() time.Time
}

// Aggregator は国単位の集約パイプラインを実行する。
// 同一国に対する重複実行は国ごとのミューテックスで直列化する。
// 元実装は重複実行を後勝ちのままレースさせていたが、非決定的な
// 最終状態を避けるため明示的に直列化へ改めている。
type Aggregator struct {
	deps Deps
	now  func() time.Time

	mu        sync.Mutex
	countryMu map[string]*sync.Mutex
}

// New はAggregatorの新しいインスタンスを生成する。
func New(deps Deps) *Aggregator {
	if deps.Metrics == nil {
		deps.Metrics = nopMetrics{}
	}
	if deps.MaxConcurrent <= 0 {
		deps.MaxConcurrent = 10
	}
	if deps.RetentionDays < 1 {
		deps.RetentionDays = 1
	}
	now := deps.Now
	if now == nil {
		now = time.Now
	}
	return &Aggregator{
		deps:      deps,
		now:       now,
		countryMu: make(map[string]*sync.Mutex),
	}
}

// Run は指定国の集約を実行し、表示対象の記事集合を返す。
// forceがfalseでキャッシュが新鮮な場合はネットワークアクセスを行わない。
// 全フィードが失敗してもキャッシュがあればStatusStaleで返し、
// キャッシュもない場合にのみmodel.ErrNoArticlesを返す。
func (a *Aggregator) Run(ctx context.Context, country string, force bool) (*Result, error) {
	feeds, ok := a.deps.Feeds.Sources(country)
	if !ok {
		return nil, model.ErrUnknownCountry
	}

	lock := a.lockFor(country)
	lock.Lock()
	defer lock.Unlock()

	now := a.now()
	today := model.DayOf(now)
	retained := model.RetainedDays(now, a.deps.RetentionDays)

	// 期限切れ日アーカイブの退避。失敗しても集約自体は継続する。
	if err := a.deps.Store.EvictExpired(ctx, retained); err != nil {
		a.deps.Logger.Warn("期限切れアーカイブの退避に失敗しました",
			slog.String("country", country),
			slog.String("error", err.Error()),
		)
	}

	existing := a.loadWindow(ctx, retained, country)

	lastFetched, err := a.deps.Store.LastFetchedAt(ctx, country)
	if err != nil {
		a.deps.Logger.Warn("最終フェッチ時刻の取得に失敗しました",
			slog.String("country", country),
			slog.String("error", err.Error()),
		)
	}

	// 鮮度判定: 強制でなくキャッシュが新鮮なら、ネットワークに触れず返す
	if !force && !lastFetched.IsZero() && now.Sub(lastFetched) < a.deps.RefreshInterval && len(existing) > 0 {
		a.deps.Logger.Info("キャッシュが新鮮なためフェッチをスキップします",
			slog.String("country", country),
			slog.Time("last_fetched", lastFetched),
		)
		return &Result{
			Country:   country,
			Status:    model.StatusCached,
			FetchedAt: lastFetched,
			Articles:  sortForDisplay(a.windowFilter(existing, retained, now), now),
		}, nil
	}

	fresh, anySucceeded := a.fetchAll(ctx, feeds, now)

	if !anySucceeded {
		if len(existing) == 0 {
			a.deps.Logger.Error("全フィードが失敗し、キャッシュも存在しません",
				slog.String("country", country),
				slog.Int("feed_count", len(feeds)),
			)
			return &Result{Country: country, Status: model.StatusFailed}, model.ErrNoArticles
		}
		a.deps.Logger.Warn("全フィードが失敗したため保存済みデータを返します",
			slog.String("country", country),
			slog.Int("cached_count", len(existing)),
		)
		return &Result{
			Country:   country,
			Status:    model.StatusStale,
			FetchedAt: lastFetched,
			Articles:  sortForDisplay(a.windowFilter(existing, retained, now), now),
		}, nil
	}

	// 保持窓の外に落ちる記事はマージ前に捨てる
	fresh = a.windowFilter(fresh, retained, now)

	// 既存集合（全保持日）に対する和集合: 既存リンクの記事は新規扱いしない
	seen := make(map[string]struct{}, len(existing))
	for _, e := range existing {
		seen[e.Link] = struct{}{}
	}
	var freshNew []model.Article
	for _, f := range fresh {
		if f.Link == "" {
			continue
		}
		if _, dup := seen[f.Link]; dup {
			continue
		}
		seen[f.Link] = struct{}{}
		freshNew = append(freshNew, f)
	}

	if _, err := a.deps.Store.Merge(ctx, today, country, freshNew); err != nil {
		a.deps.Logger.Error("記事のマージに失敗しました",
			slog.String("country", country),
			slog.String("error", err.Error()),
		)
	} else {
		a.deps.Metrics.RecordArticlesMerged(len(freshNew))
	}

	if err := a.deps.Store.SetLastFetchedAt(ctx, country, now); err != nil {
		a.deps.Logger.Warn("最終フェッチ時刻の記録に失敗しました",
			slog.String("country", country),
			slog.String("error", err.Error()),
		)
	}

	merged := append(existing, freshNew...)

	a.deps.Logger.Info("集約パイプラインが完了しました",
		slog.String("country", country),
		slog.Int("fresh_count", len(freshNew)),
		slog.Int("total_count", len(merged)),
	)

	return &Result{
		Country:   country,
		Status:    model.StatusFresh,
		FetchedAt: now,
		Articles:  sortForDisplay(merged, now),
	}, nil
}

// fetchAll は全フィードを並列にフェッチ・パース・正規化する。
// semaphoreパターンで最大並列数を制御する。結果は完了順ではなく
// 設定順で平坦化され、タイブレークの決定性を保証する。
// 戻り値の第2値は少なくとも1フィードが記事を供給したかを示す。
func (a *Aggregator) fetchAll(ctx context.Context, feeds []config.FeedSource, now time.Time) ([]model.Article, bool) {
	perFeed := make([][]model.RawArticle, len(feeds))

	sem := make(chan struct{}, a.deps.MaxConcurrent)
	var wg sync.WaitGroup

	for i, src := range feeds {
		wg.Add(1)
		sem <- struct{}{}

		go func(i int, src config.FeedSource) {
			defer wg.Done()
			defer func() { <-sem }()

			body, err := a.deps.Fetcher.Fetch(ctx, src.URL)
			if err != nil {
				a.deps.Metrics.RecordFeedUnreachable(src.URL)
				a.deps.Logger.Warn("フィードに到達できませんでした",
					slog.String("url", src.URL),
					slog.String("error", err.Error()),
				)
				return
			}

			parser, ok := a.deps.Parsers[src.Kind]
			if !ok {
				a.deps.Logger.Error("ソース種別に対応するパーサーがありません",
					slog.String("url", src.URL),
					slog.String("kind", string(src.Kind)),
				)
				return
			}

			raw := parser.Parse(body)
			if len(raw) == 0 {
				// パース失敗はそのURLのフィード到達不能と同等に扱う
				a.deps.Metrics.RecordParseFailure(src.URL)
				a.deps.Logger.Warn("フィードのパース結果が空でした",
					slog.String("url", src.URL),
				)
				return
			}

			perFeed[i] = raw
		}(i, src)
	}

	wg.Wait()

	// 設定順で平坦化し、発見順を固定してから日付を正規化する
	perturber := dates.NewPerturber()
	var articles []model.Article
	anySucceeded := false

	for _, raw := range perFeed {
		if len(raw) > 0 {
			anySucceeded = true
		}
		for _, r := range raw {
			link := strings.TrimSpace(r.Link)
			if link == "" {
				continue
			}

			article := model.Article{
				Title:        strings.TrimSpace(r.Title),
				Link:         link,
				ThumbnailURL: r.ThumbnailURL,
			}
			if article.ThumbnailURL == "" {
				article.ThumbnailURL = model.FallbackThumbnail
			}

			ts, ok := dates.Normalize(r.RawDate, now)
			if !ok {
				// 日付不明は「現在」として扱う（新着を黙って落とさないため）。
				// 不明マーカーは保持し、表示側が区別できるようにする。
				article.DateUnknown = true
				ts = now
			}
			article.PublishedAt = perturber.Apply(ts)

			articles = append(articles, article)
		}
	}

	return articles, anySucceeded
}

// loadWindow は保持窓の全日アーカイブを結合し、リンク同一性で重複を除く。
// 古い日のコピーを優先する（最初に観測したコピーが勝つ、の日またぎ版）。
func (a *Aggregator) loadWindow(ctx context.Context, retained []model.Day, country string) []model.Article {
	seen := make(map[string]struct{})
	var union []model.Article

	// retainedは新しい日→古い日の順なので、逆順に走査して古いコピーを先に採用する
	for i := len(retained) - 1; i >= 0; i-- {
		stored, err := a.deps.Store.Load(ctx, retained[i], country)
		if err != nil {
			a.deps.Logger.Warn("日アーカイブのロードに失敗しました",
				slog.String("day", string(retained[i])),
				slog.String("country", country),
				slog.String("error", err.Error()),
			)
			continue
		}
		for _, s := range stored {
			if _, dup := seen[s.Link]; dup {
				continue
			}
			seen[s.Link] = struct{}{}
			union = append(union, s)
		}
	}

	return union
}

// windowFilter は保持窓内の記事のみを残す。日付不明の記事は現在として扱い残す。
func (a *Aggregator) windowFilter(articles []model.Article, retained []model.Day, now time.Time) []model.Article {
	keep := make(map[model.Day]struct{}, len(retained))
	for _, d := range retained {
		keep[d] = struct{}{}
	}

	out := make([]model.Article, 0, len(articles))
	for _, a := range articles {
		if _, ok := keep[model.DayOf(effectiveTime(a, now))]; ok {
			out = append(out, a)
		}
	}
	return out
}

// effectiveTime はソート・保持窓判定に使う実効タイムスタンプを返す。
// 日付不明の記事は永続化ストアがタイムスタンプをNULLで返すため、
// ロード直後はゼロ値になっている。その場合も「現在」として扱う。
func effectiveTime(a model.Article, now time.Time) time.Time {
	if a.DateUnknown && a.PublishedAt.IsZero() {
		return now
	}
	return a.PublishedAt
}

// sortForDisplay は実効タイムスタンプ降順にソートする。
// 同時刻はリンクの辞書順で安定化する（保存済み記事は事前に
// 摂動済みのため、同時刻は通常発生しない）。
func sortForDisplay(articles []model.Article, now time.Time) []model.Article {
	out := make([]model.Article, len(articles))
	copy(out, articles)

	sort.SliceStable(out, func(i, j int) bool {
		ti, tj := effectiveTime(out[i], now), effectiveTime(out[j], now)
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return out[i].Link < out[j].Link
	})
	return out
}

// lockFor は国ごとの直列化ミューテックスを返す。
func (a *Aggregator) lockFor(country string) *sync.Mutex {
	a.mu.Lock()
	defer a.mu.Unlock()

	lock, ok := a.countryMu[country]
	if !ok {
		lock = &sync.Mutex{}
		a.countryMu[country] = lock
	}
	return lock
}
