package relay

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
)

// URLValidator はフェッチ対象URLの事前検証のインターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// MetricsRecorder はリレーフェッチのメトリクス記録のインターフェース。
type MetricsRecorder interface {
	RecordRelaySuccess(relay string)
	RecordRelayFailure(relay string)
	RecordRelayStatus(statusCode int)
	RecordFetchLatency(duration time.Duration)
}

// nopMetrics はメトリクス未設定時のフォールバック。
type nopMetrics struct{}

func (nopMetrics) RecordRelaySuccess(string)        {}
func (nopMetrics) RecordRelayFailure(string)        {}
func (nopMetrics) RecordRelayStatus(int)            {}
func (nopMetrics) RecordFetchLatency(time.Duration) {}

// Fetcher は設定されたリレー群を同時にレースさせ、最初に妥当な
// レスポンスを返したリレーを採用する。敗者の試行はコンテキスト
// キャンセルによりベストエフォートで打ち切られる。
type Fetcher struct {
	relays      []Relay
	validator   URLValidator
	client      *http.Client
	logger      *slog.Logger
	metrics     MetricsRecorder
	timeout     time.Duration
	maxBodySize int64
}

// NewFetcher はFetcherの新しいインスタンスを生成する。
// timeoutはリレー1試行あたりの時間予算。metricsがnilの場合は記録しない。
func NewFetcher(
	relays []Relay,
	validator URLValidator,
	client *http.Client,
	logger *slog.Logger,
	metrics MetricsRecorder,
	timeout time.Duration,
	maxBodySize int64,
) *Fetcher {
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &Fetcher{
		relays:      relays,
		validator:   validator,
		client:      client,
		logger:      logger,
		metrics:     metrics,
		timeout:     timeout,
		maxBodySize: maxBodySize,
	}
}

// Fetch はターゲットURLの本文をリレー経由で取得する。
// 全リレーが失敗した場合はmodel.ErrAllRelaysFailedを返す。
// これは例外的状況ではなく「データなし」の通常の結果であり、
// 呼び出し元はそのフィードの寄与を空として処理を継続する。
func (f *Fetcher) Fetch(ctx context.Context, target string) (string, error) {
	if err := f.validator.ValidateURL(target); err != nil {
		return "", fmt.Errorf("フェッチ対象URLの検証に失敗: %w", err)
	}

	start := time.Now()

	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	type attempt struct {
		relay string
		body  string
		err   error
	}
	// 敗者のゴルーチンがブロックせず終了できるよう全件分バッファする
	results := make(chan attempt, len(f.relays))

	for _, r := range f.relays {
		go func(r Relay) {
			body, err := f.tryRelay(raceCtx, r, target)
			results <- attempt{relay: r.Name, body: body, err: err}
		}(r)
	}

	for range f.relays {
		res := <-results
		if res.err != nil {
			f.metrics.RecordRelayFailure(res.relay)
			f.logger.Debug("リレーフェッチに失敗しました",
				slog.String("relay", res.relay),
				slog.String("url", target),
				slog.String("error", res.err.Error()),
			)
			continue
		}

		// 最初の妥当な成功を採用し、残りの試行を打ち切る
		cancel()
		f.metrics.RecordRelaySuccess(res.relay)
		f.metrics.RecordFetchLatency(time.Since(start))
		f.logger.Info("リレーフェッチに成功しました",
			slog.String("relay", res.relay),
			slog.String("url", target),
			slog.Int("body_bytes", len(res.body)),
			slog.Float64("duration_ms", float64(time.Since(start).Milliseconds())),
		)
		return res.body, nil
	}

	f.logger.Warn("全リレーのフェッチに失敗しました",
		slog.String("url", target),
		slog.Int("relay_count", len(f.relays)),
	)
	return "", model.ErrAllRelaysFailed
}

// tryRelay は1つのリレーでの取得を試みる。
// タイムアウト、非成功ステータス、不審な本文はいずれもエラーとして返し、
// レースから脱落させる。
func (f *Fetcher) tryRelay(ctx context.Context, r Relay, target string) (string, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, r.BuildURL(target, time.Now()), nil)
	if err != nil {
		return "", fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", "Newsdesk/1.0 News Aggregator")
	req.Header.Set("Cache-Control", "no-store")

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	f.metrics.RecordRelayStatus(resp.StatusCode)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("非成功ステータス: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.maxBodySize))
	if err != nil {
		return "", fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}

	if !plausibleBody(body) {
		return "", fmt.Errorf("期待フォーマットと不整合な本文（リレーのエラーページの可能性）")
	}

	return string(body), nil
}

// plausibleBody は本文がXML/HTML文書として妥当かを判定する。
// リレーはエラー時にもJSONやプレーンテキストを200で返すことがあるため、
// トリム後の先頭が'<'であることを要求する。
func plausibleBody(body []byte) bool {
	return strings.HasPrefix(strings.TrimSpace(string(body)), "<")
}
