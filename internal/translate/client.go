// Package translate は記事タイトルの機械翻訳連携を提供する。
// 翻訳は表示対象の記事に対して遅延適用されるオプション機能であり、
// データパイプライン本体は翻訳の有無に関知しない。
package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// defaultEndpoint はGoogle翻訳の非公式gtxエンドポイント。
const defaultEndpoint = "https://translate.googleapis.com/translate_a/single"

// Client は翻訳APIのクライアント。
// 同一テキストの再翻訳を避けるインメモリキャッシュと、
// レート制限回避のためのリクエスト間隔制御を持つ。
// 失敗時は常に原文を返す（翻訳失敗が表示を妨げてはならない）。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	endpoint   string // テスト用にエンドポイントを差し替え可能
	limiter    *rate.Limiter

	mu    sync.Mutex
	cache map[string]string
}

// NewClient はClientの新しいインスタンスを生成する。
// intervalは連続するAPI呼び出しの最小間隔。
func NewClient(httpClient *http.Client, logger *slog.Logger, interval time.Duration) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		endpoint:   defaultEndpoint,
		limiter:    rate.NewLimiter(rate.Every(interval), 1),
		cache:      make(map[string]string),
	}
}

// Translate はテキストを対象言語へ翻訳する。
// キャッシュヒット時はAPIを呼ばない。API失敗・予期しないレスポンス形式の
// 場合は原文を返し、原文もキャッシュする（毎回失敗し直さない）。
func (c *Client) Translate(ctx context.Context, text, targetLang string) string {
	if text == "" {
		return ""
	}

	cacheKey := text + "|" + targetLang
	c.mu.Lock()
	if cached, ok := c.cache[cacheKey]; ok {
		c.mu.Unlock()
		return cached
	}
	c.mu.Unlock()

	translated, err := c.callAPI(ctx, text, targetLang)
	if err != nil {
		c.logger.Warn("翻訳に失敗したため原文を使用します",
			slog.String("target_lang", targetLang),
			slog.String("error", err.Error()),
		)
		translated = text
	}

	c.mu.Lock()
	c.cache[cacheKey] = translated
	c.mu.Unlock()

	return translated
}

// TranslateBatch は複数テキストを順に翻訳する。
// キャッシュ済みのテキストは間隔制御の対象にならない。
func (c *Client) TranslateBatch(ctx context.Context, texts []string, targetLang string) []string {
	results := make([]string, 0, len(texts))
	for _, text := range texts {
		results = append(results, c.Translate(ctx, text, targetLang))
	}
	return results
}

// callAPI は翻訳APIを1回呼び出す。レート制限のためlimiterで待機する。
func (c *Client) callAPI(ctx context.Context, text, targetLang string) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("レート制限待機が中断されました: %w", err)
	}

	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", "auto")
	q.Set("tl", targetLang)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("HTTPリクエストの作成に失敗しました: %w", err)
	}
	req.Header.Set("User-Agent", "Newsdesk/1.0 News Aggregator")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("翻訳APIの呼び出しに失敗しました: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("翻訳APIがステータス %d を返しました", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("レスポンスボディの読み取りに失敗しました: %w", err)
	}

	return extractTranslation(body)
}

// extractTranslation はgtxエンドポイントのネストした配列レスポンスから
// 翻訳テキストを取り出す。期待形式: [[["翻訳結果","原文",...],...],...]
func extractTranslation(body []byte) (string, error) {
	var data []json.RawMessage
	if err := json.Unmarshal(body, &data); err != nil || len(data) == 0 {
		return "", fmt.Errorf("レスポンスJSONのパースに失敗しました")
	}

	var segments [][]json.RawMessage
	if err := json.Unmarshal(data[0], &segments); err != nil || len(segments) == 0 {
		return "", fmt.Errorf("予期しないレスポンス形式です")
	}

	// 長文は複数セグメントに分割されるため連結する
	var out string
	for _, seg := range segments {
		if len(seg) == 0 {
			continue
		}
		var piece string
		if err := json.Unmarshal(seg[0], &piece); err != nil {
			return "", fmt.Errorf("翻訳セグメントのパースに失敗しました")
		}
		out += piece
	}

	if out == "" {
		return "", fmt.Errorf("翻訳結果が空です")
	}
	return out, nil
}
