// Package model はドメインモデルを定義する。
package model

import "time"

// FallbackThumbnail はサムネイルが抽出できなかった記事に割り当てる固定画像識別子。
const FallbackThumbnail = "TV_noise.jpg"

// Article は集約済みの記事を表す。生成後は不変として扱う。
// Linkが記事の同一性キーであり、同一国・同一日のコレクション内で一意となる。
type Article struct {
	Title        string    `json:"title"`
	Link         string    `json:"link"`
	PublishedAt  time.Time `json:"published_at"`
	DateUnknown  bool      `json:"date_unknown"`
	ThumbnailURL string    `json:"thumbnail_url"`
	Read         bool      `json:"read,omitempty"`
}

// RawArticle はパーサーが抽出した未正規化の記事データを表す。
// RawDateは正規化前の日付文字列（RFC 2822、ISO 8601、相対表記のいずれか、または空）。
type RawArticle struct {
	Title        string
	Link         string
	RawDate      string
	ThumbnailURL string
}

// FetchStatus はパイプライン実行結果の鮮度ステータスを表す。
type FetchStatus string

const (
	// StatusFresh はネットワークフェッチに成功し最新データを返したことを示す。
	StatusFresh FetchStatus = "fresh"
	// StatusCached はキャッシュが新鮮だったためネットワークアクセスを行わなかったことを示す。
	StatusCached FetchStatus = "cached"
	// StatusStale はフェッチに失敗し、保存済みデータを代わりに返したことを示す。
	StatusStale FetchStatus = "stale"
	// StatusFailed はフェッチに失敗し、保存済みデータも存在しなかったことを示す。
	StatusFailed FetchStatus = "failed"
)
