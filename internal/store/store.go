// Package store は日・国ごとの記事コレクションの永続化を提供する。
// 永続媒体（PostgreSQL、テスト用インメモリ）は交換可能な実装詳細であり、
// マージ・退避のセマンティクスはインターフェース契約として固定する。
package store

import (
	"context"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
)

// ArticleStore は日アーカイブの唯一の所有者であり、唯一の変更者である。
// 全ての受け渡しは値（リストのコピー）で行い、内部コレクションへの
// 参照を外部に渡さない。
type ArticleStore interface {
	// Load は指定日・指定国の保存済み記事を返す。存在しない場合は空列。
	Load(ctx context.Context, day model.Day, country string) ([]model.Article, error)

	// Merge は取得した記事をリンク同一性で既存集合へ和集合マージする。
	// 既存エントリは決して上書きされない（最初に観測したコピーが勝つ）。
	// 冪等: 同じ入力を2回マージしても結果は1回のマージと同一。
	// 戻り値は新規に追加された件数。
	Merge(ctx context.Context, day model.Day, country string, incoming []model.Article) (added int, err error)

	// EvictExpired は保持集合に含まれない日キーの日アーカイブを全て削除する。
	EvictExpired(ctx context.Context, retained []model.Day) error

	// LastFetchedAt は国ごとの最終フェッチ成功時刻を返す。未記録の場合はゼロ値。
	LastFetchedAt(ctx context.Context, country string) (time.Time, error)

	// SetLastFetchedAt は国ごとの最終フェッチ成功時刻を記録する。
	SetLastFetchedAt(ctx context.Context, country string, t time.Time) error
}
