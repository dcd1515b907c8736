package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/newsdesk/internal/model"
)

// PostgresStore はPostgreSQLを使用したArticleStoreの実装。
// (day, country, link)のUNIQUE制約とON CONFLICT DO NOTHINGにより、
// 最初に観測したコピーが勝つマージと冪等性をデータベース側で保証する。
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore はPostgresStoreを生成する。
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Load は指定日・指定国の保存済み記事を取得順で返す。
func (s *PostgresStore) Load(ctx context.Context, day model.Day, country string) ([]model.Article, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT title, link, published_at, date_unknown, thumbnail_url
		 FROM articles
		 WHERE day = $1 AND country = $2
		 ORDER BY fetched_at ASC, id ASC`,
		string(day), country,
	)
	if err != nil {
		return nil, fmt.Errorf("記事の取得に失敗しました: %w", err)
	}
	defer rows.Close()

	var articles []model.Article
	for rows.Next() {
		var a model.Article
		var publishedAt sql.NullTime
		if err := rows.Scan(&a.Title, &a.Link, &publishedAt, &a.DateUnknown, &a.ThumbnailURL); err != nil {
			return nil, fmt.Errorf("記事行のスキャンに失敗しました: %w", err)
		}
		if publishedAt.Valid {
			a.PublishedAt = publishedAt.Time
		}
		articles = append(articles, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("記事の走査に失敗しました: %w", err)
	}

	return articles, nil
}

// Merge は記事を和集合マージする。既存リンクへの挿入はON CONFLICTで
// 黙って無視されるため、上書きは発生せず再実行も安全。
func (s *PostgresStore) Merge(ctx context.Context, day model.Day, country string, incoming []model.Article) (int, error) {
	if len(incoming) == 0 {
		return 0, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("トランザクション開始に失敗しました: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	added := 0
	for _, a := range incoming {
		if a.Link == "" {
			continue
		}

		var publishedAt sql.NullTime
		if !a.DateUnknown {
			publishedAt = sql.NullTime{Time: a.PublishedAt, Valid: true}
		}

		result, err := tx.ExecContext(ctx,
			`INSERT INTO articles (id, day, country, link, title, published_at, date_unknown, thumbnail_url, fetched_at)
			 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			 ON CONFLICT (day, country, link) DO NOTHING`,
			uuid.New().String(), string(day), country, a.Link,
			a.Title, publishedAt, a.DateUnknown, a.ThumbnailURL, now,
		)
		if err != nil {
			return 0, fmt.Errorf("記事のマージに失敗しました: %w", err)
		}
		n, err := result.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("挿入件数の取得に失敗しました: %w", err)
		}
		added += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("トランザクションのコミットに失敗しました: %w", err)
	}

	return added, nil
}

// EvictExpired は保持集合に含まれない日キーの記事を全て削除する。
func (s *PostgresStore) EvictExpired(ctx context.Context, retained []model.Day) error {
	days := make([]string, 0, len(retained))
	for _, d := range retained {
		days = append(days, string(d))
	}

	_, err := s.db.ExecContext(ctx,
		`DELETE FROM articles WHERE day <> ALL($1)`,
		pq.Array(days),
	)
	if err != nil {
		return fmt.Errorf("期限切れアーカイブの削除に失敗しました: %w", err)
	}
	return nil
}

// LastFetchedAt は国ごとの最終フェッチ成功時刻を返す。未記録の場合はゼロ値。
func (s *PostgresStore) LastFetchedAt(ctx context.Context, country string) (time.Time, error) {
	var t time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT fetched_at FROM fetch_log WHERE country = $1`,
		country,
	).Scan(&t)
	if err == sql.ErrNoRows {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("最終フェッチ時刻の取得に失敗しました: %w", err)
	}
	return t, nil
}

// SetLastFetchedAt は国ごとの最終フェッチ成功時刻をUPSERTする。
func (s *PostgresStore) SetLastFetchedAt(ctx context.Context, country string, t time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO fetch_log (country, fetched_at) VALUES ($1, $2)
		 ON CONFLICT (country) DO UPDATE SET fetched_at = EXCLUDED.fetched_at`,
		country, t,
	)
	if err != nil {
		return fmt.Errorf("最終フェッチ時刻の記録に失敗しました: %w", err)
	}
	return nil
}
