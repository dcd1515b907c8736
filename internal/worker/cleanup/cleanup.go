// Package cleanup は日アーカイブの自動退避ジョブを提供する。
// 保持集合（今日・昨日）に含まれない日キーのアーカイブを
// 日次バッチで削除する。
package cleanup

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/store"
)

// CleanupJob は保持窓の外に出た日アーカイブの自動退避ジョブ。
// 日次実行のバッチジョブとして設計されており、冪等な削除処理を保証する。
type CleanupJob struct {
	store         store.ArticleStore
	logger        *slog.Logger
	RetentionDays int // アーカイブの保持日数（デフォルト: 2）

	// now はクロック注入ポイント。nilの場合はtime.Nowを使用する。
	now func() time.Time
}

// NewCleanupJob は新しいCleanupJobを生成する。
// デフォルトの保持日数は2日（今日と昨日）。
func NewCleanupJob(st store.ArticleStore, logger *slog.Logger) *CleanupJob {
	return &CleanupJob{
		store:         st,
		logger:        logger,
		RetentionDays: 2,
		now:           time.Now,
	}
}

// Run は保持集合に含まれない日アーカイブを退避する。
// 冪等: 削除対象がない場合でもエラーにならない。
func (j *CleanupJob) Run(ctx context.Context) error {
	start := time.Now()

	retained := model.RetainedDays(j.now(), j.RetentionDays)

	if err := j.store.EvictExpired(ctx, retained); err != nil {
		j.logger.Error("アーカイブ退避ジョブの実行に失敗しました",
			slog.String("error", err.Error()),
			slog.Int("retention_days", j.RetentionDays),
		)
		return fmt.Errorf("アーカイブ退避の実行に失敗: %w", err)
	}

	duration := time.Since(start)
	j.logger.Info("アーカイブ退避ジョブが完了しました",
		slog.Int("retention_days", j.RetentionDays),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)

	return nil
}

// Start は日次ティッカーで退避ジョブを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (j *CleanupJob) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	j.logger.Info("アーカイブ退避ジョブを開始しました",
		slog.Duration("interval", interval),
	)

	// 起動直後に1回実行
	if err := j.Run(ctx); err != nil {
		j.logger.Error("アーカイブ退避の初回実行に失敗しました",
			slog.String("error", err.Error()),
		)
	}

	for {
		select {
		case <-ctx.Done():
			j.logger.Info("アーカイブ退避ジョブを停止しました")
			return
		case <-ticker.C:
			if err := j.Run(ctx); err != nil {
				j.logger.Error("アーカイブ退避の実行に失敗しました",
					slog.String("error", err.Error()),
				)
			}
		}
	}
}
