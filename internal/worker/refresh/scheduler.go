// Package refresh は国別ニュースのバックグラウンド更新処理を提供する。
// ティッカー駆動で全設定国の集約パイプラインを定期実行し、
// リクエスト到着前にキャッシュを温めておく。
package refresh

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/hitoshi/newsdesk/internal/pipeline"
)

// CountryRefresher は国単位の集約実行インターフェース。
type CountryRefresher interface {
	// Run は指定国の集約を実行する。
	Run(ctx context.Context, country string, force bool) (*pipeline.Result, error)
}

// Scheduler は国別更新のスケジューリングと並列制御を行う。
// 更新間隔のティッカーで全設定国を走査し、semaphoreパターンで
// 最大並列数を制御しながら集約を実行する。
type Scheduler struct {
	countries      []string
	refresher      CountryRefresher
	logger         *slog.Logger
	maxConcurrency int
}

// NewScheduler はSchedulerの新しいインスタンスを生成する。
// maxConcurrencyが0以下の場合はデフォルト値3を使用する。
func NewScheduler(
	countries []string,
	refresher CountryRefresher,
	logger *slog.Logger,
	maxConcurrency int,
) *Scheduler {
	if maxConcurrency <= 0 {
		maxConcurrency = 3
	}
	return &Scheduler{
		countries:      countries,
		refresher:      refresher,
		logger:         logger,
		maxConcurrency: maxConcurrency,
	}
}

// Start は更新間隔のティッカーでスケジューラを起動する。
// コンテキストがキャンセルされるまで実行を継続する。
func (s *Scheduler) Start(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info("更新スケジューラを開始しました",
		slog.Duration("interval", interval),
		slog.Int("country_count", len(s.countries)),
		slog.Int("max_concurrency", s.maxConcurrency),
	)

	// 起動直後に1回実行
	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("更新スケジューラを停止しました")
			return
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce は全設定国の集約を並列で1回実行する。
// semaphoreパターンで最大並列数を制御する。個々の国の失敗は
// 他の国の更新を妨げない。
func (s *Scheduler) RunOnce(ctx context.Context) {
	start := time.Now()

	sem := make(chan struct{}, s.maxConcurrency)
	var wg sync.WaitGroup

	for _, country := range s.countries {
		wg.Add(1)
		sem <- struct{}{} // semaphore取得（ブロック）

		go func(country string) {
			defer wg.Done()
			defer func() { <-sem }() // semaphore解放

			result, err := s.refresher.Run(ctx, country, false)
			if err != nil {
				s.logger.Error("国別更新に失敗しました",
					slog.String("country", country),
					slog.String("error", err.Error()),
				)
				return
			}
			s.logger.Info("国別更新が完了しました",
				slog.String("country", country),
				slog.String("status", string(result.Status)),
				slog.Int("article_count", len(result.Articles)),
			)
		}(country)
	}

	wg.Wait()

	duration := time.Since(start)
	s.logger.Info("更新サイクルが完了しました",
		slog.Int("country_count", len(s.countries)),
		slog.Float64("duration_ms", float64(duration.Milliseconds())),
	)
}
