package refresh

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
	"github.com/hitoshi/newsdesk/internal/pipeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(new(strings.Builder), nil))
}

// mockRefresher はCountryRefresherのモック。
type mockRefresher struct {
	runFunc func(ctx context.Context, country string, force bool) (*pipeline.Result, error)
}

func (m *mockRefresher) Run(ctx context.Context, country string, force bool) (*pipeline.Result, error) {
	return m.runFunc(ctx, country, force)
}

// TestRunOnce_RefreshesAllCountries は全設定国が更新されることを検証する。
func TestRunOnce_RefreshesAllCountries(t *testing.T) {
	var mu sync.Mutex
	refreshed := make(map[string]bool)

	refresher := &mockRefresher{runFunc: func(_ context.Context, country string, force bool) (*pipeline.Result, error) {
		if force {
			t.Error("バックグラウンド更新はforce指定すべきでない")
		}
		mu.Lock()
		refreshed[country] = true
		mu.Unlock()
		return &pipeline.Result{Country: country, Status: model.StatusFresh}, nil
	}}

	countries := []string{"hungary", "croatia", "slovenia"}
	s := NewScheduler(countries, refresher, testLogger(), 2)
	s.RunOnce(context.Background())

	for _, c := range countries {
		if !refreshed[c] {
			t.Errorf("%s が更新されていない", c)
		}
	}
}

// TestRunOnce_FailureDoesNotBlockOthers は1国の失敗が他国の更新を妨げないことを検証する。
func TestRunOnce_FailureDoesNotBlockOthers(t *testing.T) {
	var succeeded atomic.Int32

	refresher := &mockRefresher{runFunc: func(_ context.Context, country string, _ bool) (*pipeline.Result, error) {
		if country == "hungary" {
			return nil, errors.New("全フィード失敗")
		}
		succeeded.Add(1)
		return &pipeline.Result{Country: country, Status: model.StatusFresh}, nil
	}}

	s := NewScheduler([]string{"hungary", "croatia", "slovenia"}, refresher, testLogger(), 3)
	s.RunOnce(context.Background())

	if succeeded.Load() != 2 {
		t.Errorf("失敗国以外の2国は更新されるべき: %d", succeeded.Load())
	}
}

// TestRunOnce_RespectsMaxConcurrency は並列数が上限を超えないことを検証する。
func TestRunOnce_RespectsMaxConcurrency(t *testing.T) {
	const maxConcurrency = 2
	var current, peak atomic.Int32

	refresher := &mockRefresher{runFunc: func(_ context.Context, country string, _ bool) (*pipeline.Result, error) {
		n := current.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		current.Add(-1)
		return &pipeline.Result{Country: country, Status: model.StatusFresh}, nil
	}}

	s := NewScheduler([]string{"a", "b", "c", "d", "e"}, refresher, testLogger(), maxConcurrency)
	s.RunOnce(context.Background())

	if peak.Load() > maxConcurrency {
		t.Errorf("並列数が上限を超過: peak=%d, max=%d", peak.Load(), maxConcurrency)
	}
}

// TestStart_RunsImmediatelyAndStopsOnCancel は起動直後の実行とキャンセル停止を検証する。
func TestStart_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var runs atomic.Int32
	refresher := &mockRefresher{runFunc: func(_ context.Context, country string, _ bool) (*pipeline.Result, error) {
		runs.Add(1)
		return &pipeline.Result{Country: country, Status: model.StatusFresh}, nil
	}}

	s := NewScheduler([]string{"hungary"}, refresher, testLogger(), 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx, time.Hour)
		close(done)
	}()

	// 起動直後の1回目を待つ
	deadline := time.After(time.Second)
	for runs.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("起動直後に1回実行されるべき")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("キャンセル後に停止すべき")
	}
}

// TestNewScheduler_DefaultConcurrency は0以下の並列数でデフォルト値が使われることを検証する。
func TestNewScheduler_DefaultConcurrency(t *testing.T) {
	s := NewScheduler(nil, &mockRefresher{}, testLogger(), 0)
	if s.maxConcurrency != 3 {
		t.Errorf("maxConcurrency = %d, want 3", s.maxConcurrency)
	}
}
