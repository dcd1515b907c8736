package store

import (
	"context"
	"testing"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
)

var (
	day1 = model.Day("2025-11-10")
	day2 = model.Day("2025-11-09")
	old  = model.Day("2025-11-07")
)

func art(link, title string) model.Article {
	return model.Article{
		Title:        title,
		Link:         link,
		PublishedAt:  time.Date(2025, 11, 10, 12, 0, 0, 0, time.UTC),
		ThumbnailURL: model.FallbackThumbnail,
	}
}

func TestMergeDeduplicatesByLink(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	added, err := s.Merge(ctx, day1, "hungary", []model.Article{
		art("https://x/1", "első"),
		art("https://x/2", "második"),
		art("https://x/1", "重複"),
	})
	if err != nil {
		t.Fatalf("Merge失敗: %v", err)
	}
	if added != 2 {
		t.Errorf("重複リンクは1件として数えるべき: added=%d", added)
	}

	stored, _ := s.Load(ctx, day1, "hungary")
	if len(stored) != 2 {
		t.Errorf("リンクごとに1件のみ保存すべき: %d件", len(stored))
	}
}

func TestMergeFirstSeenWins(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Merge(ctx, day1, "hungary", []model.Article{art("https://x/1", "T1のタイトル")})
	s.Merge(ctx, day1, "hungary", []model.Article{art("https://x/1", "T2の別タイトル")})

	stored, _ := s.Load(ctx, day1, "hungary")
	if len(stored) != 1 {
		t.Fatalf("1件のみ保存すべき: %d件", len(stored))
	}
	if stored[0].Title != "T1のタイトル" {
		t.Errorf("最初に観測したコピーが勝つべき: %q", stored[0].Title)
	}
}

func TestMergeIdempotent(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	incoming := []model.Article{art("https://x/1", "a"), art("https://x/2", "b")}

	s.Merge(ctx, day1, "hungary", incoming)
	first, _ := s.Load(ctx, day1, "hungary")

	added, _ := s.Merge(ctx, day1, "hungary", incoming)
	second, _ := s.Load(ctx, day1, "hungary")

	if added != 0 {
		t.Errorf("2回目のマージは何も追加すべきでない: added=%d", added)
	}
	if len(first) != len(second) {
		t.Errorf("merge(merge(E,I),I) == merge(E,I) であるべき: %d != %d", len(first), len(second))
	}
}

func TestMergeSkipsEmptyLinks(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	added, _ := s.Merge(ctx, day1, "hungary", []model.Article{
		{Title: "リンクなし"},
		art("https://x/1", "正常"),
	})
	if added != 1 {
		t.Errorf("空リンクの記事は保存すべきでない: added=%d", added)
	}
}

func TestMergeIsolatesCountriesAndDays(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Merge(ctx, day1, "hungary", []model.Article{art("https://x/1", "hu")})
	s.Merge(ctx, day1, "croatia", []model.Article{art("https://x/1", "hr")})
	s.Merge(ctx, day2, "hungary", []model.Article{art("https://x/1", "hu-yesterday")})

	hu, _ := s.Load(ctx, day1, "hungary")
	hr, _ := s.Load(ctx, day1, "croatia")
	huY, _ := s.Load(ctx, day2, "hungary")

	if len(hu) != 1 || len(hr) != 1 || len(huY) != 1 {
		t.Errorf("国・日ごとに独立して保存すべき: %d/%d/%d", len(hu), len(hr), len(huY))
	}
	if hr[0].Title != "hr" {
		t.Errorf("国をまたいだ重複排除はすべきでない: %q", hr[0].Title)
	}
}

func TestLoadReturnsCopy(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Merge(ctx, day1, "hungary", []model.Article{art("https://x/1", "original")})

	got, _ := s.Load(ctx, day1, "hungary")
	got[0].Title = "改変"

	reloaded, _ := s.Load(ctx, day1, "hungary")
	if reloaded[0].Title != "original" {
		t.Error("Loadは内部コレクションのコピーを返すべき")
	}
}

func TestEvictExpired(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	s.Merge(ctx, day1, "hungary", []model.Article{art("https://x/1", "today")})
	s.Merge(ctx, day2, "hungary", []model.Article{art("https://x/2", "yesterday")})
	s.Merge(ctx, old, "hungary", []model.Article{art("https://x/3", "three days old")})

	if err := s.EvictExpired(ctx, []model.Day{day1, day2}); err != nil {
		t.Fatalf("EvictExpired失敗: %v", err)
	}

	today, _ := s.Load(ctx, day1, "hungary")
	yesterday, _ := s.Load(ctx, day2, "hungary")
	evicted, _ := s.Load(ctx, old, "hungary")

	if len(today) != 1 || len(yesterday) != 1 {
		t.Error("保持集合内の日アーカイブは残すべき")
	}
	if len(evicted) != 0 {
		t.Error("保持集合外の日アーカイブは削除すべき")
	}
}

func TestLastFetchedAt(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()

	got, err := s.LastFetchedAt(ctx, "hungary")
	if err != nil {
		t.Fatalf("LastFetchedAt失敗: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("未記録の国はゼロ値を返すべき: %v", got)
	}

	at := time.Date(2025, 11, 10, 14, 30, 0, 0, time.UTC)
	s.SetLastFetchedAt(ctx, "hungary", at)

	got, _ = s.LastFetchedAt(ctx, "hungary")
	if !got.Equal(at) {
		t.Errorf("記録した時刻を返すべき: %v", got)
	}

	other, _ := s.LastFetchedAt(ctx, "croatia")
	if !other.IsZero() {
		t.Error("他国の記録に影響すべきでない")
	}
}
