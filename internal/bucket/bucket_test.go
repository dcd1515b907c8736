package bucket

import (
	"testing"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
)

// 現地時間の午後に固定（日付境界の扱いを明確にするため）
var now = time.Date(2025, 11, 10, 15, 0, 0, 0, time.Local)

func at(t time.Time) model.Article {
	return model.Article{Link: "https://x/" + t.Format("150405"), PublishedAt: t}
}

func TestBucketizePartition(t *testing.T) {
	articles := []model.Article{
		at(now.Add(-30 * time.Minute)),    // Latest
		at(now.Add(-2 * time.Hour)),       // Latest
		at(now.Add(-5 * time.Hour)),       // Earlier Today (10:00)
		at(now.Add(-24 * time.Hour)),      // Yesterday
		at(now.AddDate(0, 0, -3)),         // 窓の外 → 除外
	}

	groups := Bucketize(articles, now)

	if len(groups) != 3 {
		t.Fatalf("3バケットを返すべき: %d", len(groups))
	}
	if groups[0].Label != LabelLatest || len(groups[0].Articles) != 2 {
		t.Errorf("Latest: %s %d件", groups[0].Label, len(groups[0].Articles))
	}
	if groups[1].Label != LabelEarlierToday || len(groups[1].Articles) != 1 {
		t.Errorf("Earlier Today: %s %d件", groups[1].Label, len(groups[1].Articles))
	}
	if groups[2].Label != LabelYesterday || len(groups[2].Articles) != 1 {
		t.Errorf("Yesterday: %s %d件", groups[2].Label, len(groups[2].Articles))
	}
}

func TestBucketizePartitionCompleteness(t *testing.T) {
	// 窓内の記事はちょうど1つのバケットに属し、合計が窓内件数と一致する
	articles := []model.Article{
		at(now.Add(-time.Minute)),
		at(now.Add(-time.Hour)),
		at(now.Add(-4 * time.Hour)),
		at(now.Add(-14 * time.Hour)),  // 前日01:00 → Yesterday
		at(now.Add(-26 * time.Hour)),  // 前日13:00 → Yesterday
		at(now.AddDate(0, 0, -2)),     // 除外
	}

	groups := Bucketize(articles, now)

	seen := make(map[string]int)
	total := 0
	for _, g := range groups {
		for _, a := range g.Articles {
			seen[a.Link]++
			total++
		}
	}

	if total != 5 {
		t.Errorf("窓内の5件が分配されるべき: %d", total)
	}
	for link, n := range seen {
		if n > 1 {
			t.Errorf("記事が複数バケットに出現: %s (%d回)", link, n)
		}
	}
}

func TestBucketizeThreeHoursAgoButYesterday(t *testing.T) {
	// 深夜01:00: 3時間以内でも前日の記事はLatestに入れない
	midnight := time.Date(2025, 11, 10, 1, 0, 0, 0, time.Local)
	a := at(midnight.Add(-2 * time.Hour)) // 前日23:00

	groups := Bucketize([]model.Article{a}, midnight)

	if len(groups) != 1 || groups[0].Label != LabelYesterday {
		t.Errorf("前日の記事はYesterdayに入るべき: %+v", groups)
	}
}

func TestBucketizeOmitsEmptyBuckets(t *testing.T) {
	groups := Bucketize([]model.Article{at(now.Add(-10 * time.Minute))}, now)

	if len(groups) != 1 {
		t.Fatalf("空バケットは省くべき: %d", len(groups))
	}
	if groups[0].Label != LabelLatest {
		t.Errorf("Latestのみが残るべき: %s", groups[0].Label)
	}
}

func TestBucketizeEmptyInput(t *testing.T) {
	if groups := Bucketize(nil, now); len(groups) != 0 {
		t.Errorf("空入力は空出力: %v", groups)
	}
}

func TestBucketizeUnknownDateTreatedAsNow(t *testing.T) {
	a := model.Article{Link: "https://x/unknown", DateUnknown: true}

	groups := Bucketize([]model.Article{a}, now)

	if len(groups) != 1 || groups[0].Label != LabelLatest {
		t.Errorf("日付不明の記事は現在として扱いLatestへ: %+v", groups)
	}
}

func TestBucketizePreservesInputOrder(t *testing.T) {
	first := at(now.Add(-time.Hour))
	second := model.Article{Link: "https://x/second", PublishedAt: now.Add(-time.Hour).Add(-time.Second)}

	groups := Bucketize([]model.Article{first, second}, now)

	if groups[0].Articles[0].Link != first.Link || groups[0].Articles[1].Link != second.Link {
		t.Error("バケット内の順序は入力順を保持すべき")
	}

	// 繰り返しても同じ相対順序（安定タイブレーク）
	again := Bucketize([]model.Article{first, second}, now)
	if again[0].Articles[0].Link != first.Link {
		t.Error("繰り返し実行でも同一順序であるべき")
	}
}
