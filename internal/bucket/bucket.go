// Package bucket はソート済み記事集合の表示用時間窓グルーピングを提供する。
// 入力と現在時刻のみから決まる純粋関数であり、状態も副作用も持たない。
package bucket

import (
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
)

// ラベルは外部レンダラーがそのまま見出しに使う表示文字列。
const (
	LabelLatest       = "Latest"
	LabelEarlierToday = "Earlier Today"
	LabelYesterday    = "Yesterday"
)

// latestWindow は「Latest」バケットの時間窓。
const latestWindow = 3 * time.Hour

// Group は1つの表示バケットを表す。
type Group struct {
	Label    string          `json:"label"`
	Articles []model.Article `json:"articles"`
}

// Bucketize は記事集合を重複のない表示バケットへ分割する。
// 優先順位: Latest（3時間以内かつ今日）、Earlier Today（今日だがそれより古い）、
// Yesterday（昨日のカレンダー日付）。空のバケットは出力から省く。
// 保持窓（今日・昨日）の外にある記事は全バケットから除外される。
// 入力の順序はバケット内でそのまま保持される。
func Bucketize(articles []model.Article, now time.Time) []Group {
	today := model.DayOf(now)
	yesterday := model.DayOf(now.AddDate(0, 0, -1))

	var latest, earlier, prior []model.Article
	for _, a := range articles {
		ts := effectiveTime(a, now)
		day := model.DayOf(ts)

		switch {
		case day == today && now.Sub(ts) < latestWindow:
			latest = append(latest, a)
		case day == today:
			earlier = append(earlier, a)
		case day == yesterday:
			prior = append(prior, a)
		}
	}

	var groups []Group
	for _, g := range []Group{
		{Label: LabelLatest, Articles: latest},
		{Label: LabelEarlierToday, Articles: earlier},
		{Label: LabelYesterday, Articles: prior},
	} {
		if len(g.Articles) > 0 {
			groups = append(groups, g)
		}
	}
	return groups
}

// effectiveTime は比較に使う時刻を返す。
// 日付不明の記事は「現在」として扱う（新着を黙って落とさないため）。
func effectiveTime(a model.Article, now time.Time) time.Time {
	if a.DateUnknown && a.PublishedAt.IsZero() {
		return now
	}
	return a.PublishedAt
}
