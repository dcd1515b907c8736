// Package dates は不均一な公開日時表記を単一の比較可能な時刻軸へ正規化する。
// フィードはRFC 2822やISO 8601の絶対日時を返す一方、スクレイピング対象の
// サイトは「2 hrs ago」のような相対表記しか持たないため、両系統を統一する。
package dates

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// relativePattern は「N mins ago」「N hours ago」「N days ago」等の相対表記。
var relativePattern = regexp.MustCompile(`(?i)^(\d+)\s*(min|mins|minute|minutes|hr|hrs|hour|hours|day|days)\s+ago$`)

// justNowPattern は「just now」「now」等の直近表記。
var justNowPattern = regexp.MustCompile(`(?i)^(just\s+now|now|moments\s+ago)$`)

// Normalize は日付文字列を時刻へ正規化する。
// 相対表記はnowからの差分として解決し、絶対表記は標準的な日付パースを試みる。
// どちらにも該当しない場合はok=falseを返す（Unknown日付）。
// Unknownはエラーではなく明示的なセンチネルであり、呼び出し元が
// 「現在時刻として扱う」等の方針を決める。
func Normalize(raw string, now time.Time) (t time.Time, ok bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, false
	}

	if justNowPattern.MatchString(raw) {
		return now, true
	}

	if m := relativePattern.FindStringSubmatch(raw); m != nil {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return time.Time{}, false
		}
		var unit time.Duration
		switch strings.ToLower(m[2])[0] {
		case 'm':
			unit = time.Minute
		case 'h':
			unit = time.Hour
		case 'd':
			unit = 24 * time.Hour
		}
		return now.Add(-time.Duration(n) * unit), true
	}

	parsed, err := dateparse.ParseAny(raw)
	if err != nil {
		return time.Time{}, false
	}
	return parsed, true
}
