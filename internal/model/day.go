package model

import "time"

// dayLayout は日キーのフォーマット。ローカルカレンダー日付で記録する。
const dayLayout = "2006-01-02"

// Day は日アーカイブのキーとなるカレンダー日付を表す。
type Day string

// DayOf は時刻tのローカルカレンダー日付に対応するDayを返す。
func DayOf(t time.Time) Day {
	return Day(t.Format(dayLayout))
}

// Time はDayをその日の0時0分（ローカル時刻）として返す。
// パース不能なキーの場合はゼロ値を返す。
func (d Day) Time() time.Time {
	t, err := time.ParseInLocation(dayLayout, string(d), time.Local)
	if err != nil {
		return time.Time{}
	}
	return t
}

// RetainedDays は現在時刻nowを基準に保持対象となる日キーの集合を返す。
// retentionDays=1なら今日のみ、2なら今日と昨日、となる。
func RetainedDays(now time.Time, retentionDays int) []Day {
	if retentionDays < 1 {
		retentionDays = 1
	}
	days := make([]Day, 0, retentionDays)
	for i := 0; i < retentionDays; i++ {
		days = append(days, DayOf(now.AddDate(0, 0, -i)))
	}
	return days
}
