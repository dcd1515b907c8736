package dates

import (
	"testing"
	"time"
)

var testNow = time.Date(2025, 11, 10, 15, 0, 0, 0, time.UTC)

func TestNormalizeAbsoluteDates(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{
			"RFC 2822形式",
			"Mon, 10 Nov 2025 12:30:00 +0000",
			time.Date(2025, 11, 10, 12, 30, 0, 0, time.UTC),
		},
		{
			"ISO 8601形式",
			"2025-11-10T12:30:00Z",
			time.Date(2025, 11, 10, 12, 30, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw, testNow)
			if !ok {
				t.Fatalf("Normalize(%q) はok=trueを返すべき", tt.raw)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Normalize(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeRelativeDates(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want time.Time
	}{
		{"N mins ago", "5 mins ago", testNow.Add(-5 * time.Minute)},
		{"N minutes ago", "30 minutes ago", testNow.Add(-30 * time.Minute)},
		{"N hrs ago", "2 hrs ago", testNow.Add(-2 * time.Hour)},
		{"N hours ago", "2 hours ago", testNow.Add(-2 * time.Hour)},
		{"単数形 1 hr ago", "1 hr ago", testNow.Add(-time.Hour)},
		{"N days ago", "3 days ago", testNow.Add(-72 * time.Hour)},
		{"just now", "just now", testNow},
		{"大文字混在", "2 Hours Ago", testNow.Add(-2 * time.Hour)},
		{"前後空白", "  4 hrs ago  ", testNow.Add(-4 * time.Hour)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Normalize(tt.raw, testNow)
			if !ok {
				t.Fatalf("Normalize(%q) はok=trueを返すべき", tt.raw)
			}
			if !got.Equal(tt.want) {
				t.Errorf("Normalize(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestNormalizeUnknown(t *testing.T) {
	tests := []string{
		"",
		"garbage",
		"soon",
		"yesterday-ish maybe",
	}

	for _, raw := range tests {
		if _, ok := Normalize(raw, testNow); ok {
			t.Errorf("Normalize(%q) はUnknown（ok=false）を返すべき", raw)
		}
	}
}

func TestPerturberResolvesCollisions(t *testing.T) {
	p := NewPerturber()
	base := testNow.Add(-2 * time.Hour)

	// 「2 hours ago」に正規化された記事が同一ランで3件
	first := p.Apply(base)
	second := p.Apply(base)
	third := p.Apply(base)

	if !first.Equal(base) {
		t.Errorf("初回は元の時刻を維持すべき: %v", first)
	}
	if !second.Equal(base.Add(-time.Second)) {
		t.Errorf("2件目は1秒過去へ: %v", second)
	}
	if !third.Equal(base.Add(-2 * time.Second)) {
		t.Errorf("3件目は2秒過去へ: %v", third)
	}
}

func TestPerturberSkipsOccupiedSlots(t *testing.T) {
	p := NewPerturber()
	base := testNow

	p.Apply(base)                  // base を占有
	p.Apply(base.Add(-time.Second)) // base-1s を占有

	// baseと衝突した記事は、base-1sも使用済みのためbase-2sへ
	got := p.Apply(base)
	want := base.Add(-2 * time.Second)
	if !got.Equal(want) {
		t.Errorf("占有済みスロットをスキップすべき: got %v, want %v", got, want)
	}
}

func TestPerturberDeterministic(t *testing.T) {
	base := testNow.Add(-time.Hour)

	run := func() []time.Time {
		p := NewPerturber()
		return []time.Time{p.Apply(base), p.Apply(base), p.Apply(base)}
	}

	a, b := run(), run()
	for i := range a {
		if !a[i].Equal(b[i]) {
			t.Errorf("繰り返し実行で同一の順序になるべき: run1[%d]=%v run2[%d]=%v", i, a[i], i, b[i])
		}
	}
}
