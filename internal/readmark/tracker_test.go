package readmark

import (
	"context"
	"testing"
)

func TestMemoryTrackerMarkAndQuery(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	if err := tr.MarkOpened(ctx, "https://x/1"); err != nil {
		t.Fatalf("MarkOpened失敗: %v", err)
	}
	// 重複追加は無害
	if err := tr.MarkOpened(ctx, "https://x/1"); err != nil {
		t.Fatalf("重複MarkOpened失敗: %v", err)
	}

	got, err := tr.OpenedSet(ctx, []string{"https://x/1", "https://x/2"})
	if err != nil {
		t.Fatalf("OpenedSet失敗: %v", err)
	}
	if !got["https://x/1"] {
		t.Error("開封済みリンクはtrueであるべき")
	}
	if got["https://x/2"] {
		t.Error("未開封リンクはfalseであるべき")
	}
}

func TestMemoryTrackerIgnoresEmptyLink(t *testing.T) {
	tr := NewMemoryTracker()
	ctx := context.Background()

	if err := tr.MarkOpened(ctx, ""); err != nil {
		t.Fatalf("空リンクはエラーにすべきでない: %v", err)
	}

	got, _ := tr.OpenedSet(ctx, []string{""})
	if got[""] {
		t.Error("空リンクは記録すべきでない")
	}
}

func TestMemoryTrackerEmptyQuery(t *testing.T) {
	tr := NewMemoryTracker()
	got, err := tr.OpenedSet(context.Background(), nil)
	if err != nil {
		t.Fatalf("空照会はエラーにすべきでない: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("空照会は空マップを返すべき: %v", got)
	}
}
