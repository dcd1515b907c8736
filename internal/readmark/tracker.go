// Package readmark はユーザーが開いた記事リンクのトラッキングを提供する。
// 開封済み集合は日や国から独立したフラットなリンク文字列の集合として保存する。
package readmark

import (
	"context"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
)

// openedSetKey は開封済みリンク集合のRedisキー。
const openedSetKey = "newsdesk:opened_links"

// Tracker は開封済みリンクの記録と照会のインターフェース。
type Tracker interface {
	// MarkOpened はリンクを開封済み集合へ追加する。重複追加は無害。
	MarkOpened(ctx context.Context, link string) error

	// OpenedSet は与えたリンク群のうち開封済みのものをtrueで返す。
	OpenedSet(ctx context.Context, links []string) (map[string]bool, error)
}

// RedisTracker はRedisのSET構造を使用したTrackerの実装。
type RedisTracker struct {
	client *redis.Client
}

// NewRedisTracker はRedisTrackerを生成する。
func NewRedisTracker(client *redis.Client) *RedisTracker {
	return &RedisTracker{client: client}
}

// MarkOpened はSADDでリンクを集合へ追加する。
func (t *RedisTracker) MarkOpened(ctx context.Context, link string) error {
	if link == "" {
		return nil
	}
	if err := t.client.SAdd(ctx, openedSetKey, link).Err(); err != nil {
		return fmt.Errorf("開封済みリンクの記録に失敗しました: %w", err)
	}
	return nil
}

// OpenedSet はSMISMEMBERで一括照会する。
func (t *RedisTracker) OpenedSet(ctx context.Context, links []string) (map[string]bool, error) {
	result := make(map[string]bool, len(links))
	if len(links) == 0 {
		return result, nil
	}

	members := make([]interface{}, len(links))
	for i, l := range links {
		members[i] = l
	}

	flags, err := t.client.SMIsMember(ctx, openedSetKey, members...).Result()
	if err != nil {
		return nil, fmt.Errorf("開封済みリンクの照会に失敗しました: %w", err)
	}
	for i, l := range links {
		result[l] = flags[i]
	}
	return result, nil
}

// MemoryTracker はTrackerのインメモリ実装。
// テストおよびREDIS_ADDR未設定での起動時に使用する。
type MemoryTracker struct {
	mu     sync.RWMutex
	opened map[string]struct{}
}

// NewMemoryTracker はMemoryTrackerを生成する。
func NewMemoryTracker() *MemoryTracker {
	return &MemoryTracker{opened: make(map[string]struct{})}
}

// MarkOpened はリンクを集合へ追加する。
func (t *MemoryTracker) MarkOpened(_ context.Context, link string) error {
	if link == "" {
		return nil
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.opened[link] = struct{}{}
	return nil
}

// OpenedSet は与えたリンク群の開封状態を返す。
func (t *MemoryTracker) OpenedSet(_ context.Context, links []string) (map[string]bool, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	result := make(map[string]bool, len(links))
	for _, l := range links {
		_, ok := t.opened[l]
		result[l] = ok
	}
	return result, nil
}
