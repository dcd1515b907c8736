package store

import (
	"context"
	"sync"
	"time"

	"github.com/hitoshi/newsdesk/internal/model"
)

// archiveKey は日アーカイブ内の国別コレクションを特定するキー。
type archiveKey struct {
	day     model.Day
	country string
}

// MemoryStore はArticleStoreのインメモリ実装。
// テストおよびDATABASE_URL未設定での起動時に使用する。
// プロセス終了で内容は失われる。
type MemoryStore struct {
	mu          sync.RWMutex
	archives    map[archiveKey][]model.Article
	lastFetched map[string]time.Time
}

// NewMemoryStore はMemoryStoreの新しいインスタンスを生成する。
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		archives:    make(map[archiveKey][]model.Article),
		lastFetched: make(map[string]time.Time),
	}
}

// Load は指定日・指定国の保存済み記事のコピーを返す。
func (s *MemoryStore) Load(_ context.Context, day model.Day, country string) ([]model.Article, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stored := s.archives[archiveKey{day: day, country: country}]
	out := make([]model.Article, len(stored))
	copy(out, stored)
	return out, nil
}

// Merge はリンク同一性による和集合マージを行う。最初に観測したコピーが勝つ。
func (s *MemoryStore) Merge(_ context.Context, day model.Day, country string, incoming []model.Article) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := archiveKey{day: day, country: country}
	existing := s.archives[key]

	seen := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		seen[a.Link] = struct{}{}
	}

	added := 0
	for _, a := range incoming {
		if a.Link == "" {
			continue
		}
		if _, dup := seen[a.Link]; dup {
			continue
		}
		seen[a.Link] = struct{}{}
		existing = append(existing, a)
		added++
	}

	s.archives[key] = existing
	return added, nil
}

// EvictExpired は保持集合に含まれない日キーのアーカイブを削除する。
func (s *MemoryStore) EvictExpired(_ context.Context, retained []model.Day) error {
	keep := make(map[model.Day]struct{}, len(retained))
	for _, d := range retained {
		keep[d] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.archives {
		if _, ok := keep[key.day]; !ok {
			delete(s.archives, key)
		}
	}
	return nil
}

// LastFetchedAt は国ごとの最終フェッチ成功時刻を返す。
func (s *MemoryStore) LastFetchedAt(_ context.Context, country string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.lastFetched[country], nil
}

// SetLastFetchedAt は国ごとの最終フェッチ成功時刻を記録する。
func (s *MemoryStore) SetLastFetchedAt(_ context.Context, country string, t time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastFetched[country] = t
	return nil
}
