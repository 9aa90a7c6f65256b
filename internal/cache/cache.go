// Package cache はシステムソースの取得結果を保持するLRUキャッシュを提供する。
package cache

import (
	"fmt"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/hitoshi/policyfeed/internal/model"
)

// entry はキャッシュデータと有効期限の組。
type entry struct {
	items     []model.Item
	expiresAt time.Time
}

// SourceCache はソース名をキーに記事一覧を保持する。期限切れのエントリは取得時に破棄する。
// 保存時と取得時にスライスを複製するため、呼び出し元の変更はキャッシュに影響しない。
type SourceCache struct {
	lru *lru.Cache[string, entry]
	ttl time.Duration
	now func() time.Time
}

// New は容量sizeと有効期間ttlのSourceCacheを生成する。
func New(size int, ttl time.Duration) (*SourceCache, error) {
	l, err := lru.New[string, entry](size)
	if err != nil {
		return nil, fmt.Errorf("failed to create source cache: %w", err)
	}
	return &SourceCache{lru: l, ttl: ttl, now: time.Now}, nil
}

// Get はソースの記事一覧を返す。存在しないか期限切れの場合はfalseを返す。
func (c *SourceCache) Get(name string) ([]model.Item, bool) {
	e, ok := c.lru.Get(name)
	if !ok {
		return nil, false
	}
	if c.now().After(e.expiresAt) {
		c.lru.Remove(name)
		return nil, false
	}
	return clone(e.items), true
}

// Set はソースの記事一覧を保存する。
func (c *SourceCache) Set(name string, items []model.Item) {
	c.lru.Add(name, entry{
		items:     clone(items),
		expiresAt: c.now().Add(c.ttl),
	})
}

// Delete はソースのエントリを削除する。
func (c *SourceCache) Delete(name string) {
	c.lru.Remove(name)
}

// Len は保持しているエントリ数を返す。期限切れで未破棄のものも含む。
func (c *SourceCache) Len() int {
	return c.lru.Len()
}

func clone(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	for i, it := range items {
		cats := make([]string, len(it.Categories))
		copy(cats, it.Categories)
		it.Categories = cats
		out[i] = it
	}
	return out
}
