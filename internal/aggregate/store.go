package aggregate

import (
	"sync"

	"github.com/hitoshi/policyfeed/internal/categorize"
	"github.com/hitoshi/policyfeed/internal/model"
)

// Store はユーザーごとの最新ストリームを保持する。
// 更新は世代番号で管理し、後から開始された更新が先に完了していれば古い更新の結果は破棄する。
// 更新の実行中に行われたカテゴリ変更と購読解除は保留し、その更新の結果を保存する時に適用し直す。
type Store struct {
	mu    sync.Mutex
	slots map[string]*slot
}

type slot struct {
	generation uint64
	items      []model.Item

	// Begin以降に適用された編集。Commit時に結果へ適用し直す。
	pendingCategories []model.Category
	hasCategories     bool
	removedSources    map[string]struct{}
}

func (sl *slot) resetPending() {
	sl.pendingCategories = nil
	sl.hasCategories = false
	sl.removedSources = nil
}

// NewStore は空のStoreを生成する。
func NewStore() *Store {
	return &Store{slots: make(map[string]*slot)}
}

func (s *Store) slot(userID string) *slot {
	sl, ok := s.slots[userID]
	if !ok {
		sl = &slot{}
		s.slots[userID] = sl
	}
	return sl
}

// Begin は新しい更新の世代番号を発行する。
func (s *Store) Begin(userID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(userID)
	sl.generation++
	sl.resetPending()
	return sl.generation
}

// Commit は世代番号が最新の場合に限り結果を保存し、保存したかどうかを返す。
// 保存時は以前の結果を完全に置き換え、Begin以降の購読解除とカテゴリ変更を適用し直す。
func (s *Store) Commit(userID string, generation uint64, items []model.Item) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl := s.slot(userID)
	if generation != sl.generation {
		return false
	}
	committed := withoutSources(items, sl.removedSources)
	if sl.hasCategories {
		committed = applyCategories(committed, sl.pendingCategories)
	}
	sl.items = committed
	sl.resetPending()
	return true
}

// Items は保存済みのストリームの複製を返す。
func (s *Store) Items(userID string) []model.Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[userID]
	if !ok {
		return []model.Item{}
	}
	return cloneItems(sl.items)
}

// Recategorize は保存済みのストリームに新しいカテゴリ定義を適用し直す。
func (s *Store) Recategorize(userID string, categories []model.Category) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[userID]
	if !ok {
		return
	}
	sl.pendingCategories = append([]model.Category(nil), categories...)
	sl.hasCategories = true
	sl.items = applyCategories(sl.items, categories)
}

// RemoveSource は指定した購読URL由来の記事を保存済みのストリームから取り除く。
func (s *Store) RemoveSource(userID, sourceURL string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sl, ok := s.slots[userID]
	if !ok {
		return
	}
	if sl.removedSources == nil {
		sl.removedSources = make(map[string]struct{})
	}
	sl.removedSources[sourceURL] = struct{}{}
	sl.items = withoutSources(sl.items, sl.removedSources)
}

// Clear はユーザーのストリームを破棄する。進行中の更新の結果も保存されない。
func (s *Store) Clear(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if sl, ok := s.slots[userID]; ok {
		sl.generation++
		sl.items = nil
		sl.resetPending()
	}
}

// applyCategories はカテゴリを付け直した複製を返す。カテゴリが空ならすべての記事のカテゴリを外す。
func applyCategories(items []model.Item, categories []model.Category) []model.Item {
	if len(categories) > 0 {
		return categorize.Categorize(items, categories)
	}
	cleared := cloneItems(items)
	for i := range cleared {
		cleared[i].Categories = []string{}
	}
	return cleared
}

func withoutSources(items []model.Item, removed map[string]struct{}) []model.Item {
	kept := make([]model.Item, 0, len(items))
	for _, item := range items {
		if _, ok := removed[item.SourceURL]; !ok {
			kept = append(kept, item)
		}
	}
	return kept
}

func cloneItems(items []model.Item) []model.Item {
	out := make([]model.Item, len(items))
	copy(out, items)
	return out
}
