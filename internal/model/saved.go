package model

import "time"

// SavedItem はユーザーが保存した記事。IDは元記事のIDを引き継ぐ。
type SavedItem struct {
	Item
	UserID   string    `json:"userId"`
	SharedBy string    `json:"sharedBy"`
	SavedAt  time.Time `json:"savedAt"`
	IsPublic bool      `json:"isPublic"`
}

// ItemsOf は保存済み記事から記事部分を取り出す。
func ItemsOf(saved []SavedItem) []Item {
	items := make([]Item, len(saved))
	for i, s := range saved {
		items[i] = s.Item
	}
	return items
}
