// Package categorize はユーザー定義のキーワードカテゴリで記事を分類する。
package categorize

import (
	"strings"

	"github.com/hitoshi/policyfeed/internal/model"
)

// Categorize は各記事のカテゴリを一から計算し直した新しいスライスを返す。
// タイトルと説明文を連結した文字列に、いずれかのキーワードを含むカテゴリをすべて付与する。
// 大文字小文字は区別しない。カテゴリが空の場合は入力をそのまま返す。
func Categorize(items []model.Item, categories []model.Category) []model.Item {
	if len(categories) == 0 {
		return items
	}

	out := make([]model.Item, len(items))
	for i, item := range items {
		text := searchText(item)
		matched := make([]string, 0, len(categories))
		for _, cat := range categories {
			if matchesText(text, cat) {
				matched = append(matched, cat.Name)
			}
		}
		item.Categories = matched
		out[i] = item
	}
	return out
}

// Matches は記事がカテゴリのキーワードのいずれかを含むかを返す。
func Matches(item model.Item, cat model.Category) bool {
	return matchesText(searchText(item), cat)
}

func searchText(item model.Item) string {
	return strings.ToLower(item.Title + " " + item.Description)
}

// 空のキーワードはすべての記事に一致してしまうため無視する。
func matchesText(text string, cat model.Category) bool {
	for _, k := range cat.Keywords {
		k = strings.ToLower(strings.TrimSpace(k))
		if k != "" && strings.Contains(text, k) {
			return true
		}
	}
	return false
}
