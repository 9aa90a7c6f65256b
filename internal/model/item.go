// Package model はドメインモデルを定義する。
package model

import (
	"strings"
	"time"
)

// Item は全ソース共通の正規化済み記事を表す。
// 任意項目はnilのときJSONでnullとして出力される。
type Item struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Link        string   `json:"link"`
	Description string   `json:"description"`
	PubDate     string   `json:"pubDate"`
	Source      string   `json:"source"`
	SourceURL   string   `json:"sourceUrl"`
	Author      *string  `json:"author"`
	Image       *string  `json:"image"`
	Categories  []string `json:"categories"`
	IsOfficial  *bool    `json:"isOfficial"`
	Agency      *string  `json:"agency"`
	DueDate     *string  `json:"dueDate"`
}

// pubDateLayouts はフィードやAPIで観測される日付書式。先頭から順に試す。
var pubDateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	"Mon, 2 Jan 2006 15:04:05 -0700",
	"Mon, 2 Jan 2006 15:04:05 MST",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ParsePubDate は公開日文字列を解析する。解析できない場合はfalseを返す。
func ParsePubDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range pubDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// PublishedTime は記事の公開日時を返す。解析不能な場合はゼロ値。
func (i Item) PublishedTime() time.Time {
	t, _ := ParsePubDate(i.PubDate)
	return t
}

// HasCategory は記事が指定カテゴリに分類されているかを返す。
func (i Item) HasCategory(name string) bool {
	for _, c := range i.Categories {
		if c == name {
			return true
		}
	}
	return false
}

// StringPtr は空文字列をnilとして扱うポインタを返す。
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// BoolPtr はboolのポインタを返す。
func BoolPtr(b bool) *bool {
	return &b
}
