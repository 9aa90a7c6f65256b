// Package model はドメインモデルを定義する。
package model

import (
	"bytes"
	"encoding/json"
	"strings"
	"time"
)

// FeedSubscription はユーザーが購読するフィードを表す。
type FeedSubscription struct {
	URL      string `json:"url"`
	Name     string `json:"name"`
	IsPublic bool   `json:"isPublic"`
}

// NewFeedSubscription は表示名を省略した場合にURLを名前とする購読を生成する。
func NewFeedSubscription(url, name string) FeedSubscription {
	url = strings.TrimSpace(url)
	name = strings.TrimSpace(name)
	if name == "" {
		name = url
	}
	return FeedSubscription{URL: url, Name: name}
}

// UnmarshalJSON は旧形式（URL文字列のみ）の購読を {url, name: url, isPublic: false} に変換する。
func (f *FeedSubscription) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '"' {
		var url string
		if err := json.Unmarshal(trimmed, &url); err != nil {
			return err
		}
		*f = FeedSubscription{URL: url, Name: url}
		return nil
	}

	type plain FeedSubscription
	var p plain
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return err
	}
	*f = FeedSubscription(p)
	return nil
}

// Alias はURLと異なる表示名が設定されている場合にその名前を返す。
func (f FeedSubscription) Alias() (string, bool) {
	if f.Name != "" && f.Name != f.URL {
		return f.Name, true
	}
	return "", false
}

// Category はキーワードで定義されるユーザーのカテゴリ（バケット）を表す。
type Category struct {
	Name     string   `json:"name"`
	Keywords []string `json:"keywords"`
	IsPublic bool     `json:"isPublic"`
}

// ParseKeywords はカンマ区切りのキーワード文字列を分割し、前後の空白を除去して空要素を捨てる。
func ParseKeywords(csv string) []string {
	keywords := make([]string, 0)
	for _, k := range strings.Split(csv, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keywords = append(keywords, k)
		}
	}
	return keywords
}

// PublicFeedEntry は公開されたフィードの射影。IDはURLのハッシュ。
type PublicFeedEntry struct {
	ID        string    `json:"id"`
	URL       string    `json:"url"`
	Name      string    `json:"name"`
	SharedBy  string    `json:"sharedBy"`
	OwnerID   string    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// PublicBucketEntry は公開されたカテゴリの射影。IDはカテゴリ名のハッシュ。
type PublicBucketEntry struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Keywords  []string  `json:"keywords"`
	SharedBy  string    `json:"sharedBy"`
	OwnerID   string    `json:"-"`
	UpdatedAt time.Time `json:"updatedAt"`
}
