// Package model はドメインモデルを定義する。
package model

import "time"

// AnonymousSharer は共有者のメールアドレスが不明な場合の表示名。
const AnonymousSharer = "Anonymous"

// User はサービス利用ユーザーを表す。
type User struct {
	ID        string
	Email     string
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Session はユーザーのログインセッションを表す。
type Session struct {
	ID        string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// Owner は保存・共有操作を行うユーザーの識別情報。
type Owner struct {
	UserID string
	Email  string
}

// SharedBy は公開エントリに記録する共有者名を返す。
func (o Owner) SharedBy() string {
	if o.Email == "" {
		return AnonymousSharer
	}
	return o.Email
}
