// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/hitoshi/policyfeed/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// DeleteByID は指定IDのユーザーを削除する。
	// 関連するsessions、user_preferences、saved_items、公開射影はCASCADE削除される。
	DeleteByID(ctx context.Context, id string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
// セッションは外部の認証基盤が発行し、このサービスは参照と削除のみを行う。
type SessionRepository interface {
	// FindByID は指定IDのセッションを取得する。期限切れの場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Session, error)
	// DeleteByID は指定IDのセッションを削除する。
	DeleteByID(ctx context.Context, id string) error
	// DeleteByUserID は指定ユーザーの全セッションを削除する。
	DeleteByUserID(ctx context.Context, userID string) error
	// DeleteExpiredBefore はbefore以前に期限切れとなったセッションを削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error)
}

// PreferencesRepository はユーザー設定（購読フィード、カテゴリ、非表示ソース）の永続化インターフェース。
type PreferencesRepository interface {
	// FindByUserID はユーザーの設定を取得する。見つからない場合はnilを返す。
	// 旧形式（URL文字列のみ）のフィードは読み込み時に変換される。
	FindByUserID(ctx context.Context, userID string) (*model.Preferences, error)

	// Save は設定を冪等にUPSERTする。
	Save(ctx context.Context, prefs *model.Preferences) error

	// DeleteByUserID はユーザーの設定を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// SavedItemRepository は保存記事の永続化インターフェース。
// 保存記事は記事IDで一意に識別される。
type SavedItemRepository interface {
	// FindByID は指定IDの保存記事を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.SavedItem, error)

	// Create は保存記事を作成する。
	Create(ctx context.Context, saved *model.SavedItem) error

	// Delete は指定IDの保存記事を削除する。
	Delete(ctx context.Context, id string) error

	// UpdatePublic は保存記事の公開フラグを更新する。
	UpdatePublic(ctx context.Context, id string, isPublic bool) error

	// ListByUserID はユーザーの保存記事をsaved_at降順で返す。
	ListByUserID(ctx context.Context, userID string) ([]model.SavedItem, error)

	// ListPublic は公開された保存記事をsaved_at降順で最大limit件返す。
	ListPublic(ctx context.Context, limit int) ([]model.SavedItem, error)

	// DeleteByUserID はユーザーの全保存記事を削除する。
	DeleteByUserID(ctx context.Context, userID string) error
}

// PublicFeedRepository は公開フィード射影の永続化インターフェース。
type PublicFeedRepository interface {
	// Upsert は公開フィードをマージ書き込みする。
	Upsert(ctx context.Context, entry *model.PublicFeedEntry) error
	// Delete は指定IDの公開フィードを削除する。存在しない場合も成功とする。
	Delete(ctx context.Context, id string) error
	// List は公開フィードを更新日時降順で返す。
	List(ctx context.Context) ([]model.PublicFeedEntry, error)
	// DeleteByOwner は指定ユーザーが公開した全フィードを削除する。
	DeleteByOwner(ctx context.Context, ownerID string) error
}

// PublicBucketRepository は公開カテゴリ（バケット）射影の永続化インターフェース。
type PublicBucketRepository interface {
	// Upsert は公開バケットをマージ書き込みする。
	Upsert(ctx context.Context, entry *model.PublicBucketEntry) error
	// Delete は指定IDの公開バケットを削除する。存在しない場合も成功とする。
	Delete(ctx context.Context, id string) error
	// List は公開バケットを更新日時降順で返す。
	List(ctx context.Context) ([]model.PublicBucketEntry, error)
	// DeleteByOwner は指定ユーザーが公開した全バケットを削除する。
	DeleteByOwner(ctx context.Context, ownerID string) error
}
