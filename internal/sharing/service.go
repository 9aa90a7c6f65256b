// Package sharing はフィード、カテゴリ、保存記事の公開射影を同期する。
//
// 公開射影はユーザーの設定で isPublic が true の間だけ存在する。
// 同期処理は呼び出し元の状態更新が返る前に完了する。
package sharing

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/policyfeed/internal/hashid"
	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/repository"
)

// TeamLimit はチーム（公開保存記事）一覧の最大件数。
const TeamLimit = 50

// ToggleResult は保存記事の公開状態切り替え結果。
type ToggleResult struct {
	ID       string            `json:"id"`
	IsPublic bool              `json:"isPublic"`
	Team     []model.SavedItem `json:"team"`
}

// Service は公開射影の同期サービス。
type Service struct {
	feeds   repository.PublicFeedRepository
	buckets repository.PublicBucketRepository
	saved   repository.SavedItemRepository
	logger  *slog.Logger
	now     func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	feeds repository.PublicFeedRepository,
	buckets repository.PublicBucketRepository,
	saved repository.SavedItemRepository,
	logger *slog.Logger,
) *Service {
	return &Service{
		feeds:   feeds,
		buckets: buckets,
		saved:   saved,
		logger:  logger,
		now:     time.Now,
	}
}

// SyncFeed はフィードの公開状態を射影に反映する。
// 公開中なら public_feeds[hash(url)] をマージ書き込みし、非公開なら削除する。
func (s *Service) SyncFeed(ctx context.Context, owner model.Owner, feed model.FeedSubscription) error {
	id := hashid.Generate(feed.URL)
	if !feed.IsPublic {
		if err := s.feeds.Delete(ctx, id); err != nil {
			return fmt.Errorf("公開フィードの削除に失敗しました: %w", err)
		}
		return nil
	}

	entry := &model.PublicFeedEntry{
		ID:        id,
		URL:       feed.URL,
		Name:      feed.Name,
		SharedBy:  owner.SharedBy(),
		OwnerID:   owner.UserID,
		UpdatedAt: s.now(),
	}
	if err := s.feeds.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("公開フィードの書き込みに失敗しました: %w", err)
	}

	s.logger.Info("フィードを公開しました",
		slog.String("user_id", owner.UserID),
		slog.String("url", feed.URL),
	)
	return nil
}

// DeleteFeed はURLに対応する公開フィードを削除する。
func (s *Service) DeleteFeed(ctx context.Context, url string) error {
	if err := s.feeds.Delete(ctx, hashid.Generate(url)); err != nil {
		return fmt.Errorf("公開フィードの削除に失敗しました: %w", err)
	}
	return nil
}

// SyncBucket はカテゴリの公開状態を射影に反映する。
// 公開中なら public_buckets[hash(name)] をマージ書き込みし、非公開なら削除する。
func (s *Service) SyncBucket(ctx context.Context, owner model.Owner, cat model.Category) error {
	id := hashid.Generate(cat.Name)
	if !cat.IsPublic {
		if err := s.buckets.Delete(ctx, id); err != nil {
			return fmt.Errorf("公開バケットの削除に失敗しました: %w", err)
		}
		return nil
	}

	keywords := make([]string, len(cat.Keywords))
	copy(keywords, cat.Keywords)

	entry := &model.PublicBucketEntry{
		ID:        id,
		Name:      cat.Name,
		Keywords:  keywords,
		SharedBy:  owner.SharedBy(),
		OwnerID:   owner.UserID,
		UpdatedAt: s.now(),
	}
	if err := s.buckets.Upsert(ctx, entry); err != nil {
		return fmt.Errorf("公開バケットの書き込みに失敗しました: %w", err)
	}

	s.logger.Info("カテゴリを公開しました",
		slog.String("user_id", owner.UserID),
		slog.String("name", cat.Name),
	)
	return nil
}

// DeleteBucket はカテゴリ名に対応する公開バケットを削除する。
func (s *Service) DeleteBucket(ctx context.Context, name string) error {
	if err := s.buckets.Delete(ctx, hashid.Generate(name)); err != nil {
		return fmt.Errorf("公開バケットの削除に失敗しました: %w", err)
	}
	return nil
}

// ListPublicFeeds は公開フィード一覧を返す。
func (s *Service) ListPublicFeeds(ctx context.Context) ([]model.PublicFeedEntry, error) {
	entries, err := s.feeds.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("公開フィード一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// ListPublicBuckets は公開バケット一覧を返す。
func (s *Service) ListPublicBuckets(ctx context.Context) ([]model.PublicBucketEntry, error) {
	entries, err := s.buckets.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("公開バケット一覧の取得に失敗しました: %w", err)
	}
	return entries, nil
}

// ListTeam は公開された保存記事をsaved_at降順で最大TeamLimit件返す。
func (s *Service) ListTeam(ctx context.Context) ([]model.SavedItem, error) {
	team, err := s.saved.ListPublic(ctx, TeamLimit)
	if err != nil {
		return nil, fmt.Errorf("チーム記事の取得に失敗しました: %w", err)
	}
	return team, nil
}

// ToggleItemPublic は保存記事の公開状態を反転し、更新後のチーム一覧を返す。
// refには記事IDまたは記事リンクを指定する。リンクの場合はハッシュ化して記事IDを求める。
func (s *Service) ToggleItemPublic(ctx context.Context, owner model.Owner, ref string) (*ToggleResult, error) {
	id := ItemID(ref)

	saved, err := s.saved.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("保存記事の取得に失敗しました: %w", err)
	}
	if saved == nil {
		return nil, model.NewSavedItemNotFoundError(id)
	}
	if saved.UserID != owner.UserID {
		return nil, model.NewNotOwnerError()
	}

	next := !saved.IsPublic
	if err := s.saved.UpdatePublic(ctx, id, next); err != nil {
		return nil, fmt.Errorf("保存記事の公開状態の更新に失敗しました: %w", err)
	}

	team, err := s.ListTeam(ctx)
	if err != nil {
		return nil, err
	}

	s.logger.Info("保存記事の公開状態を切り替えました",
		slog.String("user_id", owner.UserID),
		slog.String("item_id", id),
		slog.Bool("is_public", next),
	)

	return &ToggleResult{ID: id, IsPublic: next, Team: team}, nil
}

// WithdrawOwner は指定ユーザーが公開した全ての射影を削除する。
func (s *Service) WithdrawOwner(ctx context.Context, ownerID string) error {
	if err := s.feeds.DeleteByOwner(ctx, ownerID); err != nil {
		return fmt.Errorf("公開フィードの削除に失敗しました: %w", err)
	}
	if err := s.buckets.DeleteByOwner(ctx, ownerID); err != nil {
		return fmt.Errorf("公開バケットの削除に失敗しました: %w", err)
	}
	return nil
}

// ItemID は記事IDまたは記事リンクから記事IDを求める。
func ItemID(ref string) string {
	if strings.Contains(ref, "://") {
		return hashid.ForItem(ref)
	}
	return ref
}
