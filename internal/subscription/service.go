// Package subscription はユーザーごとの購読フィードとカテゴリの管理を提供する。
package subscription

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/opml"
	"github.com/hitoshi/policyfeed/internal/repository"
)

// ExportTitle はOPMLエクスポート時の文書タイトル。
const ExportTitle = "policyfeed subscriptions"

// StreamStore は取得済みストリームの部分更新インターフェース。
type StreamStore interface {
	Recategorize(userID string, categories []model.Category)
	RemoveSource(userID, sourceURL string)
}

// Sharer は公開射影の同期インターフェース。
type Sharer interface {
	SyncFeed(ctx context.Context, owner model.Owner, feed model.FeedSubscription) error
	DeleteFeed(ctx context.Context, url string) error
	SyncBucket(ctx context.Context, owner model.Owner, cat model.Category) error
	DeleteBucket(ctx context.Context, name string) error
}

// URLValidator はフィードURLの静的検証インターフェース。
type URLValidator interface {
	ValidateURL(rawURL string) error
}

// FeedResolver はサイトURLを購読すべきフィードURLに解決する。
type FeedResolver interface {
	Resolve(ctx context.Context, rawURL string) (string, error)
}

// UpdateResult はフィード更新の結果。
type UpdateResult struct {
	Preferences *model.Preferences
	// NeedsRefresh は表示名が変わりストリームの再取得が必要な場合にtrueとなる。
	NeedsRefresh bool
}

// ImportResult はOPMLインポートの結果。Addedが0の場合は何も変更していない。
type ImportResult struct {
	Added int `json:"added"`
	Total int `json:"total"`
}

// Service は購読フィード、カテゴリ、非表示ソースのサービス層。
type Service struct {
	repo      repository.PreferencesRepository
	store     StreamStore
	sharer    Sharer
	validator URLValidator
	resolver  FeedResolver
	logger    *slog.Logger
	now       func() time.Time
	locks     *userLocks
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	repo repository.PreferencesRepository,
	store StreamStore,
	sharer Sharer,
	validator URLValidator,
	resolver FeedResolver,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		store:     store,
		sharer:    sharer,
		validator: validator,
		resolver:  resolver,
		logger:    logger,
		now:       time.Now,
		locks:     newUserLocks(),
	}
}

// Load はユーザーの設定を返す。未作成のユーザーには空の設定を作成して返す。
func (s *Service) Load(ctx context.Context, userID string) (*model.Preferences, error) {
	defer s.locks.lock(userID)()
	return s.load(ctx, userID)
}

// load はロックを取得せずに設定を読み込む。呼び出し側がユーザーのロックを保持していること。
func (s *Service) load(ctx context.Context, userID string) (*model.Preferences, error) {
	prefs, err := s.repo.FindByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("設定の取得に失敗しました: %w", err)
	}
	if prefs != nil {
		return prefs, nil
	}

	prefs = &model.Preferences{
		UserID:      userID,
		Feeds:       []model.FeedSubscription{},
		Categories:  []model.Category{},
		HiddenFeeds: []string{},
		UpdatedAt:   s.now(),
	}
	if err := s.repo.Save(ctx, prefs); err != nil {
		return nil, fmt.Errorf("設定の初期化に失敗しました: %w", err)
	}
	s.logger.Info("ユーザー設定を初期化しました", slog.String("user_id", userID))
	return prefs, nil
}

// AddFeed はフィードを購読に追加する。登録済みのURLの場合は何もせずaddedにfalseを返す。
// HTMLページのURLは<head>のフィードリンクに置き換える。解決できない場合は入力URLのまま登録する。
func (s *Service) AddFeed(ctx context.Context, owner model.Owner, url, name string) (prefs *model.Preferences, added bool, err error) {
	feed := model.NewFeedSubscription(url, name)
	if err := s.validate(feed.URL); err != nil {
		return nil, false, err
	}
	if resolved := s.resolve(ctx, feed.URL); resolved != feed.URL {
		if err := s.validate(resolved); err != nil {
			return nil, false, err
		}
		feed = model.NewFeedSubscription(resolved, name)
	}

	defer s.locks.lock(owner.UserID)()

	prefs, err = s.load(ctx, owner.UserID)
	if err != nil {
		return nil, false, err
	}
	if _, ok := prefs.FindFeed(feed.URL); ok {
		return prefs, false, nil
	}

	prefs.Feeds = prefs.WithFeed(feed)
	if err := s.save(ctx, prefs); err != nil {
		return nil, false, err
	}
	return prefs, true, nil
}

// RemoveFeed はフィードの購読を解除する。
// 公開中のフィードは先に公開を取り消し、取得済みストリームからそのフィードの記事を取り除く。
func (s *Service) RemoveFeed(ctx context.Context, owner model.Owner, url string) (*model.Preferences, error) {
	defer s.locks.lock(owner.UserID)()

	prefs, err := s.load(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}
	feed, ok := prefs.FindFeed(url)
	if !ok {
		return nil, model.NewFeedNotFoundError(url)
	}

	if feed.IsPublic {
		if err := s.sharer.DeleteFeed(ctx, feed.URL); err != nil {
			return nil, err
		}
	}

	prefs.Feeds = prefs.WithoutFeed(url)
	if err := s.save(ctx, prefs); err != nil {
		return nil, err
	}
	s.store.RemoveSource(owner.UserID, url)
	return prefs, nil
}

// UpdateFeed はフィードの表示名と公開状態を更新する。
// 公開状態が変わった場合、または公開中のフィード名が変わった場合に公開射影を同期する。
func (s *Service) UpdateFeed(ctx context.Context, owner model.Owner, url, name string, isPublic bool) (*UpdateResult, error) {
	defer s.locks.lock(owner.UserID)()

	prefs, err := s.load(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}
	old, ok := prefs.FindFeed(url)
	if !ok {
		return nil, model.NewFeedNotFoundError(url)
	}

	updated := model.NewFeedSubscription(old.URL, name)
	updated.IsPublic = isPublic

	prefs.Feeds = prefs.ReplacingFeed(updated)
	if err := s.save(ctx, prefs); err != nil {
		return nil, err
	}

	if old.IsPublic != updated.IsPublic || (updated.IsPublic && old.Name != updated.Name) {
		if err := s.sharer.SyncFeed(ctx, owner, updated); err != nil {
			return nil, err
		}
	}

	return &UpdateResult{Preferences: prefs, NeedsRefresh: old.Name != updated.Name}, nil
}

// ToggleHidden はソースの非表示状態を切り替える。
func (s *Service) ToggleHidden(ctx context.Context, userID, url string) (*model.Preferences, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, model.NewInvalidURLError("URLが空です")
	}

	defer s.locks.lock(userID)()

	prefs, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	prefs.HiddenFeeds = prefs.TogglingHidden(url)
	if err := s.save(ctx, prefs); err != nil {
		return nil, err
	}
	return prefs, nil
}

// AddCategory はカテゴリを追加し、取得済みストリームを再分類する。
func (s *Service) AddCategory(ctx context.Context, owner model.Owner, name, keywordsCSV string, isPublic bool) (*model.Preferences, error) {
	cat, err := newCategory(name, keywordsCSV, isPublic)
	if err != nil {
		return nil, err
	}

	defer s.locks.lock(owner.UserID)()

	prefs, err := s.load(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}
	if _, ok := prefs.FindCategory(cat.Name); ok {
		return nil, model.NewCategoryAlreadyExistsError(cat.Name)
	}

	prefs.Categories = prefs.WithCategory(cat)
	if err := s.save(ctx, prefs); err != nil {
		return nil, err
	}

	if cat.IsPublic {
		if err := s.sharer.SyncBucket(ctx, owner, cat); err != nil {
			return nil, err
		}
	}

	s.store.Recategorize(owner.UserID, prefs.Categories)
	return prefs, nil
}

// EditCategory はカテゴリを更新し、取得済みストリームを再分類する。
// 公開を取り消した場合や公開中に名前を変えた場合は、旧名の公開バケットを削除する。
func (s *Service) EditCategory(ctx context.Context, owner model.Owner, orig, name, keywordsCSV string, isPublic bool) (*model.Preferences, error) {
	cat, err := newCategory(name, keywordsCSV, isPublic)
	if err != nil {
		return nil, err
	}

	defer s.locks.lock(owner.UserID)()

	prefs, err := s.load(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}
	old, ok := prefs.FindCategory(orig)
	if !ok {
		return nil, model.NewCategoryNotFoundError(orig)
	}
	if cat.Name != old.Name {
		if _, exists := prefs.FindCategory(cat.Name); exists {
			return nil, model.NewCategoryAlreadyExistsError(cat.Name)
		}
	}

	prefs.Categories = prefs.ReplacingCategory(orig, cat)
	if err := s.save(ctx, prefs); err != nil {
		return nil, err
	}

	if old.IsPublic && (!cat.IsPublic || old.Name != cat.Name) {
		if err := s.sharer.DeleteBucket(ctx, old.Name); err != nil {
			return nil, err
		}
	}
	if cat.IsPublic {
		if err := s.sharer.SyncBucket(ctx, owner, cat); err != nil {
			return nil, err
		}
	}

	s.store.Recategorize(owner.UserID, prefs.Categories)
	return prefs, nil
}

// RemoveCategory はカテゴリを削除し、取得済みストリームを再分類する。
func (s *Service) RemoveCategory(ctx context.Context, owner model.Owner, name string) (*model.Preferences, error) {
	defer s.locks.lock(owner.UserID)()

	prefs, err := s.load(ctx, owner.UserID)
	if err != nil {
		return nil, err
	}
	cat, ok := prefs.FindCategory(name)
	if !ok {
		return nil, model.NewCategoryNotFoundError(name)
	}

	if cat.IsPublic {
		if err := s.sharer.DeleteBucket(ctx, cat.Name); err != nil {
			return nil, err
		}
	}

	prefs.Categories = prefs.WithoutCategory(name)
	if err := s.save(ctx, prefs); err != nil {
		return nil, err
	}

	s.store.Recategorize(owner.UserID, prefs.Categories)
	return prefs, nil
}

// ImportOPML はOPML文書に含まれるフィードのうち未登録のものを購読に追加する。
// 新規フィードが0件の場合は設定を変更しない。
func (s *Service) ImportOPML(ctx context.Context, userID string, r io.Reader) (*ImportResult, error) {
	urls, err := opml.Parse(r)
	if err != nil {
		return nil, model.NewInvalidOPMLError(err.Error())
	}

	defer s.locks.lock(userID)()

	prefs, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}

	added := 0
	for _, u := range urls {
		feed := model.NewFeedSubscription(u, "")
		if _, ok := prefs.FindFeed(feed.URL); ok {
			continue
		}
		if err := s.validate(feed.URL); err != nil {
			s.logger.Warn("OPMLのフィードURLをスキップしました",
				slog.String("user_id", userID),
				slog.String("url", feed.URL),
				slog.String("error", err.Error()),
			)
			continue
		}
		prefs.Feeds = prefs.WithFeed(feed)
		added++
	}

	result := &ImportResult{Added: added, Total: len(urls)}
	if added == 0 {
		return result, nil
	}

	if err := s.save(ctx, prefs); err != nil {
		return nil, err
	}
	s.logger.Info("OPMLをインポートしました",
		slog.String("user_id", userID),
		slog.Int("added", added),
		slog.Int("total", len(urls)),
	)
	return result, nil
}

// ExportOPML は購読フィードをOPML文書として出力する。
func (s *Service) ExportOPML(ctx context.Context, userID string) ([]byte, error) {
	prefs, err := s.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	data, err := opml.Export(ExportTitle, prefs.Feeds, s.now())
	if err != nil {
		return nil, fmt.Errorf("OPMLの出力に失敗しました: %w", err)
	}
	return data, nil
}

func (s *Service) save(ctx context.Context, prefs *model.Preferences) error {
	prefs.UpdatedAt = s.now()
	if err := s.repo.Save(ctx, prefs); err != nil {
		return fmt.Errorf("設定の保存に失敗しました: %w", err)
	}
	return nil
}

func (s *Service) resolve(ctx context.Context, url string) string {
	if s.resolver == nil {
		return url
	}
	resolved, err := s.resolver.Resolve(ctx, url)
	if err != nil || resolved == "" {
		s.logger.Warn("フィードURLを解決できませんでした。入力URLで登録します",
			slog.String("url", url),
			slog.Any("error", err),
		)
		return url
	}
	return resolved
}

func (s *Service) validate(url string) error {
	if url == "" {
		return model.NewInvalidURLError("URLが空です")
	}
	if s.validator == nil {
		return nil
	}
	if err := s.validator.ValidateURL(url); err != nil {
		return model.NewInvalidURLError(err.Error())
	}
	return nil
}

func newCategory(name, keywordsCSV string, isPublic bool) (model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return model.Category{}, model.NewInvalidCategoryError("カテゴリ名が空です")
	}
	return model.Category{
		Name:     name,
		Keywords: model.ParseKeywords(keywordsCSV),
		IsPublic: isPublic,
	}, nil
}
