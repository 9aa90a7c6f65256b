// Package item は保存記事の管理機能を提供する。
package item

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/hitoshi/policyfeed/internal/hashid"
	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/repository"
	"github.com/hitoshi/policyfeed/internal/sharing"
)

// ToggleSaveResult はToggleSaveの戻り値。保存解除した場合Itemはnil。
type ToggleSaveResult struct {
	ID    string           `json:"id"`
	Saved bool             `json:"saved"`
	Item  *model.SavedItem `json:"item"`
}

// SavedService は記事の保存・保存解除・一覧取得のサービス。
type SavedService struct {
	savedRepo repository.SavedItemRepository
	logger    *slog.Logger
	now       func() time.Time
}

// NewSavedService はSavedServiceの新しいインスタンスを生成する。
func NewSavedService(savedRepo repository.SavedItemRepository, logger *slog.Logger) *SavedService {
	return &SavedService{
		savedRepo: savedRepo,
		logger:    logger,
		now:       time.Now,
	}
}

// ToggleSave は記事が保存済みなら削除し、未保存なら保存する。
// 保存記事のIDは記事リンクのハッシュで、保存時は非公開となる。
func (s *SavedService) ToggleSave(ctx context.Context, owner model.Owner, it model.Item) (*ToggleSaveResult, error) {
	link := strings.TrimSpace(it.Link)
	if link == "" {
		return nil, model.NewInvalidURLError("記事リンクが空です")
	}
	id := hashid.ForItem(link)

	existing, err := s.savedRepo.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("保存記事の取得に失敗しました: %w", err)
	}

	if existing != nil {
		if existing.UserID != owner.UserID {
			return nil, model.NewNotOwnerError()
		}
		if err := s.savedRepo.Delete(ctx, id); err != nil {
			return nil, fmt.Errorf("保存記事の削除に失敗しました: %w", err)
		}
		s.logger.Info("記事の保存を解除しました",
			slog.String("user_id", owner.UserID),
			slog.String("item_id", id),
		)
		return &ToggleSaveResult{ID: id, Saved: false}, nil
	}

	it.ID = id
	it.Link = link
	if it.Categories == nil {
		it.Categories = []string{}
	}
	saved := &model.SavedItem{
		Item:     it,
		UserID:   owner.UserID,
		SharedBy: owner.SharedBy(),
		SavedAt:  s.now().UTC(),
		IsPublic: false,
	}
	if err := s.savedRepo.Create(ctx, saved); err != nil {
		return nil, fmt.Errorf("保存記事の作成に失敗しました: %w", err)
	}

	s.logger.Info("記事を保存しました",
		slog.String("user_id", owner.UserID),
		slog.String("item_id", id),
	)
	return &ToggleSaveResult{ID: id, Saved: true, Item: saved}, nil
}

// ListSaved はユーザーの保存記事をsaved_at降順で返す。
func (s *SavedService) ListSaved(ctx context.Context, userID string) ([]model.SavedItem, error) {
	items, err := s.savedRepo.ListByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("保存記事一覧の取得に失敗しました: %w", err)
	}
	return items, nil
}

// ListTeam は公開された保存記事をsaved_at降順で最大sharing.TeamLimit件返す。
func (s *SavedService) ListTeam(ctx context.Context) ([]model.SavedItem, error) {
	items, err := s.savedRepo.ListPublic(ctx, sharing.TeamLimit)
	if err != nil {
		return nil, fmt.Errorf("チーム記事の取得に失敗しました: %w", err)
	}
	return items, nil
}

// IsSaved は記事がユーザーに保存されているかを返す。
func IsSaved(saved []model.SavedItem, it model.Item) bool {
	_, ok := savedVersion(saved, it)
	return ok
}

// IsShared は記事がユーザーに保存され、かつ公開されているかを返す。
func IsShared(saved []model.SavedItem, it model.Item) bool {
	s, ok := savedVersion(saved, it)
	return ok && s.IsPublic
}

// savedVersion は記事リンクのハッシュで保存記事を探す。
func savedVersion(saved []model.SavedItem, it model.Item) (model.SavedItem, bool) {
	if it.Link == "" {
		return model.SavedItem{}, false
	}
	id := hashid.ForItem(it.Link)
	for _, s := range saved {
		if s.ID == id {
			return s, true
		}
	}
	return model.SavedItem{}, false
}
