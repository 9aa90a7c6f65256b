// Package user はユーザー管理のドメインロジックを提供する。
package user

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/repository"
)

// UserDataDeleter はユーザー単位の一括削除インターフェース。
type UserDataDeleter interface {
	DeleteByUserID(ctx context.Context, userID string) error
}

// ProjectionWithdrawer はユーザーが公開した射影の一括削除インターフェース。
type ProjectionWithdrawer interface {
	WithdrawOwner(ctx context.Context, ownerID string) error
}

// StreamClearer は取得済みストリームの破棄インターフェース。
type StreamClearer interface {
	Clear(userID string)
}

// Service はユーザー管理のサービス層。
// 退会処理のビジネスロジックを提供する。
type Service struct {
	userRepo    repository.UserRepository
	sessionRepo repository.SessionRepository
	projections ProjectionWithdrawer
	savedItems  UserDataDeleter
	preferences UserDataDeleter
	stream      StreamClearer
	logger      *slog.Logger
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	userRepo repository.UserRepository,
	sessionRepo repository.SessionRepository,
	projections ProjectionWithdrawer,
	savedItems UserDataDeleter,
	preferences UserDataDeleter,
	stream StreamClearer,
	logger *slog.Logger,
) *Service {
	return &Service{
		userRepo:    userRepo,
		sessionRepo: sessionRepo,
		projections: projections,
		savedItems:  savedItems,
		preferences: preferences,
		stream:      stream,
		logger:      logger,
	}
}

// Withdraw はユーザーの退会処理を実行する。
// 削除順序: 公開射影 → saved_items → user_preferences → sessions → user
// 最後にメモリ上の取得済みストリームを破棄する。
func (s *Service) Withdraw(ctx context.Context, userID string) error {
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return model.NewUserNotFoundError()
	}

	s.logger.Info("退会処理を開始します",
		slog.String("user_id", userID),
	)

	// 1. 公開フィード・公開バケットを削除
	if s.projections != nil {
		if err := s.projections.WithdrawOwner(ctx, userID); err != nil {
			return fmt.Errorf("公開射影の削除に失敗しました: %w", err)
		}
	}

	// 2. 保存記事を削除（公開中のものもチーム一覧から消える）
	if s.savedItems != nil {
		if err := s.savedItems.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("保存記事の削除に失敗しました: %w", err)
		}
	}

	// 3. 設定を削除
	if s.preferences != nil {
		if err := s.preferences.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("設定の削除に失敗しました: %w", err)
		}
	}

	// 4. セッションを削除
	if s.sessionRepo != nil {
		if err := s.sessionRepo.DeleteByUserID(ctx, userID); err != nil {
			return fmt.Errorf("セッションの削除に失敗しました: %w", err)
		}
	}

	// 5. ユーザーを削除
	if err := s.userRepo.DeleteByID(ctx, userID); err != nil {
		return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
	}

	if s.stream != nil {
		s.stream.Clear(userID)
	}

	s.logger.Info("退会処理が完了しました",
		slog.String("user_id", userID),
	)

	return nil
}
