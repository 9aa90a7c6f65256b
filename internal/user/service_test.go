package user

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/hitoshi/policyfeed/internal/model"
)

// --- モック ---

type mockUserRepo struct {
	findByIDFn   func(ctx context.Context, id string) (*model.User, error)
	deleteByIDFn func(ctx context.Context, id string) error
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}
func (m *mockUserRepo) DeleteByID(ctx context.Context, id string) error {
	return m.deleteByIDFn(ctx, id)
}

type mockSessionRepo struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockSessionRepo) FindByID(ctx context.Context, id string) (*model.Session, error) {
	return nil, nil
}
func (m *mockSessionRepo) DeleteByID(ctx context.Context, id string) error {
	return nil
}
func (m *mockSessionRepo) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserIDFn(ctx, userID)
}
func (m *mockSessionRepo) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	return 0, nil
}

type mockDeleter struct {
	deleteByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockDeleter) DeleteByUserID(ctx context.Context, userID string) error {
	return m.deleteByUserIDFn(ctx, userID)
}

type mockProjections struct {
	withdrawOwnerFn func(ctx context.Context, ownerID string) error
}

func (m *mockProjections) WithdrawOwner(ctx context.Context, ownerID string) error {
	return m.withdrawOwnerFn(ctx, ownerID)
}

type mockStream struct {
	cleared []string
}

func (m *mockStream) Clear(userID string) {
	m.cleared = append(m.cleared, userID)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// --- テスト ---

// TestService_Withdraw は退会処理が全関連データを所定の順序で削除することを検証する。
func TestService_Withdraw(t *testing.T) {
	var calls []string
	record := func(name string) func(ctx context.Context, id string) error {
		return func(ctx context.Context, id string) error {
			if id != "user-1" {
				t.Errorf("%s: id = %q, want user-1", name, id)
			}
			calls = append(calls, name)
			return nil
		}
	}

	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id, Email: "test@example.com"}, nil
		},
		deleteByIDFn: record("user"),
	}
	stream := &mockStream{}

	svc := NewService(
		userRepo,
		&mockSessionRepo{deleteByUserIDFn: record("sessions")},
		&mockProjections{withdrawOwnerFn: record("projections")},
		&mockDeleter{deleteByUserIDFn: record("saved_items")},
		&mockDeleter{deleteByUserIDFn: record("preferences")},
		stream,
		discardLogger(),
	)

	if err := svc.Withdraw(context.Background(), "user-1"); err != nil {
		t.Fatalf("Withdraw returned error: %v", err)
	}

	want := []string{"projections", "saved_items", "preferences", "sessions", "user"}
	if diff := cmp.Diff(want, calls); diff != "" {
		t.Errorf("削除順序が不正 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"user-1"}, stream.cleared); diff != "" {
		t.Errorf("ストリームが破棄されていません (-want +got):\n%s", diff)
	}
}

// TestService_Withdraw_UserNotFound はユーザーが存在しない場合にエラーを返すことを検証する。
func TestService_Withdraw_UserNotFound(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return nil, nil
		},
	}

	svc := NewService(userRepo, nil, nil, nil, nil, nil, discardLogger())
	err := svc.Withdraw(context.Background(), "nonexistent")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Fatalf("err = %v, want USER_NOT_FOUND", err)
	}
}

// TestService_Withdraw_StopsOnError は途中の削除に失敗した場合に以降の処理を行わないことを検証する。
func TestService_Withdraw_StopsOnError(t *testing.T) {
	userDeleted := false
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			userDeleted = true
			return nil
		},
	}
	dbErr := errors.New("db down")
	stream := &mockStream{}

	svc := NewService(
		userRepo,
		nil,
		nil,
		&mockDeleter{deleteByUserIDFn: func(ctx context.Context, userID string) error { return dbErr }},
		nil,
		stream,
		discardLogger(),
	)

	err := svc.Withdraw(context.Background(), "user-1")
	if !errors.Is(err, dbErr) {
		t.Fatalf("err = %v, want wrapped db error", err)
	}
	if userDeleted {
		t.Error("保存記事の削除失敗後にユーザーが削除されました")
	}
	if len(stream.cleared) != 0 {
		t.Error("失敗時にストリームが破棄されました")
	}
}

// TestService_Withdraw_ConcurrentDeleteReportsNotFound は削除直前に別のリクエストが退会を済ませた場合に
// USER_NOT_FOUNDとなり、ストリームを破棄しないことを検証する。
func TestService_Withdraw_ConcurrentDeleteReportsNotFound(t *testing.T) {
	userRepo := &mockUserRepo{
		findByIDFn: func(ctx context.Context, id string) (*model.User, error) {
			return &model.User{ID: id}, nil
		},
		deleteByIDFn: func(ctx context.Context, id string) error {
			return model.NewUserNotFoundError()
		},
	}
	stream := &mockStream{}
	svc := NewService(userRepo, nil, nil, nil, nil, stream, discardLogger())

	err := svc.Withdraw(context.Background(), "user-1")

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUserNotFound {
		t.Fatalf("err = %v, want USER_NOT_FOUND", err)
	}
	if len(stream.cleared) != 0 {
		t.Error("削除に失敗した場合はストリームを破棄しないべきです")
	}
}
