package cleanup

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// mockSessionDeleter はExpiredSessionDeleterのテスト用モック。
type mockSessionDeleter struct {
	calls  atomic.Int32
	before time.Time
	count  int64
	err    error
}

func (m *mockSessionDeleter) DeleteExpiredBefore(ctx context.Context, before time.Time) (int64, error) {
	m.calls.Add(1)
	m.before = before
	return m.count, m.err
}

func newTestLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

// hasLogField はJSONログのいずれかの行に key=want が含まれるかを返す。
func hasLogField(buf *bytes.Buffer, key string, want any) bool {
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			continue
		}
		if entry[key] == want {
			return true
		}
	}
	return false
}

func TestNewCleanupJob_RetentionDays(t *testing.T) {
	tests := []struct {
		name string
		in   int
		want int
	}{
		{"指定値", 7, 7},
		{"0はデフォルト", 0, DefaultRetentionDays},
		{"負数はデフォルト", -1, DefaultRetentionDays},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			job := NewCleanupJob(&mockSessionDeleter{}, newTestLogger(&buf), tt.in)
			if job.RetentionDays != tt.want {
				t.Errorf("RetentionDays = %d, want %d", job.RetentionDays, tt.want)
			}
		})
	}
}

func TestCleanupJob_Run_PassesCutoff(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockSessionDeleter{count: 5}
	job := NewCleanupJob(deleter, newTestLogger(&buf), 30)
	now := time.Date(2024, 6, 30, 12, 0, 0, 0, time.UTC)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	want := time.Date(2024, 5, 31, 12, 0, 0, 0, time.UTC)
	if !deleter.before.Equal(want) {
		t.Errorf("before = %v, want %v", deleter.before, want)
	}
}

func TestCleanupJob_Run_LogsDeletedCountAndRetention(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionDeleter{count: 42}, newTestLogger(&buf), 30)

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run() がエラーを返した: %v", err)
	}

	if !hasLogField(&buf, "deleted_count", float64(42)) {
		t.Errorf("ログに deleted_count=42 が記録されていない。ログ出力: %s", buf.String())
	}
	if !hasLogField(&buf, "retention_days", float64(30)) {
		t.Errorf("ログに retention_days=30 が記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_ReturnsErrorOnDBFailure(t *testing.T) {
	var buf bytes.Buffer
	job := NewCleanupJob(&mockSessionDeleter{err: sql.ErrConnDone}, newTestLogger(&buf), 30)

	err := job.Run(context.Background())
	if err == nil {
		t.Fatal("DBエラー時に Run() は nil でないエラーを返すべき")
	}
	if !errors.Is(err, sql.ErrConnDone) {
		t.Errorf("errors.Is(err, sql.ErrConnDone) = false: %v", err)
	}
	if !strings.Contains(buf.String(), "ERROR") {
		t.Errorf("エラー時にERRORレベルのログが記録されていない。ログ出力: %s", buf.String())
	}
}

func TestCleanupJob_Run_Idempotent_ZeroRows(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockSessionDeleter{}
	job := NewCleanupJob(deleter, newTestLogger(&buf), 30)

	for i := 0; i < 2; i++ {
		if err := job.Run(context.Background()); err != nil {
			t.Fatalf("Run() %d回目がエラーを返した: %v", i+1, err)
		}
	}
	if got := deleter.calls.Load(); got != 2 {
		t.Errorf("DeleteExpiredBefore呼び出し回数 = %d, want 2", got)
	}
}

func TestCleanupJob_Start_RunsImmediatelyAndStopsOnCancel(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockSessionDeleter{}
	job := NewCleanupJob(deleter, newTestLogger(&buf), 30)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		if err := job.Start(ctx, "@every 1h"); err != nil {
			t.Errorf("Start() returned error: %v", err)
		}
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for deleter.calls.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("起動直後にRunが呼ばれなかった")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("コンテキストのキャンセル後にStartが終了しなかった")
	}
}

func TestCleanupJob_Start_InvalidSchedule(t *testing.T) {
	var buf bytes.Buffer
	deleter := &mockSessionDeleter{}
	job := NewCleanupJob(deleter, newTestLogger(&buf), 30)

	err := job.Start(context.Background(), "every other tuesday")
	if err == nil {
		t.Fatal("不正なcron式はエラーを返すべきです")
	}
	if got := deleter.calls.Load(); got != 0 {
		t.Errorf("不正なcron式でRunが%d回呼ばれた", got)
	}
}
