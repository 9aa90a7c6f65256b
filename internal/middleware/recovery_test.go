package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
)

type mockPanicRecorder struct {
	routes []string
}

func (m *mockPanicRecorder) RecordPanic(route string) {
	m.routes = append(m.routes, route)
}

// chiのルートパターンがログとメトリクスに記録されることを検証する。
func TestRecoveryMiddleware_RecordsRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	recorder := &mockPanicRecorder{}

	r := chi.NewRouter()
	r.Use(NewRecoveryMiddleware(slog.New(slog.NewJSONHandler(&buf, nil)), recorder))
	r.Get("/api/sources/{name}", func(w http.ResponseWriter, r *http.Request) {
		panic("adapter exploded")
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/sources/nyt", nil))

	if w.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", w.Code)
	}
	if len(recorder.routes) != 1 || recorder.routes[0] != "/api/sources/{name}" {
		t.Errorf("recorded routes = %v, want [/api/sources/{name}]", recorder.routes)
	}
	if !bytes.Contains(buf.Bytes(), []byte(`"route":"/api/sources/{name}"`)) {
		t.Errorf("ログにルートパターンがありません: %s", buf.String())
	}
}

// レスポンス送信開始後のpanicでは500のボディを追記しないことを検証する。
func TestRecoveryMiddleware_ResponseAlreadyStarted(t *testing.T) {
	recorder := &mockPanicRecorder{}
	handler := NewRecoveryMiddleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), recorder)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"items":[`))
			panic("encoder failed")
		}))

	w := httptest.NewRecorder()
	handler.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/stream", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200 (送信済み)", w.Code)
	}
	if got := w.Body.String(); got != `{"items":[` {
		t.Errorf("送信済みのボディに追記されました: %q", got)
	}
	if len(recorder.routes) != 1 || recorder.routes[0] != "" {
		t.Errorf("chi外のpanicはルートなしで記録されるべきです: %v", recorder.routes)
	}
}

// http.ErrAbortHandlerは回復せずに再送出することを検証する。
func TestRecoveryMiddleware_RepanicsAbortHandler(t *testing.T) {
	recorder := &mockPanicRecorder{}
	handler := NewRecoveryMiddleware(slog.New(slog.NewJSONHandler(io.Discard, nil)), recorder)(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			panic(http.ErrAbortHandler)
		}))

	defer func() {
		if rec := recover(); rec != http.ErrAbortHandler {
			t.Errorf("recover() = %v, want http.ErrAbortHandler", rec)
		}
		if len(recorder.routes) != 0 {
			t.Errorf("中断はpanicとして記録しないべきです: %v", recorder.routes)
		}
	}()
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/stream", nil))
}
