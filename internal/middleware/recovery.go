package middleware

import (
	"errors"
	"log/slog"
	"net/http"
	"runtime/debug"

	"github.com/go-chi/chi/v5"
)

// PanicRecorder はハンドラーで回復したpanicを記録する。
type PanicRecorder interface {
	RecordPanic(route string)
}

// responseStarted はレスポンスの書き込みが始まったかを追跡する。
type responseStarted struct {
	http.ResponseWriter
	started bool
}

func (rs *responseStarted) WriteHeader(code int) {
	rs.started = true
	rs.ResponseWriter.WriteHeader(code)
}

func (rs *responseStarted) Write(b []byte) (int, error) {
	rs.started = true
	return rs.ResponseWriter.Write(b)
}

func (rs *responseStarted) Unwrap() http.ResponseWriter {
	return rs.ResponseWriter
}

// NewRecoveryMiddleware はハンドラー内のpanicを回復して500の統一エラーを返すミドルウェアを生成する。
// レスポンスを書き始めた後のpanicではボディを追記しない。http.ErrAbortHandlerはそのまま再送出する。
// recorderがnilの場合は記録しない。
func NewRecoveryMiddleware(logger *slog.Logger, recorder PanicRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rs := &responseStarted{ResponseWriter: w}
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}
				if err, ok := rec.(error); ok && errors.Is(err, http.ErrAbortHandler) {
					panic(rec)
				}

				route := routePattern(r)
				logger.Error("panic recovered",
					slog.Any("panic", rec),
					slog.String("method", r.Method),
					slog.String("path", r.URL.Path),
					slog.String("route", route),
					slog.String("request_id", RequestIDFromContext(r.Context())),
					slog.Bool("response_started", rs.started),
					slog.String("stack", string(debug.Stack())),
				)
				if recorder != nil {
					recorder.RecordPanic(route)
				}
				if !rs.started {
					WriteInternalServerError(w)
				}
			}()
			next.ServeHTTP(rs, r)
		})
	}
}

// routePattern はchiがマッチさせたルートパターンを返す。chi外では空文字列。
func routePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return ""
	}
	return rctx.RoutePattern()
}
