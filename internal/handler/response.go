package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/hitoshi/policyfeed/internal/middleware"
	"github.com/hitoshi/policyfeed/internal/model"
	"github.com/hitoshi/policyfeed/internal/source"
)

// maxRequestBodySize はJSONリクエストボディの読み取り上限。
const maxRequestBodySize = 1 << 20

// maxOPMLSize はOPMLアップロードの読み取り上限。
const maxOPMLSize = 5 << 20

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// decodeJSON はリクエストボディをJSONとして読み取る。失敗時はエラーレスポンスを書き込みfalseを返す。
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		middleware.WriteAPIError(w, model.NewInvalidRequestError("リクエストボディの解析に失敗しました"))
		return false
	}
	return true
}

// requireOwner はコンテキストから操作ユーザーを取り出す。未認証なら401を書き込みfalseを返す。
func requireOwner(w http.ResponseWriter, r *http.Request) (model.Owner, bool) {
	owner, err := middleware.OwnerFromContext(r.Context())
	if err != nil {
		middleware.WriteAPIError(w, model.NewUnauthorizedError())
		return model.Owner{}, false
	}
	return owner, true
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		middleware.WriteAPIError(w, apiErr)
		return
	}

	var cfgErr *source.ConfigError
	if errors.As(err, &cfgErr) {
		slog.Error("source configuration error",
			slog.String("source", cfgErr.Source),
			slog.String("key", cfgErr.Key),
		)
		middleware.WriteAPIError(w, model.NewConfigurationError(fmt.Sprintf("%s (%s)", cfgErr.Key, cfgErr.Source)))
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// nonNil はJSONで null ではなく [] を返すためにnilスライスを空スライスに置き換える。
func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
