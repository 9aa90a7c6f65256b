// Package source は購読フィードと外部APIから記事を取得し、共通のmodel.Itemに正規化するアダプタを提供する。
//
// すべてのアダプタは取得失敗（通信エラー、非2xx、不正なペイロード）をログに記録して空のスライスを返す。
// 呼び出し元に返すエラーはAPIキー未設定を表す*ConfigErrorのみ。
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/hitoshi/policyfeed/internal/model"
)

const (
	userAgent = "Policyfeed/1.0 (+environmental policy aggregator)"

	// defaultMaxBodySize はAPIレスポンスの読み取り上限。
	defaultMaxBodySize int64 = 5 * 1024 * 1024
)

// ErrMissingCredential はシステムソースのAPIキーが設定されていないことを表す。
var ErrMissingCredential = errors.New("missing credential")

// ConfigError はソースの設定不備を表す。errors.Is(err, ErrMissingCredential) で判定できる。
type ConfigError struct {
	Source string
	Key    string
}

// Error はerrorインターフェースを実装する。
func (e *ConfigError) Error() string {
	return fmt.Sprintf("%s: %s が設定されていません", e.Source, e.Key)
}

// Unwrap はErrMissingCredentialを返す。
func (e *ConfigError) Unwrap() error {
	return ErrMissingCredential
}

// HTTPDoer はHTTPリクエストを実行するクライアントのインターフェース。
// *http.Client が実装する。
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// TextExtractor はHTML断片からプレーンテキストを取り出す。
type TextExtractor interface {
	Text(rawHTML string) string
}

// SystemSource はユーザーの購読とは無関係に常に取得されるソース。
type SystemSource interface {
	// Name はソースの識別名（guardian, nyt, congress）を返す。
	Name() string
	// SourceURL は生成する全記事に設定される固定のsourceUrlを返す。
	SourceURL() string
	// Fetch は記事を取得する。APIキー未設定時のみ*ConfigErrorを返す。
	Fetch(ctx context.Context) ([]model.Item, error)
}

// getBody はGETリクエストを送り、200応答のボディを上限付きで読み取る。
func getBody(ctx context.Context, client HTTPDoer, rawURL, accept string, maxBodySize int64) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("リクエスト作成に失敗: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", accept)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTPリクエスト失敗: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTPステータス %d", resp.StatusCode)
	}

	if maxBodySize <= 0 {
		maxBodySize = defaultMaxBodySize
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("レスポンス読み取り失敗: %w", err)
	}
	return body, nil
}

// getJSON はGETリクエストの応答をJSONとしてvにデコードする。
func getJSON(ctx context.Context, client HTTPDoer, rawURL string, v any) error {
	body, err := getBody(ctx, client, rawURL, "application/json", defaultMaxBodySize)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, v); err != nil {
		return fmt.Errorf("JSONのパースに失敗: %w", err)
	}
	return nil
}

// logFailure は取得失敗を共通の属性で記録する。rawURLにはAPIキーを含めないこと。
func logFailure(logger *slog.Logger, source, rawURL string, err error) {
	logger.Error("ソースの取得に失敗しました",
		slog.String("source", source),
		slog.String("url", rawURL),
		slog.String("error", err.Error()),
	)
}
