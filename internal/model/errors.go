// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, feed, sharing, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeInvalidURL            = "INVALID_URL"
	ErrCodeFeedAlreadyExists     = "FEED_ALREADY_EXISTS"
	ErrCodeFeedNotFound          = "FEED_NOT_FOUND"
	ErrCodeCategoryAlreadyExists = "CATEGORY_ALREADY_EXISTS"
	ErrCodeCategoryNotFound      = "CATEGORY_NOT_FOUND"
	ErrCodeInvalidCategory       = "INVALID_CATEGORY"
	ErrCodeSavedItemNotFound     = "SAVED_ITEM_NOT_FOUND"
	ErrCodeNotOwner              = "NOT_OWNER"
	ErrCodeInvalidOPML           = "INVALID_OPML"
	ErrCodeUnknownSource         = "UNKNOWN_SOURCE"
	ErrCodeConfiguration         = "CONFIGURATION_ERROR"
	ErrCodeUserNotFound          = "USER_NOT_FOUND"
	ErrCodeUnauthorized          = "UNAUTHORIZED"
	ErrCodeRateLimitExceeded     = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRFValidation        = "CSRF_VALIDATION_FAILED"
	ErrCodeInvalidRequest        = "INVALID_REQUEST"
)

// NewInvalidURLError は無効なURLエラーを生成する。
func NewInvalidURLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidURL,
		Message:  fmt.Sprintf("無効なURLです: %s", reason),
		Category: "validation",
		Action:   "正しいURL形式（http:// または https:// で始まるURL）を入力してください。",
	}
}

// NewFeedAlreadyExistsError は登録済みフィードの重複登録エラーを生成する。
func NewFeedAlreadyExistsError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedAlreadyExists,
		Message:  fmt.Sprintf("このフィードは既に登録されています: %s", url),
		Category: "feed",
		Action:   "フィード一覧から該当フィードを確認してください。",
	}
}

// NewFeedNotFoundError はフィード未登録エラーを生成する。
func NewFeedNotFoundError(url string) *APIError {
	return &APIError{
		Code:     ErrCodeFeedNotFound,
		Message:  fmt.Sprintf("指定されたフィードは登録されていません: %s", url),
		Category: "feed",
		Action:   "フィードURLを確認してください。",
	}
}

// NewCategoryAlreadyExistsError はカテゴリ名の重複エラーを生成する。
func NewCategoryAlreadyExistsError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryAlreadyExists,
		Message:  fmt.Sprintf("同じ名前のカテゴリが既に存在します: %s", name),
		Category: "validation",
		Action:   "別のカテゴリ名を指定してください。",
	}
}

// NewCategoryNotFoundError はカテゴリ未検出エラーを生成する。
func NewCategoryNotFoundError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeCategoryNotFound,
		Message:  fmt.Sprintf("指定されたカテゴリが見つかりません: %s", name),
		Category: "validation",
		Action:   "カテゴリ名を確認してください。",
	}
}

// NewInvalidCategoryError はカテゴリ入力の検証エラーを生成する。
func NewInvalidCategoryError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCategory,
		Message:  fmt.Sprintf("カテゴリの指定が不正です: %s", reason),
		Category: "validation",
		Action:   "カテゴリ名とカンマ区切りのキーワードを1つ以上指定してください。",
	}
}

// NewSavedItemNotFoundError は保存済み記事が見つからない場合のエラーを生成する。
func NewSavedItemNotFoundError(id string) *APIError {
	return &APIError{
		Code:     ErrCodeSavedItemNotFound,
		Message:  fmt.Sprintf("保存済みの記事が見つかりません: %s", id),
		Category: "sharing",
		Action:   "記事を保存してから共有設定を変更してください。",
	}
}

// NewNotOwnerError は所有者以外による変更操作のエラーを生成する。
func NewNotOwnerError() *APIError {
	return &APIError{
		Code:     ErrCodeNotOwner,
		Message:  "この記事は他のユーザーが保存したものです。",
		Category: "sharing",
		Action:   "共有設定は記事を保存したユーザーのみ変更できます。",
	}
}

// NewInvalidOPMLError はOPML解析失敗エラーを生成する。
func NewInvalidOPMLError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidOPML,
		Message:  fmt.Sprintf("OPMLファイルを解析できませんでした: %s", reason),
		Category: "validation",
		Action:   "RSSリーダーからエクスポートしたOPMLファイルを指定してください。",
	}
}

// NewUnknownSourceError は未登録のシステムソース指定エラーを生成する。
func NewUnknownSourceError(name string) *APIError {
	return &APIError{
		Code:     ErrCodeUnknownSource,
		Message:  fmt.Sprintf("不明なソースです: %s", name),
		Category: "validation",
		Action:   "guardian、nyt、congress のいずれかを指定してください。",
	}
}

// NewConfigurationError はAPIキー未設定などのサーバー設定エラーを生成する。
func NewConfigurationError(detail string) *APIError {
	return &APIError{
		Code:     ErrCodeConfiguration,
		Message:  fmt.Sprintf("サーバーの設定が不足しています: %s", detail),
		Category: "system",
		Action:   "管理者に連絡してください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeUserNotFound,
		Message:  "ユーザーが見つかりません。",
		Category: "auth",
		Action:   "ログインし直してください。",
	}
}

// NewUnauthorizedError は未認証リクエストのエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "ログインが必要です。",
		Category: "auth",
		Action:   "ログインしてから再度お試しください。",
	}
}

// NewRateLimitError はレート制限超過のエラーを生成する。
func NewRateLimitError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimitExceeded,
		Message:  "リクエスト数が上限を超えました。",
		Category: "system",
		Action:   "指定された時間が経過してから再度お試しください。",
	}
}

// NewCSRFValidationError はCSRFトークン検証失敗のエラーを生成する。
func NewCSRFValidationError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFValidation,
		Message:  "CSRFトークンの検証に失敗しました。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewInvalidRequestError はリクエスト形式の不正を表すエラーを生成する。
func NewInvalidRequestError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidRequest,
		Message:  fmt.Sprintf("リクエストが不正です: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}
