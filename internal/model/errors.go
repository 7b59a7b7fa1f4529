package model

import (
	"errors"
	"fmt"
)

// ストア層が返す番兵エラー。
var (
	// ErrDuplicateEmail は同じメールアドレスのプロフィールが既に存在する場合に返る。
	// 初回ログインが同時に走った場合に発生しうる。
	ErrDuplicateEmail = errors.New("profile with this email already exists")

	// ErrProfileNotFound は更新対象のプロフィールが存在しない場合に返る。
	ErrProfileNotFound = errors.New("profile not found")

	// ErrProfileMissing はセッション確立済みなのにプロフィールが存在しない場合に返る。
	// 不変条件の破綻を意味し、内部エラーとして扱う。
	ErrProfileMissing = errors.New("profile missing for established session")
)

// APIError は統一エラーフォーマットを表す。
// エラーページに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeAuthFailed      = "AUTH_FAILED"
	ErrCodeInvalidCallback = "INVALID_CALLBACK"
	ErrCodeInvalidInput    = "INVALID_INPUT"
	ErrCodeCSRFFailed      = "CSRF_FAILED"
	ErrCodeRateLimited     = "RATE_LIMITED"
	ErrCodeNotFound        = "NOT_FOUND"
	ErrCodeInternal        = "INTERNAL_ERROR"
)

// NewAuthFailedError はログイン失敗エラーを生成する。
func NewAuthFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeAuthFailed,
		Message:  "ログインに失敗しました。",
		Category: "auth",
		Action:   "トップページから再度ログインしてください。",
	}
}

// NewInvalidCallbackError はコールバックのパラメータ不備エラーを生成する。
func NewInvalidCallbackError(reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidCallback,
		Message:  fmt.Sprintf("ログイン応答が不正です: %s", reason),
		Category: "auth",
		Action:   "トップページから再度ログインしてください。",
	}
}

// NewInvalidInputError は入力値の検証エラーを生成する。
func NewInvalidInputError(field, reason string) *APIError {
	return &APIError{
		Code:     ErrCodeInvalidInput,
		Message:  fmt.Sprintf("%s が不正です: %s", field, reason),
		Category: "validation",
		Action:   "入力内容を確認して再度送信してください。",
	}
}

// NewCSRFFailedError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRFFailed,
		Message:  "フォームの有効期限が切れているか、不正な送信です。",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度送信してください。",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "短時間に送信が集中しています。",
		Category: "validation",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewNotFoundError は存在しないページへのアクセスエラーを生成する。
func NewNotFoundError() *APIError {
	return &APIError{
		Code:     ErrCodeNotFound,
		Message:  "ページが見つかりません。",
		Category: "system",
		Action:   "URLを確認してください。",
	}
}

// NewInternalError は内部エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "内部エラーが発生しました。",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}
