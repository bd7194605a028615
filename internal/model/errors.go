// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// Messageはレスポンスのerrorフィールドにそのまま出力される。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, provider, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation           = "VALIDATION_ERROR"
	ErrCodeAlreadyRegistered    = "ALREADY_REGISTERED"
	ErrCodeProvider             = "PROVIDER_ERROR"
	ErrCodeCreationFailed       = "CREATION_FAILED"
	ErrCodeUnauthorized         = "UNAUTHORIZED"
	ErrCodeProfileNotFound      = "PROFILE_NOT_FOUND"
	ErrCodeSubscriptionNotFound = "SUBSCRIPTION_NOT_FOUND"
	ErrCodeMethodNotAllowed     = "METHOD_NOT_ALLOWED"
	ErrCodeRateLimited          = "RATE_LIMITED"
	ErrCodeCSRF                 = "CSRF_TOKEN_INVALID"
	ErrCodePersistenceFailed    = "PERSISTENCE_FAILED"
	ErrCodeInternal             = "INTERNAL_ERROR"
)

// NewValidationError は入力値不正エラーを生成する。
func NewValidationError(message string) *APIError {
	return &APIError{
		Code:     ErrCodeValidation,
		Message:  message,
		Category: "validation",
		Action:   "Check the submitted fields and try again.",
	}
}

// NewMissingFieldsError は必須項目の欠落エラーを生成する。
func NewMissingFieldsError() *APIError {
	return NewValidationError("Missing required fields")
}

// NewAlreadyRegisteredError はメールアドレス登録済みエラーを生成する。
func NewAlreadyRegisteredError() *APIError {
	return &APIError{
		Code:     ErrCodeAlreadyRegistered,
		Message:  "User already registered with this email",
		Category: "auth",
		Action:   "Sign in with this email or reset the password.",
	}
}

// NewProviderError は認証プロバイダーが返したエラーを生成する。
// messageが空の場合はfallbackを使用する。
func NewProviderError(message, fallback string) *APIError {
	if message == "" {
		message = fallback
	}
	return &APIError{
		Code:     ErrCodeProvider,
		Message:  message,
		Category: "provider",
		Action:   "Check the submitted values and try again.",
	}
}

// NewCreationFailedError はユーザーオブジェクトが返らなかった場合のエラーを生成する。
func NewCreationFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeCreationFailed,
		Message:  "Failed to create user",
		Category: "provider",
		Action:   "Try again later.",
	}
}

// NewUnauthorizedError は未認証エラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "Sign in and try again.",
	}
}

// NewProfileNotFoundError はプロフィール未作成エラーを生成する。
func NewProfileNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeProfileNotFound,
		Message:  fmt.Sprintf("Profile not found: %s", userID),
		Category: "auth",
		Action:   "Contact support if the problem persists.",
	}
}

// NewSubscriptionNotFoundError は有効な購読がない場合のエラーを生成する。
func NewSubscriptionNotFoundError(userID string) *APIError {
	return &APIError{
		Code:     ErrCodeSubscriptionNotFound,
		Message:  fmt.Sprintf("Active subscription not found: %s", userID),
		Category: "auth",
		Action:   "Contact support if the problem persists.",
	}
}

// NewMethodNotAllowedError は許可されていないHTTPメソッドのエラーを生成する。
func NewMethodNotAllowedError() *APIError {
	return &APIError{
		Code:     ErrCodeMethodNotAllowed,
		Message:  "Method not allowed",
		Category: "validation",
		Action:   "Use POST for this endpoint.",
	}
}

// NewRateLimitedError はレート制限超過エラーを生成する。
func NewRateLimitedError() *APIError {
	return &APIError{
		Code:     ErrCodeRateLimited,
		Message:  "Too many requests. Please try again later.",
		Category: "system",
		Action:   "Please wait and retry after the specified time.",
	}
}

// NewCSRFError はCSRFトークン検証失敗エラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Code:     ErrCodeCSRF,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "Reload the page and try again.",
	}
}

// NewPersistenceFailedError はstrictモードでバックフィルが失敗した場合のエラーを生成する。
func NewPersistenceFailedError(table string) *APIError {
	return &APIError{
		Code:     ErrCodePersistenceFailed,
		Message:  fmt.Sprintf("Failed to initialize %s for the new user", table),
		Category: "system",
		Action:   "The account was created. Contact support to finish setup.",
	}
}

// NewInternalError は内部エラーの統一レスポンス用エラーを生成する。
// 詳細はログのみに記録し、ユーザーには一般的なメッセージを返す。
func NewInternalError() *APIError {
	return &APIError{
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "Please try again later.",
	}
}
