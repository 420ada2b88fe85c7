// Package model はドメインモデルを定義する。
package model

import (
	"fmt"
	"net/http"
)

// APIError は統一エラーフォーマットを表す。
// HTTPステータスコードとUIに表示する原因カテゴリ、対処方法を含む。
type APIError struct {
	Status   int    // HTTPステータスコード
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, user, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeUserAlreadyExists   = "USER_ALREADY_EXISTS"
	ErrCodeUserNotFound        = "USER_NOT_FOUND"
	ErrCodeForbiddenOtherUser  = "FORBIDDEN_OTHER_USER"
	ErrCodeForbiddenSuperAdmin = "FORBIDDEN_SUPER_ADMIN"
	ErrCodeForbidden           = "FORBIDDEN"
	ErrCodeValidation          = "VALIDATION_ERROR"
	ErrCodeInvalidCredentials  = "INVALID_CREDENTIALS"
	ErrCodeUserBlocked         = "USER_BLOCKED"
	ErrCodeUnauthorized        = "UNAUTHORIZED"
	ErrCodeRateLimited         = "RATE_LIMIT_EXCEEDED"
	ErrCodeCSRF                = "CSRF_TOKEN_INVALID"
	ErrCodeRouteNotFound       = "ROUTE_NOT_FOUND"
	ErrCodeInternal            = "INTERNAL_ERROR"
)

// NewUserAlreadyExistsError は同一メールアドレスのユーザーが既に存在する場合のエラーを生成する。
func NewUserAlreadyExistsError() *APIError {
	return &APIError{
		Status:   http.StatusBadRequest,
		Code:     ErrCodeUserAlreadyExists,
		Message:  "User Already Exists",
		Category: "user",
		Action:   "別のメールアドレスを使用するか、ログインしてください。",
	}
}

// NewUserNotFoundError はユーザーが見つからない場合のエラーを生成する。
func NewUserNotFoundError() *APIError {
	return &APIError{
		Status:   http.StatusNotFound,
		Code:     ErrCodeUserNotFound,
		Message:  "User Not Found",
		Category: "user",
		Action:   "ユーザーIDを確認してください。",
	}
}

// NewForbiddenOtherUserError はRIDER/DRIVERが他人のプロフィールを更新しようとした場合のエラーを生成する。
func NewForbiddenOtherUserError() *APIError {
	return &APIError{
		Status:   http.StatusForbidden,
		Code:     ErrCodeForbiddenOtherUser,
		Message:  "You are unauthorized to update another user's profile",
		Category: "auth",
		Action:   "自分のプロフィールのみ更新できます。",
	}
}

// NewForbiddenSuperAdminError はADMINがSUPER_ADMINを更新しようとした場合のエラーを生成する。
func NewForbiddenSuperAdminError() *APIError {
	return &APIError{
		Status:   http.StatusForbidden,
		Code:     ErrCodeForbiddenSuperAdmin,
		Message:  "You are not authorized to update a super admin profile",
		Category: "auth",
		Action:   "スーパー管理者の更新はスーパー管理者のみ可能です。",
	}
}

// NewForbiddenError は権限のないフィールド変更を要求した場合のエラーを生成する。
func NewForbiddenError() *APIError {
	return &APIError{
		Status:   http.StatusForbidden,
		Code:     ErrCodeForbidden,
		Message:  "You are not authorized",
		Category: "auth",
		Action:   "ロールやアカウント状態の変更は管理者に依頼してください。",
	}
}

// NewValidationError は入力検証エラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Status:   http.StatusBadRequest,
		Code:     ErrCodeValidation,
		Message:  fmt.Sprintf("Validation failed: %s", reason),
		Category: "validation",
		Action:   "入力内容を確認してください。",
	}
}

// NewInvalidCredentialsError はログイン情報が正しくない場合のエラーを生成する。
// ユーザーの存在有無は区別しない。
func NewInvalidCredentialsError() *APIError {
	return &APIError{
		Status:   http.StatusUnauthorized,
		Code:     ErrCodeInvalidCredentials,
		Message:  "Invalid email or password",
		Category: "auth",
		Action:   "メールアドレスとパスワードを確認してください。",
	}
}

// NewUserBlockedError は無効化または削除済みのアカウントでログインしようとした場合のエラーを生成する。
func NewUserBlockedError() *APIError {
	return &APIError{
		Status:   http.StatusForbidden,
		Code:     ErrCodeUserBlocked,
		Message:  "User is inactive or deleted",
		Category: "auth",
		Action:   "管理者に問い合わせてください。",
	}
}

// NewUnauthorizedError は認証が必要な場合のエラーを生成する。
func NewUnauthorizedError() *APIError {
	return &APIError{
		Status:   http.StatusUnauthorized,
		Code:     ErrCodeUnauthorized,
		Message:  "Authentication required",
		Category: "auth",
		Action:   "ログインしてください。",
	}
}

// NewInternalError は内部エラーを生成する。詳細はログにのみ記録する。
func NewInternalError() *APIError {
	return &APIError{
		Status:   http.StatusInternalServerError,
		Code:     ErrCodeInternal,
		Message:  "Internal server error",
		Category: "system",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewCSRFError はCSRFトークンの検証に失敗した場合のエラーを生成する。
func NewCSRFError() *APIError {
	return &APIError{
		Status:   http.StatusForbidden,
		Code:     ErrCodeCSRF,
		Message:  "CSRF token validation failed",
		Category: "auth",
		Action:   "ページを再読み込みしてから再度お試しください。",
	}
}

// NewRouteNotFoundError は存在しないエンドポイントへのリクエストのエラーを生成する。
func NewRouteNotFoundError() *APIError {
	return &APIError{
		Status:   http.StatusNotFound,
		Code:     ErrCodeRouteNotFound,
		Message:  "API Not Found",
		Category: "system",
		Action:   "リクエストURLを確認してください。",
	}
}
