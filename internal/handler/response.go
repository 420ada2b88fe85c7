// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/ridehub/internal/middleware"
	"github.com/hitoshi/ridehub/internal/model"
)

// maxRequestBodyBytes はJSONリクエストボディの上限サイズ。
const maxRequestBodyBytes = 1 << 20

// successResponse は成功レスポンスの統一フォーマット。
type successResponse struct {
	Success    bool        `json:"success"`
	StatusCode int         `json:"statusCode"`
	Message    string      `json:"message"`
	Data       interface{} `json:"data"`
	Meta       interface{} `json:"meta,omitempty"`
}

// authProviderResponse は認証プロバイダー紐付けのAPIレスポンス。
type authProviderResponse struct {
	Provider   string `json:"provider"`
	ProviderID string `json:"providerId"`
}

// userResponse はユーザー情報のAPIレスポンス。パスワードは含まない。
type userResponse struct {
	ID         string                 `json:"id"`
	Name       string                 `json:"name"`
	Email      string                 `json:"email"`
	Phone      string                 `json:"phone,omitempty"`
	Picture    string                 `json:"picture,omitempty"`
	Address    string                 `json:"address,omitempty"`
	Role       string                 `json:"role"`
	IsActive   bool                   `json:"isActive"`
	IsDeleted  bool                   `json:"isDeleted"`
	IsVerified bool                   `json:"isVerified"`
	Auths      []authProviderResponse `json:"auths,omitempty"`
	CreatedAt  time.Time              `json:"createdAt"`
	UpdatedAt  time.Time              `json:"updatedAt"`
}

// toUserResponse はドメインのUserをAPIレスポンス型に変換する。
func toUserResponse(u *model.User) *userResponse {
	if u == nil {
		return nil
	}
	resp := &userResponse{
		ID:         u.ID,
		Name:       u.Name,
		Email:      u.Email,
		Phone:      u.Phone,
		Picture:    u.Picture,
		Address:    u.Address,
		Role:       string(u.Role),
		IsActive:   u.IsActive,
		IsDeleted:  u.IsDeleted,
		IsVerified: u.IsVerified,
		CreatedAt:  u.CreatedAt,
		UpdatedAt:  u.UpdatedAt,
	}
	for _, a := range u.Auths {
		resp.Auths = append(resp.Auths, authProviderResponse{
			Provider:   a.Provider,
			ProviderID: a.ProviderID,
		})
	}
	return resp
}

// writeSuccess は統一フォーマットで成功レスポンスを書き込む。
func writeSuccess(w http.ResponseWriter, statusCode int, message string, data, meta interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(successResponse{
		Success:    true,
		StatusCode: statusCode,
		Message:    message,
		Data:       data,
		Meta:       meta,
	})
}

// writeAPIErrorResponse は統一エラーフォーマットでエラーレスポンスを書き込む。
func writeAPIErrorResponse(w http.ResponseWriter, apiErr *model.APIError) {
	middleware.WriteErrorResponse(w, apiErr)
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPレスポンスに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	middleware.WriteInternalServerError(w)
}

// decodeJSONBody はリクエストボディをJSONとしてvに読み込む。
// 解析に失敗した場合はバリデーションエラーを返す。
func decodeJSONBody(w http.ResponseWriter, r *http.Request, v interface{}) *model.APIError {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		return model.NewValidationError("request body must be valid JSON")
	}
	return nil
}
