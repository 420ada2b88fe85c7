package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/ridehub/internal/model"
)

// refreshTokenCookieName はリフレッシュトークンを保持するCookieの名前。
const refreshTokenCookieName = "refreshToken"

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	// Login はメールアドレスとパスワードを検証し、トークンを発行する。
	Login(ctx context.Context, email, password string) (*userResponse, model.AuthTokens, error)
	// Refresh はリフレッシュトークンから新しいアクセストークンを発行する。
	Refresh(ctx context.Context, refreshToken string) (model.AuthTokens, error)
}

// AuthCookieWriter は認証Cookieの書き込みインターフェース。
// auth.CookieWriterがこれを満たす。
type AuthCookieWriter interface {
	SetAuthCookie(w http.ResponseWriter, tokens model.AuthTokens)
	ClearAuthCookies(w http.ResponseWriter)
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookies AuthCookieWriter
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookies AuthCookieWriter) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginResponse はログイン成功時のレスポンスデータ。
type loginResponse struct {
	AccessToken  string        `json:"accessToken"`
	RefreshToken string        `json:"refreshToken"`
	User         *userResponse `json:"user"`
}

// refreshResponse はアクセストークン再発行時のレスポンスデータ。
type refreshResponse struct {
	AccessToken string `json:"accessToken"`
}

// Login はメールアドレスとパスワードでログインし、認証Cookieを設定する。
// POST /api/v1/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if apiErr := decodeJSONBody(w, r, &req); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	u, tokens, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.cookies.SetAuthCookie(w, tokens)

	writeSuccess(w, http.StatusOK, "User Logged In Successfully", loginResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		User:         u,
	}, nil)
}

// RefreshToken はrefreshToken Cookieから新しいアクセストークンを発行する。
// POST /api/v1/auth/refresh-token
func (h *AuthHandler) RefreshToken(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(refreshTokenCookieName)
	if err != nil || cookie.Value == "" {
		writeAPIErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	tokens, err := h.service.Refresh(r.Context(), cookie.Value)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	h.cookies.SetAuthCookie(w, tokens)

	writeSuccess(w, http.StatusOK, "New Access Token Retrieved Successfully", refreshResponse{
		AccessToken: tokens.AccessToken,
	}, nil)
}

// Logout は認証Cookieをクリアする。
// POST /api/v1/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	h.cookies.ClearAuthCookies(w)
	writeSuccess(w, http.StatusOK, "User Logged Out Successfully", nil, nil)
}
