// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/hitoshi/ridehub/internal/model"
)

// accessTokenCookieName はアクセストークンを保持するCookieの名前。
// auth.AccessTokenCookieと同じ値。
const accessTokenCookieName = "accessToken"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// claimContextKey はリクエストコンテキストに呼び出し元のClaimを格納するためのキー。
var claimContextKey = contextKey("claim")

// TokenVerifier はアクセストークンの検証に必要なインターフェース。
// auth.TokenServiceがこれを満たす。
type TokenVerifier interface {
	VerifyAccess(token string) (*model.Claim, error)
}

// NewAuthMiddleware はAuthorizationヘッダーまたはaccessToken Cookieから
// アクセストークンを読み取り、検証するミドルウェアを返す。
// 検証済みのClaimをリクエストコンテキストに注入する。
// 未認証リクエストには401 Unauthorizedを返す。
func NewAuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// 1. トークンを取得（ヘッダー優先）
			token := accessTokenFromRequest(r)
			if token == "" {
				WriteErrorResponse(w, model.NewUnauthorizedError())
				return
			}

			// 2. トークンを検証
			claim, err := verifier.VerifyAccess(token)
			if err != nil {
				slog.Debug("access token rejected",
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				WriteErrorResponse(w, model.NewUnauthorizedError())
				return
			}

			// 3. Claimをコンテキストに注入
			recordCaller(r.Context(), claim.UserID)
			next.ServeHTTP(w, r.WithContext(ContextWithClaim(r.Context(), *claim)))
		})
	}
}

// RequireRole は呼び出し元のロールが指定ロールのいずれかであることを要求するミドルウェアを返す。
// NewAuthMiddlewareの後に配置する。
func RequireRole(roles ...model.Role) func(next http.Handler) http.Handler {
	allowed := make(map[model.Role]struct{}, len(roles))
	for _, role := range roles {
		allowed[role] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claim, err := ClaimFromContext(r.Context())
			if err != nil {
				WriteErrorResponse(w, model.NewUnauthorizedError())
				return
			}
			if _, ok := allowed[claim.Role]; !ok {
				slog.Warn("role not permitted",
					slog.String("user_id", claim.UserID),
					slog.String("role", string(claim.Role)),
					slog.String("path", r.URL.Path),
				)
				WriteErrorResponse(w, model.NewForbiddenError())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// accessTokenFromRequest は "Authorization: Bearer <token>" またはCookieからトークンを取り出す。
func accessTokenFromRequest(r *http.Request) string {
	if token, ok := bearerToken(r); ok {
		return token
	}
	if cookie, err := r.Cookie(accessTokenCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// bearerToken はAuthorizationヘッダーのBearerトークンを返す。
func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// ClaimFromContext はリクエストコンテキストから呼び出し元のClaimを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func ClaimFromContext(ctx context.Context) (model.Claim, error) {
	claim, ok := ctx.Value(claimContextKey).(model.Claim)
	if !ok || claim.UserID == "" {
		return model.Claim{}, fmt.Errorf("claim not found in context")
	}
	return claim, nil
}

// UserIDFromContext はリクエストコンテキストからユーザーIDを取得する。
func UserIDFromContext(ctx context.Context) (string, error) {
	claim, err := ClaimFromContext(ctx)
	if err != nil {
		return "", fmt.Errorf("user ID not found in context")
	}
	return claim.UserID, nil
}

// ContextWithClaim はコンテキストにClaimを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithClaim(ctx context.Context, claim model.Claim) context.Context {
	return context.WithValue(ctx, claimContextKey, claim)
}
