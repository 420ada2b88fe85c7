package auth

import (
	"net/http"

	"github.com/hitoshi/ridehub/internal/model"
)

// 認証Cookieの名前。
const (
	AccessTokenCookie  = "accessToken"
	RefreshTokenCookie = "refreshToken"
)

// CookieConfig は認証Cookieの属性設定。
type CookieConfig struct {
	Production bool   // trueの場合Secure属性を付与する
	Domain     string // 空の場合はDomain属性を付与しない
}

// CookieWriter は発行済みトークンをHTTP Only Cookieとしてレスポンスに書き込む。
// クロスサイトのフロントエンドから送信されるよう、SameSite=Noneを指定する。
type CookieWriter struct {
	config CookieConfig
}

// NewCookieWriter はCookieWriterを生成する。
func NewCookieWriter(config CookieConfig) *CookieWriter {
	return &CookieWriter{config: config}
}

// SetAuthCookie はtokensのうち空でないトークンをそれぞれCookieに設定する。
// どちらも空の場合は何もしない。
func (c *CookieWriter) SetAuthCookie(w http.ResponseWriter, tokens model.AuthTokens) {
	if tokens.AccessToken != "" {
		http.SetCookie(w, c.cookie(AccessTokenCookie, tokens.AccessToken, 0))
	}
	if tokens.RefreshToken != "" {
		http.SetCookie(w, c.cookie(RefreshTokenCookie, tokens.RefreshToken, 0))
	}
}

// ClearAuthCookies は両方の認証Cookieを失効させる。
func (c *CookieWriter) ClearAuthCookies(w http.ResponseWriter) {
	http.SetCookie(w, c.cookie(AccessTokenCookie, "", -1))
	http.SetCookie(w, c.cookie(RefreshTokenCookie, "", -1))
}

func (c *CookieWriter) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   c.config.Domain,
		MaxAge:   maxAge,
		HttpOnly: true,
		Secure:   c.config.Production,
		SameSite: http.SameSiteNoneMode,
	}
}
