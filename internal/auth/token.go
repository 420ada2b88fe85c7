package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/ridehub/internal/model"
)

// ErrInvalidToken はトークンの署名、有効期限、種別のいずれかが不正な場合のエラー。
var ErrInvalidToken = errors.New("invalid token")

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

// TokenConfig はトークン発行の設定。
type TokenConfig struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
	Issuer        string
}

// tokenClaims はJWTのペイロード。
type tokenClaims struct {
	Email string     `json:"email"`
	Role  model.Role `json:"role"`
	Type  string     `json:"typ"`
	jwt.RegisteredClaims
}

// TokenService はHS256署名のアクセストークンとリフレッシュトークンを発行・検証する。
type TokenService struct {
	config TokenConfig
	now    func() time.Time
}

// NewTokenService はTokenServiceを生成する。
func NewTokenService(config TokenConfig) *TokenService {
	return &TokenService{config: config, now: time.Now}
}

// IssuePair はユーザーのアクセストークンとリフレッシュトークンを発行する。
func (s *TokenService) IssuePair(user *model.User) (model.AuthTokens, error) {
	access, err := s.IssueAccess(user)
	if err != nil {
		return model.AuthTokens{}, err
	}
	refresh, err := s.sign(user, tokenTypeRefresh, s.config.RefreshSecret, s.config.RefreshTTL)
	if err != nil {
		return model.AuthTokens{}, err
	}
	return model.AuthTokens{AccessToken: access, RefreshToken: refresh}, nil
}

// IssueAccess はアクセストークンのみを発行する。
func (s *TokenService) IssueAccess(user *model.User) (string, error) {
	return s.sign(user, tokenTypeAccess, s.config.AccessSecret, s.config.AccessTTL)
}

// VerifyAccess はアクセストークンを検証し、呼び出し元の情報を返す。
func (s *TokenService) VerifyAccess(token string) (*model.Claim, error) {
	return s.verify(token, tokenTypeAccess, s.config.AccessSecret)
}

// VerifyRefresh はリフレッシュトークンを検証し、トークンの持ち主の情報を返す。
func (s *TokenService) VerifyRefresh(token string) (*model.Claim, error) {
	return s.verify(token, tokenTypeRefresh, s.config.RefreshSecret)
}

func (s *TokenService) sign(user *model.User, typ, secret string, ttl time.Duration) (string, error) {
	now := s.now()
	claims := tokenClaims{
		Email: user.Email,
		Role:  user.Role,
		Type:  typ,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			Issuer:    s.config.Issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	if err != nil {
		return "", fmt.Errorf("failed to sign %s token: %w", typ, err)
	}
	return signed, nil
}

func (s *TokenService) verify(token, typ, secret string) (*model.Claim, error) {
	claims := &tokenClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	},
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(s.config.Issuer),
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Name}),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid || claims.Type != typ || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &model.Claim{
		UserID: claims.Subject,
		Email:  claims.Email,
		Role:   claims.Role,
	}, nil
}
