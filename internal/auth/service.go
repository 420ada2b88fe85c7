// Package auth はパスワード認証、JWTの発行・検証、認証Cookieの書き込みを提供する。
package auth

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/hitoshi/ridehub/internal/metrics"
	"github.com/hitoshi/ridehub/internal/model"
)

// ログイン結果のメトリクスラベル。
const (
	loginOutcomeSuccess = "success"
	loginOutcomeInvalid = "invalid_credentials"
	loginOutcomeBlocked = "blocked"
)

// dummyPassword は未登録メールアドレスでのログイン時に照合するハッシュの元。
const dummyPassword = "ridehub-unknown-user"

// UserFinder は認証に必要なユーザー検索インターフェース。
// repository.UserRepositoryの部分集合として定義する。
type UserFinder interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
}

// Service は認証に関するビジネスロジックを提供する。
type Service struct {
	users   UserFinder
	hasher  PasswordHasher
	tokens  *TokenService
	metrics metrics.MetricsCollector

	dummyOnce sync.Once
	dummyHash string
}

// NewService はServiceを生成する。collectorがnilの場合はメトリクスを記録しない。
func NewService(users UserFinder, hasher PasswordHasher, tokens *TokenService, collector metrics.MetricsCollector) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		users:   users,
		hasher:  hasher,
		tokens:  tokens,
		metrics: collector,
	}
}

// Login はメールアドレスとパスワードを照合し、アクセストークンとリフレッシュトークンを発行する。
// ユーザーの存在有無とパスワード不一致は区別せずINVALID_CREDENTIALSを返す。
func (s *Service) Login(ctx context.Context, email, password string) (*model.User, model.AuthTokens, error) {
	if email == "" || password == "" {
		return nil, model.AuthTokens{}, model.NewValidationError("email and password are required")
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, model.AuthTokens{}, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		// 登録済みの場合と同じコストの照合を行い応答時間を揃える
		s.hasher.Verify(s.unknownUserHash(), password)
		s.metrics.RecordLogin(loginOutcomeInvalid)
		return nil, model.AuthTokens{}, model.NewInvalidCredentialsError()
	}
	if !s.hasher.Verify(user.Password, password) {
		s.metrics.RecordLogin(loginOutcomeInvalid)
		return nil, model.AuthTokens{}, model.NewInvalidCredentialsError()
	}
	if isBlocked(user) {
		s.metrics.RecordLogin(loginOutcomeBlocked)
		slog.Warn("blocked user attempted login",
			slog.String("user_id", user.ID),
		)
		return nil, model.AuthTokens{}, model.NewUserBlockedError()
	}

	tokens, err := s.tokens.IssuePair(user)
	if err != nil {
		return nil, model.AuthTokens{}, err
	}

	s.metrics.RecordLogin(loginOutcomeSuccess)
	slog.Info("user logged in",
		slog.String("user_id", user.ID),
		slog.String("role", string(user.Role)),
	)

	return user, tokens, nil
}

// unknownUserHash は現在のハッシャー設定で生成したダミーハッシュを返す。
func (s *Service) unknownUserHash() string {
	s.dummyOnce.Do(func() {
		h, err := s.hasher.Hash(dummyPassword)
		if err != nil {
			slog.Error("failed to prepare dummy password hash", slog.String("error", err.Error()))
			return
		}
		s.dummyHash = h
	})
	return s.dummyHash
}

// Refresh はリフレッシュトークンを検証し、新しいアクセストークンを発行する。
// ユーザーのロール変更を反映するため、トークンではなく現在のユーザー情報から発行する。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (model.AuthTokens, error) {
	if refreshToken == "" {
		return model.AuthTokens{}, model.NewUnauthorizedError()
	}

	claim, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return model.AuthTokens{}, model.NewUnauthorizedError()
	}

	user, err := s.users.FindByID(ctx, claim.UserID)
	if err != nil {
		return model.AuthTokens{}, fmt.Errorf("failed to find user: %w", err)
	}
	if user == nil {
		return model.AuthTokens{}, model.NewUserNotFoundError()
	}
	if isBlocked(user) {
		return model.AuthTokens{}, model.NewUserBlockedError()
	}

	access, err := s.tokens.IssueAccess(user)
	if err != nil {
		return model.AuthTokens{}, err
	}
	return model.AuthTokens{AccessToken: access}, nil
}

// VerifyAccess はアクセストークンを検証する。認証ミドルウェアから使用する。
func (s *Service) VerifyAccess(token string) (*model.Claim, error) {
	return s.tokens.VerifyAccess(token)
}

func isBlocked(user *model.User) bool {
	return user.IsDeleted || !user.IsActive
}
