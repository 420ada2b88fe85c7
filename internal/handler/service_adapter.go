package handler

import (
	"context"

	"github.com/hitoshi/ridehub/internal/auth"
	"github.com/hitoshi/ridehub/internal/model"
	"github.com/hitoshi/ridehub/internal/user"
)

// UserServiceAdapter は user.Service を UserServiceInterface に適合させるアダプタ。
type UserServiceAdapter struct {
	svc *user.Service
}

// NewUserServiceAdapter はUserServiceAdapterを生成する。
func NewUserServiceAdapter(svc *user.Service) *UserServiceAdapter {
	return &UserServiceAdapter{svc: svc}
}

// CreateUser はアカウントを作成しhandlerレスポンス型で返す。
func (a *UserServiceAdapter) CreateUser(ctx context.Context, payload model.CreateUserPayload) (*userResponse, error) {
	u, err := a.svc.CreateUser(ctx, payload)
	if err != nil {
		return nil, err
	}
	return toUserResponse(u), nil
}

// GetAllUsers はユーザー一覧をhandlerレスポンス型で返す。
func (a *UserServiceAdapter) GetAllUsers(ctx context.Context, query map[string]string) (*userListResult, error) {
	result, err := a.svc.GetAllUsers(ctx, query)
	if err != nil {
		return nil, err
	}

	users := make([]userResponse, len(result.Data))
	for i := range result.Data {
		users[i] = *toUserResponse(&result.Data[i])
	}
	return &userListResult{Users: users, Meta: result.Meta}, nil
}

// GetSingleUser は指定IDのユーザーをhandlerレスポンス型で返す。
func (a *UserServiceAdapter) GetSingleUser(ctx context.Context, id string) (*userResponse, error) {
	u, err := a.svc.GetSingleUser(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserResponse(u), nil
}

// GetMe は呼び出し元自身のユーザーをhandlerレスポンス型で返す。
func (a *UserServiceAdapter) GetMe(ctx context.Context, userID string) (*userResponse, error) {
	u, err := a.svc.GetMe(ctx, userID)
	if err != nil {
		return nil, err
	}
	return toUserResponse(u), nil
}

// UpdateUser はユーザーを部分更新しhandlerレスポンス型で返す。
func (a *UserServiceAdapter) UpdateUser(ctx context.Context, userID string, payload model.UpdateUserPayload, claim model.Claim) (*userResponse, error) {
	u, err := a.svc.UpdateUser(ctx, userID, payload, claim)
	if err != nil {
		return nil, err
	}
	return toUserResponse(u), nil
}

// AuthServiceAdapter は auth.Service を AuthServiceInterface に適合させるアダプタ。
type AuthServiceAdapter struct {
	svc *auth.Service
}

// NewAuthServiceAdapter はAuthServiceAdapterを生成する。
func NewAuthServiceAdapter(svc *auth.Service) *AuthServiceAdapter {
	return &AuthServiceAdapter{svc: svc}
}

// Login はログインしてユーザーをhandlerレスポンス型で返す。
func (a *AuthServiceAdapter) Login(ctx context.Context, email, password string) (*userResponse, model.AuthTokens, error) {
	u, tokens, err := a.svc.Login(ctx, email, password)
	if err != nil {
		return nil, model.AuthTokens{}, err
	}
	return toUserResponse(u), tokens, nil
}

// Refresh は新しいアクセストークンを発行する。
func (a *AuthServiceAdapter) Refresh(ctx context.Context, refreshToken string) (model.AuthTokens, error) {
	return a.svc.Refresh(ctx, refreshToken)
}

// --- compile-time interface checks ---

var _ UserServiceInterface = (*UserServiceAdapter)(nil)
var _ AuthServiceInterface = (*AuthServiceAdapter)(nil)
var _ AuthCookieWriter = (*auth.CookieWriter)(nil)
