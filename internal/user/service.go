// Package user はユーザー管理のドメインロジックを提供する。
//
// アカウント作成、一覧取得、単一ユーザー取得、ロールに基づく更新認可を扱う。
package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/ridehub/internal/metrics"
	"github.com/hitoshi/ridehub/internal/model"
	"github.com/hitoshi/ridehub/internal/querybuilder"
	"github.com/hitoshi/ridehub/internal/repository"
	"github.com/hitoshi/ridehub/internal/security"
)

// SearchableFields はsearchTermによる部分一致検索の対象フィールド。
var SearchableFields = []string{"name", "email", "address"}

// PasswordHasher はパスワードのハッシュ化インターフェース。
// auth.BcryptHasherがこれを満たす。
type PasswordHasher interface {
	Hash(password string) (string, error)
}

// PayloadValidator は入力ペイロードの検証インターフェース。
// validation.Validatorがこれを満たす。
type PayloadValidator interface {
	Struct(s interface{}) error
}

// ListResult はユーザー一覧とページネーション情報を表す。
type ListResult struct {
	Data []model.User
	Meta querybuilder.Meta
}

// Service はユーザー管理のサービス層。
type Service struct {
	userRepo  repository.UserRepository
	hasher    PasswordHasher
	validator PayloadValidator
	sanitizer security.ProfileSanitizer
	metrics   metrics.MetricsCollector
	now       func() time.Time
}

// NewService はServiceの新しいインスタンスを生成する。
// collectorがnilの場合はメトリクスを記録しない。
func NewService(
	userRepo repository.UserRepository,
	hasher PasswordHasher,
	validator PayloadValidator,
	sanitizer security.ProfileSanitizer,
	collector metrics.MetricsCollector,
) *Service {
	if collector == nil {
		collector = metrics.NopCollector{}
	}
	return &Service{
		userRepo:  userRepo,
		hasher:    hasher,
		validator: validator,
		sanitizer: sanitizer,
		metrics:   collector,
		now:       time.Now,
	}
}

// CreateUser はメールアドレス+パスワードでアカウントを作成する。
// 同一メールアドレスのユーザーが存在する場合はUSER_ALREADY_EXISTSを返す。
// パスワードはハッシュ化して保存し、credentialsプロバイダーの紐付けを1件作成する。
// ロール未指定の場合はRIDERとなる。
func (s *Service) CreateUser(ctx context.Context, payload model.CreateUserPayload) (*model.User, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}

	role := payload.Role
	if role == "" {
		role = model.RoleRider
	}
	return s.createUser(ctx, payload, role)
}

// createUser は検証済みのペイロードと指定ロールでユーザーを作成する。
func (s *Service) createUser(ctx context.Context, payload model.CreateUserPayload, role model.Role) (*model.User, error) {
	existing, err := s.userRepo.FindByEmail(ctx, payload.Email)
	if err != nil {
		return nil, fmt.Errorf("failed to check existing user: %w", err)
	}
	if existing != nil {
		return nil, model.NewUserAlreadyExistsError()
	}

	hashed, err := s.hasher.Hash(payload.Password)
	if err != nil {
		// バイト数で72を超えるマルチバイト文字列はタグの文字数検証を通過する
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, model.NewValidationError("password must be at most 72 bytes")
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := s.now()
	newUser := &model.User{
		ID:        uuid.New().String(),
		Name:      s.sanitizer.SanitizeText(payload.Name),
		Email:     payload.Email,
		Password:  hashed,
		Phone:     payload.Phone,
		Picture:   payload.Picture,
		Address:   s.sanitizer.SanitizeText(payload.Address),
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
	auths := []model.AuthProvider{{
		ID:         uuid.New().String(),
		UserID:     newUser.ID,
		Provider:   model.ProviderCredentials,
		ProviderID: payload.Email,
		CreatedAt:  now,
	}}

	if err := s.userRepo.CreateWithAuths(ctx, newUser, auths); err != nil {
		// 存在確認と作成の間に同じメールアドレスで作成された場合
		if errors.Is(err, repository.ErrDuplicateEmail) {
			return nil, model.NewUserAlreadyExistsError()
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.metrics.RecordUserCreated(string(newUser.Role))
	slog.Info("user created",
		slog.String("user_id", newUser.ID),
		slog.String("role", string(newUser.Role)),
	)

	return newUser, nil
}

// GetAllUsers はクエリパラメータに従ってユーザー一覧とページネーション情報を返す。
// 一覧の取得と総件数の取得は並行に実行し、どちらかが失敗した場合はエラーを返す。
func (s *Service) GetAllUsers(ctx context.Context, query map[string]string) (*ListResult, error) {
	q := s.userRepo.NewQuery(query).
		Filter().
		Search(SearchableFields).
		Sort().
		Fields().
		Paginate()

	var (
		data []model.User
		meta querybuilder.Meta
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		data, err = q.Build(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		meta, err = q.Meta(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		if errors.Is(err, querybuilder.ErrInvalidParam) {
			return nil, model.NewValidationError(err.Error())
		}
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	return &ListResult{Data: data, Meta: meta}, nil
}

// GetSingleUser は指定IDのユーザーをパスワード抜きで返す。存在しない場合はnilを返す。
func (s *Service) GetSingleUser(ctx context.Context, id string) (*model.User, error) {
	u, err := s.userRepo.FindPublicByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetMe は呼び出し元自身のユーザーをパスワード抜きで返す。存在しない場合はnilを返す。
func (s *Service) GetMe(ctx context.Context, userID string) (*model.User, error) {
	return s.GetSingleUser(ctx, userID)
}

// UpdateUser は呼び出し元のロールに基づいて更新を認可し、部分更新を適用する。
//
// 判定順序:
//  1. RIDER/DRIVERが他人を対象にした場合はFORBIDDEN_OTHER_USER（存在確認より先）
//  2. 対象が存在しない場合はUSER_NOT_FOUND
//  3. ADMINがSUPER_ADMINを対象にした場合はFORBIDDEN_SUPER_ADMIN
//  4. RIDER/DRIVERがロール変更を要求した場合はFORBIDDEN
//  5. RIDER/DRIVERが状態フラグのいずれかをtrueにしようとした場合はFORBIDDEN
//
// いずれかで拒否された場合、更新は一切適用されない。
func (s *Service) UpdateUser(ctx context.Context, userID string, payload model.UpdateUserPayload, claim model.Claim) (*model.User, error) {
	target, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}

	if err := authorizeUpdate(target, userID, &payload, claim); err != nil {
		var apiErr *model.APIError
		if errors.As(err, &apiErr) {
			s.metrics.RecordUpdateDenied(apiErr.Code)
			slog.Warn("user update denied",
				slog.String("target_user_id", userID),
				slog.String("caller_user_id", claim.UserID),
				slog.String("caller_role", string(claim.Role)),
				slog.String("reason", apiErr.Code),
			)
		}
		return nil, err
	}

	if err := s.validator.Struct(payload); err != nil {
		return nil, err
	}
	if payload.Name != nil {
		name := s.sanitizer.SanitizeText(*payload.Name)
		payload.Name = &name
	}
	if payload.Address != nil {
		address := s.sanitizer.SanitizeText(*payload.Address)
		payload.Address = &address
	}

	updated, err := s.userRepo.Update(ctx, userID, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	if updated == nil {
		return nil, model.NewUserNotFoundError()
	}

	slog.Info("user updated",
		slog.String("target_user_id", userID),
		slog.String("caller_user_id", claim.UserID),
	)

	return updated, nil
}

// authorizeUpdate は更新の認可判定を行う。targetは存在しない場合nil。
func authorizeUpdate(target *model.User, userID string, payload *model.UpdateUserPayload, claim model.Claim) error {
	if claim.Role.IsSelfScoped() && userID != claim.UserID {
		return model.NewForbiddenOtherUserError()
	}
	if target == nil {
		return model.NewUserNotFoundError()
	}
	if claim.Role == model.RoleAdmin && target.Role == model.RoleSuperAdmin {
		return model.NewForbiddenSuperAdminError()
	}
	if payload.SetsRole() && claim.Role.IsSelfScoped() {
		return model.NewForbiddenError()
	}
	if payload.SetsStatusFlag() && claim.Role.IsSelfScoped() {
		return model.NewForbiddenError()
	}
	return nil
}

// SeedSuperAdmin は指定メールアドレスのSUPER_ADMINが存在しない場合に作成する。
// 既に同じメールアドレスのユーザーが存在する場合は何もしない。
func (s *Service) SeedSuperAdmin(ctx context.Context, email, password string) (*model.User, bool, error) {
	existing, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		return nil, false, fmt.Errorf("failed to check existing super admin: %w", err)
	}
	if existing != nil {
		return existing, false, nil
	}

	payload := model.CreateUserPayload{
		Name:     "Super Admin",
		Email:    email,
		Password: password,
	}
	if err := s.validator.Struct(payload); err != nil {
		return nil, false, err
	}

	created, err := s.createUser(ctx, payload, model.RoleSuperAdmin)
	if err != nil {
		return nil, false, err
	}

	verified := true
	updated, err := s.userRepo.Update(ctx, created.ID, &model.UpdateUserPayload{IsVerified: &verified})
	if err != nil {
		return nil, false, fmt.Errorf("failed to verify super admin: %w", err)
	}
	if updated != nil {
		created = updated
	}

	return created, true, nil
}
