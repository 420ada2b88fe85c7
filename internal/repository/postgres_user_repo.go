package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/hitoshi/ridehub/internal/model"
	"github.com/hitoshi/ridehub/internal/querybuilder"
)

// pgUniqueViolation はPostgreSQLの一意制約違反のSQLSTATE。
const pgUniqueViolation = "23505"

const userPublicColumns = `id, name, email, phone, picture, address, role,
	is_active, is_deleted, is_verified, created_at, updated_at`

const userAllColumns = `id, name, email, password, phone, picture, address, role,
	is_active, is_deleted, is_verified, created_at, updated_at`

// UserTable は一覧取得で参照できるusersテーブルのカラム定義。
// passwordは含めないため、一覧のフィルタ・ソート・選択には現れない。
var UserTable = querybuilder.Table{
	Name: "users",
	Key:  "id",
	Columns: map[string]querybuilder.Column{
		"id":         {Name: "id", Kind: querybuilder.KindString, Filterable: true},
		"name":       {Name: "name", Kind: querybuilder.KindString, Filterable: true},
		"email":      {Name: "email", Kind: querybuilder.KindString, Filterable: true},
		"phone":      {Name: "phone", Kind: querybuilder.KindString, Filterable: true},
		"picture":    {Name: "picture", Kind: querybuilder.KindString},
		"address":    {Name: "address", Kind: querybuilder.KindString, Filterable: true},
		"role":       {Name: "role", Kind: querybuilder.KindString, Filterable: true},
		"isActive":   {Name: "is_active", Kind: querybuilder.KindBool, Filterable: true},
		"isDeleted":  {Name: "is_deleted", Kind: querybuilder.KindBool, Filterable: true},
		"isVerified": {Name: "is_verified", Kind: querybuilder.KindBool, Filterable: true},
		"createdAt":  {Name: "created_at", Kind: querybuilder.KindTime},
		"updatedAt":  {Name: "updated_at", Kind: querybuilder.KindTime},
	},
	Order: []string{
		"id", "name", "email", "phone", "picture", "address", "role",
		"isActive", "isDeleted", "isVerified", "createdAt", "updatedAt",
	},
	DefaultSort: "-createdAt",
}

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sqlx.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sqlx.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーをパスワードハッシュ込みで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if !isUUID(id) {
		return nil, nil
	}
	user := &model.User{}
	err := r.db.GetContext(ctx, user,
		`SELECT `+userAllColumns+` FROM users WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return user, nil
}

// FindPublicByID は指定IDのユーザーをパスワードハッシュ抜きで取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindPublicByID(ctx context.Context, id string) (*model.User, error) {
	if !isUUID(id) {
		return nil, nil
	}
	user := &model.User{}
	err := r.db.GetContext(ctx, user,
		`SELECT `+userPublicColumns+` FROM users WHERE id = $1`,
		id,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}

	if user.Auths, err = r.listAuths(ctx, id); err != nil {
		return nil, err
	}
	return user, nil
}

// listAuths はユーザーに紐づく認証プロバイダーを作成順に取得する。
func (r *PostgresUserRepo) listAuths(ctx context.Context, userID string) ([]model.AuthProvider, error) {
	auths := []model.AuthProvider{}
	err := r.db.SelectContext(ctx, &auths,
		`SELECT id, user_id, provider, provider_id, created_at
		 FROM auth_providers
		 WHERE user_id = $1
		 ORDER BY created_at, id`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list auth providers: %w", err)
	}
	return auths, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。大文字小文字は区別する。
func (r *PostgresUserRepo) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	user := &model.User{}
	err := r.db.GetContext(ctx, user,
		`SELECT `+userAllColumns+` FROM users WHERE email = $1`,
		email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return user, nil
}

// CreateWithAuths はユーザーと認証プロバイダーの紐付けを同一トランザクションで作成する。
func (r *PostgresUserRepo) CreateWithAuths(ctx context.Context, user *model.User, auths []model.AuthProvider) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	// ユーザーを作成
	_, err = tx.NamedExecContext(ctx,
		`INSERT INTO users (id, name, email, password, phone, picture, address, role,
		                    is_active, is_deleted, is_verified, created_at, updated_at)
		 VALUES (:id, :name, :email, :password, :phone, :picture, :address, :role,
		         :is_active, :is_deleted, :is_verified, :created_at, :updated_at)`,
		user,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateEmail
		}
		return fmt.Errorf("failed to insert user: %w", err)
	}

	// 認証プロバイダーの紐付けを作成
	for i := range auths {
		_, err = tx.NamedExecContext(ctx,
			`INSERT INTO auth_providers (id, user_id, provider, provider_id, created_at)
			 VALUES (:id, :user_id, :provider, :provider_id, :created_at)`,
			&auths[i],
		)
		if err != nil {
			return fmt.Errorf("failed to insert auth provider: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}

	user.Auths = auths
	return nil
}

// Update はpayloadのnilでないフィールドのみを更新し、更新後のユーザーを
// 認証プロバイダー付きで返す。更新対象のフィールドが無い場合は現在の値を返す。
func (r *PostgresUserRepo) Update(ctx context.Context, id string, payload *model.UpdateUserPayload) (*model.User, error) {
	if !isUUID(id) {
		return nil, nil
	}

	sets, args := updateAssignments(payload)
	if len(sets) == 0 {
		return r.FindPublicByID(ctx, id)
	}

	args = append(args, id)
	query := fmt.Sprintf(
		`UPDATE users SET %s, updated_at = now() WHERE id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), userPublicColumns,
	)

	user := &model.User{}
	err := r.db.GetContext(ctx, user, query, args...)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}

	if user.Auths, err = r.listAuths(ctx, id); err != nil {
		return nil, err
	}
	return user, nil
}

// NewQuery は一覧取得用のクエリビルダーを生成する。
func (r *PostgresUserRepo) NewQuery(params map[string]string) *querybuilder.Builder[model.User] {
	return querybuilder.New[model.User](r.db, UserTable, params)
}

// updateAssignments はpayloadからSET句の要素とプレースホルダ引数を組み立てる。
func updateAssignments(p *model.UpdateUserPayload) ([]string, []interface{}) {
	var sets []string
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if p.Name != nil {
		add("name", *p.Name)
	}
	if p.Phone != nil {
		add("phone", *p.Phone)
	}
	if p.Picture != nil {
		add("picture", *p.Picture)
	}
	if p.Address != nil {
		add("address", *p.Address)
	}
	if p.Role != nil && *p.Role != "" {
		add("role", string(*p.Role))
	}
	if p.IsActive != nil {
		add("is_active", *p.IsActive)
	}
	if p.IsDeleted != nil {
		add("is_deleted", *p.IsDeleted)
	}
	if p.IsVerified != nil {
		add("is_verified", *p.IsVerified)
	}

	return sets, args
}

// isUUID はIDがUUID形式かどうかを判定する。形式外のIDは存在しないユーザーとして扱う。
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// isUniqueViolation はエラーが一意制約違反かどうかを判定する。
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pgUniqueViolation
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
