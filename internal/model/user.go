// Package model はドメインモデルを定義する。
package model

import "time"

// Role はユーザーのロールを表す。
type Role string

const (
	// RoleRider は乗客ロール。
	RoleRider Role = "RIDER"
	// RoleDriver はドライバーロール。
	RoleDriver Role = "DRIVER"
	// RoleAdmin は管理者ロール。
	RoleAdmin Role = "ADMIN"
	// RoleSuperAdmin はスーパー管理者ロール。ADMINからは更新できない。
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// AllRoles は定義済みの全ロールを返す。
func AllRoles() []Role {
	return []Role{RoleRider, RoleDriver, RoleAdmin, RoleSuperAdmin}
}

// IsValid はロールが定義済みの値かどうかを判定する。
func (r Role) IsValid() bool {
	switch r {
	case RoleRider, RoleDriver, RoleAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// IsSelfScoped は自分自身のプロフィールしか操作できないロールかどうかを判定する。
func (r Role) IsSelfScoped() bool {
	return r == RoleRider || r == RoleDriver
}

// ProviderCredentials はメールアドレス+パスワード認証のプロバイダー名。
const ProviderCredentials = "credentials"

// User はサービス利用ユーザーを表す。
// Passwordはbcryptハッシュで、APIレスポンスには含めない。
type User struct {
	ID         string    `db:"id"`
	Name       string    `db:"name"`
	Email      string    `db:"email"`
	Password   string    `db:"password"`
	Phone      string    `db:"phone"`
	Picture    string    `db:"picture"`
	Address    string    `db:"address"`
	Role       Role      `db:"role"`
	IsActive   bool      `db:"is_active"`
	IsDeleted  bool      `db:"is_deleted"`
	IsVerified bool      `db:"is_verified"`
	CreatedAt  time.Time `db:"created_at"`
	UpdatedAt  time.Time `db:"updated_at"`

	// Auths は認証プロバイダーとの紐付け。作成順に並ぶ。
	Auths []AuthProvider `db:"-"`
}

// AuthProvider はユーザーと認証プロバイダーの紐付け情報を表す。
// credentialsプロバイダーの場合ProviderIDはメールアドレス。
type AuthProvider struct {
	ID         string    `db:"id"`
	UserID     string    `db:"user_id"`
	Provider   string    `db:"provider"`
	ProviderID string    `db:"provider_id"`
	CreatedAt  time.Time `db:"created_at"`
}

// CreateUserPayload はアカウント作成時の入力を表す。
// Email、Password以外のフィールドはそのままユーザーに保存される。
// 自己登録で選べるロールはRIDERとDRIVERのみ。
// Passwordの上限はbcryptが扱える72バイトに合わせる。
type CreateUserPayload struct {
	Name     string `json:"name" validate:"omitempty,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8,max=72"`
	Phone    string `json:"phone" validate:"omitempty,max=20"`
	Picture  string `json:"picture" validate:"omitempty,url"`
	Address  string `json:"address" validate:"omitempty,max=200"`
	Role     Role   `json:"role" validate:"omitempty,oneof=RIDER DRIVER"`
}

// UpdateUserPayload はユーザーの部分更新の入力を表す。
// nilのフィールドは変更しない。パスワードはこの経路では更新できない。
type UpdateUserPayload struct {
	Name       *string `json:"name" validate:"omitempty,max=50"`
	Phone      *string `json:"phone" validate:"omitempty,max=20"`
	Picture    *string `json:"picture" validate:"omitempty,url"`
	Address    *string `json:"address" validate:"omitempty,max=200"`
	Role       *Role   `json:"role" validate:"omitempty,role"`
	IsActive   *bool   `json:"isActive"`
	IsDeleted  *bool   `json:"isDeleted"`
	IsVerified *bool   `json:"isVerified"`
}

// SetsRole はロールの変更を要求しているかどうかを返す。空文字は要求なしとみなす。
func (p *UpdateUserPayload) SetsRole() bool {
	return p.Role != nil && *p.Role != ""
}

// SetsStatusFlag はisActive、isDeleted、isVerifiedのいずれかをtrueにしようとしているかを返す。
// falseへの変更は対象外。
func (p *UpdateUserPayload) SetsStatusFlag() bool {
	return isTrue(p.IsActive) || isTrue(p.IsDeleted) || isTrue(p.IsVerified)
}

func isTrue(b *bool) bool {
	return b != nil && *b
}

// Claim は認証済みリクエストの呼び出し元を表す。
// 認証ミドルウェアがアクセストークンから復元する。
type Claim struct {
	UserID string
	Email  string
	Role   Role
}

// AuthTokens は発行済みのトークンの組を表す。空文字のトークンは未発行を意味する。
type AuthTokens struct {
	AccessToken  string
	RefreshToken string
}
