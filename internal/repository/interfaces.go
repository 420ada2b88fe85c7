// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"

	"github.com/hitoshi/ridehub/internal/model"
	"github.com/hitoshi/ridehub/internal/querybuilder"
)

// ErrDuplicateEmail はemailの一意制約違反を表す。
// 事前の存在確認をすり抜けた同時作成はこのエラーで検出される。
var ErrDuplicateEmail = errors.New("duplicate email")

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーをパスワードハッシュ込みで取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindPublicByID は指定IDのユーザーをパスワードハッシュ抜きで取得する。
	// 認証プロバイダーの紐付けも読み込む。見つからない場合はnilを返す。
	FindPublicByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail はメールアドレスでユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// CreateWithAuths はユーザーと認証プロバイダーの紐付けを同一トランザクションで作成する。
	// emailが重複する場合はErrDuplicateEmailを返す。
	CreateWithAuths(ctx context.Context, user *model.User, auths []model.AuthProvider) error

	// Update はpayloadのnilでないフィールドのみを更新し、更新後のユーザーを返す。
	// 見つからない場合はnilを返す。
	Update(ctx context.Context, id string, payload *model.UpdateUserPayload) (*model.User, error)

	// NewQuery は一覧取得用のクエリビルダーを生成する。
	NewQuery(params map[string]string) *querybuilder.Builder[model.User]
}
