package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/ridehub/internal/middleware"
	"github.com/hitoshi/ridehub/internal/model"
	"github.com/hitoshi/ridehub/internal/querybuilder"
)

// userListResult はユーザー一覧とページネーション情報のレスポンス。
type userListResult struct {
	Users []userResponse
	Meta  querybuilder.Meta
}

// UserServiceInterface はユーザーハンドラーが必要とするサービスインターフェース。
type UserServiceInterface interface {
	// CreateUser はメールアドレス+パスワードでアカウントを作成する。
	CreateUser(ctx context.Context, payload model.CreateUserPayload) (*userResponse, error)
	// GetAllUsers はクエリパラメータに従ってユーザー一覧を返す。
	GetAllUsers(ctx context.Context, query map[string]string) (*userListResult, error)
	// GetSingleUser は指定IDのユーザーを返す。存在しない場合はnilを返す。
	GetSingleUser(ctx context.Context, id string) (*userResponse, error)
	// GetMe は呼び出し元自身のユーザーを返す。存在しない場合はnilを返す。
	GetMe(ctx context.Context, userID string) (*userResponse, error)
	// UpdateUser はロールに基づく認可の上でユーザーを部分更新する。
	UpdateUser(ctx context.Context, userID string, payload model.UpdateUserPayload, claim model.Claim) (*userResponse, error)
}

// UserHandler はユーザー管理のHTTPハンドラー。
type UserHandler struct {
	service UserServiceInterface
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service UserServiceInterface) *UserHandler {
	return &UserHandler{
		service: service,
	}
}

// Register はアカウントを作成する。
// POST /api/v1/user/register
func (h *UserHandler) Register(w http.ResponseWriter, r *http.Request) {
	var payload model.CreateUserPayload
	if apiErr := decodeJSONBody(w, r, &payload); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	created, err := h.service.CreateUser(r.Context(), payload)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusCreated, "User Created Successfully", created, nil)
}

// GetAllUsers はユーザー一覧を返す。
// GET /api/v1/user/all-users?searchTerm=&sort=&fields=&page=&limit=&<field>=
func (h *UserHandler) GetAllUsers(w http.ResponseWriter, r *http.Request) {
	query := make(map[string]string)
	for key, values := range r.URL.Query() {
		if len(values) > 0 {
			query[key] = values[0]
		}
	}

	result, err := h.service.GetAllUsers(r.Context(), query)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "All Users Retrieved Successfully", result.Users, result.Meta)
}

// GetMe は呼び出し元自身のユーザー情報を返す。
// GET /api/v1/user/me
func (h *UserHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	me, err := h.service.GetMe(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if me == nil {
		writeAPIErrorResponse(w, model.NewUserNotFoundError())
		return
	}

	writeSuccess(w, http.StatusOK, "Your Profile Retrieved Successfully", me, nil)
}

// GetSingleUser は指定IDのユーザー情報を返す。
// GET /api/v1/user/{id}
func (h *UserHandler) GetSingleUser(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	found, err := h.service.GetSingleUser(r.Context(), id)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	if found == nil {
		writeAPIErrorResponse(w, model.NewUserNotFoundError())
		return
	}

	writeSuccess(w, http.StatusOK, "User Retrieved Successfully", found, nil)
}

// UpdateUser はユーザーを部分更新する。
// PATCH /api/v1/user/{id}
func (h *UserHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	claim, err := middleware.ClaimFromContext(r.Context())
	if err != nil {
		writeAPIErrorResponse(w, model.NewUnauthorizedError())
		return
	}

	var payload model.UpdateUserPayload
	if apiErr := decodeJSONBody(w, r, &payload); apiErr != nil {
		writeAPIErrorResponse(w, apiErr)
		return
	}

	updated, err := h.service.UpdateUser(r.Context(), chi.URLParam(r, "id"), payload, claim)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeSuccess(w, http.StatusOK, "User Updated Successfully", updated, nil)
}
