package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/authgate/internal/account"
	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
)

// AccountServiceInterface はアカウント参照ハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Profile(ctx context.Context, userID string) (*model.Profile, error)
	ActiveSubscription(ctx context.Context, userID string) (*model.Subscription, error)
	Overview(ctx context.Context, user *model.ProviderUser) (*account.Overview, error)
}

// HomeHandler は保護されたホーム画面とアカウントAPIのハンドラー。
// ガードミドルウェアの内側に配置する。
type HomeHandler struct {
	service AccountServiceInterface
}

// NewHomeHandler はHomeHandlerを生成する。
func NewHomeHandler(service AccountServiceInterface) *HomeHandler {
	return &HomeHandler{service: service}
}

// Home はログイン中ユーザーの概要を返す。
// GET /home
func (h *HomeHandler) Home(w http.ResponseWriter, r *http.Request) {
	sess := middleware.SessionFromContext(r.Context())
	if sess == nil || sess.User == nil {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	overview, err := h.service.Overview(r.Context(), sess.User)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, overview)
}

// Profile はプロフィールを返す。
// GET /api/profile
func (h *HomeHandler) Profile(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	p, err := h.service.Profile(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

// Subscription は有効な購読を返す。
// GET /api/subscription
func (h *HomeHandler) Subscription(w http.ResponseWriter, r *http.Request) {
	userID, err := middleware.UserIDFromContext(r.Context())
	if err != nil {
		handleServiceError(w, model.NewUnauthorizedError())
		return
	}

	sub, err := h.service.ActiveSubscription(r.Context(), userID)
	if err != nil {
		handleServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sub)
}
