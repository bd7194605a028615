package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/authgate/internal/middleware"
	"github.com/hitoshi/authgate/internal/model"
	"github.com/hitoshi/authgate/internal/signup"
)

// SignupServiceInterface はカスタムサインアップハンドラーが必要とするサービスインターフェース。
type SignupServiceInterface interface {
	Signup(ctx context.Context, req signup.Request) (*signup.Result, error)
}

// SignupHandler はカスタムサインアップのHTTPハンドラー。
type SignupHandler struct {
	service SignupServiceInterface
}

// NewSignupHandler はSignupHandlerを生成する。
func NewSignupHandler(service SignupServiceInterface) *SignupHandler {
	return &SignupHandler{service: service}
}

// CustomSignup はサービスロールでユーザーを作成する。
// POST /custom-signup
// 全メソッドで登録し、POST以外はプロバイダーやDBに触れる前に405を返す。
func (h *SignupHandler) CustomSignup(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		middleware.WriteErrorResponse(w, http.StatusMethodNotAllowed, model.NewMethodNotAllowedError())
		return
	}

	var req signup.Request
	if err := decodeJSON(w, r, &req); err != nil {
		handleServiceError(w, err)
		return
	}

	res, err := h.service.Signup(r.Context(), req)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, res)
}
