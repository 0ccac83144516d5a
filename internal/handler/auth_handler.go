package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/entaku/ourcal/internal/auth"
	"github.com/entaku/ourcal/internal/middleware"
	"github.com/entaku/ourcal/internal/model"
)

// AuthStateInterface は認証ハンドラーが必要とする状態管理インターフェース。
type AuthStateInterface interface {
	SignIn(ctx context.Context, info *auth.ProviderUserInfo) (*model.User, error)
	SignOut(ctx context.Context) error
	CompleteOnboarding(ctx context.Context) error
	CurrentUser() *model.User
	IsOnboarded() bool
	UpdateProfile(ctx context.Context, name string, avatarURL *string) (*model.User, error)
}

// SessionIssuer はセッショントークンの発行と失効のインターフェース。
// auth.Sessionsの部分集合として定義する。
type SessionIssuer interface {
	Issue(userID string) string
	RevokeAll()
}

// AuthHandler は認証関連のHTTPハンドラー。
type AuthHandler struct {
	state     AuthStateInterface
	sessions  SessionIssuer
	providers map[string]auth.Provider
}

// NewAuthHandler はAuthHandlerを生成する。
// providersはプロバイダー名（"google"、"line"）をキーとする。
func NewAuthHandler(state AuthStateInterface, sessions SessionIssuer, providers map[string]auth.Provider) *AuthHandler {
	return &AuthHandler{
		state:     state,
		sessions:  sessions,
		providers: providers,
	}
}

// signInRequest はサインインリクエストのボディ。
type signInRequest struct {
	Code string `json:"code"`
}

// signInResponse はサインイン成功時のレスポンス。
type signInResponse struct {
	Token       string      `json:"token"`
	User        *model.User `json:"user"`
	IsOnboarded bool        `json:"isOnboarded"`
}

// SignIn は認可コードによるサインインを処理する。
// POST /api/v1/auth/{provider}
func (h *AuthHandler) SignIn(providerName string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		provider, ok := h.providers[providerName]
		if !ok {
			middleware.WriteErrorResponse(w, http.StatusNotFound, &model.APIError{
				Code:     "PROVIDER_NOT_SUPPORTED",
				Message:  "このサインイン方法は利用できません。",
				Category: "auth",
				Action:   "別のサインイン方法をお試しください。",
			})
			return
		}

		var req signInRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		if req.Code == "" {
			middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
				Code:     "MISSING_CODE",
				Message:  "認可コードが指定されていません。",
				Category: "auth",
				Action:   "サインインをやり直してください。",
			})
			return
		}

		info, err := provider.ExchangeCode(r.Context(), req.Code)
		if err != nil {
			slog.Error("code exchange failed",
				slog.String("provider", providerName),
				slog.String("error", err.Error()),
			)
			middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
			return
		}

		user, err := h.state.SignIn(r.Context(), info)
		if err != nil {
			handleServiceError(w, err)
			return
		}

		token := h.sessions.Issue(user.ID)
		writeJSON(w, http.StatusOK, signInResponse{
			Token:       token,
			User:        user,
			IsOnboarded: h.state.IsOnboarded(),
		})
	}
}

// SignOut はサインアウトを処理する。全スロットと全セッションを失効させる。
// POST /api/v1/auth/signout
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	if err := h.state.SignOut(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}
	h.sessions.RevokeAll()

	w.WriteHeader(http.StatusNoContent)
}

// CompleteOnboarding はオンボーディング完了を記録する。
// POST /api/v1/auth/onboarding/complete
func (h *AuthHandler) CompleteOnboarding(w http.ResponseWriter, r *http.Request) {
	if err := h.state.CompleteOnboarding(r.Context()); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"isOnboarded": true})
}

// meResponse は現在ユーザーのレスポンス。
type meResponse struct {
	User        *model.User `json:"user"`
	IsOnboarded bool        `json:"isOnboarded"`
}

// Me は現在サインイン中のユーザーを返す。
// GET /api/v1/users/me
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := h.state.CurrentUser()
	if user == nil {
		middleware.WriteErrorResponse(w, http.StatusUnauthorized, model.NewAuthRequiredError())
		return
	}

	writeJSON(w, http.StatusOK, meResponse{
		User:        user,
		IsOnboarded: h.state.IsOnboarded(),
	})
}

// updateProfileRequest はプロフィール更新リクエストのボディ。
type updateProfileRequest struct {
	Name      string  `json:"name"`
	AvatarURL *string `json:"avatarUrl"`
}

// UpdateMe は現在ユーザーのプロフィールを更新する。
// PUT /api/v1/users/me
func (h *AuthHandler) UpdateMe(w http.ResponseWriter, r *http.Request) {
	var req updateProfileRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	user, err := h.state.UpdateProfile(r.Context(), req.Name, req.AvatarURL)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, user)
}
