package handler

import (
	"context"
	"net/http"

	"github.com/entaku/ourcal/internal/model"
)

// SettingsStoreInterface は設定ハンドラーが必要とするストアインターフェース。
// storage.Storeの部分集合として定義する。
type SettingsStoreInterface interface {
	Settings(ctx context.Context) (model.AppSettings, error)
	SetSettings(ctx context.Context, settings model.AppSettings) error
}

// SettingsHandler はアプリ設定のHTTPハンドラー。
type SettingsHandler struct {
	store SettingsStoreInterface
}

// NewSettingsHandler はSettingsHandlerを生成する。
func NewSettingsHandler(store SettingsStoreInterface) *SettingsHandler {
	return &SettingsHandler{store: store}
}

// GetSettings は現在のアプリ設定を返す。未保存の場合はデフォルト設定を返す。
// GET /api/v1/settings
func (h *SettingsHandler) GetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := h.store.Settings(r.Context())
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}

// UpdateSettings はアプリ設定を保存する。設定全体を置き換える。
// PUT /api/v1/settings
func (h *SettingsHandler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var settings model.AppSettings
	if !decodeJSON(w, r, &settings) {
		return
	}

	if err := h.store.SetSettings(r.Context(), settings); err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, settings)
}
