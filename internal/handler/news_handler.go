package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kentaro/oddsboard/internal/model"
)

// NewsServiceInterface はニュースハンドラーが必要とするサービスインターフェース。
type NewsServiceInterface interface {
	Headlines(ctx context.Context) []model.NewsItem
}

// NewsHandler はスポーツニュース見出しのHTTPハンドラー。
type NewsHandler struct {
	service NewsServiceInterface
}

// NewNewsHandler はNewsHandlerを生成する。
func NewNewsHandler(service NewsServiceInterface) *NewsHandler {
	return &NewsHandler{service: service}
}

// List は最新のニュース見出しを返す。
// GET /api/news
func (h *NewsHandler) List(w http.ResponseWriter, r *http.Request) {
	items := h.service.Headlines(r.Context())

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"items": items})
}
