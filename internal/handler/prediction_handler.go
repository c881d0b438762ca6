package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/kentaro/oddsboard/internal/middleware"
	"github.com/kentaro/oddsboard/internal/model"
)

// PredictionServiceInterface は予測ハンドラーが必要とするサービスインターフェース。
type PredictionServiceInterface interface {
	List(ctx context.Context, subscribed bool) []model.Prediction
}

// PredictionHandler はAI予測一覧のHTTPハンドラー。
type PredictionHandler struct {
	service PredictionServiceInterface
}

// NewPredictionHandler はPredictionHandlerを生成する。
func NewPredictionHandler(service PredictionServiceInterface) *PredictionHandler {
	return &PredictionHandler{service: service}
}

// List は予測一覧を返す。
// GET /api/predictions
// セッションはベストエフォートで読み取り、未購読の場合はプレミアム予測を
// ロックした状態で返す。認証がなくてもエラーにはしない。
func (h *PredictionHandler) List(w http.ResponseWriter, r *http.Request) {
	subscribed := false
	if info, ok := middleware.SessionFromContext(r.Context()); ok {
		subscribed = info.IsSubscribed
	}

	predictions := h.service.List(r.Context(), subscribed)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"predictions": predictions})
}
