package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/kentaro/oddsboard/internal/middleware"
	"github.com/kentaro/oddsboard/internal/model"
	"github.com/kentaro/oddsboard/internal/whop"
)

// webhookMaxBodySize はWebhookリクエストボディの最大サイズ（1MB）。
const webhookMaxBodySize = 1 << 20

// WebhookServiceInterface はWebhookハンドラーが必要とするサービスインターフェース。
type WebhookServiceInterface interface {
	Apply(ctx context.Context, event *whop.Event)
}

// WebhookHandler はWhop Webhookを受け付けるHTTPハンドラー。
type WebhookHandler struct {
	service WebhookServiceInterface
}

// NewWebhookHandler はWebhookHandlerを生成する。
func NewWebhookHandler(service WebhookServiceInterface) *WebhookHandler {
	return &WebhookHandler{service: service}
}

// Receive はWebhookイベントを受信して適用する。
// POST /api/webhooks/whop
// ボディの解析に失敗した場合のみ500を返す。イベント単位の永続化失敗は
// ログとメトリクスに記録し、プロバイダーには200を返して再送ループを防ぐ。
func (h *WebhookHandler) Receive(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, webhookMaxBodySize))
	if err != nil {
		slog.Error("failed to read webhook body", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewInvalidBodyError())
		return
	}

	event, err := whop.ParseEvent(body)
	if err != nil {
		slog.Error("failed to parse webhook body", slog.String("error", err.Error()))
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewInvalidBodyError())
		return
	}

	h.service.Apply(r.Context(), event)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"received": true})
}

// Verify はプロバイダーのエンドポイント検証に応答する。
// GET /api/webhooks/whop
func (h *WebhookHandler) Verify(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
