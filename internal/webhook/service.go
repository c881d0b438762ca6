// Package webhook はプロバイダーのWebhookイベントをUser/Membership行に反映する。
// 配送順序や重複排除の保証はなく、各イベントをベストエフォートで適用する。
// 同一顧客に対する並行配送は行レベルのlast-write-winsで決着する（許容済みの競合）。
package webhook

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kentaro/oddsboard/internal/model"
	"github.com/kentaro/oddsboard/internal/repository"
	"github.com/kentaro/oddsboard/internal/whop"
)

// Sanitizer は外部由来の表示文字列のサニタイズに必要なインターフェース。
type Sanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder はWebhook処理のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordWebhookEvent(eventType string)
	RecordWebhookFailure(eventType string)
}

// Service はWebhookイベントの適用ロジックを提供する。
type Service struct {
	users       repository.UserRepository
	memberships repository.MembershipRepository
	sanitizer   Sanitizer
	metrics     MetricsRecorder
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	users repository.UserRepository,
	memberships repository.MembershipRepository,
	sanitizer Sanitizer,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		users:       users,
		memberships: memberships,
		sanitizer:   sanitizer,
		metrics:     metrics,
		now:         time.Now,
	}
}

// Apply は解析済みのイベントを種別ごとのサブハンドラーに振り分けて適用する。
// 各サブハンドラーの永続化エラーはログに記録するのみで呼び出し元には返さない。
// プロバイダーは2xx応答を期待するため、1件の不正イベントが配送失敗となって
// プロバイダー側のリトライストームを誘発しないようにする。
// 未知のイベント種別はログに記録して無視する。
func (s *Service) Apply(ctx context.Context, event *whop.Event) {
	eventType := event.EventType()
	s.metrics.RecordWebhookEvent(eventType)

	switch eventType {
	case whop.EventAppInstall:
		s.handleInstall(ctx, event)
	case whop.EventOrderCreated, whop.EventOrderUpdated:
		s.handleOrderUpserted(ctx, event)
	case whop.EventOrderCancelled, whop.EventOrderExpired:
		s.handleOrderCancelled(ctx, event)
	default:
		slog.Info("unhandled webhook event", slog.String("type", eventType))
	}
}

// handleInstall はapp.installイベントを適用する。
// 顧客IDをキーにユーザーをUPSERTする。顧客IDがない場合は何もしない。
func (s *Service) handleInstall(ctx context.Context, event *whop.Event) {
	customerID := event.ResolveCustomerID()
	if customerID == "" {
		slog.Warn("app.install webhook without customer id")
		return
	}

	party := event.ResolveParty()
	now := s.now()
	user := &model.User{
		ID:             uuid.New().String(),
		WhopCustomerID: customerID,
		Email:          party.Email,
		Name:           s.installDisplayName(party),
		AvatarURL:      party.ResolveAvatarURL(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if _, err := s.users.Upsert(ctx, user); err != nil {
		s.metrics.RecordWebhookFailure(whop.EventAppInstall)
		slog.Error("failed to upsert user from app.install",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
		return
	}

	slog.Info("user updated from app.install webhook",
		slog.String("customer_id", customerID),
	)
}

// handleOrderUpserted はorder.created/order.updatedイベントを適用する。
// 対応するユーザーが存在しない場合は何もしない。installイベントが先行する
// 前提であり、順序が乱れた配送は黙って落とす（キューやリトライはしない）。
func (s *Service) handleOrderUpserted(ctx context.Context, event *whop.Event) {
	eventType := event.EventType()
	customerID := event.ResolveCustomerID()
	if customerID == "" {
		slog.Warn("order webhook without customer id", slog.String("type", eventType))
		return
	}

	user, err := s.users.FindByWhopCustomerID(ctx, customerID)
	if err != nil {
		s.metrics.RecordWebhookFailure(eventType)
		slog.Error("failed to look up user for order webhook",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
		return
	}
	if user == nil {
		slog.Warn("order webhook for unknown customer, dropping",
			slog.String("customer_id", customerID),
			slog.String("type", eventType),
		)
		return
	}

	planID, status, expiresAt := event.OrderInfo()
	if !model.ValidMembershipStatus(status) {
		status = string(model.MembershipActive)
	}

	membership := &model.Membership{
		ID:              uuid.New().String(),
		UserID:          user.ID,
		WhopPlanID:      planID,
		Status:          model.MembershipStatus(status),
		AccessExpiresAt: expiresAt,
		UpdatedAt:       s.now(),
	}

	if err := s.memberships.Upsert(ctx, membership); err != nil {
		s.metrics.RecordWebhookFailure(eventType)
		slog.Error("failed to upsert membership from order webhook",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
		return
	}

	slog.Info("membership updated from order webhook",
		slog.String("customer_id", customerID),
		slog.String("plan_id", planID),
		slog.String("status", status),
	)
}

// handleOrderCancelled はorder.cancelled/order.expiredイベントを適用する。
// ペイロード内のmembership idは信用せず、ユーザー参照で全行をcanceledにする。
func (s *Service) handleOrderCancelled(ctx context.Context, event *whop.Event) {
	eventType := event.EventType()
	customerID := event.ResolveCustomerID()
	if customerID == "" {
		slog.Warn("cancel webhook without customer id", slog.String("type", eventType))
		return
	}

	user, err := s.users.FindByWhopCustomerID(ctx, customerID)
	if err != nil {
		s.metrics.RecordWebhookFailure(eventType)
		slog.Error("failed to look up user for cancel webhook",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
		return
	}
	if user == nil {
		slog.Warn("cancel webhook for unknown customer, dropping",
			slog.String("customer_id", customerID),
		)
		return
	}

	if err := s.memberships.CancelAllByUserID(ctx, user.ID); err != nil {
		s.metrics.RecordWebhookFailure(eventType)
		slog.Error("failed to cancel memberships from webhook",
			slog.String("customer_id", customerID),
			slog.String("error", err.Error()),
		)
		return
	}

	slog.Info("membership cancelled from webhook",
		slog.String("customer_id", customerID),
	)
}

// installDisplayName はinstallペイロードから表示名を導出する。
// username → name → email の優先順位。すべて空なら空のまま（コールバック時に補完される）。
func (s *Service) installDisplayName(party *whop.Party) string {
	for _, candidate := range []string{party.Username, party.Name, party.Email} {
		if sanitized := s.sanitizer.Sanitize(candidate); sanitized != "" {
			return sanitized
		}
	}
	return ""
}
