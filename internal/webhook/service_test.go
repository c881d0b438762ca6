package webhook

import (
	"context"
	"errors"
	"testing"

	"github.com/kentaro/oddsboard/internal/model"
	"github.com/kentaro/oddsboard/internal/repository"
	"github.com/kentaro/oddsboard/internal/whop"
)

// --- モック定義 ---

type mockUserRepo struct {
	findByIDFn             func(ctx context.Context, id string) (*model.User, error)
	findByWhopCustomerIDFn func(ctx context.Context, customerID string) (*model.User, error)
	upsertFn               func(ctx context.Context, user *model.User) (*model.User, error)
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFn != nil {
		return m.findByIDFn(ctx, id)
	}
	return nil, nil
}

func (m *mockUserRepo) FindByWhopCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	if m.findByWhopCustomerIDFn != nil {
		return m.findByWhopCustomerIDFn(ctx, customerID)
	}
	return nil, nil
}

func (m *mockUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, user)
	}
	return user, nil
}

type mockMembershipRepo struct {
	upsertFn            func(ctx context.Context, membership *model.Membership) error
	cancelAllByUserIDFn func(ctx context.Context, userID string) error
}

func (m *mockMembershipRepo) FindByUserID(_ context.Context, _ string) (*model.Membership, error) {
	return nil, nil
}

func (m *mockMembershipRepo) Upsert(ctx context.Context, membership *model.Membership) error {
	if m.upsertFn != nil {
		return m.upsertFn(ctx, membership)
	}
	return nil
}

func (m *mockMembershipRepo) CancelAllByUserID(ctx context.Context, userID string) error {
	if m.cancelAllByUserIDFn != nil {
		return m.cancelAllByUserIDFn(ctx, userID)
	}
	return nil
}

type passthroughSanitizer struct{}

func (passthroughSanitizer) Sanitize(raw string) string { return raw }

type mockMetrics struct {
	events   []string
	failures []string
}

func (m *mockMetrics) RecordWebhookEvent(eventType string)   { m.events = append(m.events, eventType) }
func (m *mockMetrics) RecordWebhookFailure(eventType string) { m.failures = append(m.failures, eventType) }

// --- compile-time interface checks ---
var _ repository.UserRepository = (*mockUserRepo)(nil)
var _ repository.MembershipRepository = (*mockMembershipRepo)(nil)
var _ Sanitizer = passthroughSanitizer{}
var _ MetricsRecorder = (*mockMetrics)(nil)

func mustParse(t *testing.T, body string) *whop.Event {
	t.Helper()
	event, err := whop.ParseEvent([]byte(body))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	return event
}

// --- テスト ---

func TestApply_AppInstall_UpsertsUser(t *testing.T) {
	ctx := context.Background()

	var upserted *model.User

	users := &mockUserRepo{
		upsertFn: func(ctx context.Context, user *model.User) (*model.User, error) {
			upserted = user
			return user, nil
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(users, &mockMembershipRepo{}, passthroughSanitizer{}, metrics)

	svc.Apply(ctx, mustParse(t, `{
		"type": "app.install",
		"customer_id": "cus_1",
		"user": {"email": "fan@example.com", "username": "oddsfan", "profile_image_url": "https://img.example/a.png"}
	}`))

	if upserted == nil {
		t.Fatal("expected user upsert")
	}
	if upserted.WhopCustomerID != "cus_1" {
		t.Errorf("customer id = %q, want %q", upserted.WhopCustomerID, "cus_1")
	}
	if upserted.Name != "oddsfan" {
		t.Errorf("name = %q, want %q", upserted.Name, "oddsfan")
	}
	if upserted.AvatarURL != "https://img.example/a.png" {
		t.Errorf("avatar = %q", upserted.AvatarURL)
	}
	if len(metrics.events) != 1 || metrics.events[0] != whop.EventAppInstall {
		t.Errorf("events = %v", metrics.events)
	}
}

func TestApply_AppInstall_MissingCustomerID_IsNoOp(t *testing.T) {
	ctx := context.Background()

	upsertCalled := false
	users := &mockUserRepo{
		upsertFn: func(ctx context.Context, user *model.User) (*model.User, error) {
			upsertCalled = true
			return user, nil
		},
	}
	svc := NewService(users, &mockMembershipRepo{}, passthroughSanitizer{}, &mockMetrics{})

	svc.Apply(ctx, mustParse(t, `{"type": "app.install", "user": {"email": "fan@example.com"}}`))

	if upsertCalled {
		t.Error("expected no-op for install without customer id")
	}
}

func TestApply_OrderCreated_KnownCustomer_UpsertsMembership(t *testing.T) {
	ctx := context.Background()

	var upserted *model.Membership

	users := &mockUserRepo{
		findByWhopCustomerIDFn: func(ctx context.Context, customerID string) (*model.User, error) {
			return &model.User{ID: "user-1", WhopCustomerID: customerID}, nil
		},
	}
	memberships := &mockMembershipRepo{
		upsertFn: func(ctx context.Context, membership *model.Membership) error {
			upserted = membership
			return nil
		},
	}
	svc := NewService(users, memberships, passthroughSanitizer{}, &mockMetrics{})

	svc.Apply(ctx, mustParse(t, `{
		"type": "order.created",
		"customer_id": "cus_1",
		"order": {"plan_id": "plan_premium", "status": "trial"}
	}`))

	if upserted == nil {
		t.Fatal("expected membership upsert")
	}
	if upserted.UserID != "user-1" {
		t.Errorf("user id = %q, want %q", upserted.UserID, "user-1")
	}
	if upserted.WhopPlanID != "plan_premium" {
		t.Errorf("plan id = %q", upserted.WhopPlanID)
	}
	if upserted.Status != model.MembershipTrial {
		t.Errorf("status = %q, want %q", upserted.Status, model.MembershipTrial)
	}
}

func TestApply_OrderCreated_UnknownCustomer_IsNoOp(t *testing.T) {
	ctx := context.Background()

	upsertCalled := false
	users := &mockUserRepo{
		findByWhopCustomerIDFn: func(ctx context.Context, customerID string) (*model.User, error) {
			return nil, nil // 未知の顧客
		},
	}
	memberships := &mockMembershipRepo{
		upsertFn: func(ctx context.Context, membership *model.Membership) error {
			upsertCalled = true
			return nil
		},
	}
	svc := NewService(users, memberships, passthroughSanitizer{}, &mockMetrics{})

	svc.Apply(ctx, mustParse(t, `{"type": "order.created", "customer_id": "cus_unknown", "plan_id": "plan_1"}`))

	// 未知の顧客に対してMembership行を作らないこと
	if upsertCalled {
		t.Error("expected no membership upsert for unknown customer")
	}
}

func TestApply_OrderUpdated_UnknownStatus_DefaultsToActive(t *testing.T) {
	ctx := context.Background()

	var upserted *model.Membership

	users := &mockUserRepo{
		findByWhopCustomerIDFn: func(ctx context.Context, customerID string) (*model.User, error) {
			return &model.User{ID: "user-1"}, nil
		},
	}
	memberships := &mockMembershipRepo{
		upsertFn: func(ctx context.Context, membership *model.Membership) error {
			upserted = membership
			return nil
		},
	}
	svc := NewService(users, memberships, passthroughSanitizer{}, &mockMetrics{})

	svc.Apply(ctx, mustParse(t, `{"type": "order.updated", "customer_id": "cus_1", "status": "paid"}`))

	if upserted == nil {
		t.Fatal("expected membership upsert")
	}
	if upserted.Status != model.MembershipActive {
		t.Errorf("status = %q, want %q", upserted.Status, model.MembershipActive)
	}
}

func TestApply_OrderCancelled_CancelsAllForUser(t *testing.T) {
	ctx := context.Background()

	var cancelledUserID string

	users := &mockUserRepo{
		findByWhopCustomerIDFn: func(ctx context.Context, customerID string) (*model.User, error) {
			return &model.User{ID: "user-1"}, nil
		},
	}
	memberships := &mockMembershipRepo{
		cancelAllByUserIDFn: func(ctx context.Context, userID string) error {
			cancelledUserID = userID
			return nil
		},
	}
	svc := NewService(users, memberships, passthroughSanitizer{}, &mockMetrics{})

	svc.Apply(ctx, mustParse(t, `{"type": "order.cancelled", "customer": {"id": "cus_1"}}`))

	if cancelledUserID != "user-1" {
		t.Errorf("cancelled user id = %q, want %q", cancelledUserID, "user-1")
	}
}

func TestApply_OrderExpired_TreatedAsCancellation(t *testing.T) {
	ctx := context.Background()

	cancelCalled := false

	users := &mockUserRepo{
		findByWhopCustomerIDFn: func(ctx context.Context, customerID string) (*model.User, error) {
			return &model.User{ID: "user-1"}, nil
		},
	}
	memberships := &mockMembershipRepo{
		cancelAllByUserIDFn: func(ctx context.Context, userID string) error {
			cancelCalled = true
			return nil
		},
	}
	svc := NewService(users, memberships, passthroughSanitizer{}, &mockMetrics{})

	svc.Apply(ctx, mustParse(t, `{"type": "order.expired", "customer_id": "cus_1"}`))

	if !cancelCalled {
		t.Error("expected order.expired to cancel memberships")
	}
}

func TestApply_UnknownEventType_IsIgnored(t *testing.T) {
	ctx := context.Background()

	svc := NewService(&mockUserRepo{}, &mockMembershipRepo{}, passthroughSanitizer{}, &mockMetrics{})

	// panicせず黙って無視すること
	svc.Apply(ctx, mustParse(t, `{"type": "payment.succeeded"}`))
}

func TestApply_PersistenceError_RecordsFailureMetric(t *testing.T) {
	ctx := context.Background()

	users := &mockUserRepo{
		upsertFn: func(ctx context.Context, user *model.User) (*model.User, error) {
			return nil, errors.New("db error")
		},
	}
	metrics := &mockMetrics{}
	svc := NewService(users, &mockMembershipRepo{}, passthroughSanitizer{}, metrics)

	// Applyはエラーを返さない（プロバイダーのリトライストーム防止）
	svc.Apply(ctx, mustParse(t, `{"type": "app.install", "customer_id": "cus_1"}`))

	if len(metrics.failures) != 1 || metrics.failures[0] != whop.EventAppInstall {
		t.Errorf("failures = %v, want [%s]", metrics.failures, whop.EventAppInstall)
	}
}
