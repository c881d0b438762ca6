package whop

import (
	"encoding/json"
	"fmt"
	"time"
)

// Webhookイベントのファミリー。
// order.created と order.updated、order.cancelled と order.expired はそれぞれ同一に扱う。
const (
	EventAppInstall     = "app.install"
	EventOrderCreated   = "order.created"
	EventOrderUpdated   = "order.updated"
	EventOrderCancelled = "order.cancelled"
	EventOrderExpired   = "order.expired"
)

// Party はWebhookペイロード内のユーザー/顧客オブジェクトを表す。
type Party struct {
	ID              FlexString `json:"id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	Name            string     `json:"name"`
	ProfileImageURL string     `json:"profile_image_url"`
	AvatarURL       string     `json:"avatar_url"`
}

// ResolveAvatarURL はアバターURLの候補から最初の非空値を返す。
func (p *Party) ResolveAvatarURL() string {
	if p.ProfileImageURL != "" {
		return p.ProfileImageURL
	}
	return p.AvatarURL
}

// orderPayload はWebhookペイロード内の注文オブジェクトを表す。
type orderPayload struct {
	PlanID FlexString `json:"plan_id"`
	Plan   struct {
		ID FlexString `json:"id"`
	} `json:"plan"`
	Status          string   `json:"status"`
	ExpiresAt       FlexTime `json:"expires_at"`
	AccessExpiresAt FlexTime `json:"access_expires_at"`
}

// Event はWhopから配送されるWebhookイベントの封筒。
// ペイロードの形はイベントファミリーごとに揺れるため、顧客IDや注文情報は
// 複数の候補位置から最初の非空値を採用する。
type Event struct {
	Type     string `json:"type"`
	EventAlt string `json:"event"`

	CustomerID FlexString `json:"customer_id"`
	UserIDAlt  FlexString `json:"user_id"`
	Customer   *Party     `json:"customer"`
	User       *Party     `json:"user"`

	Order *orderPayload `json:"order"`
	// 注文フィールドはトップレベルに直接現れる場合もある
	PlanID FlexString `json:"plan_id"`
	Plan   struct {
		ID FlexString `json:"id"`
	} `json:"plan"`
	Status          string   `json:"status"`
	ExpiresAt       FlexTime `json:"expires_at"`
	AccessExpiresAt FlexTime `json:"access_expires_at"`
}

// ParseEvent はWebhookボディをイベント封筒として解析する。
func ParseEvent(body []byte) (*Event, error) {
	var event Event
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("failed to parse webhook body: %w", err)
	}
	return &event, nil
}

// EventType はtype → event の順でイベント種別を解決する。
func (e *Event) EventType() string {
	if e.Type != "" {
		return e.Type
	}
	return e.EventAlt
}

// ResolveCustomerID は customer_id → customer.id → user_id の順で顧客IDを解決する。
// どこにも存在しない場合は空文字列を返す。
func (e *Event) ResolveCustomerID() string {
	if e.CustomerID != "" {
		return e.CustomerID.String()
	}
	if e.Customer != nil && e.Customer.ID != "" {
		return e.Customer.ID.String()
	}
	return e.UserIDAlt.String()
}

// ResolveParty は user → customer の順でユーザー情報オブジェクトを返す。
// どちらも存在しない場合は空のPartyを返す。
func (e *Event) ResolveParty() *Party {
	if e.User != nil {
		return e.User
	}
	if e.Customer != nil {
		return e.Customer
	}
	return &Party{}
}

// OrderInfo は order オブジェクトまたはトップレベルから注文情報を解決する。
// statusが空の場合は"active"として扱う。
func (e *Event) OrderInfo() (planID, status string, expiresAt *time.Time) {
	if e.Order != nil {
		planID = e.Order.PlanID.String()
		if planID == "" {
			planID = e.Order.Plan.ID.String()
		}
		status = e.Order.Status
		if ptr := e.Order.ExpiresAt.Ptr(); ptr != nil {
			expiresAt = ptr
		} else {
			expiresAt = e.Order.AccessExpiresAt.Ptr()
		}
	}

	if planID == "" {
		planID = e.PlanID.String()
	}
	if planID == "" {
		planID = e.Plan.ID.String()
	}
	if status == "" {
		status = e.Status
	}
	if expiresAt == nil {
		if ptr := e.ExpiresAt.Ptr(); ptr != nil {
			expiresAt = ptr
		} else {
			expiresAt = e.AccessExpiresAt.Ptr()
		}
	}

	if status == "" {
		status = "active"
	}
	return planID, status, expiresAt
}
