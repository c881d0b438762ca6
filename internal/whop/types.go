package whop

import (
	"bytes"
	"encoding/json"
	"strconv"
	"time"
)

// FlexString は文字列または数値として届くJSONフィールドを文字列として受け取る。
// Whop APIの顧客IDやプランIDはペイロードによって型が揺れるため、
// どちらでも受け付けて文字列に正規化する。
type FlexString string

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (s *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		*s = ""
		return nil
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		*s = FlexString(str)
		return nil
	}

	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return err
	}
	*s = FlexString(num.String())
	return nil
}

// String は文字列値を返す。
func (s FlexString) String() string {
	return string(s)
}

// FlexTime はRFC3339文字列またはUNIX秒数値として届く時刻フィールドを受け取る。
// 値が存在しない、または解釈できない場合はゼロ値のまま。
type FlexTime struct {
	time.Time
}

// UnmarshalJSON はjson.Unmarshalerを実装する。
func (t *FlexTime) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || string(data) == "null" {
		return nil
	}

	if data[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		if str == "" {
			return nil
		}
		parsed, err := time.Parse(time.RFC3339, str)
		if err != nil {
			// 解釈できない時刻は欠損として扱う（イベント全体は落とさない）
			return nil
		}
		t.Time = parsed
		return nil
	}

	unix, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return nil
	}
	t.Time = time.Unix(unix, 0).UTC()
	return nil
}

// Ptr は値が設定されていれば*time.Timeを、未設定ならnilを返す。
func (t FlexTime) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	tt := t.Time
	return &tt
}

// Profile はWhopのプロフィールエンドポイントのレスポンスを表す。
// v5とv2でフィールド名が揺れるため、候補をすべて受け取る。
type Profile struct {
	ID              FlexString `json:"id"`
	CustomerID      FlexString `json:"customer_id"`
	Email           string     `json:"email"`
	Username        string     `json:"username"`
	Name            string     `json:"name"`
	ProfilePicURL   string     `json:"profile_pic_url"`
	ProfileImageURL string     `json:"profile_image_url"`
	AvatarURL       string     `json:"avatar_url"`
}

// ResolveCustomerID はプロフィールから顧客IDを解決する。id → customer_id の順。
func (p *Profile) ResolveCustomerID() string {
	if p.ID != "" {
		return p.ID.String()
	}
	return p.CustomerID.String()
}

// ResolveAvatarURL はアバターURLの候補から最初の非空値を返す。
func (p *Profile) ResolveAvatarURL() string {
	for _, candidate := range []string{p.ProfilePicURL, p.ProfileImageURL, p.AvatarURL} {
		if candidate != "" {
			return candidate
		}
	}
	return ""
}

// Membership はWhopのメンバーシップエンドポイントのレスポンス1件を表す。
type Membership struct {
	PlanID FlexString `json:"plan_id"`
	Plan   struct {
		ID FlexString `json:"id"`
	} `json:"plan"`
	Status          string   `json:"status"`
	ExpiresAt       FlexTime `json:"expires_at"`
	AccessExpiresAt FlexTime `json:"access_expires_at"`
}

// ResolvePlanID はplan_id → plan.id の順でプランIDを解決する。
func (m *Membership) ResolvePlanID() string {
	if m.PlanID != "" {
		return m.PlanID.String()
	}
	return m.Plan.ID.String()
}

// ResolveExpiresAt はexpires_at → access_expires_at の順で有効期限を解決する。
func (m *Membership) ResolveExpiresAt() *time.Time {
	if ptr := m.ExpiresAt.Ptr(); ptr != nil {
		return ptr
	}
	return m.AccessExpiresAt.Ptr()
}
