package model

import "time"

// MembershipStatus はメンバーシップの状態を表す。
type MembershipStatus string

const (
	// MembershipActive は有効なメンバーシップを示す。
	MembershipActive MembershipStatus = "active"
	// MembershipExpired は期限切れのメンバーシップを示す。
	MembershipExpired MembershipStatus = "expired"
	// MembershipTrial はトライアル中のメンバーシップを示す。
	MembershipTrial MembershipStatus = "trial"
	// MembershipCanceled は解約済みのメンバーシップを示す。
	MembershipCanceled MembershipStatus = "canceled"
)

// ValidMembershipStatus はstatusが定義済みの値かを返す。
func ValidMembershipStatus(s string) bool {
	switch MembershipStatus(s) {
	case MembershipActive, MembershipExpired, MembershipTrial, MembershipCanceled:
		return true
	}
	return false
}

// Membership はユーザーの外部サブスクリプション状態のローカルキャッシュ。
// ユーザーごとに最大1行（user_id unique）。行が存在しない場合は無料プランを意味する。
type Membership struct {
	ID              string
	UserID          string
	WhopPlanID      string
	Status          MembershipStatus
	AccessExpiresAt *time.Time
	UpdatedAt       time.Time
}

// IsActive はこのメンバーシップが現時点で有効かを返す。
// status=active かつ（無期限 または 期限が未来）の場合にtrue。
func (m *Membership) IsActive(now time.Time) bool {
	if m.Status != MembershipActive {
		return false
	}
	if m.AccessExpiresAt == nil {
		return true
	}
	return m.AccessExpiresAt.After(now)
}
