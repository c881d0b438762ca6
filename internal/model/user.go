// Package model はドメインモデルを定義する。
package model

import "time"

// User はサービス利用ユーザーを表す。
// WhopCustomerIDは識別プロバイダーが発行する安定した外部キーで、
// OAuthコールバックまたはWebhookで初めて観測されたときに作成される。
type User struct {
	ID             string
	WhopCustomerID string
	Email          string
	Name           string
	AvatarURL      string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Session はユーザーのログインセッションを表す。
// Tokenは推測不可能な不透明トークンで、Cookieを通じてクライアントに渡される。
type Session struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// SessionInfo はセッション読み取りの結果を表す。
// IsSubscribedは有効なメンバーシップの有無から導出され、保存はされない。
type SessionInfo struct {
	UserID       string `json:"userId"`
	IsSubscribed bool   `json:"isSubscribed"`
	Email        string `json:"email,omitempty"`
	Name         string `json:"name,omitempty"`
	AvatarURL    string `json:"avatarUrl,omitempty"`
}
