// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"time"

	"github.com/kentaro/oddsboard/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByWhopCustomerID は外部顧客IDでユーザーを検索する。見つからない場合はnilを返す。
	FindByWhopCustomerID(ctx context.Context, customerID string) (*model.User, error)

	// Upsert はwhop_customer_idをキーにユーザーをUPSERTする。
	// 既存行がある場合、email/name/avatar_urlは非空の値でのみ上書きする。
	// 保存後の行を返す。
	Upsert(ctx context.Context, user *model.User) (*model.User, error)
}

// MembershipRepository はメンバーシップデータの永続化インターフェース。
// メンバーシップはユーザーごとに最大1行（user_id unique）。
type MembershipRepository interface {
	// FindByUserID は指定ユーザーのメンバーシップを取得する。見つからない場合はnilを返す。
	FindByUserID(ctx context.Context, userID string) (*model.Membership, error)

	// Upsert はuser_idをキーにメンバーシップをUPSERTする。
	Upsert(ctx context.Context, membership *model.Membership) error

	// CancelAllByUserID は指定ユーザーの全メンバーシップをcanceledに更新する。
	// 対象行がなくてもエラーにならない（冪等）。
	CancelAllByUserID(ctx context.Context, userID string) error
}

// SessionRepository はセッションデータの永続化インターフェース。
type SessionRepository interface {
	// Create はセッションを作成する。
	Create(ctx context.Context, session *model.Session) error

	// FindByToken は指定トークンのセッションを取得する。見つからない場合はnilを返す。
	// 期限切れの行もそのまま返す。期限判定と遅延削除は呼び出し元が行う。
	FindByToken(ctx context.Context, token string) (*model.Session, error)

	// DeleteByToken は指定トークンのセッションを削除する。存在しなくてもエラーにならない。
	DeleteByToken(ctx context.Context, token string) error

	// DeleteExpiredBefore は期限がcutoffより前のセッションを一括削除し、削除件数を返す。
	DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// PredictionRepository は予測データの永続化インターフェース。
// 外部オッズAPIが利用できない場合のフォールバックデータソースとして使用する。
// アプリ自身は行を書き込まない。行はオフラインの予測パイプラインや運用投入で
// 供給される前提で、ここでは読み取りと保持期間超過分の削除のみ行う。
type PredictionRepository interface {
	// ListLatest は作成日時の新しい順に予測を取得する。
	ListLatest(ctx context.Context, limit int) ([]model.Prediction, error)

	// DeleteOlderThan は作成日時がcutoffより古い予測を一括削除し、削除件数を返す。
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}
