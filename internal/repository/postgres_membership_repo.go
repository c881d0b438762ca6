package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kentaro/oddsboard/internal/model"
)

// PostgresMembershipRepo はPostgreSQLを使用したメンバーシップリポジトリ。
type PostgresMembershipRepo struct {
	db *sql.DB
}

// NewPostgresMembershipRepo はPostgresMembershipRepoを生成する。
func NewPostgresMembershipRepo(db *sql.DB) *PostgresMembershipRepo {
	return &PostgresMembershipRepo{db: db}
}

// FindByUserID は指定ユーザーのメンバーシップを取得する。見つからない場合はnilを返す。
func (r *PostgresMembershipRepo) FindByUserID(ctx context.Context, userID string) (*model.Membership, error) {
	m := &model.Membership{}
	var planID sql.NullString
	var expiresAt sql.NullTime
	err := r.db.QueryRowContext(ctx,
		`SELECT id, user_id, whop_plan_id, status, access_expires_at, updated_at
		 FROM memberships WHERE user_id = $1`,
		userID,
	).Scan(&m.ID, &m.UserID, &planID, &m.Status, &expiresAt, &m.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}

	m.WhopPlanID = planID.String
	if expiresAt.Valid {
		t := expiresAt.Time
		m.AccessExpiresAt = &t
	}
	return m, nil
}

// Upsert はuser_idをキーにメンバーシップをUPSERTする。
func (r *PostgresMembershipRepo) Upsert(ctx context.Context, membership *model.Membership) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO memberships (id, user_id, whop_plan_id, status, access_expires_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), $4, $5, $6)
		 ON CONFLICT (user_id) DO UPDATE SET
		   whop_plan_id      = COALESCE(NULLIF(EXCLUDED.whop_plan_id, ''), memberships.whop_plan_id),
		   status            = EXCLUDED.status,
		   access_expires_at = EXCLUDED.access_expires_at,
		   updated_at        = EXCLUDED.updated_at`,
		membership.ID, membership.UserID, membership.WhopPlanID,
		membership.Status, membership.AccessExpiresAt, membership.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert membership: %w", err)
	}
	return nil
}

// CancelAllByUserID は指定ユーザーの全メンバーシップをcanceledに更新する。
// membership idではなくユーザー参照で一括更新するため、ペイロード内の
// 未知のmembership idに影響されない。
func (r *PostgresMembershipRepo) CancelAllByUserID(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE memberships SET status = $1, updated_at = now() WHERE user_id = $2`,
		model.MembershipCanceled, userID,
	)
	if err != nil {
		return fmt.Errorf("failed to cancel memberships: %w", err)
	}
	return nil
}

// compile-time interface check
var _ MembershipRepository = (*PostgresMembershipRepo)(nil)
