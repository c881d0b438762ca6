package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/kentaro/oddsboard/internal/model"
)

// PostgresUserRepo はPostgreSQLを使用したユーザーリポジトリ。
type PostgresUserRepo struct {
	db *sql.DB
}

// NewPostgresUserRepo はPostgresUserRepoを生成する。
func NewPostgresUserRepo(db *sql.DB) *PostgresUserRepo {
	return &PostgresUserRepo{db: db}
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByID(ctx context.Context, id string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, whop_customer_id, email, name, avatar_url, created_at, updated_at
		 FROM users WHERE id = $1`,
		id,
	)
}

// FindByWhopCustomerID は外部顧客IDでユーザーを検索する。見つからない場合はnilを返す。
func (r *PostgresUserRepo) FindByWhopCustomerID(ctx context.Context, customerID string) (*model.User, error) {
	return r.findOne(ctx,
		`SELECT id, whop_customer_id, email, name, avatar_url, created_at, updated_at
		 FROM users WHERE whop_customer_id = $1`,
		customerID,
	)
}

// Upsert はwhop_customer_idをキーにユーザーをUPSERTする。
// 既存行がある場合、email/name/avatar_urlは非空の値でのみ上書きする。
func (r *PostgresUserRepo) Upsert(ctx context.Context, user *model.User) (*model.User, error) {
	row := r.db.QueryRowContext(ctx,
		`INSERT INTO users (id, whop_customer_id, email, name, avatar_url, created_at, updated_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), NULLIF($5, ''), $6, $6)
		 ON CONFLICT (whop_customer_id) DO UPDATE SET
		   email      = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
		   name       = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
		   avatar_url = COALESCE(NULLIF(EXCLUDED.avatar_url, ''), users.avatar_url),
		   updated_at = EXCLUDED.updated_at
		 RETURNING id, whop_customer_id, email, name, avatar_url, created_at, updated_at`,
		user.ID, user.WhopCustomerID, user.Email, user.Name, user.AvatarURL, user.UpdatedAt,
	)

	saved, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}
	return saved, nil
}

func (r *PostgresUserRepo) findOne(ctx context.Context, query string, arg any) (*model.User, error) {
	user, err := scanUser(r.db.QueryRowContext(ctx, query, arg))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user: %w", err)
	}
	return user, nil
}

// rowScanner は*sql.Rowと*sql.Rowsの共通部分。
type rowScanner interface {
	Scan(dest ...any) error
}

// scanUser はNULL許容カラムを空文字列にマップしてUserを組み立てる。
func scanUser(row rowScanner) (*model.User, error) {
	user := &model.User{}
	var email, name, avatarURL sql.NullString
	if err := row.Scan(
		&user.ID, &user.WhopCustomerID, &email, &name, &avatarURL,
		&user.CreatedAt, &user.UpdatedAt,
	); err != nil {
		return nil, err
	}
	user.Email = email.String
	user.Name = name.String
	user.AvatarURL = avatarURL.String
	return user, nil
}

// compile-time interface check
var _ UserRepository = (*PostgresUserRepo)(nil)
