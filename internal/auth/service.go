// Package auth はOAuth認証フロー、セッション管理、メンバーシップ照合を提供する。
package auth

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/kentaro/oddsboard/internal/model"
	"github.com/kentaro/oddsboard/internal/repository"
	"github.com/kentaro/oddsboard/internal/whop"
)

// sessionTTL はセッションの有効期間（30日）。
const sessionTTL = 30 * 24 * time.Hour

// コールバック処理の失敗種別。ハンドラーがリダイレクト先のエラーコードに変換する。
var (
	// ErrExchangeFailed は認可コードのトークン交換失敗を示す。
	ErrExchangeFailed = errors.New("code exchange failed")
	// ErrUserSaveFailed はユーザーの保存失敗を示す。
	ErrUserSaveFailed = errors.New("user save failed")
	// ErrSessionFailed はセッションの保存失敗を示す。
	ErrSessionFailed = errors.New("session save failed")
)

// ProviderClient は認証サービスが必要とするプロバイダーAPIのインターフェース。
// whop.Clientの部分集合として定義する。
type ProviderClient interface {
	Configured() bool
	AuthorizationURL(state string) string
	ExchangeCode(ctx context.Context, code string) (string, error)
	FetchActiveMembership(ctx context.Context, accessToken string) (*whop.Membership, error)
}

// CustomerIDResolver は顧客ID解決チェーンのインターフェース。
type CustomerIDResolver interface {
	Resolve(ctx context.Context, accessToken string) (*Identity, error)
}

// Sanitizer は外部由来の表示文字列のサニタイズに必要なインターフェース。
// security.TextSanitizerServiceの部分集合として定義する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// MetricsRecorder は認証フローのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
	RecordDegradedIdentity()
	RecordSessionCreated()
}

// CallbackResult はOAuthコールバック処理の結果を表す。
type CallbackResult struct {
	Session     *model.Session
	AccessToken string
	Degraded    bool
}

// Service は認証とメンバーシップ照合のビジネスロジックを提供する。
type Service struct {
	provider    ProviderClient
	resolver    CustomerIDResolver
	users       repository.UserRepository
	memberships repository.MembershipRepository
	sessions    repository.SessionRepository
	sanitizer   Sanitizer
	metrics     MetricsRecorder
	now         func() time.Time
}

// NewService はServiceを生成する。
func NewService(
	provider ProviderClient,
	resolver CustomerIDResolver,
	users repository.UserRepository,
	memberships repository.MembershipRepository,
	sessions repository.SessionRepository,
	sanitizer Sanitizer,
	metrics MetricsRecorder,
) *Service {
	return &Service{
		provider:    provider,
		resolver:    resolver,
		users:       users,
		memberships: memberships,
		sessions:    sessions,
		sanitizer:   sanitizer,
		metrics:     metrics,
		now:         time.Now,
	}
}

// AuthorizationURL はプロバイダーの認可URLを生成する。
func (s *Service) AuthorizationURL(state string) string {
	return s.provider.AuthorizationURL(state)
}

// Configured はOAuthに必要なプロバイダー設定が揃っているかを返す。
func (s *Service) Configured() bool {
	return s.provider.Configured()
}

// HandleCallback はOAuthコールバックを処理する。
// トークン交換 → 顧客ID解決 → メンバーシップ取得 → User/Membership UPSERT →
// セッション発行の順に進む。ステップをまたぐトランザクションは張らない。
// 途中で失敗した場合の部分書き込みは許容し、再ログインで自己回復する。
func (s *Service) HandleCallback(ctx context.Context, code string) (*CallbackResult, error) {
	// 1. 認可コードをアクセストークンに交換（リトライなし）
	accessToken, err := s.provider.ExchangeCode(ctx, code)
	if err != nil {
		s.metrics.RecordLoginFailure(model.CallbackErrCodeExchangeFailed)
		return nil, fmt.Errorf("%w: %s", ErrExchangeFailed, err)
	}

	// 2. 顧客IDの解決（v5 → v2 → トークン擬似IDのフォールバックチェーン）
	identity, err := s.resolver.Resolve(ctx, accessToken)
	if err != nil {
		// 終端の擬似ID解決は常に成功するため、ここに到達するのは構成ミスのみ
		s.metrics.RecordLoginFailure(model.CallbackErrUserSaveFailed)
		return nil, fmt.Errorf("%w: %s", ErrUserSaveFailed, err)
	}
	if identity.Degraded {
		s.metrics.RecordDegradedIdentity()
		slog.Warn("degraded identity: using token-derived pseudo customer id",
			slog.String("customer_id", identity.CustomerID),
		)
	}

	// 3. メンバーシップ取得（ベストエフォート、失敗しても無料プランとして続行）
	membership, err := s.provider.FetchActiveMembership(ctx, accessToken)
	if err != nil {
		slog.Warn("membership fetch failed, treating as free tier",
			slog.String("error", err.Error()),
		)
		membership = nil
	}

	// 4. ユーザーをUPSERT
	user, err := s.upsertUser(ctx, identity)
	if err != nil {
		s.metrics.RecordLoginFailure(model.CallbackErrUserSaveFailed)
		return nil, fmt.Errorf("%w: %s", ErrUserSaveFailed, err)
	}

	// 5. 有効なメンバーシップが見つかった場合のみUPSERT。
	// 見つからなかった場合は既存行に触れない（以後の変更はWebhookが担う）。
	if membership != nil {
		if err := s.upsertMembership(ctx, user.ID, membership); err != nil {
			// メンバーシップ保存失敗はログインを妨げない
			slog.Error("failed to save membership during callback",
				slog.String("user_id", user.ID),
				slog.String("error", err.Error()),
			)
		}
	}

	// 6. セッションを発行
	session, err := s.createSession(ctx, user.ID)
	if err != nil {
		s.metrics.RecordLoginFailure(model.CallbackErrSessionFailed)
		return nil, fmt.Errorf("%w: %s", ErrSessionFailed, err)
	}

	s.metrics.RecordLoginSuccess()
	slog.Info("oauth callback completed",
		slog.String("user_id", user.ID),
		slog.String("customer_id", identity.CustomerID),
		slog.Bool("degraded", identity.Degraded),
		slog.Bool("membership_found", membership != nil),
	)

	return &CallbackResult{
		Session:     session,
		AccessToken: accessToken,
		Degraded:    identity.Degraded,
	}, nil
}

// GetSession はセッショントークンからセッション情報を取得する。
// セッションが存在しない場合はnilを返す。期限切れのセッションは削除して
// nilを返す（遅延失効）。副作用はこの削除のみ。
func (s *Service) GetSession(ctx context.Context, token string) (*model.SessionInfo, error) {
	if token == "" {
		return nil, nil
	}

	session, err := s.sessions.FindByToken(ctx, token)
	if err != nil {
		return nil, fmt.Errorf("failed to find session: %w", err)
	}
	if session == nil {
		return nil, nil
	}

	now := s.now()
	if session.ExpiresAt.Before(now) {
		if err := s.sessions.DeleteByToken(ctx, token); err != nil {
			slog.Error("failed to delete expired session",
				slog.String("error", err.Error()),
			)
		}
		return nil, nil
	}

	user, err := s.users.FindByID(ctx, session.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to find session user: %w", err)
	}
	if user == nil {
		return nil, nil
	}

	membership, err := s.memberships.FindByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to check membership: %w", err)
	}

	// 行が存在しない場合は無料プラン
	return &model.SessionInfo{
		UserID:       user.ID,
		IsSubscribed: membership != nil && membership.IsActive(now),
		Email:        user.Email,
		Name:         user.Name,
		AvatarURL:    user.AvatarURL,
	}, nil
}

// Logout はセッションを破棄する。セッションが存在しなくてもエラーにならない（冪等）。
func (s *Service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := s.sessions.DeleteByToken(ctx, token); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	slog.Info("user logged out")
	return nil
}

// upsertUser は解決済みの識別情報からユーザーをUPSERTする。
func (s *Service) upsertUser(ctx context.Context, identity *Identity) (*model.User, error) {
	now := s.now()
	user := &model.User{
		ID:             uuid.New().String(),
		WhopCustomerID: identity.CustomerID,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if identity.Profile != nil {
		user.Email = identity.Profile.Email
		user.Name = s.displayName(identity)
		user.AvatarURL = identity.Profile.ResolveAvatarURL()
	} else {
		user.Name = s.displayName(identity)
	}

	return s.users.Upsert(ctx, user)
}

// displayName は表示名を username → name → email → "User "+ID先頭8文字 の
// 優先順位で導出する。外部由来の値はサニタイズする。
func (s *Service) displayName(identity *Identity) string {
	if p := identity.Profile; p != nil {
		for _, candidate := range []string{p.Username, p.Name, p.Email} {
			if sanitized := s.sanitizer.Sanitize(candidate); sanitized != "" {
				return sanitized
			}
		}
	}

	prefix := identity.CustomerID
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return "User " + prefix
}

// upsertMembership はプロバイダーから取得したメンバーシップをUPSERTする。
func (s *Service) upsertMembership(ctx context.Context, userID string, m *whop.Membership) error {
	status := m.Status
	if !model.ValidMembershipStatus(status) {
		status = string(model.MembershipActive)
	}

	return s.memberships.Upsert(ctx, &model.Membership{
		ID:              uuid.New().String(),
		UserID:          userID,
		WhopPlanID:      m.ResolvePlanID(),
		Status:          model.MembershipStatus(status),
		AccessExpiresAt: m.ResolveExpiresAt(),
		UpdatedAt:       s.now(),
	})
}

// createSession はセッションを作成し永続化する。
func (s *Service) createSession(ctx context.Context, userID string) (*model.Session, error) {
	token, err := generateSessionToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate session token: %w", err)
	}

	now := s.now()
	session := &model.Session{
		Token:     token,
		UserID:    userID,
		ExpiresAt: now.Add(sessionTTL),
		CreatedAt: now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	s.metrics.RecordSessionCreated()
	return session, nil
}

// generateSessionToken は暗号的に安全なセッショントークンを生成する。
func generateSessionToken() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
