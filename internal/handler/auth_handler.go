// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/kentaro/oddsboard/internal/auth"
	"github.com/kentaro/oddsboard/internal/middleware"
	"github.com/kentaro/oddsboard/internal/model"
)

const (
	sessionCookieName     = "session_token"
	accessTokenCookieName = "whop_access_token"

	// defaultNextPath はnextパラメータ未指定・不正時のリダイレクト先。
	defaultNextPath = "/dashboard"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	Configured() bool
	AuthorizationURL(state string) string
	HandleCallback(ctx context.Context, code string) (*auth.CallbackResult, error)
	GetSession(ctx context.Context, token string) (*model.SessionInfo, error)
	Logout(ctx context.Context, token string) error
}

// StateCodecInterface は署名付きstateトークンの発行と検証のインターフェース。
type StateCodecInterface interface {
	Issue(next string) (string, error)
	Verify(state string) (string, error)
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain  string
	CookieSecure  bool
	SessionMaxAge int // セッションCookieの有効期間（秒）
}

// AuthHandler はOAuth認証関連のHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	states  StateCodecInterface
	config  AuthHandlerConfig
	now     func() time.Time
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, states StateCodecInterface, config AuthHandlerConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		states:  states,
		config:  config,
		now:     time.Now,
	}
}

// Init はWhop OAuthフローを開始する。
// GET /oauth/init?next=/dashboard
func (h *AuthHandler) Init(w http.ResponseWriter, r *http.Request) {
	if !h.service.Configured() {
		middleware.WriteErrorResponse(w, http.StatusInternalServerError, model.NewOAuthConfigError())
		return
	}

	next := sanitizeNextPath(nextParam(r))

	// stateはHMAC署名付きの自己完結トークン。Cookieへの保存は不要。
	state, err := h.states.Issue(next)
	if err != nil {
		slog.Error("failed to issue oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	http.Redirect(w, r, h.service.AuthorizationURL(state), http.StatusTemporaryRedirect)
}

// Callback はOAuthコールバックを処理する。
// GET /oauth/callback?code=xxx&state=yyy
// 失敗時は /login?error=<code> へリダイレクトし、ストアへの書き込みは行わない。
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	// 1. 必須パラメータの検証
	code := r.URL.Query().Get("code")
	if code == "" {
		redirectLoginError(w, r, model.CallbackErrMissingCode)
		return
	}

	state := r.URL.Query().Get("state")
	if state == "" {
		redirectLoginError(w, r, model.CallbackErrMissingState)
		return
	}

	// 2. stateの検証（CSRF対策）。期限切れも改ざんも同じ扱い。
	next, err := h.states.Verify(state)
	if err != nil {
		slog.Warn("oauth state verification failed", slog.String("error", err.Error()))
		redirectLoginError(w, r, model.CallbackErrInvalidState)
		return
	}
	next = sanitizeNextPath(next)

	// 3. 認証処理
	result, err := h.service.HandleCallback(r.Context(), code)
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		redirectLoginError(w, r, callbackErrorCode(err))
		return
	}

	// 4. セッションCookieとアクセストークンCookieを設定（HTTP Only）
	h.setAuthCookie(w, sessionCookieName, result.Session.Token)
	h.setAuthCookie(w, accessTokenCookieName, result.AccessToken)

	// 5. キャッシュバスター付きでリダイレクト
	http.Redirect(w, r, appendTimestamp(next, h.now()), http.StatusTemporaryRedirect)
}

// Logout はセッションを破棄する。
// POST|GET /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	cookie, err := r.Cookie(sessionCookieName)
	if err == nil && cookie.Value != "" {
		// セッションをDBから削除。失敗してもCookieはクリアする。
		if logoutErr := h.service.Logout(r.Context(), cookie.Value); logoutErr != nil {
			slog.Error("failed to logout", slog.String("error", logoutErr.Error()))
		}
	}

	h.clearAuthCookie(w, sessionCookieName)
	h.clearAuthCookie(w, accessTokenCookieName)

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"success": true})
}

// Session は現在のセッション情報を返す。
// GET /api/auth/session
// 有効なセッションがない場合は {"session": null} を返す。
func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	cookie, err := r.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		json.NewEncoder(w).Encode(map[string]any{"session": nil})
		return
	}

	info, err := h.service.GetSession(r.Context(), cookie.Value)
	if err != nil {
		slog.Error("failed to get session", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}
	if info == nil {
		json.NewEncoder(w).Encode(map[string]any{"session": nil})
		return
	}

	json.NewEncoder(w).Encode(info)
}

// setAuthCookie は認証関連のHTTP Only Cookieを設定する。
func (h *AuthHandler) setAuthCookie(w http.ResponseWriter, name, value string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   h.config.SessionMaxAge,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// clearAuthCookie は認証関連のCookieを削除する。
func (h *AuthHandler) clearAuthCookie(w http.ResponseWriter, name string) {
	http.SetCookie(w, &http.Cookie{
		Name:     name,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}

// nextParam はログイン後のリダイレクト先パラメータを取得する。
// next と redirect の両方のパラメータ名を受け付ける。
func nextParam(r *http.Request) string {
	if next := r.URL.Query().Get("next"); next != "" {
		return next
	}
	return r.URL.Query().Get("redirect")
}

// sanitizeNextPath はオープンリダイレクトを防ぐため、
// リダイレクト先を同一オリジンの相対パスに制限する。
func sanitizeNextPath(next string) string {
	if next == "" || next[0] != '/' {
		return defaultNextPath
	}
	// //evil.example のようなスキーム相対URLを拒否
	if len(next) > 1 && next[1] == '/' {
		return defaultNextPath
	}
	return next
}

// callbackErrorCode はコールバック処理のエラーをリダイレクト用コードに変換する。
func callbackErrorCode(err error) string {
	switch {
	case errors.Is(err, auth.ErrExchangeFailed):
		return model.CallbackErrCodeExchangeFailed
	case errors.Is(err, auth.ErrUserSaveFailed):
		return model.CallbackErrUserSaveFailed
	default:
		return model.CallbackErrSessionFailed
	}
}

// redirectLoginError はログインページにエラーコード付きでリダイレクトする。
func redirectLoginError(w http.ResponseWriter, r *http.Request, code string) {
	http.Redirect(w, r, "/login?error="+code, http.StatusTemporaryRedirect)
}

// appendTimestamp はリダイレクト先にキャッシュバスター（_t=unixミリ秒）を付与する。
func appendTimestamp(next string, now time.Time) string {
	u, err := url.Parse(next)
	if err != nil {
		u = &url.URL{Path: defaultNextPath}
	}
	q := u.Query()
	q.Set("_t", strconv.FormatInt(now.UnixMilli(), 10))
	u.RawQuery = q.Encode()
	return u.String()
}
