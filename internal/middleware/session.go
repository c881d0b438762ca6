// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/kentaro/oddsboard/internal/model"
)

// SessionCookieName はセッショントークンを運ぶCookie名。
const SessionCookieName = "session_token"

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionContextKey はリクエストコンテキストにセッション情報を格納するためのキー。
var sessionContextKey = contextKey("session_info")

// SessionReader はセッションの読み取りに必要なインターフェース。
// auth.Serviceの部分集合として定義する。
type SessionReader interface {
	GetSession(ctx context.Context, token string) (*model.SessionInfo, error)
}

// NewSessionMiddleware はHTTP Only Cookieからセッションを読み取り、
// 有効な場合のみセッション情報をリクエストコンテキストに注入するミドルウェアを返す。
// 未認証リクエストも拒否せず通す。コンテンツの出し分けは各ハンドラーが行う。
func NewSessionMiddleware(reader SessionReader) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cookie, err := r.Cookie(SessionCookieName)
			if err != nil || cookie.Value == "" {
				next.ServeHTTP(w, r)
				return
			}

			info, err := reader.GetSession(r.Context(), cookie.Value)
			if err != nil {
				slog.Error("failed to read session",
					slog.String("error", err.Error()),
				)
				next.ServeHTTP(w, r)
				return
			}
			if info == nil {
				next.ServeHTTP(w, r)
				return
			}

			ctx := context.WithValue(r.Context(), sessionContextKey, info)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionFromContext はリクエストコンテキストからセッション情報を取得する。
// セッションミドルウェアを通過し、かつ有効なセッションがある場合のみ取得できる。
func SessionFromContext(ctx context.Context) (*model.SessionInfo, bool) {
	info, ok := ctx.Value(sessionContextKey).(*model.SessionInfo)
	return info, ok && info != nil
}

// ContextWithSession はコンテキストにセッション情報を注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithSession(ctx context.Context, info *model.SessionInfo) context.Context {
	return context.WithValue(ctx, sessionContextKey, info)
}
