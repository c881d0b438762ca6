// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// UIに表示する原因カテゴリと対処方法を含む。
type APIError struct {
	Code     string // エラーコード
	Message  string // エラーメッセージ
	Category string // カテゴリ: auth, validation, provider, system
	Action   string // ユーザー向け対処方法
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// OAuthコールバックのリダイレクトで使用するエラーコード。
// /login?error=<code> の形式でクライアントに渡される。
const (
	CallbackErrMissingCode        = "missing_code"
	CallbackErrMissingState       = "missing_state"
	CallbackErrInvalidState       = "invalid_state"
	CallbackErrCodeExchangeFailed = "code_exchange_failed"
	CallbackErrUserSaveFailed     = "user_save_failed"
	CallbackErrSessionFailed      = "session_failed"
)

// 定義済みエラーコード
const (
	ErrCodeMissingParameter = "MISSING_PARAMETER"
	ErrCodeOAuthConfig      = "OAUTH_CONFIG_MISSING"
	ErrCodeWeatherFailed    = "WEATHER_FETCH_FAILED"
	ErrCodeInvalidBody      = "INVALID_BODY"
)

// NewMissingParameterError は必須パラメータ不足エラーを生成する。
func NewMissingParameterError(param string) *APIError {
	return &APIError{
		Code:     ErrCodeMissingParameter,
		Message:  fmt.Sprintf("必須パラメータが指定されていません: %s", param),
		Category: "validation",
		Action:   "リクエストパラメータを確認してください。",
	}
}

// NewOAuthConfigError はOAuth設定不足エラーを生成する。
func NewOAuthConfigError() *APIError {
	return &APIError{
		Code:     ErrCodeOAuthConfig,
		Message:  "OAuthプロバイダーの設定が不足しています。WHOP_API_KEYとWHOP_APP_IDを設定してください。",
		Category: "system",
		Action:   "サーバー管理者に連絡してください。",
	}
}

// NewWeatherFailedError は天候取得失敗エラーを生成する。
func NewWeatherFailedError() *APIError {
	return &APIError{
		Code:     ErrCodeWeatherFailed,
		Message:  "天候データの取得に失敗しました。",
		Category: "provider",
		Action:   "しばらく待ってから再度お試しください。",
	}
}

// NewInvalidBodyError は不正なリクエストボディのエラーを生成する。
func NewInvalidBodyError() *APIError {
	return &APIError{
		Code:     ErrCodeInvalidBody,
		Message:  "リクエストボディの解析に失敗しました。",
		Category: "validation",
		Action:   "JSON形式のボディを送信してください。",
	}
}
