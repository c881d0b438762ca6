package security

import "github.com/microcosm-cc/bluemonday"

// TextSanitizerService は外部由来テキストのサニタイズ機能のインターフェースを定義する。
// プロバイダーAPIやWebhookペイロードに含まれる表示名、およびニュース見出しなど、
// そのままUIに表示されうる文字列の保存前に使用する。
type TextSanitizerService interface {
	// Sanitize はテキストからHTMLタグをすべて除去してプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのStrictPolicy（全タグ除去）を保持し、スレッドセーフに動作する。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
// 表示名や見出しにマークアップは不要なため、許可タグなしのStrictPolicyを使用する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストからHTMLタグをすべて除去してプレーンテキストを返す。
func (s *textSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
