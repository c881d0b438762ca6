package auth

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// stateTTL はstateトークンの有効期間。OAuth開始からコールバックまでの猶予。
const stateTTL = time.Hour

// ErrStateInvalid は署名不正・改ざん・形式不正のstateを示す。
var ErrStateInvalid = errors.New("invalid oauth state")

// ErrStateExpired は期限切れのstateを示す。
var ErrStateExpired = errors.New("oauth state expired")

// statePayload はstateトークンに埋め込む内容。
type statePayload struct {
	Nonce     string `json:"nonce"`
	Next      string `json:"next"`
	ExpiresAt int64  `json:"exp"`
}

// StateCodec はOAuthのstateパラメータを自己完結型の署名付きトークンとして
// 発行・検証する。Cookieに依存しないため、検証は純粋関数となる。
// トークン形式: base64url(payload JSON) + "." + base64url(HMAC-SHA256(payload))
type StateCodec struct {
	secret []byte
	now    func() time.Time
}

// NewStateCodec はStateCodecを生成する。
func NewStateCodec(secret string) *StateCodec {
	return &StateCodec{
		secret: []byte(secret),
		now:    time.Now,
	}
}

// Issue はログイン後のリダイレクト先nextを埋め込んだstateトークンを発行する。
func (c *StateCodec) Issue(next string) (string, error) {
	nonce := make([]byte, 16)
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	payload, err := json.Marshal(statePayload{
		Nonce:     hex.EncodeToString(nonce),
		Next:      next,
		ExpiresAt: c.now().Add(stateTTL).Unix(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to marshal state payload: %w", err)
	}

	encoded := base64.RawURLEncoding.EncodeToString(payload)
	return encoded + "." + c.sign(payload), nil
}

// Verify はstateトークンを検証し、埋め込まれたnextを返す。
// 署名不一致や形式不正はErrStateInvalid、期限切れはErrStateExpiredを返す。
func (c *StateCodec) Verify(state string) (string, error) {
	encoded, sig, ok := strings.Cut(state, ".")
	if !ok {
		return "", ErrStateInvalid
	}

	payload, err := base64.RawURLEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrStateInvalid
	}

	if !hmac.Equal([]byte(c.sign(payload)), []byte(sig)) {
		return "", ErrStateInvalid
	}

	var decoded statePayload
	if err := json.Unmarshal(payload, &decoded); err != nil {
		return "", ErrStateInvalid
	}

	if c.now().Unix() > decoded.ExpiresAt {
		return "", ErrStateExpired
	}

	return decoded.Next, nil
}

// sign はpayloadのHMAC-SHA256署名をbase64urlで返す。
func (c *StateCodec) sign(payload []byte) string {
	mac := hmac.New(sha256.New, c.secret)
	mac.Write(payload)
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
