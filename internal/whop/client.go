// Package whop はWhopプラットフォームAPIのクライアントとWebhookイベント型を提供する。
// OAuthのトークン交換、プロフィール取得、メンバーシップ取得を含む。
package whop

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const (
	defaultAuthURL          = "https://whop.com/oauth"
	defaultTokenURL         = "https://api.whop.com/v5/oauth/token"
	defaultProfileURL       = "https://api.whop.com/v5/me"
	defaultLegacyProfileURL = "https://api.whop.com/api/v2/me"
	defaultMembershipsURL   = "https://api.whop.com/api/v2/memberships"
)

// Config はWhop APIクライアントの設定。
type Config struct {
	AppID       string
	APIKey      string
	RedirectURI string

	// テスト用にオーバーライド可能なURL
	AuthURL          string
	TokenURL         string
	ProfileURL       string
	LegacyProfileURL string
	MembershipsURL   string
}

// Client はWhopプラットフォームAPIのクライアント。
// プロセス起動時に1回構築し、ハンドラーに注入して使用する。
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient はClientを生成する。
func NewClient(config Config) *Client {
	if config.AuthURL == "" {
		config.AuthURL = defaultAuthURL
	}
	if config.TokenURL == "" {
		config.TokenURL = defaultTokenURL
	}
	if config.ProfileURL == "" {
		config.ProfileURL = defaultProfileURL
	}
	if config.LegacyProfileURL == "" {
		config.LegacyProfileURL = defaultLegacyProfileURL
	}
	if config.MembershipsURL == "" {
		config.MembershipsURL = defaultMembershipsURL
	}
	return &Client{
		config:     config,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

// Configured はOAuthに必要な設定が揃っているかを返す。
func (c *Client) Configured() bool {
	return c.config.AppID != "" && c.config.APIKey != ""
}

// AuthorizationURL はWhopの認可URLを生成する。
func (c *Client) AuthorizationURL(state string) string {
	params := url.Values{
		"client_id":     {c.config.AppID},
		"redirect_uri":  {c.config.RedirectURI},
		"response_type": {"code"},
		"scope":         {"read_user"},
		"state":         {state},
	}
	return c.config.AuthURL + "?" + params.Encode()
}

// tokenResponse はトークンエンドポイントのレスポンス。
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// ExchangeCode は認可コードをアクセストークンに交換する。
// リトライは行わない。失敗した場合ユーザーがログインを再開する。
func (c *Client) ExchangeCode(ctx context.Context, code string) (string, error) {
	data := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {code},
		"client_id":     {c.config.AppID},
		"client_secret": {c.config.APIKey},
		"redirect_uri":  {c.config.RedirectURI},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.TokenURL, strings.NewReader(data.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	body, err := c.do(req)
	if err != nil {
		return "", fmt.Errorf("token exchange failed: %w", err)
	}

	var tokenResp tokenResponse
	if err := json.Unmarshal(body, &tokenResp); err != nil {
		return "", fmt.Errorf("failed to parse token response: %w", err)
	}
	if tokenResp.AccessToken == "" {
		return "", fmt.Errorf("empty access token in response")
	}

	return tokenResp.AccessToken, nil
}

// FetchProfile はv5プロフィールエンドポイントからユーザー情報を取得する。
func (c *Client) FetchProfile(ctx context.Context, accessToken string) (*Profile, error) {
	return c.fetchProfile(ctx, c.config.ProfileURL, accessToken)
}

// FetchLegacyProfile はv2（レガシー）プロフィールエンドポイントからユーザー情報を取得する。
// v5が失敗した場合のフォールバックとして使用する。
func (c *Client) FetchLegacyProfile(ctx context.Context, accessToken string) (*Profile, error) {
	return c.fetchProfile(ctx, c.config.LegacyProfileURL, accessToken)
}

func (c *Client) fetchProfile(ctx context.Context, endpoint, accessToken string) (*Profile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create profile request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("profile fetch failed: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(body, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile response: %w", err)
	}
	if profile.ResolveCustomerID() == "" {
		return nil, fmt.Errorf("empty customer id in profile response")
	}

	return &profile, nil
}

// membershipsEnvelope はメンバーシップ一覧のレスポンス。
// {"data": [...]} 形式とトップレベル配列の両方を受け付ける。
type membershipsEnvelope struct {
	Data []Membership `json:"data"`
}

// FetchActiveMembership はアクセストークンの保有者の有効なメンバーシップを取得する。
// 有効なメンバーシップがない場合はnilを返す（無料プラン）。
func (c *Client) FetchActiveMembership(ctx context.Context, accessToken string) (*Membership, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.config.MembershipsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create memberships request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)
	req.Header.Set("Accept", "application/json")

	body, err := c.do(req)
	if err != nil {
		return nil, fmt.Errorf("memberships fetch failed: %w", err)
	}

	var memberships []Membership
	var envelope membershipsEnvelope
	if err := json.Unmarshal(body, &envelope); err == nil && envelope.Data != nil {
		memberships = envelope.Data
	} else if err := json.Unmarshal(body, &memberships); err != nil {
		return nil, fmt.Errorf("failed to parse memberships response: %w", err)
	}

	for i := range memberships {
		if memberships[i].Status == "active" {
			return &memberships[i], nil
		}
	}
	return nil, nil
}

// do はHTTPリクエストを実行し、2xx以外をエラーとしてボディを返す。
func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	return body, nil
}
