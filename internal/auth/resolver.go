package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"

	"github.com/kentaro/oddsboard/internal/whop"
)

// pseudoIDLength はトークン由来の擬似顧客IDの長さ。
const pseudoIDLength = 32

// Identity は顧客ID解決の結果を表す。
// Degradedは実プロフィールを取得できずトークン由来の擬似IDに
// フォールバックしたことを示す（認証は成功扱い）。
type Identity struct {
	CustomerID string
	Profile    *whop.Profile // Degradedの場合はnil
	Degraded   bool
}

// IdentityResolver は1つの顧客ID解決手段を表す。
type IdentityResolver interface {
	// Resolve はアクセストークンから顧客IDを解決する。
	Resolve(ctx context.Context, accessToken string) (*Identity, error)
}

// ProfileFetcher はプロフィール取得に必要なプロバイダーAPIのインターフェース。
// whop.Clientの部分集合として定義する。
type ProfileFetcher interface {
	FetchProfile(ctx context.Context, accessToken string) (*whop.Profile, error)
	FetchLegacyProfile(ctx context.Context, accessToken string) (*whop.Profile, error)
}

// primaryProfileResolver はv5プロフィールエンドポイントで解決する。
type primaryProfileResolver struct {
	fetcher ProfileFetcher
}

func (r *primaryProfileResolver) Resolve(ctx context.Context, accessToken string) (*Identity, error) {
	profile, err := r.fetcher.FetchProfile(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("primary profile resolver: %w", err)
	}
	return &Identity{CustomerID: profile.ResolveCustomerID(), Profile: profile}, nil
}

// legacyProfileResolver はv2（レガシー）プロフィールエンドポイントで解決する。
type legacyProfileResolver struct {
	fetcher ProfileFetcher
}

func (r *legacyProfileResolver) Resolve(ctx context.Context, accessToken string) (*Identity, error) {
	profile, err := r.fetcher.FetchLegacyProfile(ctx, accessToken)
	if err != nil {
		return nil, fmt.Errorf("legacy profile resolver: %w", err)
	}
	return &Identity{CustomerID: profile.ResolveCustomerID(), Profile: profile}, nil
}

// tokenPseudoIDResolver はアクセストークンから決定的な擬似顧客IDを導出する。
// プロフィールが一切取得できなくてもログイン自体は成功させるための最終手段。
// 常に成功し、Degraded=trueの結果を返す。
type tokenPseudoIDResolver struct{}

func (r *tokenPseudoIDResolver) Resolve(_ context.Context, accessToken string) (*Identity, error) {
	encoded := base64.StdEncoding.EncodeToString([]byte(accessToken))
	if len(encoded) > pseudoIDLength {
		encoded = encoded[:pseudoIDLength]
	}
	return &Identity{CustomerID: encoded, Degraded: true}, nil
}

// ResolverChain は複数の解決手段を順に試し、最初の成功を採用する。
type ResolverChain struct {
	resolvers []IdentityResolver
}

// NewResolverChain はv5 → v2 → トークン擬似IDの順の解決チェーンを生成する。
func NewResolverChain(fetcher ProfileFetcher) *ResolverChain {
	return &ResolverChain{
		resolvers: []IdentityResolver{
			&primaryProfileResolver{fetcher: fetcher},
			&legacyProfileResolver{fetcher: fetcher},
			&tokenPseudoIDResolver{},
		},
	}
}

// Resolve は各解決手段を順に試す。終端の擬似ID解決は常に成功するため、
// このメソッドがエラーを返すのはチェーンが空の場合のみ。
func (c *ResolverChain) Resolve(ctx context.Context, accessToken string) (*Identity, error) {
	var lastErr error
	for _, resolver := range c.resolvers {
		identity, err := resolver.Resolve(ctx, accessToken)
		if err != nil {
			lastErr = err
			slog.Warn("identity resolver failed, trying next",
				slog.String("error", err.Error()),
			)
			continue
		}
		if identity.CustomerID == "" {
			lastErr = fmt.Errorf("resolver returned empty customer id")
			continue
		}
		return identity, nil
	}
	return nil, fmt.Errorf("all identity resolvers failed: %w", lastErr)
}
