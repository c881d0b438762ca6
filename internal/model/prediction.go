package model

import "time"

// PredictionTier は予測の公開範囲を表す。
type PredictionTier string

const (
	// TierFree は無料プランでも閲覧できる予測を示す。
	TierFree PredictionTier = "free"
	// TierPremium は有料メンバー限定の予測を示す。
	TierPremium PredictionTier = "premium"
)

// Odds は1試合の3-wayオッズを表す。
type Odds struct {
	Home float64 `json:"home"`
	Draw float64 `json:"draw"`
	Away float64 `json:"away"`
}

// Prediction は1試合分のAI予測を表す。
// Lockedは未購読ユーザーへのレスポンスでプレミアム予測を伏せたことを示す。
type Prediction struct {
	ID             string         `json:"id"`
	EventID        string         `json:"eventId,omitempty"`
	League         string         `json:"league"`
	Match          string         `json:"match"`
	Kickoff        time.Time      `json:"kickoff"`
	Odds           Odds           `json:"odds"`
	WinProbability float64        `json:"winProbability"`
	Confidence     float64        `json:"confidence"`
	Tier           PredictionTier `json:"tier"`
	Locked         bool           `json:"locked,omitempty"`
}
