package prediction

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
)

// defaultOddsEndpoint はthe-odds-apiのEPLオッズエンドポイント。
const defaultOddsEndpoint = "https://api.the-odds-api.com/v4/sports/soccer_epl/odds/"

// oddsOutcome はブックメーカーの1アウトカム（チーム名と配当）。
type oddsOutcome struct {
	Name  string  `json:"name"`
	Price float64 `json:"price"`
}

// oddsMarket は1マーケット（h2h等）のアウトカム一覧。
type oddsMarket struct {
	Key      string        `json:"key"`
	Outcomes []oddsOutcome `json:"outcomes"`
}

// oddsBookmaker は1ブックメーカーのマーケット一覧。
type oddsBookmaker struct {
	Key     string       `json:"key"`
	Markets []oddsMarket `json:"markets"`
}

// OddsEvent はオッズAPIの1試合分のレスポンス。
type OddsEvent struct {
	ID           string          `json:"id"`
	SportTitle   string          `json:"sport_title"`
	HomeTeam     string          `json:"home_team"`
	AwayTeam     string          `json:"away_team"`
	CommenceTime string          `json:"commence_time"`
	Bookmakers   []oddsBookmaker `json:"bookmakers"`
}

// Price は指定チーム名のオッズを返す。見つからない場合は0。
// 先頭のブックメーカーの先頭マーケットのみ参照する。
func (e *OddsEvent) Price(name string) float64 {
	if len(e.Bookmakers) == 0 || len(e.Bookmakers[0].Markets) == 0 {
		return 0
	}
	for _, outcome := range e.Bookmakers[0].Markets[0].Outcomes {
		if outcome.Name == name {
			return outcome.Price
		}
	}
	return 0
}

// OddsClient はthe-odds-apiのクライアント。
type OddsClient struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewOddsClient はOddsClientを生成する。
func NewOddsClient(httpClient *http.Client, logger *slog.Logger, apiKey string) *OddsClient {
	return &OddsClient{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   defaultOddsEndpoint,
	}
}

// FetchOdds は直近の試合オッズを取得する。
// リトライは行わない。失敗は呼び出し元がフォールバックデータで吸収する。
func (c *OddsClient) FetchOdds(ctx context.Context) ([]OddsEvent, error) {
	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse odds endpoint: %w", err)
	}

	q := reqURL.Query()
	q.Set("regions", "uk")
	q.Set("markets", "h2h")
	q.Set("oddsFormat", "decimal")
	q.Set("apiKey", c.apiKey)
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create odds request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("odds API request failed", slog.String("error", err.Error()))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read odds response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("odds API returned error status",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("odds API returned status %d", resp.StatusCode)
	}

	var events []OddsEvent
	if err := json.Unmarshal(body, &events); err != nil {
		return nil, fmt.Errorf("failed to parse odds response: %w", err)
	}

	return events, nil
}
