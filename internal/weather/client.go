// Package weather は試合時刻付近の天候予報の取得を提供する。
// weatherapi.comのforecastエンドポイントを使用し、試合時刻に最も近い
// 時間帯の予報を返す。ベストエフォートのデータソースであり、取得失敗は
// 呼び出し元がエラーレスポンスに変換する。
package weather

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/kentaro/oddsboard/internal/model"
)

// defaultEndpoint はweatherapi.comのforecastエンドポイント。
const defaultEndpoint = "https://api.weatherapi.com/v1/forecast.json"

// forecastResponse はforecast APIのレスポンス（必要なフィールドのみ）。
type forecastResponse struct {
	Current struct {
		TempF     float64 `json:"temp_f"`
		Condition struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
		WindMph  float64 `json:"wind_mph"`
		Humidity int     `json:"humidity"`
		PrecipIn float64 `json:"precip_in"`
	} `json:"current"`
	Forecast struct {
		ForecastDay []forecastDay `json:"forecastday"`
	} `json:"forecast"`
}

type forecastDay struct {
	Date string `json:"date"`
	Day  struct {
		AvgTempF          float64 `json:"avgtemp_f"`
		MaxWindMph        float64 `json:"maxwind_mph"`
		AvgHumidity       float64 `json:"avghumidity"`
		DailyChanceOfRain int     `json:"daily_chance_of_rain"`
		Condition         struct {
			Text string `json:"text"`
			Icon string `json:"icon"`
		} `json:"condition"`
	} `json:"day"`
	Hour []forecastHour `json:"hour"`
}

type forecastHour struct {
	Time         string  `json:"time"`
	TempF        float64 `json:"temp_f"`
	WindMph      float64 `json:"wind_mph"`
	Humidity     int     `json:"humidity"`
	ChanceOfRain int     `json:"chance_of_rain"`
	Condition    struct {
		Text string `json:"text"`
		Icon string `json:"icon"`
	} `json:"condition"`
}

// Client はweatherapi.comのクライアント。
type Client struct {
	httpClient *http.Client
	logger     *slog.Logger
	apiKey     string
	endpoint   string // テスト用にエンドポイントを差し替え可能
}

// NewClient はClientを生成する。
func NewClient(httpClient *http.Client, logger *slog.Logger, apiKey string) *Client {
	return &Client{
		httpClient: httpClient,
		logger:     logger,
		apiKey:     apiKey,
		endpoint:   defaultEndpoint,
	}
}

// Configured はAPIキーが設定されているかを返す。
func (c *Client) Configured() bool {
	return c.apiKey != ""
}

// FetchGameWeather は指定地点の試合時刻付近の天候予報を取得する。
// 試合日の予報が見つからない場合は現在の天候を、試合時刻に近い時間帯の
// 予報が見つからない場合は日平均を返す。
func (c *Client) FetchGameWeather(ctx context.Context, location string, gameTime time.Time) (*model.GameWeather, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("weather API key not configured")
	}

	reqURL, err := url.Parse(c.endpoint)
	if err != nil {
		return nil, fmt.Errorf("failed to parse weather endpoint: %w", err)
	}

	q := reqURL.Query()
	q.Set("key", c.apiKey)
	q.Set("q", location)
	q.Set("days", "3")
	q.Set("aqi", "no")
	q.Set("alerts", "no")
	reqURL.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create weather request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("weather API request failed", slog.String("error", err.Error()))
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read weather response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		c.logger.Error("weather API returned error status",
			slog.Int("http_status", resp.StatusCode),
		)
		return nil, fmt.Errorf("weather API returned status %d", resp.StatusCode)
	}

	var forecast forecastResponse
	if err := json.Unmarshal(body, &forecast); err != nil {
		return nil, fmt.Errorf("failed to parse weather response: %w", err)
	}

	return buildGameWeather(&forecast, gameTime), nil
}

// buildGameWeather は予報レスポンスから試合時刻に最も近い天候を組み立てる。
func buildGameWeather(forecast *forecastResponse, gameTime time.Time) *model.GameWeather {
	dateStr := gameTime.Format("2006-01-02")

	var day *forecastDay
	for i := range forecast.Forecast.ForecastDay {
		if forecast.Forecast.ForecastDay[i].Date == dateStr {
			day = &forecast.Forecast.ForecastDay[i]
			break
		}
	}

	// 試合日の予報がない場合は現在の天候にフォールバック
	if day == nil {
		rainProbability := 0
		if forecast.Current.PrecipIn > 0 {
			rainProbability = 50
		}
		return &model.GameWeather{
			Temperature:     forecast.Current.TempF,
			Condition:       forecast.Current.Condition.Text,
			Icon:            forecast.Current.Condition.Icon,
			Humidity:        forecast.Current.Humidity,
			WindSpeed:       forecast.Current.WindMph,
			RainProbability: rainProbability,
			ForecastTime:    gameTime.Format(time.RFC3339),
		}
	}

	if hour := nearestHour(day.Hour, gameTime); hour != nil {
		return &model.GameWeather{
			Temperature:     hour.TempF,
			Condition:       hour.Condition.Text,
			Icon:            hour.Condition.Icon,
			Humidity:        hour.Humidity,
			WindSpeed:       hour.WindMph,
			RainProbability: hour.ChanceOfRain,
			ForecastTime:    hour.Time,
		}
	}

	// 時間帯の予報がない場合は日平均にフォールバック
	return &model.GameWeather{
		Temperature:     day.Day.AvgTempF,
		Condition:       day.Day.Condition.Text,
		Icon:            day.Day.Condition.Icon,
		Humidity:        int(day.Day.AvgHumidity),
		WindSpeed:       day.Day.MaxWindMph,
		RainProbability: day.Day.DailyChanceOfRain,
		ForecastTime:    gameTime.Format(time.RFC3339),
	}
}

// nearestHour は試合時刻に最も近い時間帯の予報を返す。候補がない場合はnil。
func nearestHour(hours []forecastHour, gameTime time.Time) *forecastHour {
	gameHour := gameTime.Hour()

	var best *forecastHour
	bestDiff := 25
	for i := range hours {
		parsed, err := time.Parse("2006-01-02 15:04", hours[i].Time)
		if err != nil {
			continue
		}
		diff := gameHour - parsed.Hour()
		if diff < 0 {
			diff = -diff
		}
		if diff < bestDiff {
			best = &hours[i]
			bestDiff = diff
		}
	}
	return best
}
