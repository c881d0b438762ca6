package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/kentaro/oddsboard/internal/model"
)

// --- モック定義 ---

type mockWeatherClient struct {
	configuredFn       func() bool
	fetchGameWeatherFn func(ctx context.Context, location string, gameTime time.Time) (*model.GameWeather, error)
}

func (m *mockWeatherClient) Configured() bool {
	if m.configuredFn != nil {
		return m.configuredFn()
	}
	return true
}

func (m *mockWeatherClient) FetchGameWeather(ctx context.Context, location string, gameTime time.Time) (*model.GameWeather, error) {
	if m.fetchGameWeatherFn != nil {
		return m.fetchGameWeatherFn(ctx, location, gameTime)
	}
	return &model.GameWeather{Condition: "Sunny"}, nil
}

var _ WeatherClientInterface = (*mockWeatherClient)(nil)

// --- テスト ---

func TestWeatherGame_MissingLocation_Returns400(t *testing.T) {
	h := NewWeatherHandler(&mockWeatherClient{})

	req := httptest.NewRequest(http.MethodGet, "/api/weather/game?dateTime=2026-03-01T15:00:00Z", nil)
	rec := httptest.NewRecorder()

	h.Game(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWeatherGame_MissingDateTime_Returns400(t *testing.T) {
	h := NewWeatherHandler(&mockWeatherClient{})

	req := httptest.NewRequest(http.MethodGet, "/api/weather/game?location=London", nil)
	rec := httptest.NewRecorder()

	h.Game(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWeatherGame_InvalidDateTime_Returns400(t *testing.T) {
	h := NewWeatherHandler(&mockWeatherClient{})

	req := httptest.NewRequest(http.MethodGet, "/api/weather/game?location=London&dateTime=tomorrow", nil)
	rec := httptest.NewRecorder()

	h.Game(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
}

func TestWeatherGame_NotConfigured_Returns503(t *testing.T) {
	client := &mockWeatherClient{configuredFn: func() bool { return false }}
	h := NewWeatherHandler(client)

	req := httptest.NewRequest(http.MethodGet, "/api/weather/game?location=London&dateTime=2026-03-01T15:00:00Z", nil)
	rec := httptest.NewRecorder()

	h.Game(rec, req)

	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
	}
}

func TestWeatherGame_UpstreamFailure_Returns502(t *testing.T) {
	client := &mockWeatherClient{
		fetchGameWeatherFn: func(ctx context.Context, location string, gameTime time.Time) (*model.GameWeather, error) {
			return nil, errors.New("upstream 500")
		},
	}
	h := NewWeatherHandler(client)

	req := httptest.NewRequest(http.MethodGet, "/api/weather/game?location=London&dateTime=2026-03-01T15:00:00Z", nil)
	rec := httptest.NewRecorder()

	h.Game(rec, req)

	if rec.Code != http.StatusBadGateway {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
}

func TestWeatherGame_Success_ReturnsForecast(t *testing.T) {
	var gotLocation string
	var gotTime time.Time
	client := &mockWeatherClient{
		fetchGameWeatherFn: func(ctx context.Context, location string, gameTime time.Time) (*model.GameWeather, error) {
			gotLocation = location
			gotTime = gameTime
			return &model.GameWeather{
				Temperature: 12.5,
				Condition:   "Light rain",
				Humidity:    80,
			}, nil
		},
	}
	h := NewWeatherHandler(client)

	req := httptest.NewRequest(http.MethodGet, "/api/weather/game?location=London&dateTime=2026-03-01T15:00:00Z", nil)
	rec := httptest.NewRecorder()

	h.Game(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if gotLocation != "London" {
		t.Errorf("location = %q, want %q", gotLocation, "London")
	}
	want := time.Date(2026, 3, 1, 15, 0, 0, 0, time.UTC)
	if !gotTime.Equal(want) {
		t.Errorf("game time = %v, want %v", gotTime, want)
	}

	var body model.GameWeather
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if body.Condition != "Light rain" {
		t.Errorf("condition = %q", body.Condition)
	}
}
