package handler

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kentaro/oddsboard/internal/middleware"
	"github.com/kentaro/oddsboard/internal/model"
)

// WeatherClientInterface は天候ハンドラーが必要とするクライアントインターフェース。
type WeatherClientInterface interface {
	Configured() bool
	FetchGameWeather(ctx context.Context, location string, gameTime time.Time) (*model.GameWeather, error)
}

// WeatherHandler は試合当日の天候予報のHTTPハンドラー。
type WeatherHandler struct {
	client WeatherClientInterface
}

// NewWeatherHandler はWeatherHandlerを生成する。
func NewWeatherHandler(client WeatherClientInterface) *WeatherHandler {
	return &WeatherHandler{client: client}
}

// Game は指定された開催地・開始時刻の天候予報を返す。
// GET /api/weather/game?location=London&dateTime=2026-03-01T15:00:00Z
func (h *WeatherHandler) Game(w http.ResponseWriter, r *http.Request) {
	location := r.URL.Query().Get("location")
	if location == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingParameterError("location"))
		return
	}

	dateTime := r.URL.Query().Get("dateTime")
	if dateTime == "" {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, model.NewMissingParameterError("dateTime"))
		return
	}

	gameTime, err := time.Parse(time.RFC3339, dateTime)
	if err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, &model.APIError{
			Code:     "INVALID_PARAMETER",
			Message:  "dateTimeはRFC3339形式で指定してください。",
			Category: "validation",
			Action:   "リクエストパラメータを確認してください。",
		})
		return
	}

	if !h.client.Configured() {
		middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, model.NewWeatherFailedError())
		return
	}

	weather, err := h.client.FetchGameWeather(r.Context(), location, gameTime)
	if err != nil {
		slog.Error("failed to fetch game weather",
			slog.String("location", location),
			slog.String("error", err.Error()),
		)
		middleware.WriteErrorResponse(w, http.StatusBadGateway, model.NewWeatherFailedError())
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(weather)
}
