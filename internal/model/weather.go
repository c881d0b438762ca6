package model

// GameWeather は試合時刻付近の天候予報を表す。
type GameWeather struct {
	Temperature     float64 `json:"temperature"`
	Condition       string  `json:"condition"`
	Icon            string  `json:"icon"`
	Humidity        int     `json:"humidity"`
	WindSpeed       float64 `json:"windSpeed"`
	RainProbability int     `json:"rainProbability"`
	ForecastTime    string  `json:"forecastTime"`
}
