package weather

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// OpenWeatherSource reads the OpenWeatherMap 5-day / 3-hour forecast and
// averages it per day.
type OpenWeatherSource struct {
	provider
	apiKey string
}

// NewOpenWeatherSource returns a Source backed by api.openweathermap.org.
func NewOpenWeatherSource(apiKey string, opts ...Option) *OpenWeatherSource {
	return &OpenWeatherSource{
		provider: newProvider("openweathermap", "https://api.openweathermap.org/data/2.5/forecast", opts),
		apiKey:   apiKey,
	}
}

type openWeatherForecast struct {
	List []struct {
		Dt   int64 `json:"dt"`
		Main struct {
			Temp float64 `json:"temp"`
		} `json:"main"`
		Wind struct {
			Speed float64 `json:"speed"`
		} `json:"wind"`
		Rain struct {
			ThreeH float64 `json:"3h"`
		} `json:"rain"`
		Snow struct {
			ThreeH float64 `json:"3h"`
		} `json:"snow"`
		Weather []struct {
			Main string `json:"main"`
		} `json:"weather"`
	} `json:"list"`
}

// Forecast implements Source.
func (s *OpenWeatherSource) Forecast(ctx context.Context, lat, lon float64) (Forecast, error) {
	if s.apiKey == "" {
		return nil, errors.New("openweathermap: api key is not configured")
	}

	values := url.Values{}
	values.Set("lat", strconv.FormatFloat(lat, 'f', 6, 64))
	values.Set("lon", strconv.FormatFloat(lon, 'f', 6, 64))
	values.Set("units", "metric")
	values.Set("appid", s.apiKey)

	var payload openWeatherForecast
	if err := s.getJSON(ctx, s.baseURL+"?"+values.Encode(), &payload); err != nil {
		return nil, err
	}
	if len(payload.List) == 0 {
		return nil, fmt.Errorf("%s: empty forecast", s.name)
	}

	readings := make([]reading, 0, len(payload.List))
	for _, item := range payload.List {
		label := ""
		if len(item.Weather) > 0 {
			label = item.Weather[0].Main
		}
		readings = append(readings, reading{
			at:        time.Unix(item.Dt, 0).UTC(),
			tempC:     item.Main.Temp,
			windMS:    item.Wind.Speed,
			precipMM:  item.Rain.ThreeH + item.Snow.ThreeH,
			condition: mapOpenWeatherCondition(label),
		})
	}

	return aggregateDaily(readings), nil
}

func mapOpenWeatherCondition(main string) Condition {
	switch main {
	case "Clear":
		return ConditionClear
	case "Clouds":
		return ConditionCloudy
	case "Rain", "Drizzle":
		return ConditionRain
	case "Snow":
		return ConditionSnow
	case "Thunderstorm", "Squall", "Tornado":
		return ConditionStorm
	case "Mist", "Fog", "Haze", "Smoke", "Dust", "Sand", "Ash":
		return ConditionMist
	default:
		return ConditionUnknown
	}
}
