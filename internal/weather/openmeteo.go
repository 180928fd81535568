package weather

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"time"
)

// OpenMeteoSource reads the keyless Open-Meteo daily forecast.
type OpenMeteoSource struct {
	provider
}

// NewOpenMeteoSource returns a Source backed by api.open-meteo.com.
func NewOpenMeteoSource(opts ...Option) *OpenMeteoSource {
	return &OpenMeteoSource{
		provider: newProvider("openmeteo", "https://api.open-meteo.com/v1/forecast", opts),
	}
}

type openMeteoDaily struct {
	Daily struct {
		Time             []string  `json:"time"`
		TemperatureMean  []float64 `json:"temperature_2m_mean"`
		PrecipitationSum []float64 `json:"precipitation_sum"`
		WindSpeedMean    []float64 `json:"wind_speed_10m_mean"`
		WeatherCode      []int     `json:"weather_code"`
	} `json:"daily"`
}

// threeHourSlots converts a daily precipitation total into the mean per
// 3-hour slot that the OpenWeather aggregate reports.
const threeHourSlots = 8

// Forecast implements Source. Open-Meteo reports daily means directly; wind
// is converted from km/h.
func (s *OpenMeteoSource) Forecast(ctx context.Context, lat, lon float64) (Forecast, error) {
	values := url.Values{}
	values.Set("latitude", strconv.FormatFloat(lat, 'f', 6, 64))
	values.Set("longitude", strconv.FormatFloat(lon, 'f', 6, 64))
	values.Set("daily", "temperature_2m_mean,precipitation_sum,wind_speed_10m_mean,weather_code")
	values.Set("timezone", "UTC")

	var payload openMeteoDaily
	if err := s.getJSON(ctx, s.baseURL+"?"+values.Encode(), &payload); err != nil {
		return nil, err
	}

	d := payload.Daily
	n := len(d.Time)
	if n == 0 {
		return nil, fmt.Errorf("%s: empty forecast", s.name)
	}
	if len(d.TemperatureMean) < n || len(d.PrecipitationSum) < n ||
		len(d.WindSpeedMean) < n || len(d.WeatherCode) < n {
		return nil, fmt.Errorf("%s: daily series have mismatched lengths", s.name)
	}

	out := make(Forecast, 0, n)
	for i := 0; i < n; i++ {
		day, err := time.Parse("2006-01-02", d.Time[i])
		if err != nil {
			return nil, fmt.Errorf("%s: parse day %q: %w", s.name, d.Time[i], err)
		}
		out = append(out, DailySummary{
			Date:               day,
			AvgTemperatureC:    d.TemperatureMean[i],
			AvgWindSpeedMS:     d.WindSpeedMean[i] / 3.6,
			AvgPrecipitationMM: d.PrecipitationSum[i] / threeHourSlots,
			Condition:          mapOpenMeteoCondition(d.WeatherCode[i]),
		})
	}
	return out, nil
}

// mapOpenMeteoCondition maps WMO weather codes onto Condition.
func mapOpenMeteoCondition(code int) Condition {
	switch {
	case code == 0:
		return ConditionClear
	case code >= 1 && code <= 3:
		return ConditionCloudy
	case code == 45 || code == 48:
		return ConditionMist
	case (code >= 51 && code <= 67) || (code >= 80 && code <= 82):
		return ConditionRain
	case (code >= 71 && code <= 77) || code == 85 || code == 86:
		return ConditionSnow
	case code >= 95:
		return ConditionStorm
	default:
		return ConditionUnknown
	}
}
