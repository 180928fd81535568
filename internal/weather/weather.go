// Package weather fetches multi-day forecasts for a coordinate and normalises
// them into one summary per day. Providers are interchangeable behind Source.
package weather

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"
)

// Condition is a normalised, high-level weather label.
type Condition string

const (
	ConditionUnknown Condition = "unknown"
	ConditionClear   Condition = "clear"
	ConditionCloudy  Condition = "cloudy"
	ConditionRain    Condition = "rain"
	ConditionSnow    Condition = "snow"
	ConditionStorm   Condition = "storm"
	ConditionMist    Condition = "mist"
)

// DailySummary is the per-day view handed to the language model.
type DailySummary struct {
	Date               time.Time `json:"date"` // midnight UTC
	AvgTemperatureC    float64   `json:"avgTemperatureC"`
	AvgWindSpeedMS     float64   `json:"avgWindSpeedMs"`
	AvgPrecipitationMM float64   `json:"avgPrecipitationMm"`
	Condition          Condition `json:"condition"`
}

// Forecast is ordered by Date ascending.
type Forecast []DailySummary

// Source is a forecast provider. Implementations must be safe for concurrent use.
type Source interface {
	Name() string
	Forecast(ctx context.Context, lat, lon float64) (Forecast, error)
}

// Summary renders the forecast as one line per day for prompt embedding.
func (f Forecast) Summary() string {
	if len(f) == 0 {
		return "No forecast data available."
	}
	var sb strings.Builder
	for _, d := range f {
		fmt.Fprintf(&sb, "%s: %s, avg temp %.1f°C, avg wind %.1f m/s, avg precipitation %.1f mm\n",
			d.Date.Format("2006-01-02"), d.Condition, d.AvgTemperatureC, d.AvgWindSpeedMS, d.AvgPrecipitationMM)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// reading is a single provider sample before daily aggregation.
type reading struct {
	at        time.Time
	tempC     float64
	windMS    float64
	precipMM  float64
	condition Condition
}

// aggregateDaily buckets readings by UTC day, averages the numeric fields and
// picks the most frequent condition (earliest seen wins a tie).
func aggregateDaily(readings []reading) Forecast {
	type bucket struct {
		day                time.Time
		temp, wind, precip float64
		n                  int
		counts             map[Condition]int
		order              []Condition
	}

	buckets := make(map[string]*bucket)
	for _, r := range readings {
		ts := r.at.UTC()
		key := ts.Format("2006-01-02")
		b, ok := buckets[key]
		if !ok {
			b = &bucket{
				day:    time.Date(ts.Year(), ts.Month(), ts.Day(), 0, 0, 0, 0, time.UTC),
				counts: make(map[Condition]int),
			}
			buckets[key] = b
		}
		b.temp += r.tempC
		b.wind += r.windMS
		b.precip += r.precipMM
		b.n++
		if b.counts[r.condition] == 0 {
			b.order = append(b.order, r.condition)
		}
		b.counts[r.condition]++
	}

	keys := make([]string, 0, len(buckets))
	for k := range buckets {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make(Forecast, 0, len(keys))
	for _, k := range keys {
		b := buckets[k]
		n := float64(b.n)

		best, bestCount := ConditionUnknown, 0
		for _, c := range b.order {
			if b.counts[c] > bestCount {
				best, bestCount = c, b.counts[c]
			}
		}

		out = append(out, DailySummary{
			Date:               b.day,
			AvgTemperatureC:    b.temp / n,
			AvgWindSpeedMS:     b.wind / n,
			AvgPrecipitationMM: b.precip / n,
			Condition:          best,
		})
	}
	return out
}
