package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"
	"time"

	"github.com/lox/marinedash/internal/models"
)

const (
	DefaultMarineWeatherURL = "https://marine-api.open-meteo.com/v1/marine"
	DefaultPastDays         = 30
	DefaultForecastDays     = 1
	DefaultTimezone         = "Asia/Seoul"

	// weatherHistoryLimit is the number of usable hourly samples kept as history.
	weatherHistoryLimit = 30
)

// MarineWeatherClient fetches hourly sea surface temperature and wave height
// from the Open-Meteo marine API.
type MarineWeatherClient struct {
	fetcher      *fetcher
	baseURL      string
	pastDays     int
	forecastDays int
	timezone     string
	loc          *time.Location
}

func NewMarineWeatherClient(f *fetcher, baseURL string, pastDays int, loc *time.Location) *MarineWeatherClient {
	if baseURL == "" {
		baseURL = DefaultMarineWeatherURL
	}
	if pastDays <= 0 {
		pastDays = DefaultPastDays
	}
	if loc == nil {
		loc = time.UTC
	}
	return &MarineWeatherClient{
		fetcher:      f,
		baseURL:      baseURL,
		pastDays:     pastDays,
		forecastDays: DefaultForecastDays,
		timezone:     DefaultTimezone,
		loc:          loc,
	}
}

type marineWeatherResponse struct {
	Hourly *struct {
		Time                  []string   `json:"time"`
		SeaSurfaceTemperature []*float64 `json:"sea_surface_temperature"`
		WaveHeight            []*float64 `json:"wave_height"`
	} `json:"hourly"`
}

// URL returns the request URL for the given coordinate.
func (c *MarineWeatherClient) URL(lat, lon float64) string {
	q := url.Values{}
	q.Set("latitude", strconv.FormatFloat(lat, 'f', -1, 64))
	q.Set("longitude", strconv.FormatFloat(lon, 'f', -1, 64))
	q.Set("hourly", "wave_height,sea_surface_temperature")
	q.Set("past_days", strconv.Itoa(c.pastDays))
	q.Set("forecast_days", strconv.Itoa(c.forecastDays))
	q.Set("timezone", c.timezone)
	return c.baseURL + "?" + q.Encode()
}

// Fetch returns the temperature and wave height series for a region.
func (c *MarineWeatherClient) Fetch(ctx context.Context, cfg models.RegionConfig) (temp, wave models.MetricSeries, err error) {
	body, err := c.fetcher.get(ctx, "marine_weather", c.URL(cfg.Latitude, cfg.Longitude))
	if err != nil {
		return temp, wave, err
	}
	return ParseMarineWeather(body, c.loc)
}

// ParseMarineWeather turns an Open-Meteo hourly payload into temperature and
// wave height series. Samples missing either value are dropped; the newest
// usable samples form the history and the last one is current.
func ParseMarineWeather(body []byte, loc *time.Location) (temp, wave models.MetricSeries, err error) {
	var data marineWeatherResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return temp, wave, fmt.Errorf("%w: decode marine weather: %w", ErrUpstream, err)
	}
	if data.Hourly == nil || len(data.Hourly.Time) == 0 {
		return temp, wave, fmt.Errorf("%w: no hourly marine data returned", ErrNoData)
	}

	type sample struct {
		time        string
		temperature float64
		wave        float64
	}

	h := data.Hourly
	var usable []sample
	for i, ts := range h.Time {
		t := valueAt(h.SeaSurfaceTemperature, i)
		w := valueAt(h.WaveHeight, i)
		if t == nil || w == nil || !isFinite(*t) || !isFinite(*w) {
			continue
		}
		usable = append(usable, sample{time: ts, temperature: *t, wave: *w})
	}
	if len(usable) == 0 {
		return temp, wave, fmt.Errorf("%w: no usable temperature or wave samples", ErrNoData)
	}

	if len(usable) > weatherHistoryLimit {
		usable = usable[len(usable)-weatherHistoryLimit:]
	}

	temp.History = make([]models.HistoricalPoint, 0, len(usable))
	wave.History = make([]models.HistoricalPoint, 0, len(usable))
	for _, s := range usable {
		label := DateLabel(s.time, loc)
		temp.History = append(temp.History, models.HistoricalPoint{Label: label, Value: Round(s.temperature, 2)})
		wave.History = append(wave.History, models.HistoricalPoint{Label: label, Value: Round(s.wave, 2)})
	}

	latest := usable[len(usable)-1]
	temp.Current = Round(latest.temperature, 2)
	wave.Current = Round(latest.wave, 2)
	return temp, wave, nil
}

func valueAt(vals []*float64, i int) *float64 {
	if i >= len(vals) {
		return nil
	}
	return vals[i]
}
