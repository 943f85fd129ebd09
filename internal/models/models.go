package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrUnknownRegion is returned when a region code or name is not one of the
// four configured coastal areas.
var ErrUnknownRegion = errors.New("unknown region")

type Region string

const (
	EastSea    Region = "EAST_SEA"
	WestSea    Region = "WEST_SEA"
	SouthSea   Region = "SOUTH_SEA"
	JejuIsland Region = "JEJU_ISLAND"
)

// RegionConfig is the static configuration for a region.
type RegionConfig struct {
	Region        Region  `json:"region"`
	Name          string  `json:"name"`  // Korean display name
	Label         string  `json:"label"` // Latin label for image rendering
	Latitude      float64 `json:"latitude"`
	Longitude     float64 `json:"longitude"`
	PlasticEntity string  `json:"plasticEntity"`
}

var regionConfigs = map[Region]RegionConfig{
	EastSea:    {Region: EastSea, Name: "동해", Label: "East Sea", Latitude: 37.5, Longitude: 130.8, PlasticEntity: "South Korea"},
	WestSea:    {Region: WestSea, Name: "서해", Label: "West Sea", Latitude: 37.0, Longitude: 124.5, PlasticEntity: "China"},
	SouthSea:   {Region: SouthSea, Name: "남해", Label: "South Sea", Latitude: 34.5, Longitude: 128.0, PlasticEntity: "South Korea"},
	JejuIsland: {Region: JejuIsland, Name: "제주 연안", Label: "Jeju Coast", Latitude: 33.5, Longitude: 126.5, PlasticEntity: "Japan"},
}

// Regions returns all regions in display order.
func Regions() []Region {
	return []Region{EastSea, WestSea, SouthSea, JejuIsland}
}

// Config returns the static configuration for r.
func (r Region) Config() (RegionConfig, error) {
	cfg, ok := regionConfigs[r]
	if !ok {
		return RegionConfig{}, fmt.Errorf("%w: %q", ErrUnknownRegion, string(r))
	}
	return cfg, nil
}

func (r Region) Valid() bool {
	_, ok := regionConfigs[r]
	return ok
}

// ParseRegion accepts a region code (case-insensitive) or its Korean name.
func ParseRegion(s string) (Region, error) {
	s = strings.TrimSpace(s)
	code := Region(strings.ToUpper(s))
	if code.Valid() {
		return code, nil
	}
	for _, cfg := range regionConfigs {
		if cfg.Name == s {
			return cfg.Region, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRegion, s)
}

type Metric string

const (
	Temperature  Metric = "temperature"
	Salinity     Metric = "salinity"
	Chlorophyll  Metric = "chlorophyll"
	WaveHeight   Metric = "waveHeight"
	PlasticIndex Metric = "plasticConcentration"
)

// Metrics returns all metrics in display order.
func Metrics() []Metric {
	return []Metric{Temperature, Salinity, Chlorophyll, WaveHeight, PlasticIndex}
}

// MetricInfo is display metadata for a metric.
type MetricInfo struct {
	Metric    Metric `json:"metric"`
	Title     string `json:"title"`
	Label     string `json:"label"`
	Unit      string `json:"unit"`
	Color     string `json:"color"`
	Precision int    `json:"precision"`
}

func (m Metric) Info() MetricInfo {
	switch m {
	case Temperature:
		return MetricInfo{Metric: m, Title: "해수면 온도", Label: "Sea surface temperature", Unit: "°C", Color: "#f97316", Precision: 1}
	case Salinity:
		return MetricInfo{Metric: m, Title: "염분 농도", Label: "Salinity", Unit: "PSU", Color: "#3b82f6", Precision: 1}
	case Chlorophyll:
		return MetricInfo{Metric: m, Title: "클로로필", Label: "Chlorophyll-a", Unit: "mg/m³", Color: "#16a34a", Precision: 1}
	case WaveHeight:
		return MetricInfo{Metric: m, Title: "파고", Label: "Wave height", Unit: "m", Color: "#6366f1", Precision: 1}
	case PlasticIndex:
		return MetricInfo{Metric: m, Title: "미세플라스틱", Label: "Microplastic index", Unit: "index", Color: "#ec4899", Precision: 2}
	}
	return MetricInfo{Metric: m, Title: string(m), Label: string(m)}
}

func ParseMetric(s string) (Metric, error) {
	for _, m := range Metrics() {
		if strings.EqualFold(string(m), s) {
			return m, nil
		}
	}
	return "", fmt.Errorf("unknown metric %q", s)
}

type HistoricalPoint struct {
	Label string  `json:"name"`
	Value float64 `json:"value"`
}

type MetricSeries struct {
	Current float64           `json:"current"`
	History []HistoricalPoint `json:"historical"`
}

// MarineRecord is the five-metric snapshot for one region. It is built once per
// aggregation and handed to the caller as-is.
type MarineRecord struct {
	Region       Region       `json:"region"`
	FetchedAt    time.Time    `json:"fetchedAt"`
	Temperature  MetricSeries `json:"temperature"`
	Salinity     MetricSeries `json:"salinity"`
	Chlorophyll  MetricSeries `json:"chlorophyll"`
	WaveHeight   MetricSeries `json:"waveHeight"`
	PlasticIndex MetricSeries `json:"plasticConcentration"`
}

// Series returns the slot for m.
func (r *MarineRecord) Series(m Metric) (MetricSeries, bool) {
	switch m {
	case Temperature:
		return r.Temperature, true
	case Salinity:
		return r.Salinity, true
	case Chlorophyll:
		return r.Chlorophyll, true
	case WaveHeight:
		return r.WaveHeight, true
	case PlasticIndex:
		return r.PlasticIndex, true
	}
	return MetricSeries{}, false
}

// Current returns the current value of every metric keyed by metric.
func (r *MarineRecord) Current() map[Metric]float64 {
	out := make(map[Metric]float64, 5)
	for _, m := range Metrics() {
		s, _ := r.Series(m)
		out[m] = s.Current
	}
	return out
}
