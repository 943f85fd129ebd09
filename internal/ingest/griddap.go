package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"time"

	"github.com/lox/marinedash/internal/models"
)

const (
	DefaultSalinityURL    = "https://coastwatch.pfeg.noaa.gov/erddap/griddap/jplSMAPSSMISv5.json"
	DefaultChlorophyllURL = "https://coastwatch.pfeg.noaa.gov/erddap/griddap/erdMH1chlamday.json"

	SalinityVariable    = "sss"
	ChlorophyllVariable = "chlorophyll"

	// griddapRange selects the last 30 time steps.
	griddapRange = "(last-29):1:(last)"
	// Rows come back as [time, latitude, longitude, value].
	griddapValueColumn = 3
)

// GriddapClient fetches a single variable's time series from an ERDDAP
// griddap dataset at the grid cell nearest a coordinate.
type GriddapClient struct {
	fetcher  *fetcher
	source   string
	endpoint string
	variable string
	loc      *time.Location
}

func NewGriddapClient(f *fetcher, source, endpoint, variable string, loc *time.Location) *GriddapClient {
	if loc == nil {
		loc = time.UTC
	}
	return &GriddapClient{
		fetcher:  f,
		source:   source,
		endpoint: endpoint,
		variable: variable,
		loc:      loc,
	}
}

type griddapResponse struct {
	Table *struct {
		ColumnNames []string `json:"columnNames"`
		Rows        [][]any  `json:"rows"`
	} `json:"table"`
}

// NormalizeLongitude maps lon into [0, 360).
func NormalizeLongitude(lon float64) float64 {
	lon = math.Mod(lon, 360)
	if lon < 0 {
		lon += 360
	}
	return lon
}

// BuildGriddapQuery returns the dataset URL with the encoded selection
// variable[range][(lat)][(lon)].
func BuildGriddapQuery(endpoint, variable string, lat, lon float64) string {
	expr := fmt.Sprintf("%s[%s][(%.2f)][(%.2f)]", variable, griddapRange, lat, NormalizeLongitude(lon))
	return endpoint + "?" + url.QueryEscape(expr)
}

func (c *GriddapClient) Fetch(ctx context.Context, cfg models.RegionConfig) (models.MetricSeries, error) {
	body, err := c.fetcher.get(ctx, c.source, BuildGriddapQuery(c.endpoint, c.variable, cfg.Latitude, cfg.Longitude))
	if err != nil {
		return models.MetricSeries{}, err
	}
	return ParseGriddap(body, c.variable, c.loc)
}

// ParseGriddap converts a griddap JSON table into a series. Non-finite values
// are discarded; values are rounded to 3 decimals.
func ParseGriddap(body []byte, variable string, loc *time.Location) (models.MetricSeries, error) {
	var data griddapResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return models.MetricSeries{}, fmt.Errorf("%w: decode %s response: %w", ErrUpstream, variable, err)
	}
	if data.Table == nil || len(data.Table.Rows) == 0 {
		return models.MetricSeries{}, fmt.Errorf("%w: no %s data returned", ErrNoData, variable)
	}

	history := make([]models.HistoricalPoint, 0, len(data.Table.Rows))
	for _, row := range data.Table.Rows {
		if len(row) <= griddapValueColumn {
			continue
		}
		v := cellFloat(row[griddapValueColumn])
		if !isFinite(v) {
			continue
		}
		ts, _ := row[0].(string)
		history = append(history, models.HistoricalPoint{
			Label: DateLabel(ts, loc),
			Value: Round(v, 3),
		})
	}
	if len(history) == 0 {
		return models.MetricSeries{}, fmt.Errorf("%w: %s series has no finite values", ErrNoData, variable)
	}

	return models.MetricSeries{
		Current: history[len(history)-1].Value,
		History: history,
	}, nil
}

func cellFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		return parseNumber(x)
	default:
		return math.NaN()
	}
}
