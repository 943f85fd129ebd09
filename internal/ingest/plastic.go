package ingest

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/marinedash/internal/metrics"
	"github.com/lox/marinedash/internal/models"
)

const (
	DefaultPlasticOceanURL = "https://raw.githubusercontent.com/owid/owid-datasets/master/datasets/Plastic%20ocean%20pollution%20(Meijer%20et%20al.%202021)/Plastic%20ocean%20pollution%20(Meijer%20et%20al.%202021).csv"
	DefaultPlasticWasteURL = "https://raw.githubusercontent.com/owid/owid-datasets/master/datasets/Plastic%20waste%20generation%20by%20country%20-%20OWID%20based%20on%20Jambeck%20et%20al.%20%26%20World%20Bank/Plastic%20waste%20generation%20by%20country%20-%20OWID%20based%20on%20Jambeck%20et%20al.%20%26%20World%20Bank.csv"

	ColEntity          = "Entity"
	ColYear            = "Year"
	ColMismanaged      = "Mismanaged plastic waste (metric tons year-1)"
	ColOceanEmission   = "Mismanaged waste emitted to the ocean (metric tons year-1)"
	ColWasteGeneration = "Plastic waste generation (tonnes, total)"

	LabelWasteGeneration = "waste generation"
	LabelMismanaged      = "mismanaged waste"
	LabelOceanInflow     = "ocean inflow"
)

// TextCache stores raw dataset text between fetches.
type TextCache interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// PlasticClient derives the microplastic index from the OWID ocean pollution
// and waste generation datasets.
type PlasticClient struct {
	fetcher  *fetcher
	oceanURL string
	wasteURL string
	cache    TextCache
	cacheTTL time.Duration
	logger   zerolog.Logger
}

func NewPlasticClient(f *fetcher, oceanURL, wasteURL string, cache TextCache, ttl time.Duration, logger zerolog.Logger) *PlasticClient {
	if oceanURL == "" {
		oceanURL = DefaultPlasticOceanURL
	}
	if wasteURL == "" {
		wasteURL = DefaultPlasticWasteURL
	}
	return &PlasticClient{
		fetcher:  f,
		oceanURL: oceanURL,
		wasteURL: wasteURL,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger,
	}
}

func (c *PlasticClient) Fetch(ctx context.Context, cfg models.RegionConfig) (models.MetricSeries, error) {
	var oceanCSV, wasteCSV string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		oceanCSV, err = c.dataset(gctx, "plastic_ocean", c.oceanURL)
		return err
	})
	g.Go(func() error {
		var err error
		wasteCSV, err = c.dataset(gctx, "plastic_waste", c.wasteURL)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.MetricSeries{}, err
	}

	return ComputePlasticSeries(oceanCSV, wasteCSV, cfg.PlasticEntity)
}

func (c *PlasticClient) dataset(ctx context.Context, source, url string) (string, error) {
	if c.cache != nil {
		text, ok, err := c.cache.Get(ctx, url)
		switch {
		case err != nil:
			c.logger.Warn().Err(err).Str("source", source).Msg("dataset cache read failed")
		case ok:
			metrics.DatasetCacheTotal.WithLabelValues("hit").Inc()
			return text, nil
		default:
			metrics.DatasetCacheTotal.WithLabelValues("miss").Inc()
		}
	}

	body, err := c.fetcher.get(ctx, source, url)
	if err != nil {
		return "", err
	}
	text := string(body)

	if c.cache != nil {
		if err := c.cache.Set(ctx, url, text, c.cacheTTL); err != nil {
			c.logger.Warn().Err(err).Str("source", source).Msg("dataset cache write failed")
		}
	}
	return text, nil
}

type yearValues struct {
	label      string
	year       int
	generation float64
	mismanaged float64
	emission   float64
}

// ComputePlasticSeries computes the normalized ocean emission index for entity
// and its per-year history from the two dataset texts.
func ComputePlasticSeries(oceanCSV, wasteCSV, entity string) (models.MetricSeries, error) {
	ocean, err := newTable("ocean dataset", oceanCSV)
	if err != nil {
		return models.MetricSeries{}, err
	}
	waste, err := newTable("waste dataset", wasteCSV)
	if err != nil {
		return models.MetricSeries{}, err
	}

	oEntity, oYear, oMismanaged, oEmission, err := oceanColumns(ocean)
	if err != nil {
		return models.MetricSeries{}, err
	}
	wEntity, wYear, wGeneration, err := wasteColumns(waste)
	if err != nil {
		return models.MetricSeries{}, err
	}

	oceanRows := ocean.filter(oEntity, entity)
	wasteRows := waste.filter(wEntity, entity)
	if len(oceanRows) == 0 || len(wasteRows) == 0 {
		return models.MetricSeries{}, fmt.Errorf("%w: plastic datasets do not contain entity %q", ErrNoData, entity)
	}

	maxEmission := 0.0
	haveMax := false
	for _, row := range ocean.rows {
		v := parseNumber(cell(row, oEmission))
		if isFinite(v) && (!haveMax || v > maxEmission) {
			maxEmission = v
			haveMax = true
		}
	}
	if !haveMax {
		maxEmission = 1
	}

	years := map[string]*yearValues{}
	entry := func(label string) *yearValues {
		if y, ok := years[label]; ok {
			return y
		}
		year, err := strconv.Atoi(label)
		if err != nil {
			year = -1
		}
		y := &yearValues{label: label, year: year, generation: math.NaN(), mismanaged: math.NaN(), emission: math.NaN()}
		years[label] = y
		return y
	}
	for _, row := range wasteRows {
		entry(cell(row, wYear)).generation = parseNumber(cell(row, wGeneration))
	}
	for _, row := range oceanRows {
		y := entry(cell(row, oYear))
		y.mismanaged = parseNumber(cell(row, oMismanaged))
		y.emission = parseNumber(cell(row, oEmission))
	}

	ordered := make([]*yearValues, 0, len(years))
	for _, y := range years {
		ordered = append(ordered, y)
	}
	sort.Slice(ordered, func(i, j int) bool {
		if ordered[i].year != ordered[j].year {
			return ordered[i].year < ordered[j].year
		}
		return ordered[i].label < ordered[j].label
	})

	var latest *yearValues
	history := make([]models.HistoricalPoint, 0, len(ordered)*3)
	for _, y := range ordered {
		if isFinite(y.generation) {
			history = append(history, models.HistoricalPoint{Label: y.label + " " + LabelWasteGeneration, Value: Round(y.generation/1_000_000, 3)})
		}
		if isFinite(y.mismanaged) {
			history = append(history, models.HistoricalPoint{Label: y.label + " " + LabelMismanaged, Value: Round(y.mismanaged/1_000_000, 3)})
		}
		if isFinite(y.emission) {
			history = append(history, models.HistoricalPoint{Label: y.label + " " + LabelOceanInflow, Value: Round(y.emission/1_000, 3)})
			latest = y
		}
	}
	if latest == nil {
		return models.MetricSeries{}, fmt.Errorf("%w: no ocean emission values for entity %q", ErrNoData, entity)
	}

	// The latest year always contributes an ocean inflow point above, so the
	// history is never empty once a current value exists.
	return models.MetricSeries{
		Current: PlasticIndex(latest.emission, maxEmission),
		History: history,
	}, nil
}

// PlasticIndex normalizes emission against the dataset maximum, clamped to
// [0, 1] and rounded to 3 decimals.
func PlasticIndex(emission, maxEmission float64) float64 {
	if maxEmission == 0 || !isFinite(emission) || !isFinite(maxEmission) {
		return 0
	}
	idx := emission / maxEmission
	if idx < 0 {
		idx = 0
	}
	if idx > 1 {
		idx = 1
	}
	return Round(idx, 3)
}

func oceanColumns(t *table) (entity, year, mismanaged, emission int, err error) {
	if entity, err = t.column(ColEntity); err != nil {
		return
	}
	if year, err = t.column(ColYear); err != nil {
		return
	}
	if mismanaged, err = t.column(ColMismanaged); err != nil {
		return
	}
	emission, err = t.column(ColOceanEmission)
	return
}

func wasteColumns(t *table) (entity, year, generation int, err error) {
	if entity, err = t.column(ColEntity); err != nil {
		return
	}
	if year, err = t.column(ColYear); err != nil {
		return
	}
	generation, err = t.column(ColWasteGeneration)
	return
}
