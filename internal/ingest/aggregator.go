package ingest

import (
	"context"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/lox/marinedash/internal/metrics"
	"github.com/lox/marinedash/internal/models"
)

const DefaultSourceTimeout = 20 * time.Second

// Endpoints holds the upstream base URLs. Empty fields use the defaults.
type Endpoints struct {
	MarineWeather string
	Salinity      string
	Chlorophyll   string
	PlasticOcean  string
	PlasticWaste  string
}

// Options configures an Aggregator.
type Options struct {
	HTTPClient    *http.Client
	Retries       uint64
	SourceTimeout time.Duration
	PastDays      int
	Location      *time.Location
	Clock         clockwork.Clock
	Logger        zerolog.Logger
	DatasetCache  TextCache
	DatasetTTL    time.Duration
	Endpoints     Endpoints
}

// Aggregator fetches all upstream sources for a region concurrently and merges
// them into a MarineRecord. It holds no per-call state and is safe for
// concurrent use.
type Aggregator struct {
	weather       *MarineWeatherClient
	salinity      *GriddapClient
	chlorophyll   *GriddapClient
	plastic       *PlasticClient
	clock         clockwork.Clock
	sourceTimeout time.Duration
	logger        zerolog.Logger
}

func NewAggregator(opts Options) *Aggregator {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.SourceTimeout == 0 {
		opts.SourceTimeout = DefaultSourceTimeout
	}
	if opts.Endpoints.Salinity == "" {
		opts.Endpoints.Salinity = DefaultSalinityURL
	}
	if opts.Endpoints.Chlorophyll == "" {
		opts.Endpoints.Chlorophyll = DefaultChlorophyllURL
	}

	logger := opts.Logger.With().Str("component", "aggregator").Logger()
	f := newFetcher(opts.HTTPClient, opts.Retries, logger)

	return &Aggregator{
		weather:       NewMarineWeatherClient(f, opts.Endpoints.MarineWeather, opts.PastDays, opts.Location),
		salinity:      NewGriddapClient(f, "salinity", opts.Endpoints.Salinity, SalinityVariable, opts.Location),
		chlorophyll:   NewGriddapClient(f, "chlorophyll", opts.Endpoints.Chlorophyll, ChlorophyllVariable, opts.Location),
		plastic:       NewPlasticClient(f, opts.Endpoints.PlasticOcean, opts.Endpoints.PlasticWaste, opts.DatasetCache, opts.DatasetTTL, logger),
		clock:         opts.Clock,
		sourceTimeout: opts.SourceTimeout,
		logger:        logger,
	}
}

// Fetch aggregates the five metrics for region. Any source failure fails the
// whole call; no partial record is returned.
func (a *Aggregator) Fetch(ctx context.Context, region models.Region) (*models.MarineRecord, error) {
	cfg, err := region.Config()
	if err != nil {
		return nil, err
	}
	start := a.clock.Now()

	var temp, wave, salinity, chlorophyll, plastic models.MetricSeries

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return a.source(gctx, "marine_weather", func(ctx context.Context) (err error) {
			temp, wave, err = a.weather.Fetch(ctx, cfg)
			return err
		})
	})
	g.Go(func() error {
		return a.source(gctx, "salinity", func(ctx context.Context) (err error) {
			salinity, err = a.salinity.Fetch(ctx, cfg)
			return err
		})
	})
	g.Go(func() error {
		return a.source(gctx, "chlorophyll", func(ctx context.Context) (err error) {
			chlorophyll, err = a.chlorophyll.Fetch(ctx, cfg)
			return err
		})
	})
	g.Go(func() error {
		return a.source(gctx, "plastic", func(ctx context.Context) (err error) {
			plastic, err = a.plastic.Fetch(ctx, cfg)
			return err
		})
	})

	if err := g.Wait(); err != nil {
		metrics.AggregationsTotal.WithLabelValues(string(region), Kind(err)).Inc()
		a.logger.Warn().Err(err).Str("region", string(region)).Str("kind", Kind(err)).Str("source", Source(err)).Msg("aggregation failed")
		return nil, err
	}

	rec := &models.MarineRecord{
		Region:       region,
		FetchedAt:    a.clock.Now().UTC(),
		Temperature:  temp,
		Salinity:     salinity,
		Chlorophyll:  chlorophyll,
		WaveHeight:   wave,
		PlasticIndex: plastic,
	}

	metrics.AggregationsTotal.WithLabelValues(string(region), "success").Inc()
	a.logger.Info().Str("region", string(region)).Dur("took", a.clock.Since(start)).Msg("aggregated marine record")
	return rec, nil
}

func (a *Aggregator) source(ctx context.Context, name string, fn func(context.Context) error) error {
	if a.sourceTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.sourceTimeout)
		defer cancel()
	}
	if err := fn(ctx); err != nil {
		return &SourceError{Source: name, Err: err}
	}
	return nil
}
