package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/alecthomas/kong"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/lox/marinedash/internal/api"
	"github.com/lox/marinedash/internal/cache"
	"github.com/lox/marinedash/internal/httputil"
	"github.com/lox/marinedash/internal/ingest"
	"github.com/lox/marinedash/internal/logging"
	"github.com/lox/marinedash/internal/models"
	"github.com/lox/marinedash/internal/narrative"
	"github.com/lox/marinedash/internal/store"
)

type Globals struct {
	DB            string        `help:"Path to SQLite database." default:"data/marinedash.db" env:"MARINEDASH_DB"`
	LogLevel      string        `help:"Log level." default:"info" enum:"debug,info,warn,error" env:"LOG_LEVEL"`
	LogFormat     string        `help:"Log format." default:"console" enum:"console,json" env:"LOG_FORMAT"`
	SourceTimeout time.Duration `help:"Timeout for each upstream source." default:"20s" env:"SOURCE_TIMEOUT"`
	Retries       uint64        `help:"Retries for 429/5xx upstream responses." default:"0" env:"UPSTREAM_RETRIES"`
	RedisAddr     string        `help:"Redis address for caching the plastic datasets (disabled when empty)." env:"REDIS_ADDR"`
	DatasetTTL    time.Duration `help:"How long cached plastic datasets are reused." default:"6h" env:"DATASET_TTL"`
	OpenAIAPIKey  string        `name:"openai-api-key" help:"OpenAI API key for analysis reports." env:"OPENAI_API_KEY"`
	OpenAIModel   string        `name:"openai-model" help:"OpenAI chat model." default:"gpt-4o-mini" env:"OPENAI_MODEL"`

	MarineWeatherURL string `name:"marine-weather-url" help:"Open-Meteo marine endpoint." env:"MARINE_WEATHER_URL"`
	SalinityURL      string `name:"salinity-url" help:"ERDDAP salinity griddap endpoint." env:"SALINITY_URL"`
	ChlorophyllURL   string `name:"chlorophyll-url" help:"ERDDAP chlorophyll griddap endpoint." env:"CHLOROPHYLL_URL"`
	PlasticOceanURL  string `name:"plastic-ocean-url" help:"Plastic ocean emissions CSV." env:"PLASTIC_OCEAN_URL"`
	PlasticWasteURL  string `name:"plastic-waste-url" help:"Plastic waste generation CSV." env:"PLASTIC_WASTE_URL"`
}

type CLI struct {
	Globals

	Serve   ServeCmd   `cmd:"" default:"1" help:"Run the dashboard server."`
	Fetch   FetchCmd   `cmd:"" help:"Aggregate one region and print the record as JSON."`
	Analyze AnalyzeCmd `cmd:"" help:"Aggregate one region and generate an analysis report."`
	Regions RegionsCmd `cmd:"" help:"List supported regions."`
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Fprintf(os.Stderr, "load .env: %v\n", err)
	}

	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("marinedash"),
		kong.Description("Korean coastal marine conditions dashboard."),
		kong.UsageOnError(),
	)

	logger := logging.NewWithWriter(os.Stderr, cli.LogLevel, cli.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	kctx.BindTo(ctx, (*context.Context)(nil))
	kctx.Bind(logger)
	kctx.FatalIfErrorf(kctx.Run(&cli.Globals))
}

func (g *Globals) openStore(logger zerolog.Logger) (*store.Store, func(), error) {
	if err := os.MkdirAll(filepath.Dir(g.DB), 0o755); err != nil {
		return nil, nil, fmt.Errorf("create database directory: %w", err)
	}
	db, err := store.Open(g.DB)
	if err != nil {
		return nil, nil, err
	}
	st := store.New(db, logger)
	if err := st.Migrate(); err != nil {
		db.Close()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return st, func() { db.Close() }, nil
}

// newAggregator builds the aggregator and, when configured, its Redis dataset
// cache. The returned func releases the cache connection.
func (g *Globals) newAggregator(ctx context.Context, logger zerolog.Logger) (*ingest.Aggregator, func()) {
	opts := ingest.Options{
		HTTPClient:    httputil.NewClient(g.SourceTimeout + 5*time.Second),
		Retries:       g.Retries,
		SourceTimeout: g.SourceTimeout,
		Location:      seoul(logger),
		Logger:        logger,
		DatasetTTL:    g.DatasetTTL,
		Endpoints: ingest.Endpoints{
			MarineWeather: g.MarineWeatherURL,
			Salinity:      g.SalinityURL,
			Chlorophyll:   g.ChlorophyllURL,
			PlasticOcean:  g.PlasticOceanURL,
			PlasticWaste:  g.PlasticWasteURL,
		},
	}

	cleanup := func() {}
	if g.RedisAddr != "" {
		rc := cache.NewRedis(g.RedisAddr)
		if err := rc.Ping(ctx); err != nil {
			logger.Warn().Err(err).Str("addr", g.RedisAddr).Msg("redis unavailable, dataset cache disabled")
			rc.Close()
		} else {
			opts.DatasetCache = rc
			cleanup = func() { rc.Close() }
		}
	}

	return ingest.NewAggregator(opts), cleanup
}

// newNarrator returns nil when no API key is configured.
func (g *Globals) newNarrator(logger zerolog.Logger) *narrative.Generator {
	gen, err := narrative.New(narrative.Config{APIKey: g.OpenAIAPIKey, Model: g.OpenAIModel}, logger)
	if err != nil {
		logger.Info().Err(err).Msg("analysis reports disabled")
		return nil
	}
	return gen
}

type ServeCmd struct {
	Port         string        `help:"HTTP server port." default:"8080" env:"PORT"`
	NoPoll       bool          `help:"Disable background probing of upstream sources."`
	PollInterval time.Duration `help:"Interval between background probes." default:"30m" env:"POLL_INTERVAL"`
}

func (c *ServeCmd) Run(ctx context.Context, g *Globals, logger zerolog.Logger) error {
	st, closeStore, err := g.openStore(logger)
	if err != nil {
		return err
	}
	defer closeStore()
	logger.Info().Str("db", g.DB).Msg("database migrated")

	agg, closeCache := g.newAggregator(ctx, logger)
	defer closeCache()

	recorder := ingest.NewRecorder(agg, st, logger)

	opts := api.Options{
		Recorder: recorder,
		Store:    st,
		Port:     c.Port,
		Logger:   logger,
	}
	if gen := g.newNarrator(logger); gen != nil {
		opts.Narrator = gen
	}
	server := api.NewServer(opts)

	if !c.NoPoll {
		scheduler := ingest.NewScheduler(recorder, c.PollInterval, clockwork.NewRealClock(), logger)
		go scheduler.Run(ctx)
	} else {
		logger.Info().Msg("polling disabled (--no-poll)")
	}

	return server.Run(ctx)
}

type FetchCmd struct {
	Region string `arg:"" help:"Region code (EAST_SEA, WEST_SEA, SOUTH_SEA, JEJU_ISLAND) or Korean name."`
}

func (c *FetchCmd) Run(ctx context.Context, g *Globals, logger zerolog.Logger) error {
	region, err := models.ParseRegion(c.Region)
	if err != nil {
		return err
	}

	st, closeStore, err := g.openStore(logger)
	if err != nil {
		return err
	}
	defer closeStore()

	agg, closeCache := g.newAggregator(ctx, logger)
	defer closeCache()

	rec, flags, err := ingest.NewRecorder(agg, st, logger).Fetch(ctx, region, "cli")
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(api.MarineResponse{MarineRecord: rec, QualityFlags: flags})
}

type AnalyzeCmd struct {
	Region string `arg:"" help:"Region code or Korean name."`
}

func (c *AnalyzeCmd) Run(ctx context.Context, g *Globals, logger zerolog.Logger) error {
	region, err := models.ParseRegion(c.Region)
	if err != nil {
		return err
	}

	gen := g.newNarrator(logger)
	if gen == nil {
		return fmt.Errorf("%w: set OPENAI_API_KEY", narrative.ErrDisabled)
	}

	st, closeStore, err := g.openStore(logger)
	if err != nil {
		return err
	}
	defer closeStore()

	agg, closeCache := g.newAggregator(ctx, logger)
	defer closeCache()

	rec, _, err := ingest.NewRecorder(agg, st, logger).Fetch(ctx, region, "cli")
	if err != nil {
		return err
	}

	body, err := gen.Generate(ctx, rec)
	if err != nil {
		return err
	}

	snapshot, _ := json.Marshal(rec.Current())
	if err := st.InsertAnalysis(store.Analysis{
		ID:       uuid.NewString(),
		Region:   string(region),
		Model:    gen.Model(),
		Body:     body,
		Snapshot: string(snapshot),
	}); err != nil {
		logger.Warn().Err(err).Msg("failed to store analysis")
	}

	fmt.Println(body)
	return nil
}

type RegionsCmd struct{}

func (c *RegionsCmd) Run() error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "CODE\tNAME\tLAT\tLON\tPLASTIC ENTITY")
	for _, region := range models.Regions() {
		cfg, _ := region.Config()
		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.1f\t%s\n", cfg.Region, cfg.Name, cfg.Latitude, cfg.Longitude, cfg.PlasticEntity)
	}
	return w.Flush()
}

func seoul(logger zerolog.Logger) *time.Location {
	loc, err := time.LoadLocation(ingest.DefaultTimezone)
	if err != nil {
		logger.Warn().Err(err).Msg("could not load Asia/Seoul timezone, using fixed +09:00")
		return time.FixedZone("KST", 9*60*60)
	}
	return loc
}
