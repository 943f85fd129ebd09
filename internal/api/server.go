package api

import (
	"context"
	"html/template"
	"net/http"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"

	"github.com/lox/marinedash/internal/imagegen"
	"github.com/lox/marinedash/internal/ingest"
	"github.com/lox/marinedash/internal/models"
	"github.com/lox/marinedash/internal/store"
)

const DefaultImageTTL = 10 * time.Minute

// Narrator writes an analysis report for a record.
type Narrator interface {
	Generate(ctx context.Context, rec *models.MarineRecord) (string, error)
	Model() string
}

type Options struct {
	Recorder *ingest.Recorder
	Store    *store.Store
	Narrator Narrator // nil disables /api/analysis
	Port     string
	ImageTTL time.Duration
	Clock    clockwork.Clock
	Logger   zerolog.Logger
}

type Server struct {
	recorder  *ingest.Recorder
	store     *store.Store
	narrator  Narrator
	port      string
	tmpl      *template.Template
	images    *imagegen.Cache
	snapshots *snapshots
	flights   singleflight.Group
	clock     clockwork.Clock
	logger    zerolog.Logger
}

func NewServer(opts Options) *Server {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}
	if opts.ImageTTL == 0 {
		opts.ImageTTL = DefaultImageTTL
	}
	logger := opts.Logger.With().Str("component", "api").Logger()
	if opts.Narrator == nil {
		logger.Info().Msg("analysis generation disabled")
	}

	return &Server{
		recorder:  opts.Recorder,
		store:     opts.Store,
		narrator:  opts.Narrator,
		port:      opts.Port,
		tmpl:      newTemplates(),
		images:    imagegen.NewCache(opts.ImageTTL, opts.Clock),
		snapshots: newSnapshots(opts.ImageTTL, opts.Clock),
		clock:     opts.Clock,
		logger:    logger,
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/chart", s.handleChart)
	mux.HandleFunc("/card", s.handleCard)
	mux.HandleFunc("/api/regions", s.handleAPIRegions)
	mux.HandleFunc("/api/marine", s.handleAPIMarine)
	mux.HandleFunc("/api/marine/history", s.handleAPIHistory)
	mux.HandleFunc("/api/analysis", s.handleAPIAnalysis)
	mux.HandleFunc("/api/analyses", s.handleAPIAnalyses)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) Run(ctx context.Context) error {
	server := &http.Server{
		Addr:              ":" + s.port,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", server.Addr).Msg("listening")
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		return err
	}
	return nil
}
