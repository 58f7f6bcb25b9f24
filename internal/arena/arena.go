package arena

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"

	"DebateArena/internal/backend"
	"DebateArena/internal/cache"
	"DebateArena/internal/config"
	"DebateArena/internal/debate"
	"DebateArena/internal/provider"
	"DebateArena/internal/server"
	"DebateArena/internal/store"
	"DebateArena/internal/telemetry"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// App wires the debate orchestrator to its provider, storage, console and
// server.
type App struct {
	cfg         *config.Config
	logger      *slog.Logger
	tracer      trace.Tracer
	meter       metric.Meter
	store       *store.Store
	backend     *backend.Client
	cache       *cache.Cache
	orch        *debate.Orchestrator
	transcripts *debate.Transcripts
	hub         *server.Hub

	in      io.Reader
	out     io.Writer
	scanner *bufio.Scanner

	closers []func()
}

type settings struct {
	provider debate.Provider
	in       io.Reader
	out      io.Writer
	orchOpts []debate.Option
}

// Option configures an App
type Option func(*settings)

// WithProvider replaces the Response Provider chosen from the configuration
func WithProvider(p debate.Provider) Option {
	return func(s *settings) { s.provider = p }
}

// WithIO sets the console input and output. Defaults are stdin and stdout.
func WithIO(in io.Reader, out io.Writer) Option {
	return func(s *settings) {
		s.in = in
		s.out = out
	}
}

// WithOrchestratorOptions passes extra options to the orchestrator
func WithOrchestratorOptions(opts ...debate.Option) Option {
	return func(s *settings) { s.orchOpts = append(s.orchOpts, opts...) }
}

// New initializes logging, telemetry and storage and builds the orchestrator
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*App, error) {
	st := settings{in: os.Stdin, out: os.Stdout}
	for _, opt := range opts {
		opt(&st)
	}

	logger, logFile, err := telemetry.InitLogger(cfg.Logging.Dir, cfg.Debug)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	a := &App{
		cfg:    cfg,
		logger: logger,
		in:     st.in,
		out:    st.out,
	}
	a.closers = append(a.closers, func() { _ = logFile.Close() })

	tracer, meter, shutdown, err := telemetry.InitTelemetry(ctx, cfg.Logging.Dir)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize telemetry: %w", err)
	}
	a.tracer = tracer
	a.meter = meter
	a.closers = append(a.closers, shutdown)

	if cfg.Debug {
		logger.Info("Debug mode enabled")
	}

	db, err := store.Open(cfg.Storage.DBPath, logger)
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	a.store = db
	a.closers = append(a.closers, func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	})

	a.backend, err = backend.New(cfg.Backend.Name, backend.Options{
		Model:      cfg.Backend.Model,
		BaseURL:    cfg.Backend.BaseURL,
		HTTPClient: &http.Client{Timeout: cfg.Provider.Timeout},
		Logger:     logger,
		Tracer:     tracer,
		Meter:      meter,
	})
	if err != nil {
		a.Close()
		return nil, err
	}
	a.cache = cache.New(cfg.Provider.CacheTTL)

	p := st.provider
	if p == nil {
		p = a.newProvider()
	}

	a.transcripts = debate.NewTranscripts()
	a.hub = server.NewHub(logger)
	sinks := debate.Sinks{
		a.transcripts,
		newPrinter(a.out),
		store.NewRecorder(db, logger),
		a.hub,
	}

	orchOpts := append([]debate.Option{
		debate.WithTracer(tracer),
		debate.WithMeter(meter),
	}, st.orchOpts...)
	a.orch = debate.NewOrchestrator(p, sinks, cfg.Params(), logger, orchOpts...)

	logger.Info("debate arena initialized",
		"backend", a.backend.Name(),
		"model", a.backend.Model(),
		"provider_url", cfg.Provider.URL,
	)
	return a, nil
}

// newProvider uses the remote endpoint when one is configured and answers
// in-process otherwise.
func (a *App) newProvider() debate.Provider {
	if a.cfg.Provider.URL != "" {
		return provider.NewClient(a.cfg.Provider.URL, a.logger,
			provider.WithHTTPClient(&http.Client{Timeout: a.cfg.Provider.Timeout}),
			provider.WithTracer(a.tracer),
		)
	}
	return provider.NewLocal(a.backend, a.cache, a.logger)
}

// Orchestrator returns the debate orchestrator
func (a *App) Orchestrator() *debate.Orchestrator {
	return a.orch
}

// RunTopic plays a single debate on topic, streaming the transcript to the
// console output.
func (a *App) RunTopic(ctx context.Context, topic string) (debate.Session, error) {
	sess, err := a.orch.Run(ctx, topic)
	if err != nil {
		return sess, err
	}
	if sess.Error != "" {
		return sess, fmt.Errorf("debate ended with error: %s", sess.Error)
	}
	return sess, nil
}

// Serve runs the HTTP API until ctx is cancelled
func (a *App) Serve(ctx context.Context) error {
	opts := server.Options{
		Orchestrator: a.orch,
		Transcripts:  a.transcripts,
		Hub:          a.hub,
		Store:        a.store,
		Logger:       a.logger,
	}
	if a.cfg.Server.ServeProvider {
		opts.Provider = provider.NewHandler(a.backend, a.cache, a.logger)
		opts.ProviderPath = a.cfg.Provider.Path
	}

	fmt.Fprintf(a.out, "Serving debates on %s\n", a.cfg.Server.Addr)
	return server.New(opts).ListenAndServe(ctx, a.cfg.Server.Addr)
}

// Close waits for running debates and releases storage, telemetry and the
// log file, in reverse order of acquisition.
func (a *App) Close() {
	if a.orch != nil {
		a.orch.Wait()
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
