package debate

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrEmptyTopic is returned by Run when the topic is blank
	ErrEmptyTopic = errors.New("debate: empty topic")
	// ErrDebateActive is returned by Run while another debate is in progress
	ErrDebateActive = errors.New("debate: a debate is already active")
	// ErrShutdown is returned by Run after Shutdown
	ErrShutdown = errors.New("debate: orchestrator is shut down")
)

// Orchestrator runs at most one debate at a time, interpreting the effects
// produced by the session transitions.
type Orchestrator struct {
	provider Provider
	sink     Sink
	logger   *slog.Logger
	tracer   trace.Tracer
	meter    metric.Meter

	after func(time.Duration) <-chan time.Time
	now   func() time.Time
	newID func() string

	started  metric.Int64Counter
	rounds   metric.Int64Counter
	failures metric.Int64Counter

	// base is cancelled by Shutdown; every debate's context follows it
	base   context.Context
	cancel context.CancelFunc

	mu     sync.Mutex
	params Params
	// running stays set until the driver has emitted its last message,
	// which is after the session itself reads as Concluded
	running bool
	session Session
	wg      sync.WaitGroup
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithTracer sets the tracer used for debate and provider spans
func WithTracer(t trace.Tracer) Option {
	return func(o *Orchestrator) { o.tracer = t }
}

// WithMeter sets the meter used for debate counters
func WithMeter(m metric.Meter) Option {
	return func(o *Orchestrator) { o.meter = m }
}

// WithAfter replaces time.After for the pacing delay between rounds
func WithAfter(after func(time.Duration) <-chan time.Time) Option {
	return func(o *Orchestrator) { o.after = after }
}

// WithClock sets the clock used to timestamp transcript messages
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) { o.now = now }
}

// WithIDGenerator sets the session id generator
func WithIDGenerator(newID func() string) Option {
	return func(o *Orchestrator) { o.newID = newID }
}

// NewOrchestrator creates an idle Orchestrator
func NewOrchestrator(p Provider, sink Sink, params Params, logger *slog.Logger, opts ...Option) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	o := &Orchestrator{
		provider: p,
		sink:     sink,
		params:   params,
		logger:   logger,
		tracer:   otel.Tracer("debatearena/debate"),
		meter:    otel.Meter("debatearena/debate"),
		after:    time.After,
		now:      time.Now,
		newID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(o)
	}
	o.base, o.cancel = context.WithCancel(context.Background())

	o.started = o.counter("debate.started", "Debates started")
	o.rounds = o.counter("debate.rounds", "Debate rounds completed")
	o.failures = o.counter("debate.failures", "Debates ended by a provider failure")

	return o
}

func (o *Orchestrator) counter(name, desc string) metric.Int64Counter {
	c, err := o.meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil {
		o.logger.Warn("failed to create counter", "name", name, "error", err)
	}
	return c
}

func (o *Orchestrator) add(ctx context.Context, c metric.Int64Counter, n int64) {
	if c != nil {
		c.Add(ctx, n)
	}
}

// Session returns a snapshot of the current session
func (o *Orchestrator) Session() Session {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.session
}

// Params returns the parameters used for the next debate
func (o *Orchestrator) Params() Params {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.params
}

// SetParams changes the parameters used for the next debate. A debate in
// progress keeps the parameters it started with.
func (o *Orchestrator) SetParams(p Params) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.params = p
}

// Start begins a debate in the background. It returns false, changing
// nothing, when the topic is blank or a debate is already active.
func (o *Orchestrator) Start(ctx context.Context, topic string) bool {
	effects, err := o.begin(ctx, topic)
	if err != nil {
		o.logger.Debug("debate start ignored", "reason", err)
		return false
	}

	runCtx, cancel := o.runContext(context.WithoutCancel(ctx))
	o.wg.Add(1)
	go func() {
		defer o.wg.Done()
		defer cancel()
		o.drive(runCtx, effects)
	}()
	return true
}

// Run plays a whole debate and returns the final session. The silent no-op
// cases of Start are reported as ErrEmptyTopic and ErrDebateActive.
func (o *Orchestrator) Run(ctx context.Context, topic string) (Session, error) {
	effects, err := o.begin(ctx, topic)
	if err != nil {
		return o.Session(), err
	}
	runCtx, cancel := o.runContext(ctx)
	defer cancel()
	o.drive(runCtx, effects)
	return o.Session(), nil
}

// Wait blocks until every debate started with Start has concluded
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown cancels running debates, which conclude with an error notice,
// and waits for them until ctx is done. Later starts are refused.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// runContext derives a debate context from ctx that is also cancelled by
// Shutdown.
func (o *Orchestrator) runContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(ctx)
	stop := context.AfterFunc(o.base, cancel)
	return ctx, func() {
		stop()
		cancel()
	}
}

func (o *Orchestrator) begin(ctx context.Context, topic string) ([]Effect, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, ErrEmptyTopic
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	if o.base.Err() != nil {
		return nil, ErrShutdown
	}
	if o.running || o.session.Active() {
		return nil, ErrDebateActive
	}

	next, effects := Start(o.session, o.newID(), topic, o.params)
	o.session = next
	o.running = true
	o.add(ctx, o.started, 1)
	o.logger.Info("debate started", "session_id", next.ID, "topic", next.Topic, "max_rounds", next.MaxRounds)
	return effects, nil
}

func (o *Orchestrator) drive(ctx context.Context, effects []Effect) {
	defer func() {
		o.mu.Lock()
		o.running = false
		o.mu.Unlock()
	}()

	sess := o.Session()
	ctx, span := o.tracer.Start(ctx, "debate",
		trace.WithAttributes(
			attribute.String("debate.id", sess.ID),
			attribute.String("debate.topic", sess.Topic),
		),
	)
	defer span.End()

	for len(effects) > 0 {
		var pending *IssueRequests
		for _, e := range effects {
			switch e := e.(type) {
			case ResetTranscripts:
				o.sink.Reset(e.SessionID, e.Topic)
			case AppendMessage:
				o.emit(e.Message)
			case IssueRequests:
				pending = &e
			}
		}
		if pending == nil {
			break
		}
		effects = o.issue(ctx, *pending)
	}

	final := o.Session()
	span.SetAttributes(attribute.Int("debate.rounds", final.Round))
	if final.Error != "" {
		span.SetStatus(codes.Error, final.Error)
	}
	o.logger.Info("debate concluded", "session_id", final.ID, "rounds", final.Round, "error", final.Error)
}

func (o *Orchestrator) issue(ctx context.Context, is IssueRequests) []Effect {
	if is.Delay > 0 {
		select {
		case <-o.after(is.Delay):
		case <-ctx.Done():
			return o.fail(ctx, ctx.Err())
		}
	}

	for _, req := range is.Requests {
		o.emit(Message{Persona: req.Persona, Kind: KindThinking, Text: thinkingText})
	}

	ctx, span := o.tracer.Start(ctx, "debate.exchange",
		trace.WithAttributes(attribute.Int("debate.requests", len(is.Requests))),
	)
	outcomes := Join(ctx, o.provider, is.Requests)
	span.End()

	if err := FirstError(outcomes); err != nil {
		for _, out := range outcomes {
			if out.Err != nil {
				o.logger.Error("provider request failed", "persona", out.Persona, "error", out.Err)
			}
		}
		return o.fail(ctx, err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	before := o.session.Round
	var effects []Effect
	for _, out := range outcomes {
		next, effs := SubmitReply(o.session, out.Persona, out.Text)
		o.session = next
		effects = append(effects, effs...)
		o.logger.Debug("persona replied", "session_id", next.ID, "persona", out.Persona, "round", next.Round, "state", next.State)
	}
	if o.session.Round > before {
		o.add(ctx, o.rounds, int64(o.session.Round-before))
	}
	return effects
}

func (o *Orchestrator) fail(ctx context.Context, err error) []Effect {
	o.mu.Lock()
	defer o.mu.Unlock()

	next, effects := Fail(o.session, err)
	o.session = next
	o.add(ctx, o.failures, 1)
	o.logger.Warn("debate failed", "session_id", next.ID, "round", next.Round, "error", err)
	return effects
}

func (o *Orchestrator) emit(msg Message) {
	if msg.Time.IsZero() {
		msg.Time = o.now()
	}
	o.sink.Append(msg)
}
