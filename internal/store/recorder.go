package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"DebateArena/internal/debate"
)

const writeTimeout = 5 * time.Second

// Recorder is a debate.Sink that persists transcripts. Thinking
// placeholders are not stored. Storage failures are logged and never
// interrupt the debate.
type Recorder struct {
	store  *Store
	logger *slog.Logger
	now    func() time.Time

	mu        sync.Mutex
	debateID  string
	rounds    int
	finished  bool
	recording bool
}

// NewRecorder creates a Recorder writing to s
func NewRecorder(s *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	return &Recorder{store: s, logger: logger, now: time.Now}
}

// Reset starts recording a new debate
func (r *Recorder) Reset(sessionID, topic string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.debateID = sessionID
	r.rounds = 0
	r.finished = false
	r.recording = true

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()
	if err := r.store.SaveDebate(ctx, sessionID, topic, r.now()); err != nil {
		r.logger.Error("failed to record debate", "debate_id", sessionID, "error", err)
		r.recording = false
	}
}

// Append stores msg and finishes the debate row on the first terminal message
func (r *Recorder) Append(msg debate.Message) {
	if msg.Kind == debate.KindThinking {
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.recording {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := r.store.AppendMessage(ctx, r.debateID, msg); err != nil {
		r.logger.Error("failed to record message", "debate_id", r.debateID, "error", err)
	}

	switch msg.Kind {
	case debate.KindReply:
		// the optimist speaks last in every round
		if msg.Persona == debate.Optimist {
			r.rounds++
		}
	case debate.KindConcluded, debate.KindError:
		if r.finished {
			return
		}
		r.finished = true
		outcome := OutcomeConcluded
		if msg.Kind == debate.KindError {
			outcome = OutcomeError
		}
		if err := r.store.FinishDebate(ctx, r.debateID, r.rounds, outcome, r.now()); err != nil {
			r.logger.Error("failed to finish debate", "debate_id", r.debateID, "error", err)
		}
	}
}
