package debate

import "sync"

// Sink receives transcript events emitted by the Orchestrator
type Sink interface {
	Reset(sessionID, topic string)
	Append(msg Message)
}

// Sinks fans every event out to each sink in order
type Sinks []Sink

func (ss Sinks) Reset(sessionID, topic string) {
	for _, s := range ss {
		s.Reset(sessionID, topic)
	}
}

func (ss Sinks) Append(msg Message) {
	for _, s := range ss {
		s.Append(msg)
	}
}

// Transcripts keeps an append-only message list per persona. A trailing
// thinking placeholder is dropped when any other message arrives for that
// persona.
type Transcripts struct {
	mu        sync.RWMutex
	sessionID string
	topic     string
	messages  map[Persona][]Message
}

// NewTranscripts creates empty transcripts
func NewTranscripts() *Transcripts {
	return &Transcripts{messages: make(map[Persona][]Message)}
}

// Reset clears both transcripts
func (t *Transcripts) Reset(sessionID, topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessionID = sessionID
	t.topic = topic
	t.messages = make(map[Persona][]Message)
}

// Append adds msg to its persona's transcript
func (t *Transcripts) Append(msg Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	list := t.messages[msg.Persona]
	if msg.Kind != KindThinking {
		if n := len(list); n > 0 && list[n-1].Kind == KindThinking {
			list = list[:n-1]
		}
	}
	t.messages[msg.Persona] = append(list, msg)
}

// Messages returns a copy of persona's transcript
func (t *Transcripts) Messages(persona Persona) []Message {
	t.mu.RLock()
	defer t.mu.RUnlock()
	out := make([]Message, len(t.messages[persona]))
	copy(out, t.messages[persona])
	return out
}

// SessionID returns the id of the session the transcripts belong to
func (t *Transcripts) SessionID() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sessionID
}

// Snapshot returns both transcripts keyed by persona
func (t *Transcripts) Snapshot() map[Persona][]Message {
	out := make(map[Persona][]Message, len(Personas))
	for _, p := range Personas {
		out[p] = t.Messages(p)
	}
	return out
}
