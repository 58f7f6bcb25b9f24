package debate

import "time"

// Effect is an action produced by a transition for the Orchestrator to perform
type Effect interface {
	isEffect()
}

// ResetTranscripts clears both transcripts for a new session
type ResetTranscripts struct {
	SessionID string
	Topic     string
}

// AppendMessage appends a message to the transcript of Message.Persona
type AppendMessage struct {
	Message Message
}

// IssueRequests asks the Orchestrator to call the Response Provider after
// Delay. Each request gets a thinking placeholder when it is issued. More
// than one request means a concurrent fan-out joined on every outcome.
type IssueRequests struct {
	Requests []Request
	Delay    time.Duration
}

func (ResetTranscripts) isEffect() {}
func (AppendMessage) isEffect()    {}
func (IssueRequests) isEffect()    {}
