package debate

import (
	"fmt"
	"strings"
)

// Session is the state of one debate. It is a value: transitions return a
// new Session rather than mutating the receiver.
type Session struct {
	ID                string  `json:"id"`
	Topic             string  `json:"topic"`
	Round             int     `json:"round"`
	MaxRounds         int     `json:"max_rounds"`
	State             State   `json:"state"`
	LastDevilReply    *string `json:"last_devil_reply,omitempty"`
	LastOptimistReply *string `json:"last_optimist_reply,omitempty"`
	Error             string  `json:"error,omitempty"`

	params        Params
	awaitDevil    bool
	awaitOptimist bool
}

// Active reports whether the session still expects provider replies
func (s Session) Active() bool {
	return s.State == AwaitingInitialReplies || s.State == AwaitingRoundReplies
}

// Awaiting reports whether a reply from persona would be accepted
func (s Session) Awaiting(persona Persona) bool {
	if persona == Devil {
		return s.awaitDevil
	}
	return s.awaitOptimist
}

// LastReply returns the most recent reply of persona, or "" if none
func (s Session) LastReply(persona Persona) string {
	p := s.LastDevilReply
	if persona == Optimist {
		p = s.LastOptimistReply
	}
	if p == nil {
		return ""
	}
	return *p
}

// Start begins a new debate on topic. It is a no-op when the topic is blank
// or prev is still active. Starting from Concluded skips Idle.
func Start(prev Session, id, topic string, params Params) (Session, []Effect) {
	topic = strings.TrimSpace(topic)
	if topic == "" || prev.Active() {
		return prev, nil
	}
	if params.MaxRounds < 1 {
		params.MaxRounds = DefaultParams().MaxRounds
	}

	s := Session{
		ID:            id,
		Topic:         topic,
		MaxRounds:     params.MaxRounds,
		State:         AwaitingInitialReplies,
		params:        params,
		awaitDevil:    true,
		awaitOptimist: true,
	}

	return s, []Effect{
		ResetTranscripts{SessionID: id, Topic: topic},
		IssueRequests{Requests: []Request{
			s.request(Devil, topic),
			s.request(Optimist, topic),
		}},
	}
}

// SubmitReply records a persona reply. Once the current exchange is complete
// it either issues the next request or concludes at the round cap. Replies
// the session is not waiting for are ignored.
func SubmitReply(s Session, persona Persona, text string) (Session, []Effect) {
	if !s.Active() || !s.Awaiting(persona) {
		return s, nil
	}

	reply := text
	if persona == Devil {
		s.awaitDevil = false
		s.LastDevilReply = &reply
	} else {
		s.awaitOptimist = false
		s.LastOptimistReply = &reply
	}

	effects := []Effect{AppendMessage{Message: Message{Persona: persona, Kind: KindReply, Text: text}}}

	switch s.State {
	case AwaitingInitialReplies:
		if s.awaitDevil || s.awaitOptimist {
			return s, effects
		}
		return completeRound(s, effects)
	case AwaitingRoundReplies:
		if persona == Devil {
			s.awaitOptimist = true
			return s, append(effects, IssueRequests{Requests: []Request{s.rebuttal(Optimist)}})
		}
		return completeRound(s, effects)
	}
	return s, effects
}

// Fail concludes an active session after a provider failure. Both
// transcripts end with the error notice.
func Fail(s Session, err error) (Session, []Effect) {
	if !s.Active() || err == nil {
		return s, nil
	}

	s.State = Concluded
	s.awaitDevil = false
	s.awaitOptimist = false
	s.Error = err.Error()

	text := fmt.Sprintf("Error: %s. Debate ended.", strings.TrimRight(err.Error(), ". "))
	effects := make([]Effect, 0, len(Personas))
	for _, p := range Personas {
		effects = append(effects, AppendMessage{Message: Message{Persona: p, Kind: KindError, Text: text}})
	}
	return s, effects
}

func completeRound(s Session, effects []Effect) (Session, []Effect) {
	s.Round++
	if s.Round >= s.MaxRounds {
		s.State = Concluded
		for _, p := range Personas {
			effects = append(effects, AppendMessage{Message: Message{Persona: p, Kind: KindConcluded, Text: concludedText}})
		}
		return s, effects
	}

	s.State = AwaitingRoundReplies
	s.awaitDevil = true
	return s, append(effects, IssueRequests{
		Requests: []Request{s.rebuttal(Devil)},
		Delay:    s.params.RoundDelay,
	})
}

func (s Session) request(persona Persona, prompt string) Request {
	return Request{Prompt: prompt, Persona: persona, Intensity: s.params.Intensity(persona)}
}

// rebuttal quotes the opponent's latest reply and asks persona to answer in role
func (s Session) rebuttal(persona Persona) Request {
	speaker := persona.Opponent()
	prompt := fmt.Sprintf("Topic: %s\n\n%s said: \"%s\"\n\nRespond as %s:",
		s.Topic, speaker.Title(), s.LastReply(speaker), persona.Title())
	return s.request(persona, prompt)
}
