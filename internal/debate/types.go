package debate

import (
	"fmt"
	"time"
)

// Persona identifies one of the two debate roles
type Persona string

const (
	Devil    Persona = "devil"
	Optimist Persona = "optimist"
)

// Personas lists both roles in transcript order
var Personas = []Persona{Devil, Optimist}

// ParsePersona converts a wire value into a Persona
func ParsePersona(s string) (Persona, error) {
	switch Persona(s) {
	case Devil, Optimist:
		return Persona(s), nil
	default:
		return "", fmt.Errorf("unknown persona: %q", s)
	}
}

// Title returns the display name used in prompts
func (p Persona) Title() string {
	switch p {
	case Devil:
		return "Devil's Advocate"
	case Optimist:
		return "Optimist"
	default:
		return string(p)
	}
}

// Opponent returns the other persona
func (p Persona) Opponent() Persona {
	if p == Devil {
		return Optimist
	}
	return Devil
}

// State is the orchestrator state
type State int

const (
	Idle State = iota
	AwaitingInitialReplies
	AwaitingRoundReplies
	Concluded
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case AwaitingInitialReplies:
		return "awaiting_initial_replies"
	case AwaitingRoundReplies:
		return "awaiting_round_replies"
	case Concluded:
		return "concluded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText lets State appear by name in JSON and logs
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText parses a state name produced by MarshalText
func (s *State) UnmarshalText(text []byte) error {
	for _, st := range []State{Idle, AwaitingInitialReplies, AwaitingRoundReplies, Concluded} {
		if st.String() == string(text) {
			*s = st
			return nil
		}
	}
	return fmt.Errorf("unknown state: %q", text)
}

// Kind classifies a transcript message
type Kind string

const (
	KindReply     Kind = "reply"
	KindThinking  Kind = "thinking"
	KindError     Kind = "error"
	KindConcluded Kind = "concluded"
)

// Message is a single entry in a persona's transcript
type Message struct {
	Persona Persona   `json:"persona"`
	Kind    Kind      `json:"kind"`
	Text    string    `json:"text"`
	Time    time.Time `json:"time"`
}

// Request is one call to the Response Provider
type Request struct {
	Prompt    string  `json:"prompt"`
	Persona   Persona `json:"botType"`
	Intensity float64 `json:"intensity"`
}

// Outcome captures the result of a single Request
type Outcome struct {
	Persona Persona
	Text    string
	Err     error
}

// Params holds the tunables of a debate
type Params struct {
	MaxRounds         int
	RoundDelay        time.Duration
	DevilIntensity    float64
	OptimistIntensity float64
}

// DefaultParams returns three rounds paced 1.5s apart at neutral intensity
func DefaultParams() Params {
	return Params{
		MaxRounds:         3,
		RoundDelay:        1500 * time.Millisecond,
		DevilIntensity:    1.0,
		OptimistIntensity: 1.0,
	}
}

// Intensity returns the configured intensity for a persona
func (p Params) Intensity(persona Persona) float64 {
	if persona == Devil {
		return p.DevilIntensity
	}
	return p.OptimistIntensity
}

const (
	thinkingText  = "Thinking..."
	concludedText = "Debate concluded."
)
