package arena

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"

	"DebateArena/internal/backend"
	"DebateArena/internal/config"
	"DebateArena/internal/debate"
	"DebateArena/internal/store"
)

const defaultHistoryLimit = 10

// printer is a debate.Sink that streams transcript entries to the console
type printer struct {
	mu  sync.Mutex
	out io.Writer
}

func newPrinter(out io.Writer) *printer {
	return &printer{out: out}
}

func (p *printer) Reset(sessionID, topic string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintf(p.out, "\n=== Debate: %s ===\n", topic)
	fmt.Fprintf(p.out, "Session: %s\n\n", sessionID)
}

func (p *printer) Append(msg debate.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	fmt.Fprintln(p.out, formatMessage(msg))
}

func formatMessage(msg debate.Message) string {
	switch msg.Kind {
	case debate.KindThinking:
		return fmt.Sprintf("[%s] %s", msg.Persona.Title(), msg.Text)
	case debate.KindReply:
		return fmt.Sprintf("[%s] %s\n", msg.Persona.Title(), msg.Text)
	default:
		return fmt.Sprintf("[%s] *** %s ***", msg.Persona.Title(), msg.Text)
	}
}

// Run reads topics and commands from the console until /quit or end of input
func (a *App) Run(ctx context.Context) error {
	fmt.Fprintln(a.out, "=== Debate Arena ===")
	fmt.Fprintf(a.out, "Backend: %s (%s)\n", a.backend.Name(), a.backend.Model())
	fmt.Fprintln(a.out, "Type a topic to start a debate, /help for commands, /quit to exit")
	fmt.Fprintln(a.out)

	scanner := a.input()
	for {
		fmt.Fprint(a.out, "Topic: ")
		if !scanner.Scan() {
			break
		}

		input := strings.TrimSpace(scanner.Text())
		if input == "" {
			continue
		}

		if strings.HasPrefix(input, "/") {
			shouldQuit, err := a.handleCommand(ctx, input)
			if err != nil {
				fmt.Fprintf(a.out, "Error: %v\n", err)
				a.logger.Error("command error", "error", err)
			}
			if shouldQuit {
				break
			}
			continue
		}

		if _, err := a.orch.Run(ctx, input); err != nil {
			a.logger.Warn("debate not started", "error", err)
			continue
		}
		fmt.Fprintln(a.out)

		if ctx.Err() != nil {
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}

	fmt.Fprintln(a.out, "Goodbye!")
	return nil
}

// input returns the console scanner shared by the topic loop and the game
func (a *App) input() *bufio.Scanner {
	if a.scanner == nil {
		a.scanner = bufio.NewScanner(a.in)
	}
	return a.scanner
}

// handleCommand handles slash commands
func (a *App) handleCommand(ctx context.Context, cmd string) (bool, error) {
	parts := strings.Fields(cmd)
	if len(parts) == 0 {
		return false, nil
	}

	switch parts[0] {
	case "/quit", "/exit":
		return true, nil

	case "/history":
		limit := defaultHistoryLimit
		if len(parts) > 1 {
			n, err := strconv.Atoi(parts[1])
			if err != nil || n < 1 {
				return false, fmt.Errorf("usage: /history [limit]")
			}
			limit = n
		}
		return false, a.History(ctx, limit)

	case "/show":
		if len(parts) < 2 {
			return false, fmt.Errorf("usage: /show <debate-id>")
		}
		return false, a.Show(ctx, parts[1])

	case "/intensity":
		if len(parts) < 3 {
			return false, fmt.Errorf("usage: /intensity <devil|optimist> <x in (0,2]>")
		}
		persona, err := debate.ParsePersona(parts[1])
		if err != nil {
			return false, err
		}
		x, err := strconv.ParseFloat(parts[2], 64)
		if err != nil || !config.ValidIntensity(x) {
			return false, fmt.Errorf("intensity must be greater than 0 and at most 2, got %q", parts[2])
		}
		p := a.orch.Params()
		if persona == debate.Devil {
			p.DevilIntensity = x
		} else {
			p.OptimistIntensity = x
		}
		a.orch.SetParams(p)
		fmt.Fprintf(a.out, "%s intensity set to %.2f\n", persona.Title(), x)
		return false, nil

	case "/rounds":
		p := a.orch.Params()
		if len(parts) < 2 {
			fmt.Fprintf(a.out, "Max rounds: %d\n", p.MaxRounds)
			return false, nil
		}
		n, err := strconv.Atoi(parts[1])
		if err != nil || n < 1 {
			return false, fmt.Errorf("usage: /rounds [n>=1]")
		}
		p.MaxRounds = n
		a.orch.SetParams(p)
		fmt.Fprintf(a.out, "Max rounds set to %d\n", n)
		return false, nil

	case "/trivia":
		return false, a.PlayTrivia(ctx)

	case "/models":
		if a.backend.Name() != backend.Ollama {
			return false, fmt.Errorf("/models is only available with the ollama backend")
		}
		models, err := a.backend.ListOllamaModels(ctx)
		if err != nil {
			return false, fmt.Errorf("failed to list Ollama models: %w", err)
		}
		fmt.Fprintln(a.out, "\nAvailable Ollama models:")
		for i, model := range models {
			sizeGB := float64(model.Size) / (1024 * 1024 * 1024)
			current := ""
			if model.Name == a.backend.Model() {
				current = " (current)"
			}
			fmt.Fprintf(a.out, "%d. %s - %.2f GB%s\n", i+1, model.Name, sizeGB, current)
		}
		fmt.Fprintln(a.out)
		return false, nil

	case "/help":
		fmt.Fprintln(a.out, "Available commands:")
		fmt.Fprintln(a.out, "  <topic>                        - Start a debate on a topic")
		fmt.Fprintln(a.out, "  /history [limit]               - List past debates")
		fmt.Fprintln(a.out, "  /show <id>                     - Show a stored debate")
		fmt.Fprintln(a.out, "  /intensity <devil|optimist> x  - Set persona intensity (0-2], 0 excluded")
		fmt.Fprintln(a.out, "  /rounds [n]                    - Show or set the number of rounds")
		fmt.Fprintln(a.out, "  /trivia                        - Play the college guessing game")
		fmt.Fprintln(a.out, "  /models                        - List available Ollama models")
		fmt.Fprintln(a.out, "  /help                          - Show this help message")
		fmt.Fprintln(a.out, "  /quit, /exit                   - Exit")
		return false, nil

	default:
		return false, fmt.Errorf("unknown command: %s (try /help)", parts[0])
	}
}

// History prints the most recent debates
func (a *App) History(ctx context.Context, limit int) error {
	debates, err := a.store.ListDebates(ctx, limit)
	if err != nil {
		return err
	}
	if len(debates) == 0 {
		fmt.Fprintln(a.out, "No debates yet.")
		return nil
	}

	for _, d := range debates {
		outcome := d.Outcome
		if outcome == "" {
			outcome = "unfinished"
		}
		fmt.Fprintf(a.out, "%s  %s  %-10s rounds=%d  %s\n",
			d.ID, d.StartedAt.Local().Format("2006-01-02 15:04"), outcome, d.Rounds, d.Topic)
	}
	return nil
}

// Show prints a stored debate with both transcripts
func (a *App) Show(ctx context.Context, id string) error {
	d, err := a.store.LoadDebate(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return fmt.Errorf("no debate with id %s", id)
	}
	if err != nil {
		return err
	}

	fmt.Fprintf(a.out, "=== Debate: %s ===\n", d.Topic)
	fmt.Fprintf(a.out, "Started: %s  Rounds: %d  Outcome: %s\n\n",
		d.StartedAt.Local().Format("2006-01-02 15:04:05"), d.Rounds, d.Outcome)
	for _, persona := range debate.Personas {
		fmt.Fprintf(a.out, "--- %s ---\n", persona.Title())
		for _, msg := range d.Messages {
			if msg.Persona == persona {
				fmt.Fprintln(a.out, formatMessage(msg))
			}
		}
	}
	return nil
}
