package arena

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"DebateArena/internal/backend"
	"DebateArena/internal/config"
	"DebateArena/internal/debate"
	"DebateArena/internal/trivia"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func immediately(time.Duration) <-chan time.Time {
	ch := make(chan time.Time, 1)
	ch <- time.Now()
	return ch
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Logging.Dir = filepath.Join(dir, "logs")
	cfg.Storage.DBPath = filepath.Join(dir, "arena.db")
	return cfg
}

type countingProvider struct {
	mu    sync.Mutex
	calls int
	fail  error
}

func (p *countingProvider) Reply(ctx context.Context, req debate.Request) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls++
	if p.fail != nil {
		return "", p.fail
	}
	return fmt.Sprintf("%s reply %d", req.Persona, p.calls), nil
}

func newTestApp(t *testing.T, cfg *config.Config, p debate.Provider, input string) (*App, *bytes.Buffer) {
	t.Helper()
	out := &bytes.Buffer{}
	opts := []Option{
		WithIO(strings.NewReader(input), out),
		WithOrchestratorOptions(debate.WithAfter(immediately)),
	}
	if p != nil {
		opts = append(opts, WithProvider(p))
	}
	app, err := New(context.Background(), cfg, opts...)
	require.NoError(t, err)
	t.Cleanup(app.Close)
	return app, out
}

func TestConsoleDebateAndHistory(t *testing.T) {
	p := &countingProvider{}
	app, out := newTestApp(t, testConfig(t), p, "cats\n\n/history\n/quit\nignored\n")

	require.NoError(t, app.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "=== Debate: cats ===")
	assert.Contains(t, text, "[Devil's Advocate] Thinking...")
	assert.Contains(t, text, "[Optimist] *** Debate concluded. ***")
	assert.Contains(t, text, "rounds=3")
	assert.Contains(t, text, "Goodbye!")
	assert.Equal(t, 6, p.calls)

	sess := app.Orchestrator().Session()
	assert.Equal(t, debate.Concluded, sess.State)
	assert.Equal(t, "cats", sess.Topic)
}

func TestConsoleCommands(t *testing.T) {
	input := strings.Join([]string{
		"/intensity devil 1.8",
		"/intensity optimist 2.5",
		"/intensity optimist 0",
		"/intensity pessimist 1",
		"/rounds 1",
		"/rounds",
		"/show missing",
		"/bogus",
		"/help",
	}, "\n")
	app, out := newTestApp(t, testConfig(t), &countingProvider{}, input)

	require.NoError(t, app.Run(context.Background()))

	p := app.Orchestrator().Params()
	assert.Equal(t, 1.8, p.DevilIntensity)
	assert.Equal(t, 1.0, p.OptimistIntensity)
	assert.Equal(t, 1, p.MaxRounds)

	text := out.String()
	assert.Contains(t, text, "Devil's Advocate intensity set to 1.80")
	assert.Contains(t, text, `intensity must be greater than 0 and at most 2, got "2.5"`)
	assert.Contains(t, text, `intensity must be greater than 0 and at most 2, got "0"`)
	assert.Contains(t, text, `unknown persona: "pessimist"`)
	assert.Contains(t, text, "Max rounds: 1")
	assert.Contains(t, text, "no debate with id missing")
	assert.Contains(t, text, "unknown command: /bogus")
	assert.Contains(t, text, "Available commands:")
}

func TestRunTopicFailureIsStored(t *testing.T) {
	p := &countingProvider{fail: errors.New("rate limited")}
	app, out := newTestApp(t, testConfig(t), p, "")

	sess, err := app.RunTopic(context.Background(), "cats")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limited")
	assert.Equal(t, debate.Concluded, sess.State)

	out.Reset()
	require.NoError(t, app.Show(context.Background(), sess.ID))
	text := out.String()
	assert.Contains(t, text, "Outcome: error")
	assert.Equal(t, 2, strings.Count(text, "Error: rate limited. Debate ended."))
	assert.NotContains(t, text, "Debate concluded.")
}

func TestRunTopicNoOp(t *testing.T) {
	app, _ := newTestApp(t, testConfig(t), &countingProvider{}, "")

	_, err := app.RunTopic(context.Background(), "   ")
	assert.ErrorIs(t, err, debate.ErrEmptyTopic)
}

func TestLocalProviderUsesBackend(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	ollama := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req backend.OllamaRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		mu.Lock()
		calls++
		n := calls
		mu.Unlock()

		var resp backend.OllamaResponse
		resp.Message.Content = fmt.Sprintf("generated %d", n)
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer ollama.Close()

	cfg := testConfig(t)
	cfg.Backend.BaseURL = ollama.URL
	cfg.Debate.MaxRounds = 1
	app, out := newTestApp(t, cfg, nil, "")

	sess, err := app.RunTopic(context.Background(), "cats")
	require.NoError(t, err)
	assert.Equal(t, 1, sess.Round)
	mu.Lock()
	assert.Equal(t, 2, calls)
	mu.Unlock()
	assert.Contains(t, out.String(), "generated")
}

func TestConsoleTrivia(t *testing.T) {
	cfg := testConfig(t)
	cfg.Trivia.PlayersPath = filepath.Join(t.TempDir(), "players.json")
	require.NoError(t, os.WriteFile(cfg.Trivia.PlayersPath, []byte(`[
		{"name": "Tom Brady", "conference": "BIG TEN", "color": ["Blue", "Yellow"], "college": "Michigan"}
	]`), 0o644))

	input := strings.Join([]string{
		"/trivia",
		"michigan",
		"",
		"  MICHIGAN ",
		"ohio state",
		"/quit",
		"/history",
		"/quit",
	}, "\n")
	app, out := newTestApp(t, cfg, &countingProvider{}, input)

	require.NoError(t, app.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "=== College Guessing Game ===")
	assert.Contains(t, text, "Lives: 5  High score: 0")
	assert.Equal(t, 3, strings.Count(text, "Player: Tom Brady"))
	assert.Contains(t, text, "Conference: BIG TEN")
	assert.Contains(t, text, "Colors: Blue, Yellow")
	assert.Equal(t, 2, strings.Count(text, "Correct!"))
	assert.Contains(t, text, "Incorrect! The correct answer was Michigan.")
	assert.Contains(t, text, "Score: 20  Lives: 4  High score: 20")
	assert.Contains(t, text, "Game over! Final score: 20  High score: 20")
	// back at the topic prompt after the game
	assert.Contains(t, text, "No debates yet.")
	assert.Contains(t, text, "Goodbye!")

	high, err := app.store.HighScore(context.Background(), trivia.GameName)
	require.NoError(t, err)
	assert.Equal(t, 20, high)
}

func TestTriviaFallbackRosterAndLostLives(t *testing.T) {
	cfg := testConfig(t)
	cfg.Trivia.PlayersPath = filepath.Join(t.TempDir(), "missing.json")
	app, out := newTestApp(t, cfg, &countingProvider{}, strings.Repeat("nowhere\n", trivia.StartingLives+1))

	ctx := context.Background()
	require.NoError(t, app.store.SaveHighScore(ctx, trivia.GameName, 50))

	require.NoError(t, app.PlayTrivia(ctx))

	text := out.String()
	assert.Contains(t, text, "Lives: 5  High score: 50")
	assert.Equal(t, trivia.StartingLives, strings.Count(text, "Incorrect! The correct answer was"))
	assert.Contains(t, text, "Score: 0  Lives: 0  High score: 50")
	assert.Contains(t, text, "Game over! Final score: 0  High score: 50")
	assert.NotContains(t, text, "Correct!")

	high, err := app.store.HighScore(ctx, trivia.GameName)
	require.NoError(t, err)
	assert.Equal(t, 50, high)
}
