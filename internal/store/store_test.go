package store

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"DebateArena/internal/debate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "test.db"), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestStoreRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	start := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	require.NoError(t, s.SaveDebate(ctx, "d1", "cats", start))
	require.NoError(t, s.AppendMessage(ctx, "d1", debate.Message{Persona: debate.Devil, Kind: debate.KindReply, Text: "no", Time: start.Add(time.Second)}))
	require.NoError(t, s.AppendMessage(ctx, "d1", debate.Message{Persona: debate.Optimist, Kind: debate.KindReply, Text: "yes", Time: start.Add(time.Second)}))
	require.NoError(t, s.FinishDebate(ctx, "d1", 1, OutcomeConcluded, start.Add(time.Minute)))

	d, err := s.LoadDebate(ctx, "d1")
	require.NoError(t, err)
	assert.Equal(t, "cats", d.Topic)
	assert.True(t, d.StartedAt.Equal(start))
	require.NotNil(t, d.EndedAt)
	assert.True(t, d.EndedAt.Equal(start.Add(time.Minute)))
	assert.Equal(t, 1, d.Rounds)
	assert.Equal(t, OutcomeConcluded, d.Outcome)

	require.Len(t, d.Messages, 2)
	assert.Equal(t, debate.Devil, d.Messages[0].Persona)
	assert.Equal(t, "no", d.Messages[0].Text)
	assert.Equal(t, debate.Optimist, d.Messages[1].Persona)
	assert.Equal(t, debate.KindReply, d.Messages[1].Kind)
}

func TestStoreNotFound(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.LoadDebate(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.FinishDebate(ctx, "missing", 0, OutcomeError, time.Now())
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListDebatesNewestFirst(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.SaveDebate(ctx, id, "topic "+id, base.Add(time.Duration(i)*time.Hour)))
	}

	list, err := s.ListDebates(ctx, 2)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c", list[0].ID)
	assert.Equal(t, "b", list[1].ID)
	assert.Nil(t, list[0].EndedAt)
	assert.Empty(t, list[0].Messages)
}

func TestRecorder(t *testing.T) {
	s := openTestStore(t)
	r := NewRecorder(s, nil)

	r.Reset("d1", "cats")
	for _, msg := range []debate.Message{
		{Persona: debate.Devil, Kind: debate.KindThinking, Text: "Thinking..."},
		{Persona: debate.Devil, Kind: debate.KindReply, Text: "d0"},
		{Persona: debate.Optimist, Kind: debate.KindReply, Text: "o0"},
		{Persona: debate.Devil, Kind: debate.KindReply, Text: "d1"},
		{Persona: debate.Optimist, Kind: debate.KindReply, Text: "o1"},
		{Persona: debate.Devil, Kind: debate.KindConcluded, Text: "Debate concluded."},
		{Persona: debate.Optimist, Kind: debate.KindConcluded, Text: "Debate concluded."},
	} {
		msg.Time = time.Now()
		r.Append(msg)
	}

	d, err := s.LoadDebate(context.Background(), "d1")
	require.NoError(t, err)
	assert.Equal(t, 2, d.Rounds)
	assert.Equal(t, OutcomeConcluded, d.Outcome)
	assert.NotNil(t, d.EndedAt)
	assert.Len(t, d.Messages, 6)
}

func TestRecorderWithOrchestratorFailure(t *testing.T) {
	s := openTestStore(t)
	p := debate.ProviderFunc(func(ctx context.Context, req debate.Request) (string, error) {
		return "", errors.New("rate limited")
	})
	orch := debate.NewOrchestrator(p, NewRecorder(s, nil), debate.DefaultParams(), nil,
		debate.WithIDGenerator(func() string { return "d-fail" }),
	)

	_, err := orch.Run(context.Background(), "universal basic income")
	require.NoError(t, err)

	d, err := s.LoadDebate(context.Background(), "d-fail")
	require.NoError(t, err)
	assert.Equal(t, 0, d.Rounds)
	assert.Equal(t, OutcomeError, d.Outcome)
	require.Len(t, d.Messages, 2)
	assert.Equal(t, "Error: rate limited. Debate ended.", d.Messages[1].Text)
}

func TestHighScoreOnlyRises(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	score, err := s.HighScore(ctx, "college")
	require.NoError(t, err)
	assert.Zero(t, score)

	require.NoError(t, s.SaveHighScore(ctx, "college", 30))
	require.NoError(t, s.SaveHighScore(ctx, "college", 20))
	score, err = s.HighScore(ctx, "college")
	require.NoError(t, err)
	assert.Equal(t, 30, score)

	require.NoError(t, s.SaveHighScore(ctx, "college", 40))
	score, err = s.HighScore(ctx, "college")
	require.NoError(t, err)
	assert.Equal(t, 40, score)

	other, err := s.HighScore(ctx, "other")
	require.NoError(t, err)
	assert.Zero(t, other)
}
