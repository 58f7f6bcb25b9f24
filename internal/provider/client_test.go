package provider

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"

	"DebateArena/internal/debate"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body ReplyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, ReplyRequest{Prompt: "cats", BotType: "devil", Intensity: 1.5}, body)

		_, _ = w.Write([]byte(`{"reply":"cats are a menace"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	text, err := c.Reply(context.Background(), debate.Request{Prompt: "cats", Persona: debate.Devil, Intensity: 1.5})
	require.NoError(t, err)
	assert.Equal(t, "cats are a menace", text)
}

func TestClientNormalizesIntensity(t *testing.T) {
	var got []float64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body ReplyRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		got = append(got, body.Intensity)
		_, _ = w.Write([]byte(`{"reply":"ok"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, nil)
	for _, x := range []float64{0, -3, math.NaN()} {
		_, err := c.Reply(context.Background(), debate.Request{Prompt: "p", Persona: debate.Optimist, Intensity: x})
		require.NoError(t, err)
	}
	assert.Equal(t, []float64{1, 1, 1}, got)
}

func TestClientErrors(t *testing.T) {
	tests := []struct {
		name       string
		status     int
		body       string
		wantStatus int
		wantMsg    string
	}{
		{"transport error with message", http.StatusTooManyRequests, `{"error":"rate limited"}`, 429, "rate limited"},
		{"transport error without body", http.StatusInternalServerError, `upstream exploded`, 500, "API request failed"},
		{"transport error empty error field", http.StatusBadGateway, `{"error":""}`, 502, "API request failed"},
		{"payload error", http.StatusOK, `{"error":"model overloaded"}`, 200, "model overloaded"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL, nil).Reply(context.Background(), debate.Request{Prompt: "p", Persona: debate.Devil})

			var perr *Error
			require.True(t, errors.As(err, &perr), "got %v", err)
			assert.Equal(t, tt.wantStatus, perr.StatusCode)
			assert.Equal(t, tt.wantMsg, perr.Error())
		})
	}
}

func TestClientUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url, nil).Reply(context.Background(), debate.Request{Prompt: "p", Persona: debate.Devil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to send request")
}

func TestClientMalformedSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`not json`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, nil).Reply(context.Background(), debate.Request{Prompt: "p", Persona: debate.Devil})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to unmarshal response")
}
