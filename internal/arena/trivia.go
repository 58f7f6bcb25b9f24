package arena

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"DebateArena/internal/trivia"
)

// PlayTrivia runs the college guessing game on the console until the lives
// run out, /quit is typed or input ends. The high score is kept in the store.
func (a *App) PlayTrivia(ctx context.Context) error {
	players, err := trivia.LoadPlayers(a.cfg.Trivia.PlayersPath)
	if err != nil {
		a.logger.Warn("using built-in players", "path", a.cfg.Trivia.PlayersPath, "error", err)
		players = trivia.FallbackPlayers
	}

	high, err := a.store.HighScore(ctx, trivia.GameName)
	if err != nil {
		a.logger.Error("failed to load high score", "error", err)
	}

	game, err := trivia.NewGame(players, high, nil)
	if err != nil {
		return err
	}

	fmt.Fprintln(a.out, "\n=== College Guessing Game ===")
	fmt.Fprintf(a.out, "Lives: %d  High score: %d\n", game.Lives(), game.HighScore())
	fmt.Fprintln(a.out, "Name the college each player attended. /quit ends the game.")

	scanner := a.input()
	for ctx.Err() == nil {
		p, err := game.Next()
		if errors.Is(err, trivia.ErrGameOver) {
			break
		}

		fmt.Fprintf(a.out, "\nPlayer: %s\n%s\n%s\n", p.Name, p.ConferenceClue(), p.ColorClue())

		guess, ok := a.readGuess()
		if !ok {
			break
		}

		res, err := game.Guess(guess)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, res.Message())
		fmt.Fprintf(a.out, "Score: %d  Lives: %d  High score: %d\n", res.Score, res.Lives, res.HighScore)
		if res.NewHighScore {
			a.saveHighScore(ctx, res.Score)
		}
		if res.GameOver {
			break
		}
	}

	fmt.Fprintf(a.out, "\nGame over! Final score: %d  High score: %d\n\n", game.Score(), game.HighScore())
	a.saveHighScore(ctx, game.Score())

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}

// readGuess prompts until a non-blank line arrives. It reports false on
// /quit or end of input.
func (a *App) readGuess() (string, bool) {
	scanner := a.input()
	for {
		fmt.Fprint(a.out, "College: ")
		if !scanner.Scan() {
			return "", false
		}
		guess := strings.TrimSpace(scanner.Text())
		switch guess {
		case "":
			continue
		case "/quit", "/exit":
			return "", false
		}
		return guess, true
	}
}

func (a *App) saveHighScore(ctx context.Context, score int) {
	if score <= 0 {
		return
	}
	if err := a.store.SaveHighScore(context.WithoutCancel(ctx), trivia.GameName, score); err != nil {
		a.logger.Error("failed to save high score", "score", score, "error", err)
	}
}
