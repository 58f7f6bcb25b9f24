// Package trivia implements the college guessing game: a player is drawn
// at random and the user names the college they played for.
package trivia

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"os"
	"strings"
)

// GameName keys the game's high score in storage
const GameName = "nfl-college"

const (
	StartingLives    = 5
	PointsPerCorrect = 10
)

var (
	// ErrNoPlayers is returned when a game is created with an empty roster
	ErrNoPlayers = errors.New("trivia: no players")
	// ErrGameOver is returned once every life is spent
	ErrGameOver = errors.New("trivia: game over")
	// ErrNoPlayerDrawn is returned by Guess before Next or after an answer
	ErrNoPlayerDrawn = errors.New("trivia: no player to guess")
)

// Player is one roster entry. The JSON form matches players.json.
type Player struct {
	Name       string   `json:"name"`
	Conference string   `json:"conference,omitempty"`
	Colors     []string `json:"color,omitempty"`
	College    string   `json:"college"`
}

// ConferenceClue renders the conference hint
func (p Player) ConferenceClue() string {
	if p.Conference == "" {
		return "Conference: N/A"
	}
	return "Conference: " + p.Conference
}

// ColorClue renders the team colors hint
func (p Player) ColorClue() string {
	if len(p.Colors) == 0 {
		return "Colors: N/A"
	}
	return "Colors: " + strings.Join(p.Colors, ", ")
}

// FallbackPlayers is used when no roster file can be loaded
var FallbackPlayers = []Player{
	{Name: "Tom Brady", Conference: "BIG TEN", Colors: []string{"Blue", "Yellow"}, College: "Michigan"},
	{Name: "Peyton Manning", Conference: "SEC", Colors: []string{"Orange", "White"}, College: "Tennessee"},
}

// LoadPlayers reads a JSON array of players from path
func LoadPlayers(path string) ([]Player, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read players: %w", err)
	}
	var players []Player
	if err := json.Unmarshal(data, &players); err != nil {
		return nil, fmt.Errorf("failed to parse players: %w", err)
	}
	if len(players) == 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrNoPlayers)
	}
	return players, nil
}

// Result describes the outcome of one guess
type Result struct {
	Correct      bool
	Answer       string
	Score        int
	Lives        int
	HighScore    int
	NewHighScore bool
	GameOver     bool
}

// Message is the feedback shown to the user
func (r Result) Message() string {
	if r.Correct {
		return "Correct!"
	}
	return fmt.Sprintf("Incorrect! The correct answer was %s.", r.Answer)
}

// Game draws players without repeats until the roster is exhausted, then
// starts over with the players already shown.
type Game struct {
	pool     []Player
	used     []Player
	current  *Player
	answered bool

	score     int
	lives     int
	highScore int

	intN func(int) int
}

// NewGame starts a game over a copy of players. rng may be nil to use the
// global source.
func NewGame(players []Player, highScore int, rng *rand.Rand) (*Game, error) {
	if len(players) == 0 {
		return nil, ErrNoPlayers
	}
	g := &Game{
		pool:      append([]Player(nil), players...),
		lives:     StartingLives,
		highScore: highScore,
		intN:      rand.IntN,
	}
	if rng != nil {
		g.intN = rng.IntN
	}
	return g, nil
}

// Next draws the next player. A roster of one keeps drawing the same player.
func (g *Game) Next() (Player, error) {
	if g.lives <= 0 {
		return Player{}, ErrGameOver
	}
	if len(g.pool) == 0 {
		g.pool, g.used = g.used, nil
	}

	i := g.intN(len(g.pool))
	p := g.pool[i]
	g.pool = append(g.pool[:i], g.pool[i+1:]...)
	g.used = append(g.used, p)

	g.current = &p
	g.answered = false
	return p, nil
}

// Guess checks answer against the current player's college, ignoring case
// and surrounding spaces. Each player takes one guess.
func (g *Game) Guess(answer string) (Result, error) {
	if g.lives <= 0 {
		return Result{}, ErrGameOver
	}
	if g.current == nil || g.answered {
		return Result{}, ErrNoPlayerDrawn
	}
	g.answered = true

	res := Result{Answer: g.current.College}
	if strings.ToLower(strings.TrimSpace(answer)) == strings.ToLower(g.current.College) {
		res.Correct = true
		g.score += PointsPerCorrect
		if g.score > g.highScore {
			g.highScore = g.score
			res.NewHighScore = true
		}
	} else {
		g.lives--
	}

	res.Score = g.score
	res.Lives = g.lives
	res.HighScore = g.highScore
	res.GameOver = g.lives <= 0
	return res, nil
}

func (g *Game) Score() int     { return g.score }
func (g *Game) Lives() int     { return g.lives }
func (g *Game) HighScore() int { return g.highScore }
