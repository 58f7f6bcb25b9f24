package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"DebateArena/internal/arena"
	"DebateArena/internal/config"
	"DebateArena/internal/debate"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	cfgPath   string
	appConfig *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "debatearena",
	Short: "Watch a devil's advocate and an optimist debate any topic",
	Long: `debatearena runs a bounded debate between two AI personas.

Both personas open on the topic at once, then trade rebuttals for a fixed
number of rounds. Replies come from a Response Provider endpoint, or from
the configured LLM backend in-process when no provider URL is set.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.NewViper(cfgPath)
		if err != nil {
			return err
		}
		if err := bindFlags(cmd, v); err != nil {
			return err
		}
		appConfig, err = config.Load(v)
		if err != nil {
			return fmt.Errorf("invalid config: %w", err)
		}
		return nil
	},
	RunE: runChat,
}

// flagKeys maps command-line flags onto config keys
var flagKeys = map[string]string{
	"debug":              "debug",
	"backend":            "backend.name",
	"model":              "backend.model",
	"provider-url":       "provider.url",
	"rounds":             "debate.max_rounds",
	"devil-intensity":    "debate.devil_intensity",
	"optimist-intensity": "debate.optimist_intensity",
	"db":                 "storage.db_path",
	"addr":               "server.addr",
	"serve-provider":     "server.serve_provider",
	"players":            "trivia.players_path",
}

func bindFlags(cmd *cobra.Command, v *viper.Viper) error {
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}
	return nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgPath, "config", "", "Config file path (default: ~/.config/debatearena/config.yaml)")
	pf.Bool("debug", false, "Enable debug logging")
	pf.String("backend", "", "LLM backend (ollama|anthropic|grok|openai)")
	pf.String("model", "", "Backend model (e.g. llama3:latest)")
	pf.String("provider-url", "", "Response Provider URL (default: answer in-process)")
	pf.Int("rounds", 0, "Number of debate rounds")
	pf.Float64("devil-intensity", 0, "Devil's advocate intensity, greater than 0 and at most 2")
	pf.Float64("optimist-intensity", 0, "Optimist intensity, greater than 0 and at most 2")
	pf.String("db", "", "Database path")

	serveCmd.Flags().String("addr", "", "Listen address (default :8080)")
	serveCmd.Flags().Bool("serve-provider", true, "Mount the Response Provider endpoint")

	triviaCmd.Flags().String("players", "", "Players JSON file (default players.json, built-in roster if unreadable)")

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of debates to list")

	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(showCmd)
	rootCmd.AddCommand(triviaCmd)
}

// newApp builds the application. The caller must Close it.
func newApp(ctx context.Context) (*arena.App, error) {
	app, err := arena.New(ctx, appConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize: %w", err)
	}
	return app, nil
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Interactive console: type a topic to start a debate",
	Args:  cobra.NoArgs,
	RunE:  runChat,
}

func runChat(cmd *cobra.Command, args []string) error {
	ctx, stop := signalContext()
	defer stop()

	app, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer app.Close()

	return app.Run(ctx)
}

var runCmd = &cobra.Command{
	Use:   "run <topic>",
	Short: "Run a single debate and exit",
	Example: `  debatearena run "universal basic income"
  debatearena run "remote work" --rounds 5 --devil-intensity 1.8`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		topic := strings.Join(args, " ")
		sess, err := app.RunTopic(ctx, topic)
		if errors.Is(err, debate.ErrEmptyTopic) {
			return errors.New("topic must not be empty")
		}
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Debate %s finished after %d rounds\n", sess.ID, sess.Round)
		return nil
	},
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the debate API, websocket stream and Response Provider",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		return app.Serve(ctx)
	},
}

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List past debates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		if historyLimit < 1 {
			return fmt.Errorf("--limit must be at least 1")
		}
		return app.History(cmd.Context(), historyLimit)
	},
}

var showCmd = &cobra.Command{
	Use:   "show <debate-id>",
	Short: "Show a stored debate",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, err := newApp(cmd.Context())
		if err != nil {
			return err
		}
		defer app.Close()

		return app.Show(cmd.Context(), args[0])
	},
}

var triviaCmd = &cobra.Command{
	Use:   "trivia",
	Short: "Play the college guessing game",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signalContext()
		defer stop()

		app, err := newApp(ctx)
		if err != nil {
			return err
		}
		defer app.Close()

		return app.PlayTrivia(ctx)
	},
}
