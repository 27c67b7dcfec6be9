package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/tatianab/rpg-narrator/internal/campaign"
	"github.com/tatianab/rpg-narrator/internal/config"
	"github.com/tatianab/rpg-narrator/internal/engine"
	"github.com/tatianab/rpg-narrator/internal/llm"
	"github.com/tatianab/rpg-narrator/internal/logger"
	"github.com/tatianab/rpg-narrator/internal/models"
	"github.com/tatianab/rpg-narrator/internal/store"
	"github.com/tatianab/rpg-narrator/internal/tui"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:          "game",
	Short:        "A tabletop RPG narrated by a language model",
	RunE:         runPlay,
	SilenceUsage: true,
}

var playCmd = &cobra.Command{
	Use:   "play",
	Short: "Start a new campaign or resume one",
	RunE:  runPlay,
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List saved campaigns",
	RunE:  runSessions,
}

var showCmd = &cobra.Command{
	Use:   "show <session-id>",
	Short: "Print a saved campaign's party, world memory, and recent turns",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	// Assigned here rather than in the literal: loadConfig refers to rootCmd.
	rootCmd.PersistentPreRunE = loadConfig

	flags := rootCmd.PersistentFlags()
	flags.String("log-level", "", "Log level (debug|info|warn|error)")
	flags.String("log-file", "", "Write logs to this file (play defaults to <save-dir>/narrator.log)")
	flags.String("provider", "", "Model provider (gemini|openai|anthropic)")
	flags.String("model", "", "Model name for the provider")
	flags.String("store", "", "Session store (file|sqlite|supabase)")

	for _, name := range []string{"log-level", "log-file", "provider", "model", "store"} {
		if err := viper.BindPFlag(name, flags.Lookup(name)); err != nil {
			fmt.Fprintf(os.Stderr, "Error binding %s flag: %v\n", name, err)
			os.Exit(1)
		}
	}

	for _, cmd := range []*cobra.Command{rootCmd, playCmd} {
		cmd.Flags().String("session", "", "Resume the session with this id")
		cmd.Flags().String("theme", "", "Start a new campaign with this theme")
		cmd.Flags().String("difficulty", "", "Difficulty for a new campaign (easy|normal|hard|deadly)")
	}

	rootCmd.AddCommand(playCmd, sessionsCmd, showCmd)
}

func loadConfig(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.LoadConfig()
	if err != nil {
		return err
	}

	overrides := map[string]*string{
		"log-level": &cfg.LogLevel,
		"log-file":  &cfg.LogFile,
		"provider":  &cfg.Provider,
		"model":     &cfg.Model,
		"store":     &cfg.Store,
	}
	for key, field := range overrides {
		if viper.IsSet(key) {
			*field = viper.GetString(key)
		}
	}
	if cmd.Flags().Changed("difficulty") {
		cfg.Difficulty, _ = cmd.Flags().GetString("difficulty")
	}

	// The alt screen owns the terminal while playing.
	if (cmd == rootCmd || cmd == playCmd) && cfg.LogFile == "" {
		if err := os.MkdirAll(cfg.SaveDir, 0o755); err != nil {
			return err
		}
		cfg.LogFile = filepath.Join(cfg.SaveDir, "narrator.log")
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		return fmt.Errorf("configure logger: %w", err)
	}
	return nil
}

func openStore() (store.Store, func() error, error) {
	return store.Open(store.Options{
		Kind:        cfg.Store,
		SaveDir:     cfg.SaveDir,
		SQLitePath:  cfg.SQLitePath,
		SupabaseURL: cfg.SupabaseURL,
		SupabaseKey: cfg.SupabaseKey,
	})
}

func runPlay(cmd *cobra.Command, _ []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	ctx := context.Background()

	client, closeClient, err := llm.New(ctx, llm.Settings{Provider: cfg.Provider, Model: cfg.Model, APIKey: cfg.APIKey()})
	if err != nil {
		return err
	}
	defer closeClient()

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	eng := engine.NewEngine(client,
		engine.WithTemperature(cfg.Temperature),
		engine.WithHistoryWindow(cfg.HistoryWindow),
		engine.WithTurnTimeout(cfg.TurnTimeout),
	)
	manager := campaign.NewManager(eng, st)

	difficulty, err := models.ParseDifficulty(cfg.Difficulty)
	if err != nil {
		return err
	}
	sessionID, _ := cmd.Flags().GetString("session")
	theme, _ := cmd.Flags().GetString("theme")

	logger.Info("Starting game", "provider", cfg.Provider, "store", cfg.Store, "session", sessionID)
	return tui.Run(manager, tui.Options{
		SessionID:  sessionID,
		Theme:      theme,
		Difficulty: difficulty,
		Roster:     models.RosterFromNames(cfg.Party),
	})
}

func runSessions(cmd *cobra.Command, _ []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	ids, err := st.List(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		fmt.Println("No saved campaigns.")
		return nil
	}
	for _, id := range ids {
		s, err := st.Load(ctx, id)
		if err != nil {
			logger.Warn("Skipping unreadable session", "session", id, "error", err)
			continue
		}
		fmt.Printf("%s  %-8s  %d turns  %s\n", s.ID, s.Difficulty, len(s.Transcript), s.Theme)
	}
	return nil
}

func runShow(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	s, err := st.Load(cmd.Context(), args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Theme: %s (%s)\n\nParty:\n", s.Theme, s.Difficulty)
	for _, m := range s.Party {
		fmt.Printf("  %-12s HP %-4d %s\n", m.Name, m.HP, m.Status)
	}
	fmt.Println("\nWorld memory:")
	if len(s.WorldMemory) == 0 {
		fmt.Println("  none")
	}
	for _, fact := range s.WorldMemory {
		fmt.Printf("  - %s\n", fact)
	}
	fmt.Printf("\nIn combat: %t\n\nRecent turns:\n", s.InCombat())
	for _, turn := range s.RecentTurns(engine.DefaultHistoryWindow) {
		fmt.Printf("  [%s] %s\n", turn.Role, turn.Content)
	}
	return nil
}
