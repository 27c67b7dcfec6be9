package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tatianab/rpg-narrator/internal/campaign"
	"github.com/tatianab/rpg-narrator/internal/config"
	"github.com/tatianab/rpg-narrator/internal/engine"
	"github.com/tatianab/rpg-narrator/internal/llm"
	"github.com/tatianab/rpg-narrator/internal/logger"
	"github.com/tatianab/rpg-narrator/internal/models"
	"github.com/tatianab/rpg-narrator/internal/store"
)

const maxTurns = 10

func main() {
	ctx := context.Background()
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatal("Failed to load config", "error", err)
	}
	if err := cfg.Validate(); err != nil {
		logger.Fatal("Invalid config", "error", err)
	}
	if err := logger.Configure(cfg.LogLevel, cfg.LogFile); err != nil {
		logger.Fatal("Failed to configure logger", "error", err)
	}

	settings := llm.Settings{Provider: cfg.Provider, Model: cfg.Model, APIKey: cfg.APIKey()}

	// The narrator and the player are separate clients on the same provider.
	narrator, closeNarrator, err := llm.New(ctx, settings)
	if err != nil {
		logger.Fatal("Failed to create narrator client", "error", err)
	}
	defer closeNarrator()

	player, closePlayer, err := llm.New(ctx, settings)
	if err != nil {
		logger.Fatal("Failed to create player client", "error", err)
	}
	defer closePlayer()

	dir, err := os.MkdirTemp("", "narrator-sim-")
	if err != nil {
		logger.Fatal("Failed to create save dir", "error", err)
	}
	eng := engine.NewEngine(narrator,
		engine.WithTemperature(cfg.Temperature),
		engine.WithHistoryWindow(cfg.HistoryWindow),
		engine.WithTurnTimeout(cfg.TurnTimeout),
	)
	manager := campaign.NewManager(eng, store.NewFileStore(dir))

	// 1. Get a theme from the player
	fmt.Println("--- Step 1: Requesting a theme from the player ---")
	theme, err := player.Generate(ctx, llm.Request{
		Message:     "You are a player about to start a tabletop adventure. Provide a short, creative hint for a campaign theme (e.g., 'steampunk underwater city', 'noir detective in a world of cats'). Return ONLY the theme string.",
		Temperature: 1,
	})
	if err != nil {
		logger.Fatal("Failed to get theme", "error", err)
	}
	theme = strings.TrimSpace(theme)
	fmt.Printf("Player chose theme: %s\n\n", theme)

	difficulty, err := models.ParseDifficulty(cfg.Difficulty)
	if err != nil {
		logger.Fatal("Invalid difficulty", "error", err)
	}
	session, err := manager.Create(ctx, theme, difficulty, models.RosterFromNames(cfg.Party))
	if err != nil {
		logger.Fatal("Failed to create session", "error", err)
	}
	fmt.Printf("Session %s saved under %s\n\n", session.ID, dir)

	// 2. Play
	action := "Begin the adventure."
	for turn := 1; turn <= maxTurns; turn++ {
		fmt.Printf("--- Turn %d ---\n", turn)
		fmt.Printf("Player Action: %s\n", action)

		res, err := manager.Play(ctx, session.ID, action)
		if err != nil {
			logger.Error("Turn failed", "turn", turn, "error", err)
			break
		}
		session = res.Session

		fmt.Printf("Narrator (%s): %s\n", res.Outcome, res.Narration)
		for _, m := range session.Party {
			fmt.Printf("  %s: HP %d, %s\n", m.Name, m.HP, m.Status)
		}
		fmt.Printf("World facts: %d, In combat: %t\n\n", len(session.WorldMemory), session.InCombat())

		if partyDown(session) {
			fmt.Println("Game Ended: the whole party has fallen.")
			break
		}
		action = getPlayerAction(ctx, player, session)
	}
}

func partyDown(s models.Session) bool {
	for _, m := range s.Party {
		if m.HP > 0 {
			return false
		}
	}
	return true
}

func getPlayerAction(ctx context.Context, player llm.Client, session models.Session) string {
	var history strings.Builder
	for _, t := range session.RecentTurns(engine.DefaultHistoryWindow) {
		fmt.Fprintf(&history, "%s: %s\n", t.Role, t.Content)
	}
	var party strings.Builder
	for _, m := range session.Party {
		fmt.Fprintf(&party, "- %s (HP %d, %s)\n", m.Name, m.HP, m.Status)
	}

	prompt := fmt.Sprintf(`You are playing a tabletop adventure as the whole party.
Theme: %s
Party:
%s
Known facts: %s

Recent history:
%s

What does the party do next? Be creative but stay within the world's logic. Return ONLY the action, no extra commentary.`,
		session.Theme,
		party.String(),
		strings.Join(session.WorldMemory, "; "),
		history.String(),
	)

	action, err := player.Generate(ctx, llm.Request{Message: prompt, Temperature: 1})
	if err != nil {
		logger.Warn("Player model failed, falling back", "error", err)
		return "examine the area"
	}
	action = strings.TrimSpace(action)
	if action == "" {
		return "look around"
	}
	return action
}
