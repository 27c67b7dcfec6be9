package engine

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"text/template"

	"github.com/tatianab/rpg-narrator/internal/models"
)

//go:embed prompts/turn.txt
var turnPrompt string

var turnTemplate = template.Must(template.New("turn").Parse(turnPrompt))

// DefaultHistoryWindow is how many transcript turns are replayed to the model.
const DefaultHistoryWindow = 6

const noCombatSentinel = "No active combat."

// Prompt is what gets sent to the model for one turn.
type Prompt struct {
	// System is the narrator instruction document built from session state.
	System string
	// User is the player's message, passed through untouched.
	User string
}

type historyLine struct {
	Label   string
	Content string
}

// BuildPrompt renders the narrator instructions for session. Only the
// transcript is windowed (to window turns, or DefaultHistoryWindow when
// window <= 0); party, memory, and combat state are always included in full.
func BuildPrompt(session models.Session, message string, window int) (Prompt, error) {
	if window <= 0 {
		window = DefaultHistoryWindow
	}

	combat := noCombatSentinel
	if session.InCombat() {
		b, err := json.Marshal(session.CombatState)
		if err != nil {
			return Prompt{}, fmt.Errorf("failed to encode combat state: %w", err)
		}
		combat = string(b)
	}

	var history []historyLine
	for _, turn := range session.RecentTurns(window) {
		history = append(history, historyLine{Label: roleLabel(turn.Role), Content: turn.Content})
	}

	data := struct {
		Theme       string
		Difficulty  models.Difficulty
		Party       []models.PartyMember
		WorldMemory []string
		Combat      string
		History     []historyLine
	}{
		Theme:       session.Theme,
		Difficulty:  session.Difficulty,
		Party:       session.Party,
		WorldMemory: session.WorldMemory,
		Combat:      combat,
		History:     history,
	}

	var buf bytes.Buffer
	if err := turnTemplate.Execute(&buf, data); err != nil {
		return Prompt{}, fmt.Errorf("failed to render turn prompt: %w", err)
	}
	return Prompt{System: buf.String(), User: message}, nil
}

func roleLabel(r models.Role) string {
	switch r {
	case models.RoleUser:
		return "Player"
	case models.RoleAssistant:
		return "Narrator"
	default:
		return string(r)
	}
}
