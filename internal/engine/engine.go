package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tatianab/rpg-narrator/internal/llm"
	"github.com/tatianab/rpg-narrator/internal/logger"
	"github.com/tatianab/rpg-narrator/internal/models"
)

// DefaultTemperature keeps the narration inventive without drifting off the output format.
const DefaultTemperature float32 = 0.8

// Narrations returned to the player when a turn cannot be applied.
const (
	TransportFailureNarration  = "A strange mist rolls over the land and the world falls silent for a moment. The tale pauses here; try your action again."
	ExtractionFailureNarration = "The narrator's voice falters, the words lost to the wind. Nothing has changed yet; try your action again."
)

// ErrTransport wraps any failure of the model call itself.
var ErrTransport = errors.New("model call failed")

// Outcome records which path a turn took.
type Outcome string

const (
	OutcomeReconciled       Outcome = "reconciled"
	OutcomeTransportFailed  Outcome = "transport_failed"
	OutcomeExtractionFailed Outcome = "extraction_failed"
)

// TurnResult is what one turn hands back to the caller.
type TurnResult struct {
	// Narration is always safe to show the player.
	Narration string

	// Session is the next session, or the input session untouched when the turn degraded.
	Session models.Session
	Outcome Outcome

	// Err holds the diagnostic cause of a degraded turn.
	Err error
}

// Degraded reports whether the model's output was discarded.
func (r TurnResult) Degraded() bool {
	return r.Outcome != OutcomeReconciled
}

// Engine runs turns against a model. It keeps no per-session state and may
// be shared across sessions. Turns of the same session must be serialized by the caller.
type Engine struct {
	client        llm.Client
	temperature   float32
	historyWindow int
	turnTimeout   time.Duration
}

type Option func(*Engine)

func WithTemperature(t float32) Option {
	return func(e *Engine) { e.temperature = t }
}

func WithHistoryWindow(n int) Option {
	return func(e *Engine) { e.historyWindow = n }
}

// WithTurnTimeout bounds the model call. Zero leaves it to the transport.
func WithTurnTimeout(d time.Duration) Option {
	return func(e *Engine) { e.turnTimeout = d }
}

func NewEngine(client llm.Client, opts ...Option) *Engine {
	e := &Engine{
		client:        client,
		temperature:   DefaultTemperature,
		historyWindow: DefaultHistoryWindow,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// ProcessTurn runs one turn for session and the player's message.
// Failures never escape as errors: they produce a degraded result carrying
// the unmodified input session.
func (e *Engine) ProcessTurn(ctx context.Context, session models.Session, message string) TurnResult {
	prompt, err := BuildPrompt(session, message, e.historyWindow)
	if err != nil {
		logger.Error("Failed to build prompt", "session", session.ID, "error", err)
		return degraded(session, OutcomeTransportFailed, TransportFailureNarration, err)
	}

	if e.turnTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.turnTimeout)
		defer cancel()
	}

	raw, err := e.client.Generate(ctx, llm.Request{
		System:      prompt.System,
		Message:     prompt.User,
		Temperature: e.temperature,
	})
	if err != nil {
		logger.Warn("Model call failed", "session", session.ID, "error", err)
		return degraded(session, OutcomeTransportFailed, TransportFailureNarration, fmt.Errorf("%w: %w", ErrTransport, err))
	}

	update, err := Extract(raw)
	if err != nil {
		logger.Warn("Model response had no usable update", "session", session.ID, "error", err, "raw", raw)
		return degraded(session, OutcomeExtractionFailed, ExtractionFailureNarration, err)
	}

	next := Reconcile(session, update)
	logger.Debug("Turn reconciled", "session", session.ID,
		"memories", len(update.WorldMemoryUpdates), "party_updates", len(update.PartyUpdates), "in_combat", next.InCombat())

	return TurnResult{
		Narration: update.Narration,
		Session:   next,
		Outcome:   OutcomeReconciled,
	}
}

func degraded(session models.Session, outcome Outcome, narration string, err error) TurnResult {
	return TurnResult{
		Narration: narration,
		Session:   session,
		Outcome:   outcome,
		Err:       err,
	}
}
