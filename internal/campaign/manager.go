// Package campaign runs turns for stored sessions. It owns what the engine
// leaves to its caller: one turn at a time per session, the transcript, and
// persistence.
package campaign

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tatianab/rpg-narrator/internal/engine"
	"github.com/tatianab/rpg-narrator/internal/logger"
	"github.com/tatianab/rpg-narrator/internal/models"
	"github.com/tatianab/rpg-narrator/internal/store"
)

// TurnProcessor runs a single turn. *engine.Engine implements it.
type TurnProcessor interface {
	ProcessTurn(ctx context.Context, session models.Session, message string) engine.TurnResult
}

// Manager serializes turns per session and persists the results.
type Manager struct {
	engine TurnProcessor
	store  store.Store
	now    func() time.Time

	mu    sync.Mutex
	locks map[string]*sessionLock // only sessions with a turn running or waiting
}

type sessionLock struct {
	sync.Mutex
	refs int
}

func NewManager(eng TurnProcessor, st store.Store) *Manager {
	return &Manager{
		engine: eng,
		store:  st,
		now:    func() time.Time { return time.Now().UTC() },
		locks:  make(map[string]*sessionLock),
	}
}

// lock takes the turn lock for id. The entry is dropped once the last
// holder or waiter releases it.
func (m *Manager) lock(id string) func() {
	m.mu.Lock()
	l, ok := m.locks[id]
	if !ok {
		l = &sessionLock{}
		m.locks[id] = l
	}
	l.refs++
	m.mu.Unlock()

	l.Lock()
	return func() {
		l.Unlock()
		m.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(m.locks, id)
		}
		m.mu.Unlock()
	}
}

// Create starts and saves a new session.
func (m *Manager) Create(ctx context.Context, theme string, difficulty models.Difficulty, roster []models.RosterEntry) (models.Session, error) {
	s, err := models.NewSession(strings.TrimSpace(theme), difficulty, roster)
	if err != nil {
		return models.Session{}, err
	}
	if err := m.store.Save(ctx, s); err != nil {
		return models.Session{}, fmt.Errorf("failed to save new session: %w", err)
	}
	logger.Info("Session created", "session", s.ID, "theme", s.Theme, "party", len(s.Party))
	return s, nil
}

// Get loads a session snapshot.
func (m *Manager) Get(ctx context.Context, id string) (models.Session, error) {
	return m.store.Load(ctx, id)
}

// List returns the ids of all stored sessions.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

// Play runs one turn for session id. The player's message is always
// recorded; the narrator's reply is recorded only when the turn was
// reconciled, since degraded replies are out-of-fiction. The returned
// result's Session is the snapshot that was saved.
//
// An error means the session could not be loaded or saved. Model failures
// are reported through the result, never as an error.
func (m *Manager) Play(ctx context.Context, id, message string) (engine.TurnResult, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return engine.TurnResult{}, fmt.Errorf("empty player message")
	}

	unlock := m.lock(id)
	defer unlock()

	session, err := m.store.Load(ctx, id)
	if err != nil {
		return engine.TurnResult{}, err
	}

	res := m.engine.ProcessTurn(ctx, session, message)

	next := res.Session.WithTurn(models.RoleUser, message)
	if !res.Degraded() {
		next = next.WithTurn(models.RoleAssistant, res.Narration)
	}
	next.UpdatedAt = m.now()

	if err := m.store.Save(ctx, next); err != nil {
		return engine.TurnResult{}, fmt.Errorf("failed to save session %s: %w", id, err)
	}

	logger.Info("Turn played", "session", id, "outcome", res.Outcome, "in_combat", next.InCombat())
	res.Session = next
	return res, nil
}
