package campaign

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/rpg-narrator/internal/engine"
	"github.com/tatianab/rpg-narrator/internal/llm"
	"github.com/tatianab/rpg-narrator/internal/logger"
	"github.com/tatianab/rpg-narrator/internal/models"
	"github.com/tatianab/rpg-narrator/internal/store"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

func newManager(t *testing.T, client llm.Client) *Manager {
	t.Helper()
	return NewManager(engine.NewEngine(client), store.NewFileStore(t.TempDir()))
}

func reply(text string) llm.Client {
	return llm.ClientFunc(func(context.Context, llm.Request) (string, error) { return text, nil })
}

func TestManager_PlayReconciledTurn(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, reply(`{"narration":"A storm gathers.","worldMemoryUpdates":["A storm is brewing over the village."],"combatState":null,"partyUpdates":[]}`))

	s, err := m.Create(ctx, "  stormy coast ", "", models.RosterFromNames([]string{"Aria"}))
	require.NoError(t, err)
	assert.Equal(t, "stormy coast", s.Theme)

	res, err := m.Play(ctx, s.ID, "Begin the adventure.")
	require.NoError(t, err)
	assert.Equal(t, "A storm gathers.", res.Narration)
	assert.Equal(t, []models.Turn{
		{Role: models.RoleUser, Content: "Begin the adventure."},
		{Role: models.RoleAssistant, Content: "A storm gathers."},
	}, res.Session.Transcript)

	saved, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, res.Session, saved)
	assert.Equal(t, []string{"A storm is brewing over the village."}, saved.WorldMemory)
	assert.Equal(t, s.Party, saved.Party)
	assert.False(t, saved.InCombat())
}

func TestManager_PlayDegradedTurnKeepsPlayerMessage(t *testing.T) {
	tests := []struct {
		name    string
		client  llm.Client
		outcome engine.Outcome
	}{
		{name: "prose reply", client: reply("Once upon a time..."), outcome: engine.OutcomeExtractionFailed},
		{
			name: "transport failure",
			client: llm.ClientFunc(func(context.Context, llm.Request) (string, error) {
				return "", errors.New("connection reset")
			}),
			outcome: engine.OutcomeTransportFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			m := newManager(t, tt.client)
			s, err := m.Create(ctx, "ruins", models.DifficultyEasy, models.RosterFromNames([]string{"Aria"}))
			require.NoError(t, err)

			res, err := m.Play(ctx, s.ID, "Search the altar.")
			require.NoError(t, err)
			assert.Equal(t, tt.outcome, res.Outcome)
			assert.True(t, res.Degraded())

			saved, err := m.Get(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, []models.Turn{{Role: models.RoleUser, Content: "Search the altar."}}, saved.Transcript)
			assert.Equal(t, s.Party, saved.Party)
			assert.Equal(t, s.WorldMemory, saved.WorldMemory)
		})
	}
}

func TestManager_PlayErrors(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, reply(`{}`))

	_, err := m.Play(ctx, "no-such-session", "hello")
	assert.ErrorIs(t, err, store.ErrNotFound)

	s, err := m.Create(ctx, "ruins", "", models.RosterFromNames([]string{"Aria"}))
	require.NoError(t, err)
	_, err = m.Play(ctx, s.ID, "   ")
	assert.Error(t, err)

	_, err = m.Create(ctx, "ruins", "", nil)
	assert.ErrorIs(t, err, models.ErrEmptyParty)
}

func TestManager_SerializesTurnsPerSession(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, reply(`{"narration":"Ouch.","worldMemoryUpdates":["hit"],"partyUpdates":[{"name":"Aria","hp":-1}]}`))
	s, err := m.Create(ctx, "arena", "", models.RosterFromNames([]string{"Aria"}))
	require.NoError(t, err)

	const turns = 20
	var wg sync.WaitGroup
	for i := 0; i < turns; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := m.Play(ctx, s.ID, "Take a hit.")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	saved, err := m.Get(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, models.DefaultHP-turns, saved.Party[0].HP)
	assert.Len(t, saved.WorldMemory, turns)
	assert.Len(t, saved.Transcript, 2*turns)
}

func TestManager_ReleasesSessionLocks(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, reply(`{"narration":"Onward."}`))

	var ids []string
	for _, name := range []string{"Aria", "Borin", "Cyra"} {
		s, err := m.Create(ctx, "crossroads", "", models.RosterFromNames([]string{name}))
		require.NoError(t, err)
		ids = append(ids, s.ID)
	}

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		for _, id := range ids {
			id := id
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := m.Play(ctx, id, "Keep moving.")
				assert.NoError(t, err)
			}()
		}
	}
	wg.Wait()

	_, err := m.Play(ctx, "no-such-session", "hello")
	require.ErrorIs(t, err, store.ErrNotFound)

	m.mu.Lock()
	defer m.mu.Unlock()
	assert.Empty(t, m.locks)
}

func TestManager_List(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, reply(`{}`))

	a, err := m.Create(ctx, "one", "", models.RosterFromNames([]string{"Aria"}))
	require.NoError(t, err)
	b, err := m.Create(ctx, "two", "", models.RosterFromNames([]string{"Borin"}))
	require.NoError(t, err)

	ids, err := m.List(ctx)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{a.ID, b.ID}, ids)
}
