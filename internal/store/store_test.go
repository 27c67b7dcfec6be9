package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tatianab/rpg-narrator/internal/models"
)

func sampleSession(t *testing.T, combat models.CombatState) models.Session {
	t.Helper()
	s, err := models.NewSession("frozen north", models.DifficultyHard, models.RosterFromNames([]string{"Aria", "Borin"}))
	require.NoError(t, err)
	s.WorldMemory = []string{"The pass is snowed in.", "The pass is snowed in."}
	s.CombatState = combat
	s = s.WithTurn(models.RoleUser, "We make camp.").WithTurn(models.RoleAssistant, "Wolves howl nearby.")
	return s
}

// stores returns every store that can run without external services.
func stores(t *testing.T) map[string]Store {
	t.Helper()
	sqliteStore, err := OpenSQLite(filepath.Join(t.TempDir(), "narrator.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqliteStore.Close() })

	return map[string]Store{
		"file":   NewFileStore(t.TempDir()),
		"sqlite": sqliteStore,
	}
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := sampleSession(t, models.CombatState{"enemy": "Frost Wolf", "phase": "ambush"})

			require.NoError(t, st.Save(ctx, s))
			got, err := st.Load(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s, got)
		})
	}
}

func TestStores_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			s := sampleSession(t, nil)
			require.NoError(t, st.Save(ctx, s))

			s.Party[0].HP = 0
			s.Party[0].Status = "Unconscious"
			s.UpdatedAt = s.UpdatedAt.Add(time.Minute)
			require.NoError(t, st.Save(ctx, s))

			got, err := st.Load(ctx, s.ID)
			require.NoError(t, err)
			assert.Equal(t, s.Party, got.Party)
			assert.False(t, got.InCombat())

			ids, err := st.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{s.ID}, ids)
		})
	}
}

func TestStores_NotFound(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := st.Load(ctx, "missing")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestStores_ListEmpty(t *testing.T) {
	ctx := context.Background()
	for name, st := range stores(t) {
		t.Run(name, func(t *testing.T) {
			ids, err := st.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	st := NewFileStore(dir)
	s := sampleSession(t, nil)
	require.NoError(t, st.Save(context.Background(), s))

	assert.FileExists(t, filepath.Join(dir, s.ID, "session.yaml"))
	assert.NoFileExists(t, filepath.Join(dir, s.ID, "transcript.yaml"))

	// A directory without session.yaml is not a session.
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "junk"), 0o755))
	ids, err := st.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{s.ID}, ids)
}

func TestFileStore_FailedSaveKeepsPreviousSnapshot(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	st := NewFileStore(dir)

	s := sampleSession(t, nil)
	require.NoError(t, st.Save(ctx, s))

	// Block the temp file so the next write fails.
	blocker := filepath.Join(dir, s.ID, "session.yaml.tmp")
	require.NoError(t, os.MkdirAll(filepath.Join(blocker, "x"), 0o755))

	next := s.WithTurn(models.RoleUser, "We break camp.")
	next.Party[0].HP = 40
	require.Error(t, st.Save(ctx, next))

	got, err := st.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s, got)
}

func TestFileStore_RejectsPathIDs(t *testing.T) {
	st := NewFileStore(t.TempDir())

	_, err := st.Load(context.Background(), "../etc")
	assert.ErrorIs(t, err, ErrNotFound)

	s := sampleSession(t, nil)
	s.ID = "a/b"
	assert.Error(t, st.Save(context.Background(), s))
}

func TestOpen(t *testing.T) {
	st, closeFn, err := Open(Options{Kind: "file", SaveDir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, st)
	require.NoError(t, closeFn())

	st, closeFn, err = Open(Options{Kind: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, st)
	require.NoError(t, closeFn())

	_, _, err = Open(Options{Kind: "supabase"})
	assert.Error(t, err)

	_, _, err = Open(Options{Kind: "redis"})
	assert.Error(t, err)
}

func TestSupabaseStore_Live(t *testing.T) {
	_ = godotenv.Load("../../.env")
	url, key := os.Getenv("SUPABASE_URL"), os.Getenv("SUPABASE_KEY")
	if url == "" || key == "" {
		t.Skip("SUPABASE_URL/SUPABASE_KEY not set - skipping live Supabase test")
	}

	st, err := NewSupabaseStore(url, key)
	require.NoError(t, err)

	ctx := context.Background()
	s := sampleSession(t, nil)
	require.NoError(t, st.Save(ctx, s))
	got, err := st.Load(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, s.Party, got.Party)
}
