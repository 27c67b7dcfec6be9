package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	supa "github.com/supabase-community/supabase-go"

	"github.com/tatianab/rpg-narrator/internal/models"
)

const supabaseTable = "sessions"

// SupabaseStore keeps sessions in a Supabase "sessions" table with columns
// id (text, primary key), theme (text), difficulty (text), data (jsonb),
// and updated_at (timestamptz).
type SupabaseStore struct {
	client *supa.Client
}

type supabaseRow struct {
	ID         string         `json:"id"`
	Theme      string         `json:"theme"`
	Difficulty string         `json:"difficulty"`
	Data       models.Session `json:"data"`
	UpdatedAt  time.Time      `json:"updated_at"`
}

func NewSupabaseStore(url, key string) (*SupabaseStore, error) {
	if url == "" || key == "" {
		return nil, errors.New("supabase url and key are required")
	}
	client, err := supa.NewClient(url, key, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Supabase: %w", err)
	}
	return &SupabaseStore{client: client}, nil
}

// The postgrest client has no context support; ctx is accepted for the Store interface.
func (s *SupabaseStore) Save(_ context.Context, session models.Session) error {
	if session.ID == "" {
		return errors.New("session has no id")
	}
	row := supabaseRow{
		ID:         session.ID,
		Theme:      session.Theme,
		Difficulty: string(session.Difficulty),
		Data:       session,
		UpdatedAt:  session.UpdatedAt,
	}
	_, _, err := s.client.From(supabaseTable).Upsert(row, "id", "minimal", "").Execute()
	if err != nil {
		return fmt.Errorf("save session %s: %w", session.ID, err)
	}
	return nil
}

func (s *SupabaseStore) Load(_ context.Context, id string) (models.Session, error) {
	var rows []supabaseRow
	_, err := s.client.From(supabaseTable).Select("*", "exact", false).Eq("id", id).ExecuteTo(&rows)
	if err != nil {
		return models.Session{}, fmt.Errorf("load session %s: %w", id, err)
	}
	if len(rows) == 0 {
		return models.Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return rows[0].Data, nil
}

func (s *SupabaseStore) List(_ context.Context) ([]string, error) {
	var rows []struct {
		ID string `json:"id"`
	}
	_, err := s.client.From(supabaseTable).Select("id", "exact", false).ExecuteTo(&rows)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	ids := make([]string, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.ID)
	}
	return ids, nil
}
