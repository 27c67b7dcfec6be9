// Package store persists campaign sessions between turns.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/tatianab/rpg-narrator/internal/models"
)

// ErrNotFound is returned when no session exists for an id.
var ErrNotFound = errors.New("session not found")

// Store saves and loads whole session snapshots. Save overwrites any
// previous snapshot with the same id.
type Store interface {
	Save(ctx context.Context, s models.Session) error
	Load(ctx context.Context, id string) (models.Session, error)
	List(ctx context.Context) ([]string, error)
}

// Options select and configure a Store implementation.
type Options struct {
	Kind        string
	SaveDir     string
	SQLitePath  string
	SupabaseURL string
	SupabaseKey string
}

// Open returns the store named by opts.Kind and a func that releases it.
func Open(opts Options) (Store, func() error, error) {
	switch opts.Kind {
	case "file", "":
		return NewFileStore(opts.SaveDir), func() error { return nil }, nil
	case "sqlite":
		s, err := OpenSQLite(opts.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	case "supabase":
		s, err := NewSupabaseStore(opts.SupabaseURL, opts.SupabaseKey)
		if err != nil {
			return nil, nil, err
		}
		return s, func() error { return nil }, nil
	default:
		return nil, nil, fmt.Errorf("unknown store %q", opts.Kind)
	}
}
