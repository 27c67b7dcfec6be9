package store

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tatianab/rpg-narrator/internal/models"
)

const sessionFile = "session.yaml"

// FileStore keeps each session in its own directory under Dir as a single
// session.yaml document. A save replaces the document with one rename, so a
// load never sees a transcript from a different save than the campaign state.
type FileStore struct {
	Dir string
}

func NewFileStore(dir string) *FileStore {
	return &FileStore{Dir: dir}
}

type sessionDoc struct {
	ID          string               `yaml:"id"`
	Theme       string               `yaml:"theme"`
	Difficulty  models.Difficulty    `yaml:"difficulty"`
	Party       []models.PartyMember `yaml:"party"`
	WorldMemory []string             `yaml:"world_memory"`
	CombatState *models.CombatState  `yaml:"combat_state"`
	Transcript  []models.Turn        `yaml:"transcript"`
	CreatedAt   time.Time            `yaml:"created_at"`
	UpdatedAt   time.Time            `yaml:"updated_at"`
}

func (f *FileStore) Save(_ context.Context, s models.Session) error {
	if !validID(s.ID) {
		return fmt.Errorf("invalid session id %q", s.ID)
	}
	dir := filepath.Join(f.Dir, s.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}

	doc := sessionDoc{
		ID:          s.ID,
		Theme:       s.Theme,
		Difficulty:  s.Difficulty,
		Party:       s.Party,
		WorldMemory: s.WorldMemory,
		Transcript:  s.Transcript,
		CreatedAt:   s.CreatedAt,
		UpdatedAt:   s.UpdatedAt,
	}
	// A nil map would encode as {} and come back as an active combat.
	if s.CombatState != nil {
		doc.CombatState = &s.CombatState
	}
	return writeYAML(filepath.Join(dir, sessionFile), doc)
}

func (f *FileStore) Load(_ context.Context, id string) (models.Session, error) {
	if !validID(id) {
		return models.Session{}, fmt.Errorf("%w: %q", ErrNotFound, id)
	}
	dir := filepath.Join(f.Dir, id)

	var doc sessionDoc
	if err := readYAML(filepath.Join(dir, sessionFile), &doc); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.Session{}, fmt.Errorf("%w: %s", ErrNotFound, id)
		}
		return models.Session{}, err
	}

	s := models.Session{
		ID:          doc.ID,
		Theme:       doc.Theme,
		Difficulty:  doc.Difficulty,
		Party:       doc.Party,
		WorldMemory: doc.WorldMemory,
		Transcript:  doc.Transcript,
		CreatedAt:   doc.CreatedAt,
		UpdatedAt:   doc.UpdatedAt,
	}
	if doc.CombatState != nil {
		s.CombatState = *doc.CombatState
	}
	if s.WorldMemory == nil {
		s.WorldMemory = []string{}
	}
	if s.Transcript == nil {
		s.Transcript = []models.Turn{}
	}
	return s, nil
}

func (f *FileStore) List(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.Dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, err
	}

	sessions := []string{}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		// session.yaml is the marker for a valid session
		if _, err := os.Stat(filepath.Join(f.Dir, entry.Name(), sessionFile)); err == nil {
			sessions = append(sessions, entry.Name())
		}
	}
	sort.Strings(sessions)
	return sessions, nil
}

// validID rejects ids that would escape the save directory.
func validID(id string) bool {
	return id != "" && id != "." && id != ".." && filepath.Base(id) == id
}

func writeYAML(path string, v any) error {
	data, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

func readYAML(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(data, v)
}
