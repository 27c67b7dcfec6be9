package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	// DefaultHP is given to roster entries that do not specify hit points.
	DefaultHP = 100
	// DefaultStatus is given to roster entries that do not specify a status.
	DefaultStatus = "Healthy"
)

var (
	ErrEmptyName         = errors.New("party member name is empty")
	ErrDuplicateMember   = errors.New("duplicate party member")
	ErrEmptyParty        = errors.New("party has no members")
	ErrInvalidDifficulty = errors.New("invalid difficulty")
)

// Role identifies who produced a transcript turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Difficulty is the campaign difficulty the narrator is asked to honor.
type Difficulty string

const (
	DifficultyEasy   Difficulty = "easy"
	DifficultyNormal Difficulty = "normal"
	DifficultyHard   Difficulty = "hard"
	DifficultyDeadly Difficulty = "deadly"
)

// ParseDifficulty normalizes s. An empty string yields DifficultyNormal.
func ParseDifficulty(s string) (Difficulty, error) {
	switch d := Difficulty(strings.ToLower(strings.TrimSpace(s))); d {
	case "":
		return DifficultyNormal, nil
	case DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyDeadly:
		return d, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidDifficulty, s)
	}
}

// PartyMember is one adventurer. HP never drops below zero; defeated members stay in the party.
type PartyMember struct {
	Name   string `json:"name" yaml:"name"`
	HP     int    `json:"hp" yaml:"hp"`
	Status string `json:"status" yaml:"status"`
}

// Turn is a single transcript entry.
type Turn struct {
	Role    Role   `json:"role" yaml:"role"`
	Content string `json:"content" yaml:"content"`
}

// CombatState is whatever structure the narrator uses to track an encounter.
// A nil map means there is no active combat.
type CombatState map[string]any

// Session aggregates all campaign state between turns.
//
// Session is treated as a value: functions that derive a new session must
// not modify the slices or maps of the one they were given. Use Clone when
// in doubt.
type Session struct {
	ID          string        `json:"id" yaml:"id"`
	Theme       string        `json:"theme" yaml:"theme"`
	Difficulty  Difficulty    `json:"difficulty" yaml:"difficulty"`
	Party       []PartyMember `json:"party" yaml:"party"`
	WorldMemory []string      `json:"worldMemory" yaml:"world_memory"`
	CombatState CombatState   `json:"combatState" yaml:"combat_state"`
	Transcript  []Turn        `json:"transcript" yaml:"transcript"`
	CreatedAt   time.Time     `json:"createdAt" yaml:"created_at"`
	UpdatedAt   time.Time     `json:"updatedAt" yaml:"updated_at"`
}

// RosterEntry is a player-supplied party member before defaults are applied.
type RosterEntry struct {
	Name   string
	HP     *int
	Status string
}

// NewSession creates a fresh campaign for the given roster.
func NewSession(theme string, difficulty Difficulty, roster []RosterEntry) (Session, error) {
	if len(roster) == 0 {
		return Session{}, ErrEmptyParty
	}
	if _, err := ParseDifficulty(string(difficulty)); err != nil {
		return Session{}, err
	}
	if difficulty == "" {
		difficulty = DifficultyNormal
	}

	seen := make(map[string]bool, len(roster))
	party := make([]PartyMember, 0, len(roster))
	for _, entry := range roster {
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			return Session{}, ErrEmptyName
		}
		if seen[name] {
			return Session{}, fmt.Errorf("%w: %s", ErrDuplicateMember, name)
		}
		seen[name] = true

		member := PartyMember{Name: name, HP: DefaultHP, Status: DefaultStatus}
		if entry.HP != nil {
			member.HP = max(0, *entry.HP)
		}
		if s := strings.TrimSpace(entry.Status); s != "" {
			member.Status = s
		}
		party = append(party, member)
	}

	now := time.Now().UTC()
	return Session{
		ID:          uuid.NewString(),
		Theme:       theme,
		Difficulty:  difficulty,
		Party:       party,
		WorldMemory: []string{},
		Transcript:  []Turn{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}, nil
}

// RosterFromNames builds roster entries with default hp and status.
func RosterFromNames(names []string) []RosterEntry {
	roster := make([]RosterEntry, 0, len(names))
	for _, n := range names {
		if strings.TrimSpace(n) == "" {
			continue
		}
		roster = append(roster, RosterEntry{Name: n})
	}
	return roster
}

// InCombat reports whether an encounter is in progress.
func (s Session) InCombat() bool {
	return s.CombatState != nil
}

// Member returns the party member with the given name.
func (s Session) Member(name string) (PartyMember, bool) {
	for _, m := range s.Party {
		if m.Name == name {
			return m, true
		}
	}
	return PartyMember{}, false
}

// RecentTurns returns at most n of the latest transcript turns, oldest first.
func (s Session) RecentTurns(n int) []Turn {
	if n <= 0 {
		return nil
	}
	turns := s.Transcript
	if len(turns) > n {
		turns = turns[len(turns)-n:]
	}
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}

// WithTurn returns a copy of s with one turn appended to the transcript.
func (s Session) WithTurn(role Role, content string) Session {
	next := s.Clone()
	next.Transcript = append(next.Transcript, Turn{Role: role, Content: content})
	return next
}

// Clone returns a deep copy of s.
func (s Session) Clone() Session {
	out := s
	out.Party = cloneSlice(s.Party)
	out.WorldMemory = cloneSlice(s.WorldMemory)
	out.Transcript = cloneSlice(s.Transcript)
	out.CombatState = s.CombatState.Clone()
	return out
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	copy(out, in)
	return out
}

// Clone deep-copies the combat structure.
func (c CombatState) Clone() CombatState {
	if c == nil {
		return nil
	}
	out := make(CombatState, len(c))
	for k, v := range c {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		m := make(map[string]any, len(t))
		for k, vv := range t {
			m[k] = cloneValue(vv)
		}
		return m
	case CombatState:
		return t.Clone()
	case []any:
		s := make([]any, len(t))
		for i, vv := range t {
			s[i] = cloneValue(vv)
		}
		return s
	default:
		return v
	}
}
