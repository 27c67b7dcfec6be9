package engine

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/tatianab/rpg-narrator/internal/models"
)

var (
	// ErrNoPayload means the response contained no {...} pair at all.
	ErrNoPayload = errors.New("no JSON object in model response")
	// ErrMalformedPayload means a candidate object was found but did not parse.
	ErrMalformedPayload = errors.New("malformed JSON object in model response")
)

// ExtractionError is returned by Extract for every failure. Callers should
// not need to distinguish the wrapped reason; it is kept for logging.
type ExtractionError struct {
	Raw string
	Err error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract model update: %v", e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Update is the structured change set a model proposes for one turn.
type Update struct {
	Narration          string
	WorldMemoryUpdates []string
	CombatState        models.CombatState
	PartyUpdates       []PartyUpdate
}

// PartyUpdate changes one party member. HPDelta is added to current hp.
// An empty Status leaves the member's status alone.
type PartyUpdate struct {
	Name    string
	HPDelta int
	Status  string
}

// Extract pulls an Update out of raw model output.
//
// The text between the first '{' and the last '}' is parsed as a JSON
// object. If that fails, each balanced object in the text is tried in turn,
// which recovers payloads surrounded by prose that has braces of its own.
// Fields are decoded leniently: missing or mistyped values take their zero
// value instead of failing the extraction.
func Extract(raw string) (Update, error) {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end < start {
		return Update{}, &ExtractionError{Raw: raw, Err: ErrNoPayload}
	}

	obj, err := decodeObject(raw[start : end+1])
	if err != nil {
		recovered, ok := recoverObject(raw[start:])
		if !ok {
			return Update{}, &ExtractionError{Raw: raw, Err: fmt.Errorf("%w: %v", ErrMalformedPayload, err)}
		}
		obj = recovered
	}
	return updateFromObject(obj), nil
}

// recoverObject returns the first balanced object in s that decodes and
// names at least one update key. Objects nested inside a rejected balanced
// candidate are not considered, so a fragment of a broken payload is never
// mistaken for the payload.
func recoverObject(s string) (map[string]any, bool) {
	for i := strings.IndexByte(s, '{'); i >= 0; {
		next := i + 1
		if balanced, ok := balancedObject(s[i:]); ok {
			if obj, err := decodeObject(balanced); err == nil && hasUpdateKey(obj) {
				return obj, true
			}
			next = i + len(balanced)
		}
		j := strings.IndexByte(s[next:], '{')
		if j < 0 {
			return nil, false
		}
		i = next + j
	}
	return nil, false
}

func hasUpdateKey(obj map[string]any) bool {
	for _, key := range []string{"narration", "worldMemoryUpdates", "combatState", "partyUpdates"} {
		if _, ok := obj[key]; ok {
			return true
		}
	}
	return false
}

func decodeObject(s string) (map[string]any, error) {
	var obj map[string]any
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

// balancedObject returns the prefix of s (which starts with '{') up to the
// brace that closes it, skipping braces inside JSON strings.
func balancedObject(s string) (string, bool) {
	depth := 0
	inString, escaped := false, false
	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[:i+1], true
			}
		}
	}
	return "", false
}

func updateFromObject(obj map[string]any) Update {
	u := Update{}
	u.Narration, _ = obj["narration"].(string)

	if items, ok := obj["worldMemoryUpdates"].([]any); ok {
		for _, item := range items {
			if s, ok := item.(string); ok && strings.TrimSpace(s) != "" {
				u.WorldMemoryUpdates = append(u.WorldMemoryUpdates, s)
			}
		}
	}

	if combat, ok := obj["combatState"].(map[string]any); ok {
		u.CombatState = models.CombatState(combat)
	}

	if items, ok := obj["partyUpdates"].([]any); ok {
		for _, item := range items {
			entry, ok := item.(map[string]any)
			if !ok {
				continue
			}
			name, _ := entry["name"].(string)
			if name == "" {
				continue
			}
			status, _ := entry["status"].(string)
			u.PartyUpdates = append(u.PartyUpdates, PartyUpdate{
				Name:    name,
				HPDelta: intValue(entry["hp"]),
				Status:  strings.TrimSpace(status),
			})
		}
	}
	return u
}

// intValue reads an hp delta. Values are clamped to the int32 range so that
// adding them to current hp cannot overflow.
func intValue(v any) int {
	var f float64
	switch n := v.(type) {
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0
		}
		f = parsed
	default:
		return 0
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0
	}
	return int(math.Round(math.Max(math.MinInt32, math.Min(math.MaxInt32, f))))
}
