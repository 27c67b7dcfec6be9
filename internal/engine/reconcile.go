package engine

import (
	"math"

	"github.com/tatianab/rpg-narrator/internal/models"
)

// Reconcile applies u to prev and returns the next session. prev is not modified.
//
// World memory is append-only. Combat state is replaced wholesale, so a nil
// update combat state ends combat. Each party member takes the first update
// whose name matches exactly; hp is floored at zero but not capped, and an
// empty status keeps the previous one. Updates naming unknown members are
// dropped. The transcript is left to the caller.
func Reconcile(prev models.Session, u Update) models.Session {
	next := prev.Clone()

	next.WorldMemory = append(next.WorldMemory, u.WorldMemoryUpdates...)
	next.CombatState = u.CombatState.Clone()

	for i, member := range next.Party {
		pu, ok := findPartyUpdate(u.PartyUpdates, member.Name)
		if !ok {
			continue
		}
		member.HP = applyDelta(member.HP, pu.HPDelta)
		if pu.Status != "" {
			member.Status = pu.Status
		}
		next.Party[i] = member
	}
	return next
}

func findPartyUpdate(updates []PartyUpdate, name string) (PartyUpdate, bool) {
	for _, u := range updates {
		if u.Name == name {
			return u, true
		}
	}
	return PartyUpdate{}, false
}

// applyDelta returns max(0, hp+delta), saturating instead of wrapping.
func applyDelta(hp, delta int) int {
	switch {
	case delta > 0 && hp > math.MaxInt-delta:
		return math.MaxInt
	case delta < 0 && hp < math.MinInt-delta:
		return 0
	}
	return max(0, hp+delta)
}
