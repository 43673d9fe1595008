// Package engine defines the combat math and progression rules the
// orchestrators call into. The implementation lives in
// internal/engine/core; everything here is transport-free so the rules
// can be tested without Redis or a server.
package engine

//go:generate mockgen -destination=mock/mock_engine.go -package=enginemock github.com/nonamep-p/rpg-core/internal/engine Engine

import (
	"context"

	"github.com/nonamep-p/rpg-core/internal/entities"
)

// Engine provides combat resolution and progression calculations.
// Methods taking an rng.Source draw every random number from it, so
// callers control determinism by controlling the source.
type Engine interface {
	// CalculateEffectiveStats derives a character's full combat
	// profile: base stats, level distribution, equipment, and the
	// faction perk.
	CalculateEffectiveStats(
		ctx context.Context,
		input *CalculateEffectiveStatsInput,
	) (*CalculateEffectiveStatsOutput, error)

	// ResolveAttack runs one strike and applies the result to the
	// defender (and, for self-buffing skills, the attacker).
	ResolveAttack(ctx context.Context, input *ResolveAttackInput) (*ResolveAttackOutput, error)

	// TickStatuses advances every status on the combatant by one
	// turn: damage over time, regeneration, duration decrements, and
	// pruning.
	TickStatuses(ctx context.Context, input *TickStatusesInput) (*TickStatusesOutput, error)

	// ChooseMonsterAction picks the monster's next move and, when it
	// attacks, its stance.
	ChooseMonsterAction(
		ctx context.Context,
		input *ChooseMonsterActionInput,
	) (*ChooseMonsterActionOutput, error)

	// Utility methods
	BaseDamage(attack, defense, penetration int32) int32
	ComboMultiplier(depth int32) float64
	ElementMultiplier(damageType, targetElement entities.Element) float64
	CritChance(base float64, luck int32) float64
	DefendGuard(defense int32) int32
	StatusModifiers(c *entities.Combatant) Modifiers
	ApplyStatus(target *entities.Combatant, status entities.StatusType, source string) int32
	CraftFailureChance(base float64, skillLevel int32) float64
	XPForLevel(level int32) int64
	LevelForXP(xp int64) int32
}
