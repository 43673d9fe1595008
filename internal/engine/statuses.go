package engine

import "github.com/nonamep-p/rpg-core/internal/entities"

// StatusDefinition fixes a status type's per-turn payload and default
// duration. Instances on a combatant only carry remaining turns.
type StatusDefinition struct {
	Type     entities.StatusType
	Name     string
	Duration int32

	// DamagePerTurn and HealPerTurn apply on each tick.
	DamagePerTurn int32
	HealPerTurn   int32

	// Stun skips the victim's turn while active.
	Stun bool

	// Beneficial statuses from skills go on the caster, not the
	// target.
	Beneficial bool
}

var statusDefs = map[entities.StatusType]StatusDefinition{
	entities.StatusBurn: {
		Type: entities.StatusBurn, Name: "Burn",
		Duration: 3, DamagePerTurn: 5,
	},
	entities.StatusPoison: {
		Type: entities.StatusPoison, Name: "Poison",
		Duration: 4, DamagePerTurn: 3,
	},
	entities.StatusBleed: {
		Type: entities.StatusBleed, Name: "Bleed",
		Duration: 3, DamagePerTurn: 4,
	},
	entities.StatusRegen: {
		Type: entities.StatusRegen, Name: "Regeneration",
		Duration: 3, HealPerTurn: 8, Beneficial: true,
	},
	entities.StatusStun: {
		Type: entities.StatusStun, Name: "Stun",
		// Two turns so the stun is still active when the victim's
		// action comes up after the status tick.
		Duration: 2, Stun: true,
	},
	entities.StatusFrost: {
		Type: entities.StatusFrost, Name: "Frost",
		Duration: 2,
	},
	entities.StatusHaste: {
		Type: entities.StatusHaste, Name: "Haste",
		Duration: 3, Beneficial: true,
	},
	entities.StatusSlow: {
		Type: entities.StatusSlow, Name: "Slow",
		Duration: 2,
	},
	entities.StatusShield: {
		Type: entities.StatusShield, Name: "Shield",
		Duration: 2, Beneficial: true,
	},
	entities.StatusBlessing: {
		Type: entities.StatusBlessing, Name: "Blessing",
		Duration: 3, Beneficial: true,
	},
	entities.StatusWeakness: {
		Type: entities.StatusWeakness, Name: "Weakness",
		Duration: 2,
	},
}

// StatusDef returns the fixed definition for a status type.
func StatusDef(t entities.StatusType) (StatusDefinition, bool) {
	d, ok := statusDefs[t]
	return d, ok
}
