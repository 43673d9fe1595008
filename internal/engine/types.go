package engine

import (
	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/pkg/rng"
)

// StatProfile is a fully derived combat profile. HP and SP are the
// character's current pools clamped to the derived maxima.
type StatProfile struct {
	HP    int32
	MaxHP int32
	SP    int32
	MaxSP int32

	Attack       int32
	Defense      int32
	Speed        int32
	Intelligence int32
	Luck         int32
	Agility      int32

	Accuracy    int32
	Evasion     int32
	CritChance  float64
	CritDamage  float64
	Penetration int32

	// AttackElement comes from the equipped weapon; physical when
	// bare-handed.
	AttackElement entities.Element

	// XPMult and GoldMult fold rebirth and faction multipliers for
	// reward crediting.
	XPMult   float64
	GoldMult float64
}

// Modifiers is the combined effect of every active status on a
// combatant. Multipliers default to 1, bonuses to 0.
type Modifiers struct {
	AttackMult      float64
	SpeedMult       float64
	DamageDealtMult float64
	DamageTakenMult float64
	AccuracyBonus   int32
	Stunned         bool
}

// HitOutcome classifies an attack roll.
type HitOutcome string

// Attack roll outcomes
const (
	OutcomeHit   HitOutcome = "hit"
	OutcomeGraze HitOutcome = "graze"
	OutcomeMiss  HitOutcome = "miss"
)

// CalculateEffectiveStatsInput holds the character and the faction
// perk to derive from. ArchetypeID may be empty for the unaffiliated.
type CalculateEffectiveStatsInput struct {
	Character   *entities.Character
	ArchetypeID string
}

// CalculateEffectiveStatsOutput returns the derived profile.
type CalculateEffectiveStatsOutput struct {
	Profile *StatProfile
}

// ResolveAttackInput describes one strike.
type ResolveAttackInput struct {
	Attacker *entities.Combatant
	Defender *entities.Combatant
	Rand     rng.Source

	// Skill switches the strike to skill damage. Nil means a plain
	// attack.
	Skill *catalog.SkillDefinition

	// ComboDepth is the attacker's consecutive plain-attack count
	// including this one. Depth below 2 carries no bonus.
	ComboDepth int32

	// Style applies monster stance modifiers. Empty means none.
	Style entities.MonsterStyle

	// Ultimate deals triple attack, cannot miss, and crits on luck
	// alone.
	Ultimate bool
}

// ResolveAttackOutput reports what the strike did. The combatants have
// already been mutated when it returns.
type ResolveAttackOutput struct {
	Outcome HitOutcome
	Crit    bool

	// Damage is what reached the defender's HP; Absorbed is what the
	// shield soaked first.
	Damage   int32
	Absorbed int32

	// StatusApplied names the rider status that landed, if any.
	StatusApplied entities.StatusType

	// DefenderDown reports the defender's HP hit zero.
	DefenderDown bool

	Lines []string
}

// TickStatusesInput names the combatant whose statuses advance.
type TickStatusesInput struct {
	Combatant *entities.Combatant
}

// TickStatusesOutput reports the tick for the battle log.
type TickStatusesOutput struct {
	Damage  int32
	Healed  int32
	Expired []entities.StatusType
	Down    bool
	Lines   []string
}

// ChooseMonsterActionInput gives the AI both sides of the board.
type ChooseMonsterActionInput struct {
	Monster *entities.Combatant
	Player  *entities.Combatant
	Rand    rng.Source

	// ForceAttack skips the action decision and only rolls the
	// stance. Used for the free attack a failed flee grants.
	ForceAttack bool
}

// ChooseMonsterActionOutput is the AI's decision. Style is set only
// when Action is attack.
type ChooseMonsterActionOutput struct {
	Action entities.ActionType
	Style  entities.MonsterStyle
}
