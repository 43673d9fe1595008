// Package core implements the engine interface: pure rules over the
// game catalog, with every random draw taken from a caller-supplied
// source.
package core

import (
	"context"
	"math"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/engine"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
)

// Progression and derivation tuning.
const (
	// growthPerLevel is how many weighted bonus points each level past
	// the first feeds into the class growth distribution.
	growthPerLevel = 2

	baseAccuracy       = 50
	accuracyPerAgility = 2
	baseEvasion        = 30

	critChanceBase    = 0.05
	critChancePerLuck = 0.002
	critDamageBase    = 1.5
	critDamagePerLuck = 0.003
	critChanceCap     = 0.75

	defendGuardFloor = 5
	defendGuardRate  = 0.6

	craftFailureFloor     = 0.05
	craftDiscountPerLevel = 0.02
	craftDiscountCap      = 0.30

	xpCurveFactor = 100
)

// Config holds the engine dependencies.
type Config struct {
	Catalog *catalog.Catalog
}

// Validate checks that all required dependencies are provided.
func (c *Config) Validate() error {
	if c.Catalog == nil {
		return errors.InvalidArgument("catalog is required")
	}
	return nil
}

// NewEngine creates the rules engine.
func NewEngine(cfg *Config) (engine.Engine, error) {
	if cfg == nil {
		return nil, errors.InvalidArgument("config is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &rulesEngine{catalog: cfg.Catalog}, nil
}

type rulesEngine struct {
	catalog *catalog.Catalog
}

var _ engine.Engine = (*rulesEngine)(nil)

// CalculateEffectiveStats derives the full combat profile from stored
// base stats, the class growth distribution, worn equipment, the
// companion, and the faction perk. The stored base already folds in
// level-ups, cultivation, and rebirth stat gains.
func (e *rulesEngine) CalculateEffectiveStats(
	_ context.Context,
	input *engine.CalculateEffectiveStatsInput,
) (*engine.CalculateEffectiveStatsOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.Character == nil {
		return nil, errors.InvalidArgument("character is required")
	}

	ch := input.Character
	class, ok := e.catalog.Class(ch.ClassID)
	if !ok {
		return nil, errors.Internalf("character %s references unknown class %q", ch.ID, ch.ClassID)
	}

	p := &engine.StatProfile{
		MaxHP:         ch.MaxHP,
		MaxSP:         ch.MaxSP,
		Attack:        ch.Stats.Attack,
		Defense:       ch.Stats.Defense,
		Speed:         ch.Stats.Speed,
		Intelligence:  ch.Stats.Intelligence,
		Luck:          ch.Stats.Luck,
		Agility:       ch.Stats.Agility,
		AttackElement: entities.ElementPhysical,
		XPMult:        ch.XPMult,
		GoldMult:      ch.GoldMult,
	}

	applyGrowth(p, class.GrowthWeights, ch.Level)

	// Percentage pool bonuses accumulate across items and apply once,
	// after every flat bonus, so stacking order cannot matter.
	var hpPct, spPct float64
	for _, itemID := range ch.Equipment.All() {
		item, ok := e.catalog.Item(itemID)
		if !ok {
			return nil, errors.Internalf("character %s wears unknown item %q", ch.ID, itemID)
		}
		if item.Type == entities.ItemTypeWeapon && item.Element != "" {
			p.AttackElement = item.Element
		}
		applyEquipmentStats(p, item.Effects)
		hpPct += item.Effects[catalog.EffectHPPct]
		spPct += item.Effects[catalog.EffectSPPct]
	}
	if hpPct != 0 {
		p.MaxHP += int32(math.Round(float64(p.MaxHP) * hpPct / 100))
	}
	if spPct != 0 {
		p.MaxSP += int32(math.Round(float64(p.MaxSP) * spPct / 100))
	}

	if ch.Companion != nil {
		p.Attack += ch.Companion.Attack
		p.Defense += ch.Companion.Defense
	}

	if input.ArchetypeID != "" {
		arch, ok := e.catalog.Archetype(input.ArchetypeID)
		if !ok {
			return nil, errors.Internalf("unknown faction archetype %q", input.ArchetypeID)
		}
		applyArchetype(p, arch)
	}

	// Derived defaults come from the final flat stats; equipment then
	// adjusts them directly.
	p.Accuracy = baseAccuracy + accuracyPerAgility*p.Agility
	p.Evasion = baseEvasion + p.Agility + p.Luck
	p.CritChance = critChanceBase + critChancePerLuck*float64(p.Luck)
	p.CritDamage = critDamageBase + critDamagePerLuck*float64(p.Luck)

	for _, itemID := range ch.Equipment.All() {
		item, _ := e.catalog.Item(itemID)
		applyEquipmentDerived(p, item.Effects)
	}

	if p.XPMult <= 0 {
		p.XPMult = 1
	}
	if p.GoldMult <= 0 {
		p.GoldMult = 1
	}

	p.HP = clampPool(ch.HP, p.MaxHP)
	p.SP = clampPool(ch.SP, p.MaxSP)

	return &engine.CalculateEffectiveStatsOutput{Profile: p}, nil
}

// applyGrowth distributes the class's per-level bonus points. Each
// key's share floors separately, so low weights pay out nothing until
// the level is high enough.
func applyGrowth(p *engine.StatProfile, weights map[string]float64, level int32) {
	if level <= 1 {
		return
	}
	points := float64(growthPerLevel * (level - 1))
	for key, weight := range weights {
		bonus := int32(points * weight)
		if bonus <= 0 {
			continue
		}
		switch key {
		case "hp", "max_hp":
			p.MaxHP += bonus
		case "sp", "max_sp":
			p.MaxSP += bonus
		case string(entities.StatAttack):
			p.Attack += bonus
		case string(entities.StatDefense):
			p.Defense += bonus
		case string(entities.StatSpeed):
			p.Speed += bonus
		case string(entities.StatIntelligence):
			p.Intelligence += bonus
		case string(entities.StatLuck):
			p.Luck += bonus
		case string(entities.StatAgility):
			p.Agility += bonus
		}
	}
}

func applyEquipmentStats(p *engine.StatProfile, effects map[string]float64) {
	for key, value := range effects {
		v := int32(value)
		switch key {
		case catalog.EffectAttack:
			p.Attack += v
		case catalog.EffectDefense:
			p.Defense += v
		case catalog.EffectSpeed:
			p.Speed += v
		case catalog.EffectIntelligence:
			p.Intelligence += v
		case catalog.EffectLuck:
			p.Luck += v
		case catalog.EffectAgility:
			p.Agility += v
		case catalog.EffectHP:
			p.MaxHP += v
		case catalog.EffectSP:
			p.MaxSP += v
		}
	}
}

// applyEquipmentDerived adds the accuracy, evasion, penetration, and
// crit effects after the defaults are derived.
func applyEquipmentDerived(p *engine.StatProfile, effects map[string]float64) {
	for key, value := range effects {
		switch key {
		case catalog.EffectAccuracy:
			p.Accuracy += int32(value)
		case catalog.EffectEvasion:
			p.Evasion += int32(value)
		case catalog.EffectPenetration:
			p.Penetration += int32(value)
		case catalog.EffectCritChance:
			p.CritChance += value
		case catalog.EffectCritDamage:
			p.CritDamage += value
		}
	}
}

func applyArchetype(p *engine.StatProfile, arch *catalog.FactionArchetype) {
	for key, bonus := range arch.StatBonus {
		switch key {
		case "hp", "max_hp":
			p.MaxHP += bonus
		case "sp", "max_sp":
			p.MaxSP += bonus
		case string(entities.StatAttack):
			p.Attack += bonus
		case string(entities.StatDefense):
			p.Defense += bonus
		case string(entities.StatSpeed):
			p.Speed += bonus
		case string(entities.StatIntelligence):
			p.Intelligence += bonus
		case string(entities.StatLuck):
			p.Luck += bonus
		case string(entities.StatAgility):
			p.Agility += bonus
		}
	}
	if arch.GoldMult > 0 {
		p.GoldMult *= arch.GoldMult
	}
}

func clampPool(current, maximum int32) int32 {
	if current > maximum {
		return maximum
	}
	if current < 0 {
		return 0
	}
	return current
}

// CritChance folds luck into a crit probability, capped so crits never
// become certain.
func (e *rulesEngine) CritChance(base float64, luck int32) float64 {
	c := base + critChancePerLuck*float64(luck)
	if c < 0 {
		return 0
	}
	if c > critChanceCap {
		return critChanceCap
	}
	return c
}

// DefendGuard is the shield granted by the defend action.
func (e *rulesEngine) DefendGuard(defense int32) int32 {
	guard := int32(math.Round(defendGuardRate * float64(defense)))
	if guard < defendGuardFloor {
		return defendGuardFloor
	}
	return guard
}

// CraftFailureChance discounts a recipe's base failure chance by the
// crafter's discipline level.
func (e *rulesEngine) CraftFailureChance(base float64, skillLevel int32) float64 {
	discount := craftDiscountPerLevel * float64(skillLevel)
	if discount > craftDiscountCap {
		discount = craftDiscountCap
	}
	chance := base - discount
	if chance < craftFailureFloor {
		return craftFailureFloor
	}
	return chance
}

// XPForLevel returns the total experience needed to advance past the
// given level.
func (e *rulesEngine) XPForLevel(level int32) int64 {
	if level < 1 {
		level = 1
	}
	return int64(level) * int64(level) * xpCurveFactor
}

// LevelForXP returns the level a lifetime experience total earns.
func (e *rulesEngine) LevelForXP(xp int64) int32 {
	level := int32(1)
	for xp >= e.XPForLevel(level) {
		level++
	}
	return level
}
