package core

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/engine"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/pkg/rng"
)

// Combat tuning.
const (
	minHitChance = 0.05
	maxHitChance = 0.95

	// grazeBand splits the hit chance: rolls in the top tenth of the
	// band connect only partially.
	grazeBand = 0.9
	grazeMult = 0.6

	// magicPowerPerInt feeds intelligence into elemental skill damage.
	magicPowerPerInt = 0.1

	ultimateMult     = 3
	ultimateCritMult = 1.5
)

// styleMods holds the power and accuracy multipliers for each monster
// stance.
var styleMods = map[entities.MonsterStyle]struct{ power, accuracy float64 }{
	entities.StyleAggressive: {power: 1.3, accuracy: 0.8},
	entities.StyleDefensive:  {power: 0.7, accuracy: 1.2},
	entities.StyleDesperate:  {power: 1.5, accuracy: 0.6},
}

func stylePower(s entities.MonsterStyle) float64 {
	if m, ok := styleMods[s]; ok {
		return m.power
	}
	return 1
}

func styleAccuracy(s entities.MonsterStyle) float64 {
	if m, ok := styleMods[s]; ok {
		return m.accuracy
	}
	return 1
}

// elementEdges maps an attack element to the defender affinities it is
// strong or weak against. Missing pairs resolve to 1.
var elementEdges = map[entities.Element]map[entities.Element]float64{
	entities.ElementFire:      {entities.ElementIce: 1.5},
	entities.ElementIce:       {entities.ElementFire: 1.5},
	entities.ElementLightning: {entities.ElementIce: 1.5},
	entities.ElementHoly:      {entities.ElementShadow: 1.5},
	entities.ElementShadow:    {entities.ElementHoly: 1.5},
	entities.ElementPoison:    {entities.ElementHoly: 0.5},
}

// ResolveAttack runs one strike through the full pipeline: to-hit,
// crit, damage multipliers, mitigation, and status riders. It mutates
// both combatants and reports what happened.
//
// Random draw order is fixed: to-hit, then crit (skipped on a miss),
// then the rider chance. Replays depend on it.
func (e *rulesEngine) ResolveAttack(
	_ context.Context,
	input *engine.ResolveAttackInput,
) (*engine.ResolveAttackOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.Attacker == nil || input.Defender == nil {
		return nil, errors.InvalidArgument("attacker and defender are required")
	}
	if input.Rand == nil {
		return nil, errors.InvalidArgument("random source is required")
	}

	atk, def := input.Attacker, input.Defender
	out := &engine.ResolveAttackOutput{Outcome: engine.OutcomeHit}

	if input.Ultimate {
		e.resolveUltimate(atk, def, input.Rand, out)
		return out, nil
	}
	if input.Skill != nil && input.Skill.Power == 0 {
		e.resolveSupportSkill(atk, def, input.Skill, input.Rand, out)
		return out, nil
	}

	atkMods := e.StatusModifiers(atk)
	defMods := e.StatusModifiers(def)

	accuracy := float64(atk.Accuracy + atkMods.AccuracyBonus)
	if input.Style != "" {
		accuracy *= styleAccuracy(input.Style)
	}
	if accuracy < 0 {
		accuracy = 0
	}
	evasion := float64(def.Evasion)
	if evasion < 1 {
		evasion = 1
	}
	hitChance := clampChance(accuracy / (accuracy + evasion))

	roll := input.Rand.Float64()
	switch {
	case roll <= grazeBand*hitChance:
		out.Outcome = engine.OutcomeHit
	case roll <= hitChance:
		out.Outcome = engine.OutcomeGraze
	default:
		out.Outcome = engine.OutcomeMiss
		out.Lines = append(out.Lines, fmt.Sprintf("%s misses %s.", atk.Name, def.Name))
		return out, nil
	}

	luck := atk.Luck
	if atk.Kind == entities.CombatantMonster {
		luck = atk.Level
	}
	out.Crit = input.Rand.Float64() < e.CritChance(atk.CritChance, luck)

	modAtk := int32(math.Round(float64(atk.Attack) * atkMods.AttackMult))
	dmg := float64(e.BaseDamage(modAtk, def.Defense, atk.Penetration))

	damageType := atk.DamageType
	mult := e.ComboMultiplier(input.ComboDepth)
	if input.Skill != nil {
		mult = input.Skill.Power
		if input.Skill.Element != "" {
			damageType = input.Skill.Element
			if input.Skill.Element != entities.ElementPhysical {
				mult += magicPowerPerInt * float64(atk.Intelligence)
			}
		}
	}
	if damageType == "" {
		damageType = entities.ElementPhysical
	}

	dmg *= mult
	dmg *= e.ElementMultiplier(damageType, def.Element)
	if input.Style != "" {
		dmg *= stylePower(input.Style)
	}
	dmg *= atkMods.DamageDealtMult
	if out.Outcome == engine.OutcomeGraze {
		dmg *= grazeMult
	}
	if out.Crit {
		dmg *= atk.CritDamage
	}

	taken := int32(math.Round(dmg))
	if taken < 0 {
		taken = 0
	}
	if defMods.DamageTakenMult != 1 {
		taken = int32(math.Round(float64(taken) * defMods.DamageTakenMult))
	}
	if def.Defending {
		taken /= 2
		def.Defending = false
	}
	if def.Shield > 0 && taken > 0 {
		absorbed := def.Shield
		if absorbed > taken {
			absorbed = taken
		}
		def.Shield -= absorbed
		taken -= absorbed
		out.Absorbed = absorbed
	}
	def.HP -= taken
	if def.HP < 0 {
		def.HP = 0
	}
	out.Damage = taken

	if input.Skill != nil {
		out.Lines = append(out.Lines, fmt.Sprintf("%s uses %s.", atk.Name, input.Skill.Name))
	}
	switch {
	case out.Crit:
		out.Lines = append(out.Lines, fmt.Sprintf("%s crits %s for %d damage.", atk.Name, def.Name, out.Damage))
	case out.Outcome == engine.OutcomeGraze:
		out.Lines = append(out.Lines, fmt.Sprintf("%s grazes %s for %d damage.", atk.Name, def.Name, out.Damage))
	default:
		out.Lines = append(out.Lines, fmt.Sprintf("%s hits %s for %d damage.", atk.Name, def.Name, out.Damage))
	}
	if out.Absorbed > 0 {
		out.Lines = append(out.Lines, fmt.Sprintf("%s's shield absorbs %d damage.", def.Name, out.Absorbed))
	}

	if input.Skill != nil {
		e.applySkillStatus(atk, def, input.Skill, input.Rand, out)
	}

	if !def.Alive() {
		out.DefenderDown = true
		out.Lines = append(out.Lines, fmt.Sprintf("%s is defeated!", def.Name))
	}
	return out, nil
}

// resolveUltimate is the all-or-nothing burst: triple attack, no to-hit
// roll, no mitigation, crit on luck alone.
func (e *rulesEngine) resolveUltimate(atk, def *entities.Combatant, r rng.Source, out *engine.ResolveAttackOutput) {
	dmg := atk.Attack * ultimateMult
	if r.Float64() < float64(atk.Luck)/100 {
		out.Crit = true
		dmg = int32(math.Round(float64(dmg) * ultimateCritMult))
	}
	def.HP -= dmg
	if def.HP < 0 {
		def.HP = 0
	}
	out.Outcome = engine.OutcomeHit
	out.Damage = dmg
	out.Lines = append(out.Lines, fmt.Sprintf("%s unleashes an ultimate strike on %s for %d damage!", atk.Name, def.Name, dmg))
	if !def.Alive() {
		out.DefenderDown = true
		out.Lines = append(out.Lines, fmt.Sprintf("%s is defeated!", def.Name))
	}
}

// resolveSupportSkill handles zero-power skills: heals and pure buffs.
// They cannot miss.
func (e *rulesEngine) resolveSupportSkill(
	atk, def *entities.Combatant,
	skill *catalog.SkillDefinition,
	r rng.Source,
	out *engine.ResolveAttackOutput,
) {
	if skill.Heal > 0 {
		before := atk.HP
		atk.HP += skill.Heal
		if atk.HP > atk.MaxHP {
			atk.HP = atk.MaxHP
		}
		out.Lines = append(out.Lines, fmt.Sprintf("%s casts %s and recovers %d HP.", atk.Name, skill.Name, atk.HP-before))
	} else {
		out.Lines = append(out.Lines, fmt.Sprintf("%s uses %s.", atk.Name, skill.Name))
	}
	e.applySkillStatus(atk, def, skill, r, out)
}

// applySkillStatus rolls the skill's rider. Beneficial statuses land on
// the caster, hostile ones on the defender.
func (e *rulesEngine) applySkillStatus(
	atk, def *entities.Combatant,
	skill *catalog.SkillDefinition,
	r rng.Source,
	out *engine.ResolveAttackOutput,
) {
	if skill.Status == "" {
		return
	}
	sd, ok := engine.StatusDef(skill.Status)
	if !ok {
		return
	}
	chance := skill.StatusChance
	if chance <= 0 {
		chance = 1
	}
	if r.Float64() >= chance {
		return
	}
	target, verb := def, "is afflicted with"
	if sd.Beneficial {
		target, verb = atk, "gains"
	}
	e.ApplyStatus(target, skill.Status, skill.Name)
	out.StatusApplied = skill.Status
	out.Lines = append(out.Lines, fmt.Sprintf("%s %s %s.", target.Name, verb, sd.Name))
}

// TickStatuses advances every status on the combatant one turn. Damage
// lands before healing, so regeneration can pull a combatant back from
// a kill made by damage over time in the same tick.
func (e *rulesEngine) TickStatuses(
	_ context.Context,
	input *engine.TickStatusesInput,
) (*engine.TickStatusesOutput, error) {
	if input == nil || input.Combatant == nil {
		return nil, errors.InvalidArgument("combatant is required")
	}
	c := input.Combatant
	out := &engine.TickStatusesOutput{}
	if len(c.Statuses) == 0 {
		return out, nil
	}

	var damage, healed int32
	kept := c.Statuses[:0]
	for _, s := range c.Statuses {
		def, ok := engine.StatusDef(s.Type)
		if !ok {
			continue
		}
		if def.DamagePerTurn > 0 {
			damage += def.DamagePerTurn
			out.Lines = append(out.Lines, fmt.Sprintf("%s takes %d damage from %s.", c.Name, def.DamagePerTurn, strings.ToLower(def.Name)))
		}
		healed += def.HealPerTurn
		s.TurnsRemaining--
		if s.TurnsRemaining > 0 {
			kept = append(kept, s)
		} else {
			out.Expired = append(out.Expired, s.Type)
			out.Lines = append(out.Lines, fmt.Sprintf("%s's %s wears off.", c.Name, strings.ToLower(def.Name)))
		}
	}
	c.Statuses = kept

	if damage > 0 {
		if c.Shield > 0 {
			absorbed := c.Shield
			if absorbed > damage {
				absorbed = damage
			}
			c.Shield -= absorbed
			damage -= absorbed
			out.Lines = append(out.Lines, fmt.Sprintf("%s's shield absorbs %d damage.", c.Name, absorbed))
		}
		c.HP -= damage
		if c.HP < 0 {
			c.HP = 0
		}
		out.Damage = damage
	}
	if healed > 0 {
		before := c.HP
		c.HP += healed
		if c.HP > c.MaxHP {
			c.HP = c.MaxHP
		}
		out.Healed = c.HP - before
		if out.Healed > 0 {
			out.Lines = append(out.Lines, fmt.Sprintf("%s regenerates %d HP.", c.Name, out.Healed))
		}
	}
	out.Down = !c.Alive()
	return out, nil
}

// ChooseMonsterAction picks the monster's move: wounded monsters guard,
// pressed monsters flip a coin, healthy ones attack. Attacks also roll
// a stance.
func (e *rulesEngine) ChooseMonsterAction(
	_ context.Context,
	input *engine.ChooseMonsterActionInput,
) (*engine.ChooseMonsterActionOutput, error) {
	if input == nil || input.Monster == nil || input.Player == nil {
		return nil, errors.InvalidArgument("monster and player are required")
	}
	if input.Rand == nil {
		return nil, errors.InvalidArgument("random source is required")
	}

	out := &engine.ChooseMonsterActionOutput{Action: entities.ActionAttack}
	if !input.ForceAttack {
		switch hpPct := percentHP(input.Monster); {
		case hpPct < 0.30:
			out.Action = entities.ActionDefend
			return out, nil
		case hpPct < 0.60:
			if input.Rand.Intn(2) == 0 {
				out.Action = entities.ActionDefend
				return out, nil
			}
		}
	}
	out.Style = monsterStyle(input.Monster, input.Player, input.Rand)
	return out, nil
}

// monsterStyle runs the stance cascade. Each matching gate consumes one
// draw; a failed gate falls through to the next.
func monsterStyle(m, p *entities.Combatant, r rng.Source) entities.MonsterStyle {
	mPct := percentHP(m)
	pPct := percentHP(p)

	if mPct < 0.20 && r.Float64() < 0.70 {
		return entities.StyleDesperate
	}
	if pPct < 0.30 && r.Float64() < 0.60 {
		return entities.StyleAggressive
	}
	if mPct >= 0.20 && mPct < 0.50 && r.Float64() < 0.40 {
		return entities.StyleDefensive
	}
	if (m.HasStatus(entities.StatusBurn) || m.HasStatus(entities.StatusPoison)) && r.Float64() < 0.50 {
		return entities.StyleAggressive
	}
	switch roll := r.Float64(); {
	case roll < 0.15:
		return entities.StyleAggressive
	case roll < 0.25:
		return entities.StyleDefensive
	default:
		return ""
	}
}

func percentHP(c *entities.Combatant) float64 {
	if c.MaxHP <= 0 {
		return 0
	}
	return float64(c.HP) / float64(c.MaxHP)
}

func clampChance(p float64) float64 {
	if p < minHitChance {
		return minHitChance
	}
	if p > maxHitChance {
		return maxHitChance
	}
	return p
}

// BaseDamage is attack through defense after penetration, floored at 1
// so no connecting hit is fully shrugged off.
func (e *rulesEngine) BaseDamage(attack, defense, penetration int32) int32 {
	effective := defense - penetration
	if effective < 0 {
		effective = 0
	}
	dmg := attack - effective
	if dmg < 1 {
		return 1
	}
	return dmg
}

// ComboMultiplier scales plain attacks by chain depth, capped at five
// hits.
func (e *rulesEngine) ComboMultiplier(depth int32) float64 {
	switch {
	case depth <= 1:
		return 1.0
	case depth == 2:
		return 1.1
	case depth == 3:
		return 1.25
	case depth == 4:
		return 1.4
	default:
		return 1.6
	}
}

// ElementMultiplier looks up the attack element against the defender's
// affinity.
func (e *rulesEngine) ElementMultiplier(damageType, targetElement entities.Element) float64 {
	if edges, ok := elementEdges[damageType]; ok {
		if mult, ok := edges[targetElement]; ok {
			return mult
		}
	}
	return 1
}

// StatusModifiers folds every active status into one modifier set.
// Distinct statuses stack multiplicatively; duplicates cannot exist
// because ApplyStatus refreshes instead of stacking.
func (e *rulesEngine) StatusModifiers(c *entities.Combatant) engine.Modifiers {
	m := engine.Modifiers{AttackMult: 1, SpeedMult: 1, DamageDealtMult: 1, DamageTakenMult: 1}
	if c == nil {
		return m
	}
	for _, s := range c.Statuses {
		switch s.Type {
		case entities.StatusFrost:
			m.SpeedMult *= 0.7
		case entities.StatusHaste:
			m.SpeedMult *= 1.3
			m.DamageDealtMult *= 1.2
		case entities.StatusSlow:
			m.SpeedMult *= 0.7
			m.DamageDealtMult *= 0.8
		case entities.StatusShield:
			m.DamageTakenMult *= 0.6
		case entities.StatusBlessing:
			m.AttackMult *= 1.2
			m.AccuracyBonus += 15
		case entities.StatusWeakness:
			m.AttackMult *= 0.7
		case entities.StatusStun:
			m.Stunned = true
		}
	}
	return m
}

// ApplyStatus puts a status on the target, refreshing the remaining
// duration when it is already active rather than stacking a second
// instance. It returns the resulting duration, or zero for unknown
// status types.
func (e *rulesEngine) ApplyStatus(target *entities.Combatant, status entities.StatusType, source string) int32 {
	def, ok := engine.StatusDef(status)
	if !ok || target == nil {
		return 0
	}
	for i := range target.Statuses {
		if target.Statuses[i].Type != status {
			continue
		}
		if def.Duration > target.Statuses[i].TurnsRemaining {
			target.Statuses[i].TurnsRemaining = def.Duration
		}
		target.Statuses[i].Source = source
		return target.Statuses[i].TurnsRemaining
	}
	target.Statuses = append(target.Statuses, entities.StatusEffect{
		Type:           status,
		TurnsRemaining: def.Duration,
		Source:         source,
	})
	return def.Duration
}
