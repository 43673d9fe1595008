package catalog

import (
	"github.com/nonamep-p/rpg-core/internal/entities"
)

// Effect keys recognized in item definitions. Numeric effects on
// equipment modify the wearer's derived profile; on consumables the
// hp and sp keys are restore amounts.
const (
	EffectAttack       = "attack"
	EffectDefense      = "defense"
	EffectSpeed        = "speed"
	EffectIntelligence = "intelligence"
	EffectLuck         = "luck"
	EffectAgility      = "agility"
	EffectHP           = "hp"
	EffectSP           = "sp"
	EffectHPPct        = "hp_pct"
	EffectSPPct        = "sp_pct"
	EffectAccuracy     = "accuracy"
	EffectEvasion      = "evasion"
	EffectPenetration  = "penetration"
	EffectCritChance   = "crit_chance"
	EffectCritDamage   = "crit_damage"
)

// ItemDefinition describes one item.
type ItemDefinition struct {
	ID          string            `json:"id"`
	Name        string            `json:"name"`
	Description string            `json:"description,omitempty"`
	Type        entities.ItemType `json:"type"`
	Rarity      entities.Rarity   `json:"rarity"`

	// Element applies to weapons and sets the wielder's attack
	// element.
	Element entities.Element `json:"element,omitempty"`

	// Effects holds numeric modifiers keyed by the Effect constants.
	Effects map[string]float64 `json:"effects,omitempty"`

	// Cures lists statuses removed when the item is consumed.
	Cures []entities.StatusType `json:"cures,omitempty"`

	// Grants is a status applied to the user when consumed.
	Grants entities.StatusType `json:"grants,omitempty"`

	// Price is the base shop price in gold. Zero means not sold.
	Price int64 `json:"price"`
}

// Equippable reports whether the item goes into an equipment slot.
func (d *ItemDefinition) Equippable() bool {
	_, ok := entities.SlotForItemType(d.Type)
	return ok
}

// MonsterDefinition describes one monster.
type MonsterDefinition struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Level int32  `json:"level"`

	HP           int32 `json:"hp"`
	Attack       int32 `json:"attack"`
	Defense      int32 `json:"defense"`
	Speed        int32 `json:"speed"`
	Intelligence int32 `json:"intelligence"`
	Luck         int32 `json:"luck"`
	Agility      int32 `json:"agility"`

	Element entities.Element `json:"element,omitempty"`

	GoldReward int64 `json:"gold_reward"`
	XPReward   int64 `json:"xp_reward"`

	Loot []LootEntry `json:"loot,omitempty"`

	Boss bool `json:"boss,omitempty"`
}

// LootEntry is one drop with its roll chance.
type LootEntry struct {
	ItemID   string  `json:"item_id"`
	Chance   float64 `json:"chance"`
	Quantity int32   `json:"quantity"`
}

// DungeonDefinition describes one dungeon as an ordered floor list.
type DungeonDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	MinLevel int32 `json:"min_level"`

	Floors []FloorDefinition `json:"floors"`

	// BonusItemIDs is the pool for floor-clear bonus drops. Empty
	// falls back to the whole item catalog.
	BonusItemIDs []string `json:"bonus_item_ids,omitempty"`
}

// FloorDefinition describes one floor. A floor with a boss always
// spawns it; otherwise one spawn is drawn by weight, and an empty
// table means a free floor.
type FloorDefinition struct {
	Spawns []SpawnEntry `json:"spawns,omitempty"`
	BossID string       `json:"boss_id,omitempty"`

	// RewardMult scales the floor's gold and XP. Zero means 1.
	RewardMult float64 `json:"reward_mult,omitempty"`
}

// Multiplier returns the effective reward multiplier.
func (f *FloorDefinition) Multiplier() float64 {
	if f.RewardMult <= 0 {
		return 1
	}
	return f.RewardMult
}

// SpawnEntry weights one monster in a floor's encounter table.
type SpawnEntry struct {
	MonsterID string  `json:"monster_id"`
	Weight    float64 `json:"weight"`
}

// SkillDefinition describes one learnable combat skill.
type SkillDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// ClassID restricts the skill to one class. Empty means any.
	ClassID string `json:"class_id,omitempty"`

	LevelReq int32 `json:"level_req"`

	// Price is the gold cost to learn the skill. Zero means granted,
	// never bought.
	Price int64 `json:"price"`

	SPCost int32 `json:"sp_cost"`

	// Cooldown is how many turns must pass before reuse. Zero means
	// every turn.
	Cooldown int32 `json:"cooldown,omitempty"`

	// Power multiplies the user's attack for the damage roll.
	Power float64 `json:"power"`

	Element entities.Element `json:"element,omitempty"`

	// Status is an on-hit rider applied with StatusChance.
	Status       entities.StatusType `json:"status,omitempty"`
	StatusChance float64             `json:"status_chance,omitempty"`

	// Heal restores the user's HP instead of dealing damage.
	Heal int32 `json:"heal,omitempty"`
}

// ClassDefinition describes one playable class.
type ClassDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	BaseHP int32 `json:"base_hp"`
	BaseSP int32 `json:"base_sp"`

	BaseStats entities.Stats `json:"base_stats"`

	// GrowthWeights biases the per-level bonus distribution, keyed by
	// stat name plus the pool keys hp, max_hp, sp, and max_sp. Each
	// key's share floors separately when applied.
	GrowthWeights map[string]float64 `json:"growth_weights"`

	StartingSkillIDs []string         `json:"starting_skill_ids,omitempty"`
	StartingItems    map[string]int32 `json:"starting_items,omitempty"`
}

// AchievementDefinition describes one achievement.
type AchievementDefinition struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// Counter names the lifetime counter the achievement watches.
	Counter string `json:"counter"`

	Threshold int64 `json:"threshold"`

	// One-time grant bonus.
	RewardGold int64 `json:"reward_gold,omitempty"`
	RewardXP   int64 `json:"reward_xp,omitempty"`
}

// Counter names recognized in achievement definitions.
const (
	CounterBattlesWon        = "battles_won"
	CounterDungeonsCompleted = "dungeons_completed"
	CounterBossesDefeated    = "bosses_defeated"
	CounterGold              = "gold"
)

// RecipeDefinition describes one crafting recipe.
type RecipeDefinition struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	OutputItemID   string `json:"output_item_id"`
	OutputQuantity int32  `json:"output_quantity"`

	// Materials maps item ID to the amount consumed per unit crafted.
	Materials map[string]int32 `json:"materials"`

	// Stations lists tool item IDs the crafter must own.
	Stations []string `json:"stations,omitempty"`

	Discipline string `json:"discipline"`
	SkillReq   int32  `json:"skill_req"`

	DurationSeconds int32 `json:"duration_seconds"`

	// XP is the discipline experience granted per unit on success.
	XP int64 `json:"xp"`

	// FailureChance is the base chance one unit fails, before the
	// crafter's skill reduction.
	FailureChance float64 `json:"failure_chance"`
}

// ShopDefinition describes one NPC shop.
type ShopDefinition struct {
	ID   string `json:"id"`
	Name string `json:"name"`

	ItemIDs []string `json:"item_ids"`

	// Markup multiplies item base prices at this shop. Zero means 1.
	Markup float64 `json:"markup,omitempty"`
}

// FactionArchetype describes a faction type and the perk its members
// share.
type FactionArchetype struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`

	// StatBonus adds flat stats to every member.
	StatBonus map[string]int32 `json:"stat_bonus,omitempty"`

	// GoldMult scales member gold rewards. Zero means 1.
	GoldMult float64 `json:"gold_mult,omitempty"`
}

// Data aggregates every definition list for loading and validation.
type Data struct {
	Items        []*ItemDefinition        `json:"items"`
	Monsters     []*MonsterDefinition     `json:"monsters"`
	Dungeons     []*DungeonDefinition     `json:"dungeons"`
	Skills       []*SkillDefinition       `json:"skills"`
	Classes      []*ClassDefinition       `json:"classes"`
	Achievements []*AchievementDefinition `json:"achievements"`
	Recipes      []*RecipeDefinition      `json:"recipes"`
	Shops        []*ShopDefinition        `json:"shops"`
	Archetypes   []*FactionArchetype      `json:"archetypes"`
}
