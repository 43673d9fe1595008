// Package catalog loads and validates the static game content the
// engine and orchestrators read: items, monsters, dungeons, skills,
// classes, achievements, recipes, shops, and faction archetypes.
//
// Content is immutable once loaded. Validation runs at load time and
// rejects dangling references, so runtime code never has to re-check
// that a recipe's materials or a dungeon's monsters exist.
package catalog

import (
	"fmt"
	"sort"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
)

// Catalog is the validated, indexed game content.
type Catalog struct {
	items        map[string]*ItemDefinition
	monsters     map[string]*MonsterDefinition
	dungeons     map[string]*DungeonDefinition
	skills       map[string]*SkillDefinition
	classes      map[string]*ClassDefinition
	achievements map[string]*AchievementDefinition
	recipes      map[string]*RecipeDefinition
	shops        map[string]*ShopDefinition
	archetypes   map[string]*FactionArchetype

	sortedItems        []*ItemDefinition
	sortedMonsters     []*MonsterDefinition
	sortedDungeons     []*DungeonDefinition
	sortedSkills       []*SkillDefinition
	sortedClasses      []*ClassDefinition
	sortedAchievements []*AchievementDefinition
	sortedRecipes      []*RecipeDefinition
	sortedShops        []*ShopDefinition
	sortedArchetypes   []*FactionArchetype
}

// New indexes and validates the given content. Any dangling reference
// or out-of-range value fails the whole load; a server should treat
// that as fatal.
func New(data *Data) (*Catalog, error) {
	if data == nil {
		return nil, errors.InvalidArgument("catalog data cannot be nil")
	}

	c := &Catalog{
		items:        make(map[string]*ItemDefinition, len(data.Items)),
		monsters:     make(map[string]*MonsterDefinition, len(data.Monsters)),
		dungeons:     make(map[string]*DungeonDefinition, len(data.Dungeons)),
		skills:       make(map[string]*SkillDefinition, len(data.Skills)),
		classes:      make(map[string]*ClassDefinition, len(data.Classes)),
		achievements: make(map[string]*AchievementDefinition, len(data.Achievements)),
		recipes:      make(map[string]*RecipeDefinition, len(data.Recipes)),
		shops:        make(map[string]*ShopDefinition, len(data.Shops)),
		archetypes:   make(map[string]*FactionArchetype, len(data.Archetypes)),
	}

	vb := errors.NewValidationBuilder()

	for _, d := range data.Items {
		if indexDef(vb, "items", d.ID, d, c.items) {
			c.sortedItems = append(c.sortedItems, d)
		}
	}
	for _, d := range data.Monsters {
		if indexDef(vb, "monsters", d.ID, d, c.monsters) {
			c.sortedMonsters = append(c.sortedMonsters, d)
		}
	}
	for _, d := range data.Dungeons {
		if indexDef(vb, "dungeons", d.ID, d, c.dungeons) {
			c.sortedDungeons = append(c.sortedDungeons, d)
		}
	}
	for _, d := range data.Skills {
		if indexDef(vb, "skills", d.ID, d, c.skills) {
			c.sortedSkills = append(c.sortedSkills, d)
		}
	}
	for _, d := range data.Classes {
		if indexDef(vb, "classes", d.ID, d, c.classes) {
			c.sortedClasses = append(c.sortedClasses, d)
		}
	}
	for _, d := range data.Achievements {
		if indexDef(vb, "achievements", d.ID, d, c.achievements) {
			c.sortedAchievements = append(c.sortedAchievements, d)
		}
	}
	for _, d := range data.Recipes {
		if indexDef(vb, "recipes", d.ID, d, c.recipes) {
			c.sortedRecipes = append(c.sortedRecipes, d)
		}
	}
	for _, d := range data.Shops {
		if indexDef(vb, "shops", d.ID, d, c.shops) {
			c.sortedShops = append(c.sortedShops, d)
		}
	}
	for _, d := range data.Archetypes {
		if indexDef(vb, "archetypes", d.ID, d, c.archetypes) {
			c.sortedArchetypes = append(c.sortedArchetypes, d)
		}
	}

	c.validateItems(vb)
	c.validateMonsters(vb)
	c.validateDungeons(vb)
	c.validateSkills(vb)
	c.validateClasses(vb)
	c.validateAchievements(vb)
	c.validateRecipes(vb)
	c.validateShops(vb)
	c.validateArchetypes(vb)

	if err := vb.Build(); err != nil {
		return nil, err
	}

	sortByID(c.sortedItems, func(d *ItemDefinition) string { return d.ID })
	sortByID(c.sortedMonsters, func(d *MonsterDefinition) string { return d.ID })
	sortByID(c.sortedDungeons, func(d *DungeonDefinition) string { return d.ID })
	sortByID(c.sortedSkills, func(d *SkillDefinition) string { return d.ID })
	sortByID(c.sortedClasses, func(d *ClassDefinition) string { return d.ID })
	sortByID(c.sortedAchievements, func(d *AchievementDefinition) string { return d.ID })
	sortByID(c.sortedRecipes, func(d *RecipeDefinition) string { return d.ID })
	sortByID(c.sortedShops, func(d *ShopDefinition) string { return d.ID })
	sortByID(c.sortedArchetypes, func(d *FactionArchetype) string { return d.ID })

	return c, nil
}

// indexDef registers id -> def in index, recording a field error on
// empty or duplicate IDs. It reports whether the entry was added.
func indexDef[T any](vb *errors.ValidationBuilder, collection, id string, def T, index map[string]T) bool {
	if id == "" {
		vb.Field(collection, "definition with empty ID")
		return false
	}
	if _, dup := index[id]; dup {
		vb.Fieldf(collection, "duplicate ID %q", id)
		return false
	}
	index[id] = def
	return true
}

func sortByID[T any](defs []T, id func(T) string) {
	sort.Slice(defs, func(i, j int) bool { return id(defs[i]) < id(defs[j]) })
}

var validElements = map[entities.Element]bool{
	entities.ElementPhysical:  true,
	entities.ElementFire:      true,
	entities.ElementIce:       true,
	entities.ElementLightning: true,
	entities.ElementHoly:      true,
	entities.ElementShadow:    true,
	entities.ElementPoison:    true,
}

var validStatuses = map[entities.StatusType]bool{
	entities.StatusBurn:     true,
	entities.StatusPoison:   true,
	entities.StatusBleed:    true,
	entities.StatusRegen:    true,
	entities.StatusStun:     true,
	entities.StatusFrost:    true,
	entities.StatusHaste:    true,
	entities.StatusSlow:     true,
	entities.StatusShield:   true,
	entities.StatusBlessing: true,
	entities.StatusWeakness: true,
}

var validItemTypes = map[entities.ItemType]bool{
	entities.ItemTypeWeapon:     true,
	entities.ItemTypeArmor:      true,
	entities.ItemTypeShield:     true,
	entities.ItemTypeAccessory:  true,
	entities.ItemTypeConsumable: true,
	entities.ItemTypeMaterial:   true,
}

var validEffectKeys = map[string]bool{
	EffectAttack:       true,
	EffectDefense:      true,
	EffectSpeed:        true,
	EffectIntelligence: true,
	EffectLuck:         true,
	EffectAgility:      true,
	EffectHP:           true,
	EffectSP:           true,
	EffectHPPct:        true,
	EffectSPPct:        true,
	EffectAccuracy:     true,
	EffectEvasion:      true,
	EffectPenetration:  true,
	EffectCritChance:   true,
	EffectCritDamage:   true,
}

var validCounters = map[string]bool{
	CounterBattlesWon:        true,
	CounterDungeonsCompleted: true,
	CounterBossesDefeated:    true,
	CounterGold:              true,
}

var validGrowthKeys = map[string]bool{
	"attack":       true,
	"defense":      true,
	"speed":        true,
	"intelligence": true,
	"luck":         true,
	"agility":      true,
	"hp":           true,
	"max_hp":       true,
	"sp":           true,
	"max_sp":       true,
}

var validStatNames = map[string]bool{
	"attack":       true,
	"defense":      true,
	"speed":        true,
	"intelligence": true,
	"luck":         true,
	"agility":      true,
}

func (c *Catalog) validateItems(vb *errors.ValidationBuilder) {
	for id, d := range c.items {
		field := "items." + id
		if d.Name == "" {
			vb.Field(field, "name is required")
		}
		if !validItemTypes[d.Type] {
			vb.Fieldf(field, "unknown item type %q", d.Type)
		}
		if d.Element != "" && !validElements[d.Element] {
			vb.Fieldf(field, "unknown element %q", d.Element)
		}
		if d.Price < 0 {
			vb.Field(field, "price must not be negative")
		}
		for key := range d.Effects {
			if !validEffectKeys[key] {
				vb.Fieldf(field, "unknown effect key %q", key)
			}
		}
		if d.Type != entities.ItemTypeConsumable {
			if len(d.Cures) > 0 || d.Grants != "" {
				vb.Field(field, "cures and grants are consumable-only")
			}
		}
		for _, st := range d.Cures {
			if !validStatuses[st] {
				vb.Fieldf(field, "unknown cured status %q", st)
			}
		}
		if d.Grants != "" && !validStatuses[d.Grants] {
			vb.Fieldf(field, "unknown granted status %q", d.Grants)
		}
	}
}

func (c *Catalog) validateMonsters(vb *errors.ValidationBuilder) {
	for id, d := range c.monsters {
		field := "monsters." + id
		if d.Name == "" {
			vb.Field(field, "name is required")
		}
		if d.Level < 1 {
			vb.Field(field, "level must be at least 1")
		}
		if d.HP < 1 {
			vb.Field(field, "hp must be at least 1")
		}
		if d.Attack < 0 || d.Defense < 0 || d.Speed < 0 {
			vb.Field(field, "stats must not be negative")
		}
		if d.Element != "" && !validElements[d.Element] {
			vb.Fieldf(field, "unknown element %q", d.Element)
		}
		if d.GoldReward < 0 || d.XPReward < 0 {
			vb.Field(field, "rewards must not be negative")
		}
		for _, loot := range d.Loot {
			if _, ok := c.items[loot.ItemID]; !ok {
				vb.Fieldf(field, "loot references unknown item %q", loot.ItemID)
			}
			if loot.Chance <= 0 || loot.Chance > 1 {
				vb.Fieldf(field, "loot chance for %q must be in (0, 1]", loot.ItemID)
			}
			if loot.Quantity < 1 {
				vb.Fieldf(field, "loot quantity for %q must be at least 1", loot.ItemID)
			}
		}
	}
}

func (c *Catalog) validateDungeons(vb *errors.ValidationBuilder) {
	for id, d := range c.dungeons {
		field := "dungeons." + id
		if d.Name == "" {
			vb.Field(field, "name is required")
		}
		if d.MinLevel < 1 {
			vb.Field(field, "min_level must be at least 1")
		}
		if len(d.Floors) == 0 {
			vb.Field(field, "floors cannot be empty")
		}
		for i, floor := range d.Floors {
			ffield := fmt.Sprintf("%s.floors[%d]", field, i)
			for _, spawn := range floor.Spawns {
				if _, ok := c.monsters[spawn.MonsterID]; !ok {
					vb.Fieldf(ffield, "references unknown monster %q", spawn.MonsterID)
				}
				if spawn.Weight <= 0 {
					vb.Fieldf(ffield, "spawn weight for %q must be positive", spawn.MonsterID)
				}
			}
			if floor.BossID != "" {
				if boss, ok := c.monsters[floor.BossID]; !ok {
					vb.Fieldf(ffield, "references unknown boss %q", floor.BossID)
				} else if !boss.Boss {
					vb.Fieldf(ffield, "boss %q is not flagged as a boss", floor.BossID)
				}
			}
			if floor.RewardMult < 0 {
				vb.Field(ffield, "reward_mult must not be negative")
			}
		}
		for _, iid := range d.BonusItemIDs {
			if _, ok := c.items[iid]; !ok {
				vb.Fieldf(field, "bonus pool references unknown item %q", iid)
			}
		}
	}
}

func (c *Catalog) validateSkills(vb *errors.ValidationBuilder) {
	for id, d := range c.skills {
		field := "skills." + id
		if d.Name == "" {
			vb.Field(field, "name is required")
		}
		if d.ClassID != "" {
			if _, ok := c.classes[d.ClassID]; !ok {
				vb.Fieldf(field, "references unknown class %q", d.ClassID)
			}
		}
		if d.LevelReq < 1 {
			vb.Field(field, "level_req must be at least 1")
		}
		if d.Price < 0 {
			vb.Field(field, "price must not be negative")
		}
		if d.SPCost < 0 {
			vb.Field(field, "sp_cost must not be negative")
		}
		if d.Cooldown < 0 {
			vb.Field(field, "cooldown must not be negative")
		}
		if d.Power < 0 {
			vb.Field(field, "power must not be negative")
		}
		if d.Heal < 0 {
			vb.Field(field, "heal must not be negative")
		}
		if d.Power == 0 && d.Heal == 0 && d.Status == "" {
			vb.Field(field, "skill has no effect")
		}
		if d.Element != "" && !validElements[d.Element] {
			vb.Fieldf(field, "unknown element %q", d.Element)
		}
		if d.Status != "" && !validStatuses[d.Status] {
			vb.Fieldf(field, "unknown status %q", d.Status)
		}
		if d.StatusChance < 0 || d.StatusChance > 1 {
			vb.Field(field, "status_chance must be in [0, 1]")
		}
		if d.Status != "" && d.StatusChance == 0 {
			vb.Field(field, "status set but status_chance is zero")
		}
	}
}

func (c *Catalog) validateClasses(vb *errors.ValidationBuilder) {
	if len(c.classes) == 0 {
		vb.Field("classes", "at least one class is required")
	}
	for id, d := range c.classes {
		field := "classes." + id
		if d.Name == "" {
			vb.Field(field, "name is required")
		}
		if d.BaseHP < 1 || d.BaseSP < 1 {
			vb.Field(field, "base hp and sp must be at least 1")
		}
		var sum float64
		for key, w := range d.GrowthWeights {
			if !validGrowthKeys[key] {
				vb.Fieldf(field, "unknown growth key %q", key)
			}
			if w < 0 {
				vb.Fieldf(field, "growth weight %q must not be negative", key)
			}
			sum += w
		}
		if sum < 0.999 || sum > 1.001 {
			vb.Fieldf(field, "growth weights must sum to 1, got %.3f", sum)
		}
		for _, sid := range d.StartingSkillIDs {
			if _, ok := c.skills[sid]; !ok {
				vb.Fieldf(field, "references unknown skill %q", sid)
			}
		}
		for iid, qty := range d.StartingItems {
			if _, ok := c.items[iid]; !ok {
				vb.Fieldf(field, "references unknown item %q", iid)
			}
			if qty < 1 {
				vb.Fieldf(field, "starting quantity for %q must be at least 1", iid)
			}
		}
	}
}

func (c *Catalog) validateAchievements(vb *errors.ValidationBuilder) {
	for id, d := range c.achievements {
		field := "achievements." + id
		if d.Name == "" {
			vb.Field(field, "name is required")
		}
		if !validCounters[d.Counter] {
			vb.Fieldf(field, "unknown counter %q", d.Counter)
		}
		if d.Threshold < 1 {
			vb.Field(field, "threshold must be at least 1")
		}
		if d.RewardGold < 0 || d.RewardXP < 0 {
			vb.Field(field, "rewards must not be negative")
		}
	}
}

func (c *Catalog) validateRecipes(vb *errors.ValidationBuilder) {
	for id, d := range c.recipes {
		field := "recipes." + id
		if d.Name == "" {
			vb.Field(field, "name is required")
		}
		if _, ok := c.items[d.OutputItemID]; !ok {
			vb.Fieldf(field, "references unknown output item %q", d.OutputItemID)
		}
		if d.OutputQuantity < 1 {
			vb.Field(field, "output_quantity must be at least 1")
		}
		if len(d.Materials) == 0 {
			vb.Field(field, "materials cannot be empty")
		}
		for iid, qty := range d.Materials {
			if _, ok := c.items[iid]; !ok {
				vb.Fieldf(field, "references unknown material %q", iid)
			}
			if qty < 1 {
				vb.Fieldf(field, "material quantity for %q must be at least 1", iid)
			}
		}
		for _, sid := range d.Stations {
			if _, ok := c.items[sid]; !ok {
				vb.Fieldf(field, "references unknown station item %q", sid)
			}
		}
		if d.Discipline == "" {
			vb.Field(field, "discipline is required")
		}
		if d.SkillReq < 1 {
			vb.Field(field, "skill_req must be at least 1")
		}
		if d.DurationSeconds < 1 {
			vb.Field(field, "duration_seconds must be at least 1")
		}
		if d.XP < 0 {
			vb.Field(field, "xp must not be negative")
		}
		if d.FailureChance < 0 || d.FailureChance >= 1 {
			vb.Field(field, "failure_chance must be in [0, 1)")
		}
	}
}

func (c *Catalog) validateShops(vb *errors.ValidationBuilder) {
	for id, d := range c.shops {
		field := "shops." + id
		if d.Name == "" {
			vb.Field(field, "name is required")
		}
		if d.Markup < 0 {
			vb.Field(field, "markup must not be negative")
		}
		for _, iid := range d.ItemIDs {
			item, ok := c.items[iid]
			if !ok {
				vb.Fieldf(field, "references unknown item %q", iid)
				continue
			}
			if item.Price <= 0 {
				vb.Fieldf(field, "item %q has no price and cannot be stocked", iid)
			}
		}
	}
}

func (c *Catalog) validateArchetypes(vb *errors.ValidationBuilder) {
	for id, d := range c.archetypes {
		field := "archetypes." + id
		if d.Name == "" {
			vb.Field(field, "name is required")
		}
		for key := range d.StatBonus {
			if !validStatNames[key] {
				vb.Fieldf(field, "unknown stat %q", key)
			}
		}
		if d.GoldMult < 0 {
			vb.Field(field, "gold_mult must not be negative")
		}
	}
}

// Item returns the item definition for id.
func (c *Catalog) Item(id string) (*ItemDefinition, bool) {
	d, ok := c.items[id]
	return d, ok
}

// Items returns every item sorted by ID.
func (c *Catalog) Items() []*ItemDefinition {
	return c.sortedItems
}

// Monster returns the monster definition for id.
func (c *Catalog) Monster(id string) (*MonsterDefinition, bool) {
	d, ok := c.monsters[id]
	return d, ok
}

// Monsters returns every monster sorted by ID.
func (c *Catalog) Monsters() []*MonsterDefinition {
	return c.sortedMonsters
}

// Dungeon returns the dungeon definition for id.
func (c *Catalog) Dungeon(id string) (*DungeonDefinition, bool) {
	d, ok := c.dungeons[id]
	return d, ok
}

// Dungeons returns every dungeon sorted by ID.
func (c *Catalog) Dungeons() []*DungeonDefinition {
	return c.sortedDungeons
}

// Skill returns the skill definition for id.
func (c *Catalog) Skill(id string) (*SkillDefinition, bool) {
	d, ok := c.skills[id]
	return d, ok
}

// Skills returns every skill sorted by ID.
func (c *Catalog) Skills() []*SkillDefinition {
	return c.sortedSkills
}

// Class returns the class definition for id.
func (c *Catalog) Class(id string) (*ClassDefinition, bool) {
	d, ok := c.classes[id]
	return d, ok
}

// Classes returns every class sorted by ID.
func (c *Catalog) Classes() []*ClassDefinition {
	return c.sortedClasses
}

// ClassIDs returns the sorted class IDs, for validation messages.
func (c *Catalog) ClassIDs() []string {
	ids := make([]string, 0, len(c.sortedClasses))
	for _, d := range c.sortedClasses {
		ids = append(ids, d.ID)
	}
	return ids
}

// Achievement returns the achievement definition for id.
func (c *Catalog) Achievement(id string) (*AchievementDefinition, bool) {
	d, ok := c.achievements[id]
	return d, ok
}

// Achievements returns every achievement sorted by ID.
func (c *Catalog) Achievements() []*AchievementDefinition {
	return c.sortedAchievements
}

// Recipe returns the recipe definition for id.
func (c *Catalog) Recipe(id string) (*RecipeDefinition, bool) {
	d, ok := c.recipes[id]
	return d, ok
}

// Recipes returns every recipe sorted by ID.
func (c *Catalog) Recipes() []*RecipeDefinition {
	return c.sortedRecipes
}

// Shop returns the shop definition for id.
func (c *Catalog) Shop(id string) (*ShopDefinition, bool) {
	d, ok := c.shops[id]
	return d, ok
}

// Shops returns every shop sorted by ID.
func (c *Catalog) Shops() []*ShopDefinition {
	return c.sortedShops
}

// RandomItemID rolls a uniform pick from the item table.
func (c *Catalog) RandomItemID(roller dice.Roller) (string, error) {
	if len(c.sortedItems) == 0 {
		return "", errors.NotFound("item table is empty")
	}
	n, err := roller.Roll(len(c.sortedItems))
	if err != nil {
		return "", errors.Wrapf(err, "failed to roll item pick")
	}
	return c.sortedItems[n-1].ID, nil
}

// Archetype returns the faction archetype for id.
func (c *Catalog) Archetype(id string) (*FactionArchetype, bool) {
	d, ok := c.archetypes[id]
	return d, ok
}

// Archetypes returns every faction archetype sorted by ID.
func (c *Catalog) Archetypes() []*FactionArchetype {
	return c.sortedArchetypes
}

// Stats returns collection sizes for startup logging.
func (c *Catalog) Stats() string {
	return fmt.Sprintf(
		"items=%d monsters=%d dungeons=%d skills=%d classes=%d achievements=%d recipes=%d shops=%d archetypes=%d",
		len(c.items), len(c.monsters), len(c.dungeons), len(c.skills), len(c.classes),
		len(c.achievements), len(c.recipes), len(c.shops), len(c.archetypes),
	)
}
