// Package entities provides the persisted data structures for the game core.
package entities

// Character is the full persisted state of a player character.
//
// Stats, MaxHP, and MaxSP are base values: levels, rebirths, and
// cultivation are already folded in, equipment is not. Equipment and
// status modifiers apply at derivation time in the engine so that
// unequipping can never corrupt the stored base.
type Character struct {
	ID      string `json:"id"`
	UserID  string `json:"user_id"`
	Name    string `json:"name"`
	ClassID string `json:"class_id"`

	Level int32 `json:"level"`
	XP    int64 `json:"xp"`
	Gold  int64 `json:"gold"`

	HP    int32 `json:"hp"`
	MaxHP int32 `json:"max_hp"`
	SP    int32 `json:"sp"`
	MaxSP int32 `json:"max_sp"`

	Stats Stats `json:"stats"`

	// Inventory maps item ID to quantity. Equipment items occupy
	// inventory slots while unequipped and leave it while worn.
	Inventory map[string]int32 `json:"inventory"`
	Equipment Equipment        `json:"equipment"`

	SkillIDs []string `json:"skill_ids"`

	CraftSkills map[string]CraftSkill `json:"craft_skills"`

	Cultivation Cultivation `json:"cultivation"`
	Essence     int32       `json:"essence"`

	Rebirths int32   `json:"rebirths"`
	XPMult   float64 `json:"xp_mult"`
	GoldMult float64 `json:"gold_mult"`

	// FactionID is the faction the character belongs to, if any.
	// Party membership lives in the party repository's member index
	// and is not mirrored here.
	FactionID string `json:"faction_id,omitempty"`

	PvP       PvPRecord  `json:"pvp"`
	Companion *Companion `json:"companion,omitempty"`

	// Achievements maps achievement ID to the unix time it was earned.
	Achievements map[string]int64 `json:"achievements"`
	Progress     Progress         `json:"progress"`

	DailyStreak int32 `json:"daily_streak"`
	LastDailyAt int64 `json:"last_daily_at"`

	// Version increments on every write and backs optimistic
	// concurrency control in the repository.
	Version int64 `json:"version"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Stats holds the six trainable base stats.
type Stats struct {
	Attack       int32 `json:"attack"`
	Defense      int32 `json:"defense"`
	Speed        int32 `json:"speed"`
	Intelligence int32 `json:"intelligence"`
	Luck         int32 `json:"luck"`
	Agility      int32 `json:"agility"`
}

// Get returns the named stat value.
func (s Stats) Get(name StatName) int32 {
	switch name {
	case StatAttack:
		return s.Attack
	case StatDefense:
		return s.Defense
	case StatSpeed:
		return s.Speed
	case StatIntelligence:
		return s.Intelligence
	case StatLuck:
		return s.Luck
	case StatAgility:
		return s.Agility
	default:
		return 0
	}
}

// Add increases the named stat by delta. Unknown names are ignored.
func (s *Stats) Add(name StatName, delta int32) {
	switch name {
	case StatAttack:
		s.Attack += delta
	case StatDefense:
		s.Defense += delta
	case StatSpeed:
		s.Speed += delta
	case StatIntelligence:
		s.Intelligence += delta
	case StatLuck:
		s.Luck += delta
	case StatAgility:
		s.Agility += delta
	}
}

// Equipment holds the item ID worn in each slot. Empty means bare.
type Equipment struct {
	Weapon    string `json:"weapon,omitempty"`
	Armor     string `json:"armor,omitempty"`
	Shield    string `json:"shield,omitempty"`
	Accessory string `json:"accessory,omitempty"`
}

// Get returns the item ID in the given slot.
func (e Equipment) Get(slot EquipSlot) string {
	switch slot {
	case SlotWeapon:
		return e.Weapon
	case SlotArmor:
		return e.Armor
	case SlotShield:
		return e.Shield
	case SlotAccessory:
		return e.Accessory
	default:
		return ""
	}
}

// Set places an item ID into the given slot, returning the ID it
// displaced.
func (e *Equipment) Set(slot EquipSlot, itemID string) string {
	var prev string
	switch slot {
	case SlotWeapon:
		prev, e.Weapon = e.Weapon, itemID
	case SlotArmor:
		prev, e.Armor = e.Armor, itemID
	case SlotShield:
		prev, e.Shield = e.Shield, itemID
	case SlotAccessory:
		prev, e.Accessory = e.Accessory, itemID
	}
	return prev
}

// All returns the worn item IDs, skipping empty slots.
func (e Equipment) All() []string {
	ids := make([]string, 0, 4)
	for _, id := range []string{e.Weapon, e.Armor, e.Shield, e.Accessory} {
		if id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// CraftSkill tracks one crafting discipline's progression.
type CraftSkill struct {
	Level int32 `json:"level"`
	XP    int64 `json:"xp"`
}

// Cultivation tracks per-stat cultivation levels. Each level grants a
// permanent bonus to the matching base stat.
type Cultivation struct {
	HP      int32 `json:"hp"`
	SP      int32 `json:"sp"`
	Attack  int32 `json:"attack"`
	Defense int32 `json:"defense"`
	Speed   int32 `json:"speed"`
	Luck    int32 `json:"luck"`
}

// Count returns the cultivation counter for stat. Only hp, sp, attack,
// defense, speed, and luck are cultivable.
func (cv Cultivation) Count(stat StatName) int32 {
	switch stat {
	case StatHP:
		return cv.HP
	case StatSP:
		return cv.SP
	case StatAttack:
		return cv.Attack
	case StatDefense:
		return cv.Defense
	case StatSpeed:
		return cv.Speed
	case StatLuck:
		return cv.Luck
	default:
		return 0
	}
}

// Bump increments the cultivation counter for stat. Unknown stats are
// ignored.
func (cv *Cultivation) Bump(stat StatName) {
	switch stat {
	case StatHP:
		cv.HP++
	case StatSP:
		cv.SP++
	case StatAttack:
		cv.Attack++
	case StatDefense:
		cv.Defense++
	case StatSpeed:
		cv.Speed++
	case StatLuck:
		cv.Luck++
	}
}

// PvPRecord tracks duel standing.
type PvPRecord struct {
	Rating int32 `json:"rating"`
	Wins   int32 `json:"wins"`
	Losses int32 `json:"losses"`
}

// Companion is a pet that adds to its owner's combat stats and can
// fetch extra loot after hunts.
type Companion struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Kind    string `json:"kind"`
	Level   int32  `json:"level"`
	Attack  int32  `json:"attack"`
	Defense int32  `json:"defense"`
	Hunting int32  `json:"hunting"`
}

// Progress holds lifetime counters used by achievements.
type Progress struct {
	TotalBattles      int64 `json:"total_battles"`
	BattlesWon        int64 `json:"battles_won"`
	BattlesLost       int64 `json:"battles_lost"`
	DungeonsCompleted int64 `json:"dungeons_completed"`
	BossesDefeated    int64 `json:"bosses_defeated"`
}

// ItemCount returns how many of itemID the character holds.
func (c *Character) ItemCount(itemID string) int32 {
	if c.Inventory == nil {
		return 0
	}
	return c.Inventory[itemID]
}

// AddItem adds quantity of itemID to the inventory.
func (c *Character) AddItem(itemID string, quantity int32) {
	if c.Inventory == nil {
		c.Inventory = make(map[string]int32)
	}
	c.Inventory[itemID] += quantity
}

// RemoveItem removes quantity of itemID, reporting false if the
// character does not hold enough.
func (c *Character) RemoveItem(itemID string, quantity int32) bool {
	if c.ItemCount(itemID) < quantity {
		return false
	}
	c.Inventory[itemID] -= quantity
	if c.Inventory[itemID] <= 0 {
		delete(c.Inventory, itemID)
	}
	return true
}
