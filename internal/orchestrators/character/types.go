package character

import (
	"github.com/nonamep-p/rpg-core/internal/engine"
	"github.com/nonamep-p/rpg-core/internal/entities"
)

// CreateCharacterInput defines the input for creating a character
type CreateCharacterInput struct {
	UserID  string
	Name    string
	ClassID string
}

// CreateCharacterOutput defines the output for creating a character
type CreateCharacterOutput struct {
	Character *entities.Character
}

// GetCharacterInput defines the input for fetching a character by ID
type GetCharacterInput struct {
	CharacterID string
}

// GetCharacterOutput defines the output for fetching a character
type GetCharacterOutput struct {
	Character *entities.Character
}

// GetCharacterByUserInput defines the input for fetching a user's character
type GetCharacterByUserInput struct {
	UserID string
}

// GetCharacterByUserOutput defines the output for fetching a user's character
type GetCharacterByUserOutput struct {
	Character *entities.Character
}

// EffectiveStatsInput defines the input for deriving combat stats
type EffectiveStatsInput struct {
	CharacterID string
}

// EffectiveStatsOutput carries the derived profile alongside the
// character it was derived from.
type EffectiveStatsOutput struct {
	Character *entities.Character
	Profile   *engine.StatProfile
}

// AddExperienceInput defines the input for granting experience. Amount
// is the raw award; the character's experience multiplier applies on
// top.
type AddExperienceInput struct {
	CharacterID string
	Amount      int64
}

// AddExperienceOutput reports the credited experience and any levels
// gained.
type AddExperienceOutput struct {
	Character    *entities.Character
	XPApplied    int64
	Level        int32
	LevelsGained int32
}

// AddGoldInput defines the input for crediting gold
type AddGoldInput struct {
	CharacterID string
	Amount      int64
}

// AddGoldOutput defines the output for crediting gold
type AddGoldOutput struct {
	Character *entities.Character
	Gold      int64
}

// SpendGoldInput defines the input for debiting gold
type SpendGoldInput struct {
	CharacterID string
	Amount      int64
}

// SpendGoldOutput defines the output for debiting gold
type SpendGoldOutput struct {
	Character *entities.Character
	Gold      int64
}

// AddItemInput defines the input for adding items to the inventory
type AddItemInput struct {
	CharacterID string
	ItemID      string
	Quantity    int32
}

// AddItemOutput defines the output for adding items
type AddItemOutput struct {
	Character *entities.Character
}

// RemoveItemInput defines the input for removing items from the
// inventory
type RemoveItemInput struct {
	CharacterID string
	ItemID      string
	Quantity    int32
}

// RemoveItemOutput defines the output for removing items
type RemoveItemOutput struct {
	Character *entities.Character
}

// ConsumeItemInput defines the input for consuming one item outside of
// battle
type ConsumeItemInput struct {
	CharacterID string
	ItemID      string
}

// ConsumeItemOutput reports what the consumable restored.
type ConsumeItemOutput struct {
	Character  *entities.Character
	HPRestored int32
	SPRestored int32
}

// InventoryInput defines the input for listing the inventory
type InventoryInput struct {
	CharacterID string
}

// InventoryEntry is one inventory stack resolved against the catalog.
type InventoryEntry struct {
	ItemID   string
	Name     string
	Type     entities.ItemType
	Rarity   entities.Rarity
	Quantity int32
}

// InventoryOutput lists the inventory sorted by item ID.
type InventoryOutput struct {
	Entries []InventoryEntry
}

// EquipItemInput defines the input for equipping an owned item
type EquipItemInput struct {
	CharacterID string
	ItemID      string
}

// EquipItemOutput reports the slot used and the item it displaced.
type EquipItemOutput struct {
	Character *entities.Character
	Slot      entities.EquipSlot
	Replaced  string
}

// UnequipItemInput defines the input for clearing an equipment slot
type UnequipItemInput struct {
	CharacterID string
	Slot        entities.EquipSlot
}

// UnequipItemOutput reports the item returned to the inventory.
type UnequipItemOutput struct {
	Character *entities.Character
	ItemID    string
}

// CultivateStatInput defines the input for buying one cultivation
// level. Stat must be one of hp, sp, attack, defense, speed, or luck.
type CultivateStatInput struct {
	CharacterID string
	Stat        entities.StatName
}

// CultivateStatOutput reports the purchase.
type CultivateStatOutput struct {
	Character *entities.Character
	Bonus     int32
	Cost      int32
	Count     int32
}

// RebirthInput defines the input for a rebirth
type RebirthInput struct {
	CharacterID string
}

// RebirthOutput reports the new standing after rebirth.
type RebirthOutput struct {
	Character *entities.Character
	Rebirths  int32
	GoldSpent int64
	XPMult    float64
	GoldMult  float64
}

// ClaimDailyRewardInput defines the input for claiming the daily
// reward
type ClaimDailyRewardInput struct {
	CharacterID string
}

// ClaimDailyRewardOutput reports the claim.
type ClaimDailyRewardOutput struct {
	Character *entities.Character
	Gold      int64
	XP        int64
	Streak    int32
}

// LearnSkillInput defines the input for learning a skill
type LearnSkillInput struct {
	CharacterID string
	SkillID     string
}

// LearnSkillOutput reports the learned skill and what it cost.
type LearnSkillOutput struct {
	Character *entities.Character
	SkillID   string
	GoldSpent int64
}

// SetFactionInput defines the input for stamping faction membership
// on the character record. An empty FactionID clears it.
type SetFactionInput struct {
	CharacterID string
	FactionID   string
}

// SetFactionOutput defines the output for stamping faction membership
type SetFactionOutput struct {
	Character *entities.Character
}

// RecordBattleResultInput defines the input for battle bookkeeping.
// Fled means the player ran; a fled hunt counts as neither a win nor a
// loss, while a fled duel forfeits.
type RecordBattleResultInput struct {
	CharacterID string
	Won         bool
	Fled        bool
	Boss        bool
	PvP         bool
}

// RecordBattleResultOutput reports the updated counters.
type RecordBattleResultOutput struct {
	Character *entities.Character
	Progress  entities.Progress
	Rating    int32
}

// RecordDungeonClearInput defines the input for counting a completed
// dungeon run
type RecordDungeonClearInput struct {
	CharacterID string
}

// RecordDungeonClearOutput reports the updated counters.
type RecordDungeonClearOutput struct {
	Character *entities.Character
	Progress  entities.Progress
}

// ApplyRewardsInput defines the input for crediting battle spoils in a
// single update. Amounts are credited as given; reward multipliers are
// already folded in by the caller.
type ApplyRewardsInput struct {
	CharacterID string
	XP          int64
	Gold        int64
	Items       map[string]int32
}

// ApplyRewardsOutput reports the credit and any levels gained.
type ApplyRewardsOutput struct {
	Character    *entities.Character
	Level        int32
	LevelsGained int32
}

// ApplyFleePenaltyInput defines the input for the cost of running from
// a battle. BattleHP is the fleeing side's HP as the battle left it;
// the persisted HP becomes that minus the penalty.
type ApplyFleePenaltyInput struct {
	CharacterID string
	BattleHP    int32
}

// ApplyFleePenaltyOutput reports what fleeing cost.
type ApplyFleePenaltyOutput struct {
	Character *entities.Character
	GoldLost  int64
	HPLost    int32
}
