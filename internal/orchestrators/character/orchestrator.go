// Package character implements the character orchestrator: creation,
// progression, gold, inventory, equipment, cultivation, rebirth, the
// daily reward, and the battle bookkeeping the combat and dungeon
// orchestrators call into.
//
// Every mutation goes through the repository's versioned Update, so a
// precondition check and the write it guards always land on the same
// revision of the record.
package character

//go:generate mockgen -destination=mock/mock_service.go -package=charactermock github.com/nonamep-p/rpg-core/internal/orchestrators/character Service

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/engine"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/gameevents"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/repositories/characters"
	"github.com/nonamep-p/rpg-core/internal/repositories/factions"
	"github.com/nonamep-p/rpg-core/internal/repositories/leaderboard"
)

const (
	startingGold   = 100
	startingRating = 1000

	// defaultSkillID is known by every fresh character regardless of
	// class.
	defaultSkillID = "slash"

	// Per-level gains applied when experience crosses a threshold.
	levelHPGain     = 10
	levelSPGain     = 5
	levelAttackGain = 2
	levelStatGain   = 1

	// Daily reward tuning: claimable every 20 hours, the streak
	// survives for 48, and each streak day adds 5% up to a week.
	dailyClaimGate    = 20 * time.Hour
	dailyStreakWindow = 48 * time.Hour
	dailyRewardGold   = 50
	dailyRewardXP     = 50
	dailyStreakBonus  = 0.05
	dailyStreakCap    = 7

	// Rebirth gates scale with each pass: level 20/30/40... and
	// 10000/20000/30000... gold.
	rebirthLevelBase = 20
	rebirthLevelStep = 10
	rebirthGoldStep  = 10000
	rebirthMultStep  = 0.05

	// cultivationCap is the most levels one stat can be cultivated.
	cultivationCap = 10

	// duelRatingDelta moves the duel rating per win or loss.
	duelRatingDelta = 25
)

// Cultivation tuning per stat: the character level that unlocks it,
// the bonus granted per purchase, and the essence cost. Bonus and cost
// both scale with character level.
var (
	cultivationGates = map[entities.StatName]int32{
		entities.StatHP:      5,
		entities.StatSP:      5,
		entities.StatAttack:  3,
		entities.StatDefense: 3,
		entities.StatSpeed:   7,
		entities.StatLuck:    10,
	}
	cultivationBonusBase = map[entities.StatName]int32{
		entities.StatHP:      10,
		entities.StatSP:      5,
		entities.StatAttack:  2,
		entities.StatDefense: 2,
		entities.StatSpeed:   1,
		entities.StatLuck:    1,
	}
	cultivationCostBase = map[entities.StatName]int32{
		entities.StatHP:      50,
		entities.StatSP:      40,
		entities.StatAttack:  60,
		entities.StatDefense: 60,
		entities.StatSpeed:   80,
		entities.StatLuck:    100,
	}
)

// Service defines the interface for character operations
type Service interface {
	CreateCharacter(ctx context.Context, input *CreateCharacterInput) (*CreateCharacterOutput, error)
	GetCharacter(ctx context.Context, input *GetCharacterInput) (*GetCharacterOutput, error)
	GetCharacterByUser(ctx context.Context, input *GetCharacterByUserInput) (*GetCharacterByUserOutput, error)
	EffectiveStats(ctx context.Context, input *EffectiveStatsInput) (*EffectiveStatsOutput, error)

	// Progression and wealth
	AddExperience(ctx context.Context, input *AddExperienceInput) (*AddExperienceOutput, error)
	AddGold(ctx context.Context, input *AddGoldInput) (*AddGoldOutput, error)
	SpendGold(ctx context.Context, input *SpendGoldInput) (*SpendGoldOutput, error)

	// Inventory and equipment
	AddItem(ctx context.Context, input *AddItemInput) (*AddItemOutput, error)
	RemoveItem(ctx context.Context, input *RemoveItemInput) (*RemoveItemOutput, error)
	ConsumeItem(ctx context.Context, input *ConsumeItemInput) (*ConsumeItemOutput, error)
	Inventory(ctx context.Context, input *InventoryInput) (*InventoryOutput, error)
	EquipItem(ctx context.Context, input *EquipItemInput) (*EquipItemOutput, error)
	UnequipItem(ctx context.Context, input *UnequipItemInput) (*UnequipItemOutput, error)

	// Long-term progression
	CultivateStat(ctx context.Context, input *CultivateStatInput) (*CultivateStatOutput, error)
	Rebirth(ctx context.Context, input *RebirthInput) (*RebirthOutput, error)
	ClaimDailyReward(ctx context.Context, input *ClaimDailyRewardInput) (*ClaimDailyRewardOutput, error)
	LearnSkill(ctx context.Context, input *LearnSkillInput) (*LearnSkillOutput, error)

	// SetFaction stamps faction membership on the record; the faction
	// orchestrator owns the roster itself.
	SetFaction(ctx context.Context, input *SetFactionInput) (*SetFactionOutput, error)

	// Bookkeeping for the combat and dungeon orchestrators
	RecordBattleResult(ctx context.Context, input *RecordBattleResultInput) (*RecordBattleResultOutput, error)
	RecordDungeonClear(ctx context.Context, input *RecordDungeonClearInput) (*RecordDungeonClearOutput, error)
	ApplyRewards(ctx context.Context, input *ApplyRewardsInput) (*ApplyRewardsOutput, error)
	ApplyFleePenalty(ctx context.Context, input *ApplyFleePenaltyInput) (*ApplyFleePenaltyOutput, error)
}

// Config holds the dependencies for the character orchestrator
type Config struct {
	CharacterRepo characters.Repository
	FactionRepo   factions.Repository
	Leaderboard   leaderboard.Repository
	Catalog       *catalog.Catalog
	Engine        engine.Engine
	EventBus      events.EventBus
	IDGenerator   idgen.Generator
	Clock         clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.CharacterRepo == nil {
		vb.RequiredField("CharacterRepo")
	}
	if c.FactionRepo == nil {
		vb.RequiredField("FactionRepo")
	}
	if c.Leaderboard == nil {
		vb.RequiredField("Leaderboard")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
	}
	if c.Engine == nil {
		vb.RequiredField("Engine")
	}
	if c.EventBus == nil {
		vb.RequiredField("EventBus")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}

	return vb.Build()
}

type orchestrator struct {
	characterRepo characters.Repository
	factionRepo   factions.Repository
	leaderboard   leaderboard.Repository
	catalog       *catalog.Catalog
	engine        engine.Engine
	eventBus      events.EventBus
	idGen         idgen.Generator
	clock         clock.Clock
}

// NewOrchestrator creates a new character orchestrator with the
// provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &orchestrator{
		characterRepo: cfg.CharacterRepo,
		factionRepo:   cfg.FactionRepo,
		leaderboard:   cfg.Leaderboard,
		catalog:       cfg.Catalog,
		engine:        cfg.Engine,
		eventBus:      cfg.EventBus,
		idGen:         cfg.IDGenerator,
		clock:         cfg.Clock,
	}, nil
}

var _ Service = (*orchestrator)(nil)

// CreateCharacter creates a fresh character for a user. A user can
// only ever own one.
func (o *orchestrator) CreateCharacter(ctx context.Context, input *CreateCharacterInput) (*CreateCharacterOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("userID", input.UserID, vb)
	errors.ValidateRequired("name", input.Name, vb)
	errors.ValidateRequired("classID", input.ClassID, vb)
	errors.ValidateMaxLength("name", strings.TrimSpace(input.Name), 32, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	class, ok := o.catalog.Class(input.ClassID)
	if !ok {
		return nil, errors.InvalidArgumentf("unknown class %q, valid classes: %s",
			input.ClassID, strings.Join(o.catalog.ClassIDs(), ", "))
	}

	ch := &entities.Character{
		ID:           o.idGen.Generate(),
		UserID:       input.UserID,
		Name:         strings.TrimSpace(input.Name),
		ClassID:      class.ID,
		Level:        1,
		Gold:         startingGold,
		HP:           class.BaseHP,
		MaxHP:        class.BaseHP,
		SP:           class.BaseSP,
		MaxSP:        class.BaseSP,
		Stats:        class.BaseStats,
		Inventory:    make(map[string]int32, len(class.StartingItems)),
		SkillIDs:     startingSkills(class),
		CraftSkills:  make(map[string]entities.CraftSkill),
		XPMult:       1,
		GoldMult:     1,
		PvP:          entities.PvPRecord{Rating: startingRating},
		Achievements: make(map[string]int64),
	}
	for itemID, qty := range class.StartingItems {
		ch.AddItem(itemID, qty)
	}

	created, err := o.characterRepo.Create(ctx, characters.CreateInput{Character: ch})
	if err != nil {
		return nil, err
	}

	c := created.Character
	o.setBoard(ctx, leaderboard.BoardGold, c.ID, c.Gold)
	o.setBoard(ctx, leaderboard.BoardLevel, c.ID, int64(c.Level))
	o.setBoard(ctx, leaderboard.BoardRating, c.ID, int64(c.PvP.Rating))

	return &CreateCharacterOutput{Character: c}, nil
}

// startingSkills builds the skill list for a fresh character: the
// universal opener plus whatever the class grants.
func startingSkills(class *catalog.ClassDefinition) []string {
	skills := []string{defaultSkillID}
	seen := map[string]bool{defaultSkillID: true}
	for _, id := range class.StartingSkillIDs {
		if !seen[id] {
			skills = append(skills, id)
			seen[id] = true
		}
	}
	return skills
}

// GetCharacter retrieves a character by ID
func (o *orchestrator) GetCharacter(ctx context.Context, input *GetCharacterInput) (*GetCharacterOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	got, err := o.characterRepo.Get(ctx, characters.GetInput{ID: input.CharacterID})
	if err != nil {
		return nil, err
	}
	return &GetCharacterOutput{Character: got.Character}, nil
}

// GetCharacterByUser retrieves the character a user owns
func (o *orchestrator) GetCharacterByUser(ctx context.Context, input *GetCharacterByUserInput) (*GetCharacterByUserOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.UserID == "" {
		return nil, errors.InvalidArgument("userID is required")
	}

	got, err := o.characterRepo.GetByUserID(ctx, characters.GetByUserIDInput{UserID: input.UserID})
	if err != nil {
		return nil, err
	}
	return &GetCharacterByUserOutput{Character: got.Character}, nil
}

// EffectiveStats derives the character's full combat profile,
// including the faction perk when the character belongs to one.
func (o *orchestrator) EffectiveStats(ctx context.Context, input *EffectiveStatsInput) (*EffectiveStatsOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	got, err := o.characterRepo.Get(ctx, characters.GetInput{ID: input.CharacterID})
	if err != nil {
		return nil, err
	}
	c := got.Character

	archetypeID, err := o.archetypeFor(ctx, c)
	if err != nil {
		return nil, err
	}

	derived, err := o.engine.CalculateEffectiveStats(ctx, &engine.CalculateEffectiveStatsInput{
		Character:   c,
		ArchetypeID: archetypeID,
	})
	if err != nil {
		return nil, err
	}

	return &EffectiveStatsOutput{Character: c, Profile: derived.Profile}, nil
}

// archetypeFor resolves the faction archetype a character benefits
// from. A dangling faction reference degrades to no perk rather than
// blocking the character.
func (o *orchestrator) archetypeFor(ctx context.Context, c *entities.Character) (string, error) {
	if c.FactionID == "" {
		return "", nil
	}
	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: c.FactionID})
	if err != nil {
		if errors.IsNotFound(err) {
			slog.WarnContext(ctx, "character references missing faction",
				"character_id", c.ID,
				"faction_id", c.FactionID,
			)
			return "", nil
		}
		return "", err
	}
	return got.Faction.Archetype, nil
}

// AddExperience credits experience, applying the character's
// experience multiplier and any level-ups the new total crosses.
func (o *orchestrator) AddExperience(ctx context.Context, input *AddExperienceInput) (*AddExperienceOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if input.Amount <= 0 {
		vb.Field("amount", "must be positive")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	var applied int64
	var gained int32
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			applied = int64(math.Round(float64(input.Amount) * xpMultiplier(c)))
			gained = o.creditExperience(c, applied)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	c := updated.Character
	if gained > 0 {
		o.noteLevelUp(ctx, c)
	}

	return &AddExperienceOutput{
		Character:    c,
		XPApplied:    applied,
		Level:        c.Level,
		LevelsGained: gained,
	}, nil
}

// AddGold credits gold to the character
func (o *orchestrator) AddGold(ctx context.Context, input *AddGoldInput) (*AddGoldOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if input.Amount <= 0 {
		vb.Field("amount", "must be positive")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			c.Gold += input.Amount
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	o.noteGoldChanged(ctx, updated.Character)

	return &AddGoldOutput{Character: updated.Character, Gold: updated.Character.Gold}, nil
}

// SpendGold debits gold, failing without side effects when the
// character cannot afford it.
func (o *orchestrator) SpendGold(ctx context.Context, input *SpendGoldInput) (*SpendGoldOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if input.Amount <= 0 {
		vb.Field("amount", "must be positive")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			if c.Gold < input.Amount {
				return errors.FailedPreconditionf("need %d gold, have %d", input.Amount, c.Gold)
			}
			c.Gold -= input.Amount
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	o.noteGoldChanged(ctx, updated.Character)

	return &SpendGoldOutput{Character: updated.Character, Gold: updated.Character.Gold}, nil
}

// AddItem adds items to the inventory
func (o *orchestrator) AddItem(ctx context.Context, input *AddItemInput) (*AddItemOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	errors.ValidateRequired("itemID", input.ItemID, vb)
	if input.Quantity <= 0 {
		vb.Field("quantity", "must be positive")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	if _, ok := o.catalog.Item(input.ItemID); !ok {
		return nil, errors.InvalidArgumentf("unknown item %q", input.ItemID)
	}

	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			c.AddItem(input.ItemID, input.Quantity)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &AddItemOutput{Character: updated.Character}, nil
}

// RemoveItem removes items from the inventory
func (o *orchestrator) RemoveItem(ctx context.Context, input *RemoveItemInput) (*RemoveItemOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	errors.ValidateRequired("itemID", input.ItemID, vb)
	if input.Quantity <= 0 {
		vb.Field("quantity", "must be positive")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			if !c.RemoveItem(input.ItemID, input.Quantity) {
				return errors.FailedPreconditionf("need %d %s, have %d",
					input.Quantity, input.ItemID, c.ItemCount(input.ItemID))
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &RemoveItemOutput{Character: updated.Character}, nil
}

// ConsumeItem uses one consumable outside of battle. Only the restore
// effects apply; status cures and grants only matter in combat, where
// the combat orchestrator handles item use itself.
func (o *orchestrator) ConsumeItem(ctx context.Context, input *ConsumeItemInput) (*ConsumeItemOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	errors.ValidateRequired("itemID", input.ItemID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	item, ok := o.catalog.Item(input.ItemID)
	if !ok {
		return nil, errors.InvalidArgumentf("unknown item %q", input.ItemID)
	}
	if item.Type != entities.ItemTypeConsumable {
		return nil, errors.InvalidArgumentf("%s is not a consumable", item.Name)
	}

	var hpRestored, spRestored int32
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			if !c.RemoveItem(input.ItemID, 1) {
				return errors.FailedPreconditionf("no %s in the inventory", item.Name)
			}
			hpRestored = restorePool(&c.HP, c.MaxHP, item.Effects[catalog.EffectHP], item.Effects[catalog.EffectHPPct])
			spRestored = restorePool(&c.SP, c.MaxSP, item.Effects[catalog.EffectSP], item.Effects[catalog.EffectSPPct])
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &ConsumeItemOutput{
		Character:  updated.Character,
		HPRestored: hpRestored,
		SPRestored: spRestored,
	}, nil
}

// restorePool applies a flat plus percent-of-max restore to a pool,
// clamped to max, and returns what was actually restored.
func restorePool(pool *int32, maxPool int32, flat, pct float64) int32 {
	gain := int32(flat)
	if pct > 0 {
		gain += int32(math.Round(float64(maxPool) * pct / 100))
	}
	if gain <= 0 {
		return 0
	}
	if room := maxPool - *pool; gain > room {
		gain = room
	}
	*pool += gain
	return gain
}

// Inventory lists the character's inventory resolved against the
// catalog, sorted by item ID.
func (o *orchestrator) Inventory(ctx context.Context, input *InventoryInput) (*InventoryOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	got, err := o.characterRepo.Get(ctx, characters.GetInput{ID: input.CharacterID})
	if err != nil {
		return nil, err
	}

	entries := make([]InventoryEntry, 0, len(got.Character.Inventory))
	for itemID, qty := range got.Character.Inventory {
		entry := InventoryEntry{ItemID: itemID, Name: itemID, Quantity: qty}
		if item, ok := o.catalog.Item(itemID); ok {
			entry.Name = item.Name
			entry.Type = item.Type
			entry.Rarity = item.Rarity
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ItemID < entries[j].ItemID })

	return &InventoryOutput{Entries: entries}, nil
}

// EquipItem moves an owned item from the inventory into its slot,
// returning whatever was there to the inventory.
func (o *orchestrator) EquipItem(ctx context.Context, input *EquipItemInput) (*EquipItemOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	errors.ValidateRequired("itemID", input.ItemID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	item, ok := o.catalog.Item(input.ItemID)
	if !ok {
		return nil, errors.InvalidArgumentf("unknown item %q", input.ItemID)
	}
	slot, ok := entities.SlotForItemType(item.Type)
	if !ok {
		return nil, errors.InvalidArgumentf("%s cannot be equipped", item.Name)
	}

	var replaced string
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			if !c.RemoveItem(input.ItemID, 1) {
				return errors.FailedPreconditionf("no %s in the inventory", item.Name)
			}
			replaced = c.Equipment.Set(slot, input.ItemID)
			if replaced != "" {
				c.AddItem(replaced, 1)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &EquipItemOutput{Character: updated.Character, Slot: slot, Replaced: replaced}, nil
}

// UnequipItem clears a slot and returns the item to the inventory
func (o *orchestrator) UnequipItem(ctx context.Context, input *UnequipItemInput) (*UnequipItemOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}
	switch input.Slot {
	case entities.SlotWeapon, entities.SlotArmor, entities.SlotShield, entities.SlotAccessory:
	default:
		return nil, errors.InvalidArgumentf("unknown equipment slot %q", input.Slot)
	}

	var itemID string
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			itemID = c.Equipment.Get(input.Slot)
			if itemID == "" {
				return errors.FailedPreconditionf("nothing equipped in the %s slot", input.Slot)
			}
			c.Equipment.Set(input.Slot, "")
			c.AddItem(itemID, 1)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &UnequipItemOutput{Character: updated.Character, ItemID: itemID}, nil
}

// CultivateStat spends essence on a permanent stat bonus. Each stat
// unlocks at its own character level and can be bought ten times; the
// bonus and the cost both grow with character level.
func (o *orchestrator) CultivateStat(ctx context.Context, input *CultivateStatInput) (*CultivateStatOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	gate, ok := cultivationGates[input.Stat]
	if !ok {
		return nil, errors.InvalidArgumentf("stat %q cannot be cultivated", input.Stat)
	}

	var bonus, cost, count int32
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			if c.Level < gate {
				return errors.FailedPreconditionf("cultivating %s requires level %d", input.Stat, gate)
			}
			if c.Cultivation.Count(input.Stat) >= cultivationCap {
				return errors.FailedPreconditionf("%s is already fully cultivated", input.Stat)
			}
			levelScale := float64(c.Level - 1)
			cost = int32(float64(cultivationCostBase[input.Stat]) * (1 + 0.2*levelScale))
			if c.Essence < cost {
				return errors.FailedPreconditionf("need %d essence, have %d", cost, c.Essence)
			}
			bonus = int32(float64(cultivationBonusBase[input.Stat]) * (1 + 0.1*levelScale))

			c.Essence -= cost
			switch input.Stat {
			case entities.StatHP:
				c.MaxHP += bonus
			case entities.StatSP:
				c.MaxSP += bonus
			default:
				c.Stats.Add(input.Stat, bonus)
			}
			c.Cultivation.Bump(input.Stat)
			count = c.Cultivation.Count(input.Stat)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &CultivateStatOutput{
		Character: updated.Character,
		Bonus:     bonus,
		Cost:      cost,
		Count:     count,
	}, nil
}

// Rebirth trades level and gold for permanent reward multipliers.
// Stats, cultivation, and equipment all survive; level and experience
// restart.
func (o *orchestrator) Rebirth(ctx context.Context, input *RebirthInput) (*RebirthOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	var spent int64
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			reqLevel := int32(rebirthLevelBase + rebirthLevelStep*c.Rebirths)
			if c.Level < reqLevel {
				return errors.FailedPreconditionf("rebirth requires level %d", reqLevel)
			}
			cost := int64(rebirthGoldStep) * int64(c.Rebirths+1)
			if c.Gold < cost {
				return errors.FailedPreconditionf("rebirth requires %d gold, have %d", cost, c.Gold)
			}

			c.Gold -= cost
			c.Level = 1
			c.XP = 0
			c.Rebirths++
			if c.XPMult <= 0 {
				c.XPMult = 1
			}
			if c.GoldMult <= 0 {
				c.GoldMult = 1
			}
			c.XPMult += rebirthMultStep
			c.GoldMult += rebirthMultStep
			spent = cost
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	c := updated.Character
	o.noteGoldChanged(ctx, c)
	o.setBoard(ctx, leaderboard.BoardLevel, c.ID, int64(c.Level))

	return &RebirthOutput{
		Character: c,
		Rebirths:  c.Rebirths,
		GoldSpent: spent,
		XPMult:    c.XPMult,
		GoldMult:  c.GoldMult,
	}, nil
}

// ClaimDailyReward pays the daily gold and experience. Claims gate at
// 20 hours; coming back within 48 keeps the streak alive.
func (o *orchestrator) ClaimDailyReward(ctx context.Context, input *ClaimDailyRewardInput) (*ClaimDailyRewardOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	var gold, xp int64
	var streak, gained int32
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			now := o.clock.Now()
			streak = 1
			if c.LastDailyAt > 0 {
				elapsed := now.Sub(time.Unix(c.LastDailyAt, 0))
				if elapsed < dailyClaimGate {
					return errors.FailedPrecondition("daily reward already claimed, try again later")
				}
				if elapsed <= dailyStreakWindow {
					streak = c.DailyStreak + 1
				}
			}

			bonusDays := streak
			if bonusDays > dailyStreakCap {
				bonusDays = dailyStreakCap
			}
			mult := 1 + dailyStreakBonus*float64(bonusDays)
			gold = int64(math.Round(dailyRewardGold * mult))
			xp = int64(math.Round(dailyRewardXP * mult))

			c.Gold += gold
			credited := int64(math.Round(float64(xp) * xpMultiplier(c)))
			gained = o.creditExperience(c, credited)
			c.DailyStreak = streak
			c.LastDailyAt = now.Unix()
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	c := updated.Character
	o.noteGoldChanged(ctx, c)
	if gained > 0 {
		o.noteLevelUp(ctx, c)
	}

	return &ClaimDailyRewardOutput{
		Character: c,
		Gold:      gold,
		XP:        xp,
		Streak:    streak,
	}, nil
}

// LearnSkill teaches a catalog skill, charging its price when it has
// one.
func (o *orchestrator) LearnSkill(ctx context.Context, input *LearnSkillInput) (*LearnSkillOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	errors.ValidateRequired("skillID", input.SkillID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	skill, ok := o.catalog.Skill(input.SkillID)
	if !ok {
		return nil, errors.InvalidArgumentf("unknown skill %q", input.SkillID)
	}

	var spent int64
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			if skill.ClassID != "" && skill.ClassID != c.ClassID {
				return errors.FailedPreconditionf("%s is a %s skill", skill.Name, skill.ClassID)
			}
			if c.Level < skill.LevelReq {
				return errors.FailedPreconditionf("%s requires level %d", skill.Name, skill.LevelReq)
			}
			for _, id := range c.SkillIDs {
				if id == skill.ID {
					return errors.AlreadyExistsf("%s is already known", skill.Name)
				}
			}
			if skill.Price > 0 {
				if c.Gold < skill.Price {
					return errors.FailedPreconditionf("%s costs %d gold, have %d", skill.Name, skill.Price, c.Gold)
				}
				c.Gold -= skill.Price
				spent = skill.Price
			}
			c.SkillIDs = append(c.SkillIDs, skill.ID)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	if spent > 0 {
		o.noteGoldChanged(ctx, updated.Character)
	}

	return &LearnSkillOutput{Character: updated.Character, SkillID: skill.ID, GoldSpent: spent}, nil
}

// SetFaction stamps the character's faction membership. Setting a new
// faction requires the character to be unaffiliated; clearing always
// succeeds. The faction orchestrator calls this around its own roster
// updates.
func (o *orchestrator) SetFaction(ctx context.Context, input *SetFactionInput) (*SetFactionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			if input.FactionID != "" && c.FactionID != "" && c.FactionID != input.FactionID {
				return errors.FailedPrecondition("already in a faction")
			}
			c.FactionID = input.FactionID
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &SetFactionOutput{Character: updated.Character}, nil
}

// RecordBattleResult updates the lifetime battle counters and, for
// duels, the rating. Fleeing a hunt counts as neither a win nor a
// loss; fleeing a duel forfeits it.
func (o *orchestrator) RecordBattleResult(ctx context.Context, input *RecordBattleResultInput) (*RecordBattleResultOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			c.Progress.TotalBattles++
			switch {
			case input.Won:
				c.Progress.BattlesWon++
				if input.Boss {
					c.Progress.BossesDefeated++
				}
			case !input.Fled:
				c.Progress.BattlesLost++
			}

			if input.PvP {
				if input.Won {
					c.PvP.Rating += duelRatingDelta
					c.PvP.Wins++
				} else {
					c.PvP.Rating -= duelRatingDelta
					if c.PvP.Rating < 0 {
						c.PvP.Rating = 0
					}
					c.PvP.Losses++
				}
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	c := updated.Character
	if input.PvP {
		o.setBoard(ctx, leaderboard.BoardRating, c.ID, int64(c.PvP.Rating))
	}

	return &RecordBattleResultOutput{
		Character: c,
		Progress:  c.Progress,
		Rating:    c.PvP.Rating,
	}, nil
}

// RecordDungeonClear bumps the lifetime dungeon counter
func (o *orchestrator) RecordDungeonClear(ctx context.Context, input *RecordDungeonClearInput) (*RecordDungeonClearOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			c.Progress.DungeonsCompleted++
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	return &RecordDungeonClearOutput{
		Character: updated.Character,
		Progress:  updated.Character.Progress,
	}, nil
}

// ApplyRewards credits battle spoils in one versioned update. Amounts
// arrive with reward multipliers already folded in, so they credit
// as-is.
func (o *orchestrator) ApplyRewards(ctx context.Context, input *ApplyRewardsInput) (*ApplyRewardsOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if input.XP < 0 {
		vb.Field("xp", "must not be negative")
	}
	if input.Gold < 0 {
		vb.Field("gold", "must not be negative")
	}
	for itemID, qty := range input.Items {
		if _, ok := o.catalog.Item(itemID); !ok {
			vb.Fieldf("items", "unknown item %q", itemID)
		}
		if qty <= 0 {
			vb.Fieldf("items", "quantity for %q must be positive", itemID)
		}
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	var gained int32
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			gained = o.creditExperience(c, input.XP)
			c.Gold += input.Gold
			for itemID, qty := range input.Items {
				c.AddItem(itemID, qty)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	c := updated.Character
	if input.Gold > 0 {
		o.noteGoldChanged(ctx, c)
	}
	if gained > 0 {
		o.noteLevelUp(ctx, c)
	}

	return &ApplyRewardsOutput{Character: c, Level: c.Level, LevelsGained: gained}, nil
}

// ApplyFleePenalty charges the price of running from a battle: a cut
// of the character's gold and a quarter of the HP the battle left
// them, both floored so fleeing never bankrupts or kills.
func (o *orchestrator) ApplyFleePenalty(ctx context.Context, input *ApplyFleePenaltyInput) (*ApplyFleePenaltyOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if input.BattleHP <= 0 {
		vb.Field("battleHP", "must be positive")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	var goldLost int64
	var hpLost int32
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			goldLost = c.Gold / 20
			if goldLost < 1 {
				goldLost = 1
			}
			if goldLost > c.Gold {
				goldLost = c.Gold
			}
			c.Gold -= goldLost

			penalty := input.BattleHP / 4
			if penalty < 1 {
				penalty = 1
			}
			hp := input.BattleHP - penalty
			if hp < 1 {
				hp = 1
			}
			if hp > c.MaxHP {
				hp = c.MaxHP
			}
			hpLost = input.BattleHP - hp
			if hpLost < 0 {
				hpLost = 0
			}
			c.HP = hp
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	if goldLost > 0 {
		o.noteGoldChanged(ctx, updated.Character)
	}

	return &ApplyFleePenaltyOutput{
		Character: updated.Character,
		GoldLost:  goldLost,
		HPLost:    hpLost,
	}, nil
}

// creditExperience adds already-multiplied experience and applies the
// per-level gains for every threshold crossed, returning how many
// levels were gained. Experience is cumulative and never resets except
// at rebirth.
func (o *orchestrator) creditExperience(c *entities.Character, xp int64) int32 {
	if xp <= 0 {
		return 0
	}
	c.XP += xp
	newLevel := o.engine.LevelForXP(c.XP)
	if newLevel <= c.Level {
		return 0
	}

	gained := newLevel - c.Level
	for lvl := c.Level + 1; lvl <= newLevel; lvl++ {
		c.MaxHP += levelHPGain
		c.HP += levelHPGain
		c.MaxSP += levelSPGain
		c.SP += levelSPGain
		c.Stats.Attack += levelAttackGain
		c.Stats.Defense += levelStatGain
		c.Stats.Speed += levelStatGain
		c.Stats.Intelligence += levelStatGain
		c.Stats.Luck += levelStatGain
		c.Stats.Agility += levelStatGain
		c.Essence += essenceForLevel(lvl)
	}
	c.Level = newLevel
	return gained
}

// essenceForLevel is the cultivation essence granted on reaching lvl.
func essenceForLevel(lvl int32) int32 {
	if e := 2 * lvl; e > 5 {
		return e
	}
	return 5
}

// xpMultiplier returns the character's experience multiplier,
// defaulting to 1 when unset.
func xpMultiplier(c *entities.Character) float64 {
	if c.XPMult > 0 {
		return c.XPMult
	}
	return 1
}

// noteGoldChanged publishes the new balance and refreshes the gold
// board. Both are best-effort: the balance is already committed.
func (o *orchestrator) noteGoldChanged(ctx context.Context, c *entities.Character) {
	if err := gameevents.Publish(ctx, o.eventBus, gameevents.TopicGoldChanged, gameevents.Payload{
		CharacterID: c.ID,
		Gold:        c.Gold,
	}); err != nil {
		slog.WarnContext(ctx, "failed to publish gold change",
			"character_id", c.ID,
			"error", err,
		)
	}
	o.setBoard(ctx, leaderboard.BoardGold, c.ID, c.Gold)
}

// noteLevelUp publishes the new level and refreshes the level board.
func (o *orchestrator) noteLevelUp(ctx context.Context, c *entities.Character) {
	if err := gameevents.Publish(ctx, o.eventBus, gameevents.TopicLevelUp, gameevents.Payload{
		CharacterID: c.ID,
		Level:       c.Level,
		XP:          c.XP,
	}); err != nil {
		slog.WarnContext(ctx, "failed to publish level up",
			"character_id", c.ID,
			"error", err,
		)
	}
	o.setBoard(ctx, leaderboard.BoardLevel, c.ID, int64(c.Level))
}

// setBoard upserts a leaderboard score, logging instead of failing:
// boards are derived data and can always be rebuilt from characters.
func (o *orchestrator) setBoard(ctx context.Context, board, memberID string, score int64) {
	_, err := o.leaderboard.SetScore(ctx, leaderboard.SetScoreInput{
		Board:    board,
		MemberID: memberID,
		Score:    score,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to update leaderboard",
			"board", board,
			"member_id", memberID,
			"error", err,
		)
	}
}
