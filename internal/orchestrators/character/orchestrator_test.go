package character_test

import (
	"context"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	enginecore "github.com/nonamep-p/rpg-core/internal/engine/core"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/gameevents"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/character"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/repositories/characters"
	"github.com/nonamep-p/rpg-core/internal/repositories/factions"
	"github.com/nonamep-p/rpg-core/internal/repositories/leaderboard"
	"github.com/nonamep-p/rpg-core/internal/testutils"
)

// fakeClock pins time so daily-reward windows are testable.
type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

type OrchestratorTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	cleanup   func()

	charRepo    characters.Repository
	factionRepo factions.Repository
	boards      leaderboard.Repository
	catalog     *catalog.Catalog
	bus         events.EventBus
	clock       *fakeClock

	svc character.Service
	ctx context.Context
}

func (s *OrchestratorTestSuite) SetupTest() {
	mr, redisClient, cleanup := testutils.CreateTestRedisServer(s.T())
	s.miniRedis = mr
	s.cleanup = cleanup

	charRepo, err := characters.NewRedis(&characters.RedisConfig{Client: redisClient})
	s.Require().NoError(err)
	s.charRepo = charRepo

	factionRepo, err := factions.NewRedis(&factions.RedisConfig{Client: redisClient})
	s.Require().NoError(err)
	s.factionRepo = factionRepo

	boards, err := leaderboard.NewRedis(&leaderboard.RedisConfig{Client: redisClient})
	s.Require().NoError(err)
	s.boards = boards

	s.catalog = testutils.CreateTestCatalog(s.T())

	eng, err := enginecore.NewEngine(&enginecore.Config{Catalog: s.catalog})
	s.Require().NoError(err)

	s.bus = events.NewBus()
	s.clock = &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}

	svc, err := character.NewOrchestrator(&character.Config{
		CharacterRepo: s.charRepo,
		FactionRepo:   s.factionRepo,
		Leaderboard:   s.boards,
		Catalog:       s.catalog,
		Engine:        eng,
		EventBus:      s.bus,
		IDGenerator:   idgen.NewPrefixed("char"),
		Clock:         s.clock,
	})
	s.Require().NoError(err)
	s.svc = svc
	s.ctx = context.Background()
}

func (s *OrchestratorTestSuite) TearDownTest() {
	s.cleanup()
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

// createWarrior provisions a fresh level-1 warrior and returns it.
func (s *OrchestratorTestSuite) createWarrior(userID string) *entities.Character {
	out, err := s.svc.CreateCharacter(s.ctx, &character.CreateCharacterInput{
		UserID:  userID,
		Name:    "Aria",
		ClassID: "warrior",
	})
	s.Require().NoError(err)
	return out.Character
}

// mutate applies fn to the stored character outside the orchestrator,
// for arranging test states the public API cannot reach directly.
func (s *OrchestratorTestSuite) mutate(id string, fn func(*entities.Character)) {
	_, err := s.charRepo.Update(s.ctx, characters.UpdateInput{
		ID: id,
		Mutate: func(c *entities.Character) error {
			fn(c)
			return nil
		},
	})
	s.Require().NoError(err)
}

func (s *OrchestratorTestSuite) boardScore(board, memberID string) int64 {
	out, err := s.boards.Rank(s.ctx, leaderboard.RankInput{Board: board, MemberID: memberID})
	s.Require().NoError(err)
	return out.Entry.Score
}

func (s *OrchestratorTestSuite) TestNewOrchestratorValidatesConfig() {
	_, err := character.NewOrchestrator(&character.Config{})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestCreateCharacter() {
	c := s.createWarrior("user_1")

	s.Assert().NotEmpty(c.ID)
	s.Assert().Equal("user_1", c.UserID)
	s.Assert().Equal("Aria", c.Name)
	s.Assert().Equal("warrior", c.ClassID)
	s.Assert().Equal(int32(1), c.Level)
	s.Assert().Equal(int64(100), c.Gold)
	s.Assert().Equal(int32(100), c.HP)
	s.Assert().Equal(int32(100), c.MaxHP)
	s.Assert().Equal(int32(50), c.SP)
	s.Assert().Equal(int32(15), c.Stats.Attack)
	s.Assert().Equal([]string{"slash", "power_strike"}, c.SkillIDs)
	s.Assert().Equal(int32(1), c.ItemCount("iron_sword"))
	s.Assert().Equal(int32(3), c.ItemCount("health_potion"))
	s.Assert().Equal(int32(1000), c.PvP.Rating)
	s.Assert().InDelta(1.0, c.XPMult, 0.0001)
	s.Assert().Positive(c.CreatedAt)

	s.Assert().Equal(int64(100), s.boardScore(leaderboard.BoardGold, c.ID))
	s.Assert().Equal(int64(1), s.boardScore(leaderboard.BoardLevel, c.ID))
	s.Assert().Equal(int64(1000), s.boardScore(leaderboard.BoardRating, c.ID))
}

func (s *OrchestratorTestSuite) TestCreateCharacterRejectsSecondForUser() {
	s.createWarrior("user_1")

	_, err := s.svc.CreateCharacter(s.ctx, &character.CreateCharacterInput{
		UserID:  "user_1",
		Name:    "Again",
		ClassID: "warrior",
	})
	s.Require().Error(err)
	s.Assert().True(errors.IsAlreadyExists(err))
}

func (s *OrchestratorTestSuite) TestCreateCharacterValidation() {
	s.Run("unknown class", func() {
		_, err := s.svc.CreateCharacter(s.ctx, &character.CreateCharacterInput{
			UserID:  "user_2",
			Name:    "Nix",
			ClassID: "bard",
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})

	s.Run("missing name", func() {
		_, err := s.svc.CreateCharacter(s.ctx, &character.CreateCharacterInput{
			UserID:  "user_2",
			ClassID: "warrior",
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})

	s.Run("nil input", func() {
		_, err := s.svc.CreateCharacter(s.ctx, nil)
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})
}

func (s *OrchestratorTestSuite) TestGetCharacterByUser() {
	created := s.createWarrior("user_1")

	out, err := s.svc.GetCharacterByUser(s.ctx, &character.GetCharacterByUserInput{UserID: "user_1"})
	s.Require().NoError(err)
	s.Assert().Equal(created.ID, out.Character.ID)

	_, err = s.svc.GetCharacterByUser(s.ctx, &character.GetCharacterByUserInput{UserID: "user_stranger"})
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
}

func (s *OrchestratorTestSuite) TestEffectiveStatsBare() {
	c := s.createWarrior("user_1")

	out, err := s.svc.EffectiveStats(s.ctx, &character.EffectiveStatsInput{CharacterID: c.ID})
	s.Require().NoError(err)

	s.Assert().Equal(int32(15), out.Profile.Attack)
	s.Assert().Equal(int32(64), out.Profile.Accuracy)
	s.Assert().Equal(entities.ElementPhysical, out.Profile.AttackElement)
}

func (s *OrchestratorTestSuite) TestEffectiveStatsAppliesFactionPerk() {
	c := s.createWarrior("user_1")

	_, err := s.factionRepo.Create(s.ctx, factions.CreateInput{Faction: &entities.Faction{
		ID:        "faction_1",
		Name:      "Iron Pact",
		Archetype: "knights",
		OwnerID:   c.ID,
		Members: map[string]entities.FactionMember{
			c.ID: {Role: entities.RoleOwner},
		},
		Level: 1,
	}})
	s.Require().NoError(err)
	s.mutate(c.ID, func(ch *entities.Character) { ch.FactionID = "faction_1" })

	out, err := s.svc.EffectiveStats(s.ctx, &character.EffectiveStatsInput{CharacterID: c.ID})
	s.Require().NoError(err)
	s.Assert().Equal(int32(25), out.Profile.Attack, "knights grant +10 attack")
}

func (s *OrchestratorTestSuite) TestSetFaction() {
	c := s.createWarrior("user_1")

	out, err := s.svc.SetFaction(s.ctx, &character.SetFactionInput{
		CharacterID: c.ID,
		FactionID:   "faction_1",
	})
	s.Require().NoError(err)
	s.Assert().Equal("faction_1", out.Character.FactionID)

	// A second faction needs the stamp cleared first.
	_, err = s.svc.SetFaction(s.ctx, &character.SetFactionInput{
		CharacterID: c.ID,
		FactionID:   "faction_2",
	})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))

	cleared, err := s.svc.SetFaction(s.ctx, &character.SetFactionInput{CharacterID: c.ID})
	s.Require().NoError(err)
	s.Assert().Empty(cleared.Character.FactionID)
}

func (s *OrchestratorTestSuite) TestEffectiveStatsToleratesMissingFaction() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) { ch.FactionID = "faction_gone" })

	out, err := s.svc.EffectiveStats(s.ctx, &character.EffectiveStatsInput{CharacterID: c.ID})
	s.Require().NoError(err)
	s.Assert().Equal(int32(15), out.Profile.Attack, "perk degrades to none")
}

func (s *OrchestratorTestSuite) TestAddExperienceBelowThreshold() {
	c := s.createWarrior("user_1")

	out, err := s.svc.AddExperience(s.ctx, &character.AddExperienceInput{CharacterID: c.ID, Amount: 50})
	s.Require().NoError(err)

	s.Assert().Equal(int64(50), out.XPApplied)
	s.Assert().Equal(int32(1), out.Level)
	s.Assert().Zero(out.LevelsGained)
	s.Assert().Equal(int64(50), out.Character.XP)
}

func (s *OrchestratorTestSuite) TestAddExperienceLevelsUp() {
	c := s.createWarrior("user_1")

	var levelEvents []gameevents.Payload
	gameevents.Subscribe(s.bus, gameevents.TopicLevelUp, func(_ context.Context, p gameevents.Payload) error {
		levelEvents = append(levelEvents, p)
		return nil
	})

	out, err := s.svc.AddExperience(s.ctx, &character.AddExperienceInput{CharacterID: c.ID, Amount: 100})
	s.Require().NoError(err)

	s.Assert().Equal(int32(2), out.Level)
	s.Assert().Equal(int32(1), out.LevelsGained)

	up := out.Character
	s.Assert().Equal(int32(110), up.MaxHP)
	s.Assert().Equal(int32(110), up.HP)
	s.Assert().Equal(int32(55), up.MaxSP)
	s.Assert().Equal(int32(17), up.Stats.Attack)
	s.Assert().Equal(int32(11), up.Stats.Defense)
	s.Assert().Equal(int32(5), up.Essence)

	s.Require().Len(levelEvents, 1)
	s.Assert().Equal(c.ID, levelEvents[0].CharacterID)
	s.Assert().Equal(int32(2), levelEvents[0].Level)
	s.Assert().Equal(int64(2), s.boardScore(leaderboard.BoardLevel, c.ID))
}

func (s *OrchestratorTestSuite) TestAddExperienceMultipleLevels() {
	c := s.createWarrior("user_1")

	// 400 total crosses both the level-2 and level-3 thresholds.
	out, err := s.svc.AddExperience(s.ctx, &character.AddExperienceInput{CharacterID: c.ID, Amount: 400})
	s.Require().NoError(err)

	s.Assert().Equal(int32(3), out.Level)
	s.Assert().Equal(int32(2), out.LevelsGained)
	s.Assert().Equal(int32(120), out.Character.MaxHP)
	s.Assert().Equal(int32(19), out.Character.Stats.Attack)
	s.Assert().Equal(int32(11), out.Character.Essence, "5 for level 2, 6 for level 3")
}

func (s *OrchestratorTestSuite) TestAddExperienceAppliesMultiplier() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) { ch.XPMult = 1.5 })

	out, err := s.svc.AddExperience(s.ctx, &character.AddExperienceInput{CharacterID: c.ID, Amount: 100})
	s.Require().NoError(err)

	s.Assert().Equal(int64(150), out.XPApplied)
	s.Assert().Equal(int64(150), out.Character.XP)
}

func (s *OrchestratorTestSuite) TestAddExperienceRejectsNonPositive() {
	c := s.createWarrior("user_1")

	_, err := s.svc.AddExperience(s.ctx, &character.AddExperienceInput{CharacterID: c.ID, Amount: 0})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestAddAndSpendGold() {
	c := s.createWarrior("user_1")

	var goldEvents []gameevents.Payload
	gameevents.Subscribe(s.bus, gameevents.TopicGoldChanged, func(_ context.Context, p gameevents.Payload) error {
		goldEvents = append(goldEvents, p)
		return nil
	})

	added, err := s.svc.AddGold(s.ctx, &character.AddGoldInput{CharacterID: c.ID, Amount: 150})
	s.Require().NoError(err)
	s.Assert().Equal(int64(250), added.Gold)
	s.Assert().Equal(int64(250), s.boardScore(leaderboard.BoardGold, c.ID))

	s.Require().Len(goldEvents, 1)
	s.Assert().Equal(int64(250), goldEvents[0].Gold)

	_, err = s.svc.SpendGold(s.ctx, &character.SpendGoldInput{CharacterID: c.ID, Amount: 300})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))

	spent, err := s.svc.SpendGold(s.ctx, &character.SpendGoldInput{CharacterID: c.ID, Amount: 250})
	s.Require().NoError(err)
	s.Assert().Zero(spent.Gold)
	s.Assert().Equal(int64(0), s.boardScore(leaderboard.BoardGold, c.ID))
}

func (s *OrchestratorTestSuite) TestAddAndRemoveItems() {
	c := s.createWarrior("user_1")

	out, err := s.svc.AddItem(s.ctx, &character.AddItemInput{CharacterID: c.ID, ItemID: "wolf_pelt", Quantity: 3})
	s.Require().NoError(err)
	s.Assert().Equal(int32(3), out.Character.ItemCount("wolf_pelt"))

	_, err = s.svc.AddItem(s.ctx, &character.AddItemInput{CharacterID: c.ID, ItemID: "phantom_blade", Quantity: 1})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))

	removed, err := s.svc.RemoveItem(s.ctx, &character.RemoveItemInput{CharacterID: c.ID, ItemID: "wolf_pelt", Quantity: 2})
	s.Require().NoError(err)
	s.Assert().Equal(int32(1), removed.Character.ItemCount("wolf_pelt"))

	_, err = s.svc.RemoveItem(s.ctx, &character.RemoveItemInput{CharacterID: c.ID, ItemID: "wolf_pelt", Quantity: 5})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))
}

func (s *OrchestratorTestSuite) TestConsumeItemRestoresAndClamps() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) { ch.HP = 40 })

	out, err := s.svc.ConsumeItem(s.ctx, &character.ConsumeItemInput{CharacterID: c.ID, ItemID: "health_potion"})
	s.Require().NoError(err)
	s.Assert().Equal(int32(50), out.HPRestored)
	s.Assert().Equal(int32(90), out.Character.HP)
	s.Assert().Equal(int32(2), out.Character.ItemCount("health_potion"))

	out, err = s.svc.ConsumeItem(s.ctx, &character.ConsumeItemInput{CharacterID: c.ID, ItemID: "health_potion"})
	s.Require().NoError(err)
	s.Assert().Equal(int32(10), out.HPRestored, "restore clamps at max")
	s.Assert().Equal(int32(100), out.Character.HP)
}

func (s *OrchestratorTestSuite) TestConsumeItemRejectsNonConsumables() {
	c := s.createWarrior("user_1")

	_, err := s.svc.ConsumeItem(s.ctx, &character.ConsumeItemInput{CharacterID: c.ID, ItemID: "iron_sword"})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestConsumeItemRequiresOwnership() {
	c := s.createWarrior("user_1")

	_, err := s.svc.ConsumeItem(s.ctx, &character.ConsumeItemInput{CharacterID: c.ID, ItemID: "mana_potion"})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))
}

func (s *OrchestratorTestSuite) TestInventoryListsSorted() {
	c := s.createWarrior("user_1")

	out, err := s.svc.Inventory(s.ctx, &character.InventoryInput{CharacterID: c.ID})
	s.Require().NoError(err)

	s.Require().Len(out.Entries, 2)
	s.Assert().Equal("health_potion", out.Entries[0].ItemID)
	s.Assert().Equal("Health Potion", out.Entries[0].Name)
	s.Assert().Equal(entities.ItemTypeConsumable, out.Entries[0].Type)
	s.Assert().Equal(int32(3), out.Entries[0].Quantity)
	s.Assert().Equal("iron_sword", out.Entries[1].ItemID)
}

func (s *OrchestratorTestSuite) TestEquipItem() {
	c := s.createWarrior("user_1")

	out, err := s.svc.EquipItem(s.ctx, &character.EquipItemInput{CharacterID: c.ID, ItemID: "iron_sword"})
	s.Require().NoError(err)
	s.Assert().Equal(entities.SlotWeapon, out.Slot)
	s.Assert().Empty(out.Replaced)
	s.Assert().Equal("iron_sword", out.Character.Equipment.Weapon)
	s.Assert().Zero(out.Character.ItemCount("iron_sword"))
}

func (s *OrchestratorTestSuite) TestEquipItemSwapsBackToInventory() {
	c := s.createWarrior("user_1")

	_, err := s.svc.EquipItem(s.ctx, &character.EquipItemInput{CharacterID: c.ID, ItemID: "iron_sword"})
	s.Require().NoError(err)

	_, err = s.svc.AddItem(s.ctx, &character.AddItemInput{CharacterID: c.ID, ItemID: "flame_blade", Quantity: 1})
	s.Require().NoError(err)

	out, err := s.svc.EquipItem(s.ctx, &character.EquipItemInput{CharacterID: c.ID, ItemID: "flame_blade"})
	s.Require().NoError(err)
	s.Assert().Equal("iron_sword", out.Replaced)
	s.Assert().Equal("flame_blade", out.Character.Equipment.Weapon)
	s.Assert().Equal(int32(1), out.Character.ItemCount("iron_sword"))
}

func (s *OrchestratorTestSuite) TestEquipItemValidation() {
	c := s.createWarrior("user_1")

	s.Run("not equippable", func() {
		_, err := s.svc.EquipItem(s.ctx, &character.EquipItemInput{CharacterID: c.ID, ItemID: "health_potion"})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})

	s.Run("not owned", func() {
		_, err := s.svc.EquipItem(s.ctx, &character.EquipItemInput{CharacterID: c.ID, ItemID: "leather_armor"})
		s.Require().Error(err)
		s.Assert().True(errors.IsFailedPrecondition(err))
	})
}

func (s *OrchestratorTestSuite) TestUnequipItem() {
	c := s.createWarrior("user_1")
	_, err := s.svc.EquipItem(s.ctx, &character.EquipItemInput{CharacterID: c.ID, ItemID: "iron_sword"})
	s.Require().NoError(err)

	out, err := s.svc.UnequipItem(s.ctx, &character.UnequipItemInput{CharacterID: c.ID, Slot: entities.SlotWeapon})
	s.Require().NoError(err)
	s.Assert().Equal("iron_sword", out.ItemID)
	s.Assert().Empty(out.Character.Equipment.Weapon)
	s.Assert().Equal(int32(1), out.Character.ItemCount("iron_sword"))

	_, err = s.svc.UnequipItem(s.ctx, &character.UnequipItemInput{CharacterID: c.ID, Slot: entities.SlotArmor})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))

	_, err = s.svc.UnequipItem(s.ctx, &character.UnequipItemInput{CharacterID: c.ID, Slot: "hat"})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestCultivateStatGatesOnLevel() {
	c := s.createWarrior("user_1")

	_, err := s.svc.CultivateStat(s.ctx, &character.CultivateStatInput{CharacterID: c.ID, Stat: entities.StatAttack})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err), "attack unlocks at level 3")
}

func (s *OrchestratorTestSuite) TestCultivateStat() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) {
		ch.Level = 5
		ch.Essence = 200
	})

	out, err := s.svc.CultivateStat(s.ctx, &character.CultivateStatInput{CharacterID: c.ID, Stat: entities.StatAttack})
	s.Require().NoError(err)

	s.Assert().Equal(int32(108), out.Cost, "60 base scaled by level 5")
	s.Assert().Equal(int32(2), out.Bonus)
	s.Assert().Equal(int32(1), out.Count)
	s.Assert().Equal(int32(17), out.Character.Stats.Attack)
	s.Assert().Equal(int32(92), out.Character.Essence)
}

func (s *OrchestratorTestSuite) TestCultivateStatHPRaisesMaxOnly() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) {
		ch.Level = 5
		ch.Essence = 200
	})

	out, err := s.svc.CultivateStat(s.ctx, &character.CultivateStatInput{CharacterID: c.ID, Stat: entities.StatHP})
	s.Require().NoError(err)

	s.Assert().Equal(int32(90), out.Cost)
	s.Assert().Equal(int32(14), out.Bonus)
	s.Assert().Equal(int32(114), out.Character.MaxHP)
	s.Assert().Equal(int32(100), out.Character.HP, "current pool does not move")
}

func (s *OrchestratorTestSuite) TestCultivateStatLimits() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) {
		ch.Level = 5
		ch.Essence = 50
	})

	s.Run("insufficient essence", func() {
		_, err := s.svc.CultivateStat(s.ctx, &character.CultivateStatInput{CharacterID: c.ID, Stat: entities.StatDefense})
		s.Require().Error(err)
		s.Assert().True(errors.IsFailedPrecondition(err))
	})

	s.Run("fully cultivated", func() {
		s.mutate(c.ID, func(ch *entities.Character) {
			ch.Essence = 1000
			ch.Cultivation.Attack = 10
		})
		_, err := s.svc.CultivateStat(s.ctx, &character.CultivateStatInput{CharacterID: c.ID, Stat: entities.StatAttack})
		s.Require().Error(err)
		s.Assert().True(errors.IsFailedPrecondition(err))
	})

	s.Run("unknown stat", func() {
		_, err := s.svc.CultivateStat(s.ctx, &character.CultivateStatInput{CharacterID: c.ID, Stat: entities.StatIntelligence})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})
}

func (s *OrchestratorTestSuite) TestRebirth() {
	c := s.createWarrior("user_1")

	_, err := s.svc.Rebirth(s.ctx, &character.RebirthInput{CharacterID: c.ID})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err), "needs level 20")

	s.mutate(c.ID, func(ch *entities.Character) {
		ch.Level = 25
		ch.XP = 70000
		ch.Gold = 15000
	})

	out, err := s.svc.Rebirth(s.ctx, &character.RebirthInput{CharacterID: c.ID})
	s.Require().NoError(err)

	s.Assert().Equal(int32(1), out.Rebirths)
	s.Assert().Equal(int64(10000), out.GoldSpent)
	s.Assert().InDelta(1.05, out.XPMult, 0.0001)
	s.Assert().InDelta(1.05, out.GoldMult, 0.0001)

	reborn := out.Character
	s.Assert().Equal(int32(1), reborn.Level)
	s.Assert().Zero(reborn.XP)
	s.Assert().Equal(int64(5000), reborn.Gold)
	s.Assert().Equal(int32(15), reborn.Stats.Attack, "base stats survive rebirth")
	s.Assert().Equal(int64(1), s.boardScore(leaderboard.BoardLevel, c.ID))

	// The second pass gates at level 30.
	s.mutate(c.ID, func(ch *entities.Character) {
		ch.Level = 25
		ch.Gold = 50000
	})
	_, err = s.svc.Rebirth(s.ctx, &character.RebirthInput{CharacterID: c.ID})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))
}

func (s *OrchestratorTestSuite) TestClaimDailyReward() {
	c := s.createWarrior("user_1")

	out, err := s.svc.ClaimDailyReward(s.ctx, &character.ClaimDailyRewardInput{CharacterID: c.ID})
	s.Require().NoError(err)
	s.Assert().Equal(int32(1), out.Streak)
	s.Assert().Equal(int64(53), out.Gold, "round(50 * 1.05)")
	s.Assert().Equal(int64(53), out.XP)
	s.Assert().Equal(int64(153), out.Character.Gold)
	s.Assert().Equal(int64(53), out.Character.XP)

	_, err = s.svc.ClaimDailyReward(s.ctx, &character.ClaimDailyRewardInput{CharacterID: c.ID})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err), "20 hour gate")

	s.clock.advance(21 * time.Hour)
	out, err = s.svc.ClaimDailyReward(s.ctx, &character.ClaimDailyRewardInput{CharacterID: c.ID})
	s.Require().NoError(err)
	s.Assert().Equal(int32(2), out.Streak)
	s.Assert().Equal(int64(55), out.Gold, "round(50 * 1.10)")

	s.clock.advance(72 * time.Hour)
	out, err = s.svc.ClaimDailyReward(s.ctx, &character.ClaimDailyRewardInput{CharacterID: c.ID})
	s.Require().NoError(err)
	s.Assert().Equal(int32(1), out.Streak, "streak lapses after 48 hours")
	s.Assert().Equal(int64(53), out.Gold)
}

func (s *OrchestratorTestSuite) TestClaimDailyRewardStreakBonusCaps() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) {
		ch.DailyStreak = 9
		ch.LastDailyAt = s.clock.Now().Add(-21 * time.Hour).Unix()
	})

	out, err := s.svc.ClaimDailyReward(s.ctx, &character.ClaimDailyRewardInput{CharacterID: c.ID})
	s.Require().NoError(err)
	s.Assert().Equal(int32(10), out.Streak)
	s.Assert().Equal(int64(68), out.Gold, "bonus stops growing at 7 days")
}

func (s *OrchestratorTestSuite) TestLearnSkill() {
	c := s.createWarrior("user_1")

	// heal asks for level 2.
	_, err := s.svc.LearnSkill(s.ctx, &character.LearnSkillInput{CharacterID: c.ID, SkillID: "heal"})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))

	_, err = s.svc.AddExperience(s.ctx, &character.AddExperienceInput{CharacterID: c.ID, Amount: 100})
	s.Require().NoError(err)

	out, err := s.svc.LearnSkill(s.ctx, &character.LearnSkillInput{CharacterID: c.ID, SkillID: "heal"})
	s.Require().NoError(err)
	s.Assert().Equal(int64(100), out.GoldSpent)
	s.Assert().Zero(out.Character.Gold)
	s.Assert().Contains(out.Character.SkillIDs, "heal")

	_, err = s.svc.LearnSkill(s.ctx, &character.LearnSkillInput{CharacterID: c.ID, SkillID: "heal"})
	s.Require().Error(err)
	s.Assert().True(errors.IsAlreadyExists(err))
}

func (s *OrchestratorTestSuite) TestLearnSkillRestrictions() {
	c := s.createWarrior("user_1")

	s.Run("wrong class", func() {
		_, err := s.svc.LearnSkill(s.ctx, &character.LearnSkillInput{CharacterID: c.ID, SkillID: "fireball"})
		s.Require().Error(err)
		s.Assert().True(errors.IsFailedPrecondition(err))
	})

	s.Run("already known from class", func() {
		_, err := s.svc.LearnSkill(s.ctx, &character.LearnSkillInput{CharacterID: c.ID, SkillID: "power_strike"})
		s.Require().Error(err)
		s.Assert().True(errors.IsAlreadyExists(err))
	})

	s.Run("unknown skill", func() {
		_, err := s.svc.LearnSkill(s.ctx, &character.LearnSkillInput{CharacterID: c.ID, SkillID: "meteor"})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})

	s.Run("cannot afford", func() {
		s.mutate(c.ID, func(ch *entities.Character) {
			ch.Level = 3
			ch.Gold = 10
		})
		_, err := s.svc.LearnSkill(s.ctx, &character.LearnSkillInput{CharacterID: c.ID, SkillID: "battle_cry"})
		s.Require().Error(err)
		s.Assert().True(errors.IsFailedPrecondition(err))
	})
}

func (s *OrchestratorTestSuite) TestRecordBattleResult() {
	c := s.createWarrior("user_1")

	out, err := s.svc.RecordBattleResult(s.ctx, &character.RecordBattleResultInput{
		CharacterID: c.ID, Won: true, Boss: true,
	})
	s.Require().NoError(err)
	s.Assert().Equal(int64(1), out.Progress.TotalBattles)
	s.Assert().Equal(int64(1), out.Progress.BattlesWon)
	s.Assert().Equal(int64(1), out.Progress.BossesDefeated)

	out, err = s.svc.RecordBattleResult(s.ctx, &character.RecordBattleResultInput{
		CharacterID: c.ID, Won: false,
	})
	s.Require().NoError(err)
	s.Assert().Equal(int64(2), out.Progress.TotalBattles)
	s.Assert().Equal(int64(1), out.Progress.BattlesLost)

	out, err = s.svc.RecordBattleResult(s.ctx, &character.RecordBattleResultInput{
		CharacterID: c.ID, Won: false, Fled: true,
	})
	s.Require().NoError(err)
	s.Assert().Equal(int64(3), out.Progress.TotalBattles)
	s.Assert().Equal(int64(1), out.Progress.BattlesLost, "fleeing a hunt is not a loss")
}

func (s *OrchestratorTestSuite) TestRecordBattleResultDuels() {
	c := s.createWarrior("user_1")

	out, err := s.svc.RecordBattleResult(s.ctx, &character.RecordBattleResultInput{
		CharacterID: c.ID, Won: true, PvP: true,
	})
	s.Require().NoError(err)
	s.Assert().Equal(int32(1025), out.Rating)
	s.Assert().Equal(int32(1), out.Character.PvP.Wins)
	s.Assert().Equal(int64(1025), s.boardScore(leaderboard.BoardRating, c.ID))

	out, err = s.svc.RecordBattleResult(s.ctx, &character.RecordBattleResultInput{
		CharacterID: c.ID, Won: false, Fled: true, PvP: true,
	})
	s.Require().NoError(err)
	s.Assert().Equal(int32(1000), out.Rating, "fleeing a duel forfeits")
	s.Assert().Equal(int32(1), out.Character.PvP.Losses)
}

func (s *OrchestratorTestSuite) TestRecordBattleResultRatingFloorsAtZero() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) { ch.PvP.Rating = 10 })

	out, err := s.svc.RecordBattleResult(s.ctx, &character.RecordBattleResultInput{
		CharacterID: c.ID, Won: false, PvP: true,
	})
	s.Require().NoError(err)
	s.Assert().Zero(out.Rating)
}

func (s *OrchestratorTestSuite) TestRecordDungeonClear() {
	c := s.createWarrior("user_1")

	out, err := s.svc.RecordDungeonClear(s.ctx, &character.RecordDungeonClearInput{CharacterID: c.ID})
	s.Require().NoError(err)
	s.Assert().Equal(int64(1), out.Progress.DungeonsCompleted)
}

func (s *OrchestratorTestSuite) TestApplyFleePenalty() {
	c := s.createWarrior("user_1")

	out, err := s.svc.ApplyFleePenalty(s.ctx, &character.ApplyFleePenaltyInput{
		CharacterID: c.ID,
		BattleHP:    60,
	})
	s.Require().NoError(err)
	s.Assert().Equal(int64(5), out.GoldLost)
	s.Assert().Equal(int64(95), out.Character.Gold)
	s.Assert().Equal(int32(15), out.HPLost)
	s.Assert().Equal(int32(45), out.Character.HP)
	s.Assert().Equal(int64(95), s.boardScore(leaderboard.BoardGold, c.ID))
}

func (s *OrchestratorTestSuite) TestApplyFleePenaltyFloors() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) { ch.Gold = 0 })

	out, err := s.svc.ApplyFleePenalty(s.ctx, &character.ApplyFleePenaltyInput{
		CharacterID: c.ID,
		BattleHP:    1,
	})
	s.Require().NoError(err)
	s.Assert().Zero(out.GoldLost, "no gold means no gold penalty")
	s.Assert().Zero(out.HPLost)
	s.Assert().Equal(int32(1), out.Character.HP, "fleeing cannot kill")

	_, err = s.svc.ApplyFleePenalty(s.ctx, &character.ApplyFleePenaltyInput{
		CharacterID: c.ID,
		BattleHP:    0,
	})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestApplyRewards() {
	c := s.createWarrior("user_1")

	out, err := s.svc.ApplyRewards(s.ctx, &character.ApplyRewardsInput{
		CharacterID: c.ID,
		XP:          150,
		Gold:        75,
		Items:       map[string]int32{"wolf_pelt": 2},
	})
	s.Require().NoError(err)

	s.Assert().Equal(int32(2), out.Level)
	s.Assert().Equal(int32(1), out.LevelsGained)
	s.Assert().Equal(int64(175), out.Character.Gold)
	s.Assert().Equal(int64(150), out.Character.XP)
	s.Assert().Equal(int32(2), out.Character.ItemCount("wolf_pelt"))
	s.Assert().Equal(int64(175), s.boardScore(leaderboard.BoardGold, c.ID))
	s.Assert().Equal(int64(2), s.boardScore(leaderboard.BoardLevel, c.ID))
}

func (s *OrchestratorTestSuite) TestApplyRewardsDoesNotMultiply() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) { ch.XPMult = 2.0 })

	out, err := s.svc.ApplyRewards(s.ctx, &character.ApplyRewardsInput{CharacterID: c.ID, XP: 50})
	s.Require().NoError(err)
	s.Assert().Equal(int64(50), out.Character.XP, "battle rewards arrive pre-multiplied")
}

func (s *OrchestratorTestSuite) TestApplyRewardsValidation() {
	c := s.createWarrior("user_1")

	_, err := s.svc.ApplyRewards(s.ctx, &character.ApplyRewardsInput{
		CharacterID: c.ID,
		Items:       map[string]int32{"phantom_blade": 1},
	})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.svc.ApplyRewards(s.ctx, &character.ApplyRewardsInput{CharacterID: c.ID, XP: -5})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))
}
