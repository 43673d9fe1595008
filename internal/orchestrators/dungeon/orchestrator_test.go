package dungeon_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/stretchr/testify/suite"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	enginecore "github.com/nonamep-p/rpg-core/internal/engine/core"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/gameevents"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/character"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/combat"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/dungeon"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/pkg/rng"
	"github.com/nonamep-p/rpg-core/internal/repositories/characters"
	"github.com/nonamep-p/rpg-core/internal/repositories/factions"
	"github.com/nonamep-p/rpg-core/internal/repositories/leaderboard"
	"github.com/nonamep-p/rpg-core/internal/testutils"
)

type fakeClock struct {
	now time.Time
}

func (f *fakeClock) Now() time.Time { return f.now }

func (f *fakeClock) advance(d time.Duration) { f.now = f.now.Add(d) }

// phase is one scripted random stream: a dungeon floor or a battle
// turn. Draws beyond the script roll high, so unscripted chances fail.
type phase struct {
	floats []float64
	ints   []int
}

func (p *phase) Float64() float64 {
	if len(p.floats) == 0 {
		return 0.999
	}
	v := p.floats[0]
	p.floats = p.floats[1:]
	return v
}

func (p *phase) Intn(n int) int {
	if len(p.ints) == 0 {
		return 0
	}
	v := p.ints[0]
	p.ints = p.ints[1:]
	if v >= n {
		v = n - 1
	}
	return v
}

// scriptedRand hands out one phase per random-source request, in
// order. Dungeon floors consume one phase per advance.
type scriptedRand struct {
	mu    sync.Mutex
	queue []*phase
}

func (r *scriptedRand) source(int64) rng.Source {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queue) == 0 {
		return &phase{}
	}
	p := r.queue[0]
	r.queue = r.queue[1:]
	return p
}

func (r *scriptedRand) push(phases ...*phase) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queue = append(r.queue, phases...)
}

// playerHit scripts a clean battle hit with no crit.
func playerHit() *phase { return &phase{floats: []float64{0, 0.99}} }

// monsterMiss scripts a healthy monster picking no stance and whiffing.
func monsterMiss() *phase { return &phase{floats: []float64{0.5, 0.99}} }

type OrchestratorTestSuite struct {
	suite.Suite
	cleanup func()

	charRepo characters.Repository
	catalog  *catalog.Catalog
	bus      events.EventBus
	clock    *fakeClock

	rand       *scriptedRand // dungeon floor draws
	combatRand *scriptedRand // battle phase draws

	charSvc   character.Service
	combatSvc combat.Service
	svc       dungeon.Service
	ctx       context.Context

	completions []gameevents.Payload
	defeats     []gameevents.Payload
}

func (s *OrchestratorTestSuite) SetupTest() {
	_, redisClient, cleanup := testutils.CreateTestRedisServer(s.T())
	s.cleanup = cleanup

	charRepo, err := characters.NewRedis(&characters.RedisConfig{Client: redisClient})
	s.Require().NoError(err)
	s.charRepo = charRepo

	factionRepo, err := factions.NewRedis(&factions.RedisConfig{Client: redisClient})
	s.Require().NoError(err)

	boards, err := leaderboard.NewRedis(&leaderboard.RedisConfig{Client: redisClient})
	s.Require().NoError(err)

	data := testutils.TestCatalogData()
	data.Dungeons = append(data.Dungeons,
		// Gate for the level check.
		&catalog.DungeonDefinition{
			ID: "abyss", Name: "The Abyss", MinLevel: 10,
			Floors: []catalog.FloorDefinition{{BossID: "goblin_king"}},
		},
		// One free floor and no bonus pool, so the bonus drop rolls
		// the whole item catalog.
		&catalog.DungeonDefinition{
			ID: "collapsed_mine", Name: "Collapsed Mine", MinLevel: 1,
			Floors: []catalog.FloorDefinition{{}},
		},
		// Boss on the first floor, for battle-outcome wiring.
		&catalog.DungeonDefinition{
			ID: "kings_gate", Name: "King's Gate", MinLevel: 1,
			Floors: []catalog.FloorDefinition{
				{BossID: "goblin_king"},
				{Spawns: []catalog.SpawnEntry{{MonsterID: "goblin", Weight: 1}}},
			},
		},
	)
	cat, err := catalog.New(data)
	s.Require().NoError(err)
	s.catalog = cat

	eng, err := enginecore.NewEngine(&enginecore.Config{Catalog: cat})
	s.Require().NoError(err)

	s.bus = events.NewBus()
	s.clock = &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
	s.rand = &scriptedRand{}
	s.combatRand = &scriptedRand{}

	charSvc, err := character.NewOrchestrator(&character.Config{
		CharacterRepo: charRepo,
		FactionRepo:   factionRepo,
		Leaderboard:   boards,
		Catalog:       cat,
		Engine:        eng,
		EventBus:      s.bus,
		IDGenerator:   idgen.NewPrefixed("char"),
		Clock:         s.clock,
	})
	s.Require().NoError(err)
	s.charSvc = charSvc

	combatSvc, err := combat.NewOrchestrator(&combat.Config{
		CharacterService: charSvc,
		Catalog:          cat,
		Engine:           eng,
		EventBus:         s.bus,
		IDGenerator:      idgen.NewSequential("battle"),
		Clock:            s.clock,
		Rand:             s.combatRand.source,
	})
	s.Require().NoError(err)
	s.combatSvc = combatSvc

	svc, err := dungeon.NewOrchestrator(&dungeon.Config{
		CharacterService: charSvc,
		Catalog:          cat,
		EventBus:         s.bus,
		IDGenerator:      idgen.NewSequential("run"),
		Clock:            s.clock,
		Rand:             s.rand.source,
	})
	s.Require().NoError(err)
	s.svc = svc
	s.ctx = context.Background()

	s.completions = nil
	s.defeats = nil
	gameevents.Subscribe(s.bus, gameevents.TopicDungeonCompleted, func(_ context.Context, p gameevents.Payload) error {
		s.completions = append(s.completions, p)
		return nil
	})
	gameevents.Subscribe(s.bus, gameevents.TopicCombatDefeat, func(_ context.Context, p gameevents.Payload) error {
		s.defeats = append(s.defeats, p)
		return nil
	})
}

func (s *OrchestratorTestSuite) TearDownTest() {
	s.cleanup()
}

func TestOrchestratorTestSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func (s *OrchestratorTestSuite) createWarrior(userID string) *entities.Character {
	out, err := s.charSvc.CreateCharacter(s.ctx, &character.CreateCharacterInput{
		UserID:  userID,
		Name:    "Aria",
		ClassID: "warrior",
	})
	s.Require().NoError(err)
	return out.Character
}

// mutate edits the stored character directly, for arranging states the
// public API cannot reach.
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

func (s *OrchestratorTestSuite) getCharacter(id string) *entities.Character {
	out, err := s.charSvc.GetCharacter(s.ctx, &character.GetCharacterInput{CharacterID: id})
	s.Require().NoError(err)
	return out.Character
}

func (s *OrchestratorTestSuite) startRun(playerID, dungeonID string) *entities.DungeonRun {
	out, err := s.svc.StartDungeon(s.ctx, &dungeon.StartDungeonInput{
		PlayerID:  playerID,
		DungeonID: dungeonID,
	})
	s.Require().NoError(err)
	return out.Run
}

func (s *OrchestratorTestSuite) advance(playerID string) *dungeon.AdvanceFloorOutput {
	out, err := s.svc.AdvanceFloor(s.ctx, &dungeon.AdvanceFloorInput{PlayerID: playerID})
	s.Require().NoError(err)
	return out
}

func (s *OrchestratorTestSuite) session(playerID string) *entities.DungeonRun {
	out, err := s.svc.Session(s.ctx, &dungeon.SessionInput{PlayerID: playerID})
	s.Require().NoError(err)
	return out.Run
}

func (s *OrchestratorTestSuite) startFloorBattle(playerID string, adv *dungeon.AdvanceFloorOutput) *entities.BattleSession {
	out, err := s.combatSvc.StartDungeonBattle(s.ctx, &combat.StartDungeonBattleInput{
		PlayerID:        playerID,
		MonsterID:       adv.Encounter.MonsterID,
		DungeonRunID:    adv.Run.ID,
		FloorMultiplier: adv.Encounter.Multiplier,
	})
	s.Require().NoError(err)
	return out.Battle
}

func (s *OrchestratorTestSuite) attack(battleID, playerID string) *combat.PerformActionOutput {
	out, err := s.combatSvc.PerformAction(s.ctx, &combat.PerformActionInput{
		BattleID: battleID,
		PlayerID: playerID,
		Action:   entities.ActionAttack,
	})
	s.Require().NoError(err)
	return out
}

func (s *OrchestratorTestSuite) publish(topic string, p gameevents.Payload) {
	s.Require().NoError(gameevents.Publish(s.ctx, s.bus, topic, p))
}

func (s *OrchestratorTestSuite) TestNewOrchestratorValidatesConfig() {
	_, err := dungeon.NewOrchestrator(&dungeon.Config{})
	s.Require().Error(err)
	s.Assert().True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestStartDungeonOpensRunOnFirstFloor() {
	c := s.createWarrior("user_1")

	out, err := s.svc.StartDungeon(s.ctx, &dungeon.StartDungeonInput{
		PlayerID:  c.ID,
		DungeonID: "goblin_warren",
	})
	s.Require().NoError(err)

	run := out.Run
	s.Assert().Equal("run_1", run.ID)
	s.Assert().Equal(c.ID, run.CharacterID)
	s.Assert().Equal("goblin_warren", run.DungeonID)
	s.Assert().Equal(int32(1), run.Floor)
	s.Assert().Equal(int32(3), run.MaxFloor)
	s.Assert().Equal(entities.DungeonStateExploring, run.State)
	s.Assert().Zero(run.FloorsCleared)
	s.Assert().Zero(run.Gold)
	s.Assert().Zero(run.XP)
	s.Assert().Empty(run.Items)
	s.Assert().NotZero(run.Seed)
	s.Assert().Equal(s.clock.now.Unix(), run.CreatedAt)

	sess := s.session(c.ID)
	s.Assert().Equal(run.ID, sess.ID)
}

func (s *OrchestratorTestSuite) TestStartDungeonValidation() {
	_, err := s.svc.StartDungeon(s.ctx, nil)
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.svc.StartDungeon(s.ctx, &dungeon.StartDungeonInput{DungeonID: "goblin_warren"})
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.svc.StartDungeon(s.ctx, &dungeon.StartDungeonInput{
		PlayerID:  "char_1",
		DungeonID: "crystal_cave",
	})
	s.Assert().True(errors.IsNotFound(err))

	_, err = s.svc.StartDungeon(s.ctx, &dungeon.StartDungeonInput{
		PlayerID:  "char_404",
		DungeonID: "goblin_warren",
	})
	s.Assert().True(errors.IsNotFound(err))

	c := s.createWarrior("user_1")
	s.startRun(c.ID, "goblin_warren")
	_, err = s.svc.StartDungeon(s.ctx, &dungeon.StartDungeonInput{
		PlayerID:  c.ID,
		DungeonID: "deep_warren",
	})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))
	s.Assert().ErrorContains(err, "already in dungeon goblin_warren")
}

func (s *OrchestratorTestSuite) TestStartDungeonRequiresMinimumLevel() {
	c := s.createWarrior("user_1")

	_, err := s.svc.StartDungeon(s.ctx, &dungeon.StartDungeonInput{
		PlayerID:  c.ID,
		DungeonID: "abyss",
	})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))
	s.Assert().ErrorContains(err, "requires level 10")

	s.mutate(c.ID, func(ch *entities.Character) {
		ch.Level = 10
	})
	_, err = s.svc.StartDungeon(s.ctx, &dungeon.StartDungeonInput{
		PlayerID:  c.ID,
		DungeonID: "abyss",
	})
	s.Assert().NoError(err)
}

func (s *OrchestratorTestSuite) TestAdvanceFloorBanksRewardAndRollsEncounter() {
	c := s.createWarrior("user_1")
	s.startRun(c.ID, "goblin_warren")

	// Spawn draw 0.9 lands past the goblin's weight (3 of 4) and picks
	// the wolf; the bonus draw misses.
	s.rand.push(&phase{floats: []float64{0.9, 0.99}})
	out := s.advance(c.ID)

	s.Assert().False(out.Completed)
	enc := out.Encounter
	s.Assert().Equal(dungeon.EncounterMonster, enc.Type)
	s.Assert().Equal(int32(1), enc.Floor)
	s.Assert().Equal("wolf", enc.MonsterID)
	s.Assert().Equal("Wolf", enc.Name)
	s.Assert().Equal(1.0, enc.Multiplier)

	s.Assert().Equal(int64(15), out.Rewards.Gold)
	s.Assert().Equal(int64(30), out.Rewards.XP)
	s.Assert().Empty(out.Rewards.BonusItemID)

	run := out.Run
	s.Assert().Equal(int32(2), run.Floor)
	s.Assert().Equal(int32(1), run.FloorsCleared)
	s.Assert().Equal(int64(15), run.Gold)
	s.Assert().Equal(int64(30), run.XP)
	s.Assert().Empty(run.Items)

	// Banked, not paid: the character is untouched until the run ends.
	after := s.getCharacter(c.ID)
	s.Assert().Equal(int64(100), after.Gold)
	s.Assert().Zero(after.XP)
}

func (s *OrchestratorTestSuite) TestAdvanceFloorScalesRewardAndDropsBonus() {
	c := s.createWarrior("user_1")
	s.startRun(c.ID, "goblin_warren")

	// Floor 2 pays (10+10, 20+20) at the floor's 1.5 multiplier, and
	// the 0.1 bonus draw picks index 1 of the dungeon's bonus pool.
	s.rand.push(
		&phase{floats: []float64{0.9, 0.99}},
		&phase{floats: []float64{0.2, 0.1}, ints: []int{1}},
	)
	s.advance(c.ID)
	out := s.advance(c.ID)

	enc := out.Encounter
	s.Assert().Equal(dungeon.EncounterMonster, enc.Type)
	s.Assert().Equal("goblin", enc.MonsterID)
	s.Assert().Equal(1.5, enc.Multiplier)

	s.Assert().Equal(int64(30), out.Rewards.Gold)
	s.Assert().Equal(int64(60), out.Rewards.XP)
	s.Assert().Equal("wolf_pelt", out.Rewards.BonusItemID)

	run := out.Run
	s.Assert().Equal(int64(45), run.Gold)
	s.Assert().Equal(int64(90), run.XP)
	s.Assert().Equal(map[string]int32{"wolf_pelt": 1}, run.Items)
}

func (s *OrchestratorTestSuite) TestRunCompletionPaysEverythingOut() {
	c := s.createWarrior("user_1")
	s.startRun(c.ID, "goblin_warren")

	// The boss floor skips the spawn draw: its phase holds only the
	// bonus chance.
	s.rand.push(
		&phase{floats: []float64{0.9, 0.99}},
		&phase{floats: []float64{0.2, 0.1}, ints: []int{1}},
		&phase{floats: []float64{0.99}},
	)
	s.advance(c.ID)
	s.advance(c.ID)
	out := s.advance(c.ID)

	s.Assert().True(out.Completed)
	enc := out.Encounter
	s.Assert().Equal(dungeon.EncounterBoss, enc.Type)
	s.Assert().Equal("goblin_king", enc.MonsterID)
	s.Assert().Equal("Goblin King", enc.Name)
	s.Assert().Equal(2.0, enc.Multiplier)
	s.Assert().Equal(int64(50), out.Rewards.Gold)
	s.Assert().Equal(int64(100), out.Rewards.XP)

	run := out.Run
	s.Assert().Equal(int32(4), run.Floor)
	s.Assert().Equal(int32(3), run.FloorsCleared)
	s.Assert().Equal(int64(95), run.Gold)
	s.Assert().Equal(int64(190), run.XP)
	s.Assert().Equal(map[string]int32{"wolf_pelt": 1}, run.Items)

	after := s.getCharacter(c.ID)
	s.Assert().Equal(int64(195), after.Gold)
	s.Assert().Equal(int64(190), after.XP)
	s.Assert().Equal(int32(1), after.ItemCount("wolf_pelt"))
	s.Assert().Equal(int64(1), after.Progress.DungeonsCompleted)

	s.Require().Len(s.completions, 1)
	s.Assert().Equal(gameevents.Payload{
		CharacterID:  c.ID,
		DungeonID:    "goblin_warren",
		DungeonRunID: run.ID,
		Gold:         95,
		XP:           190,
	}, s.completions[0])

	_, err := s.svc.Session(s.ctx, &dungeon.SessionInput{PlayerID: c.ID})
	s.Assert().True(errors.IsNotFound(err))
}

func (s *OrchestratorTestSuite) TestTenFloorRunFinalizesOnLastAdvance() {
	c := s.createWarrior("user_1")
	s.startRun(c.ID, "deep_warren")

	// Unscripted draws roll high: every spawn lands on the last table
	// entry and no bonus drops.
	for i := 1; i <= 9; i++ {
		out := s.advance(c.ID)
		s.Assert().False(out.Completed)
		s.Assert().Equal(int32(i+1), out.Run.Floor)
	}

	out := s.advance(c.ID)
	s.Assert().True(out.Completed)
	s.Assert().Equal(dungeon.EncounterBoss, out.Encounter.Type)
	s.Assert().Equal(int64(435), out.Run.Gold)
	s.Assert().Equal(int64(870), out.Run.XP)

	after := s.getCharacter(c.ID)
	s.Assert().Equal(int64(535), after.Gold)
	s.Assert().Equal(int64(1), after.Progress.DungeonsCompleted)

	_, err := s.svc.AdvanceFloor(s.ctx, &dungeon.AdvanceFloorInput{PlayerID: c.ID})
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
	s.Assert().ErrorContains(err, "not in a dungeon")
}

func (s *OrchestratorTestSuite) TestEmptyFloorPaysBaselineWithCatalogBonus() {
	c := s.createWarrior("user_1")
	s.startRun(c.ID, "collapsed_mine")

	// No spawn table means no spawn draw. The bonus lands and, with no
	// dungeon pool, rolls the whole item catalog: pick 4 of 12 sorted
	// items is the haste potion.
	s.rand.push(&phase{floats: []float64{0.1}, ints: []int{3}})
	out := s.advance(c.ID)

	s.Assert().True(out.Completed)
	enc := out.Encounter
	s.Assert().Equal(dungeon.EncounterEmpty, enc.Type)
	s.Assert().Empty(enc.MonsterID)
	s.Assert().Equal(1.0, enc.Multiplier)

	s.Assert().Equal(int64(15), out.Rewards.Gold)
	s.Assert().Equal(int64(30), out.Rewards.XP)
	s.Assert().Equal("haste_potion", out.Rewards.BonusItemID)

	after := s.getCharacter(c.ID)
	s.Assert().Equal(int64(115), after.Gold)
	s.Assert().Equal(int64(30), after.XP)
	s.Assert().Equal(int32(1), after.ItemCount("haste_potion"))
	s.Assert().Equal(int64(1), after.Progress.DungeonsCompleted)
}

func (s *OrchestratorTestSuite) TestExitDungeonBanksHalf() {
	c := s.createWarrior("user_1")
	s.startRun(c.ID, "goblin_warren")

	// Two floors, both bonus drops landing: one potion, one pelt.
	s.rand.push(
		&phase{floats: []float64{0.9, 0.1}, ints: []int{0}},
		&phase{floats: []float64{0.2, 0.1}, ints: []int{1}},
	)
	s.advance(c.ID)
	s.advance(c.ID)

	out, err := s.svc.ExitDungeon(s.ctx, &dungeon.ExitDungeonInput{PlayerID: c.ID})
	s.Require().NoError(err)

	// Half of 45/90, and one of the two items in item-ID order.
	s.Assert().Equal(int64(22), out.Gold)
	s.Assert().Equal(int64(45), out.XP)
	s.Assert().Equal(map[string]int32{"health_potion": 1}, out.Items)
	s.Assert().Equal(int32(2), out.Run.FloorsCleared)

	after := s.getCharacter(c.ID)
	s.Assert().Equal(int64(122), after.Gold)
	s.Assert().Equal(int64(45), after.XP)
	s.Assert().Equal(int32(4), after.ItemCount("health_potion"))
	s.Assert().Zero(after.ItemCount("wolf_pelt"))
	s.Assert().Zero(after.Progress.DungeonsCompleted)
	s.Assert().Empty(s.completions)

	_, err = s.svc.Session(s.ctx, &dungeon.SessionInput{PlayerID: c.ID})
	s.Assert().True(errors.IsNotFound(err))

	// Exiting frees the character for a fresh run.
	run := s.startRun(c.ID, "deep_warren")
	s.Assert().Equal("run_2", run.ID)
}

func (s *OrchestratorTestSuite) TestAdvanceFloorValidation() {
	_, err := s.svc.AdvanceFloor(s.ctx, nil)
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.svc.AdvanceFloor(s.ctx, &dungeon.AdvanceFloorInput{})
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.svc.AdvanceFloor(s.ctx, &dungeon.AdvanceFloorInput{PlayerID: "char_404"})
	s.Require().Error(err)
	s.Assert().True(errors.IsNotFound(err))
	s.Assert().ErrorContains(err, "not in a dungeon")
}

func (s *OrchestratorTestSuite) TestExitDungeonValidation() {
	_, err := s.svc.ExitDungeon(s.ctx, nil)
	s.Assert().True(errors.IsInvalidArgument(err))

	_, err = s.svc.ExitDungeon(s.ctx, &dungeon.ExitDungeonInput{PlayerID: "char_404"})
	s.Assert().True(errors.IsNotFound(err))
}

func (s *OrchestratorTestSuite) TestFloorBattleLocksRun() {
	c := s.createWarrior("user_1")
	s.startRun(c.ID, "goblin_warren")

	s.rand.push(&phase{floats: []float64{0.2, 0.99}})
	adv := s.advance(c.ID)
	s.Assert().Equal("goblin", adv.Encounter.MonsterID)

	battle := s.startFloorBattle(c.ID, adv)

	sess := s.session(c.ID)
	s.Assert().Equal(entities.DungeonStateInBattle, sess.State)
	s.Assert().Equal(battle.ID, sess.BattleID)

	_, err := s.svc.AdvanceFloor(s.ctx, &dungeon.AdvanceFloorInput{PlayerID: c.ID})
	s.Require().Error(err)
	s.Assert().True(errors.IsFailedPrecondition(err))
	s.Assert().ErrorContains(err, "floor battle")

	_, err = s.svc.ExitDungeon(s.ctx, &dungeon.ExitDungeonInput{PlayerID: c.ID})
	s.Assert().True(errors.IsFailedPrecondition(err))

	// Three combo hits for 12+13+15 finish the 40 HP goblin.
	// The wounded goblin (15/40 HP) rolls Intn(2) in the random-action
	// band; script 1 (attack) so the miss float applies.
	s.combatRand.push(playerHit(), monsterMiss(), playerHit(),
		&phase{floats: []float64{0.5, 0.99}, ints: []int{1}}, playerHit())
	s.attack(battle.ID, c.ID)
	s.attack(battle.ID, c.ID)
	res := s.attack(battle.ID, c.ID)
	s.Assert().Equal(entities.BattleStateWon, res.Battle.State)

	sess = s.session(c.ID)
	s.Assert().Equal(entities.DungeonStateExploring, sess.State)
	s.Assert().Empty(sess.BattleID)

	// Battle spoils pay immediately; the floor bank stays with the run.
	after := s.getCharacter(c.ID)
	s.Assert().Equal(int64(115), after.Gold)
	s.Assert().Equal(int64(1), after.Progress.BattlesWon)

	s.rand.push(&phase{floats: []float64{0.9, 0.99}})
	out := s.advance(c.ID)
	s.Assert().Equal(int32(3), out.Run.Floor)
	s.Assert().Equal(int64(45), out.Run.Gold)
}

func (s *OrchestratorTestSuite) TestFloorBattleDefeatKillsRun() {
	c := s.createWarrior("user_1")
	s.mutate(c.ID, func(ch *entities.Character) {
		ch.HP = 5
	})
	run := s.startRun(c.ID, "kings_gate")

	s.rand.push(&phase{floats: []float64{0.99}})
	adv := s.advance(c.ID)
	s.Assert().Equal(dungeon.EncounterBoss, adv.Encounter.Type)
	s.Assert().Equal("goblin_king", adv.Encounter.MonsterID)
	s.Assert().False(adv.Completed)

	battle := s.startFloorBattle(c.ID, adv)
	s.Assert().Equal(entities.DungeonStateInBattle, s.session(c.ID).State)

	// The player whiffs and the king's 8 damage ends a 5 HP character.
	s.combatRand.push(
		&phase{floats: []float64{0.99}},
		&phase{floats: []float64{0.99, 0.5, 0, 0.99}},
	)
	res := s.attack(battle.ID, c.ID)
	s.Assert().Equal(entities.BattleStateLost, res.Battle.State)

	s.Require().Len(s.defeats, 1)
	s.Assert().Equal(run.ID, s.defeats[0].DungeonRunID)

	// The run died with its bank: no payout, no completion.
	_, err := s.svc.Session(s.ctx, &dungeon.SessionInput{PlayerID: c.ID})
	s.Assert().True(errors.IsNotFound(err))

	after := s.getCharacter(c.ID)
	s.Assert().Equal(int64(100), after.Gold)
	s.Assert().Equal(int64(1), after.Progress.BattlesLost)
	s.Assert().Zero(after.Progress.DungeonsCompleted)
	s.Assert().Empty(s.completions)
}

func (s *OrchestratorTestSuite) TestFloorBattleFleeReleasesRun() {
	c := s.createWarrior("user_1")
	s.startRun(c.ID, "goblin_warren")

	s.rand.push(&phase{floats: []float64{0.2, 0.99}})
	adv := s.advance(c.ID)
	s.Assert().Equal("goblin", adv.Encounter.MonsterID)

	battle := s.startFloorBattle(c.ID, adv)
	s.Assert().Equal(entities.DungeonStateInBattle, s.session(c.ID).State)

	// 0.1 clears the 70% escape window.
	s.combatRand.push(&phase{floats: []float64{0.1}})
	out, err := s.combatSvc.PerformAction(s.ctx, &combat.PerformActionInput{
		BattleID: battle.ID,
		PlayerID: c.ID,
		Action:   entities.ActionFlee,
	})
	s.Require().NoError(err)
	s.Assert().Equal(entities.BattleStateFled, out.Battle.State)

	// The run survives the escape and unlocks for the next move.
	sess := s.session(c.ID)
	s.Assert().Equal(entities.DungeonStateExploring, sess.State)
	s.Assert().Empty(sess.BattleID)
	s.Assert().Equal(int64(15), sess.Gold, "the floor bank stays put")

	// Half payout on the way out: 15 gold and 30 XP banked, flee
	// penalty of 5 gold already taken.
	exit, err := s.svc.ExitDungeon(s.ctx, &dungeon.ExitDungeonInput{PlayerID: c.ID})
	s.Require().NoError(err)
	s.Assert().Equal(int64(7), exit.Gold)
	s.Assert().Equal(int64(15), exit.XP)

	after := s.getCharacter(c.ID)
	s.Assert().Equal(int64(102), after.Gold)
	s.Assert().Equal(int64(15), after.XP)

	_, err = s.svc.Session(s.ctx, &dungeon.SessionInput{PlayerID: c.ID})
	s.Assert().True(errors.IsNotFound(err))
	s.Assert().Empty(s.completions)
}

func (s *OrchestratorTestSuite) TestBattleEventsIgnoreUnrelatedPayloads() {
	c := s.createWarrior("user_1")
	run := s.startRun(c.ID, "goblin_warren")

	// Hunt battles carry no run ID.
	s.publish(gameevents.TopicBattleStarted, gameevents.Payload{
		CharacterID: c.ID,
		BattleID:    "battle_7",
	})
	s.Assert().Equal(entities.DungeonStateExploring, s.session(c.ID).State)

	// A started battle for another character's run is ignored.
	s.publish(gameevents.TopicBattleStarted, gameevents.Payload{
		CharacterID:  "char_999",
		DungeonRunID: run.ID,
		BattleID:     "battle_8",
	})
	s.Assert().Equal(entities.DungeonStateExploring, s.session(c.ID).State)

	// Outcomes for a battle the run is not fighting change nothing.
	s.publish(gameevents.TopicCombatVictory, gameevents.Payload{
		CharacterID:  c.ID,
		DungeonRunID: run.ID,
		BattleID:     "battle_8",
	})
	s.Assert().Equal(entities.DungeonStateExploring, s.session(c.ID).State)

	s.publish(gameevents.TopicBattleStarted, gameevents.Payload{
		CharacterID:  c.ID,
		DungeonRunID: run.ID,
		BattleID:     "battle_9",
	})
	sess := s.session(c.ID)
	s.Assert().Equal(entities.DungeonStateInBattle, sess.State)
	s.Assert().Equal("battle_9", sess.BattleID)

	s.publish(gameevents.TopicCombatVictory, gameevents.Payload{
		CharacterID:  c.ID,
		DungeonRunID: run.ID,
		BattleID:     "battle_8",
	})
	s.Assert().Equal(entities.DungeonStateInBattle, s.session(c.ID).State)

	s.publish(gameevents.TopicCombatDefeat, gameevents.Payload{
		CharacterID:  c.ID,
		DungeonRunID: run.ID,
		BattleID:     "battle_8",
	})
	s.Assert().Equal(entities.DungeonStateInBattle, s.session(c.ID).State)

	// The matching outcome releases the run.
	s.publish(gameevents.TopicCombatVictory, gameevents.Payload{
		CharacterID:  c.ID,
		DungeonRunID: run.ID,
		BattleID:     "battle_9",
	})
	sess = s.session(c.ID)
	s.Assert().Equal(entities.DungeonStateExploring, sess.State)
	s.Assert().Empty(sess.BattleID)

	// A defeat for a long-gone run is a no-op.
	s.publish(gameevents.TopicCombatDefeat, gameevents.Payload{
		CharacterID:  c.ID,
		DungeonRunID: "run_404",
		BattleID:     "battle_9",
	})
	s.Assert().Equal(run.ID, s.session(c.ID).ID)
}

func (s *OrchestratorTestSuite) TestEvictStaleSweepsIdleRuns() {
	c := s.createWarrior("user_1")
	s.startRun(c.ID, "goblin_warren")
	s.rand.push(&phase{floats: []float64{0.9, 0.99}})
	s.advance(c.ID)

	s.clock.advance(45 * time.Minute)
	s.Assert().Equal(1, s.svc.EvictStale(s.ctx, 30*time.Minute))
	s.Assert().Equal(0, s.svc.EvictStale(s.ctx, 30*time.Minute))

	_, err := s.svc.Session(s.ctx, &dungeon.SessionInput{PlayerID: c.ID})
	s.Assert().True(errors.IsNotFound(err))

	// An abandoned run forfeits its bank.
	after := s.getCharacter(c.ID)
	s.Assert().Equal(int64(100), after.Gold)

	// A recently active run survives the sweep.
	s.startRun(c.ID, "deep_warren")
	s.clock.advance(10 * time.Minute)
	s.Assert().Equal(0, s.svc.EvictStale(s.ctx, 30*time.Minute))
	s.Assert().Equal("run_2", s.session(c.ID).ID)
}
