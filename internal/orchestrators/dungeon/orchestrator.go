// Package dungeon owns floor-progression runs through catalog dungeons.
// A run banks rewards floor by floor and pays them out on completing
// the last floor, or half of them on an early exit. Floor battles are
// combat's business: the gateway opens them from the encounters this
// package returns, and combat reports the outcomes back over the event
// bus. Runs live in an in-process registry keyed by player; only the
// payout touches the character record.
package dungeon

//go:generate mockgen -destination=mock/mock_service.go -package=dungeonmock github.com/nonamep-p/rpg-core/internal/orchestrators/dungeon Service

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/gameevents"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/character"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/pkg/rng"
)

// Floor reward pacing: each floor pays base + step*floor, scaled by the
// floor's multiplier.
const (
	floorBaseGold    = 10
	floorGoldPerStep = 5
	floorBaseXP      = 20
	floorXPPerStep   = 10

	// bonusItemChance is the flat odds of one extra item per floor.
	bonusItemChance = 0.3
)

// Service defines the interface for dungeon-run operations
type Service interface {
	StartDungeon(ctx context.Context, input *StartDungeonInput) (*StartDungeonOutput, error)
	AdvanceFloor(ctx context.Context, input *AdvanceFloorInput) (*AdvanceFloorOutput, error)
	ExitDungeon(ctx context.Context, input *ExitDungeonInput) (*ExitDungeonOutput, error)
	Session(ctx context.Context, input *SessionInput) (*SessionOutput, error)

	// EvictStale drops runs idle for longer than maxAge and returns
	// how many were removed. The server runs it on a ticker.
	EvictStale(ctx context.Context, maxAge time.Duration) int
}

// RandFunc builds the random source for one floor. Production uses
// rng.NewSeeded; tests substitute scripted sources.
type RandFunc func(seed int64) rng.Source

// Config holds the dependencies for the dungeon orchestrator
type Config struct {
	CharacterService character.Service
	Catalog          *catalog.Catalog
	EventBus         events.EventBus
	IDGenerator      idgen.Generator
	Clock            clock.Clock

	// Rand is optional and defaults to rng.NewSeeded.
	Rand RandFunc
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.CharacterService == nil {
		vb.RequiredField("CharacterService")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
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
	characterService character.Service
	catalog          *catalog.Catalog
	eventBus         events.EventBus
	idGen            idgen.Generator
	clock            clock.Clock
	rand             RandFunc

	mu    sync.RWMutex
	runs  map[string]*entities.DungeonRun // keyed by character ID
	byRun map[string]string               // run ID -> character ID
}

// NewOrchestrator creates a new dungeon orchestrator with the provided
// dependencies and subscribes it to combat's battle lifecycle events.
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	randFn := cfg.Rand
	if randFn == nil {
		randFn = rng.NewSeeded
	}

	o := &orchestrator{
		characterService: cfg.CharacterService,
		catalog:          cfg.Catalog,
		eventBus:         cfg.EventBus,
		idGen:            cfg.IDGenerator,
		clock:            cfg.Clock,
		rand:             randFn,
		runs:             make(map[string]*entities.DungeonRun),
		byRun:            make(map[string]string),
	}

	// Combat reports floor battles over the bus: starting one locks
	// the run, winning or fleeing it unlocks, losing it kills the run
	// outright.
	gameevents.Subscribe(cfg.EventBus, gameevents.TopicBattleStarted, o.onBattleStarted)
	gameevents.Subscribe(cfg.EventBus, gameevents.TopicCombatVictory, o.onBattleWon)
	gameevents.Subscribe(cfg.EventBus, gameevents.TopicCombatFled, o.onBattleFled)
	gameevents.Subscribe(cfg.EventBus, gameevents.TopicCombatDefeat, o.onBattleLost)

	return o, nil
}

var _ Service = (*orchestrator)(nil)

// StartDungeon opens a run on the dungeon's first floor. One run per
// character; a second entry fails until the first resolves.
func (o *orchestrator) StartDungeon(ctx context.Context, input *StartDungeonInput) (*StartDungeonOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("dungeonID", input.DungeonID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	def, ok := o.catalog.Dungeon(input.DungeonID)
	if !ok {
		return nil, errors.NotFoundf("dungeon %q not found", input.DungeonID)
	}

	ch, err := o.characterService.GetCharacter(ctx, &character.GetCharacterInput{
		CharacterID: input.PlayerID,
	})
	if err != nil {
		return nil, err
	}
	if ch.Character.Level < def.MinLevel {
		return nil, errors.FailedPreconditionf("%s requires level %d", def.Name, def.MinLevel)
	}

	now := o.clock.Now().Unix()
	run := &entities.DungeonRun{
		ID:          o.idGen.Generate(),
		CharacterID: input.PlayerID,
		DungeonID:   def.ID,
		Floor:       1,
		MaxFloor:    int32(len(def.Floors)),
		State:       entities.DungeonStateExploring,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	run.Seed = runSeed(run.ID)

	o.mu.Lock()
	if existing, ok := o.runs[input.PlayerID]; ok {
		o.mu.Unlock()
		return nil, errors.FailedPreconditionf("already in dungeon %s", existing.DungeonID)
	}
	o.runs[input.PlayerID] = run
	o.byRun[run.ID] = input.PlayerID
	o.mu.Unlock()

	slog.InfoContext(ctx, "dungeon run started",
		"run_id", run.ID,
		"character_id", input.PlayerID,
		"dungeon_id", def.ID,
		"floors", run.MaxFloor,
	)
	return &StartDungeonOutput{Run: cloneRun(run)}, nil
}

// AdvanceFloor pushes the run one floor deeper: it rolls the current
// floor's encounter, banks the floor's reward, and moves the pointer
// on. Monster encounters are the gateway's cue to open a floor battle;
// advancing is only blocked while one is unresolved. The call that
// clears the final floor pays the whole run out and drops it.
func (o *orchestrator) AdvanceFloor(ctx context.Context, input *AdvanceFloorInput) (*AdvanceFloorOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.PlayerID == "" {
		return nil, errors.InvalidArgument("playerID is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	run, ok := o.runs[input.PlayerID]
	if !ok {
		return nil, errors.NotFound("not in a dungeon")
	}
	if run.State == entities.DungeonStateInBattle {
		return nil, errors.FailedPreconditionf("floor battle %s is unresolved", run.BattleID)
	}

	def, _ := o.catalog.Dungeon(run.DungeonID)
	floor := floorAt(def, run.Floor)
	r := o.rand(run.Seed + int64(run.Floor))

	encounter := o.rollEncounter(floor, run.Floor, r)
	rewards := o.rollFloorRewards(def, floor, run.Floor, r)

	run.Gold += rewards.Gold
	run.XP += rewards.XP
	if rewards.BonusItemID != "" {
		if run.Items == nil {
			run.Items = make(map[string]int32)
		}
		run.Items[rewards.BonusItemID]++
	}
	run.FloorsCleared++
	run.Floor++
	run.UpdatedAt = o.clock.Now().Unix()

	out := &AdvanceFloorOutput{Encounter: encounter, Rewards: rewards}
	if run.Floor > run.MaxFloor {
		o.completeRun(ctx, run)
		out.Completed = true
	}
	out.Run = cloneRun(run)
	return out, nil
}

// ExitDungeon abandons the run, banking half of everything it accrued:
// floor(gold/2), floor(xp/2), and half the items settled in item-ID
// order.
func (o *orchestrator) ExitDungeon(ctx context.Context, input *ExitDungeonInput) (*ExitDungeonOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.PlayerID == "" {
		return nil, errors.InvalidArgument("playerID is required")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	run, ok := o.runs[input.PlayerID]
	if !ok {
		return nil, errors.NotFound("not in a dungeon")
	}
	if run.State == entities.DungeonStateInBattle {
		return nil, errors.FailedPreconditionf("floor battle %s is unresolved", run.BattleID)
	}

	o.drop(run)
	run.UpdatedAt = o.clock.Now().Unix()

	gold := run.Gold / 2
	xp := run.XP / 2
	items := halveItems(run.Items)
	if gold > 0 || xp > 0 || len(items) > 0 {
		if _, err := o.characterService.ApplyRewards(ctx, &character.ApplyRewardsInput{
			CharacterID: run.CharacterID,
			Gold:        gold,
			XP:          xp,
			Items:       items,
		}); err != nil {
			slog.WarnContext(ctx, "failed to credit exit rewards",
				"run_id", run.ID,
				"character_id", run.CharacterID,
				"error", err,
			)
		}
	}

	slog.InfoContext(ctx, "dungeon run exited",
		"run_id", run.ID,
		"character_id", run.CharacterID,
		"floors_cleared", run.FloorsCleared,
	)
	return &ExitDungeonOutput{Run: cloneRun(run), Gold: gold, XP: xp, Items: items}, nil
}

// Session returns the player's active run, if any.
func (o *orchestrator) Session(_ context.Context, input *SessionInput) (*SessionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.PlayerID == "" {
		return nil, errors.InvalidArgument("playerID is required")
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	run, ok := o.runs[input.PlayerID]
	if !ok {
		return nil, errors.NotFound("not in a dungeon")
	}
	return &SessionOutput{Run: cloneRun(run)}, nil
}

// EvictStale removes runs idle for longer than maxAge. An abandoned
// run forfeits everything it banked.
func (o *orchestrator) EvictStale(ctx context.Context, maxAge time.Duration) int {
	cutoff := o.clock.Now().Add(-maxAge).Unix()

	o.mu.Lock()
	defer o.mu.Unlock()

	evicted := 0
	for playerID, run := range o.runs {
		if run.UpdatedAt > cutoff {
			continue
		}
		delete(o.runs, playerID)
		delete(o.byRun, run.ID)
		evicted++
		slog.InfoContext(ctx, "evicted stale dungeon run",
			"run_id", run.ID,
			"character_id", run.CharacterID,
			"floor", run.Floor,
		)
	}
	return evicted
}

// completeRun pays out an exhausted run and drops it. Credit failures
// log rather than fail: the floors are already cleared. Callers hold
// the lock.
func (o *orchestrator) completeRun(ctx context.Context, run *entities.DungeonRun) {
	o.drop(run)

	if _, err := o.characterService.ApplyRewards(ctx, &character.ApplyRewardsInput{
		CharacterID: run.CharacterID,
		Gold:        run.Gold,
		XP:          run.XP,
		Items:       run.Items,
	}); err != nil {
		slog.WarnContext(ctx, "failed to credit dungeon rewards",
			"run_id", run.ID,
			"character_id", run.CharacterID,
			"error", err,
		)
	}
	if _, err := o.characterService.RecordDungeonClear(ctx, &character.RecordDungeonClearInput{
		CharacterID: run.CharacterID,
	}); err != nil {
		slog.WarnContext(ctx, "failed to record dungeon clear",
			"run_id", run.ID,
			"character_id", run.CharacterID,
			"error", err,
		)
	}

	o.publish(ctx, gameevents.TopicDungeonCompleted, gameevents.Payload{
		CharacterID:  run.CharacterID,
		DungeonID:    run.DungeonID,
		DungeonRunID: run.ID,
		Gold:         run.Gold,
		XP:           run.XP,
	})
	slog.InfoContext(ctx, "dungeon run completed",
		"run_id", run.ID,
		"character_id", run.CharacterID,
		"dungeon_id", run.DungeonID,
		"gold", run.Gold,
		"xp", run.XP,
	)
}

// onBattleStarted locks the run behind its floor battle.
func (o *orchestrator) onBattleStarted(_ context.Context, p gameevents.Payload) error {
	if p.DungeonRunID == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	run := o.runByID(p.DungeonRunID)
	if run == nil || run.CharacterID != p.CharacterID {
		return nil
	}
	run.State = entities.DungeonStateInBattle
	run.BattleID = p.BattleID
	run.UpdatedAt = o.clock.Now().Unix()
	return nil
}

// onBattleWon releases the run to keep exploring.
func (o *orchestrator) onBattleWon(_ context.Context, p gameevents.Payload) error {
	if p.DungeonRunID == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	run := o.runByID(p.DungeonRunID)
	if run == nil || run.BattleID != p.BattleID {
		return nil
	}
	run.State = entities.DungeonStateExploring
	run.BattleID = ""
	run.UpdatedAt = o.clock.Now().Unix()
	return nil
}

// onBattleFled releases the run: the floor's reward is already banked
// and combat has taken the flee penalty, so the player may push on or
// exit for the half payout.
func (o *orchestrator) onBattleFled(_ context.Context, p gameevents.Payload) error {
	if p.DungeonRunID == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	run := o.runByID(p.DungeonRunID)
	if run == nil || run.BattleID != p.BattleID {
		return nil
	}
	run.State = entities.DungeonStateExploring
	run.BattleID = ""
	run.UpdatedAt = o.clock.Now().Unix()
	return nil
}

// onBattleLost kills the run: a run that ends in defeat pays nothing.
func (o *orchestrator) onBattleLost(ctx context.Context, p gameevents.Payload) error {
	if p.DungeonRunID == "" {
		return nil
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	run := o.runByID(p.DungeonRunID)
	if run == nil || run.BattleID != p.BattleID {
		return nil
	}
	o.drop(run)
	slog.InfoContext(ctx, "dungeon run lost",
		"run_id", run.ID,
		"character_id", run.CharacterID,
		"floors_cleared", run.FloorsCleared,
	)
	return nil
}

// rollEncounter resolves what the floor holds. A boss floor always
// spawns its boss; otherwise one spawn is drawn by weight, and a floor
// without a table is free.
func (o *orchestrator) rollEncounter(floor catalog.FloorDefinition, n int32, r rng.Source) *Encounter {
	enc := &Encounter{Type: EncounterEmpty, Floor: n, Multiplier: floor.Multiplier()}

	if floor.BossID != "" {
		if def, ok := o.catalog.Monster(floor.BossID); ok {
			enc.Type = EncounterBoss
			enc.MonsterID = def.ID
			enc.Name = def.Name
		}
		return enc
	}

	id := drawSpawn(floor.Spawns, r)
	if id == "" {
		return enc
	}
	if def, ok := o.catalog.Monster(id); ok {
		enc.Type = EncounterMonster
		enc.MonsterID = def.ID
		enc.Name = def.Name
	}
	return enc
}

// rollFloorRewards banks the floor's baseline pay, scaled by the
// floor's multiplier and truncated, plus the flat bonus-drop chance.
// The bonus pool is the dungeon's own list, or the whole item catalog
// when it has none.
func (o *orchestrator) rollFloorRewards(def *catalog.DungeonDefinition, floor catalog.FloorDefinition, n int32, r rng.Source) *FloorRewards {
	mult := floor.Multiplier()
	rewards := &FloorRewards{
		Gold: int64(float64(floorBaseGold+floorGoldPerStep*n) * mult),
		XP:   int64(float64(floorBaseXP+floorXPPerStep*n) * mult),
	}

	if r.Float64() >= bonusItemChance {
		return rewards
	}
	if def != nil && len(def.BonusItemIDs) > 0 {
		rewards.BonusItemID = def.BonusItemIDs[r.Intn(len(def.BonusItemIDs))]
		return rewards
	}
	if id, err := o.catalog.RandomItemID(rng.NewRoller(r)); err == nil {
		rewards.BonusItemID = id
	}
	return rewards
}

// runByID resolves a run through the byRun index. Callers hold the
// lock.
func (o *orchestrator) runByID(runID string) *entities.DungeonRun {
	playerID, ok := o.byRun[runID]
	if !ok {
		return nil
	}
	return o.runs[playerID]
}

// drop removes the run from the registry. Callers hold the lock.
func (o *orchestrator) drop(run *entities.DungeonRun) {
	delete(o.runs, run.CharacterID)
	delete(o.byRun, run.ID)
}

// publish emits a dungeon event, logging instead of failing.
func (o *orchestrator) publish(ctx context.Context, topic string, payload gameevents.Payload) {
	if err := gameevents.Publish(ctx, o.eventBus, topic, payload); err != nil {
		slog.WarnContext(ctx, "failed to publish dungeon event",
			"topic", topic,
			"run_id", payload.DungeonRunID,
			"error", err,
		)
	}
}

// drawSpawn picks one table entry by weight, a cumulative draw over the
// normalized table. An empty table draws nothing.
func drawSpawn(spawns []catalog.SpawnEntry, r rng.Source) string {
	if len(spawns) == 0 {
		return ""
	}
	total := 0.0
	for _, s := range spawns {
		total += s.Weight
	}
	pick := r.Float64() * total
	for _, s := range spawns {
		pick -= s.Weight
		if pick < 0 {
			return s.MonsterID
		}
	}
	return spawns[len(spawns)-1].MonsterID
}

// floorAt returns the definition for a 1-based floor number. Runs
// snapshot MaxFloor at entry, so floors a catalog edit removed serve
// as free ones rather than stranding the run.
func floorAt(def *catalog.DungeonDefinition, n int32) catalog.FloorDefinition {
	if def == nil || n < 1 || int(n) > len(def.Floors) {
		return catalog.FloorDefinition{}
	}
	return def.Floors[n-1]
}

// halveItems keeps half of the accrued drops, settling stacks in
// item-ID order so the same run always banks the same half.
func halveItems(items map[string]int32) map[string]int32 {
	var total int32
	for _, qty := range items {
		total += qty
	}
	kept := make(map[string]int32)
	keep := total / 2
	if keep == 0 {
		return kept
	}

	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		if keep == 0 {
			break
		}
		qty := items[id]
		if qty > keep {
			qty = keep
		}
		kept[id] = qty
		keep -= qty
	}
	return kept
}

// runSeed derives the run's deterministic seed from its ID, kept to 32
// bits so per-floor offsets cannot overflow.
func runSeed(runID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(runID))
	return int64(h.Sum64() & 0xFFFFFFFF)
}

func cloneRun(run *entities.DungeonRun) *entities.DungeonRun {
	cp := *run
	if run.Items != nil {
		cp.Items = make(map[string]int32, len(run.Items))
		for k, v := range run.Items {
			cp.Items[k] = v
		}
	}
	return &cp
}
