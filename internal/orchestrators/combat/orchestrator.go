// Package combat owns turn-based battles: hunts against catalog
// monsters, duels against other characters, and dungeon floor fights.
// Battles live in an in-process registry keyed by battle ID; the
// character service is the only place battle outcomes are persisted.
package combat

//go:generate mockgen -destination=mock/mock_service.go -package=combatmock github.com/nonamep-p/rpg-core/internal/orchestrators/combat Service

import (
	"context"
	"fmt"
	"hash/fnv"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/engine"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/gameevents"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/character"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/pkg/rng"
)

// Combat pacing constants.
const (
	fleeChance   = 0.7
	attackSPGain = 20
	defendSPGain = 15

	// monsterPhaseOffset separates the monster's random stream from
	// the player's within the same turn.
	monsterPhaseOffset = 999

	// Monsters do not carry derived stats in the catalog; accuracy and
	// evasion come from these baselines plus their agility and luck.
	monsterBaseAccuracy = 50
	monsterBaseEvasion  = 10
	monsterCritChance   = 0.05
	monsterCritDamage   = 1.5

	// Companion hunting: each point is 5% bonus-loot chance, capped.
	huntingChancePerPoint = 0.05
	huntingChanceCap      = 0.35
)

// Service defines the interface for battle operations
type Service interface {
	StartHunt(ctx context.Context, input *StartHuntInput) (*StartHuntOutput, error)
	StartDuel(ctx context.Context, input *StartDuelInput) (*StartDuelOutput, error)
	StartDungeonBattle(ctx context.Context, input *StartDungeonBattleInput) (*StartDungeonBattleOutput, error)
	PerformAction(ctx context.Context, input *PerformActionInput) (*PerformActionOutput, error)
	GetBattle(ctx context.Context, input *GetBattleInput) (*GetBattleOutput, error)
	ActiveBattle(ctx context.Context, input *ActiveBattleInput) (*ActiveBattleOutput, error)

	// EvictStale drops battles idle for longer than maxAge and returns
	// how many were removed. The server runs it on a ticker.
	EvictStale(ctx context.Context, maxAge time.Duration) int
}

// RandFunc builds the random source for one battle phase. Production
// uses rng.NewSeeded; tests substitute scripted sources.
type RandFunc func(seed int64) rng.Source

// Config holds the dependencies for the combat orchestrator
type Config struct {
	CharacterService character.Service
	Catalog          *catalog.Catalog
	Engine           engine.Engine
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
	characterService character.Service
	catalog          *catalog.Catalog
	engine           engine.Engine
	eventBus         events.EventBus
	idGen            idgen.Generator
	clock            clock.Clock
	rand             RandFunc

	mu       sync.RWMutex
	battles  map[string]*entities.BattleSession
	byPlayer map[string]string
}

// NewOrchestrator creates a new combat orchestrator with the provided
// dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	randFn := cfg.Rand
	if randFn == nil {
		randFn = rng.NewSeeded
	}

	return &orchestrator{
		characterService: cfg.CharacterService,
		catalog:          cfg.Catalog,
		engine:           cfg.Engine,
		eventBus:         cfg.EventBus,
		idGen:            cfg.IDGenerator,
		clock:            cfg.Clock,
		rand:             randFn,
		battles:          make(map[string]*entities.BattleSession),
		byPlayer:         make(map[string]string),
	}, nil
}

var _ Service = (*orchestrator)(nil)

// StartHunt opens a battle against a catalog monster.
func (o *orchestrator) StartHunt(ctx context.Context, input *StartHuntInput) (*StartHuntOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("monsterID", input.MonsterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	monster, ok := o.catalog.Monster(input.MonsterID)
	if !ok {
		return nil, errors.NotFoundf("monster %q not found", input.MonsterID)
	}

	opponent := monsterCombatant(monster)
	battle, err := o.startBattle(ctx, startParams{
		playerID: input.PlayerID,
		kind:     entities.BattleKindHunt,
		opponent: opponent,
		opening:  fmt.Sprintf("A wild %s appears!", opponent.Name),
	})
	if err != nil {
		return nil, err
	}
	return &StartHuntOutput{Battle: battle}, nil
}

// StartDuel opens a player-versus-player battle. The opponent is
// snapshotted at challenge time and fought by the monster AI; only
// ratings and win/loss records are at stake.
func (o *orchestrator) StartDuel(ctx context.Context, input *StartDuelInput) (*StartDuelOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("opponentID", input.OpponentID, vb)
	if input.PlayerID != "" && input.PlayerID == input.OpponentID {
		vb.Field("opponentID", "cannot duel yourself")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	stats, err := o.characterService.EffectiveStats(ctx, &character.EffectiveStatsInput{
		CharacterID: input.OpponentID,
	})
	if err != nil {
		return nil, err
	}
	if stats.Profile.HP <= 0 {
		return nil, errors.FailedPrecondition("opponent cannot duel at 0 HP")
	}
	opponent := playerCombatant(stats.Character, stats.Profile)

	battle, err := o.startBattle(ctx, startParams{
		playerID:   input.PlayerID,
		kind:       entities.BattleKindDuel,
		opponent:   opponent,
		opponentID: input.OpponentID,
		opening:    fmt.Sprintf("%s accepts the duel!", opponent.Name),
	})
	if err != nil {
		return nil, err
	}
	return &StartDuelOutput{Battle: battle}, nil
}

// StartDungeonBattle opens a battle against a dungeon floor encounter.
// The floor multiplier scales the monster's gold and XP on victory.
func (o *orchestrator) StartDungeonBattle(ctx context.Context, input *StartDungeonBattleInput) (*StartDungeonBattleOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("monsterID", input.MonsterID, vb)
	errors.ValidateRequired("dungeonRunID", input.DungeonRunID, vb)
	if input.FloorMultiplier < 0 {
		vb.Field("floorMultiplier", "must not be negative")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	monster, ok := o.catalog.Monster(input.MonsterID)
	if !ok {
		return nil, errors.NotFoundf("monster %q not found", input.MonsterID)
	}

	opponent := monsterCombatant(monster)
	opening := fmt.Sprintf("%s blocks the way!", opponent.Name)
	if opponent.Boss {
		opening = fmt.Sprintf("The floor boss %s blocks the way!", opponent.Name)
	}
	battle, err := o.startBattle(ctx, startParams{
		playerID:        input.PlayerID,
		kind:            entities.BattleKindDungeon,
		opponent:        opponent,
		dungeonRunID:    input.DungeonRunID,
		floorMultiplier: input.FloorMultiplier,
		opening:         opening,
	})
	if err != nil {
		return nil, err
	}
	return &StartDungeonBattleOutput{Battle: battle}, nil
}

// PerformAction resolves one full round: the player's action, status
// ticks for both sides, and the monster's answer. Each phase draws from
// its own seeded stream so a stored battle replays identically.
func (o *orchestrator) PerformAction(ctx context.Context, input *PerformActionInput) (*PerformActionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("battleID", input.BattleID, vb)
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("action", string(input.Action), vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	battle, ok := o.battles[input.BattleID]
	if !ok {
		return nil, errors.NotFoundf("battle %q not found", input.BattleID)
	}
	if battle.CharacterID != input.PlayerID {
		return nil, errors.PermissionDenied("battle belongs to another player")
	}
	if battle.State.Terminal() {
		return nil, errors.FailedPrecondition("battle already resolved")
	}

	logStart := len(battle.Log)
	playerRand := o.rand(battle.Seed + int64(battle.Turn))
	forceMonsterAttack := false

	var err error
	switch input.Action {
	case entities.ActionAttack:
		err = o.playerAttack(ctx, battle, playerRand)
	case entities.ActionDefend:
		o.playerDefend(battle)
	case entities.ActionSkill:
		err = o.playerSkill(ctx, battle, playerRand, input.SkillID)
	case entities.ActionItem:
		err = o.playerItem(ctx, battle, input.ItemID)
	case entities.ActionUltimate:
		err = o.playerUltimate(ctx, battle, playerRand)
	case entities.ActionFlee:
		var fled bool
		fled, err = o.playerFlee(ctx, battle, playerRand)
		forceMonsterAttack = err == nil && !fled
	default:
		return nil, errors.InvalidArgumentf("unknown action %q", input.Action)
	}
	if err != nil {
		return nil, err
	}

	if !battle.State.Terminal() {
		o.advanceTurn(ctx, battle, forceMonsterAttack)
	}
	battle.UpdatedAt = o.clock.Now().Unix()

	lines := append([]string(nil), battle.Log[logStart:]...)
	return &PerformActionOutput{Battle: cloneSession(battle), Lines: lines}, nil
}

// GetBattle returns the battle, including resolved ones that have not
// been swept yet.
func (o *orchestrator) GetBattle(_ context.Context, input *GetBattleInput) (*GetBattleOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("battleID", input.BattleID, vb)
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	battle, ok := o.battles[input.BattleID]
	if !ok {
		return nil, errors.NotFoundf("battle %q not found", input.BattleID)
	}
	if battle.CharacterID != input.PlayerID {
		return nil, errors.PermissionDenied("battle belongs to another player")
	}
	return &GetBattleOutput{Battle: cloneSession(battle)}, nil
}

// ActiveBattle returns the player's unresolved battle, if any.
func (o *orchestrator) ActiveBattle(_ context.Context, input *ActiveBattleInput) (*ActiveBattleOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.PlayerID == "" {
		return nil, errors.InvalidArgument("playerID is required")
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	battleID, ok := o.byPlayer[input.PlayerID]
	if !ok {
		return nil, errors.NotFound("not in battle")
	}
	battle, ok := o.battles[battleID]
	if !ok {
		return nil, errors.NotFound("not in battle")
	}
	return &ActiveBattleOutput{Battle: cloneSession(battle)}, nil
}

// EvictStale removes battles whose last action is older than maxAge.
// Resolved battles are swept the same way once they go idle.
func (o *orchestrator) EvictStale(ctx context.Context, maxAge time.Duration) int {
	cutoff := o.clock.Now().Add(-maxAge).Unix()

	o.mu.Lock()
	defer o.mu.Unlock()

	evicted := 0
	for id, battle := range o.battles {
		if battle.UpdatedAt > cutoff {
			continue
		}
		delete(o.battles, id)
		if o.byPlayer[battle.CharacterID] == id {
			delete(o.byPlayer, battle.CharacterID)
		}
		evicted++
		slog.InfoContext(ctx, "evicted stale battle",
			"battle_id", id,
			"character_id", battle.CharacterID,
			"state", string(battle.State),
		)
	}
	return evicted
}

// startParams carries what the three battle starters differ in.
type startParams struct {
	playerID        string
	kind            entities.BattleKind
	opponent        *entities.Combatant
	opponentID      string
	dungeonRunID    string
	floorMultiplier float64
	opening         string
}

func (o *orchestrator) startBattle(ctx context.Context, p startParams) (*entities.BattleSession, error) {
	stats, err := o.characterService.EffectiveStats(ctx, &character.EffectiveStatsInput{
		CharacterID: p.playerID,
	})
	if err != nil {
		return nil, err
	}
	if stats.Profile.HP <= 0 {
		return nil, errors.FailedPrecondition("cannot start a battle at 0 HP")
	}

	now := o.clock.Now().Unix()
	battle := &entities.BattleSession{
		ID:              o.idGen.Generate(),
		Kind:            p.kind,
		CharacterID:     p.playerID,
		OpponentID:      p.opponentID,
		DungeonRunID:    p.dungeonRunID,
		FloorMultiplier: p.floorMultiplier,
		Player:          playerCombatant(stats.Character, stats.Profile),
		Opponent:        p.opponent,
		State:           entities.BattleStateActive,
		Log:             []string{p.opening},
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	battle.Seed = battleSeed(battle.ID)

	o.mu.Lock()
	if existing, ok := o.byPlayer[p.playerID]; ok {
		o.mu.Unlock()
		return nil, errors.FailedPreconditionf("already in battle %s", existing)
	}
	o.battles[battle.ID] = battle
	o.byPlayer[p.playerID] = battle.ID
	o.mu.Unlock()

	slog.InfoContext(ctx, "battle started",
		"battle_id", battle.ID,
		"kind", string(p.kind),
		"character_id", p.playerID,
		"opponent", battle.Opponent.Name,
	)
	o.publish(ctx, gameevents.TopicBattleStarted, gameevents.Payload{
		CharacterID:  battle.CharacterID,
		BattleID:     battle.ID,
		DungeonRunID: battle.DungeonRunID,
		MonsterID:    battle.Opponent.MonsterID,
	})
	return cloneSession(battle), nil
}

func (o *orchestrator) playerAttack(ctx context.Context, battle *entities.BattleSession, r rng.Source) error {
	player := battle.Player
	depth := player.Combo + 1

	out, err := o.engine.ResolveAttack(ctx, &engine.ResolveAttackInput{
		Attacker:   player,
		Defender:   battle.Opponent,
		Rand:       r,
		ComboDepth: depth,
	})
	if err != nil {
		return err
	}

	if out.Outcome == engine.OutcomeMiss {
		player.Combo = 0
	} else {
		player.Combo = depth
	}
	gainSP(player, attackSPGain)
	battle.Log = append(battle.Log, out.Lines...)

	if out.DefenderDown {
		o.resolveVictory(ctx, battle, r)
	}
	return nil
}

func (o *orchestrator) playerDefend(battle *entities.BattleSession) {
	player := battle.Player
	guard := o.engine.DefendGuard(player.Defense)
	player.Shield += guard
	player.Defending = true
	player.Combo = 0
	gainSP(player, defendSPGain)
	battle.Log = append(battle.Log, fmt.Sprintf("%s defends: +%d guard, +%d SP.", player.Name, guard, defendSPGain))
}

func (o *orchestrator) playerSkill(ctx context.Context, battle *entities.BattleSession, r rng.Source, skillID string) error {
	if skillID == "" {
		return errors.InvalidArgument("skillID is required for skill actions")
	}
	player := battle.Player

	known := false
	for _, id := range player.SkillIDs {
		if id == skillID {
			known = true
			break
		}
	}
	if !known {
		return errors.FailedPreconditionf("skill %q not learned", skillID)
	}
	skill, ok := o.catalog.Skill(skillID)
	if !ok {
		return errors.NotFoundf("skill %q not found", skillID)
	}
	if left := player.Cooldowns[skillID]; left > 0 {
		return errors.FailedPreconditionf("%s is on cooldown for %d more turns", skill.Name, left)
	}
	if player.SP < skill.SPCost {
		return errors.FailedPreconditionf("need %d SP, have %d", skill.SPCost, player.SP)
	}

	player.SP -= skill.SPCost
	player.Combo = 0
	if skill.Cooldown > 0 {
		player.Cooldowns[skillID] = skill.Cooldown
	}

	out, err := o.engine.ResolveAttack(ctx, &engine.ResolveAttackInput{
		Attacker: player,
		Defender: battle.Opponent,
		Rand:     r,
		Skill:    skill,
	})
	if err != nil {
		return err
	}
	battle.Log = append(battle.Log, out.Lines...)

	if out.DefenderDown {
		o.resolveVictory(ctx, battle, r)
	}
	return nil
}

// playerItem consumes an item from the persistent inventory and
// applies its effects to the battle snapshot. Using an item spends the
// turn.
func (o *orchestrator) playerItem(ctx context.Context, battle *entities.BattleSession, itemID string) error {
	if itemID == "" {
		return errors.InvalidArgument("itemID is required for item actions")
	}
	item, ok := o.catalog.Item(itemID)
	if !ok {
		return errors.NotFoundf("item %q not found", itemID)
	}
	if item.Type != entities.ItemTypeConsumable {
		return errors.InvalidArgumentf("%s cannot be used in battle", item.Name)
	}

	_, err := o.characterService.RemoveItem(ctx, &character.RemoveItemInput{
		CharacterID: battle.CharacterID,
		ItemID:      itemID,
		Quantity:    1,
	})
	if err != nil {
		return err
	}

	player := battle.Player
	player.Combo = 0

	if heal := int32(math.Round(item.Effects[catalog.EffectHP])); heal > 0 {
		before := player.HP
		player.HP += heal
		if player.HP > player.MaxHP {
			player.HP = player.MaxHP
		}
		battle.Log = append(battle.Log, fmt.Sprintf("%s uses %s and recovers %d HP.", player.Name, item.Name, player.HP-before))
	}
	if sp := int32(math.Round(item.Effects[catalog.EffectSP])); sp > 0 {
		before := player.SP
		player.SP += sp
		if player.SP > player.MaxSP {
			player.SP = player.MaxSP
		}
		battle.Log = append(battle.Log, fmt.Sprintf("%s restores %d SP.", item.Name, player.SP-before))
	}
	for _, cure := range item.Cures {
		if removeStatus(player, cure) {
			name := string(cure)
			if def, ok := engine.StatusDef(cure); ok {
				name = def.Name
			}
			battle.Log = append(battle.Log, fmt.Sprintf("%s shakes off %s.", player.Name, name))
		}
	}
	if item.Grants != "" {
		if turns := o.engine.ApplyStatus(player, item.Grants, item.Name); turns > 0 {
			if def, ok := engine.StatusDef(item.Grants); ok {
				battle.Log = append(battle.Log, fmt.Sprintf("%s gains %s.", player.Name, def.Name))
			}
		}
	}
	return nil
}

func (o *orchestrator) playerUltimate(ctx context.Context, battle *entities.BattleSession, r rng.Source) error {
	player := battle.Player
	if player.UltimateUsed {
		return errors.FailedPrecondition("ultimate already used this battle")
	}
	if player.SP < player.MaxSP {
		return errors.FailedPreconditionf("ultimate requires full SP (%d/%d)", player.SP, player.MaxSP)
	}

	player.SP = 0
	player.UltimateUsed = true
	player.Combo = 0

	out, err := o.engine.ResolveAttack(ctx, &engine.ResolveAttackInput{
		Attacker: player,
		Defender: battle.Opponent,
		Rand:     r,
		Ultimate: true,
	})
	if err != nil {
		return err
	}
	battle.Log = append(battle.Log, out.Lines...)

	if out.DefenderDown {
		o.resolveVictory(ctx, battle, r)
	}
	return nil
}

// playerFlee rolls the escape. Success ends the battle with penalties;
// failure hands the monster a free attack.
func (o *orchestrator) playerFlee(ctx context.Context, battle *entities.BattleSession, r rng.Source) (bool, error) {
	player := battle.Player
	if r.Float64() >= fleeChance {
		battle.Log = append(battle.Log, fmt.Sprintf("%s fails to escape!", player.Name))
		return false, nil
	}

	battle.State = entities.BattleStateFled
	battle.Winner = entities.WinnerFled
	o.release(battle)

	penalty, err := o.characterService.ApplyFleePenalty(ctx, &character.ApplyFleePenaltyInput{
		CharacterID: battle.CharacterID,
		BattleHP:    player.HP,
	})
	if err != nil {
		slog.WarnContext(ctx, "failed to apply flee penalty",
			"battle_id", battle.ID,
			"character_id", battle.CharacterID,
			"error", err,
		)
		battle.Log = append(battle.Log, fmt.Sprintf("%s escapes the battle.", player.Name))
	} else {
		battle.Log = append(battle.Log, fmt.Sprintf("%s escapes, dropping %d gold and %d HP in the scramble.",
			player.Name, penalty.GoldLost, penalty.HPLost))
	}

	if battle.Kind == entities.BattleKindDuel {
		o.recordDuelOutcome(ctx, battle, false, true)
	} else {
		o.recordResult(ctx, battle.CharacterID, &character.RecordBattleResultInput{
			CharacterID: battle.CharacterID,
			Fled:        true,
		})
	}

	o.publish(ctx, gameevents.TopicCombatFled, gameevents.Payload{
		CharacterID:  battle.CharacterID,
		BattleID:     battle.ID,
		DungeonRunID: battle.DungeonRunID,
		MonsterID:    battle.Opponent.MonsterID,
	})
	return true, nil
}

// advanceTurn runs everything after the player's action: cooldowns,
// status ticks on both sides, and the monster's answer. forced skips
// the monster's decision heuristic, granting the free attack a failed
// flee earns it.
func (o *orchestrator) advanceTurn(ctx context.Context, battle *entities.BattleSession, forced bool) {
	player, opponent := battle.Player, battle.Opponent

	for id, left := range player.Cooldowns {
		if left > 0 {
			player.Cooldowns[id] = left - 1
		}
	}

	if tick, err := o.engine.TickStatuses(ctx, &engine.TickStatusesInput{Combatant: player}); err == nil {
		battle.Log = append(battle.Log, tick.Lines...)
		if tick.Down {
			o.resolveDefeat(ctx, battle)
			return
		}
	}

	monsterRand := o.rand(battle.Seed + int64(battle.Turn) + monsterPhaseOffset)

	if tick, err := o.engine.TickStatuses(ctx, &engine.TickStatusesInput{Combatant: opponent}); err == nil {
		battle.Log = append(battle.Log, tick.Lines...)
		if tick.Down {
			o.resolveVictory(ctx, battle, monsterRand)
			return
		}
	}

	if o.engine.StatusModifiers(opponent).Stunned {
		battle.Log = append(battle.Log, fmt.Sprintf("%s is stunned and cannot act!", opponent.Name))
		battle.Turn++
		return
	}

	decision, err := o.engine.ChooseMonsterAction(ctx, &engine.ChooseMonsterActionInput{
		Monster:     opponent,
		Player:      player,
		Rand:        monsterRand,
		ForceAttack: forced,
	})
	if err != nil {
		battle.Turn++
		return
	}

	if decision.Action == entities.ActionDefend {
		guard := o.engine.DefendGuard(opponent.Defense)
		opponent.Shield += guard
		opponent.Defending = true
		battle.Log = append(battle.Log, fmt.Sprintf("%s braces for the next attack.", opponent.Name))
		battle.Turn++
		return
	}

	opponent.Style = decision.Style
	out, err := o.engine.ResolveAttack(ctx, &engine.ResolveAttackInput{
		Attacker: opponent,
		Defender: player,
		Rand:     monsterRand,
		Style:    decision.Style,
	})
	if err != nil {
		battle.Turn++
		return
	}
	battle.Log = append(battle.Log, out.Lines...)

	if out.DefenderDown {
		o.resolveDefeat(ctx, battle)
		return
	}
	battle.Turn++
}

// resolveVictory settles a battle the player won: spoils for hunts and
// dungeon fights, rating swings for duels.
func (o *orchestrator) resolveVictory(ctx context.Context, battle *entities.BattleSession, r rng.Source) {
	battle.State = entities.BattleStateWon
	battle.Winner = battle.Player.ID
	o.release(battle)

	if battle.Kind == entities.BattleKindDuel {
		battle.Log = append(battle.Log, fmt.Sprintf("%s wins the duel!", battle.Player.Name))
		o.recordDuelOutcome(ctx, battle, true, false)
		o.publish(ctx, gameevents.TopicCombatVictory, gameevents.Payload{
			CharacterID: battle.CharacterID,
			BattleID:    battle.ID,
		})
		return
	}

	mult := battle.FloorMultiplier
	if mult <= 0 {
		mult = 1
	}

	goldMult, xpMult := 1.0, 1.0
	var companion *entities.Companion
	if stats, err := o.characterService.EffectiveStats(ctx, &character.EffectiveStatsInput{
		CharacterID: battle.CharacterID,
	}); err != nil {
		slog.WarnContext(ctx, "failed to derive reward multipliers",
			"battle_id", battle.ID,
			"character_id", battle.CharacterID,
			"error", err,
		)
	} else {
		goldMult = stats.Profile.GoldMult
		xpMult = stats.Profile.XPMult
		companion = stats.Character.Companion
	}

	gold := int64(math.Round(float64(battle.Opponent.GoldReward) * mult * goldMult))
	xp := int64(math.Round(float64(battle.Opponent.XPReward) * mult * xpMult))

	items := make(map[string]int32)
	if def, ok := o.catalog.Monster(battle.Opponent.MonsterID); ok {
		for _, loot := range def.Loot {
			if r.Float64() >= loot.Chance {
				continue
			}
			qty := loot.Quantity
			if qty < 1 {
				qty = 1
			}
			items[loot.ItemID] += qty
		}
	}
	o.rollCompanionLoot(battle, companion, r, items)

	battle.Rewards = &entities.BattleRewards{Gold: gold, XP: xp, Items: items}
	battle.Log = append(battle.Log, fmt.Sprintf("Victory! +%d XP, +%d gold.", xp, gold))

	if _, err := o.characterService.ApplyRewards(ctx, &character.ApplyRewardsInput{
		CharacterID: battle.CharacterID,
		XP:          xp,
		Gold:        gold,
		Items:       items,
	}); err != nil {
		slog.WarnContext(ctx, "failed to credit battle rewards",
			"battle_id", battle.ID,
			"character_id", battle.CharacterID,
			"error", err,
		)
	}
	o.recordResult(ctx, battle.CharacterID, &character.RecordBattleResultInput{
		CharacterID: battle.CharacterID,
		Won:         true,
		Boss:        battle.Opponent.Boss,
	})

	o.publish(ctx, gameevents.TopicCombatVictory, gameevents.Payload{
		CharacterID:  battle.CharacterID,
		BattleID:     battle.ID,
		DungeonRunID: battle.DungeonRunID,
		MonsterID:    battle.Opponent.MonsterID,
		Boss:         battle.Opponent.Boss,
		Gold:         gold,
		XP:           xp,
	})
}

// resolveDefeat settles a battle the player lost. The battle snapshot
// is discarded; defeat costs nothing beyond the loss record.
func (o *orchestrator) resolveDefeat(ctx context.Context, battle *entities.BattleSession) {
	battle.State = entities.BattleStateLost
	battle.Winner = battle.Opponent.ID
	o.release(battle)

	if battle.Kind == entities.BattleKindDuel {
		battle.Log = append(battle.Log, fmt.Sprintf("%s wins the duel!", battle.Opponent.Name))
		o.recordDuelOutcome(ctx, battle, false, false)
	} else {
		battle.Log = append(battle.Log, fmt.Sprintf("%s is victorious. Defeat!", battle.Opponent.Name))
		o.recordResult(ctx, battle.CharacterID, &character.RecordBattleResultInput{
			CharacterID: battle.CharacterID,
			Won:         false,
		})
	}

	o.publish(ctx, gameevents.TopicCombatDefeat, gameevents.Payload{
		CharacterID:  battle.CharacterID,
		BattleID:     battle.ID,
		DungeonRunID: battle.DungeonRunID,
		MonsterID:    battle.Opponent.MonsterID,
	})
}

// recordDuelOutcome books both sides of a duel. A fled duel forfeits:
// the challenger takes the rating loss and the opponent the win.
func (o *orchestrator) recordDuelOutcome(ctx context.Context, battle *entities.BattleSession, ownerWon, ownerFled bool) {
	o.recordResult(ctx, battle.CharacterID, &character.RecordBattleResultInput{
		CharacterID: battle.CharacterID,
		Won:         ownerWon,
		Fled:        ownerFled,
		PvP:         true,
	})
	o.recordResult(ctx, battle.OpponentID, &character.RecordBattleResultInput{
		CharacterID: battle.OpponentID,
		Won:         !ownerWon,
		PvP:         true,
	})
}

// recordResult books a battle outcome, logging instead of failing: the
// battle itself has already resolved.
func (o *orchestrator) recordResult(ctx context.Context, characterID string, input *character.RecordBattleResultInput) {
	if _, err := o.characterService.RecordBattleResult(ctx, input); err != nil {
		slog.WarnContext(ctx, "failed to record battle result",
			"character_id", characterID,
			"error", err,
		)
	}
}

// rollCompanionLoot gives a hunting companion its chance to fetch one
// extra item.
func (o *orchestrator) rollCompanionLoot(battle *entities.BattleSession, companion *entities.Companion, r rng.Source, items map[string]int32) {
	if companion == nil || companion.Hunting <= 0 {
		return
	}
	chance := huntingChancePerPoint * float64(companion.Hunting)
	if chance > huntingChanceCap {
		chance = huntingChanceCap
	}
	if r.Float64() >= chance {
		return
	}
	itemID, err := o.catalog.RandomItemID(rng.NewRoller(r))
	if err != nil {
		return
	}
	items[itemID]++
	name := itemID
	if def, ok := o.catalog.Item(itemID); ok {
		name = def.Name
	}
	battle.Log = append(battle.Log, fmt.Sprintf("%s fetches extra loot: %s.", companion.Name, name))
}

// release frees the player for a new battle. The resolved session
// stays fetchable until the stale sweep removes it.
func (o *orchestrator) release(battle *entities.BattleSession) {
	if o.byPlayer[battle.CharacterID] == battle.ID {
		delete(o.byPlayer, battle.CharacterID)
	}
}

// publish emits a battle event, logging instead of failing.
func (o *orchestrator) publish(ctx context.Context, topic string, payload gameevents.Payload) {
	if err := gameevents.Publish(ctx, o.eventBus, topic, payload); err != nil {
		slog.WarnContext(ctx, "failed to publish battle event",
			"topic", topic,
			"battle_id", payload.BattleID,
			"error", err,
		)
	}
}

func gainSP(c *entities.Combatant, amount int32) {
	c.SP += amount
	if c.SP > c.MaxSP {
		c.SP = c.MaxSP
	}
}

func removeStatus(c *entities.Combatant, t entities.StatusType) bool {
	for i, s := range c.Statuses {
		if s.Type == t {
			c.Statuses = append(c.Statuses[:i], c.Statuses[i+1:]...)
			return true
		}
	}
	return false
}

// playerCombatant snapshots a character's derived profile for battle.
// Duels reuse it for the opponent side; the snapshot fights on even if
// the character record changes mid-battle.
func playerCombatant(ch *entities.Character, p *engine.StatProfile) *entities.Combatant {
	return &entities.Combatant{
		ID:           ch.ID,
		Name:         ch.Name,
		Kind:         entities.CombatantPlayer,
		Level:        ch.Level,
		HP:           p.HP,
		MaxHP:        p.MaxHP,
		SP:           p.SP,
		MaxSP:        p.MaxSP,
		Attack:       p.Attack,
		Defense:      p.Defense,
		Speed:        p.Speed,
		Intelligence: p.Intelligence,
		Luck:         p.Luck,
		Agility:      p.Agility,
		Accuracy:     p.Accuracy,
		Evasion:      p.Evasion,
		CritChance:   p.CritChance,
		CritDamage:   p.CritDamage,
		Penetration:  p.Penetration,
		Element:      entities.ElementPhysical,
		DamageType:   p.AttackElement,
		SkillIDs:     append([]string(nil), ch.SkillIDs...),
		Cooldowns:    make(map[string]int32),
	}
}

// monsterCombatant builds the battle snapshot for a catalog monster.
func monsterCombatant(d *catalog.MonsterDefinition) *entities.Combatant {
	element := d.Element
	if element == "" {
		element = entities.ElementPhysical
	}
	return &entities.Combatant{
		ID:           d.ID,
		Name:         d.Name,
		Kind:         entities.CombatantMonster,
		MonsterID:    d.ID,
		Level:        d.Level,
		HP:           d.HP,
		MaxHP:        d.HP,
		Attack:       d.Attack,
		Defense:      d.Defense,
		Speed:        d.Speed,
		Intelligence: d.Intelligence,
		Luck:         d.Luck,
		Agility:      d.Agility,
		Accuracy:     monsterBaseAccuracy + 2*d.Agility,
		Evasion:      monsterBaseEvasion + d.Agility + d.Luck,
		CritChance:   monsterCritChance,
		CritDamage:   monsterCritDamage,
		Element:      element,
		DamageType:   element,
		Boss:         d.Boss,
		GoldReward:   d.GoldReward,
		XPReward:     d.XPReward,
	}
}

// battleSeed derives the battle's deterministic seed from its ID, kept
// to 32 bits so per-turn offsets cannot overflow.
func battleSeed(battleID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(battleID))
	return int64(h.Sum64() & 0xFFFFFFFF)
}

func cloneSession(b *entities.BattleSession) *entities.BattleSession {
	cp := *b
	cp.Player = cloneCombatant(b.Player)
	cp.Opponent = cloneCombatant(b.Opponent)
	if b.Rewards != nil {
		r := *b.Rewards
		if b.Rewards.Items != nil {
			r.Items = make(map[string]int32, len(b.Rewards.Items))
			for k, v := range b.Rewards.Items {
				r.Items[k] = v
			}
		}
		cp.Rewards = &r
	}
	cp.Log = append([]string(nil), b.Log...)
	return &cp
}

func cloneCombatant(c *entities.Combatant) *entities.Combatant {
	if c == nil {
		return nil
	}
	cp := *c
	cp.Statuses = append([]entities.StatusEffect(nil), c.Statuses...)
	cp.SkillIDs = append([]string(nil), c.SkillIDs...)
	if c.Cooldowns != nil {
		cp.Cooldowns = make(map[string]int32, len(c.Cooldowns))
		for k, v := range c.Cooldowns {
			cp.Cooldowns[k] = v
		}
	}
	return &cp
}
