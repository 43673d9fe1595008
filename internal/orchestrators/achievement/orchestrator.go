// Package achievement watches lifetime counters and grants catalog
// achievements when they cross their thresholds. The tracker rides
// the event bus: combat victories, dungeon completions, and gold
// changes each trigger a re-check. Grants are marked on the character
// record before the bonus pays out, so a replayed event can never
// award twice.
package achievement

//go:generate mockgen -destination=mock/mock_service.go -package=achievementmock github.com/nonamep-p/rpg-core/internal/orchestrators/achievement Service

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/gameevents"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/character"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	"github.com/nonamep-p/rpg-core/internal/repositories/characters"
)

// Service defines the interface for achievement tracking
type Service interface {
	ListAchievements(ctx context.Context, input *ListAchievementsInput) (*ListAchievementsOutput, error)

	// Evaluate re-checks every achievement against the character's
	// counters and grants what newly qualifies. The event handlers
	// call this; it is exported for explicit re-checks too.
	Evaluate(ctx context.Context, input *EvaluateInput) (*EvaluateOutput, error)
}

// Config holds the dependencies for the achievement tracker
type Config struct {
	CharacterRepo    characters.Repository
	CharacterService character.Service
	Catalog          *catalog.Catalog
	EventBus         events.EventBus
	Clock            clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.CharacterRepo == nil {
		vb.RequiredField("CharacterRepo")
	}
	if c.CharacterService == nil {
		vb.RequiredField("CharacterService")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
	}
	if c.EventBus == nil {
		vb.RequiredField("EventBus")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}

	return vb.Build()
}

type orchestrator struct {
	characterRepo characters.Repository
	charSvc       character.Service
	catalog       *catalog.Catalog
	clock         clock.Clock
}

// NewOrchestrator creates a new achievement tracker and subscribes it
// to the events that move counters
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	o := &orchestrator{
		characterRepo: cfg.CharacterRepo,
		charSvc:       cfg.CharacterService,
		catalog:       cfg.Catalog,
		clock:         cfg.Clock,
	}

	gameevents.Subscribe(cfg.EventBus, gameevents.TopicCombatVictory, o.onEvent)
	gameevents.Subscribe(cfg.EventBus, gameevents.TopicDungeonCompleted, o.onEvent)
	gameevents.Subscribe(cfg.EventBus, gameevents.TopicGoldChanged, o.onEvent)

	return o, nil
}

var _ Service = (*orchestrator)(nil)

// ListAchievements reports every achievement with the character's
// progress toward it, in catalog order.
func (o *orchestrator) ListAchievements(ctx context.Context, input *ListAchievementsInput) (*ListAchievementsOutput, error) {
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

	defs := o.catalog.Achievements()
	statuses := make([]Status, 0, len(defs))
	for _, def := range defs {
		earnedAt, earned := c.Achievements[def.ID]
		statuses = append(statuses, Status{
			Definition: def,
			Earned:     earned,
			EarnedAt:   earnedAt,
			Progress:   counterValue(c, def.Counter),
		})
	}
	return &ListAchievementsOutput{Achievements: statuses}, nil
}

// Evaluate grants whatever newly qualifies. The earned marks commit
// in one versioned update before any bonus is paid; rewards for all
// new grants are summed into a single credit.
func (o *orchestrator) Evaluate(ctx context.Context, input *EvaluateInput) (*EvaluateOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	var granted []*catalog.AchievementDefinition
	now := o.clock.Now().Unix()
	_, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.CharacterID,
		Mutate: func(c *entities.Character) error {
			granted = granted[:0]
			for _, def := range o.catalog.Achievements() {
				if _, earned := c.Achievements[def.ID]; earned {
					continue
				}
				if counterValue(c, def.Counter) < def.Threshold {
					continue
				}
				if c.Achievements == nil {
					c.Achievements = make(map[string]int64)
				}
				c.Achievements[def.ID] = now
				granted = append(granted, def)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	if len(granted) == 0 {
		return &EvaluateOutput{}, nil
	}

	var bonusGold, bonusXP int64
	for _, def := range granted {
		bonusGold += def.RewardGold
		bonusXP += def.RewardXP
		slog.InfoContext(ctx, "achievement earned",
			"character_id", input.CharacterID,
			"achievement_id", def.ID,
		)
	}
	if bonusGold > 0 || bonusXP > 0 {
		if _, err := o.charSvc.ApplyRewards(ctx, &character.ApplyRewardsInput{
			CharacterID: input.CharacterID,
			Gold:        bonusGold,
			XP:          bonusXP,
		}); err != nil {
			// The marks are committed, so the grant stands; only the
			// bonus is lost.
			slog.ErrorContext(ctx, "failed to pay achievement bonus",
				"character_id", input.CharacterID,
				"gold", bonusGold,
				"xp", bonusXP,
				"error", err,
			)
		}
	}

	return &EvaluateOutput{Granted: granted}, nil
}

// onEvent re-checks the character behind any counter-moving event.
// Characters mid-deletion just drop out.
func (o *orchestrator) onEvent(ctx context.Context, p gameevents.Payload) error {
	if p.CharacterID == "" {
		return nil
	}
	if _, err := o.Evaluate(ctx, &EvaluateInput{CharacterID: p.CharacterID}); err != nil {
		if errors.IsNotFound(err) {
			return nil
		}
		slog.WarnContext(ctx, "achievement evaluation failed",
			"character_id", p.CharacterID,
			"error", err,
		)
	}
	return nil
}

// counterValue reads the lifetime counter an achievement watches.
// Unknown counters read as zero and can never trigger.
func counterValue(c *entities.Character, counter string) int64 {
	switch counter {
	case catalog.CounterBattlesWon:
		return c.Progress.BattlesWon
	case catalog.CounterDungeonsCompleted:
		return c.Progress.DungeonsCompleted
	case catalog.CounterBossesDefeated:
		return c.Progress.BossesDefeated
	case catalog.CounterGold:
		return c.Gold
	default:
		return 0
	}
}
