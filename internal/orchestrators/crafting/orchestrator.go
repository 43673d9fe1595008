// Package crafting owns the timed crafting pipeline: jobs reserve
// their materials up front, run on the wall clock, and roll success
// when they finish. Resolution is poll-driven; an in-process timer
// fires the same path when the job comes due so outcomes land without
// a poll, but the persisted job state stays authoritative either way.
// Cancelling an unfinished job refunds exactly what it deducted.
package crafting

//go:generate mockgen -destination=mock/mock_service.go -package=craftingmock github.com/nonamep-p/rpg-core/internal/orchestrators/crafting Service

import (
	"context"
	"hash/fnv"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/engine"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/gameevents"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/pkg/rng"
	"github.com/nonamep-p/rpg-core/internal/repositories/characters"
	"github.com/nonamep-p/rpg-core/internal/repositories/craftjobs"
)

// craftXPPerLevel is the discipline experience one level takes,
// scaled by the level being left.
const craftXPPerLevel = 100

// Service defines the interface for crafting operations
type Service interface {
	StartCrafting(ctx context.Context, input *StartCraftingInput) (*StartCraftingOutput, error)
	CheckProgress(ctx context.Context, input *CheckProgressInput) (*CheckProgressOutput, error)
	CancelCrafting(ctx context.Context, input *CancelCraftingInput) (*CancelCraftingOutput, error)
	ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error)

	// ResumeJobs re-arms completion timers for every job still active
	// in storage, resolving overdue ones immediately. The server calls
	// it once at startup and it returns how many jobs were picked up.
	ResumeJobs(ctx context.Context) (int, error)

	// Close stops every armed timer. Pending jobs stay in storage and
	// resolve on the next poll or restart.
	Close()
}

// RandFunc builds the random source for one job's success roll.
// Production uses rng.NewSeeded; tests substitute scripted sources.
type RandFunc func(seed int64) rng.Source

// Config holds the dependencies for the crafting orchestrator
type Config struct {
	CharacterRepo characters.Repository
	JobRepo       craftjobs.Repository
	Catalog       *catalog.Catalog
	Engine        engine.Engine
	EventBus      events.EventBus
	IDGenerator   idgen.Generator
	Clock         clock.Clock

	// Rand is optional and defaults to rng.NewSeeded.
	Rand RandFunc
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.CharacterRepo == nil {
		vb.RequiredField("CharacterRepo")
	}
	if c.JobRepo == nil {
		vb.RequiredField("JobRepo")
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
	jobRepo       craftjobs.Repository
	catalog       *catalog.Catalog
	engine        engine.Engine
	eventBus      events.EventBus
	idGen         idgen.Generator
	clock         clock.Clock
	rand          RandFunc

	// mu serializes resolution and cancellation so the timer and a
	// concurrent poll cannot both settle the same job.
	mu     sync.Mutex
	timers map[string]*time.Timer
}

// NewOrchestrator creates a new crafting orchestrator with the
// provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	randFn := cfg.Rand
	if randFn == nil {
		randFn = rng.NewSeeded
	}

	return &orchestrator{
		characterRepo: cfg.CharacterRepo,
		jobRepo:       cfg.JobRepo,
		catalog:       cfg.Catalog,
		engine:        cfg.Engine,
		eventBus:      cfg.EventBus,
		idGen:         cfg.IDGenerator,
		clock:         cfg.Clock,
		rand:          randFn,
		timers:        make(map[string]*time.Timer),
	}, nil
}

var _ Service = (*orchestrator)(nil)

// StartCrafting places a job: it checks the recipe's preconditions in
// order (materials, stations, skill), deducts every material for the
// full quantity in one versioned update, and persists the job with its
// completion time.
func (o *orchestrator) StartCrafting(ctx context.Context, input *StartCraftingInput) (*StartCraftingOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("recipeID", input.RecipeID, vb)
	errors.ValidatePositive("quantity", int(input.Quantity), vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	recipe, ok := o.catalog.Recipe(input.RecipeID)
	if !ok {
		return nil, errors.NotFoundf("recipe %q not found", input.RecipeID)
	}

	needed := make(map[string]int32, len(recipe.Materials))
	for itemID, perUnit := range recipe.Materials {
		needed[itemID] = perUnit * input.Quantity
	}

	var skillLevel int32
	_, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.PlayerID,
		Mutate: func(c *entities.Character) error {
			for _, itemID := range sortedKeys(needed) {
				if have := c.ItemCount(itemID); have < needed[itemID] {
					return errors.FailedPreconditionf("need %d %s, have %d",
						needed[itemID], o.itemName(itemID), have)
				}
			}
			for _, stationID := range recipe.Stations {
				if c.ItemCount(stationID) < 1 {
					return errors.FailedPreconditionf("%s requires a %s",
						recipe.Name, o.itemName(stationID))
				}
			}
			skillLevel = disciplineLevel(c, recipe.Discipline)
			if skillLevel < recipe.SkillReq {
				return errors.FailedPreconditionf("%s requires %s level %d, have %d",
					recipe.Name, recipe.Discipline, recipe.SkillReq, skillLevel)
			}
			for itemID, qty := range needed {
				c.RemoveItem(itemID, qty)
			}
			return nil
		},
	})
	if err != nil {
		return nil, err
	}

	now := o.clock.Now()
	duration := time.Duration(recipe.DurationSeconds) * time.Second * time.Duration(input.Quantity)
	job := &entities.CraftJob{
		ID:          o.idGen.Generate(),
		CharacterID: input.PlayerID,
		RecipeID:    recipe.ID,
		Quantity:    input.Quantity,
		State:       entities.CraftJobActive,
		Materials:   needed,
		SkillLevel:  skillLevel,
		StartedAt:   now.Unix(),
		CompletesAt: now.Add(duration).Unix(),
		CreatedAt:   now.Unix(),
		UpdatedAt:   now.Unix(),
	}
	job.Seed = jobSeed(job.ID)

	created, err := o.jobRepo.Create(ctx, craftjobs.CreateInput{Job: job})
	if err != nil {
		// The materials are already gone; put them back before
		// surfacing the failure.
		o.refund(ctx, job)
		return nil, err
	}

	o.armTimer(created.Job)

	slog.InfoContext(ctx, "craft job started",
		"job_id", created.Job.ID,
		"character_id", input.PlayerID,
		"recipe_id", recipe.ID,
		"quantity", input.Quantity,
		"completes_at", created.Job.CompletesAt,
	)
	return &StartCraftingOutput{Job: created.Job}, nil
}

// CheckProgress reports how far along a job is. Polling a due job
// resolves it; polling a terminal job returns the recorded outcome
// unchanged.
func (o *orchestrator) CheckProgress(ctx context.Context, input *CheckProgressInput) (*CheckProgressOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("craftID", input.CraftID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	got, err := o.jobRepo.Get(ctx, craftjobs.GetInput{ID: input.CraftID})
	if err != nil {
		return nil, err
	}
	job := got.Job
	if job.CharacterID != input.PlayerID {
		return nil, errors.PermissionDenied("craft job belongs to another player")
	}

	if job.State.Terminal() {
		return &CheckProgressOutput{Job: job, Progress: 100}, nil
	}

	now := o.clock.Now().Unix()
	if !job.Due(now) {
		return &CheckProgressOutput{Job: job, Progress: progressAt(job, now)}, nil
	}

	resolved, err := o.resolve(ctx, job.ID)
	if err != nil {
		return nil, err
	}
	return &CheckProgressOutput{Job: resolved, Progress: 100}, nil
}

// CancelCrafting stops an unfinished job and refunds every deducted
// material. A job already past its completion time resolves instead:
// the work is done, only nobody had polled it yet.
func (o *orchestrator) CancelCrafting(ctx context.Context, input *CancelCraftingInput) (*CancelCraftingOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("craftID", input.CraftID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	got, err := o.jobRepo.Get(ctx, craftjobs.GetInput{ID: input.CraftID})
	if err != nil {
		return nil, err
	}
	job := got.Job
	if job.CharacterID != input.PlayerID {
		return nil, errors.PermissionDenied("craft job belongs to another player")
	}
	if job.State.Terminal() {
		return nil, errors.FailedPrecondition("craft job already resolved")
	}

	now := o.clock.Now()
	if job.Due(now.Unix()) {
		if _, err := o.resolve(ctx, job.ID); err != nil {
			return nil, err
		}
		return nil, errors.FailedPrecondition("craft job already finished, check its progress")
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	// Re-read under the lock in case the timer fired between the
	// checks above and here.
	got, err = o.jobRepo.Get(ctx, craftjobs.GetInput{ID: input.CraftID})
	if err != nil {
		return nil, err
	}
	job = got.Job
	if job.State.Terminal() {
		return nil, errors.FailedPrecondition("craft job already resolved")
	}

	job.State = entities.CraftJobCancelled
	job.ResolvedAt = now.Unix()
	job.UpdatedAt = now.Unix()
	updated, err := o.jobRepo.Update(ctx, craftjobs.UpdateInput{Job: job})
	if err != nil {
		return nil, err
	}
	o.stopTimer(job.ID)

	o.refund(ctx, updated.Job)

	slog.InfoContext(ctx, "craft job cancelled",
		"job_id", job.ID,
		"character_id", job.CharacterID,
		"recipe_id", job.RecipeID,
	)
	return &CancelCraftingOutput{Job: updated.Job, Refunded: updated.Job.Materials}, nil
}

// ListJobs lists a player's jobs, newest first.
func (o *orchestrator) ListJobs(ctx context.Context, input *ListJobsInput) (*ListJobsOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.PlayerID == "" {
		return nil, errors.InvalidArgument("playerID is required")
	}

	listed, err := o.jobRepo.ListByCharacterID(ctx, craftjobs.ListByCharacterIDInput{
		CharacterID: input.PlayerID,
	})
	if err != nil {
		return nil, err
	}

	jobs := listed.Jobs
	sort.Slice(jobs, func(i, j int) bool {
		if jobs[i].StartedAt != jobs[j].StartedAt {
			return jobs[i].StartedAt > jobs[j].StartedAt
		}
		return jobs[i].ID > jobs[j].ID
	})
	return &ListJobsOutput{Jobs: jobs}, nil
}

// ResumeJobs re-arms timers for everything still active in storage.
// Overdue jobs get a zero-delay timer, so they resolve as soon as the
// server is up.
func (o *orchestrator) ResumeJobs(ctx context.Context) (int, error) {
	listed, err := o.jobRepo.ListActive(ctx, craftjobs.ListActiveInput{})
	if err != nil {
		return 0, err
	}
	for _, job := range listed.Jobs {
		o.armTimer(job)
	}
	if n := len(listed.Jobs); n > 0 {
		slog.InfoContext(ctx, "resumed craft jobs", "count", n)
	}
	return len(listed.Jobs), nil
}

// Close stops every armed timer.
func (o *orchestrator) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	for id, timer := range o.timers {
		timer.Stop()
		delete(o.timers, id)
	}
}

// resolve settles a due job exactly once: it rolls success off the
// job's seed, persists the terminal state, and then grants the output
// items and discipline experience. Persisting first is what makes
// repeated polls idempotent; a grant that fails afterwards is logged
// rather than retried through a second roll.
func (o *orchestrator) resolve(ctx context.Context, jobID string) (*entities.CraftJob, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	got, err := o.jobRepo.Get(ctx, craftjobs.GetInput{ID: jobID})
	if err != nil {
		return nil, err
	}
	job := got.Job
	if job.State.Terminal() {
		return job, nil
	}

	now := o.clock.Now().Unix()
	recipe, ok := o.catalog.Recipe(job.RecipeID)
	if !ok {
		// The recipe left the catalog while the job ran. Nothing can
		// be produced, so the job fails; the materials stay spent like
		// any other failure.
		slog.WarnContext(ctx, "craft job references missing recipe",
			"job_id", job.ID,
			"recipe_id", job.RecipeID,
		)
		return o.settle(ctx, job, entities.CraftJobFailed, 0, now)
	}

	failChance := o.engine.CraftFailureChance(recipe.FailureChance, job.SkillLevel)
	r := o.rand(job.Seed)
	if r.Float64() < failChance {
		job, err := o.settle(ctx, job, entities.CraftJobFailed, 0, now)
		if err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "craft job failed",
			"job_id", job.ID,
			"character_id", job.CharacterID,
			"recipe_id", recipe.ID,
			"failure_chance", failChance,
		)
		return job, nil
	}

	produced := recipe.OutputQuantity * job.Quantity
	job, err = o.settle(ctx, job, entities.CraftJobSucceeded, produced, now)
	if err != nil {
		return nil, err
	}

	xp := recipe.XP * int64(job.Quantity)
	if _, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: job.CharacterID,
		Mutate: func(c *entities.Character) error {
			c.AddItem(recipe.OutputItemID, produced)
			creditDiscipline(c, recipe.Discipline, xp)
			return nil
		},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to grant craft output",
			"job_id", job.ID,
			"character_id", job.CharacterID,
			"item_id", recipe.OutputItemID,
			"error", err,
		)
	}

	if err := gameevents.Publish(ctx, o.eventBus, gameevents.TopicCraftCompleted, gameevents.Payload{
		CharacterID: job.CharacterID,
		CraftJobID:  job.ID,
		XP:          xp,
	}); err != nil {
		slog.WarnContext(ctx, "failed to publish craft completion",
			"job_id", job.ID,
			"error", err,
		)
	}

	slog.InfoContext(ctx, "craft job succeeded",
		"job_id", job.ID,
		"character_id", job.CharacterID,
		"recipe_id", recipe.ID,
		"produced", produced,
	)
	return job, nil
}

// settle persists a job's terminal state. Callers hold the lock.
func (o *orchestrator) settle(ctx context.Context, job *entities.CraftJob, state entities.CraftJobState, produced int32, now int64) (*entities.CraftJob, error) {
	job.State = state
	job.Produced = produced
	job.ResolvedAt = now
	job.UpdatedAt = now
	updated, err := o.jobRepo.Update(ctx, craftjobs.UpdateInput{Job: job})
	if err != nil {
		return nil, err
	}
	o.stopTimer(job.ID)
	return updated.Job, nil
}

// refund returns a job's deducted materials to the inventory. The
// deduction is already unwound exactly because the job records what it
// took, not what the recipe currently says.
func (o *orchestrator) refund(ctx context.Context, job *entities.CraftJob) {
	if len(job.Materials) == 0 {
		return
	}
	if _, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: job.CharacterID,
		Mutate: func(c *entities.Character) error {
			for itemID, qty := range job.Materials {
				c.AddItem(itemID, qty)
			}
			return nil
		},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to refund craft materials",
			"job_id", job.ID,
			"character_id", job.CharacterID,
			"error", err,
		)
	}
}

// armTimer schedules resolution at the job's completion time. The
// timer shares the resolve path with polling, so whichever runs first
// wins and the other finds a terminal job.
func (o *orchestrator) armTimer(job *entities.CraftJob) {
	delay := time.Unix(job.CompletesAt, 0).Sub(o.clock.Now())
	if delay < 0 {
		delay = 0
	}

	jobID := job.ID
	o.mu.Lock()
	defer o.mu.Unlock()
	if existing, ok := o.timers[jobID]; ok {
		existing.Stop()
	}
	o.timers[jobID] = time.AfterFunc(delay, func() {
		ctx := context.Background()
		if _, err := o.resolve(ctx, jobID); err != nil {
			slog.ErrorContext(ctx, "craft timer failed to resolve job",
				"job_id", jobID,
				"error", err,
			)
		}
	})
}

// stopTimer disarms a job's timer. Callers hold the lock.
func (o *orchestrator) stopTimer(jobID string) {
	if timer, ok := o.timers[jobID]; ok {
		timer.Stop()
		delete(o.timers, jobID)
	}
}

// itemName resolves an item's display name, falling back to the ID
// for anything not in the catalog.
func (o *orchestrator) itemName(itemID string) string {
	if item, ok := o.catalog.Item(itemID); ok {
		return item.Name
	}
	return itemID
}

// disciplineLevel returns the character's level in a crafting
// discipline. Disciplines open at level 1; only practice raises them.
func disciplineLevel(c *entities.Character, discipline string) int32 {
	if skill, ok := c.CraftSkills[discipline]; ok && skill.Level > 0 {
		return skill.Level
	}
	return 1
}

// creditDiscipline adds discipline experience, walking level-ups on
// the level*100 curve. Experience resets at each level.
func creditDiscipline(c *entities.Character, discipline string, xp int64) {
	if xp <= 0 {
		return
	}
	if c.CraftSkills == nil {
		c.CraftSkills = make(map[string]entities.CraftSkill)
	}
	skill := c.CraftSkills[discipline]
	if skill.Level < 1 {
		skill.Level = 1
	}
	skill.XP += xp
	for skill.XP >= int64(skill.Level)*craftXPPerLevel {
		skill.XP -= int64(skill.Level) * craftXPPerLevel
		skill.Level++
	}
	c.CraftSkills[discipline] = skill
}

// progressAt is the job's completion percentage at now, clamped below
// 100 so only resolution reports a finished job.
func progressAt(job *entities.CraftJob, now int64) float64 {
	total := job.CompletesAt - job.StartedAt
	if total <= 0 {
		return 99
	}
	pct := float64(now-job.StartedAt) / float64(total) * 100
	if pct < 0 {
		return 0
	}
	if pct >= 100 {
		return 99
	}
	return pct
}

// sortedKeys returns the map's keys in sorted order, for stable
// precondition messages.
func sortedKeys(m map[string]int32) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// jobSeed derives the job's deterministic success-roll seed from its
// ID.
func jobSeed(jobID string) int64 {
	h := fnv.New64a()
	_, _ = h.Write([]byte(jobID))
	return int64(h.Sum64() & 0xFFFFFFFF)
}
