package craftjobs

import (
	"context"
	"encoding/json"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	redisclient "github.com/nonamep-p/rpg-core/internal/redis"
)

const (
	jobKeyPrefix         = "craftjob:"
	characterIndexPrefix = "craftjob:character:"
	activeIndexKey       = "craftjob:active"

	// Error messages
	errJobNil            = "job cannot be nil"
	errJobIDEmpty        = "job ID cannot be empty"
	errCharacterIDEmpty  = "character ID cannot be empty"
	errJobRecipeEmpty    = "job recipe ID cannot be empty"
	errJobQuantityNotPos = "job quantity must be positive"
)

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// RedisConfig contains configuration for the Redis craft-job repository.
type RedisConfig struct {
	Client redisclient.Client
	Clock  clock.Clock
}

// Validate validates the RedisConfig.
func (cfg *RedisConfig) Validate() error {
	if cfg == nil {
		return errors.InvalidArgument("config cannot be nil")
	}
	if cfg.Client == nil {
		return errors.InvalidArgument("client cannot be nil")
	}
	return nil
}

// NewRedis creates a new Redis-backed craft-job repository
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  c,
	}, nil
}

func validateJob(job *entities.CraftJob) error {
	if job == nil {
		return errors.InvalidArgument(errJobNil)
	}
	if job.ID == "" {
		return errors.InvalidArgument(errJobIDEmpty)
	}
	if job.CharacterID == "" {
		return errors.InvalidArgument(errCharacterIDEmpty)
	}
	if job.RecipeID == "" {
		return errors.InvalidArgument(errJobRecipeEmpty)
	}
	if job.Quantity < 1 {
		return errors.InvalidArgument(errJobQuantityNotPos)
	}
	return nil
}

func (r *redisRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if err := validateJob(input.Job); err != nil {
		return nil, err
	}

	key := jobKeyPrefix + input.Job.ID

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check existence")
	}
	if exists > 0 {
		return nil, errors.AlreadyExistsf("job with ID %s already exists", input.Job.ID)
	}

	now := r.clock.Now().Unix()
	input.Job.CreatedAt = now
	input.Job.UpdatedAt = now

	data, err := json.Marshal(input.Job)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal job")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.SAdd(ctx, characterIndexPrefix+input.Job.CharacterID, input.Job.ID)
	if !input.Job.State.Terminal() {
		pipe.SAdd(ctx, activeIndexKey, input.Job.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to create job")
	}

	return &CreateOutput{Job: input.Job}, nil
}

func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errJobIDEmpty)
	}

	result, err := r.client.Get(ctx, jobKeyPrefix+input.ID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("job with ID %s not found", input.ID)
		}
		return nil, errors.Wrapf(err, "failed to get job")
	}

	var job entities.CraftJob
	if err := json.Unmarshal([]byte(result), &job); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal job")
	}

	return &GetOutput{Job: &job}, nil
}

func (r *redisRepository) Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error) {
	if err := validateJob(input.Job); err != nil {
		return nil, err
	}

	key := jobKeyPrefix + input.Job.ID

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check existence")
	}
	if exists == 0 {
		return nil, errors.NotFoundf("job with ID %s not found", input.Job.ID)
	}

	input.Job.UpdatedAt = r.clock.Now().Unix()

	data, err := json.Marshal(input.Job)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal job")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	if input.Job.State.Terminal() {
		pipe.SRem(ctx, activeIndexKey, input.Job.ID)
	} else {
		pipe.SAdd(ctx, activeIndexKey, input.Job.ID)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to update job")
	}

	return &UpdateOutput{Job: input.Job}, nil
}

func (r *redisRepository) ListByCharacterID(
	ctx context.Context,
	input ListByCharacterIDInput,
) (*ListByCharacterIDOutput, error) {
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	jobs, err := r.listByIndex(ctx, characterIndexPrefix+input.CharacterID)
	if err != nil {
		return nil, err
	}

	return &ListByCharacterIDOutput{Jobs: jobs}, nil
}

func (r *redisRepository) ListActive(ctx context.Context, _ ListActiveInput) (*ListActiveOutput, error) {
	jobs, err := r.listByIndex(ctx, activeIndexKey)
	if err != nil {
		return nil, err
	}

	// The index can lag a resolution that crashed between writes; drop
	// anything terminal and repair the set.
	active := jobs[:0]
	for _, job := range jobs {
		if job.State.Terminal() {
			r.client.SRem(ctx, activeIndexKey, job.ID)
			continue
		}
		active = append(active, job)
	}

	return &ListActiveOutput{Jobs: active}, nil
}

// listByIndex loads every job an index set references, repairing
// entries whose job is gone.
func (r *redisRepository) listByIndex(ctx context.Context, indexKey string) ([]*entities.CraftJob, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get jobs from index %s", indexKey)
	}

	slog.DebugContext(ctx, "listing craft jobs",
		"index_key", indexKey,
		"count", len(ids))

	jobs := make([]*entities.CraftJob, 0, len(ids))
	for _, id := range ids {
		getOutput, err := r.Get(ctx, GetInput{ID: id})
		if err != nil {
			if errors.IsNotFound(err) {
				slog.WarnContext(ctx, "job not found, cleaning up index",
					"job_id", id,
					"index_key", indexKey)
				r.client.SRem(ctx, indexKey, id)
				continue
			}
			return nil, errors.Wrapf(err, "failed to get job %s", id)
		}
		jobs = append(jobs, getOutput.Job)
	}

	return jobs, nil
}
