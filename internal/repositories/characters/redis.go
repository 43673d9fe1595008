package characters

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
	characterKeyPrefix = "character:"
	userIndexPrefix    = "character:user:"
	allIndexKey        = "character:all"

	// casMaxAttempts bounds the optimistic-locking retry loop in Update.
	casMaxAttempts = 3

	// Error messages
	errCharacterNil     = "character cannot be nil"
	errCharacterIDEmpty = "character ID cannot be empty"
	errUserIDEmpty      = "user ID cannot be empty"
	errMutateNil        = "mutate function cannot be nil"
)

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// RedisConfig contains configuration for the Redis character repository.
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

// NewRedis creates a new Redis-backed character repository
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	// Use real clock if none provided
	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  c,
	}, nil
}

func (r *redisRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if input.Character == nil {
		return nil, errors.InvalidArgument(errCharacterNil)
	}
	if input.Character.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}
	if input.Character.UserID == "" {
		return nil, errors.InvalidArgument(errUserIDEmpty)
	}

	key := characterKeyPrefix + input.Character.ID
	userKey := userIndexPrefix + input.Character.UserID

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check existence")
	}
	if exists > 0 {
		return nil, errors.AlreadyExistsf("character with ID %s already exists", input.Character.ID)
	}

	// One character per user: the user index doubles as the guard.
	exists, err = r.client.Exists(ctx, userKey).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check user index")
	}
	if exists > 0 {
		return nil, errors.AlreadyExistsf("user %s already has a character", input.Character.UserID)
	}

	now := r.clock.Now().Unix()
	input.Character.Version = 1
	input.Character.CreatedAt = now
	input.Character.UpdatedAt = now

	data, err := json.Marshal(input.Character)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal character")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, 0) // No TTL for characters
	pipe.Set(ctx, userKey, input.Character.ID, 0)
	pipe.SAdd(ctx, allIndexKey, input.Character.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to create character")
	}

	return &CreateOutput{Character: input.Character}, nil
}

func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	key := characterKeyPrefix + input.ID
	result, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("character with ID %s not found", input.ID)
		}
		return nil, errors.Wrapf(err, "failed to get character")
	}

	var ch entities.Character
	if err := json.Unmarshal([]byte(result), &ch); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal character")
	}

	return &GetOutput{Character: &ch}, nil
}

func (r *redisRepository) GetByUserID(ctx context.Context, input GetByUserIDInput) (*GetByUserIDOutput, error) {
	if input.UserID == "" {
		return nil, errors.InvalidArgument(errUserIDEmpty)
	}

	userKey := userIndexPrefix + input.UserID
	id, err := r.client.Get(ctx, userKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("no character for user %s", input.UserID)
		}
		return nil, errors.Wrapf(err, "failed to resolve user index")
	}

	getOutput, err := r.Get(ctx, GetInput{ID: id})
	if err != nil {
		// The character is gone but the index survived; clean it up.
		if errors.IsNotFound(err) {
			slog.WarnContext(ctx, "user index points at missing character, cleaning up",
				"user_id", input.UserID,
				"character_id", id)
			r.client.Del(ctx, userKey)
			return nil, errors.NotFoundf("no character for user %s", input.UserID)
		}
		return nil, err
	}

	return &GetByUserIDOutput{Character: getOutput.Character}, nil
}

func (r *redisRepository) Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}
	if input.Mutate == nil {
		return nil, errors.InvalidArgument(errMutateNil)
	}

	key := characterKeyPrefix + input.ID

	var updated *entities.Character
	apply := func(tx *redis.Tx) error {
		result, err := tx.Get(ctx, key).Result()
		if err != nil {
			if err == redis.Nil {
				return errors.NotFoundf("character with ID %s not found", input.ID)
			}
			return errors.Wrapf(err, "failed to get character")
		}

		var ch entities.Character
		if err := json.Unmarshal([]byte(result), &ch); err != nil {
			return errors.Wrapf(err, "failed to unmarshal character")
		}

		if err := input.Mutate(&ch); err != nil {
			return err
		}

		ch.Version++
		ch.UpdatedAt = r.clock.Now().Unix()

		data, err := json.Marshal(&ch)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal character")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			return nil
		})
		if err != nil {
			return err
		}

		updated = &ch
		return nil
	}

	for attempt := 1; attempt <= casMaxAttempts; attempt++ {
		err := r.client.Watch(ctx, apply, key)
		if err == nil {
			return &UpdateOutput{Character: updated}, nil
		}
		if err == redis.TxFailedErr {
			slog.DebugContext(ctx, "character update conflicted, retrying",
				"character_id", input.ID,
				"attempt", attempt)
			continue
		}
		return nil, err
	}

	return nil, errors.Unavailablef("character %s is under concurrent modification", input.ID)
}

func (r *redisRepository) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	getOutput, err := r.Get(ctx, GetInput(input))
	if err != nil {
		return nil, err
	}
	ch := getOutput.Character

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, characterKeyPrefix+input.ID)
	pipe.Del(ctx, userIndexPrefix+ch.UserID)
	pipe.SRem(ctx, allIndexKey, input.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to delete character")
	}

	return &DeleteOutput{}, nil
}

func (r *redisRepository) List(ctx context.Context, _ ListInput) (*ListOutput, error) {
	ids, err := r.client.SMembers(ctx, allIndexKey).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get characters from index %s", allIndexKey)
	}

	slog.DebugContext(ctx, "listing characters",
		"index_key", allIndexKey,
		"count", len(ids))

	characters := make([]*entities.Character, 0, len(ids))
	for _, id := range ids {
		getOutput, err := r.Get(ctx, GetInput{ID: id})
		if err != nil {
			// If the character is gone, clean up the index.
			if errors.IsNotFound(err) {
				slog.WarnContext(ctx, "character not found, cleaning up index",
					"character_id", id,
					"index_key", allIndexKey)
				r.client.SRem(ctx, allIndexKey, id)
				continue
			}
			return nil, errors.Wrapf(err, "failed to get character %s", id)
		}
		characters = append(characters, getOutput.Character)
	}

	return &ListOutput{Characters: characters}, nil
}
