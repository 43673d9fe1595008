package leaderboard

import (
	"context"

	"github.com/redis/go-redis/v9"

	"github.com/nonamep-p/rpg-core/internal/errors"
	redisclient "github.com/nonamep-p/rpg-core/internal/redis"
)

// boardKeyPrefix is the key prefix for board sorted sets
const boardKeyPrefix = "leaderboard:"

// Error message constants
const (
	errBoardEmpty    = "board cannot be empty"
	errMemberIDEmpty = "member ID cannot be empty"
)

type redisRepository struct {
	client redisclient.Client
}

// RedisConfig holds the dependencies for the Redis repository
type RedisConfig struct {
	Client redisclient.Client
}

// Validate ensures all required dependencies are present
func (c *RedisConfig) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config cannot be nil")
	}
	if c.Client == nil {
		return errors.InvalidArgument("client cannot be nil")
	}
	return nil
}

// NewRedis creates a new Redis-backed leaderboard repository
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &redisRepository{client: cfg.Client}, nil
}

func boardKey(board string) string {
	return boardKeyPrefix + board
}

func (r *redisRepository) SetScore(ctx context.Context, input SetScoreInput) (*SetScoreOutput, error) {
	if input.Board == "" {
		return nil, errors.InvalidArgument(errBoardEmpty)
	}
	if input.MemberID == "" {
		return nil, errors.InvalidArgument(errMemberIDEmpty)
	}

	err := r.client.ZAdd(ctx, boardKey(input.Board), redis.Z{
		Score:  float64(input.Score),
		Member: input.MemberID,
	}).Err()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to set score on board %s", input.Board)
	}

	return &SetScoreOutput{}, nil
}

func (r *redisRepository) Top(ctx context.Context, input TopInput) (*TopOutput, error) {
	if input.Board == "" {
		return nil, errors.InvalidArgument(errBoardEmpty)
	}
	if input.Limit < 1 {
		return nil, errors.InvalidArgument("limit must be at least 1")
	}

	rows, err := r.client.ZRevRangeWithScores(ctx, boardKey(input.Board), 0, int64(input.Limit)-1).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read board %s", input.Board)
	}

	entries := make([]Entry, 0, len(rows))
	for i, row := range rows {
		memberID, _ := row.Member.(string)
		entries = append(entries, Entry{
			MemberID: memberID,
			Score:    int64(row.Score),
			Rank:     int64(i) + 1,
		})
	}

	return &TopOutput{Entries: entries}, nil
}

func (r *redisRepository) Rank(ctx context.Context, input RankInput) (*RankOutput, error) {
	if input.Board == "" {
		return nil, errors.InvalidArgument(errBoardEmpty)
	}
	if input.MemberID == "" {
		return nil, errors.InvalidArgument(errMemberIDEmpty)
	}

	key := boardKey(input.Board)
	rank, err := r.client.ZRevRank(ctx, key, input.MemberID).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("member %s is not on board %s", input.MemberID, input.Board)
		}
		return nil, errors.Wrapf(err, "failed to rank member on board %s", input.Board)
	}

	score, err := r.client.ZScore(ctx, key, input.MemberID).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read score on board %s", input.Board)
	}

	return &RankOutput{Entry: Entry{
		MemberID: input.MemberID,
		Score:    int64(score),
		Rank:     rank + 1,
	}}, nil
}

func (r *redisRepository) Remove(ctx context.Context, input RemoveInput) (*RemoveOutput, error) {
	if input.Board == "" {
		return nil, errors.InvalidArgument(errBoardEmpty)
	}
	if input.MemberID == "" {
		return nil, errors.InvalidArgument(errMemberIDEmpty)
	}

	if err := r.client.ZRem(ctx, boardKey(input.Board), input.MemberID).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to remove member from board %s", input.Board)
	}

	return &RemoveOutput{}, nil
}
