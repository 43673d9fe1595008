package parties

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	redisclient "github.com/nonamep-p/rpg-core/internal/redis"
)

const (
	// partyKeyPrefix is the key prefix for party records
	partyKeyPrefix = "party:"
	// memberIndexPrefix maps a character ID to their party ID
	memberIndexPrefix = "party:member:"
	// inviteKeyPrefix is the key prefix for pending invites
	inviteKeyPrefix = "party:invite:"
)

// Error message constants
const (
	errPartyNil         = "party cannot be nil"
	errPartyIDEmpty     = "party ID cannot be empty"
	errLeaderIDEmpty    = "leader ID cannot be empty"
	errMembersEmpty     = "party must have at least one member"
	errInviteNil        = "invite cannot be nil"
	errCharacterIDEmpty = "character ID cannot be empty"
	errMarshalParty     = "failed to marshal party"
	errUnmarshalParty   = "failed to unmarshal party"
	errPersistParty     = "failed to persist party"
)

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// RedisConfig holds the dependencies for the Redis repository
type RedisConfig struct {
	Client redisclient.Client
	Clock  clock.Clock
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

// NewRedis creates a new Redis-backed party repository
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	repoClock := cfg.Clock
	if repoClock == nil {
		repoClock = clock.New()
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  repoClock,
	}, nil
}

func partyKey(id string) string {
	return partyKeyPrefix + id
}

func memberKey(characterID string) string {
	return memberIndexPrefix + characterID
}

func inviteKey(partyID, characterID string) string {
	return fmt.Sprintf("%s%s:%s", inviteKeyPrefix, partyID, characterID)
}

func validateParty(p *entities.Party) error {
	if p == nil {
		return errors.InvalidArgument(errPartyNil)
	}
	if p.ID == "" {
		return errors.InvalidArgument(errPartyIDEmpty)
	}
	if p.LeaderID == "" {
		return errors.InvalidArgument(errLeaderIDEmpty)
	}
	if len(p.MemberIDs) == 0 {
		return errors.InvalidArgument(errMembersEmpty)
	}
	if !p.HasMember(p.LeaderID) {
		return errors.InvalidArgument("leader must be in the member list")
	}
	return nil
}

func (r *redisRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if err := validateParty(input.Party); err != nil {
		return nil, err
	}

	key := partyKey(input.Party.ID)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check existing party")
	}
	if exists > 0 {
		return nil, errors.AlreadyExistsf("party with ID %s already exists", input.Party.ID)
	}

	now := r.clock.Now().Unix()
	input.Party.CreatedAt = now
	input.Party.UpdatedAt = now

	data, err := json.Marshal(input.Party)
	if err != nil {
		return nil, errors.Wrapf(err, errMarshalParty)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	for _, memberID := range input.Party.MemberIDs {
		pipe.Set(ctx, memberKey(memberID), input.Party.ID, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, errPersistParty)
	}

	return &CreateOutput{Party: input.Party}, nil
}

func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errPartyIDEmpty)
	}

	party, err := r.getByKey(ctx, partyKey(input.ID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("party %s not found", input.ID)
		}
		return nil, err
	}

	return &GetOutput{Party: party}, nil
}

func (r *redisRepository) GetByCharacterID(ctx context.Context, input GetByCharacterIDInput) (*GetByCharacterIDOutput, error) {
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	idxKey := memberKey(input.CharacterID)
	partyID, err := r.client.Get(ctx, idxKey).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("character %s is not in a party", input.CharacterID)
		}
		return nil, errors.Wrapf(err, "failed to resolve party membership")
	}

	party, err := r.getByKey(ctx, partyKey(partyID))
	if err != nil {
		if errors.IsNotFound(err) {
			// The member index outlived its party.
			slog.WarnContext(ctx, "removing stale party member index",
				"character_id", input.CharacterID,
				"party_id", partyID,
			)
			if delErr := r.client.Del(ctx, idxKey).Err(); delErr != nil {
				slog.ErrorContext(ctx, "failed to remove stale party member index",
					"character_id", input.CharacterID,
					"error", delErr,
				)
			}
			return nil, errors.NotFoundf("character %s is not in a party", input.CharacterID)
		}
		return nil, err
	}

	return &GetByCharacterIDOutput{Party: party}, nil
}

func (r *redisRepository) Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error) {
	if err := validateParty(input.Party); err != nil {
		return nil, err
	}

	existing, err := r.getByKey(ctx, partyKey(input.Party.ID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("party %s not found", input.Party.ID)
		}
		return nil, err
	}

	input.Party.CreatedAt = existing.CreatedAt
	input.Party.UpdatedAt = r.clock.Now().Unix()

	data, err := json.Marshal(input.Party)
	if err != nil {
		return nil, errors.Wrapf(err, errMarshalParty)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, partyKey(input.Party.ID), data, 0)
	// Reconcile the member index with the new roster.
	for _, memberID := range existing.MemberIDs {
		if !input.Party.HasMember(memberID) {
			pipe.Del(ctx, memberKey(memberID))
		}
	}
	for _, memberID := range input.Party.MemberIDs {
		if !existing.HasMember(memberID) {
			pipe.Set(ctx, memberKey(memberID), input.Party.ID, 0)
		}
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, errPersistParty)
	}

	return &UpdateOutput{Party: input.Party}, nil
}

func (r *redisRepository) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errPartyIDEmpty)
	}

	party, err := r.getByKey(ctx, partyKey(input.ID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("party %s not found", input.ID)
		}
		return nil, err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, partyKey(input.ID))
	for _, memberID := range party.MemberIDs {
		pipe.Del(ctx, memberKey(memberID))
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to delete party")
	}

	return &DeleteOutput{}, nil
}

func (r *redisRepository) CreateInvite(ctx context.Context, input CreateInviteInput) (*CreateInviteOutput, error) {
	if input.Invite == nil {
		return nil, errors.InvalidArgument(errInviteNil)
	}
	if input.Invite.PartyID == "" {
		return nil, errors.InvalidArgument(errPartyIDEmpty)
	}
	if input.Invite.CharacterID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}
	if input.TTL <= 0 {
		return nil, errors.InvalidArgument("invite TTL must be positive")
	}

	now := r.clock.Now()
	input.Invite.CreatedAt = now.Unix()
	input.Invite.ExpiresAt = now.Add(input.TTL).Unix()

	data, err := json.Marshal(input.Invite)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal invite")
	}

	key := inviteKey(input.Invite.PartyID, input.Invite.CharacterID)
	if err := r.client.Set(ctx, key, data, input.TTL).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to persist invite")
	}

	return &CreateInviteOutput{Invite: input.Invite}, nil
}

func (r *redisRepository) GetInvite(ctx context.Context, input GetInviteInput) (*GetInviteOutput, error) {
	if input.PartyID == "" {
		return nil, errors.InvalidArgument(errPartyIDEmpty)
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	key := inviteKey(input.PartyID, input.CharacterID)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("no invite to party %s for character %s", input.PartyID, input.CharacterID)
		}
		return nil, errors.Wrapf(err, "failed to get invite")
	}

	var invite entities.PartyInvite
	if err := json.Unmarshal(data, &invite); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal invite")
	}

	// The TTL usually handles expiry; double-check in case the key is
	// still draining.
	if invite.ExpiresAt <= r.clock.Now().Unix() {
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			slog.WarnContext(ctx, "failed to delete expired invite",
				"party_id", input.PartyID,
				"character_id", input.CharacterID,
				"error", delErr,
			)
		}
		return nil, errors.NotFoundf("no invite to party %s for character %s", input.PartyID, input.CharacterID)
	}

	return &GetInviteOutput{Invite: &invite}, nil
}

func (r *redisRepository) DeleteInvite(ctx context.Context, input DeleteInviteInput) (*DeleteInviteOutput, error) {
	if input.PartyID == "" {
		return nil, errors.InvalidArgument(errPartyIDEmpty)
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	if err := r.client.Del(ctx, inviteKey(input.PartyID, input.CharacterID)).Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to delete invite")
	}

	return &DeleteInviteOutput{}, nil
}

// getByKey loads and decodes one party record.
func (r *redisRepository) getByKey(ctx context.Context, key string) (*entities.Party, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFound("party not found")
		}
		return nil, errors.Wrapf(err, "failed to get party")
	}

	var party entities.Party
	if err := json.Unmarshal(data, &party); err != nil {
		return nil, errors.Wrapf(err, errUnmarshalParty)
	}

	return &party, nil
}
