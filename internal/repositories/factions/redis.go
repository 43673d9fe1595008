package factions

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/redis/go-redis/v9"

	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	redisclient "github.com/nonamep-p/rpg-core/internal/redis"
)

const (
	// factionKeyPrefix is the key prefix for faction records
	factionKeyPrefix = "faction:"
	// nameIndexPrefix maps a normalized faction name to its ID
	nameIndexPrefix = "faction:name:"
	// allIndexKey is the set of every faction ID
	allIndexKey = "faction:all"
	// inviteKeyPrefix is the key prefix for pending invites
	inviteKeyPrefix = "faction:invite:"
	// characterInvitesPrefix is the per-character set of inviting faction IDs
	characterInvitesPrefix = "faction:invites:character:"
)

// Error message constants
const (
	errFactionNil       = "faction cannot be nil"
	errFactionIDEmpty   = "faction ID cannot be empty"
	errFactionNameEmpty = "faction name cannot be empty"
	errInviteNil        = "invite cannot be nil"
	errCharacterIDEmpty = "character ID cannot be empty"
	errMarshalFaction   = "failed to marshal faction"
	errUnmarshalFaction = "failed to unmarshal faction"
	errMarshalInvite    = "failed to marshal invite"
	errUnmarshalInvite  = "failed to unmarshal invite"
	errPersistFaction   = "failed to persist faction"
	errCheckExisting    = "failed to check existing faction"
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

// NewRedis creates a new Redis-backed faction repository
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

func factionKey(id string) string {
	return factionKeyPrefix + id
}

// nameKey normalizes the faction name so uniqueness ignores case and
// surrounding whitespace.
func nameKey(name string) string {
	return nameIndexPrefix + strings.ToLower(strings.TrimSpace(name))
}

func inviteKey(factionID, characterID string) string {
	return fmt.Sprintf("%s%s:%s", inviteKeyPrefix, factionID, characterID)
}

func characterInvitesKey(characterID string) string {
	return characterInvitesPrefix + characterID
}

func (r *redisRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if input.Faction == nil {
		return nil, errors.InvalidArgument(errFactionNil)
	}
	if input.Faction.ID == "" {
		return nil, errors.InvalidArgument(errFactionIDEmpty)
	}
	if strings.TrimSpace(input.Faction.Name) == "" {
		return nil, errors.InvalidArgument(errFactionNameEmpty)
	}

	key := factionKey(input.Faction.ID)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, errCheckExisting)
	}
	if exists > 0 {
		return nil, errors.AlreadyExistsf("faction with ID %s already exists", input.Faction.ID)
	}

	nameIdx := nameKey(input.Faction.Name)
	taken, err := r.client.Exists(ctx, nameIdx).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check faction name")
	}
	if taken > 0 {
		return nil, errors.AlreadyExistsf("faction name %q is already taken", input.Faction.Name)
	}

	now := r.clock.Now().Unix()
	input.Faction.CreatedAt = now
	input.Faction.UpdatedAt = now

	data, err := json.Marshal(input.Faction)
	if err != nil {
		return nil, errors.Wrapf(err, errMarshalFaction)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	pipe.Set(ctx, nameIdx, input.Faction.ID, 0)
	pipe.SAdd(ctx, allIndexKey, input.Faction.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, errPersistFaction)
	}

	return &CreateOutput{Faction: input.Faction}, nil
}

func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errFactionIDEmpty)
	}

	faction, err := r.getByKey(ctx, factionKey(input.ID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("faction %s not found", input.ID)
		}
		return nil, err
	}

	return &GetOutput{Faction: faction}, nil
}

func (r *redisRepository) GetByName(ctx context.Context, input GetByNameInput) (*GetByNameOutput, error) {
	if strings.TrimSpace(input.Name) == "" {
		return nil, errors.InvalidArgument(errFactionNameEmpty)
	}

	nameIdx := nameKey(input.Name)
	id, err := r.client.Get(ctx, nameIdx).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("no faction named %q", input.Name)
		}
		return nil, errors.Wrapf(err, "failed to resolve faction name")
	}

	faction, err := r.getByKey(ctx, factionKey(id))
	if err != nil {
		if errors.IsNotFound(err) {
			// The name index outlived its faction. Drop it so the name
			// frees up.
			slog.WarnContext(ctx, "removing stale faction name index",
				"name", input.Name,
				"faction_id", id,
			)
			if delErr := r.client.Del(ctx, nameIdx).Err(); delErr != nil {
				slog.ErrorContext(ctx, "failed to remove stale faction name index",
					"name", input.Name,
					"error", delErr,
				)
			}
			return nil, errors.NotFoundf("no faction named %q", input.Name)
		}
		return nil, err
	}

	return &GetByNameOutput{Faction: faction}, nil
}

func (r *redisRepository) Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error) {
	if input.Faction == nil {
		return nil, errors.InvalidArgument(errFactionNil)
	}
	if input.Faction.ID == "" {
		return nil, errors.InvalidArgument(errFactionIDEmpty)
	}
	if strings.TrimSpace(input.Faction.Name) == "" {
		return nil, errors.InvalidArgument(errFactionNameEmpty)
	}

	existing, err := r.getByKey(ctx, factionKey(input.Faction.ID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("faction %s not found", input.Faction.ID)
		}
		return nil, err
	}

	oldNameIdx := nameKey(existing.Name)
	newNameIdx := nameKey(input.Faction.Name)
	if newNameIdx != oldNameIdx {
		taken, err := r.client.Exists(ctx, newNameIdx).Result()
		if err != nil {
			return nil, errors.Wrapf(err, "failed to check faction name")
		}
		if taken > 0 {
			return nil, errors.AlreadyExistsf("faction name %q is already taken", input.Faction.Name)
		}
	}

	input.Faction.CreatedAt = existing.CreatedAt
	input.Faction.UpdatedAt = r.clock.Now().Unix()

	data, err := json.Marshal(input.Faction)
	if err != nil {
		return nil, errors.Wrapf(err, errMarshalFaction)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, factionKey(input.Faction.ID), data, 0)
	if newNameIdx != oldNameIdx {
		pipe.Del(ctx, oldNameIdx)
		pipe.Set(ctx, newNameIdx, input.Faction.ID, 0)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, errPersistFaction)
	}

	return &UpdateOutput{Faction: input.Faction}, nil
}

func (r *redisRepository) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errFactionIDEmpty)
	}

	faction, err := r.getByKey(ctx, factionKey(input.ID))
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, errors.NotFoundf("faction %s not found", input.ID)
		}
		return nil, err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, factionKey(input.ID))
	pipe.Del(ctx, nameKey(faction.Name))
	pipe.SRem(ctx, allIndexKey, input.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to delete faction")
	}

	return &DeleteOutput{}, nil
}

func (r *redisRepository) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	ids, err := r.client.SMembers(ctx, allIndexKey).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list factions")
	}

	factions := make([]*entities.Faction, 0, len(ids))
	for _, id := range ids {
		faction, err := r.getByKey(ctx, factionKey(id))
		if err != nil {
			if errors.IsNotFound(err) {
				slog.WarnContext(ctx, "removing stale faction index entry",
					"faction_id", id,
				)
				if remErr := r.client.SRem(ctx, allIndexKey, id).Err(); remErr != nil {
					slog.ErrorContext(ctx, "failed to remove stale faction index entry",
						"faction_id", id,
						"error", remErr,
					)
				}
				continue
			}
			return nil, err
		}
		factions = append(factions, faction)
	}

	return &ListOutput{Factions: factions}, nil
}

func (r *redisRepository) CreateInvite(ctx context.Context, input CreateInviteInput) (*CreateInviteOutput, error) {
	if input.Invite == nil {
		return nil, errors.InvalidArgument(errInviteNil)
	}
	if input.Invite.FactionID == "" {
		return nil, errors.InvalidArgument(errFactionIDEmpty)
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
		return nil, errors.Wrapf(err, errMarshalInvite)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, inviteKey(input.Invite.FactionID, input.Invite.CharacterID), data, input.TTL)
	pipe.SAdd(ctx, characterInvitesKey(input.Invite.CharacterID), input.Invite.FactionID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to persist invite")
	}

	return &CreateInviteOutput{Invite: input.Invite}, nil
}

func (r *redisRepository) GetInvite(ctx context.Context, input GetInviteInput) (*GetInviteOutput, error) {
	if input.FactionID == "" {
		return nil, errors.InvalidArgument(errFactionIDEmpty)
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	key := inviteKey(input.FactionID, input.CharacterID)
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("no invite to faction %s for character %s", input.FactionID, input.CharacterID)
		}
		return nil, errors.Wrapf(err, "failed to get invite")
	}

	var invite entities.FactionInvite
	if err := json.Unmarshal(data, &invite); err != nil {
		return nil, errors.Wrapf(err, errUnmarshalInvite)
	}

	// The TTL usually handles expiry; double-check in case the key is
	// still draining.
	if invite.ExpiresAt <= r.clock.Now().Unix() {
		if delErr := r.client.Del(ctx, key).Err(); delErr != nil {
			slog.WarnContext(ctx, "failed to delete expired invite",
				"faction_id", input.FactionID,
				"character_id", input.CharacterID,
				"error", delErr,
			)
		}
		return nil, errors.NotFoundf("no invite to faction %s for character %s", input.FactionID, input.CharacterID)
	}

	return &GetInviteOutput{Invite: &invite}, nil
}

func (r *redisRepository) DeleteInvite(ctx context.Context, input DeleteInviteInput) (*DeleteInviteOutput, error) {
	if input.FactionID == "" {
		return nil, errors.InvalidArgument(errFactionIDEmpty)
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, inviteKey(input.FactionID, input.CharacterID))
	pipe.SRem(ctx, characterInvitesKey(input.CharacterID), input.FactionID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to delete invite")
	}

	return &DeleteInviteOutput{}, nil
}

func (r *redisRepository) ListInvitesByCharacter(ctx context.Context, input ListInvitesByCharacterInput) (*ListInvitesByCharacterOutput, error) {
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	indexKey := characterInvitesKey(input.CharacterID)
	factionIDs, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list invites")
	}

	invites := make([]*entities.FactionInvite, 0, len(factionIDs))
	for _, factionID := range factionIDs {
		output, err := r.GetInvite(ctx, GetInviteInput{
			FactionID:   factionID,
			CharacterID: input.CharacterID,
		})
		if err != nil {
			if errors.IsNotFound(err) {
				// Invite expired out from under the index.
				if remErr := r.client.SRem(ctx, indexKey, factionID).Err(); remErr != nil {
					slog.ErrorContext(ctx, "failed to remove stale invite index entry",
						"character_id", input.CharacterID,
						"faction_id", factionID,
						"error", remErr,
					)
				}
				continue
			}
			return nil, err
		}
		invites = append(invites, output.Invite)
	}

	return &ListInvitesByCharacterOutput{Invites: invites}, nil
}

// getByKey loads and decodes one faction record.
func (r *redisRepository) getByKey(ctx context.Context, key string) (*entities.Faction, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFound("faction not found")
		}
		return nil, errors.Wrapf(err, "failed to get faction")
	}

	var faction entities.Faction
	if err := json.Unmarshal(data, &faction); err != nil {
		return nil, errors.Wrapf(err, errUnmarshalFaction)
	}

	return &faction, nil
}
