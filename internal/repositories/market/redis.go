package market

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	redisclient "github.com/nonamep-p/rpg-core/internal/redis"
)

const (
	// listingKeyPrefix is the key prefix for listing records
	listingKeyPrefix = "market:listing:"
	// sellerIndexPrefix is the per-seller set of listing IDs
	sellerIndexPrefix = "market:seller:"
	// allIndexKey is the set of every live listing ID
	allIndexKey = "market:all"
)

// Error message constants
const (
	errListingNil       = "listing cannot be nil"
	errListingIDEmpty   = "listing ID cannot be empty"
	errSellerIDEmpty    = "seller ID cannot be empty"
	errMarshalListing   = "failed to marshal listing"
	errUnmarshalListing = "failed to unmarshal listing"
	errPersistListing   = "failed to persist listing"
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

// NewRedis creates a new Redis-backed market repository
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

func listingKey(id string) string {
	return listingKeyPrefix + id
}

func sellerKey(sellerID string) string {
	return sellerIndexPrefix + sellerID
}

func (r *redisRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if input.Listing == nil {
		return nil, errors.InvalidArgument(errListingNil)
	}
	if input.Listing.ID == "" {
		return nil, errors.InvalidArgument(errListingIDEmpty)
	}
	if input.Listing.SellerID == "" {
		return nil, errors.InvalidArgument(errSellerIDEmpty)
	}
	if input.Listing.ItemID == "" {
		return nil, errors.InvalidArgument("item ID cannot be empty")
	}
	if input.Listing.Quantity < 1 {
		return nil, errors.InvalidArgument("quantity must be at least 1")
	}
	if input.Listing.PricePerUnit < 1 {
		return nil, errors.InvalidArgument("price per unit must be at least 1")
	}

	now := r.clock.Now()
	ttl := time.Duration(input.Listing.ExpiresAt-now.Unix()) * time.Second
	if ttl <= 0 {
		return nil, errors.InvalidArgument("listing expiry must be in the future")
	}
	input.Listing.CreatedAt = now.Unix()

	key := listingKey(input.Listing.ID)
	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check existing listing")
	}
	if exists > 0 {
		return nil, errors.AlreadyExistsf("listing with ID %s already exists", input.Listing.ID)
	}

	data, err := json.Marshal(input.Listing)
	if err != nil {
		return nil, errors.Wrapf(err, errMarshalListing)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.SAdd(ctx, sellerKey(input.Listing.SellerID), input.Listing.ID)
	pipe.SAdd(ctx, allIndexKey, input.Listing.ID)

	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, errPersistListing)
	}

	return &CreateOutput{Listing: input.Listing}, nil
}

func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errListingIDEmpty)
	}

	listing, err := r.getLive(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	return &GetOutput{Listing: listing}, nil
}

func (r *redisRepository) Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error) {
	if input.Listing == nil {
		return nil, errors.InvalidArgument(errListingNil)
	}
	if input.Listing.ID == "" {
		return nil, errors.InvalidArgument(errListingIDEmpty)
	}
	if input.Listing.Quantity < 1 {
		return nil, errors.InvalidArgument("quantity must be at least 1")
	}

	// Confirm the listing is still live before overwriting it.
	if _, err := r.getLive(ctx, input.Listing.ID); err != nil {
		return nil, err
	}

	data, err := json.Marshal(input.Listing)
	if err != nil {
		return nil, errors.Wrapf(err, errMarshalListing)
	}

	if err := r.client.Set(ctx, listingKey(input.Listing.ID), data, redis.KeepTTL).Err(); err != nil {
		return nil, errors.Wrapf(err, errPersistListing)
	}

	return &UpdateOutput{Listing: input.Listing}, nil
}

func (r *redisRepository) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errListingIDEmpty)
	}

	listing, err := r.getLive(ctx, input.ID)
	if err != nil {
		return nil, err
	}

	if err := r.removeListing(ctx, input.ID, listing.SellerID); err != nil {
		return nil, errors.Wrapf(err, "failed to delete listing")
	}

	return &DeleteOutput{Listing: listing}, nil
}

func (r *redisRepository) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	listings, err := r.listByIndex(ctx, allIndexKey)
	if err != nil {
		return nil, err
	}
	return &ListOutput{Listings: listings}, nil
}

func (r *redisRepository) ListBySeller(ctx context.Context, input ListBySellerInput) (*ListBySellerOutput, error) {
	if input.SellerID == "" {
		return nil, errors.InvalidArgument(errSellerIDEmpty)
	}

	listings, err := r.listByIndex(ctx, sellerKey(input.SellerID))
	if err != nil {
		return nil, err
	}
	return &ListBySellerOutput{Listings: listings}, nil
}

// getLive loads a listing and treats anything past its stamped expiry
// as missing, dropping the leftovers. The TTL usually gets there first.
func (r *redisRepository) getLive(ctx context.Context, id string) (*entities.MarketListing, error) {
	data, err := r.client.Get(ctx, listingKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("listing %s not found", id)
		}
		return nil, errors.Wrapf(err, "failed to get listing")
	}

	var listing entities.MarketListing
	if err := json.Unmarshal(data, &listing); err != nil {
		return nil, errors.Wrapf(err, errUnmarshalListing)
	}

	if listing.ExpiresAt <= r.clock.Now().Unix() {
		if remErr := r.removeListing(ctx, id, listing.SellerID); remErr != nil {
			slog.WarnContext(ctx, "failed to remove expired listing",
				"listing_id", id,
				"error", remErr,
			)
		}
		return nil, errors.NotFoundf("listing %s not found", id)
	}

	return &listing, nil
}

// removeListing drops the record and both index entries in one shot.
func (r *redisRepository) removeListing(ctx context.Context, id, sellerID string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, listingKey(id))
	pipe.SRem(ctx, sellerKey(sellerID), id)
	pipe.SRem(ctx, allIndexKey, id)

	_, err := pipe.Exec(ctx)
	return err
}

// listByIndex walks one index set, pruning entries whose listing
// expired or vanished.
func (r *redisRepository) listByIndex(ctx context.Context, indexKey string) ([]*entities.MarketListing, error) {
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to list listings")
	}

	listings := make([]*entities.MarketListing, 0, len(ids))
	for _, id := range ids {
		listing, err := r.getLive(ctx, id)
		if err != nil {
			if errors.IsNotFound(err) {
				// The record expired out from under the index. getLive
				// already pruned what it could; cover the case where
				// the key vanished before it ran.
				if remErr := r.client.SRem(ctx, indexKey, id).Err(); remErr != nil {
					slog.ErrorContext(ctx, "failed to remove stale listing index entry",
						"listing_id", id,
						"error", remErr,
					)
				}
				continue
			}
			return nil, err
		}
		listings = append(listings, listing)
	}

	return listings, nil
}
