// Package market provides the interface for market listing persistence
package market

//go:generate mockgen -destination=mock/mock_repository.go -package=marketmock github.com/nonamep-p/rpg-core/internal/repositories/market Repository

import (
	"context"

	"github.com/nonamep-p/rpg-core/internal/entities"
)

// Repository defines the interface for market listing persistence.
// Listings carry a TTL matching their ExpiresAt; an expired listing
// reads as missing so escrowed items can be reclaimed lazily.
type Repository interface {
	// Create stores a new listing with a TTL running to its expiry
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.AlreadyExists if the ID is taken
	// Returns errors.Internal for storage failures
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a listing by ID
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if the listing doesn't exist or expired
	// Returns errors.Internal for storage failures
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// Update rewrites a listing in place, keeping its TTL. Used when
	// a partial purchase shrinks the lot
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.NotFound if the listing doesn't exist or expired
	// Returns errors.Internal for storage failures
	Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error)

	// Delete removes a listing, as on purchase or cancellation
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if the listing doesn't exist
	// Returns errors.Internal for storage failures
	Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error)

	// List retrieves every live listing
	// Returns errors.Internal for storage failures
	List(ctx context.Context, input ListInput) (*ListOutput, error)

	// ListBySeller retrieves a seller's live listings
	// Returns errors.InvalidArgument for empty/invalid seller IDs
	// Returns errors.Internal for storage failures
	ListBySeller(ctx context.Context, input ListBySellerInput) (*ListBySellerOutput, error)
}

// CreateInput defines the input for storing a listing
type CreateInput struct {
	Listing *entities.MarketListing
}

// CreateOutput defines the output for storing a listing
type CreateOutput struct {
	Listing *entities.MarketListing
}

// GetInput defines the input for getting a listing
type GetInput struct {
	ID string
}

// GetOutput defines the output for getting a listing
type GetOutput struct {
	Listing *entities.MarketListing
}

// UpdateInput defines the input for rewriting a listing
type UpdateInput struct {
	Listing *entities.MarketListing
}

// UpdateOutput defines the output for rewriting a listing
type UpdateOutput struct {
	Listing *entities.MarketListing
}

// DeleteInput defines the input for deleting a listing
type DeleteInput struct {
	ID string
}

// DeleteOutput defines the output for deleting a listing
type DeleteOutput struct {
	// Listing is the record as it stood at deletion, for refunds.
	Listing *entities.MarketListing
}

// ListInput defines the input for listing all live listings
type ListInput struct{}

// ListOutput defines the output for listing all live listings
type ListOutput struct {
	Listings []*entities.MarketListing
}

// ListBySellerInput defines the input for listing a seller's listings
type ListBySellerInput struct {
	SellerID string
}

// ListBySellerOutput defines the output for listing a seller's listings
type ListBySellerOutput struct {
	Listings []*entities.MarketListing
}
