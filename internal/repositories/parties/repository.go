// Package parties provides the interface for party persistence
package parties

//go:generate mockgen -destination=mock/mock_repository.go -package=partiesmock github.com/nonamep-p/rpg-core/internal/repositories/parties Repository

import (
	"context"
	"time"

	"github.com/nonamep-p/rpg-core/internal/entities"
)

// Repository defines the interface for party persistence. Each
// character belongs to at most one party, tracked by a member index
// the repository keeps in step with the stored member list.
type Repository interface {
	// Create stores a new party and indexes its members
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.AlreadyExists if the ID is taken
	// Returns errors.Internal for storage failures
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a party by ID
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if the party doesn't exist
	// Returns errors.Internal for storage failures
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// GetByCharacterID retrieves the party a character belongs to
	// Returns errors.InvalidArgument for empty/invalid character IDs
	// Returns errors.NotFound if the character is not in a party
	// Returns errors.Internal for storage failures
	GetByCharacterID(ctx context.Context, input GetByCharacterIDInput) (*GetByCharacterIDOutput, error)

	// Update replaces a stored party, reconciling the member index
	// with the new member list
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.NotFound if the party doesn't exist
	// Returns errors.Internal for storage failures
	Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error)

	// Delete removes a party and unindexes its members
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if the party doesn't exist
	// Returns errors.Internal for storage failures
	Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error)

	// CreateInvite stores a pending invite with a TTL
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.Internal for storage failures
	CreateInvite(ctx context.Context, input CreateInviteInput) (*CreateInviteOutput, error)

	// GetInvite retrieves a pending invite
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if the invite doesn't exist or expired
	// Returns errors.Internal for storage failures
	GetInvite(ctx context.Context, input GetInviteInput) (*GetInviteOutput, error)

	// DeleteInvite removes a pending invite
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.Internal for storage failures
	DeleteInvite(ctx context.Context, input DeleteInviteInput) (*DeleteInviteOutput, error)
}

// CreateInput defines the input for storing a party
type CreateInput struct {
	Party *entities.Party
}

// CreateOutput defines the output for storing a party
type CreateOutput struct {
	Party *entities.Party
}

// GetInput defines the input for getting a party
type GetInput struct {
	ID string
}

// GetOutput defines the output for getting a party
type GetOutput struct {
	Party *entities.Party
}

// GetByCharacterIDInput defines the input for resolving a character's party
type GetByCharacterIDInput struct {
	CharacterID string
}

// GetByCharacterIDOutput defines the output for resolving a character's party
type GetByCharacterIDOutput struct {
	Party *entities.Party
}

// UpdateInput defines the input for updating a party
type UpdateInput struct {
	Party *entities.Party
}

// UpdateOutput defines the output for updating a party
type UpdateOutput struct {
	Party *entities.Party
}

// DeleteInput defines the input for deleting a party
type DeleteInput struct {
	ID string
}

// DeleteOutput defines the output for deleting a party
type DeleteOutput struct{}

// CreateInviteInput defines the input for storing an invite
type CreateInviteInput struct {
	Invite *entities.PartyInvite
	TTL    time.Duration
}

// CreateInviteOutput defines the output for storing an invite
type CreateInviteOutput struct {
	Invite *entities.PartyInvite
}

// GetInviteInput defines the input for getting an invite
type GetInviteInput struct {
	PartyID     string
	CharacterID string
}

// GetInviteOutput defines the output for getting an invite
type GetInviteOutput struct {
	Invite *entities.PartyInvite
}

// DeleteInviteInput defines the input for deleting an invite
type DeleteInviteInput struct {
	PartyID     string
	CharacterID string
}

// DeleteInviteOutput defines the output for deleting an invite
type DeleteInviteOutput struct{}
