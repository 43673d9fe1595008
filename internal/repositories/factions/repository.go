// Package factions provides the interface for faction persistence
package factions

//go:generate mockgen -destination=mock/mock_repository.go -package=factionsmock github.com/nonamep-p/rpg-core/internal/repositories/factions Repository

import (
	"context"
	"time"

	"github.com/nonamep-p/rpg-core/internal/entities"
)

// Repository defines the interface for faction persistence. Faction
// names are unique, case-insensitively. Invites live under their own
// keys with a TTL so expiry needs no sweeper.
type Repository interface {
	// Create stores a new faction
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.AlreadyExists if the ID or name is taken
	// Returns errors.Internal for storage failures
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a faction by ID
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if the faction doesn't exist
	// Returns errors.Internal for storage failures
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// GetByName retrieves a faction by its unique name
	// Returns errors.InvalidArgument for empty names
	// Returns errors.NotFound if no faction has the name
	// Returns errors.Internal for storage failures
	GetByName(ctx context.Context, input GetByNameInput) (*GetByNameOutput, error)

	// Update replaces a stored faction, moving the name index if the
	// name changed
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.NotFound if the faction doesn't exist
	// Returns errors.AlreadyExists if renaming onto a taken name
	// Returns errors.Internal for storage failures
	Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error)

	// Delete removes a faction and its name index
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if the faction doesn't exist
	// Returns errors.Internal for storage failures
	Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error)

	// List retrieves every faction
	// Returns errors.Internal for storage failures
	List(ctx context.Context, input ListInput) (*ListOutput, error)

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

	// ListInvitesByCharacter retrieves a character's pending invites
	// Returns errors.InvalidArgument for empty/invalid character IDs
	// Returns errors.Internal for storage failures
	ListInvitesByCharacter(ctx context.Context, input ListInvitesByCharacterInput) (*ListInvitesByCharacterOutput, error)
}

// CreateInput defines the input for storing a faction
type CreateInput struct {
	Faction *entities.Faction
}

// CreateOutput defines the output for storing a faction
type CreateOutput struct {
	Faction *entities.Faction
}

// GetInput defines the input for getting a faction
type GetInput struct {
	ID string
}

// GetOutput defines the output for getting a faction
type GetOutput struct {
	Faction *entities.Faction
}

// GetByNameInput defines the input for getting a faction by name
type GetByNameInput struct {
	Name string
}

// GetByNameOutput defines the output for getting a faction by name
type GetByNameOutput struct {
	Faction *entities.Faction
}

// UpdateInput defines the input for updating a faction
type UpdateInput struct {
	Faction *entities.Faction
}

// UpdateOutput defines the output for updating a faction
type UpdateOutput struct {
	Faction *entities.Faction
}

// DeleteInput defines the input for deleting a faction
type DeleteInput struct {
	ID string
}

// DeleteOutput defines the output for deleting a faction
type DeleteOutput struct{}

// ListInput defines the input for listing factions
type ListInput struct{}

// ListOutput defines the output for listing factions
type ListOutput struct {
	Factions []*entities.Faction
}

// CreateInviteInput defines the input for storing an invite
type CreateInviteInput struct {
	Invite *entities.FactionInvite
	TTL    time.Duration
}

// CreateInviteOutput defines the output for storing an invite
type CreateInviteOutput struct {
	Invite *entities.FactionInvite
}

// GetInviteInput defines the input for getting an invite
type GetInviteInput struct {
	FactionID   string
	CharacterID string
}

// GetInviteOutput defines the output for getting an invite
type GetInviteOutput struct {
	Invite *entities.FactionInvite
}

// DeleteInviteInput defines the input for deleting an invite
type DeleteInviteInput struct {
	FactionID   string
	CharacterID string
}

// DeleteInviteOutput defines the output for deleting an invite
type DeleteInviteOutput struct{}

// ListInvitesByCharacterInput defines the input for listing a character's invites
type ListInvitesByCharacterInput struct {
	CharacterID string
}

// ListInvitesByCharacterOutput defines the output for listing a character's invites
type ListInvitesByCharacterOutput struct {
	Invites []*entities.FactionInvite
}
