// Package characters provides the interface for character persistence
package characters

//go:generate mockgen -destination=mock/mock_repository.go -package=charactersmock github.com/nonamep-p/rpg-core/internal/repositories/characters Repository

import (
	"context"

	"github.com/nonamep-p/rpg-core/internal/entities"
)

// Repository defines the interface for character persistence
type Repository interface {
	// Create creates a new character
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.AlreadyExists if the ID is taken or the user already has a character
	// Returns errors.Internal for storage failures
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a character by ID
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if character doesn't exist
	// Returns errors.Internal for storage failures
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// GetByUserID retrieves the character owned by a user
	// Returns errors.InvalidArgument for empty/invalid user IDs
	// Returns errors.NotFound if the user has no character
	// Returns errors.Internal for storage failures
	GetByUserID(ctx context.Context, input GetByUserIDInput) (*GetByUserIDOutput, error)

	// Update applies Mutate to the stored character under optimistic
	// locking and bumps Version on commit
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.NotFound if character doesn't exist
	// Returns errors.Unavailable when concurrent writers exhaust the retries
	// Returns whatever Mutate returns, unchanged, when it rejects the update
	// Returns errors.Internal for storage failures
	Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error)

	// Delete deletes a character by ID
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if character doesn't exist
	// Returns errors.Internal for storage failures
	Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error)

	// List retrieves every stored character
	// Returns errors.Internal for storage failures
	List(ctx context.Context, input ListInput) (*ListOutput, error)
}

// CreateInput defines the input for creating a character
type CreateInput struct {
	Character *entities.Character
}

// CreateOutput defines the output for creating a character
type CreateOutput struct {
	Character *entities.Character
}

// GetInput defines the input for getting a character
type GetInput struct {
	ID string
}

// GetOutput defines the output for getting a character
type GetOutput struct {
	Character *entities.Character
}

// GetByUserIDInput defines the input for getting a user's character
type GetByUserIDInput struct {
	UserID string
}

// GetByUserIDOutput defines the output for getting a user's character
type GetByUserIDOutput struct {
	Character *entities.Character
}

// UpdateInput defines the input for updating a character. Mutate runs
// against the freshly loaded record and must not change ID or UserID;
// returning an error aborts the update without retrying.
type UpdateInput struct {
	ID     string
	Mutate func(*entities.Character) error
}

// UpdateOutput defines the output for updating a character
type UpdateOutput struct {
	Character *entities.Character
}

// DeleteInput defines the input for deleting a character
type DeleteInput struct {
	ID string
}

// DeleteOutput defines the output for deleting a character
type DeleteOutput struct{}

// ListInput defines the input for listing characters
type ListInput struct{}

// ListOutput defines the output for listing characters
type ListOutput struct {
	Characters []*entities.Character
}
