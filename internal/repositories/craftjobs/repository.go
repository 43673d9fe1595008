// Package craftjobs provides the interface for crafting-job persistence
package craftjobs

//go:generate mockgen -destination=mock/mock_repository.go -package=craftjobsmock github.com/nonamep-p/rpg-core/internal/repositories/craftjobs Repository

import (
	"context"

	"github.com/nonamep-p/rpg-core/internal/entities"
)

// Repository defines the interface for crafting-job persistence. Jobs
// outlive battles and dungeon runs: they survive restarts so the
// scheduler can re-arm timers for anything still active.
type Repository interface {
	// Create stores a new job
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.AlreadyExists if a job with the same ID exists
	// Returns errors.Internal for storage failures
	Create(ctx context.Context, input CreateInput) (*CreateOutput, error)

	// Get retrieves a job by ID
	// Returns errors.InvalidArgument for empty/invalid IDs
	// Returns errors.NotFound if the job doesn't exist
	// Returns errors.Internal for storage failures
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// Update replaces a stored job, maintaining the active index
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.NotFound if the job doesn't exist
	// Returns errors.Internal for storage failures
	Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error)

	// ListByCharacterID retrieves every job a character has started,
	// terminal ones included
	// Returns errors.InvalidArgument for empty/invalid character IDs
	// Returns errors.Internal for storage failures
	ListByCharacterID(ctx context.Context, input ListByCharacterIDInput) (*ListByCharacterIDOutput, error)

	// ListActive retrieves every job still awaiting resolution, for
	// timer rehydration at startup
	// Returns errors.Internal for storage failures
	ListActive(ctx context.Context, input ListActiveInput) (*ListActiveOutput, error)
}

// CreateInput defines the input for storing a job
type CreateInput struct {
	Job *entities.CraftJob
}

// CreateOutput defines the output for storing a job
type CreateOutput struct {
	Job *entities.CraftJob
}

// GetInput defines the input for getting a job
type GetInput struct {
	ID string
}

// GetOutput defines the output for getting a job
type GetOutput struct {
	Job *entities.CraftJob
}

// UpdateInput defines the input for updating a job
type UpdateInput struct {
	Job *entities.CraftJob
}

// UpdateOutput defines the output for updating a job
type UpdateOutput struct {
	Job *entities.CraftJob
}

// ListByCharacterIDInput defines the input for listing a character's jobs
type ListByCharacterIDInput struct {
	CharacterID string
}

// ListByCharacterIDOutput defines the output for listing a character's jobs
type ListByCharacterIDOutput struct {
	Jobs []*entities.CraftJob
}

// ListActiveInput defines the input for listing active jobs
type ListActiveInput struct{}

// ListActiveOutput defines the output for listing active jobs
type ListActiveOutput struct {
	Jobs []*entities.CraftJob
}
