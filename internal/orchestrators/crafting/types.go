package crafting

import (
	"github.com/nonamep-p/rpg-core/internal/entities"
)

// StartCraftingInput defines the input for placing a crafting job.
// Quantity is how many times the recipe runs; materials for all of it
// are deducted up front.
type StartCraftingInput struct {
	PlayerID string
	RecipeID string
	Quantity int32
}

// StartCraftingOutput defines the output for placing a job
type StartCraftingOutput struct {
	Job *entities.CraftJob
}

// CheckProgressInput defines the input for polling a job
type CheckProgressInput struct {
	PlayerID string
	CraftID  string
}

// CheckProgressOutput reports the job and how far along it is. A due
// job is resolved by the poll itself, so Job carries the outcome;
// terminal jobs report 100 regardless of when they resolved.
type CheckProgressOutput struct {
	Job      *entities.CraftJob
	Progress float64
}

// CancelCraftingInput defines the input for cancelling an active job
type CancelCraftingInput struct {
	PlayerID string
	CraftID  string
}

// CancelCraftingOutput reports the cancelled job and the materials
// returned to the inventory.
type CancelCraftingOutput struct {
	Job      *entities.CraftJob
	Refunded map[string]int32
}

// ListJobsInput defines the input for listing a player's jobs
type ListJobsInput struct {
	PlayerID string
}

// ListJobsOutput lists the player's jobs, newest first, terminal ones
// included.
type ListJobsOutput struct {
	Jobs []*entities.CraftJob
}
