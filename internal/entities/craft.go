package entities

// CraftJob is an asynchronous crafting order. Materials are deducted
// when the job is placed; the outcome is rolled when the job finishes.
// Cancelling an unfinished job refunds every material.
type CraftJob struct {
	ID          string `json:"id"`
	CharacterID string `json:"character_id"`
	RecipeID    string `json:"recipe_id"`
	Quantity    int32  `json:"quantity"`

	State CraftJobState `json:"state"`

	// Materials records exactly what was deducted so a cancel can
	// refund it even if the recipe changes later.
	Materials map[string]int32 `json:"materials"`

	// SkillLevel is the crafter's discipline level when the job was
	// placed; the failure roll discounts off it.
	SkillLevel int32 `json:"skill_level"`

	StartedAt   int64 `json:"started_at"`
	CompletesAt int64 `json:"completes_at"`

	// ResolvedAt is when the job left the active state.
	ResolvedAt int64 `json:"resolved_at,omitempty"`

	// Produced is the item count granted on success, zero otherwise.
	Produced int32 `json:"produced,omitempty"`

	// Seed fixes the success roll so finalizing a job is
	// deterministic no matter which process gets there first.
	Seed int64 `json:"seed"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Due reports whether the job's work time has elapsed at now.
func (j *CraftJob) Due(now int64) bool {
	return now >= j.CompletesAt
}
