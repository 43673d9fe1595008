package achievement

import "github.com/nonamep-p/rpg-core/internal/catalog"

// Status pairs an achievement definition with one character's
// standing on it.
type Status struct {
	Definition *catalog.AchievementDefinition

	Earned   bool
	EarnedAt int64

	// Progress is the current counter value the achievement watches.
	Progress int64
}

// ListAchievementsInput defines the input for a character's
// achievement board.
type ListAchievementsInput struct {
	CharacterID string
}

// ListAchievementsOutput defines the output for the board, in catalog
// order.
type ListAchievementsOutput struct {
	Achievements []Status
}

// EvaluateInput defines the input for re-checking a character's
// counters against every achievement.
type EvaluateInput struct {
	CharacterID string
}

// EvaluateOutput lists the achievements granted by this evaluation.
type EvaluateOutput struct {
	Granted []*catalog.AchievementDefinition
}
