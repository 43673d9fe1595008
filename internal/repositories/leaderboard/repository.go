// Package leaderboard provides ranked score boards backed by sorted sets
package leaderboard

//go:generate mockgen -destination=mock/mock_repository.go -package=leaderboardmock github.com/nonamep-p/rpg-core/internal/repositories/leaderboard Repository

import "context"

// Board names kept by the game. Boards are created on first write.
const (
	BoardGold   = "gold"
	BoardLevel  = "level"
	BoardRating = "rating"
)

// Entry is one ranked row. Rank is 1-based, highest score first.
type Entry struct {
	MemberID string
	Score    int64
	Rank     int64
}

// Repository defines the interface for leaderboard persistence
type Repository interface {
	// SetScore upserts a member's score on a board
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.Internal for storage failures
	SetScore(ctx context.Context, input SetScoreInput) (*SetScoreOutput, error)

	// Top retrieves the highest-scored entries on a board
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.Internal for storage failures
	Top(ctx context.Context, input TopInput) (*TopOutput, error)

	// Rank retrieves one member's entry on a board
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.NotFound if the member is not on the board
	// Returns errors.Internal for storage failures
	Rank(ctx context.Context, input RankInput) (*RankOutput, error)

	// Remove drops a member from a board, as on character deletion
	// Returns errors.InvalidArgument for validation failures
	// Returns errors.Internal for storage failures
	Remove(ctx context.Context, input RemoveInput) (*RemoveOutput, error)
}

// SetScoreInput defines the input for upserting a score
type SetScoreInput struct {
	Board    string
	MemberID string
	Score    int64
}

// SetScoreOutput defines the output for upserting a score
type SetScoreOutput struct{}

// TopInput defines the input for reading the top of a board
type TopInput struct {
	Board string
	Limit int32
}

// TopOutput defines the output for reading the top of a board
type TopOutput struct {
	Entries []Entry
}

// RankInput defines the input for reading one member's rank
type RankInput struct {
	Board    string
	MemberID string
}

// RankOutput defines the output for reading one member's rank
type RankOutput struct {
	Entry Entry
}

// RemoveInput defines the input for dropping a member
type RemoveInput struct {
	Board    string
	MemberID string
}

// RemoveOutput defines the output for dropping a member
type RemoveOutput struct{}
