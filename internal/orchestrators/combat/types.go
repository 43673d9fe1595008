package combat

import (
	"github.com/nonamep-p/rpg-core/internal/entities"
)

// StartHuntInput defines the input for starting a battle against a
// catalog monster
type StartHuntInput struct {
	PlayerID  string
	MonsterID string
}

// StartHuntOutput defines the output for starting a hunt
type StartHuntOutput struct {
	Battle *entities.BattleSession
}

// StartDuelInput defines the input for challenging another character.
// The opponent fights as an AI-driven snapshot of its current stats.
type StartDuelInput struct {
	PlayerID   string
	OpponentID string
}

// StartDuelOutput defines the output for starting a duel
type StartDuelOutput struct {
	Battle *entities.BattleSession
}

// StartDungeonBattleInput defines the input for fighting a dungeon
// floor encounter. FloorMultiplier scales the monster's rewards; zero
// means unscaled.
type StartDungeonBattleInput struct {
	PlayerID        string
	MonsterID       string
	DungeonRunID    string
	FloorMultiplier float64
}

// StartDungeonBattleOutput defines the output for starting a dungeon
// battle
type StartDungeonBattleOutput struct {
	Battle *entities.BattleSession
}

// PerformActionInput defines the input for one player turn. SkillID is
// required for skill actions, ItemID for item actions.
type PerformActionInput struct {
	BattleID string
	PlayerID string
	Action   entities.ActionType
	SkillID  string
	ItemID   string
}

// PerformActionOutput carries the battle after the full round resolved
// and the log lines the round produced.
type PerformActionOutput struct {
	Battle *entities.BattleSession
	Lines  []string
}

// GetBattleInput defines the input for fetching a battle
type GetBattleInput struct {
	BattleID string
	PlayerID string
}

// GetBattleOutput defines the output for fetching a battle
type GetBattleOutput struct {
	Battle *entities.BattleSession
}

// ActiveBattleInput defines the input for looking up a player's
// current battle
type ActiveBattleInput struct {
	PlayerID string
}

// ActiveBattleOutput defines the output for the active-battle lookup
type ActiveBattleOutput struct {
	Battle *entities.BattleSession
}
