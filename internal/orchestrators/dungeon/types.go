package dungeon

import (
	"github.com/nonamep-p/rpg-core/internal/entities"
)

// EncounterType classifies what a floor held.
type EncounterType string

// Encounter types
const (
	EncounterBoss    EncounterType = "boss"
	EncounterMonster EncounterType = "monster"
	EncounterEmpty   EncounterType = "empty"
)

// Encounter describes what the character met on a floor. Boss and
// monster encounters carry what the gateway needs to open the floor
// battle through the combat service.
type Encounter struct {
	Type      EncounterType
	Floor     int32
	MonsterID string
	Name      string

	// Multiplier is the floor's reward multiplier, passed through to
	// combat so a kill on this floor pays scaled gold and XP.
	Multiplier float64
}

// FloorRewards reports what one cleared floor banked into the run.
// BonusItemID is empty when the bonus drop did not land.
type FloorRewards struct {
	Gold        int64
	XP          int64
	BonusItemID string
}

// StartDungeonInput defines the input for entering a dungeon
type StartDungeonInput struct {
	PlayerID  string
	DungeonID string
}

// StartDungeonOutput defines the output for entering a dungeon
type StartDungeonOutput struct {
	Run *entities.DungeonRun
}

// AdvanceFloorInput defines the input for pushing one floor deeper
type AdvanceFloorInput struct {
	PlayerID string
}

// AdvanceFloorOutput carries the run after the advance, the encounter
// the floor produced, and what the floor banked. Completed is true when
// this call cleared the final floor and paid the run out; Run then
// holds the final totals.
type AdvanceFloorOutput struct {
	Run       *entities.DungeonRun
	Encounter *Encounter
	Rewards   *FloorRewards
	Completed bool
}

// ExitDungeonInput defines the input for abandoning a run early
type ExitDungeonInput struct {
	PlayerID string
}

// ExitDungeonOutput reports the final run state and the banked half of
// its accrued rewards.
type ExitDungeonOutput struct {
	Run   *entities.DungeonRun
	Gold  int64
	XP    int64
	Items map[string]int32
}

// SessionInput defines the input for looking up a player's active run
type SessionInput struct {
	PlayerID string
}

// SessionOutput defines the output for the session lookup
type SessionOutput struct {
	Run *entities.DungeonRun
}
