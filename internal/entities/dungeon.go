package entities

// DungeonRun is one character's progress through a dungeon. The run
// accrues rewards floor by floor and pays them out when the character
// completes the final floor or banks half by exiting early. A run that
// ends in defeat pays nothing.
type DungeonRun struct {
	ID          string `json:"id"`
	CharacterID string `json:"character_id"`
	DungeonID   string `json:"dungeon_id"`

	// Floor is the floor the character currently stands on, 1-based.
	Floor int32 `json:"floor"`

	// MaxFloor snapshots the dungeon's floor count at entry so later
	// catalog edits cannot strand an active run.
	MaxFloor int32 `json:"max_floor"`

	State DungeonState `json:"state"`

	// BattleID is set while State is in_battle.
	BattleID string `json:"battle_id,omitempty"`

	FloorsCleared int32 `json:"floors_cleared"`

	// Accrued rewards, held until the run resolves.
	Gold  int64            `json:"gold"`
	XP    int64            `json:"xp"`
	Items map[string]int32 `json:"items,omitempty"`

	Seed int64 `json:"seed"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// OnFinalFloor reports whether the character is fighting through the
// last floor of the dungeon.
func (d *DungeonRun) OnFinalFloor() bool {
	return d.Floor >= d.MaxFloor
}
