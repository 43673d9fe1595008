package entities

// BattleSession is one turn-based battle between a player and an
// opponent. Sessions live in the combat registry only; they leave the
// registry when the battle resolves or times out.
type BattleSession struct {
	ID   string     `json:"id"`
	Kind BattleKind `json:"kind"`

	// CharacterID owns the battle. Duels also set OpponentID, dungeon
	// battles also set DungeonRunID.
	CharacterID  string `json:"character_id"`
	OpponentID   string `json:"opponent_id,omitempty"`
	DungeonRunID string `json:"dungeon_run_id,omitempty"`

	// FloorMultiplier scales victory rewards for dungeon battles.
	// Zero means unscaled.
	FloorMultiplier float64 `json:"floor_multiplier,omitempty"`

	Player   *Combatant `json:"player"`
	Opponent *Combatant `json:"opponent"`

	// Turn counts resolved player actions, starting at 0 for the
	// first. Each phase derives its random stream from Seed and Turn.
	Turn int32 `json:"turn"`
	Seed int64 `json:"seed"`

	State BattleState `json:"state"`

	// Winner is the combatant ID that won, or "fled" when the player
	// escaped. Empty while the battle is active.
	Winner string `json:"winner,omitempty"`

	Rewards *BattleRewards `json:"rewards,omitempty"`

	Log []string `json:"log"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Combatant is one side of a battle with everything combat math needs,
// snapshotted at battle start so mid-battle character edits cannot
// skew an ongoing fight.
type Combatant struct {
	ID   string        `json:"id"`
	Name string        `json:"name"`
	Kind CombatantKind `json:"kind"`

	// MonsterID references the monster catalog for monster combatants.
	MonsterID string `json:"monster_id,omitempty"`

	Level int32 `json:"level"`

	HP    int32 `json:"hp"`
	MaxHP int32 `json:"max_hp"`
	SP    int32 `json:"sp"`
	MaxSP int32 `json:"max_sp"`

	Attack       int32 `json:"attack"`
	Defense      int32 `json:"defense"`
	Speed        int32 `json:"speed"`
	Intelligence int32 `json:"intelligence"`
	Luck         int32 `json:"luck"`
	Agility      int32 `json:"agility"`

	Accuracy    int32   `json:"accuracy"`
	Evasion     int32   `json:"evasion"`
	CritChance  float64 `json:"crit_chance"`
	CritDamage  float64 `json:"crit_damage"`
	Penetration int32   `json:"penetration"`

	// Element is the combatant's defensive affinity; DamageType is
	// the element its plain attacks deal.
	Element    Element `json:"element"`
	DamageType Element `json:"damage_type"`

	// Shield absorbs a flat amount of incoming damage and is granted
	// by defending.
	Shield int32 `json:"shield"`

	// Combo counts consecutive successful hits and scales damage.
	Combo int32 `json:"combo"`

	// Defending halves the next hit taken this round.
	Defending bool `json:"defending,omitempty"`

	// UltimateUsed limits the ultimate to once per battle.
	UltimateUsed bool `json:"ultimate_used,omitempty"`

	Statuses []StatusEffect `json:"statuses"`

	SkillIDs []string `json:"skill_ids,omitempty"`

	// Cooldowns maps skill IDs to turns left before reuse.
	Cooldowns map[string]int32 `json:"cooldowns,omitempty"`

	// Style records the stance the monster AI rolled for its latest
	// attack. Empty for players.
	Style MonsterStyle `json:"style,omitempty"`

	// Boss marks dungeon floor bosses for reward bookkeeping.
	Boss bool `json:"boss,omitempty"`

	GoldReward int64 `json:"gold_reward,omitempty"`
	XPReward   int64 `json:"xp_reward,omitempty"`
}

// Alive reports whether the combatant can still fight.
func (c *Combatant) Alive() bool {
	return c.HP > 0
}

// HasStatus reports whether a status of the given type is active.
func (c *Combatant) HasStatus(t StatusType) bool {
	for _, s := range c.Statuses {
		if s.Type == t {
			return true
		}
	}
	return false
}

// StatusEffect is an active status on a combatant. Magnitudes are
// fixed per type by the combat rules; only the remaining duration is
// instance state.
type StatusEffect struct {
	Type StatusType `json:"type"`

	// TurnsRemaining decrements once per tick and the status is
	// removed when it reaches zero.
	TurnsRemaining int32 `json:"turns_remaining"`

	// Source names whatever inflicted the status, for log lines.
	Source string `json:"source,omitempty"`
}

// BattleRewards is what a won battle pays out.
type BattleRewards struct {
	Gold  int64            `json:"gold"`
	XP    int64            `json:"xp"`
	Items map[string]int32 `json:"items,omitempty"`
}

// WinnerFled is the sentinel winner value recorded when the player
// escapes a battle instead of resolving it.
const WinnerFled = "fled"
