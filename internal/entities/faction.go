package entities

// Faction is a player-run guild. Donations feed the treasury and the
// faction's experience; every member shares the archetype's perk.
type Faction struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Emoji       string `json:"emoji,omitempty"`

	// Archetype references the faction archetype catalog and fixes
	// the perk members receive.
	Archetype string `json:"archetype"`

	OwnerID string `json:"owner_id"`

	// Members maps character ID to membership. The owner appears here
	// too, with RoleOwner.
	Members map[string]FactionMember `json:"members"`

	Level    int32 `json:"level"`
	XP       int64 `json:"xp"`
	Treasury int64 `json:"treasury"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// FactionMember is one character's membership record.
type FactionMember struct {
	Role     FactionRole `json:"role"`
	JoinedAt int64       `json:"joined_at"`

	// Donated is the member's lifetime gold contribution.
	Donated int64 `json:"donated"`
}

// MemberCount returns the number of members including the owner.
func (f *Faction) MemberCount() int32 {
	return int32(len(f.Members))
}

// RoleOf returns the member's role, or false if they do not belong.
func (f *Faction) RoleOf(characterID string) (FactionRole, bool) {
	m, ok := f.Members[characterID]
	if !ok {
		return "", false
	}
	return m.Role, true
}

// FactionInvite is a pending invitation into a faction. Invites expire
// and are stored with a TTL matching ExpiresAt.
type FactionInvite struct {
	FactionID   string `json:"faction_id"`
	CharacterID string `json:"character_id"`
	InvitedBy   string `json:"invited_by"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at"`
}
