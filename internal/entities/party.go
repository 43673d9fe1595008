package entities

// Party is a small temporary group for shared adventures. Unlike
// factions, parties have no progression; they exist to group up.
type Party struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	LeaderID string `json:"leader_id"`

	// MemberIDs includes the leader. Order is join order.
	MemberIDs []string `json:"member_ids"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// HasMember reports whether the character belongs to the party.
func (p *Party) HasMember(characterID string) bool {
	for _, id := range p.MemberIDs {
		if id == characterID {
			return true
		}
	}
	return false
}

// RemoveMember drops the character from the member list, reporting
// whether they were present.
func (p *Party) RemoveMember(characterID string) bool {
	for i, id := range p.MemberIDs {
		if id == characterID {
			p.MemberIDs = append(p.MemberIDs[:i], p.MemberIDs[i+1:]...)
			return true
		}
	}
	return false
}

// PartyInvite is a pending invitation into a party, stored with a TTL
// matching ExpiresAt.
type PartyInvite struct {
	PartyID     string `json:"party_id"`
	CharacterID string `json:"character_id"`
	InvitedBy   string `json:"invited_by"`
	CreatedAt   int64  `json:"created_at"`
	ExpiresAt   int64  `json:"expires_at"`
}
