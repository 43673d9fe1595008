package party

import "github.com/nonamep-p/rpg-core/internal/entities"

// CreatePartyInput defines the input for forming a party.
type CreatePartyInput struct {
	LeaderID string
	Name     string
}

// CreatePartyOutput defines the output for forming a party.
type CreatePartyOutput struct {
	Party *entities.Party
}

// InviteInput defines the input for inviting a character. Leader only.
type InviteInput struct {
	ActorID     string
	CharacterID string
}

// InviteOutput defines the output for inviting a character.
type InviteOutput struct {
	Invite *entities.PartyInvite
}

// AcceptInviteInput defines the input for accepting a party invite.
type AcceptInviteInput struct {
	CharacterID string
	PartyID     string
}

// AcceptInviteOutput defines the output for accepting a party invite.
type AcceptInviteOutput struct {
	Party *entities.Party
}

// LeaveInput defines the input for leaving a party.
type LeaveInput struct {
	CharacterID string
}

// LeaveOutput defines the output for leaving a party. Party is nil
// when the departure disbanded it.
type LeaveOutput struct {
	Party *entities.Party
}

// KickInput defines the input for removing a member. Leader only.
type KickInput struct {
	ActorID     string
	CharacterID string
}

// KickOutput defines the output for removing a member.
type KickOutput struct {
	Party *entities.Party
}

// DisbandInput defines the input for dissolving a party. Leader only.
type DisbandInput struct {
	ActorID string
}

// DisbandOutput defines the output for dissolving a party.
type DisbandOutput struct{}

// PartyOfInput defines the input for looking up a character's party.
type PartyOfInput struct {
	CharacterID string
}

// PartyOfOutput defines the output for the lookup. Party is nil when
// the character is not grouped.
type PartyOfOutput struct {
	Party *entities.Party
}
