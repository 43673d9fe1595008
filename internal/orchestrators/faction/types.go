package faction

import "github.com/nonamep-p/rpg-core/internal/entities"

// ListFactionsInput defines the input for listing factions.
type ListFactionsInput struct{}

// ListFactionsOutput defines the output for listing factions.
type ListFactionsOutput struct {
	Factions []*entities.Faction
}

// GetFactionInput defines the input for fetching a faction.
type GetFactionInput struct {
	FactionID string
}

// GetFactionOutput defines the output for fetching a faction.
type GetFactionOutput struct {
	Faction *entities.Faction
}

// JoinInput defines the input for joining a faction directly.
type JoinInput struct {
	CharacterID string
	FactionID   string
}

// JoinOutput defines the output for joining a faction.
type JoinOutput struct {
	Faction *entities.Faction
}

// LeaveInput defines the input for leaving a faction.
type LeaveInput struct {
	CharacterID string
}

// LeaveOutput defines the output for leaving a faction.
type LeaveOutput struct {
	Faction *entities.Faction
}

// InviteInput defines the input for inviting a character.
type InviteInput struct {
	ActorID     string
	FactionID   string
	CharacterID string
}

// InviteOutput defines the output for inviting a character.
type InviteOutput struct {
	Invite *entities.FactionInvite
}

// AcceptInviteInput defines the input for accepting an invite.
type AcceptInviteInput struct {
	CharacterID string
	FactionID   string
}

// AcceptInviteOutput defines the output for accepting an invite.
type AcceptInviteOutput struct {
	Faction *entities.Faction
}

// RevokeInviteInput defines the input for withdrawing an invite. The
// invited character may decline their own invite; otherwise the actor
// must be an owner or officer.
type RevokeInviteInput struct {
	ActorID     string
	FactionID   string
	CharacterID string
}

// RevokeInviteOutput defines the output for withdrawing an invite.
type RevokeInviteOutput struct{}

// InvitesForInput defines the input for listing a character's invites.
type InvitesForInput struct {
	CharacterID string
}

// InvitesForOutput defines the output for listing a character's invites.
type InvitesForOutput struct {
	Invites []*entities.FactionInvite
}

// PromoteInput defines the input for promoting a member to officer.
type PromoteInput struct {
	ActorID     string
	FactionID   string
	CharacterID string
}

// PromoteOutput defines the output for promoting a member.
type PromoteOutput struct {
	Faction *entities.Faction
}

// DemoteInput defines the input for demoting an officer to member.
type DemoteInput struct {
	ActorID     string
	FactionID   string
	CharacterID string
}

// DemoteOutput defines the output for demoting an officer.
type DemoteOutput struct {
	Faction *entities.Faction
}

// KickInput defines the input for removing a member.
type KickInput struct {
	ActorID     string
	FactionID   string
	CharacterID string
}

// KickOutput defines the output for removing a member.
type KickOutput struct {
	Faction *entities.Faction
}

// TransferOwnershipInput defines the input for handing the faction to
// another member.
type TransferOwnershipInput struct {
	ActorID     string
	FactionID   string
	CharacterID string
}

// TransferOwnershipOutput defines the output for the handover.
type TransferOwnershipOutput struct {
	Faction *entities.Faction
}

// ContributeInput defines the input for donating gold to the treasury.
type ContributeInput struct {
	CharacterID string
	Amount      int64
}

// ContributeOutput defines the output for a donation.
type ContributeOutput struct {
	Faction *entities.Faction

	// LeveledUp reports whether the donation raised the faction level.
	LeveledUp bool
}

// RankingsInput defines the input for the faction rankings.
type RankingsInput struct{}

// RankingsOutput lists factions by level, then experience, descending.
type RankingsOutput struct {
	Factions []*entities.Faction
}
