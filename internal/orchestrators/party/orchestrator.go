// Package party owns small adventuring groups. Membership lives
// entirely in the party store's member index; a character is in at
// most one party, and the leader seat passes to the next member when
// the leader walks away.
package party

//go:generate mockgen -destination=mock/mock_service.go -package=partymock github.com/nonamep-p/rpg-core/internal/orchestrators/party Service

import (
	"context"
	"log/slog"
	"time"

	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/character"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/repositories/parties"
)

const (
	// memberCap is the party size limit, leader included.
	memberCap = 4

	// inviteTTL is how long a party invite stays claimable.
	inviteTTL = 5 * time.Minute
)

// Service defines the interface for party operations
type Service interface {
	CreateParty(ctx context.Context, input *CreatePartyInput) (*CreatePartyOutput, error)
	Invite(ctx context.Context, input *InviteInput) (*InviteOutput, error)
	AcceptInvite(ctx context.Context, input *AcceptInviteInput) (*AcceptInviteOutput, error)
	Leave(ctx context.Context, input *LeaveInput) (*LeaveOutput, error)
	Kick(ctx context.Context, input *KickInput) (*KickOutput, error)
	Disband(ctx context.Context, input *DisbandInput) (*DisbandOutput, error)
	PartyOf(ctx context.Context, input *PartyOfInput) (*PartyOfOutput, error)
}

// Config holds the dependencies for the party orchestrator
type Config struct {
	PartyRepo        parties.Repository
	CharacterService character.Service
	IDGenerator      idgen.Generator
	Clock            clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.PartyRepo == nil {
		vb.RequiredField("PartyRepo")
	}
	if c.CharacterService == nil {
		vb.RequiredField("CharacterService")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}

	return vb.Build()
}

type orchestrator struct {
	partyRepo parties.Repository
	charSvc   character.Service
	idGen     idgen.Generator
	clock     clock.Clock
}

// NewOrchestrator creates a new party orchestrator with the provided
// dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &orchestrator{
		partyRepo: cfg.PartyRepo,
		charSvc:   cfg.CharacterService,
		idGen:     cfg.IDGenerator,
		clock:     cfg.Clock,
	}, nil
}

var _ Service = (*orchestrator)(nil)

// CreateParty forms a new party with the creator as leader. A
// character cannot lead two parties at once.
func (o *orchestrator) CreateParty(ctx context.Context, input *CreatePartyInput) (*CreatePartyOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.LeaderID == "" {
		return nil, errors.InvalidArgument("leaderID is required")
	}

	if _, err := o.charSvc.GetCharacter(ctx, &character.GetCharacterInput{CharacterID: input.LeaderID}); err != nil {
		return nil, err
	}

	if _, err := o.partyRepo.GetByCharacterID(ctx, parties.GetByCharacterIDInput{
		CharacterID: input.LeaderID,
	}); err == nil {
		return nil, errors.FailedPrecondition("already in a party")
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	now := o.clock.Now().Unix()
	name := input.Name
	if name == "" {
		name = "Party"
	}
	created, err := o.partyRepo.Create(ctx, parties.CreateInput{
		Party: &entities.Party{
			ID:        o.idGen.Generate(),
			Name:      name,
			LeaderID:  input.LeaderID,
			MemberIDs: []string{input.LeaderID},
			CreatedAt: now,
			UpdatedAt: now,
		},
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "party created",
		"party_id", created.Party.ID,
		"leader_id", input.LeaderID,
	)
	return &CreatePartyOutput{Party: created.Party}, nil
}

// Invite extends a short-lived invitation. Only the leader invites,
// and the roster check counts the seats already spoken for.
func (o *orchestrator) Invite(ctx context.Context, input *InviteInput) (*InviteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("actorID", input.ActorID, vb)
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}
	if input.ActorID == input.CharacterID {
		return nil, errors.InvalidArgument("cannot invite yourself")
	}

	got, err := o.partyRepo.GetByCharacterID(ctx, parties.GetByCharacterIDInput{
		CharacterID: input.ActorID,
	})
	if err != nil {
		return nil, err
	}
	p := got.Party
	if p.LeaderID != input.ActorID {
		return nil, errors.PermissionDenied("only the leader can invite")
	}
	if len(p.MemberIDs) >= memberCap {
		return nil, errors.FailedPrecondition("party is full")
	}

	if _, err := o.charSvc.GetCharacter(ctx, &character.GetCharacterInput{CharacterID: input.CharacterID}); err != nil {
		return nil, err
	}
	if _, err := o.partyRepo.GetByCharacterID(ctx, parties.GetByCharacterIDInput{
		CharacterID: input.CharacterID,
	}); err == nil {
		return nil, errors.FailedPrecondition("already in a party")
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	now := o.clock.Now()
	created, err := o.partyRepo.CreateInvite(ctx, parties.CreateInviteInput{
		Invite: &entities.PartyInvite{
			PartyID:     p.ID,
			CharacterID: input.CharacterID,
			InvitedBy:   input.ActorID,
			CreatedAt:   now.Unix(),
			ExpiresAt:   now.Add(inviteTTL).Unix(),
		},
		TTL: inviteTTL,
	})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "party invite sent",
		"party_id", p.ID,
		"character_id", input.CharacterID,
	)
	return &InviteOutput{Invite: created.Invite}, nil
}

// AcceptInvite joins through a pending invite. The seat count is
// rechecked at accept time; an invite into a party that filled up in
// the meantime fails.
func (o *orchestrator) AcceptInvite(ctx context.Context, input *AcceptInviteInput) (*AcceptInviteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	errors.ValidateRequired("partyID", input.PartyID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	if _, err := o.partyRepo.GetInvite(ctx, parties.GetInviteInput{
		PartyID:     input.PartyID,
		CharacterID: input.CharacterID,
	}); err != nil {
		return nil, err
	}

	if _, err := o.partyRepo.GetByCharacterID(ctx, parties.GetByCharacterIDInput{
		CharacterID: input.CharacterID,
	}); err == nil {
		return nil, errors.FailedPrecondition("already in a party")
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	got, err := o.partyRepo.Get(ctx, parties.GetInput{ID: input.PartyID})
	if err != nil {
		return nil, err
	}
	p := got.Party
	if len(p.MemberIDs) >= memberCap {
		return nil, errors.FailedPrecondition("party is full")
	}

	p.MemberIDs = append(p.MemberIDs, input.CharacterID)
	p.UpdatedAt = o.clock.Now().Unix()
	updated, err := o.partyRepo.Update(ctx, parties.UpdateInput{Party: p})
	if err != nil {
		return nil, err
	}

	if _, err := o.partyRepo.DeleteInvite(ctx, parties.DeleteInviteInput{
		PartyID:     input.PartyID,
		CharacterID: input.CharacterID,
	}); err != nil {
		slog.WarnContext(ctx, "failed to consume party invite",
			"party_id", input.PartyID,
			"character_id", input.CharacterID,
			"error", err,
		)
	}

	slog.InfoContext(ctx, "character joined party",
		"party_id", p.ID,
		"character_id", input.CharacterID,
	)
	return &AcceptInviteOutput{Party: updated.Party}, nil
}

// Leave removes the character. A departing leader hands the seat to
// the next member in join order; the last member leaving disbands the
// party.
func (o *orchestrator) Leave(ctx context.Context, input *LeaveInput) (*LeaveOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	got, err := o.partyRepo.GetByCharacterID(ctx, parties.GetByCharacterIDInput{
		CharacterID: input.CharacterID,
	})
	if err != nil {
		return nil, err
	}
	p := got.Party

	p.RemoveMember(input.CharacterID)
	if len(p.MemberIDs) == 0 {
		if _, err := o.partyRepo.Delete(ctx, parties.DeleteInput{ID: p.ID}); err != nil {
			return nil, err
		}
		slog.InfoContext(ctx, "party disbanded",
			"party_id", p.ID,
			"character_id", input.CharacterID,
		)
		return &LeaveOutput{}, nil
	}

	if p.LeaderID == input.CharacterID {
		p.LeaderID = p.MemberIDs[0]
	}
	p.UpdatedAt = o.clock.Now().Unix()
	updated, err := o.partyRepo.Update(ctx, parties.UpdateInput{Party: p})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "character left party",
		"party_id", p.ID,
		"character_id", input.CharacterID,
		"leader_id", updated.Party.LeaderID,
	)
	return &LeaveOutput{Party: updated.Party}, nil
}

// Kick removes a member. Leader only, and the leader cannot kick
// themselves.
func (o *orchestrator) Kick(ctx context.Context, input *KickInput) (*KickOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("actorID", input.ActorID, vb)
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}
	if input.ActorID == input.CharacterID {
		return nil, errors.InvalidArgument("cannot kick yourself, leave instead")
	}

	got, err := o.partyRepo.GetByCharacterID(ctx, parties.GetByCharacterIDInput{
		CharacterID: input.ActorID,
	})
	if err != nil {
		return nil, err
	}
	p := got.Party
	if p.LeaderID != input.ActorID {
		return nil, errors.PermissionDenied("only the leader can kick")
	}
	if !p.RemoveMember(input.CharacterID) {
		return nil, errors.NotFound("not a member")
	}

	p.UpdatedAt = o.clock.Now().Unix()
	updated, err := o.partyRepo.Update(ctx, parties.UpdateInput{Party: p})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "member kicked from party",
		"party_id", p.ID,
		"character_id", input.CharacterID,
	)
	return &KickOutput{Party: updated.Party}, nil
}

// Disband dissolves the party. Leader only.
func (o *orchestrator) Disband(ctx context.Context, input *DisbandInput) (*DisbandOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.ActorID == "" {
		return nil, errors.InvalidArgument("actorID is required")
	}

	got, err := o.partyRepo.GetByCharacterID(ctx, parties.GetByCharacterIDInput{
		CharacterID: input.ActorID,
	})
	if err != nil {
		return nil, err
	}
	p := got.Party
	if p.LeaderID != input.ActorID {
		return nil, errors.PermissionDenied("only the leader can disband")
	}

	if _, err := o.partyRepo.Delete(ctx, parties.DeleteInput{ID: p.ID}); err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "party disbanded",
		"party_id", p.ID,
		"leader_id", input.ActorID,
	)
	return &DisbandOutput{}, nil
}

// PartyOf looks up the character's party. Being ungrouped is the
// normal case, not an error.
func (o *orchestrator) PartyOf(ctx context.Context, input *PartyOfInput) (*PartyOfOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	got, err := o.partyRepo.GetByCharacterID(ctx, parties.GetByCharacterIDInput{
		CharacterID: input.CharacterID,
	})
	if err != nil {
		if errors.IsNotFound(err) {
			return &PartyOfOutput{}, nil
		}
		return nil, err
	}
	return &PartyOfOutput{Party: got.Party}, nil
}
