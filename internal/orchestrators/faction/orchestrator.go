// Package faction owns guild rosters: joining and leaving, the
// officer hierarchy, invites, and treasury donations. The faction
// record is the source of truth for membership; the character record
// carries a faction stamp kept in step through the character service,
// and roster edits are reverted if the stamp cannot follow.
package faction

//go:generate mockgen -destination=mock/mock_service.go -package=factionmock github.com/nonamep-p/rpg-core/internal/orchestrators/faction Service

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/orchestrators/character"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/repositories/factions"
)

const (
	// memberCap is the roster limit, owner included.
	memberCap = 50

	// inviteTTL is how long a faction invite stays claimable.
	inviteTTL = 24 * time.Hour

	// treasuryXPDivisor converts donated gold into faction experience.
	treasuryXPDivisor = 10

	// xpPerLevel is the faction experience one level represents.
	xpPerLevel = 1000
)

// Service defines the interface for faction operations
type Service interface {
	ListFactions(ctx context.Context, input *ListFactionsInput) (*ListFactionsOutput, error)
	GetFaction(ctx context.Context, input *GetFactionInput) (*GetFactionOutput, error)
	Join(ctx context.Context, input *JoinInput) (*JoinOutput, error)
	Leave(ctx context.Context, input *LeaveInput) (*LeaveOutput, error)
	Invite(ctx context.Context, input *InviteInput) (*InviteOutput, error)
	AcceptInvite(ctx context.Context, input *AcceptInviteInput) (*AcceptInviteOutput, error)
	RevokeInvite(ctx context.Context, input *RevokeInviteInput) (*RevokeInviteOutput, error)
	InvitesFor(ctx context.Context, input *InvitesForInput) (*InvitesForOutput, error)
	Promote(ctx context.Context, input *PromoteInput) (*PromoteOutput, error)
	Demote(ctx context.Context, input *DemoteInput) (*DemoteOutput, error)
	Kick(ctx context.Context, input *KickInput) (*KickOutput, error)
	TransferOwnership(ctx context.Context, input *TransferOwnershipInput) (*TransferOwnershipOutput, error)
	Contribute(ctx context.Context, input *ContributeInput) (*ContributeOutput, error)
	Rankings(ctx context.Context, input *RankingsInput) (*RankingsOutput, error)

	// SeedDefaults creates one faction per catalog archetype if none
	// with that archetype's name exists yet. The server runs it once
	// at startup.
	SeedDefaults(ctx context.Context) error
}

// Config holds the dependencies for the faction orchestrator
type Config struct {
	CharacterService character.Service
	FactionRepo      factions.Repository
	Catalog          *catalog.Catalog
	IDGenerator      idgen.Generator
	Clock            clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.CharacterService == nil {
		vb.RequiredField("CharacterService")
	}
	if c.FactionRepo == nil {
		vb.RequiredField("FactionRepo")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
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
	charSvc     character.Service
	factionRepo factions.Repository
	catalog     *catalog.Catalog
	idGen       idgen.Generator
	clock       clock.Clock
}

// NewOrchestrator creates a new faction orchestrator with the
// provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &orchestrator{
		charSvc:     cfg.CharacterService,
		factionRepo: cfg.FactionRepo,
		catalog:     cfg.Catalog,
		idGen:       cfg.IDGenerator,
		clock:       cfg.Clock,
	}, nil
}

var _ Service = (*orchestrator)(nil)

// SeedDefaults provisions the standing factions from the archetype
// catalog. Existing factions are left alone, so reruns are harmless.
func (o *orchestrator) SeedDefaults(ctx context.Context) error {
	for _, arch := range o.catalog.Archetypes() {
		_, err := o.factionRepo.GetByName(ctx, factions.GetByNameInput{Name: arch.Name})
		if err == nil {
			continue
		}
		if !errors.IsNotFound(err) {
			return err
		}

		now := o.clock.Now().Unix()
		created, err := o.factionRepo.Create(ctx, factions.CreateInput{
			Faction: &entities.Faction{
				ID:        o.idGen.Generate(),
				Name:      arch.Name,
				Archetype: arch.ID,
				Level:     1,
				Members:   map[string]entities.FactionMember{},
				CreatedAt: now,
				UpdatedAt: now,
			},
		})
		if err != nil {
			return errors.Wrapf(err, "failed to seed faction %q", arch.Name)
		}
		slog.InfoContext(ctx, "seeded default faction",
			"faction_id", created.Faction.ID,
			"name", arch.Name,
			"archetype", arch.ID,
		)
	}
	return nil
}

// ListFactions lists every faction.
func (o *orchestrator) ListFactions(ctx context.Context, input *ListFactionsInput) (*ListFactionsOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	listed, err := o.factionRepo.List(ctx, factions.ListInput{})
	if err != nil {
		return nil, err
	}
	return &ListFactionsOutput{Factions: listed.Factions}, nil
}

// GetFaction fetches one faction.
func (o *orchestrator) GetFaction(ctx context.Context, input *GetFactionInput) (*GetFactionOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.FactionID == "" {
		return nil, errors.InvalidArgument("factionID is required")
	}
	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: input.FactionID})
	if err != nil {
		return nil, err
	}
	return &GetFactionOutput{Faction: got.Faction}, nil
}

// Join enrolls a character. The first member of an empty faction
// becomes its owner. A pending invite for the same faction is
// consumed so it cannot be replayed.
func (o *orchestrator) Join(ctx context.Context, input *JoinInput) (*JoinOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	errors.ValidateRequired("factionID", input.FactionID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	f, err := o.enroll(ctx, input.CharacterID, input.FactionID)
	if err != nil {
		return nil, err
	}
	return &JoinOutput{Faction: f}, nil
}

// Leave removes the character from their faction. An owner with other
// members must transfer ownership first; an owner leaving alone
// simply vacates the seat for the next joiner.
func (o *orchestrator) Leave(ctx context.Context, input *LeaveInput) (*LeaveOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	c, err := o.charSvc.GetCharacter(ctx, &character.GetCharacterInput{CharacterID: input.CharacterID})
	if err != nil {
		return nil, err
	}
	if c.Character.FactionID == "" {
		return nil, errors.FailedPrecondition("not in a faction")
	}

	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: c.Character.FactionID})
	if err != nil {
		return nil, err
	}
	f := got.Faction

	role, ok := f.RoleOf(input.CharacterID)
	if !ok {
		// The stamp points at a faction that no longer lists the
		// character. Clear it rather than trapping them.
		if _, err := o.charSvc.SetFaction(ctx, &character.SetFactionInput{CharacterID: input.CharacterID}); err != nil {
			return nil, err
		}
		return &LeaveOutput{Faction: f}, nil
	}
	if role == entities.RoleOwner && f.MemberCount() > 1 {
		return nil, errors.FailedPrecondition("transfer ownership before leaving")
	}

	delete(f.Members, input.CharacterID)
	if f.OwnerID == input.CharacterID {
		f.OwnerID = ""
	}
	f.UpdatedAt = o.clock.Now().Unix()
	updated, err := o.factionRepo.Update(ctx, factions.UpdateInput{Faction: f})
	if err != nil {
		return nil, err
	}

	if _, err := o.charSvc.SetFaction(ctx, &character.SetFactionInput{CharacterID: input.CharacterID}); err != nil {
		slog.ErrorContext(ctx, "failed to clear faction stamp",
			"character_id", input.CharacterID,
			"faction_id", f.ID,
			"error", err,
		)
	}

	slog.InfoContext(ctx, "character left faction",
		"character_id", input.CharacterID,
		"faction_id", f.ID,
	)
	return &LeaveOutput{Faction: updated.Faction}, nil
}

// Invite extends a 24-hour invitation. Owners and officers may
// invite; a pending invite blocks a duplicate.
func (o *orchestrator) Invite(ctx context.Context, input *InviteInput) (*InviteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("actorID", input.ActorID, vb)
	errors.ValidateRequired("factionID", input.FactionID, vb)
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: input.FactionID})
	if err != nil {
		return nil, err
	}
	f := got.Faction

	if err := requireOfficer(f, input.ActorID); err != nil {
		return nil, err
	}
	if _, ok := f.RoleOf(input.CharacterID); ok {
		return nil, errors.FailedPrecondition("already a member")
	}

	target, err := o.charSvc.GetCharacter(ctx, &character.GetCharacterInput{CharacterID: input.CharacterID})
	if err != nil {
		return nil, err
	}
	if target.Character.FactionID != "" {
		return nil, errors.FailedPrecondition("already in a faction")
	}

	if _, err := o.factionRepo.GetInvite(ctx, factions.GetInviteInput{
		FactionID:   input.FactionID,
		CharacterID: input.CharacterID,
	}); err == nil {
		return nil, errors.AlreadyExists("invite already pending")
	} else if !errors.IsNotFound(err) {
		return nil, err
	}

	now := o.clock.Now()
	created, err := o.factionRepo.CreateInvite(ctx, factions.CreateInviteInput{
		Invite: &entities.FactionInvite{
			FactionID:   input.FactionID,
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

	slog.InfoContext(ctx, "faction invite sent",
		"faction_id", input.FactionID,
		"character_id", input.CharacterID,
		"invited_by", input.ActorID,
	)
	return &InviteOutput{Invite: created.Invite}, nil
}

// AcceptInvite joins through a pending invite. A missing or expired
// invite reads as not found.
func (o *orchestrator) AcceptInvite(ctx context.Context, input *AcceptInviteInput) (*AcceptInviteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	errors.ValidateRequired("factionID", input.FactionID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	if _, err := o.factionRepo.GetInvite(ctx, factions.GetInviteInput{
		FactionID:   input.FactionID,
		CharacterID: input.CharacterID,
	}); err != nil {
		return nil, err
	}

	f, err := o.enroll(ctx, input.CharacterID, input.FactionID)
	if err != nil {
		return nil, err
	}
	return &AcceptInviteOutput{Faction: f}, nil
}

// RevokeInvite withdraws a pending invite. The invited character may
// decline their own; anyone else must be an owner or officer.
func (o *orchestrator) RevokeInvite(ctx context.Context, input *RevokeInviteInput) (*RevokeInviteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("actorID", input.ActorID, vb)
	errors.ValidateRequired("factionID", input.FactionID, vb)
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	if input.ActorID != input.CharacterID {
		got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: input.FactionID})
		if err != nil {
			return nil, err
		}
		if err := requireOfficer(got.Faction, input.ActorID); err != nil {
			return nil, err
		}
	}

	if _, err := o.factionRepo.GetInvite(ctx, factions.GetInviteInput{
		FactionID:   input.FactionID,
		CharacterID: input.CharacterID,
	}); err != nil {
		return nil, err
	}

	if _, err := o.factionRepo.DeleteInvite(ctx, factions.DeleteInviteInput{
		FactionID:   input.FactionID,
		CharacterID: input.CharacterID,
	}); err != nil {
		return nil, err
	}
	return &RevokeInviteOutput{}, nil
}

// InvitesFor lists a character's pending invites.
func (o *orchestrator) InvitesFor(ctx context.Context, input *InvitesForInput) (*InvitesForOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument("characterID is required")
	}

	listed, err := o.factionRepo.ListInvitesByCharacter(ctx, factions.ListInvitesByCharacterInput{
		CharacterID: input.CharacterID,
	})
	if err != nil {
		return nil, err
	}
	return &InvitesForOutput{Invites: listed.Invites}, nil
}

// Promote raises a member to officer. Owner only.
func (o *orchestrator) Promote(ctx context.Context, input *PromoteInput) (*PromoteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	f, err := o.changeRole(ctx, input.ActorID, input.FactionID, input.CharacterID,
		entities.RoleMember, entities.RoleOfficer)
	if err != nil {
		return nil, err
	}
	return &PromoteOutput{Faction: f}, nil
}

// Demote lowers an officer back to member. Owner only.
func (o *orchestrator) Demote(ctx context.Context, input *DemoteInput) (*DemoteOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	f, err := o.changeRole(ctx, input.ActorID, input.FactionID, input.CharacterID,
		entities.RoleOfficer, entities.RoleMember)
	if err != nil {
		return nil, err
	}
	return &DemoteOutput{Faction: f}, nil
}

// Kick removes a member. Owners and officers may kick, the owner can
// never be kicked, and officers cannot kick other officers.
func (o *orchestrator) Kick(ctx context.Context, input *KickInput) (*KickOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("actorID", input.ActorID, vb)
	errors.ValidateRequired("factionID", input.FactionID, vb)
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}
	if input.ActorID == input.CharacterID {
		return nil, errors.InvalidArgument("cannot kick yourself, leave instead")
	}

	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: input.FactionID})
	if err != nil {
		return nil, err
	}
	f := got.Faction

	actorRole, ok := f.RoleOf(input.ActorID)
	if !ok || (actorRole != entities.RoleOwner && actorRole != entities.RoleOfficer) {
		return nil, errors.PermissionDenied("only owners and officers can kick")
	}
	targetRole, ok := f.RoleOf(input.CharacterID)
	if !ok {
		return nil, errors.NotFound("not a member")
	}
	if targetRole == entities.RoleOwner {
		return nil, errors.PermissionDenied("the owner cannot be kicked")
	}
	if actorRole == entities.RoleOfficer && targetRole == entities.RoleOfficer {
		return nil, errors.PermissionDenied("officers cannot kick officers")
	}

	delete(f.Members, input.CharacterID)
	f.UpdatedAt = o.clock.Now().Unix()
	updated, err := o.factionRepo.Update(ctx, factions.UpdateInput{Faction: f})
	if err != nil {
		return nil, err
	}

	if _, err := o.charSvc.SetFaction(ctx, &character.SetFactionInput{CharacterID: input.CharacterID}); err != nil {
		slog.ErrorContext(ctx, "failed to clear faction stamp",
			"character_id", input.CharacterID,
			"faction_id", f.ID,
			"error", err,
		)
	}

	slog.InfoContext(ctx, "member kicked from faction",
		"faction_id", f.ID,
		"character_id", input.CharacterID,
		"actor_id", input.ActorID,
	)
	return &KickOutput{Faction: updated.Faction}, nil
}

// TransferOwnership hands the faction to another member. The previous
// owner stays on as an officer.
func (o *orchestrator) TransferOwnership(ctx context.Context, input *TransferOwnershipInput) (*TransferOwnershipOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("actorID", input.ActorID, vb)
	errors.ValidateRequired("factionID", input.FactionID, vb)
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}
	if input.ActorID == input.CharacterID {
		return nil, errors.InvalidArgument("already the owner")
	}

	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: input.FactionID})
	if err != nil {
		return nil, err
	}
	f := got.Faction

	if f.OwnerID != input.ActorID {
		return nil, errors.PermissionDenied("only the owner can transfer ownership")
	}
	heir, ok := f.Members[input.CharacterID]
	if !ok {
		return nil, errors.NotFound("not a member")
	}

	prev := f.Members[input.ActorID]
	prev.Role = entities.RoleOfficer
	f.Members[input.ActorID] = prev

	heir.Role = entities.RoleOwner
	f.Members[input.CharacterID] = heir
	f.OwnerID = input.CharacterID
	f.UpdatedAt = o.clock.Now().Unix()

	updated, err := o.factionRepo.Update(ctx, factions.UpdateInput{Faction: f})
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "faction ownership transferred",
		"faction_id", f.ID,
		"from", input.ActorID,
		"to", input.CharacterID,
	)
	return &TransferOwnershipOutput{Faction: updated.Faction}, nil
}

// Contribute donates gold to the treasury. The donation feeds faction
// experience at a tenth of its value; faction level follows the
// experience total directly.
func (o *orchestrator) Contribute(ctx context.Context, input *ContributeInput) (*ContributeOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("characterID", input.CharacterID, vb)
	errors.ValidatePositive("amount", int(input.Amount), vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	c, err := o.charSvc.GetCharacter(ctx, &character.GetCharacterInput{CharacterID: input.CharacterID})
	if err != nil {
		return nil, err
	}
	if c.Character.FactionID == "" {
		return nil, errors.FailedPrecondition("not in a faction")
	}

	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: c.Character.FactionID})
	if err != nil {
		return nil, err
	}
	f := got.Faction
	if _, ok := f.RoleOf(input.CharacterID); !ok {
		return nil, errors.FailedPrecondition("not a member of the stamped faction")
	}

	if _, err := o.charSvc.SpendGold(ctx, &character.SpendGoldInput{
		CharacterID: input.CharacterID,
		Amount:      input.Amount,
	}); err != nil {
		return nil, err
	}

	before := f.Level
	f.Treasury += input.Amount
	f.XP += input.Amount / treasuryXPDivisor
	f.Level = int32(f.XP/xpPerLevel) + 1
	m := f.Members[input.CharacterID]
	m.Donated += input.Amount
	f.Members[input.CharacterID] = m
	f.UpdatedAt = o.clock.Now().Unix()

	updated, err := o.factionRepo.Update(ctx, factions.UpdateInput{Faction: f})
	if err != nil {
		// The gold is already spent; give it back.
		if _, gerr := o.charSvc.AddGold(ctx, &character.AddGoldInput{
			CharacterID: input.CharacterID,
			Amount:      input.Amount,
		}); gerr != nil {
			slog.ErrorContext(ctx, "failed to refund donation",
				"character_id", input.CharacterID,
				"amount", input.Amount,
				"error", gerr,
			)
		}
		return nil, err
	}

	slog.InfoContext(ctx, "treasury donation",
		"faction_id", f.ID,
		"character_id", input.CharacterID,
		"amount", input.Amount,
		"faction_level", updated.Faction.Level,
	)
	return &ContributeOutput{
		Faction:   updated.Faction,
		LeveledUp: updated.Faction.Level > before,
	}, nil
}

// Rankings lists factions by level, then experience, descending.
func (o *orchestrator) Rankings(ctx context.Context, input *RankingsInput) (*RankingsOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	listed, err := o.factionRepo.List(ctx, factions.ListInput{})
	if err != nil {
		return nil, err
	}

	ranked := listed.Factions
	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Level != ranked[j].Level {
			return ranked[i].Level > ranked[j].Level
		}
		if ranked[i].XP != ranked[j].XP {
			return ranked[i].XP > ranked[j].XP
		}
		return ranked[i].Name < ranked[j].Name
	})
	return &RankingsOutput{Factions: ranked}, nil
}

// enroll adds the character to the roster, stamps the character
// record, and consumes any pending invite. The roster edit is
// reverted if the stamp fails, which is how a character already in
// another faction is rejected.
func (o *orchestrator) enroll(ctx context.Context, characterID, factionID string) (*entities.Faction, error) {
	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: factionID})
	if err != nil {
		return nil, err
	}
	f := got.Faction

	if _, ok := f.RoleOf(characterID); ok {
		return nil, errors.FailedPrecondition("already a member")
	}
	if f.MemberCount() >= memberCap {
		return nil, errors.FailedPrecondition("faction is full")
	}

	now := o.clock.Now().Unix()
	role := entities.RoleMember
	if f.MemberCount() == 0 {
		role = entities.RoleOwner
		f.OwnerID = characterID
	}
	if f.Members == nil {
		f.Members = map[string]entities.FactionMember{}
	}
	f.Members[characterID] = entities.FactionMember{Role: role, JoinedAt: now}
	f.UpdatedAt = now

	updated, err := o.factionRepo.Update(ctx, factions.UpdateInput{Faction: f})
	if err != nil {
		return nil, err
	}

	if _, err := o.charSvc.SetFaction(ctx, &character.SetFactionInput{
		CharacterID: characterID,
		FactionID:   factionID,
	}); err != nil {
		o.revertEnroll(ctx, factionID, characterID)
		return nil, err
	}

	if _, err := o.factionRepo.DeleteInvite(ctx, factions.DeleteInviteInput{
		FactionID:   factionID,
		CharacterID: characterID,
	}); err != nil {
		slog.WarnContext(ctx, "failed to consume faction invite",
			"faction_id", factionID,
			"character_id", characterID,
			"error", err,
		)
	}

	slog.InfoContext(ctx, "character joined faction",
		"character_id", characterID,
		"faction_id", factionID,
		"role", role,
	)
	return updated.Faction, nil
}

// revertEnroll undoes a roster addition whose character stamp failed.
func (o *orchestrator) revertEnroll(ctx context.Context, factionID, characterID string) {
	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: factionID})
	if err != nil {
		slog.ErrorContext(ctx, "failed to revert faction enrollment",
			"faction_id", factionID,
			"character_id", characterID,
			"error", err,
		)
		return
	}
	f := got.Faction
	delete(f.Members, characterID)
	if f.OwnerID == characterID {
		f.OwnerID = ""
	}
	f.UpdatedAt = o.clock.Now().Unix()
	if _, err := o.factionRepo.Update(ctx, factions.UpdateInput{Faction: f}); err != nil {
		slog.ErrorContext(ctx, "failed to revert faction enrollment",
			"faction_id", factionID,
			"character_id", characterID,
			"error", err,
		)
	}
}

// changeRole flips a member between two roles. Owner only.
func (o *orchestrator) changeRole(ctx context.Context, actorID, factionID, characterID string, from, to entities.FactionRole) (*entities.Faction, error) {
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("actorID", actorID, vb)
	errors.ValidateRequired("factionID", factionID, vb)
	errors.ValidateRequired("characterID", characterID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	got, err := o.factionRepo.Get(ctx, factions.GetInput{ID: factionID})
	if err != nil {
		return nil, err
	}
	f := got.Faction

	if f.OwnerID != actorID {
		return nil, errors.PermissionDenied("only the owner can change roles")
	}
	m, ok := f.Members[characterID]
	if !ok {
		return nil, errors.NotFound("not a member")
	}
	if m.Role != from {
		return nil, errors.FailedPreconditionf("expected role %s, has %s", from, m.Role)
	}

	m.Role = to
	f.Members[characterID] = m
	f.UpdatedAt = o.clock.Now().Unix()

	updated, err := o.factionRepo.Update(ctx, factions.UpdateInput{Faction: f})
	if err != nil {
		return nil, err
	}
	return updated.Faction, nil
}

// requireOfficer fails unless the actor is the owner or an officer.
func requireOfficer(f *entities.Faction, actorID string) error {
	role, ok := f.RoleOf(actorID)
	if !ok || (role != entities.RoleOwner && role != entities.RoleOfficer) {
		return errors.PermissionDenied("owner or officer required")
	}
	return nil
}
