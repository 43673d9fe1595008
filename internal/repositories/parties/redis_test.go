package parties_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	redisclient "github.com/nonamep-p/rpg-core/internal/redis"
	"github.com/nonamep-p/rpg-core/internal/repositories/parties"
	"github.com/nonamep-p/rpg-core/internal/testutils"
)

type RedisRepositoryTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    redisclient.Client
	cleanup   func()
	repo      parties.Repository
	ctx       context.Context
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	s.miniRedis, s.client, s.cleanup = testutils.CreateTestRedisServer(s.T())

	repo, err := parties.NewRedis(&parties.RedisConfig{
		Client: s.client,
	})
	s.Require().NoError(err)
	s.repo = repo
	s.ctx = context.Background()
}

func (s *RedisRepositoryTestSuite) TearDownTest() {
	s.cleanup()
}

func TestRedisRepositoryTestSuite(t *testing.T) {
	suite.Run(t, new(RedisRepositoryTestSuite))
}

func testParty(id string, memberIDs ...string) *entities.Party {
	return &entities.Party{
		ID:        id,
		Name:      "Warren Raiders",
		LeaderID:  memberIDs[0],
		MemberIDs: memberIDs,
	}
}

func (s *RedisRepositoryTestSuite) TestCreate() {
	s.Run("successful create indexes every member", func() {
		output, err := s.repo.Create(s.ctx, parties.CreateInput{
			Party: testParty("party_001", "char_leader", "char_002"),
		})
		s.Require().NoError(err)
		s.Assert().Positive(output.Party.CreatedAt)

		s.Assert().True(s.miniRedis.Exists("party:party_001"))
		for _, memberID := range []string{"char_leader", "char_002"} {
			partyID, err := s.miniRedis.Get("party:member:" + memberID)
			s.Require().NoError(err)
			s.Assert().Equal("party_001", partyID)
		}
	})

	s.Run("error when party ID is taken", func() {
		_, err := s.repo.Create(s.ctx, parties.CreateInput{
			Party: testParty("party_001", "char_other"),
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsAlreadyExists(err))
	})

	s.Run("error when party is nil", func() {
		_, err := s.repo.Create(s.ctx, parties.CreateInput{Party: nil})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})

	s.Run("error when leader is not a member", func() {
		party := testParty("party_bad", "char_a", "char_b")
		party.LeaderID = "char_outsider"

		_, err := s.repo.Create(s.ctx, parties.CreateInput{Party: party})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
		s.Assert().Contains(err.Error(), "leader must be in the member list")
	})
}

func (s *RedisRepositoryTestSuite) TestGet() {
	_, err := s.repo.Create(s.ctx, parties.CreateInput{
		Party: testParty("party_001", "char_leader", "char_002"),
	})
	s.Require().NoError(err)

	s.Run("successful get", func() {
		output, err := s.repo.Get(s.ctx, parties.GetInput{ID: "party_001"})
		s.Require().NoError(err)
		s.Assert().Equal("char_leader", output.Party.LeaderID)
		s.Assert().Equal([]string{"char_leader", "char_002"}, output.Party.MemberIDs)
	})

	s.Run("error when party not found", func() {
		_, err := s.repo.Get(s.ctx, parties.GetInput{ID: "party_ghost"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})
}

func (s *RedisRepositoryTestSuite) TestGetByCharacterID() {
	_, err := s.repo.Create(s.ctx, parties.CreateInput{
		Party: testParty("party_001", "char_leader", "char_002"),
	})
	s.Require().NoError(err)

	s.Run("resolves a member's party", func() {
		output, err := s.repo.GetByCharacterID(s.ctx, parties.GetByCharacterIDInput{
			CharacterID: "char_002",
		})
		s.Require().NoError(err)
		s.Assert().Equal("party_001", output.Party.ID)
	})

	s.Run("error when character is not in a party", func() {
		_, err := s.repo.GetByCharacterID(s.ctx, parties.GetByCharacterIDInput{
			CharacterID: "char_loner",
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
		s.Assert().Contains(err.Error(), "not in a party")
	})

	s.Run("stale member index is cleaned up", func() {
		// Drop the record but leave the index behind.
		s.miniRedis.Del("party:party_001")

		_, err := s.repo.GetByCharacterID(s.ctx, parties.GetByCharacterIDInput{
			CharacterID: "char_002",
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
		s.Assert().False(s.miniRedis.Exists("party:member:char_002"))
	})
}

func (s *RedisRepositoryTestSuite) TestUpdate() {
	_, err := s.repo.Create(s.ctx, parties.CreateInput{
		Party: testParty("party_001", "char_leader", "char_002"),
	})
	s.Require().NoError(err)

	s.Run("joining indexes the new member", func() {
		got, err := s.repo.Get(s.ctx, parties.GetInput{ID: "party_001"})
		s.Require().NoError(err)

		party := got.Party
		party.MemberIDs = append(party.MemberIDs, "char_003")

		_, err = s.repo.Update(s.ctx, parties.UpdateInput{Party: party})
		s.Require().NoError(err)

		partyID, err := s.miniRedis.Get("party:member:char_003")
		s.Require().NoError(err)
		s.Assert().Equal("party_001", partyID)
	})

	s.Run("leaving unindexes the old member", func() {
		got, err := s.repo.Get(s.ctx, parties.GetInput{ID: "party_001"})
		s.Require().NoError(err)

		party := got.Party
		s.Require().True(party.RemoveMember("char_002"))

		_, err = s.repo.Update(s.ctx, parties.UpdateInput{Party: party})
		s.Require().NoError(err)

		s.Assert().False(s.miniRedis.Exists("party:member:char_002"))

		_, err = s.repo.GetByCharacterID(s.ctx, parties.GetByCharacterIDInput{
			CharacterID: "char_002",
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})

	s.Run("leader handoff keeps both members indexed", func() {
		got, err := s.repo.Get(s.ctx, parties.GetInput{ID: "party_001"})
		s.Require().NoError(err)

		party := got.Party
		party.LeaderID = "char_003"

		_, err = s.repo.Update(s.ctx, parties.UpdateInput{Party: party})
		s.Require().NoError(err)

		reread, err := s.repo.Get(s.ctx, parties.GetInput{ID: "party_001"})
		s.Require().NoError(err)
		s.Assert().Equal("char_003", reread.Party.LeaderID)
		partyID, err := s.miniRedis.Get("party:member:char_leader")
		s.Require().NoError(err)
		s.Assert().Equal("party_001", partyID)
	})

	s.Run("error when party not found", func() {
		_, err := s.repo.Update(s.ctx, parties.UpdateInput{
			Party: testParty("party_ghost", "char_x"),
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})
}

func (s *RedisRepositoryTestSuite) TestDelete() {
	_, err := s.repo.Create(s.ctx, parties.CreateInput{
		Party: testParty("party_001", "char_leader", "char_002"),
	})
	s.Require().NoError(err)

	s.Run("successful delete unindexes every member", func() {
		_, err := s.repo.Delete(s.ctx, parties.DeleteInput{ID: "party_001"})
		s.Require().NoError(err)

		s.Assert().False(s.miniRedis.Exists("party:party_001"))
		s.Assert().False(s.miniRedis.Exists("party:member:char_leader"))
		s.Assert().False(s.miniRedis.Exists("party:member:char_002"))
	})

	s.Run("error when party not found", func() {
		_, err := s.repo.Delete(s.ctx, parties.DeleteInput{ID: "party_ghost"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})
}

func (s *RedisRepositoryTestSuite) TestInvites() {
	_, err := s.repo.Create(s.ctx, parties.CreateInput{
		Party: testParty("party_001", "char_leader"),
	})
	s.Require().NoError(err)

	s.Run("create stamps expiry and sets a TTL", func() {
		output, err := s.repo.CreateInvite(s.ctx, parties.CreateInviteInput{
			Invite: &entities.PartyInvite{
				PartyID:     "party_001",
				CharacterID: "char_002",
				InvitedBy:   "char_leader",
			},
			TTL: 5 * time.Minute,
		})
		s.Require().NoError(err)
		s.Assert().Equal(output.Invite.CreatedAt+300, output.Invite.ExpiresAt)
		s.Assert().Equal(5*time.Minute, s.miniRedis.TTL("party:invite:party_001:char_002"))
	})

	s.Run("get returns the pending invite", func() {
		output, err := s.repo.GetInvite(s.ctx, parties.GetInviteInput{
			PartyID:     "party_001",
			CharacterID: "char_002",
		})
		s.Require().NoError(err)
		s.Assert().Equal("char_leader", output.Invite.InvitedBy)
	})

	s.Run("invite expires with its TTL", func() {
		s.miniRedis.FastForward(6 * time.Minute)

		_, err := s.repo.GetInvite(s.ctx, parties.GetInviteInput{
			PartyID:     "party_001",
			CharacterID: "char_002",
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})

	s.Run("delete removes the invite", func() {
		_, err := s.repo.CreateInvite(s.ctx, parties.CreateInviteInput{
			Invite: &entities.PartyInvite{
				PartyID:     "party_001",
				CharacterID: "char_003",
				InvitedBy:   "char_leader",
			},
			TTL: 5 * time.Minute,
		})
		s.Require().NoError(err)

		_, err = s.repo.DeleteInvite(s.ctx, parties.DeleteInviteInput{
			PartyID:     "party_001",
			CharacterID: "char_003",
		})
		s.Require().NoError(err)

		s.Assert().False(s.miniRedis.Exists("party:invite:party_001:char_003"))
	})

	s.Run("error when TTL is not positive", func() {
		_, err := s.repo.CreateInvite(s.ctx, parties.CreateInviteInput{
			Invite: &entities.PartyInvite{
				PartyID:     "party_001",
				CharacterID: "char_004",
			},
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})
}
