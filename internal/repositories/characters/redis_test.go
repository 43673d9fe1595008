package characters_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	redisclient "github.com/nonamep-p/rpg-core/internal/redis"
	"github.com/nonamep-p/rpg-core/internal/repositories/characters"
	"github.com/nonamep-p/rpg-core/internal/testutils"
)

type RedisRepositoryTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    redisclient.Client
	cleanup   func()
	repo      characters.Repository
	ctx       context.Context
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	s.miniRedis, s.client, s.cleanup = testutils.CreateTestRedisServer(s.T())

	repo, err := characters.NewRedis(&characters.RedisConfig{
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

func (s *RedisRepositoryTestSuite) TestCreate() {
	s.Run("successful create", func() {
		ch := testutils.CreateTestCharacter("user_001")
		ch.ID = "char_001"

		output, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
		s.Require().NoError(err)
		s.Require().NotNil(output)

		s.Assert().Equal(int64(1), output.Character.Version)
		s.Assert().Positive(output.Character.CreatedAt)
		s.Assert().Equal(output.Character.CreatedAt, output.Character.UpdatedAt)

		s.Assert().True(s.miniRedis.Exists("character:char_001"))
		s.Assert().True(s.miniRedis.Exists("character:user:user_001"))
	})

	s.Run("error when character ID is taken", func() {
		ch := testutils.CreateTestCharacter("user_002")
		ch.ID = "char_dup"
		_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
		s.Require().NoError(err)

		again := testutils.CreateTestCharacter("user_003")
		again.ID = "char_dup"
		_, err = s.repo.Create(s.ctx, characters.CreateInput{Character: again})
		s.Require().Error(err)
		s.Assert().True(errors.IsAlreadyExists(err))
		s.Assert().Contains(err.Error(), "char_dup already exists")
	})

	s.Run("error when user already has a character", func() {
		ch := testutils.CreateTestCharacter("user_004")
		ch.ID = "char_first"
		_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
		s.Require().NoError(err)

		second := testutils.CreateTestCharacter("user_004")
		second.ID = "char_second"
		_, err = s.repo.Create(s.ctx, characters.CreateInput{Character: second})
		s.Require().Error(err)
		s.Assert().True(errors.IsAlreadyExists(err))
		s.Assert().Contains(err.Error(), "user_004 already has a character")
	})

	s.Run("error when character is nil", func() {
		_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: nil})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
		s.Assert().Contains(err.Error(), "character cannot be nil")
	})

	s.Run("error when character ID is empty", func() {
		ch := testutils.CreateTestCharacter("user_005")
		ch.ID = ""
		_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
		s.Assert().Contains(err.Error(), "character ID cannot be empty")
	})

	s.Run("error when user ID is empty", func() {
		ch := testutils.CreateTestCharacter("")
		ch.ID = "char_no_user"
		_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
		s.Assert().Contains(err.Error(), "user ID cannot be empty")
	})
}

func (s *RedisRepositoryTestSuite) TestGet() {
	ch := testutils.CreateTestCharacter("user_001")
	ch.ID = "char_001"
	_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
	s.Require().NoError(err)

	s.Run("successful get", func() {
		output, err := s.repo.Get(s.ctx, characters.GetInput{ID: "char_001"})
		s.Require().NoError(err)
		s.Assert().Equal("char_001", output.Character.ID)
		s.Assert().Equal(testutils.TestCharacterName, output.Character.Name)
		s.Assert().Equal(int64(100), output.Character.Gold)
		s.Assert().Equal(int32(3), output.Character.ItemCount("health_potion"))
	})

	s.Run("error when character not found", func() {
		_, err := s.repo.Get(s.ctx, characters.GetInput{ID: "char_ghost"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
		s.Assert().Contains(err.Error(), "char_ghost not found")
	})

	s.Run("error when ID is empty", func() {
		_, err := s.repo.Get(s.ctx, characters.GetInput{ID: ""})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})
}

func (s *RedisRepositoryTestSuite) TestGetByUserID() {
	ch := testutils.CreateTestCharacter("user_001")
	ch.ID = "char_001"
	_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
	s.Require().NoError(err)

	s.Run("successful get", func() {
		output, err := s.repo.GetByUserID(s.ctx, characters.GetByUserIDInput{UserID: "user_001"})
		s.Require().NoError(err)
		s.Assert().Equal("char_001", output.Character.ID)
	})

	s.Run("error when user has no character", func() {
		_, err := s.repo.GetByUserID(s.ctx, characters.GetByUserIDInput{UserID: "user_ghost"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})

	s.Run("stale user index is cleaned up", func() {
		// Drop the record but leave the index behind.
		s.miniRedis.Del("character:char_001")

		_, err := s.repo.GetByUserID(s.ctx, characters.GetByUserIDInput{UserID: "user_001"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
		s.Assert().False(s.miniRedis.Exists("character:user:user_001"))
	})

	s.Run("error when user ID is empty", func() {
		_, err := s.repo.GetByUserID(s.ctx, characters.GetByUserIDInput{UserID: ""})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})
}

func (s *RedisRepositoryTestSuite) TestUpdate() {
	ch := testutils.CreateTestCharacter("user_001")
	ch.ID = "char_001"
	_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
	s.Require().NoError(err)

	s.Run("successful update bumps version", func() {
		output, err := s.repo.Update(s.ctx, characters.UpdateInput{
			ID: "char_001",
			Mutate: func(c *entities.Character) error {
				c.Gold += 50
				c.AddItem("iron_ingot", 2)
				return nil
			},
		})
		s.Require().NoError(err)
		s.Assert().Equal(int64(150), output.Character.Gold)
		s.Assert().Equal(int64(2), output.Character.Version)

		reread, err := s.repo.Get(s.ctx, characters.GetInput{ID: "char_001"})
		s.Require().NoError(err)
		s.Assert().Equal(int64(150), reread.Character.Gold)
		s.Assert().Equal(int32(2), reread.Character.ItemCount("iron_ingot"))
	})

	s.Run("mutate errors abort without writing", func() {
		before, err := s.repo.Get(s.ctx, characters.GetInput{ID: "char_001"})
		s.Require().NoError(err)

		_, err = s.repo.Update(s.ctx, characters.UpdateInput{
			ID: "char_001",
			Mutate: func(c *entities.Character) error {
				c.Gold = 0
				return errors.FailedPreconditionf("need %d gold, have %d", 500, c.Gold)
			},
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsFailedPrecondition(err))

		after, err := s.repo.Get(s.ctx, characters.GetInput{ID: "char_001"})
		s.Require().NoError(err)
		s.Assert().Equal(before.Character.Gold, after.Character.Gold)
		s.Assert().Equal(before.Character.Version, after.Character.Version)
	})

	s.Run("retries after a conflicting write", func() {
		calls := 0
		output, err := s.repo.Update(s.ctx, characters.UpdateInput{
			ID: "char_001",
			Mutate: func(c *entities.Character) error {
				calls++
				if calls == 1 {
					// Another writer touches the key mid-transaction.
					s.touchCharacter(c)
				}
				c.Gold += 10
				return nil
			},
		})
		s.Require().NoError(err)
		s.Assert().Equal(2, calls)
		s.Assert().Equal(int64(160), output.Character.Gold)
	})

	s.Run("unavailable after retries exhaust", func() {
		_, err := s.repo.Update(s.ctx, characters.UpdateInput{
			ID: "char_001",
			Mutate: func(c *entities.Character) error {
				s.touchCharacter(c)
				c.Gold += 10
				return nil
			},
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsUnavailable(err))
		s.Assert().Contains(err.Error(), "concurrent modification")
	})

	s.Run("error when character not found", func() {
		_, err := s.repo.Update(s.ctx, characters.UpdateInput{
			ID:     "char_ghost",
			Mutate: func(*entities.Character) error { return nil },
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})

	s.Run("error when mutate is nil", func() {
		_, err := s.repo.Update(s.ctx, characters.UpdateInput{ID: "char_001"})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
		s.Assert().Contains(err.Error(), "mutate function cannot be nil")
	})
}

// touchCharacter rewrites the character's key through the pooled client
// so a WATCH in flight on another connection sees a conflict.
func (s *RedisRepositoryTestSuite) touchCharacter(c *entities.Character) {
	data, err := json.Marshal(c)
	s.Require().NoError(err)
	s.Require().NoError(s.client.Set(s.ctx, "character:"+c.ID, data, 0).Err())
}

func (s *RedisRepositoryTestSuite) TestDelete() {
	ch := testutils.CreateTestCharacter("user_001")
	ch.ID = "char_001"
	_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
	s.Require().NoError(err)

	s.Run("successful delete removes the user index", func() {
		_, err := s.repo.Delete(s.ctx, characters.DeleteInput{ID: "char_001"})
		s.Require().NoError(err)

		s.Assert().False(s.miniRedis.Exists("character:char_001"))
		s.Assert().False(s.miniRedis.Exists("character:user:user_001"))

		_, err = s.repo.Get(s.ctx, characters.GetInput{ID: "char_001"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})

	s.Run("error when character not found", func() {
		_, err := s.repo.Delete(s.ctx, characters.DeleteInput{ID: "char_ghost"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})
}

func (s *RedisRepositoryTestSuite) TestList() {
	for _, id := range []string{"char_a", "char_b", "char_c"} {
		ch := testutils.CreateTestCharacter("user_" + id)
		ch.ID = id
		_, err := s.repo.Create(s.ctx, characters.CreateInput{Character: ch})
		s.Require().NoError(err)
	}

	s.Run("lists every character", func() {
		output, err := s.repo.List(s.ctx, characters.ListInput{})
		s.Require().NoError(err)
		s.Assert().Len(output.Characters, 3)
	})

	s.Run("stale index entries are cleaned up", func() {
		s.miniRedis.Del("character:char_b")

		output, err := s.repo.List(s.ctx, characters.ListInput{})
		s.Require().NoError(err)
		s.Assert().Len(output.Characters, 2)

		members, _ := s.miniRedis.SMembers("character:all")
		s.Assert().NotContains(members, "char_b")
	})

	s.Run("empty store lists nothing", func() {
		s.miniRedis.FlushAll()
		output, err := s.repo.List(s.ctx, characters.ListInput{})
		s.Require().NoError(err)
		s.Assert().Empty(output.Characters)
	})
}
