package leaderboard_test

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/nonamep-p/rpg-core/internal/errors"
	redisclient "github.com/nonamep-p/rpg-core/internal/redis"
	"github.com/nonamep-p/rpg-core/internal/repositories/leaderboard"
	"github.com/nonamep-p/rpg-core/internal/testutils"
)

type RedisRepositoryTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    redisclient.Client
	cleanup   func()
	repo      leaderboard.Repository
	ctx       context.Context
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	s.miniRedis, s.client, s.cleanup = testutils.CreateTestRedisServer(s.T())

	repo, err := leaderboard.NewRedis(&leaderboard.RedisConfig{
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

// seedBoard fills the gold board with three characters.
func (s *RedisRepositoryTestSuite) seedBoard() {
	for memberID, score := range map[string]int64{
		"char_rich":   5000,
		"char_middle": 800,
		"char_poor":   12,
	} {
		_, err := s.repo.SetScore(s.ctx, leaderboard.SetScoreInput{
			Board:    leaderboard.BoardGold,
			MemberID: memberID,
			Score:    score,
		})
		s.Require().NoError(err)
	}
}

func (s *RedisRepositoryTestSuite) TestSetScore() {
	s.Run("successful set", func() {
		_, err := s.repo.SetScore(s.ctx, leaderboard.SetScoreInput{
			Board:    leaderboard.BoardGold,
			MemberID: "char_001",
			Score:    250,
		})
		s.Require().NoError(err)
		s.Assert().True(s.miniRedis.Exists("leaderboard:gold"))
	})

	s.Run("set overwrites the previous score", func() {
		_, err := s.repo.SetScore(s.ctx, leaderboard.SetScoreInput{
			Board:    leaderboard.BoardGold,
			MemberID: "char_001",
			Score:    900,
		})
		s.Require().NoError(err)

		output, err := s.repo.Rank(s.ctx, leaderboard.RankInput{
			Board:    leaderboard.BoardGold,
			MemberID: "char_001",
		})
		s.Require().NoError(err)
		s.Assert().Equal(int64(900), output.Entry.Score)
	})

	s.Run("error when board is empty", func() {
		_, err := s.repo.SetScore(s.ctx, leaderboard.SetScoreInput{
			MemberID: "char_001",
			Score:    1,
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})
}

func (s *RedisRepositoryTestSuite) TestTop() {
	s.seedBoard()

	s.Run("entries come back highest first with ranks", func() {
		output, err := s.repo.Top(s.ctx, leaderboard.TopInput{
			Board: leaderboard.BoardGold,
			Limit: 10,
		})
		s.Require().NoError(err)
		s.Require().Len(output.Entries, 3)

		s.Assert().Equal(leaderboard.Entry{MemberID: "char_rich", Score: 5000, Rank: 1}, output.Entries[0])
		s.Assert().Equal(leaderboard.Entry{MemberID: "char_middle", Score: 800, Rank: 2}, output.Entries[1])
		s.Assert().Equal(leaderboard.Entry{MemberID: "char_poor", Score: 12, Rank: 3}, output.Entries[2])
	})

	s.Run("limit truncates the board", func() {
		output, err := s.repo.Top(s.ctx, leaderboard.TopInput{
			Board: leaderboard.BoardGold,
			Limit: 2,
		})
		s.Require().NoError(err)
		s.Assert().Len(output.Entries, 2)
	})

	s.Run("an unwritten board reads as empty", func() {
		output, err := s.repo.Top(s.ctx, leaderboard.TopInput{
			Board: leaderboard.BoardRating,
			Limit: 10,
		})
		s.Require().NoError(err)
		s.Assert().Empty(output.Entries)
	})

	s.Run("error when limit is zero", func() {
		_, err := s.repo.Top(s.ctx, leaderboard.TopInput{Board: leaderboard.BoardGold})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})
}

func (s *RedisRepositoryTestSuite) TestRank() {
	s.seedBoard()

	s.Run("rank is 1-based from the top", func() {
		output, err := s.repo.Rank(s.ctx, leaderboard.RankInput{
			Board:    leaderboard.BoardGold,
			MemberID: "char_middle",
		})
		s.Require().NoError(err)
		s.Assert().Equal(int64(2), output.Entry.Rank)
		s.Assert().Equal(int64(800), output.Entry.Score)
	})

	s.Run("error when member is not on the board", func() {
		_, err := s.repo.Rank(s.ctx, leaderboard.RankInput{
			Board:    leaderboard.BoardGold,
			MemberID: "char_ghost",
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
		s.Assert().Contains(err.Error(), "not on board gold")
	})
}

func (s *RedisRepositoryTestSuite) TestRemove() {
	s.seedBoard()

	s.Run("removed members fall off the board", func() {
		_, err := s.repo.Remove(s.ctx, leaderboard.RemoveInput{
			Board:    leaderboard.BoardGold,
			MemberID: "char_middle",
		})
		s.Require().NoError(err)

		_, err = s.repo.Rank(s.ctx, leaderboard.RankInput{
			Board:    leaderboard.BoardGold,
			MemberID: "char_middle",
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))

		// Ranks below close up.
		output, err := s.repo.Rank(s.ctx, leaderboard.RankInput{
			Board:    leaderboard.BoardGold,
			MemberID: "char_poor",
		})
		s.Require().NoError(err)
		s.Assert().Equal(int64(2), output.Entry.Rank)
	})

	s.Run("removing an absent member is a no-op", func() {
		_, err := s.repo.Remove(s.ctx, leaderboard.RemoveInput{
			Board:    leaderboard.BoardGold,
			MemberID: "char_ghost",
		})
		s.Require().NoError(err)
	})
}
