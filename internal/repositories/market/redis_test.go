package market_test

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/suite"

	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	redisclient "github.com/nonamep-p/rpg-core/internal/redis"
	"github.com/nonamep-p/rpg-core/internal/repositories/market"
	"github.com/nonamep-p/rpg-core/internal/testutils"
)

type RedisRepositoryTestSuite struct {
	suite.Suite
	miniRedis *miniredis.Miniredis
	client    redisclient.Client
	cleanup   func()
	repo      market.Repository
	ctx       context.Context
}

func (s *RedisRepositoryTestSuite) SetupTest() {
	s.miniRedis, s.client, s.cleanup = testutils.CreateTestRedisServer(s.T())

	repo, err := market.NewRedis(&market.RedisConfig{
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

// testListing expires an hour out unless the test says otherwise.
func (s *RedisRepositoryTestSuite) testListing(id, sellerID string) *entities.MarketListing {
	return &entities.MarketListing{
		ID:           id,
		SellerID:     sellerID,
		ItemID:       "iron_sword",
		Quantity:     1,
		PricePerUnit: 120,
		ExpiresAt:    time.Now().Add(time.Hour).Unix(),
	}
}

func (s *RedisRepositoryTestSuite) TestCreate() {
	s.Run("successful create sets a TTL to the expiry", func() {
		output, err := s.repo.Create(s.ctx, market.CreateInput{
			Listing: s.testListing("lst_001", "char_seller"),
		})
		s.Require().NoError(err)
		s.Assert().Positive(output.Listing.CreatedAt)

		s.Assert().True(s.miniRedis.Exists("market:listing:lst_001"))
		ttl := s.miniRedis.TTL("market:listing:lst_001")
		s.Assert().Greater(ttl, 59*time.Minute)
		s.Assert().LessOrEqual(ttl, time.Hour)
	})

	s.Run("error when listing ID is taken", func() {
		_, err := s.repo.Create(s.ctx, market.CreateInput{
			Listing: s.testListing("lst_001", "char_other"),
		})
		s.Require().Error(err)
		s.Assert().True(errors.IsAlreadyExists(err))
	})

	s.Run("error when expiry is in the past", func() {
		listing := s.testListing("lst_stale", "char_seller")
		listing.ExpiresAt = time.Now().Add(-time.Minute).Unix()

		_, err := s.repo.Create(s.ctx, market.CreateInput{Listing: listing})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
		s.Assert().Contains(err.Error(), "expiry must be in the future")
	})

	s.Run("error when quantity is zero", func() {
		listing := s.testListing("lst_empty", "char_seller")
		listing.Quantity = 0

		_, err := s.repo.Create(s.ctx, market.CreateInput{Listing: listing})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})

	s.Run("error when listing is nil", func() {
		_, err := s.repo.Create(s.ctx, market.CreateInput{Listing: nil})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
	})
}

func (s *RedisRepositoryTestSuite) TestGet() {
	_, err := s.repo.Create(s.ctx, market.CreateInput{
		Listing: s.testListing("lst_001", "char_seller"),
	})
	s.Require().NoError(err)

	s.Run("successful get", func() {
		output, err := s.repo.Get(s.ctx, market.GetInput{ID: "lst_001"})
		s.Require().NoError(err)
		s.Assert().Equal("iron_sword", output.Listing.ItemID)
		s.Assert().Equal(int64(120), output.Listing.PricePerUnit)
	})

	s.Run("error when listing not found", func() {
		_, err := s.repo.Get(s.ctx, market.GetInput{ID: "lst_ghost"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})

	s.Run("expired listing reads as missing", func() {
		s.miniRedis.FastForward(2 * time.Hour)

		_, err := s.repo.Get(s.ctx, market.GetInput{ID: "lst_001"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})
}

func (s *RedisRepositoryTestSuite) TestUpdate() {
	listing := s.testListing("lst_001", "char_seller")
	listing.Quantity = 10
	_, err := s.repo.Create(s.ctx, market.CreateInput{Listing: listing})
	s.Require().NoError(err)

	s.Run("rewrites the lot and keeps the TTL", func() {
		before := s.miniRedis.TTL("market:listing:lst_001")

		listing.Quantity = 4
		_, err := s.repo.Update(s.ctx, market.UpdateInput{Listing: listing})
		s.Require().NoError(err)

		got, err := s.repo.Get(s.ctx, market.GetInput{ID: "lst_001"})
		s.Require().NoError(err)
		s.Assert().Equal(int32(4), got.Listing.Quantity)

		after := s.miniRedis.TTL("market:listing:lst_001")
		s.Assert().Equal(before, after)
	})

	s.Run("error when listing not found", func() {
		ghost := s.testListing("lst_ghost", "char_seller")
		_, err := s.repo.Update(s.ctx, market.UpdateInput{Listing: ghost})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})

	s.Run("error when quantity drops below one", func() {
		listing.Quantity = 0
		_, err := s.repo.Update(s.ctx, market.UpdateInput{Listing: listing})
		s.Require().Error(err)
		s.Assert().True(errors.IsInvalidArgument(err))
		listing.Quantity = 4
	})
}

func (s *RedisRepositoryTestSuite) TestDelete() {
	_, err := s.repo.Create(s.ctx, market.CreateInput{
		Listing: s.testListing("lst_001", "char_seller"),
	})
	s.Require().NoError(err)

	s.Run("delete returns the listing for refunds", func() {
		output, err := s.repo.Delete(s.ctx, market.DeleteInput{ID: "lst_001"})
		s.Require().NoError(err)
		s.Assert().Equal("iron_sword", output.Listing.ItemID)
		s.Assert().Equal(int32(1), output.Listing.Quantity)

		s.Assert().False(s.miniRedis.Exists("market:listing:lst_001"))

		members, _ := s.miniRedis.SMembers("market:all")
		s.Assert().NotContains(members, "lst_001")
		sellers, _ := s.miniRedis.SMembers("market:seller:char_seller")
		s.Assert().NotContains(sellers, "lst_001")
	})

	s.Run("error when listing not found", func() {
		_, err := s.repo.Delete(s.ctx, market.DeleteInput{ID: "lst_ghost"})
		s.Require().Error(err)
		s.Assert().True(errors.IsNotFound(err))
	})
}

func (s *RedisRepositoryTestSuite) TestList() {
	for _, id := range []string{"lst_a", "lst_b"} {
		_, err := s.repo.Create(s.ctx, market.CreateInput{
			Listing: s.testListing(id, "char_seller"),
		})
		s.Require().NoError(err)
	}

	shortLived := s.testListing("lst_short", "char_other")
	shortLived.ExpiresAt = time.Now().Add(time.Minute).Unix()
	_, err := s.repo.Create(s.ctx, market.CreateInput{Listing: shortLived})
	s.Require().NoError(err)

	s.Run("lists every live listing", func() {
		output, err := s.repo.List(s.ctx, market.ListInput{})
		s.Require().NoError(err)
		s.Assert().Len(output.Listings, 3)
	})

	s.Run("expired listings drop out and get pruned", func() {
		s.miniRedis.FastForward(5 * time.Minute)

		output, err := s.repo.List(s.ctx, market.ListInput{})
		s.Require().NoError(err)
		s.Assert().Len(output.Listings, 2)

		members, _ := s.miniRedis.SMembers("market:all")
		s.Assert().NotContains(members, "lst_short")
	})

	s.Run("lists by seller", func() {
		output, err := s.repo.ListBySeller(s.ctx, market.ListBySellerInput{
			SellerID: "char_seller",
		})
		s.Require().NoError(err)
		s.Assert().Len(output.Listings, 2)

		other, err := s.repo.ListBySeller(s.ctx, market.ListBySellerInput{
			SellerID: "char_other",
		})
		s.Require().NoError(err)
		s.Assert().Empty(other.Listings)
	})
}
