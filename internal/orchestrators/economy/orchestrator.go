// Package economy owns gold flow outside of combat: NPC shop
// purchases and sales, the player-to-player market, and the gold
// leaderboard. Shop trades mutate gold and inventory in one versioned
// character update so an insufficient balance never leaves a partial
// trade behind. Market listings hold their items in escrow and expire
// on their own through the listing store's TTL.
package economy

//go:generate mockgen -destination=mock/mock_service.go -package=economymock github.com/nonamep-p/rpg-core/internal/orchestrators/economy Service

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/nonamep-p/rpg-core/internal/catalog"
	"github.com/nonamep-p/rpg-core/internal/entities"
	"github.com/nonamep-p/rpg-core/internal/errors"
	"github.com/nonamep-p/rpg-core/internal/gameevents"
	"github.com/nonamep-p/rpg-core/internal/pkg/clock"
	"github.com/nonamep-p/rpg-core/internal/pkg/idgen"
	"github.com/nonamep-p/rpg-core/internal/repositories/characters"
	"github.com/nonamep-p/rpg-core/internal/repositories/leaderboard"
	"github.com/nonamep-p/rpg-core/internal/repositories/market"
)

const (
	// sellRate is the fraction of an item's base price the shop pays.
	sellRate = 0.5

	// listingTTL is how long a market listing stays live.
	listingTTL = 7 * 24 * time.Hour
)

// Service defines the interface for economy operations
type Service interface {
	ShopStock(ctx context.Context, input *ShopStockInput) (*ShopStockOutput, error)
	BuyItem(ctx context.Context, input *BuyItemInput) (*BuyItemOutput, error)
	SellItem(ctx context.Context, input *SellItemInput) (*SellItemOutput, error)
	ListOnMarket(ctx context.Context, input *ListOnMarketInput) (*ListOnMarketOutput, error)
	BuyFromMarket(ctx context.Context, input *BuyFromMarketInput) (*BuyFromMarketOutput, error)
	CancelListing(ctx context.Context, input *CancelListingInput) (*CancelListingOutput, error)
	BrowseMarket(ctx context.Context, input *BrowseMarketInput) (*BrowseMarketOutput, error)
	Leaderboard(ctx context.Context, input *LeaderboardInput) (*LeaderboardOutput, error)
}

// Config holds the dependencies for the economy orchestrator
type Config struct {
	CharacterRepo characters.Repository
	MarketRepo    market.Repository
	Leaderboard   leaderboard.Repository
	Catalog       *catalog.Catalog
	EventBus      events.EventBus
	IDGenerator   idgen.Generator
	Clock         clock.Clock
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()

	if c.CharacterRepo == nil {
		vb.RequiredField("CharacterRepo")
	}
	if c.MarketRepo == nil {
		vb.RequiredField("MarketRepo")
	}
	if c.Leaderboard == nil {
		vb.RequiredField("Leaderboard")
	}
	if c.Catalog == nil {
		vb.RequiredField("Catalog")
	}
	if c.EventBus == nil {
		vb.RequiredField("EventBus")
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
	characterRepo characters.Repository
	marketRepo    market.Repository
	leaderboard   leaderboard.Repository
	catalog       *catalog.Catalog
	eventBus      events.EventBus
	idGen         idgen.Generator
	clock         clock.Clock
}

// NewOrchestrator creates a new economy orchestrator with the
// provided dependencies
func NewOrchestrator(cfg *Config) (Service, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &orchestrator{
		characterRepo: cfg.CharacterRepo,
		marketRepo:    cfg.MarketRepo,
		leaderboard:   cfg.Leaderboard,
		catalog:       cfg.Catalog,
		eventBus:      cfg.EventBus,
		idGen:         cfg.IDGenerator,
		clock:         cfg.Clock,
	}, nil
}

var _ Service = (*orchestrator)(nil)

// ShopStock lists every shop's rotation with markup applied. Items
// with no base price are not sold and stay off the list.
func (o *orchestrator) ShopStock(ctx context.Context, input *ShopStockInput) (*ShopStockOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	shops := o.catalog.Shops()
	out := make([]ShopStock, 0, len(shops))
	for _, shop := range shops {
		stock := ShopStock{ShopID: shop.ID, Name: shop.Name}
		for _, itemID := range shop.ItemIDs {
			item, ok := o.catalog.Item(itemID)
			if !ok || item.Price <= 0 {
				continue
			}
			stock.Items = append(stock.Items, StockEntry{
				ItemID: item.ID,
				Name:   item.Name,
				Price:  shopPrice(item, shop),
			})
		}
		out = append(out, stock)
	}
	return &ShopStockOutput{Shops: out}, nil
}

// BuyItem purchases from the first shop stocking the item. Gold and
// inventory move in one update, so an insufficient balance changes
// nothing.
func (o *orchestrator) BuyItem(ctx context.Context, input *BuyItemInput) (*BuyItemOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("itemID", input.ItemID, vb)
	errors.ValidatePositive("quantity", int(input.Quantity), vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	item, ok := o.catalog.Item(input.ItemID)
	if !ok {
		return nil, errors.NotFoundf("item %q not found", input.ItemID)
	}

	price, ok := o.findShopPrice(item)
	if !ok {
		return nil, errors.FailedPreconditionf("%s is not sold in shops", item.Name)
	}
	total := price * int64(input.Quantity)

	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.PlayerID,
		Mutate: func(c *entities.Character) error {
			if c.Gold < total {
				return errors.FailedPreconditionf("need %d gold, have %d", total, c.Gold)
			}
			c.Gold -= total
			c.AddItem(item.ID, input.Quantity)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	o.noteGoldChanged(ctx, updated.Character)

	slog.InfoContext(ctx, "shop purchase",
		"character_id", input.PlayerID,
		"item_id", item.ID,
		"quantity", input.Quantity,
		"spent", total,
	)
	return &BuyItemOutput{Character: updated.Character, Spent: total}, nil
}

// SellItem sends items back to the shop at half base price.
func (o *orchestrator) SellItem(ctx context.Context, input *SellItemInput) (*SellItemOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("playerID", input.PlayerID, vb)
	errors.ValidateRequired("itemID", input.ItemID, vb)
	errors.ValidatePositive("quantity", int(input.Quantity), vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	item, ok := o.catalog.Item(input.ItemID)
	if !ok {
		return nil, errors.NotFoundf("item %q not found", input.ItemID)
	}
	if item.Price <= 0 {
		return nil, errors.FailedPreconditionf("%s cannot be sold", item.Name)
	}
	total := int64(math.Floor(float64(item.Price)*sellRate)) * int64(input.Quantity)

	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.PlayerID,
		Mutate: func(c *entities.Character) error {
			if have := c.ItemCount(item.ID); have < input.Quantity {
				return errors.FailedPreconditionf("have %d %s, selling %d", have, item.Name, input.Quantity)
			}
			c.RemoveItem(item.ID, input.Quantity)
			c.Gold += total
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	o.noteGoldChanged(ctx, updated.Character)

	slog.InfoContext(ctx, "shop sale",
		"character_id", input.PlayerID,
		"item_id", item.ID,
		"quantity", input.Quantity,
		"earned", total,
	)
	return &SellItemOutput{Character: updated.Character, Earned: total}, nil
}

// ListOnMarket escrows the items and posts the listing. The listing
// expires on its own after seven days; expiry is storage-side, so the
// items come back only through an explicit cancel.
func (o *orchestrator) ListOnMarket(ctx context.Context, input *ListOnMarketInput) (*ListOnMarketOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("sellerID", input.SellerID, vb)
	errors.ValidateRequired("itemID", input.ItemID, vb)
	errors.ValidatePositive("quantity", int(input.Quantity), vb)
	errors.ValidatePositive("pricePerUnit", int(input.PricePerUnit), vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	item, ok := o.catalog.Item(input.ItemID)
	if !ok {
		return nil, errors.NotFoundf("item %q not found", input.ItemID)
	}

	if _, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.SellerID,
		Mutate: func(c *entities.Character) error {
			if have := c.ItemCount(item.ID); have < input.Quantity {
				return errors.FailedPreconditionf("have %d %s, listing %d", have, item.Name, input.Quantity)
			}
			c.RemoveItem(item.ID, input.Quantity)
			return nil
		},
	}); err != nil {
		return nil, err
	}

	now := o.clock.Now()
	listing := &entities.MarketListing{
		ID:           o.idGen.Generate(),
		SellerID:     input.SellerID,
		ItemID:       item.ID,
		Quantity:     input.Quantity,
		PricePerUnit: input.PricePerUnit,
		CreatedAt:    now.Unix(),
		ExpiresAt:    now.Add(listingTTL).Unix(),
	}
	created, err := o.marketRepo.Create(ctx, market.CreateInput{Listing: listing})
	if err != nil {
		// Escrow failed to land; hand the items back.
		o.returnItems(ctx, input.SellerID, item.ID, input.Quantity)
		return nil, err
	}

	slog.InfoContext(ctx, "market listing posted",
		"listing_id", created.Listing.ID,
		"seller_id", input.SellerID,
		"item_id", item.ID,
		"quantity", input.Quantity,
		"price_per_unit", input.PricePerUnit,
	)
	return &ListOnMarketOutput{Listing: created.Listing}, nil
}

// BuyFromMarket purchases part or all of a listing. The buyer's gold
// and items move first in one update; the listing then shrinks or
// closes, and the seller is paid last.
func (o *orchestrator) BuyFromMarket(ctx context.Context, input *BuyFromMarketInput) (*BuyFromMarketOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("buyerID", input.BuyerID, vb)
	errors.ValidateRequired("listingID", input.ListingID, vb)
	errors.ValidatePositive("quantity", int(input.Quantity), vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	got, err := o.marketRepo.Get(ctx, market.GetInput{ID: input.ListingID})
	if err != nil {
		return nil, err
	}
	listing := got.Listing
	if listing.SellerID == input.BuyerID {
		return nil, errors.FailedPrecondition("cannot buy your own listing")
	}
	if input.Quantity > listing.Quantity {
		return nil, errors.FailedPreconditionf("listing has %d left, wanted %d", listing.Quantity, input.Quantity)
	}
	total := listing.PricePerUnit * int64(input.Quantity)

	buyer, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: input.BuyerID,
		Mutate: func(c *entities.Character) error {
			if c.Gold < total {
				return errors.FailedPreconditionf("need %d gold, have %d", total, c.Gold)
			}
			c.Gold -= total
			c.AddItem(listing.ItemID, input.Quantity)
			return nil
		},
	})
	if err != nil {
		return nil, err
	}
	o.noteGoldChanged(ctx, buyer.Character)

	var remaining *entities.MarketListing
	if input.Quantity == listing.Quantity {
		_, err = o.marketRepo.Delete(ctx, market.DeleteInput{ID: listing.ID})
	} else {
		listing.Quantity -= input.Quantity
		var updated *market.UpdateOutput
		updated, err = o.marketRepo.Update(ctx, market.UpdateInput{Listing: listing})
		if err == nil {
			remaining = updated.Listing
		}
	}
	if err != nil {
		// The listing could not be adjusted; unwind the buyer so the
		// lot is not sold twice.
		o.unwindPurchase(ctx, input.BuyerID, listing.ItemID, input.Quantity, total)
		return nil, err
	}

	o.paySeller(ctx, listing.SellerID, total, listing.ID)

	slog.InfoContext(ctx, "market purchase",
		"listing_id", listing.ID,
		"buyer_id", input.BuyerID,
		"seller_id", listing.SellerID,
		"quantity", input.Quantity,
		"spent", total,
	)
	return &BuyFromMarketOutput{Listing: remaining, Spent: total}, nil
}

// CancelListing withdraws a live listing and returns the escrowed
// items to the seller.
func (o *orchestrator) CancelListing(ctx context.Context, input *CancelListingInput) (*CancelListingOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	vb := errors.NewValidationBuilder()
	errors.ValidateRequired("sellerID", input.SellerID, vb)
	errors.ValidateRequired("listingID", input.ListingID, vb)
	if err := vb.Build(); err != nil {
		return nil, err
	}

	got, err := o.marketRepo.Get(ctx, market.GetInput{ID: input.ListingID})
	if err != nil {
		return nil, err
	}
	if got.Listing.SellerID != input.SellerID {
		return nil, errors.PermissionDenied("listing belongs to another seller")
	}

	deleted, err := o.marketRepo.Delete(ctx, market.DeleteInput{ID: input.ListingID})
	if err != nil {
		return nil, err
	}

	final := deleted.Listing
	o.returnItems(ctx, final.SellerID, final.ItemID, final.Quantity)

	slog.InfoContext(ctx, "market listing cancelled",
		"listing_id", final.ID,
		"seller_id", final.SellerID,
		"returned", final.Quantity,
	)
	return &CancelListingOutput{Returned: final.Quantity}, nil
}

// BrowseMarket lists every live listing.
func (o *orchestrator) BrowseMarket(ctx context.Context, input *BrowseMarketInput) (*BrowseMarketOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	listed, err := o.marketRepo.List(ctx, market.ListInput{})
	if err != nil {
		return nil, err
	}
	return &BrowseMarketOutput{Listings: listed.Listings}, nil
}

// Leaderboard reads the top of the gold board and resolves names.
// Entries whose character has since been deleted are skipped.
func (o *orchestrator) Leaderboard(ctx context.Context, input *LeaderboardInput) (*LeaderboardOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}
	limit := input.Limit
	if limit <= 0 {
		limit = 10
	}

	top, err := o.leaderboard.Top(ctx, leaderboard.TopInput{
		Board: leaderboard.BoardGold,
		Limit: limit,
	})
	if err != nil {
		return nil, err
	}

	entries := make([]LeaderboardEntry, 0, len(top.Entries))
	for _, e := range top.Entries {
		got, err := o.characterRepo.Get(ctx, characters.GetInput{ID: e.MemberID})
		if err != nil {
			if errors.IsNotFound(err) {
				continue
			}
			return nil, err
		}
		entries = append(entries, LeaderboardEntry{
			CharacterID: e.MemberID,
			Name:        got.Character.Name,
			Gold:        e.Score,
			Rank:        e.Rank,
		})
	}
	return &LeaderboardOutput{Entries: entries}, nil
}

// findShopPrice returns the item's price at the first shop stocking
// it, shops in ID order.
func (o *orchestrator) findShopPrice(item *catalog.ItemDefinition) (int64, bool) {
	if item.Price <= 0 {
		return 0, false
	}
	for _, shop := range o.catalog.Shops() {
		for _, id := range shop.ItemIDs {
			if id == item.ID {
				return shopPrice(item, shop), true
			}
		}
	}
	return 0, false
}

// shopPrice applies a shop's markup to an item's base price.
func shopPrice(item *catalog.ItemDefinition, shop *catalog.ShopDefinition) int64 {
	markup := shop.Markup
	if markup <= 0 {
		markup = 1
	}
	return int64(math.Round(float64(item.Price) * markup))
}

// paySeller credits a market sale. The buyer already has the items,
// so a failure here is logged rather than rolled back.
func (o *orchestrator) paySeller(ctx context.Context, sellerID string, amount int64, listingID string) {
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: sellerID,
		Mutate: func(c *entities.Character) error {
			c.Gold += amount
			return nil
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to pay market seller",
			"seller_id", sellerID,
			"listing_id", listingID,
			"amount", amount,
			"error", err,
		)
		return
	}
	o.noteGoldChanged(ctx, updated.Character)
}

// returnItems hands escrowed items back to their owner.
func (o *orchestrator) returnItems(ctx context.Context, characterID, itemID string, quantity int32) {
	if _, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: characterID,
		Mutate: func(c *entities.Character) error {
			c.AddItem(itemID, quantity)
			return nil
		},
	}); err != nil {
		slog.ErrorContext(ctx, "failed to return escrowed items",
			"character_id", characterID,
			"item_id", itemID,
			"quantity", quantity,
			"error", err,
		)
	}
}

// unwindPurchase reverses a buyer's debit after the listing could not
// be adjusted.
func (o *orchestrator) unwindPurchase(ctx context.Context, buyerID, itemID string, quantity int32, total int64) {
	updated, err := o.characterRepo.Update(ctx, characters.UpdateInput{
		ID: buyerID,
		Mutate: func(c *entities.Character) error {
			c.RemoveItem(itemID, quantity)
			c.Gold += total
			return nil
		},
	})
	if err != nil {
		slog.ErrorContext(ctx, "failed to unwind market purchase",
			"buyer_id", buyerID,
			"item_id", itemID,
			"error", err,
		)
		return
	}
	o.noteGoldChanged(ctx, updated.Character)
}

// noteGoldChanged publishes the new balance and refreshes the gold
// board. Both are best effort after the balance has committed.
func (o *orchestrator) noteGoldChanged(ctx context.Context, c *entities.Character) {
	if err := gameevents.Publish(ctx, o.eventBus, gameevents.TopicGoldChanged, gameevents.Payload{
		CharacterID: c.ID,
		Gold:        c.Gold,
	}); err != nil {
		slog.WarnContext(ctx, "failed to publish gold change",
			"character_id", c.ID,
			"error", err,
		)
	}
	if _, err := o.leaderboard.SetScore(ctx, leaderboard.SetScoreInput{
		Board:    leaderboard.BoardGold,
		MemberID: c.ID,
		Score:    c.Gold,
	}); err != nil {
		slog.WarnContext(ctx, "failed to update gold board",
			"character_id", c.ID,
			"error", err,
		)
	}
}
