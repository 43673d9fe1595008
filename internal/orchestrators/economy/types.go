package economy

import "github.com/nonamep-p/rpg-core/internal/entities"

// StockEntry is one purchasable item with its shop price applied.
type StockEntry struct {
	ItemID string
	Name   string
	Price  int64
}

// ShopStock is one shop's priced rotation.
type ShopStock struct {
	ShopID string
	Name   string
	Items  []StockEntry
}

// ShopStockInput defines the input for reading shop rotations.
type ShopStockInput struct{}

// ShopStockOutput defines the output for reading shop rotations.
type ShopStockOutput struct {
	Shops []ShopStock
}

// BuyItemInput defines the input for a shop purchase.
type BuyItemInput struct {
	PlayerID string
	ItemID   string
	Quantity int32
}

// BuyItemOutput defines the output for a shop purchase.
type BuyItemOutput struct {
	Character *entities.Character

	// Spent is the total gold deducted.
	Spent int64
}

// SellItemInput defines the input for selling items to the shop.
type SellItemInput struct {
	PlayerID string
	ItemID   string
	Quantity int32
}

// SellItemOutput defines the output for selling items to the shop.
type SellItemOutput struct {
	Character *entities.Character

	// Earned is the total gold credited.
	Earned int64
}

// ListOnMarketInput defines the input for posting a market listing.
type ListOnMarketInput struct {
	SellerID     string
	ItemID       string
	Quantity     int32
	PricePerUnit int64
}

// ListOnMarketOutput defines the output for posting a market listing.
type ListOnMarketOutput struct {
	Listing *entities.MarketListing
}

// BuyFromMarketInput defines the input for a market purchase. Partial
// purchases are allowed; the listing shrinks and closes when sold out.
type BuyFromMarketInput struct {
	BuyerID   string
	ListingID string
	Quantity  int32
}

// BuyFromMarketOutput defines the output for a market purchase.
type BuyFromMarketOutput struct {
	// Listing is nil when the purchase sold the lot out.
	Listing *entities.MarketListing

	// Spent is the total gold the buyer paid.
	Spent int64
}

// CancelListingInput defines the input for withdrawing a listing.
type CancelListingInput struct {
	SellerID  string
	ListingID string
}

// CancelListingOutput defines the output for withdrawing a listing.
type CancelListingOutput struct {
	// Returned is how many escrowed items went back to the seller.
	Returned int32
}

// BrowseMarketInput defines the input for browsing live listings.
type BrowseMarketInput struct{}

// BrowseMarketOutput defines the output for browsing live listings.
type BrowseMarketOutput struct {
	Listings []*entities.MarketListing
}

// LeaderboardEntry is one ranked player on the gold board.
type LeaderboardEntry struct {
	CharacterID string
	Name        string
	Gold        int64
	Rank        int64
}

// LeaderboardInput defines the input for the gold leaderboard.
type LeaderboardInput struct {
	Limit int32
}

// LeaderboardOutput defines the output for the gold leaderboard.
type LeaderboardOutput struct {
	Entries []LeaderboardEntry
}
