package entities

// MarketListing is one lot of items offered on the player market.
// The listed items are held in escrow: they leave the seller's
// inventory at listing time and return only if the listing is
// cancelled or expires.
type MarketListing struct {
	ID       string `json:"id"`
	SellerID string `json:"seller_id"`

	ItemID   string `json:"item_id"`
	Quantity int32  `json:"quantity"`

	// PricePerUnit lets buyers take part of the lot.
	PricePerUnit int64 `json:"price_per_unit"`

	CreatedAt int64 `json:"created_at"`
	ExpiresAt int64 `json:"expires_at"`
}
