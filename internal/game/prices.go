package game

import "strings"

// PriceSource tells where a price was read.
type PriceSource string

const (
	SourceShop       PriceSource = "shop"
	SourceMercadillo PriceSource = "mercadillo"
)

// PriceSnapshot is a single observed price, in whole pesetas.
type PriceSnapshot struct {
	ItemID    string      `json:"itemId"`
	ItemName  string      `json:"itemName"`
	Price     int64       `json:"price"`
	Timestamp int64       `json:"timestamp"`
	Source    PriceSource `json:"source"`
}

// PriceHistory keeps the latest snapshots of one item and their bounds.
type PriceHistory struct {
	ItemID       string          `json:"itemId"`
	ItemName     string          `json:"itemName"`
	Snapshots    []PriceSnapshot `json:"snapshots"`
	MinPrice     int64           `json:"minPrice"`
	MaxPrice     int64           `json:"maxPrice"`
	CurrentPrice int64           `json:"currentPrice"`
}

// ItemIDFromName derives a stable item id: lowercase, whitespace runs become "-".
func ItemIDFromName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), "-")
}

// NewPriceHistory creates a history seeded with one snapshot.
func NewPriceHistory(s PriceSnapshot) PriceHistory {
	h := PriceHistory{ItemID: s.ItemID}
	h.Append(s)
	return h
}

// Append adds s, drops the oldest snapshot past the cap and recomputes bounds.
func (h *PriceHistory) Append(s PriceSnapshot) {
	h.Snapshots = appendBounded(h.Snapshots, s, MaxPriceSnapshots)
	h.ItemName = s.ItemName
	h.CurrentPrice = s.Price

	h.MinPrice, h.MaxPrice = h.Snapshots[0].Price, h.Snapshots[0].Price
	for _, snap := range h.Snapshots[1:] {
		h.MinPrice = min(h.MinPrice, snap.Price)
		h.MaxPrice = max(h.MaxPrice, snap.Price)
	}
}
