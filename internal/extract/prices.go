package extract

import (
	"strconv"
	"strings"
	"time"

	"github.com/wasilibs/go-re2"
	"golang.org/x/net/html"

	"github.com/aatumaykin/berrus-helper/internal/dom"
	"github.com/aatumaykin/berrus-helper/internal/game"
)

var (
	pesetasPattern     = re2.MustCompile(`(?i)pesetas`)
	priceNumberPattern = re2.MustCompile(`^\d[\d.,]*$`)
	nonDigits          = re2.MustCompile(`\D`)
)

// ParsePriceText keeps only the digits of text. Dots are thousands
// separators on this site: "298.200" is 298200.
func ParsePriceText(text string) (int64, bool) {
	cleaned := nonDigits.ReplaceAllString(text, "")
	if cleaned == "" {
		return 0, false
	}
	price, err := strconv.ParseInt(cleaned, 10, 64)
	if err != nil {
		return 0, false
	}
	return price, true
}

// SourceFromPath tells market pages from NPC shops.
func SourceFromPath(path string) game.PriceSource {
	p := strings.ToLower(path)
	if strings.Contains(p, "mercadillo") || strings.Contains(p, "market") {
		return game.SourceMercadillo
	}
	return game.SourceShop
}

// PriceExtractor reads "item image, pesetas icon, amount" triplets.
type PriceExtractor struct {
	now func() time.Time
}

// NewPriceExtractor creates an extractor. A nil clock means time.Now.
func NewPriceExtractor(now func() time.Time) *PriceExtractor {
	if now == nil {
		now = time.Now
	}
	return &PriceExtractor{now: now}
}

// ExtractPrices returns a snapshot for every complete triplet under root.
// path is the page path and decides the snapshot source.
func (e *PriceExtractor) ExtractPrices(root *html.Node, path string) []game.PriceSnapshot {
	anchors := dom.FindImagesByAttribute(pesetasPattern, root)
	if len(anchors) == 0 {
		return nil
	}

	source := SourceFromPath(path)
	ts := e.now().UnixMilli()

	var out []game.PriceSnapshot
	for _, anchor := range anchors {
		if snap, ok := priceFromTriplet(anchor, source, ts); ok {
			out = append(out, snap)
		}
	}
	return out
}

func priceFromTriplet(anchor *html.Node, source game.PriceSource, ts int64) (game.PriceSnapshot, bool) {
	itemImg := dom.FindPreviousElementByTag(anchor, "img")
	if itemImg == nil || isCurrencyIcon(itemImg) {
		return game.PriceSnapshot{}, false
	}

	priceText := dom.FindNextTextContent(anchor)
	if !priceNumberPattern.MatchString(priceText) {
		return game.PriceSnapshot{}, false
	}

	name := itemName(itemImg)
	if name == "" {
		return game.PriceSnapshot{}, false
	}

	price, ok := ParsePriceText(priceText)
	if !ok {
		return game.PriceSnapshot{}, false
	}

	return game.PriceSnapshot{
		ItemID:    game.ItemIDFromName(name),
		ItemName:  name,
		Price:     price,
		Timestamp: ts,
		Source:    source,
	}, true
}

func isCurrencyIcon(img *html.Node) bool {
	return pesetasPattern.MatchString(dom.Attr(img, "alt")) || pesetasPattern.MatchString(dom.Attr(img, "src"))
}

// itemName is the alt text, else the image file name without extension.
func itemName(img *html.Node) string {
	if alt := cleanText(dom.Attr(img, "alt")); alt != "" {
		return alt
	}

	src := dom.Attr(img, "src")
	if i := strings.IndexAny(src, "?#"); i >= 0 {
		src = src[:i]
	}
	if i := strings.LastIndex(src, "/"); i >= 0 {
		src = src[i+1:]
	}
	if i := strings.Index(src, "."); i >= 0 {
		src = src[:i]
	}
	return cleanText(src)
}
