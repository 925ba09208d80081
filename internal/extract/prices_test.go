package extract

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aatumaykin/berrus-helper/internal/game"
)

func TestParsePriceText(t *testing.T) {
	tests := []struct {
		in     string
		want   int64
		wantOK bool
	}{
		{in: "298.200", want: 298_200, wantOK: true},
		{in: "1.500.000", want: 1_500_000, wantOK: true},
		{in: "$1.500", want: 1_500, wantOK: true},
		{in: "150", want: 150, wantOK: true},
		{in: "1,250", want: 1_250, wantOK: true},
		{in: ""},
		{in: "abc"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParsePriceText(tt.in)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSourceFromPath(t *testing.T) {
	assert.Equal(t, game.SourceMercadillo, SourceFromPath("/g/c/rsn/mercadillo"))
	assert.Equal(t, game.SourceMercadillo, SourceFromPath("/g/c/rsn/Market/ores"))
	assert.Equal(t, game.SourceShop, SourceFromPath("/g/c/rsn/shop"))
	assert.Equal(t, game.SourceShop, SourceFromPath("/"))
}

func TestExtractPrices(t *testing.T) {
	root := parseBody(t, `
		<ul>
			<li><img alt="Cobre" src="/items/cobre.png"><img alt="pesetas" src="/icons/pesetas.png"><span>298.200</span></li>
			<li><img alt="" src="/items/hierro-forjado.webp?v=2"><img src="/icons/Pesetas.svg"><span> 1.500 </span></li>
		</ul>`)

	prices := NewPriceExtractor(fixedClock).ExtractPrices(root, "/g/c/rsn/shop")
	require.Len(t, prices, 2)

	assert.Equal(t, game.PriceSnapshot{
		ItemID:    "cobre",
		ItemName:  "Cobre",
		Price:     298_200,
		Timestamp: fixedNow.UnixMilli(),
		Source:    game.SourceShop,
	}, prices[0])

	assert.Equal(t, "hierro-forjado", prices[1].ItemID)
	assert.Equal(t, "hierro-forjado", prices[1].ItemName)
	assert.Equal(t, int64(1_500), prices[1].Price)
}

func TestExtractPrices_ItemIDFromAltWithSpaces(t *testing.T) {
	root := parseBody(t, `<div><img alt="Iron Sword"><img alt="pesetas"><b>500</b></div>`)

	prices := NewPriceExtractor(fixedClock).ExtractPrices(root, "/g/c/rsn/mercadillo")
	require.Len(t, prices, 1)
	assert.Equal(t, "iron-sword", prices[0].ItemID)
	assert.Equal(t, game.SourceMercadillo, prices[0].Source)
}

func TestExtractPrices_ItemImageInPreviousCell(t *testing.T) {
	root := parseBody(t, `
		<table><tbody><tr>
			<td><div><img alt="Trucha"></div></td>
			<td><img alt="pesetas"><span>75</span></td>
		</tr></tbody></table>`)

	prices := NewPriceExtractor(fixedClock).ExtractPrices(root, "/shop")
	require.Len(t, prices, 1)
	assert.Equal(t, "Trucha", prices[0].ItemName)
	assert.Equal(t, int64(75), prices[0].Price)
}

func TestExtractPrices_Rejects(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "no currency icon", body: `<div><img alt="Cobre"><span>100</span></div>`},
		{name: "no item image", body: `<div><img alt="pesetas"><span>100</span></div>`},
		{name: "adjacent currency icons", body: `<div><img alt="pesetas"><img alt="pesetas"><span>100</span></div>`},
		{name: "price is not a number", body: `<div><img alt="Cobre"><img alt="pesetas"><span>Comprar</span></div>`},
		{name: "no item name", body: `<div><img alt=""><img alt="pesetas"><span>100</span></div>`},
		{name: "no price text", body: `<div><img alt="Cobre"><img alt="pesetas"></div>`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prices := NewPriceExtractor(fixedClock).ExtractPrices(parseBody(t, tt.body), "/shop")
			assert.Empty(t, prices)
		})
	}
}
