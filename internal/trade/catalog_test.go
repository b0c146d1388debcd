package trade

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandFor(t *testing.T) {
	cases := []struct {
		symbol string
		class  AssetClass
		band   PriceBand
	}{
		{"USD/RUB", FXSpot, BandFXQuoteRUB},
		{"EUR/USD", FXSpot, BandFXOther},
		{"USD/JPY", FXSpot, BandFXOther},
		{"BTC/USD", Crypto, BandCryptoBTC},
		{"ETH/USD", Crypto, BandCryptoOther},
		{"SBER", Equity, BandEquity},
		{"ROSN", Equity, BandEquity},
	}

	for _, tc := range cases {
		t.Run(tc.symbol, func(t *testing.T) {
			assert.Equal(t, tc.band, BandFor(Instrument{Symbol: tc.symbol, Class: tc.class}))
		})
	}
}

func TestPriceRangesAreFixed(t *testing.T) {
	assert.Equal(t, PriceRange{Min: 85, Max: 95, Decimals: 4}, RangeFor(BandFXQuoteRUB))
	assert.Equal(t, PriceRange{Min: 0.8, Max: 1.5, Decimals: 4}, RangeFor(BandFXOther))
	assert.Equal(t, PriceRange{Min: 40000, Max: 70000, Decimals: 2}, RangeFor(BandCryptoBTC))
	assert.Equal(t, PriceRange{Min: 2000, Max: 4000, Decimals: 2}, RangeFor(BandCryptoOther))
	assert.Equal(t, PriceRange{Min: 100, Max: 500, Decimals: 2}, RangeFor(BandEquity))
}

func TestInstrumentDerivedFields(t *testing.T) {
	assert.Equal(t, "USD", Instrument{Symbol: "EUR/USD"}.Currency())
	assert.Equal(t, "RUB", Instrument{Symbol: "SBER"}.Currency())
	assert.Equal(t, "MISX", Instrument{Exchange: "MOEX"}.MIC())
	assert.Equal(t, "XNAS", Instrument{Exchange: "BINANCE"}.MIC())
}

func TestIDPools(t *testing.T) {
	assert.Len(t, clientIDs, 100)
	assert.Equal(t, "CLI-000000001", clientIDs[0])
	assert.Equal(t, "CLI-000000100", clientIDs[99])
	assert.Len(t, counterpartyIDs, 20)
	assert.Equal(t, "CP-000000020", counterpartyIDs[19])
}
