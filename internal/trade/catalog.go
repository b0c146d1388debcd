package trade

import (
	"fmt"
	"strings"
)

// AssetClass is the instrument type published in instrument.type.
type AssetClass string

const (
	FXSpot AssetClass = "FX_SPOT"
	Crypto AssetClass = "CRYPTO"
	Equity AssetClass = "EQUITY"
)

// Instrument is one entry of the tradable catalog.
type Instrument struct {
	Symbol   string
	Class    AssetClass
	Exchange string
}

// Currency is the settlement currency of the instrument.
func (i Instrument) Currency() string {
	if strings.Contains(i.Symbol, "USD") {
		return "USD"
	}
	return "RUB"
}

// MIC is the market identifier code of the executing venue.
func (i Instrument) MIC() string {
	if i.Exchange == "MOEX" {
		return "MISX"
	}
	return "XNAS"
}

// Instruments is the catalog records are drawn from, uniformly.
var Instruments = []Instrument{
	{Symbol: "USD/RUB", Class: FXSpot, Exchange: "MOEX"},
	{Symbol: "EUR/USD", Class: FXSpot, Exchange: "MOEX"},
	{Symbol: "GBP/USD", Class: FXSpot, Exchange: "MOEX"},
	{Symbol: "USD/JPY", Class: FXSpot, Exchange: "MOEX"},
	{Symbol: "BTC/USD", Class: Crypto, Exchange: "BINANCE"},
	{Symbol: "ETH/USD", Class: Crypto, Exchange: "BINANCE"},
	{Symbol: "SBER", Class: Equity, Exchange: "MOEX"},
	{Symbol: "GAZP", Class: Equity, Exchange: "MOEX"},
	{Symbol: "YNDX", Class: Equity, Exchange: "MOEX"},
	{Symbol: "ROSN", Class: Equity, Exchange: "MOEX"},
}

// PriceBand selects the price range an instrument is sampled from.
type PriceBand int

const (
	BandFXQuoteRUB PriceBand = iota
	BandFXOther
	BandCryptoBTC
	BandCryptoOther
	BandEquity
)

func (b PriceBand) String() string {
	switch b {
	case BandFXQuoteRUB:
		return "fx-rub"
	case BandFXOther:
		return "fx-other"
	case BandCryptoBTC:
		return "crypto-btc"
	case BandCryptoOther:
		return "crypto-other"
	case BandEquity:
		return "equity"
	default:
		return fmt.Sprintf("band(%d)", int(b))
	}
}

// PriceRange is a closed sampling interval and the precision prices in it
// are rounded to.
type PriceRange struct {
	Min      float64
	Max      float64
	Decimals int32
}

var priceRanges = [...]PriceRange{
	BandFXQuoteRUB:  {Min: 85, Max: 95, Decimals: 4},
	BandFXOther:     {Min: 0.8, Max: 1.5, Decimals: 4},
	BandCryptoBTC:   {Min: 40000, Max: 70000, Decimals: 2},
	BandCryptoOther: {Min: 2000, Max: 4000, Decimals: 2},
	BandEquity:      {Min: 100, Max: 500, Decimals: 2},
}

// BandFor resolves the price band of an instrument.
func BandFor(i Instrument) PriceBand {
	switch i.Class {
	case FXSpot:
		if strings.Contains(i.Symbol, "RUB") {
			return BandFXQuoteRUB
		}
		return BandFXOther
	case Crypto:
		if strings.Contains(i.Symbol, "BTC") {
			return BandCryptoBTC
		}
		return BandCryptoOther
	default:
		return BandEquity
	}
}

// RangeFor returns the sampling range of a band.
func RangeFor(b PriceBand) PriceRange {
	return priceRanges[b]
}

// Categorical pools.
var (
	sides               = []Side{SideBuy, SideSell}
	orderTypes          = []OrderType{OrderLimit, OrderMarket, OrderStop, OrderStopLimit}
	brokerNames         = []string{"ABC", "XYZ", "DEF", "GHI"}
	clientTypes         = []string{"INSTITUTIONAL", "RETAIL", "PROPRIETARY"}
	venueSegments       = []string{"MAIN", "DARK", "AUCTION"}
	sources             = []string{"FIX", "REST", "WS"}
	investmentDecisions = []string{"ALGO", "HUMAN", "HYBRID"}

	clientIDs       = idPool("CLI", 100)
	counterpartyIDs = idPool("CP", 20)
)

func idPool(prefix string, n int) []string {
	ids := make([]string, n)
	for i := range ids {
		ids[i] = fmt.Sprintf("%s-%09d", prefix, i+1)
	}
	return ids
}
