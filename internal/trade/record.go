// Package trade fabricates synthetic trade-execution records.
package trade

// Record is one synthetic trade-execution document. Field order and JSON
// names are the wire contract with downstream consumers and must not change.
// A Record is never modified after Factory.Generate returns it.
type Record struct {
	TradeID         string        `json:"tradeId"`
	ExchangeTradeID string        `json:"exchangeTradeId"`
	Timestamp       string        `json:"timestamp"`
	ExecutionTime   string        `json:"executionTime"`
	Instrument      InstrumentRef `json:"instrument"`
	Side            Side          `json:"side"`
	OrderType       OrderType     `json:"orderType"`
	Quantity        float64       `json:"quantity"`
	Price           float64       `json:"price"`
	Amount          float64       `json:"amount"`
	Commission      Commission    `json:"commission"`
	Counterparty    Counterparty  `json:"counterparty"`
	Client          Client        `json:"client"`
	Settlement      Settlement    `json:"settlement"`
	Venue           Venue         `json:"venue"`
	Fees            []Fee         `json:"fees"`
	Metadata        Metadata      `json:"metadata"`
	Regulatory      Regulatory    `json:"regulatory"`
}

// InstrumentRef is the instrument descriptor embedded in a record.
type InstrumentRef struct {
	Symbol   string     `json:"symbol"`
	Type     AssetClass `json:"type"`
	Exchange string     `json:"exchange"`
	Currency string     `json:"currency"`
}

type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

type OrderType string

const (
	OrderLimit     OrderType = "LIMIT"
	OrderMarket    OrderType = "MARKET"
	OrderStop      OrderType = "STOP"
	OrderStopLimit OrderType = "STOP_LIMIT"
)

// Commission is charged at CommissionRate of the trade amount.
type Commission struct {
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
	Type     string  `json:"type"`
}

type Counterparty struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	LEI  string `json:"lei"`
}

type Client struct {
	ID      string `json:"id"`
	Account string `json:"account"`
	Type    string `json:"type"`
}

type Settlement struct {
	Date   string `json:"date"`
	Type   string `json:"type"`
	Status string `json:"status"`
}

type Venue struct {
	MIC     string `json:"mic"`
	Segment string `json:"segment"`
	Session string `json:"session"`
}

type Fee struct {
	Type     string  `json:"type"`
	Value    float64 `json:"value"`
	Currency string  `json:"currency"`
}

type Metadata struct {
	Source         string  `json:"source"`
	Version        string  `json:"version"`
	SequenceNumber int     `json:"sequenceNumber"`
	MatchingEngine string  `json:"matchingEngine"`
	LatencyMs      float64 `json:"latencyMs"`
}

type Regulatory struct {
	ReportingRequired bool   `json:"reportingRequired"`
	MiFID2            MiFID2 `json:"mifid2"`
}

// MiFID2 holds the jurisdiction-specific reporting fields.
type MiFID2 struct {
	TradingVenue       string `json:"tradingVenue"`
	InvestmentDecision string `json:"investmentDecision"`
	ExecutionWithin    string `json:"executionWithin"`
}
