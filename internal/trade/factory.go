package trade

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"math"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	// CommissionRate is the share of the trade amount charged as commission.
	CommissionRate = 0.002

	minQuantity = 1_000
	maxQuantity = 1_000_000

	minSequence = 1_000_000
	maxSequence = 99_999_999

	timestampLayout = "2006-01-02T15:04:05.000000-07:00"

	// tradeId suffixes are 12 hex digits.
	suffixBits = 48
	suffixMask = 1<<suffixBits - 1
	// odd multiplier, so seq -> seq*suffixMul is a bijection modulo 2^48
	suffixMul = 0x9E3779B97F4A7C15
)

// Factory produces trade records from its own randomness source. It holds no
// reference to records it has returned. A Factory is not safe for concurrent
// use; the run loop owns exactly one.
type Factory struct {
	src  *rand.ChaCha8
	rng  *rand.Rand
	now  func() time.Time
	seq  uint64
	salt uint64
}

// Option customises a Factory.
type Option func(*Factory)

// WithClock overrides the time source used for timestamps and date stamps.
func WithClock(now func() time.Time) Option {
	return func(f *Factory) {
		f.now = now
	}
}

// NewFactory creates a factory. A zero seed selects a random one; any other
// value makes the generated field values reproducible.
func NewFactory(seed uint64, opts ...Option) *Factory {
	if seed == 0 {
		seed = rand.Uint64()
	}
	var key [32]byte
	binary.LittleEndian.PutUint64(key[:8], seed)
	src := rand.NewChaCha8(key)

	f := &Factory{
		src: src,
		rng: rand.New(src),
		now: time.Now,
	}
	f.salt = f.rng.Uint64() & suffixMask
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Generate returns a fully populated record. It never fails.
func (f *Factory) Generate() *Record {
	inst := pick(f.rng, Instruments)
	quantity := Round(f.uniform(minQuantity, maxQuantity), 2)

	band := RangeFor(BandFor(inst))
	price := Round(f.uniform(band.Min, band.Max), band.Decimals)

	amount := Amount(quantity, price)
	commissionType := "TAKER"
	if f.rng.Float64() > 0.5 {
		commissionType = "MAKER"
	}

	created := f.now()
	executed := f.now()

	return &Record{
		TradeID:         fmt.Sprintf("TRD-%s-%s", created.Format("20060102"), f.tradeSuffix()),
		ExchangeTradeID: fmt.Sprintf("EXCH-%s-%s", inst.Exchange, f.randomHex(16)),
		Timestamp:       created.UTC().Format(timestampLayout),
		ExecutionTime:   executed.UTC().Format(timestampLayout),
		Instrument: InstrumentRef{
			Symbol:   inst.Symbol,
			Type:     inst.Class,
			Exchange: inst.Exchange,
			Currency: inst.Currency(),
		},
		Side:      pick(f.rng, sides),
		OrderType: pick(f.rng, orderTypes),
		Quantity:  quantity,
		Price:     price,
		Amount:    amount,
		Commission: Commission{
			Value:    CommissionFor(amount),
			Currency: "USD",
			Type:     commissionType,
		},
		Counterparty: Counterparty{
			ID:   pick(f.rng, counterpartyIDs),
			Name: "BROKER_" + pick(f.rng, brokerNames),
			LEI:  "549300" + f.randomHex(12),
		},
		Client: Client{
			ID:      pick(f.rng, clientIDs),
			Account: fmt.Sprintf("ACC-%03d", f.rng.IntN(1000)+1),
			Type:    pick(f.rng, clientTypes),
		},
		Settlement: Settlement{
			Date:   created.Format("2006-01-02"),
			Type:   "T+2",
			Status: "PENDING",
		},
		Venue: Venue{
			MIC:     inst.MIC(),
			Segment: pick(f.rng, venueSegments),
			Session: "MAIN",
		},
		Fees: []Fee{
			{Type: "EXCHANGE_FEE", Value: Round(f.uniform(5, 20), 2), Currency: "USD"},
			{Type: "CLEARING_FEE", Value: Round(f.uniform(2, 10), 2), Currency: "USD"},
		},
		Metadata: Metadata{
			Source:         pick(f.rng, sources),
			Version:        "1.0",
			SequenceNumber: minSequence + f.rng.IntN(maxSequence-minSequence+1),
			MatchingEngine: fmt.Sprintf("ME%02d", f.rng.IntN(5)+1),
			LatencyMs:      Round(f.uniform(0.5, 10), 3),
		},
		Regulatory: Regulatory{
			ReportingRequired: true,
			MiFID2: MiFID2{
				TradingVenue:       truncate(inst.Exchange, 4),
				InvestmentDecision: pick(f.rng, investmentDecisions),
				ExecutionWithin:    "FIRM",
			},
		},
	}
}

// tradeSuffix scrambles a per-factory sequence into 12 hex digits. The
// mapping is a bijection on 48 bits, so suffixes never repeat within 2^48
// records of the same factory.
func (f *Factory) tradeSuffix() string {
	f.seq++
	v := (f.seq*suffixMul + f.salt) & suffixMask
	return fmt.Sprintf("%012X", v)
}

// randomHex returns the first n uppercase hex digits of a v4 UUID drawn from
// the factory source.
func (f *Factory) randomHex(n int) string {
	u, err := uuid.NewRandomFromReader(f.src)
	if err != nil {
		u = uuid.New()
	}
	return strings.ToUpper(hex.EncodeToString(u[:]))[:n]
}

func (f *Factory) uniform(lo, hi float64) float64 {
	return lo + (hi-lo)*f.rng.Float64()
}

// Round rounds the exact binary value of v to the given number of decimals,
// ties to even, the same result a float-based consumer re-checking the
// figures computes.
func Round(v float64, places int32) float64 {
	return exactDecimal(v).RoundBank(places).InexactFloat64()
}

// Amount is the notional of a trade: the float product quantity * price
// rounded to cents.
func Amount(quantity, price float64) float64 {
	return Round(quantity*price, 2)
}

// CommissionFor returns the commission charged on amount, rounded to cents.
func CommissionFor(amount float64) float64 {
	return Round(amount*CommissionRate, 2)
}

// exactDecimal expands v into every digit of its binary value; no rounding
// happens before RoundBank sees it.
func exactDecimal(v float64) decimal.Decimal {
	return decimal.NewFromFloatWithExponent(v, math.MinInt32)
}

func pick[T any](r *rand.Rand, items []T) T {
	return items[r.IntN(len(items))]
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
