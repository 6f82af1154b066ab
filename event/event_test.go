package event

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleTrade() MarketEvent {
	return MarketEvent{
		Timestamp: time.Now().UTC(),
		Symbol:    "AAPL",
		Type:      TypeTrade,
		Source:    "nasdaq-itch",
		Payload: Trade{
			Price:          decimal.NewFromFloat(189.32),
			Size:           decimal.NewFromInt(100),
			Aggressor:      AggressorBuy,
			SequenceNumber: 42,
			Venue:          "XNAS",
		},
	}
}

func TestValidate_AcceptsWellFormedTrade(t *testing.T) {
	require.NoError(t, sampleTrade().Validate())
}

func TestValidate_RejectsBadSymbol(t *testing.T) {
	e := sampleTrade()
	e.Symbol = "this-symbol-is-way-too-long"
	assert.Error(t, e.Validate())
}

func TestValidate_RejectsUnknownType(t *testing.T) {
	e := sampleTrade()
	e.Type = "Unknown"
	assert.Error(t, e.Validate())
}

func TestValidate_RejectsMismatchedPayload(t *testing.T) {
	e := sampleTrade()
	e.Payload = BboQuote{}
	assert.Error(t, e.Validate())
}

func TestValidate_RequiresSource(t *testing.T) {
	e := sampleTrade()
	e.Source = ""
	assert.Error(t, e.Validate())
}

func TestJSONRoundTrip_PreservesConcretePayloadType(t *testing.T) {
	original := sampleTrade()

	data, err := json.Marshal(original)
	require.NoError(t, err)

	var decoded MarketEvent
	require.NoError(t, json.Unmarshal(data, &decoded))

	trade, ok := decoded.Payload.(Trade)
	require.True(t, ok, "expected Payload to decode back into a Trade, got %T", decoded.Payload)
	assert.True(t, trade.Price.Equal(decimal.NewFromFloat(189.32)))
	assert.Equal(t, original.Symbol, decoded.Symbol)
	assert.Equal(t, original.Type, decoded.Type)
	require.NoError(t, decoded.Validate())
}

func TestJSONRoundTrip_L2SnapshotAndOther(t *testing.T) {
	snapshot := MarketEvent{
		Timestamp: time.Now().UTC(),
		Symbol:    "AAPL",
		Type:      TypeL2Snapshot,
		Source:    "nasdaq-itch",
		Payload: L2Snapshot{
			Bids: []PriceSize{{Price: decimal.NewFromFloat(189.30), Size: decimal.NewFromInt(10)}},
			Asks: []PriceSize{{Price: decimal.NewFromFloat(189.35), Size: decimal.NewFromInt(5)}},
		},
	}
	data, err := json.Marshal(snapshot)
	require.NoError(t, err)
	var decoded MarketEvent
	require.NoError(t, json.Unmarshal(data, &decoded))
	l2, ok := decoded.Payload.(L2Snapshot)
	require.True(t, ok)
	assert.Len(t, l2.Bids, 1)
	require.NoError(t, decoded.Validate())

	other := MarketEvent{
		Timestamp: time.Now().UTC(),
		Symbol:    "AAPL",
		Type:      TypeOther,
		Source:    "nasdaq-itch",
		Payload:   Other{Fields: map[string]any{"halt_reason": "news-pending"}},
	}
	data, err = json.Marshal(other)
	require.NoError(t, err)
	var decodedOther MarketEvent
	require.NoError(t, json.Unmarshal(data, &decodedOther))
	o, ok := decodedOther.Payload.(Other)
	require.True(t, ok)
	assert.Equal(t, "news-pending", o.Fields["halt_reason"])
}
