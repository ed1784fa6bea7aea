package connector

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/quantpair/market-data-pipeline/pkg/marketdata"
)

// tradeEvent mirrors the feed's per-instrument trade payload. Price and
// quantity arrive as strings on the wire.
type tradeEvent struct {
	EventType string `json:"e"`
	Symbol    string `json:"s"`
	TradeID   int64  `json:"t"`
	Price     string `json:"p"`
	Quantity  string `json:"q"`
	TradeTime int64  `json:"T"`
}

// ParseTradeMessage validates a raw feed message into a strongly-typed Tick.
// Anything that is not a well-formed trade event is rejected with an error;
// the connector counts and discards it.
func ParseTradeMessage(raw []byte) (marketdata.Tick, error) {
	var ev tradeEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return marketdata.Tick{}, fmt.Errorf("malformed feed message: %w", err)
	}
	if ev.EventType != "trade" {
		return marketdata.Tick{}, fmt.Errorf("unexpected event type %q", ev.EventType)
	}

	price, err := strconv.ParseFloat(ev.Price, 64)
	if err != nil {
		return marketdata.Tick{}, fmt.Errorf("non-numeric price %q: %w", ev.Price, err)
	}
	quantity, err := strconv.ParseFloat(ev.Quantity, 64)
	if err != nil {
		return marketdata.Tick{}, fmt.Errorf("non-numeric quantity %q: %w", ev.Quantity, err)
	}

	tick := marketdata.Tick{
		Instrument: ev.Symbol,
		Price:      price,
		Quantity:   quantity,
		TradeID:    ev.TradeID,
		Timestamp:  ev.TradeTime,
	}
	if err := tick.Validate(); err != nil {
		return marketdata.Tick{}, err
	}
	return tick, nil
}
