package futures

import (
	"fmt"
	"strings"
)

// Interval enumerates the candlestick intervals accepted by the exchange.
type Interval string

const (
	Interval1m  Interval = "1m"
	Interval3m  Interval = "3m"
	Interval5m  Interval = "5m"
	Interval15m Interval = "15m"
	Interval30m Interval = "30m"
	Interval1h  Interval = "1h"
	Interval2h  Interval = "2h"
	Interval4h  Interval = "4h"
	Interval6h  Interval = "6h"
	Interval8h  Interval = "8h"
	Interval12h Interval = "12h"
	Interval1d  Interval = "1d"
	Interval3d  Interval = "3d"
	Interval1w  Interval = "1w"
	Interval1M  Interval = "1M"
)

var validIntervals = map[Interval]struct{}{
	Interval1m: {}, Interval3m: {}, Interval5m: {}, Interval15m: {},
	Interval30m: {}, Interval1h: {}, Interval2h: {}, Interval4h: {},
	Interval6h: {}, Interval8h: {}, Interval12h: {}, Interval1d: {},
	Interval3d: {}, Interval1w: {}, Interval1M: {},
}

// UpdateSpeed selects the push cadence of a stream.
type UpdateSpeed int

const (
	// SpeedNormal is the exchange's default cadence.
	SpeedNormal UpdateSpeed = iota

	// SpeedFast requests the low-latency cadence (100ms for depth streams,
	// 1s for the all-market mark price stream).
	SpeedFast
)

// Depth levels accepted by the partial book depth stream.
var validDepthLevels = map[int]struct{}{5: {}, 10: {}, 20: {}}

// Stream-name construction. The exchange keys every feed by a string built
// from the symbol and a kind-specific suffix; symbols are lowercased except
// for token streams, which the exchange requires uppercase. These strings
// are the wire contract and must match exactly.

func aggTradeChannel(symbol string) string {
	return strings.ToLower(symbol) + "@aggTrade"
}

func markPriceChannel(symbol string) string {
	return strings.ToLower(symbol) + "@markPrice"
}

func candlestickChannel(symbol string, interval Interval) string {
	return fmt.Sprintf("%s@kline_%s", strings.ToLower(symbol), interval)
}

func miniTickerChannel(symbol string) string {
	return strings.ToLower(symbol) + "@miniTicker"
}

const allMiniTickersChannel = "!miniTicker@arr"

func tickerChannel(symbol string) string {
	return strings.ToLower(symbol) + "@ticker"
}

const allTickersChannel = "!ticker@arr"

func bookTickerChannel(symbol string) string {
	return strings.ToLower(symbol) + "@bookTicker"
}

const allBookTickersChannel = "!bookTicker"

func liquidationChannel(symbol string) string {
	return strings.ToLower(symbol) + "@forceOrder"
}

const allLiquidationsChannel = "!forceOrder@arr"

func partialDepthChannel(symbol string, levels int, speed UpdateSpeed) string {
	name := fmt.Sprintf("%s@depth%d", strings.ToLower(symbol), levels)
	if speed == SpeedFast {
		name += "@100ms"
	}
	return name
}

func diffDepthChannel(symbol string, speed UpdateSpeed) string {
	name := strings.ToLower(symbol) + "@depth"
	if speed == SpeedFast {
		name += "@100ms"
	}
	return name
}

func allMarkPriceChannel(speed UpdateSpeed) string {
	if speed == SpeedFast {
		return "!markPrice@arr@1s"
	}
	return "!markPrice@arr"
}

func blvtInfoChannel(token string) string {
	return strings.ToUpper(token) + "@tokenNav"
}

func blvtNavCandlestickChannel(token string, interval Interval) string {
	return fmt.Sprintf("%s@nav_Kline_%s", strings.ToUpper(token), interval)
}

func compositeIndexChannel(symbol string) string {
	return strings.ToLower(symbol) + "@compositeIndex"
}

// Argument validation shared by the request builders. All checks run before
// any connection attempt.

func requireSymbol(symbol string) *ValidationError {
	if strings.TrimSpace(symbol) == "" {
		return newValidationError("symbol", "must not be empty")
	}
	return nil
}

func requireToken(token string) *ValidationError {
	if strings.TrimSpace(token) == "" {
		return newValidationError("token", "must not be empty")
	}
	return nil
}

func requireInterval(interval Interval) *ValidationError {
	if _, ok := validIntervals[interval]; !ok {
		return newValidationError("interval", fmt.Sprintf("unrecognized interval %q", interval))
	}
	return nil
}

func requireDepthLevels(levels int) *ValidationError {
	if _, ok := validDepthLevels[levels]; !ok {
		return newValidationError("levels", fmt.Sprintf("depth levels must be one of 5, 10 or 20, got %d", levels))
	}
	return nil
}

func requireSpeed(speed UpdateSpeed) *ValidationError {
	if speed != SpeedNormal && speed != SpeedFast {
		return newValidationError("speed", fmt.Sprintf("unrecognized update speed %d", speed))
	}
	return nil
}
