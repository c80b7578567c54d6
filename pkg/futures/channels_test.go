package futures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestChannelNames(t *testing.T) {
	tests := []struct {
		name string
		got  string
		want string
	}{
		{"agg trade", aggTradeChannel("BTCUSDT"), "btcusdt@aggTrade"},
		{"mark price", markPriceChannel("btcusdt"), "btcusdt@markPrice"},
		{"candlestick", candlestickChannel("BTCUSDT", Interval1m), "btcusdt@kline_1m"},
		{"mini ticker", miniTickerChannel("ethUSDT"), "ethusdt@miniTicker"},
		{"all mini tickers", allMiniTickersChannel, "!miniTicker@arr"},
		{"ticker", tickerChannel("BTCUSDT"), "btcusdt@ticker"},
		{"all tickers", allTickersChannel, "!ticker@arr"},
		{"book ticker", bookTickerChannel("BTCUSDT"), "btcusdt@bookTicker"},
		{"all book tickers", allBookTickersChannel, "!bookTicker"},
		{"liquidation", liquidationChannel("BTCUSDT"), "btcusdt@forceOrder"},
		{"all liquidations", allLiquidationsChannel, "!forceOrder@arr"},
		{"partial depth", partialDepthChannel("BTCUSDT", 5, SpeedNormal), "btcusdt@depth5"},
		{"partial depth fast", partialDepthChannel("btcusdt", 5, SpeedFast), "btcusdt@depth5@100ms"},
		{"partial depth 20", partialDepthChannel("BTCUSDT", 20, SpeedNormal), "btcusdt@depth20"},
		{"diff depth", diffDepthChannel("BTCUSDT", SpeedNormal), "btcusdt@depth"},
		{"diff depth fast", diffDepthChannel("BTCUSDT", SpeedFast), "btcusdt@depth@100ms"},
		{"all mark price", allMarkPriceChannel(SpeedNormal), "!markPrice@arr"},
		{"all mark price fast", allMarkPriceChannel(SpeedFast), "!markPrice@arr@1s"},
		{"blvt info", blvtInfoChannel("btcup"), "BTCUP@tokenNav"},
		{"blvt nav kline", blvtNavCandlestickChannel("btcup", Interval1m), "BTCUP@nav_Kline_1m"},
		{"composite index", compositeIndexChannel("DEFIUSDT"), "defiusdt@compositeIndex"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.got)
		})
	}
}

func TestChannelNamesDeterministic(t *testing.T) {
	for i := 0; i < 3; i++ {
		assert.Equal(t, "btcusdt@kline_1h", candlestickChannel("BTCUSDT", Interval1h))
		assert.Equal(t, "btcusdt@depth10@100ms", partialDepthChannel("BtcUsdt", 10, SpeedFast))
	}
}

func TestArgumentValidation(t *testing.T) {
	t.Run("empty symbol", func(t *testing.T) {
		err := requireSymbol("  ")
		require.Error(t, err)
		assert.Equal(t, "symbol", err.Field)
	})

	t.Run("valid symbol", func(t *testing.T) {
		assert.Nil(t, requireSymbol("btcusdt"))
	})

	t.Run("unknown interval", func(t *testing.T) {
		err := requireInterval(Interval("7m"))
		require.Error(t, err)
		assert.Equal(t, "interval", err.Field)
	})

	t.Run("all known intervals", func(t *testing.T) {
		for interval := range validIntervals {
			assert.Nil(t, requireInterval(interval))
		}
	})

	t.Run("depth levels", func(t *testing.T) {
		for _, levels := range []int{5, 10, 20} {
			assert.Nil(t, requireDepthLevels(levels))
		}
		for _, levels := range []int{0, 1, 15, 50, -5} {
			err := requireDepthLevels(levels)
			require.Error(t, err, "levels=%d", levels)
			assert.Equal(t, "levels", err.Field)
		}
	})

	t.Run("update speed", func(t *testing.T) {
		assert.Nil(t, requireSpeed(SpeedNormal))
		assert.Nil(t, requireSpeed(SpeedFast))
		require.Error(t, requireSpeed(UpdateSpeed(42)))
	})
}
