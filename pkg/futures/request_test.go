package futures

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestValidation(t *testing.T) {
	noop := func(error) {}

	t.Run("missing symbol", func(t *testing.T) {
		req, err := newAggTradeRequest("", func(AggTradeEvent) {}, noop)
		require.Error(t, err)
		assert.Nil(t, req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
	})

	t.Run("nil handler", func(t *testing.T) {
		req, err := newTickerRequest("btcusdt", nil, noop)
		require.Error(t, err)
		assert.Nil(t, req)
	})

	t.Run("invalid depth levels", func(t *testing.T) {
		req, err := newPartialDepthRequest("btcusdt", 15, SpeedNormal, func(DepthEvent) {}, noop)
		require.Error(t, err)
		assert.Nil(t, req)
		var verr *ValidationError
		require.ErrorAs(t, err, &verr)
		assert.Equal(t, "levels", verr.Field)
	})

	t.Run("missing listen key", func(t *testing.T) {
		req, err := newUserDataRequest("", func(UserDataEvent) {}, noop)
		require.Error(t, err)
		assert.Nil(t, req)
	})

	t.Run("valid request carries channel", func(t *testing.T) {
		req, err := newCandlestickRequest("BTCUSDT", Interval1m, func(CandlestickEvent) {}, noop)
		require.NoError(t, err)
		assert.Equal(t, "btcusdt@kline_1m", req.channel())
		assert.Equal(t, []string{"btcusdt@kline_1m"}, req.channels())
	})
}

func TestSingleStreamDecoding(t *testing.T) {
	var got AggTradeEvent
	req, err := newAggTradeRequest("btcusdt", func(ev AggTradeEvent) { got = ev }, nil)
	require.NoError(t, err)

	payload := []byte(`{"e":"aggTrade","E":1591261134288,"s":"BTCUSDT","a":424951,"p":"9643.5","q":"2","f":510417,"l":510418,"T":1591261134199,"m":true}`)
	require.NoError(t, req.decode(payload))

	assert.Equal(t, "aggTrade", got.EventType)
	assert.Equal(t, "BTCUSDT", got.Symbol)
	assert.Equal(t, "9643.5", got.Price)
	assert.Equal(t, int64(424951), got.AggTradeID)
	assert.True(t, got.BuyerIsMaker)
}

func TestAllMarketArrayDecoding(t *testing.T) {
	t.Run("ordered slice delivered once", func(t *testing.T) {
		var calls int
		var got []MiniTickerEvent
		req, err := newAllMiniTickersRequest(func(evs []MiniTickerEvent) {
			calls++
			got = evs
		}, nil)
		require.NoError(t, err)

		payload := []byte(`[
			{"e":"24hrMiniTicker","E":1,"s":"BTCUSDT","c":"100","o":"90","h":"110","l":"80","v":"5","q":"500"},
			{"e":"24hrMiniTicker","E":2,"s":"ETHUSDT","c":"10","o":"9","h":"11","l":"8","v":"50","q":"500"},
			{"e":"24hrMiniTicker","E":3,"s":"BNBUSDT","c":"1","o":"0.9","h":"1.1","l":"0.8","v":"500","q":"500"}
		]`)
		require.NoError(t, req.decode(payload))

		assert.Equal(t, 1, calls)
		require.Len(t, got, 3)
		assert.Equal(t, "BTCUSDT", got[0].Symbol)
		assert.Equal(t, "ETHUSDT", got[1].Symbol)
		assert.Equal(t, "BNBUSDT", got[2].Symbol)
	})

	t.Run("malformed payload is a decode error", func(t *testing.T) {
		var calls int
		req, err := newAllTickersRequest(func([]TickerEvent) { calls++ }, nil)
		require.NoError(t, err)

		err = req.decode([]byte(`{"e":"24hrTicker","s":"BTCUSDT"}`))
		require.Error(t, err)
		assert.Zero(t, calls)
	})
}

func TestUserDataDecoding(t *testing.T) {
	t.Run("account update", func(t *testing.T) {
		ev, err := decodeUserDataEvent([]byte(`{
			"e":"ACCOUNT_UPDATE","E":1564745798939,"T":1564745798938,
			"a":{"m":"ORDER","B":[{"a":"USDT","wb":"122624.12345678","cw":"100.12345678","bc":"50.12345678"}],
			"P":[{"s":"BTCUSDT","pa":"0","ep":"0.00000","cr":"200","up":"0","mt":"isolated","iw":"0.00000000","ps":"BOTH"}]}
		}`))
		require.NoError(t, err)
		update, ok := ev.(*AccountUpdateEvent)
		require.True(t, ok)
		assert.Equal(t, "ORDER", update.Update.Reason)
		require.Len(t, update.Update.Balances, 1)
		assert.Equal(t, "USDT", update.Update.Balances[0].Asset)
		require.Len(t, update.Update.Positions, 1)
		assert.Equal(t, "BTCUSDT", update.Update.Positions[0].Symbol)
	})

	t.Run("order trade update", func(t *testing.T) {
		ev, err := decodeUserDataEvent([]byte(`{
			"e":"ORDER_TRADE_UPDATE","E":1568879465651,"T":1568879465650,
			"o":{"s":"BTCUSDT","c":"TEST","S":"SELL","o":"TRAILING_STOP_MARKET","f":"GTC",
			"q":"0.001","p":"0","ap":"0","sp":"7103.04","x":"NEW","X":"NEW","i":8886774,
			"l":"0","z":"0","L":"0","N":"USDT","n":"0","T":1568879465650,"t":0,"b":"0","a":"9.91",
			"m":false,"R":false,"wt":"CONTRACT_PRICE","ot":"TRAILING_STOP_MARKET","ps":"LONG",
			"cp":false,"AP":"7476.89","cr":"5.0","rp":"0"}
		}`))
		require.NoError(t, err)
		update, ok := ev.(*OrderTradeUpdateEvent)
		require.True(t, ok)
		assert.Equal(t, "BTCUSDT", update.Order.Symbol)
		assert.Equal(t, int64(8886774), update.Order.OrderID)
		assert.Equal(t, "SELL", update.Order.Side)
	})

	t.Run("listen key expired", func(t *testing.T) {
		ev, err := decodeUserDataEvent([]byte(`{"e":"listenKeyExpired","E":1576653824250}`))
		require.NoError(t, err)
		_, ok := ev.(*ListenKeyExpiredEvent)
		require.True(t, ok)
	})

	t.Run("unrecognized discriminant is dropped", func(t *testing.T) {
		ev, err := decodeUserDataEvent([]byte(`{"e":"MARGIN_CALL","E":1587727187525}`))
		require.NoError(t, err)
		assert.Nil(t, ev)
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := decodeUserDataEvent([]byte(`{"e":"ACCOUNT_UPDATE","a":"not-an-object"}`))
		require.Error(t, err)
	})

	t.Run("handler only fires for dispatched variants", func(t *testing.T) {
		var calls int
		req, err := newUserDataRequest("key123", func(UserDataEvent) { calls++ }, nil)
		require.NoError(t, err)
		assert.Equal(t, "key123", req.channel())

		require.NoError(t, req.decode([]byte(`{"e":"listenKeyExpired","E":1}`)))
		assert.Equal(t, 1, calls)

		require.NoError(t, req.decode([]byte(`{"e":"SOMETHING_ELSE","E":2}`)))
		assert.Equal(t, 1, calls)
	})
}
