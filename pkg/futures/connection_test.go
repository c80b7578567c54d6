package futures

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/veiloq/futures-stream/pkg/logging"
)

func newTestClient(t *testing.T, mock *MockExchange, configure func(*Options)) *SubscriptionClient {
	t.Helper()
	options := NewOptions()
	options.Endpoint = mock.URL()
	options.ReconnectDelay = 50 * time.Millisecond
	options.Logger = logging.NewNopLogger()
	if configure != nil {
		configure(options)
	}
	client := NewSubscriptionClient(options)
	t.Cleanup(func() { _ = client.Close() })
	return client
}

func waitForState(t *testing.T, conn *Connection, state ConnectionState) {
	t.Helper()
	require.Eventually(t, func() bool {
		return conn.State() == state
	}, 5*time.Second, 10*time.Millisecond, "connection never reached %s", state)
}

func TestConnectionSendsSubscribeFrame(t *testing.T) {
	mock := setupMockExchange(t)
	client := newTestClient(t, mock, nil)

	conn, err := client.SubscribeAggTrade(context.Background(), "BTCUSDT", func(AggTradeEvent) {}, nil)
	require.NoError(t, err)

	waitForState(t, conn, StateOpen)
	require.Eventually(t, func() bool {
		return len(mock.Subscriptions()) == 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Equal(t, []string{"btcusdt@aggTrade"}, mock.Subscriptions()[0])
}

func TestConnectionDispatchesFramesInOrder(t *testing.T) {
	mock := setupMockExchange(t)
	client := newTestClient(t, mock, nil)

	received := make(chan TickerEvent, 8)
	conn, err := client.SubscribeTicker(context.Background(), "BTCUSDT", func(ev TickerEvent) {
		received <- ev
	}, nil)
	require.NoError(t, err)
	waitForState(t, conn, StateOpen)

	mock.Broadcast([]byte(`{"e":"24hrTicker","E":1,"s":"BTCUSDT","c":"100"}`))
	mock.Broadcast([]byte(`{"e":"24hrTicker","E":2,"s":"BTCUSDT","c":"101"}`))
	mock.Broadcast([]byte(`{"e":"24hrTicker","E":3,"s":"BTCUSDT","c":"102"}`))

	for want := int64(1); want <= 3; want++ {
		select {
		case ev := <-received:
			assert.Equal(t, want, ev.EventTime)
		case <-time.After(5 * time.Second):
			t.Fatalf("timeout waiting for event %d", want)
		}
	}
}

func TestParseErrorKeepsConnectionOpen(t *testing.T) {
	mock := setupMockExchange(t)
	client := newTestClient(t, mock, nil)

	updates := make(chan []TickerEvent, 4)
	errs := make(chan error, 4)
	conn, err := client.SubscribeAllTickers(context.Background(), func(evs []TickerEvent) {
		updates <- evs
	}, func(err error) {
		errs <- err
	})
	require.NoError(t, err)
	waitForState(t, conn, StateOpen)

	// Not a JSON array: the all-market decoder must reject it.
	mock.Broadcast([]byte(`{"e":"24hrTicker","s":"BTCUSDT"}`))

	select {
	case err := <-errs:
		var perr *ParseError
		require.ErrorAs(t, err, &perr)
		assert.Equal(t, "!ticker@arr", perr.Channel)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for parse error")
	}
	assert.Empty(t, updates)
	assert.Equal(t, StateOpen, conn.State())

	// The connection keeps delivering after a bad frame.
	mock.Broadcast([]byte(`[{"e":"24hrTicker","E":1,"s":"BTCUSDT","c":"100"}]`))
	select {
	case evs := <-updates:
		require.Len(t, evs, 1)
		assert.Equal(t, "BTCUSDT", evs[0].Symbol)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for update after parse error")
	}
	assert.Empty(t, errs)
}

func TestConnectionReconnectsAfterRemoteClose(t *testing.T) {
	mock := setupMockExchange(t)
	client := newTestClient(t, mock, nil)

	conn, err := client.SubscribeMarkPrice(context.Background(), "BTCUSDT", func(MarkPriceEvent) {}, nil)
	require.NoError(t, err)
	waitForState(t, conn, StateOpen)
	require.Equal(t, 1, mock.ConnectCount())

	mock.DropConnections()

	require.Eventually(t, func() bool {
		return mock.ConnectCount() == 2
	}, 5*time.Second, 10*time.Millisecond, "connection did not reconnect")
	waitForState(t, conn, StateOpen)

	// One drop causes exactly one reconnect.
	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 2, mock.ConnectCount())
}

func TestNoReconnectWhenDisabled(t *testing.T) {
	mock := setupMockExchange(t)
	client := newTestClient(t, mock, func(o *Options) {
		o.AutoReconnect = false
	})

	conn, err := client.SubscribeMarkPrice(context.Background(), "BTCUSDT", func(MarkPriceEvent) {}, nil)
	require.NoError(t, err)
	waitForState(t, conn, StateOpen)

	mock.DropConnections()
	waitForState(t, conn, StateClosed)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, mock.ConnectCount())
}

func TestWatchdogForcedCloseTriggersReconnect(t *testing.T) {
	mock := setupMockExchange(t)
	client := newTestClient(t, mock, func(o *Options) {
		o.ReceiveLimit = 100 * time.Millisecond
	})

	errs := make(chan error, 16)
	conn, err := client.SubscribeAggTrade(context.Background(), "BTCUSDT", func(AggTradeEvent) {}, func(err error) {
		errs <- err
	})
	require.NoError(t, err)
	waitForState(t, conn, StateOpen)

	// No frames arrive, so the watchdog must force a close and the
	// connection must come back on its own.
	select {
	case err := <-errs:
		assert.True(t, errors.Is(err, ErrConnectionStale), "got %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for stale connection error")
	}

	require.Eventually(t, func() bool {
		return mock.ConnectCount() >= 2
	}, 5*time.Second, 10*time.Millisecond, "stale connection did not reconnect")
}

func TestCallerCloseSuppressesReconnect(t *testing.T) {
	mock := setupMockExchange(t)
	client := newTestClient(t, mock, nil)

	conn, err := client.SubscribeAggTrade(context.Background(), "BTCUSDT", func(AggTradeEvent) {}, nil)
	require.NoError(t, err)
	waitForState(t, conn, StateOpen)

	require.NoError(t, conn.Close())
	waitForState(t, conn, StateClosed)

	time.Sleep(200 * time.Millisecond)
	assert.Equal(t, 1, mock.ConnectCount())

	// Close is idempotent.
	require.NoError(t, conn.Close())
}

func TestHandlerPanicRoutedToErrorCallback(t *testing.T) {
	mock := setupMockExchange(t)
	client := newTestClient(t, mock, nil)

	var delivered int
	updates := make(chan struct{}, 4)
	errs := make(chan error, 4)
	conn, err := client.SubscribeBookTicker(context.Background(), "BTCUSDT", func(BookTickerEvent) {
		delivered++
		if delivered == 1 {
			panic("boom")
		}
		updates <- struct{}{}
	}, func(err error) {
		errs <- err
	})
	require.NoError(t, err)
	waitForState(t, conn, StateOpen)

	mock.Broadcast([]byte(`{"e":"bookTicker","u":1,"s":"BTCUSDT","b":"1","B":"2","a":"3","A":"4"}`))

	select {
	case err := <-errs:
		var cerr *CallbackError
		require.ErrorAs(t, err, &cerr)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for callback error")
	}
	assert.Equal(t, StateOpen, conn.State())

	mock.Broadcast([]byte(`{"e":"bookTicker","u":2,"s":"BTCUSDT","b":"1","B":"2","a":"3","A":"4"}`))
	select {
	case <-updates:
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for update after handler panic")
	}
}

func TestConnectFailureReportedAndRetried(t *testing.T) {
	mock := setupMockExchange(t)
	mock.SetRejectConnections(true)
	client := newTestClient(t, mock, nil)

	errs := make(chan error, 16)
	conn, err := client.SubscribeAggTrade(context.Background(), "BTCUSDT", func(AggTradeEvent) {}, func(err error) {
		errs <- err
	})
	require.NoError(t, err, "subscribe returns a handle even when the endpoint is down")

	select {
	case err := <-errs:
		var cerr *ConnectionError
		require.ErrorAs(t, err, &cerr)
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for connection error")
	}

	// Once the endpoint accepts again, the retry loop recovers on its own.
	mock.SetRejectConnections(false)
	waitForState(t, conn, StateOpen)
}
