package futures

import (
	"context"
	"sync"
	"time"

	"github.com/veiloq/futures-stream/pkg/logging"
)

// DefaultEndpoint is the production streaming endpoint for the USDⓈ-M
// futures feed.
const DefaultEndpoint = "wss://fstream.binance.com/ws"

const (
	defaultReceiveLimit   = 60 * time.Second
	defaultReconnectDelay = 5 * time.Second
	maxWatchInterval      = time.Second
	minWatchInterval      = 10 * time.Millisecond
)

// Options configures a SubscriptionClient. All fields are optional;
// NewOptions fills in the defaults.
type Options struct {
	// Endpoint overrides the streaming endpoint URI.
	Endpoint string

	// APIKey and APISecret are only needed by callers that also drive the
	// REST listen-key collaborator; market streams are public.
	APIKey    string
	APISecret string

	// AutoReconnect controls whether dropped connections reconnect on their
	// own after ReconnectDelay.
	AutoReconnect bool

	// ReceiveLimit is how long a connection may go without receiving any
	// frame before the watchdog force-closes it.
	ReceiveLimit time.Duration

	// ReconnectDelay is the pause before a reconnect attempt.
	ReconnectDelay time.Duration

	// Logger receives the client's structured log output.
	Logger logging.Logger
}

// NewOptions returns the default client options: production endpoint,
// auto-reconnect on, 60s receive limit, 5s reconnect delay.
func NewOptions() *Options {
	return &Options{
		Endpoint:       DefaultEndpoint,
		AutoReconnect:  true,
		ReceiveLimit:   defaultReceiveLimit,
		ReconnectDelay: defaultReconnectDelay,
		Logger:         logging.NewLogger(),
	}
}

// WithCredentials sets the API credentials and returns the options for
// chaining.
func (o *Options) WithCredentials(apiKey, apiSecret string) *Options {
	o.APIKey = apiKey
	o.APISecret = apiSecret
	return o
}

// SubscriptionClient is the facade over the streaming feed. Each Subscribe
// call validates its arguments synchronously, then opens one dedicated
// connection for the stream and returns its handle; every later failure on
// that stream is reported through the supplied error callback. A single
// shared watchdog monitors all connections for staleness.
type SubscriptionClient struct {
	options  *Options
	watchdog *WatchDog
	logger   logging.Logger

	mu          sync.Mutex
	connections []*Connection
}

// NewSubscriptionClient creates a client with the given options; nil means
// defaults.
func NewSubscriptionClient(options *Options) *SubscriptionClient {
	if options == nil {
		options = NewOptions()
	}
	if options.Endpoint == "" {
		options.Endpoint = DefaultEndpoint
	}
	if options.ReceiveLimit <= 0 {
		options.ReceiveLimit = defaultReceiveLimit
	}
	if options.ReconnectDelay <= 0 {
		options.ReconnectDelay = defaultReconnectDelay
	}
	if options.Logger == nil {
		options.Logger = logging.NewLogger()
	}

	return &SubscriptionClient{
		options:  options,
		watchdog: NewWatchDog(watchInterval(options.ReceiveLimit), options.Logger),
		logger:   options.Logger,
	}
}

// watchInterval picks a poll interval well below the receive limit.
func watchInterval(receiveLimit time.Duration) time.Duration {
	interval := receiveLimit / 4
	if interval > maxWatchInterval {
		interval = maxWatchInterval
	}
	if interval < minWatchInterval {
		interval = minWatchInterval
	}
	return interval
}

// startSubscription wraps a built request in a new connection, starts it and
// tracks it in the live list.
func (c *SubscriptionClient) startSubscription(ctx context.Context, req *subscriptionRequest) *Connection {
	conn := newConnection(req, c.watchdog, connectionConfig{
		endpoint:       c.options.Endpoint,
		receiveLimit:   c.options.ReceiveLimit,
		autoReconnect:  c.options.AutoReconnect,
		reconnectDelay: c.options.ReconnectDelay,
		logger:         c.logger,
	})

	c.mu.Lock()
	c.connections = append(c.connections, conn)
	c.mu.Unlock()

	conn.start(ctx)
	return conn
}

// SubscribeAggTrade subscribes to the aggregate trade stream for a symbol.
func (c *SubscriptionClient) SubscribeAggTrade(ctx context.Context, symbol string, handler AggTradeHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newAggTradeRequest(symbol, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeMarkPrice subscribes to the mark price stream for a symbol.
func (c *SubscriptionClient) SubscribeMarkPrice(ctx context.Context, symbol string, handler MarkPriceHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newMarkPriceRequest(symbol, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeAllMarkPrice subscribes to the market-wide mark price stream. The
// handler receives the full ordered update list once per frame.
func (c *SubscriptionClient) SubscribeAllMarkPrice(ctx context.Context, speed UpdateSpeed, handler AllMarkPriceHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newAllMarkPriceRequest(speed, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeCandlestick subscribes to the kline stream for a symbol and
// interval.
func (c *SubscriptionClient) SubscribeCandlestick(ctx context.Context, symbol string, interval Interval, handler CandlestickHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newCandlestickRequest(symbol, interval, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeMiniTicker subscribes to the mini ticker stream for a symbol.
func (c *SubscriptionClient) SubscribeMiniTicker(ctx context.Context, symbol string, handler MiniTickerHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newMiniTickerRequest(symbol, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeAllMiniTickers subscribes to the market-wide mini ticker stream.
func (c *SubscriptionClient) SubscribeAllMiniTickers(ctx context.Context, handler AllMiniTickersHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newAllMiniTickersRequest(handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeTicker subscribes to the full ticker stream for a symbol.
func (c *SubscriptionClient) SubscribeTicker(ctx context.Context, symbol string, handler TickerHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newTickerRequest(symbol, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeAllTickers subscribes to the market-wide ticker stream.
func (c *SubscriptionClient) SubscribeAllTickers(ctx context.Context, handler AllTickersHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newAllTickersRequest(handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeBookTicker subscribes to best bid/ask updates for a symbol.
func (c *SubscriptionClient) SubscribeBookTicker(ctx context.Context, symbol string, handler BookTickerHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newBookTickerRequest(symbol, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeAllBookTickers subscribes to best bid/ask updates for all
// symbols. Updates arrive one object per frame.
func (c *SubscriptionClient) SubscribeAllBookTickers(ctx context.Context, handler BookTickerHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newAllBookTickersRequest(handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeLiquidation subscribes to forced liquidation orders for a symbol.
func (c *SubscriptionClient) SubscribeLiquidation(ctx context.Context, symbol string, handler LiquidationHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newLiquidationRequest(symbol, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeAllLiquidations subscribes to forced liquidation orders across
// the whole market. Orders arrive one per frame.
func (c *SubscriptionClient) SubscribeAllLiquidations(ctx context.Context, handler LiquidationHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newAllLiquidationsRequest(handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribePartialDepth subscribes to top-of-book snapshots with the given
// level count (5, 10 or 20).
func (c *SubscriptionClient) SubscribePartialDepth(ctx context.Context, symbol string, levels int, speed UpdateSpeed, handler DepthHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newPartialDepthRequest(symbol, levels, speed, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeDiffDepth subscribes to incremental order book updates.
func (c *SubscriptionClient) SubscribeDiffDepth(ctx context.Context, symbol string, speed UpdateSpeed, handler DepthHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newDiffDepthRequest(symbol, speed, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeUserData subscribes to the private user data stream identified by
// a listen key obtained from the REST collaborator. The handler receives one
// of the typed user-data variants per event; unrecognized event kinds are
// dropped.
func (c *SubscriptionClient) SubscribeUserData(ctx context.Context, listenKey string, handler UserDataHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newUserDataRequest(listenKey, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeBLVTInfo subscribes to net asset value info for a leveraged
// token.
func (c *SubscriptionClient) SubscribeBLVTInfo(ctx context.Context, token string, handler BLVTInfoHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newBLVTInfoRequest(token, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeBLVTNavCandlestick subscribes to NAV klines for a leveraged
// token.
func (c *SubscriptionClient) SubscribeBLVTNavCandlestick(ctx context.Context, token string, interval Interval, handler BLVTNavCandlestickHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newBLVTNavCandlestickRequest(token, interval, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// SubscribeCompositeIndex subscribes to composition updates for an index
// symbol.
func (c *SubscriptionClient) SubscribeCompositeIndex(ctx context.Context, symbol string, handler CompositeIndexHandler, onError ErrorHandler) (*Connection, error) {
	req, err := newCompositeIndexRequest(symbol, handler, onError)
	if err != nil {
		return nil, err
	}
	return c.startSubscription(ctx, req), nil
}

// Connections returns the live connection handles.
func (c *SubscriptionClient) Connections() []*Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*Connection, len(c.connections))
	copy(out, c.connections)
	return out
}

// UnsubscribeAll closes every live connection and clears the list.
// closed-by-caller is set on all connections before any transport is shut,
// so no reconnect can race a deliberate shutdown. Idempotent.
func (c *SubscriptionClient) UnsubscribeAll() {
	c.mu.Lock()
	conns := c.connections
	c.connections = nil
	c.mu.Unlock()

	for _, conn := range conns {
		conn.closedByCaller.Store(true)
	}
	for _, conn := range conns {
		_ = conn.Close()
	}
}

// Close shuts down the client: all subscriptions are terminated and the
// watchdog stops.
func (c *SubscriptionClient) Close() error {
	c.UnsubscribeAll()
	c.watchdog.Stop()
	return nil
}
