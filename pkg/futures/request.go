package futures

import "encoding/json"

// Handler types for stream callbacks. Handlers run synchronously on the
// owning connection's receive goroutine: a slow handler stalls that
// connection's frame processing and its liveness updates, so long-running
// work should be handed off by the caller.
type (
	AggTradeHandler           func(AggTradeEvent)
	MarkPriceHandler          func(MarkPriceEvent)
	AllMarkPriceHandler       func([]MarkPriceEvent)
	CandlestickHandler        func(CandlestickEvent)
	MiniTickerHandler         func(MiniTickerEvent)
	AllMiniTickersHandler     func([]MiniTickerEvent)
	TickerHandler             func(TickerEvent)
	AllTickersHandler         func([]TickerEvent)
	BookTickerHandler         func(BookTickerEvent)
	LiquidationHandler        func(LiquidationEvent)
	AllLiquidationsHandler    func([]LiquidationEvent)
	DepthHandler              func(DepthEvent)
	UserDataHandler           func(UserDataEvent)
	BLVTInfoHandler           func(BLVTInfoEvent)
	BLVTNavCandlestickHandler func(BLVTNavCandlestickEvent)
	CompositeIndexHandler     func(CompositeIndexEvent)

	// ErrorHandler receives every asynchronous failure of a subscription:
	// parse errors, transport errors and watchdog-forced closes.
	ErrorHandler func(error)
)

// subscriptionRequest binds everything one connection needs: the channel
// names to subscribe, the payload decoder and the error callback. Immutable
// once built; owned exclusively by the connection created for it.
type subscriptionRequest struct {
	// channels produces the stream names for the subscribe frame.
	channels func() []string

	// decode parses one raw frame and invokes the update callback. A
	// returned error means the payload was malformed; the connection wraps
	// it in a ParseError and routes it to onError.
	decode func(payload []byte) error

	onError ErrorHandler
}

// channel returns the request's primary stream name, used for logging and
// error context.
func (r *subscriptionRequest) channel() string {
	names := r.channels()
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

func singleChannel(name string) func() []string {
	return func() []string { return []string{name} }
}

// decodeSingle builds a decoder for streams that deliver exactly one typed
// event per frame.
func decodeSingle[E any](handler func(E)) func([]byte) error {
	return func(payload []byte) error {
		var ev E
		if err := json.Unmarshal(payload, &ev); err != nil {
			return err
		}
		handler(ev)
		return nil
	}
}

// decodeArray builds a decoder for the all-market streams, which deliver a
// JSON array per frame. The handler is invoked once with the full ordered
// slice, not once per element.
func decodeArray[E any](handler func([]E)) func([]byte) error {
	return func(payload []byte) error {
		var evs []E
		if err := json.Unmarshal(payload, &evs); err != nil {
			return err
		}
		handler(evs)
		return nil
	}
}

// Request builders, one per stream kind. Each validates its arguments and
// returns an immutable subscriptionRequest; no I/O happens here.

func newAggTradeRequest(symbol string, handler AggTradeHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(aggTradeChannel(symbol)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newMarkPriceRequest(symbol string, handler MarkPriceHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(markPriceChannel(symbol)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newAllMarkPriceRequest(speed UpdateSpeed, handler AllMarkPriceHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSpeed(speed); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(allMarkPriceChannel(speed)),
		decode:   decodeArray(handler),
		onError:  onError,
	}, nil
}

func newCandlestickRequest(symbol string, interval Interval, handler CandlestickHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if err := requireInterval(interval); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(candlestickChannel(symbol, interval)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newMiniTickerRequest(symbol string, handler MiniTickerHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(miniTickerChannel(symbol)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newAllMiniTickersRequest(handler AllMiniTickersHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(allMiniTickersChannel),
		decode:   decodeArray(handler),
		onError:  onError,
	}, nil
}

func newTickerRequest(symbol string, handler TickerHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(tickerChannel(symbol)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newAllTickersRequest(handler AllTickersHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(allTickersChannel),
		decode:   decodeArray(handler),
		onError:  onError,
	}, nil
}

func newBookTickerRequest(symbol string, handler BookTickerHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(bookTickerChannel(symbol)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newAllBookTickersRequest(handler BookTickerHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	// The all-book-tickers stream pushes individual objects, not arrays.
	return &subscriptionRequest{
		channels: singleChannel(allBookTickersChannel),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newLiquidationRequest(symbol string, handler LiquidationHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(liquidationChannel(symbol)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newAllLiquidationsRequest(handler LiquidationHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	// Liquidations on the all-market stream arrive one order per frame.
	return &subscriptionRequest{
		channels: singleChannel(allLiquidationsChannel),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newPartialDepthRequest(symbol string, levels int, speed UpdateSpeed, handler DepthHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if err := requireDepthLevels(levels); err != nil {
		return nil, err
	}
	if err := requireSpeed(speed); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(partialDepthChannel(symbol, levels, speed)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newDiffDepthRequest(symbol string, speed UpdateSpeed, handler DepthHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if err := requireSpeed(speed); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(diffDepthChannel(symbol, speed)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newUserDataRequest(listenKey string, handler UserDataHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if listenKey == "" {
		return nil, newValidationError("listenKey", ErrMissingListenKey.Error())
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		// The listen key is used verbatim as the stream name.
		channels: singleChannel(listenKey),
		decode: func(payload []byte) error {
			ev, err := decodeUserDataEvent(payload)
			if err != nil {
				return err
			}
			if ev != nil {
				handler(ev)
			}
			return nil
		},
		onError: onError,
	}, nil
}

func newBLVTInfoRequest(token string, handler BLVTInfoHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(blvtInfoChannel(token)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newBLVTNavCandlestickRequest(token string, interval Interval, handler BLVTNavCandlestickHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireToken(token); err != nil {
		return nil, err
	}
	if err := requireInterval(interval); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(blvtNavCandlestickChannel(token, interval)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}

func newCompositeIndexRequest(symbol string, handler CompositeIndexHandler, onError ErrorHandler) (*subscriptionRequest, error) {
	if err := requireSymbol(symbol); err != nil {
		return nil, err
	}
	if handler == nil {
		return nil, newValidationError("handler", "callback must not be nil")
	}
	return &subscriptionRequest{
		channels: singleChannel(compositeIndexChannel(symbol)),
		decode:   decodeSingle(handler),
		onError:  onError,
	}, nil
}
