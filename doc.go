// Package futures-stream is a real-time market-data subscription client for
// the Binance USDⓈ-M futures streaming feed.
//
// A caller registers interest in named data streams (trades, tickers, order
// book deltas, candlesticks, liquidations, account events) and receives
// typed, parsed updates through callbacks, while the client manages the
// underlying persistent connections: handshake, subscribe frames, liveness
// monitoring and reconnection.
//
// Core features:
//
//   - One Subscribe method per exchange stream kind, returning a live
//     connection handle
//   - Typed event structs matching the exchange's wire layouts
//   - One dedicated websocket connection per subscription, with a shared
//     watchdog that force-closes silent connections
//   - Automatic reconnection with a configurable delay
//   - Rate limiting of outbound control frames per exchange requirements
//
// # Errors
//
// Subscribe calls fail synchronously with a *futures.ValidationError when an
// argument is missing or invalid; nothing is dialed in that case. Every
// later failure on a stream is reported through the subscription's error
// callback:
//
//   - *futures.ConnectionError: handshake or transport failure; retried
//     under the reconnect policy when auto-reconnect is enabled. Wraps
//     futures.ErrConnectionStale when the watchdog forced the close.
//
//   - *futures.ParseError: malformed payload; the connection stays open.
//
//   - *futures.CallbackError: a caller-supplied handler panicked; caught at
//     the connection boundary so the receive loop survives.
//
// # Example
//
//	options := futures.NewOptions()
//	client := futures.NewSubscriptionClient(options)
//	defer client.Close()
//
//	ctx := context.Background()
//	_, err := client.SubscribeAggTrade(ctx, "BTCUSDT", func(ev futures.AggTradeEvent) {
//	    fmt.Printf("%s %s @ %s\n", ev.Symbol, ev.Quantity, ev.Price)
//	}, func(err error) {
//	    log.Printf("stream error: %v", err)
//	})
//	if err != nil {
//	    log.Fatalf("subscribe failed: %v", err)
//	}
//
// The user data stream additionally needs a listen key from the REST
// collaborator in pkg/rest:
//
//	keys := rest.NewListenKeyClient(&rest.ClientConfig{APIKey: apiKey})
//	listenKey, err := keys.Start(ctx)
//	if err != nil {
//	    log.Fatalf("listen key: %v", err)
//	}
//	_, err = client.SubscribeUserData(ctx, listenKey, func(ev futures.UserDataEvent) {
//	    switch ev := ev.(type) {
//	    case *futures.AccountUpdateEvent:
//	        // balances / positions changed
//	    case *futures.OrderTradeUpdateEvent:
//	        // order state changed
//	    case *futures.ListenKeyExpiredEvent:
//	        // obtain a fresh key and resubscribe
//	    }
//	}, nil)
//
// Callbacks run synchronously on the owning connection's receive goroutine;
// within one connection they fire in strict frame-arrival order. A slow
// callback stalls that connection's liveness updates and risks a
// watchdog-forced reconnect, so long-running work should be handed off.
package futuresstream
