package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/veiloq/futures-stream/pkg/futures"
	"github.com/veiloq/futures-stream/pkg/logging"
	"github.com/veiloq/futures-stream/pkg/rest"
)

func main() {
	logger := logging.NewLogger(logging.WithLevel(logging.DEBUG))

	options := futures.NewOptions().
		WithCredentials(os.Getenv("BINANCE_API_KEY"), os.Getenv("BINANCE_API_SECRET"))
	options.Logger = logger

	client := futures.NewSubscriptionClient(options)
	defer client.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	onError := func(err error) {
		logger.Warn("subscription error", logging.Error(err))
	}

	// Aggregate trades for one symbol.
	logger.Info("subscribing to aggregate trades")
	_, err := client.SubscribeAggTrade(ctx, "BTCUSDT", func(ev futures.AggTradeEvent) {
		logger.Info("agg trade",
			logging.String("symbol", ev.Symbol),
			logging.String("price", ev.Price),
			logging.String("quantity", ev.Quantity),
			logging.Bool("buyer_is_maker", ev.BuyerIsMaker),
		)
	}, onError)
	if err != nil {
		logger.Error("failed to subscribe to agg trades", logging.Error(err))
		os.Exit(1)
	}

	// 1m klines.
	logger.Info("subscribing to candlesticks")
	_, err = client.SubscribeCandlestick(ctx, "BTCUSDT", futures.Interval1m, func(ev futures.CandlestickEvent) {
		logger.Info("candlestick",
			logging.String("symbol", ev.Symbol),
			logging.String("open", ev.Candlestick.Open),
			logging.String("close", ev.Candlestick.Close),
			logging.Bool("final", ev.Candlestick.IsFinal),
		)
	}, onError)
	if err != nil {
		logger.Error("failed to subscribe to candlesticks", logging.Error(err))
		os.Exit(1)
	}

	// Market-wide mini tickers, one ordered batch per frame.
	logger.Info("subscribing to all mini tickers")
	_, err = client.SubscribeAllMiniTickers(ctx, func(evs []futures.MiniTickerEvent) {
		logger.Info("mini ticker batch", logging.Int("symbols", len(evs)))
	}, onError)
	if err != nil {
		logger.Error("failed to subscribe to mini tickers", logging.Error(err))
		os.Exit(1)
	}

	// Top 5 book levels at the fast cadence.
	logger.Info("subscribing to partial depth")
	_, err = client.SubscribePartialDepth(ctx, "BTCUSDT", 5, futures.SpeedFast, func(ev futures.DepthEvent) {
		logger.Info("depth",
			logging.String("symbol", ev.Symbol),
			logging.Int("bids", len(ev.Bids)),
			logging.Int("asks", len(ev.Asks)),
		)
	}, onError)
	if err != nil {
		logger.Error("failed to subscribe to depth", logging.Error(err))
		os.Exit(1)
	}

	// The user data stream needs a listen key from the REST collaborator.
	if apiKey := os.Getenv("BINANCE_API_KEY"); apiKey != "" {
		keyConfig := rest.DefaultConfig()
		keyConfig.APIKey = apiKey
		keyConfig.Logger = logger
		keys := rest.NewListenKeyClient(keyConfig)

		listenKey, err := keys.Start(ctx)
		if err != nil {
			logger.Error("failed to start user data stream", logging.Error(err))
			os.Exit(1)
		}
		defer keys.Close(context.Background())

		// The exchange expires idle listen keys; refresh well inside the
		// 60 minute window.
		go func() {
			ticker := time.NewTicker(30 * time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := keys.KeepAlive(ctx); err != nil {
						logger.Warn("listen key keepalive failed", logging.Error(err))
					}
				}
			}
		}()

		logger.Info("subscribing to user data")
		_, err = client.SubscribeUserData(ctx, listenKey, func(ev futures.UserDataEvent) {
			switch ev := ev.(type) {
			case *futures.AccountUpdateEvent:
				logger.Info("account update",
					logging.String("reason", ev.Update.Reason),
					logging.Int("balances", len(ev.Update.Balances)),
					logging.Int("positions", len(ev.Update.Positions)),
				)
			case *futures.OrderTradeUpdateEvent:
				logger.Info("order update",
					logging.String("symbol", ev.Order.Symbol),
					logging.String("status", ev.Order.OrderStatus),
					logging.Int64("order_id", ev.Order.OrderID),
				)
			case *futures.ListenKeyExpiredEvent:
				logger.Warn("listen key expired, user data stream is dead")
			}
		}, onError)
		if err != nil {
			logger.Error("failed to subscribe to user data", logging.Error(err))
			os.Exit(1)
		}
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	logger.Info("streaming... press Ctrl+C to exit")
	<-sigChan

	logger.Info("shutting down")
	client.UnsubscribeAll()
}
