package futures

import "encoding/json"

// Typed events decoded from the exchange's stream payloads. Decimal wire
// values are kept as the raw strings the exchange sends; converting them is
// the caller's concern.

// AggTradeEvent is one aggregated trade.
type AggTradeEvent struct {
	EventType    string `json:"e"`
	EventTime    int64  `json:"E"`
	Symbol       string `json:"s"`
	AggTradeID   int64  `json:"a"`
	Price        string `json:"p"`
	Quantity     string `json:"q"`
	FirstTradeID int64  `json:"f"`
	LastTradeID  int64  `json:"l"`
	TradeTime    int64  `json:"T"`
	BuyerIsMaker bool   `json:"m"`
}

// MarkPriceEvent carries the mark price, index price and funding data for
// one symbol.
type MarkPriceEvent struct {
	EventType            string `json:"e"`
	EventTime            int64  `json:"E"`
	Symbol               string `json:"s"`
	MarkPrice            string `json:"p"`
	IndexPrice           string `json:"i"`
	EstimatedSettlePrice string `json:"P"`
	FundingRate          string `json:"r"`
	NextFundingTime      int64  `json:"T"`
}

// Candlestick is the kline payload nested inside a CandlestickEvent.
type Candlestick struct {
	StartTime        int64    `json:"t"`
	CloseTime        int64    `json:"T"`
	Symbol           string   `json:"s"`
	Interval         Interval `json:"i"`
	FirstTradeID     int64    `json:"f"`
	LastTradeID      int64    `json:"L"`
	Open             string   `json:"o"`
	Close            string   `json:"c"`
	High             string   `json:"h"`
	Low              string   `json:"l"`
	Volume           string   `json:"v"`
	TradeCount       int64    `json:"n"`
	IsFinal          bool     `json:"x"`
	QuoteVolume      string   `json:"q"`
	TakerBuyVolume   string   `json:"V"`
	TakerBuyQuoteVol string   `json:"Q"`
}

// CandlestickEvent is one kline update.
type CandlestickEvent struct {
	EventType   string      `json:"e"`
	EventTime   int64       `json:"E"`
	Symbol      string      `json:"s"`
	Candlestick Candlestick `json:"k"`
}

// MiniTickerEvent is the reduced 24h rolling-window ticker.
type MiniTickerEvent struct {
	EventType   string `json:"e"`
	EventTime   int64  `json:"E"`
	Symbol      string `json:"s"`
	Close       string `json:"c"`
	Open        string `json:"o"`
	High        string `json:"h"`
	Low         string `json:"l"`
	Volume      string `json:"v"`
	QuoteVolume string `json:"q"`
}

// TickerEvent is the full 24h rolling-window ticker.
type TickerEvent struct {
	EventType          string `json:"e"`
	EventTime          int64  `json:"E"`
	Symbol             string `json:"s"`
	PriceChange        string `json:"p"`
	PriceChangePercent string `json:"P"`
	WeightedAvgPrice   string `json:"w"`
	LastPrice          string `json:"c"`
	LastQuantity       string `json:"Q"`
	Open               string `json:"o"`
	High               string `json:"h"`
	Low                string `json:"l"`
	Volume             string `json:"v"`
	QuoteVolume        string `json:"q"`
	OpenTime           int64  `json:"O"`
	CloseTime          int64  `json:"C"`
	FirstTradeID       int64  `json:"F"`
	LastTradeID        int64  `json:"L"`
	TradeCount         int64  `json:"n"`
}

// BookTickerEvent is the best bid/ask update for one symbol.
type BookTickerEvent struct {
	EventType       string `json:"e"`
	UpdateID        int64  `json:"u"`
	EventTime       int64  `json:"E"`
	TransactionTime int64  `json:"T"`
	Symbol          string `json:"s"`
	BestBidPrice    string `json:"b"`
	BestBidQty      string `json:"B"`
	BestAskPrice    string `json:"a"`
	BestAskQty      string `json:"A"`
}

// LiquidationOrder is the order payload nested inside a LiquidationEvent.
type LiquidationOrder struct {
	Symbol       string `json:"s"`
	Side         string `json:"S"`
	OrderType    string `json:"o"`
	TimeInForce  string `json:"f"`
	Quantity     string `json:"q"`
	Price        string `json:"p"`
	AvgPrice     string `json:"ap"`
	OrderStatus  string `json:"X"`
	LastFilled   string `json:"l"`
	TotalFilled  string `json:"z"`
	TradeTime    int64  `json:"T"`
}

// LiquidationEvent is one forced liquidation order.
type LiquidationEvent struct {
	EventType string           `json:"e"`
	EventTime int64            `json:"E"`
	Order     LiquidationOrder `json:"o"`
}

// PriceLevel is one side entry of the order book: [price, quantity] on the
// wire.
type PriceLevel [2]string

// Price returns the level's price string.
func (l PriceLevel) Price() string { return l[0] }

// Quantity returns the level's quantity string.
func (l PriceLevel) Quantity() string { return l[1] }

// DepthEvent carries both partial book snapshots and diff updates; the two
// streams share one payload layout.
type DepthEvent struct {
	EventType        string       `json:"e"`
	EventTime        int64        `json:"E"`
	TransactionTime  int64        `json:"T"`
	Symbol           string       `json:"s"`
	FirstUpdateID    int64        `json:"U"`
	FinalUpdateID    int64        `json:"u"`
	PrevFinalUpdateID int64       `json:"pu"`
	Bids             []PriceLevel `json:"b"`
	Asks             []PriceLevel `json:"a"`
}

// BLVTBasket is one underlying position of a leveraged token.
type BLVTBasket struct {
	Symbol   string `json:"s"`
	Position string `json:"n"`
}

// BLVTInfoEvent carries net asset value info for a leveraged token.
type BLVTInfoEvent struct {
	EventType    string       `json:"e"`
	EventTime    int64        `json:"E"`
	TokenName    string       `json:"s"`
	TokenIssued  float64      `json:"m"`
	Baskets      []BLVTBasket `json:"b"`
	NAV          float64      `json:"n"`
	RealLeverage float64      `json:"l"`
	TargetLev    float64      `json:"t"`
	FundingRatio float64      `json:"f"`
}

// BLVTNavCandlestickEvent is one NAV kline update for a leveraged token.
type BLVTNavCandlestickEvent struct {
	EventType   string      `json:"e"`
	EventTime   int64       `json:"E"`
	TokenName   string      `json:"s"`
	Candlestick Candlestick `json:"k"`
}

// IndexComponent is one constituent of a composite index.
type IndexComponent struct {
	BaseAsset       string `json:"b"`
	QuoteAsset      string `json:"q"`
	WeightQty       string `json:"w"`
	WeightPercent   string `json:"W"`
	IndexPrice      string `json:"i"`
}

// CompositeIndexEvent carries the composition of an index symbol.
type CompositeIndexEvent struct {
	EventType   string           `json:"e"`
	EventTime   int64            `json:"E"`
	Symbol      string           `json:"s"`
	Price       string           `json:"p"`
	Composition []IndexComponent `json:"c"`
}

// User data stream events. The stream multiplexes several event kinds
// discriminated by the "e" field; UserDataEvent is the closed set of
// variants the client dispatches.

// UserDataEvent is implemented by the user-data stream variants:
// AccountUpdateEvent, OrderTradeUpdateEvent and ListenKeyExpiredEvent.
type UserDataEvent interface {
	userDataEvent()
}

// Discriminant values of the user-data stream.
const (
	eventTypeAccountUpdate    = "ACCOUNT_UPDATE"
	eventTypeOrderTradeUpdate = "ORDER_TRADE_UPDATE"
	eventTypeListenKeyExpired = "listenKeyExpired"
)

// AccountBalance is one asset balance inside an account update.
type AccountBalance struct {
	Asset              string `json:"a"`
	WalletBalance      string `json:"wb"`
	CrossWalletBalance string `json:"cw"`
	BalanceChange      string `json:"bc"`
}

// AccountPosition is one position inside an account update.
type AccountPosition struct {
	Symbol         string `json:"s"`
	PositionAmount string `json:"pa"`
	EntryPrice     string `json:"ep"`
	AccumRealized  string `json:"cr"`
	UnrealizedPnL  string `json:"up"`
	MarginType     string `json:"mt"`
	IsolatedWallet string `json:"iw"`
	PositionSide   string `json:"ps"`
}

// AccountUpdate is the payload nested inside an account update event.
type AccountUpdate struct {
	Reason    string            `json:"m"`
	Balances  []AccountBalance  `json:"B"`
	Positions []AccountPosition `json:"P"`
}

// AccountUpdateEvent reports balance and position changes.
type AccountUpdateEvent struct {
	EventType       string        `json:"e"`
	EventTime       int64         `json:"E"`
	TransactionTime int64         `json:"T"`
	Update          AccountUpdate `json:"a"`
}

func (*AccountUpdateEvent) userDataEvent() {}

// OrderUpdate is the order payload nested inside an order trade update.
type OrderUpdate struct {
	Symbol          string `json:"s"`
	ClientOrderID   string `json:"c"`
	Side            string `json:"S"`
	OrderType       string `json:"o"`
	TimeInForce     string `json:"f"`
	OriginalQty     string `json:"q"`
	OriginalPrice   string `json:"p"`
	AveragePrice    string `json:"ap"`
	StopPrice       string `json:"sp"`
	ExecutionType   string `json:"x"`
	OrderStatus     string `json:"X"`
	OrderID         int64  `json:"i"`
	LastFilledQty   string `json:"l"`
	FilledAccumQty  string `json:"z"`
	LastFilledPrice string `json:"L"`
	CommissionAsset string `json:"N"`
	Commission      string `json:"n"`
	TradeTime       int64  `json:"T"`
	TradeID         int64  `json:"t"`
	BidsNotional    string `json:"b"`
	AsksNotional    string `json:"a"`
	IsMaker         bool   `json:"m"`
	IsReduceOnly    bool   `json:"R"`
	WorkingType     string `json:"wt"`
	OriginalType    string `json:"ot"`
	PositionSide    string `json:"ps"`
	ClosePosition   bool   `json:"cp"`
	ActivationPrice string `json:"AP"`
	CallbackRate    string `json:"cr"`
	RealizedProfit  string `json:"rp"`
}

// OrderTradeUpdateEvent reports an order state change or fill.
type OrderTradeUpdateEvent struct {
	EventType       string      `json:"e"`
	EventTime       int64       `json:"E"`
	TransactionTime int64       `json:"T"`
	Order           OrderUpdate `json:"o"`
}

func (*OrderTradeUpdateEvent) userDataEvent() {}

// ListenKeyExpiredEvent signals that the stream's listen key is no longer
// valid; the caller has to obtain a fresh one and resubscribe.
type ListenKeyExpiredEvent struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"`
}

func (*ListenKeyExpiredEvent) userDataEvent() {}

// decodeUserDataEvent branches on the payload's discriminant field.
// Unrecognized event types yield (nil, nil): the exchange documents more
// event kinds than this client dispatches and they are dropped on purpose.
func decodeUserDataEvent(payload []byte) (UserDataEvent, error) {
	var head struct {
		EventType string `json:"e"`
	}
	if err := json.Unmarshal(payload, &head); err != nil {
		return nil, err
	}

	switch head.EventType {
	case eventTypeAccountUpdate:
		var ev AccountUpdateEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case eventTypeOrderTradeUpdate:
		var ev OrderTradeUpdateEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	case eventTypeListenKeyExpired:
		var ev ListenKeyExpiredEvent
		if err := json.Unmarshal(payload, &ev); err != nil {
			return nil, err
		}
		return &ev, nil
	default:
		return nil, nil
	}
}
