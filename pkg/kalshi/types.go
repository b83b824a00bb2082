package kalshi

import "time"

// Market is one binary contract as the venue lists it. Prices are cents.
type Market struct {
	Ticker       string    `json:"ticker"`
	EventTicker  string    `json:"event_ticker"`
	Title        string    `json:"title"`
	Subtitle     string    `json:"subtitle"`
	Status       string    `json:"status"`
	YesBid       int       `json:"yes_bid"`
	YesAsk       int       `json:"yes_ask"`
	NoBid        int       `json:"no_bid"`
	NoAsk        int       `json:"no_ask"`
	LastPrice    int       `json:"last_price"`
	Volume       int       `json:"volume"`
	OpenInterest int       `json:"open_interest"`
	FloorStrike  float64   `json:"floor_strike"`
	CloseTime    time.Time `json:"close_time"`
}

// Quote is the top of book for one contract at one moment. This is what
// the signal engine consumes and the archive stores.
type Quote struct {
	Ticker    string    `json:"ticker"`
	YesBid    int       `json:"yes_bid"`
	YesAsk    int       `json:"yes_ask"`
	LastPrice int       `json:"last_price"`
	Volume    int       `json:"volume"`
	Timestamp time.Time `json:"timestamp"`
}

// Mid returns the midpoint, falling back to last trade then to the one
// live side when the book is one-sided.
func (q Quote) Mid() int {
	if q.YesBid > 0 && q.YesAsk > 0 {
		return (q.YesBid + q.YesAsk) / 2
	}
	if q.LastPrice > 0 {
		return q.LastPrice
	}
	if q.YesAsk > 0 {
		return q.YesAsk
	}
	return q.YesBid
}

// Crossed reports a crossed or empty book, which downstream code treats
// as unusable.
func (q Quote) Crossed() bool {
	return q.YesBid <= 0 || q.YesAsk <= 0 || q.YesBid > q.YesAsk
}

// QuoteFromMarket lifts a market listing into a Quote snapshot.
func QuoteFromMarket(m Market, ts time.Time) Quote {
	return Quote{
		Ticker:    m.Ticker,
		YesBid:    m.YesBid,
		YesAsk:    m.YesAsk,
		LastPrice: m.LastPrice,
		Volume:    m.Volume,
		Timestamp: ts,
	}
}

// Orderbook is the two-sided depth for one contract: price/size levels
// for resting yes and no bids.
type Orderbook struct {
	Yes [][2]int `json:"yes"`
	No  [][2]int `json:"no"`
}

// BestYesBid returns the highest resting yes bid, zero when empty.
func (b Orderbook) BestYesBid() int {
	best := 0
	for _, lvl := range b.Yes {
		if lvl[0] > best {
			best = lvl[0]
		}
	}
	return best
}

// BestYesAsk derives the ask from the no side: a no bid at p is an offer
// to sell yes at 100-p.
func (b Orderbook) BestYesAsk() int {
	bestNo := 0
	for _, lvl := range b.No {
		if lvl[0] > bestNo {
			bestNo = lvl[0]
		}
	}
	if bestNo == 0 {
		return 0
	}
	return 100 - bestNo
}

// Order is a resting or terminal venue order.
type Order struct {
	OrderID       string    `json:"order_id"`
	ClientOrderID string    `json:"client_order_id"`
	Ticker        string    `json:"ticker"`
	Side          string    `json:"side"`   // yes | no
	Action        string    `json:"action"` // buy | sell
	Type          string    `json:"type"`   // limit
	YesPrice      int       `json:"yes_price"`
	NoPrice       int       `json:"no_price"`
	Count         int       `json:"count"`
	Status        string    `json:"status"`
	CreatedTime   time.Time `json:"created_time"`
}

// OrderRequest is the create-order payload.
type OrderRequest struct {
	Ticker        string `json:"ticker"`
	ClientOrderID string `json:"client_order_id"`
	Side          string `json:"side"`
	Action        string `json:"action"`
	Type          string `json:"type"`
	Count         int    `json:"count"`
	YesPrice      int    `json:"yes_price,omitempty"`
	NoPrice       int    `json:"no_price,omitempty"`
}

// Fill is one execution against our order.
type Fill struct {
	TradeID     string    `json:"trade_id"`
	OrderID     string    `json:"order_id"`
	Ticker      string    `json:"ticker"`
	Side        string    `json:"side"`
	Action      string    `json:"action"`
	Count       int       `json:"count"`
	YesPrice    int       `json:"yes_price"`
	NoPrice     int       `json:"no_price"`
	IsTaker     bool      `json:"is_taker"`
	CreatedTime time.Time `json:"created_time"`
}

// Position is the venue's view of our holding in one contract.
type Position struct {
	Ticker         string `json:"ticker"`
	Position       int    `json:"position"` // signed contracts, + yes / - no
	MarketExposure int    `json:"market_exposure"`
	RealizedPnL    int    `json:"realized_pnl"`
	TotalTraded    int    `json:"total_traded"`
}

// Event is a venue event grouping the markets for one game.
type Event struct {
	EventTicker  string `json:"event_ticker"`
	SeriesTicker string `json:"series_ticker"`
	Title        string `json:"title"`
}
