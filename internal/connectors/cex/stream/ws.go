// Package stream subscribes to a JSON bookTicker websocket feed.
package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
)

type Ticker struct {
	Symbol string
	Bid    decimal.Decimal
	Ask    decimal.Decimal
	TS     time.Time
}

// Mid returns the book midpoint.
func (t Ticker) Mid() decimal.Decimal {
	return t.Bid.Add(t.Ask).Div(decimal.NewFromInt(2))
}

const readDeadline = 90 * time.Second

type WS struct {
	URL    string
	Dialer *websocket.Dialer
	conn   *websocket.Conn
	mu     sync.Mutex
}

func NewWS(url string) *WS {
	return &WS{
		URL: strings.TrimRight(url, "/"),
		Dialer: &websocket.Dialer{
			HandshakeTimeout:  15 * time.Second,
			EnableCompression: true,
		},
	}
}

func (w *WS) connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn != nil {
		return nil
	}
	c, _, err := w.Dialer.DialContext(ctx, w.URL, nil)
	if err != nil {
		return err
	}
	w.conn = c

	_ = w.conn.SetReadDeadline(time.Now().Add(readDeadline))
	w.conn.SetPongHandler(func(string) error {
		return w.conn.SetReadDeadline(time.Now().Add(readDeadline))
	})
	return nil
}

func (w *WS) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conn == nil {
		return nil
	}
	err := w.conn.Close()
	w.conn = nil
	return err
}

// bookTicker push: {"u":..,"s":"ETHUSDT","b":"3001.1","B":"..","a":"3001.2","A":".."}
type bookTicker struct {
	Symbol string `json:"s"`
	Bid    string `json:"b"`
	BidQty string `json:"B"`
	Ask    string `json:"a"`
	AskQty string `json:"A"`
}

// SubscribeBookTicker streams top-of-book updates until ctx is done or the connection drops;
// the channel is closed then.
func (w *WS) SubscribeBookTicker(ctx context.Context, symbols []string) (<-chan Ticker, error) {
	if err := w.connect(ctx); err != nil {
		return nil, err
	}

	params := make([]string, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, strings.ToLower(s)+"@bookTicker")
	}
	sub := struct {
		ID     int      `json:"id"`
		Method string   `json:"method"`
		Params []string `json:"params"`
	}{ID: 1, Method: "SUBSCRIBE", Params: params}

	w.mu.Lock()
	conn := w.conn
	err := conn.WriteJSON(sub)
	w.mu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}

	out := make(chan Ticker, 64)

	go func() {
		defer close(out)
		defer w.Close()

		// закрываем соединение по ctx, чтобы разблокировать ReadMessage
		stop := make(chan struct{})
		defer close(stop)
		go func() {
			select {
			case <-ctx.Done():
				_ = w.Close()
			case <-stop:
			}
		}()

		for {
			msgType, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(readDeadline))
			if msgType != websocket.TextMessage {
				continue
			}

			var bt bookTicker
			if json.Unmarshal(data, &bt) != nil || bt.Symbol == "" {
				continue // ack на подписку и прочее
			}
			bid, err1 := decimal.NewFromString(bt.Bid)
			ask, err2 := decimal.NewFromString(bt.Ask)
			if err1 != nil || err2 != nil || !bid.IsPositive() || !ask.IsPositive() {
				continue
			}

			select {
			case out <- Ticker{Symbol: bt.Symbol, Bid: bid, Ask: ask, TS: time.Now()}:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}
