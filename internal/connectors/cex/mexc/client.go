// Package mexc is a minimal public-REST client: just what a USD price source needs.
package mexc

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

type Client struct {
	baseURL string
	log     *zap.Logger
	http    *http.Client
}

func NewClient(baseURL string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		log:     log,
		http:    &http.Client{Timeout: 6 * time.Second},
	}
}

type bookTickerResp struct {
	Symbol   string `json:"symbol"`
	BidPrice string `json:"bidPrice"`
	AskPrice string `json:"askPrice"`
}

// BestBidAsk reads the top of book for symbol.
func (c *Client) BestBidAsk(ctx context.Context, symbol string) (bid, ask decimal.Decimal, err error) {
	endpoint := c.baseURL + "/api/v3/ticker/bookTicker?symbol=" + url.QueryEscape(strings.ToUpper(symbol))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return decimal.Zero, decimal.Zero, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return decimal.Zero, decimal.Zero, fmt.Errorf("bookTicker %d: %s", resp.StatusCode, string(b))
	}
	var br bookTickerResp
	if err := json.NewDecoder(resp.Body).Decode(&br); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("decode bookTicker: %w", err)
	}
	if bid, err = decimal.NewFromString(br.BidPrice); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("bad bid %q: %w", br.BidPrice, err)
	}
	if ask, err = decimal.NewFromString(br.AskPrice); err != nil {
		return decimal.Zero, decimal.Zero, fmt.Errorf("bad ask %q: %w", br.AskPrice, err)
	}
	return bid, ask, nil
}

// Mid - середина стакана; ошибка, если одна из сторон пустая.
func (c *Client) Mid(ctx context.Context, symbol string) (decimal.Decimal, error) {
	bid, ask, err := c.BestBidAsk(ctx, symbol)
	if err != nil {
		return decimal.Zero, err
	}
	if !bid.IsPositive() || !ask.IsPositive() {
		c.log.Debug("empty book side", zap.String("symbol", symbol), zap.Stringer("bid", bid), zap.Stringer("ask", ask))
		return decimal.Zero, fmt.Errorf("empty book for %s", symbol)
	}
	return bid.Add(ask).Div(decimal.NewFromInt(2)), nil
}
