package stream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wsServer(t *testing.T, frames []string) *httptest.Server {
	up := websocket.Upgrader{}
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := up.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer c.Close()

		var sub struct {
			Method string   `json:"method"`
			Params []string `json:"params"`
		}
		if err := c.ReadJSON(&sub); err != nil {
			return
		}
		assert.Equal(t, "SUBSCRIBE", sub.Method)
		assert.Equal(t, []string{"ethusdt@bookTicker"}, sub.Params)

		for _, f := range frames {
			if err := c.WriteMessage(websocket.TextMessage, []byte(f)); err != nil {
				return
			}
		}
		// держим соединение, пока клиент не закроет
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}))
}

func TestWS_SubscribeBookTicker(t *testing.T) {
	srv := wsServer(t, []string{
		`{"result":null,"id":1}`,
		`{"u":1,"s":"ETHUSDT","b":"0","a":"3000"}`,
		`{"u":2,"s":"ETHUSDT","b":"2999.5","B":"1","a":"3000.5","A":"2"}`,
	})
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ws := NewWS("ws" + strings.TrimPrefix(srv.URL, "http"))
	ch, err := ws.SubscribeBookTicker(ctx, []string{"ETHUSDT"})
	require.NoError(t, err)

	select {
	case tk := <-ch:
		assert.Equal(t, "ETHUSDT", tk.Symbol)
		// quantities "B"/"A" must not shadow prices "b"/"a"
		assert.True(t, tk.Bid.Equal(decimal.RequireFromString("2999.5")), tk.Bid.String())
		assert.True(t, tk.Ask.Equal(decimal.RequireFromString("3000.5")), tk.Ask.String())
		assert.True(t, tk.Mid().Equal(decimal.NewFromInt(3000)))
	case <-time.After(2 * time.Second):
		t.Fatal("no ticker")
	}

	cancel()
	require.Eventually(t, func() bool {
		select {
		case _, open := <-ch:
			return !open
		default:
			return false
		}
	}, 2*time.Second, 10*time.Millisecond)
}
