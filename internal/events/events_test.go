package events_test

import (
	"context"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sporesmarket/settlement/internal/constants"
	"github.com/sporesmarket/settlement/internal/events"
	"github.com/sporesmarket/settlement/internal/logger"
)

func init() {
	logger.InitLogger(constants.StageTest)
}

type capture struct {
	mu   sync.Mutex
	seen []events.Event
}

func (c *capture) Emit(ctx context.Context, e events.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.seen = append(c.seen, e)
}

func (c *capture) events() []events.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]events.Event(nil), c.seen...)
}

func TestMultiFansOut(t *testing.T) {
	a := &capture{}
	b := &capture{}
	multi := events.Multi{a, b}

	ev := events.Cancel{SaleID: big.NewInt(11112222), Seller: common.HexToAddress("0x01")}
	multi.Emit(context.Background(), ev)

	require.Len(t, a.events(), 1)
	require.Len(t, b.events(), 1)
	assert.Equal(t, "Cancel", a.events()[0].Name())
}

func TestEventNames(t *testing.T) {
	tests := []struct {
		event events.Event
		want  string
	}{
		{events.NewCollection{}, "NewCollection"},
		{events.CollectionMintSingle{}, "CollectionMintSingle"},
		{events.CollectionMintBatch{}, "CollectionMintBatch"},
		{events.Transfer{}, "Transfer"},
		{events.MarketTransaction{}, "SporesNFTMarketTransaction"},
		{events.Cancel{}, "Cancel"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.event.Name())
	}
}

func TestWebhookDelivers(t *testing.T) {
	type received struct {
		ID      string          `json:"id"`
		Event   string          `json:"event"`
		Payload json.RawMessage `json:"payload"`
	}

	var mu sync.Mutex
	var got []received
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var rec received
		require.NoError(t, json.NewDecoder(r.Body).Decode(&rec))
		mu.Lock()
		got = append(got, rec)
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := events.NewWebhook(events.WebhookConfig{URL: srv.URL})
	w.Emit(context.Background(), events.MarketTransaction{
		SaleID:    big.NewInt(180021080),
		TradeType: constants.TradeRedeemNative,
		Price:     big.NewInt(1000),
		Fee:       big.NewInt(50),
	})
	w.Close()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "SporesNFTMarketTransaction", got[0].Event)
	assert.NotEmpty(t, got[0].ID)
	assert.Contains(t, string(got[0].Payload), "180021080")
}

func TestWebhookRetriesServerErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n < 3 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	w := events.NewWebhook(events.WebhookConfig{
		URL:             srv.URL,
		InitialInterval: time.Millisecond,
		MaxInterval:     5 * time.Millisecond,
	})
	w.Emit(context.Background(), events.Cancel{SaleID: big.NewInt(1), Seller: common.Address{}})
	w.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 3, calls)
}

func TestWebhookDoesNotRetryClientErrors(t *testing.T) {
	var mu sync.Mutex
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		calls++
		mu.Unlock()
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	w := events.NewWebhook(events.WebhookConfig{
		URL:             srv.URL,
		InitialInterval: time.Millisecond,
	})
	w.Emit(context.Background(), events.Cancel{SaleID: big.NewInt(1), Seller: common.Address{}})
	w.Close()

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, calls)
}
