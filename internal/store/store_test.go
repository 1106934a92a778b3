package store_test

import (
	"context"
	"math/big"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sporesmarket/settlement/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPebbleLedger(t *testing.T) store.Ledger {
	t.Helper()
	l, err := store.OpenPebble(filepath.Join(t.TempDir(), "ledger"))
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, l.Close()) })
	return l
}

func ledgerFixtures(t *testing.T) map[string]store.Ledger {
	return map[string]store.Ledger{
		"memory": store.NewMemory(),
		"pebble": newPebbleLedger(t),
	}
}

func sampleSettlement(saleID string) *store.Settlement {
	return &store.Settlement{
		SaleID:          saleID,
		TradeType:       "REDEEM_NATIVE",
		Buyer:           common.HexToAddress("0x01"),
		Seller:          common.HexToAddress("0x02"),
		PaymentReceiver: common.HexToAddress("0x02"),
		NFTContract:     common.HexToAddress("0x03"),
		TokenID:         mustBig("7212690001000000000001"),
		PaymentToken:    common.Address{},
		Amount:          big.NewInt(1),
		Price:           big.NewInt(1000),
		Fee:             big.NewInt(50),
		Payout:          big.NewInt(950),
		SettledAt:       time.Now().UTC().Truncate(time.Millisecond),
	}
}

func mustBig(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad big literal " + s)
	}
	return n
}

func TestCancelSaleIsPermanent(t *testing.T) {
	for name, ledger := range ledgerFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			canceled, err := ledger.IsSaleCanceled(ctx, "180021080")
			require.NoError(t, err)
			assert.False(t, canceled)

			require.NoError(t, ledger.CancelSale(ctx, "180021080"))

			canceled, err = ledger.IsSaleCanceled(ctx, "180021080")
			require.NoError(t, err)
			assert.True(t, canceled)

			assert.ErrorIs(t, ledger.CancelSale(ctx, "180021080"), store.ErrAlreadyCanceled)
		})
	}
}

func TestConsumeSignatureOnce(t *testing.T) {
	for name, ledger := range ledgerFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			key := crypto.Keccak256Hash([]byte("authority-sig"))

			used, err := ledger.IsSignatureConsumed(ctx, key)
			require.NoError(t, err)
			assert.False(t, used)

			require.NoError(t, ledger.ConsumeSignature(ctx, key))
			assert.ErrorIs(t, ledger.ConsumeSignature(ctx, key), store.ErrSignatureConsumed)

			used, err = ledger.IsSignatureConsumed(ctx, key)
			require.NoError(t, err)
			assert.True(t, used)
		})
	}
}

func TestRecordSettlementRoundTrip(t *testing.T) {
	for name, ledger := range ledgerFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := sampleSettlement("180021080")
			sig := crypto.Keccak256Hash([]byte("auth"))

			require.NoError(t, ledger.RecordSettlement(ctx, rec, sig))

			got, err := ledger.GetSettlement(ctx, "180021080")
			require.NoError(t, err)
			assert.Equal(t, rec.SaleID, got.SaleID)
			assert.Equal(t, rec.TradeType, got.TradeType)
			assert.Equal(t, rec.Buyer, got.Buyer)
			assert.Equal(t, 0, rec.TokenID.Cmp(got.TokenID))
			assert.Equal(t, 0, rec.Fee.Cmp(got.Fee))
			assert.Equal(t, 0, rec.Payout.Cmp(got.Payout))

			used, err := ledger.IsSignatureConsumed(ctx, sig)
			require.NoError(t, err)
			assert.True(t, used, "settlement commit must burn its signatures")

			assert.ErrorIs(t, ledger.RecordSettlement(ctx, sampleSettlement("180021080")), store.ErrDuplicateSale)
		})
	}
}

func TestRecordSettlementRejectsConsumedSignature(t *testing.T) {
	for name, ledger := range ledgerFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			sig := crypto.Keccak256Hash([]byte("burned"))
			require.NoError(t, ledger.ConsumeSignature(ctx, sig))

			err := ledger.RecordSettlement(ctx, sampleSettlement("222"), sig)
			assert.ErrorIs(t, err, store.ErrSignatureConsumed)

			_, err = ledger.GetSettlement(ctx, "222")
			assert.ErrorIs(t, err, store.ErrNotFound, "rejected commit must not leave a record")
		})
	}
}

func TestGetSettlementNotFound(t *testing.T) {
	for name, ledger := range ledgerFixtures(t) {
		t.Run(name, func(t *testing.T) {
			_, err := ledger.GetSettlement(context.Background(), "nope")
			assert.ErrorIs(t, err, store.ErrNotFound)
		})
	}
}

func TestListSettlementsNewestFirst(t *testing.T) {
	for name, ledger := range ledgerFixtures(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			base := time.Now().UTC().Truncate(time.Millisecond)
			for i, id := range []string{"100", "200", "300"} {
				rec := sampleSettlement(id)
				rec.SettledAt = base.Add(time.Duration(i) * time.Second)
				require.NoError(t, ledger.RecordSettlement(ctx, rec))
			}

			all, err := ledger.ListSettlements(ctx, 10, 0)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "300", all[0].SaleID)
			assert.Equal(t, "100", all[2].SaleID)

			page, err := ledger.ListSettlements(ctx, 1, 1)
			require.NoError(t, err)
			require.Len(t, page, 1)
			assert.Equal(t, "200", page[0].SaleID)

			empty, err := ledger.ListSettlements(ctx, 10, 5)
			require.NoError(t, err)
			assert.Empty(t, empty)
		})
	}
}

func TestPebbleSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := filepath.Join(t.TempDir(), "ledger")

	l, err := store.OpenPebble(dir)
	require.NoError(t, err)
	require.NoError(t, l.CancelSale(ctx, "42"))
	require.NoError(t, l.RecordSettlement(ctx, sampleSettlement("777")))
	require.NoError(t, l.Close())

	reopened, err := store.OpenPebble(dir)
	require.NoError(t, err)
	defer reopened.Close()

	canceled, err := reopened.IsSaleCanceled(ctx, "42")
	require.NoError(t, err)
	assert.True(t, canceled)

	rec, err := reopened.GetSettlement(ctx, "777")
	require.NoError(t, err)
	assert.Equal(t, "777", rec.SaleID)
}

func TestKeyedMutexSerializesSameKey(t *testing.T) {
	km := store.NewKeyedMutex()

	var mu sync.Mutex
	active := 0
	maxActive := 0

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := km.Lock("sale-1")
			defer unlock()

			mu.Lock()
			active++
			if active > maxActive {
				maxActive = active
			}
			mu.Unlock()

			time.Sleep(time.Millisecond)

			mu.Lock()
			active--
			mu.Unlock()
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxActive, "at most one holder per key")
}

func TestKeyedMutexIndependentKeys(t *testing.T) {
	km := store.NewKeyedMutex()
	unlockA := km.Lock("a")
	defer unlockA()

	done := make(chan struct{})
	go func() {
		unlockB := km.Lock("b")
		unlockB()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("lock on independent key should not block")
	}
}
