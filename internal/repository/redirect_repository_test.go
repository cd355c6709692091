package repository

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"checkout-service/internal/models"
)

func TestMemoryLedger_ClaimCompleteIsSessionScoped(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	first := &models.RedirectRecord{Signature: "sig-1", SessionID: "sess-1", Gateway: "quickpay"}
	claimed, err := ledger.Claim(ctx, first)
	require.NoError(t, err)
	assert.True(t, claimed)
	require.NoError(t, ledger.Complete(ctx, "sess-1", "sig-1", models.MethodCard))

	// The same signature in the same session is a reload.
	claimed, err = ledger.Claim(ctx, &models.RedirectRecord{Signature: "sig-1", SessionID: "sess-1", Gateway: "quickpay"})
	require.NoError(t, err)
	assert.False(t, claimed)

	// Another shopper landing on an identical return URL is not.
	claimed, err = ledger.Claim(ctx, &models.RedirectRecord{Signature: "sig-1", SessionID: "sess-2", Gateway: "quickpay"})
	require.NoError(t, err)
	assert.True(t, claimed)

	records, err := ledger.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, first.ID, records[0].ID)
	assert.Equal(t, models.RedirectSucceeded, records[0].Status)
	assert.Equal(t, models.MethodCard, records[0].Method)
	assert.False(t, records[0].CreatedAt.IsZero())

	records, err = ledger.ListBySession(ctx, "sess-2")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, models.RedirectPending, records[0].Status)
}

func TestMemoryLedger_ReleaseAllowsRetry(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	record := func() *models.RedirectRecord {
		return &models.RedirectRecord{Signature: "sig-1", SessionID: "sess-1", Gateway: "amazon"}
	}

	claimed, err := ledger.Claim(ctx, record())
	require.NoError(t, err)
	require.True(t, claimed)

	claimed, err = ledger.Claim(ctx, record())
	require.NoError(t, err)
	assert.False(t, claimed, "a live claim blocks a concurrent delivery")

	require.NoError(t, ledger.Release(ctx, "sess-1", "sig-1"))

	claimed, err = ledger.Claim(ctx, record())
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryLedger_ReleaseKeepsCompletedRows(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	_, err := ledger.Claim(ctx, &models.RedirectRecord{Signature: "sig-1", SessionID: "sess-1", Gateway: "amazon"})
	require.NoError(t, err)
	require.NoError(t, ledger.Complete(ctx, "sess-1", "sig-1", models.MethodAmazon))
	require.NoError(t, ledger.Release(ctx, "sess-1", "sig-1"))

	records, err := ledger.ListBySession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, records, 1)
}

func TestMemoryLedger_StaleClaimIsTakenOver(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ledger.now = func() time.Time { return now }

	_, err := ledger.Claim(ctx, &models.RedirectRecord{Signature: "sig-1", SessionID: "sess-1", Gateway: "quickpay"})
	require.NoError(t, err)

	now = now.Add(DefaultClaimTTL + time.Second)
	claimed, err := ledger.Claim(ctx, &models.RedirectRecord{Signature: "sig-1", SessionID: "sess-1", Gateway: "quickpay"})
	require.NoError(t, err)
	assert.True(t, claimed)
}

func TestMemoryLedger_ConcurrentClaimsHaveOneWinner(t *testing.T) {
	ctx := context.Background()
	ledger := NewMemoryLedger()

	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			claimed, err := ledger.Claim(ctx, &models.RedirectRecord{Signature: "sig-1", SessionID: "sess-1", Gateway: "paysafecard"})
			assert.NoError(t, err)
			if claimed {
				wins.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), wins.Load())
}

func TestRedirectRecord_TableName(t *testing.T) {
	assert.Equal(t, "checkout_redirects", models.RedirectRecord{}.TableName())
}
