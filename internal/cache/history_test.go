package cache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lnbridge/swap-gateway/internal/models"
)

func setupTestRedis(t *testing.T) *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr: "localhost:6379",
		DB:   1, // separate DB for tests
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available: %v", err)
	}
	require.NoError(t, client.FlushDB(ctx).Err())

	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = client.FlushDB(ctx).Err()
		_ = client.Close()
	})
	return client
}

func testRecord(id string) *models.SwapRecord {
	return &models.SwapRecord{
		SwapID:       id,
		RequestID:    "req-" + id,
		Pair:         "TBTC-BTC-LN",
		Direction:    "LEDGER_TO_LIGHTNING",
		FinalState:   "SETTLED",
		InputAmount:  100_000,
		OutputAmount: 400,
		CreatedAt:    time.Now().UTC(),
		FinishedAt:   time.Now().UTC(),
	}
}

func TestHistory_RecordAndRecent(t *testing.T) {
	client := setupTestRedis(t)

	h, err := NewHistory(client, logrus.New())
	require.NoError(t, err)

	ctx := context.Background()
	h.Record(ctx, testRecord("a"))
	h.Record(ctx, testRecord("b"))

	recent, err := h.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 2)
	// Newest first.
	assert.Equal(t, "b", recent[0].SwapID)
	assert.Equal(t, "a", recent[1].SwapID)
}

func TestHistory_TrimsToCap(t *testing.T) {
	client := setupTestRedis(t)

	h, err := NewHistory(client, logrus.New())
	require.NoError(t, err)

	ctx := context.Background()
	for i := 0; i < maxRecent+20; i++ {
		h.Record(ctx, testRecord(fmt.Sprintf("swap-%d", i)))
	}

	recent, err := h.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recent, maxRecent)
}

func TestNewHistory_NilClient(t *testing.T) {
	_, err := NewHistory(nil, nil)
	assert.Error(t, err)
}
