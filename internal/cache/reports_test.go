package cache

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"github.com/trogers1052/trade-ledger/internal/accounting"
	"github.com/trogers1052/trade-ledger/internal/models"
)

func setupRedis(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "redis:7-alpine",
			ExposedPorts: []string{"6379/tcp"},
			WaitingFor: wait.ForLog("Ready to accept connections").
				WithStartupTimeout(30 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := container.Terminate(context.Background()); err != nil {
			t.Errorf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.Endpoint(ctx, "")
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	return endpoint
}

func TestKey(t *testing.T) {
	assert.Equal(t, "ledger:report:fee_inclusive:2330", Key("fee_inclusive", "2330"))
}

func TestReportCache(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}

	ctx := context.Background()
	addr := setupRedis(t)
	c, err := New(ctx, addr, "", 0, time.Minute, accounting.PolicyFeeInclusive, zerolog.Nop())
	require.NoError(t, err)
	defer c.Close()

	report := &models.PositionReport{
		Instrument: "2330",
		Policy:     "fee_inclusive",
		Summary: models.PositionSummary{
			TotalInvestment: decimal.NewFromInt(5020),
			TotalProfit:     decimal.NewFromInt(951),
			ROI:             decimal.NewNullDecimal(decimal.RequireFromString("18.9442")),
			Applied:         2,
		},
	}

	t.Run("miss returns nil", func(t *testing.T) {
		got, err := c.Get(ctx, "9999")
		require.NoError(t, err)
		assert.Nil(t, got)
	})

	t.Run("set then get", func(t *testing.T) {
		require.NoError(t, c.Set(ctx, report))

		got, err := c.Get(ctx, "2330")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.Equal(t, "2330", got.Instrument)
		assert.True(t, decimal.NewFromInt(951).Equal(got.Summary.TotalProfit))
		require.True(t, got.Summary.ROI.Valid)
		assert.True(t, decimal.RequireFromString("18.9442").Equal(got.Summary.ROI.Decimal))
		assert.False(t, got.Summary.AvgCost.Valid)
		assert.Equal(t, 2, got.Summary.Applied)
	})

	t.Run("ttl is applied", func(t *testing.T) {
		ttl, err := c.client.TTL(ctx, Key("fee_inclusive", "2330")).Result()
		require.NoError(t, err)
		assert.True(t, ttl > 0 && ttl <= time.Minute)
	})

	t.Run("other policies do not see the report", func(t *testing.T) {
		other, err := New(ctx, addr, "", 0, time.Minute, accounting.PolicyPriceOnly, zerolog.Nop())
		require.NoError(t, err)
		defer other.Close()

		got, err := other.Get(ctx, "2330")
		require.NoError(t, err)
		assert.Nil(t, got)

		priceOnly := *report
		priceOnly.Policy = "price_only"
		priceOnly.Summary.TotalProfit = decimal.NewFromInt(971)
		require.NoError(t, other.Set(ctx, &priceOnly))

		got, err = c.Get(ctx, "2330")
		require.NoError(t, err)
		require.NotNil(t, got)
		assert.True(t, decimal.NewFromInt(951).Equal(got.Summary.TotalProfit))
	})

	t.Run("invalidate drops the entry under every policy", func(t *testing.T) {
		require.NoError(t, c.Invalidate(ctx, "2330"))

		got, err := c.Get(ctx, "2330")
		require.NoError(t, err)
		assert.Nil(t, got)

		n, err := c.client.Exists(ctx, Key("price_only", "2330")).Result()
		require.NoError(t, err)
		assert.Zero(t, n)
	})
}

func TestNew_UnreachableRedis(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := New(ctx, "127.0.0.1:1", "", 0, time.Minute, accounting.PolicyFeeInclusive, zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}
