package container

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/garyjia/quote-revision/internal/application/port"
	"github.com/garyjia/quote-revision/internal/application/service"
	"github.com/garyjia/quote-revision/internal/config"
	"github.com/garyjia/quote-revision/internal/domain/entity"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server:   config.ServerConfig{Port: 8080},
		Database: config.DatabaseConfig{Path: filepath.Join(t.TempDir(), "quotes.db"), MaxOpenConns: 1},
		Store:    config.StoreConfig{Driver: config.DriverSQLite},
		Review: config.ReviewConfig{
			IdleTimeout:            time.Hour,
			LowConfidenceThreshold: 0.75,
			SweepInterval:          time.Minute,
		},
		Metrics: config.MetricsConfig{Enabled: true},
	}
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.Store.Driver = "mongo"
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "invalid config")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, c.Start(ctx))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(ctx))

	health := c.Health(ctx)
	assert.True(t, health.Overall, "%+v", health.Components)
	assert.Equal(t, 1, c.Workers().WorkerCount())
	assert.NotNil(t, c.Metrics())
	assert.Nil(t, c.LarkClient())

	svc := c.Services()
	detail, err := svc.Quote.CreateQuote(ctx, service.CreateQuoteInput{
		ContractorID: "c-1",
		CustomerName: "Ann",
		Items: []entity.QuoteItem{
			{Description: "Interior paint", Quantity: 2, Unit: entity.UnitEach, UnitPrice: 50, Category: entity.CategoryMaterial},
		},
	})
	require.NoError(t, err)

	quoteID := detail.Quote.ID
	_, err = svc.Review.SubmitCommand(ctx, quoteID, "c-1", "", entity.VoiceEditCommand{
		Kind: entity.CommandChangePrice, Target: "paint", Value: entity.Float(60), Confidence: 0.95,
	})
	require.NoError(t, err)
	_, err = svc.Review.RequestConfirmation(ctx, quoteID, "c-1")
	require.NoError(t, err)
	result, err := svc.Review.ApproveChanges(ctx, quoteID, "c-1")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Version)
	assert.Equal(t, 120.0, result.Total)

	// interpreter is not configured without an API key
	_, err = svc.Quote.InterpretTranscript(ctx, quoteID, "paint is 70")
	assert.ErrorIs(t, err, port.ErrInterpreterUnavailable)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(ctx))
}
