package services

import (
	"context"
	"testing"
	"time"

	"learnapp/internal/config"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// mockGateway is a testify mock of AIGateway.
type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

func (m *mockGateway) Name() string { return "mock" }

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Pipeline.BackoffBase = time.Millisecond
	cfg.Pipeline.BatchDelay = 0
	return cfg
}

func testPromptBuilder(t *testing.T) *PromptBuilder {
	t.Helper()
	b, err := NewPromptBuilder()
	require.NoError(t, err)
	return b
}
