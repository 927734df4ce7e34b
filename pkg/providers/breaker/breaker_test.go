package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nerdneilsfield/ocr-bilingual/internal/test"
	"github.com/nerdneilsfield/ocr-bilingual/pkg/providers"
)

func TestBreakerOpensAfterConsecutiveFailures(t *testing.T) {
	engine := &test.MockEngine{
		Fn: func(context.Context, *providers.Request) (string, error) {
			return "", errors.New("upstream down")
		},
	}
	wrapped := Wrap(engine, Settings{MaxFailures: 3, OpenTimeout: time.Hour}, nil)

	for i := 0; i < 3; i++ {
		_, err := wrapped.Translate(context.Background(), &providers.Request{Text: "x"})
		require.Error(t, err)
		assert.NotEqual(t, providers.CodeCircuitOpen, providers.CodeOf(err))
	}
	assert.Equal(t, "open", wrapped.State())

	_, err := wrapped.Translate(context.Background(), &providers.Request{Text: "x"})
	require.Error(t, err)
	assert.Equal(t, providers.CodeCircuitOpen, providers.CodeOf(err))
	assert.Equal(t, 3, engine.Calls(), "open breaker must not reach the engine")
}

func TestBreakerPassesThroughSuccess(t *testing.T) {
	engine := &test.MockEngine{}
	wrapped := Wrap(engine, DefaultSettings(), nil)

	resp, err := wrapped.Translate(context.Background(), &providers.Request{Text: "Hello"})
	require.NoError(t, err)
	assert.Equal(t, test.BilingualEcho("Hello"), resp.Text)
	assert.Equal(t, "mock", wrapped.Name())
	assert.Equal(t, "closed", wrapped.State())
}

func TestBreakerIgnoresCancellation(t *testing.T) {
	engine := &test.MockEngine{
		Fn: func(ctx context.Context, _ *providers.Request) (string, error) {
			return "", context.Canceled
		},
	}
	wrapped := Wrap(engine, Settings{MaxFailures: 1, OpenTimeout: time.Hour}, nil)
	for i := 0; i < 3; i++ {
		_, err := wrapped.Translate(context.Background(), &providers.Request{Text: "x"})
		require.Error(t, err)
	}
	assert.Equal(t, "closed", wrapped.State())
}
