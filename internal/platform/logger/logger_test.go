package logger

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetupLevels(t *testing.T) {
	// Not parallel: Setup mutates the process default logger.
	original := slog.Default()
	defer slog.SetDefault(original)

	for _, level := range []string{"debug", "info", "WARN", "Error", "bogus", ""} {
		logger := Setup(level)
		require.NotNil(t, logger, "Setup(%q)", level)
		assert.Same(t, logger, slog.Default(), "Setup must install the default logger")
	}
}

func TestFromContext(t *testing.T) {
	t.Parallel()

	// Empty context falls back to the default logger.
	assert.Same(t, slog.Default(), FromContext(context.Background()))

	embedded := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := WithLogger(context.Background(), embedded)
	assert.Same(t, embedded, FromContext(ctx))
}

func TestFromContextOrDefault(t *testing.T) {
	t.Parallel()

	fallback := slog.New(slog.NewTextHandler(os.Stderr, nil))

	assert.Same(t, fallback, FromContextOrDefault(context.Background(), fallback))
	assert.Same(t, slog.Default(), FromContextOrDefault(context.Background(), nil))

	embedded := slog.New(slog.NewTextHandler(os.Stderr, nil))
	ctx := WithLogger(context.Background(), embedded)
	assert.Same(t, embedded, FromContextOrDefault(ctx, fallback))
}
