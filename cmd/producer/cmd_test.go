package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"evfeed/internal/platform/config"
	"evfeed/internal/registration/pipeline"
	"evfeed/pkg/platform/sentinel"
)

func parse(t *testing.T, args ...string) (*pflag.FlagSet, flags) {
	t.Helper()
	var f flags
	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	bindFlags(fs, &f)
	require.NoError(t, fs.Parse(args))
	return fs, f
}

func TestBuildConfig(t *testing.T) {
	t.Run("flags override env and unset flags keep env", func(t *testing.T) {
		t.Setenv("EVFEED_TOPIC", "from-env")
		t.Setenv("EVFEED_BROKERS", "env-broker:9092")

		fs, f := parse(t, "--topic", "from-flag", "--rate", "25")
		cfg, err := buildConfig(fs, f)

		require.NoError(t, err)
		assert.Equal(t, "from-flag", cfg.Topic)
		assert.Equal(t, []string{"env-broker:9092"}, cfg.Kafka.Brokers)
		assert.InDelta(t, 25.0, cfg.RatePerSecond, 0.0001)
	})

	t.Run("zero-valued flag still overrides when set", func(t *testing.T) {
		t.Setenv("EVFEED_PROGRESS_EVERY", "50")

		fs, f := parse(t, "--progress-every", "0")
		cfg, err := buildConfig(fs, f)

		require.NoError(t, err)
		assert.Equal(t, 0, cfg.ProgressEvery)
	})

	t.Run("invalid sink is rejected", func(t *testing.T) {
		fs, f := parse(t, "--sink", "carrier-pigeon")
		_, err := buildConfig(fs, f)

		require.ErrorIs(t, err, sentinel.ErrInvalidConfig)
	})
}

func TestRun_MissingInputIsSourceUnavailable(t *testing.T) {
	cfg := config.Default()
	cfg.CSVPath = filepath.Join(t.TempDir(), "missing.csv")
	cfg.Kafka.Brokers = []string{"127.0.0.1:1"}

	sum, err := run(context.Background(), cfg, slog.New(slog.DiscardHandler))

	require.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
	assert.True(t, sum.TerminatedEarly)
	assert.NotEmpty(t, sum.RunID)
	assert.Zero(t, sum.Published)
	assert.Zero(t, sum.Skipped)
}

func TestRun_MissingInputReportedBeforeSinkFailure(t *testing.T) {
	cfg := config.Default()
	cfg.CSVPath = filepath.Join(t.TempDir(), "missing.csv")
	cfg.Sink = config.SinkRedis
	cfg.Redis.URL = "redis://127.0.0.1:1/0"
	cfg.Redis.DialTimeout = 200 * time.Millisecond

	sum, err := run(context.Background(), cfg, slog.New(slog.DiscardHandler))

	require.ErrorIs(t, err, pipeline.ErrSourceUnavailable)
	assert.NotErrorIs(t, err, pipeline.ErrSinkTransport)
	assert.True(t, sum.TerminatedEarly)
}

func TestRun_UnreachableRedisFailsBeforeReading(t *testing.T) {
	cfg := config.Default()
	cfg.CSVPath = writeCSV(t)
	cfg.Sink = config.SinkRedis
	cfg.Redis.URL = "redis://127.0.0.1:1/0"
	cfg.Redis.DialTimeout = 200 * time.Millisecond

	_, err := run(context.Background(), cfg, slog.New(slog.DiscardHandler))

	require.ErrorIs(t, err, pipeline.ErrSinkTransport)
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func writeCSV(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ev.csv")
	require.NoError(t, os.WriteFile(path, []byte("VIN (1-10),Make,Model\n5YJ3E1EB4K,TESLA,MODEL 3\n"), 0o600))
	return path
}

func TestRun_UnknownFailurePolicy(t *testing.T) {
	cfg := config.Default()
	cfg.FailurePolicy = "retry-forever"

	_, err := run(context.Background(), cfg, slog.New(slog.DiscardHandler))

	require.Error(t, err)
}
