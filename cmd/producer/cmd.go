package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"evfeed/internal/platform/config"
	"evfeed/internal/platform/logger"
)

type flags struct {
	configPath       string
	csvPath          string
	topic            string
	sink             string
	brokers          []string
	redisURL         string
	createTopic      bool
	progressEvery    int
	ratePerSecond    float64
	failurePolicy    string
	breakerThreshold int
	metricsAddr      string
	logLevel         string
	logFormat        string
}

func newRootCmd() *cobra.Command {
	var f flags

	cmd := &cobra.Command{
		Use:   "evfeed-producer",
		Short: "Publish cleaned electric vehicle registrations to a broker topic",
		Long: `Reads the state EV registration export, normalizes each row, drops rows
without a VIN, make or model, and publishes the rest as JSON messages.

Settings come from defaults, then --config YAML, then EVFEED_* variables
(.env.local is loaded first), then flags.`,
		SilenceUsage: true,
		Args:         cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := buildConfig(cmd.Flags(), f)
			if err != nil {
				return err
			}

			log := logger.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			_, err = run(ctx, cfg, log)
			return err
		},
	}

	bindFlags(cmd.Flags(), &f)

	return cmd
}

func bindFlags(fs *pflag.FlagSet, f *flags) {
	fs.StringVar(&f.configPath, "config", "", "path to a YAML config file")
	fs.StringVar(&f.csvPath, "csv", "", "path to the registration CSV export")
	fs.StringVar(&f.topic, "topic", "", "destination topic (stream name for redis)")
	fs.StringVar(&f.sink, "sink", "", "broker backend: kafka or redis")
	fs.StringSliceVar(&f.brokers, "brokers", nil, "kafka seed brokers")
	fs.StringVar(&f.redisURL, "redis-url", "", "redis URL for the redis sink")
	fs.BoolVar(&f.createTopic, "create-topic", false, "create the kafka topic if it does not exist")
	fs.IntVar(&f.progressEvery, "progress-every", 0, "log progress every N published records (0 disables)")
	fs.Float64Var(&f.ratePerSecond, "rate", 0, "maximum records per second (0 is unthrottled)")
	fs.StringVar(&f.failurePolicy, "failure-policy", "", "after a sink failure: continue or abort")
	fs.IntVar(&f.breakerThreshold, "breaker-threshold", 0, "consecutive sink failures that end the run")
	fs.StringVar(&f.metricsAddr, "metrics-addr", "", "serve /metrics and /healthz on this address during the run")
	fs.StringVar(&f.logLevel, "log-level", "", "debug, info, warn or error")
	fs.StringVar(&f.logFormat, "log-format", "", "text or json")
}

// buildConfig loads file and env settings, then applies only the flags the
// user actually set.
func buildConfig(fs *pflag.FlagSet, f flags) (config.Producer, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return cfg, err
	}

	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("csv", func() { cfg.CSVPath = f.csvPath })
	set("topic", func() { cfg.Topic = f.topic })
	set("sink", func() { cfg.Sink = f.sink })
	set("brokers", func() { cfg.Kafka.Brokers = f.brokers })
	set("redis-url", func() { cfg.Redis.URL = f.redisURL })
	set("create-topic", func() { cfg.Kafka.CreateTopic = f.createTopic })
	set("progress-every", func() { cfg.ProgressEvery = f.progressEvery })
	set("rate", func() { cfg.RatePerSecond = f.ratePerSecond })
	set("failure-policy", func() { cfg.FailurePolicy = f.failurePolicy })
	set("breaker-threshold", func() { cfg.BreakerThreshold = f.breakerThreshold })
	set("metrics-addr", func() { cfg.MetricsAddr = f.metricsAddr })
	set("log-level", func() { cfg.LogLevel = f.logLevel })
	set("log-format", func() { cfg.LogFormat = f.logFormat })

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}
