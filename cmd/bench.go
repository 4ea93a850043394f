package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/matthieuc/gpiolink/app"
	"github.com/matthieuc/gpiolink/config"
	"github.com/matthieuc/gpiolink/core/bench"
	coremqtt "github.com/matthieuc/gpiolink/core/mqtt"
	"github.com/matthieuc/gpiolink/infra/logger"
	"github.com/matthieuc/gpiolink/infra/mqtt"
)

var (
	benchCount int
	benchSize  int
	benchTopic string
)

var benchCmd = &cobra.Command{
	Use:   "bench",
	Short: "Measure publish throughput against the configured broker",
	RunE:  runBench,
}

func init() {
	benchCmd.Flags().IntVar(&benchCount, "count", 0, "number of publishes (0 uses the config value)")
	benchCmd.Flags().IntVar(&benchSize, "size", 0, "payload size in bytes (0 uses the config value)")
	benchCmd.Flags().StringVar(&benchTopic, "topic", "", "benchmark topic (empty uses the config value)")
	rootCmd.AddCommand(benchCmd)
}

func runBench(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if benchCount > 0 {
		cfg.Bench.Count = benchCount
	}
	if benchSize > 0 {
		cfg.Bench.PayloadSize = benchSize
	}
	if benchTopic != "" {
		cfg.Bench.Topic = benchTopic
	}
	if err := cfg.Bench.Validate(); err != nil {
		return err
	}

	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("%s-bench-%d", mqttCfg.ClientID, time.Now().UnixNano())
	sess, err := mqtt.NewPahoSession(mqttCfg, coremqtt.Hooks{})
	if err != nil {
		return fmt.Errorf("mqtt session: %w", err)
	}
	defer sess.Close()

	sink, err := app.BuildSink(cfg.Metrics)
	if err != nil {
		return err
	}

	runner := bench.NewRunner(cfg.Bench, sess, sink, logger.New("bench"))
	rep, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("published %d messages of %d bytes in %s\n", rep.Count, rep.PayloadSize, rep.Total.Round(time.Millisecond))
	fmt.Printf("throughput: %.1f msg/s (%.0f B/s)\n", rep.MsgPerSec, rep.BytesPerSec)
	fmt.Printf("latency: mean %s min %s max %s p95 %s\n", rep.Mean, rep.Min, rep.Max, rep.P95)
	return nil
}
