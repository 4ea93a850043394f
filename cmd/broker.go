package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/matthieuc/gpiolink/config"
	"github.com/matthieuc/gpiolink/infra/logger"
	"github.com/matthieuc/gpiolink/internal/broker"
)

var brokerCmd = &cobra.Command{
	Use:   "broker",
	Short: "Run only the supervised MQTT/MQTT-SN broker",
	RunE:  runBroker,
}

func init() {
	rootCmd.AddCommand(brokerCmd)
}

func runBroker(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	sup := broker.NewSupervisor(cfg.Broker, logger.New("broker"))
	if err := sup.Open(ctx); err != nil {
		return fmt.Errorf("open broker: %w", err)
	}
	if cfg.Broker.MQTTSNEnabled() {
		fmt.Printf("broker listening on mqtt :%d and mqtt-sn :%d\n", cfg.Broker.TCPPort, cfg.Broker.UDPPort)
	} else {
		fmt.Printf("broker listening on mqtt :%d\n", cfg.Broker.TCPPort)
	}

	<-ctx.Done()
	return sup.Close()
}
