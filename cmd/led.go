package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/matthieuc/gpiolink/config"
	"github.com/matthieuc/gpiolink/core/model"
	coremqtt "github.com/matthieuc/gpiolink/core/mqtt"
	"github.com/matthieuc/gpiolink/infra/mqtt"
)

var ledCmd = &cobra.Command{
	Use:   "led <index> <on|off|toggle>",
	Short: "Publish a one-shot LED command",
	Args:  cobra.ExactArgs(2),
	RunE:  runLED,
}

func init() {
	rootCmd.AddCommand(ledCmd)
}

func runLED(cmd *cobra.Command, args []string) error {
	led, err := strconv.Atoi(args[0])
	if err != nil || led < 0 {
		return fmt.Errorf("invalid led index %q", args[0])
	}
	action := model.LEDCommand{Action: args[1]}
	if !action.Valid() {
		return fmt.Errorf("invalid action %q, want on, off or toggle", args[1])
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("%s-led-%d", mqttCfg.ClientID, time.Now().UnixNano())
	sess, err := mqtt.NewPahoSession(mqttCfg, coremqtt.Hooks{})
	if err != nil {
		return fmt.Errorf("mqtt session: %w", err)
	}
	defer sess.Close()

	topic := fmt.Sprintf("%s/led/%d/set", cfg.Agent.TopicPrefix, led)
	if err := sess.Publish(topic, []byte(action.Action), mqttCfg.QoSFor("led")); err != nil {
		return fmt.Errorf("publish led command: %w", err)
	}
	fmt.Printf("sent %s to %s\n", action.Action, topic)
	return nil
}
