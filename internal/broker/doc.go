// Package broker supervises the external MQTT broker process, started and
// stopped with the agent. Readiness is probed on the MQTT/TCP listener before
// the supervisor reports the broker open. When the configured binary supports
// MQTT-SN, its UDP listener port is wired through the {udp_port} argument
// placeholder.
package broker
