// Package telemetry publishes request snapshots to an MQTT broker and takes
// request targets from a command topic.
package telemetry

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/go-logr/logr"

	"gitlab.com/lologarithm/panel/command"
	"gitlab.com/lologarithm/panel/panel"
)

// Config holds the broker connection and topics. Topics may use {name}.
type Config struct {
	Broker       string `mapstructure:"broker"`
	ClientID     string `mapstructure:"client_id"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	StateTopic   string `mapstructure:"state_topic"`   // e.g. "panel/{name}/state"
	CommandTopic string `mapstructure:"command_topic"` // e.g. "panel/{name}/request", empty to disable
	QoS          byte   `mapstructure:"qos"`
	Retain       bool   `mapstructure:"retain"`
}

const queueSize = 16

// Connect dials the broker.
func Connect(cfg Config, log logr.Logger) (mqtt.Client, error) {
	opts := mqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)
	opts.SetUsername(cfg.Username)
	opts.SetPassword(cfg.Password)
	opts.SetAutoReconnect(true)
	opts.SetKeepAlive(60 * time.Second)
	opts.SetPingTimeout(10 * time.Second)
	opts.SetOnConnectHandler(func(mqtt.Client) {
		log.Info("MQTT connected", "broker", cfg.Broker)
	})
	opts.SetConnectionLostHandler(func(_ mqtt.Client, err error) {
		log.Error(err, "MQTT connection lost", "broker", cfg.Broker)
	})

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, fmt.Errorf("failed to connect to MQTT broker %s: %w", cfg.Broker, token.Error())
	}
	return client, nil
}

// Publisher sends snapshots from its queue to the state topic.
type Publisher struct {
	client  mqtt.Client
	log     logr.Logger
	state   string
	command string
	qos     byte
	retain  bool

	updates  chan panel.Snapshot
	requests chan string
}

// NewPublisher binds client to the topics of cfg for device name.
func NewPublisher(client mqtt.Client, cfg Config, name string, log logr.Logger) *Publisher {
	return &Publisher{
		client:   client,
		log:      log,
		state:    FormatTopic(cfg.StateTopic, name),
		command:  FormatTopic(cfg.CommandTopic, name),
		qos:      cfg.QoS,
		retain:   cfg.Retain,
		updates:  make(chan panel.Snapshot, queueSize),
		requests: make(chan string, queueSize),
	}
}

// Observe queues s, dropping it when the publisher is behind.
func (p *Publisher) Observe(s panel.Snapshot) {
	select {
	case p.updates <- s:
	default:
		p.log.V(1).Info("Telemetry behind, dropping snapshot")
	}
}

// Start subscribes to the command topic, if any, and publishes until ctx is done.
func (p *Publisher) Start(ctx context.Context) error {
	if p.command != "" {
		token := p.client.Subscribe(p.command, p.qos, p.onCommand)
		if token.Wait() && token.Error() != nil {
			return fmt.Errorf("failed to subscribe to %s: %w", p.command, token.Error())
		}
		p.log.Info("Subscribed", "topic", p.command)
	}
	for {
		select {
		case <-ctx.Done():
			if p.command != "" {
				p.client.Unsubscribe(p.command).WaitTimeout(time.Second)
			}
			return nil
		case s := <-p.updates:
			if err := p.publish(s); err != nil {
				p.log.Error(err, "Failed to publish snapshot")
			}
		}
	}
}

func (p *Publisher) publish(s panel.Snapshot) error {
	payload, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	token := p.client.Publish(p.state, p.qos, p.retain, payload)
	if token.Wait() && token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", p.state, token.Error())
	}
	p.log.V(1).Info("Published", "topic", p.state, "bytes", len(payload))
	return nil
}

func (p *Publisher) onCommand(_ mqtt.Client, msg mqtt.Message) {
	target := strings.TrimSpace(string(msg.Payload()))
	if !strings.HasPrefix(target, "/") || len(target) > command.MaxRequestLine {
		p.log.Info("Ignoring malformed command", "topic", msg.Topic(), "payload", target)
		return
	}
	select {
	case p.requests <- target:
	default:
		p.log.Info("Command queue full, dropping", "request", target)
	}
}

// Drain runs every queued command through handle as a GET, without waiting.
func (p *Publisher) Drain(ctx context.Context, handle func(context.Context, []byte) []byte) int {
	n := 0
	for {
		select {
		case target := <-p.requests:
			handle(ctx, []byte("GET "+target+" HTTP/1.1\r\n\r\n"))
			n++
		default:
			return n
		}
	}
}

// FormatTopic replaces {name} in pattern.
func FormatTopic(pattern, name string) string {
	return strings.ReplaceAll(pattern, "{name}", name)
}
