// Package mqttpub publishes completed snapshots to an MQTT broker as
// JSON messages.
package mqttpub

import (
	"encoding/json"
	"time"

	"codeberg.org/mutker/airco2ctl/internal/errors"
	"codeberg.org/mutker/airco2ctl/internal/logger"
	"codeberg.org/mutker/airco2ctl/internal/monitor"
	mqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	clientID       = "airco2ctl"
	connectTimeout = 10 * time.Second
	publishQoS     = 0
)

type Config struct {
	Broker string
	Topic  string
}

func (c Config) Validate() error {
	errFactory := errors.New()
	if c.Broker == "" {
		return errFactory.New(ErrInvalidBroker)
	}
	if c.Topic == "" {
		return errFactory.New(ErrInvalidTopic)
	}
	return nil
}

type Publisher struct {
	client mqtt.Client
	topic  string
}

// New connects to the broker and returns a publisher. A broker that
// cannot be reached at startup is a fatal, descriptive error.
func New(cfg Config) (*Publisher, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.Broker).
		SetClientID(clientID).
		SetConnectTimeout(connectTimeout).
		SetAutoReconnect(true)

	client := mqtt.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return nil, errFactory.Wrap(ErrConnect, token.Error())
	}
	logger.Info().Msgf("Connected to MQTT broker: %s", cfg.Broker)

	return &Publisher{
		client: client,
		topic:  cfg.Topic,
	}, nil
}

// Observe publishes a snapshot. Publish failures are logged, not
// propagated; the acquisition loop must not stall on a flaky broker.
func (p *Publisher) Observe(s monitor.Snapshot) {
	payload, err := json.Marshal(s)
	if err != nil {
		logger.Error().Err(err).Msg("Failed to marshal snapshot")
		return
	}

	token := p.client.Publish(p.topic, publishQoS, false, payload)
	go func() {
		if token.Wait() && token.Error() != nil {
			logger.Error().Err(token.Error()).Msg("Failed to publish snapshot")
		}
	}()
}

// Close disconnects from the broker.
func (p *Publisher) Close() {
	p.client.Disconnect(uint(disconnectQuiesce / time.Millisecond))
}

const disconnectQuiesce = 250 * time.Millisecond
