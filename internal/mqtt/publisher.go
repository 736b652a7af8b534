package mqtt

import (
	"context"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
)

const defaultConnectTimeout = 10 * time.Second

// Config carries the broker connection settings for a [Publisher].
type Config struct {
	// BrokerURL is the broker address, e.g. "tcp://localhost:1883".
	BrokerURL string

	// ClientID identifies this gateway to the broker.
	ClientID string

	// Username and Password are optional broker credentials.
	Username string
	Password string

	// QoS is the quality-of-service level for all published messages.
	QoS byte

	// WillTopic, if non-empty, registers a retained last-will "offline"
	// message so consumers see the gateway drop when the connection dies
	// uncleanly.
	WillTopic string

	// ConnectTimeout bounds the initial connect. Defaults to 10 seconds.
	ConnectTimeout time.Duration
}

// Publisher publishes gateway messages over MQTT.
//
// Publisher wraps a paho client with automatic reconnection enabled;
// messages published while the connection is down are buffered by the
// client and flushed on reconnect. Publisher implements the bridge's
// Publisher port.
type Publisher struct {
	client paho.Client
	qos    byte
	logger zerolog.Logger
}

// NewPublisher connects to the broker and returns a ready [Publisher].
//
// If cfg.WillTopic is set, a retained "offline" last-will is registered
// and a retained "online" birth message is published immediately after
// connecting.
//
// Returns an error if the initial connect does not complete within the
// configured timeout.
func NewPublisher(cfg Config, logger zerolog.Logger) (*Publisher, error) {
	connectTimeout := cfg.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = defaultConnectTimeout
	}

	opts := paho.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(cfg.ClientID).
		SetAutoReconnect(true).
		SetOrderMatters(false).
		SetConnectTimeout(connectTimeout)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}
	if cfg.WillTopic != "" {
		opts.SetWill(cfg.WillTopic, PayloadOffline, cfg.QoS, true)
	}

	opts.SetConnectionLostHandler(func(_ paho.Client, err error) {
		logger.Warn().Err(err).Msg("mqtt connection lost, reconnecting")
	})
	opts.SetOnConnectHandler(func(_ paho.Client) {
		logger.Info().Str("broker", cfg.BrokerURL).Msg("mqtt connected")
	})

	client := paho.NewClient(opts)

	token := client.Connect()
	if !token.WaitTimeout(connectTimeout) {
		return nil, errors.Errorf("mqtt connect to %s timed out after %s", cfg.BrokerURL, connectTimeout)
	}
	if err := token.Error(); err != nil {
		return nil, errors.Wrapf(err, "mqtt connect to %s failed", cfg.BrokerURL)
	}

	p := &Publisher{
		client: client,
		qos:    cfg.QoS,
		logger: logger,
	}

	if cfg.WillTopic != "" {
		if err := p.Publish(context.Background(), cfg.WillTopic, []byte(PayloadOnline), true); err != nil {
			logger.Warn().Err(err).Msg("failed to publish gateway online message")
		}
	}

	return p, nil
}

// Publish sends one message and waits for broker acknowledgement or
// context cancellation.
func (p *Publisher) Publish(ctx context.Context, topic string, payload []byte, retain bool) error {
	token := p.client.Publish(topic, p.qos, retain, payload)

	select {
	case <-token.Done():
		return errors.Wrapf(token.Error(), "publish to %s failed", topic)
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close publishes nothing further and disconnects from the broker,
// allowing 250ms for in-flight messages to complete.
func (p *Publisher) Close() {
	if p == nil || p.client == nil {
		return
	}
	p.client.Disconnect(250)
}
