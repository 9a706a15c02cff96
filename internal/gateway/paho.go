package gateway

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/nerrad567/gray-logic-dali-bridge/internal/infrastructure/config"
)

// Paho transport constants.
const (
	// gatewayKeepAlive is the MQTT keepalive for gateway sessions. The
	// broker-side timeout is what turns a dead socket into a
	// connection-lost callback.
	gatewayKeepAlive = 30 * time.Second

	// pahoOpTimeout bounds publish and subscribe token waits.
	pahoOpTimeout = 5 * time.Second

	// clientIDPrefix namespaces this bridge's sessions on the gateway
	// broker, which only allows one session per client ID.
	clientIDPrefix = "graylogic-dali"
)

// pahoTransport implements Transport over paho.mqtt.golang.
//
// Auto-reconnect and connect-retry are disabled deliberately: the
// Connection's state machine and backoff scheduler are the single authority
// on when attempts happen. Letting paho retry underneath would produce
// phantom transitions and double availability notifications.
type pahoTransport struct {
	client pahomqtt.Client
	onLost func(err error)
}

func newPahoTransport(cfg config.GatewayConfig) *pahoTransport {
	t := &pahoTransport{}

	opts := pahomqtt.NewClientOptions()

	scheme := "tcp"
	if cfg.TLS {
		scheme = "ssl"
	}
	opts.AddBroker(fmt.Sprintf("%s://%s:%d", scheme, cfg.Host, cfg.Port))
	opts.SetClientID(fmt.Sprintf("%s-%s", clientIDPrefix, cfg.SerialNumber))

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	if cfg.TLS {
		// DALI Center gateways present self-signed certificates.
		opts.SetTLSConfig(&tls.Config{
			InsecureSkipVerify: true, //nolint:gosec // Gateway certs are self-signed; identity is the serial-scoped credentials.
			MinVersion:         tls.VersionTLS12,
		})
	}

	opts.SetCleanSession(true)
	opts.SetKeepAlive(gatewayKeepAlive)
	opts.SetAutoReconnect(false)
	opts.SetConnectRetry(false)

	opts.SetConnectionLostHandler(func(_ pahomqtt.Client, err error) {
		if t.onLost != nil {
			t.onLost(err)
		}
	})

	t.client = pahomqtt.NewClient(opts)
	return t
}

// Connect implements Transport.
func (t *pahoTransport) Connect(ctx context.Context) error {
	token := t.client.Connect()

	done := make(chan struct{})
	go func() {
		token.Wait()
		close(done)
	}()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-done:
		return token.Error()
	}
}

// Disconnect implements Transport.
func (t *pahoTransport) Disconnect(quiesce uint) {
	t.client.Disconnect(quiesce)
}

// Subscribe implements Transport.
func (t *pahoTransport) Subscribe(topic string, qos byte, handler func(topic string, payload []byte)) error {
	token := t.client.Subscribe(topic, qos, func(_ pahomqtt.Client, msg pahomqtt.Message) {
		handler(msg.Topic(), msg.Payload())
	})
	if !token.WaitTimeout(pahoOpTimeout) {
		return fmt.Errorf("subscribe %s: %w", topic, errTokenTimeout)
	}
	return token.Error()
}

// Publish implements Transport.
func (t *pahoTransport) Publish(topic string, qos byte, retained bool, payload []byte) error {
	token := t.client.Publish(topic, qos, retained, payload)
	if !token.WaitTimeout(pahoOpTimeout) {
		return fmt.Errorf("publish %s: %w", topic, errTokenTimeout)
	}
	return token.Error()
}

// SetConnectionLostHandler implements Transport.
func (t *pahoTransport) SetConnectionLostHandler(fn func(err error)) {
	t.onLost = fn
}

var errTokenTimeout = errors.New("gateway: mqtt operation timed out")
