package mqtt

import (
	"time"

	pahomqtt "github.com/eclipse/paho.mqtt.golang"
)

const (
	defaultConnectTimeout    = 10 * time.Second
	defaultPublishTimeout    = 5 * time.Second
	defaultDisconnectQuiesce = 1000 // milliseconds
	defaultKeepAlive         = 60 * time.Second
	reconnectInitialDelay    = time.Second
	reconnectMaxDelay        = 30 * time.Second

	// Discovery and state messages use QoS 1 so Home Assistant sees them
	// after a broker restart.
	defaultQoS = 1

	payloadOnline  = "online"
	payloadOffline = "offline"
)

// Config describes the broker connection.
type Config struct {
	Broker          string // e.g. tcp://localhost:1883
	ClientID        string
	Username        string
	Password        string
	DiscoveryPrefix string
	BaseTopic       string
}

// Topics returns the topic builder for this configuration.
func (c Config) Topics() Topics {
	t := Topics{Base: c.BaseTopic, DiscoveryPrefix: c.DiscoveryPrefix}
	if t.Base == "" {
		t.Base = DefaultBaseTopic
	}
	if t.DiscoveryPrefix == "" {
		t.DiscoveryPrefix = DefaultDiscoveryPrefix
	}
	return t
}

// buildClientOptions creates paho options: auto-reconnect, clean session,
// optional credentials and a retained "offline" last will.
func buildClientOptions(cfg Config) *pahomqtt.ClientOptions {
	opts := pahomqtt.NewClientOptions()
	opts.AddBroker(cfg.Broker)
	opts.SetClientID(cfg.ClientID)

	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
		opts.SetPassword(cfg.Password)
	}

	opts.SetCleanSession(true)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectRetryInterval(reconnectInitialDelay)
	opts.SetMaxReconnectInterval(reconnectMaxDelay)
	opts.SetConnectTimeout(defaultConnectTimeout)
	opts.SetKeepAlive(defaultKeepAlive)

	opts.SetWill(cfg.Topics().Availability(), payloadOffline, defaultQoS, true)

	return opts
}
