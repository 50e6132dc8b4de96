// Package config holds the service configuration (viper: file, environment,
// flags) and the runtime options file that can change while running.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"vehiclelookup/internal/mqtt"
	"vehiclelookup/internal/scheduler"
	"vehiclelookup/internal/vegvesen"
)

// Viper keys.
const (
	KeyAPIKey         = "api.key"
	KeyAPIBaseURL     = "api.base_url"
	KeyAPITimeout     = "api.timeout"
	KeyHAURL          = "ha.url"
	KeyHAToken        = "ha.token"
	KeyHARegnrEntity  = "ha.regnr_entity"
	KeyHALookupButton = "ha.lookup_button_entity"
	KeyMQTTBroker     = "mqtt.broker"
	KeyMQTTClientID   = "mqtt.client_id"
	KeyMQTTUsername   = "mqtt.username"
	KeyMQTTPassword   = "mqtt.password"
	KeyMQTTDiscovery  = "mqtt.discovery_prefix"
	KeyMQTTBaseTopic  = "mqtt.base_topic"
	KeyDBPath         = "db.path"
	KeyHTTPPort       = "http.port"
	KeyOptionsFile    = "options_file"
	KeyStartupDelay   = "startup_delay"
	KeyReadOnly       = "read_only"
	KeyLogLevel       = "log.level"
	KeyLogDevelopment = "log.development"
	KeyConfigFile     = "config"
)

const (
	defaultRegnrEntity    = "input_text.vegvesen_regnr"
	defaultLookupButton   = "input_button.vegvesen_lookup"
	defaultHTTPPort       = 8080
	defaultDBPath         = "./data/vehiclelookup.db"
	defaultOptionsFile    = "./configs/options.yaml"
	defaultMQTTClientID   = "vehiclelookup"
	defaultLogLevel       = "info"
	defaultHAWebSocketURL = "ws://homeassistant.local:8123/api/websocket"
)

// envBindings maps keys to the environment variables that set them.
var envBindings = map[string][]string{
	KeyAPIKey:         {"VEGVESEN_API_KEY"},
	KeyAPIBaseURL:     {"VEGVESEN_BASE_URL"},
	KeyHAURL:          {"HA_URL"},
	KeyHAToken:        {"HA_TOKEN"},
	KeyHARegnrEntity:  {"HA_REGNR_ENTITY"},
	KeyHALookupButton: {"HA_LOOKUP_BUTTON_ENTITY"},
	KeyMQTTBroker:     {"MQTT_BROKER"},
	KeyMQTTUsername:   {"MQTT_USERNAME"},
	KeyMQTTPassword:   {"MQTT_PASSWORD"},
	KeyDBPath:         {"DB_PATH"},
	KeyHTTPPort:       {"HTTP_PORT"},
	KeyOptionsFile:    {"OPTIONS_FILE"},
	KeyReadOnly:       {"READ_ONLY"},
	KeyLogLevel:       {"LOG_LEVEL"},
}

// Config is the resolved service configuration.
type Config struct {
	APIKey     string
	APIBaseURL string
	APITimeout time.Duration

	HAURL              string
	HAToken            string
	RegnrEntity        string
	LookupButtonEntity string

	MQTT mqtt.Config

	DBPath       string
	HTTPPort     int
	OptionsFile  string
	StartupDelay time.Duration
	ReadOnly     bool

	LogLevel       string
	LogDevelopment bool
}

// SetDefaults registers defaults and environment bindings on v.
func SetDefaults(v *viper.Viper) error {
	v.SetDefault(KeyAPIBaseURL, vegvesen.DefaultBaseURL)
	v.SetDefault(KeyAPITimeout, vegvesen.DefaultTimeout)
	v.SetDefault(KeyHAURL, defaultHAWebSocketURL)
	v.SetDefault(KeyHARegnrEntity, defaultRegnrEntity)
	v.SetDefault(KeyHALookupButton, defaultLookupButton)
	v.SetDefault(KeyMQTTClientID, defaultMQTTClientID)
	v.SetDefault(KeyMQTTDiscovery, mqtt.DefaultDiscoveryPrefix)
	v.SetDefault(KeyMQTTBaseTopic, mqtt.DefaultBaseTopic)
	v.SetDefault(KeyDBPath, defaultDBPath)
	v.SetDefault(KeyHTTPPort, defaultHTTPPort)
	v.SetDefault(KeyOptionsFile, defaultOptionsFile)
	v.SetDefault(KeyStartupDelay, scheduler.DefaultStartupDelay)
	v.SetDefault(KeyReadOnly, false)
	v.SetDefault(KeyLogLevel, defaultLogLevel)
	v.SetDefault(KeyLogDevelopment, false)

	v.SetEnvPrefix("VEHICLELOOKUP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, envs := range envBindings {
		args := append([]string{key}, envs...)
		if err := v.BindEnv(args...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}
	return nil
}

// Load reads the optional config file named by the "config" key and
// resolves the configuration.
func Load(v *viper.Viper) (*Config, error) {
	if path := v.GetString(KeyConfigFile); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	cfg := &Config{
		APIKey:             v.GetString(KeyAPIKey),
		APIBaseURL:         v.GetString(KeyAPIBaseURL),
		APITimeout:         v.GetDuration(KeyAPITimeout),
		HAURL:              v.GetString(KeyHAURL),
		HAToken:            v.GetString(KeyHAToken),
		RegnrEntity:        v.GetString(KeyHARegnrEntity),
		LookupButtonEntity: v.GetString(KeyHALookupButton),
		MQTT: mqtt.Config{
			Broker:          v.GetString(KeyMQTTBroker),
			ClientID:        v.GetString(KeyMQTTClientID),
			Username:        v.GetString(KeyMQTTUsername),
			Password:        v.GetString(KeyMQTTPassword),
			DiscoveryPrefix: v.GetString(KeyMQTTDiscovery),
			BaseTopic:       v.GetString(KeyMQTTBaseTopic),
		},
		DBPath:         v.GetString(KeyDBPath),
		HTTPPort:       v.GetInt(KeyHTTPPort),
		OptionsFile:    v.GetString(KeyOptionsFile),
		StartupDelay:   v.GetDuration(KeyStartupDelay),
		ReadOnly:       v.GetBool(KeyReadOnly),
		LogLevel:       v.GetString(KeyLogLevel),
		LogDevelopment: v.GetBool(KeyLogDevelopment),
	}
	return cfg, nil
}

// Validate checks the settings needed by every command that talks to the
// registry.
func (c *Config) Validate() error {
	var errs []error
	if c.APIKey == "" {
		errs = append(errs, fmt.Errorf("%s (VEGVESEN_API_KEY) is required", KeyAPIKey))
	}
	if c.APITimeout <= 0 {
		errs = append(errs, fmt.Errorf("%s must be positive", KeyAPITimeout))
	}
	if c.HTTPPort < 0 || c.HTTPPort > 65535 {
		errs = append(errs, fmt.Errorf("%s out of range: %d", KeyHTTPPort, c.HTTPPort))
	}
	if c.StartupDelay < 0 {
		errs = append(errs, fmt.Errorf("%s must not be negative", KeyStartupDelay))
	}
	return errors.Join(errs...)
}

// HAEnabled reports whether a Home Assistant token is configured.
func (c *Config) HAEnabled() bool {
	return c.HAToken != ""
}

// MQTTEnabled reports whether a broker is configured.
func (c *Config) MQTTEnabled() bool {
	return c.MQTT.Broker != ""
}
