package mqtt

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vehiclelookup/internal/attributes"
)

var testTopics = Topics{Base: "vegvesen_lookup", DiscoveryPrefix: "homeassistant"}

func TestTopics(t *testing.T) {
	assert.Equal(t, "vegvesen_lookup/status", testTopics.Availability())
	assert.Equal(t, "vegvesen_lookup/state", testTopics.State())
	assert.Equal(t, "vegvesen_lookup/raw/attributes", testTopics.RawAttributes())
	assert.Equal(t, "vegvesen_lookup/lookup/set", testTopics.LookupCommand())
	assert.Equal(t, "vegvesen_lookup/refresh/set", testTopics.RefreshCommand())
	assert.Equal(t, "homeassistant/sensor/vegvesen_vehicle_lookup/make/config", testTopics.SensorConfig("make"))
	assert.Equal(t, "homeassistant/button/vegvesen_vehicle_lookup/lookup_now/config", testTopics.ButtonConfig(ButtonKey))
}

func TestConfigTopics_Defaults(t *testing.T) {
	topics := Config{}.Topics()
	assert.Equal(t, DefaultBaseTopic, topics.Base)
	assert.Equal(t, DefaultDiscoveryPrefix, topics.DiscoveryPrefix)

	topics = Config{BaseTopic: "car", DiscoveryPrefix: "ha"}.Topics()
	assert.Equal(t, "car/state", topics.State())
	assert.Equal(t, "ha/sensor/vegvesen_vehicle_lookup/x/config", topics.SensorConfig("x"))
}

func TestBuildClientOptions(t *testing.T) {
	opts := buildClientOptions(Config{
		Broker:   "tcp://localhost:1883",
		ClientID: "vehiclelookup",
		Username: "user",
		Password: "secret",
	})

	require.Len(t, opts.Servers, 1)
	assert.Equal(t, "localhost:1883", opts.Servers[0].Host)
	assert.Equal(t, "vehiclelookup", opts.ClientID)
	assert.Equal(t, "user", opts.Username)
	assert.True(t, opts.WillEnabled)
	assert.Equal(t, "vegvesen_lookup/status", opts.WillTopic)
	assert.Equal(t, []byte(payloadOffline), opts.WillPayload)
	assert.True(t, opts.WillRetained)
	assert.True(t, opts.AutoReconnect)
}

func TestSensorConfig(t *testing.T) {
	def, ok := attributes.Lookup("engine_power_kw")
	require.True(t, ok)

	cfg := SensorConfig(testTopics, def)
	assert.Equal(t, def.Name, cfg.Name)
	assert.Equal(t, "vegvesen_vehicle_lookup_engine_power_kw", cfg.UniqueID)
	assert.Equal(t, "vegvesen_lookup/state", cfg.StateTopic)
	assert.Equal(t, "{{ value_json.engine_power_kw }}", cfg.ValueTemplate)
	assert.Equal(t, "kW", cfg.UnitOfMeasurement)
	assert.Equal(t, def.EnabledDefault, cfg.EnabledByDefault)
	assert.Empty(t, cfg.EntityCategory)
	assert.Equal(t, DeviceName, cfg.Device.Name)
	assert.Equal(t, DeviceManufacturer, cfg.Device.Manufacturer)
	assert.Equal(t, DeviceModel, cfg.Device.Model)
}

func TestSensorConfig_Diagnostics(t *testing.T) {
	diags := attributes.Diagnostics()

	status := SensorConfig(testTopics, diags[0])
	assert.Equal(t, "diagnostic", status.EntityCategory)
	assert.Empty(t, status.DeviceClass)

	updated := SensorConfig(testTopics, diags[1])
	assert.Equal(t, "timestamp", updated.DeviceClass)

	raw := SensorConfig(testTopics, diags[2])
	assert.Equal(t, "vegvesen_lookup/raw/attributes", raw.JSONAttributesTopic)
	assert.False(t, raw.EnabledByDefault)
}

func TestSensorConfig_JSON(t *testing.T) {
	def, ok := attributes.Lookup("make_code")
	require.True(t, ok)

	payload, err := json.Marshal(SensorConfig(testTopics, def))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(payload, &decoded))
	assert.Equal(t, false, decoded["enabled_by_default"])
	assert.NotContains(t, decoded, "unit_of_measurement")
	assert.NotContains(t, decoded, "command_topic")
}

func TestButtonConfig(t *testing.T) {
	cfg := ButtonConfig(testTopics)
	assert.Equal(t, "Lookup Now", cfg.Name)
	assert.Equal(t, "vegvesen_lookup/refresh/set", cfg.CommandTopic)
	assert.Equal(t, payloadPress, cfg.PayloadPress)
	assert.Empty(t, cfg.StateTopic)
}

func TestAnnouncements(t *testing.T) {
	defs := append(attributes.Supported(), attributes.Diagnostics()...)

	announcements, err := Announcements(testTopics, defs)
	require.NoError(t, err)
	assert.Len(t, announcements, 106+3+1)

	last := announcements[len(announcements)-1]
	assert.Equal(t, testTopics.ButtonConfig(ButtonKey), last.Topic)

	seen := make(map[string]bool)
	for _, a := range announcements {
		assert.False(t, seen[a.Topic], "duplicate topic %s", a.Topic)
		seen[a.Topic] = true
		assert.True(t, json.Valid(a.Payload))
	}
}

func TestRawAttributesPayload(t *testing.T) {
	payload, err := RawAttributesPayload("")
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(payload))

	payload, err = RawAttributesPayload(`{"kjoretoyId":{}}`)
	require.NoError(t, err)
	assert.JSONEq(t, `{"raw_response":"{\"kjoretoyId\":{}}"}`, string(payload))
}

func TestStatePayload(t *testing.T) {
	payload, err := StatePayload(map[string]any{
		"make":           "VOLKSWAGEN",
		"curb_weight":    json.Number("1320"),
		"import_country": nil,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"make":"VOLKSWAGEN","curb_weight":1320,"import_country":null}`, string(payload))
}
