package mqtt

import (
	"encoding/json"
	"fmt"

	"vehiclelookup/internal/attributes"
)

// Device metadata shown in Home Assistant.
const (
	DeviceName         = "Vegvesen Vehicle Lookup"
	DeviceManufacturer = "Statens vegvesen"
	DeviceModel        = "Kjøretøydata API"

	// ButtonKey is the "Lookup Now" button.
	ButtonKey    = "lookup_now"
	payloadPress = "PRESS"
)

// Device is the discovery device block shared by every entity.
type Device struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
}

// EntityConfig is a Home Assistant MQTT discovery payload.
type EntityConfig struct {
	Name                string `json:"name"`
	UniqueID            string `json:"unique_id"`
	ObjectID            string `json:"object_id"`
	StateTopic          string `json:"state_topic,omitempty"`
	ValueTemplate       string `json:"value_template,omitempty"`
	JSONAttributesTopic string `json:"json_attributes_topic,omitempty"`
	CommandTopic        string `json:"command_topic,omitempty"`
	PayloadPress        string `json:"payload_press,omitempty"`
	AvailabilityTopic   string `json:"availability_topic"`
	Icon                string `json:"icon,omitempty"`
	UnitOfMeasurement   string `json:"unit_of_measurement,omitempty"`
	DeviceClass         string `json:"device_class,omitempty"`
	EntityCategory      string `json:"entity_category,omitempty"`
	EnabledByDefault    bool   `json:"enabled_by_default"`
	Device              Device `json:"device"`
}

// Announcement is one retained message. An empty Payload removes the
// entity from Home Assistant.
type Announcement struct {
	Topic   string
	Payload []byte
}

func device() Device {
	return Device{
		Identifiers:  []string{NodeID},
		Name:         DeviceName,
		Manufacturer: DeviceManufacturer,
		Model:        DeviceModel,
	}
}

func uniqueID(key string) string {
	return NodeID + "_" + key
}

// SensorConfig builds the discovery payload for def. Values are read from
// the shared state document with a per-key template; a JSON null renders
// as "None", which Home Assistant shows as unknown.
func SensorConfig(t Topics, def attributes.Definition) EntityConfig {
	cfg := EntityConfig{
		Name:              def.Name,
		UniqueID:          uniqueID(def.Key),
		ObjectID:          uniqueID(def.Key),
		StateTopic:        t.State(),
		ValueTemplate:     fmt.Sprintf("{{ value_json.%s }}", def.Key),
		AvailabilityTopic: t.Availability(),
		Icon:              def.Icon,
		UnitOfMeasurement: def.Unit,
		EnabledByDefault:  def.EnabledDefault,
		Device:            device(),
	}

	if def.Category == attributes.CategoryDiagnostic {
		cfg.EntityCategory = "diagnostic"
	}
	switch def.Key {
	case attributes.KeyLastUpdated:
		cfg.DeviceClass = "timestamp"
	case attributes.KeyRawResponse:
		cfg.JSONAttributesTopic = t.RawAttributes()
	}
	return cfg
}

// ButtonConfig builds the discovery payload for the "Lookup Now" button.
func ButtonConfig(t Topics) EntityConfig {
	return EntityConfig{
		Name:              "Lookup Now",
		UniqueID:          uniqueID(ButtonKey),
		ObjectID:          uniqueID(ButtonKey),
		CommandTopic:      t.RefreshCommand(),
		PayloadPress:      payloadPress,
		AvailabilityTopic: t.Availability(),
		Icon:              "mdi:magnify",
		EnabledByDefault:  true,
		Device:            device(),
	}
}

// Announcements returns the discovery messages for defs and the button.
func Announcements(t Topics, defs []attributes.Definition) ([]Announcement, error) {
	out := make([]Announcement, 0, len(defs)+1)
	for _, def := range defs {
		payload, err := json.Marshal(SensorConfig(t, def))
		if err != nil {
			return nil, fmt.Errorf("failed to encode discovery for %s: %w", def.Key, err)
		}
		out = append(out, Announcement{Topic: t.SensorConfig(def.Key), Payload: payload})
	}

	payload, err := json.Marshal(ButtonConfig(t))
	if err != nil {
		return nil, fmt.Errorf("failed to encode discovery for %s: %w", ButtonKey, err)
	}
	out = append(out, Announcement{Topic: t.ButtonConfig(ButtonKey), Payload: payload})
	return out, nil
}

// StatePayload encodes the attribute values as one JSON document.
func StatePayload(values map[string]any) ([]byte, error) {
	payload, err := json.Marshal(values)
	if err != nil {
		return nil, fmt.Errorf("failed to encode state: %w", err)
	}
	return payload, nil
}

// RawAttributesPayload encodes the raw response sensor's attributes. The
// attribute is omitted when there is no raw response.
func RawAttributesPayload(rawJSON string) ([]byte, error) {
	attrs := map[string]string{}
	if rawJSON != "" {
		attrs[attributes.KeyRawResponse] = rawJSON
	}
	payload, err := json.Marshal(attrs)
	if err != nil {
		return nil, fmt.Errorf("failed to encode raw attributes: %w", err)
	}
	return payload, nil
}
