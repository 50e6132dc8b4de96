package mqtt

import "fmt"

// Default topic roots.
const (
	DefaultDiscoveryPrefix = "homeassistant"
	DefaultBaseTopic       = "vegvesen_lookup"

	// NodeID groups every entity of this service under one discovery node.
	NodeID = "vegvesen_vehicle_lookup"
)

// Topics builds the topics used by this service.
//
//	topics := mqtt.Topics{Base: "vegvesen_lookup", DiscoveryPrefix: "homeassistant"}
//	topics.State()              // vegvesen_lookup/state
//	topics.SensorConfig("make") // homeassistant/sensor/vegvesen_vehicle_lookup/make/config
type Topics struct {
	Base            string
	DiscoveryPrefix string
}

// Availability carries "online"/"offline"; the broker publishes
// "offline" as the last will.
func (t Topics) Availability() string {
	return t.Base + "/status"
}

// State carries one JSON document with every attribute value.
func (t Topics) State() string {
	return t.Base + "/state"
}

// RawAttributes carries the raw response sensor's attributes.
func (t Topics) RawAttributes() string {
	return t.Base + "/raw/attributes"
}

// LookupCommand receives lookup requests. The payload is an optional
// registration number.
func (t Topics) LookupCommand() string {
	return t.Base + "/lookup/set"
}

// RefreshCommand receives "Lookup Now" button presses.
func (t Topics) RefreshCommand() string {
	return t.Base + "/refresh/set"
}

// SensorConfig returns the discovery topic for the sensor with key.
func (t Topics) SensorConfig(key string) string {
	return fmt.Sprintf("%s/sensor/%s/%s/config", t.DiscoveryPrefix, NodeID, key)
}

// ButtonConfig returns the discovery topic for the button with key.
func (t Topics) ButtonConfig(key string) string {
	return fmt.Sprintf("%s/button/%s/%s/config", t.DiscoveryPrefix, NodeID, key)
}
