package mqtt

import "strings"

// Topic layout for the StateGate notification bus.
//
// State writes made through the REST API are published to the state topic;
// protocol bridges confirm device-applied values on the ack topic. The
// datapoint id replaces its dots with slashes so MQTT wildcards work per
// hierarchy level.
const (
	// TopicPrefix is the base for all StateGate topics.
	TopicPrefix = "stategate"

	// TopicSystemStatus carries online/offline status of the gateway itself.
	TopicSystemStatus = "stategate/system/status"
)

// Topics provides builders for StateGate MQTT topics.
type Topics struct{}

// State returns the topic for a state write notification.
//
// Example: stategate/state/hm-rpc/0/JEQ0318/1/STATE
func (Topics) State(id string) string {
	return TopicPrefix + "/state/" + strings.ReplaceAll(id, ".", "/")
}

// Ack returns the topic for a bridge acknowledgement of a state write.
//
// Example: stategate/ack/hm-rpc/0/JEQ0318/1/STATE
func (Topics) Ack(id string) string {
	return TopicPrefix + "/ack/" + strings.ReplaceAll(id, ".", "/")
}

// AllAcks returns the wildcard topic matching every acknowledgement.
func (Topics) AllAcks() string {
	return TopicPrefix + "/ack/#"
}

// SystemStatus returns the gateway status topic.
func (Topics) SystemStatus() string {
	return TopicSystemStatus
}

// IDFromTopic recovers the dotted datapoint id from a state or ack topic.
// Returns an empty string if the topic is not in the expected layout.
func IDFromTopic(topic string) string {
	rest, ok := strings.CutPrefix(topic, TopicPrefix+"/state/")
	if !ok {
		rest, ok = strings.CutPrefix(topic, TopicPrefix+"/ack/")
	}
	if !ok || rest == "" {
		return ""
	}
	return strings.ReplaceAll(rest, "/", ".")
}
