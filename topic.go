package mqttgo

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// MQTT topic limits (section 4.7).
const (
	// maxTopicLength is the maximum length of a topic or topic filter: the
	// wire encoding uses a 16-bit length prefix.
	maxTopicLength = 65535

	// maxClientIDLength is the length MQTT-3.1.3-5 guarantees a server will
	// accept; this client does not enforce it, only documents it.
	maxClientIDLength = 23
)

// validatePublishTopic checks a topic name used in Publish. Publish topics
// must not contain wildcards (section 4.7.1).
func validatePublishTopic(topic string) error {
	if topic == "" {
		return fmt.Errorf("mqttgo: publish topic must not be empty")
	}
	if len(topic) > maxTopicLength {
		return fmt.Errorf("mqttgo: publish topic length %d exceeds maximum %d", len(topic), maxTopicLength)
	}
	if strings.ContainsAny(topic, "+#") {
		return fmt.Errorf("mqttgo: publish topic %q must not contain wildcards", topic)
	}
	if strings.IndexByte(topic, 0) >= 0 {
		return fmt.Errorf("mqttgo: publish topic must not contain a null byte")
	}
	if !utf8.ValidString(topic) {
		return fmt.Errorf("mqttgo: publish topic is not valid UTF-8")
	}
	return nil
}

// validateSubscribeFilter checks a topic filter used in Subscribe. Filters
// may contain wildcards, but '+' and '#' must each occupy a whole level and
// '#' must be the last level (section 4.7.1).
func validateSubscribeFilter(filter string) error {
	if filter == "" {
		return fmt.Errorf("mqttgo: subscribe filter must not be empty")
	}
	if len(filter) > maxTopicLength {
		return fmt.Errorf("mqttgo: subscribe filter length %d exceeds maximum %d", len(filter), maxTopicLength)
	}
	if strings.IndexByte(filter, 0) >= 0 {
		return fmt.Errorf("mqttgo: subscribe filter must not contain a null byte")
	}
	if !utf8.ValidString(filter) {
		return fmt.Errorf("mqttgo: subscribe filter is not valid UTF-8")
	}

	levels := strings.Split(filter, "/")
	for i, level := range levels {
		if strings.Contains(level, "+") && level != "+" {
			return fmt.Errorf("mqttgo: '+' must occupy an entire topic level in %q", filter)
		}
		if strings.Contains(level, "#") {
			if level != "#" {
				return fmt.Errorf("mqttgo: '#' must occupy an entire topic level in %q", filter)
			}
			if i != len(levels)-1 {
				return fmt.Errorf("mqttgo: '#' must be the last level in %q", filter)
			}
		}
	}
	return nil
}
