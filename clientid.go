package mqttgo

import "github.com/google/uuid"

// defaultClientID generates a client identifier when ConnectOptions.ClientID
// is empty. MQTT-3.1.3-5 only guarantees server acceptance of client ids up
// to 23 characters; a full UUID exceeds that, so this is trimmed to the
// guaranteed length.
func defaultClientID() string {
	id := uuid.New().String()
	if len(id) > maxClientIDLength {
		return id[:maxClientIDLength]
	}
	return id
}
