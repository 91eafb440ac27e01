package clientmqtt

// MQTTConf configures the broker connection.
type MQTTConf struct {
	ClientID string // ClientID is the unique client name at the broker.
	Schema   string // Schema is the connection type, usually tcp.
	Host     string // Host is the broker address.
	Port     string // Port is the broker port.
	User     string // User is the broker login.
	Password string // Password is the broker password.
	Qos      byte   // Qos is the subscription quality of service.
}

// Command sets one DMX channel. Channel numbers are zero based and relative
// to the topic's configured offset.
type Command struct {
	Channel uint16 `json:"channel"` // 0..511 before the offset is applied
	Value   uint8  `json:"value"`   // 0..255
}

// Payload is the JSON body of a topic message.
type Payload []Command

// Update carries one parsed message toward the bridge: the topic's channel
// offset plus the commands from the payload.
type Update struct {
	Offset   int
	Commands Payload
}
