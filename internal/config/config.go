// Package config loads the TOML configuration shared by the dmxbridge
// daemon and the dmxctl tool.
package config

import (
	"fmt"

	"github.com/BurntSushi/toml"

	"dmxport"
)

// Config is the top level configuration.
type Config struct {
	Logger LogConf     // Logger configures the process logger.
	MQTT   MQTTConf    // MQTT configures the broker connection.
	Port   PortConf    // Port selects the DMX output to drive.
	Topics []TopicConf // Topics map broker topics onto channel ranges.
}

// LogConf configures the logger.
type LogConf struct {
	Level string `toml:"log-level"`
}

// MQTTConf configures the MQTT client.
type MQTTConf struct {
	ClientID string `toml:"clientID"`
	Host     string `toml:"server"`
	Port     string `toml:"port"`
	User     string `toml:"user"`
	Password string `toml:"password"`
	Qos      byte   `toml:"qos"`
}

// PortConf selects and addresses the output port.
type PortConf struct {
	Kind     string `toml:"kind"`     // enttec, artnet or offline
	Device   string `toml:"device"`   // enttec: serial device path
	Address  string `toml:"address"`  // artnet: node or broadcast address
	Network  string `toml:"network"`  // artnet: CIDR to derive the broadcast address from
	Universe uint16 `toml:"universe"` // artnet: port address
}

// TopicConf maps one broker topic onto the frame.
type TopicConf struct {
	Name   string `toml:"name"`
	Offset int    `toml:"offset"` // added to every channel number in the payload
}

// NewConfig reads the configuration file at path.
func NewConfig(path string) (*Config, error) {
	cfg := Config{
		Logger: LogConf{Level: "info"},
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return &cfg, err
	}
	return &cfg, nil
}

// Identity resolves the port section into a port identity. When an Art-Net
// section names a network instead of an address, the directed broadcast
// address of the matching local interface is used.
func (p PortConf) Identity() (dmxport.Identity, error) {
	switch dmxport.Kind(p.Kind) {
	case dmxport.KindEnttec:
		if p.Device == "" {
			return dmxport.Identity{}, fmt.Errorf("port: enttec needs a device path")
		}
		return dmxport.Identity{Kind: dmxport.KindEnttec, Device: p.Device}, nil
	case dmxport.KindArtNet:
		addr := p.Address
		if addr == "" {
			if p.Network == "" {
				return dmxport.Identity{}, fmt.Errorf("port: artnet needs an address or a network")
			}
			bcast, err := dmxport.BroadcastAddr(p.Network)
			if err != nil {
				return dmxport.Identity{}, fmt.Errorf("port: %w", err)
			}
			addr = bcast
		}
		return dmxport.Identity{Kind: dmxport.KindArtNet, Address: addr, Universe: p.Universe}, nil
	case dmxport.KindOffline, "":
		return dmxport.Identity{Kind: dmxport.KindOffline}, nil
	}
	return dmxport.Identity{}, fmt.Errorf("port: unknown kind %q", p.Kind)
}
