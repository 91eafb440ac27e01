package dmxport

import (
	"encoding/json"
	"fmt"
)

// Identity is the stable, serializable address of a port. It carries no live
// resources: an identity parsed back from its persisted form always yields a
// closed port that must be reopened explicitly.
//
// Identities are plain comparable values; two ports address the same output
// exactly when their identities are equal.
type Identity struct {
	Kind Kind `json:"kind"`

	// Device is the serial device path. Enttec only.
	Device string `json:"device,omitempty"`

	// Address is the unicast or broadcast IPv4 address of the node.
	// Art-Net only.
	Address string `json:"address,omitempty"`

	// Universe is the 15-bit port address (net/sub-net/universe).
	// Art-Net only.
	Universe uint16 `json:"universe,omitempty"`

	// ShortName and LongName are the node names reported during
	// discovery. Informational; they take part in equality because a
	// round-tripped identity must compare equal to the original.
	ShortName string `json:"short_name,omitempty"`
	LongName  string `json:"long_name,omitempty"`
}

// Marshal renders the identity as its persisted JSON form.
func (id Identity) Marshal() ([]byte, error) {
	if err := id.validate(); err != nil {
		return nil, err
	}
	return json.Marshal(id)
}

// ParseIdentity restores an identity from its persisted form.
func ParseIdentity(data []byte) (Identity, error) {
	var id Identity
	if err := json.Unmarshal(data, &id); err != nil {
		return Identity{}, fmt.Errorf("parsing port identity: %w", err)
	}
	if err := id.validate(); err != nil {
		return Identity{}, err
	}
	return id, nil
}

func (id Identity) validate() error {
	switch id.Kind {
	case KindEnttec:
		if id.Device == "" {
			return fmt.Errorf("enttec identity has no device path")
		}
	case KindArtNet:
		if id.Address == "" {
			return fmt.Errorf("artnet identity has no address")
		}
	case KindOffline:
	default:
		return fmt.Errorf("unknown port kind %q", id.Kind)
	}
	return nil
}

// String renders the identity for humans, matching each backend's String.
func (id Identity) String() string {
	switch id.Kind {
	case KindEnttec:
		return fmt.Sprintf("enttec %s", id.Device)
	case KindArtNet:
		if id.ShortName != "" {
			return fmt.Sprintf("artnet %s universe %d (%s)", id.Address, id.Universe, id.ShortName)
		}
		return fmt.Sprintf("artnet %s universe %d", id.Address, id.Universe)
	case KindOffline:
		return "offline"
	}
	return string(id.Kind)
}
