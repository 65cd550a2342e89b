package target

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Device types accepted in a target descriptor.
const (
	TypeVirtual = "virtual"
	TypeHue     = "hue"
	TypeMQTT    = "mqtt"
)

// Descriptor is a parsed device descriptor. Exactly one of the typed
// fields is set, matching Type.
type Descriptor struct {
	Type string
	Hue  *HueDescriptor
	MQTT *MQTTDescriptor
}

type virtualDescriptor struct {
	Type string `json:"type"`
}

// ParseDescriptor decodes a JSON device descriptor such as
// {"type":"hue","bridge":"192.168.1.2","username":"...","light_id":3}.
// Unknown fields are rejected. An empty descriptor selects the virtual light.
func ParseDescriptor(raw string) (Descriptor, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Descriptor{Type: TypeVirtual}, nil
	}

	var head struct {
		Type string `json:"type"`
	}
	if err := json.Unmarshal([]byte(raw), &head); err != nil {
		return Descriptor{}, fmt.Errorf("invalid target descriptor: %w", err)
	}

	d := Descriptor{Type: strings.ToLower(head.Type)}
	switch d.Type {
	case TypeVirtual:
		var v virtualDescriptor
		if err := decodeStrict(raw, &v); err != nil {
			return Descriptor{}, err
		}
	case TypeHue:
		var h HueDescriptor
		if err := decodeStrict(raw, &h); err != nil {
			return Descriptor{}, err
		}
		if err := h.validate(); err != nil {
			return Descriptor{}, err
		}
		d.Hue = &h
	case TypeMQTT:
		var m MQTTDescriptor
		if err := decodeStrict(raw, &m); err != nil {
			return Descriptor{}, err
		}
		if err := m.validate(); err != nil {
			return Descriptor{}, err
		}
		d.MQTT = &m
	case "":
		return Descriptor{}, fmt.Errorf("target descriptor is missing \"type\"")
	default:
		return Descriptor{}, fmt.Errorf("unsupported target type %q (expected %s, %s or %s)",
			head.Type, TypeVirtual, TypeHue, TypeMQTT)
	}
	return d, nil
}

func decodeStrict(raw string, v any) error {
	dec := json.NewDecoder(bytes.NewReader([]byte(raw)))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid target descriptor: %w", err)
	}
	return nil
}

// NewTransport builds the transport a descriptor names.
func NewTransport(d Descriptor) (Transport, error) {
	switch d.Type {
	case TypeVirtual, "":
		return NewVirtual(), nil
	case TypeHue:
		if d.Hue == nil {
			return nil, fmt.Errorf("hue descriptor missing")
		}
		return NewHue(*d.Hue), nil
	case TypeMQTT:
		if d.MQTT == nil {
			return nil, fmt.Errorf("mqtt descriptor missing")
		}
		return NewMQTT(*d.MQTT), nil
	default:
		return nil, fmt.Errorf("unsupported target type %q", d.Type)
	}
}
