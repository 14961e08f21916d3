package audioio

import (
	"strings"

	"github.com/pkg/errors"
)

const (
	inputPrefix  = "in:"
	outputPrefix = "out:"
)

// DeviceDescriptor is a snapshot of one endpoint in one direction.
type DeviceDescriptor struct {
	// ID is direction-prefixed ("in:" or "out:") and stable across calls.
	ID              string    `json:"id"`
	DisplayName     string    `json:"display_name"`
	Direction       Direction `json:"direction"`
	IsSystemDefault bool      `json:"is_system_default"`
}

// DeviceID builds the descriptor id for a host endpoint id.
func DeviceID(dir Direction, hostID string) string {
	if dir == Output {
		return outputPrefix + hostID
	}
	return inputPrefix + hostID
}

// ParseDeviceID splits a descriptor id into its direction and host endpoint id.
func ParseDeviceID(id string) (Direction, string, error) {
	switch {
	case strings.HasPrefix(id, inputPrefix):
		return Input, strings.TrimPrefix(id, inputPrefix), nil
	case strings.HasPrefix(id, outputPrefix):
		return Output, strings.TrimPrefix(id, outputPrefix), nil
	default:
		return Input, "", errors.Errorf("device id %q has no direction prefix", id)
	}
}

// ListDevices enumerates input then output endpoints. If the host cannot list
// either direction the result is empty; a partial list is never returned.
func (e *Engine) ListDevices() []DeviceDescriptor {
	var result []DeviceDescriptor
	for _, dir := range []Direction{Input, Output} {
		endpoints, err := e.hostFor(dir).Endpoints(dir)
		if err != nil {
			e.log.Debug().Err(err).Stringer("direction", dir).Msg("device enumeration failed")
			return []DeviceDescriptor{}
		}
		for _, ep := range endpoints {
			result = append(result, DeviceDescriptor{
				ID:              DeviceID(dir, ep.ID),
				DisplayName:     ep.Name,
				Direction:       dir,
				IsSystemDefault: ep.IsDefault,
			})
		}
	}
	if result == nil {
		result = []DeviceDescriptor{}
	}
	return result
}
