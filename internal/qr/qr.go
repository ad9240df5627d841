// Package qr decodes the payloads printed on vehicle QR codes.
//
// Two formats are accepted: a JSON object with at least a vehicleId field,
// or the pipe-delimited form "vehicleId|centerId|gpsDevice" with trailing
// segments optional.
package qr

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"pav-go/internal/model"
)

// ErrInvalidPayload is returned when a scanned payload matches neither
// format or names no vehicle.
var ErrInvalidPayload = errors.New("invalid QR code payload")

// Parse decodes a scanned QR payload. JSON is tried first; anything that
// is not a JSON object falls back to the pipe format.
func Parse(data string) (*model.QRData, error) {
	var parsed model.QRData
	if err := json.Unmarshal([]byte(data), &parsed); err == nil {
		if parsed.VehicleID == "" {
			return nil, fmt.Errorf("%w: missing vehicleId", ErrInvalidPayload)
		}
		return &parsed, nil
	}

	parts := strings.Split(data, "|")
	if parts[0] == "" {
		return nil, fmt.Errorf("%w: empty vehicleId segment", ErrInvalidPayload)
	}

	out := &model.QRData{VehicleID: parts[0]}
	if len(parts) > 1 {
		out.CenterID = parts[1]
	}
	if len(parts) > 2 {
		out.VehicleGPSDevice = parts[2]
	}
	return out, nil
}
