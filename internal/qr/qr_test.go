package qr

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name          string
		payload       string
		wantVehicle   string
		wantCenter    string
		wantGPSDevice string
		wantErr       bool
	}{
		{
			name:          "pipe format full",
			payload:       "V1|C1|GPS9",
			wantVehicle:   "V1",
			wantCenter:    "C1",
			wantGPSDevice: "GPS9",
		},
		{
			name:        "pipe format vehicle only",
			payload:     "AB-123-CD",
			wantVehicle: "AB-123-CD",
		},
		{
			name:        "pipe format vehicle and center",
			payload:     "AB-123-CD|CENTER-07",
			wantVehicle: "AB-123-CD",
			wantCenter:  "CENTER-07",
		},
		{
			name:    "pipe format empty vehicle segment",
			payload: "|C1",
			wantErr: true,
		},
		{
			name:    "empty payload",
			payload: "",
			wantErr: true,
		},
		{
			name:          "json format full",
			payload:       `{"vehicleId":"V1","centerId":"C1","vehicleGPSDevice":"GPS9"}`,
			wantVehicle:   "V1",
			wantCenter:    "C1",
			wantGPSDevice: "GPS9",
		},
		{
			name:        "json format vehicle only",
			payload:     `{"vehicleId":"V1"}`,
			wantVehicle: "V1",
		},
		{
			name:    "json format missing vehicleId",
			payload: `{"centerId":"C1"}`,
			wantErr: true,
		},
		{
			name:        "json format ignores unknown fields",
			payload:     `{"vehicleId":"V1","note":"refrigerated"}`,
			wantVehicle: "V1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.payload)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPayload) {
					t.Fatalf("Parse(%q) error = %v, want ErrInvalidPayload", tt.payload, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) error = %v", tt.payload, err)
			}

			if got.VehicleID != tt.wantVehicle {
				t.Errorf("VehicleID = %q, want %q", got.VehicleID, tt.wantVehicle)
			}
			if got.CenterID != tt.wantCenter {
				t.Errorf("CenterID = %q, want %q", got.CenterID, tt.wantCenter)
			}
			if got.VehicleGPSDevice != tt.wantGPSDevice {
				t.Errorf("VehicleGPSDevice = %q, want %q", got.VehicleGPSDevice, tt.wantGPSDevice)
			}
		})
	}
}
