package model

// OperationType is the reason a vehicle visits a center.
type OperationType string

const (
	OperationLoading   OperationType = "loading"
	OperationUnloading OperationType = "unloading"
)

// Valid reports whether op is a known operation type.
func (op OperationType) Valid() bool {
	return op == OperationLoading || op == OperationUnloading
}

// Status is the lifecycle state of an arrival record. It only moves
// forward: arrived -> in_processing -> ready_to_exit -> exited.
type Status string

const (
	StatusArrived      Status = "arrived"
	StatusInProcessing Status = "in_processing"
	StatusReadyToExit  Status = "ready_to_exit"
	StatusExited       Status = "exited"
)

// CanTransition reports whether a record may advance from one status to
// another. Regressions and skips are never legal.
func CanTransition(from, to Status) bool {
	switch from {
	case StatusArrived:
		return to == StatusInProcessing
	case StatusInProcessing:
		return to == StatusReadyToExit
	case StatusReadyToExit:
		return to == StatusExited
	default:
		return false
	}
}

// ExitType records how a vehicle left the center.
type ExitType string

const (
	ExitLoaded   ExitType = "loaded"
	ExitUnloaded ExitType = "unloaded"
)

// Valid reports whether et is a known exit type.
func (et ExitType) Valid() bool {
	return et == ExitLoaded || et == ExitUnloaded
}

// GPSPosition is a device location fix. Timestamp is epoch millis.
type GPSPosition struct {
	Latitude  float64  `json:"latitude"`
	Longitude float64  `json:"longitude"`
	Accuracy  *float64 `json:"accuracy,omitempty"`
	Timestamp int64    `json:"timestamp"`
}

// QRData is the decoded content of a scanned vehicle QR code.
type QRData struct {
	VehicleID        string `json:"vehicleId"`
	CenterID         string `json:"centerId,omitempty"`
	VehicleGPSDevice string `json:"vehicleGPSDevice,omitempty"`
}

// VisitFacts are the immutable facts captured when a vehicle arrives.
type VisitFacts struct {
	VehicleID        string
	CenterID         string
	AgentID          string
	OperationType    OperationType
	ScanTimestamp    int64 // epoch millis
	AgentLatitude    float64
	AgentLongitude   float64
	AgentAccuracy    *float64
	VehicleGPSDevice string
}

// ExitFacts are written once when a vehicle leaves the center.
type ExitFacts struct {
	ExitType             ExitType
	ExitDestination      string // required when ExitType is loaded
	ExitTime             int64  // epoch millis
	ExitAgentLatitude    float64
	ExitAgentLongitude   float64
	ExitAgentAccuracy    *float64
	ExitVehicleGPSDevice string
}

// ArrivalRecord is one tracked vehicle visit to a center. One row in the
// arrivals table; all timestamps are epoch millis. Optional numeric fields
// are pointers so that "never written" survives the round trip through
// SQLite as NULL rather than zero.
type ArrivalRecord struct {
	ID               string
	VehicleID        string
	CenterID         string
	AgentID          string
	OperationType    OperationType
	ScanTimestamp    int64
	AgentLatitude    float64
	AgentLongitude   float64
	AgentAccuracy    *float64
	VehicleGPSDevice string

	Status              Status
	ProcessingStartTime *int64
	ProcessingEndTime   *int64

	ExitType             ExitType
	ExitDestination      string
	ExitTime             *int64
	ExitAgentLatitude    *float64
	ExitAgentLongitude   *float64
	ExitAgentAccuracy    *float64
	ExitVehicleGPSDevice string

	Synced    bool
	CreatedAt int64
}

// SyncPayload is the wire format delivered to the remote collector.
// Visit facts keep the nested agentGPS object the collector contract was
// written against; exit GPS fields are flat like the stored columns.
type SyncPayload struct {
	ID               string        `json:"id"`
	VehicleID        string        `json:"vehicleId"`
	CenterID         string        `json:"centerId"`
	AgentID          string        `json:"agentId,omitempty"`
	OperationType    OperationType `json:"operationType"`
	ScanTimestamp    int64         `json:"scanTimestamp"`
	AgentGPS         GPSPosition   `json:"agentGPS"`
	VehicleGPSDevice string        `json:"vehicleGPSDevice,omitempty"`

	Status              Status `json:"status"`
	ProcessingStartTime *int64 `json:"processingStartTime,omitempty"`
	ProcessingEndTime   *int64 `json:"processingEndTime,omitempty"`

	ExitType             ExitType `json:"exitType,omitempty"`
	ExitDestination      string   `json:"exitDestination,omitempty"`
	ExitTime             *int64   `json:"exitTime,omitempty"`
	ExitAgentLatitude    *float64 `json:"exitAgentLatitude,omitempty"`
	ExitAgentLongitude   *float64 `json:"exitAgentLongitude,omitempty"`
	ExitAgentAccuracy    *float64 `json:"exitAgentAccuracy,omitempty"`
	ExitVehicleGPSDevice string   `json:"exitVehicleGPSDevice,omitempty"`

	CreatedAt int64 `json:"createdAt"`
}

// NewSyncPayload builds the wire payload for a stored record.
func NewSyncPayload(rec *ArrivalRecord) *SyncPayload {
	return &SyncPayload{
		ID:            rec.ID,
		VehicleID:     rec.VehicleID,
		CenterID:      rec.CenterID,
		AgentID:       rec.AgentID,
		OperationType: rec.OperationType,
		ScanTimestamp: rec.ScanTimestamp,
		AgentGPS: GPSPosition{
			Latitude:  rec.AgentLatitude,
			Longitude: rec.AgentLongitude,
			Accuracy:  rec.AgentAccuracy,
			Timestamp: rec.ScanTimestamp,
		},
		VehicleGPSDevice:     rec.VehicleGPSDevice,
		Status:               rec.Status,
		ProcessingStartTime:  rec.ProcessingStartTime,
		ProcessingEndTime:    rec.ProcessingEndTime,
		ExitType:             rec.ExitType,
		ExitDestination:      rec.ExitDestination,
		ExitTime:             rec.ExitTime,
		ExitAgentLatitude:    rec.ExitAgentLatitude,
		ExitAgentLongitude:   rec.ExitAgentLongitude,
		ExitAgentAccuracy:    rec.ExitAgentAccuracy,
		ExitVehicleGPSDevice: rec.ExitVehicleGPSDevice,
		CreatedAt:            rec.CreatedAt,
	}
}
