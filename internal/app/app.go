package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"pav-go/internal/config"
	"pav-go/internal/encryption"
	"pav-go/internal/model"
	"pav-go/internal/netcheck"
	"pav-go/internal/pav"
	"pav-go/internal/qr"
	"pav-go/internal/sink"
	"pav-go/internal/store"
)

// PAVApp is the application layer between the CLI and the service. It
// constructs all dependencies from config, exposes high-level operations
// that accept raw CLI inputs, and manages resource lifecycles on Close.
type PAVApp struct {
	cfg        *config.Config
	store      pav.RecordStore
	sink       pav.RemoteSink
	net        pav.Reachability
	encryptor  pav.Encryptor
	service    *pav.Service
	reconciler *pav.Reconciler
	clock      pav.Clock
	logFile    *os.File
}

// NewPAVApp creates a fully wired PAVApp from the given config.
// The caller must call Close when done.
func NewPAVApp(cfg *config.Config) (*PAVApp, error) {
	opID := time.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, opID)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	st, err := store.NewStoreFromConfig(cfg.Database, cfg.DeviceID, logger)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating record store: %w", err)
	}

	snk, err := sink.NewSinkFromConfig(context.Background(), cfg.Sink)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating sink: %w", err)
	}

	var net pav.Reachability
	if cfg.Sink.Type == "memory" {
		net = netcheck.Static(true)
	} else {
		net = netcheck.NewDialChecker(cfg.Network, cfg.Sink)
	}

	enc, err := encryption.NewEncryptorFromConfig(cfg.Encryption)
	if err != nil {
		st.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating encryptor: %w", err)
	}

	clock := pav.RealClock{}
	svc := pav.NewService(st, logger, clock, pav.TimeRandomIDGenerator{Clock: clock})

	return &PAVApp{
		cfg:        cfg,
		store:      st,
		sink:       snk,
		net:        net,
		encryptor:  enc,
		service:    svc,
		reconciler: pav.NewReconciler(st, snk, net, logger),
		clock:      clock,
		logFile:    logFile,
	}, nil
}

// ArrivalInput carries the raw CLI inputs for recording an arrival.
type ArrivalInput struct {
	QRPayload     string
	OperationType string
	Latitude      float64
	Longitude     float64
	Accuracy      *float64
	GPSDevice     string // overrides the device from the QR payload
}

// RecordArrival parses the scanned payload and persists a new arrival.
// The center and agent fall back to the configured defaults when the
// payload does not carry them.
func (a *PAVApp) RecordArrival(in ArrivalInput) (*model.ArrivalRecord, error) {
	data, err := qr.Parse(in.QRPayload)
	if err != nil {
		return nil, err
	}

	centerID := data.CenterID
	if centerID == "" {
		centerID = a.cfg.CenterID
	}
	gpsDevice := data.VehicleGPSDevice
	if in.GPSDevice != "" {
		gpsDevice = in.GPSDevice
	}

	return a.service.RecordArrival(model.VisitFacts{
		VehicleID:        data.VehicleID,
		CenterID:         centerID,
		AgentID:          a.cfg.AgentID,
		OperationType:    model.OperationType(in.OperationType),
		ScanTimestamp:    a.clock.Now().UnixMilli(),
		AgentLatitude:    in.Latitude,
		AgentLongitude:   in.Longitude,
		AgentAccuracy:    in.Accuracy,
		VehicleGPSDevice: gpsDevice,
	})
}

// MarkReadyToExit advances a visit to ready_to_exit. A zero endTime means now.
func (a *PAVApp) MarkReadyToExit(id string, endTime int64) error {
	return a.service.MarkReadyToExit(id, endTime)
}

// ExitInput carries the raw CLI inputs for recording an exit.
type ExitInput struct {
	ExitType    string
	Destination string
	Latitude    float64
	Longitude   float64
	Accuracy    *float64
	GPSDevice   string
}

// RecordExit writes the exit facts for a visit.
func (a *PAVApp) RecordExit(id string, in ExitInput) error {
	return a.service.RecordExit(id, model.ExitFacts{
		ExitType:             model.ExitType(in.ExitType),
		ExitDestination:      in.Destination,
		ExitTime:             a.clock.Now().UnixMilli(),
		ExitAgentLatitude:    in.Latitude,
		ExitAgentLongitude:   in.Longitude,
		ExitAgentAccuracy:    in.Accuracy,
		ExitVehicleGPSDevice: in.GPSDevice,
	})
}

// FindReadyToExit returns the open ready_to_exit visit for a vehicle, or nil.
func (a *PAVApp) FindReadyToExit(vehicleID string) (*model.ArrivalRecord, error) {
	return a.service.FindReadyToExit(vehicleID)
}

// ListArrivals returns all visits, newest first.
func (a *PAVApp) ListArrivals() ([]*model.ArrivalRecord, error) {
	return a.service.ListArrivals()
}

// ListUnsynced returns visits awaiting delivery, oldest first.
func (a *PAVApp) ListUnsynced() ([]*model.ArrivalRecord, error) {
	return a.service.ListUnsynced()
}

// GetArrival returns one visit by id.
func (a *PAVApp) GetArrival(id string) (*model.ArrivalRecord, error) {
	return a.service.GetArrival(id)
}

// Online reports whether the collector is currently reachable.
func (a *PAVApp) Online() bool {
	return a.net.Online(context.Background())
}

// Sync runs one reconciliation pass and returns the number of records synced.
func (a *PAVApp) Sync() int {
	return a.reconciler.Reconcile(context.Background())
}

// Theme returns the persisted UI theme preference, or "" when unset.
func (a *PAVApp) Theme() (string, error) {
	return a.service.ThemePreference()
}

// SetTheme stores the UI theme preference.
func (a *PAVApp) SetTheme(value string) error {
	return a.service.SetThemePreference(value)
}

// SetupKeys generates the backup encryption key pair.
func (a *PAVApp) SetupKeys(passphrase string) error {
	return a.encryptor.Setup(passphrase)
}

// Backup snapshots the database and writes an age-encrypted copy under
// the configured backup directory. Returns the backup file path.
func (a *PAVApp) Backup() (string, error) {
	if !a.encryptor.IsConfigured() {
		return "", fmt.Errorf("backup keys not configured: run 'pav keys init' first")
	}

	if err := os.MkdirAll(a.cfg.Backup.Dir, 0700); err != nil {
		return "", fmt.Errorf("creating backup directory: %w", err)
	}

	stamp := a.clock.Now().UTC().Format("20060102T150405Z")
	plainPath := filepath.Join(a.cfg.Backup.Dir, fmt.Sprintf("pav-%s-%s.db", a.cfg.DeviceID, stamp))
	if err := a.store.BackupTo(plainPath); err != nil {
		return "", err
	}
	defer os.Remove(plainPath)

	plain, err := os.Open(plainPath)
	if err != nil {
		return "", fmt.Errorf("opening database snapshot: %w", err)
	}
	defer plain.Close()

	outPath := plainPath + ".age"
	out, err := os.OpenFile(outPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return "", fmt.Errorf("creating backup file: %w", err)
	}
	defer out.Close()

	if err := a.encryptor.Encrypt(plain, out); err != nil {
		os.Remove(outPath)
		return "", fmt.Errorf("encrypting backup: %w", err)
	}

	return outPath, nil
}

// Close releases all resources.
func (a *PAVApp) Close() error {
	var firstErr error

	if err := a.store.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if c, ok := a.sink.(io.Closer); ok {
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
