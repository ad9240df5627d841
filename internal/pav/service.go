package pav

import (
	"fmt"

	"pav-go/internal/model"
)

// themeKey is the settings-table key for the UI theme preference.
const themeKey = "theme"

// Service is the orchestration layer that coordinates the record store
// with the per-visit flows the CLI exposes: arrival, ready-to-exit, exit,
// and listing.
type Service struct {
	store  RecordStore
	logger Logger
	clock  Clock
	idgen  IDGenerator
}

// NewService creates a Service with the provided dependencies.
func NewService(store RecordStore, logger Logger, clock Clock, idgen IDGenerator) *Service {
	return &Service{
		store:  store,
		logger: logger,
		clock:  clock,
		idgen:  idgen,
	}
}

// RecordArrival validates the visit facts and persists a new arrival
// record. Creation jumps straight to in_processing with
// processingStartTime = scanTimestamp. A vehicle with an open visit in
// ready_to_exit cannot arrive again; the agent is expected to record the
// exit first.
func (s *Service) RecordArrival(facts model.VisitFacts) (*model.ArrivalRecord, error) {
	if facts.VehicleID == "" {
		return nil, &ValidationError{Field: "vehicleId", Reason: "must not be empty"}
	}
	if !facts.OperationType.Valid() {
		return nil, &ValidationError{Field: "operationType", Reason: fmt.Sprintf("%q is not loading or unloading", facts.OperationType)}
	}
	if facts.ScanTimestamp == 0 {
		facts.ScanTimestamp = s.clock.Now().UnixMilli()
	}

	open, err := s.store.FindReadyToExit(facts.VehicleID)
	if err != nil {
		return nil, fmt.Errorf("checking for open visit: %w", err)
	}
	if open != nil {
		return nil, &AwaitingExitError{Record: open}
	}

	start := facts.ScanTimestamp
	rec := &model.ArrivalRecord{
		ID:                  s.idgen.New(),
		VehicleID:           facts.VehicleID,
		CenterID:            facts.CenterID,
		AgentID:             facts.AgentID,
		OperationType:       facts.OperationType,
		ScanTimestamp:       facts.ScanTimestamp,
		AgentLatitude:       facts.AgentLatitude,
		AgentLongitude:      facts.AgentLongitude,
		AgentAccuracy:       facts.AgentAccuracy,
		VehicleGPSDevice:    facts.VehicleGPSDevice,
		Status:              model.StatusInProcessing,
		ProcessingStartTime: &start,
		Synced:              false,
		CreatedAt:           s.clock.Now().UnixMilli(),
	}

	if err := s.store.CreateArrival(rec); err != nil {
		return nil, fmt.Errorf("saving arrival: %w", err)
	}

	s.logger.Info("arrival recorded", "id", rec.ID, "vehicle", rec.VehicleID, "operation", rec.OperationType)
	return rec, nil
}

// MarkReadyToExit advances a visit from in_processing to ready_to_exit,
// recording when processing finished. A zero processingEndTime means now.
func (s *Service) MarkReadyToExit(id string, processingEndTime int64) error {
	if processingEndTime == 0 {
		processingEndTime = s.clock.Now().UnixMilli()
	}
	if err := s.store.UpdateStatus(id, model.StatusReadyToExit, &processingEndTime); err != nil {
		return err
	}
	s.logger.Info("visit ready to exit", "id", id)
	return nil
}

// RecordExit validates and writes the exit facts for a visit. The
// destination is mandatory for loaded exits. A zero ExitTime means now.
func (s *Service) RecordExit(id string, exit model.ExitFacts) error {
	if !exit.ExitType.Valid() {
		return &ValidationError{Field: "exitType", Reason: fmt.Sprintf("%q is not loaded or unloaded", exit.ExitType)}
	}
	if exit.ExitType == model.ExitLoaded && exit.ExitDestination == "" {
		return &ValidationError{Field: "exitDestination", Reason: "required for loaded exits"}
	}
	if exit.ExitTime == 0 {
		exit.ExitTime = s.clock.Now().UnixMilli()
	}

	if err := s.store.RecordExit(id, exit); err != nil {
		return err
	}

	s.logger.Info("exit recorded", "id", id, "exitType", exit.ExitType)
	return nil
}

// FindReadyToExit returns the open ready_to_exit visit for a vehicle, or
// nil when there is none. The scan flow uses this to route a re-scanned
// vehicle to the exit flow instead of creating a second visit.
func (s *Service) FindReadyToExit(vehicleID string) (*model.ArrivalRecord, error) {
	return s.store.FindReadyToExit(vehicleID)
}

// ListArrivals returns all visits, newest first.
func (s *Service) ListArrivals() ([]*model.ArrivalRecord, error) {
	return s.store.GetAll()
}

// ListUnsynced returns visits awaiting delivery, oldest first.
func (s *Service) ListUnsynced() ([]*model.ArrivalRecord, error) {
	return s.store.GetUnsynced()
}

// GetArrival returns one visit by id, or ErrNotFound.
func (s *Service) GetArrival(id string) (*model.ArrivalRecord, error) {
	return s.store.GetByID(id)
}

// ThemePreference returns the persisted UI theme, or "" when unset.
func (s *Service) ThemePreference() (string, error) {
	return s.store.GetSetting(themeKey)
}

// SetThemePreference stores the UI theme preference.
func (s *Service) SetThemePreference(value string) error {
	switch value {
	case "light", "dark", "system":
	default:
		return &ValidationError{Field: "theme", Reason: fmt.Sprintf("%q is not light, dark or system", value)}
	}
	return s.store.SetSetting(themeKey, value)
}
