package lifecycle

import (
	"context"
	"errors"
	"log"
	"strings"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/model"
	"laundry-jobs-backend/internal/parse"
	"laundry-jobs-backend/internal/store"
)

// MachineInput describes a machine to register.
type MachineInput struct {
	ID         string  `json:"id"`
	Name       string  `json:"name"`
	Type       string  `json:"type"`
	CapacityKg float64 `json:"capacityKg"`
}

// RegisterMachine adds an AVAILABLE machine to the registry.
func (e *Engine) RegisterMachine(ctx context.Context, in MachineInput) (*model.Machine, error) {
	id := strings.TrimSpace(in.ID)
	if id == "" {
		return nil, apperr.ValidationField("id", "machine id is required")
	}
	machineType, err := parse.MachineType(in.Type)
	if err != nil {
		return nil, apperr.ValidationField("type", err.Error())
	}
	if in.CapacityKg <= 0 {
		return nil, apperr.ValidationField("capacityKg", "capacity must be positive")
	}
	name := strings.TrimSpace(in.Name)
	if name == "" {
		name = id
	}

	unlock := e.locks.Lock("machine:" + id)
	defer unlock()

	_, err = e.store.GetMachine(ctx, id)
	switch {
	case err == nil:
		return nil, apperr.Conflictf("machine %s already exists", id)
	case !errors.Is(err, store.ErrNotFound):
		return nil, apperr.Internal(err, "failed to check machine")
	}

	m := model.NewMachine(id, name, machineType, in.CapacityKg, e.clock.Now())
	if err := e.store.CreateMachine(ctx, m); err != nil {
		return nil, apperr.Internal(err, "failed to register machine")
	}
	return m, nil
}

// GetMachine returns one machine.
func (e *Engine) GetMachine(ctx context.Context, id string) (*model.Machine, error) {
	m, err := e.store.GetMachine(ctx, id)
	if err != nil {
		return nil, storeErr(err, "machine %s", id)
	}
	return m, nil
}

// ListMachines returns the machines matching filter, ordered by id.
func (e *Engine) ListMachines(ctx context.Context, filter store.MachineFilter) ([]model.Machine, error) {
	machines, err := e.store.ListMachines(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list machines")
	}
	return machines, nil
}

// ListAvailable returns the AVAILABLE machines of one type.
func (e *Engine) ListAvailable(ctx context.Context, machineType model.MachineType) ([]model.Machine, error) {
	return e.ListMachines(ctx, store.MachineFilter{Type: machineType, Status: model.MachineAvailable})
}

// SetMachineStatus toggles a machine between AVAILABLE and MAINTENANCE.
// IN_USE belongs to load assignment and cannot be set here. An IN_USE machine
// can only be changed once no unfinished load references it.
func (e *Engine) SetMachineStatus(ctx context.Context, id string, status model.MachineStatus) (*model.Machine, error) {
	if status == model.MachineInUse {
		return nil, apperr.Conflictf("machine %s: IN_USE is set by load assignment only", id)
	}
	if status != model.MachineAvailable && status != model.MachineMaintenance {
		return nil, apperr.ValidationField("status", "unknown machine status "+string(status))
	}

	m, err := e.store.GetMachine(ctx, id)
	if err != nil {
		return nil, storeErr(err, "machine %s", id)
	}
	if m.Status == status {
		return m, nil
	}
	if m.Status == model.MachineInUse {
		n, err := e.store.CountActiveLoads(ctx, id, "")
		if err != nil {
			return nil, apperr.Internal(err, "failed to check machine usage")
		}
		if n > 0 {
			return nil, apperr.Conflictf("machine %s is in use", id)
		}
		log.Printf("Machine %s was IN_USE with no active load; moving it to %s", id, status)
	}

	now := e.clock.Now()
	swapped, err := e.store.SwapMachineStatus(ctx, id, m.Status, status, now)
	if err != nil {
		return nil, apperr.Internal(err, "failed to update machine status")
	}
	if !swapped {
		return nil, apperr.Conflictf("machine %s changed concurrently", id)
	}
	m.Status = status
	m.UpdatedAt = now
	return m, nil
}
