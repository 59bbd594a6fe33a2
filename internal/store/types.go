package store

import (
	"errors"

	"laundry-jobs-backend/internal/model"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("record not found")

// MachineFilter narrows ListMachines. Zero values match everything.
type MachineFilter struct {
	Type   model.MachineType
	Status model.MachineStatus
}

// JobFilter narrows ListJobs. Nil pointers match everything.
type JobFilter struct {
	PickupStatus *model.PickupStatus
	Expired      *bool
	Disposed     *bool
}

// Ptr is a small helper for building filters.
func Ptr[T any](v T) *T {
	return &v
}
