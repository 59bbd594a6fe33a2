package model

import "time"

// MachineType distinguishes washers from dryers.
type MachineType string

const (
	MachineTypeWasher MachineType = "WASHER"
	MachineTypeDryer  MachineType = "DRYER"
)

// MachineStatus is the availability of a physical machine.
type MachineStatus string

const (
	MachineAvailable   MachineStatus = "AVAILABLE"
	MachineInUse       MachineStatus = "IN_USE"
	MachineMaintenance MachineStatus = "MAINTENANCE"
)

// Machine represents a washer or dryer on the shop floor.
type Machine struct {
	ID         string        `gorm:"primaryKey;size:64" json:"id"`
	Name       string        `gorm:"size:128;not null" json:"name"`
	Type       MachineType   `gorm:"size:16;not null;index" json:"type"`
	CapacityKg float64       `gorm:"not null" json:"capacityKg"`
	Status     MachineStatus `gorm:"size:16;not null;index" json:"status"`
	CreatedAt  time.Time     `gorm:"not null;autoCreateTime:false" json:"createdAt"`
	UpdatedAt  time.Time     `gorm:"not null;autoUpdateTime:false" json:"updatedAt"`
}

// NewMachine builds an available machine stamped at now.
func NewMachine(id, name string, machineType MachineType, capacityKg float64, now time.Time) *Machine {
	return &Machine{
		ID:         id,
		Name:       name,
		Type:       machineType,
		CapacityKg: capacityKg,
		Status:     MachineAvailable,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}
