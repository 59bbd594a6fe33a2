package parse

import (
	"fmt"
	"strings"

	"laundry-jobs-backend/internal/model"
)

var loadStatusAliases = map[string]model.LoadStatus{
	"QUEUED":      model.LoadQueued,
	"PENDING":     model.LoadQueued,
	"WASHING":     model.LoadWashing,
	"RUNNING":     model.LoadWashing,
	"IN_PROGRESS": model.LoadWashing,
	"DRYING":      model.LoadDrying,
	"COMPLETED":   model.LoadCompleted,
	"DONE":        model.LoadCompleted,
}

// LoadStatus normalizes a staff-supplied load status. RUNNING is accepted as WASHING.
func LoadStatus(raw string) (model.LoadStatus, error) {
	key := normalizeToken(raw)
	if s, ok := loadStatusAliases[key]; ok {
		return s, nil
	}
	return "", fmt.Errorf("unknown load status: %q", raw)
}

// MachineType normalizes a machine type such as "washer" or "Dryer".
func MachineType(raw string) (model.MachineType, error) {
	switch normalizeToken(raw) {
	case "WASHER", "WASHING_MACHINE":
		return model.MachineTypeWasher, nil
	case "DRYER":
		return model.MachineTypeDryer, nil
	}
	return "", fmt.Errorf("unknown machine type: %q", raw)
}

// MachineStatus normalizes a machine status such as "available" or "in use".
func MachineStatus(raw string) (model.MachineStatus, error) {
	switch normalizeToken(raw) {
	case "AVAILABLE":
		return model.MachineAvailable, nil
	case "IN_USE", "INUSE":
		return model.MachineInUse, nil
	case "MAINTENANCE":
		return model.MachineMaintenance, nil
	}
	return "", fmt.Errorf("unknown machine status: %q", raw)
}

func normalizeToken(raw string) string {
	s := strings.ToUpper(strings.TrimSpace(raw))
	s = strings.NewReplacer(" ", "_", "-", "_").Replace(s)
	return s
}
