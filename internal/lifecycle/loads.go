package lifecycle

import (
	"context"
	"log"
	"strings"
	"time"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/model"
	"laundry-jobs-backend/internal/notification"
	"laundry-jobs-backend/internal/parse"
	"laundry-jobs-backend/internal/store"
)

// AssignMachine binds a load to an AVAILABLE machine and marks it IN_USE.
func (e *Engine) AssignMachine(ctx context.Context, transactionID string, loadNumber int, machineID string) (*model.Job, error) {
	machineID = strings.TrimSpace(machineID)
	if machineID == "" {
		return nil, apperr.ValidationField("machineId", "machine id is required")
	}

	return e.mutateJob(ctx, transactionID, func(ctx context.Context, tx store.Store, job *model.Job, now time.Time) (bool, error) {
		load, err := findLoad(job, loadNumber)
		if err != nil {
			return false, err
		}
		if load.Status == model.LoadCompleted {
			return false, apperr.InvalidStatef("load %d of job %s is already completed", loadNumber, transactionID)
		}
		if load.MachineID != nil && *load.MachineID == machineID {
			return false, nil
		}

		machine, err := tx.GetMachine(ctx, machineID)
		if err != nil {
			return false, storeErr(err, "machine %s", machineID)
		}
		swapped, err := tx.SwapMachineStatus(ctx, machineID, model.MachineAvailable, model.MachineInUse, now)
		if err != nil {
			return false, apperr.Internal(err, "failed to reserve machine")
		}
		if !swapped {
			return false, apperr.Conflictf("machine %s is %s", machineID, machine.Status)
		}

		if load.MachineID != nil {
			if err := releaseMachine(ctx, tx, job, load, now); err != nil {
				return false, err
			}
			// the running timer belonged to the previous machine
			load.StartTime = nil
			load.EndTime = nil
		}
		load.MachineID = &machineID
		return true, nil
	})
}

// StartLoad starts the cycle on the assigned machine. A nil duration uses the configured default.
func (e *Engine) StartLoad(ctx context.Context, transactionID string, loadNumber int, durationMinutes *int) (*model.Job, error) {
	if durationMinutes != nil && *durationMinutes <= 0 {
		return nil, apperr.ValidationField("durationMinutes", "duration must be positive")
	}

	return e.mutateJob(ctx, transactionID, func(ctx context.Context, tx store.Store, job *model.Job, now time.Time) (bool, error) {
		load, err := findLoad(job, loadNumber)
		if err != nil {
			return false, err
		}
		if load.Status == model.LoadCompleted {
			return false, apperr.InvalidStatef("load %d of job %s is already completed", loadNumber, transactionID)
		}
		if load.MachineID == nil {
			return false, apperr.InvalidStatef("load %d of job %s has no machine assigned", loadNumber, transactionID)
		}
		machine, err := tx.GetMachine(ctx, *load.MachineID)
		if err != nil {
			return false, storeErr(err, "machine %s", *load.MachineID)
		}

		minutes := e.lifecycle.DefaultDurationMinutes
		if durationMinutes != nil {
			minutes = *durationMinutes
		}
		if machine.Type == model.MachineTypeDryer {
			load.Status = model.LoadDrying
		} else {
			load.Status = model.LoadWashing
		}
		startTimer(load, now, minutes)
		job.CurrentStep = job.Progress()
		return true, nil
	})
}

// DryAgain restarts a drying cycle with its previous duration.
func (e *Engine) DryAgain(ctx context.Context, transactionID string, loadNumber int) (*model.Job, error) {
	return e.mutateJob(ctx, transactionID, func(ctx context.Context, tx store.Store, job *model.Job, now time.Time) (bool, error) {
		load, err := findLoad(job, loadNumber)
		if err != nil {
			return false, err
		}
		if load.Status != model.LoadDrying {
			return false, apperr.InvalidStatef("load %d of job %s is %s, not DRYING", loadNumber, transactionID, load.Status)
		}
		if load.MachineID == nil {
			return false, apperr.InvalidStatef("load %d of job %s has no machine assigned", loadNumber, transactionID)
		}
		minutes := load.DurationMinutes
		if minutes <= 0 {
			minutes = e.lifecycle.DefaultDurationMinutes
		}
		startTimer(load, now, minutes)
		return true, nil
	})
}

// AdvanceLoad overrides a load's status. It never touches the machine, so
// COMPLETED must go through CompleteLoad.
func (e *Engine) AdvanceLoad(ctx context.Context, transactionID string, loadNumber int, rawStatus string) (*model.Job, error) {
	status, err := parse.LoadStatus(rawStatus)
	if err != nil {
		return nil, apperr.ValidationField("status", err.Error())
	}
	if status == model.LoadCompleted {
		return nil, apperr.InvalidStatef("use complete to finish load %d", loadNumber)
	}

	return e.mutateJob(ctx, transactionID, func(ctx context.Context, tx store.Store, job *model.Job, now time.Time) (bool, error) {
		load, err := findLoad(job, loadNumber)
		if err != nil {
			return false, err
		}
		if load.Status == model.LoadCompleted {
			return false, apperr.InvalidStatef("load %d of job %s is already completed", loadNumber, transactionID)
		}
		load.Status = status
		job.CurrentStep = job.Progress()
		return true, nil
	})
}

// CompleteLoad finishes a load and frees its machine. When it completes the
// last load, the job is stamped complete and one load-completed notification
// is sent after the write commits. Completing a completed load changes nothing.
func (e *Engine) CompleteLoad(ctx context.Context, transactionID string, loadNumber int) (*model.Job, error) {
	jobDone := false
	job, err := e.mutateJob(ctx, transactionID, func(ctx context.Context, tx store.Store, job *model.Job, now time.Time) (bool, error) {
		load, err := findLoad(job, loadNumber)
		if err != nil {
			return false, err
		}
		if load.Status == model.LoadCompleted {
			return false, nil
		}

		if err := releaseMachine(ctx, tx, job, load, now); err != nil {
			return false, err
		}
		load.Status = model.LoadCompleted
		load.CompletedAt = &now

		if job.AllLoadsCompleted() {
			job.CompletedAt = &now
			jobDone = true
		}
		job.CurrentStep = job.Progress()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	if jobDone {
		log.Printf("Job %s completed; notifying %s", job.TransactionID, job.CustomerName)
		e.notify(ctx, job, notification.KindLoadCompleted, notification.Payload{
			"transactionId": job.TransactionID,
			"customerName":  job.CustomerName,
			"storeName":     e.storeInfo(ctx).Name,
			"completedAt":   job.CompletedAt.Format(time.RFC3339),
		})
	}
	return job, nil
}

// UpdateLoadDuration changes the length of a started cycle.
func (e *Engine) UpdateLoadDuration(ctx context.Context, transactionID string, loadNumber int, minutes int) (*model.Job, error) {
	if minutes <= 0 {
		return nil, apperr.ValidationField("minutes", "duration must be positive")
	}

	return e.mutateJob(ctx, transactionID, func(ctx context.Context, tx store.Store, job *model.Job, now time.Time) (bool, error) {
		load, err := findLoad(job, loadNumber)
		if err != nil {
			return false, err
		}
		if load.Status == model.LoadCompleted {
			return false, apperr.InvalidStatef("load %d of job %s is already completed", loadNumber, transactionID)
		}
		if load.StartTime == nil {
			return false, apperr.InvalidStatef("load %d of job %s has not started", loadNumber, transactionID)
		}
		end := load.StartTime.Add(time.Duration(minutes) * time.Minute)
		load.DurationMinutes = minutes
		load.EndTime = &end
		return true, nil
	})
}

func startTimer(load *model.LoadAssignment, now time.Time, minutes int) {
	start := now
	end := now.Add(time.Duration(minutes) * time.Minute)
	load.StartTime = &start
	load.EndTime = &end
	load.DurationMinutes = minutes
}

// releaseMachine frees the load's machine unless another unfinished load of
// the same job still references it.
func releaseMachine(ctx context.Context, tx store.Store, job *model.Job, load *model.LoadAssignment, now time.Time) error {
	if load.MachineID == nil {
		return nil
	}
	machineID := *load.MachineID
	for i := range job.Loads {
		other := &job.Loads[i]
		if other.LoadNumber != load.LoadNumber && other.Status != model.LoadCompleted &&
			other.MachineID != nil && *other.MachineID == machineID {
			return nil
		}
	}

	swapped, err := tx.SwapMachineStatus(ctx, machineID, model.MachineInUse, model.MachineAvailable, now)
	if err != nil {
		return apperr.Internal(err, "failed to release machine")
	}
	if !swapped {
		log.Printf("Machine %s was not IN_USE when job %s load %d released it", machineID, job.TransactionID, load.LoadNumber)
	}
	return nil
}
