package disposal

import (
	"time"

	"laundry-jobs-backend/internal/model"
)

// State is the job's position in the unclaimed-laundry lifecycle.
type State string

const (
	StateActive             State = "ACTIVE"
	StateCompletedUnclaimed State = "COMPLETED_UNCLAIMED"
	StateWarned             State = "WARNED"
	StateExpired            State = "EXPIRED"
	StateDisposed           State = "DISPOSED"
	StateClaimed            State = "CLAIMED"
)

// Policy holds the thresholds measured from the last load completion.
type Policy struct {
	WarningAfter time.Duration
	ExpireAfter  time.Duration
}

// Decision is the outcome of evaluating one job at a point in time.
type Decision struct {
	State       State
	Elapsed     time.Duration
	SendWarning bool
	MarkExpired bool
}

// StateOf reports the job's current state without applying any transition.
func (p Policy) StateOf(job *model.Job) State {
	switch {
	case job.PickupStatus == model.PickupClaimed:
		return StateClaimed
	case job.Disposed:
		return StateDisposed
	case job.Expired:
		return StateExpired
	case !job.AllLoadsCompleted():
		return StateActive
	}
	if completedAt, ok := job.LastCompletion(); ok && warnedSince(job, completedAt) {
		return StateWarned
	}
	return StateCompletedUnclaimed
}

// Evaluate decides which transitions are due for job at now.
func (p Policy) Evaluate(job *model.Job, now time.Time) Decision {
	d := Decision{State: p.StateOf(job)}
	if d.State != StateCompletedUnclaimed && d.State != StateWarned {
		return d
	}

	completedAt, ok := job.LastCompletion()
	if !ok {
		return d
	}
	d.Elapsed = now.Sub(completedAt)

	if d.Elapsed >= p.WarningAfter && !warnedSince(job, completedAt) {
		d.SendWarning = true
		d.State = StateWarned
	}
	if d.Elapsed >= p.ExpireAfter {
		d.MarkExpired = true
		d.State = StateExpired
	}
	return d
}

// ExpiresAt returns when a completed job will be flagged expired.
func (p Policy) ExpiresAt(job *model.Job) (time.Time, bool) {
	completedAt, ok := job.LastCompletion()
	if !ok {
		return time.Time{}, false
	}
	return completedAt.Add(p.ExpireAfter), true
}

// warnedSince reports whether a warning went out for the current completion cycle.
func warnedSince(job *model.Job, completedAt time.Time) bool {
	return job.WarningSentAt != nil && !job.WarningSentAt.Before(completedAt)
}
