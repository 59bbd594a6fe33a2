// Package lifecycle drives laundry jobs from intake to pickup: machine
// registry, load assignment, job bookkeeping and the claim at the counter.
package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"laundry-jobs-backend/config"
	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/clock"
	"laundry-jobs-backend/internal/disposal"
	"laundry-jobs-backend/internal/lock"
	"laundry-jobs-backend/internal/model"
	"laundry-jobs-backend/internal/notification"
	"laundry-jobs-backend/internal/store"
)

// Options wires the engine's collaborators. Store is required.
type Options struct {
	Store       store.Store
	Locks       *lock.Keyed
	Notifier    notification.Notifier
	Clock       clock.Clock
	Policy      disposal.Policy
	Lifecycle   config.LifecycleConfig
	Receipt     config.ReceiptConfig
	Consumables config.ConsumablesConfig
}

// Engine executes every job and machine mutation.
type Engine struct {
	store       store.Store
	locks       *lock.Keyed
	notifier    notification.Notifier
	clock       clock.Clock
	policy      disposal.Policy
	lifecycle   config.LifecycleConfig
	receipt     config.ReceiptConfig
	consumables config.ConsumablesConfig
}

// NewEngine creates an Engine. Missing optional collaborators get defaults.
func NewEngine(opts Options) (*Engine, error) {
	if opts.Store == nil {
		return nil, errors.New("lifecycle: store is required")
	}
	if opts.Locks == nil {
		opts.Locks = lock.NewKeyed()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Lifecycle.DefaultDurationMinutes <= 0 {
		opts.Lifecycle.DefaultDurationMinutes = 45
	}
	if len(opts.Lifecycle.StatusFlow) == 0 {
		opts.Lifecycle.StatusFlow = []string{"Washing", "Drying", "Completed"}
	}
	return &Engine{
		store:       opts.Store,
		locks:       opts.Locks,
		notifier:    opts.Notifier,
		clock:       opts.Clock,
		policy:      opts.Policy,
		lifecycle:   opts.Lifecycle,
		receipt:     opts.Receipt,
		consumables: opts.Consumables,
	}, nil
}

// mutation edits a job loaded inside a transaction. It reports whether the
// job changed and must be written back.
type mutation func(ctx context.Context, tx store.Store, job *model.Job, now time.Time) (bool, error)

// mutateJob runs fn under the job's lock in one database transaction.
func (e *Engine) mutateJob(ctx context.Context, transactionID string, fn mutation) (*model.Job, error) {
	unlock := e.locks.Lock(transactionID)
	defer unlock()

	now := e.clock.Now()
	var out *model.Job
	err := e.store.InTx(ctx, func(tx store.Store) error {
		job, err := tx.GetJob(ctx, transactionID)
		if err != nil {
			return storeErr(err, "job %s", transactionID)
		}
		changed, err := fn(ctx, tx, job, now)
		if err != nil {
			return err
		}
		if changed {
			job.Touch(now)
			if err := tx.SaveJob(ctx, job); err != nil {
				return apperr.Internal(err, "failed to save job")
			}
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// storeErr maps a store failure onto the application error taxonomy.
func storeErr(err error, format string, args ...any) error {
	var appErr *apperr.Error
	if errors.As(err, &appErr) {
		return err
	}
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFoundf(format+" not found", args...)
	}
	return apperr.Internal(err, fmt.Sprintf("failed to load "+format, args...))
}

// findLoad returns the numbered load or a NotFound error.
func findLoad(job *model.Job, loadNumber int) (*model.LoadAssignment, error) {
	load, ok := job.Load(loadNumber)
	if !ok {
		return nil, apperr.NotFoundf("load %d of job %s not found", loadNumber, job.TransactionID)
	}
	return load, nil
}

// notify hands an event to the notifier. Failures are logged, never returned.
func (e *Engine) notify(ctx context.Context, job *model.Job, kind notification.Kind, payload notification.Payload) {
	if e.notifier == nil {
		log.Printf("No notifier configured; %s for job %s dropped", kind, job.TransactionID)
		return
	}
	if err := e.notifier.Notify(context.WithoutCancel(ctx), job.Contact, kind, payload); err != nil {
		log.Printf("Error queueing %s for job %s: %v", kind, job.TransactionID, err)
	}
}
