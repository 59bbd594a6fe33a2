// Package disposal watches completed, unclaimed laundry: it warns customers,
// flags expired jobs and records their disposal.
package disposal

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/clock"
	"laundry-jobs-backend/internal/lock"
	"laundry-jobs-backend/internal/model"
	"laundry-jobs-backend/internal/notification"
	"laundry-jobs-backend/internal/store"
)

// SweeperOptions configures a Sweeper. Store is required.
type SweeperOptions struct {
	Store         store.Store
	Locks         *lock.Keyed
	Notifier      notification.Notifier
	Clock         clock.Clock
	Policy        Policy
	Interval      time.Duration
	NotifyTimeout time.Duration
	StoreName     string
	// Branding resolves the store name shown to customers. StoreName is used when nil.
	Branding      func(ctx context.Context) string
}

// Sweeper runs the periodic disposal scan.
type Sweeper struct {
	store         store.Store
	locks         *lock.Keyed
	notifier      notification.Notifier
	clock         clock.Clock
	policy        Policy
	interval      time.Duration
	notifyTimeout time.Duration
	branding      func(ctx context.Context) string
}

// Result is the outcome for one job.
type Result struct {
	TransactionID string `json:"transactionId"`
	State         State  `json:"state"`
	Warned        bool   `json:"warned"`
	Expired       bool   `json:"expired"`
	Error         string `json:"error,omitempty"`
}

// Summary aggregates one tick.
type Summary struct {
	Checked int      `json:"checked"`
	Warned  int      `json:"warned"`
	Expired int      `json:"expired"`
	Failed  int      `json:"failed"`
	Results []Result `json:"results"`
}

// NewSweeper creates a Sweeper.
func NewSweeper(opts SweeperOptions) (*Sweeper, error) {
	if opts.Store == nil {
		return nil, errors.New("disposal: store is required")
	}
	if opts.Locks == nil {
		opts.Locks = lock.NewKeyed()
	}
	if opts.Clock == nil {
		opts.Clock = clock.Real{}
	}
	if opts.Interval <= 0 {
		opts.Interval = 30 * time.Minute
	}
	if opts.NotifyTimeout <= 0 {
		opts.NotifyTimeout = 10 * time.Second
	}
	if opts.Branding == nil {
		name := opts.StoreName
		opts.Branding = func(context.Context) string { return name }
	}
	return &Sweeper{
		store:         opts.Store,
		locks:         opts.Locks,
		notifier:      opts.Notifier,
		clock:         opts.Clock,
		policy:        opts.Policy,
		interval:      opts.Interval,
		notifyTimeout: opts.NotifyTimeout,
		branding:      opts.Branding,
	}, nil
}

// Policy returns the thresholds in use.
func (s *Sweeper) Policy() Policy {
	return s.policy
}

// Run ticks immediately and then every interval until ctx is cancelled.
// A tick in progress is allowed to finish.
func (s *Sweeper) Run(ctx context.Context) error {
	log.Printf("Starting disposal sweep every %s (warn after %s, expire after %s)", s.interval, s.policy.WarningAfter, s.policy.ExpireAfter)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.runTick(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Println("Disposal sweep stopping")
			return nil
		case <-ticker.C:
			s.runTick(ctx)
		}
	}
}

func (s *Sweeper) runTick(ctx context.Context) {
	summary, err := s.Tick(context.WithoutCancel(ctx))
	if err != nil {
		log.Printf("Disposal sweep failed: %v", err)
		return
	}
	log.Printf("Disposal sweep: checked=%d warned=%d expired=%d failed=%d",
		summary.Checked, summary.Warned, summary.Expired, summary.Failed)
}

// Tick scans every unclaimed, undisposed job once. A failure on one job is
// recorded and the scan continues.
func (s *Sweeper) Tick(ctx context.Context) (*Summary, error) {
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{
		PickupStatus: store.Ptr(model.PickupUnclaimed),
		Disposed:     store.Ptr(false),
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to list jobs for disposal sweep")
	}

	summary := &Summary{Results: []Result{}}
	now := s.clock.Now()
	for i := range jobs {
		job := &jobs[i]
		if !job.AllLoadsCompleted() {
			continue
		}
		summary.Checked++

		d := s.policy.Evaluate(job, now)
		if !d.SendWarning && !d.MarkExpired {
			continue
		}

		res, err := s.CheckJob(ctx, job.TransactionID)
		if err != nil {
			log.Printf("Disposal check failed for job %s: %v", job.TransactionID, err)
			summary.Failed++
			summary.Results = append(summary.Results, Result{TransactionID: job.TransactionID, Error: err.Error()})
			continue
		}
		if res.Warned {
			summary.Warned++
		}
		if res.Expired {
			summary.Expired++
		}
		if res.Error != "" {
			summary.Failed++
		}
		summary.Results = append(summary.Results, *res)
	}
	return summary, nil
}

// ManualTrigger runs a full tick on demand.
func (s *Sweeper) ManualTrigger(ctx context.Context) (*Summary, error) {
	log.Println("Disposal sweep triggered manually")
	return s.Tick(ctx)
}

// CheckJob evaluates one job under its lock and applies due transitions.
// The warning is marked sent even if delivery fails; the failure is reported in the result.
func (s *Sweeper) CheckJob(ctx context.Context, transactionID string) (*Result, error) {
	job, d, err := s.applyDecision(ctx, transactionID)
	if err != nil {
		return nil, err
	}

	res := &Result{
		TransactionID: transactionID,
		State:         d.State,
		Warned:        d.SendWarning,
		Expired:       d.MarkExpired,
	}
	if d.MarkExpired {
		log.Printf("Job %s expired after %s unclaimed", transactionID, d.Elapsed.Round(time.Minute))
	}
	if d.SendWarning {
		if err := s.sendWarning(ctx, job); err != nil {
			log.Printf("Error sending disposal warning for job %s: %v", transactionID, err)
			res.Error = err.Error()
		}
	}
	return res, nil
}

// applyDecision persists the due transitions for one job while holding its lock.
// Delivery happens after the lock is released.
func (s *Sweeper) applyDecision(ctx context.Context, transactionID string) (*model.Job, Decision, error) {
	unlock := s.locks.Lock(transactionID)
	defer unlock()

	now := s.clock.Now()
	var job *model.Job
	var d Decision
	err := s.store.InTx(ctx, func(tx store.Store) error {
		j, err := tx.GetJob(ctx, transactionID)
		if err != nil {
			return jobErr(err, transactionID)
		}
		job = j
		d = s.policy.Evaluate(j, now)
		if !d.SendWarning && !d.MarkExpired {
			return nil
		}
		if d.SendWarning {
			j.WarningSentAt = &now
		}
		if d.MarkExpired {
			j.Expired = true
			j.ExpiredAt = &now
		}
		j.Touch(now)
		if err := tx.SaveJob(ctx, j); err != nil {
			return apperr.Internal(err, "failed to save disposal state")
		}
		return nil
	})
	if err != nil {
		return nil, Decision{}, err
	}
	return job, d, nil
}

func (s *Sweeper) sendWarning(ctx context.Context, job *model.Job) error {
	if s.notifier == nil {
		return errors.New("no notifier configured")
	}
	if strings.TrimSpace(job.Contact) == "" {
		return fmt.Errorf("job %s has no contact", job.TransactionID)
	}
	payload := notification.Payload{
		"transactionId": job.TransactionID,
		"customerName":  job.CustomerName,
		"storeName":     s.branding(ctx),
	}
	if completedAt, ok := job.LastCompletion(); ok {
		payload["completedAt"] = completedAt.Format("2006-01-02")
	}
	if expiresAt, ok := s.policy.ExpiresAt(job); ok {
		payload["expiresAt"] = expiresAt.Format("2006-01-02")
	}

	nctx, cancel := context.WithTimeout(ctx, s.notifyTimeout)
	defer cancel()
	return s.notifier.Notify(nctx, job.Contact, notification.KindDisposalWarning, payload)
}

// ListExpired returns expired jobs still awaiting disposal.
func (s *Sweeper) ListExpired(ctx context.Context) ([]model.Job, error) {
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{
		PickupStatus: store.Ptr(model.PickupUnclaimed),
		Expired:      store.Ptr(true),
		Disposed:     store.Ptr(false),
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to list expired jobs")
	}
	return jobs, nil
}

// ListPendingWarnings returns jobs whose warning is due but not yet sent.
func (s *Sweeper) ListPendingWarnings(ctx context.Context) ([]model.Job, error) {
	jobs, err := s.store.ListJobs(ctx, store.JobFilter{
		PickupStatus: store.Ptr(model.PickupUnclaimed),
		Disposed:     store.Ptr(false),
	})
	if err != nil {
		return nil, apperr.Internal(err, "failed to list jobs")
	}
	now := s.clock.Now()
	pending := make([]model.Job, 0)
	for i := range jobs {
		if s.policy.Evaluate(&jobs[i], now).SendWarning {
			pending = append(pending, jobs[i])
		}
	}
	return pending, nil
}

// DisposeExpiredJob records that staff disposed of an expired job's laundry.
func (s *Sweeper) DisposeExpiredJob(ctx context.Context, transactionID, staffName string) (*model.Job, error) {
	staffName = strings.TrimSpace(staffName)
	if staffName == "" {
		return nil, apperr.ValidationField("staffName", "staff name is required")
	}

	unlock := s.locks.Lock(transactionID)
	defer unlock()

	now := s.clock.Now()
	var out *model.Job
	err := s.store.InTx(ctx, func(tx store.Store) error {
		job, err := tx.GetJob(ctx, transactionID)
		if err != nil {
			return jobErr(err, transactionID)
		}
		switch {
		case job.PickupStatus == model.PickupClaimed:
			return apperr.InvalidStatef("job %s was claimed", transactionID)
		case job.Disposed:
			return apperr.InvalidStatef("job %s was already disposed", transactionID)
		case !job.Expired:
			return apperr.InvalidStatef("job %s has not expired", transactionID)
		}
		job.Disposed = true
		job.DisposedAt = &now
		job.DisposedBy = &staffName
		job.Touch(now)
		if err := tx.SaveJob(ctx, job); err != nil {
			return apperr.Internal(err, "failed to save disposal")
		}
		out = job
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Job %s disposed by %s", transactionID, staffName)
	return out, nil
}

func jobErr(err error, transactionID string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFoundf("job %s not found", transactionID)
	}
	return apperr.Internal(err, "failed to load job")
}
