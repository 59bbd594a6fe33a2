package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/disposal"
	"laundry-jobs-backend/internal/model"
	"laundry-jobs-backend/internal/parse"
	"laundry-jobs-backend/internal/store"
)

// CreateJobInput opens a job for an existing transaction.
type CreateJobInput struct {
	TransactionID string `json:"transactionId"`
	LoadCount     int    `json:"loadCount"`
	DetergentQty  int    `json:"detergentQty"`
	FabricQty     int    `json:"fabricQty"`
	Contact       string `json:"contact"`
}

// JobView is a job as shown to staff, with derived fields.
type JobView struct {
	model.Job
	DisposalState  disposal.State `json:"disposalState"`
	ExpiresAt      *time.Time     `json:"expiresAt,omitempty"`
	DetergentCount *int           `json:"detergentCount,omitempty"`
	FabricCount    *int           `json:"fabricCount,omitempty"`
}

// JobPatch is the unrestricted staff correction. Nil fields are left alone.
// Only type validity is checked; load and machine invariants are not enforced.
type JobPatch struct {
	Contact         *string     `json:"contact"`
	DetergentQty    *int        `json:"detergentQty"`
	FabricQty       *int        `json:"fabricQty"`
	StatusFlow      []string    `json:"statusFlow"`
	CurrentStep     *int        `json:"currentStep"`
	LoadAssignments []LoadPatch `json:"loadAssignments"`
}

// LoadPatch replaces one load in a JobPatch.
type LoadPatch struct {
	LoadNumber      int        `json:"loadNumber"`
	MachineID       *string    `json:"machineId"`
	Status          string     `json:"status"`
	StartTime       *time.Time `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	DurationMinutes int        `json:"durationMinutes"`
}

// CreateJob opens a job with QUEUED loads for a transaction.
func (e *Engine) CreateJob(ctx context.Context, in CreateJobInput) (*model.Job, error) {
	id := strings.TrimSpace(in.TransactionID)
	if id == "" {
		return nil, apperr.ValidationField("transactionId", "transaction id is required")
	}
	if in.DetergentQty < 0 {
		return nil, apperr.ValidationField("detergentQty", "quantity cannot be negative")
	}
	if in.FabricQty < 0 {
		return nil, apperr.ValidationField("fabricQty", "quantity cannot be negative")
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	var job *model.Job
	err := e.store.InTx(ctx, func(tx store.Store) error {
		txn, err := tx.GetTransaction(ctx, id)
		if err != nil {
			return storeErr(err, "transaction %s", id)
		}
		_, err = tx.GetJob(ctx, id)
		switch {
		case err == nil:
			return apperr.Conflictf("job for transaction %s already exists", id)
		case !errors.Is(err, store.ErrNotFound):
			return apperr.Internal(err, "failed to check existing job")
		}

		loadCount := in.LoadCount
		if loadCount <= 0 {
			loadCount = txn.ServiceQuantity
		}
		if loadCount <= 0 {
			return apperr.ValidationField("loadCount", "a job needs at least one load")
		}
		contact := strings.TrimSpace(in.Contact)
		if contact == "" {
			contact = txn.Contact
		}

		job = model.NewJob(id, txn.CustomerName, contact, loadCount, e.lifecycle.StatusFlow, e.clock.Now())
		job.DetergentQty = in.DetergentQty
		job.FabricQty = in.FabricQty
		if err := tx.CreateJob(ctx, job); err != nil {
			return apperr.Internal(err, "failed to create job")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Created job %s with %d loads", job.TransactionID, len(job.Loads))
	return job, nil
}

// GetJob returns one job with its disposal state.
func (e *Engine) GetJob(ctx context.Context, transactionID string) (*JobView, error) {
	job, err := e.store.GetJob(ctx, transactionID)
	if err != nil {
		return nil, storeErr(err, "job %s", transactionID)
	}
	view := e.view(*job)
	return &view, nil
}

// ListJobs returns every job with consumable counts taken from its transaction.
func (e *Engine) ListJobs(ctx context.Context, filter store.JobFilter) ([]JobView, error) {
	jobs, err := e.store.ListJobs(ctx, filter)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list jobs")
	}
	ids := make([]string, len(jobs))
	for i, j := range jobs {
		ids[i] = j.TransactionID
	}
	txns, err := e.store.ListTransactions(ctx, ids)
	if err != nil {
		return nil, apperr.Internal(err, "failed to list transactions")
	}

	views := make([]JobView, 0, len(jobs))
	for _, j := range jobs {
		v := e.view(j)
		if txn, ok := txns[j.TransactionID]; ok {
			detergent := countItems(txn.Items, e.consumables.DetergentKeywords)
			fabric := countItems(txn.Items, e.consumables.FabricKeywords)
			v.DetergentCount = &detergent
			v.FabricCount = &fabric
		}
		views = append(views, v)
	}
	return views, nil
}

// UpdateJob applies a staff correction.
func (e *Engine) UpdateJob(ctx context.Context, transactionID string, patch JobPatch) (*model.Job, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}

	return e.mutateJob(ctx, transactionID, func(ctx context.Context, tx store.Store, job *model.Job, now time.Time) (bool, error) {
		if patch.Contact != nil {
			job.Contact = strings.TrimSpace(*patch.Contact)
		}
		if patch.DetergentQty != nil {
			job.DetergentQty = *patch.DetergentQty
		}
		if patch.FabricQty != nil {
			job.FabricQty = *patch.FabricQty
		}
		if patch.StatusFlow != nil {
			job.StatusFlow = append([]string(nil), patch.StatusFlow...)
		}
		if patch.CurrentStep != nil {
			job.CurrentStep = *patch.CurrentStep
		}
		if patch.LoadAssignments != nil {
			held := activeMachines(job.Loads)
			job.Loads = patch.apply(job, now)
			if err := freeDropped(ctx, tx, job, held, now); err != nil {
				return false, err
			}
		}
		return true, nil
	})
}

func activeMachines(loads []model.LoadAssignment) map[string]bool {
	ids := make(map[string]bool)
	for _, l := range loads {
		if l.MachineID != nil && l.Status != model.LoadCompleted {
			ids[*l.MachineID] = true
		}
	}
	return ids
}

// freeDropped releases machines that the patched loads no longer hold, unless
// a load of another job still references them.
func freeDropped(ctx context.Context, tx store.Store, job *model.Job, held map[string]bool, now time.Time) error {
	still := activeMachines(job.Loads)
	for machineID := range held {
		if still[machineID] {
			continue
		}
		n, err := tx.CountActiveLoads(ctx, machineID, job.TransactionID)
		if err != nil {
			return apperr.Internal(err, "failed to check machine usage")
		}
		if n > 0 {
			continue
		}
		if _, err := tx.SwapMachineStatus(ctx, machineID, model.MachineInUse, model.MachineAvailable, now); err != nil {
			return apperr.Internal(err, "failed to release machine")
		}
		log.Printf("Released machine %s dropped from job %s", machineID, job.TransactionID)
	}
	return nil
}

// DeleteJob removes a job and its loads, freeing machines held by unfinished loads.
func (e *Engine) DeleteJob(ctx context.Context, transactionID string) error {
	unlock := e.locks.Lock(transactionID)
	defer unlock()

	now := e.clock.Now()
	return e.store.InTx(ctx, func(tx store.Store) error {
		job, err := tx.GetJob(ctx, transactionID)
		if err != nil {
			return storeErr(err, "job %s", transactionID)
		}
		for i := range job.Loads {
			load := &job.Loads[i]
			if load.Status == model.LoadCompleted {
				continue
			}
			if err := releaseMachine(ctx, tx, job, load, now); err != nil {
				return err
			}
			// later siblings must not see this load as still holding the machine
			load.Status = model.LoadCompleted
		}
		if err := tx.DeleteJob(ctx, transactionID); err != nil {
			return storeErr(err, "job %s", transactionID)
		}
		log.Printf("Deleted job %s", transactionID)
		return nil
	})
}

func (e *Engine) view(job model.Job) JobView {
	v := JobView{Job: job, DisposalState: e.policy.StateOf(&job)}
	if v.DisposalState != disposal.StateActive && v.DisposalState != disposal.StateClaimed {
		if at, ok := e.policy.ExpiresAt(&job); ok {
			v.ExpiresAt = &at
		}
	}
	return v
}

// countItems sums the quantity of items whose name contains any keyword, ignoring case.
func countItems(items []model.TransactionItem, keywords []string) int {
	total := 0
	for _, item := range items {
		name := strings.ToLower(item.Name)
		for _, kw := range keywords {
			if kw != "" && strings.Contains(name, strings.ToLower(kw)) {
				total += item.Quantity
				break
			}
		}
	}
	return total
}

func (p JobPatch) validate() error {
	if p.DetergentQty != nil && *p.DetergentQty < 0 {
		return apperr.ValidationField("detergentQty", "quantity cannot be negative")
	}
	if p.FabricQty != nil && *p.FabricQty < 0 {
		return apperr.ValidationField("fabricQty", "quantity cannot be negative")
	}
	if p.CurrentStep != nil && *p.CurrentStep < 0 {
		return apperr.ValidationField("currentStep", "step cannot be negative")
	}
	if p.StatusFlow != nil {
		if len(p.StatusFlow) == 0 {
			return apperr.ValidationField("statusFlow", "status flow cannot be empty")
		}
		for _, stage := range p.StatusFlow {
			if strings.TrimSpace(stage) == "" {
				return apperr.ValidationField("statusFlow", "stage names cannot be blank")
			}
		}
	}

	seen := make(map[int]bool, len(p.LoadAssignments))
	for _, l := range p.LoadAssignments {
		if l.LoadNumber <= 0 {
			return apperr.ValidationField("loadAssignments", "load numbers must be positive")
		}
		if seen[l.LoadNumber] {
			return apperr.ValidationField("loadAssignments", fmt.Sprintf("load %d appears twice", l.LoadNumber))
		}
		seen[l.LoadNumber] = true
		if _, err := parse.LoadStatus(l.Status); err != nil {
			return apperr.ValidationField("loadAssignments", err.Error())
		}
		if l.DurationMinutes < 0 {
			return apperr.ValidationField("loadAssignments", "duration cannot be negative")
		}
	}
	return nil
}

// apply builds the replacement loads, keeping completion times of loads that stay COMPLETED.
func (p JobPatch) apply(job *model.Job, now time.Time) []model.LoadAssignment {
	loads := make([]model.LoadAssignment, 0, len(p.LoadAssignments))
	for _, l := range p.LoadAssignments {
		status, _ := parse.LoadStatus(l.Status)
		next := model.LoadAssignment{
			JobID:           job.TransactionID,
			LoadNumber:      l.LoadNumber,
			MachineID:       l.MachineID,
			Status:          status,
			StartTime:       l.StartTime,
			EndTime:         l.EndTime,
			DurationMinutes: l.DurationMinutes,
		}
		if status == model.LoadCompleted {
			if prev, ok := job.Load(l.LoadNumber); ok && prev.CompletedAt != nil {
				next.CompletedAt = prev.CompletedAt
			} else {
				completed := now
				next.CompletedAt = &completed
			}
		}
		loads = append(loads, next)
	}
	return loads
}
