package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"laundry-jobs-backend/internal/model"
)

// Store defines the interface for all database operations.
type Store interface {
	// InTx runs fn against a Store bound to a single database transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error

	CreateMachine(ctx context.Context, m *model.Machine) error
	GetMachine(ctx context.Context, id string) (*model.Machine, error)
	ListMachines(ctx context.Context, filter MachineFilter) ([]model.Machine, error)
	// SwapMachineStatus moves a machine from one status to another only if it is
	// currently in the from status. It reports whether the swap happened.
	SwapMachineStatus(ctx context.Context, id string, from, to model.MachineStatus, now time.Time) (bool, error)
	// CountActiveLoads counts unfinished loads referencing the machine, ignoring
	// loads of excludeJobID when it is not empty.
	CountActiveLoads(ctx context.Context, machineID, excludeJobID string) (int64, error)

	CreateJob(ctx context.Context, job *model.Job) error
	GetJob(ctx context.Context, transactionID string) (*model.Job, error)
	ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error)
	SaveJob(ctx context.Context, job *model.Job) error
	DeleteJob(ctx context.Context, transactionID string) error

	GetTransaction(ctx context.Context, id string) (*model.Transaction, error)
	ListTransactions(ctx context.Context, ids []string) (map[string]model.Transaction, error)
	GetFormatSettings(ctx context.Context) (*model.FormatSettings, error)

	ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error)
	SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error
	GetPushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error)
	DeletePushSubscription(ctx context.Context, endpoint string) error
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) InTx(ctx context.Context, fn func(tx Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormStore{db: tx})
	})
}

func notFound(err error, format string, args ...any) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf(format+": %w", append(args, ErrNotFound)...)
	}
	return fmt.Errorf(format+": %w", append(args, err)...)
}

// --- Machines ---

func (s *gormStore) CreateMachine(ctx context.Context, m *model.Machine) error {
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("failed to create machine %s: %w", m.ID, err)
	}
	return nil
}

func (s *gormStore) GetMachine(ctx context.Context, id string) (*model.Machine, error) {
	var m model.Machine
	if err := s.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "failed to fetch machine %s", id)
	}
	return &m, nil
}

func (s *gormStore) ListMachines(ctx context.Context, filter MachineFilter) ([]model.Machine, error) {
	q := s.db.WithContext(ctx).Order("id")
	if filter.Type != "" {
		q = q.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		q = q.Where("status = ?", filter.Status)
	}
	var machines []model.Machine
	if err := q.Find(&machines).Error; err != nil {
		return nil, fmt.Errorf("failed to list machines: %w", err)
	}
	return machines, nil
}

func (s *gormStore) SwapMachineStatus(ctx context.Context, id string, from, to model.MachineStatus, now time.Time) (bool, error) {
	res := s.db.WithContext(ctx).
		Model(&model.Machine{}).
		Where("id = ? AND status = ?", id, from).
		Updates(map[string]any{"status": to, "updated_at": now})
	if res.Error != nil {
		return false, fmt.Errorf("failed to swap status of machine %s: %w", id, res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (s *gormStore) CountActiveLoads(ctx context.Context, machineID, excludeJobID string) (int64, error) {
	q := s.db.WithContext(ctx).
		Model(&model.LoadAssignment{}).
		Where("machine_id = ? AND status <> ?", machineID, model.LoadCompleted)
	if excludeJobID != "" {
		q = q.Where("job_id <> ?", excludeJobID)
	}
	var n int64
	if err := q.Count(&n).Error; err != nil {
		return 0, fmt.Errorf("failed to count loads on machine %s: %w", machineID, err)
	}
	return n, nil
}

// --- Jobs ---

func (s *gormStore) CreateJob(ctx context.Context, job *model.Job) error {
	if err := s.db.WithContext(ctx).Create(job).Error; err != nil {
		return fmt.Errorf("failed to create job %s: %w", job.TransactionID, err)
	}
	return nil
}

func (s *gormStore) GetJob(ctx context.Context, transactionID string) (*model.Job, error) {
	var job model.Job
	err := s.db.WithContext(ctx).
		Preload("Loads", func(db *gorm.DB) *gorm.DB { return db.Order("load_number") }).
		First(&job, "transaction_id = ?", transactionID).Error
	if err != nil {
		return nil, notFound(err, "failed to fetch job %s", transactionID)
	}
	return &job, nil
}

func (s *gormStore) ListJobs(ctx context.Context, filter JobFilter) ([]model.Job, error) {
	q := s.db.WithContext(ctx).
		Preload("Loads", func(db *gorm.DB) *gorm.DB { return db.Order("load_number") }).
		Order("created_at")
	if filter.PickupStatus != nil {
		q = q.Where("pickup_status = ?", *filter.PickupStatus)
	}
	if filter.Expired != nil {
		q = q.Where("expired = ?", *filter.Expired)
	}
	if filter.Disposed != nil {
		q = q.Where("disposed = ?", *filter.Disposed)
	}
	var jobs []model.Job
	if err := q.Find(&jobs).Error; err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// SaveJob writes the job row and replaces its loads.
func (s *gormStore) SaveJob(ctx context.Context, job *model.Job) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit(clause.Associations).Save(job).Error; err != nil {
			return fmt.Errorf("failed to save job %s: %w", job.TransactionID, err)
		}
		if err := tx.Where("job_id = ?", job.TransactionID).Delete(&model.LoadAssignment{}).Error; err != nil {
			return fmt.Errorf("failed to clear loads of job %s: %w", job.TransactionID, err)
		}
		if len(job.Loads) == 0 {
			return nil
		}
		for i := range job.Loads {
			job.Loads[i].JobID = job.TransactionID
		}
		if err := tx.Create(&job.Loads).Error; err != nil {
			return fmt.Errorf("failed to write loads of job %s: %w", job.TransactionID, err)
		}
		return nil
	})
}

func (s *gormStore) DeleteJob(ctx context.Context, transactionID string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("job_id = ?", transactionID).Delete(&model.LoadAssignment{}).Error; err != nil {
			return fmt.Errorf("failed to delete loads of job %s: %w", transactionID, err)
		}
		res := tx.Delete(&model.Job{}, "transaction_id = ?", transactionID)
		if res.Error != nil {
			return fmt.Errorf("failed to delete job %s: %w", transactionID, res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("failed to delete job %s: %w", transactionID, ErrNotFound)
		}
		return nil
	})
}

// --- External collaborators ---

func (s *gormStore) GetTransaction(ctx context.Context, id string) (*model.Transaction, error) {
	var t model.Transaction
	if err := s.db.WithContext(ctx).Preload("Items").First(&t, "id = ?", id).Error; err != nil {
		return nil, notFound(err, "failed to fetch transaction %s", id)
	}
	return &t, nil
}

func (s *gormStore) ListTransactions(ctx context.Context, ids []string) (map[string]model.Transaction, error) {
	out := make(map[string]model.Transaction, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var txs []model.Transaction
	if err := s.db.WithContext(ctx).Preload("Items").Where("id IN ?", ids).Find(&txs).Error; err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	for _, t := range txs {
		out[t.ID] = t
	}
	return out, nil
}

func (s *gormStore) GetFormatSettings(ctx context.Context) (*model.FormatSettings, error) {
	var fs model.FormatSettings
	if err := s.db.WithContext(ctx).Order("id").First(&fs).Error; err != nil {
		return nil, notFound(err, "failed to fetch format settings")
	}
	return &fs, nil
}

// --- Staff push subscriptions ---

func (s *gormStore) ListPushSubscriptions(ctx context.Context) ([]model.PushSubscription, error) {
	var subs []model.PushSubscription
	if err := s.db.WithContext(ctx).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list push subscriptions: %w", err)
	}
	return subs, nil
}

func (s *gormStore) SavePushSubscription(ctx context.Context, sub *model.PushSubscription) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "endpoint"}},
		DoUpdates: clause.AssignmentColumns([]string{"p256dh", "auth", "staff_name"}),
	}).Create(sub).Error
	if err != nil {
		return fmt.Errorf("failed to save push subscription: %w", err)
	}
	return nil
}

func (s *gormStore) GetPushSubscription(ctx context.Context, endpoint string) (*model.PushSubscription, error) {
	var sub model.PushSubscription
	if err := s.db.WithContext(ctx).First(&sub, "endpoint = ?", endpoint).Error; err != nil {
		return nil, notFound(err, "failed to fetch push subscription")
	}
	return &sub, nil
}

func (s *gormStore) DeletePushSubscription(ctx context.Context, endpoint string) error {
	if err := s.db.WithContext(ctx).Delete(&model.PushSubscription{Endpoint: endpoint}).Error; err != nil {
		return fmt.Errorf("failed to delete push subscription: %w", err)
	}
	return nil
}
