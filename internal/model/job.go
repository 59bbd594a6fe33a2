package model

import (
	"strings"
	"time"
)

// LoadStatus is the state of a single wash/dry cycle.
type LoadStatus string

const (
	LoadQueued    LoadStatus = "QUEUED"
	LoadWashing   LoadStatus = "WASHING"
	LoadDrying    LoadStatus = "DRYING"
	LoadCompleted LoadStatus = "COMPLETED"
)

// Running reports whether the load is occupying its machine.
func (s LoadStatus) Running() bool {
	return s == LoadWashing || s == LoadDrying
}

// PickupStatus tracks whether the customer collected the laundry.
type PickupStatus string

const (
	PickupUnclaimed PickupStatus = "UNCLAIMED"
	PickupClaimed   PickupStatus = "CLAIMED"
)

// LoadAssignment is one wash/dry cycle owned by a job.
type LoadAssignment struct {
	JobID           string     `gorm:"primaryKey;size:64" json:"-"`
	LoadNumber      int        `gorm:"primaryKey;autoIncrement:false" json:"loadNumber"`
	MachineID       *string    `gorm:"size:64;index" json:"machineId"`
	Status          LoadStatus `gorm:"size:16;not null" json:"status"`
	StartTime       *time.Time `json:"startTime"`
	EndTime         *time.Time `json:"endTime"`
	DurationMinutes int        `gorm:"not null" json:"durationMinutes"`
	CompletedAt     *time.Time `json:"completedAt"`
}

// Job is the tracked processing unit for one customer transaction.
type Job struct {
	TransactionID      string           `gorm:"primaryKey;size:64" json:"transactionId"`
	CustomerName       string           `gorm:"size:256;not null" json:"customerName"`
	Contact            string           `gorm:"size:64" json:"contact"`
	DetergentQty       int              `gorm:"not null" json:"detergentQty"`
	FabricQty          int              `gorm:"not null" json:"fabricQty"`
	Loads              []LoadAssignment `gorm:"foreignKey:JobID;references:TransactionID;constraint:OnDelete:CASCADE" json:"loadAssignments"`
	StatusFlow         []string         `gorm:"serializer:json" json:"statusFlow"`
	CurrentStep        int              `gorm:"not null" json:"currentStep"`
	PickupStatus       PickupStatus     `gorm:"size:16;not null;index" json:"pickupStatus"`
	Expired            bool             `gorm:"not null;index" json:"expired"`
	Disposed           bool             `gorm:"not null" json:"disposed"`
	CompletedAt        *time.Time       `json:"completedAt"`
	WarningSentAt      *time.Time       `json:"warningSentAt"`
	ExpiredAt          *time.Time       `json:"expiredAt"`
	DisposedAt         *time.Time       `json:"disposedAt"`
	DisposedBy         *string          `gorm:"size:128" json:"disposedBy"`
	ClaimReceiptNumber *string          `gorm:"size:64;uniqueIndex" json:"claimReceiptNumber"`
	ClaimedByStaffID   *string          `gorm:"size:128" json:"claimedByStaffId"`
	ClaimDate          *time.Time       `json:"claimDate"`
	CreatedAt          time.Time        `gorm:"not null;autoCreateTime:false" json:"createdAt"`
	UpdatedAt          time.Time        `gorm:"not null;autoUpdateTime:false" json:"updatedAt"`
}

// NewJob builds an unclaimed job with loadCount queued loads, stamped at now.
func NewJob(transactionID, customerName, contact string, loadCount int, statusFlow []string, now time.Time) *Job {
	loads := make([]LoadAssignment, loadCount)
	for i := range loads {
		loads[i] = LoadAssignment{
			JobID:      transactionID,
			LoadNumber: i + 1,
			Status:     LoadQueued,
		}
	}
	return &Job{
		TransactionID: transactionID,
		CustomerName:  customerName,
		Contact:       contact,
		Loads:         loads,
		StatusFlow:    append([]string(nil), statusFlow...),
		PickupStatus:  PickupUnclaimed,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

// Load returns the load with the given number.
func (j *Job) Load(loadNumber int) (*LoadAssignment, bool) {
	for i := range j.Loads {
		if j.Loads[i].LoadNumber == loadNumber {
			return &j.Loads[i], true
		}
	}
	return nil, false
}

// AllLoadsCompleted reports whether every load finished. A job without loads never completes.
func (j *Job) AllLoadsCompleted() bool {
	if len(j.Loads) == 0 {
		return false
	}
	for _, l := range j.Loads {
		if l.Status != LoadCompleted {
			return false
		}
	}
	return true
}

// LastCompletion returns the latest load completion time.
func (j *Job) LastCompletion() (time.Time, bool) {
	var last time.Time
	for _, l := range j.Loads {
		if l.CompletedAt != nil && l.CompletedAt.After(last) {
			last = *l.CompletedAt
		}
	}
	if last.IsZero() {
		if j.CompletedAt == nil {
			return time.Time{}, false
		}
		return *j.CompletedAt, true
	}
	return last, true
}

// Progress returns the statusFlow index matching the least advanced load.
func (j *Job) Progress() int {
	if len(j.StatusFlow) == 0 {
		return 0
	}
	terminal := len(j.StatusFlow) - 1
	if j.AllLoadsCompleted() {
		return terminal
	}
	step := terminal
	for _, l := range j.Loads {
		if idx := j.stageIndex(l.Status); idx < step {
			step = idx
		}
	}
	return step
}

func (j *Job) stageIndex(status LoadStatus) int {
	if status == LoadQueued {
		return 0
	}
	for i, stage := range j.StatusFlow {
		if strings.EqualFold(stage, string(status)) {
			return i
		}
	}
	return 0
}

// Touch stamps the modification time.
func (j *Job) Touch(now time.Time) {
	j.UpdatedAt = now
}
