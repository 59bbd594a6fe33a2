package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/model"
	"laundry-jobs-backend/internal/store"
)

// StoreInfo is the branding printed on receipts and customer messages.
type StoreInfo struct {
	Name    string `json:"name"`
	Address string `json:"address"`
	Phone   string `json:"phone"`
	Footer  string `json:"footer"`
}

// ReceiptLoad is one load line on a claim receipt.
type ReceiptLoad struct {
	LoadNumber  int        `json:"loadNumber"`
	MachineID   *string    `json:"machineId"`
	CompletedAt *time.Time `json:"completedAt"`
}

// Receipt is handed to the customer when laundry is claimed.
type Receipt struct {
	ReceiptNumber string        `json:"receiptNumber"`
	TransactionID string        `json:"transactionId"`
	CustomerName  string        `json:"customerName"`
	Contact       string        `json:"contact"`
	ClaimedBy     string        `json:"claimedBy"`
	ClaimDate     time.Time     `json:"claimDate"`
	DetergentQty  int           `json:"detergentQty"`
	FabricQty     int           `json:"fabricQty"`
	Loads         []ReceiptLoad `json:"loads"`
	Store         StoreInfo     `json:"store"`
}

// ClaimLaundry records the pickup of a fully completed job and returns its receipt.
func (e *Engine) ClaimLaundry(ctx context.Context, transactionID, staffName string) (*Receipt, error) {
	staffName = strings.TrimSpace(staffName)
	if staffName == "" {
		return nil, apperr.ValidationField("staffName", "staff name is required")
	}

	job, err := e.mutateJob(ctx, transactionID, func(ctx context.Context, tx store.Store, job *model.Job, now time.Time) (bool, error) {
		if job.PickupStatus == model.PickupClaimed {
			return false, apperr.Conflictf("job %s was already claimed", transactionID)
		}
		if job.Disposed {
			return false, apperr.InvalidStatef("job %s was disposed", transactionID)
		}
		if pending := pendingLoads(job); len(pending) > 0 {
			return false, apperr.InvalidStatef("job %s has unfinished loads: %s", transactionID, strings.Join(pending, ", "))
		}

		number := receiptNumber(now)
		job.PickupStatus = model.PickupClaimed
		job.ClaimReceiptNumber = &number
		job.ClaimedByStaffID = &staffName
		job.ClaimDate = &now
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	log.Printf("Job %s claimed by %s, receipt %s", job.TransactionID, staffName, *job.ClaimReceiptNumber)
	return e.buildReceipt(ctx, job), nil
}

// GetClaimReceipt rebuilds the receipt of a claimed job.
func (e *Engine) GetClaimReceipt(ctx context.Context, transactionID string) (*Receipt, error) {
	job, err := e.store.GetJob(ctx, transactionID)
	if err != nil {
		return nil, storeErr(err, "job %s", transactionID)
	}
	if job.PickupStatus != model.PickupClaimed || job.ClaimReceiptNumber == nil {
		return nil, apperr.InvalidStatef("job %s has not been claimed", transactionID)
	}
	return e.buildReceipt(ctx, job), nil
}

func (e *Engine) buildReceipt(ctx context.Context, job *model.Job) *Receipt {
	r := &Receipt{
		ReceiptNumber: deref(job.ClaimReceiptNumber),
		TransactionID: job.TransactionID,
		CustomerName:  job.CustomerName,
		Contact:       job.Contact,
		ClaimedBy:     deref(job.ClaimedByStaffID),
		DetergentQty:  job.DetergentQty,
		FabricQty:     job.FabricQty,
		Loads:         make([]ReceiptLoad, 0, len(job.Loads)),
		Store:         e.storeInfo(ctx),
	}
	if job.ClaimDate != nil {
		r.ClaimDate = *job.ClaimDate
	}
	for _, l := range job.Loads {
		r.Loads = append(r.Loads, ReceiptLoad{LoadNumber: l.LoadNumber, MachineID: l.MachineID, CompletedAt: l.CompletedAt})
	}
	return r
}

// StoreName returns the store name customers see, with back-office settings applied.
func (e *Engine) StoreName(ctx context.Context) string {
	return e.storeInfo(ctx).Name
}

// storeInfo merges the back-office format settings over the configured fallback.
// Lookup failures fall back silently after logging.
func (e *Engine) storeInfo(ctx context.Context) StoreInfo {
	info := StoreInfo{
		Name:    e.receipt.StoreName,
		Address: e.receipt.StoreAddress,
		Phone:   e.receipt.StorePhone,
		Footer:  e.receipt.Footer,
	}
	fs, err := e.store.GetFormatSettings(ctx)
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			log.Printf("Error loading format settings, using configured receipt values: %v", err)
		}
		return info
	}
	info.Name = firstNonEmpty(fs.StoreName, info.Name)
	info.Address = firstNonEmpty(fs.StoreAddress, info.Address)
	info.Phone = firstNonEmpty(fs.StorePhone, info.Phone)
	info.Footer = firstNonEmpty(fs.Footer, info.Footer)
	return info
}

func pendingLoads(job *model.Job) []string {
	if len(job.Loads) == 0 {
		return []string{"no loads"}
	}
	var pending []string
	for _, l := range job.Loads {
		if l.Status != model.LoadCompleted {
			pending = append(pending, fmt.Sprintf("load %d (%s)", l.LoadNumber, l.Status))
		}
	}
	return pending
}

// receiptNumber formats CLM-YYYYMMDD-XXXXXXXX with a random suffix.
func receiptNumber(now time.Time) string {
	id := uuid.New()
	return fmt.Sprintf("CLM-%s-%X", now.Format("20060102"), id[:4])
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
