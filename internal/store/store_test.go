package store

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"laundry-jobs-backend/internal/db"
	"laundry-jobs-backend/internal/model"
)

// A helper function to create a mock database connection.
func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)

	gormDB, err := gorm.Open(postgres.New(postgres.Config{
		Conn: sqlDB,
	}), &gorm.Config{})
	require.NoError(t, err)

	return gormDB, mock
}

// Any is a helper for sqlmock to match any argument.
type Any struct{}

// Match satisfies sqlmock.Argument interface
func (a Any) Match(v driver.Value) bool {
	return true
}

func TestGormStore_SwapMachineStatus(t *testing.T) {
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	testCases := []struct {
		name         string
		rowsAffected int64
		execErr      error
		expectSwap   bool
		expectErr    bool
	}{
		{name: "Machine was available, swap succeeds", rowsAffected: 1, expectSwap: true},
		{name: "Machine already taken, nothing updated", rowsAffected: 0, expectSwap: false},
		{name: "Database error surfaces", execErr: errors.New("connection reset"), expectErr: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			gormDB, mock := newMockDB(t)
			s := NewGormStore(gormDB)

			mock.ExpectBegin()
			exec := mock.ExpectExec(regexp.QuoteMeta(`UPDATE "machines" SET "status"=$1,"updated_at"=$2 WHERE id = $3 AND status = $4`)).
				WithArgs(model.MachineInUse, Any{}, "W1", model.MachineAvailable)
			if tc.execErr != nil {
				exec.WillReturnError(tc.execErr)
				mock.ExpectRollback()
			} else {
				exec.WillReturnResult(sqlmock.NewResult(0, tc.rowsAffected))
				mock.ExpectCommit()
			}

			swapped, err := s.SwapMachineStatus(context.Background(), "W1", model.MachineAvailable, model.MachineInUse, now)
			if tc.expectErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tc.expectSwap, swapped)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func seedJob(t *testing.T, s Store, id string, loads int, now time.Time) *model.Job {
	t.Helper()
	job := model.NewJob(id, "Ana", "09171234567", loads, []string{"Washing", "Drying", "Completed"}, now)
	require.NoError(t, s.CreateJob(context.Background(), job))
	return job
}

func TestGormStore_JobRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(db.NewTestDB(t))
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	seedJob(t, s, "T-1", 3, now)

	got, err := s.GetJob(ctx, "T-1")
	require.NoError(t, err)
	assert.Equal(t, "Ana", got.CustomerName)
	assert.Equal(t, []string{"Washing", "Drying", "Completed"}, got.StatusFlow)
	require.Len(t, got.Loads, 3)
	for i, l := range got.Loads {
		assert.Equal(t, i+1, l.LoadNumber)
		assert.Equal(t, model.LoadQueued, l.Status)
	}

	machineID := "W1"
	got.Loads[1].MachineID = &machineID
	got.Loads[1].Status = model.LoadWashing
	got.Loads = got.Loads[:2]
	got.CurrentStep = 1
	require.NoError(t, s.SaveJob(ctx, got))

	again, err := s.GetJob(ctx, "T-1")
	require.NoError(t, err)
	require.Len(t, again.Loads, 2, "SaveJob replaces the load set")
	assert.Equal(t, 1, again.CurrentStep)
	require.NotNil(t, again.Loads[1].MachineID)
	assert.Equal(t, "W1", *again.Loads[1].MachineID)
	assert.Equal(t, model.LoadWashing, again.Loads[1].Status)
}

func TestGormStore_GetJobNotFound(t *testing.T) {
	s := NewGormStore(db.NewTestDB(t))

	_, err := s.GetJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.DeleteJob(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_DeleteJobRemovesLoads(t *testing.T) {
	ctx := context.Background()
	gdb := db.NewTestDB(t)
	s := NewGormStore(gdb)
	seedJob(t, s, "T-2", 2, time.Now().UTC())

	require.NoError(t, s.DeleteJob(ctx, "T-2"))

	var count int64
	require.NoError(t, gdb.Model(&model.LoadAssignment{}).Where("job_id = ?", "T-2").Count(&count).Error)
	assert.Zero(t, count)
}

func TestGormStore_ListJobsFilters(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(db.NewTestDB(t))
	now := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)

	seedJob(t, s, "T-open", 1, now)
	claimed := seedJob(t, s, "T-claimed", 1, now.Add(time.Minute))
	claimed.PickupStatus = model.PickupClaimed
	require.NoError(t, s.SaveJob(ctx, claimed))
	expired := seedJob(t, s, "T-expired", 1, now.Add(2*time.Minute))
	expired.Expired = true
	require.NoError(t, s.SaveJob(ctx, expired))

	all, err := s.ListJobs(ctx, JobFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	unclaimed, err := s.ListJobs(ctx, JobFilter{PickupStatus: Ptr(model.PickupUnclaimed)})
	require.NoError(t, err)
	assert.Len(t, unclaimed, 2)

	onlyExpired, err := s.ListJobs(ctx, JobFilter{Expired: Ptr(true)})
	require.NoError(t, err)
	require.Len(t, onlyExpired, 1)
	assert.Equal(t, "T-expired", onlyExpired[0].TransactionID)
	assert.Len(t, onlyExpired[0].Loads, 1)
}

func TestGormStore_SwapMachineStatusSQLite(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(db.NewTestDB(t))
	now := time.Now().UTC()
	require.NoError(t, s.CreateMachine(ctx, model.NewMachine("D1", "Dryer 1", model.MachineTypeDryer, 8, now)))

	ok, err := s.SwapMachineStatus(ctx, "D1", model.MachineAvailable, model.MachineInUse, now)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.SwapMachineStatus(ctx, "D1", model.MachineAvailable, model.MachineInUse, now)
	require.NoError(t, err)
	assert.False(t, ok, "second reservation must lose")

	m, err := s.GetMachine(ctx, "D1")
	require.NoError(t, err)
	assert.Equal(t, model.MachineInUse, m.Status)

	available, err := s.ListMachines(ctx, MachineFilter{Status: model.MachineAvailable})
	require.NoError(t, err)
	assert.Empty(t, available)
}

func TestGormStore_CountActiveLoads(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(db.NewTestDB(t))
	now := time.Now().UTC()

	a := seedJob(t, s, "T-A", 2, now)
	a.Loads[0].MachineID = Ptr("W1")
	a.Loads[1].MachineID = Ptr("W1")
	a.Loads[1].Status = model.LoadCompleted
	require.NoError(t, s.SaveJob(ctx, a))
	b := seedJob(t, s, "T-B", 1, now)
	b.Loads[0].MachineID = Ptr("W1")
	require.NoError(t, s.SaveJob(ctx, b))

	n, err := s.CountActiveLoads(ctx, "W1", "")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "completed loads are not counted")

	n, err = s.CountActiveLoads(ctx, "W1", "T-A")
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	n, err = s.CountActiveLoads(ctx, "W9", "")
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestGormStore_InTxRollsBack(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(db.NewTestDB(t))
	now := time.Now().UTC()
	require.NoError(t, s.CreateMachine(ctx, model.NewMachine("W9", "Washer 9", model.MachineTypeWasher, 7, now)))

	boom := errors.New("boom")
	err := s.InTx(ctx, func(tx Store) error {
		if _, err := tx.SwapMachineStatus(ctx, "W9", model.MachineAvailable, model.MachineInUse, now); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	m, err := s.GetMachine(ctx, "W9")
	require.NoError(t, err)
	assert.Equal(t, model.MachineAvailable, m.Status)
}

func TestGormStore_TransactionsAndSettings(t *testing.T) {
	ctx := context.Background()
	gdb := db.NewTestDB(t)
	s := NewGormStore(gdb)

	require.NoError(t, gdb.Create(&model.Transaction{
		ID:              "T-5",
		CustomerName:    "Ben",
		ServiceQuantity: 2,
		Items:           []model.TransactionItem{{Name: "Detergent", Quantity: 2}},
	}).Error)

	txn, err := s.GetTransaction(ctx, "T-5")
	require.NoError(t, err)
	require.Len(t, txn.Items, 1)
	assert.Equal(t, "Detergent", txn.Items[0].Name)

	byID, err := s.ListTransactions(ctx, []string{"T-5", "T-missing"})
	require.NoError(t, err)
	assert.Len(t, byID, 1)

	_, err = s.GetFormatSettings(ctx)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGormStore_PushSubscriptionUpsert(t *testing.T) {
	ctx := context.Background()
	s := NewGormStore(db.NewTestDB(t))

	sub := &model.PushSubscription{Endpoint: "https://push/1", P256DH: "k1", Auth: "a1", StaffName: "Lia"}
	require.NoError(t, s.SavePushSubscription(ctx, sub))
	sub2 := &model.PushSubscription{Endpoint: "https://push/1", P256DH: "k2", Auth: "a2", StaffName: "Lia"}
	require.NoError(t, s.SavePushSubscription(ctx, sub2))

	got, err := s.GetPushSubscription(ctx, "https://push/1")
	require.NoError(t, err)
	assert.Equal(t, "k2", got.P256DH)

	require.NoError(t, s.DeletePushSubscription(ctx, "https://push/1"))
	subs, err := s.ListPushSubscriptions(ctx)
	require.NoError(t, err)
	assert.Empty(t, subs)
}
