package disposal

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"laundry-jobs-backend/internal/apperr"
	"laundry-jobs-backend/internal/clock"
	"laundry-jobs-backend/internal/db"
	"laundry-jobs-backend/internal/lock"
	"laundry-jobs-backend/internal/mocks"
	"laundry-jobs-backend/internal/model"
	"laundry-jobs-backend/internal/notification"
	"laundry-jobs-backend/internal/store"
)

var completedAt = time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

func newTestSweeper(t *testing.T) (*Sweeper, store.Store, *clock.Fixed, *mocks.MockNotifier) {
	t.Helper()
	st := store.NewGormStore(db.NewTestDB(t))
	clk := clock.NewFixed(completedAt)
	n := mocks.NewMockNotifier(gomock.NewController(t))

	s, err := NewSweeper(SweeperOptions{
		Store:     st,
		Notifier:  n,
		Clock:     clk,
		Policy:    Policy{WarningAfter: time.Hour, ExpireAfter: 24 * time.Hour},
		Interval:  time.Hour,
		StoreName: "Suds Laundry",
	})
	require.NoError(t, err)
	return s, st, clk, n
}

func seedCompleted(t *testing.T, st store.Store, id, contact string) {
	t.Helper()
	job := completedJob(id, completedAt)
	job.Contact = contact
	require.NoError(t, st.CreateJob(context.Background(), job))
}

func TestSweeper_WarnsOnceThenExpires(t *testing.T) {
	s, st, clk, n := newTestSweeper(t)
	ctx := context.Background()
	seedCompleted(t, st, "T-1", "09171234567")

	clk.Advance(2 * time.Hour)
	n.EXPECT().
		Notify(gomock.Any(), "09171234567", notification.KindDisposalWarning, gomock.Any()).
		DoAndReturn(func(ctx context.Context, contact string, kind notification.Kind, payload notification.Payload) error {
			assert.Equal(t, "T-1", payload["transactionId"])
			assert.Equal(t, "Suds Laundry", payload["storeName"])
			assert.Equal(t, "2024-05-02", payload["expiresAt"])
			return nil
		}).
		Times(1)

	summary, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Checked)
	assert.Equal(t, 1, summary.Warned)
	assert.Equal(t, 0, summary.Expired)

	job, err := st.GetJob(ctx, "T-1")
	require.NoError(t, err)
	require.NotNil(t, job.WarningSentAt)
	assert.False(t, job.Expired)

	// A second tick in the same cycle sends nothing.
	clk.Advance(time.Hour)
	summary, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Warned)

	clk.Advance(22 * time.Hour)
	summary, err = s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Expired)
	assert.Equal(t, 0, summary.Warned)

	job, err = st.GetJob(ctx, "T-1")
	require.NoError(t, err)
	assert.True(t, job.Expired)
	assert.False(t, job.Disposed, "expiry never disposes on its own")
	require.NotNil(t, job.ExpiredAt)

	expired, err := s.ListExpired(ctx)
	require.NoError(t, err)
	require.Len(t, expired, 1)
	assert.Equal(t, "T-1", expired[0].TransactionID)
}

func TestSweeper_DeliveryFailureIsIsolated(t *testing.T) {
	s, st, clk, n := newTestSweeper(t)
	ctx := context.Background()
	seedCompleted(t, st, "T-1", "0917000001")
	seedCompleted(t, st, "T-2", "0917000002")

	clk.Advance(2 * time.Hour)
	n.EXPECT().Notify(gomock.Any(), "0917000001", notification.KindDisposalWarning, gomock.Any()).
		Return(errors.New("gateway down"))
	n.EXPECT().Notify(gomock.Any(), "0917000002", notification.KindDisposalWarning, gomock.Any()).
		Return(nil)

	summary, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Checked)
	assert.Equal(t, 2, summary.Warned)
	assert.Equal(t, 1, summary.Failed)

	for _, id := range []string{"T-1", "T-2"} {
		job, err := st.GetJob(ctx, id)
		require.NoError(t, err)
		assert.NotNil(t, job.WarningSentAt, "job %s is marked warned regardless of delivery", id)
	}
}

func TestSweeper_SkipsClaimedAndActiveJobs(t *testing.T) {
	s, st, clk, _ := newTestSweeper(t)
	ctx := context.Background()

	claimed := completedJob("T-claimed", completedAt)
	claimed.PickupStatus = model.PickupClaimed
	require.NoError(t, st.CreateJob(ctx, claimed))

	active := completedJob("T-active", completedAt)
	active.Loads[0].Status = model.LoadDrying
	require.NoError(t, st.CreateJob(ctx, active))

	clk.Advance(48 * time.Hour)
	summary, err := s.Tick(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, summary.Checked)
	assert.Empty(t, summary.Results)

	pending, err := s.ListPendingWarnings(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestSweeper_CheckJob(t *testing.T) {
	s, st, clk, n := newTestSweeper(t)
	ctx := context.Background()
	seedCompleted(t, st, "T-1", "")

	_, err := s.CheckJob(ctx, "missing")
	assert.True(t, apperr.Is(err, apperr.CodeNotFound))

	res, err := s.CheckJob(ctx, "T-1")
	require.NoError(t, err)
	assert.False(t, res.Warned)
	assert.Equal(t, StateCompletedUnclaimed, res.State)

	clk.Advance(90 * time.Minute)
	pending, err := s.ListPendingWarnings(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	// no contact on file: the warning is recorded as failed without calling the notifier
	n.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
	res, err = s.CheckJob(ctx, "T-1")
	require.NoError(t, err)
	assert.True(t, res.Warned)
	assert.NotEmpty(t, res.Error)
}

func TestSweeper_DisposeExpiredJob(t *testing.T) {
	s, st, _, _ := newTestSweeper(t)
	ctx := context.Background()
	seedCompleted(t, st, "T-1", "0917")

	_, err := s.DisposeExpiredJob(ctx, "T-1", "")
	assert.True(t, apperr.Is(err, apperr.CodeValidation))

	_, err = s.DisposeExpiredJob(ctx, "T-1", "Lia")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState), "not expired yet")

	job, err := st.GetJob(ctx, "T-1")
	require.NoError(t, err)
	job.Expired = true
	require.NoError(t, st.SaveJob(ctx, job))

	disposed, err := s.DisposeExpiredJob(ctx, "T-1", "Lia")
	require.NoError(t, err)
	assert.True(t, disposed.Disposed)
	require.NotNil(t, disposed.DisposedBy)
	assert.Equal(t, "Lia", *disposed.DisposedBy)

	_, err = s.DisposeExpiredJob(ctx, "T-1", "Lia")
	assert.True(t, apperr.Is(err, apperr.CodeInvalidState))

	expired, err := s.ListExpired(ctx)
	require.NoError(t, err)
	assert.Empty(t, expired)
}

func TestSweeper_RunStopsOnCancel(t *testing.T) {
	s, st, clk, n := newTestSweeper(t)
	seedCompleted(t, st, "T-1", "0917")
	clk.Advance(2 * time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	n.EXPECT().Notify(gomock.Any(), "0917", notification.KindDisposalWarning, gomock.Any()).
		DoAndReturn(func(context.Context, string, notification.Kind, notification.Payload) error {
			cancel()
			return nil
		})

	done := make(chan error, 1)
	go func() { done <- s.Run(ctx) }()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("sweeper did not stop after cancel")
	}

	job, err := st.GetJob(context.Background(), "T-1")
	require.NoError(t, err)
	assert.NotNil(t, job.WarningSentAt, "the tick in flight completes")
}

type panickingStore struct {
	store.Store
}

func (panickingStore) InTx(context.Context, func(tx store.Store) error) error {
	panic("transaction aborted")
}

func TestSweeper_CheckJobReleasesLockOnPanic(t *testing.T) {
	_, st, clk, _ := newTestSweeper(t)
	locks := lock.NewKeyed()
	s, err := NewSweeper(SweeperOptions{Store: panickingStore{st}, Locks: locks, Clock: clk})
	require.NoError(t, err)

	assert.Panics(t, func() { _, _ = s.CheckJob(context.Background(), "T-1") })

	acquired := make(chan struct{})
	go func() {
		unlock := locks.Lock("T-1")
		unlock()
		close(acquired)
	}()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("job lock still held after panic")
	}
}

func TestSweeper_WarningUsesResolvedBranding(t *testing.T) {
	st := store.NewGormStore(db.NewTestDB(t))
	clk := clock.NewFixed(completedAt)
	n := mocks.NewMockNotifier(gomock.NewController(t))
	s, err := NewSweeper(SweeperOptions{
		Store:     st,
		Notifier:  n,
		Clock:     clk,
		Policy:    Policy{WarningAfter: time.Hour, ExpireAfter: 24 * time.Hour},
		StoreName: "Suds Laundry",
		Branding:  func(context.Context) string { return "Suds Main" },
	})
	require.NoError(t, err)
	seedCompleted(t, st, "T-1", "09171234567")

	clk.Advance(2 * time.Hour)
	n.EXPECT().
		Notify(gomock.Any(), "09171234567", notification.KindDisposalWarning, gomock.Any()).
		DoAndReturn(func(ctx context.Context, contact string, kind notification.Kind, payload notification.Payload) error {
			assert.Equal(t, "Suds Main", payload["storeName"])
			return nil
		})

	res, err := s.CheckJob(context.Background(), "T-1")
	require.NoError(t, err)
	assert.True(t, res.Warned)
	assert.Empty(t, res.Error)
}
