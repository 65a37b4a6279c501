package payment

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "reward-giveaway-backend/internal/common/errors"
	"reward-giveaway-backend/internal/concurrency"
	"reward-giveaway-backend/internal/features/giveaway/models"
	"reward-giveaway-backend/internal/features/giveaway/storage"
	"reward-giveaway-backend/internal/features/permission"
)

type fakeMessenger struct {
	mu   sync.Mutex
	sent []int64
	fail bool
}

func (f *fakeMessenger) SendMessage(_ context.Context, chatID int64, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fail {
		return errors.New("telegram unavailable")
	}
	f.sent = append(f.sent, chatID)
	return nil
}

func (f *fakeMessenger) sentTo(chatID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range f.sent {
		if id == chatID {
			n++
		}
	}
	return n
}

const (
	announceChannel = int64(-1001)
	opsChannel      = int64(-1002)
)

type harness struct {
	svc       *Service
	store     *storage.Store
	messenger *fakeMessenger
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	types := models.NewTypeTable(50, 250, 1000, 100)
	store, err := storage.Open(t.TempDir(), types)
	require.NoError(t, err)

	locks := concurrency.NewManager(concurrency.Options{
		AcquireTimeout: 2 * time.Second,
		StaleAfter:     time.Minute,
	})
	t.Cleanup(locks.Close)

	gate := permission.NewStaticGate([]string{"99"}, nil, "UTC")
	messenger := &fakeMessenger{}

	svc := NewService(locks, store, gate, nil, messenger, announceChannel, opsChannel)
	return &harness{svc: svc, store: store, messenger: messenger}
}

func (h *harness) seedWinner(t *testing.T, id string) {
	t.Helper()
	require.NoError(t, h.store.AppendPendingWinner(models.TypeDaily, models.PendingWinner{
		ID: id, Date: "2026-08-31", UserID: 42, DisplayName: "Trader",
		AccountID: "123456", Prize: 50, Status: models.PaymentStatusPending,
		SelectedAt: time.Now().UTC(), GiveawayType: models.TypeDaily,
	}))
}

func TestConfirmTransitionsWinner(t *testing.T) {
	h := newHarness(t)
	h.seedWinner(t, "w-1")

	result, err := h.svc.Confirm(context.Background(), "99", models.TypeDaily, "w-1")
	require.NoError(t, err)
	assert.Equal(t, "99", result.ConfirmedBy)
	assert.Equal(t, models.PaymentStatusConfirmed, result.Winner.Status)
	require.NotNil(t, result.Winner.ConfirmedAt)

	stored, err := h.store.PendingWinner(models.TypeDaily, "w-1")
	require.NoError(t, err)
	require.NotNil(t, stored)
	assert.Equal(t, models.PaymentStatusConfirmed, stored.Status)
	assert.Equal(t, "99", stored.ConfirmedBy)

	winners, err := h.store.ConfirmedWinners(models.TypeDaily)
	require.NoError(t, err)
	require.Len(t, winners, 1)
	assert.Equal(t, int64(42), winners[0].UserID)

	// Announcement, winner notification and ops notice, each delivered once.
	assert.Equal(t, 1, h.messenger.sentTo(announceChannel))
	assert.Equal(t, 1, h.messenger.sentTo(42))
	assert.Equal(t, 1, h.messenger.sentTo(opsChannel))
}

func TestConfirmIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.seedWinner(t, "w-1")

	_, err := h.svc.Confirm(context.Background(), "99", models.TypeDaily, "w-1")
	require.NoError(t, err)

	_, err = h.svc.Confirm(context.Background(), "99", models.TypeDaily, "w-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePaymentStateConflict, apperrors.CodeOf(err))
	assert.Equal(t, apperrors.ReasonAlreadyProcessed, apperrors.ReasonOf(err))

	// The winners log still carries exactly one row.
	winners, err := h.store.ConfirmedWinners(models.TypeDaily)
	require.NoError(t, err)
	assert.Len(t, winners, 1)
	assert.Equal(t, 1, h.messenger.sentTo(announceChannel))
}

func TestConfirmUnknownWinner(t *testing.T) {
	h := newHarness(t)

	_, err := h.svc.Confirm(context.Background(), "99", models.TypeDaily, "missing")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePaymentStateConflict, apperrors.CodeOf(err))
	assert.Equal(t, apperrors.ReasonNotFound, apperrors.ReasonOf(err))
}

func TestConfirmUnexpectedStatus(t *testing.T) {
	h := newHarness(t)
	require.NoError(t, h.store.AppendPendingWinner(models.TypeDaily, models.PendingWinner{
		ID: "w-odd", Date: "2026-08-31", UserID: 42, DisplayName: "Trader",
		AccountID: "123456", Prize: 50, Status: models.PaymentStatus("cancelled"),
		SelectedAt: time.Now().UTC(), GiveawayType: models.TypeDaily,
	}))

	_, err := h.svc.Confirm(context.Background(), "99", models.TypeDaily, "w-odd")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodePaymentStateConflict, apperrors.CodeOf(err))
	assert.Equal(t, apperrors.ReasonUnexpectedStatus, apperrors.ReasonOf(err))
}

func TestConfirmRequiresPermission(t *testing.T) {
	h := newHarness(t)
	h.seedWinner(t, "w-1")

	_, err := h.svc.Confirm(context.Background(), "7", models.TypeDaily, "w-1")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeForbidden, apperrors.CodeOf(err))

	stored, err := h.store.PendingWinner(models.TypeDaily, "w-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusPending, stored.Status)
}

func TestConfirmSurvivesNotificationFailure(t *testing.T) {
	h := newHarness(t)
	h.seedWinner(t, "w-1")
	h.messenger.fail = true

	// A failed announcement never rolls the confirmation back.
	result, err := h.svc.Confirm(context.Background(), "99", models.TypeDaily, "w-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, result.Winner.Status)

	stored, err := h.store.PendingWinner(models.TypeDaily, "w-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, stored.Status)
}

func TestConfirmRecoversFromAbandonedLock(t *testing.T) {
	types := models.NewTypeTable(50, 250, 1000, 100)
	store, err := storage.Open(t.TempDir(), types)
	require.NoError(t, err)

	locks := concurrency.NewManager(concurrency.Options{
		AcquireTimeout: 2 * time.Second,
		StaleAfter:     100 * time.Millisecond,
	})
	t.Cleanup(locks.Close)

	gate := permission.NewStaticGate([]string{"99"}, nil, "UTC")
	messenger := &fakeMessenger{}
	svc := NewService(locks, store, gate, nil, messenger, announceChannel, opsChannel)

	require.NoError(t, store.AppendPendingWinner(models.TypeDaily, models.PendingWinner{
		ID: "w-1", Date: "2026-08-31", UserID: 42, DisplayName: "Trader",
		AccountID: "123456", Prize: 50, Status: models.PaymentStatusPending,
		SelectedAt: time.Now().UTC(), GiveawayType: models.TypeDaily,
	}))

	// A crashed confirmation left its lock held with no release. Once the
	// holder is past the staleness threshold a fresh Confirm must go through
	// instead of reporting the operation as still in progress.
	_, err = locks.Acquire(context.Background(), concurrency.Key("payment", string(models.TypeDaily), "w-1"))
	require.NoError(t, err)
	time.Sleep(300 * time.Millisecond)

	result, err := svc.Confirm(context.Background(), "99", models.TypeDaily, "w-1")
	require.NoError(t, err)
	assert.Equal(t, models.PaymentStatusConfirmed, result.Winner.Status)
}

func TestConcurrentConfirmsSucceedExactlyOnce(t *testing.T) {
	h := newHarness(t)
	h.seedWinner(t, "w-1")

	const callers = 20
	var wg sync.WaitGroup
	results := make(chan error, callers)

	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := h.svc.Confirm(context.Background(), "99", models.TypeDaily, "w-1")
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	successes := 0
	for err := range results {
		if err == nil {
			successes++
			continue
		}
		code := apperrors.CodeOf(err)
		assert.Contains(t, []apperrors.ErrorCode{
			apperrors.ErrCodePaymentStateConflict,
			apperrors.ErrCodeAlreadyInProgress,
			apperrors.ErrCodeLockTimeout,
		}, code)
	}
	assert.Equal(t, 1, successes)

	winners, err := h.store.ConfirmedWinners(models.TypeDaily)
	require.NoError(t, err)
	assert.Len(t, winners, 1)
	assert.Equal(t, 1, h.messenger.sentTo(announceChannel))
}
