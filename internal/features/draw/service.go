// Package draw selects winners. A draw snapshots the period's active
// participants, picks one uniformly at random, records the pending payout
// and the per-participant history, and rolls the participant file over to
// the next period.
package draw

import (
	"context"
	"fmt"
	"time"

	apperrors "reward-giveaway-backend/internal/common/errors"
	"reward-giveaway-backend/internal/common/logger"
	"reward-giveaway-backend/internal/concurrency"
	"reward-giveaway-backend/internal/features/giveaway/models"
	"reward-giveaway-backend/internal/features/giveaway/storage"
	"reward-giveaway-backend/internal/features/permission"
	"reward-giveaway-backend/internal/utils/random"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Notifier delivers operational notices about completed draws.
type Notifier interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Service struct {
	locks      *concurrency.Manager
	store      *storage.Store
	gate       permission.Gate
	types      models.TypeTable
	notifier   Notifier
	opsChannel int64
	logger     zerolog.Logger
	now        func() time.Time
}

func NewService(
	locks *concurrency.Manager,
	store *storage.Store,
	gate permission.Gate,
	types models.TypeTable,
	notifier Notifier,
	opsChannel int64,
) *Service {
	return &Service{
		locks:      locks,
		store:      store,
		gate:       gate,
		types:      types,
		notifier:   notifier,
		opsChannel: opsChannel,
		logger:     logger.With("draw"),
		now:        time.Now,
	}
}

// Execute runs a scheduled draw for the type. Scheduled draws carry no actor
// and bypass the permission gate.
func (s *Service) Execute(ctx context.Context, typeID models.TypeID) (*models.PendingWinner, error) {
	gt, ok := s.types.Get(typeID)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, fmt.Sprintf("unknown giveaway type: %s", typeID))
	}
	return s.execute(ctx, gt)
}

// ExecuteManual runs an admin-triggered draw. The actor must hold the draw
// permission and the type's execution window must be open.
func (s *Service) ExecuteManual(ctx context.Context, actor string, typeID models.TypeID) (*models.PendingWinner, error) {
	gt, ok := s.types.Get(typeID)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, fmt.Sprintf("unknown giveaway type: %s", typeID))
	}
	if allowed, reason := s.gate.CanExecuteNow(actor, typeID); !allowed {
		return nil, apperrors.New(apperrors.ErrCodeForbidden, reason)
	}
	return s.execute(ctx, gt)
}

func (s *Service) execute(ctx context.Context, gt models.GiveawayType) (*models.PendingWinner, error) {
	typeID := gt.ID
	date := models.DateOf(s.now())

	// One draw per type per date, no matter how it was triggered.
	lockKey := concurrency.Key("draw", string(typeID), date)
	guard, err := s.locks.Acquire(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	drawn, err := s.store.PendingWinnerForDate(typeID, date)
	if err != nil {
		return nil, err
	}
	if drawn {
		return nil, apperrors.New(apperrors.ErrCodeConflict,
			fmt.Sprintf("Draw already executed for %s on %s", typeID, date))
	}

	participants, err := s.store.ActiveParticipants(typeID)
	if err != nil {
		return nil, err
	}
	if len(participants) == 0 {
		s.logger.Info().Str("giveaway_type", string(typeID)).Str("date", date).
			Msg("No participants, skipping draw")
		return nil, apperrors.New(apperrors.ErrCodeNotFound,
			fmt.Sprintf("No active participants for %s", typeID))
	}

	// Shuffle first so the pick never depends on the order rows came off disk.
	if err := random.Shuffle(participants); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Winner selection failed")
	}
	winner, err := random.Pick(participants)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "Winner selection failed")
	}

	pending := models.PendingWinner{
		ID:           uuid.New().String(),
		Date:         date,
		UserID:       winner.UserID,
		DisplayName:  winner.DisplayName,
		AccountID:    winner.AccountID,
		Prize:        gt.Prize,
		Status:       models.PaymentStatusPending,
		SelectedAt:   s.now(),
		GiveawayType: typeID,
	}
	if err := s.store.AppendPendingWinner(typeID, pending); err != nil {
		return nil, err
	}

	for _, p := range participants {
		rec := models.HistoryRecord{
			Date:         date,
			UserID:       p.UserID,
			DisplayName:  p.DisplayName,
			AccountID:    p.AccountID,
			Balance:      p.Balance,
			WonPrize:     p.UserID == winner.UserID && p.AccountID == winner.AccountID,
			GiveawayType: typeID,
		}
		if rec.WonPrize {
			rec.PrizeAmount = gt.Prize
		}
		if err := s.store.AppendHistory(typeID, rec); err != nil {
			return nil, err
		}
	}

	if err := s.store.BeginPeriod(typeID); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("giveaway_type", string(typeID)).
		Str("date", date).
		Str("winner_id", pending.ID).
		Int64("user_id", pending.UserID).
		Int("participants", len(participants)).
		Msg("Draw executed")

	s.notifyOps(ctx, &pending, len(participants))
	return &pending, nil
}

// notifyOps posts the awaiting-payment notice. The draw is already committed,
// so a delivery failure is logged and absorbed.
func (s *Service) notifyOps(ctx context.Context, w *models.PendingWinner, participants int) {
	if s.notifier == nil || s.opsChannel == 0 {
		return
	}
	text := fmt.Sprintf(
		"🎲 <b>%s draw complete</b>\n\nWinner: %s\nAccount: <code>%s</code>\nPrize: $%.2f\nParticipants: %d\n\nAwaiting payment confirmation (id <code>%s</code>).",
		w.GiveawayType, w.DisplayName, w.AccountID, w.Prize, participants, w.ID,
	)
	if err := s.notifier.SendMessage(ctx, s.opsChannel, text); err != nil {
		s.logger.Warn().Err(err).Str("winner_id", w.ID).Msg("Failed to send draw notice")
	}
}
