// Package payment implements the idempotent payout confirmation workflow.
// An admin confirms that a winner's prize was actually paid out; the pending
// record transitions pending_payment → payment_confirmed exactly once, and
// every announcement happens only after that transition is durable.
package payment

import (
	"context"
	"fmt"
	"time"

	"reward-giveaway-backend/internal/common/cache"
	apperrors "reward-giveaway-backend/internal/common/errors"
	"reward-giveaway-backend/internal/common/logger"
	"reward-giveaway-backend/internal/concurrency"
	"reward-giveaway-backend/internal/features/giveaway/models"
	"reward-giveaway-backend/internal/features/giveaway/storage"
	"reward-giveaway-backend/internal/features/permission"

	"github.com/rs/zerolog"
)

// Messenger delivers winner announcements and notifications.
type Messenger interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type Service struct {
	locks           *concurrency.Manager
	store           *storage.Store
	gate            permission.Gate
	cache           *cache.CacheService
	messenger       Messenger
	announceChannel int64
	opsChannel      int64
	logger          zerolog.Logger
	now             func() time.Time
}

func NewService(
	locks *concurrency.Manager,
	store *storage.Store,
	gate permission.Gate,
	cacheService *cache.CacheService,
	messenger Messenger,
	announceChannel int64,
	opsChannel int64,
) *Service {
	return &Service{
		locks:           locks,
		store:           store,
		gate:            gate,
		cache:           cacheService,
		messenger:       messenger,
		announceChannel: announceChannel,
		opsChannel:      opsChannel,
		logger:          logger.With("payment"),
		now:             time.Now,
	}
}

// Confirm marks the pending winner as paid. Safe to call any number of times,
// concurrently or not: exactly one call performs the transition, every other
// call reports a state conflict.
func (s *Service) Confirm(ctx context.Context, actor string, typeID models.TypeID, winnerID string) (*models.ConfirmResult, error) {
	if !s.gate.HasPermission(actor, permission.ActionConfirmPayment) {
		return nil, apperrors.New(apperrors.ErrCodeForbidden,
			fmt.Sprintf("Actor %s cannot confirm payments", actor))
	}

	// A confirmation already running for this winner means the caller is a
	// duplicate trigger: report it instead of queueing behind the lock.
	lockKey := concurrency.Key("payment", string(typeID), winnerID)
	if s.locks.InFlight(lockKey) {
		return nil, apperrors.NewAlreadyInProgressError(lockKey)
	}
	guard, err := s.locks.Acquire(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	winner, err := s.store.PendingWinner(typeID, winnerID)
	if err != nil {
		return nil, err
	}
	if winner == nil {
		return nil, apperrors.NewPaymentStateConflictError(apperrors.ReasonNotFound, winnerID)
	}
	switch winner.Status {
	case models.PaymentStatusPending:
	case models.PaymentStatusConfirmed:
		return nil, apperrors.NewPaymentStateConflictError(apperrors.ReasonAlreadyProcessed, winnerID)
	default:
		return nil, apperrors.NewPaymentStateConflictError(apperrors.ReasonUnexpectedStatus, winnerID).
			WithDetail("status", string(winner.Status))
	}

	confirmedAt := s.now()
	winner.Status = models.PaymentStatusConfirmed
	winner.ConfirmedAt = &confirmedAt
	winner.ConfirmedBy = actor
	if err := s.store.UpdatePendingWinner(typeID, *winner); err != nil {
		return nil, err
	}
	if err := s.store.AppendConfirmedWinner(typeID, models.ConfirmedWinner{
		Date:         winner.Date,
		UserID:       winner.UserID,
		DisplayName:  winner.DisplayName,
		AccountID:    winner.AccountID,
		Prize:        winner.Prize,
		GiveawayType: typeID,
	}); err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("winner_id", winnerID).
		Str("giveaway_type", string(typeID)).
		Str("confirmed_by", actor).
		Msg("Payment confirmed")

	// Post-commit side effects. The state transition above is the source of
	// truth; a failed announcement is logged for manual recovery and never
	// rolls the confirmation back.
	s.announce(ctx, typeID, winner)
	s.notifyWinner(ctx, typeID, winner)
	s.notifyOps(ctx, winner)
	s.invalidateCaches(ctx, typeID, winner.UserID)

	return &models.ConfirmResult{Winner: *winner, ConfirmedBy: actor}, nil
}

// announce publishes the winner to the public channel, at most once per
// winner even if announce and a retried confirm race.
func (s *Service) announce(ctx context.Context, typeID models.TypeID, w *models.PendingWinner) {
	if s.messenger == nil || s.announceChannel == 0 {
		return
	}
	key := concurrency.Key("payment", string(typeID), w.ID, "announce")
	guard, err := s.locks.Acquire(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("winner_id", w.ID).Msg("Skipping announcement, lock busy")
		return
	}
	defer guard.Release()

	text := fmt.Sprintf(
		"🏆 <b>%s giveaway winner</b>\n\n%s won $%.2f!\nAccount: <code>%s</code>\n\nCongratulations! 🎉",
		w.GiveawayType, w.DisplayName, w.Prize, w.AccountID,
	)
	if err := s.messenger.SendMessage(ctx, s.announceChannel, text); err != nil {
		s.logger.Error().Err(err).Str("winner_id", w.ID).
			Msg("Winner announcement failed, needs manual repost")
	}
}

func (s *Service) notifyWinner(ctx context.Context, typeID models.TypeID, w *models.PendingWinner) {
	if s.messenger == nil {
		return
	}
	key := concurrency.Key("payment", string(typeID), w.ID, "notify")
	guard, err := s.locks.Acquire(ctx, key)
	if err != nil {
		s.logger.Warn().Err(err).Str("winner_id", w.ID).Msg("Skipping winner notification, lock busy")
		return
	}
	defer guard.Release()

	text := fmt.Sprintf(
		"🎉 You won the %s giveaway!\n\n$%.2f has been paid to account <code>%s</code>.",
		w.GiveawayType, w.Prize, w.AccountID,
	)
	if err := s.messenger.SendMessage(ctx, w.UserID, text); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", w.UserID).Str("winner_id", w.ID).
			Msg("Winner notification failed")
	}
}

func (s *Service) notifyOps(ctx context.Context, w *models.PendingWinner) {
	if s.messenger == nil || s.opsChannel == 0 {
		return
	}
	text := fmt.Sprintf(
		"✅ Payout confirmed for the %s giveaway.\n\nWinner: %s\nAccount: <code>%s</code>\nPrize: $%.2f\nConfirmed by: %s",
		w.GiveawayType, w.DisplayName, w.AccountID, w.Prize, w.ConfirmedBy,
	)
	if err := s.messenger.SendMessage(ctx, s.opsChannel, text); err != nil {
		s.logger.Warn().Err(err).Str("winner_id", w.ID).Msg("Ops notice failed")
	}
}

func (s *Service) invalidateCaches(ctx context.Context, typeID models.TypeID, userID int64) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateGiveaway(ctx, string(typeID)); err != nil {
		s.logger.Warn().Err(err).Str("giveaway_type", string(typeID)).Msg("Cache invalidation failed")
	}
	if err := s.cache.InvalidateUser(ctx, userID); err != nil {
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Cache invalidation failed")
	}
}
