// Package registration implements the multi-stage participation validator:
// an ordered, short-circuiting rejection pipeline that turns a submitted
// trading account id into an accepted or rejected registration, with a
// per-user-per-type attempt budget for the retryable stages.
package registration

import (
	"context"
	"fmt"
	"sync"
	"time"

	apperrors "reward-giveaway-backend/internal/common/errors"
	"reward-giveaway-backend/internal/common/logger"
	"reward-giveaway-backend/internal/common/validation"
	"reward-giveaway-backend/internal/concurrency"
	"reward-giveaway-backend/internal/features/giveaway/models"
	"reward-giveaway-backend/internal/features/giveaway/storage"
	"reward-giveaway-backend/internal/platform/trading"

	"github.com/rs/zerolog"
)

// AccountValidator is the external account validation collaborator.
type AccountValidator interface {
	CheckAccount(ctx context.Context, accountID string) (*trading.Account, error)
}

// MembershipChecker is the community membership collaborator.
type MembershipChecker interface {
	IsMember(ctx context.Context, communityID, userID int64) (bool, error)
}

type Service struct {
	locks       *concurrency.Manager
	store       *storage.Store
	accounts    AccountValidator
	membership  MembershipChecker
	types       models.TypeTable
	communityID int64
	maxAttempts int
	logger      zerolog.Logger

	// remaining attempt budget per (user, giveaway type)
	attemptsMu sync.Mutex
	attempts   map[string]int

	now func() time.Time
}

func NewService(
	locks *concurrency.Manager,
	store *storage.Store,
	accounts AccountValidator,
	membership MembershipChecker,
	types models.TypeTable,
	communityID int64,
	maxAttempts int,
) *Service {
	if maxAttempts <= 0 {
		maxAttempts = 4
	}
	return &Service{
		locks:       locks,
		store:       store,
		accounts:    accounts,
		membership:  membership,
		types:       types,
		communityID: communityID,
		maxAttempts: maxAttempts,
		logger:      logger.With("registration"),
		attempts:    make(map[string]int),
		now:         time.Now,
	}
}

// Register runs the full validation pipeline for one submission. The stages
// run in fixed order, cheapest and most certain rejections first, and the
// whole pipeline executes under a lock keyed by the exact submission so a
// redelivered duplicate is rejected instead of processed twice.
func (s *Service) Register(ctx context.Context, userID int64, displayName, accountID string, typeID models.TypeID) (*models.RegistrationResult, error) {
	gt, ok := s.types.Get(typeID)
	if !ok {
		return nil, apperrors.New(apperrors.ErrCodeBadRequest, fmt.Sprintf("unknown giveaway type: %s", typeID))
	}

	if s.locks.IsRateLimited(userID) {
		return nil, apperrors.New(apperrors.ErrCodeTooManyRequests, "Too many actions, slow down").
			WithUserID(userID)
	}

	accountID = validation.NormalizeAccountID(accountID)
	if err := validation.ValidateAccountID(accountID); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeBadRequest, "Invalid account id").
			WithUserID(userID)
	}

	// Stage 1: exclusive ownership of this exact submission. A second
	// concurrent submission for the identical pair short-circuits without
	// consuming an attempt.
	lockKey := concurrency.Key(fmt.Sprintf("user:%d", userID), "validate", accountID, string(typeID))
	if s.locks.InFlight(lockKey) {
		return nil, apperrors.NewAlreadyInProgressError(lockKey).WithUserID(userID)
	}
	guard, err := s.locks.Acquire(ctx, lockKey)
	if err != nil {
		return nil, err
	}
	defer guard.Release()

	return s.validate(ctx, userID, displayName, accountID, gt)
}

func (s *Service) validate(ctx context.Context, userID int64, displayName, accountID string, gt models.GiveawayType) (*models.RegistrationResult, error) {
	typeID := gt.ID
	today := models.DateOf(s.now())

	// Stage 2: already participating this period. Terminal, no attempt cost.
	active, err := s.store.HasActiveRegistration(typeID, userID)
	if err != nil {
		return nil, err
	}
	if active {
		return nil, apperrors.NewDuplicateRegistrationError(apperrors.ReasonPeriod, string(typeID)).
			WithUserID(userID)
	}

	// Stage 3: already registered today. Terminal, no attempt cost.
	registeredToday, err := s.store.RegisteredOn(typeID, userID, today)
	if err != nil {
		return nil, err
	}
	if registeredToday {
		return nil, apperrors.NewDuplicateRegistrationError(apperrors.ReasonToday, string(typeID)).
			WithUserID(userID)
	}

	// Stage 4: account already used this period by another user. Retryable.
	if usedBy, used, err := s.store.AccountUsedBy(typeID, accountID); err != nil {
		return nil, err
	} else if used && usedBy != userID {
		return nil, s.consumeAttempt(userID, typeID,
			apperrors.NewOwnershipConflictError(apperrors.ReasonUsedToday, accountID).WithUserID(userID))
	}

	// Stage 5: account historically owned by another user. Retryable.
	if owner, owned := s.store.AccountOwner(accountID); owned && owner != userID {
		return nil, s.consumeAttempt(userID, typeID,
			apperrors.NewOwnershipConflictError(apperrors.ReasonOwnedByOther, accountID).WithUserID(userID))
	}

	// Stage 6: external account validation. Retryable on every kind.
	account, err := s.accounts.CheckAccount(ctx, accountID)
	if err != nil {
		if appErr, ok := apperrors.AsAppError(err); ok && appErr.Retryable() {
			return nil, s.consumeAttempt(userID, typeID, appErr.WithUserID(userID))
		}
		return nil, err
	}

	// Stage 7: community membership. Terminal and free of attempt cost:
	// resubmitting cannot fix it, so burning budget would only punish the
	// user for a state they must change outside this flow.
	isMember, err := s.membership.IsMember(ctx, s.communityID, userID)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeTelegramAPI, "Membership check failed").
			WithUserID(userID)
	}
	if !isMember {
		return nil, apperrors.NewMembershipRequiredError(userID)
	}

	// Stage 8: persist and personalize.
	participant := models.Participant{
		UserID:       userID,
		DisplayName:  displayName,
		AccountID:    accountID,
		Balance:      account.Balance,
		RegisteredAt: s.now(),
		Status:       models.ParticipantStatusActive,
	}
	if err := s.store.AppendParticipant(typeID, participant); err != nil {
		return nil, err
	}
	s.resetAttempts(userID, typeID)

	participations, accounts, err := s.store.UserStats(userID)
	if err != nil {
		// The registration itself succeeded; degrade to a first-time notice.
		s.logger.Warn().Err(err).Int64("user_id", userID).Msg("Failed to load user stats")
		participations, accounts = 1, map[string]struct{}{accountID: {}}
	}

	kind := models.RegistrationFirstTime
	if participations > 1 {
		kind = models.RegistrationWithHistory
	}

	s.logger.Info().
		Int64("user_id", userID).
		Str("account_id", accountID).
		Str("giveaway_type", string(typeID)).
		Str("kind", string(kind)).
		Msg("Registration accepted")

	return &models.RegistrationResult{
		Participant:         participant,
		Kind:                kind,
		TotalParticipations: participations,
		UniqueAccounts:      len(accounts),
	}, nil
}

// RemainingAttempts returns the user's remaining budget for a type.
func (s *Service) RemainingAttempts(userID int64, typeID models.TypeID) int {
	s.attemptsMu.Lock()
	defer s.attemptsMu.Unlock()
	if remaining, ok := s.attempts[attemptKey(userID, typeID)]; ok {
		return remaining
	}
	return s.maxAttempts
}

// consumeAttempt decrements the budget for a retryable failure. Hitting zero
// clears all pending registration state for the pair and converts the error
// into the terminal max-attempts notice; the user restarts from scratch with
// a fresh budget.
func (s *Service) consumeAttempt(userID int64, typeID models.TypeID, cause *apperrors.AppError) error {
	s.attemptsMu.Lock()
	key := attemptKey(userID, typeID)
	remaining, ok := s.attempts[key]
	if !ok {
		remaining = s.maxAttempts
	}
	remaining--
	if remaining <= 0 {
		delete(s.attempts, key)
		s.attemptsMu.Unlock()
		s.logger.Info().Int64("user_id", userID).Str("giveaway_type", string(typeID)).
			Msg("Attempt budget exhausted, registration state cleared")
		return apperrors.NewMaxAttemptsError(userID, string(typeID))
	}
	s.attempts[key] = remaining
	s.attemptsMu.Unlock()

	return cause.WithDetail("remaining_attempts", remaining)
}

func (s *Service) resetAttempts(userID int64, typeID models.TypeID) {
	s.attemptsMu.Lock()
	delete(s.attempts, attemptKey(userID, typeID))
	s.attemptsMu.Unlock()
}

func attemptKey(userID int64, typeID models.TypeID) string {
	return fmt.Sprintf("%d:%s", userID, typeID)
}
