// Package storage implements the per-type record files backing the reward
// programs. Four append-only CSV logs exist per giveaway type; participants
// is truncated and re-headered on period rollover, the other three are never
// truncated. Every write to a type's files passes through that type's single
// coarse lock, so interleaved appends cannot corrupt a row. Reads are not
// synchronized against writers: they serve display-level reporting, and every
// correctness-critical decision re-reads under the operation lock.
package storage

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"time"

	apperrors "reward-giveaway-backend/internal/common/errors"
	"reward-giveaway-backend/internal/common/logger"
	"reward-giveaway-backend/internal/features/giveaway/models"

	"github.com/rs/zerolog"
)

const (
	fileParticipants   = "participants.csv"
	fileWinners        = "winners.csv"
	filePendingWinners = "pending_winners.csv"
	fileHistory        = "history.csv"
)

var (
	participantsHeader = []string{"user_id", "display_name", "account_id", "balance", "registration_date", "status"}
	winnersHeader      = []string{"date", "user_id", "display_name", "account_id", "prize", "giveaway_type"}
	pendingHeader      = []string{"id", "date", "user_id", "display_name", "account_id", "prize", "status", "selected_time", "confirmed_time", "confirmed_by", "giveaway_type"}
	historyHeader      = []string{"date", "user_id", "display_name", "account_id", "balance", "won_prize", "prize_amount", "giveaway_type"}
)

// Store is the system of record for all giveaway types.
type Store struct {
	dir   string
	types models.TypeTable
	log   zerolog.Logger

	// one coarse write lock per giveaway type
	fileMu map[models.TypeID]*sync.Mutex

	// ownership registry: first successful registration of an account fixes
	// its owner for the lifetime of the system
	ownerMu sync.Mutex
	owners  map[string]int64
}

// Open prepares the data directory, the per-type files, and the account
// ownership registry rebuilt from history and current participants.
func Open(dir string, types models.TypeTable) (*Store, error) {
	s := &Store{
		dir:    dir,
		types:  types,
		log:    logger.With("storage"),
		fileMu: make(map[models.TypeID]*sync.Mutex),
		owners: make(map[string]int64),
	}

	for _, id := range types.IDs() {
		s.fileMu[id] = &sync.Mutex{}
		typeDir := s.typeDir(id)
		if err := os.MkdirAll(typeDir, 0o755); err != nil {
			return nil, apperrors.NewStorageError("mkdir", err)
		}
		for file, header := range map[string][]string{
			fileParticipants:   participantsHeader,
			fileWinners:        winnersHeader,
			filePendingWinners: pendingHeader,
			fileHistory:        historyHeader,
		} {
			if err := s.ensureHeader(filepath.Join(typeDir, file), header); err != nil {
				return nil, err
			}
		}
	}

	if err := s.rebuildOwners(); err != nil {
		return nil, err
	}

	s.log.Info().Str("dir", dir).Int("accounts", len(s.owners)).Msg("Record store opened")
	return s, nil
}

func (s *Store) typeDir(id models.TypeID) string {
	return filepath.Join(s.dir, string(id))
}

func (s *Store) path(id models.TypeID, file string) string {
	return filepath.Join(s.typeDir(id), file)
}

func (s *Store) lock(id models.TypeID) *sync.Mutex {
	return s.fileMu[id]
}

// BeginPeriod truncates and re-headers the participants file for a type at
// the start of its new period. The other three files are untouched.
func (s *Store) BeginPeriod(id models.TypeID) error {
	mu := s.lock(id)
	mu.Lock()
	defer mu.Unlock()

	f, err := os.Create(s.path(id, fileParticipants))
	if err != nil {
		return apperrors.NewStorageError("begin_period", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(participantsHeader); err != nil {
		return apperrors.NewStorageError("begin_period", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.NewStorageError("begin_period", err)
	}

	s.log.Info().Str("giveaway_type", string(id)).Msg("Participants file reset for new period")
	return nil
}

// AppendParticipant records an accepted registration and fixes the account's
// owner if this is the account's first successful registration.
func (s *Store) AppendParticipant(id models.TypeID, p models.Participant) error {
	row := []string{
		strconv.FormatInt(p.UserID, 10),
		p.DisplayName,
		p.AccountID,
		formatAmount(p.Balance),
		p.RegisteredAt.Format(time.RFC3339),
		string(p.Status),
	}
	if err := s.appendRow(id, fileParticipants, row); err != nil {
		return err
	}

	s.ownerMu.Lock()
	if _, ok := s.owners[p.AccountID]; !ok {
		s.owners[p.AccountID] = p.UserID
	}
	s.ownerMu.Unlock()
	return nil
}

// ActiveParticipants returns every active registration of the current period.
func (s *Store) ActiveParticipants(id models.TypeID) ([]models.Participant, error) {
	rows, err := s.readRows(id, fileParticipants)
	if err != nil {
		return nil, err
	}
	participants := make([]models.Participant, 0, len(rows))
	for _, row := range rows {
		p, err := parseParticipant(row)
		if err != nil {
			s.log.Warn().Err(err).Str("giveaway_type", string(id)).Msg("Skipping malformed participant row")
			continue
		}
		if p.Status == models.ParticipantStatusActive {
			participants = append(participants, p)
		}
	}
	return participants, nil
}

// AppendPendingWinner records a freshly selected winner.
func (s *Store) AppendPendingWinner(id models.TypeID, w models.PendingWinner) error {
	return s.appendRow(id, filePendingWinners, pendingRow(w))
}

// UpdatePendingWinner appends the mutated state of a pending winner; the
// latest row per winner id wins on read, keeping the file append-only.
func (s *Store) UpdatePendingWinner(id models.TypeID, w models.PendingWinner) error {
	return s.appendRow(id, filePendingWinners, pendingRow(w))
}

// PendingWinner returns the current state of the winner with the given id.
func (s *Store) PendingWinner(id models.TypeID, winnerID string) (*models.PendingWinner, error) {
	rows, err := s.readRows(id, filePendingWinners)
	if err != nil {
		return nil, err
	}
	var found *models.PendingWinner
	for _, row := range rows {
		w, err := parsePendingWinner(row)
		if err != nil {
			s.log.Warn().Err(err).Str("giveaway_type", string(id)).Msg("Skipping malformed pending winner row")
			continue
		}
		if w.ID == winnerID {
			found = &w
		}
	}
	return found, nil
}

// PendingWinnerForDate reports whether a winner was already drawn for the
// given period date, regardless of payment status.
func (s *Store) PendingWinnerForDate(id models.TypeID, date string) (bool, error) {
	rows, err := s.readRows(id, filePendingWinners)
	if err != nil {
		return false, err
	}
	for _, row := range rows {
		w, err := parsePendingWinner(row)
		if err != nil {
			continue
		}
		if w.Date == date {
			return true, nil
		}
	}
	return false, nil
}

// AppendConfirmedWinner archives a paid winner to the permanent winners log.
func (s *Store) AppendConfirmedWinner(id models.TypeID, w models.ConfirmedWinner) error {
	row := []string{
		w.Date,
		strconv.FormatInt(w.UserID, 10),
		w.DisplayName,
		w.AccountID,
		formatAmount(w.Prize),
		string(w.GiveawayType),
	}
	return s.appendRow(id, fileWinners, row)
}

// ConfirmedWinners returns the permanent winners log for a type.
func (s *Store) ConfirmedWinners(id models.TypeID) ([]models.ConfirmedWinner, error) {
	rows, err := s.readRows(id, fileWinners)
	if err != nil {
		return nil, err
	}
	winners := make([]models.ConfirmedWinner, 0, len(rows))
	for _, row := range rows {
		w, err := parseConfirmedWinner(row)
		if err != nil {
			s.log.Warn().Err(err).Str("giveaway_type", string(id)).Msg("Skipping malformed winner row")
			continue
		}
		winners = append(winners, w)
	}
	return winners, nil
}

// AppendHistory records a per-period outcome row. History rows are never
// mutated after write.
func (s *Store) AppendHistory(id models.TypeID, rec models.HistoryRecord) error {
	row := []string{
		rec.Date,
		strconv.FormatInt(rec.UserID, 10),
		rec.DisplayName,
		rec.AccountID,
		formatAmount(rec.Balance),
		strconv.FormatBool(rec.WonPrize),
		formatAmount(rec.PrizeAmount),
		string(rec.GiveawayType),
	}
	return s.appendRow(id, fileHistory, row)
}

// History returns every outcome row for a type.
func (s *Store) History(id models.TypeID) ([]models.HistoryRecord, error) {
	rows, err := s.readRows(id, fileHistory)
	if err != nil {
		return nil, err
	}
	records := make([]models.HistoryRecord, 0, len(rows))
	for _, row := range rows {
		rec, err := parseHistory(row)
		if err != nil {
			s.log.Warn().Err(err).Str("giveaway_type", string(id)).Msg("Skipping malformed history row")
			continue
		}
		records = append(records, rec)
	}
	return records, nil
}

// AccountOwner reports the fixed owner of an account, if any registration
// ever succeeded with it.
func (s *Store) AccountOwner(accountID string) (int64, bool) {
	s.ownerMu.Lock()
	defer s.ownerMu.Unlock()
	owner, ok := s.owners[accountID]
	return owner, ok
}

// AccountUsedBy returns the user who registered accountID in the current
// period of the given type, if any.
func (s *Store) AccountUsedBy(id models.TypeID, accountID string) (int64, bool, error) {
	participants, err := s.ActiveParticipants(id)
	if err != nil {
		return 0, false, err
	}
	for _, p := range participants {
		if p.AccountID == accountID {
			return p.UserID, true, nil
		}
	}
	return 0, false, nil
}

// HasActiveRegistration reports whether the user already holds an active
// registration in the current period of the given type.
func (s *Store) HasActiveRegistration(id models.TypeID, userID int64) (bool, error) {
	participants, err := s.ActiveParticipants(id)
	if err != nil {
		return false, err
	}
	for _, p := range participants {
		if p.UserID == userID {
			return true, nil
		}
	}
	return false, nil
}

// RegisteredOn reports whether the user already has a history row for the
// given date in the given type.
func (s *Store) RegisteredOn(id models.TypeID, userID int64, date string) (bool, error) {
	records, err := s.History(id)
	if err != nil {
		return false, err
	}
	for _, rec := range records {
		if rec.UserID == userID && rec.Date == date {
			return true, nil
		}
	}
	return false, nil
}

// UserStats aggregates the user's participations and distinct accounts across
// all types: history rows plus current-period registrations.
func (s *Store) UserStats(userID int64) (participations int, accounts map[string]struct{}, err error) {
	accounts = make(map[string]struct{})
	for _, id := range s.types.IDs() {
		records, err := s.History(id)
		if err != nil {
			return 0, nil, err
		}
		for _, rec := range records {
			if rec.UserID == userID {
				participations++
				accounts[rec.AccountID] = struct{}{}
			}
		}
		participants, err := s.ActiveParticipants(id)
		if err != nil {
			return 0, nil, err
		}
		for _, p := range participants {
			if p.UserID == userID {
				participations++
				accounts[p.AccountID] = struct{}{}
			}
		}
	}
	return participations, accounts, nil
}

// --- file plumbing ---

func (s *Store) ensureHeader(path string, header []string) error {
	info, err := os.Stat(path)
	if err == nil && info.Size() > 0 {
		return nil
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return apperrors.NewStorageError("ensure_header", err)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	if err := w.Write(header); err != nil {
		return apperrors.NewStorageError("ensure_header", err)
	}
	w.Flush()
	return w.Error()
}

func (s *Store) appendRow(id models.TypeID, file string, row []string) error {
	mu := s.lock(id)
	if mu == nil {
		return apperrors.New(apperrors.ErrCodeStorage, fmt.Sprintf("unknown giveaway type: %s", id))
	}
	mu.Lock()
	defer mu.Unlock()

	f, err := os.OpenFile(s.path(id, file), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return apperrors.NewStorageError("append", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row); err != nil {
		return apperrors.NewStorageError("append", err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return apperrors.NewStorageError("append", err)
	}
	return nil
}

func (s *Store) readRows(id models.TypeID, file string) ([][]string, error) {
	f, err := os.Open(s.path(id, file))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, apperrors.NewStorageError("read", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1

	var rows [][]string
	first := true
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewStorageError("read", err)
		}
		if first {
			first = false
			continue // header
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *Store) rebuildOwners() error {
	for _, id := range s.types.IDs() {
		records, err := s.History(id)
		if err != nil {
			return err
		}
		for _, rec := range records {
			if _, ok := s.owners[rec.AccountID]; !ok {
				s.owners[rec.AccountID] = rec.UserID
			}
		}
		participants, err := s.ActiveParticipants(id)
		if err != nil {
			return err
		}
		for _, p := range participants {
			if _, ok := s.owners[p.AccountID]; !ok {
				s.owners[p.AccountID] = p.UserID
			}
		}
	}
	return nil
}

// --- row codecs ---

func formatAmount(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func pendingRow(w models.PendingWinner) []string {
	confirmed := ""
	if w.ConfirmedAt != nil {
		confirmed = w.ConfirmedAt.Format(time.RFC3339)
	}
	return []string{
		w.ID,
		w.Date,
		strconv.FormatInt(w.UserID, 10),
		w.DisplayName,
		w.AccountID,
		formatAmount(w.Prize),
		string(w.Status),
		w.SelectedAt.Format(time.RFC3339),
		confirmed,
		w.ConfirmedBy,
		string(w.GiveawayType),
	}
}

func parseParticipant(row []string) (models.Participant, error) {
	if len(row) < 6 {
		return models.Participant{}, fmt.Errorf("participant row has %d fields", len(row))
	}
	userID, err := strconv.ParseInt(row[0], 10, 64)
	if err != nil {
		return models.Participant{}, fmt.Errorf("user_id: %w", err)
	}
	balance, err := strconv.ParseFloat(row[3], 64)
	if err != nil {
		return models.Participant{}, fmt.Errorf("balance: %w", err)
	}
	registeredAt, err := time.Parse(time.RFC3339, row[4])
	if err != nil {
		return models.Participant{}, fmt.Errorf("registration_date: %w", err)
	}
	return models.Participant{
		UserID:       userID,
		DisplayName:  row[1],
		AccountID:    row[2],
		Balance:      balance,
		RegisteredAt: registeredAt,
		Status:       models.ParticipantStatus(row[5]),
	}, nil
}

func parsePendingWinner(row []string) (models.PendingWinner, error) {
	if len(row) < 11 {
		return models.PendingWinner{}, fmt.Errorf("pending winner row has %d fields", len(row))
	}
	userID, err := strconv.ParseInt(row[2], 10, 64)
	if err != nil {
		return models.PendingWinner{}, fmt.Errorf("user_id: %w", err)
	}
	prize, err := strconv.ParseFloat(row[5], 64)
	if err != nil {
		return models.PendingWinner{}, fmt.Errorf("prize: %w", err)
	}
	selectedAt, err := time.Parse(time.RFC3339, row[7])
	if err != nil {
		return models.PendingWinner{}, fmt.Errorf("selected_time: %w", err)
	}
	w := models.PendingWinner{
		ID:           row[0],
		Date:         row[1],
		UserID:       userID,
		DisplayName:  row[3],
		AccountID:    row[4],
		Prize:        prize,
		Status:       models.PaymentStatus(row[6]),
		SelectedAt:   selectedAt,
		ConfirmedBy:  row[9],
		GiveawayType: models.TypeID(row[10]),
	}
	if row[8] != "" {
		confirmedAt, err := time.Parse(time.RFC3339, row[8])
		if err != nil {
			return models.PendingWinner{}, fmt.Errorf("confirmed_time: %w", err)
		}
		w.ConfirmedAt = &confirmedAt
	}
	return w, nil
}

func parseConfirmedWinner(row []string) (models.ConfirmedWinner, error) {
	if len(row) < 6 {
		return models.ConfirmedWinner{}, fmt.Errorf("winner row has %d fields", len(row))
	}
	userID, err := strconv.ParseInt(row[1], 10, 64)
	if err != nil {
		return models.ConfirmedWinner{}, fmt.Errorf("user_id: %w", err)
	}
	prize, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return models.ConfirmedWinner{}, fmt.Errorf("prize: %w", err)
	}
	return models.ConfirmedWinner{
		Date:         row[0],
		UserID:       userID,
		DisplayName:  row[2],
		AccountID:    row[3],
		Prize:        prize,
		GiveawayType: models.TypeID(row[5]),
	}, nil
}

func parseHistory(row []string) (models.HistoryRecord, error) {
	if len(row) < 8 {
		return models.HistoryRecord{}, fmt.Errorf("history row has %d fields", len(row))
	}
	userID, err := strconv.ParseInt(row[1], 10, 64)
	if err != nil {
		return models.HistoryRecord{}, fmt.Errorf("user_id: %w", err)
	}
	balance, err := strconv.ParseFloat(row[4], 64)
	if err != nil {
		return models.HistoryRecord{}, fmt.Errorf("balance: %w", err)
	}
	wonPrize, err := strconv.ParseBool(row[5])
	if err != nil {
		return models.HistoryRecord{}, fmt.Errorf("won_prize: %w", err)
	}
	prizeAmount, err := strconv.ParseFloat(row[6], 64)
	if err != nil {
		return models.HistoryRecord{}, fmt.Errorf("prize_amount: %w", err)
	}
	return models.HistoryRecord{
		Date:         row[0],
		UserID:       userID,
		DisplayName:  row[2],
		AccountID:    row[3],
		Balance:      balance,
		WonPrize:     wonPrize,
		PrizeAmount:  prizeAmount,
		GiveawayType: models.TypeID(row[7]),
	}, nil
}
