package models

import "time"

// TypeID identifies one of the independently scheduled reward programs.
type TypeID string

const (
	TypeDaily   TypeID = "daily"
	TypeWeekly  TypeID = "weekly"
	TypeMonthly TypeID = "monthly"
)

// GiveawayType is the immutable configuration of one reward program. Loaded
// once at startup, read-only afterwards.
type GiveawayType struct {
	ID          TypeID
	Prize       float64
	Period      time.Duration
	Cooldown    time.Duration
	MinBalance  float64
	DisplayName string
}

// ParticipantStatus is the lifecycle state of a registration row.
type ParticipantStatus string

const (
	ParticipantStatusActive ParticipantStatus = "active"
)

// Participant is one accepted registration in the current period.
type Participant struct {
	UserID       int64             `json:"user_id"`
	DisplayName  string            `json:"display_name"`
	AccountID    string            `json:"account_id"`
	Balance      float64           `json:"balance"`
	RegisteredAt time.Time         `json:"registered_at"`
	Status       ParticipantStatus `json:"status"`
}

// PaymentStatus is the payout state of a selected winner.
type PaymentStatus string

const (
	PaymentStatusPending   PaymentStatus = "pending_payment"
	PaymentStatusConfirmed PaymentStatus = "payment_confirmed"
)

// PendingWinner is a selected winner awaiting payout confirmation. It is
// mutated exactly once: PaymentStatusPending → PaymentStatusConfirmed.
type PendingWinner struct {
	ID           string        `json:"id"`
	Date         string        `json:"date"`
	UserID       int64         `json:"user_id"`
	DisplayName  string        `json:"display_name"`
	AccountID    string        `json:"account_id"`
	Prize        float64       `json:"prize"`
	Status       PaymentStatus `json:"status"`
	SelectedAt   time.Time     `json:"selected_at"`
	ConfirmedAt  *time.Time    `json:"confirmed_at,omitempty"`
	ConfirmedBy  string        `json:"confirmed_by,omitempty"`
	GiveawayType TypeID        `json:"giveaway_type"`
}

// HistoryRecord is the immutable per-period outcome of one participant.
type HistoryRecord struct {
	Date         string  `json:"date"`
	UserID       int64   `json:"user_id"`
	DisplayName  string  `json:"display_name"`
	AccountID    string  `json:"account_id"`
	Balance      float64 `json:"balance"`
	WonPrize     bool    `json:"won_prize"`
	PrizeAmount  float64 `json:"prize_amount"`
	GiveawayType TypeID  `json:"giveaway_type"`
}

// ConfirmedWinner is the permanent record appended on payout confirmation.
type ConfirmedWinner struct {
	Date         string  `json:"date"`
	UserID       int64   `json:"user_id"`
	DisplayName  string  `json:"display_name"`
	AccountID    string  `json:"account_id"`
	Prize        float64 `json:"prize"`
	GiveawayType TypeID  `json:"giveaway_type"`
}

// RegistrationKind distinguishes the success notice shown to the user.
type RegistrationKind string

const (
	RegistrationFirstTime   RegistrationKind = "first_time"
	RegistrationWithHistory RegistrationKind = "with_history"
)

// RegistrationResult is returned by a successful registration and feeds the
// personalized success notice.
type RegistrationResult struct {
	Participant         Participant      `json:"participant"`
	Kind                RegistrationKind `json:"kind"`
	TotalParticipations int              `json:"total_participations"`
	UniqueAccounts      int              `json:"unique_accounts"`
}

// RejectionResult reports a retryable rejection together with the remaining
// attempt budget.
type RejectionResult struct {
	RemainingAttempts int `json:"remaining_attempts"`
}

// ConfirmResult reports a completed payment confirmation.
type ConfirmResult struct {
	Winner      PendingWinner `json:"winner"`
	ConfirmedBy string        `json:"confirmed_by"`
}

// DateOf formats t as the period date key used across the record files.
func DateOf(t time.Time) string {
	return t.Format("2006-01-02")
}
