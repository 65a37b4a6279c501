// Package trading is the Account Validation Service collaborator: it checks
// that a submitted trading account exists, is a live (not demo) account, and
// meets the minimum balance.
package trading

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	apperrors "reward-giveaway-backend/internal/common/errors"
	"reward-giveaway-backend/internal/common/logger"

	"github.com/rs/zerolog"
)

// Account is the validation result for an existing account.
type Account struct {
	AccountID string  `json:"account_id"`
	IsLive    bool    `json:"is_live"`
	Balance   float64 `json:"balance"`
}

type Client struct {
	httpClient *http.Client
	baseURL    string
	minBalance float64
	logger     zerolog.Logger
}

func NewClient(baseURL string, minBalance float64) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL:    baseURL,
		minBalance: minBalance,
		logger:     logger.With("trading"),
	}
}

// CheckAccount validates an account. Failures come back as typed validation
// errors with kind not_found, not_live, insufficient_balance or unknown; the
// registration pipeline treats all of them as retryable.
func (c *Client) CheckAccount(ctx context.Context, accountID string) (*Account, error) {
	endpoint := fmt.Sprintf("%s/api/accounts/%s", c.baseURL, url.PathEscape(accountID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, apperrors.NewValidationError(apperrors.ReasonUnknown, accountID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error().Err(err).Str("account_id", accountID).Msg("Account validation request failed")
		return nil, apperrors.NewValidationError(apperrors.ReasonUnknown, accountID)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, apperrors.NewValidationError(apperrors.ReasonNotFound, accountID)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn().Int("status", resp.StatusCode).Str("account_id", accountID).
			Msg("Unexpected account validation status")
		return nil, apperrors.NewValidationError(apperrors.ReasonUnknown, accountID)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewValidationError(apperrors.ReasonUnknown, accountID)
	}

	var account Account
	if err := json.Unmarshal(body, &account); err != nil {
		return nil, apperrors.NewValidationError(apperrors.ReasonUnknown, accountID)
	}

	if !account.IsLive {
		return nil, apperrors.NewValidationError(apperrors.ReasonNotLive, accountID)
	}
	if account.Balance < c.minBalance {
		return nil, apperrors.NewValidationError(apperrors.ReasonInsufficientBalance, accountID).
			WithDetail("balance", account.Balance).
			WithDetail("min_balance", c.minBalance)
	}

	return &account, nil
}
