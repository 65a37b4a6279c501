// Package telegram is the outbound messaging gateway and the community
// membership collaborator. All notices the core sends (success/rejection
// replies, public winner announcements, payout confirmations, ops alerts)
// leave through this client.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"reward-giveaway-backend/internal/common/logger"

	"github.com/rs/zerolog"
)

const apiBase = "https://api.telegram.org"

type Client struct {
	httpClient *http.Client
	token      string
	logger     zerolog.Logger
}

// RPSError reports a Telegram-side rate limit; callers may skip or retry
// the affected check.
type RPSError struct {
	Msg string
}

func (e *RPSError) Error() string {
	return e.Msg
}

// ChatMember carries the membership status of a user in a chat.
type ChatMember struct {
	Status string `json:"status"`
}

// Response is the envelope of every Telegram API reply.
type Response struct {
	Ok          bool            `json:"ok"`
	Result      json.RawMessage `json:"result,omitempty"`
	ErrorCode   int             `json:"error_code,omitempty"`
	Description string          `json:"description,omitempty"`
}

func NewClient(token string) *Client {
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		token:  token,
		logger: logger.With("telegram"),
	}
}

// SendMessage delivers text to a chat or user.
func (c *Client) SendMessage(ctx context.Context, chatID int64, text string) error {
	endpoint := fmt.Sprintf("%s/bot%s/sendMessage", apiBase, c.token)
	params := url.Values{
		"chat_id":    {strconv.FormatInt(chatID, 10)},
		"text":       {text},
		"parse_mode": {"HTML"},
	}

	var response Response
	if err := c.makeRequest(ctx, http.MethodPost, endpoint, params, &response); err != nil {
		c.logger.Error().Err(err).Int64("chat_id", chatID).Msg("Failed to send message")
		return err
	}
	if !response.Ok {
		if response.ErrorCode == http.StatusTooManyRequests {
			return &RPSError{Msg: response.Description}
		}
		return fmt.Errorf("telegram API error: %s", response.Description)
	}
	return nil
}

// IsMember reports whether the user belongs to the community chat. This is
// the Membership Service contract consumed by the registration pipeline.
func (c *Client) IsMember(ctx context.Context, communityID, userID int64) (bool, error) {
	endpoint := fmt.Sprintf("%s/bot%s/getChatMember", apiBase, c.token)
	params := url.Values{
		"chat_id": {strconv.FormatInt(communityID, 10)},
		"user_id": {strconv.FormatInt(userID, 10)},
	}

	var response Response
	if err := c.makeRequest(ctx, http.MethodGet, endpoint, params, &response); err != nil {
		return false, err
	}
	if !response.Ok {
		if response.ErrorCode == http.StatusTooManyRequests {
			return false, &RPSError{Msg: response.Description}
		}
		return false, fmt.Errorf("telegram API error: %s", response.Description)
	}

	var member ChatMember
	if err := json.Unmarshal(response.Result, &member); err != nil {
		return false, fmt.Errorf("failed to parse chat member: %w", err)
	}

	switch member.Status {
	case "creator", "administrator", "member", "restricted":
		return true, nil
	}
	return false, nil
}

func (c *Client) makeRequest(ctx context.Context, method, endpoint string, data url.Values, result interface{}) error {
	var req *http.Request
	var err error

	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(data.Encode()))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		if len(data) > 0 {
			endpoint = fmt.Sprintf("%s?%s", endpoint, data.Encode())
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if err := json.Unmarshal(body, result); err != nil {
		return fmt.Errorf("failed to parse response: %w", err)
	}
	return nil
}
