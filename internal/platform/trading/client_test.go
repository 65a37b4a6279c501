package trading

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "reward-giveaway-backend/internal/common/errors"
)

func newTestServer(t *testing.T, accounts map[string]Account) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/accounts/", func(w http.ResponseWriter, r *http.Request) {
		id := r.URL.Path[len("/api/accounts/"):]
		acc, ok := accounts[id]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		_ = json.NewEncoder(w).Encode(acc)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestCheckAccountLive(t *testing.T) {
	srv := newTestServer(t, map[string]Account{
		"123456": {AccountID: "123456", IsLive: true, Balance: 350},
	})
	c := NewClient(srv.URL, 100)

	acc, err := c.CheckAccount(context.Background(), "123456")
	require.NoError(t, err)
	assert.Equal(t, "123456", acc.AccountID)
	assert.InDelta(t, 350, acc.Balance, 0.001)
}

func TestCheckAccountNotFound(t *testing.T) {
	srv := newTestServer(t, nil)
	c := NewClient(srv.URL, 100)

	_, err := c.CheckAccount(context.Background(), "999999")
	require.Error(t, err)
	assert.Equal(t, apperrors.ErrCodeValidation, apperrors.CodeOf(err))
	assert.Equal(t, apperrors.ReasonNotFound, apperrors.ReasonOf(err))
}

func TestCheckAccountNotLive(t *testing.T) {
	srv := newTestServer(t, map[string]Account{
		"123456": {AccountID: "123456", IsLive: false, Balance: 350},
	})
	c := NewClient(srv.URL, 100)

	_, err := c.CheckAccount(context.Background(), "123456")
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonNotLive, apperrors.ReasonOf(err))
}

func TestCheckAccountInsufficientBalance(t *testing.T) {
	srv := newTestServer(t, map[string]Account{
		"123456": {AccountID: "123456", IsLive: true, Balance: 50},
	})
	c := NewClient(srv.URL, 100)

	_, err := c.CheckAccount(context.Background(), "123456")
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonInsufficientBalance, apperrors.ReasonOf(err))

	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, 50.0, appErr.Details["balance"])
	assert.Equal(t, 100.0, appErr.Details["min_balance"])
}

func TestCheckAccountServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	t.Cleanup(srv.Close)
	c := NewClient(srv.URL, 100)

	_, err := c.CheckAccount(context.Background(), "123456")
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonUnknown, apperrors.ReasonOf(err))
}

func TestCheckAccountUnreachable(t *testing.T) {
	c := NewClient("http://127.0.0.1:1", 100)

	_, err := c.CheckAccount(context.Background(), "123456")
	require.Error(t, err)
	assert.Equal(t, apperrors.ReasonUnknown, apperrors.ReasonOf(err))
}
