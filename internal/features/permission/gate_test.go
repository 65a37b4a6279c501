package permission

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"reward-giveaway-backend/internal/features/giveaway/models"
)

func fixedClock(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2026, 8, 31, hour, 30, 0, 0, time.UTC)
	}
}

func TestHasPermission(t *testing.T) {
	g := NewStaticGate([]string{"99", "100"}, nil, "UTC")

	assert.True(t, g.HasPermission("99", ActionConfirmPayment))
	assert.True(t, g.HasPermission("100", ActionExecuteDraw))
	assert.False(t, g.HasPermission("7", ActionConfirmPayment))
	assert.False(t, g.HasPermission("", ActionExecuteDraw))
}

func TestHasPermissionRestrictedActor(t *testing.T) {
	g := NewStaticGate([]string{"99", "100"}, nil, "UTC")
	g.Restrict("100", ActionConfirmPayment)

	// Restricted admins hold only their granted actions.
	assert.True(t, g.HasPermission("100", ActionConfirmPayment))
	assert.False(t, g.HasPermission("100", ActionExecuteDraw))
	assert.False(t, g.HasPermission("100", ActionBeginPeriod))

	// Unrestricted admins keep the full set.
	assert.True(t, g.HasPermission("99", ActionExecuteDraw))

	// A grant never promotes a non-admin.
	g.Restrict("7", ActionExecuteDraw)
	assert.False(t, g.HasPermission("7", ActionExecuteDraw))
}

func TestCanExecuteNowUnrestricted(t *testing.T) {
	g := NewStaticGate([]string{"99"}, nil, "UTC")

	ok, reason := g.CanExecuteNow("99", models.TypeDaily)
	assert.True(t, ok)
	assert.Empty(t, reason)

	ok, reason = g.CanExecuteNow("7", models.TypeDaily)
	assert.False(t, ok)
	assert.NotEmpty(t, reason)
}

func TestCanExecuteNowWithinWindow(t *testing.T) {
	g := NewStaticGate([]string{"99"}, map[string]HourWindow{
		"99": {From: 9, Until: 17},
	}, "UTC")

	g.now = fixedClock(12)
	ok, _ := g.CanExecuteNow("99", models.TypeDaily)
	assert.True(t, ok)

	g.now = fixedClock(8)
	ok, reason := g.CanExecuteNow("99", models.TypeDaily)
	assert.False(t, ok)
	assert.Contains(t, reason, "outside allowed hours")

	g.now = fixedClock(17)
	ok, _ = g.CanExecuteNow("99", models.TypeDaily)
	assert.False(t, ok)
}

func TestCanExecuteNowWindowCrossingMidnight(t *testing.T) {
	g := NewStaticGate([]string{"99"}, map[string]HourWindow{
		"99": {From: 22, Until: 2},
	}, "UTC")

	g.now = fixedClock(23)
	ok, _ := g.CanExecuteNow("99", models.TypeDaily)
	assert.True(t, ok)

	g.now = fixedClock(1)
	ok, _ = g.CanExecuteNow("99", models.TypeDaily)
	assert.True(t, ok)

	g.now = fixedClock(12)
	ok, _ = g.CanExecuteNow("99", models.TypeDaily)
	assert.False(t, ok)
}

func TestEmptyWindowMeansUnrestricted(t *testing.T) {
	g := NewStaticGate([]string{"99"}, map[string]HourWindow{
		"99": {From: 5, Until: 5},
	}, "UTC")

	g.now = fixedClock(3)
	ok, _ := g.CanExecuteNow("99", models.TypeDaily)
	assert.True(t, ok)
}

func TestUnknownTimezoneFallsBackToUTC(t *testing.T) {
	g := NewStaticGate([]string{"99"}, nil, "Not/AZone")
	assert.Equal(t, time.UTC, g.loc)
}
