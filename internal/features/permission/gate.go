// Package permission is the authorization collaborator consumed by the
// admin-only operations: a boolean decision plus reason, nothing more. The
// policy store behind it is out of scope.
package permission

import (
	"fmt"
	"time"

	"reward-giveaway-backend/internal/features/giveaway/models"
)

// Actions checked by the core.
const (
	ActionConfirmPayment = "confirm_payment"
	ActionExecuteDraw    = "execute_draw"
	ActionBeginPeriod    = "begin_period"
)

// Gate is the decision contract the workflows consult.
type Gate interface {
	HasPermission(actor string, action string) bool
	// CanExecuteNow additionally enforces the actor's allowed-hours window,
	// evaluated against the fixed reference timezone.
	CanExecuteNow(actor string, giveawayType models.TypeID) (bool, string)
}

// HourWindow restricts an actor to a daily window, hours in [0,24).
// From == Until means unrestricted.
type HourWindow struct {
	From  int
	Until int
}

// StaticGate authorizes a fixed admin list, optionally limited to per-actor
// allowed hours in the reference timezone. An admin without an explicit
// grant set holds every action.
type StaticGate struct {
	admins map[string]struct{}
	grants map[string]map[string]struct{}
	hours  map[string]HourWindow
	loc    *time.Location
	now    func() time.Time
}

// NewStaticGate builds a gate for the given admin actors. tzName is the
// reference timezone for allowed-hours evaluation; an unknown name falls
// back to UTC.
func NewStaticGate(admins []string, hours map[string]HourWindow, tzName string) *StaticGate {
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		loc = time.UTC
	}
	set := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		set[a] = struct{}{}
	}
	if hours == nil {
		hours = make(map[string]HourWindow)
	}
	return &StaticGate{
		admins: set,
		grants: make(map[string]map[string]struct{}),
		hours:  hours,
		loc:    loc,
		now:    time.Now,
	}
}

// Restrict limits actor to the listed actions. Actors never restricted keep
// the full action set.
func (g *StaticGate) Restrict(actor string, actions ...string) {
	allowed := make(map[string]struct{}, len(actions))
	for _, a := range actions {
		allowed[a] = struct{}{}
	}
	g.grants[actor] = allowed
}

func (g *StaticGate) HasPermission(actor string, action string) bool {
	if _, ok := g.admins[actor]; !ok {
		return false
	}
	allowed, restricted := g.grants[actor]
	if !restricted {
		return true
	}
	_, ok := allowed[action]
	return ok
}

func (g *StaticGate) CanExecuteNow(actor string, giveawayType models.TypeID) (bool, string) {
	if !g.HasPermission(actor, ActionExecuteDraw) {
		return false, "actor is not authorized"
	}
	window, restricted := g.hours[actor]
	if !restricted || window.From == window.Until {
		return true, ""
	}
	hour := g.now().In(g.loc).Hour()
	if window.From < window.Until {
		if hour >= window.From && hour < window.Until {
			return true, ""
		}
	} else {
		// Window crosses midnight.
		if hour >= window.From || hour < window.Until {
			return true, ""
		}
	}
	return false, fmt.Sprintf("outside allowed hours (%02d:00-%02d:00 %s)", window.From, window.Until, g.loc)
}
