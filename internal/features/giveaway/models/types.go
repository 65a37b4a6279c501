package models

import "time"

// TypeTable is the fixed set of reward programs keyed by identifier.
type TypeTable map[TypeID]GiveawayType

// NewTypeTable builds the program table with the configured prize amounts.
func NewTypeTable(dailyPrize, weeklyPrize, monthlyPrize, minBalance float64) TypeTable {
	return TypeTable{
		TypeDaily: {
			ID:          TypeDaily,
			Prize:       dailyPrize,
			Period:      24 * time.Hour,
			Cooldown:    24 * time.Hour,
			MinBalance:  minBalance,
			DisplayName: "Daily Giveaway",
		},
		TypeWeekly: {
			ID:          TypeWeekly,
			Prize:       weeklyPrize,
			Period:      7 * 24 * time.Hour,
			Cooldown:    7 * 24 * time.Hour,
			MinBalance:  minBalance,
			DisplayName: "Weekly Giveaway",
		},
		TypeMonthly: {
			ID:          TypeMonthly,
			Prize:       monthlyPrize,
			Period:      30 * 24 * time.Hour,
			Cooldown:    30 * 24 * time.Hour,
			MinBalance:  minBalance,
			DisplayName: "Monthly Giveaway",
		},
	}
}

// Get returns the program config for id.
func (t TypeTable) Get(id TypeID) (GiveawayType, bool) {
	gt, ok := t[id]
	return gt, ok
}

// IDs returns the known program identifiers in a stable order.
func (t TypeTable) IDs() []TypeID {
	ids := make([]TypeID, 0, len(t))
	for _, id := range []TypeID{TypeDaily, TypeWeekly, TypeMonthly} {
		if _, ok := t[id]; ok {
			ids = append(ids, id)
		}
	}
	return ids
}
