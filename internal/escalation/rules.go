package escalation

import (
	"sort"

	"github.com/maintenancehub/escalation-engine/internal/domain"
)

// SelectRule returns the rule governing wo, or nil when none matches.
//
// Precedence among matching rules:
//  1. a rule scoped to the work order's warehouse beats a global one
//  2. the smaller timeout wins (escalate sooner)
//  3. the smaller ID wins, so the choice is stable across sweeps
func SelectRule(rules []*domain.EscalationRule, wo *domain.WorkOrder) *domain.EscalationRule {
	var candidates []*domain.EscalationRule
	for _, r := range rules {
		if r.Matches(wo) {
			candidates = append(candidates, r)
		}
	}
	if len(candidates) == 0 {
		return nil
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		a, b := candidates[i], candidates[j]
		if (a.WarehouseID != nil) != (b.WarehouseID != nil) {
			return a.WarehouseID != nil
		}
		if a.TimeoutHours != b.TimeoutHours {
			return a.TimeoutHours < b.TimeoutHours
		}
		return a.ID < b.ID
	})
	return candidates[0]
}
