package canonical

import (
	"log"
	"sort"
	"time"

	"moonwalketl/internal/config"
)

// Period is a half-open-ended coverage window: a subscription payment covers
// orders with From <= earned <= Until.
type Period struct {
	From  time.Time
	Until time.Time
}

// SubscriptionWindows holds the merged coverage periods per customer.
type SubscriptionWindows map[string][]Period

// BuildSubscriptionWindows derives coverage periods from subscription
// payment dates. Each payment covers SubscriptionValidityDays from its date;
// overlapping or touching periods for the same customer are merged so a
// renewal extends coverage instead of stacking it.
func BuildSubscriptionWindows(payments map[string][]time.Time) SubscriptionWindows {
	out := make(SubscriptionWindows, len(payments))
	merged := 0
	for customer, dates := range payments {
		if len(dates) == 0 {
			continue
		}
		sorted := append([]time.Time{}, dates...)
		sort.Slice(sorted, func(i, j int) bool { return sorted[i].Before(sorted[j]) })

		var periods []Period
		for _, d := range sorted {
			p := Period{From: d, Until: d.AddDate(0, 0, config.SubscriptionValidityDays)}
			if n := len(periods); n > 0 && !p.From.After(periods[n-1].Until) {
				if p.Until.After(periods[n-1].Until) {
					periods[n-1].Until = p.Until
				}
				merged++
				continue
			}
			periods = append(periods, p)
		}
		out[customer] = periods
	}
	if merged > 0 {
		log.Printf("[WARN] merged %d overlapping subscription periods", merged)
	}
	return out
}

// Covered reports whether a customer's order on the given date falls inside
// one of their subscription windows.
func (w SubscriptionWindows) Covered(customer string, date time.Time) bool {
	for _, p := range w[customer] {
		if !date.Before(p.From) && !date.After(p.Until) {
			return true
		}
	}
	return false
}
