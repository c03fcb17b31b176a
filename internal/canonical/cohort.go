package canonical

import (
	"log"
	"time"
)

// CohortMap maps a canonical customer id to the month of that customer's
// first activity. It is produced by the customers transform and consumed by
// sales; passing it explicitly keeps the transforms independent of ordering
// accidents.
type CohortMap map[string]time.Time

// MonthsSinceCohort is the whole-month distance from cohort to order month.
// A negative value means an order predates the customer's recorded signup;
// that is a data anomaly worth a warning, but the value is kept so the
// inconsistency stays visible downstream.
func MonthsSinceCohort(order, cohort time.Time) int64 {
	months := int64(order.Year()-cohort.Year())*12 + int64(order.Month()-cohort.Month())
	if months < 0 {
		log.Printf("[WARN] order month %s predates cohort %s (months=%d)",
			order.Format("2006-01"), cohort.Format("2006-01"), months)
	}
	return months
}
