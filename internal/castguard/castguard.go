// Package castguard reports value loss introduced by type narrowing.
//
// Transforms repeatedly convert free-text cells into dates, numbers and
// booleans. Every conversion can silently drop data, so each narrowing step
// records the meaningful-cell count before and after and reports the
// difference here. Reporting is warn-only: a lossy cast never aborts a run,
// it shows up in the logs and the metrics backend instead.
package castguard

import (
	"log"

	"moonwalketl/internal/metrics"
)

// DateLossRateThreshold is the fraction of lost date cells above which Check
// escalates from a plain count warning to a rate warning.
const DateLossRateThreshold = 0.05

// Meaningful counts cells that carry a value: non-nil and, for strings,
// non-empty after the CSV reader's trimming.
func Meaningful(col []any) int {
	n := 0
	for _, v := range col {
		switch x := v.(type) {
		case nil:
		case string:
			if x != "" {
				n++
			}
		default:
			n++
		}
	}
	return n
}

// Check compares meaningful-cell counts around a narrowing cast and logs the
// loss when after < before. target names the destination kind ("date",
// "float", "int", "bool") and feeds the rate heuristic: date columns losing
// more than DateLossRateThreshold of their values get a louder warning since
// that usually means a new export format rather than stray garbage.
func Check(tableName, column, target string, before, after int) {
	if after >= before {
		return
	}
	lost := before - after
	metrics.IncCounter(metrics.CastLossTotal, float64(lost), metrics.Labels{
		"table":  tableName,
		"column": column,
	})

	if target == "date" && before > 0 {
		rate := float64(lost) / float64(before)
		if rate > DateLossRateThreshold {
			log.Printf("[WARN] cast-loss %s.%s: %d of %d values failed %s parse (%.1f%%)",
				tableName, column, lost, before, target, rate*100)
			return
		}
	}
	log.Printf("[WARN] cast-loss %s.%s: %d values lost casting to %s",
		tableName, column, lost, target)
}
