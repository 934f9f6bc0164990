package analyzer

import (
	"fmt"

	"github.com/querypulse/querypulse/schema"
)

// bufferHitFloor is the cache hit ratio below which the working set is
// considered to exceed available buffer memory.
const bufferHitFloor = 0.9

// staleStatsCeiling is the estimation accuracy below which planner
// statistics are considered stale.
const staleStatsCeiling = 0.1

// deriveRecommendations turns traversal findings into ordered advisory
// recommendations. Derivation is pure: same stats, same recommendations.
func deriveRecommendations(stats *planStats) []schema.Recommendation {
	var recs []schema.Recommendation

	for _, ineff := range stats.inefficiencies {
		switch ineff.Kind {
		case "Sequential Scan":
			recs = append(recs, schema.Recommendation{
				Severity: schema.CriticalSeverity,
				Category: "index",
				Message: fmt.Sprintf("%s; an index on the filter columns would avoid scanning %d rows",
					ineff.Detail, ineff.ActualRows),
				Remediation: fmt.Sprintf("CREATE INDEX ON %s (<filter columns>);", relationOrUnknown(ineff.Relation)),
			})
		case "Nested Loop":
			recs = append(recs, schema.Recommendation{
				Severity: schema.HighSeverity,
				Category: "join",
				Message: fmt.Sprintf("%s; consider indexing the join keys or restructuring toward a hash join",
					ineff.Detail),
			})
		}
	}

	if ratio := stats.cacheHitRatio(); ratio >= 0 && ratio < bufferHitFloor {
		recs = append(recs, schema.Recommendation{
			Severity: schema.MediumSeverity,
			Category: "buffers",
			Message: fmt.Sprintf("buffer cache hit ratio %.2f is below %.2f; the working set may not fit in memory",
				ratio, bufferHitFloor),
		})
	}

	if acc := stats.accuracy(); stats.accuracyDefined && acc < staleStatsCeiling {
		remediation := "ANALYZE;"
		if stats.worstRelation != "" {
			remediation = fmt.Sprintf("ANALYZE %s;", stats.worstRelation)
		}
		recs = append(recs, schema.Recommendation{
			Severity: schema.MediumSeverity,
			Category: "statistics",
			Message: fmt.Sprintf("row estimates are off by more than %.0fx; planner statistics look stale",
				1/staleStatsCeiling),
			Remediation: remediation,
		})
	}

	return recs
}
