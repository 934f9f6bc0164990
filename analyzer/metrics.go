package analyzer

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/puzpuzpuz/xsync/v3"
	"github.com/querypulse/querypulse/schema"
)

// Registry keeps running metrics per normalized query, keyed by a content
// hash of the query text. Counters are additive; updates from concurrent
// analyses never lose increments.
type Registry struct {
	metrics     *xsync.MapOf[string, schema.QueryMetrics]
	slowQueryMs float64
}

// NewRegistry creates an empty registry with the given slow-query threshold
// in milliseconds.
func NewRegistry(slowQueryMs float64) *Registry {
	return &Registry{
		metrics:     xsync.NewMapOf[string, schema.QueryMetrics](),
		slowQueryMs: slowQueryMs,
	}
}

// Observe folds one execution into the running metrics for the query and
// returns the updated snapshot. A negative cacheHitRatio or accuracy means
// the value was undefined for this execution and the previous one is kept.
func (r *Registry) Observe(query string, durationMs, cacheHitRatio, accuracy float64) schema.QueryMetrics {
	normalized := NormalizeQuery(query)
	hash := HashQuery(normalized)

	updated, _ := r.metrics.Compute(hash, func(old schema.QueryMetrics, loaded bool) (schema.QueryMetrics, bool) {
		m := old
		if !loaded {
			m = schema.QueryMetrics{
				QueryHash:          hash,
				Query:              normalized,
				CacheHitRatio:      -1,
				EstimationAccuracy: -1,
			}
		}
		m.Executions++
		m.TotalTimeMs += durationMs
		m.AvgTimeMs = m.TotalTimeMs / float64(m.Executions)
		if durationMs > r.slowQueryMs {
			m.SlowExecutions++
		}
		if cacheHitRatio >= 0 {
			m.CacheHitRatio = cacheHitRatio
		}
		if accuracy >= 0 {
			m.EstimationAccuracy = accuracy
		}
		return m, false
	})
	return updated
}

// Get returns the metrics snapshot for a raw query, if one exists.
func (r *Registry) Get(query string) (schema.QueryMetrics, bool) {
	return r.metrics.Load(HashQuery(NormalizeQuery(query)))
}

// Snapshot returns all tracked metrics ordered by cumulative time descending,
// so the most expensive queries come first.
func (r *Registry) Snapshot() []schema.QueryMetrics {
	var out []schema.QueryMetrics
	r.metrics.Range(func(_ string, m schema.QueryMetrics) bool {
		out = append(out, m)
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].TotalTimeMs != out[j].TotalTimeMs {
			return out[i].TotalTimeMs > out[j].TotalTimeMs
		}
		return out[i].QueryHash < out[j].QueryHash
	})
	return out
}

// Len returns the number of distinct tracked queries.
func (r *Registry) Len() int {
	return r.metrics.Size()
}

// NormalizeQuery collapses whitespace runs and strips the trailing statement
// terminator so formatting variants of the same query share one metrics row.
func NormalizeQuery(query string) string {
	collapsed := strings.Join(strings.Fields(query), " ")
	return strings.TrimRight(collapsed, "; ")
}

// HashQuery returns the fixed-width hex content hash used as a metrics key.
func HashQuery(normalized string) string {
	return fmt.Sprintf("%016x", xxhash.Sum64String(normalized))
}
