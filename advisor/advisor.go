// Package advisor derives index suggestions for a table from the engine's
// column statistics and a sample of recent slow executions. Every suggestion
// is advisory DDL text; nothing here executes schema changes.
package advisor

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

// ErrSlowSampleUnavailable marks that the engine exposes no slow-execution
// sample (extension absent). The advisor degrades to statistics-only
// suggestions in that case.
var ErrSlowSampleUnavailable = errors.New("advisor: slow-execution sample unavailable")

// Thresholds tunes the statistical cutoffs for suggestions.
type Thresholds struct {
	Cardinality float64 // Distinct count above which a column is high-cardinality
	Correlation float64 // Correlation magnitude above which ordering is exploitable
	SampleLimit int     // Max slow executions to pull per table
}

// DefaultThresholds returns the standard cutoffs.
func DefaultThresholds() Thresholds {
	return Thresholds{
		Cardinality: contract.DefaultCardinality,
		Correlation: contract.DefaultCorrelation,
		SampleLimit: contract.DefaultSampleLimit,
	}
}

// Advisor suggests indexes for a table. Construct one per statistics source.
type Advisor struct {
	source    contract.StatsSource
	threshold Thresholds
}

// New creates an Advisor over a statistics source.
func New(source contract.StatsSource, threshold Thresholds) *Advisor {
	return &Advisor{source: source, threshold: threshold}
}

// maxCompositeColumns caps the width of a composite suggestion.
const maxCompositeColumns = 3

// maxCoveringColumns caps the projection width considered for a covering
// suggestion.
const maxCoveringColumns = 5

// Suggest returns index suggestions for table in a deterministic order:
// single-column suggestions first (by column), then composite, then covering.
// An unreachable statistics source is an error; an absent slow sample only
// narrows the suggestion categories.
func (a *Advisor) Suggest(ctx context.Context, table string) ([]schema.IndexSuggestion, error) {
	stats, err := a.source.ColumnStats(ctx, table)
	if err != nil {
		return nil, fmt.Errorf("column statistics for %s: %w", table, err)
	}

	slow, err := a.source.SlowQueries(ctx, table, a.threshold.SampleLimit)
	if err != nil {
		if !errors.Is(err, ErrSlowSampleUnavailable) {
			return nil, fmt.Errorf("slow sample for %s: %w", table, err)
		}
		slow = nil
	}

	known := make(map[string]struct{}, len(stats))
	for _, s := range stats {
		known[strings.ToLower(s.Column)] = struct{}{}
	}

	var suggestions []schema.IndexSuggestion
	suggestions = append(suggestions, a.singleColumn(table, stats)...)
	suggestions = append(suggestions, a.composite(table, slow, known)...)
	suggestions = append(suggestions, a.covering(table, slow, known)...)
	return suggestions, nil
}

// singleColumn derives btree and bitmap-style suggestions from column
// statistics alone.
func (a *Advisor) singleColumn(table string, stats []schema.ColumnStat) []schema.IndexSuggestion {
	sorted := make([]schema.ColumnStat, len(stats))
	copy(sorted, stats)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Column < sorted[j].Column })

	var out []schema.IndexSuggestion
	for _, s := range sorted {
		switch {
		// Negative n_distinct is the engine reporting distinct values as a
		// fraction of row count; any negative value means the column scales
		// with the table and is effectively high-cardinality.
		case s.NDistinct < 0 || s.NDistinct > a.threshold.Cardinality:
			out = append(out, schema.IndexSuggestion{
				Kind:    schema.BTreeIndex,
				Table:   table,
				Columns: []string{s.Column},
				Reason:  "high cardinality",
				DDL:     fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s);", table, s.Column, table, s.Column),
			})
		case s.NDistinct > 1 && abs(s.Correlation) > a.threshold.Correlation:
			out = append(out, schema.IndexSuggestion{
				Kind:    schema.BitmapIndex,
				Table:   table,
				Columns: []string{s.Column},
				Reason:  "low cardinality with high correlation",
				DDL:     fmt.Sprintf("CREATE INDEX idx_%s_%s_brin ON %s USING brin (%s);", table, s.Column, table, s.Column),
			})
		}
	}
	return out
}

// composite counts how often each known column is filtered in multi-column
// predicates across the slow sample and suggests one composite index over the
// most frequent columns when at least two recur.
func (a *Advisor) composite(table string, slow []schema.SlowQuery, known map[string]struct{}) []schema.IndexSuggestion {
	freq := make(map[string]int)
	for _, sq := range slow {
		cols := keepKnown(filterColumns(sq.Query), known)
		if len(cols) < 2 {
			continue
		}
		for _, c := range cols {
			freq[c]++
		}
	}

	var recurring []string
	for col, n := range freq {
		if n >= 2 {
			recurring = append(recurring, col)
		}
	}
	if len(recurring) < 2 {
		return nil
	}

	// Frequency descending, ties lexicographic, capped for index width.
	sort.Slice(recurring, func(i, j int) bool {
		if freq[recurring[i]] != freq[recurring[j]] {
			return freq[recurring[i]] > freq[recurring[j]]
		}
		return recurring[i] < recurring[j]
	})
	if len(recurring) > maxCompositeColumns {
		recurring = recurring[:maxCompositeColumns]
	}

	joined := strings.Join(recurring, ", ")
	return []schema.IndexSuggestion{{
		Kind:    schema.CompositeIndex,
		Table:   table,
		Columns: recurring,
		Reason:  "columns frequently filtered together in slow executions (heuristic predicate parse)",
		DDL:     fmt.Sprintf("CREATE INDEX idx_%s_%s ON %s (%s);", table, strings.Join(recurring, "_"), table, joined),
	}}
}

// covering looks for a small projection list that repeats across the slow
// sample and suggests one covering index for it.
func (a *Advisor) covering(table string, slow []schema.SlowQuery, known map[string]struct{}) []schema.IndexSuggestion {
	type projection struct {
		cols  []string
		count int
	}
	seen := make(map[string]*projection)
	for _, sq := range slow {
		cols := keepKnown(projectionColumns(sq.Query, maxCoveringColumns), known)
		if len(cols) == 0 {
			continue
		}
		key := canonicalKey(cols)
		if p, ok := seen[key]; ok {
			p.count++
		} else {
			seen[key] = &projection{cols: cols, count: 1}
		}
	}

	var best *projection
	var bestKey string
	for key, p := range seen {
		if p.count < 2 {
			continue
		}
		if best == nil || p.count > best.count || (p.count == best.count && key < bestKey) {
			best, bestKey = p, key
		}
	}
	if best == nil {
		return nil
	}

	key := best.cols[0]
	ddl := fmt.Sprintf("CREATE INDEX idx_%s_%s_cov ON %s (%s)", table, strings.Join(best.cols, "_"), table, key)
	if len(best.cols) > 1 {
		ddl += fmt.Sprintf(" INCLUDE (%s)", strings.Join(best.cols[1:], ", "))
	}
	return []schema.IndexSuggestion{{
		Kind:    schema.CoveringIndex,
		Table:   table,
		Columns: best.cols,
		Reason:  fmt.Sprintf("projection of %d columns repeated across %d slow executions", len(best.cols), best.count),
		DDL:     ddl + ";",
	}}
}

func keepKnown(cols []string, known map[string]struct{}) []string {
	var out []string
	for _, c := range cols {
		if _, ok := known[c]; ok {
			out = append(out, c)
		}
	}
	return out
}

func abs(f float64) float64 {
	if f < 0 {
		return -f
	}
	return f
}
