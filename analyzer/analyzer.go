// Package analyzer executes plan-producing variants of read-only queries and
// derives performance signals and recommendations from the resulting
// execution-plan trees.
package analyzer

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

// ErrNotReadOnly is returned when a mutating or unparseable statement is
// submitted for analysis. No execution is attempted.
var ErrNotReadOnly = errors.New("analyzer: only read-only statements can be analyzed")

// AnalysisError wraps a failure to plan-analyze a query. The analyzer never
// silently substitutes a different query or returns partial results.
type AnalysisError struct {
	Query string
	Err   error
}

func (e *AnalysisError) Error() string {
	return fmt.Sprintf("analysis failed for query %q: %v", truncateQuery(e.Query, 80), e.Err)
}

func (e *AnalysisError) Unwrap() error { return e.Err }

// Thresholds tunes when plan nodes are flagged and when executions count as slow.
type Thresholds struct {
	SeqScanRows      int64         // Sequential scan row count that flags an inefficiency
	NestedLoopRows   int64         // Nested loop row count that flags an inefficiency
	SlowQueryMs      float64       // Executions above this duration count as slow
	StatementTimeout time.Duration // Same timeout discipline as ordinary traffic
}

// DefaultThresholds returns the standard flagging thresholds.
func DefaultThresholds() Thresholds {
	return Thresholds{
		SeqScanRows:      contract.DefaultSeqScanRows,
		NestedLoopRows:   contract.DefaultNestedLoopRows,
		SlowQueryMs:      contract.DefaultSlowQueryMs,
		StatementTimeout: contract.DefaultStatementTimeout,
	}
}

// Analyzer runs EXPLAIN-instrumented executions against a relational engine
// and keeps running per-query metrics.
type Analyzer struct {
	db        *sql.DB
	registry  *Registry
	store     contract.MetricsStore // optional durable mirror, may be nil
	threshold Thresholds
}

// Option customizes an Analyzer.
type Option func(*Analyzer)

// WithThresholds overrides the default flagging thresholds.
func WithThresholds(t Thresholds) Option {
	return func(a *Analyzer) { a.threshold = t }
}

// WithMetricsStore mirrors running metrics into a durable store. Store
// failures are logged, never surfaced to analysis callers.
func WithMetricsStore(store contract.MetricsStore) Option {
	return func(a *Analyzer) { a.store = store }
}

// New creates an Analyzer over a database handle.
func New(db *sql.DB, opts ...Option) *Analyzer {
	a := &Analyzer{
		db:        db,
		threshold: DefaultThresholds(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.registry = NewRegistry(a.threshold.SlowQueryMs)
	return a
}

// Registry exposes the in-memory metrics registry, mainly for status
// reporting and tests.
func (a *Analyzer) Registry() *Registry { return a.registry }

// Analyze wraps the query in a plan-producing execution request, runs it
// end-to-end, and derives metrics and recommendations from the plan tree.
// Non-read statements are rejected before touching the database.
func (a *Analyzer) Analyze(ctx context.Context, query string, args ...any) (*schema.AnalysisResult, error) {
	if err := ensureReadOnly(query); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, a.threshold.StatementTimeout)
	defer cancel()

	wrapped := "EXPLAIN (ANALYZE, BUFFERS, FORMAT JSON) " + query

	start := time.Now()
	var planJSON []byte
	if err := a.db.QueryRowContext(ctx, wrapped, args...).Scan(&planJSON); err != nil {
		return nil, &AnalysisError{Query: query, Err: err}
	}
	durationMs := float64(time.Since(start)) / float64(time.Millisecond)

	root, err := parsePlan(planJSON)
	if err != nil {
		return nil, &AnalysisError{Query: query, Err: err}
	}

	stats := walkPlan(root, a.threshold)

	metrics := a.registry.Observe(query, durationMs, stats.cacheHitRatio(), stats.accuracy())
	if a.store != nil {
		if err := a.store.Record(ctx, metrics); err != nil {
			contract.LogWarn("metrics store record failed", err)
		}
	}

	return &schema.AnalysisResult{
		Query:           query,
		DurationMs:      durationMs,
		Plan:            root,
		Metrics:         metrics,
		Inefficiencies:  stats.inefficiencies,
		Recommendations: deriveRecommendations(stats),
		UsesIndex:       stats.usesIndex,
	}, nil
}

// readOnlyPrefixes are the statement forms the analyzer will execute.
// Everything else fails closed without touching the database.
var readOnlyPrefixes = []string{"select", "with", "values", "table"}

// leadingCommentRe strips SQL comments before the first keyword.
var leadingCommentRe = regexp.MustCompile(`^(\s*(--[^\n]*\n|/\*.*?\*/))*\s*`)

func ensureReadOnly(query string) error {
	trimmed := leadingCommentRe.ReplaceAllString(query, "")
	if trimmed == "" {
		return fmt.Errorf("%w: empty statement", ErrNotReadOnly)
	}

	lowered := strings.ToLower(trimmed)
	for _, prefix := range readOnlyPrefixes {
		if strings.HasPrefix(lowered, prefix) {
			// CTEs can smuggle writes: WITH x AS (DELETE ...) SELECT ...
			if prefix == "with" && mutatingKeywordRe.MatchString(lowered) {
				return fmt.Errorf("%w: data-modifying CTE", ErrNotReadOnly)
			}
			return nil
		}
	}
	return fmt.Errorf("%w: statement starts with %q", ErrNotReadOnly, firstWord(lowered))
}

var mutatingKeywordRe = regexp.MustCompile(`\b(insert|update|delete|merge)\b`)

func firstWord(s string) string {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

func truncateQuery(q string, n int) string {
	q = strings.Join(strings.Fields(q), " ")
	if len(q) > n {
		return q[:n] + "..."
	}
	return q
}
