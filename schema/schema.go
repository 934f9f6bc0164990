// Package schema has configs, models and shared types for all parts of querypulse.
package schema

import "time"

// PlanNode represents a single operator node in a relational execution plan.
// Nodes are created transiently per analysis call and discarded once the
// derived metrics have been computed.
type PlanNode struct {
	NodeType         NodeType   `json:"nodeType"`         // Classified operator kind (closed variant set)
	RawType          string     `json:"rawType"`          // Original node type string reported by the engine
	Relation         string     `json:"relation"`         // Base relation accessed, if any
	Index            string     `json:"index"`            // Index used by this node, if any
	PlanRows         int64      `json:"planRows"`         // Planner's row estimate
	ActualRows       int64      `json:"actualRows"`       // Rows actually produced
	TotalCost        float64    `json:"totalCost"`        // Planner cost estimate for the subtree
	SharedHitBlocks  int64      `json:"sharedHitBlocks"`  // Buffer blocks satisfied from memory
	SharedReadBlocks int64      `json:"sharedReadBlocks"` // Buffer blocks read from storage
	Children         []PlanNode `json:"children,omitempty"`
}

// Inefficiency records a single problematic plan node found during analysis.
type Inefficiency struct {
	Kind       string `json:"kind"`       // Human-readable operator description, e.g. "Sequential Scan"
	Relation   string `json:"relation"`   // Relation the node touched, if known
	ActualRows int64  `json:"actualRows"` // Observed row count that crossed the threshold
	Detail     string `json:"detail"`     // Short explanation of why this node was flagged
}

// QueryMetrics holds the running performance counters for one normalized
// query, identified by a content hash of its text. Counters are additive
// across repeated analyses and are never decremented.
type QueryMetrics struct {
	QueryHash          string  `json:"queryHash"`          // Content hash of the normalized query text
	Query              string  `json:"query"`              // Normalized query text sample
	Executions         int64   `json:"executions"`         // Number of analyzed executions
	TotalTimeMs        float64 `json:"totalTimeMs"`        // Cumulative wall-clock time across executions
	AvgTimeMs          float64 `json:"avgTimeMs"`          // TotalTimeMs / Executions
	SlowExecutions     int64   `json:"slowExecutions"`     // Executions above the slow-query threshold
	CacheHitRatio      float64 `json:"cacheHitRatio"`      // Latest observed buffer hit ratio in [0,1]
	EstimationAccuracy float64 `json:"estimationAccuracy"` // Latest observed plan accuracy in [0,1]
}

// Recommendation is a single advisory finding derived from plan analysis.
type Recommendation struct {
	Severity    Severity `json:"severity"`
	Category    string   `json:"category"`    // e.g. "index", "join", "buffers", "statistics"
	Message     string   `json:"message"`     // What was observed and what to do about it
	Remediation string   `json:"remediation"` // Literal command or DDL to apply, when one exists
}

// AnalysisResult is the full output of one plan analysis call.
type AnalysisResult struct {
	Query           string           `json:"query"`
	DurationMs      float64          `json:"durationMs"` // End-to-end wall clock, including planning
	Plan            *PlanNode        `json:"plan,omitempty"`
	Metrics         QueryMetrics     `json:"metrics"`
	Inefficiencies  []Inefficiency   `json:"inefficiencies"`
	Recommendations []Recommendation `json:"recommendations"`
	UsesIndex       bool             `json:"usesIndex"` // Whether any index-using node appeared in the tree
}

// IndexSuggestion is an advisory index definition. The DDL text is never
// executed by querypulse; it exists to be reviewed and applied by a human.
type IndexSuggestion struct {
	Kind    IndexKind `json:"kind"`
	Table   string    `json:"table"`
	Columns []string  `json:"columns"`
	Reason  string    `json:"reason"`
	DDL     string    `json:"ddl"`
}

// ColumnStat is a snapshot of column-level statistics from the relational
// engine's statistics catalog.
type ColumnStat struct {
	Column      string  `json:"column"`
	NDistinct   float64 `json:"nDistinct"`   // Positive: distinct count. Negative: -fraction of rows (engine semantics)
	Correlation float64 `json:"correlation"` // Physical-vs-logical ordering correlation in [-1,1]
}

// SlowQuery is one entry from the engine's slow-execution sample.
type SlowQuery struct {
	Query      string  `json:"query"`
	Calls      int64   `json:"calls"`
	MeanTimeMs float64 `json:"meanTimeMs"`
}

// PoolMetrics is a point-in-time snapshot of connection pool counters.
type PoolMetrics struct {
	TotalCount   int `json:"totalCount"`   // Connections currently in the pool
	IdleCount    int `json:"idleCount"`    // Connections idle and ready to serve
	WaitingCount int `json:"waitingCount"` // Acquires currently or recently blocked waiting for a connection
}

// PoolRecommendation is a proposed pool sizing. It is advisory only; the
// planner never mutates the live pool.
type PoolRecommendation struct {
	SuggestedMin int          `json:"suggestedMin"`
	SuggestedMax int          `json:"suggestedMax"`
	Utilization  float64      `json:"utilization"` // idle / total at snapshot time
	Actions      []PoolAction `json:"actions"`     // Shrink and grow may both be present
	Rationale    string       `json:"rationale"`
}

// CacheStatus reports status information about one cache tier store.
type CacheStatus struct {
	Backend         string    `json:"backend"`
	Connected       bool      `json:"connected"`
	TotalEntries    int       `json:"totalEntries"`
	LastEntryTime   time.Time `json:"lastEntryTime"`
	OldestEntryTime time.Time `json:"oldestEntryTime"`
	TableSizeBytes  int64     `json:"tableSizeBytes"`
}

// MetricsStatus reports status information about the persistent query
// metrics store.
type MetricsStatus struct {
	Backend       string    `json:"backend"`
	Connected     bool      `json:"connected"`
	TotalQueries  int       `json:"totalQueries"`
	LastUpdatedAt time.Time `json:"lastUpdatedAt"`
}
