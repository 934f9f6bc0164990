package schema

// Custom string types for type safety.
type (
	// NodeType represents the classified kind of an execution plan node.
	NodeType string

	// Severity represents how urgent a recommendation is.
	Severity string

	// IndexKind represents the style of a suggested index.
	IndexKind string

	// PoolAction represents a proposed pool sizing move.
	PoolAction string

	// OutputMode represents the format of the output.
	OutputMode string

	// CacheBackend represents the storage backend for a cache tier or the
	// metrics store.
	CacheBackend string
)

// Closed variant set for plan node classification. Unknown operator kinds
// fall into OtherNode explicitly rather than being silently skipped.
const (
	SeqScanNode    NodeType = "SeqScan"
	IndexScanNode  NodeType = "IndexScan"
	NestedLoopNode NodeType = "NestedLoop"
	HashJoinNode   NodeType = "HashJoin"
	MergeJoinNode  NodeType = "MergeJoin"
	OtherNode      NodeType = "Other"
)

// All recommendation severities supported.
const (
	CriticalSeverity Severity = "CRITICAL"
	HighSeverity     Severity = "HIGH"
	MediumSeverity   Severity = "MEDIUM"
	LowSeverity      Severity = "LOW"
)

// All index suggestion kinds supported.
const (
	BTreeIndex     IndexKind = "btree"
	BitmapIndex    IndexKind = "bitmap"
	CompositeIndex IndexKind = "composite"
	CoveringIndex  IndexKind = "covering"
)

// All pool actions supported.
const (
	ShrinkPool PoolAction = "shrink"
	GrowPool   PoolAction = "grow"
)

// All output modes supported.
const (
	TextOut    OutputMode = "text" // default
	JSONOut    OutputMode = "json"
	CSVOut     OutputMode = "csv"
	ParquetOut OutputMode = "parquet"
)

// All cache backends supported.
const (
	MemoryBackend     CacheBackend = "memory" // default for the hot tier
	SQLiteBackend     CacheBackend = "sqlite" // default for the warm tier
	MySQLBackend      CacheBackend = "mysql"
	PostgreSQLBackend CacheBackend = "postgresql"
	NoneBackend       CacheBackend = "none"
)

// ValidOutputModes lists all valid output modes.
var ValidOutputModes = map[OutputMode]struct{}{
	TextOut:    {},
	JSONOut:    {},
	CSVOut:     {},
	ParquetOut: {},
}

// ValidCacheBackends lists all valid cache backends.
var ValidCacheBackends = map[CacheBackend]struct{}{
	MemoryBackend:     {},
	SQLiteBackend:     {},
	MySQLBackend:      {},
	PostgreSQLBackend: {},
	NoneBackend:       {},
}

// SeverityRank orders severities from most to least urgent for sorting.
var SeverityRank = map[Severity]int{
	CriticalSeverity: 0,
	HighSeverity:     1,
	MediumSeverity:   2,
	LowSeverity:      3,
}

// ClassifyNodeType maps an engine-reported node type string into the closed
// variant set. Bitmap scans count as index-using nodes.
func ClassifyNodeType(raw string) NodeType {
	switch raw {
	case "Seq Scan":
		return SeqScanNode
	case "Index Scan", "Index Only Scan", "Bitmap Heap Scan", "Bitmap Index Scan":
		return IndexScanNode
	case "Nested Loop":
		return NestedLoopNode
	case "Hash Join":
		return HashJoinNode
	case "Merge Join":
		return MergeJoinNode
	default:
		return OtherNode
	}
}

// IsIndexNode reports whether a classified node type uses an index.
func (n NodeType) IsIndexNode() bool {
	return n == IndexScanNode
}
