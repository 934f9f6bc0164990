package analyzer

import (
	"encoding/json"
	"fmt"

	"github.com/querypulse/querypulse/schema"
)

// explainEntry is the top-level element of the JSON document that the engine
// returns for a plan-instrumented execution.
type explainEntry struct {
	Plan planNode `json:"Plan"`
}

// planNode mirrors the engine's per-node JSON. Fields absent for a node type
// simply stay zero.
type planNode struct {
	NodeType         string     `json:"Node Type"`
	RelationName     string     `json:"Relation Name"`
	IndexName        string     `json:"Index Name"`
	PlanRows         int64      `json:"Plan Rows"`
	ActualRows       int64      `json:"Actual Rows"`
	TotalCost        float64    `json:"Total Cost"`
	SharedHitBlocks  int64      `json:"Shared Hit Blocks"`
	SharedReadBlocks int64      `json:"Shared Read Blocks"`
	Plans            []planNode `json:"Plans"`
}

// parsePlan decodes the plan document and converts it into the schema tree.
func parsePlan(data []byte) (*schema.PlanNode, error) {
	var entries []explainEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("decode plan document: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("plan document is empty")
	}
	return convertNode(entries[0].Plan), nil
}

func convertNode(n planNode) *schema.PlanNode {
	node := &schema.PlanNode{
		NodeType:         schema.ClassifyNodeType(n.NodeType),
		RawType:          n.NodeType,
		Relation:         n.RelationName,
		Index:            n.IndexName,
		PlanRows:         n.PlanRows,
		ActualRows:       n.ActualRows,
		TotalCost:        n.TotalCost,
		SharedHitBlocks:  n.SharedHitBlocks,
		SharedReadBlocks: n.SharedReadBlocks,
	}
	for _, child := range n.Plans {
		node.Children = append(node.Children, *convertNode(child))
	}
	return node
}

// planStats is everything one traversal of the plan tree yields.
type planStats struct {
	inefficiencies []schema.Inefficiency
	usesIndex      bool

	// minAccuracy is the worst per-node estimation accuracy seen; defined
	// only when at least one node had both estimates nonzero.
	minAccuracy     float64
	accuracyDefined bool
	worstRelation   string

	hitBlocks  int64
	readBlocks int64
}

// accuracy returns the query-level estimation accuracy, or -1 when no node
// had a defined ratio.
func (s *planStats) accuracy() float64 {
	if !s.accuracyDefined {
		return -1
	}
	return s.minAccuracy
}

// cacheHitRatio returns the buffer cache hit ratio over the whole execution,
// or -1 when the execution touched no shared blocks.
func (s *planStats) cacheHitRatio() float64 {
	total := s.hitBlocks + s.readBlocks
	if total == 0 {
		return -1
	}
	return float64(s.hitBlocks) / float64(total)
}

// walkPlan traverses the tree once, collecting inefficiencies, index usage,
// the worst estimation accuracy, and buffer block totals.
func walkPlan(root *schema.PlanNode, t Thresholds) *planStats {
	stats := &planStats{}
	walkNode(root, t, stats)
	return stats
}

func walkNode(n *schema.PlanNode, t Thresholds, stats *planStats) {
	if n == nil {
		return
	}

	if n.NodeType.IsIndexNode() {
		stats.usesIndex = true
	}

	stats.hitBlocks += n.SharedHitBlocks
	stats.readBlocks += n.SharedReadBlocks

	switch n.NodeType {
	case schema.SeqScanNode:
		if n.ActualRows > t.SeqScanRows {
			stats.inefficiencies = append(stats.inefficiencies, schema.Inefficiency{
				Kind:       "Sequential Scan",
				Relation:   n.Relation,
				ActualRows: n.ActualRows,
				Detail:     fmt.Sprintf("sequential scan over %d rows on %s", n.ActualRows, relationOrUnknown(n.Relation)),
			})
		}
	case schema.NestedLoopNode:
		if n.ActualRows > t.NestedLoopRows {
			stats.inefficiencies = append(stats.inefficiencies, schema.Inefficiency{
				Kind:       "Nested Loop",
				Relation:   n.Relation,
				ActualRows: n.ActualRows,
				Detail:     fmt.Sprintf("nested loop join producing %d rows", n.ActualRows),
			})
		}
	}

	// Accuracy is the smaller of the two directional ratios, so over- and
	// underestimation are penalized symmetrically. Undefined when either
	// side is zero.
	if n.PlanRows > 0 && n.ActualRows > 0 {
		planned := float64(n.PlanRows)
		actual := float64(n.ActualRows)
		acc := planned / actual
		if actual < planned {
			acc = actual / planned
		}
		if !stats.accuracyDefined || acc < stats.minAccuracy {
			stats.minAccuracy = acc
			stats.accuracyDefined = true
			stats.worstRelation = n.Relation
		}
	}

	for i := range n.Children {
		walkNode(&n.Children[i], t, stats)
	}
}

func relationOrUnknown(rel string) string {
	if rel == "" {
		return "(unnamed relation)"
	}
	return rel
}
