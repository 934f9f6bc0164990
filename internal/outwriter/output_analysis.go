package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteAnalysisResult outputs one plan analysis, dispatching based on the output format configured.
func WriteAnalysisResult(result *schema.AnalysisResult, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, result)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeAnalysisCSV(w, result)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for a single analysis; use json or csv")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeAnalysisText(w, result, cfg, fmtFloat)
		}, "Wrote text")
	}
}

// writeAnalysisText renders the plan tree, derived metrics and recommendations.
func writeAnalysisText(w io.Writer, result *schema.AnalysisResult, cfg *contract.Config, fmtFloat func(float64) string) error {
	if _, err := fmt.Fprintf(w, "Query: %s\n", result.Query); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Duration: %s ms\n\n", fmtFloat(result.DurationMs)); err != nil {
		return err
	}

	if result.Plan != nil {
		if _, err := fmt.Fprintln(w, "Execution plan:"); err != nil {
			return err
		}
		if err := writePlanTree(w, result.Plan, 0, fmtFloat); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(w); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "Uses index: %t\n", result.UsesIndex); err != nil {
		return err
	}
	if result.Metrics.CacheHitRatio >= 0 {
		if _, err := fmt.Fprintf(w, "Cache hit ratio: %s\n", fmtFloat(result.Metrics.CacheHitRatio)); err != nil {
			return err
		}
	}
	if result.Metrics.EstimationAccuracy >= 0 {
		if _, err := fmt.Fprintf(w, "Estimation accuracy: %s\n", fmtFloat(result.Metrics.EstimationAccuracy)); err != nil {
			return err
		}
	}
	if _, err := fmt.Fprintf(w, "Executions tracked: %d (%d slow)\n\n",
		result.Metrics.Executions, result.Metrics.SlowExecutions); err != nil {
		return err
	}

	if len(result.Recommendations) == 0 {
		_, err := fmt.Fprintln(w, "No recommendations.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Severity", "Category", "Message", "Remediation"})
	table.Configure(func(tcfg *tablewriter.Config) {
		tcfg.Row.Alignment.Global = tw.AlignLeft
	})

	width := getMaxTableQueryWidth(cfg)
	var data [][]string
	for _, rec := range result.Recommendations {
		data = append(data, []string{
			severityLabel(rec.Severity, cfg),
			rec.Category,
			truncateText(rec.Message, width),
			rec.Remediation,
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	return table.Render()
}

// writePlanTree renders the plan recursively with two-space indentation.
func writePlanTree(w io.Writer, node *schema.PlanNode, depth int, fmtFloat func(float64) string) error {
	indent := strings.Repeat("  ", depth)
	detail := ""
	if node.Relation != "" {
		detail = " on " + node.Relation
	}
	if node.Index != "" {
		detail += " using " + node.Index
	}
	if _, err := fmt.Fprintf(w, "%s- %s%s (cost=%s rows=%d actual=%d)\n",
		indent, node.RawType, detail, fmtFloat(node.TotalCost), node.PlanRows, node.ActualRows); err != nil {
		return err
	}
	for i := range node.Children {
		if err := writePlanTree(w, &node.Children[i], depth+1, fmtFloat); err != nil {
			return err
		}
	}
	return nil
}

// writeAnalysisCSV writes the recommendation rows; the plan tree does not
// flatten usefully into CSV.
func writeAnalysisCSV(w io.Writer, result *schema.AnalysisResult) error {
	header := []string{"severity", "category", "message", "remediation", "query", "duration_ms"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, rec := range result.Recommendations {
			record := []string{
				contract.GetPlainLabel(rec.Severity),
				rec.Category,
				rec.Message,
				rec.Remediation,
				result.Query,
				strconv.FormatFloat(result.DurationMs, 'f', -1, 64),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}
