package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/internal/parquet"
	"github.com/querypulse/querypulse/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteMetricsResults outputs tracked query metrics, dispatching based on the output format configured.
func WriteMetricsResults(metrics []schema.QueryMetrics, cfg *contract.Config) error {
	fmtFloat, intFmt := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, metrics)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeMetricsCSV(w, metrics, fmtFloat, intFmt)
		}, "Wrote CSV")
	case schema.ParquetOut:
		if err := requireOutputFile(cfg, "parquet"); err != nil {
			return err
		}
		if err := parquet.WriteMetricsParquet(parquet.FromMetrics(metrics), cfg.OutputFile); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote parquet to %s\n", cfg.OutputFile)
		return nil
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeMetricsTable(w, metrics, cfg, fmtFloat, intFmt)
		}, "Wrote table")
	}
}

// writeMetricsTable generates and writes the human-readable table.
func writeMetricsTable(w io.Writer, metrics []schema.QueryMetrics, cfg *contract.Config, fmtFloat func(float64) string, intFmt string) error {
	if len(metrics) == 0 {
		_, err := fmt.Fprintln(w, "No query metrics tracked yet.")
		return err
	}

	table := tablewriter.NewWriter(w)
	table.Header([]string{"Rank", "Query", "Execs", "Total ms", "Avg ms", "Slow", "Hit ratio", "Accuracy"})
	table.Configure(func(tcfg *tablewriter.Config) {
		tcfg.Row.Alignment.Global = tw.AlignRight
	})

	width := getMaxTableQueryWidth(cfg)
	var data [][]string
	for i, m := range metrics {
		data = append(data, []string{
			strconv.Itoa(i + 1),
			truncateText(m.Query, width),
			fmt.Sprintf(intFmt, m.Executions),
			fmtFloat(m.TotalTimeMs),
			fmtFloat(m.AvgTimeMs),
			fmt.Sprintf(intFmt, m.SlowExecutions),
			formatRatio(m.CacheHitRatio, fmtFloat),
			formatRatio(m.EstimationAccuracy, fmtFloat),
		})
	}
	if err := table.Bulk(data); err != nil {
		return err
	}
	if err := table.Render(); err != nil {
		return err
	}

	_, err := fmt.Fprintf(w, "Showing %d tracked queries\n", len(metrics))
	return err
}

// formatRatio renders a ratio, showing n/a for the undefined sentinel.
func formatRatio(v float64, fmtFloat func(float64) string) string {
	if v < 0 {
		return "n/a"
	}
	return fmtFloat(v)
}

// writeMetricsCSV writes the metrics rows in CSV format.
func writeMetricsCSV(w io.Writer, metrics []schema.QueryMetrics, fmtFloat func(float64) string, intFmt string) error {
	header := []string{
		"query_hash", "query", "executions", "total_time_ms", "avg_time_ms",
		"slow_executions", "cache_hit_ratio", "estimation_accuracy",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, m := range metrics {
			record := []string{
				m.QueryHash,
				m.Query,
				fmt.Sprintf(intFmt, m.Executions),
				fmtFloat(m.TotalTimeMs),
				fmtFloat(m.AvgTimeMs),
				fmt.Sprintf(intFmt, m.SlowExecutions),
				fmtFloat(m.CacheHitRatio),
				fmtFloat(m.EstimationAccuracy),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}
