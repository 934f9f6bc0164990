package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

// WritePoolResult outputs a pool sizing recommendation, dispatching based on the output format configured.
func WritePoolResult(metrics schema.PoolMetrics, rec schema.PoolRecommendation, cfg *contract.Config) error {
	fmtFloat, _ := createFormatters(cfg.Precision)

	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, struct {
				Metrics        schema.PoolMetrics        `json:"metrics"`
				Recommendation schema.PoolRecommendation `json:"recommendation"`
			}{metrics, rec})
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePoolCSV(w, metrics, rec, fmtFloat)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for pool recommendations; use json or csv")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writePoolText(w, metrics, rec, fmtFloat)
		}, "Wrote text")
	}
}

// writePoolText renders the snapshot and recommendation in plain text.
func writePoolText(w io.Writer, metrics schema.PoolMetrics, rec schema.PoolRecommendation, fmtFloat func(float64) string) error {
	if _, err := fmt.Fprintf(w, "Pool snapshot: total=%d idle=%d waiting=%d (utilization %s)\n",
		metrics.TotalCount, metrics.IdleCount, metrics.WaitingCount, fmtFloat(rec.Utilization)); err != nil {
		return err
	}

	actions := "none"
	if len(rec.Actions) > 0 {
		parts := make([]string, len(rec.Actions))
		for i, a := range rec.Actions {
			parts[i] = string(a)
		}
		actions = strings.Join(parts, ", ")
	}
	if _, err := fmt.Fprintf(w, "Actions: %s\n", actions); err != nil {
		return err
	}
	if _, err := fmt.Fprintf(w, "Suggested sizing: min=%d max=%d\n", rec.SuggestedMin, rec.SuggestedMax); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "Rationale: %s\n", rec.Rationale)
	return err
}

// writePoolCSV writes the single recommendation row in CSV format.
func writePoolCSV(w io.Writer, metrics schema.PoolMetrics, rec schema.PoolRecommendation, fmtFloat func(float64) string) error {
	header := []string{
		"total", "idle", "waiting", "utilization",
		"suggested_min", "suggested_max", "actions", "rationale",
	}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		parts := make([]string, len(rec.Actions))
		for i, a := range rec.Actions {
			parts[i] = string(a)
		}
		record := []string{
			strconv.Itoa(metrics.TotalCount),
			strconv.Itoa(metrics.IdleCount),
			strconv.Itoa(metrics.WaitingCount),
			fmtFloat(rec.Utilization),
			strconv.Itoa(rec.SuggestedMin),
			strconv.Itoa(rec.SuggestedMax),
			strings.Join(parts, "|"),
			rec.Rationale,
		}
		return cw.Write(record)
	})
}
