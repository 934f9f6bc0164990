package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

// WriteCacheStatusResult outputs status for both tier stores, dispatching based on the output format configured.
func WriteCacheStatusResult(hot, warm schema.CacheStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, struct {
				Hot  schema.CacheStatus `json:"hot"`
				Warm schema.CacheStatus `json:"warm"`
			}{hot, warm})
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeCacheStatusCSV(w, hot, warm)
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for status; use json or csv")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if err := writeCacheStatusText(w, "hot", hot); err != nil {
				return err
			}
			return writeCacheStatusText(w, "warm", warm)
		}, "Wrote text")
	}
}

// writeCacheStatusText renders one tier's status in plain text.
func writeCacheStatusText(w io.Writer, tier string, status schema.CacheStatus) error {
	if _, err := fmt.Fprintf(w, "%s tier (%s):\n", tier, status.Backend); err != nil {
		return err
	}
	if !status.Connected {
		_, err := fmt.Fprintln(w, "  not connected")
		return err
	}
	if _, err := fmt.Fprintf(w, "  entries: %d\n", status.TotalEntries); err != nil {
		return err
	}
	if status.TotalEntries > 0 {
		if _, err := fmt.Fprintf(w, "  newest entry: %s\n", status.LastEntryTime.Format(contract.DateTimeFormat)); err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "  oldest entry: %s\n", status.OldestEntryTime.Format(contract.DateTimeFormat)); err != nil {
			return err
		}
	}
	if status.TableSizeBytes > 0 {
		if _, err := fmt.Fprintf(w, "  table size: %d bytes\n", status.TableSizeBytes); err != nil {
			return err
		}
	}
	return nil
}

// writeCacheStatusCSV writes one row per tier in CSV format.
func writeCacheStatusCSV(w io.Writer, hot, warm schema.CacheStatus) error {
	header := []string{"tier", "backend", "connected", "entries", "newest_entry", "oldest_entry", "table_size_bytes"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, row := range []struct {
			tier   string
			status schema.CacheStatus
		}{{"hot", hot}, {"warm", warm}} {
			record := []string{
				row.tier,
				row.status.Backend,
				strconv.FormatBool(row.status.Connected),
				strconv.Itoa(row.status.TotalEntries),
				formatStatusTime(row.status.LastEntryTime),
				formatStatusTime(row.status.OldestEntryTime),
				strconv.FormatInt(row.status.TableSizeBytes, 10),
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}

// WriteMetricsStatusResult outputs metrics store status, dispatching based on the output format configured.
func WriteMetricsStatusResult(status schema.MetricsStatus, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, status)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			header := []string{"backend", "connected", "total_queries", "last_updated_at"}
			return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
				return cw.Write([]string{
					status.Backend,
					strconv.FormatBool(status.Connected),
					strconv.Itoa(status.TotalQueries),
					formatStatusTime(status.LastUpdatedAt),
				})
			})
		}, "Wrote CSV")
	case schema.ParquetOut:
		return fmt.Errorf("parquet output is not supported for status; use json or csv")
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			if _, err := fmt.Fprintf(w, "metrics store (%s):\n", status.Backend); err != nil {
				return err
			}
			if !status.Connected {
				_, err := fmt.Fprintln(w, "  not connected")
				return err
			}
			if _, err := fmt.Fprintf(w, "  tracked queries: %d\n", status.TotalQueries); err != nil {
				return err
			}
			if status.TotalQueries > 0 {
				if _, err := fmt.Fprintf(w, "  last updated: %s\n", status.LastUpdatedAt.Format(contract.DateTimeFormat)); err != nil {
					return err
				}
			}
			return nil
		}, "Wrote text")
	}
}

// formatStatusTime renders a timestamp, empty for the zero value.
func formatStatusTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(contract.DateTimeFormat)
}
