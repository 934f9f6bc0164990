package outwriter

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/internal/parquet"
	"github.com/querypulse/querypulse/schema"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
)

// WriteSuggestionResults outputs index suggestions, dispatching based on the output format configured.
func WriteSuggestionResults(table string, suggestions []schema.IndexSuggestion, cfg *contract.Config) error {
	switch cfg.Output {
	case schema.JSONOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeJSON(w, suggestions)
		}, "Wrote JSON")
	case schema.CSVOut:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSuggestionsCSV(w, suggestions)
		}, "Wrote CSV")
	case schema.ParquetOut:
		if err := requireOutputFile(cfg, "parquet"); err != nil {
			return err
		}
		rows := make([]parquet.SuggestionRow, len(suggestions))
		for i, s := range suggestions {
			rows[i] = parquet.SuggestionRow{
				Kind:    string(s.Kind),
				Table:   s.Table,
				Columns: strings.Join(s.Columns, "|"),
				Reason:  s.Reason,
				DDL:     s.DDL,
			}
		}
		if err := parquet.WriteSuggestionsParquet(rows, cfg.OutputFile); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "💾 Wrote parquet to %s\n", cfg.OutputFile)
		return nil
	default:
		return writeWithFile(cfg.OutputFile, func(w io.Writer) error {
			return writeSuggestionsText(w, table, suggestions, cfg)
		}, "Wrote table")
	}
}

// writeSuggestionsText renders suggestions as a table followed by the DDL.
func writeSuggestionsText(w io.Writer, tableName string, suggestions []schema.IndexSuggestion, cfg *contract.Config) error {
	if len(suggestions) == 0 {
		_, err := fmt.Fprintf(w, "No index suggestions for %s.\n", tableName)
		return err
	}

	tbl := tablewriter.NewWriter(w)
	tbl.Header([]string{"Kind", "Table", "Columns", "Reason"})
	tbl.Configure(func(tcfg *tablewriter.Config) {
		tcfg.Row.Alignment.Global = tw.AlignLeft
	})

	width := getMaxTableQueryWidth(cfg)
	var data [][]string
	for _, s := range suggestions {
		data = append(data, []string{
			string(s.Kind),
			s.Table,
			strings.Join(s.Columns, ", "),
			truncateText(s.Reason, width),
		})
	}
	if err := tbl.Bulk(data); err != nil {
		return err
	}
	if err := tbl.Render(); err != nil {
		return err
	}

	if _, err := fmt.Fprintln(w, "\nAdvisory DDL (review before applying):"); err != nil {
		return err
	}
	for _, s := range suggestions {
		if _, err := fmt.Fprintf(w, "  %s\n", s.DDL); err != nil {
			return err
		}
	}
	return nil
}

// writeSuggestionsCSV writes the suggestions in CSV format.
func writeSuggestionsCSV(w io.Writer, suggestions []schema.IndexSuggestion) error {
	header := []string{"kind", "table", "columns", "reason", "ddl"}
	return writeCSVWithHeader(w, header, func(cw *csv.Writer) error {
		for _, s := range suggestions {
			record := []string{
				string(s.Kind),
				s.Table,
				strings.Join(s.Columns, "|"),
				s.Reason,
				s.DDL,
			}
			if err := cw.Write(record); err != nil {
				return err
			}
		}
		return nil
	})
}
