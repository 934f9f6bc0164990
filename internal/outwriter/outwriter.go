// Package outwriter has output and writer logic.
package outwriter

import (
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/schema"
)

// OutWriter provides a unified interface for all output operations.
// It encapsulates the various output formats and provides a clean API for the core logic.
type OutWriter struct{}

// NewOutWriter creates a new instance of the output writer.
func NewOutWriter() *OutWriter {
	return &OutWriter{}
}

// WriteAnalysis prints one plan analysis result using the configured output format.
func (ow *OutWriter) WriteAnalysis(result *schema.AnalysisResult, cfg *contract.Config) error {
	return WriteAnalysisResult(result, cfg)
}

// WriteSuggestions prints index suggestions using the configured output format.
func (ow *OutWriter) WriteSuggestions(table string, suggestions []schema.IndexSuggestion, cfg *contract.Config) error {
	return WriteSuggestionResults(table, suggestions, cfg)
}

// WritePool prints a pool sizing recommendation using the configured output format.
func (ow *OutWriter) WritePool(metrics schema.PoolMetrics, rec schema.PoolRecommendation, cfg *contract.Config) error {
	return WritePoolResult(metrics, rec, cfg)
}

// WriteMetrics prints tracked query metrics using the configured output format.
func (ow *OutWriter) WriteMetrics(metrics []schema.QueryMetrics, cfg *contract.Config) error {
	return WriteMetricsResults(metrics, cfg)
}

// WriteCacheStatus prints tier store status using the configured output format.
func (ow *OutWriter) WriteCacheStatus(hot, warm schema.CacheStatus, cfg *contract.Config) error {
	return WriteCacheStatusResult(hot, warm, cfg)
}

// WriteMetricsStatus prints metrics store status using the configured output format.
func (ow *OutWriter) WriteMetricsStatus(status schema.MetricsStatus, cfg *contract.Config) error {
	return WriteMetricsStatusResult(status, cfg)
}
