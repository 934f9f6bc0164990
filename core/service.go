package core

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/querypulse/querypulse/advisor"
	"github.com/querypulse/querypulse/analyzer"
	"github.com/querypulse/querypulse/cache"
	"github.com/querypulse/querypulse/internal/contract"
	"github.com/querypulse/querypulse/internal/kvstore"
	"github.com/querypulse/querypulse/internal/metricstore"
	"github.com/querypulse/querypulse/poolplan"
	"github.com/querypulse/querypulse/schema"

	_ "github.com/jackc/pgx/v5/stdlib" // pgx database/sql driver
)

// warmTierTable is the warm tier's backing table in SQL stores.
const warmTierTable = "querypulse_warm_cache"

// Service wires all components together for one process. There are no
// package-level singletons; everything hangs off the Service built at
// startup.
type Service struct {
	cfg *contract.Config

	db   *sql.DB       // nil when no database URL is configured
	pool *pgxpool.Pool // nil when no database URL is configured

	hot     contract.KeyValueStore
	warm    contract.KeyValueStore
	manager *cache.Manager

	analyzer  *analyzer.Analyzer
	advisor   *advisor.Advisor
	collector *poolplan.Collector
	metrics   contract.MetricsStore // nil when tracking is disabled
}

// NewService constructs the full component graph from validated config.
// Cache components always come up; database-backed components come up only
// when a database URL is configured.
func NewService(ctx context.Context, cfg *contract.Config) (*Service, error) {
	s := &Service{cfg: cfg}

	// The hot tier is always in-process memory; the warm tier follows the
	// configured backend.
	s.hot = kvstore.NewMemoryStore()
	warm, err := kvstore.NewStore(cfg.CacheBackend, warmTierTable, cfg.CacheDBConnect)
	if err != nil {
		s.close()
		return nil, fmt.Errorf("warm tier store: %w", err)
	}
	s.warm = warm

	graph, err := parseCascadeGraph(cfg.CascadeEdges)
	if err != nil {
		s.close()
		return nil, err
	}

	s.manager = cache.NewManager(s.hot, s.warm,
		cache.WithFreshness(cfg.Freshness),
		cache.WithFetchTimeout(cfg.FetchTimeout),
		cache.WithRefreshConcurrency(cfg.RefreshWorkers),
		cache.WithWarmConcurrency(cfg.WarmWorkers),
		cache.WithCascadeGraph(graph),
	)

	if cfg.MetricsBackend != schema.NoneBackend {
		store, err := metricstore.New(cfg.MetricsBackend, cfg.MetricsDBConnect)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("metrics store: %w", err)
		}
		s.metrics = store
	}

	if cfg.DatabaseURL != "" {
		db, err := sql.Open("pgx", cfg.DatabaseURL)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("open database: %w", err)
		}
		if err := db.PingContext(ctx); err != nil {
			_ = db.Close()
			s.close()
			return nil, fmt.Errorf("connect to database: %w", err)
		}
		s.db = db

		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			s.close()
			return nil, fmt.Errorf("create connection pool: %w", err)
		}
		s.pool = pool

		opts := []analyzer.Option{
			analyzer.WithThresholds(analyzer.Thresholds{
				SeqScanRows:      cfg.SeqScanRows,
				NestedLoopRows:   cfg.NestedLoopRows,
				SlowQueryMs:      cfg.SlowQueryMs,
				StatementTimeout: cfg.StatementTimeout,
			}),
		}
		if s.metrics != nil {
			opts = append(opts, analyzer.WithMetricsStore(s.metrics))
		}
		s.analyzer = analyzer.New(db, opts...)

		s.advisor = advisor.New(advisor.NewPostgresStats(db), advisor.Thresholds{
			Cardinality: cfg.CardinalityThreshold,
			Correlation: cfg.CorrelationThreshold,
			SampleLimit: cfg.SampleLimit,
		})
		s.collector = poolplan.NewCollector(pool)
	}

	return s, nil
}

// Manager returns the cache manager.
func (s *Service) Manager() *cache.Manager { return s.manager }

// Analyzer returns the plan analyzer, or an error when no database is
// configured.
func (s *Service) Analyzer() (*analyzer.Analyzer, error) {
	if s.analyzer == nil {
		return nil, errNoDatabase("analyze")
	}
	return s.analyzer, nil
}

// Advisor returns the index advisor, or an error when no database is
// configured.
func (s *Service) Advisor() (*advisor.Advisor, error) {
	if s.advisor == nil {
		return nil, errNoDatabase("advise")
	}
	return s.advisor, nil
}

// Collector returns the pool counter collector, or an error when no database
// is configured.
func (s *Service) Collector() (*poolplan.Collector, error) {
	if s.collector == nil {
		return nil, errNoDatabase("pool")
	}
	return s.collector, nil
}

// Metrics returns the durable metrics store, or an error when tracking is
// disabled.
func (s *Service) Metrics() (contract.MetricsStore, error) {
	if s.metrics == nil {
		return nil, fmt.Errorf("metrics tracking is disabled: set a durable metrics backend")
	}
	return s.metrics, nil
}

// TierStatus reports status for the hot and warm tier stores.
func (s *Service) TierStatus(ctx context.Context) (hot, warm schema.CacheStatus, err error) {
	if hot, err = s.hot.Status(ctx); err != nil {
		return hot, warm, fmt.Errorf("hot tier status: %w", err)
	}
	if warm, err = s.warm.Status(ctx); err != nil {
		return hot, warm, fmt.Errorf("warm tier status: %w", err)
	}
	return hot, warm, nil
}

// Close drains background cache work and closes every owned resource in
// dependency order.
func (s *Service) Close() error {
	if s.manager != nil {
		_ = s.manager.Close()
	}
	return s.close()
}

func (s *Service) close() error {
	var firstErr error
	record := func(err error) {
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	if s.hot != nil {
		record(s.hot.Close())
	}
	if s.warm != nil {
		record(s.warm.Close())
	}
	if s.metrics != nil {
		record(s.metrics.Close())
	}
	if s.pool != nil {
		s.pool.Close()
	}
	if s.db != nil {
		record(s.db.Close())
	}
	return firstErr
}

func errNoDatabase(op string) error {
	return fmt.Errorf("%s requires a database: set --database-url or QUERYPULSE_DATABASE_URL", op)
}

// parseCascadeGraph parses "source=>dep1,dep2" entries and validates the
// resulting edge set as a DAG.
func parseCascadeGraph(entries []string) (*cache.Graph, error) {
	if len(entries) == 0 {
		return nil, nil
	}

	edges := make([]cache.Edge, 0, len(entries))
	for _, entry := range entries {
		source, deps, ok := strings.Cut(entry, "=>")
		if !ok {
			return nil, fmt.Errorf("invalid cascade edge %q: expected source=>dep1,dep2", entry)
		}
		source = strings.TrimSpace(source)
		if source == "" {
			return nil, fmt.Errorf("invalid cascade edge %q: empty source pattern", entry)
		}

		var dependents []string
		for _, dep := range strings.Split(deps, ",") {
			dep = strings.TrimSpace(dep)
			if dep != "" {
				dependents = append(dependents, dep)
			}
		}
		if len(dependents) == 0 {
			return nil, fmt.Errorf("invalid cascade edge %q: no dependent patterns", entry)
		}
		edges = append(edges, cache.Edge{Source: source, Dependents: dependents})
	}

	graph, err := cache.NewGraph(edges)
	if err != nil {
		return nil, fmt.Errorf("cascade edges: %w", err)
	}
	return graph, nil
}
