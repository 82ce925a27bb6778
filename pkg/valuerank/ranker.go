// Package valuerank finds textual cell values matching a user-supplied
// fragment and ranks candidates by BM25-style lexical relevance.
package valuerank

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource"
	sqlcheck "github.com/sqlpilot-ai/sqlpilot-engine/pkg/sql"
)

// RankedValue is a candidate cell value with its owning table and column.
// The relevance score is an internal ranking artifact and is not exposed.
type RankedValue struct {
	Value  string `json:"value"`
	Table  string `json:"table"`
	Column string `json:"column"`
}

// DefaultLimit bounds result count when the caller passes limit <= 0.
const DefaultLimit = 5

// ValueSource is the database surface the ranker needs.
type ValueSource interface {
	datasource.SchemaExtractor
	datasource.StatisticsProvider
}

// Ranker searches text columns for values matching a query fragment.
type Ranker struct {
	source      ValueSource
	sampleLimit int
	logger      *zap.Logger
}

// New creates a value ranker. sampleLimit bounds the distinct values read
// per column; if <= 0 a default of 200 is used.
func New(source ValueSource, sampleLimit int, logger *zap.Logger) *Ranker {
	if sampleLimit <= 0 {
		sampleLimit = 200
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Ranker{
		source:      source,
		sampleLimit: sampleLimit,
		logger:      logger.Named("valuerank"),
	}
}

// Search finds values containing the query substring (case-insensitive)
// across text-typed columns, optionally scoped to one table and/or column,
// ranked by BM25 relevance. Returns at most limit results; an empty slice
// when nothing passes the substring pre-filter.
func (r *Ranker) Search(ctx context.Context, query, table, column string, limit int) ([]RankedValue, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	// Fragments originate from user questions via the LLM; screen them
	// before they touch the database.
	if result := sqlcheck.CheckFragmentForInjection(query); result != nil {
		r.logger.Warn("value query rejected by injection screen",
			zap.String("fingerprint", result.Fingerprint))
		return nil, nil
	}

	candidates, err := r.collectCandidates(ctx, query, table, column)
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	// Rank the pre-filtered set.
	docs := make([][]string, len(candidates))
	for i, c := range candidates {
		docs[i] = tokenize(c.Value)
	}
	scores := bm25Scores(tokenize(query), docs)

	order := make([]int, len(candidates))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		// Deterministic tiebreak.
		ca, cb := candidates[order[a]], candidates[order[b]]
		if ca.Table != cb.Table {
			return ca.Table < cb.Table
		}
		if ca.Column != cb.Column {
			return ca.Column < cb.Column
		}
		return ca.Value < cb.Value
	})

	if len(order) > limit {
		order = order[:limit]
	}
	results := make([]RankedValue, len(order))
	for i, idx := range order {
		results[i] = candidates[idx]
	}
	return results, nil
}

// SearchBatch resolves multiple query fragments by searching sequentially
// and concatenating, truncated to limit.
func (r *Ranker) SearchBatch(ctx context.Context, queries []string, table, column string, limit int) ([]RankedValue, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	var all []RankedValue
	for _, q := range queries {
		results, err := r.Search(ctx, q, table, column, limit)
		if err != nil {
			return nil, err
		}
		all = append(all, results...)
		if len(all) >= limit {
			break
		}
	}
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

// collectCandidates gathers the distinct values from text-typed columns
// that contain the query substring case-insensitively.
func (r *Ranker) collectCandidates(ctx context.Context, query, table, column string) ([]RankedValue, error) {
	var tables []string
	if table != "" {
		tables = []string{table}
	} else {
		var err error
		tables, err = r.source.GetTables(ctx)
		if err != nil {
			return nil, fmt.Errorf("list tables: %w", err)
		}
	}

	needle := strings.ToLower(query)
	var candidates []RankedValue

	for _, tbl := range tables {
		columns, err := r.source.GetColumns(ctx, tbl)
		if err != nil {
			return nil, fmt.Errorf("list columns for %s: %w", tbl, err)
		}

		for _, col := range columns {
			if column != "" && col.Name != column {
				continue
			}
			if !datasource.IsTextType(col.DataType) {
				continue
			}

			values, err := r.source.SampleDistinctValues(ctx, tbl, col.Name, r.sampleLimit)
			if err != nil {
				// One unreadable column must not abort the whole search.
				r.logger.Debug("value sampling failed",
					zap.String("table", tbl),
					zap.String("column", col.Name),
					zap.Error(err))
				continue
			}

			for _, v := range values {
				if strings.Contains(strings.ToLower(v), needle) {
					candidates = append(candidates, RankedValue{
						Value:  v,
						Table:  tbl,
						Column: col.Name,
					})
				}
			}
		}
	}

	return candidates, nil
}
