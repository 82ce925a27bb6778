package embeddings

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/llm"
	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/models"
)

// embeddingBatchSize caps how many column documents are sent to the
// embeddings endpoint in a single request.
const embeddingBatchSize = 64

type indexEntry struct {
	hit    models.ColumnHit
	vector []float32
}

// ColumnIndex holds one embedding vector per column of the datasource
// schema and answers nearest-neighbour queries over them. Build must be
// called before SearchColumns; Rebuild replaces the index in place.
type ColumnIndex struct {
	llmClient llm.LLMClient
	logger    *zap.Logger

	mu      sync.RWMutex
	entries []indexEntry
}

func NewColumnIndex(llmClient llm.LLMClient, logger *zap.Logger) *ColumnIndex {
	return &ColumnIndex{
		llmClient: llmClient,
		logger:    logger.Named("column_index"),
	}
}

// Build extracts the schema, renders one document per column and embeds
// them. Descriptions and statistics are optional; when present they are
// folded into the embedded document and carried on each hit.
func (ix *ColumnIndex) Build(ctx context.Context, extractor datasource.SchemaExtractor, stats datasource.StatisticsProvider, descriptions map[string]string) (int, error) {
	tables, err := extractor.GetTables(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to list tables: %w", err)
	}

	var hits []models.ColumnHit
	var docs []string
	for _, table := range tables {
		columns, err := extractor.GetColumns(ctx, table)
		if err != nil {
			return 0, fmt.Errorf("failed to get columns for %s: %w", table, err)
		}
		for _, col := range columns {
			hit := models.ColumnHit{
				Table:       table,
				Column:      col.Name,
				DataType:    col.DataType,
				Description: descriptions[fmt.Sprintf("%s.%s", table, col.Name)],
			}
			if stats != nil {
				summary, err := stats.ColumnStatistics(ctx, table, col.Name)
				if err != nil {
					ix.logger.Debug("skipping statistics for column",
						zap.String("table", table),
						zap.String("column", col.Name),
						zap.Error(err))
				} else {
					hit.Statistics = summary
				}
			}
			hits = append(hits, hit)
			docs = append(docs, renderColumnDocument(hit))
		}
	}

	if len(docs) == 0 {
		ix.mu.Lock()
		ix.entries = nil
		ix.mu.Unlock()
		return 0, nil
	}

	vectors := make([][]float32, 0, len(docs))
	for start := 0; start < len(docs); start += embeddingBatchSize {
		end := start + embeddingBatchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch, err := ix.llmClient.CreateEmbeddings(ctx, docs[start:end])
		if err != nil {
			return 0, fmt.Errorf("failed to embed column documents: %w", err)
		}
		if len(batch) != end-start {
			return 0, fmt.Errorf("embedding count mismatch: sent %d, got %d", end-start, len(batch))
		}
		vectors = append(vectors, batch...)
	}

	entries := make([]indexEntry, len(hits))
	for i := range hits {
		entries[i] = indexEntry{hit: hits[i], vector: vectors[i]}
	}

	ix.mu.Lock()
	ix.entries = entries
	ix.mu.Unlock()

	ix.logger.Info("column index built", zap.Int("columns", len(entries)))
	return len(entries), nil
}

// SearchColumns embeds each query and returns the top k columns per
// query by cosine similarity, keyed by the query text.
func (ix *ColumnIndex) SearchColumns(ctx context.Context, queries []string, k int) (map[string][]models.ColumnHit, error) {
	if len(queries) == 0 {
		return map[string][]models.ColumnHit{}, nil
	}

	ix.mu.RLock()
	entries := ix.entries
	ix.mu.RUnlock()
	if len(entries) == 0 {
		return nil, fmt.Errorf("column index is empty; call Build first")
	}

	queryVectors, err := ix.llmClient.CreateEmbeddings(ctx, queries)
	if err != nil {
		return nil, fmt.Errorf("failed to embed queries: %w", err)
	}
	if len(queryVectors) != len(queries) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d queries, got %d vectors", len(queries), len(queryVectors))
	}

	results := make(map[string][]models.ColumnHit, len(queries))
	for i, query := range queries {
		scored := make([]models.ColumnHit, 0, len(entries))
		for _, entry := range entries {
			hit := entry.hit
			hit.Score = cosineSimilarity(queryVectors[i], entry.vector)
			scored = append(scored, hit)
		}
		sort.SliceStable(scored, func(a, b int) bool {
			if scored[a].Score != scored[b].Score {
				return scored[a].Score > scored[b].Score
			}
			return scored[a].Key() < scored[b].Key()
		})
		if k > 0 && len(scored) > k {
			scored = scored[:k]
		}
		results[query] = scored
	}
	return results, nil
}

// Size reports the number of indexed columns.
func (ix *ColumnIndex) Size() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

func renderColumnDocument(hit models.ColumnHit) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s.%s (%s)", hit.Table, hit.Column, hit.DataType)
	if hit.Description != "" {
		b.WriteString(": ")
		b.WriteString(hit.Description)
	}
	if hit.Statistics != "" {
		b.WriteString(". ")
		b.WriteString(hit.Statistics)
	}
	return b.String()
}

func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
