// Package schemagraph models a database schema as an undirected graph over
// table.column nodes and discovers join paths between columns.
package schemagraph

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/sqlpilot-ai/sqlpilot-engine/pkg/adapters/datasource"
)

// EdgeKind classifies how two columns are associated.
type EdgeKind string

const (
	// EdgeSameTable connects every pair of columns within one table.
	EdgeSameTable EdgeKind = "same_table"
	// EdgeForeignKey connects a referencing column to its referenced column.
	EdgeForeignKey EdgeKind = "foreign_key"
)

// Node is one column in the schema graph. Nodes are immutable after build.
type Node struct {
	Table       string
	Column      string
	DataType    string
	IsNullable  bool
	IsPrimary   bool
	Description string
	Statistics  string
}

// ID returns the node identity in "table.column" form.
func (n *Node) ID() string {
	return n.Table + "." + n.Column
}

// Graph owns the node and edge sets. Read-only after Build; safe for
// concurrent use across question sessions.
type Graph struct {
	nodes map[string]*Node
	// adjacency: node id -> neighbor id -> edge kind. Parallel declared
	// edges collapse into the set; foreign_key wins over same_table when
	// both apply.
	edges map[string]map[string]EdgeKind
}

// BuildOptions controls optional enrichment at graph-build time.
type BuildOptions struct {
	// Descriptions maps "table.column" to a free-text description.
	Descriptions map[string]string

	// Statistics, when non-nil, is consulted per column to cache value
	// statistics on the node. Build cost grows linearly with column count.
	Statistics datasource.StatisticsProvider
}

// Build enumerates tables, columns, and foreign keys from the extractor and
// constructs the full schema graph: one node per column, a complete
// same_table subgraph per table, and one foreign_key edge per declared
// relationship. Rebuilding replaces any prior graph.
func Build(ctx context.Context, ex datasource.SchemaExtractor, opts BuildOptions) (*Graph, error) {
	g := &Graph{
		nodes: make(map[string]*Node),
		edges: make(map[string]map[string]EdgeKind),
	}

	tables, err := ex.GetTables(ctx)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}

	for _, table := range tables {
		columns, err := ex.GetColumns(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("list columns for %s: %w", table, err)
		}

		ids := make([]string, 0, len(columns))
		for _, col := range columns {
			node := &Node{
				Table:      table,
				Column:     col.Name,
				DataType:   col.DataType,
				IsNullable: col.IsNullable,
				IsPrimary:  col.IsPrimary,
			}
			if opts.Descriptions != nil {
				node.Description = opts.Descriptions[node.ID()]
			}
			if opts.Statistics != nil {
				stats, err := opts.Statistics.ColumnStatistics(ctx, table, col.Name)
				if err == nil {
					node.Statistics = stats
				}
			}
			g.nodes[node.ID()] = node
			ids = append(ids, node.ID())
		}

		// Complete subgraph across the table's columns.
		for i, a := range ids {
			for _, b := range ids[i+1:] {
				g.addEdge(a, b, EdgeSameTable)
			}
		}
	}

	for _, table := range tables {
		fks, err := ex.GetForeignKeys(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("list foreign keys for %s: %w", table, err)
		}
		for _, fk := range fks {
			from := table + "." + fk.Column
			to := fk.ReferencedTable + "." + fk.ReferencedColumn
			// Dangling declarations (referenced table missing) are skipped.
			if _, ok := g.nodes[from]; !ok {
				continue
			}
			if _, ok := g.nodes[to]; !ok {
				continue
			}
			g.addEdge(from, to, EdgeForeignKey)
		}
	}

	return g, nil
}

func (g *Graph) addEdge(a, b string, kind EdgeKind) {
	for _, pair := range [][2]string{{a, b}, {b, a}} {
		if g.edges[pair[0]] == nil {
			g.edges[pair[0]] = make(map[string]EdgeKind)
		}
		if existing, ok := g.edges[pair[0]][pair[1]]; !ok || existing == EdgeSameTable {
			g.edges[pair[0]][pair[1]] = kind
		}
	}
}

// Node returns the node with the given "table.column" id.
func (g *Graph) Node(id string) (*Node, bool) {
	n, ok := g.nodes[id]
	return n, ok
}

// NodeCount returns the number of columns in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Tables returns the distinct table names in the graph, sorted.
func (g *Graph) Tables() []string {
	seen := make(map[string]struct{})
	for _, n := range g.nodes {
		seen[n.Table] = struct{}{}
	}
	tables := make([]string, 0, len(seen))
	for t := range seen {
		tables = append(tables, t)
	}
	sort.Strings(tables)
	return tables
}

// AllNodes returns every column node sorted by "table.column" id.
func (g *Graph) AllNodes() []*Node {
	ids := make([]string, 0, len(g.nodes))
	for id := range g.nodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	nodes := make([]*Node, len(ids))
	for i, id := range ids {
		nodes[i] = g.nodes[id]
	}
	return nodes
}

// TableColumns returns the node ids of one table's columns, sorted.
func (g *Graph) TableColumns(table string) []string {
	prefix := table + "."
	var ids []string
	for id := range g.nodes {
		if strings.HasPrefix(id, prefix) {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids
}

// ShortestPath returns an unweighted BFS shortest path between two columns,
// inclusive of both endpoints. It returns an empty path when either endpoint
// is absent or no path exists; it errors only for malformed identifiers
// (not in "table.column" form). Neighbor iteration is sorted, so the result
// is deterministic for a fixed graph.
func (g *Graph) ShortestPath(start, end string) ([]string, error) {
	if err := validateColumnID(start); err != nil {
		return nil, err
	}
	if err := validateColumnID(end); err != nil {
		return nil, err
	}

	if _, ok := g.nodes[start]; !ok {
		return nil, nil
	}
	if _, ok := g.nodes[end]; !ok {
		return nil, nil
	}
	if start == end {
		return []string{start}, nil
	}

	prev := map[string]string{start: ""}
	queue := []string{start}

	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]

		for _, neighbor := range g.sortedNeighbors(current) {
			if _, seen := prev[neighbor]; seen {
				continue
			}
			prev[neighbor] = current
			if neighbor == end {
				return reconstructPath(prev, start, end), nil
			}
			queue = append(queue, neighbor)
		}
	}

	return nil, nil
}

func (g *Graph) sortedNeighbors(id string) []string {
	adj := g.edges[id]
	if len(adj) == 0 {
		return nil
	}
	neighbors := make([]string, 0, len(adj))
	for n := range adj {
		neighbors = append(neighbors, n)
	}
	sort.Strings(neighbors)
	return neighbors
}

func reconstructPath(prev map[string]string, start, end string) []string {
	var path []string
	for at := end; at != ""; at = prev[at] {
		path = append(path, at)
	}
	// Reverse in place.
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}
	if len(path) == 0 || path[0] != start {
		return nil
	}
	return path
}

func validateColumnID(id string) error {
	parts := strings.Split(id, ".")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return fmt.Errorf("malformed column identifier %q: want table.column", id)
	}
	return nil
}

// TablesAlongPath renders a path as the ordered list of distinct table
// names it traverses, with consecutive duplicates collapsed.
func TablesAlongPath(path []string) []string {
	var tables []string
	for _, id := range path {
		table := id
		if i := strings.IndexByte(id, '.'); i >= 0 {
			table = id[:i]
		}
		if len(tables) == 0 || tables[len(tables)-1] != table {
			tables = append(tables, table)
		}
	}
	return tables
}

// FormatPath renders a path for prompt consumption.
func FormatPath(path []string) string {
	if len(path) == 0 {
		return "No path found"
	}
	return strings.Join(path, " <-> ")
}

// Provider lazily constructs and memoizes the schema graph for the lifetime
// of a database connection. There is no incremental update; Rebuild replaces
// the cached graph wholesale. The mutex guards the graph pointer so a
// rebuild can swap it under in-flight readers; the graph itself is
// immutable after construction.
type Provider struct {
	ex     datasource.SchemaExtractor
	opts   BuildOptions
	logger *zap.Logger

	mu    sync.RWMutex
	graph *Graph
}

// NewProvider creates a graph provider over the given extractor.
func NewProvider(ex datasource.SchemaExtractor, opts BuildOptions, logger *zap.Logger) *Provider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Provider{
		ex:     ex,
		opts:   opts,
		logger: logger.Named("schemagraph"),
	}
}

// Graph returns the memoized graph, building it on first use.
func (p *Provider) Graph(ctx context.Context) (*Graph, error) {
	p.mu.RLock()
	g := p.graph
	p.mu.RUnlock()
	if g != nil {
		return g, nil
	}
	return p.Rebuild(ctx)
}

// Rebuild discards any cached graph and constructs a fresh one.
func (p *Provider) Rebuild(ctx context.Context) (*Graph, error) {
	g, err := Build(ctx, p.ex, p.opts)
	if err != nil {
		return nil, fmt.Errorf("build schema graph: %w", err)
	}
	p.logger.Info("schema graph built", zap.Int("columns", g.NodeCount()))
	p.mu.Lock()
	p.graph = g
	p.mu.Unlock()
	return g, nil
}

// The query methods below delegate to the cached graph so that callers
// holding the provider observe a rebuild. They require the graph to have
// been built; Graph or Rebuild must have succeeded first.

func (p *Provider) current() *Graph {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.graph
}

func (p *Provider) ShortestPath(start, end string) ([]string, error) {
	g := p.current()
	if g == nil {
		return nil, fmt.Errorf("schema graph not built")
	}
	return g.ShortestPath(start, end)
}

func (p *Provider) TableColumns(table string) []string {
	g := p.current()
	if g == nil {
		return nil
	}
	return g.TableColumns(table)
}

func (p *Provider) Tables() []string {
	g := p.current()
	if g == nil {
		return nil
	}
	return g.Tables()
}

func (p *Provider) AllNodes() []*Node {
	g := p.current()
	if g == nil {
		return nil
	}
	return g.AllNodes()
}
