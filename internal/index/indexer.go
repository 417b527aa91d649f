package index

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"factorylift/internal/component"
	"factorylift/internal/crawler"
	"factorylift/internal/dependency"
	"factorylift/internal/extractor"
	"factorylift/internal/graph"
	"factorylift/internal/metrics"
)

// Snapshot is the outcome of phase one: every component parsed, the catalog
// frozen, and the artifact graph built.
type Snapshot struct {
	Catalog    *component.Catalog
	Components []*component.Component
	Graph      *graph.Graph
}

// Indexer orchestrates parsing and graph construction.
type Indexer struct {
	logger  *slog.Logger
	metrics *metrics.Collector
}

// NewIndexer creates a new indexer.
func NewIndexer(logger *slog.Logger, m *metrics.Collector) *Indexer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		logger:  logger,
		metrics: m,
	}
}

// BuildGraph parses the export at source, a document or a directory, and
// constructs the artifact graph. The catalog is frozen before dependencies
// are extracted so nothing downstream sees a partial component set.
func (i *Indexer) BuildGraph(source string) (*Snapshot, error) {
	catalog := component.NewCatalog()
	n := extractor.NewNormalizer(catalog, extractor.WithLogger(i.logger), extractor.WithMetrics(i.metrics))
	c := crawler.NewCrawler(n, i.logger)

	var comps []*component.Component
	err := c.Scan(source, func(comp *component.Component) {
		comps = append(comps, comp)
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}
	return i.fromComponents(catalog, comps), nil
}

// BuildFromDocument is BuildGraph for an export document already in memory.
func (i *Indexer) BuildFromDocument(data []byte, origin string) (*Snapshot, error) {
	catalog := component.NewCatalog()
	n := extractor.NewNormalizer(catalog, extractor.WithLogger(i.logger), extractor.WithMetrics(i.metrics))

	var comps []*component.Component
	if err := crawler.NewCrawler(n, i.logger).ScanDocument(data, origin, func(comp *component.Component) {
		comps = append(comps, comp)
	}); err != nil {
		return nil, err
	}
	return i.fromComponents(catalog, comps), nil
}

// Rebuild restores a snapshot from stored components without reparsing.
func (i *Indexer) Rebuild(comps []*component.Component) (*Snapshot, error) {
	catalog := component.NewCatalog()
	for _, c := range comps {
		if err := catalog.Add(c); err != nil {
			return nil, fmt.Errorf("restore catalog: %w", err)
		}
	}
	return i.fromComponents(catalog, comps), nil
}

func (i *Indexer) fromComponents(catalog *component.Catalog, comps []*component.Component) *Snapshot {
	catalog.Freeze()

	// Resolve relationships after all components are loaded
	dependency.ExtractAll(comps)
	g := graph.NewBuilder(i.logger, i.metrics).Build(comps)

	i.logger.Info("artifact graph built",
		"components", len(comps),
		"nodes", len(g.Nodes),
		"edges", len(g.Edges),
		"placeholders", len(g.Placeholders()),
	)
	return &Snapshot{Catalog: catalog, Components: comps, Graph: g}
}

// SaveGraph persists the graph to a JSON file.
func (i *Indexer) SaveGraph(g *graph.Graph, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create graph file: %w", err)
	}
	defer f.Close()

	encoder := json.NewEncoder(f)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(g); err != nil {
		return fmt.Errorf("failed to encode graph: %w", err)
	}
	return nil
}

// LoadGraph loads a graph from a JSON file.
func (i *Indexer) LoadGraph(path string) (*graph.Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open graph file: %w", err)
	}
	defer f.Close()

	g := graph.NewGraph()
	decoder := json.NewDecoder(f)
	if err := decoder.Decode(g); err != nil {
		return nil, fmt.Errorf("failed to decode graph: %w", err)
	}

	// Rebuild internal indices that aren't serialized
	g.RebuildIndices()

	return g, nil
}
