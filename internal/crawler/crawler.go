package crawler

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"factorylift/internal/component"
	"factorylift/internal/extractor"
)

// Crawler reads export documents or per-resource directories and streams the
// resulting components through a callback.
type Crawler struct {
	normalizer *extractor.Normalizer
	ignored    []string
	logger     *slog.Logger
}

// NewCrawler creates a new crawler instance.
func NewCrawler(n *extractor.Normalizer, logger *slog.Logger) *Crawler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Crawler{
		normalizer: n,
		ignored:    []string{".git", "node_modules", ".vscode", "publish_config"},
		logger:     logger,
	}
}

// Scan reads path as a directory export when it is a directory and as a
// single export document otherwise.
func (c *Crawler) Scan(path string, onComponent func(*component.Component)) error {
	info, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("stat source %s: %w", path, err)
	}
	if info.IsDir() {
		return c.ScanDirectory(path, onComponent)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read source %s: %w", path, err)
	}
	return c.ScanDocument(data, filepath.Base(path), onComponent)
}

// ScanDocument parses one export document. The root may be an object with a
// "resources" array, a bare array of resources, or a single resource.
// Individual malformed resources are skipped; only unreadable JSON is an error.
func (c *Crawler) ScanDocument(data []byte, origin string, onComponent func(*component.Component)) error {
	var root any
	if err := json.Unmarshal(data, &root); err != nil {
		return fmt.Errorf("decode %s: %w", origin, err)
	}
	for _, item := range c.documentResources(root, origin) {
		c.emit(item.obj, item.origin, "", onComponent)
	}
	return nil
}

type rawResource struct {
	obj    map[string]any
	origin string
}

func (c *Crawler) documentResources(root any, origin string) []rawResource {
	var items []any
	base := origin
	switch t := root.(type) {
	case []any:
		items = t
	case map[string]any:
		if res, ok := t["resources"].([]any); ok && t["type"] == nil {
			items = res
			base = origin + "#resources"
		} else {
			return []rawResource{{obj: t, origin: origin}}
		}
	default:
		c.logger.Warn("export document has no resources", "origin", origin)
		return nil
	}

	out := make([]rawResource, 0, len(items))
	for i, it := range items {
		itemOrigin := base + "/" + strconv.Itoa(i)
		obj, ok := it.(map[string]any)
		if !ok {
			c.normalizer.Skip(&extractor.ParseError{Origin: itemOrigin, Reason: "resource is not an object"})
			continue
		}
		out = append(out, rawResource{obj: obj, origin: itemOrigin})
	}
	return out
}

func (c *Crawler) emit(obj map[string]any, origin, inferredType string, onComponent func(*component.Component)) {
	if inferredType != "" {
		if _, ok := obj["type"].(string); !ok {
			obj = withType(obj, inferredType)
		}
	}
	res, skipped, err := extractor.ResourceFromMap(obj, origin)
	for _, s := range skipped {
		c.normalizer.Skip(s)
	}
	if err != nil {
		c.normalizer.Skip(err)
		return
	}
	for _, comp := range c.normalizer.Ingest(res) {
		onComponent(comp)
	}
}

func withType(obj map[string]any, typ string) map[string]any {
	out := make(map[string]any, len(obj)+1)
	for k, v := range obj {
		out[k] = v
	}
	out["type"] = typ
	return out
}

// ScanDirectory walks a directory export (one JSON file per resource, grouped
// in folders named after the resource kind). Files are visited in lexical
// order. A file that fails to parse is logged and skipped.
func (c *Crawler) ScanDirectory(root string, onComponent func(*component.Component)) error {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			for _, ign := range c.ignored {
				if d.Name() == ign {
					return filepath.SkipDir
				}
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(d.Name()), ".json") {
			files = append(files, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	sort.Strings(files)

	for _, path := range files {
		rel, err := filepath.Rel(root, path)
		if err != nil {
			rel = path
		}
		rel = filepath.ToSlash(rel)

		data, err := os.ReadFile(path)
		if err != nil {
			c.logger.Warn("read failed, skipping file", "path", rel, "error", err)
			continue
		}
		var doc any
		if err := json.Unmarshal(data, &doc); err != nil {
			c.normalizer.Skip(&extractor.ParseError{Origin: rel, Reason: "invalid JSON: " + err.Error()})
			continue
		}

		obj, ok := doc.(map[string]any)
		if !ok || isTemplate(obj) {
			// ARM templates checked into the repository alongside resources.
			for _, item := range c.documentResources(doc, rel) {
				c.emit(item.obj, item.origin, "", onComponent)
			}
			continue
		}
		c.emit(obj, rel, folderType(rel), onComponent)
	}
	return nil
}

func isTemplate(obj map[string]any) bool {
	_, hasResources := obj["resources"].([]any)
	_, hasSchema := obj["$schema"]
	return hasResources && (hasSchema || obj["type"] == nil)
}

// folderType infers a resource type from the first directory of a relative path.
func folderType(rel string) string {
	dir, _, ok := strings.Cut(rel, "/")
	if !ok {
		return ""
	}
	if _, known := extractor.Kind(dir); known {
		return dir
	}
	return ""
}
