// Package featurelist reads the ordered feature descriptions a batch
// is created from. Three formats are accepted: plain text (one feature
// per line), a YAML list, and markdown bullet lists.
package featurelist

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads a feature list file, picking the format by extension
func Load(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading feature list: %w", err)
	}

	var features []string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		features, err = parseYAML(data)
	case ".md", ".markdown":
		features, err = parseMarkdown(data)
	default:
		features, err = parseLines(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	if len(features) == 0 {
		return nil, fmt.Errorf("%s contains no features", path)
	}
	return features, nil
}

// parseLines treats every non-empty, non-comment line as one feature
func parseLines(data []byte) ([]string, error) {
	var features []string
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		features = append(features, line)
	}
	return features, nil
}

// parseYAML accepts either a bare list or a document with a "features" key
func parseYAML(data []byte) ([]string, error) {
	var list []string
	if err := yaml.Unmarshal(data, &list); err == nil && len(list) > 0 {
		return trimAll(list), nil
	}

	var doc struct {
		Features []string `yaml:"features"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return trimAll(doc.Features), nil
}

// parseMarkdown collects top-level bullet items; everything else
// (headings, prose) is context for humans and is skipped
func parseMarkdown(data []byte) ([]string, error) {
	var features []string
	for _, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if !strings.HasPrefix(trimmed, "- ") && !strings.HasPrefix(trimmed, "* ") {
			continue
		}
		if line != trimmed {
			continue // nested bullet, belongs to the feature above
		}
		item := strings.TrimSpace(trimmed[2:])
		// Unchecked task-list syntax is a feature; checked ones are done
		if strings.HasPrefix(item, "[x]") || strings.HasPrefix(item, "[X]") {
			continue
		}
		item = strings.TrimSpace(strings.TrimPrefix(item, "[ ]"))
		if item != "" {
			features = append(features, item)
		}
	}
	return features, nil
}

func trimAll(in []string) []string {
	var out []string
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
