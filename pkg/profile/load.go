package profile

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

type statsDocument struct {
	Dataset string                          `yaml:"dataset"`
	Columns map[string]map[string]yaml.Node `yaml:"columns"`
}

// LoadFile reads a YAML or JSON statistics file and returns a frozen
// cache. The dataset name defaults to the file's base name.
func LoadFile(path string) (*StatisticsCache, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read statistics file: %w", err)
	}
	cache, err := LoadBytes(data)
	if err != nil {
		return nil, fmt.Errorf("statistics file %q: %w", path, err)
	}
	if cache.dataset == "" {
		cache.dataset = filepath.Base(path)
	}
	return cache, nil
}

// LoadBytes decodes a statistics document and returns a frozen cache.
func LoadBytes(data []byte) (*StatisticsCache, error) {
	var doc statsDocument
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty statistics document")
		}
		return nil, fmt.Errorf("YAML parsing failed: %w", err)
	}

	cache := NewStatisticsCache(doc.Dataset)
	for field, metrics := range doc.Columns {
		for metric, node := range metrics {
			if err := setNode(cache, field, metric, &node); err != nil {
				return nil, err
			}
		}
	}
	cache.Freeze()
	return cache, nil
}

func setNode(c *StatisticsCache, field, metric string, node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: column %q metric %q: expected a scalar value", node.Line, field, metric)
	}

	switch node.Tag {
	case "!!null":
		return nil
	case "!!int", "!!float":
		var v float64
		if err := node.Decode(&v); err != nil {
			return fmt.Errorf("line %d: column %q metric %q: %w", node.Line, field, metric, err)
		}
		return c.Set(field, metric, v)
	default:
		return c.SetText(field, metric, node.Value)
	}
}
