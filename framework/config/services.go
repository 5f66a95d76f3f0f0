package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	jsoniter "github.com/json-iterator/go"
	"gopkg.in/yaml.v3"
)

// ErrUnsupportedFormat is returned for service files that are neither YAML
// nor JSON.
var ErrUnsupportedFormat = errors.New("unsupported service file format")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LoadServices reads a declarative service tree for Container.Configure.
// The format follows the extension: .yaml and .yml are YAML, .json is JSON.
//
//	services, err := config.LoadServices("services.yaml")
//	err = c.Configure(ctx, services, container.WithConfigID("services.yaml"))
func LoadServices(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read services: %w", err)
	}
	services, err := ParseServices(data, filepath.Ext(path))
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	return services, nil
}

// ParseServices decodes data in the format named by ext. Numbers in JSON
// documents decode as float64; the container converts them on injection.
func ParseServices(data []byte, ext string) (map[string]any, error) {
	services := make(map[string]any)
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &services); err != nil {
			return nil, err
		}
	case ".json":
		if err := json.Unmarshal(data, &services); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	return normalize(services).(map[string]any), nil
}

// normalize rewrites map[any]any nodes, which YAML produces for non-string
// keys, into map[string]any so every node is one the container walks.
func normalize(v any) any {
	switch x := v.(type) {
	case map[string]any:
		for k, item := range x {
			x[k] = normalize(item)
		}
		return x
	case map[any]any:
		out := make(map[string]any, len(x))
		for k, item := range x {
			out[fmt.Sprint(k)] = normalize(item)
		}
		return out
	case []any:
		for i, item := range x {
			x[i] = normalize(item)
		}
		return x
	default:
		return v
	}
}
