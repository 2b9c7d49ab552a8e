package provider

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed catalog.yaml
var defaultCatalog []byte

// Route says which model serves a job type and how to name its output.
type Route struct {
	Model       string         `yaml:"model"`
	Filename    string         `yaml:"filename"`
	ContentType string         `yaml:"content_type"`
	PromptField string         `yaml:"prompt_field"`
	Defaults    map[string]any `yaml:"defaults"`
}

type Catalog struct {
	Models map[string]Route `yaml:"models"`
}

// LoadCatalog parses the embedded catalog, then layers the file at path on
// top of it when path is non-empty. Entries in the file replace whole routes.
func LoadCatalog(path string) (*Catalog, error) {
	cat, err := ParseCatalog(defaultCatalog)
	if err != nil {
		return nil, fmt.Errorf("embedded catalog: %w", err)
	}
	path = strings.TrimSpace(path)
	if path == "" {
		return cat, nil
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	override, err := ParseCatalog(raw)
	if err != nil {
		return nil, fmt.Errorf("catalog %s: %w", path, err)
	}
	for k, r := range override.Models {
		cat.Models[k] = r
	}
	return cat, nil
}

func ParseCatalog(raw []byte) (*Catalog, error) {
	var cat Catalog
	if err := yaml.Unmarshal(raw, &cat); err != nil {
		return nil, err
	}
	if cat.Models == nil {
		cat.Models = map[string]Route{}
	}
	for k, r := range cat.Models {
		if strings.TrimSpace(r.Model) == "" {
			return nil, fmt.Errorf("route %q: missing model", k)
		}
		if strings.TrimSpace(r.Filename) == "" {
			return nil, fmt.Errorf("route %q: missing filename", k)
		}
		if r.PromptField == "" {
			r.PromptField = "prompt"
		}
		cat.Models[k] = r
	}
	return &cat, nil
}

func (c *Catalog) Route(jobType string) (Route, bool) {
	r, ok := c.Models[strings.ToLower(strings.TrimSpace(jobType))]
	return r, ok
}

// Input merges route defaults with caller parameters; caller values win.
func (r Route) Input(params map[string]any) map[string]any {
	out := make(map[string]any, len(r.Defaults)+len(params))
	for k, v := range r.Defaults {
		out[k] = v
	}
	for k, v := range params {
		out[k] = v
	}
	return out
}
