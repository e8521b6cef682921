package workflows

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// OutreachSpec configures the optional outreach stage of a workflow.
// Disabled by default: the daily sweep never auto-sends unless an operator
// turned it on and supplied content.
type OutreachSpec struct {
	Enabled  bool   `yaml:"enabled"`
	Action   string `yaml:"action"`
	Content  string `yaml:"content"`
	PostURL  string `yaml:"post_url"`
	MaxSends int    `yaml:"max_sends"`
}

// Definition is one named workflow.
type Definition struct {
	Name       string       `yaml:"name"`
	Query      string       `yaml:"query"`
	MaxResults int          `yaml:"max_results"`
	Outreach   OutreachSpec `yaml:"outreach"`
}

// Catalog holds the named workflows an orchestrator can execute.
type Catalog struct {
	mu   sync.RWMutex
	defs map[string]Definition
}

func NewCatalog() *Catalog {
	return &Catalog{defs: make(map[string]Definition)}
}

// Register adds or replaces a definition.
func (c *Catalog) Register(def Definition) error {
	if def.Name == "" {
		return fmt.Errorf("workflow definition requires a name")
	}
	if def.Query == "" {
		return fmt.Errorf("workflow %q requires a query", def.Name)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.defs[def.Name] = def
	return nil
}

// Lookup returns the definition for a name.
func (c *Catalog) Lookup(name string) (Definition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	def, ok := c.defs[name]
	return def, ok
}

// Names lists the registered workflow names.
func (c *Catalog) Names() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.defs))
	for name := range c.defs {
		out = append(out, name)
	}
	return out
}

type catalogFile struct {
	Workflows []Definition `yaml:"workflows"`
}

// LoadCatalog reads workflow definitions from a YAML file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow catalog: %w", err)
	}
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse workflow catalog %s: %w", path, err)
	}

	cat := NewCatalog()
	for _, def := range file.Workflows {
		if err := cat.Register(def); err != nil {
			return nil, err
		}
	}
	return cat, nil
}

// DefaultCatalog ships the daily lead workflow.
func DefaultCatalog() *Catalog {
	cat := NewCatalog()
	_ = cat.Register(Definition{
		Name:       "lead_daily",
		Query:      "looking for salon brand OR opening hair salon OR salon for sale",
		MaxResults: 20,
	})
	return cat
}
