package destination

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

/* Loader manages the callback endpoint registry from destinations.yaml
 * Loaded once at startup; provides in-memory lookup for the delivery engine.
 */

// fileConfig represents the structure of destinations.yaml
type fileConfig struct {
	Destinations []destinationConfig `yaml:"destinations"`
}

// destinationConfig represents a single destination in the YAML file
type destinationConfig struct {
	Name             string `yaml:"name"`
	URL              string `yaml:"url"`
	OrganizationName string `yaml:"organization_name"`
}

// Loader holds the loaded destinations
type Loader struct {
	destinations []*Destination
	byName       map[string]*Destination
}

// NewLoader creates an empty destination loader
func NewLoader() *Loader {
	return &Loader{
		byName: make(map[string]*Destination),
	}
}

// Load reads and parses the destinations YAML file. At least one
// destination must be configured.
func (l *Loader) Load(filePath string) error {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("reading destinations file: %w", err)
	}

	var cfg fileConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parsing destinations YAML: %w", err)
	}

	if len(cfg.Destinations) == 0 {
		return fmt.Errorf("no destinations configured in %s", filePath)
	}

	for _, dc := range cfg.Destinations {
		dest := &Destination{
			Name:             dc.Name,
			URL:              dc.URL,
			OrganizationName: dc.OrganizationName,
		}

		if err := dest.Validate(); err != nil {
			return fmt.Errorf("validating destination: %w", err)
		}
		if _, exists := l.byName[dest.Name]; exists {
			return fmt.Errorf("duplicate destination name: %s", dest.Name)
		}

		l.destinations = append(l.destinations, dest)
		l.byName[dest.Name] = dest
	}

	return nil
}

// Get retrieves a destination by name
func (l *Loader) Get(name string) (*Destination, error) {
	dest, exists := l.byName[name]
	if !exists {
		return nil, fmt.Errorf("destination not found: %s", name)
	}
	return dest, nil
}

// List returns all loaded destinations in file order
func (l *Loader) List() []*Destination {
	return l.destinations
}
